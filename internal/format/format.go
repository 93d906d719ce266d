// Package format превращает доменные значения в строки для отображения.
// Все функции тотальные: отсутствующее значение даёт "-".
package format

import (
	"fmt"
	"strings"
	"time"

	units "github.com/docker/go-units"
)

// Missing подстановка для отсутствующего значения
const Missing = "-"

// Bytes размер в десятичных единицах (GB, TB)
func Bytes(size uint64) string {
	if size == 0 {
		return Missing
	}
	return units.HumanSizeWithPrecision(float64(size), 4)
}

// Percent целый процент в пределах [0, 100]
func Percent(p int) string {
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	return fmt.Sprintf("%d%%", p)
}

// Elapsed форматирует длительность как "{h}h {m}m {s}s"
func Elapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}

// Relative "just now", "5 min ago", "2h ago", "3d ago"
func Relative(t, now time.Time) string {
	if t.IsZero() {
		return Missing
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%d min ago", int(d/time.Minute))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d/time.Hour))
	default:
		return fmt.Sprintf("%dd ago", int(d/(24*time.Hour)))
	}
}

// Timestamp локальное время
func Timestamp(t time.Time) string {
	if t.IsZero() {
		return Missing
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

// Text строка или "-", если пусто
func Text(s string) string {
	if strings.TrimSpace(s) == "" {
		return Missing
	}
	return s
}

// List элементы через запятую или "-"
func List(items []string) string {
	var kept []string
	for _, it := range items {
		if strings.TrimSpace(it) != "" {
			kept = append(kept, it)
		}
	}
	if len(kept) == 0 {
		return Missing
	}
	return strings.Join(kept, ", ")
}
