package drives

import (
	"fmt"
	"strings"
)

// Типы дисков, по которым фильтрует таблица
var Types = []string{"ssd", "hdd", "usb", "nvme"}

// Filter фильтр таблицы дисков; пустое поле или "all" не ограничивает выборку
type Filter struct {
	Status string `json:"status"`
	Type   string `json:"type"`
	Query  string `json:"query"`
}

// Validate проверяет значения фильтра
func (f Filter) Validate() error {
	if s := norm(f.Status); s != "" && s != "all" {
		switch Status(s) {
		case StatusIdle, StatusWiping, StatusCompleted, StatusError, StatusWarning:
		default:
			return fmt.Errorf("unknown drive status filter: %s", f.Status)
		}
	}
	if t := norm(f.Type); t != "" && t != "all" {
		known := false
		for _, typ := range Types {
			if t == typ {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("unknown drive type filter: %s", f.Type)
		}
	}
	return nil
}

// Match проверяет одну запись
func (f Filter) Match(r Record) bool {
	if s := norm(f.Status); s != "" && s != "all" && Status(s) != r.Status {
		return false
	}
	if t := norm(f.Type); t != "" && t != "all" && t != strings.ToLower(r.Type) {
		return false
	}
	if q := norm(f.Query); q != "" {
		if !strings.Contains(strings.ToLower(r.Device), q) &&
			!strings.Contains(strings.ToLower(r.Name), q) &&
			!strings.Contains(strings.ToLower(r.Model), q) {
			return false
		}
	}
	return true
}

// Apply возвращает записи, прошедшие фильтр, с сохранением порядка
func Apply(records []Record, f Filter) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

func norm(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
