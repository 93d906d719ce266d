// Package logs разбирает строки журнала backend вида "<timestamp> <LEVEL>:<message>"
package logs

import (
	"strings"

	"lethe_console/internal/status"
)

// Display статус записи журнала
const (
	StatusError   = "error"
	StatusWarning = "warning"
	StatusSuccess = "success"
	StatusInfo    = "info"
)

// Entry разобранная строка журнала
type Entry struct {
	ID        int    `json:"id"`
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Message   string `json:"message"`
	Status    string `json:"status"`
}

// StatusForLevel сопоставляет уровень журнала со статусом отображения
func StatusForLevel(level string) string {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "ERROR":
		return StatusError
	case "WARNING", "WARN":
		return StatusWarning
	case "INFO":
		return StatusSuccess
	default:
		return StatusInfo
	}
}

// Parse разбирает строку: до первого пробела timestamp, затем до первого двоеточия уровень.
// Строки без пробела или без двоеточия отвергаются.
func Parse(line string, id int) (Entry, bool) {
	line = strings.TrimSpace(line)

	sp := strings.IndexByte(line, ' ')
	if sp <= 0 {
		return Entry{}, false
	}
	timestamp := line[:sp]
	rest := line[sp+1:]

	colon := strings.IndexByte(rest, ':')
	if colon < 0 {
		return Entry{}, false
	}
	level := strings.TrimSpace(rest[:colon])
	if level == "" {
		return Entry{}, false
	}

	return Entry{
		ID:        id,
		Timestamp: timestamp,
		Level:     level,
		Message:   strings.TrimSpace(rest[colon+1:]),
		Status:    StatusForLevel(level),
	}, true
}

// ParseAll разбирает строки, нумерует их с 1 и отбрасывает неразборчивые
func ParseAll(lines []string) []Entry {
	entries := make([]Entry, 0, len(lines))
	for _, line := range lines {
		if e, ok := Parse(line, len(entries)+1); ok {
			entries = append(entries, e)
		}
	}
	return entries
}

// FilterByLevel оставляет записи указанного уровня; "" или "all" пропускает всё
func FilterByLevel(entries []Entry, level string) []Entry {
	level = strings.ToUpper(strings.TrimSpace(level))
	if level == "" || level == "ALL" {
		return entries
	}

	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if strings.ToUpper(e.Level) == level {
			out = append(out, e)
		}
	}
	return out
}

// Summary сводка журнала для карточек
type Summary struct {
	TotalLogs   int     `json:"total_logs"`
	Warnings    int     `json:"warnings"`
	Errors      int     `json:"errors"`
	Success     int     `json:"success"`
	SuccessRate float64 `json:"success_rate"`
}

// Summarize считает сводку по отчёту /logsfull
func Summarize(r status.LogsReport) Summary {
	s := Summary{
		TotalLogs: r.TotalLogs,
		Warnings:  r.Warnings,
		Errors:    r.Errors,
		Success:   r.Success,
	}
	if r.TotalLogs > 0 {
		s.SuccessRate = float64(r.Success) / float64(r.TotalLogs) * 100
	}
	return s
}
