package reporting

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"lethe_console/internal/config"
)

const filePrefix = "lethe_report_"

// Report JSON отчёт о сеансе наблюдения
type Report struct {
	RunID      string                 `json:"run_id"`
	Version    string                 `json:"version"`
	Hostname   string                 `json:"hostname"`
	Backend    string                 `json:"backend"`
	Timestamp  time.Time              `json:"timestamp"`
	Config     map[string]interface{} `json:"config"`
	Operations []Operation            `json:"operations"`
	Summary    SummaryReport          `json:"summary"`
	Duration   string                 `json:"duration"`
}

// SummaryReport сводка по операциям сеанса
type SummaryReport struct {
	TotalOperations int     `json:"total_operations"`
	Encryptions     int     `json:"encryptions"`
	DoDWipes        int     `json:"dod_wipes"`
	Finished        int     `json:"finished"`
	Interrupted     int     `json:"interrupted"`
	Running         int     `json:"running"`
	TotalFiles      int     `json:"total_files"`
	FailedFiles     int     `json:"failed_files"`
	SuccessRate     float64 `json:"success_rate"`
}

// AggregatedReport агрегированный отчёт по нескольким сеансам
type AggregatedReport struct {
	GeneratedAt   time.Time     `json:"generated_at"`
	TotalRuns     int           `json:"total_runs"`
	TotalMachines int           `json:"total_machines"`
	Summary       SummaryReport `json:"summary"`
	RunIDs        []string      `json:"run_ids"`
}

// ReportFile сохранённый отчёт на диске
type ReportFile struct {
	Path       string    `json:"path"`
	RunID      string    `json:"run_id"`
	Timestamp  time.Time `json:"timestamp"`
	Operations int       `json:"operations"`
}

// GenerateReport строит отчёт по операциям, замеченным за сеанс
func GenerateReport(ops []Operation, cfg *config.Config, version string, startTime, endTime time.Time) (*Report, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	report := &Report{
		RunID:      uuid.New().String(),
		Version:    version,
		Hostname:   hostname,
		Backend:    cfg.Backend.BaseURL,
		Timestamp:  startTime,
		Config:     configToMap(cfg),
		Operations: make([]Operation, len(ops)),
		Duration:   endTime.Sub(startTime).Round(time.Second).String(),
	}
	copy(report.Operations, ops)
	report.Summary = summarize(ops)

	return report, nil
}

func summarize(ops []Operation) SummaryReport {
	s := SummaryReport{TotalOperations: len(ops)}
	for _, op := range ops {
		switch op.Kind {
		case KindEncryption:
			s.Encryptions++
		case KindDoDWipe:
			s.DoDWipes++
		}
		switch op.Status {
		case StatusFinished:
			s.Finished++
		case StatusInterrupted:
			s.Interrupted++
		default:
			s.Running++
		}
		s.TotalFiles += op.FilesTotal
		s.FailedFiles += op.FilesFailed
	}

	closed := s.Finished + s.Interrupted
	if closed > 0 {
		s.SuccessRate = float64(s.Finished) / float64(closed) * 100
	}
	return s
}

// SaveReport сохраняет отчёт в JSON файл и возвращает путь
func SaveReport(report *Report, cfg *config.Config) (string, error) {
	if !cfg.Reporting.Enabled {
		return "", nil
	}

	// Создаем директорию для отчётов
	if err := os.MkdirAll(cfg.Reporting.LocalPath, 0755); err != nil {
		return "", fmt.Errorf("ошибка создания директории для отчётов: %w", err)
	}

	id := report.RunID
	if len(id) > 8 {
		id = id[:8]
	}
	filename := fmt.Sprintf("%s%s_%s.json", filePrefix, report.Timestamp.Format("20060102_150405"), id)
	path := filepath.Join(cfg.Reporting.LocalPath, filename)

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("ошибка сериализации отчёта: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("ошибка записи отчёта: %w", err)
	}

	return path, nil
}

// LoadReport читает отчёт из файла
func LoadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения отчёта: %w", err)
	}
	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("ошибка разбора отчёта %s: %w", filepath.Base(path), err)
	}
	return &report, nil
}

// ListReports перечисляет сохранённые отчёты, новые первыми.
// Отсутствующая директория означает пустой список.
func ListReports(dir string) ([]ReportFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка чтения директории отчётов: %w", err)
	}

	var files []ReportFile
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), filePrefix) || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		path := filepath.Join(dir, e.Name())
		report, err := LoadReport(path)
		if err != nil {
			// битый файл не мешает остальным
			continue
		}
		files = append(files, ReportFile{
			Path:       path,
			RunID:      report.RunID,
			Timestamp:  report.Timestamp,
			Operations: len(report.Operations),
		})
	}

	sort.SliceStable(files, func(i, j int) bool {
		return files[i].Timestamp.After(files[j].Timestamp)
	})
	return files, nil
}

// AggregateReports агрегирует несколько отчётов в один
func AggregateReports(reports []Report, now time.Time) *AggregatedReport {
	agg := &AggregatedReport{
		GeneratedAt: now,
		TotalRuns:   len(reports),
	}

	machines := make(map[string]bool)
	var ops []Operation
	for _, report := range reports {
		machines[report.Hostname] = true
		agg.RunIDs = append(agg.RunIDs, report.RunID)
		ops = append(ops, report.Operations...)
	}

	agg.TotalMachines = len(machines)
	agg.Summary = summarize(ops)
	return agg
}

// configToMap преобразует Config в map для JSON сериализации
func configToMap(cfg *config.Config) map[string]interface{} {
	return map[string]interface{}{
		"backend": map[string]interface{}{
			"base_url": cfg.Backend.BaseURL,
			"timeout":  cfg.Backend.Timeout,
		},
		"polling": map[string]interface{}{
			"dashboard_interval":  cfg.Polling.DashboardInterval,
			"encryption_interval": cfg.Polling.EncryptionInterval,
			"dod_interval":        cfg.Polling.DoDInterval,
			"elapsed_interval":    cfg.Polling.ElapsedInterval,
			"disks_interval":      cfg.Polling.DisksInterval,
			"logs_interval":       cfg.Polling.LogsInterval,
		},
		"security": map[string]interface{}{
			"require_confirmation": cfg.Security.RequireConfirmation,
			"allow_system_disk":    cfg.Security.AllowSystemDisk,
			"excluded_devices":     cfg.Security.ExcludedDevices,
		},
		"display": map[string]interface{}{
			"coerce_wipe_count": cfg.Display.CoerceWipeCount,
		},
	}
}
