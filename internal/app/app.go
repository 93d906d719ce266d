package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"

	"lethe_console/internal/api"
	"lethe_console/internal/config"
	"lethe_console/internal/drives"
	"lethe_console/internal/format"
	"lethe_console/internal/logging"
	"lethe_console/internal/logs"
	"lethe_console/internal/poller"
	"lethe_console/internal/reporting"
	"lethe_console/internal/security"
	"lethe_console/internal/status"
)

// Backend API, которое нужно App; *api.Client его реализует
type Backend interface {
	poller.Source
	Profile(ctx context.Context) (*api.Profile, error)
	StartWipe(ctx context.Context, req api.WipeRequest) (*api.StartResponse, error)
	StartEncryption(ctx context.Context, req api.EncryptRequest) (*api.StartResponse, error)
}

// App объект, привязываемый к desktop оболочке и loopback API
type App struct {
	ctx       context.Context
	logger    *logging.EnterpriseLogger
	config    *config.Config
	backend   Backend
	poller    *poller.Poller
	tracker   *reporting.Tracker
	version   string
	startedAt time.Time

	// mu защищает config, ctx и startedAt: Reload приходит из горутины fsnotify.
	// Reload заменяет config целиком, опубликованная копия не меняется.
	mu       sync.RWMutex
	reloadMu sync.Mutex

	profileMu sync.Mutex
	profile   *api.Profile
}

// New создаёт App; observers получают события опроса вместе с трекером отчётов
func New(cfg *config.Config, logger *logging.EnterpriseLogger, backend Backend, version string, observers ...poller.Observer) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}

	iv, err := cfg.PollIntervals()
	if err != nil {
		return nil, err
	}

	tracker := reporting.NewTracker()
	all := append([]poller.Observer{tracker}, observers...)

	return &App{
		ctx:       context.Background(),
		logger:    logger,
		config:    cfg,
		backend:   backend,
		poller:    poller.New(backend, poller.IntervalsFromConfig(iv), cfg.Display.CoerceWipeCount, logger, all...),
		tracker:   tracker,
		version:   version,
		startedAt: time.Now(),
	}, nil
}

// Startup вызывается оболочкой при запуске
func (a *App) Startup(ctx context.Context) {
	if err := a.Start(ctx); err != nil {
		a.logger.Log("ERROR", "Не удалось запустить опрос", "error", err)
	}
}

// Start запускает опрос backend
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	a.ctx = ctx
	a.startedAt = time.Now()
	backend := a.config.Backend.BaseURL
	a.mu.Unlock()

	a.logger.Log("INFO", "Консоль LETHE запущена", "backend", backend, "version", a.version)
	return a.poller.Start(ctx)
}

// state текущая конфигурация и контекст
func (a *App) state() (*config.Config, context.Context) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.config, a.ctx
}

// Shutdown останавливает опрос и сохраняет отчёт сеанса
func (a *App) Shutdown(ctx context.Context) error {
	var result error

	if a.poller.Running() {
		result = multierr.Append(result, a.poller.Stop())
	}

	now := time.Now()
	a.tracker.Close(now)
	if ops := a.tracker.Operations(); len(ops) > 0 {
		if _, err := a.saveReport(ops, now); err != nil {
			result = multierr.Append(result, err)
		}
	}

	if result != nil {
		a.logger.Log("ERROR", "Ошибки при завершении", "error", result)
	} else {
		a.logger.Log("INFO", "Консоль LETHE остановлена")
	}
	return result
}

// Config текущая конфигурация
func (a *App) Config() *config.Config {
	cfg, _ := a.state()
	return cfg
}

// Poller опрос backend
func (a *App) Poller() *poller.Poller {
	return a.poller
}

// Reload применяет новые интервалы опроса из конфигурации
func (a *App) Reload(cfg *config.Config) error {
	iv, err := cfg.PollIntervals()
	if err != nil {
		return err
	}

	a.reloadMu.Lock()
	defer a.reloadMu.Unlock()

	a.mu.Lock()
	next := *a.config
	next.Polling = cfg.Polling
	next.Security = cfg.Security
	next.Security.ExcludedDevices = append([]string(nil), cfg.Security.ExcludedDevices...)
	a.config = &next
	ctx := a.ctx
	a.mu.Unlock()

	a.logger.Log("INFO", "Конфигурация перезагружена")

	if !a.poller.Running() {
		return nil
	}
	return a.poller.Restart(ctx, poller.IntervalsFromConfig(iv))
}

// ActiveWipe представление и карточка активной операции
type ActiveWipe struct {
	View status.View           `json:"view"`
	Card format.ActiveWipeCard `json:"card"`
}

// GetActiveWipe текущая операция
func (a *App) GetActiveWipe() ActiveWipe {
	v := a.poller.View()
	return ActiveWipe{View: v, Card: format.ActiveWipe(v)}
}

// Stats числа и карточки статистики
type Stats struct {
	Summary status.StatsSummary `json:"summary"`
	Cards   []format.StatCard   `json:"cards"`
}

// GetStats карточки статистики
func (a *App) GetStats() Stats {
	s := a.poller.Stats()
	return Stats{Summary: s, Cards: format.StatCards(s)}
}

// DriveRow строка таблицы дисков для отображения
type DriveRow struct {
	drives.Record
	Capacity  string `json:"capacity"`
	Used      string `json:"used"`
	Protected bool   `json:"protected"`
	// Stale последний опрос /getdisks не удался, строка из прошлой таблицы
	Stale bool `json:"stale,omitempty"`
}

// GetDrives таблица дисков с фильтром
func (a *App) GetDrives(filter drives.Filter) ([]DriveRow, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	cfg := a.Config()
	stale := a.poller.DrivesStale()
	records := drives.Apply(a.poller.Drives(), filter)
	rows := make([]DriveRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, DriveRow{
			Record:    r,
			Capacity:  format.Bytes(r.CapacityBytes),
			Used:      format.Percent(int(r.UsedPercent + 0.5)),
			Protected: security.Protected(cfg, r),
			Stale:     stale,
		})
	}
	return rows, nil
}

// GetLogs последние строки журнала; level "" или "all" без фильтра
func (a *App) GetLogs(level string) []logs.Entry {
	return logs.FilterByLevel(a.poller.Logs(), level)
}

// GetLogsSummary сводка журнала; false, если /logsfull ещё не ответил
func (a *App) GetLogsSummary() (logs.Summary, bool) {
	r, ok := a.poller.LogsReport()
	if !ok {
		return logs.Summary{}, false
	}
	return logs.Summarize(r), true
}

// GetDeviceInfo сведения об устройстве; успешный ответ кешируется
func (a *App) GetDeviceInfo() (*api.Profile, error) {
	a.profileMu.Lock()
	defer a.profileMu.Unlock()

	if a.profile != nil {
		p := *a.profile
		return &p, nil
	}

	_, ctx := a.state()
	p, err := a.backend.Profile(ctx)
	if err != nil {
		a.logger.Log("WARN", "Не удалось получить профиль устройства", "reason", api.Reason(err), "error", err)
		return nil, fmt.Errorf("failed to fetch device profile: %w", err)
	}
	a.profile = p

	out := *p
	return &out, nil
}

// GetReports сохранённые отчёты, новые первыми
func (a *App) GetReports() ([]reporting.ReportFile, error) {
	return reporting.ListReports(a.Config().Reporting.LocalPath)
}

// ExportReport сохраняет отчёт по операциям, замеченным с момента запуска
func (a *App) ExportReport() (string, error) {
	path, err := a.saveReport(a.tracker.Operations(), time.Now())
	if err != nil {
		return "", err
	}
	if path == "" {
		return "", fmt.Errorf("reporting is disabled")
	}
	return path, nil
}

func (a *App) saveReport(ops []reporting.Operation, now time.Time) (string, error) {
	a.mu.RLock()
	cfg, startedAt := a.config, a.startedAt
	a.mu.RUnlock()

	report, err := reporting.GenerateReport(ops, cfg, a.version, startedAt, now)
	if err != nil {
		return "", err
	}
	path, err := reporting.SaveReport(report, cfg)
	if err != nil {
		return "", err
	}
	if path != "" {
		a.logger.Log("INFO", "Отчёт сохранён", "path", path, "operations", len(ops))
	}
	return path, nil
}

// StartResult результат start команды
type StartResult struct {
	Operation string             `json:"operation"`
	Drive     string             `json:"drive"`
	Response  *api.StartResponse `json:"response,omitempty"`
}

// StartOperation проверяет конфигурацию и отправляет start команду:
// при включённом шифровании /encrypt/start, иначе /wipe/start
func (a *App) StartOperation(wc WipeConfig) (*StartResult, error) {
	wc = wc.Normalize()
	if err := wc.Validate(); err != nil {
		return nil, err
	}

	cfg, ctx := a.state()
	rec, err := security.CheckDevice(cfg, wc.DriveID, a.poller.Drive)
	if err != nil {
		a.logger.Log("WARN", "Start команда отклонена", "drive", wc.DriveID, "error", err)
		return nil, err
	}
	// backend ожидает имя устройства в своём написании
	wc.DriveID = rec.Device

	result := &StartResult{Drive: wc.DriveID}
	if wc.EncryptionEnabled {
		result.Operation = reporting.KindEncryption
		result.Response, err = a.backend.StartEncryption(ctx, wc.EncryptRequest())
	} else {
		result.Operation = "wipe"
		result.Response, err = a.backend.StartWipe(ctx, wc.WipeRequest())
	}
	if err != nil {
		a.logger.Log("ERROR", "Start команда не выполнена", "operation", result.Operation, "drive", wc.DriveID, "reason", api.Reason(err), "error", err)
		return nil, fmt.Errorf("failed to start %s on %s: %w", result.Operation, wc.DriveID, err)
	}

	a.logger.Log("INFO", "Операция запущена", "operation", result.Operation, "drive", wc.DriveID,
		"wipe_mode", wc.WipeMode, "ciphers", wc.EncryptionAlgorithms)
	return result, nil
}

// IsRejected сообщает, что start команда отклонена до обращения к backend
func IsRejected(err error) bool {
	return errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, security.ErrExcluded) ||
		errors.Is(err, security.ErrSystemDisk) ||
		errors.Is(err, security.ErrBusy) ||
		errors.Is(err, security.ErrUnknownDrive)
}
