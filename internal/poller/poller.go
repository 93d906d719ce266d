package poller

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"lethe_console/internal/api"
	"lethe_console/internal/config"
	"lethe_console/internal/drives"
	"lethe_console/internal/logging"
	"lethe_console/internal/logs"
	"lethe_console/internal/status"
)

// Имена опрашиваемых источников (для логов и метрик)
const (
	EndpointDashboard  = "dashboard"
	EndpointEncryption = "encryption"
	EndpointDoD        = "dod"
	EndpointDisks      = "disks"
	EndpointLogs       = "logs"
)

// Source backend, который опрашивает Poller; *api.Client его реализует
type Source interface {
	Dashboard(ctx context.Context) (*status.DashboardSnapshot, error)
	EncryptionStatus(ctx context.Context) (*status.EncryptionStatus, error)
	WipeStatus(ctx context.Context) (*status.DoDWipeStatus, error)
	Disks(ctx context.Context) ([]status.Disk, error)
	Logs(ctx context.Context) (*status.LogsReport, error)
}

// Observer получает события опроса
type Observer interface {
	PollFailed(endpoint string, err error)
	ViewChanged(view status.View)
	StatsChanged(stats status.StatsSummary)
}

// Intervals периоды таймеров
type Intervals struct {
	Dashboard  time.Duration
	Encryption time.Duration
	DoD        time.Duration
	Elapsed    time.Duration
	Disks      time.Duration
	Logs       time.Duration
}

// DefaultIntervals 2s / 1s / 2s / 1s / 5s / 5s
func DefaultIntervals() Intervals {
	return Intervals{
		Dashboard:  2 * time.Second,
		Encryption: time.Second,
		DoD:        2 * time.Second,
		Elapsed:    time.Second,
		Disks:      5 * time.Second,
		Logs:       5 * time.Second,
	}
}

// IntervalsFromConfig переносит интервалы из конфигурации
func IntervalsFromConfig(c config.Intervals) Intervals {
	return Intervals{
		Dashboard:  c.Dashboard,
		Encryption: c.Encryption,
		DoD:        c.DoD,
		Elapsed:    c.Elapsed,
		Disks:      c.Disks,
		Logs:       c.Logs,
	}
}

// Poller владеет таймерами опроса и согласованным представлением
type Poller struct {
	src       Source
	logger    *logging.EnterpriseLogger
	observers []Observer
	coerce    bool
	now       func() time.Time

	// состояние опроса
	mu            sync.RWMutex
	intervals     Intervals
	gen           uint64
	inputs        status.Inputs
	haveDashboard bool
	wipeActive    bool
	lastDashboard *status.DashboardSnapshot
	reconciler    *status.Reconciler
	view          status.View
	stats         status.StatsSummary
	logsReport    *status.LogsReport
	logEntries    []logs.Entry
	failures      map[string]int
	table         *drives.Table
	disksStale    bool

	// жизненный цикл
	runningMutex sync.Mutex
	isRunning    bool
	cancel       context.CancelFunc
	wg           sync.WaitGroup

	notifyMu sync.Mutex
}

// New создаёт Poller; coerceWipeCount включает обход wipe_in_progress = 0
func New(src Source, iv Intervals, coerceWipeCount bool, logger *logging.EnterpriseLogger, observers ...Observer) *Poller {
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	r := status.NewReconciler(coerceWipeCount)
	return &Poller{
		src:        src,
		logger:     logger,
		observers:  observers,
		coerce:     coerceWipeCount,
		now:        time.Now,
		intervals:  iv,
		reconciler: r,
		view:       r.Last(),
		stats:      status.Stats(nil, nil, coerceWipeCount),
		failures:   make(map[string]int),
		table:      drives.NewTable(),
	}
}

// Start запускает таймеры; каждый источник опрашивается своей горутиной
func (p *Poller) Start(ctx context.Context) error {
	p.runningMutex.Lock()
	defer p.runningMutex.Unlock()

	if p.isRunning {
		return fmt.Errorf("poller is already running")
	}

	p.mu.Lock()
	p.gen++
	gen := p.gen
	iv := p.intervals
	p.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.isRunning = true

	p.logger.Log("INFO", "Запуск опроса backend",
		"dashboard", iv.Dashboard.String(), "encryption", iv.Encryption.String(),
		"dod", iv.DoD.String(), "disks", iv.Disks.String(), "logs", iv.Logs.String())

	p.spawn(ctx, EndpointDashboard, iv.Dashboard, gen, p.pollDashboard)
	p.spawn(ctx, EndpointEncryption, iv.Encryption, gen, p.pollEncryptionStatus)
	p.spawn(ctx, EndpointDoD, iv.DoD, gen, p.pollDoDStatus)
	p.spawn(ctx, "elapsed", iv.Elapsed, gen, p.tickElapsed)
	p.spawn(ctx, EndpointDisks, iv.Disks, gen, p.pollDisks)
	p.spawn(ctx, EndpointLogs, iv.Logs, gen, p.pollLogs)

	return nil
}

// Stop отменяет запросы в полёте, останавливает таймеры и ждёт горутины.
// Ответы, пришедшие после Stop, отбрасываются.
func (p *Poller) Stop() error {
	p.runningMutex.Lock()
	defer p.runningMutex.Unlock()

	if !p.isRunning {
		return fmt.Errorf("poller is not running")
	}

	p.mu.Lock()
	p.gen++
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()

	p.cancel = nil
	p.isRunning = false
	p.logger.Log("INFO", "Опрос backend остановлен")
	return nil
}

// Restart перезапускает опрос с новыми интервалами
func (p *Poller) Restart(ctx context.Context, iv Intervals) error {
	if p.Running() {
		if err := p.Stop(); err != nil {
			return err
		}
	}
	p.mu.Lock()
	p.intervals = iv
	p.mu.Unlock()
	return p.Start(ctx)
}

// Running сообщает, запущены ли таймеры
func (p *Poller) Running() bool {
	p.runningMutex.Lock()
	defer p.runningMutex.Unlock()
	return p.isRunning
}

// PollOnce выполняет один цикл всех опросов синхронно (для одноразовых команд)
func (p *Poller) PollOnce(ctx context.Context) {
	p.mu.RLock()
	gen := p.gen
	p.mu.RUnlock()

	p.guard(EndpointDashboard, func() { p.pollDashboard(ctx, gen) })
	p.guard(EndpointEncryption, func() { p.pollEncryptionStatus(ctx, gen) })
	p.guard(EndpointDoD, func() { p.pollDoDStatus(ctx, gen) })
	p.guard(EndpointDisks, func() { p.pollDisks(ctx, gen) })
	p.guard(EndpointLogs, func() { p.pollLogs(ctx, gen) })
}

func (p *Poller) spawn(ctx context.Context, name string, interval time.Duration, gen uint64, fn func(context.Context, uint64)) {
	p.wg.Add(1)
	go p.loop(ctx, name, interval, gen, fn)
}

func (p *Poller) loop(ctx context.Context, name string, interval time.Duration, gen uint64, fn func(context.Context, uint64)) {
	defer p.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// первый опрос сразу, не дожидаясь таймера
	p.guard(name, func() { fn(ctx, gen) })

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.guard(name, func() { fn(ctx, gen) })
		}
	}
}

// guard не даёт панике в опросе убить таймер
func (p *Poller) guard(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Log("ERROR", "Паника в опросе", "endpoint", name, "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
		}
	}()
	fn()
}

func (p *Poller) pollDashboard(ctx context.Context, gen uint64) {
	d, err := p.src.Dashboard(ctx)

	p.mu.Lock()
	if gen != p.gen || ctx.Err() != nil {
		p.mu.Unlock()
		return
	}

	if err != nil {
		// dashboard неизвестен; последний wipe_active продолжает управлять опросами
		p.inputs.Dashboard = nil
		p.inputs.DashboardState = status.Failed
		p.reconcileLocked()
		p.mu.Unlock()
		p.failed(EndpointDashboard, err)
		p.publish()
		return
	}

	snap := *d
	p.inputs.Dashboard = &snap
	p.inputs.DashboardState = status.Fresh
	p.lastDashboard = &snap

	if !p.haveDashboard || p.wipeActive != snap.WipeActive {
		// приостановленный опрос сбрасывает свой срез
		if snap.WipeActive {
			p.inputs.DoD, p.inputs.DoDState = nil, status.Absent
		} else {
			p.inputs.Encryption, p.inputs.EncryptionState = nil, status.Absent
		}
		if p.haveDashboard {
			p.logger.Log("INFO", "Сменился тип активной операции", "wipe_active", snap.WipeActive)
		}
	}
	p.haveDashboard = true
	p.wipeActive = snap.WipeActive

	p.reconcileLocked()
	p.mu.Unlock()
	p.recovered(EndpointDashboard)
	p.publish()
}

func (p *Poller) pollEncryptionStatus(ctx context.Context, gen uint64) {
	p.mu.Lock()
	if gen != p.gen {
		p.mu.Unlock()
		return
	}
	if !p.haveDashboard || !p.wipeActive {
		p.inputs.Encryption, p.inputs.EncryptionState = nil, status.Absent
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	enc, err := p.src.EncryptionStatus(ctx)

	p.mu.Lock()
	// за время запроса флаг мог смениться
	if gen != p.gen || ctx.Err() != nil || !p.wipeActive {
		p.mu.Unlock()
		return
	}
	if err != nil {
		p.inputs.Encryption, p.inputs.EncryptionState = nil, status.Failed
	} else {
		p.inputs.Encryption, p.inputs.EncryptionState = enc, status.Fresh
	}
	p.reconcileLocked()
	p.mu.Unlock()

	if err != nil {
		p.failed(EndpointEncryption, err)
	} else {
		p.recovered(EndpointEncryption)
	}
	p.publish()
}

func (p *Poller) pollDoDStatus(ctx context.Context, gen uint64) {
	p.mu.Lock()
	if gen != p.gen {
		p.mu.Unlock()
		return
	}
	if p.wipeActive {
		p.inputs.DoD, p.inputs.DoDState = nil, status.Absent
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	dod, err := p.src.WipeStatus(ctx)

	p.mu.Lock()
	if gen != p.gen || ctx.Err() != nil || p.wipeActive {
		p.mu.Unlock()
		return
	}
	if err != nil {
		p.inputs.DoD, p.inputs.DoDState = nil, status.Failed
	} else {
		p.inputs.DoD, p.inputs.DoDState = dod, status.Fresh
	}
	p.reconcileLocked()
	p.mu.Unlock()

	if err != nil {
		p.failed(EndpointDoD, err)
	} else {
		p.recovered(EndpointDoD)
	}
	p.publish()
}

// tickElapsed пересчитывает представление, чтобы elapsed был актуален
func (p *Poller) tickElapsed(ctx context.Context, gen uint64) {
	p.mu.Lock()
	if gen != p.gen || ctx.Err() != nil || p.view.Kind != status.KindDoDWipeRunning {
		p.mu.Unlock()
		return
	}
	p.reconcileLocked()
	p.mu.Unlock()
	p.publish()
}

func (p *Poller) pollDisks(ctx context.Context, gen uint64) {
	disks, err := p.src.Disks(ctx)

	p.mu.Lock()
	if gen != p.gen || ctx.Err() != nil {
		p.mu.Unlock()
		return
	}
	if err != nil {
		// таблица остаётся прежней, но помечается устаревшей
		p.disksStale = true
		p.mu.Unlock()
		p.failed(EndpointDisks, err)
		return
	}
	p.disksStale = false
	p.table.Rebuild(disks)
	p.patchDrivesLocked()
	p.mu.Unlock()
	p.recovered(EndpointDisks)
}

func (p *Poller) pollLogs(ctx context.Context, gen uint64) {
	report, err := p.src.Logs(ctx)

	p.mu.Lock()
	if gen != p.gen || ctx.Err() != nil {
		p.mu.Unlock()
		return
	}
	if err != nil {
		p.mu.Unlock()
		p.failed(EndpointLogs, err)
		return
	}
	r := *report
	p.logsReport = &r
	p.logEntries = logs.ParseAll(r.LastN)
	p.mu.Unlock()
	p.recovered(EndpointLogs)
}

// reconcileLocked вызывается под p.mu
func (p *Poller) reconcileLocked() {
	if status.Conflict(p.inputs) && p.inputs.Dashboard != nil {
		p.logger.Log("WARN", "Оба статуса сообщают running, учитывается флаг dashboard",
			"wipe_active", p.inputs.Dashboard.WipeActive,
			"encryption_drive", p.inputs.Encryption.Drive,
			"dod_disk", p.inputs.DoD.CurrentDisk)
	}

	prev := p.view.Kind
	p.view = p.reconciler.Reconcile(p.inputs, p.now())
	if prev != p.view.Kind {
		p.logger.Log("INFO", "Состояние операции изменилось", "from", prev.String(), "to", p.view.Kind.String(), "device", p.view.Device())
	}

	var dod *status.DoDWipeStatus
	if p.inputs.DoDState == status.Fresh {
		dod = p.inputs.DoD
	}
	p.stats = status.Stats(p.lastDashboard, dod, p.coerce)
	p.stats.Stale = p.lastDashboard != nil && p.inputs.DashboardState != status.Fresh

	p.patchDrivesLocked()
}

// patchDrivesLocked накладывает текущую операцию на таблицу дисков
func (p *Poller) patchDrivesLocked() {
	device, known := status.RunningDevice(p.inputs)
	if !known {
		if !p.view.Running() {
			return
		}
		device = p.view.Device()
	}
	if changed := p.table.PatchRunning(device); len(changed) > 0 {
		p.logger.Log("DEBUG", "Статусы дисков обновлены", "devices", changed, "running", device)
	}
}

func (p *Poller) failed(endpoint string, err error) {
	p.mu.Lock()
	p.failures[endpoint]++
	n := p.failures[endpoint]
	p.mu.Unlock()

	level := "DEBUG"
	if n == 1 {
		level = "WARN"
	}
	p.logger.Log(level, "Опрос backend не удался", "endpoint", endpoint, "reason", api.Reason(err), "attempt", n, "error", err)

	for _, o := range p.observers {
		o.PollFailed(endpoint, err)
	}
}

func (p *Poller) recovered(endpoint string) {
	p.mu.Lock()
	n := p.failures[endpoint]
	p.failures[endpoint] = 0
	p.mu.Unlock()

	if n > 0 {
		p.logger.Log("INFO", "Опрос backend восстановлен", "endpoint", endpoint, "failed_attempts", n)
	}
}

// publish отдаёт наблюдателям самое свежее представление
func (p *Poller) publish() {
	if len(p.observers) == 0 {
		return
	}

	p.notifyMu.Lock()
	defer p.notifyMu.Unlock()

	p.mu.RLock()
	v, s := p.view, p.stats
	p.mu.RUnlock()

	for _, o := range p.observers {
		o.ViewChanged(v)
		o.StatsChanged(s)
	}
}

// View текущее согласованное представление
func (p *Poller) View() status.View {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.view
}

// Stats карточки статистики по последнему известному dashboard
func (p *Poller) Stats() status.StatsSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stats
}

// Inputs копия последних срезов
func (p *Poller) Inputs() status.Inputs {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.inputs
}

// Drives записи таблицы дисков
func (p *Poller) Drives() []drives.Record {
	return p.table.Records()
}

// DrivesStale сообщает, что последний опрос /getdisks не удался и таблица устарела
func (p *Poller) DrivesStale() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.disksStale
}

// Drive запись по устройству
func (p *Poller) Drive(device string) (drives.Record, bool) {
	return p.table.Get(device)
}

// Logs разобранные последние строки журнала
func (p *Poller) Logs() []logs.Entry {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]logs.Entry, len(p.logEntries))
	copy(out, p.logEntries)
	return out
}

// LogsReport последний отчёт /logsfull
func (p *Poller) LogsReport() (status.LogsReport, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.logsReport == nil {
		return status.LogsReport{}, false
	}
	return *p.logsReport, true
}
