package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lethe_console/internal/drives"
	"lethe_console/internal/status"
)

type fakeSource struct {
	mu sync.Mutex

	dashboard    *status.DashboardSnapshot
	dashboardErr error
	encryption   *status.EncryptionStatus
	dod          *status.DoDWipeStatus
	disks        []status.Disk
	disksErr     error
	report       *status.LogsReport
	block        bool
	panicDisks   bool

	calls map[string]int
}

func newFakeSource() *fakeSource {
	return &fakeSource{calls: make(map[string]int)}
}

func (f *fakeSource) hit(ctx context.Context, name string) error {
	f.mu.Lock()
	f.calls[name]++
	block := f.block
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (f *fakeSource) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeSource) set(fn func(f *fakeSource)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeSource) Dashboard(ctx context.Context) (*status.DashboardSnapshot, error) {
	if err := f.hit(ctx, EndpointDashboard); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dashboardErr != nil {
		return nil, f.dashboardErr
	}
	if f.dashboard == nil {
		return nil, errors.New("no dashboard")
	}
	d := *f.dashboard
	return &d, nil
}

func (f *fakeSource) EncryptionStatus(ctx context.Context) (*status.EncryptionStatus, error) {
	if err := f.hit(ctx, EndpointEncryption); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.encryption == nil {
		return nil, errors.New("no encryption status")
	}
	e := *f.encryption
	return &e, nil
}

func (f *fakeSource) WipeStatus(ctx context.Context) (*status.DoDWipeStatus, error) {
	if err := f.hit(ctx, EndpointDoD); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dod == nil {
		return &status.DoDWipeStatus{}, nil
	}
	d := *f.dod
	return &d, nil
}

func (f *fakeSource) Disks(ctx context.Context) ([]status.Disk, error) {
	if err := f.hit(ctx, EndpointDisks); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicDisks {
		panic("disk listing exploded")
	}
	if f.disksErr != nil {
		return nil, f.disksErr
	}
	return append([]status.Disk(nil), f.disks...), nil
}

func (f *fakeSource) Logs(ctx context.Context) (*status.LogsReport, error) {
	if err := f.hit(ctx, EndpointLogs); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.report == nil {
		return &status.LogsReport{}, nil
	}
	r := *f.report
	return &r, nil
}

type recordingObserver struct {
	mu       sync.Mutex
	failures map[string]int
	views    []status.View
	stats    []status.StatsSummary
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{failures: make(map[string]int)}
}

func (o *recordingObserver) PollFailed(endpoint string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failures[endpoint]++
}

func (o *recordingObserver) ViewChanged(v status.View) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.views = append(o.views, v)
}

func (o *recordingObserver) StatsChanged(s status.StatsSummary) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stats = append(o.stats, s)
}

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestPoller(src Source, obs ...Observer) (*Poller, *time.Time) {
	p := New(src, DefaultIntervals(), true, nil, obs...)
	now := t0
	p.now = func() time.Time { return now }
	return p, &now
}

func TestEncryptionPollSuspendedBeforeFirstDashboard(t *testing.T) {
	src := newFakeSource()
	p, _ := newTestPoller(src)
	ctx := context.Background()

	p.pollEncryptionStatus(ctx, p.gen)
	assert.Equal(t, 0, src.count(EndpointEncryption))
	assert.Equal(t, status.Absent, p.Inputs().EncryptionState)

	p.pollDoDStatus(ctx, p.gen)
	assert.Equal(t, 1, src.count(EndpointDoD))
	assert.Equal(t, status.KindLoading, p.View().Kind)
}

func TestTransitionToActiveSwitchesPolls(t *testing.T) {
	src := newFakeSource()
	src.dashboard = &status.DashboardSnapshot{TotalDrives: 2}
	src.encryption = &status.EncryptionStatus{Running: true, Success: 40, TotalFiles: 200, Drive: "/dev/sdb"}
	p, _ := newTestPoller(src)
	ctx := context.Background()

	p.pollDashboard(ctx, p.gen)
	p.pollDoDStatus(ctx, p.gen)
	p.pollEncryptionStatus(ctx, p.gen)
	assert.Equal(t, 1, src.count(EndpointDoD))
	assert.Equal(t, 0, src.count(EndpointEncryption))
	assert.Equal(t, status.KindIdle, p.View().Kind)

	src.set(func(f *fakeSource) { f.dashboard = &status.DashboardSnapshot{TotalDrives: 2, WipeInProgress: 1, WipeActive: true} })
	p.pollDashboard(ctx, p.gen)

	// до ответа /encrypt/status это не Idle
	assert.Equal(t, status.KindResolving, p.View().Kind)
	assert.Equal(t, status.Absent, p.Inputs().DoDState)

	p.pollDoDStatus(ctx, p.gen)
	assert.Equal(t, 1, src.count(EndpointDoD), "DoD poll must be suspended while wipe_active")

	p.pollEncryptionStatus(ctx, p.gen)
	assert.Equal(t, 1, src.count(EndpointEncryption))

	v := p.View()
	require.Equal(t, status.KindEncryptionRunning, v.Kind)
	assert.Equal(t, 20, v.ProgressPercent)
}

func TestTransitionToInactiveClearsEncryption(t *testing.T) {
	src := newFakeSource()
	src.dashboard = &status.DashboardSnapshot{WipeActive: true, WipeInProgress: 1}
	src.encryption = &status.EncryptionStatus{Running: true, TotalFiles: 10, Success: 10}
	p, _ := newTestPoller(src)
	ctx := context.Background()

	p.pollDashboard(ctx, p.gen)
	p.pollEncryptionStatus(ctx, p.gen)
	require.Equal(t, status.KindEncryptionRunning, p.View().Kind)

	src.set(func(f *fakeSource) { f.dashboard = &status.DashboardSnapshot{} })
	p.pollDashboard(ctx, p.gen)
	assert.Equal(t, status.Absent, p.Inputs().EncryptionState)
	assert.Nil(t, p.Inputs().Encryption)

	p.pollEncryptionStatus(ctx, p.gen)
	assert.Equal(t, 1, src.count(EndpointEncryption))

	p.pollDoDStatus(ctx, p.gen)
	assert.Equal(t, status.KindIdle, p.View().Kind)
}

func TestDashboardFailureKeepsViewAndGating(t *testing.T) {
	src := newFakeSource()
	src.dashboard = &status.DashboardSnapshot{}
	src.dod = &status.DoDWipeStatus{Running: true, CurrentDisk: "/dev/sda", StartedAt: t0}
	obs := newRecordingObserver()
	p, now := newTestPoller(src, obs)
	ctx := context.Background()

	*now = t0.Add(time.Hour)
	p.pollDashboard(ctx, p.gen)
	p.pollDoDStatus(ctx, p.gen)
	require.Equal(t, status.KindDoDWipeRunning, p.View().Kind)
	assert.Equal(t, time.Hour, p.View().Elapsed)

	src.set(func(f *fakeSource) { f.dashboardErr = errors.New("connection refused") })
	p.pollDashboard(ctx, p.gen)

	assert.Equal(t, status.KindDoDWipeRunning, p.View().Kind)
	assert.Equal(t, status.Failed, p.Inputs().DashboardState)
	assert.Equal(t, 1, obs.failures[EndpointDashboard])

	// последний известный wipe_active = false, DoD продолжает опрашиваться
	p.pollDoDStatus(ctx, p.gen)
	assert.Equal(t, 2, src.count(EndpointDoD))

	// карточки статистики держат последний dashboard, но помечены устаревшими
	assert.True(t, p.Stats().Known)
	assert.True(t, p.Stats().Stale)
}

func TestStatsStaleUntilDashboardRecovers(t *testing.T) {
	src := newFakeSource()
	src.dashboard = &status.DashboardSnapshot{TotalDrives: 3, EncryptedDrives: 2}
	obs := newRecordingObserver()
	p, _ := newTestPoller(src, obs)
	ctx := context.Background()

	// до первого ответа данных нет, устаревать нечему
	assert.False(t, p.Stats().Stale)

	p.PollOnce(ctx)
	require.True(t, p.Stats().Known)
	assert.False(t, p.Stats().Stale)

	src.set(func(f *fakeSource) { f.dashboardErr = errors.New("connection refused") })
	p.PollOnce(ctx)
	s := p.Stats()
	assert.True(t, s.Known)
	assert.True(t, s.Stale)
	assert.Equal(t, 3, s.DrivesDetected)

	obs.mu.Lock()
	last := obs.stats[len(obs.stats)-1]
	obs.mu.Unlock()
	assert.True(t, last.Stale)

	src.set(func(f *fakeSource) { f.dashboardErr = nil })
	p.PollOnce(ctx)
	assert.False(t, p.Stats().Stale)
}

func TestDrivesStaleAfterFailedScan(t *testing.T) {
	src := newFakeSource()
	src.disks = []status.Disk{
		{Device: "/dev/sda", Name: "A", Status: "idle"},
		{Device: "/dev/sdb", Name: "B", Status: "idle"},
	}
	obs := newRecordingObserver()
	p, _ := newTestPoller(src, obs)
	ctx := context.Background()

	p.pollDisks(ctx, p.gen)
	require.Len(t, p.Drives(), 2)
	assert.False(t, p.DrivesStale())

	src.set(func(f *fakeSource) { f.disksErr = errors.New("disk scan failed") })
	p.pollDisks(ctx, p.gen)
	assert.Len(t, p.Drives(), 2)
	assert.True(t, p.DrivesStale())
	assert.Equal(t, 1, obs.failures[EndpointDisks])

	src.set(func(f *fakeSource) {
		f.disksErr = nil
		f.disks = f.disks[:1]
	})
	p.pollDisks(ctx, p.gen)
	assert.Len(t, p.Drives(), 1)
	assert.False(t, p.DrivesStale())
}

func TestElapsedTick(t *testing.T) {
	src := newFakeSource()
	src.dashboard = &status.DashboardSnapshot{}
	src.dod = &status.DoDWipeStatus{Running: true, CurrentDisk: "/dev/sda", StartedAt: t0}
	p, now := newTestPoller(src)
	ctx := context.Background()

	p.pollDashboard(ctx, p.gen)
	p.pollDoDStatus(ctx, p.gen)

	*now = t0.Add(90 * time.Second)
	p.tickElapsed(ctx, p.gen)
	assert.Equal(t, 90*time.Second, p.View().Elapsed)
}

func TestWipeCountCoercedInStats(t *testing.T) {
	src := newFakeSource()
	src.dashboard = &status.DashboardSnapshot{TotalDrives: 3, EncryptedDrives: 1}
	src.dod = &status.DoDWipeStatus{Running: true, CurrentDisk: "/dev/sda", StartedAt: t0}
	p, _ := newTestPoller(src)
	ctx := context.Background()

	p.pollDashboard(ctx, p.gen)
	p.pollDoDStatus(ctx, p.gen)

	s := p.Stats()
	assert.Equal(t, 1, s.WipesInProgress)
	assert.True(t, s.WipeCountCoerced)
	assert.Equal(t, "In Progress", s.LastWipe)
}

func TestDisksPatchedWithRunningDevice(t *testing.T) {
	src := newFakeSource()
	src.dashboard = &status.DashboardSnapshot{}
	src.dod = &status.DoDWipeStatus{Running: true, CurrentDisk: "sda", StartedAt: t0}
	src.disks = []status.Disk{
		{Device: "/dev/sda", Name: "A", Status: "idle"},
		{Device: "/dev/sdb", Name: "B", Status: "wiping"},
	}
	p, _ := newTestPoller(src)
	ctx := context.Background()

	p.pollDashboard(ctx, p.gen)
	p.pollDoDStatus(ctx, p.gen)
	p.pollDisks(ctx, p.gen)

	sda, ok := p.Drive("/dev/sda")
	require.True(t, ok)
	assert.Equal(t, drives.StatusWiping, sda.Status)

	sdb, _ := p.Drive("/dev/sdb")
	assert.Equal(t, drives.StatusIdle, sdb.Status)

	// затирание закончилось: следующий опрос статуса снимает wiping
	src.set(func(f *fakeSource) { f.dod = &status.DoDWipeStatus{} })
	p.pollDoDStatus(ctx, p.gen)
	sda, _ = p.Drive("/dev/sda")
	assert.Equal(t, drives.StatusIdle, sda.Status)
}

func TestLogsParsed(t *testing.T) {
	src := newFakeSource()
	src.report = &status.LogsReport{TotalLogs: 2, Success: 1, LastN: []string{"t1 INFO: ok", "broken", "t2 ERROR: bad"}}
	p, _ := newTestPoller(src)

	_, ok := p.LogsReport()
	assert.False(t, ok)

	p.pollLogs(context.Background(), p.gen)
	entries := p.Logs()
	require.Len(t, entries, 2)
	assert.Equal(t, "error", entries[1].Status)

	r, ok := p.LogsReport()
	require.True(t, ok)
	assert.Equal(t, 2, r.TotalLogs)
}

func TestStaleGenerationDiscarded(t *testing.T) {
	src := newFakeSource()
	src.dashboard = &status.DashboardSnapshot{WipeActive: true}
	p, _ := newTestPoller(src)

	p.gen = 3
	p.pollDashboard(context.Background(), 2)
	assert.Equal(t, 1, src.count(EndpointDashboard))
	assert.Equal(t, status.KindLoading, p.View().Kind)
	assert.Equal(t, status.Unknown, p.Inputs().DashboardState)
}

func TestPanicInFetchIsRecovered(t *testing.T) {
	src := newFakeSource()
	src.dashboard = &status.DashboardSnapshot{}
	src.panicDisks = true
	p, _ := newTestPoller(src)

	assert.NotPanics(t, func() { p.PollOnce(context.Background()) })
	assert.Equal(t, 1, src.count(EndpointLogs))
}

func TestStartStopLifecycle(t *testing.T) {
	src := newFakeSource()
	src.dashboard = &status.DashboardSnapshot{}
	p := New(src, Intervals{
		Dashboard: 10 * time.Millisecond, Encryption: 10 * time.Millisecond, DoD: 10 * time.Millisecond,
		Elapsed: 10 * time.Millisecond, Disks: 10 * time.Millisecond, Logs: 10 * time.Millisecond,
	}, false, nil)

	require.NoError(t, p.Start(context.Background()))
	assert.Error(t, p.Start(context.Background()))
	assert.True(t, p.Running())

	require.Eventually(t, func() bool { return src.count(EndpointDashboard) >= 2 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return p.View().Kind == status.KindIdle }, time.Second, 5*time.Millisecond)

	require.NoError(t, p.Stop())
	assert.Error(t, p.Stop())
	assert.False(t, p.Running())

	n := src.count(EndpointDashboard)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, n, src.count(EndpointDashboard), "no polls after Stop")
}

func TestStopCancelsInFlightRequests(t *testing.T) {
	src := newFakeSource()
	src.block = true
	p := New(src, DefaultIntervals(), false, nil)

	require.NoError(t, p.Start(context.Background()))
	require.Eventually(t, func() bool { return src.count(EndpointDashboard) == 1 }, time.Second, 5*time.Millisecond)

	done := make(chan struct{})
	go func() {
		_ = p.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not cancel blocked requests")
	}

	// отменённые запросы не превращаются в Failed
	assert.Equal(t, status.Unknown, p.Inputs().DashboardState)
	assert.Equal(t, status.KindLoading, p.View().Kind)
}

func TestRestartAppliesIntervals(t *testing.T) {
	src := newFakeSource()
	src.dashboard = &status.DashboardSnapshot{}
	p := New(src, DefaultIntervals(), false, nil)

	require.NoError(t, p.Start(context.Background()))
	iv := DefaultIntervals()
	iv.Dashboard = 10 * time.Millisecond
	require.NoError(t, p.Restart(context.Background(), iv))

	require.Eventually(t, func() bool { return src.count(EndpointDashboard) >= 4 }, time.Second, 5*time.Millisecond)
	require.NoError(t, p.Stop())
}
