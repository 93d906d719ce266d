package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lethe_console/internal/api"
	"lethe_console/internal/config"
	"lethe_console/internal/drives"
	"lethe_console/internal/security"
	"lethe_console/internal/status"
)

type fakeBackend struct {
	mu           sync.Mutex
	profileCalls int
	encryptReqs  []api.EncryptRequest
	wipeReqs     []api.WipeRequest
	wipeActive   bool
	failDisks    bool
}

func (b *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(api.PathDashboard, func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		active := b.wipeActive
		b.mu.Unlock()
		_ = json.NewEncoder(w).Encode(status.DashboardResponse{PhysicalDisks: &status.DashboardSnapshot{
			TotalDrives: 3, EncryptedDrives: 1, WipeActive: active,
		}})
	})
	mux.HandleFunc(api.PathWipeStatus, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"running":true,"currentDisk":"/dev/sdb","startedAt":"2024-01-01T00:00:00Z"}`))
	})
	mux.HandleFunc(api.PathEncryptStatus, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"running":true,"total_files":10,"success":5,"ciphers":["AES"],"drive":"/dev/sdc"}`))
	})
	mux.HandleFunc(api.PathDisks, func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		fail := b.failDisks
		b.mu.Unlock()
		if fail {
			http.Error(w, "disk scan failed", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"physical_disks":[
			{"device":"/dev/sda","name":"System SSD","type":"ssd","size":500107862016,"used_percent":61.2,"is_system":true},
			{"device":"/dev/sdb","name":"Archive HDD","type":"hdd","size":2000398934016,"used_percent":10},
			{"device":"/dev/sdc","name":"USB stick","type":"usb","size":32017047552}
		]}`))
	})
	mux.HandleFunc(api.PathLogs, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"total_logs":4,"warnings":1,"errors":1,"success":2,"last_n":["t1 INFO: started","t2 ERROR: failed","t3 WARNING: slow"]}`))
	})
	mux.HandleFunc(api.PathProfile, func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.profileCalls++
		b.mu.Unlock()
		_, _ = w.Write([]byte(`{"device_id":"dev-7","hostname":"ws-7"}`))
	})
	mux.HandleFunc(api.PathEncryptStart, func(w http.ResponseWriter, r *http.Request) {
		var req api.EncryptRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		b.mu.Lock()
		b.encryptReqs = append(b.encryptReqs, req)
		b.mu.Unlock()
		_, _ = w.Write([]byte(`{"status":"started"}`))
	})
	mux.HandleFunc(api.PathWipeStart, func(w http.ResponseWriter, r *http.Request) {
		var req api.WipeRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		b.mu.Lock()
		b.wipeReqs = append(b.wipeReqs, req)
		b.mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	})
	return mux
}

func newTestApp(t *testing.T) (*App, *fakeBackend) {
	t.Helper()
	fb := &fakeBackend{}
	srv := httptest.NewServer(fb.handler())
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.Backend.BaseURL = srv.URL
	cfg.Reporting.LocalPath = filepath.Join(t.TempDir(), "reports")

	a, err := New(cfg, nil, api.NewClient(srv.URL, 2*time.Second, nil), "test")
	require.NoError(t, err)
	a.Poller().PollOnce(context.Background())
	return a, fb
}

func TestGettersAfterPoll(t *testing.T) {
	a, _ := newTestApp(t)

	aw := a.GetActiveWipe()
	assert.Equal(t, status.KindDoDWipeRunning, aw.View.Kind)
	assert.Equal(t, "/dev/sdb", aw.Card.Device)

	stats := a.GetStats()
	assert.Equal(t, 3, stats.Summary.DrivesDetected)
	assert.Equal(t, 1, stats.Summary.WipesInProgress)
	require.Len(t, stats.Cards, 4)

	rows, err := a.GetDrives(drives.Filter{})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.True(t, rows[0].Protected)
	assert.Equal(t, "500.1GB", rows[0].Capacity)
	assert.Equal(t, "61%", rows[0].Used)
	assert.Equal(t, drives.StatusWiping, rows[1].Status)

	rows, err = a.GetDrives(drives.Filter{Type: "usb"})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	_, err = a.GetDrives(drives.Filter{Type: "tape"})
	assert.Error(t, err)

	assert.Len(t, a.GetLogs(""), 3)
	assert.Len(t, a.GetLogs("error"), 1)

	summary, ok := a.GetLogsSummary()
	require.True(t, ok)
	assert.Equal(t, 50.0, summary.SuccessRate)
}

func TestGetDeviceInfoIsCached(t *testing.T) {
	a, fb := newTestApp(t)

	p, err := a.GetDeviceInfo()
	require.NoError(t, err)
	assert.Equal(t, "dev-7", p.DeviceID)

	p.DeviceID = "mutated"
	p, err = a.GetDeviceInfo()
	require.NoError(t, err)
	assert.Equal(t, "dev-7", p.DeviceID)
	assert.Equal(t, 1, fb.profileCalls)
}

func TestStartOperationDispatch(t *testing.T) {
	a, fb := newTestApp(t)

	res, err := a.StartOperation(WipeConfig{
		DriveID: "sdc", WipeEnabled: true, WipeMode: "7pass",
		EncryptionEnabled: true, EncryptionAlgorithms: []string{"aes", "Twofish", "AES"},
	})
	require.NoError(t, err)
	assert.Equal(t, "encryption", res.Operation)
	require.Len(t, fb.encryptReqs, 1)
	assert.Equal(t, api.EncryptRequest{
		Drive: "/dev/sdc", Encrypt: true, Ciphers: []string{"AES", "Twofish"},
		Wipe: true, WipeMode: "7pass", Disk: "/dev/sdc",
	}, fb.encryptReqs[0])

	res, err = a.StartOperation(WipeConfig{DriveID: "/dev/sdc", WipeEnabled: true, WipeMode: "single"})
	require.NoError(t, err)
	assert.Equal(t, "wipe", res.Operation)
	require.Len(t, fb.wipeReqs, 1)
	assert.Equal(t, api.WipeRequest{Disk: "/dev/sdc", WipeMode: "single"}, fb.wipeReqs[0])
}

func TestStartOperationRejected(t *testing.T) {
	a, fb := newTestApp(t)

	cases := []struct {
		name string
		wc   WipeConfig
		want error
	}{
		{"no drive", WipeConfig{WipeEnabled: true, WipeMode: "3pass"}, ErrInvalidConfig},
		{"nothing enabled", WipeConfig{DriveID: "/dev/sdc"}, ErrInvalidConfig},
		{"no cipher", WipeConfig{DriveID: "/dev/sdc", EncryptionEnabled: true}, ErrInvalidConfig},
		{"unknown cipher", WipeConfig{DriveID: "/dev/sdc", EncryptionEnabled: true, EncryptionAlgorithms: []string{"ROT13"}}, ErrInvalidConfig},
		{"unknown mode", WipeConfig{DriveID: "/dev/sdc", WipeEnabled: true, WipeMode: "35pass"}, ErrInvalidConfig},
		{"system disk", DefaultWipeConfig("/dev/sda"), security.ErrSystemDisk},
		{"busy", DefaultWipeConfig("/dev/sdb"), security.ErrBusy},
		{"unknown drive", DefaultWipeConfig("/dev/sdx"), security.ErrUnknownDrive},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := a.StartOperation(c.wc)
			require.Error(t, err)
			assert.True(t, errors.Is(err, c.want), err.Error())
			assert.True(t, IsRejected(err))
		})
	}

	assert.Empty(t, fb.encryptReqs)
	assert.Empty(t, fb.wipeReqs)
}

func TestExportReportAndList(t *testing.T) {
	a, _ := newTestApp(t)

	path, err := a.ExportReport()
	require.NoError(t, err)
	assert.FileExists(t, path)

	files, err := a.GetReports()
	require.NoError(t, err)
	require.Len(t, files, 1)
	// DoD затирание наблюдалось во время PollOnce
	assert.Equal(t, 1, files[0].Operations)
}

func TestStartAndShutdown(t *testing.T) {
	a, _ := newTestApp(t)

	require.NoError(t, a.Start(context.Background()))
	assert.True(t, a.Poller().Running())

	require.NoError(t, a.Shutdown(context.Background()))
	assert.False(t, a.Poller().Running())

	// отчёт сеанса сохранён при завершении
	files, err := a.GetReports()
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestReloadValidatesIntervals(t *testing.T) {
	a, _ := newTestApp(t)

	bad := config.Default()
	bad.Polling.DashboardInterval = "1ms"
	assert.Error(t, a.Reload(bad))

	good := config.Default()
	good.Polling.DashboardInterval = "3s"
	require.NoError(t, a.Reload(good))
	assert.Equal(t, "3s", a.Config().Polling.DashboardInterval)
}

func TestGetDrivesMarksRowsStaleAfterFailedScan(t *testing.T) {
	a, fb := newTestApp(t)

	rows, err := a.GetDrives(drives.Filter{})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.False(t, rows[0].Stale)

	fb.mu.Lock()
	fb.failDisks = true
	fb.mu.Unlock()
	a.Poller().PollOnce(context.Background())

	rows, err = a.GetDrives(drives.Filter{})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for _, r := range rows {
		assert.True(t, r.Stale, r.Device)
	}

	fb.mu.Lock()
	fb.failDisks = false
	fb.mu.Unlock()
	a.Poller().PollOnce(context.Background())

	rows, err = a.GetDrives(drives.Filter{})
	require.NoError(t, err)
	assert.False(t, rows[0].Stale)
}

func TestReloadConcurrentWithReaders(t *testing.T) {
	a, _ := newTestApp(t)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			next := config.Default()
			next.Security.ExcludedDevices = []string{"/dev/sdc"}
			next.Security.AllowSystemDisk = i%2 == 0
			assert.NoError(t, a.Reload(next))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_, err := a.GetDrives(drives.Filter{})
			assert.NoError(t, err)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			// занятый диск отклоняется до обращения к backend
			_, err := a.StartOperation(DefaultWipeConfig("/dev/sdb"))
			assert.True(t, IsRejected(err))
			_ = a.Config().Security.ExcludedDevices
		}
	}()
	wg.Wait()

	assert.Equal(t, []string{"/dev/sdc"}, a.Config().Security.ExcludedDevices)
}

func TestWipeModesAndDefaults(t *testing.T) {
	m, ok := LookupWipeMode("3pass")
	require.True(t, ok)
	assert.Equal(t, 3, m.Passes)
	assert.Equal(t, "DoD 5220.22-M standard", m.Description)
	assert.Len(t, WipeModes(), 3)

	wc := DefaultWipeConfig("/dev/sdc")
	assert.NoError(t, wc.Validate())
	assert.Equal(t, []string{"AES"}, wc.EncryptionAlgorithms)

	// без затирания wipe_mode не отправляется
	req := WipeConfig{DriveID: "/dev/sdc", EncryptionEnabled: true, WipeMode: "3pass", EncryptionAlgorithms: []string{"Serpent"}}.EncryptRequest()
	assert.False(t, req.Wipe)
	assert.Empty(t, req.WipeMode)
}
