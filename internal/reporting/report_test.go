package reporting

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lethe_console/internal/config"
	"lethe_console/internal/status"
)

var t0 = time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

func dodView(disk string, started time.Time) status.View {
	return status.View{
		Kind: status.KindDoDWipeRunning,
		DoD:  &status.DoDWipeStatus{Running: true, CurrentDisk: disk, StartedAt: started},
	}
}

func TestTrackerRecordsDoDWipe(t *testing.T) {
	tr := NewTracker()

	tr.Observe(status.View{Kind: status.KindLoading}, t0)
	assert.Empty(t, tr.Operations())

	tr.Observe(dodView("/dev/sda", t0.Add(-time.Minute)), t0)
	tr.Observe(dodView("/dev/sda", t0.Add(-time.Minute)), t0.Add(time.Minute))

	cur, ok := tr.Current()
	require.True(t, ok)
	assert.Equal(t, KindDoDWipe, cur.Kind)
	assert.Equal(t, t0.Add(-time.Minute), cur.StartTime)

	// Resolving не закрывает операцию
	tr.Observe(status.View{Kind: status.KindResolving}, t0.Add(90*time.Second))
	_, ok = tr.Current()
	assert.True(t, ok)

	tr.Observe(status.View{Kind: status.KindIdle}, t0.Add(2*time.Minute))
	ops := tr.Operations()
	require.Len(t, ops, 1)
	assert.Equal(t, StatusFinished, ops[0].Status)
	assert.Equal(t, "3m0s", ops[0].Duration)
	_, err := uuid.Parse(ops[0].ID)
	assert.NoError(t, err)
}

func TestTrackerEncryptionProgressAndDeviceSwitch(t *testing.T) {
	tr := NewTracker()
	enc := status.View{
		Kind:            status.KindEncryptionRunning,
		ProgressPercent: 50,
		Encryption:      &status.EncryptionStatus{Running: true, Drive: "/dev/sdb", TotalFiles: 10, Success: 5, Failed: 1, Ciphers: []string{"AES"}},
	}
	tr.Observe(enc, t0)

	cur, _ := tr.Current()
	assert.Equal(t, 50, cur.Progress)
	assert.Equal(t, []string{"AES"}, cur.Ciphers)

	tr.Observe(dodView("/dev/sdc", time.Time{}), t0.Add(time.Minute))
	ops := tr.Operations()
	require.Len(t, ops, 2)
	assert.Equal(t, StatusInterrupted, ops[0].Status)
	assert.Equal(t, KindEncryption, ops[0].Kind)
	assert.Equal(t, StatusRunning, ops[1].Status)
	assert.Equal(t, t0.Add(time.Minute), ops[1].StartTime)

	tr.Close(t0.Add(2 * time.Minute))
	_, ok := tr.Current()
	assert.False(t, ok)
	assert.Equal(t, StatusInterrupted, tr.Operations()[1].Status)
}

func TestGenerateReportSummary(t *testing.T) {
	cfg := config.Default()
	ops := []Operation{
		{Kind: KindEncryption, Status: StatusFinished, FilesTotal: 10, FilesFailed: 1},
		{Kind: KindDoDWipe, Status: StatusInterrupted},
		{Kind: KindDoDWipe, Status: StatusRunning},
	}

	r, err := GenerateReport(ops, cfg, "test", t0, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "1h0m0s", r.Duration)
	assert.Equal(t, cfg.Backend.BaseURL, r.Backend)
	assert.Equal(t, 3, r.Summary.TotalOperations)
	assert.Equal(t, 1, r.Summary.Encryptions)
	assert.Equal(t, 2, r.Summary.DoDWipes)
	assert.Equal(t, 1, r.Summary.Running)
	assert.Equal(t, 50.0, r.Summary.SuccessRate)
	assert.Equal(t, 1, r.Summary.FailedFiles)

	_, err = GenerateReport(ops, nil, "test", t0, t0)
	assert.Error(t, err)
}

func TestSaveAndListReports(t *testing.T) {
	cfg := config.Default()
	cfg.Reporting.LocalPath = filepath.Join(t.TempDir(), "reports")

	older, err := GenerateReport(nil, cfg, "test", t0, t0.Add(time.Minute))
	require.NoError(t, err)
	newer, err := GenerateReport([]Operation{{Kind: KindDoDWipe, Status: StatusFinished}}, cfg, "test", t0.Add(time.Hour), t0.Add(2*time.Hour))
	require.NoError(t, err)

	_, err = SaveReport(older, cfg)
	require.NoError(t, err)
	path, err := SaveReport(newer, cfg)
	require.NoError(t, err)
	assert.FileExists(t, path)

	// посторонние и битые файлы пропускаются
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Reporting.LocalPath, "notes.txt"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Reporting.LocalPath, filePrefix+"broken.json"), []byte("{"), 0644))

	files, err := ListReports(cfg.Reporting.LocalPath)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, newer.RunID, files[0].RunID)
	assert.Equal(t, 1, files[0].Operations)
	assert.Equal(t, older.RunID, files[1].RunID)

	loaded, err := LoadReport(path)
	require.NoError(t, err)
	assert.Equal(t, newer.RunID, loaded.RunID)
}

func TestSaveReportDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.Reporting.Enabled = false
	cfg.Reporting.LocalPath = filepath.Join(t.TempDir(), "never")

	path, err := SaveReport(&Report{RunID: "x"}, cfg)
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.NoDirExists(t, cfg.Reporting.LocalPath)
}

func TestListReportsMissingDir(t *testing.T) {
	files, err := ListReports(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestAggregateReports(t *testing.T) {
	agg := AggregateReports([]Report{
		{RunID: "a", Hostname: "ws-1", Operations: []Operation{{Kind: KindDoDWipe, Status: StatusFinished}}},
		{RunID: "b", Hostname: "ws-2", Operations: []Operation{{Kind: KindEncryption, Status: StatusFinished}}},
		{RunID: "c", Hostname: "ws-1"},
	}, t0)

	assert.Equal(t, 3, agg.TotalRuns)
	assert.Equal(t, 2, agg.TotalMachines)
	assert.Equal(t, 2, agg.Summary.Finished)
	assert.Equal(t, []string{"a", "b", "c"}, agg.RunIDs)
}
