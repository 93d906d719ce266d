package reporting

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"lethe_console/internal/drives"
	"lethe_console/internal/status"
)

// Тип операции
const (
	KindEncryption = "encryption"
	KindDoDWipe    = "dod_wipe"
)

// Статус операции в отчёте
const (
	StatusRunning     = "running"
	StatusFinished    = "finished"
	StatusInterrupted = "interrupted"
)

// Operation операция, замеченная по согласованному представлению
type Operation struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind"`
	Device      string     `json:"device"`
	Ciphers     []string   `json:"ciphers,omitempty"`
	Status      string     `json:"status"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	Duration    string     `json:"duration,omitempty"`
	Progress    int        `json:"progress"`
	FilesTotal  int        `json:"files_total"`
	FilesDone   int        `json:"files_done"`
	FilesFailed int        `json:"files_failed"`
}

// Tracker записывает начало и конец операций по переходам представления
type Tracker struct {
	mu      sync.Mutex
	current *Operation
	done    []Operation
}

func NewTracker() *Tracker {
	return &Tracker{}
}

// Observe учитывает очередное представление.
// Loading и Resolving не закрывают операцию: её исход ещё неизвестен.
func (t *Tracker) Observe(v status.View, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch v.Kind {
	case status.KindEncryptionRunning, status.KindDoDWipeRunning:
		kind := KindEncryption
		if v.Kind == status.KindDoDWipeRunning {
			kind = KindDoDWipe
		}
		device := v.Device()

		if t.current != nil && (t.current.Kind != kind || !sameOperationDevice(t.current.Device, device)) {
			// операция сменилась без промежуточного Idle
			t.closeLocked(StatusInterrupted, now)
		}
		if t.current == nil {
			t.current = &Operation{
				ID:        uuid.New().String(),
				Kind:      kind,
				Device:    device,
				Status:    StatusRunning,
				StartTime: now,
			}
			if v.DoD != nil && !v.DoD.StartedAt.IsZero() {
				t.current.StartTime = v.DoD.StartedAt
			}
		}
		t.updateLocked(v)

	case status.KindIdle:
		if t.current != nil {
			t.closeLocked(StatusFinished, now)
		}
	}
}

// Close закрывает текущую операцию как прерванную наблюдением (конец сеанса)
func (t *Tracker) Close(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current != nil {
		t.closeLocked(StatusInterrupted, now)
	}
}

// Operations завершённые операции и текущая, в порядке начала
func (t *Tracker) Operations() []Operation {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Operation, 0, len(t.done)+1)
	out = append(out, t.done...)
	if t.current != nil {
		out = append(out, *t.current)
	}
	return out
}

// Current текущая операция
func (t *Tracker) Current() (Operation, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return Operation{}, false
	}
	return *t.current, true
}

func (t *Tracker) updateLocked(v status.View) {
	op := t.current
	if op.Device == "" {
		op.Device = v.Device()
	}
	if v.Encryption != nil {
		op.Ciphers = append([]string(nil), v.Encryption.Ciphers...)
		op.Progress = v.ProgressPercent
		op.FilesTotal = v.Encryption.TotalFiles
		op.FilesDone = v.Encryption.Success
		op.FilesFailed = v.Encryption.Failed
	}
}

func (t *Tracker) closeLocked(result string, now time.Time) {
	op := *t.current
	end := now
	op.EndTime = &end
	op.Status = result
	op.Duration = end.Sub(op.StartTime).Round(time.Second).String()
	t.done = append(t.done, op)
	t.current = nil
}

func sameOperationDevice(a, b string) bool {
	if a == "" || b == "" {
		return true
	}
	return drives.SameDevice(a, b)
}

// PollFailed poller.Observer; сбои опроса не меняют операции
func (t *Tracker) PollFailed(string, error) {}

// ViewChanged poller.Observer
func (t *Tracker) ViewChanged(v status.View) {
	now := v.UpdatedAt
	if now.IsZero() {
		now = time.Now()
	}
	t.Observe(v, now)
}

// StatsChanged poller.Observer
func (t *Tracker) StatsChanged(status.StatsSummary) {}
