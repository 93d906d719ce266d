package drives

import (
	"strings"
	"sync"

	"lethe_console/internal/status"
)

// Status состояние строки таблицы дисков
type Status string

const (
	StatusIdle      Status = "idle"
	StatusWiping    Status = "wiping"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
	StatusWarning   Status = "warning"
)

// ParseStatus приводит значение API к Status; неизвестные значения дают idle
func ParseStatus(s string) Status {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusWiping:
		return StatusWiping
	case StatusCompleted:
		return StatusCompleted
	case StatusError:
		return StatusError
	case StatusWarning:
		return StatusWarning
	default:
		return StatusIdle
	}
}

// Record строка таблицы дисков
type Record struct {
	Device        string  `json:"device"`
	Name          string  `json:"name"`
	Model         string  `json:"model,omitempty"`
	Type          string  `json:"type"`
	CapacityBytes uint64  `json:"capacity_bytes"`
	UsedPercent   float64 `json:"used_percent"`
	Status        Status  `json:"status"`
	Method        string  `json:"method,omitempty"`
	IsSystem      bool    `json:"is_system,omitempty"`
}

// FromDisk строит запись из ответа /getdisks
func FromDisk(d status.Disk) Record {
	return Record{
		Device:        d.Device,
		Name:          d.Name,
		Model:         d.Model,
		Type:          strings.ToLower(d.Type),
		CapacityBytes: d.Size,
		UsedPercent:   d.UsedPercent,
		Status:        ParseStatus(d.Status),
		Method:        d.Method,
		IsSystem:      d.IsSystem,
	}
}

// NormalizeDevice убирает префикс /dev/ и регистр для сравнения устройств
func NormalizeDevice(device string) string {
	d := strings.TrimSpace(device)
	d = strings.TrimPrefix(d, "/dev/")
	return strings.ToLower(d)
}

// SameDevice сравнивает устройства без учёта префикса /dev/
func SameDevice(a, b string) bool {
	na, nb := NormalizeDevice(a), NormalizeDevice(b)
	return na != "" && na == nb
}

// Table потокобезопасная таблица дисков с устойчивым порядком
type Table struct {
	mu      sync.RWMutex
	order   []string
	records map[string]Record
}

func NewTable() *Table {
	return &Table{records: make(map[string]Record)}
}

// Rebuild отбрасывает текущие записи и строит таблицу заново.
// Дубликаты устройств схлопываются, побеждает последняя запись.
func (t *Table) Rebuild(disks []status.Disk) {
	order := make([]string, 0, len(disks))
	records := make(map[string]Record, len(disks))

	for _, d := range disks {
		key := NormalizeDevice(d.Device)
		if key == "" {
			continue
		}
		if _, seen := records[key]; !seen {
			order = append(order, key)
		}
		records[key] = FromDisk(d)
	}

	t.mu.Lock()
	t.order = order
	t.records = records
	t.mu.Unlock()
}

// PatchRunning помечает device как wiping, остальные wiping записи возвращает в idle.
// Пустой device означает, что операций нет. Возвращает изменённые устройства.
func (t *Table) PatchRunning(device string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	target := NormalizeDevice(device)
	var changed []string

	for _, key := range t.order {
		rec := t.records[key]
		switch {
		case target != "" && key == target:
			if rec.Status != StatusWiping {
				rec.Status = StatusWiping
				changed = append(changed, rec.Device)
			}
		case rec.Status == StatusWiping:
			rec.Status = StatusIdle
			changed = append(changed, rec.Device)
		}
		t.records[key] = rec
	}
	return changed
}

// Records возвращает копию записей в порядке /getdisks
func (t *Table) Records() []Record {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Record, 0, len(t.order))
	for _, key := range t.order {
		out = append(out, t.records[key])
	}
	return out
}

// Get ищет запись по устройству
func (t *Table) Get(device string) (Record, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rec, ok := t.records[NormalizeDevice(device)]
	return rec, ok
}

func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.order)
}
