package status

import (
	"encoding/json"
	"fmt"
	"time"
)

// DashboardSnapshot агрегированная сводка backend (/dashboard)
type DashboardSnapshot struct {
	TotalDrives     int  `json:"total_drives"`
	EncryptedDrives int  `json:"encrypted_drives"`
	WipeInProgress  int  `json:"wipe_in_progress"`
	WipeActive      bool `json:"wipe_active"`
}

// DashboardResponse обёртка ответа /dashboard
type DashboardResponse struct {
	PhysicalDisks *DashboardSnapshot `json:"physical_disks"`
}

// EncryptionStatus состояние задания шифрования (/encrypt/status)
type EncryptionStatus struct {
	Running      bool     `json:"running"`
	TotalFiles   int      `json:"total_files"`
	Success      int      `json:"success"`
	Failed       int      `json:"failed"`
	Progress     int      `json:"progress"`
	StartTime    string   `json:"start_time,omitempty"`
	EndTime      string   `json:"end_time,omitempty"`
	EncryptedDir string   `json:"encrypted_dir,omitempty"`
	Ciphers      []string `json:"ciphers"`
	CurrentFile  string   `json:"current_file"`
	Drive        string   `json:"drive"`
}

// DoDWipeStatus состояние DoD затирания (/wipe/status)
type DoDWipeStatus struct {
	Running     bool      `json:"running"`
	CurrentDisk string    `json:"currentDisk"`
	StartedAt   time.Time `json:"startedAt"`
}

// UnmarshalJSON допускает пустой или отсутствующий startedAt, когда затирание не идёт
func (s *DoDWipeStatus) UnmarshalJSON(data []byte) error {
	var raw struct {
		Running     bool   `json:"running"`
		CurrentDisk string `json:"currentDisk"`
		StartedAt   string `json:"startedAt"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	s.Running = raw.Running
	s.CurrentDisk = raw.CurrentDisk
	s.StartedAt = time.Time{}

	if raw.StartedAt != "" {
		t, err := time.Parse(time.RFC3339Nano, raw.StartedAt)
		if err != nil {
			return fmt.Errorf("invalid startedAt %q: %w", raw.StartedAt, err)
		}
		s.StartedAt = t
	}
	return nil
}

// Disk запись из /getdisks
type Disk struct {
	Device      string  `json:"device"`
	Name        string  `json:"name"`
	Model       string  `json:"model,omitempty"`
	Type        string  `json:"type"`
	Size        uint64  `json:"size"`
	UsedPercent float64 `json:"used_percent"`
	Status      string  `json:"status,omitempty"`
	Method      string  `json:"method,omitempty"`
	IsSystem    bool    `json:"is_system,omitempty"`
}

// DisksResponse обёртка ответа /getdisks
type DisksResponse struct {
	PhysicalDisks []Disk `json:"physical_disks"`
}

// LogsReport ответ /logsfull
type LogsReport struct {
	TotalLogs int      `json:"total_logs"`
	Warnings  int      `json:"warnings"`
	Errors    int      `json:"errors"`
	Success   int      `json:"success"`
	LastN     []string `json:"last_n"`
}

// SliceState состояние одного источника данных в текущем цикле
type SliceState int

const (
	// Unknown ещё ни одного ответа
	Unknown SliceState = iota
	// Fresh последний запрос успешен
	Fresh
	// Failed последний запрос завершился сетевой ошибкой или ошибкой разбора
	Failed
	// Absent опрос пропущен, потому что его условие не выполнено
	Absent
)

func (s SliceState) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case Failed:
		return "failed"
	case Absent:
		return "absent"
	default:
		return "unknown"
	}
}

// Inputs последние ответы трёх независимых опросов
type Inputs struct {
	Dashboard      *DashboardSnapshot
	DashboardState SliceState

	Encryption      *EncryptionStatus
	EncryptionState SliceState

	DoD      *DoDWipeStatus
	DoDState SliceState
}
