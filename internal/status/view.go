package status

import (
	"fmt"
	"time"
)

// Kind вариант текущей активной операции
type Kind int

const (
	// KindLoading ещё не пришёл ни один ответ dashboard
	KindLoading Kind = iota
	// KindResolving dashboard определил тип операции, но её статус ещё не получен
	KindResolving
	// KindEncryptionRunning идёт шифрование (wipe_active = true)
	KindEncryptionRunning
	// KindDoDWipeRunning идёт DoD затирание (wipe_active = false, running = true)
	KindDoDWipeRunning
	// KindIdle активных операций нет
	KindIdle
)

var kindNames = map[Kind]string{
	KindLoading:           "loading",
	KindResolving:         "resolving",
	KindEncryptionRunning: "encryption_running",
	KindDoDWipeRunning:    "dod_wipe_running",
	KindIdle:              "idle",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// MarshalText сериализует Kind по имени
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Kinds возвращает все варианты в порядке объявления
func Kinds() []Kind {
	return []Kind{KindLoading, KindResolving, KindEncryptionRunning, KindDoDWipeRunning, KindIdle}
}

// View согласованное представление "что происходит сейчас"
type View struct {
	Kind Kind `json:"kind"`

	Encryption      *EncryptionStatus `json:"encryption,omitempty"`
	ProgressPercent int               `json:"progress_percent"`

	DoD     *DoDWipeStatus `json:"dod,omitempty"`
	Elapsed time.Duration  `json:"elapsed"`

	WipesInProgress  int  `json:"wipes_in_progress"`
	WipeCountCoerced bool `json:"wipe_count_coerced,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Running сообщает, идёт ли операция
func (v View) Running() bool {
	return v.Kind == KindEncryptionRunning || v.Kind == KindDoDWipeRunning
}

// Device возвращает диск текущей операции
func (v View) Device() string {
	switch v.Kind {
	case KindEncryptionRunning:
		if v.Encryption != nil {
			return v.Encryption.Drive
		}
	case KindDoDWipeRunning:
		if v.DoD != nil {
			return v.DoD.CurrentDisk
		}
	}
	return ""
}
