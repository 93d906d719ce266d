package status

import (
	"math"
	"time"
)

// Authority какой из статусов считается авторитетным
type Authority int

const (
	AuthorityEncryption Authority = iota
	AuthorityDoD
)

func (a Authority) String() string {
	if a == AuthorityEncryption {
		return "encryption"
	}
	return "dod"
}

// SelectAuthority выбирает источник истины по флагу wipe_active.
// Флаг dashboard единственный дискриминатор: если оба статуса
// одновременно сообщают running, второй игнорируется.
func SelectAuthority(d DashboardSnapshot) Authority {
	if d.WipeActive {
		return AuthorityEncryption
	}
	return AuthorityDoD
}

// Conflict сообщает, что оба статуса одновременно заявляют running
func Conflict(in Inputs) bool {
	return in.EncryptionState == Fresh && in.Encryption != nil && in.Encryption.Running &&
		in.DoDState == Fresh && in.DoD != nil && in.DoD.Running
}

// ProgressPercent floor(success/total*100) в пределах [0, 100]; total <= 0 даёт 0
func ProgressPercent(success, total int) int {
	if total <= 0 || success <= 0 {
		return 0
	}
	p := int(math.Floor(float64(success) / float64(total) * 100))
	if p > 100 {
		return 100
	}
	return p
}

// Elapsed время с начала операции, никогда не отрицательное
func Elapsed(startedAt, now time.Time) time.Duration {
	if startedAt.IsZero() {
		return 0
	}
	d := now.Sub(startedAt)
	if d < 0 {
		return 0
	}
	return d
}

// EffectiveWipes повторяет обход несогласованности backend: wipe_in_progress
// приходит 0, хотя /wipe/status сообщает running. Возвращает true, если
// значение было скорректировано.
func EffectiveWipes(d DashboardSnapshot, dod *DoDWipeStatus) (int, bool) {
	if d.WipeInProgress == 0 && dod != nil && dod.Running {
		return 1, true
	}
	return d.WipeInProgress, false
}

// RunningDevice возвращает диск, который авторитетный статус считает занятым.
// known = false, если по текущим данным это определить нельзя.
func RunningDevice(in Inputs) (device string, known bool) {
	if in.Dashboard == nil || in.DashboardState != Fresh {
		return "", false
	}

	switch SelectAuthority(*in.Dashboard) {
	case AuthorityEncryption:
		if in.EncryptionState != Fresh || in.Encryption == nil {
			return "", false
		}
		if in.Encryption.Running {
			return in.Encryption.Drive, true
		}
		return "", true
	default:
		if in.DoDState != Fresh || in.DoD == nil {
			return "", false
		}
		if in.DoD.Running {
			return in.DoD.CurrentDisk, true
		}
		return "", true
	}
}

// Reconciler сводит три независимых опроса в одно представление
type Reconciler struct {
	prev   View
	coerce bool
	// последний успешный /wipe/status сообщал running
	dodWasRunning bool
}

// NewReconciler создаёт reconciler; coerceWipeCount включает EffectiveWipes
func NewReconciler(coerceWipeCount bool) *Reconciler {
	return &Reconciler{
		prev:   View{Kind: KindLoading},
		coerce: coerceWipeCount,
	}
}

// Last возвращает последнее вычисленное представление
func (r *Reconciler) Last() View {
	return r.prev
}

// Reconcile вычисляет представление по последним ответам
func (r *Reconciler) Reconcile(in Inputs, now time.Time) View {
	v := r.resolve(in, now)
	v.UpdatedAt = now
	r.prev = v
	return v
}

func (r *Reconciler) resolve(in Inputs, now time.Time) View {
	if in.Dashboard == nil || in.DashboardState != Fresh {
		// dashboard неизвестен: держим прошлое состояние, а не "нет операций"
		return r.hold(now)
	}

	d := *in.Dashboard
	v := View{WipesInProgress: d.WipeInProgress}
	if r.coerce {
		var dod *DoDWipeStatus
		if in.DoDState == Fresh {
			dod = in.DoD
		}
		v.WipesInProgress, v.WipeCountCoerced = EffectiveWipes(d, dod)
	}

	switch SelectAuthority(d) {
	case AuthorityEncryption:
		// DoD больше не управляет представлением
		r.dodWasRunning = false
		if in.EncryptionState == Fresh && in.Encryption != nil {
			enc := *in.Encryption
			v.Kind = KindEncryptionRunning
			v.Encryption = &enc
			v.ProgressPercent = ProgressPercent(enc.Success, enc.TotalFiles)
			return v
		}
		v.Kind = KindResolving
		return v

	default:
		switch in.DoDState {
		case Fresh:
			r.dodWasRunning = in.DoD != nil && in.DoD.Running
			if in.DoD != nil && in.DoD.Running {
				dod := *in.DoD
				v.Kind = KindDoDWipeRunning
				v.DoD = &dod
				v.Elapsed = Elapsed(dod.StartedAt, now)
				return v
			}
			v.Kind = KindIdle
		case Failed:
			// Сбой во время идущего затирания не должен показывать "нет операций"
			if r.dodWasRunning {
				v.Kind = KindResolving
			} else {
				v.Kind = KindIdle
			}
		default:
			v.Kind = KindResolving
		}
		return v
	}
}

func (r *Reconciler) hold(now time.Time) View {
	v := r.prev
	if v.Kind == KindDoDWipeRunning && v.DoD != nil {
		v.Elapsed = Elapsed(v.DoD.StartedAt, now)
	}
	return v
}

// StatsSummary значения карточек статистики
type StatsSummary struct {
	Known            bool   `json:"known"`
	DrivesDetected   int    `json:"drives_detected"`
	DrivesEncrypted  int    `json:"drives_encrypted"`
	EncryptedPercent int    `json:"encrypted_percent"`
	WipesInProgress  int    `json:"wipes_in_progress"`
	WipeCountCoerced bool   `json:"wipe_count_coerced,omitempty"`
	WipeActive       bool   `json:"wipe_active"`
	LastWipe         string `json:"last_wipe"`
	// Stale значения взяты из последнего успешного dashboard, текущий опрос не удался
	Stale bool `json:"stale,omitempty"`
}

// Stats считает карточки статистики по dashboard и (опционально) DoD статусу
func Stats(d *DashboardSnapshot, dod *DoDWipeStatus, coerce bool) StatsSummary {
	if d == nil {
		return StatsSummary{LastWipe: "-"}
	}

	s := StatsSummary{
		Known:           true,
		DrivesDetected:  d.TotalDrives,
		DrivesEncrypted: d.EncryptedDrives,
		WipesInProgress: d.WipeInProgress,
		WipeActive:      d.WipeActive,
	}
	if d.TotalDrives > 0 {
		s.EncryptedPercent = int(math.Round(float64(d.EncryptedDrives) / float64(d.TotalDrives) * 100))
	}
	if coerce {
		s.WipesInProgress, s.WipeCountCoerced = EffectiveWipes(*d, dod)
		if s.WipeCountCoerced {
			s.WipeActive = true
		}
	}

	if s.WipeActive {
		s.LastWipe = "In Progress"
	} else {
		s.LastWipe = "Done"
	}
	return s
}
