package security

import (
	"errors"
	"fmt"

	"lethe_console/internal/config"
	"lethe_console/internal/drives"
)

var (
	ErrExcluded     = errors.New("диск исключён конфигурацией")
	ErrSystemDisk   = errors.New("системный диск защищён")
	ErrBusy         = errors.New("диск уже затирается")
	ErrUnknownDrive = errors.New("диск не найден в списке backend")
)

// CheckTarget проверяет, можно ли отправить start команду для диска
func CheckTarget(cfg *config.Config, rec drives.Record) error {
	if cfg == nil {
		cfg = config.Default()
	}

	if IsExcluded(cfg, rec.Device) {
		return fmt.Errorf("%s: %w", rec.Device, ErrExcluded)
	}

	if rec.IsSystem && !cfg.Security.AllowSystemDisk {
		return fmt.Errorf("%s: %w", rec.Device, ErrSystemDisk)
	}

	if rec.Status == drives.StatusWiping {
		return fmt.Errorf("%s: %w", rec.Device, ErrBusy)
	}

	return nil
}

// CheckDevice ищет диск в таблице и проверяет его
func CheckDevice(cfg *config.Config, device string, lookup func(string) (drives.Record, bool)) (drives.Record, error) {
	rec, ok := lookup(device)
	if !ok {
		// Без списка дисков проверяем хотя бы исключения
		if cfg != nil && IsExcluded(cfg, device) {
			return drives.Record{}, fmt.Errorf("%s: %w", device, ErrExcluded)
		}
		return drives.Record{Device: device}, fmt.Errorf("%s: %w", device, ErrUnknownDrive)
	}
	return rec, CheckTarget(cfg, rec)
}

// IsExcluded сообщает, указан ли диск в security.excluded_devices
func IsExcluded(cfg *config.Config, device string) bool {
	if cfg == nil {
		return false
	}
	for _, excluded := range cfg.Security.ExcludedDevices {
		if drives.SameDevice(excluded, device) {
			return true
		}
	}
	return false
}

// Protected отмечает диски, для которых start команда будет отклонена
func Protected(cfg *config.Config, rec drives.Record) bool {
	err := CheckTarget(cfg, rec)
	return errors.Is(err, ErrExcluded) || errors.Is(err, ErrSystemDisk)
}
