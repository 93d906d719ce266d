package config

import (
	"fmt"
)

// ApplyProfile применяет профиль опроса к конфигурации
func ApplyProfile(cfg *Config, profile string) error {
	switch profile {
	case "realtime":
		cfg.Polling.DashboardInterval = "1s"
		cfg.Polling.EncryptionInterval = "1s"
		cfg.Polling.DoDInterval = "1s"
		cfg.Polling.DisksInterval = "2s"
		cfg.Polling.LogsInterval = "2s"
	case "balanced":
		cfg.Polling.DashboardInterval = "2s"
		cfg.Polling.EncryptionInterval = "1s"
		cfg.Polling.DoDInterval = "2s"
		cfg.Polling.DisksInterval = "5s"
		cfg.Polling.LogsInterval = "5s"
	case "relaxed":
		// stats-cards опрашивает dashboard раз в 5 секунд
		cfg.Polling.DashboardInterval = "5s"
		cfg.Polling.EncryptionInterval = "2s"
		cfg.Polling.DoDInterval = "5s"
		cfg.Polling.DisksInterval = "10s"
		cfg.Polling.LogsInterval = "10s"
	default:
		return fmt.Errorf("неизвестный профиль: %s", profile)
	}
	return nil
}

// Profiles возвращает список доступных профилей
func Profiles() []string {
	return []string{"realtime", "balanced", "relaxed"}
}
