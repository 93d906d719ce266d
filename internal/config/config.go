package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Конфигурация консоли LETHE
type Config struct {
	Backend struct {
		BaseURL string `yaml:"base_url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"backend"`

	Polling struct {
		DashboardInterval  string `yaml:"dashboard_interval"`
		EncryptionInterval string `yaml:"encryption_interval"`
		DoDInterval        string `yaml:"dod_interval"`
		ElapsedInterval    string `yaml:"elapsed_interval"`
		DisksInterval      string `yaml:"disks_interval"`
		LogsInterval       string `yaml:"logs_interval"`
	} `yaml:"polling"`

	Security struct {
		RequireConfirmation bool     `yaml:"require_confirmation"`
		AllowSystemDisk     bool     `yaml:"allow_system_disk"`
		ExcludedDevices     []string `yaml:"excluded_devices"`
	} `yaml:"security"`

	Logging struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file"`
		Structured bool   `yaml:"structured"`
	} `yaml:"logging"`

	Reporting struct {
		Enabled   bool   `yaml:"enabled"`
		LocalPath string `yaml:"local_path"`
	} `yaml:"reporting"`

	Server struct {
		Listen         string `yaml:"listen"`
		MetricsEnabled bool   `yaml:"metrics_enabled"`
	} `yaml:"server"`

	Display struct {
		CoerceWipeCount bool `yaml:"coerce_wipe_count"`
	} `yaml:"display"`
}

// Intervals содержит разобранные интервалы опроса
type Intervals struct {
	Dashboard  time.Duration
	Encryption time.Duration
	DoD        time.Duration
	Elapsed    time.Duration
	Disks      time.Duration
	Logs       time.Duration
}

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	cfg := &Config{}

	cfg.Backend.BaseURL = "http://localhost:8080"
	cfg.Backend.Timeout = "10s"

	// Интервалы как в исходном дашборде
	cfg.Polling.DashboardInterval = "2s"
	cfg.Polling.EncryptionInterval = "1s"
	cfg.Polling.DoDInterval = "2s"
	cfg.Polling.ElapsedInterval = "1s"
	cfg.Polling.DisksInterval = "5s"
	cfg.Polling.LogsInterval = "5s"

	cfg.Security.RequireConfirmation = true
	cfg.Security.AllowSystemDisk = false
	cfg.Security.ExcludedDevices = []string{}

	cfg.Logging.Level = "INFO"
	cfg.Logging.File = ""
	cfg.Logging.Structured = true

	cfg.Reporting.Enabled = true
	cfg.Reporting.LocalPath = "./reports"

	cfg.Server.Listen = "127.0.0.1:3000"
	cfg.Server.MetricsEnabled = true

	cfg.Display.CoerceWipeCount = true

	return cfg
}

// Load загружает конфигурацию из файла
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	// Незаданные в файле поля остаются значениями по умолчанию
	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := Validate(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Validate проверяет конфигурацию на валидность
func Validate(config *Config) error {
	// Валидация backend секции
	if config.Backend.BaseURL == "" {
		return fmt.Errorf("backend base url is required")
	}
	u, err := url.Parse(config.Backend.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid backend base url: %s", config.Backend.BaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported backend scheme: %s", u.Scheme)
	}

	timeout, err := time.ParseDuration(config.Backend.Timeout)
	if err != nil {
		return fmt.Errorf("invalid backend timeout format: %s", config.Backend.Timeout)
	}
	if timeout <= 0 || timeout > 5*time.Minute {
		return fmt.Errorf("backend timeout must be between 0 and 5m, got %s", timeout)
	}

	// Валидация интервалов опроса
	if _, err := config.PollIntervals(); err != nil {
		return err
	}

	// Валидация logging секции
	validLevels := map[string]bool{
		"DEBUG": true,
		"INFO":  true,
		"WARN":  true,
		"ERROR": true,
	}
	if !validLevels[config.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	if config.Reporting.Enabled && config.Reporting.LocalPath == "" {
		return fmt.Errorf("reporting enabled but local path is empty")
	}

	if config.Server.Listen == "" {
		return fmt.Errorf("server listen address is required")
	}

	for _, device := range config.Security.ExcludedDevices {
		if device == "" {
			return fmt.Errorf("empty excluded device")
		}
	}

	return nil
}

// Save сохраняет конфигурацию в файл
func Save(config *Config, path string) error {
	// Валидация перед сохранением
	if err := Validate(config); err != nil {
		return fmt.Errorf("cannot save invalid config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// PollIntervals разбирает интервалы опроса
func (config *Config) PollIntervals() (Intervals, error) {
	var iv Intervals

	fields := []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{"dashboard_interval", config.Polling.DashboardInterval, &iv.Dashboard},
		{"encryption_interval", config.Polling.EncryptionInterval, &iv.Encryption},
		{"dod_interval", config.Polling.DoDInterval, &iv.DoD},
		{"elapsed_interval", config.Polling.ElapsedInterval, &iv.Elapsed},
		{"disks_interval", config.Polling.DisksInterval, &iv.Disks},
		{"logs_interval", config.Polling.LogsInterval, &iv.Logs},
	}

	for _, f := range fields {
		d, err := time.ParseDuration(f.value)
		if err != nil {
			return Intervals{}, fmt.Errorf("invalid %s format: %s", f.name, f.value)
		}
		if d < 100*time.Millisecond || d > 10*time.Minute {
			return Intervals{}, fmt.Errorf("%s must be between 100ms and 10m, got %s", f.name, d)
		}
		*f.dst = d
	}

	return iv, nil
}

// GetTimeout возвращает таймаут запросов к backend
func (config *Config) GetTimeout() time.Duration {
	d, err := time.ParseDuration(config.Backend.Timeout)
	if err != nil || d <= 0 {
		return 10 * time.Second // Fallback
	}
	return d
}
