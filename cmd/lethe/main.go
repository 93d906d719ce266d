package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"lethe_console/internal/api"
	"lethe_console/internal/app"
	"lethe_console/internal/config"
	"lethe_console/internal/logging"
	"lethe_console/internal/poller"
)

const (
	Version = "1.0.0"
	AppName = "LETHE Console"

	// Exit codes
	EXIT_SUCCESS  = 0
	EXIT_ERROR    = 1
	EXIT_WARNING  = 2
	EXIT_REJECTED = 3
)

var (
	cfg        *config.Config
	logger     *logging.EnterpriseLogger
	verbose    bool
	configPath string
	profile    string
	apiURL     string
)

var rootCmd = &cobra.Command{
	Use:     "lethe",
	Short:   "LETHE Console - мониторинг затирания и шифрования дисков",
	Long:    "Консоль LETHE: опрос backend, текущая операция, таблица дисков, журнал и запуск затирания/шифрования",
	Version: Version,

	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Подробный вывод")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Путь к конфигурации")
	rootCmd.PersistentFlags().StringVar(&profile, "profile", "", "Профиль опроса (realtime/balanced/relaxed)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "", "Адрес backend LETHE (переопределяет backend.base_url)")
}

// setup загружает конфигурацию и создаёт логгер; вызывается каждой командой
func setup() error {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}

	if profile != "" {
		if err := config.ApplyProfile(cfg, profile); err != nil {
			return fmt.Errorf("ошибка применения профиля %s: %w", profile, err)
		}
	}
	if apiURL != "" {
		cfg.Backend.BaseURL = apiURL
	}

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("невалидная конфигурация: %w", err)
	}

	logger, err = logging.NewEnterpriseLogger(cfg, verbose)
	if err != nil {
		return fmt.Errorf("ошибка инициализации логгера: %w", err)
	}
	if profile != "" {
		logger.Log("INFO", "Применён профиль", "profile", profile)
	}
	return nil
}

func newClient() *api.Client {
	return api.NewClient(cfg.Backend.BaseURL, cfg.GetTimeout(), logger)
}

func newApp(observers ...poller.Observer) (*app.App, error) {
	return app.New(cfg, logger, newClient(), Version, observers...)
}

// signalContext отменяется по SIGINT/SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			if logger != nil {
				logger.Log("WARN", "Получен сигнал, начинаем graceful shutdown", "signal", sig.String())
			}
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return EXIT_SUCCESS
	case app.IsRejected(err):
		return EXIT_REJECTED
	case errors.Is(err, errPartial):
		return EXIT_WARNING
	default:
		return EXIT_ERROR
	}
}

// errPartial команда выполнена, но часть данных недоступна
var errPartial = errors.New("некоторые данные недоступны")

func main() {
	err := rootCmd.Execute()
	if logger != nil {
		logger.Close()
	}
	os.Exit(exitCode(err))
}
