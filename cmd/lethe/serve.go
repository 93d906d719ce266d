package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"lethe_console/internal/config"
	"lethe_console/internal/metrics"
	"lethe_console/internal/poller"
	"lethe_console/internal/server"
)

var (
	listenAddr string
	noMetrics  bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Запустить loopback HTTP API и /metrics",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "Адрес HTTP API (переопределяет server.listen)")
	serveCmd.Flags().BoolVar(&noMetrics, "no-metrics", false, "Не публиковать /metrics")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := setup(); err != nil {
		return err
	}
	if listenAddr != "" {
		cfg.Server.Listen = listenAddr
	}

	var observers []poller.Observer
	var metricsHandler http.Handler
	if cfg.Server.MetricsEnabled && !noMetrics {
		collector := metrics.New()
		observers = append(observers, collector)
		metricsHandler = collector.Handler()
	}

	a, err := newApp(observers...)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	if err := a.Start(ctx); err != nil {
		return err
	}

	srv := server.New(cfg.Server.Listen, a, metricsHandler, logger)
	if err := srv.Start(); err != nil {
		return multierr.Append(fmt.Errorf("ошибка запуска HTTP API: %w", err), a.Shutdown(context.Background()))
	}
	fmt.Printf("%s %s: http://%s\n", AppName, Version, srv.Addr())

	if configPath != "" {
		go func() {
			err := config.Watch(ctx, configPath, func(next *config.Config) {
				if profile != "" {
					if err := config.ApplyProfile(next, profile); err != nil {
						logger.Log("WARN", "Профиль не применён к новой конфигурации", "profile", profile, "error", err)
					}
				}
				if err := a.Reload(next); err != nil {
					logger.Log("WARN", "Новая конфигурация отклонена", "error", err)
				}
			}, func(err error) {
				logger.Log("WARN", "Ошибка чтения конфигурации", "path", configPath, "error", err)
			})
			if err != nil {
				logger.Log("WARN", "Отслеживание конфигурации недоступно", "path", configPath, "error", err)
			}
		}()
	}

	var serveErr error
	select {
	case <-ctx.Done():
	case <-srv.Done():
		serveErr = srv.Err()
		cancel()
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()

	result := serveErr
	result = multierr.Append(result, srv.Shutdown(shutdownCtx))
	result = multierr.Append(result, a.Shutdown(shutdownCtx))
	return result
}
