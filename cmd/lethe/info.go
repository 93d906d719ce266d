package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"lethe_console/internal/app"
	"lethe_console/internal/drives"
	"lethe_console/internal/format"
	"lethe_console/internal/poller"
	"lethe_console/internal/status"
)

var (
	outputJSON  bool
	driveStatus string
	driveType   string
	driveQuery  string
	logLevel    string
	logsSummary bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Текущая операция и статистика",
	RunE:  runStatus,
}

var drivesCmd = &cobra.Command{
	Use:   "drives",
	Short: "Таблица дисков",
	RunE:  runDrives,
}

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Последние строки журнала backend",
	RunE:  runLogs,
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Сведения об устройстве",
	RunE:  runProfile,
}

func init() {
	for _, c := range []*cobra.Command{statusCmd, drivesCmd, logsCmd, profileCmd} {
		c.Flags().BoolVar(&outputJSON, "json", false, "Вывод в JSON")
	}

	drivesCmd.Flags().StringVar(&driveStatus, "status", "", "Фильтр по статусу (idle/wiping/completed/error/warning)")
	drivesCmd.Flags().StringVar(&driveType, "type", "", "Фильтр по типу (ssd/hdd/usb/nvme)")
	drivesCmd.Flags().StringVarP(&driveQuery, "query", "q", "", "Поиск по устройству, имени или модели")

	logsCmd.Flags().StringVar(&logLevel, "level", "", "Фильтр по уровню (ERROR/WARNING/INFO/...)")
	logsCmd.Flags().BoolVar(&logsSummary, "summary", false, "Показать сводку журнала")

	rootCmd.AddCommand(statusCmd, drivesCmd, logsCmd, profileCmd)
}

// pollFailures запоминает endpoints, опрос которых не удался
type pollFailures struct {
	mu        sync.Mutex
	endpoints map[string]error
}

func (f *pollFailures) PollFailed(endpoint string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.endpoints == nil {
		f.endpoints = make(map[string]error)
	}
	f.endpoints[endpoint] = err
}

func (f *pollFailures) ViewChanged(status.View)          {}
func (f *pollFailures) StatsChanged(status.StatsSummary) {}

// check возвращает errPartial, если не удался опрос одного из endpoints
func (f *pollFailures) check(endpoints ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var failed []string
	for _, e := range endpoints {
		if err, ok := f.endpoints[e]; ok {
			fmt.Fprintf(os.Stderr, "[WARN] %s: %v\n", e, err)
			failed = append(failed, e)
		}
	}
	if len(failed) == 0 {
		return nil
	}
	sort.Strings(failed)
	return fmt.Errorf("%w: %s", errPartial, strings.Join(failed, ", "))
}

// snapshot выполняет один проход опроса
func snapshot(ctx context.Context) (*app.App, *pollFailures, error) {
	failures := &pollFailures{}
	a, err := newApp(failures)
	if err != nil {
		return nil, nil, err
	}

	pollCtx, cancel := context.WithTimeout(ctx, cfg.GetTimeout())
	defer cancel()
	a.Poller().PollOnce(pollCtx)
	return a, failures, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// statusEndpoints источники, без которых текущая операция может быть показана неверно
var statusEndpoints = []string{poller.EndpointDashboard, poller.EndpointEncryption, poller.EndpointDoD}

func runStatus(cmd *cobra.Command, args []string) error {
	if err := setup(); err != nil {
		return err
	}
	a, failures, err := snapshot(cmd.Context())
	if err != nil {
		return err
	}

	aw := a.GetActiveWipe()
	stats := a.GetStats()
	if outputJSON {
		if err := printJSON(map[string]interface{}{"active_wipe": aw, "stats": stats}); err != nil {
			return err
		}
		return failures.check(statusEndpoints...)
	}

	card := aw.Card
	fmt.Println(card.Title)
	fmt.Println("==================")
	if card.Message != "" {
		fmt.Println(card.Message)
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if aw.View.Running() {
		fmt.Fprintf(w, "Состояние:\t%s\n", card.Headline)
		fmt.Fprintf(w, "Диск:\t%s\n", card.Device)
	}
	switch aw.View.Kind {
	case status.KindEncryptionRunning:
		fmt.Fprintf(w, "Прогресс:\t%s\n", card.Percent)
		fmt.Fprintf(w, "Алгоритмы:\t%s\n", card.Ciphers)
		fmt.Fprintf(w, "Файлы:\t%s\n", card.Files)
		fmt.Fprintf(w, "Текущий файл:\t%s\n", card.CurrentFile)
	case status.KindDoDWipeRunning:
		fmt.Fprintf(w, "Начато:\t%s\n", card.StartedAt)
		fmt.Fprintf(w, "Прошло:\t%s\n", card.Elapsed)
	}
	w.Flush()

	fmt.Println()
	w = tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, c := range stats.Cards {
		fmt.Fprintf(w, "%s:\t%s\t%s\n", c.Title, c.Value, c.Trend)
	}
	w.Flush()

	return failures.check(statusEndpoints...)
}

func runDrives(cmd *cobra.Command, args []string) error {
	if err := setup(); err != nil {
		return err
	}
	filter := drives.Filter{Status: driveStatus, Type: driveType, Query: driveQuery}
	if err := filter.Validate(); err != nil {
		return err
	}

	a, failures, err := snapshot(cmd.Context())
	if err != nil {
		return err
	}
	rows, err := a.GetDrives(filter)
	if err != nil {
		return err
	}

	if outputJSON {
		if err := printJSON(rows); err != nil {
			return err
		}
		return failures.check(poller.EndpointDisks)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DEVICE\tNAME\tTYPE\tCAPACITY\tUSED\tSTATUS\tMETHOD\t")
	for _, r := range rows {
		device := r.Device
		if r.Protected {
			device += " *"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			device, format.Text(r.Name), format.Text(r.Type), r.Capacity, r.Used, r.Status, format.Text(r.Method))
	}
	w.Flush()
	if len(rows) == 0 {
		fmt.Println("Дисков не найдено")
	}

	return failures.check(poller.EndpointDisks)
}

func runLogs(cmd *cobra.Command, args []string) error {
	if err := setup(); err != nil {
		return err
	}
	a, failures, err := snapshot(cmd.Context())
	if err != nil {
		return err
	}

	entries := a.GetLogs(logLevel)
	summary, haveSummary := a.GetLogsSummary()

	if outputJSON {
		out := map[string]interface{}{"entries": entries}
		if logsSummary && haveSummary {
			out["summary"] = summary
		}
		if err := printJSON(out); err != nil {
			return err
		}
		return failures.check(poller.EndpointLogs)
	}

	for _, e := range entries {
		fmt.Printf("%-8s %s %s\n", strings.ToUpper(e.Status), format.Text(e.Timestamp), e.Message)
	}

	if logsSummary && haveSummary {
		fmt.Println()
		fmt.Printf("Всего: %d, предупреждений: %d, ошибок: %d, успешно: %d (%.0f%%)\n",
			summary.TotalLogs, summary.Warnings, summary.Errors, summary.Success, summary.SuccessRate)
	}

	return failures.check(poller.EndpointLogs)
}

func runProfile(cmd *cobra.Command, args []string) error {
	if err := setup(); err != nil {
		return err
	}
	a, err := newApp()
	if err != nil {
		return err
	}

	p, err := a.GetDeviceInfo()
	if err != nil {
		return err
	}
	if outputJSON {
		return printJSON(p)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Device ID:\t%s\n", format.Text(p.DeviceID))
	fmt.Fprintf(w, "Hostname:\t%s\n", format.Text(p.Hostname))
	fmt.Fprintf(w, "Status:\t%s\n", format.Text(p.Status))
	fmt.Fprintf(w, "CPU:\t%s (%d cores, %d threads)\n", format.Text(p.CPUModel), p.CPUCores, p.CPUThreads)
	fmt.Fprintf(w, "Memory:\t%s\n", format.Text(p.Memory))
	fmt.Fprintf(w, "Disk:\t%s\n", format.Text(p.Disk))
	fmt.Fprintf(w, "IP:\t%s (%s)\n", format.Text(p.IPAddress), format.Text(p.NetworkType))
	fmt.Fprintf(w, "OS:\t%s %s\n", format.Text(p.OSPlatform), p.OSVersion)
	return w.Flush()
}
