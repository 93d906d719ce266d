package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"lethe_console/internal/reporting"
)

var (
	aggregate bool
	limit     int
)

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "Сохранённые отчёты сеансов",
	RunE:  runReports,
}

func init() {
	reportsCmd.Flags().BoolVar(&aggregate, "aggregate", false, "Агрегировать отчёты")
	reportsCmd.Flags().IntVar(&limit, "limit", 20, "Максимум отчётов в списке (0 без ограничения)")
	reportsCmd.Flags().BoolVar(&outputJSON, "json", false, "Вывод в JSON")
	rootCmd.AddCommand(reportsCmd)
}

func runReports(cmd *cobra.Command, args []string) error {
	if err := setup(); err != nil {
		return err
	}

	files, err := reporting.ListReports(cfg.Reporting.LocalPath)
	if err != nil {
		return fmt.Errorf("ошибка чтения отчётов: %w", err)
	}
	if limit > 0 && len(files) > limit {
		files = files[:limit]
	}

	if aggregate {
		var reports []reporting.Report
		for _, f := range files {
			r, err := reporting.LoadReport(f.Path)
			if err != nil {
				logger.Log("WARN", "Отчёт пропущен", "path", f.Path, "error", err)
				continue
			}
			reports = append(reports, *r)
		}
		agg := reporting.AggregateReports(reports, time.Now())
		if outputJSON {
			return printJSON(agg)
		}

		s := agg.Summary
		fmt.Printf("Сеансов: %d, машин: %d\n", agg.TotalRuns, agg.TotalMachines)
		fmt.Printf("Операций: %d (шифрований: %d, DoD: %d)\n", s.TotalOperations, s.Encryptions, s.DoDWipes)
		fmt.Printf("Завершено: %d, прервано: %d, выполняется: %d\n", s.Finished, s.Interrupted, s.Running)
		fmt.Printf("Файлы: %d, ошибок: %d, успешно %.1f%%\n", s.TotalFiles, s.FailedFiles, s.SuccessRate)
		return nil
	}

	if outputJSON {
		if files == nil {
			files = []reporting.ReportFile{}
		}
		return printJSON(files)
	}

	if len(files) == 0 {
		fmt.Printf("Отчётов в %s нет\n", cfg.Reporting.LocalPath)
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIMESTAMP\tRUN ID\tOPERATIONS\tPATH\t")
	for _, f := range files {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t\n", f.Timestamp.Local().Format("2006-01-02 15:04:05"), f.RunID, f.Operations, f.Path)
	}
	return w.Flush()
}
