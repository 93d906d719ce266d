package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"lethe_console/internal/app"
	"lethe_console/internal/format"
)

var (
	wipeMode string
	ciphers  []string
	noWipe   bool
	force    bool
)

var wipeCmd = &cobra.Command{
	Use:   "wipe <диск>",
	Short: "Запустить затирание диска",
	Args:  cobra.ExactArgs(1),
	RunE:  runWipe,
}

var encryptCmd = &cobra.Command{
	Use:   "encrypt <диск>",
	Short: "Запустить шифрование диска (с затиранием по умолчанию)",
	Args:  cobra.ExactArgs(1),
	RunE:  runEncrypt,
}

var modesCmd = &cobra.Command{
	Use:   "modes",
	Short: "Режимы затирания и алгоритмы шифрования",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("Режимы затирания:")
		for _, m := range app.WipeModes() {
			fmt.Printf("  %-7s %d pass(es), %s, %s\n", m.ID, m.Passes, m.Description, m.Speed)
		}
		fmt.Printf("Алгоритмы шифрования: %s\n", strings.Join(app.Ciphers, ", "))
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{wipeCmd, encryptCmd} {
		c.Flags().StringVarP(&wipeMode, "mode", "m", app.DefaultWipeMode, "Режим затирания (single/3pass/7pass)")
		c.Flags().BoolVarP(&force, "force", "f", false, "Пропустить подтверждение")
	}
	encryptCmd.Flags().StringSliceVar(&ciphers, "cipher", []string{app.DefaultCipher}, "Алгоритмы шифрования (AES,Serpent,Twofish)")
	encryptCmd.Flags().BoolVar(&noWipe, "no-wipe", false, "Шифровать без затирания")

	rootCmd.AddCommand(wipeCmd, encryptCmd, modesCmd)
}

func runWipe(cmd *cobra.Command, args []string) error {
	return startOperation(cmd, app.WipeConfig{
		DriveID:     args[0],
		WipeEnabled: true,
		WipeMode:    wipeMode,
	})
}

func runEncrypt(cmd *cobra.Command, args []string) error {
	wc := app.WipeConfig{
		DriveID:              args[0],
		WipeEnabled:          !noWipe,
		EncryptionEnabled:    true,
		EncryptionAlgorithms: ciphers,
	}
	if wc.WipeEnabled {
		wc.WipeMode = wipeMode
	}
	return startOperation(cmd, wc)
}

func startOperation(cmd *cobra.Command, wc app.WipeConfig) error {
	if err := setup(); err != nil {
		return err
	}

	// Проверяем параметры до обращения к backend
	wc = wc.Normalize()
	if err := wc.Validate(); err != nil {
		return err
	}

	// Таблица дисков нужна для проверок безопасности
	a, _, err := snapshot(cmd.Context())
	if err != nil {
		return err
	}

	if !force && cfg.Security.RequireConfirmation {
		if !confirm(os.Stdin, os.Stdout, wc) {
			logger.Log("INFO", "Операция отменена пользователем", "drive", wc.DriveID)
			fmt.Println("Отменено")
			return nil
		}
	}

	res, err := a.StartOperation(wc)
	if err != nil {
		return err
	}

	fmt.Printf("Запущено: %s на %s\n", res.Operation, res.Drive)
	if res.Response != nil {
		if res.Response.JobID != "" {
			fmt.Printf("  job: %s\n", res.Response.JobID)
		}
		if res.Response.Message != "" {
			fmt.Printf("  %s\n", res.Response.Message)
		}
	}
	return nil
}

// confirm спрашивает подтверждение; согласие только "y" или "yes"
func confirm(in io.Reader, out io.Writer, wc app.WipeConfig) bool {
	fmt.Fprintf(out, "ВНИМАНИЕ: данные на %s будут уничтожены без возможности восстановления.\n", wc.DriveID)
	if wc.WipeEnabled {
		fmt.Fprintf(out, "  Затирание: %s\n", wc.WipeMode)
	}
	if wc.EncryptionEnabled {
		fmt.Fprintf(out, "  Шифрование: %s\n", format.List(wc.EncryptionAlgorithms))
	}
	fmt.Fprint(out, "Продолжить? (y/N): ")

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
