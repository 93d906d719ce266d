package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"lethe_console/internal/format"
	"lethe_console/internal/status"
)

var watchJSON bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Показывать текущую операцию в терминале",
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchJSON, "json", false, "Выводить представление построчно в JSON")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if err := setup(); err != nil {
		return err
	}

	view := newTerminalView(os.Stdout, watchJSON)
	a, err := newApp(view)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	if err := a.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()

	// сначала останавливаем опрос, чтобы наблюдатель больше не вызывался
	err = a.Shutdown(ctx)
	view.finish()
	return err
}

var barTheme = progressbar.Theme{
	Saucer:        "[green]=[reset]",
	SaucerHead:    "[green]>[reset]",
	SaucerPadding: " ",
	BarStart:      "[",
	BarEnd:        "]",
}

// terminalView рисует представление в терминале
type terminalView struct {
	mu      sync.Mutex
	out     io.Writer
	asJSON  bool
	bar     *progressbar.ProgressBar
	kind    status.Kind
	device  string
	started bool
	stats   status.StatsSummary
}

func newTerminalView(out io.Writer, asJSON bool) *terminalView {
	return &terminalView{out: out, asJSON: asJSON}
}

func (t *terminalView) PollFailed(endpoint string, err error) {}

func (t *terminalView) StatsChanged(s status.StatsSummary) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s == t.stats || t.asJSON {
		t.stats = s
		return
	}
	t.stats = s
	if !s.Known {
		return
	}
	t.clearBar()
	fmt.Fprintf(t.out, "Дисков: %d, зашифровано: %d (%d%%), затираний: %d\n",
		s.DrivesDetected, s.DrivesEncrypted, s.EncryptedPercent, s.WipesInProgress)
}

func (t *terminalView) ViewChanged(v status.View) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.asJSON {
		b, err := json.Marshal(v)
		if err == nil {
			fmt.Fprintln(t.out, string(b))
		}
		return
	}

	card := format.ActiveWipe(v)
	if !t.started || v.Kind != t.kind || v.Device() != t.device {
		t.started = true
		t.kind = v.Kind
		t.device = v.Device()
		t.clearBar()
		t.announce(card)
	}

	switch v.Kind {
	case status.KindEncryptionRunning:
		if t.bar == nil {
			t.bar = percentBar(t.out, card.Device)
		}
		t.bar.Describe(fmt.Sprintf("%s %s %s", card.Device, card.Files, card.CurrentFile))
		_ = t.bar.Set(v.ProgressPercent)
	case status.KindDoDWipeRunning, status.KindResolving:
		if t.bar == nil {
			t.bar = spinner(t.out)
		}
		if v.Kind == status.KindDoDWipeRunning {
			t.bar.Describe(fmt.Sprintf("%s %s", card.Device, card.Elapsed))
		} else {
			t.bar.Describe(card.Message)
		}
		_ = t.bar.Add(1)
	}
}

func (t *terminalView) announce(card format.ActiveWipeCard) {
	switch t.kind {
	case status.KindEncryptionRunning:
		fmt.Fprintf(t.out, "%s: %s (%s), алгоритмы: %s\n", card.Title, card.Headline, card.Device, card.Ciphers)
	case status.KindDoDWipeRunning:
		fmt.Fprintf(t.out, "%s: %s (%s), начато %s\n", card.Title, card.Headline, card.Device, card.StartedAt)
	case status.KindResolving:
	default:
		msg := card.Message
		if t.kind == status.KindIdle {
			msg = card.Headline
		}
		fmt.Fprintf(t.out, "%s: %s\n", card.Title, msg)
	}
}

func (t *terminalView) clearBar() {
	if t.bar == nil {
		return
	}
	_ = t.bar.Finish()
	fmt.Fprintln(t.out)
	t.bar = nil
}

func (t *terminalView) finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clearBar()
}

func percentBar(out io.Writer, desc string) *progressbar.ProgressBar {
	return progressbar.NewOptions(100,
		progressbar.OptionSetWriter(out),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionSetTheme(barTheme),
	)
}

func spinner(out io.Writer) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionShowElapsedTimeOnFinish(),
	)
}
