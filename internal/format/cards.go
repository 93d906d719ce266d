package format

import (
	"fmt"
	"strconv"

	"lethe_console/internal/status"
)

// ActiveWipeCard данные карточки активной операции
type ActiveWipeCard struct {
	State       string `json:"state"`
	Title       string `json:"title"`
	Headline    string `json:"headline"`
	Device      string `json:"device"`
	Progress    int    `json:"progress"`
	Percent     string `json:"percent"`
	Spinner     bool   `json:"spinner"`
	Ciphers     string `json:"ciphers"`
	CurrentFile string `json:"current_file"`
	Files       string `json:"files"`
	StartedAt   string `json:"started_at"`
	Elapsed     string `json:"elapsed"`
	Wipes       string `json:"wipes_in_progress"`
	Message     string `json:"message,omitempty"`
}

// ActiveWipe строит карточку по согласованному представлению
func ActiveWipe(v status.View) ActiveWipeCard {
	card := ActiveWipeCard{
		State:       v.Kind.String(),
		Title:       "Active Wipe",
		Headline:    Missing,
		Device:      Missing,
		Percent:     Missing,
		Ciphers:     Missing,
		CurrentFile: Missing,
		Files:       Missing,
		StartedAt:   Missing,
		Elapsed:     Missing,
		Wipes:       strconv.Itoa(v.WipesInProgress),
	}

	switch v.Kind {
	case status.KindLoading:
		card.Message = "Loading..."
		card.Wipes = Missing
	case status.KindResolving:
		card.Spinner = true
		card.Message = "Checking operation status..."
	case status.KindEncryptionRunning:
		enc := v.Encryption
		card.Headline = "Overwriting sectors..."
		card.Progress = v.ProgressPercent
		card.Percent = Percent(v.ProgressPercent)
		if enc != nil {
			card.Device = Text(enc.Drive)
			card.Ciphers = List(enc.Ciphers)
			card.CurrentFile = Text(enc.CurrentFile)
			card.Files = fmt.Sprintf("%d / %d", enc.Success, enc.TotalFiles)
		}
	case status.KindDoDWipeRunning:
		card.Title = "Active Wipe (DoD)"
		card.Headline = "Secure erase in progress"
		card.Spinner = true
		card.Elapsed = Elapsed(v.Elapsed)
		if v.DoD != nil {
			card.Device = Text(v.DoD.CurrentDisk)
			card.StartedAt = Timestamp(v.DoD.StartedAt)
		}
	default:
		card.Headline = "No active wipes"
		card.Message = "There are currently no data wipes running."
	}
	return card
}

// StatCard одна карточка статистики
type StatCard struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Trend string `json:"trend"`
}

// StatCards строит четыре карточки статистики
func StatCards(s status.StatsSummary) []StatCard {
	if !s.Known {
		return []StatCard{
			{Title: "Drives detected", Value: Missing, Trend: Missing},
			{Title: "Drives encrypted", Value: Missing, Trend: Missing},
			{Title: "Wipes in progress", Value: Missing, Trend: Missing},
			{Title: "Last completed wipe", Value: Missing, Trend: Missing},
		}
	}

	wipesTrend := "No active wipes"
	if s.WipesInProgress > 0 {
		wipesTrend = "Running now"
	}
	lastTrend := "No operation running"
	if s.WipeActive {
		lastTrend = "Running now"
	}

	cards := []StatCard{
		{Title: "Drives detected", Value: strconv.Itoa(s.DrivesDetected), Trend: "Connected to this device"},
		{Title: "Drives encrypted", Value: strconv.Itoa(s.DrivesEncrypted), Trend: fmt.Sprintf("%d%% of total drives", s.EncryptedPercent)},
		{Title: "Wipes in progress", Value: strconv.Itoa(s.WipesInProgress), Trend: wipesTrend},
		{Title: "Last completed wipe", Value: s.LastWipe, Trend: lastTrend},
	}
	if s.Stale {
		for i := range cards {
			cards[i].Trend = StaleTrend
		}
	}
	return cards
}

// StaleTrend подпись карточек, когда dashboard не ответил
const StaleTrend = "Last known value, backend unavailable"
