package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"lethe_console/internal/app"
	"lethe_console/internal/drives"
	"lethe_console/internal/reporting"
)

type apiHandlers struct {
	console Console
}

func (h *apiHandlers) view(w http.ResponseWriter, r *http.Request) error {
	writeJSON(w, http.StatusOK, h.console.GetActiveWipe())
	return nil
}

func (h *apiHandlers) stats(w http.ResponseWriter, r *http.Request) error {
	writeJSON(w, http.StatusOK, h.console.GetStats())
	return nil
}

func (h *apiHandlers) drives(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()
	rows, err := h.console.GetDrives(drives.Filter{
		Status: q.Get("status"),
		Type:   q.Get("type"),
		Query:  q.Get("q"),
	})
	if err != nil {
		return badRequest(err)
	}
	writeJSON(w, http.StatusOK, rows)
	return nil
}

func (h *apiHandlers) logs(w http.ResponseWriter, r *http.Request) error {
	writeJSON(w, http.StatusOK, h.console.GetLogs(r.URL.Query().Get("level")))
	return nil
}

func (h *apiHandlers) logsSummary(w http.ResponseWriter, r *http.Request) error {
	s, ok := h.console.GetLogsSummary()
	if !ok {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "logs summary not available yet"})
		return nil
	}
	writeJSON(w, http.StatusOK, s)
	return nil
}

func (h *apiHandlers) profile(w http.ResponseWriter, r *http.Request) error {
	p, err := h.console.GetDeviceInfo()
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, p)
	return nil
}

func (h *apiHandlers) reports(w http.ResponseWriter, r *http.Request) error {
	files, err := h.console.GetReports()
	if err != nil {
		return &httpError{code: http.StatusInternalServerError, err: err}
	}
	if files == nil {
		files = []reporting.ReportFile{}
	}
	writeJSON(w, http.StatusOK, files)
	return nil
}

func (h *apiHandlers) exportReport(w http.ResponseWriter, r *http.Request) error {
	path, err := h.console.ExportReport()
	if err != nil {
		return &httpError{code: http.StatusInternalServerError, err: err}
	}
	writeJSON(w, http.StatusCreated, map[string]string{"path": path})
	return nil
}

func (h *apiHandlers) wipeModes(w http.ResponseWriter, r *http.Request) error {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"modes":   app.WipeModes(),
		"ciphers": app.Ciphers,
		"default": app.DefaultWipeConfig(""),
	})
	return nil
}

func (h *apiHandlers) startOperation(w http.ResponseWriter, r *http.Request) error {
	var wc app.WipeConfig
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&wc); err != nil {
		return badRequest(fmt.Errorf("invalid request body: %w", err))
	}

	res, err := h.console.StartOperation(wc)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusAccepted, res)
	return nil
}
