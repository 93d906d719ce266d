package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"lethe_console/internal/api"
	"lethe_console/internal/app"
	"lethe_console/internal/drives"
	"lethe_console/internal/logs"
	"lethe_console/internal/reporting"
	"lethe_console/internal/security"
)

// Console методы App, которые публикует loopback API
type Console interface {
	GetActiveWipe() app.ActiveWipe
	GetStats() app.Stats
	GetDrives(filter drives.Filter) ([]app.DriveRow, error)
	GetLogs(level string) []logs.Entry
	GetLogsSummary() (logs.Summary, bool)
	GetDeviceInfo() (*api.Profile, error)
	GetReports() ([]reporting.ReportFile, error)
	ExportReport() (string, error)
	StartOperation(wc app.WipeConfig) (*app.StartResult, error)
}

// NewRouter регистрирует маршруты API; metrics может быть nil
func NewRouter(c Console, metrics http.Handler) *mux.Router {
	h := &apiHandlers{console: c}
	router := mux.NewRouter().StrictSlash(true)

	// маршруты на корневом роутере: несовпадение метода даёт 405
	router.Methods("GET").Path("/api/v1/view").Handler(handle(h.view))
	router.Methods("GET").Path("/api/v1/stats").Handler(handle(h.stats))
	router.Methods("GET").Path("/api/v1/drives").Handler(handle(h.drives))
	router.Methods("GET").Path("/api/v1/logs").Handler(handle(h.logs))
	router.Methods("GET").Path("/api/v1/logs/summary").Handler(handle(h.logsSummary))
	router.Methods("GET").Path("/api/v1/profile").Handler(handle(h.profile))
	router.Methods("GET").Path("/api/v1/reports").Handler(handle(h.reports))
	router.Methods("POST").Path("/api/v1/reports").Handler(handle(h.exportReport))
	router.Methods("GET").Path("/api/v1/wipe-modes").Handler(handle(h.wipeModes))
	router.Methods("POST").Path("/api/v1/operations").Handler(handle(h.startOperation))

	router.Methods("GET").Path("/healthz").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if metrics != nil {
		router.Methods("GET").Path("/metrics").Handler(metrics)
	}

	return router
}

type handlerFunc func(w http.ResponseWriter, r *http.Request) error

// httpError ошибка с кодом ответа
type httpError struct {
	code int
	err  error
}

func (e *httpError) Error() string { return e.err.Error() }
func (e *httpError) Unwrap() error { return e.err }

func badRequest(err error) error {
	return &httpError{code: http.StatusBadRequest, err: err}
}

func handle(fn handlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			writeJSON(w, statusCode(err), map[string]string{"error": err.Error()})
		}
	})
}

func statusCode(err error) int {
	var he *httpError
	if errors.As(err, &he) {
		return he.code
	}
	if errors.Is(err, security.ErrBusy) {
		return http.StatusConflict
	}
	if app.IsRejected(err) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusBadGateway
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
