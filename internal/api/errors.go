package api

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	// ErrNetwork запрос не дошёл до backend или ответ не прочитан
	ErrNetwork = errors.New("network failure")
	// ErrParse ответ не JSON или не совпадает по форме
	ErrParse = errors.New("parse failure")
)

// StatusError backend ответил кодом вне 2xx
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend %s returned status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// Reason классифицирует ошибку опроса для логов и метрик
func Reason(err error) string {
	var se *StatusError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &se):
		return "status"
	case errors.Is(err, ErrParse):
		return "parse"
	case errors.Is(err, ErrNetwork):
		return "network"
	default:
		return "other"
	}
}
