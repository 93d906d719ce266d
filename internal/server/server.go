package server

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/handlers"
	"go.uber.org/multierr"

	"lethe_console/internal/logging"
)

// Пути, которые опрашиваются постоянно и не пишутся в access лог
var quietPaths = []string{"/healthz", "/metrics", "/api/v1/view", "/api/v1/stats"}

// Server loopback HTTP API консоли
type Server struct {
	addr    string
	logger  *logging.EnterpriseLogger
	access  io.WriteCloser
	httpSrv *http.Server

	mu       sync.Mutex
	listener net.Listener
	done     chan struct{}
	serveErr error
}

// New собирает сервер; metrics может быть nil, тогда /metrics не регистрируется
func New(addr string, c Console, metrics http.Handler, logger *logging.EnterpriseLogger) *Server {
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	access := logger.Writer()

	router := http.Handler(NewRouter(c, metrics))
	router = FilteredLoggingHandler(access, router, quietPaths...)
	router = handlers.ProxyHeaders(router)
	router = handlers.RecoveryHandler(handlers.RecoveryLogger(logger.Entry()), handlers.PrintRecoveryStack(false))(router)

	return &Server{
		addr:   addr,
		logger: logger,
		access: access,
		httpSrv: &http.Server{
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// FilteredLoggingHandler пишет combined access лог, пропуская GET запросы к paths
func FilteredLoggingHandler(w io.Writer, next http.Handler, paths ...string) http.Handler {
	quiet := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		quiet[p] = struct{}{}
	}
	logged := handlers.CombinedLoggingHandler(w, next)

	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		if req.Method == http.MethodGet {
			if _, ok := quiet[req.URL.Path]; ok {
				next.ServeHTTP(rw, req)
				return
			}
		}
		logged.ServeHTTP(rw, req)
	})
}

// Start открывает порт и обслуживает запросы в фоне
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return errors.New("server already running")
	}

	l, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = l
	s.done = make(chan struct{})

	s.logger.Log("INFO", "HTTP API запущен", "address", l.Addr().String())

	go func() {
		err := s.httpSrv.Serve(l)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		s.mu.Lock()
		s.serveErr = err
		s.mu.Unlock()
		close(s.done)
	}()
	return nil
}

// Addr фактический адрес после Start (полезно при порте 0)
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// Done закрывается, когда Serve завершился; nil до Start
func (s *Server) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Err ошибка Serve после закрытия Done
func (s *Server) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serveErr
}

// Shutdown дожидается завершения активных запросов в пределах ctx
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	started := s.listener != nil
	done := s.done
	s.mu.Unlock()

	var result error
	if started {
		result = multierr.Append(result, s.httpSrv.Shutdown(ctx))
		select {
		case <-done:
			result = multierr.Append(result, s.Err())
		case <-ctx.Done():
			result = multierr.Append(result, ctx.Err())
		}
	}
	result = multierr.Append(result, s.access.Close())

	if result != nil {
		s.logger.Log("ERROR", "Ошибка остановки HTTP API", "error", result)
	} else {
		s.logger.Log("INFO", "HTTP API остановлен")
	}
	return result
}
