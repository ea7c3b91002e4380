// Package httpapi implements component K, the operational HTTP surface:
// a liveness/readiness probe and the Prometheus scrape endpoint. Wrapped
// as a suture.Service the same way
// internal/supervisor/services/http_service.go wraps its server, so the
// Supervisor's ops group can own its lifecycle like any other task.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Milkshiift/BigBrother-bot/internal/logging"
)

// ReadinessFunc reports whether the process is ready to be considered
// live. The Supervisor's reports true once it has switched the gateway
// to deliver mode, and false before that and during shutdown; per-guild
// catchup, which runs after that switch, does not affect it.
type ReadinessFunc func() bool

// Server is the operational HTTP surface: /healthz and /metrics.
type Server struct {
	addr    string
	ready   ReadinessFunc
	httpSrv *http.Server
}

// New builds a Server bound to addr (e.g. ":9090"). ready is polled on
// every /healthz request.
func New(addr string, ready ReadinessFunc) *Server {
	s := &Server{addr: addr, ready: ready}
	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())
	s.httpSrv = &http.Server{Addr: addr, Handler: r}
	return s
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	if !s.ready() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("starting"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// String satisfies suture.Service's naming requirement for its event log.
func (s *Server) String() string { return "httpapi.Server(" + s.addr + ")" }

// Serve implements suture.Service: it runs the HTTP server until ctx is
// canceled, then shuts it down gracefully within a bounded timeout.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
			logging.Warn().Err(err).Msg("httpapi server shutdown did not complete cleanly")
			return err
		}
		return nil
	}
}
