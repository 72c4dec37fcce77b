package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthChecker is the probe the /healthz endpoint consults.
type HealthChecker interface {
	IsHealthy(ctx context.Context) (bool, error)
}

// OpsServer serves /metrics and /healthz on a dedicated port, separate from
// any worker traffic.
type OpsServer struct {
	server *http.Server
	logger *slog.Logger
}

// NewOpsServer builds the operational HTTP server. The gatherer should be
// the same registry the Collector was registered with.
func NewOpsServer(port int, checker HealthChecker, gatherer prometheus.Gatherer, logger *slog.Logger) *OpsServer {
	log := logger.With("component", "ops_server")

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 5*time.Second)
		defer cancel()

		healthy, err := checker.IsHealthy(ctx)
		if err != nil {
			log.ErrorContext(ctx, "health probe failed", "error", err)
			http.Error(w, "health check error", http.StatusServiceUnavailable)
			return
		}
		if !healthy {
			http.Error(w, "unhealthy", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return &OpsServer{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: log,
	}
}

// Start runs the server until Shutdown or a listener error. It blocks, so
// callers run it in a goroutine.
func (s *OpsServer) Start() error {
	s.logger.Info("ops server listening", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("ops server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *OpsServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
