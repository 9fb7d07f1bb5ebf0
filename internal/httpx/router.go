package httpx

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/asad/blobreader/internal/config"
	"github.com/asad/blobreader/internal/core"
	"github.com/asad/blobreader/internal/logging"
)

// NewEdgeRouter builds the handler the server listens with: shared middleware,
// a health endpoint, and every service of registry that cfg enables, mounted
// under "/<service name>".
func NewEdgeRouter(cfg *config.Config, registry *core.Registry, logger logging.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLoggingMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", handleHealth)

	for _, service := range registry.Services() {
		if !cfg.IsServiceEnabled(service.Name()) {
			logger.Info("service disabled", logging.String("service", service.Name()))
			continue
		}
		logger.Info("mounting service", logging.String("service", service.Name()))
		r.Route("/"+service.Name(), service.RegisterRoutes)
	}
	return r
}

// handleHealth answers regardless of which services are enabled.
func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","service":"blobreader"}`))
}

// requestLoggingMiddleware logs one line per request once the handler returns.
func requestLoggingMiddleware(logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("request completed",
				logging.String("request_id", middleware.GetReqID(r.Context())),
				logging.String("method", r.Method),
				logging.String("path", r.URL.Path),
				logging.String("query", r.URL.RawQuery),
				logging.Int("status", ww.Status()),
				logging.Int("bytes", ww.BytesWritten()),
				logging.Duration("latency", time.Since(start)),
				logging.String("remote_addr", r.RemoteAddr),
			)
		})
	}
}
