package admin

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/scpigo/hislipd/internal/logger"
	internalmetrics "github.com/scpigo/hislipd/internal/metrics"
	"github.com/scpigo/hislipd/pkg/session"
)

// newRouter builds the admin surface: /healthz liveness, /metrics Prometheus
// scrape endpoint, /sessions live-session listing. Distinct from, and never
// reachable via, the out-of-scope LXI HTTP identification endpoint.
func newRouter(registry *session.Registry) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/healthz", http.StatusTemporaryRedirect)
	})
	r.Get("/healthz", healthHandler)
	r.Get("/sessions", sessionsHandler(registry))

	if internalmetrics.IsEnabled() {
		r.Handle("/metrics", internalmetrics.Handler())
	}

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logger.Debug("admin request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).String(),
		)
	})
}
