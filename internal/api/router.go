package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/middleware"
)

// RouterOptions configures the middleware stack.
type RouterOptions struct {
	Logger         *slog.Logger
	RateLimit      middleware.RateLimitConfig
	AllowedOrigins []string
}

// NewRouter mounts h under /healthz and /api/v1. ctx bounds background
// work started by the middleware.
func NewRouter(ctx context.Context, h *Handler, opts RouterOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(opts.Logger))
	r.Use(chimw.Recoverer)
	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", h.Health)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimiter(ctx, opts.RateLimit))
		r.Get("/status", h.Status)
		r.Get("/catalog", h.Catalog)
		r.Get("/runs", h.ListRuns)
		r.Get("/runs/{runID}", h.GetRun)
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, Error{Code: http.StatusNotFound, Message: "not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, Error{Code: http.StatusMethodNotAllowed, Message: "method not allowed"})
	})
	return r
}

// Serve listens on addr until ctx is done, then shuts down gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("status API listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("status API stopped")
	return nil
}
