// Package web provides the HTTP server and handlers for backup and restore.
package web

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/fincore/internal/backup"
	"github.com/JonMunkholm/fincore/internal/config"
	"github.com/JonMunkholm/fincore/internal/snapshotstore"
	mw "github.com/JonMunkholm/fincore/internal/web/middleware"
)

// BackupService is the part of backup.Service the handlers use.
type BackupService interface {
	Export(ctx context.Context) (*backup.Snapshot, error)
	Import(ctx context.Context, snap *backup.Snapshot, opts backup.ImportOptions) (*backup.ImportReport, error)
	TakeSnapshot(ctx context.Context) (snapshotstore.ObjectInfo, error)
	ListSnapshots(ctx context.Context) ([]snapshotstore.ObjectInfo, error)
	RestoreSnapshot(ctx context.Context, key string, opts backup.ImportOptions) (*backup.ImportReport, error)
	AuditLog(ctx context.Context, limit int) ([]backup.AuditEntry, error)
	LimiterStatus() backup.LimiterStatus
}

// Server is the HTTP server for the backup API.
type Server struct {
	service BackupService
	cfg     *config.Config
	router  *chi.Mux
	server  *http.Server
}

// NewServer creates a Server. cfg supplies body limits, timeouts and
// security settings.
func NewServer(service BackupService, cfg *config.Config) *Server {
	s := &Server{
		service: service,
		cfg:     cfg,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5, "application/json"))
	s.router.Use(securityHeaders)

	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{
			Error:   "method not allowed",
			Message: r.Method + " is not supported for " + r.URL.Path,
			Code:    "HTTP405",
		})
	})
	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, ErrorResponse{
			Error:   "not found",
			Message: r.URL.Path + " does not exist",
			Code:    "HTTP404",
		})
	})
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Group(func(r chi.Router) {
		r.Use(mw.APIKeyAuth(&s.cfg.Security))

		r.Get("/export", s.handleExport)
		r.Post("/import", s.handleImport)

		r.Get("/snapshots", s.handleListSnapshots)
		r.Post("/snapshots", s.handleTakeSnapshot)
		r.Post("/snapshots/import", s.handleRestoreSnapshot)

		r.Get("/audit-log", s.handleAuditLog)
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	sc := s.cfg.Server
	s.server = &http.Server{
		Addr:         sc.Addr(),
		Handler:      s.router,
		ReadTimeout:  sc.ReadTimeout,
		WriteTimeout: sc.WriteTimeout,
		IdleTimeout:  sc.IdleTimeout,
	}

	slog.Info("starting server", "addr", sc.Addr())
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")
		if id := requestID(r); id != "" {
			w.Header().Set("X-Request-Id", id)
		}
		next.ServeHTTP(w, r)
	})
}
