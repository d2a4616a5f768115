// Package web serves the detailing JSON API.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/detailing/internal/claims"
	"github.com/JonMunkholm/detailing/internal/config"
	"github.com/JonMunkholm/detailing/internal/files"
	"github.com/JonMunkholm/detailing/internal/ingest"
	"github.com/JonMunkholm/detailing/internal/tables"
	"github.com/JonMunkholm/detailing/internal/web/middleware"
)

// Deps are the services the API exposes.
type Deps struct {
	Claims    *claims.Service
	Files     *files.Service
	Templates *tables.Registry
	Uploads   *ingest.Limiter

	// Ping reports whether the claim store is reachable. Optional.
	Ping func(ctx context.Context) error
}

// Server is the HTTP server for the detailing API.
type Server struct {
	cfg    *config.Config
	deps   Deps
	router *chi.Mux
	server *http.Server
}

// NewServer creates a Server with its middleware and routes in place.
func NewServer(cfg *config.Config, deps Deps) *Server {
	s := &Server{
		cfg:    cfg,
		deps:   deps,
		router: chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.StaffUsername(s.cfg.Security.StaffUsernameHeader))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(securityHeaders)
	s.router.Use(middleware.APIKeyAuth(&s.cfg.Security, "/healthz"))

	if s.cfg.Rate.Enabled {
		s.router.Use(newRateLimiter(s.cfg.Rate.RequestsPerMinute).middleware)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))
			r.Get("/templates", s.handleListTemplates)
		})

		r.Route("/detailing", func(r chi.Router) {
			// Uploads and processing run under their own, longer timeout.
			r.Group(func(r chi.Router) {
				if s.cfg.Rate.Enabled {
					r.Use(newRateLimiter(s.cfg.Rate.UploadLimit).middleware)
				}
				r.Use(chimw.Timeout(s.cfg.Upload.Timeout))
				r.Post("/claims/{jobId}/file-sets", s.handleSubmitFileSet)
				r.Post("/claims/{jobId}/file-sets/{fileSetId}/process", s.handleProcessFileSet)
				r.Get("/claims/{jobId}/{username}/{claimedAt}/file-sets/{fileSetId}/archive", s.handleDownloadArchive)
			})

			r.Group(func(r chi.Router) {
				r.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))

				r.Post("/claims/{jobId}", s.handleClaim)
				r.Post("/claims/{jobId}/pause", s.handlePause)
				r.Post("/claims/{jobId}/resume", s.handleResume)
				r.Post("/claims/{jobId}/cancel", s.handleCancel)
				r.Post("/claims/{jobId}/complete", s.handleComplete)

				r.Get("/claims/{jobId}", s.handleActiveClaim)
				r.Get("/claims/{jobId}/history", s.handleHistory)
				r.Get("/claims/{jobId}/file-sets", s.handleClaimFileSets)
				r.Get("/claims/{jobId}/{username}/{claimedAt}", s.handleGetClaim)

				r.Get("/active", s.handleActiveClaims)
				r.Get("/users/{username}/claims", s.handleUserClaims)
				r.Get("/my-claims", s.handleMyClaims)
				r.Get("/jobs/{jobId}/file-sets", s.handleJobFileSets)
			})
		})
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", addr)
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

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

type healthResponse struct {
	Status    string         `json:"status"`
	Store     string         `json:"store"`
	Uploads   *ingest.Status `json:"uploads,omitempty"`
	Templates int            `json:"templates"`
	Time      time.Time      `json:"time"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Store: "ok", Time: time.Now().UTC()}
	if s.deps.Templates != nil {
		resp.Templates = s.deps.Templates.Len()
	}
	if s.deps.Uploads != nil {
		st := s.deps.Uploads.Status()
		resp.Uploads = &st
	}

	status := http.StatusOK
	if s.deps.Ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Ping(ctx); err != nil {
			slog.Warn("health: store unreachable", "error", err)
			resp.Status = "degraded"
			resp.Store = "unreachable"
			status = http.StatusServiceUnavailable
		}
	}
	writeJSONStatus(w, status, resp)
}
