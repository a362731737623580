// Package server exposes games, installations and volumes over HTTP.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/thrane20/dillinger/internal/config"
	"github.com/thrane20/dillinger/internal/events"
	"github.com/thrane20/dillinger/internal/metrics"
)

// Server is the dillinger HTTP API.
type Server struct {
	cfg        *config.Config
	games      GameService
	installs   InstallService
	volumes    VolumeService
	hub        *events.Hub
	docker     DockerHealth
	installers InstallerLister
	db         DBPinger
	sessions   sessions
	http       *http.Server
}

// Deps are the services the server routes to. Games, Installs and Volumes
// are required; the rest may be nil.
type Deps struct {
	Games      GameService
	Installs   InstallService
	Volumes    VolumeService
	Hub        *events.Hub
	Docker     DockerHealth
	Installers InstallerLister
	DB         DBPinger
}

// New creates a new Server.
func New(cfg *config.Config, deps Deps) *Server {
	s := &Server{
		cfg:        cfg,
		games:      deps.Games,
		installs:   deps.Installs,
		volumes:    deps.Volumes,
		hub:        deps.Hub,
		docker:     deps.Docker,
		installers: deps.Installers,
		db:         deps.DB,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/platforms", s.handleListPlatforms)

	// API routes: games and platform configs
	mux.HandleFunc("GET /api/games", s.handleListGames)
	mux.HandleFunc("POST /api/games", s.withAuth(s.handleCreateGame))
	mux.HandleFunc("GET /api/games/{id}", s.handleGetGame)
	mux.HandleFunc("DELETE /api/games/{id}", s.withAuth(s.handleDeleteGame))
	mux.HandleFunc("POST /api/games/{id}/platforms/select", s.withAuth(s.handleSelectPlatform))
	mux.HandleFunc("POST /api/games/{id}/platforms", s.withAuth(s.handleAddPlatform))
	mux.HandleFunc("PUT /api/games/{id}/platforms/{pid}", s.withAuth(s.handleCommitDraft))
	mux.HandleFunc("DELETE /api/games/{id}/platforms/{pid}", s.withAuth(s.handleRemovePlatform))
	mux.HandleFunc("PUT /api/games/{id}/default-platform", s.withAuth(s.handleSetDefaultPlatform))
	mux.HandleFunc("POST /api/games/{id}/platforms/{pid}/lutris", s.withAuth(s.handleAttachLutris))
	mux.HandleFunc("PUT /api/games/{id}/platforms/{pid}/lutris/selected", s.withAuth(s.handleSelectLutris))

	// API routes: installation lifecycle
	const inst = "/api/games/{id}/platforms/{pid}/installation"
	mux.HandleFunc("GET "+inst, s.handleGetInstallation)
	mux.HandleFunc("POST "+inst+"/start", s.withAuth(s.handleStartInstall))
	mux.HandleFunc("POST "+inst+"/poll", s.handlePollInstall)
	mux.HandleFunc("POST "+inst+"/cancel", s.withAuth(s.handleCancelInstall))
	mux.HandleFunc("POST "+inst+"/reset", s.withAuth(s.handleResetInstall))
	mux.HandleFunc("GET "+inst+"/logs", s.handleInstallLogs)
	mux.HandleFunc("GET "+inst+"/stream", s.handleInstallStream)
	mux.HandleFunc("GET "+inst+"/terminal", s.withAuth(s.handleTerminal))

	// API routes: volumes
	mux.HandleFunc("GET /api/volumes", s.handleListVolumes)
	mux.HandleFunc("POST /api/volumes", s.withAuth(s.handleCreateVolume))
	mux.HandleFunc("GET /api/volumes/unmanaged", s.handleUnmanagedVolumes)
	mux.HandleFunc("GET /api/volumes/defaults", s.handleVolumeDefaults)
	mux.HandleFunc("GET /api/volumes/defaults/{purpose}", s.handleResolveDefault)
	mux.HandleFunc("GET /api/volumes/{id}", s.handleGetVolume)
	mux.HandleFunc("DELETE /api/volumes/{id}", s.withAuth(s.handleRemoveVolume))
	mux.HandleFunc("PUT /api/volumes/{id}/purpose", s.withAuth(s.handleReassignPurpose))
	mux.HandleFunc("PUT /api/volumes/{id}/storage-type", s.withAuth(s.handleSetStorageType))
	mux.HandleFunc("GET /api/volumes/{id}/usage", s.handleVolumeUsage)

	// Auth
	if cfg.Auth.Mode == config.AuthModePassword {
		mux.HandleFunc("POST /api/auth/login", s.handleLogin)
		mux.HandleFunc("POST /api/auth/logout", s.handleLogout)
		mux.HandleFunc("GET /api/auth/check", s.handleAuthCheck)
	}

	if cfg.Metrics.Enabled {
		metrics.RegisterHandler(mux)
	}

	var handler http.Handler = mux
	handler = maxBodyMiddleware(handler, 1<<20) // lutris scripts stay well under 1 MB
	handler = corsMiddleware(handler)
	handler = logMiddleware(handler)

	s.http = &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.http.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.http.Addr
}

// Handler returns the root handler, middleware included.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

func maxBodyMiddleware(next http.Handler, maxBytes int64) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil && strings.HasPrefix(r.URL.Path, "/api/") && r.Method != http.MethodGet &&
			!strings.Contains(r.Header.Get("Upgrade"), "websocket") {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response code for the access log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController and websocket.Accept reach the
// underlying writer's Hijacker.
func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		if r.URL.Path == "/metrics" {
			return
		}
		log.Printf("[http] %s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Millisecond))
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			host := r.Host
			if strings.HasPrefix(origin, "http://"+host) || strings.HasPrefix(origin, "https://"+host) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}
			if strings.Contains(origin, "://localhost:") || strings.Contains(origin, "://127.0.0.1:") {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Upgrade, Connection")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// allowedOriginPatterns returns WebSocket origin patterns matching the server's host.
func (s *Server) allowedOriginPatterns(r *http.Request) []string {
	patterns := []string{"localhost:*", "127.0.0.1:*"}
	if host := r.Host; host != "" {
		h := host
		if idx := strings.LastIndex(h, ":"); idx > 0 {
			h = h[:idx]
		}
		patterns = append(patterns, h+":*", host)
	}
	return patterns
}

func pathIDs(r *http.Request) (string, string) {
	return r.PathValue("id"), r.PathValue("pid")
}

func notConfigured(name string) string {
	return fmt.Sprintf("%s not available", name)
}
