package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/calebreed/parley/internal/config"
	"github.com/calebreed/parley/internal/session"
	"github.com/calebreed/parley/internal/storage"
	"github.com/calebreed/parley/internal/tools"
)

// Server is the HTTP server for the Parley API. Functions the tool registry
// provides are executed server-side during an exchange; anything else is
// handed back to the HTTP caller, who executes it and posts the result.
type Server struct {
	cfg      *config.Config
	store    storage.Store
	registry *tools.Registry
	sessions *session.Manager
	router   chi.Router
	http     *http.Server
}

// New creates a new Server.
func New(cfg *config.Config, store storage.Store, registry *tools.Registry) *Server {
	s := &Server{
		cfg:      cfg,
		store:    store,
		registry: registry,
		sessions: session.NewManager(),
		router:   chi.NewRouter(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := s.router

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(jsonContentType)

		// Sessions
		r.Get("/sessions", s.handleListSessions)
		r.Post("/sessions", s.handleCreateSession)
		r.Get("/sessions/{id}", s.handleGetSession)
		r.Delete("/sessions/{id}", s.handleDeleteSession)
		r.Post("/sessions/{id}/archive", s.handleArchiveSession)

		// Turns and exchanges
		r.Get("/sessions/{id}/turns", s.handleGetTurns)
		r.Get("/sessions/{id}/export", s.handleExportSession)
		r.Post("/sessions/{id}/completions", s.handleCompletion)
		r.Post("/sessions/{id}/function-result", s.handleFunctionResult)

		// WebSocket (upgrade hijacks the connection)
		r.Get("/sessions/{id}/ws", s.handleWebSocket)

		// Functions available from the tool registry
		r.Get("/functions", s.handleListFunctions)
	})
}

// jsonContentType sets Content-Type to application/json for API routes.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// Start begins listening on the configured address.
func (s *Server) Start() error {
	addr := s.cfg.Server.Addr()
	s.http = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	log.Printf("Parley server starting on http://%s", addr)
	return s.http.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down server...")
	s.sessions.CloseAll()

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return s.http.Shutdown(shutdownCtx)
}
