// Package server exposes a chat store as the paged-list HTTP data service.
package server

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/diogo/chathist/internal/logging"
	"github.com/diogo/chathist/internal/models"
)

// SessionCookie is the cookie carrying the session token.
const SessionCookie = "chathist_session"

// ChatStore defines the store operations the service needs.
type ChatStore interface {
	FetchPage(ctx context.Context, userID, cursor string, limit int) (*models.Page, error)
	GetChat(ctx context.Context, id string) (*models.Chat, error)
	DeleteChat(ctx context.Context, id string) error
	UpdateTitle(ctx context.Context, id, title string) (*models.Chat, error)
}

// Config holds the listener and access settings.
type Config struct {
	Addr          string
	Token         string // empty disables authentication
	RatePerSecond float64
	Burst         int
}

// DefaultConfig returns the settings used when none are configured
func DefaultConfig() Config {
	return Config{
		Addr:          "127.0.0.1:8420",
		RatePerSecond: 10,
		Burst:         20,
	}
}

// Server serves the chat API.
type Server struct {
	cfg         Config
	store       ChatStore
	logger      zerolog.Logger
	router      chi.Router
	server      *http.Server
	rateLimiter *RateLimiter
}

// New creates a server over store.
func New(cfg Config, store ChatStore) *Server {
	defaults := DefaultConfig()
	if cfg.Addr == "" {
		cfg.Addr = defaults.Addr
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = defaults.RatePerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = defaults.Burst
	}

	s := &Server{
		cfg:    cfg,
		store:  store,
		logger: logging.Component("server"),
	}
	s.router = s.setupRouter()
	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

func (s *Server) setupRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(s.loggerMiddleware)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))

	s.rateLimiter = NewRateLimiter(s.cfg.RatePerSecond, s.cfg.Burst)
	r.Use(RateLimitMiddleware(s.rateLimiter))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Get("/chats", s.handleListChats)
		r.Get("/chats/{id}", s.handleGetChat)
		r.Delete("/chats/{id}", s.handleDeleteChat)
		r.Patch("/chats/{id}", s.handleUpdateTitle)
	})

	return r
}

// Start listens until Shutdown is called. After Shutdown it returns
// http.ErrServerClosed.
func (s *Server) Start() error {
	if s.cfg.Token == "" {
		s.logger.Warn().Msg("chat API running without authentication, set server.token in config")
	}

	s.logger.Info().Str("addr", s.cfg.Addr).Msg("starting chat API")
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down chat API")
	return s.server.Shutdown(ctx)
}

// Handler returns the router (used by tests and embedding).
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) loggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", chimw.GetReqID(r.Context())).
				Msg("http request")
		}()

		next.ServeHTTP(ww, r)
	})
}

// authMiddleware accepts the token from the session cookie or a bearer header.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Token == "" {
			next.ServeHTTP(w, r)
			return
		}

		token := ""
		if c, err := r.Cookie(SessionCookie); err == nil {
			token = c.Value
		}
		if token == "" {
			token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		}

		if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.Token)) != 1 {
			s.logger.Warn().
				Str("path", r.URL.Path).
				Str("remote_addr", r.RemoteAddr).
				Str("token", logging.MaskSecret(token)).
				Msg("unauthorized request")
			writeError(w, http.StatusUnauthorized, "unauthorized", "Invalid or missing session")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
