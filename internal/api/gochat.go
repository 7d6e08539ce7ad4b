package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/npezzotti/go-lag/internal/auth"
	"github.com/npezzotti/go-lag/internal/config"
	"github.com/npezzotti/go-lag/internal/database"
	"github.com/npezzotti/go-lag/internal/server"
)

// Pinger reports backend health.
type Pinger interface {
	Ping(ctx context.Context) error
}

type GoChatApp struct {
	log            *log.Logger
	authn          auth.Authenticator
	profiles       database.ProfileRepository
	health         Pinger
	srv            *http.Server
	cs             *server.ChatServer
	limiter        *limiterPool
	allowedOrigins []string
}

func NewGoChatApp(mux *http.ServeMux, logger *log.Logger, cs *server.ChatServer, authn auth.Authenticator,
	profiles database.ProfileRepository, health Pinger, cfg *config.Config) *GoChatApp {
	s := &GoChatApp{
		log:            logger,
		authn:          authn,
		profiles:       profiles,
		health:         health,
		cs:             cs,
		limiter:        newLimiterPool(cfg.AuthRate, cfg.AuthBurst),
		allowedOrigins: cfg.AllowedOrigins,
	}

	mux.HandleFunc("POST /api/auth/register", s.rateLimit(s.register))
	mux.HandleFunc("POST /api/auth/login", s.rateLimit(s.login))
	mux.HandleFunc("GET /api/auth/session", s.authMiddleware(s.session))
	mux.HandleFunc("POST /api/auth/logout", s.authMiddleware(s.logout))
	mux.HandleFunc("GET /api/users/by-username/{username}", s.rateLimit(s.getUserByUsername))
	mux.HandleFunc("GET /api/users", s.authMiddleware(s.listUsers))
	mux.HandleFunc("PUT /api/users/{id}", s.authMiddleware(s.putUser))
	mux.HandleFunc("GET /api/chats", s.authMiddleware(s.listChats))
	mux.HandleFunc("GET /api/chats/{room}", s.authMiddleware(s.getChat))
	mux.HandleFunc("POST /api/chats/{room}", s.authMiddleware(s.pushMessage))
	mux.HandleFunc("DELETE /api/chats/{room}", s.authMiddleware(s.deleteChat))
	mux.HandleFunc("GET /ws", s.authMiddleware(s.serveWs))
	mux.HandleFunc("GET /healthz", s.healthCheck)

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
	)(mux)

	h = s.errorHandler(h)
	if logger != nil {
		h = handlers.LoggingHandler(logger.Writer(), h)
	}

	s.srv = &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	return s
}

func (s *GoChatApp) Handler() http.Handler {
	return s.srv.Handler
}

func (s *GoChatApp) Start() error {
	s.log.Printf("starting server on %s\n", s.srv.Addr)
	return s.srv.ListenAndServe()
}

func (s *GoChatApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
