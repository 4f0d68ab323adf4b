// Package server wires the dependency graph and the routing table.
//
// This is the composition root: every service, store, and handler is
// constructed here, explicitly, and nowhere else. Routes are declared in
// one table mapping method+path to a handler and an auth requirement, so
// whether an endpoint is public is visible in a single place instead of
// scattered across annotations.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/dpereira/auth-service/internal/auth"
	"github.com/dpereira/auth-service/internal/config"
	"github.com/dpereira/auth-service/internal/handler"
	"github.com/dpereira/auth-service/internal/mail"
	"github.com/dpereira/auth-service/internal/metrics"
	"github.com/dpereira/auth-service/internal/middleware"
	sqliteRepo "github.com/dpereira/auth-service/internal/repository/sqlite"
	"github.com/dpereira/auth-service/internal/service"
)

// authRequirement says what the session guard does for a route.
type authRequirement int

const (
	public authRequirement = iota // no token needed
	protected                     // bearer token required, silent renewal allowed
	limited                       // public, but behind the credential rate limiter
)

// route is one row of the routing table.
type route struct {
	method  string
	pattern string
	handler http.HandlerFunc
	access  authRequirement
}

// Server owns the router and the resources that need closing on shutdown.
type Server struct {
	router  *chi.Mux
	config  *config.Config
	logger  *slog.Logger
	db      *sqliteRepo.DB
	limiter *middleware.RateLimiter
}

// New builds the full dependency graph and the router.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.ResetTokenTTL)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordService()
	refreshTokens := service.NewRefreshTokenService(db, cfg.RefreshTokenTTL, logger)

	var mailer mail.Mailer
	if cfg.SMTPHost != "" {
		mailer = mail.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom)
	} else {
		logger.Warn("SMTP not configured — reset links will be logged, not mailed")
		mailer = mail.NewLogMailer(logger)
	}

	sessions := service.NewAuthService(db, tokens, passwords, refreshTokens, mailer, cfg.ClientURL, logger)

	var googleSvc *service.GoogleAuthService
	if cfg.GoogleClientID != "" {
		provider := auth.NewGoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
		googleSvc = service.NewGoogleAuthService(provider, db, sessions, logger)
	} else {
		logger.Warn("Google OAuth not configured — Google routes disabled")
	}

	userSvc := service.NewUserService(db, refreshTokens, logger)
	collector := metrics.NewCollector()
	limiter := middleware.NewRateLimiter(cfg.AuthRatePerMinute)

	authHandler := handler.NewAuthHandler(
		sessions, googleSvc, collector, logger,
		cfg.IsProduction(), cfg.ClientURL, cfg.AppScheme,
	)
	userHandler := handler.NewUserHandler(userSvc, logger)

	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		db:      db,
		limiter: limiter,
	}

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(logger))

	guard := auth.RequireAuth(tokens, refreshTokens, logger, collector.RecordSilentRenewal)

	routes := []route{
		{http.MethodPost, "/auth/register", authHandler.HandleRegister, limited},
		{http.MethodPost, "/auth/login", authHandler.HandleLogin, limited},
		{http.MethodPost, "/auth/refresh-token", authHandler.HandleRefresh, public},
		{http.MethodPost, "/auth/logout", authHandler.HandleLogout, public},
		{http.MethodPost, "/auth/forgot-password", authHandler.HandleForgotPassword, limited},
		{http.MethodPost, "/auth/reset-password", authHandler.HandleResetPassword, limited},
		{http.MethodGet, "/auth/verify-token", authHandler.HandleVerifyToken, protected},

		{http.MethodGet, "/users", userHandler.HandleList, protected},
		{http.MethodGet, "/users/{id}", userHandler.HandleGet, protected},
		{http.MethodPut, "/users/{id}", userHandler.HandleUpdate, protected},
		{http.MethodDelete, "/users/{id}", userHandler.HandleDelete, protected},
	}

	if googleSvc != nil {
		routes = append(routes,
			route{http.MethodGet, "/auth/google", authHandler.HandleGoogleLogin, public},
			route{http.MethodGet, "/auth/google/callback", authHandler.HandleGoogleCallback, public},
			route{http.MethodPost, "/auth/google/profile", authHandler.HandleGoogleProfile, limited},
		)
	}

	for _, rt := range routes {
		var h http.Handler = rt.handler
		switch rt.access {
		case protected:
			h = guard(h)
		case limited:
			h = limiter.Limit(h)
		}
		s.router.Method(rt.method, rt.pattern, h)
	}

	s.router.Method(http.MethodGet, "/metrics", collector.Handler())
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return s, nil
}

// Start runs the HTTP server until SIGINT/SIGTERM, then shuts down
// gracefully: stop accepting, drain in-flight requests, close the
// database.
func (s *Server) Start() error {
	defer s.db.Close()
	defer s.limiter.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
			slog.String("env", s.config.Env),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

// Router exposes the configured router for httptest-based tests.
func (s *Server) Router() http.Handler {
	return s.router
}
