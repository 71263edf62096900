package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/typoreporter/apiserver/config"
	"github.com/typoreporter/apiserver/internal/account"
	"github.com/typoreporter/apiserver/internal/db"
	"github.com/typoreporter/apiserver/internal/handlers"
	"github.com/typoreporter/apiserver/internal/logging"
	"github.com/typoreporter/apiserver/internal/mq"
	"github.com/typoreporter/apiserver/internal/security"
	"github.com/typoreporter/apiserver/internal/services"
	"github.com/typoreporter/apiserver/internal/storage"
	"github.com/typoreporter/apiserver/internal/store"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	queue      *mq.MQ
	logger     logging.Logger
}

// New constructs a Server from cfg. The message queue and object storage are
// optional and only connected when a backend is configured.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	logger := logging.New(os.Stdout, cfg.LogLevel)

	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	accountRepo := store.NewAccountRepository(dbConn)
	roleRepo := store.NewWorkspaceRoleRepository(dbConn)

	accountService := services.NewAccountService(
		accountRepo,
		roleRepo,
		account.NewPolicy(cfg.Auth.PasswordMinLength),
		security.NewHasher(cfg.Auth.BcryptCost),
		logger,
	)

	queue, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("open mq: %w", err)
	}
	if queue != nil {
		accountService.WithEvents(mq.NewAccountEvents(queue, cfg.MQ.EventsChannel))
		logger.Info(ctx, "account events enabled", "backend", cfg.MQ.Backend, "channel", cfg.MQ.EventsChannel)
	}

	objects, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		if queue != nil {
			_ = queue.Close()
		}
		_ = dbConn.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if objects != nil {
		accountService.WithAvatars(storage.NewAvatars(objects))
		logger.Info(ctx, "avatar storage enabled", "backend", cfg.Storage.Backend, "bucket", objects.Bucket())
	}

	tokens := security.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	router := NewRouter(accountService, tokens, logger)

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		queue:      queue,
		logger:     logger,
	}, nil
}

// NewRouter builds the HTTP routes around an account service.
func NewRouter(accounts *services.AccountService, tokens *security.TokenIssuer, logger logging.Logger) *chi.Mux {
	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	handlers.AuthRouter(router, accounts, tokens, logger)
	router.Route("/account", func(r chi.Router) {
		handlers.AccountRouter(r, accounts, logger, handlers.RequireAuth(tokens))
	})
	return router
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server. It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info(context.Background(), "server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and releases the backing connections.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.queue != nil {
		_ = s.queue.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return err
}
