package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/nexus-collab/apiserver/config"
	"github.com/nexus-collab/apiserver/internal/auth"
	"github.com/nexus-collab/apiserver/internal/db"
	"github.com/nexus-collab/apiserver/internal/handlers"
	"github.com/nexus-collab/apiserver/internal/logging"
	"github.com/nexus-collab/apiserver/internal/mq"
	"github.com/nexus-collab/apiserver/internal/services"
	"github.com/nexus-collab/apiserver/internal/storage"
	"github.com/nexus-collab/apiserver/internal/store"
	"go.uber.org/zap"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	mq         *mq.MQ
	logger     *zap.Logger
}

// New wires storage, messaging, services and routes from cfg.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Server, error) {
	jwtSecret := strings.TrimSpace(cfg.Auth.JWTSecret)
	if jwtSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	objects, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}

	queue, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("open message queue: %w", err)
	}
	if queue == nil {
		logger.Info("feed events disabled")
	}

	userRepo := store.NewUserRepository(dbConn)
	projectRepo := store.NewProjectRepository(dbConn)
	fileRepo := store.NewFileRepository(dbConn)
	feedRepo := store.NewFeedRepository(dbConn)

	issuer := auth.NewIssuer(jwtSecret, cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL)
	publisher := mq.NewFeedEventPublisher(queue, cfg.MQ.Channel)

	fileService := services.NewFileService(fileRepo, objects, logger.Named("files"))
	projectService := services.NewProjectService(projectRepo, userRepo)
	userService := services.NewUserService(userRepo, fileService, logger.Named("users"))
	feedService := services.NewFeedService(feedRepo, projectService, fileService, publisher, logger.Named("feeds"))
	authService := services.NewAuthService(userRepo, issuer, logger.Named("auth"))

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		logging.RequestLogger(logger.Named("http")),
		middleware.Recoverer,
		cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}),
		middleware.Timeout(60*time.Second),
	)
	handlers.Mount(router, handlers.API{
		Auth:          authService,
		Users:         userService,
		Projects:      projectService,
		Feeds:         feedService,
		Files:         fileService,
		Upload:        cfg.Upload,
		RateLimit:     cfg.RateLimit,
		SecureCookies: cfg.Auth.SecureCookies,
		Logger:        logger,
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		mq:         queue,
		logger:     logger,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then closes the queue and database.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.mq != nil {
		if closeErr := s.mq.Close(); closeErr != nil {
			s.logger.Warn("failed to close message queue", zap.Error(closeErr))
		}
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return err
}
