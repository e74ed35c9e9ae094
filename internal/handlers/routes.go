package handlers

import (
	"github.com/go-chi/chi/v5"
	"github.com/nexus-collab/apiserver/config"
	"github.com/nexus-collab/apiserver/internal/services"
	"go.uber.org/zap"
)

// API bundles the services served over HTTP.
type API struct {
	Auth          *services.AuthService
	Users         *services.UserService
	Projects      *services.ProjectService
	Feeds         *services.FeedService
	Files         *services.FileService
	Upload        config.UploadConfig
	RateLimit     config.RateLimitConfig
	SecureCookies bool
	Logger        *zap.Logger
}

// Mount registers every route of the API on r.
func Mount(r chi.Router, api API) {
	logger := api.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	authMiddleware := RequireAuth(api.Auth)
	throttle := Throttle(NewLimiter(api.RateLimit.RequestsPerSecond, api.RateLimit.Burst))

	r.Get("/healthz", Healthz)
	r.Route("/auth", func(r chi.Router) {
		AuthRouter(r, NewAuthHandler(api.Auth, api.Users, api.SecureCookies, logger), authMiddleware)
	})
	r.Route("/feed", func(r chi.Router) {
		r.Use(authMiddleware)
		FeedRouter(r, NewFeedHandler(api.Feeds, api.Upload, logger), throttle)
	})
	r.Route("/user", func(r chi.Router) {
		r.Use(authMiddleware)
		UserRouter(r, NewUserHandler(api.Users, api.Upload, logger), RequireAdmin(api.Users))
	})
	r.Route("/project", func(r chi.Router) {
		r.Use(authMiddleware)
		ProjectRouter(r, NewProjectHandler(api.Projects, logger))
	})
	r.Route("/file", func(r chi.Router) {
		r.Use(authMiddleware)
		FileRouter(r, NewFileHandler(api.Files, api.Projects, logger))
	})
}
