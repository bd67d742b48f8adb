package router

import (
	userapp "github.com/orientati/user-service/internal/application"
	"github.com/orientati/user-service/internal/container"
	pginfra "github.com/orientati/user-service/internal/infrastructure/postgres"
	handlers "github.com/orientati/user-service/internal/interface/http"
	"github.com/orientati/user-service/internal/router/modules"
	"github.com/orientati/user-service/pkg/helpers"
)

// InitModules wires repositories, services and handlers from the container
// singletons and registers every feature module with the registry.
// This function should be called once during application startup.
func InitModules(r *Registry) {
	cfg := container.GetConfig()
	logger := container.GetLogger()

	repo := pginfra.NewUserRepository(container.GetPGPool())
	atomic := pginfra.NewTransactionManager(container.GetPGPool())
	tokens := userapp.NewTokenManager(repo, atomic, userapp.SystemClock{}, cfg.VerifyTokenTTL)

	service := userapp.NewService(
		repo,
		atomic,
		tokens,
		container.GetPublisher(),
		helpers.NewBcryptHasher(),
		userapp.SystemClock{},
		cfg.VerifyEmailURL,
		logger,
	)

	r.Add(modules.NewUserModule(handlers.NewUserHandler(service, logger)))
	r.Add(modules.NewHealthModule(handlers.NewHealthHandler(cfg.AppName)))
	if cfg.DebugMetricsEnabled {
		r.Add(modules.NewDebugModule())
	}
}
