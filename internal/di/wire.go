//go:build wireinject
// +build wireinject

package di

import (
	"database/sql"

	"github.com/google/wire"
	"github.com/rs/zerolog"

	"relay/config"
	"relay/internal/auth"
	"relay/internal/message"
	"relay/internal/user"
)

// InitializeApp wires the repositories, services and handlers.
func InitializeApp(cfg *config.Config, db *sql.DB, logger zerolog.Logger) *App {
	wire.Build(
		ProvideUserRepository,
		ProvidePasswordLimiter,
		message.NewRepository,
		auth.NewTokenManager,
		auth.NewService,
		auth.NewMiddleware,
		auth.NewHandler,
		user.NewHandler,
		message.NewHandler,
		NewApp,
	)
	return nil
}
