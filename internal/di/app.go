package di

import (
	"database/sql"

	"relay/config"
	"relay/internal/auth"
	"relay/internal/message"
	"relay/internal/user"
)

// App bundles the wired request-handling components.
type App struct {
	Auth            *auth.Handler
	Users           *user.Handler
	Messages        *message.Handler
	Middleware      *auth.Middleware
	PasswordLimiter *auth.RateLimiter
}

// NewApp collects the wired handlers.
func NewApp(
	authHandler *auth.Handler,
	userHandler *user.Handler,
	messageHandler *message.Handler,
	middleware *auth.Middleware,
	passwordLimiter *auth.RateLimiter,
) *App {
	return &App{
		Auth:            authHandler,
		Users:           userHandler,
		Messages:        messageHandler,
		Middleware:      middleware,
		PasswordLimiter: passwordLimiter,
	}
}

// ProvideUserRepository builds the user repository with the configured
// bcrypt cost.
func ProvideUserRepository(cfg *config.Config, db *sql.DB) user.Repository {
	return user.NewRepository(db, cfg.BcryptCost)
}

// ProvidePasswordLimiter builds the limiter guarding password changes.
func ProvidePasswordLimiter(cfg *config.Config) *auth.RateLimiter {
	return auth.NewRateLimiter(cfg.PasswordRateLimit, cfg.PasswordRateWindow)
}
