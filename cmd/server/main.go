package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"relay/config"
	"relay/internal/api"
	"relay/internal/auth"
	"relay/internal/database"
	"relay/internal/di"
	"relay/internal/message"
	"relay/internal/user"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}

	db, err := database.Open(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error().Err(err).Msg("error closing database connection")
		}
	}()

	// Migrations run strictly before the server accepts traffic; any
	// failure is fatal.
	migrateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := database.Migrate(migrateCtx, db, logger); err != nil {
		logger.Fatal().Err(err).Msg("migrations failed")
	}

	app := di.InitializeApp(cfg, db, logger)
	defer app.PasswordLimiter.Stop()

	r := mux.NewRouter()
	r.Use(api.RequestLogger(logger))
	auth.RegisterRoutes(r, app.Auth, app.Middleware, app.PasswordLimiter)
	user.RegisterRoutes(r, app.Users)
	message.RegisterRoutes(r, app.Messages, app.Middleware)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("starting server")
	if err := server.ListenAndServe(); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}
