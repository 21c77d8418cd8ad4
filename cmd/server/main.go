package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"chat_backend/internal/config"
	"chat_backend/internal/httpserver"
	"chat_backend/internal/realtime"
	"chat_backend/internal/security"
	"chat_backend/internal/service"
	"chat_backend/internal/store"
	"chat_backend/internal/store/migrations"
	"chat_backend/internal/store/postgres"
	"chat_backend/internal/store/sqlite"
)

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "chat-server",
	Short: "Real-time chat delivery server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCmd.RunE(cmd, args)
	},
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and WebSocket server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return serve(cfg, newLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr))
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		var (
			db      *sql.DB
			dialect string
		)
		switch cfg.Database.Driver {
		case "sqlite":
			db, err = sqlite.Open(cfg.Database.DSN)
			dialect = migrations.SQLite
		case "postgres":
			db, err = postgres.Open(cfg.Database.DSN)
			dialect = migrations.Postgres
		default:
			return fmt.Errorf("driver %q has no migrations", cfg.Database.Driver)
		}
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		if err := migrations.MigrateUp(db, dialect); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		version, dirty, err := migrations.Version(db, dialect)
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}
		fmt.Printf("Schema version: %d (dirty=%t)\n", version, dirty)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a TOML config file (default $CHAT_CONFIG)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}

func serve(cfg *config.Config, logger *slog.Logger) error {
	st, err := store.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	var tokenSvc *security.TokenService
	if cfg.JWTSecret != "" {
		tokenSvc = security.NewTokenService(cfg.JWTSecret, 24*time.Hour)
	}
	if cfg.TrustQueryIdentity {
		logger.Warn("query and header identity are trusted; do not use in production")
	}

	rt := realtime.NewRouter(st, logger.With("component", "realtime"), realtime.Options{
		MaxTextChars: cfg.MaxMessageChars,
	})
	handler := httpserver.NewRouter(cfg, httpserver.Deps{
		Realtime: rt,
		Messages: service.NewMessageService(st.Messages(), st.Groups()),
		Groups:   service.NewGroupService(st.Groups(), rt),
		Tokens:   tokenSvc,
		Logger:   logger.With("component", "ws"),
	})

	srv := &http.Server{
		Addr:        cfg.HTTPAddr(),
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "app", cfg.AppName, "addr", cfg.HTTPAddr(), "db", cfg.Database.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	select {
	case <-stop:
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Hijacked WebSocket connections are not tracked by http.Server.
	rt.Shutdown()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "err", err)
	}
	return nil
}
