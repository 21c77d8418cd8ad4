// Package store selects a durable-store backend from configuration.
package store

import (
	"fmt"

	"chat_backend/internal/config"
	"chat_backend/internal/domain"
	"chat_backend/internal/store/memory"
	"chat_backend/internal/store/postgres"
	"chat_backend/internal/store/sqlite"
)

// Open returns the domain.Store named by cfg.Driver, migrated and ready.
func Open(cfg config.DatabaseConfig) (domain.Store, error) {
	switch cfg.Driver {
	case "sqlite":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("dsn required for sqlite database")
		}
		st, err := sqlite.NewStore(cfg.DSN)
		if err != nil {
			return nil, err
		}
		return st, nil
	case "postgres":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("dsn required for postgres database")
		}
		st, err := postgres.NewStore(cfg.DSN)
		if err != nil {
			return nil, err
		}
		return st, nil
	case "memory":
		return memory.NewStore(), nil
	default:
		return nil, fmt.Errorf("unknown database driver: %s", cfg.Driver)
	}
}
