// Package backend selects the Store implementation from configuration.
package backend

import (
	"fmt"

	"fintrack/internal/config"
	"fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

// CleanupFunc releases resources held by a store.
type CleanupFunc func() error

// Result contains the store instance and an optional cleanup function.
type Result struct {
	Store   services.Store
	Cleanup CleanupFunc
}

// New creates the store named by cfg.DataBackend.
func New(cfg *config.Config, logger *log.Logger) (*Result, error) {
	switch cfg.DataBackend {
	case "sqlite":
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("initialize sqlite store: %w", err)
		}
		logger.Info("Initialized SQLite store", "db_path", cfg.SQLiteDBPath)
		return &Result{Store: repo, Cleanup: repo.Close}, nil

	case "memory":
		logger.Info("Initialized in-memory store")
		return &Result{Store: storage.NewMemoryRepository()}, nil

	default:
		return nil, fmt.Errorf("unsupported data backend: %s", cfg.DataBackend)
	}
}
