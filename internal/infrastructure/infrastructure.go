// Package infrastructure provides core service initialization for application startup.
// It assembles common dependencies (logging, persistence, storage, identity, and the
// extraction collaborator) that domain systems require.
package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/hashicorp/go-memdb"

	"github.com/JaimeStill/sift/internal/config"
	"github.com/JaimeStill/sift/internal/extraction"
	"github.com/JaimeStill/sift/internal/memory"
	"github.com/JaimeStill/sift/pkg/auth"
	"github.com/JaimeStill/sift/pkg/database"
	"github.com/JaimeStill/sift/pkg/lifecycle"
	"github.com/JaimeStill/sift/pkg/storage"
)

// Infrastructure holds the core systems required by all domain modules.
// Exactly one of Database and Memory is set, selected by the configured store.
type Infrastructure struct {
	Lifecycle  *lifecycle.Coordinator
	Logger     *slog.Logger
	Database   database.System
	Memory     *memdb.MemDB
	Storage    storage.System
	Auth       *auth.System
	Extraction extraction.Client
	Dispatcher *extraction.Dispatcher
}

// New creates an Infrastructure from the application configuration.
// It initializes all systems but does not start them; call Start separately.
func New(cfg *config.Config) (*Infrastructure, error) {
	lc := lifecycle.New()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level()}))

	infra := &Infrastructure{
		Lifecycle:  lc,
		Logger:     logger,
		Dispatcher: extraction.NewDispatcher(cfg.Extraction.Concurrency, logger),
	}

	switch cfg.Store {
	case config.StoreMemory:
		db, err := memory.New()
		if err != nil {
			return nil, fmt.Errorf("memory store init failed: %w", err)
		}
		infra.Memory = db
		logger.Warn("using in-memory store, records are lost on exit")
	default:
		db, err := database.New(&cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("database init failed: %w", err)
		}
		infra.Database = db
	}

	store, err := storage.New(&cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("storage init failed: %w", err)
	}
	infra.Storage = store

	identity, err := auth.New(context.Background(), &cfg.Auth, logger)
	if err != nil {
		return nil, fmt.Errorf("auth init failed: %w", err)
	}
	infra.Auth = identity

	if cfg.Extraction.BaseURL == "" {
		logger.Info("no extraction base_url, awaiting collaborator callbacks")
		infra.Extraction = extraction.Deferred()
	} else {
		infra.Extraction = extraction.NewClient(&cfg.Extraction)
	}

	return infra, nil
}

// Start registers all infrastructure systems with the lifecycle coordinator.
func (i *Infrastructure) Start() error {
	if i.Database != nil {
		if err := i.Database.Start(i.Lifecycle); err != nil {
			return fmt.Errorf("database start failed: %w", err)
		}
	}
	if err := i.Storage.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("storage start failed: %w", err)
	}
	if err := i.Dispatcher.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("dispatcher start failed: %w", err)
	}
	return nil
}
