package control

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vietddude/stealthwatch/internal/core/config"
	redisclient "github.com/vietddude/stealthwatch/internal/infra/redis"
	"github.com/vietddude/stealthwatch/internal/infra/storage"
	"github.com/vietddude/stealthwatch/internal/infra/storage/memory"
	"github.com/vietddude/stealthwatch/internal/infra/storage/postgres"
)

// Storage bundles the repositories selected by configuration.
// Alerts is nil when no database is configured.
type Storage struct {
	Cursors storage.CursorRepository
	Alerts  storage.AlertRepository
	DB      *postgres.DB
	Redis   *redisclient.Client
	Kind    string
}

// OpenStorage connects the configured backends. PostgreSQL takes
// precedence for cursors, then Redis, then process memory.
func OpenStorage(ctx context.Context, cfg *config.AppConfig, log *slog.Logger) (*Storage, error) {
	s := &Storage{}

	if cfg.Database.URL != "" {
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to migrate db: %w", err)
		}
		s.DB = db
		s.Cursors = postgres.NewCursorRepo(db)
		s.Alerts = postgres.NewAlertRepo(db)
		s.Kind = "postgres"
	}

	if cfg.Redis.Enabled() {
		rc, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			log.Warn("Failed to connect to Redis, stream and cursor cache disabled", "error", err)
		} else {
			s.Redis = rc
			if s.Cursors == nil {
				s.Cursors = redisclient.NewCursorRepo(rc)
				s.Kind = "redis"
			}
		}
	}

	if s.Cursors == nil {
		s.Cursors = memory.NewCursorRepo(memory.NewMemoryStorage())
		s.Kind = "memory"
	}

	log.Info("Storage ready", "cursors", s.Kind, "alerts", s.Alerts != nil, "redis", s.Redis != nil)
	return s, nil
}

// Close releases every open backend.
func (s *Storage) Close() error {
	var firstErr error
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			firstErr = err
		}
	}
	if s.DB != nil {
		if err := s.DB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
