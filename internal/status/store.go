package status

import (
	"fmt"

	"github.com/raaihank/incident-sentinel/internal/config"
	"github.com/raaihank/incident-sentinel/internal/logger"
)

// New builds the store selected by cfg.Backend
func New(cfg config.StorageConfig, log *logger.Logger) (Store, error) {
	maxUpdates := cfg.MaxUpdates
	if maxUpdates <= 0 {
		maxUpdates = DefaultMaxUpdates
	}

	switch cfg.Backend {
	case "memory":
		return NewMemoryStore(maxUpdates), nil
	case "file", "":
		return NewFileStore(cfg.File.Path, maxUpdates, log)
	case "redis":
		return NewRedisStore(cfg.Redis, maxUpdates, log)
	case "postgres":
		return NewPostgresStore(cfg.Postgres, maxUpdates, log)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, cfg.Backend)
	}
}
