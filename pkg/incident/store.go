package incident

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/user/gosec-posture/pkg/config"
)

// Store persists incident records. Inserts are serialized; lists may run
// concurrently and always see whole records.
type Store interface {
	Insert(ctx context.Context, r Record) (string, error)
	List(ctx context.Context, q Query) ([]Record, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// Open returns the backend selected in cfg.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Incidents.Backend {
	case config.BackendMemory:
		return NewMemoryStore(), nil
	case config.BackendFile, "":
		path, err := cfg.IncidentPath()
		if err != nil {
			return nil, err
		}
		logger.Debug("opening incident file", zap.String("path", path))
		return OpenFileStore(path)
	case config.BackendPostgres:
		dsn, err := cfg.DSN()
		if err != nil {
			return nil, err
		}
		return OpenPostgresStore(ctx, dsn, logger)
	default:
		return nil, fmt.Errorf("unknown incident backend %q", cfg.Incidents.Backend)
	}
}
