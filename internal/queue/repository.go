package queue

import (
	"context"
	"fmt"

	"sheetdrip/internal/domain"
)

// Repository persists the queue and config snapshots. Each snapshot is
// durable and reloadable independently of the other.
type Repository interface {
	SaveQueue(ctx context.Context, items []domain.QueueItem) error
	LoadQueue(ctx context.Context) ([]domain.QueueItem, error)
	SaveConfig(ctx context.Context, cfg domain.AutomatorConfig) error
	// LoadConfig reports false when no config snapshot was ever saved.
	LoadConfig(ctx context.Context) (domain.AutomatorConfig, bool, error)
	Close() error
}

// Open returns the repository for driver ("sqlite" or "bolt") at path.
func Open(driver, path string) (Repository, error) {
	switch driver {
	case "", "sqlite":
		return OpenSQLite(path)
	case "bolt":
		return NewBoltRepo(path)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}
