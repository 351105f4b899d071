package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
	"sheetdrip/internal/domain"
)

var (
	bucketQueue    = []byte("queue")
	bucketSettings = []byte("settings")

	keySnapshot = []byte("snapshot")
)

// BoltRepo stores each snapshot as a single JSON value.
type BoltRepo struct {
	db *bolt.DB
}

func NewBoltRepo(path string) (*BoltRepo, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketQueue, bucketSettings} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltRepo{db: db}, nil
}

func (r *BoltRepo) SaveQueue(ctx context.Context, items []domain.QueueItem) error {
	if items == nil {
		items = []domain.QueueItem{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to marshal queue: %w", err)
	}
	return r.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketQueue).Put(keySnapshot, data)
	})
}

func (r *BoltRepo) LoadQueue(ctx context.Context) ([]domain.QueueItem, error) {
	var items []domain.QueueItem
	err := r.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketQueue).Get(keySnapshot)
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &items)
	})
	return items, err
}

func (r *BoltRepo) SaveConfig(ctx context.Context, cfg domain.AutomatorConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return r.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSettings).Put([]byte(configKey), data)
	})
}

func (r *BoltRepo) LoadConfig(ctx context.Context) (domain.AutomatorConfig, bool, error) {
	var cfg domain.AutomatorConfig
	found := false
	err := r.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketSettings).Get([]byte(configKey))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &cfg)
	})
	return cfg, found, err
}

func (r *BoltRepo) Close() error { return r.db.Close() }
