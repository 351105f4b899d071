package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
	"sheetdrip/internal/domain"
)

const configKey = "automator_config"

// EnsureSchema creates tables if they don't exist.
func EnsureSchema(db *sql.DB) error {
	schema := `
PRAGMA journal_mode=WAL;
CREATE TABLE IF NOT EXISTS queue_items (
  id TEXT PRIMARY KEY,
  position INTEGER NOT NULL,
  url TEXT NOT NULL UNIQUE,
  status TEXT NOT NULL CHECK(status IN ('pending','processing','completed','failed')) DEFAULT 'pending',
  guestbook_status TEXT NOT NULL DEFAULT '',
  guestbook_count INTEGER NOT NULL DEFAULT 0,
  submitted_at DATETIME,
  error TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_queue_items_position ON queue_items(position);
CREATE TABLE IF NOT EXISTS settings (
  key TEXT PRIMARY KEY,
  value BLOB NOT NULL,
  updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`
	_, err := db.Exec(schema)
	return err
}

type sqliteRepo struct{ db *sql.DB }

// OpenSQLite opens (or creates) the database at path and ensures the schema.
func OpenSQLite(path string) (Repository, error) {
	dsn := fmt.Sprintf("file:%s?cache=shared&mode=rwc&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite single writer
	if err := EnsureSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &sqliteRepo{db: db}, nil
}

func NewSQLiteRepo(db *sql.DB) Repository { return &sqliteRepo{db: db} }

// SaveQueue rewrites the whole snapshot in one transaction.
func (r *sqliteRepo) SaveQueue(ctx context.Context, items []domain.QueueItem) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM queue_items`); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO queue_items (id,position,url,status,guestbook_status,guestbook_count,submitted_at,error)
VALUES (?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, it := range items {
		var submitted sql.NullTime
		if it.SubmittedAt != nil {
			submitted = sql.NullTime{Time: it.SubmittedAt.UTC(), Valid: true}
		}
		if _, err = stmt.ExecContext(ctx, it.ID, i, it.URL, string(it.Status), string(it.GuestbookStatus), it.GuestbookCount, submitted, it.Error); err != nil {
			return fmt.Errorf("insert %s: %w", it.ID, err)
		}
	}
	return tx.Commit()
}

func (r *sqliteRepo) LoadQueue(ctx context.Context) ([]domain.QueueItem, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id,url,status,guestbook_status,guestbook_count,submitted_at,error
FROM queue_items ORDER BY position ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.QueueItem
	for rows.Next() {
		var it domain.QueueItem
		var status, gbStatus string
		var submitted sql.NullTime
		if err := rows.Scan(&it.ID, &it.URL, &status, &gbStatus, &it.GuestbookCount, &submitted, &it.Error); err != nil {
			return nil, err
		}
		it.Status = domain.Status(status)
		it.GuestbookStatus = domain.Status(gbStatus)
		if submitted.Valid {
			t := submitted.Time
			it.SubmittedAt = &t
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *sqliteRepo) SaveConfig(ctx context.Context, cfg domain.AutomatorConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO settings (key,value,updated_at) VALUES (?,?,?)
ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`, configKey, data, time.Now().UTC())
	return err
}

func (r *sqliteRepo) LoadConfig(ctx context.Context) (domain.AutomatorConfig, bool, error) {
	var data []byte
	err := r.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key=?`, configKey).Scan(&data)
	if err == sql.ErrNoRows {
		return domain.AutomatorConfig{}, false, nil
	}
	if err != nil {
		return domain.AutomatorConfig{}, false, err
	}
	var cfg domain.AutomatorConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return domain.AutomatorConfig{}, false, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, true, nil
}

func (r *sqliteRepo) Close() error { return r.db.Close() }
