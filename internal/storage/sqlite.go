package storage

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/comigor/ethiochat/internal/logger"
)

// SQLite persists keys in a kv table. The database is opened lazily on first
// use; if opening or creating the table fails, the store keeps working in
// memory so the widget stays usable.
type SQLite struct {
	path string

	once    sync.Once
	db      *sql.DB
	initErr error

	mem *Memory
}

func NewSQLite(path string) *SQLite {
	return &SQLite{path: path, mem: NewMemory()}
}

func (s *SQLite) init() {
	db, err := OpenDB(s.path)
	if err != nil {
		s.initErr = err
		logger.L.Warn("sqlite open failed; using in-memory store", "path", s.path, "error", err)
		return
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		s.initErr = err
		db.Close()
		logger.L.Warn("sqlite table creation failed; using in-memory store", "error", err)
		return
	}
	s.db = db
	logger.L.Info("sqlite store initialized", "path", s.path)
}

func (s *SQLite) ready() bool {
	s.once.Do(s.init)
	return s.initErr == nil && s.db != nil
}

func (s *SQLite) Get(ctx context.Context, key string) (string, error) {
	if !s.ready() {
		return s.mem.Get(ctx, key)
	}
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?;`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return v, nil
}

func (s *SQLite) Set(ctx context.Context, key, value string) error {
	if !s.ready() {
		return s.mem.Set(ctx, key, value)
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at;`, key, value)
	return err
}

func (s *SQLite) Delete(ctx context.Context, key string) error {
	if !s.ready() {
		return s.mem.Delete(ctx, key)
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?;`, key)
	return err
}

func (s *SQLite) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
