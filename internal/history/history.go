// Package history provides SQLite-based persistence for conversation transcripts.
// The database is opened lazily and created on first use.
// If opening the DB or executing queries fails, the store falls back to memory.
package history

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/comigor/ethiochat/internal/ident"
	"github.com/comigor/ethiochat/internal/logger"
	"github.com/comigor/ethiochat/internal/storage"
)

var errNoPath = errors.New("history: no database path")

// Store keeps transcripts keyed by session id.
type Store struct {
	path string

	mu       sync.Mutex
	messages []Message // in-memory fallback

	dbOnce  sync.Once
	db      *sql.DB
	initErr error
}

// New returns a store backed by the SQLite file at path. An empty path keeps
// the transcript in memory only.
func New(path string) *Store {
	return &Store{path: path}
}

// initDB lazily opens the SQLite database and creates the messages table if it doesn't exist.
func (s *Store) initDB() {
	if s.path == "" {
		s.initErr = errNoPath
		return
	}
	db, err := storage.OpenDB(s.path)
	if err != nil {
		s.initErr = err
		logger.L.Warn("sqlite open failed; using in-memory history", "error", err)
		return
	}
	if _, err = db.Exec(`CREATE TABLE IF NOT EXISTS messages (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		role TEXT,
		content TEXT,
		type TEXT,
		data TEXT,
		created_at DATETIME
	);`); err != nil {
		s.initErr = err
		db.Close()
		logger.L.Warn("sqlite table creation failed; using in-memory history", "error", err)
		return
	}
	s.db = db
	logger.L.Info("sqlite history DB initialized", "path", s.path)
}

func (s *Store) ready() bool {
	s.dbOnce.Do(s.initDB)
	return s.initErr == nil && s.db != nil
}

// Save persists a message to the SQLite database when available and always keeps
// an in-memory copy as fallback. Missing id and time are filled in.
func (s *Store) Save(ctx context.Context, msg Message) Message {
	if msg.ID == "" {
		msg.ID = ident.New()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	if s.ready() {
		var data any
		if len(msg.Data) > 0 {
			data = string(msg.Data)
		}
		_, err := s.db.ExecContext(ctx, `INSERT INTO messages (id, session_id, role, content, type, data, created_at) VALUES (?,?,?,?,?,?,?);`,
			msg.ID, msg.SessionID, msg.Role, msg.Content, msg.Type, data, msg.CreatedAt)
		if err != nil {
			logger.L.Error("failed to store message in sqlite; falling back to memory", "error", err)
		}
	}

	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
	return msg
}

// List returns all messages of a session in chronological order.
func (s *Store) List(ctx context.Context, sessionID string) []Message {
	var out []Message
	if s.ready() {
		rows, err := s.db.QueryContext(ctx, `SELECT id, session_id, role, content, type, data, created_at FROM messages WHERE session_id = ? ORDER BY seq ASC;`, sessionID)
		if err == nil {
			defer rows.Close()
			for rows.Next() {
				var (
					m        Message
					typ, raw sql.NullString
				)
				if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &typ, &raw, &m.CreatedAt); err == nil {
					m.Type = typ.String
					if raw.Valid && raw.String != "" {
						m.Data = []byte(raw.String)
					}
					out = append(out, m)
				}
			}
			return out
		}
		logger.L.Warn("sqlite history query failed; reading memory", "error", err)
	}
	s.mu.Lock()
	for _, m := range s.messages {
		if m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	s.mu.Unlock()
	return out
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
