// Package session keeps the conversation session id valid and persisted.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/comigor/ethiochat/internal/ident"
	"github.com/comigor/ethiochat/internal/logger"
	"github.com/comigor/ethiochat/internal/storage"
)

// StorageKey is where the session id lives in the local store.
const StorageKey = "chatbot_session_id"

// Manager owns the current session id. Storage failures are logged and the
// in-memory id keeps being used, so a broken store never blocks a send.
type Manager struct {
	store storage.Store

	mu     sync.Mutex
	id     string
	loaded bool
}

func NewManager(store storage.Store) *Manager {
	return &Manager{store: store}
}

// Stored returns the persisted id when it exists and is a valid UUID.
func (m *Manager) Stored(ctx context.Context) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadLocked(ctx)
	return m.id, m.id != ""
}

// Resolve returns an id safe to send, minting and persisting a new one when
// the stored value is absent or fails UUID validation.
func (m *Manager) Resolve(ctx context.Context) (id string, minted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadLocked(ctx)
	if ident.Valid(m.id) {
		return m.id, false
	}
	return m.replaceLocked(ctx), true
}

// Replace discards the current id and persists a fresh one.
func (m *Manager) Replace(ctx context.Context) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loaded = true
	return m.replaceLocked(ctx)
}

// Adopt switches to id when it is a valid UUID different from the current
// one. It reports whether the id changed.
func (m *Manager) Adopt(ctx context.Context, id string) bool {
	id = strings.TrimSpace(id)
	if !ident.Valid(id) {
		if id != "" {
			logger.L.Warn("ignoring invalid session id from backend", "session_id", id)
		}
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadLocked(ctx)
	if strings.EqualFold(id, m.id) {
		return false
	}
	m.id = id
	m.persistLocked(ctx)
	logger.L.Info("adopted session id from backend", "session_id", id)
	return true
}

// Current returns the in-memory id without touching storage.
func (m *Manager) Current() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.id
}

func (m *Manager) loadLocked(ctx context.Context) {
	if m.loaded {
		return
	}
	m.loaded = true
	v, err := m.store.Get(ctx, StorageKey)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return
	case err != nil:
		logger.L.Warn("reading stored session id failed", "error", err)
		return
	}
	v = strings.TrimSpace(v)
	if !ident.Valid(v) {
		logger.L.Warn("stored session id is not a valid uuid", "session_id", v)
		return
	}
	m.id = v
}

func (m *Manager) replaceLocked(ctx context.Context) string {
	m.id = ident.New()
	m.persistLocked(ctx)
	logger.L.Info("minted new session id", "session_id", m.id)
	return m.id
}

func (m *Manager) persistLocked(ctx context.Context) {
	if err := m.store.Set(ctx, StorageKey, m.id); err != nil {
		logger.L.Warn("persisting session id failed", "session_id", m.id, "error", err)
	}
}
