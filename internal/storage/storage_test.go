package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func exercise(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, "chatbot_session_id")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, "chatbot_session_id", "a"))
	require.NoError(t, s.Set(ctx, "chatbot_session_id", "b"))
	v, err := s.Get(ctx, "chatbot_session_id")
	require.NoError(t, err)
	require.Equal(t, "b", v)

	require.NoError(t, s.Delete(ctx, "chatbot_session_id"))
	_, err = s.Get(ctx, "chatbot_session_id")
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, s.Delete(ctx, "missing"))
}

func TestMemory(t *testing.T) {
	exercise(t, NewMemory())
}

func TestSQLite(t *testing.T) {
	s := NewSQLite(filepath.Join(t.TempDir(), "chat.db"))
	defer s.Close()
	exercise(t, s)
}

func TestSQLiteSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.db")
	ctx := context.Background()

	first := NewSQLite(path)
	require.NoError(t, first.Set(ctx, "chatbot_session_id", "3fa85f64-5717-4562-b3fc-2c963f66afa6"))
	require.NoError(t, first.Close())

	second := NewSQLite(path)
	defer second.Close()
	v, err := second.Get(ctx, "chatbot_session_id")
	require.NoError(t, err)
	require.Equal(t, "3fa85f64-5717-4562-b3fc-2c963f66afa6", v)
}

func TestSQLiteFallsBackToMemory(t *testing.T) {
	// A directory that does not exist cannot hold the database file.
	s := NewSQLite(filepath.Join(t.TempDir(), "missing", "dir", "chat.db"))
	defer s.Close()
	exercise(t, s)
}
