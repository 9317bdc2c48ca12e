package history

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryFallback(t *testing.T) {
	ctx := context.Background()
	s := New("")
	s.Save(ctx, Message{SessionID: "a", Role: "user", Content: "hi"})
	s.Save(ctx, Message{SessionID: "b", Role: "user", Content: "other"})
	got := s.Save(ctx, Message{SessionID: "a", Role: "assistant", Content: "Selam!"})
	require.NotEmpty(t, got.ID)
	require.False(t, got.CreatedAt.IsZero())

	msgs := s.List(ctx, "a")
	require.Len(t, msgs, 2)
	require.Equal(t, "hi", msgs[0].Content)
	require.Equal(t, "Selam!", msgs[1].Content)
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")
	s := New(path)
	s.Save(ctx, Message{SessionID: "a", Role: "user", Content: "weather in gondar"})
	s.Save(ctx, Message{SessionID: "a", Role: "assistant", Content: "Weather in Gondar", Type: "weather", Data: []byte(`{"location":"Gondar"}`)})
	require.NoError(t, s.Close())

	reopened := New(path)
	t.Cleanup(func() { reopened.Close() })
	msgs := reopened.List(ctx, "a")
	require.Len(t, msgs, 2)
	require.Equal(t, "user", msgs[0].Role)
	require.Equal(t, "weather", msgs[1].Type)
	require.JSONEq(t, `{"location":"Gondar"}`, string(msgs[1].Data))
	require.Empty(t, reopened.List(ctx, "missing"))
}
