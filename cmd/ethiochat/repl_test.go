package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/comigor/ethiochat/internal/api"
	"github.com/comigor/ethiochat/internal/auth"
	"github.com/comigor/ethiochat/internal/chat"
	"github.com/comigor/ethiochat/internal/config"
	"github.com/comigor/ethiochat/internal/session"
	"github.com/comigor/ethiochat/internal/storage"
)

type cannedConv struct{}

func (cannedConv) Send(_ context.Context, req api.SendRequest) (*api.SendResponse, error) {
	return &api.SendResponse{SessionID: req.SessionID, Response: api.Reply{Content: "**Axum** is home to ancient obelisks."}}, nil
}

func (cannedConv) History(_ context.Context, sessionID, _ string) (*api.HistoryResponse, error) {
	return &api.HistoryResponse{SessionID: sessionID}, nil
}

func newTestTerminal(t *testing.T) (*terminal, *bytes.Buffer, storage.Store) {
	t.Helper()
	store := storage.NewMemory()
	profile := &auth.Profile{Source: auth.StoreSource{Store: store}}
	ctrl := chat.New(chat.Deps{
		Conversation: cannedConv{},
		Credentials:  profile,
		Sessions:     session.NewManager(store),
	}, config.ChatConfig{ReplyTimeout: 2 * time.Second, RevealDelay: time.Millisecond})
	t.Cleanup(func() { require.NoError(t, ctrl.Close()) })
	var out bytes.Buffer
	return newTerminal(ctrl, store, profile, &out), &out, store
}

func TestTerminalGuestFlow(t *testing.T) {
	term, out, store := newTestTerminal(t)
	ctx := context.Background()
	require.NoError(t, term.ctrl.Init(ctx))
	term.show(term.ctrl.Snapshot())

	require.Contains(t, out.String(), "bot> Welcome to EthioTravel Assistant!")
	require.Contains(t, out.String(), "[1] ")

	// The first auth option navigates.
	quit, err := term.handle(ctx, "/1")
	require.NoError(t, err)
	require.False(t, quit)
	term.show(term.ctrl.Snapshot())
	require.Contains(t, out.String(), "-> open /login to continue")

	quit, err = term.handle(ctx, "/token tok Sara")
	require.NoError(t, err)
	require.False(t, quit)
	tok, err := store.Get(ctx, auth.TokenKey)
	require.NoError(t, err)
	require.Equal(t, "tok", tok)
}

func TestTerminalSendsMessages(t *testing.T) {
	term, out, store := newTestTerminal(t)
	ctx := context.Background()
	require.NoError(t, auth.SaveToken(ctx, store, "tok"))
	require.NoError(t, term.ctrl.Init(ctx))

	_, err := term.handle(ctx, "Tell me about Axum")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		term.show(term.ctrl.Snapshot())
		return bytes.Contains(out.Bytes(), []byte("bot> Axum is home to ancient obelisks."))
	}, 2*time.Second, 5*time.Millisecond)
	require.Contains(t, out.String(), "you> Tell me about Axum")
}

func TestTerminalCommands(t *testing.T) {
	term, _, _ := newTestTerminal(t)
	ctx := context.Background()

	quit, err := term.handle(ctx, "/quit")
	require.NoError(t, err)
	require.True(t, quit)

	_, err = term.handle(ctx, "/42")
	require.ErrorContains(t, err, "no quick reply 42")

	_, err = term.handle(ctx, "/dance")
	require.ErrorContains(t, err, "unknown command")

	_, err = term.handle(ctx, "/token")
	require.Error(t, err)

	_, err = term.handle(ctx, "/end")
	require.ErrorIs(t, err, chat.ErrNotInHandoff)

	quit, err = term.handle(ctx, "   ")
	require.NoError(t, err)
	require.False(t, quit)
}
