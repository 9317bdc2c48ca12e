package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/comigor/ethiochat/internal/config"
	"github.com/comigor/ethiochat/internal/handler"
	"github.com/comigor/ethiochat/internal/logger"
)

// serve hosts one chat session. Every HTTP and websocket client shares the
// same controller, token store and profile.
func serve(ctx context.Context, cfg *config.Config) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.L.Warn("shutdown cleanup failed", "error", err)
		}
	}()

	var extra []func(http.Handler) http.Handler
	if a.cookies != nil {
		extra = append(extra, handler.CaptureCookies(a.jar, a.cookies))
	}
	router := handler.NewRouter(handler.New(a.ctrl, a.store, a.profile), extra...)

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	logger.L.Info("starting server", "address", srv.Addr)
	return runServer(ctx, srv)
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		logger.L.Error("failed to start server", "error", err)
		return err
	}
}
