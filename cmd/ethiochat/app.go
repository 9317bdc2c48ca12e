package main

import (
	"context"
	"errors"
	"net/http/cookiejar"
	"net/url"

	"github.com/comigor/ethiochat/internal/api"
	"github.com/comigor/ethiochat/internal/auth"
	"github.com/comigor/ethiochat/internal/chat"
	"github.com/comigor/ethiochat/internal/config"
	"github.com/comigor/ethiochat/internal/history"
	"github.com/comigor/ethiochat/internal/llm"
	"github.com/comigor/ethiochat/internal/logger"
	"github.com/comigor/ethiochat/internal/mcpclient"
	"github.com/comigor/ethiochat/internal/session"
	"github.com/comigor/ethiochat/internal/storage"
	"github.com/comigor/ethiochat/internal/weather"
)

// app is one fully wired controller plus everything that must be closed
// with it.
type app struct {
	ctrl    *chat.Controller
	store   storage.Store
	profile *auth.Profile
	jar     *cookiejar.Jar
	cookies *url.URL
	closers []func() error
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}

	if cfg.Storage.Path == "" {
		a.store = storage.NewMemory()
	} else {
		a.store = storage.NewSQLite(cfg.Storage.Path)
	}
	a.closers = append(a.closers, a.store.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	a.jar = jar
	sources := auth.Chain{auth.StoreSource{Store: a.store}}
	if cfg.Auth.CookieURL != "" {
		u, err := url.Parse(cfg.Auth.CookieURL)
		if err != nil {
			return nil, err
		}
		a.cookies = u
		sources = append(sources, auth.CookieSource{Jar: jar, URL: u})
	}
	sources = append(sources, auth.Static{Token: cfg.Auth.FallbackToken, UserName: cfg.Auth.UserName})
	a.profile = &auth.Profile{Source: sources}
	if cfg.Auth.UserName != "" {
		a.profile.SetUserName(cfg.Auth.UserName)
	}

	a.ctrl = chat.New(chat.Deps{
		Conversation: a.conversation(ctx, cfg),
		Credentials:  a.profile,
		Sessions:     session.NewManager(a.store),
		Weather:      a.weather(ctx, cfg),
	}, cfg.Chat)
	return a, nil
}

func (a *app) conversation(ctx context.Context, cfg *config.Config) api.Conversation {
	if cfg.API.Backend != "llm" {
		logger.L.Info("using travel backend", "base_url", cfg.API.BaseURL)
		return api.NewClient(cfg.API)
	}

	transcripts := history.New(cfg.Storage.HistoryPath)
	a.closers = append(a.closers, transcripts.Close)
	backend := llm.NewBackend(llm.NewClient(cfg.LLM), cfg.LLM, transcripts)

	tools := llm.NewToolbox()
	for _, server := range cfg.MCPServers {
		c, err := mcpclient.Dial(ctx, server)
		if err != nil {
			logger.L.Error("failed to connect mcp server", "name", server.Name, "error", err)
			continue
		}
		if err := tools.Register(ctx, server.Name, c); err != nil {
			logger.L.Warn("failed to list mcp tools", "name", server.Name, "error", err)
			_ = c.Close()
		}
	}
	a.closers = append(a.closers, tools.Close)
	backend.UseTools(tools)

	logger.L.Info("using llm backend", "model", cfg.LLM.Model, "tools", len(tools.Tools()))
	return backend
}

func (a *app) weather(ctx context.Context, cfg *config.Config) weather.Provider {
	static := weather.NewStatic(cfg.Weather.Delay)
	if cfg.Weather.Provider != "mcp" {
		return static
	}
	server, ok := cfg.MCPServer(cfg.Weather.Server)
	if !ok {
		logger.L.Warn("weather mcp server not configured; using static weather", "server", cfg.Weather.Server)
		return static
	}
	c, err := mcpclient.Dial(ctx, server)
	if err != nil {
		logger.L.Warn("weather mcp server unavailable; using static weather", "server", server.Name, "error", err)
		return static
	}
	p := weather.NewMCP(c, cfg.Weather.Tool, static)
	a.closers = append(a.closers, p.Close)
	return p
}

func (a *app) Close() error {
	errs := []error{a.ctrl.Close()}
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}
