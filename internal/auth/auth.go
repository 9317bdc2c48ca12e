// Package auth finds the bearer credential the chat widget sends to the
// backend. Sources are consulted in order: local store, cookie, configured
// fallback.
package auth

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/comigor/ethiochat/internal/logger"
	"github.com/comigor/ethiochat/internal/storage"
)

// TokenKey is the storage key and cookie name holding the access token.
const TokenKey = "access_token"

// Credential is what the controller needs to talk to the backend.
type Credential struct {
	Token    string
	UserName string
}

// Source yields the current credential, if any.
type Source interface {
	Credential(ctx context.Context) (Credential, bool)
}

// usable rejects the stringified empties browsers leave behind.
func usable(token string) (string, bool) {
	token = strings.TrimSpace(token)
	switch token {
	case "", "undefined", "null":
		return "", false
	}
	return token, true
}

// Chain returns the first credential any source yields.
type Chain []Source

func (c Chain) Credential(ctx context.Context) (Credential, bool) {
	for _, s := range c {
		if s == nil {
			continue
		}
		if cred, ok := s.Credential(ctx); ok {
			return cred, true
		}
	}
	return Credential{}, false
}

// StoreSource reads the token from the local durable store.
type StoreSource struct {
	Store storage.Store
}

func (s StoreSource) Credential(ctx context.Context) (Credential, bool) {
	v, err := s.Store.Get(ctx, TokenKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			logger.L.Warn("reading stored access token failed", "error", err)
		}
		return Credential{}, false
	}
	tok, ok := usable(v)
	return Credential{Token: tok}, ok
}

// SaveToken stores token for StoreSource. An unusable token clears it.
func SaveToken(ctx context.Context, store storage.Store, token string) error {
	tok, ok := usable(token)
	if !ok {
		return store.Delete(ctx, TokenKey)
	}
	return store.Set(ctx, TokenKey, tok)
}

// CookieSource reads the access_token cookie recorded for URL in Jar.
type CookieSource struct {
	Jar http.CookieJar
	URL *url.URL
}

func (s CookieSource) Credential(context.Context) (Credential, bool) {
	if s.Jar == nil || s.URL == nil {
		return Credential{}, false
	}
	for _, c := range s.Jar.Cookies(s.URL) {
		if c.Name != TokenKey {
			continue
		}
		if tok, ok := usable(c.Value); ok {
			return Credential{Token: tok}, true
		}
	}
	return Credential{}, false
}

// Static is the configured fallback credential.
type Static struct {
	Token    string
	UserName string
}

func (s Static) Credential(context.Context) (Credential, bool) {
	tok, ok := usable(s.Token)
	return Credential{Token: tok, UserName: s.UserName}, ok
}

// Profile decorates a source with a display name for greetings. The name can
// be changed at runtime, for example after a login.
type Profile struct {
	Source Source

	mu   sync.RWMutex
	name string
}

func (p *Profile) SetUserName(name string) {
	p.mu.Lock()
	p.name = strings.TrimSpace(name)
	p.mu.Unlock()
}

func (p *Profile) Credential(ctx context.Context) (Credential, bool) {
	cred, ok := p.Source.Credential(ctx)
	if !ok {
		return cred, false
	}
	p.mu.RLock()
	if p.name != "" {
		cred.UserName = p.name
	}
	p.mu.RUnlock()
	return cred, true
}
