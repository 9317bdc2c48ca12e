// Package handler exposes a chat controller over HTTP: JSON endpoints for
// every widget action and a websocket that streams view snapshots.
package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/comigor/ethiochat/internal/auth"
	"github.com/comigor/ethiochat/internal/chat"
	"github.com/comigor/ethiochat/internal/storage"
)

// Handler serves one controller.
type Handler struct {
	ctrl     *chat.Controller
	store    storage.Store
	profile  *auth.Profile
	upgrader websocket.Upgrader
}

// New creates a handler. store receives tokens posted to /auth/token;
// profile, when set, receives the user's display name.
func New(ctrl *chat.Controller, store storage.Store, profile *auth.Profile) *Handler {
	return &Handler{
		ctrl:    ctrl,
		store:   store,
		profile: profile,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// NewRouter wires the chat routes under /api/chat. extra middlewares run
// after the standard stack.
func NewRouter(h *Handler, extra ...func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(extra...)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/api/chat", h.RegisterRoutes)
	return r
}

// RegisterRoutes registers the chat endpoints on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/state", h.handleState)
	r.Post("/init", h.handleInit)
	r.Post("/messages", h.handleSend)
	r.Post("/quick-replies/{replyID}", h.handleQuickReply)
	r.Post("/open", h.handleOpen(true))
	r.Post("/close", h.handleOpen(false))
	r.Post("/handoff/end", h.handleEndHandoff)
	r.Post("/viewport", h.handleViewport)
	r.Post("/viewport/bottom", h.handleScrolledToBottom)
	r.Post("/auth/token", h.handleSaveToken)
	r.Delete("/auth/token", h.handleDropToken)
	r.Get("/ws", h.handleWebSocket)
}

func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.ctrl.Snapshot())
}

func (h *Handler) handleInit(w http.ResponseWriter, r *http.Request) {
	if err := h.ctrl.Init(r.Context()); err != nil {
		respondControllerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.ctrl.Snapshot())
}

func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text   string `json:"text"`
		Silent bool   `json:"silent"`
	}
	if err := decode(r, &payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	var opts []chat.SendOption
	if payload.Silent {
		opts = append(opts, chat.Silently())
	}
	if err := h.ctrl.Send(r.Context(), payload.Text, opts...); err != nil {
		respondControllerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.ctrl.Snapshot())
}

func (h *Handler) handleQuickReply(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text string `json:"text"`
	}
	if err := decode(r, &payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	action, err := h.ctrl.ClickQuickReply(r.Context(), chi.URLParam(r, "replyID"), payload.Text)
	if err != nil {
		respondControllerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"action": action,
		"state":  h.ctrl.Snapshot(),
	})
}

func (h *Handler) handleOpen(open bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.ctrl.SetOpen(open)
		respondJSON(w, http.StatusOK, h.ctrl.Snapshot())
	}
}

func (h *Handler) handleEndHandoff(w http.ResponseWriter, r *http.Request) {
	if err := h.ctrl.EndHumanSession(r.Context()); err != nil {
		respondControllerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.ctrl.Snapshot())
}

func (h *Handler) handleViewport(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ScrollTop     float64 `json:"scroll_top"`
		ScrollHeight  float64 `json:"scroll_height"`
		ClientHeight  float64 `json:"client_height"`
		UserInitiated bool    `json:"user_initiated"`
	}
	if err := decode(r, &payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.ctrl.ReportScroll(payload.ScrollTop, payload.ScrollHeight, payload.ClientHeight, payload.UserInitiated)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleScrolledToBottom(w http.ResponseWriter, r *http.Request) {
	h.ctrl.ScrolledToBottom()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSaveToken(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Token    string `json:"token"`
		UserName string `json:"user_name"`
	}
	if err := decode(r, &payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Token == "" {
		respondError(w, http.StatusBadRequest, "token is required")
		return
	}
	if err := auth.SaveToken(r.Context(), h.store, payload.Token); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if h.profile != nil {
		h.profile.SetUserName(payload.UserName)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDropToken(w http.ResponseWriter, r *http.Request) {
	if err := auth.SaveToken(r.Context(), h.store, ""); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CaptureCookies records the cookies of every request in jar under u, so a
// CookieSource sees the browser's access_token cookie.
func CaptureCookies(jar http.CookieJar, u *url.URL) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cookies := r.Cookies(); len(cookies) > 0 {
				jar.SetCookies(u, cookies)
			}
			next.ServeHTTP(w, r)
		})
	}
}

func respondControllerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, chat.ErrBusy), errors.Is(err, chat.ErrNotInHandoff):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, chat.ErrClosed):
		respondError(w, http.StatusServiceUnavailable, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}
