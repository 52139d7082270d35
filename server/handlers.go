// Package server exposes the dashboard HTTP API: Discord OAuth login, guild
// and channel listings for managers, trigger channel configuration, health
// probes, and Prometheus metrics. It includes permissive CORS for development
// and injects correlation IDs into request contexts for consistent logging.
package server

import (
	"context"
	"sync"
	"time"

	"github.com/qtcord/room-tender/config"
	"github.com/qtcord/room-tender/discordapi"
	"github.com/qtcord/room-tender/rooms"
	"github.com/qtcord/room-tender/settings"
)

const (
	// Maximum number of OAuth states to keep in memory
	maxOAuthStates = 10000

	oauthStateTTL = 10 * time.Minute
)

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	ctx      context.Context
	cfg      config.Config
	store    *settings.Store
	gw       rooms.Gateway
	registry *rooms.Registry
	api      *discordapi.Client
	sessions *sessionStore
	botReady func() bool

	stateStore map[string]time.Time
	stateMu    sync.RWMutex
}

// NewHandlers creates a new Handlers instance with the given dependencies.
// botReady reports whether the gateway connection is up; it may be nil when
// the API runs without the bot.
func NewHandlers(ctx context.Context, cfg config.Config, store *settings.Store, gw rooms.Gateway, registry *rooms.Registry, botReady func() bool) *Handlers {
	h := &Handlers{
		ctx:        ctx,
		cfg:        cfg,
		store:      store,
		gw:         gw,
		registry:   registry,
		api:        &discordapi.Client{},
		sessions:   newSessionStore(ctx, cfg.SessionTTL),
		botReady:   botReady,
		stateStore: make(map[string]time.Time),
	}
	return h
}

// cleanExpiredStates removes expired OAuth states from the store.
// This should be called with stateMu locked.
func (h *Handlers) cleanExpiredStates() {
	now := time.Now()
	for state, expiry := range h.stateStore {
		if now.After(expiry) {
			delete(h.stateStore, state)
		}
	}
}

// addOAuthState adds a new OAuth state to the store with cleanup if needed.
func (h *Handlers) addOAuthState(state string, expiry time.Time) {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()

	// Clean expired states periodically to prevent unbounded growth
	if len(h.stateStore)%100 == 0 {
		h.cleanExpiredStates()
	}

	// Over the limit after cleanup: refuse to add more. Failing the OAuth
	// flow beats memory exhaustion.
	if len(h.stateStore) >= maxOAuthStates {
		return
	}

	h.stateStore[state] = expiry
}

// consumeOAuthState validates and removes a state, returning whether it was
// valid and unexpired.
func (h *Handlers) consumeOAuthState(state string) bool {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()
	exp, ok := h.stateStore[state]
	if !ok {
		return false
	}
	delete(h.stateStore, state)
	return time.Now().Before(exp)
}
