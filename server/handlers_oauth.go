package server

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/qtcord/room-tender/discordapi"
)

// HandleOAuthStart initiates the Discord OAuth flow by redirecting the
// browser to the authorization page.
func (h *Handlers) HandleOAuthStart(w http.ResponseWriter, r *http.Request) {
	if h.cfg.DiscordClientID == "" || h.cfg.DiscordRedirectURI == "" {
		http.Error(w, "oauth not configured (need DISCORD_CLIENT_ID + DISCORD_REDIRECT_URI)", http.StatusBadRequest)
		return
	}
	// generate state
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		http.Error(w, "state gen error", 500)
		return
	}
	st := hex.EncodeToString(b)
	h.addOAuthState(st, time.Now().Add(oauthStateTTL))
	oc := discordapi.OAuthConfig(h.cfg.DiscordClientID, h.cfg.DiscordClientSecret, h.cfg.DiscordRedirectURI, h.cfg.DiscordScopes)
	authURL, err := discordapi.BuildAuthorizeURL(oc, st)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

// HandleOAuthCallback exchanges the authorization code, resolves the user's
// identity, and issues a session cookie.
func (h *Handlers) HandleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	st := r.URL.Query().Get("state")
	if code == "" || st == "" {
		http.Error(w, "missing code/state", 400)
		return
	}
	if !h.consumeOAuthState(st) {
		http.Error(w, "invalid state", 400)
		return
	}
	ctx := r.Context()
	oc := discordapi.OAuthConfig(h.cfg.DiscordClientID, h.cfg.DiscordClientSecret, h.cfg.DiscordRedirectURI, h.cfg.DiscordScopes)
	tok, err := discordapi.ExchangeAuthCode(ctx, oc, code)
	if err != nil {
		slog.Warn("oauth exchange failed", slog.Any("err", err))
		http.Error(w, "token exchange failed", 502)
		return
	}
	user, err := h.api.Me(ctx, tok.AccessToken)
	if err != nil {
		slog.Warn("identity lookup failed", slog.Any("err", err))
		http.Error(w, "identity lookup failed", 502)
		return
	}
	sess := h.sessions.Create(tok.AccessToken, *user)
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.Expiry,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})
	slog.Info("dashboard login", slog.String("user_id", user.ID))
	http.Redirect(w, r, "/", http.StatusFound)
}

// HandleLogout drops the session and clears the cookie.
func (h *Handlers) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(sessionCookieName); err == nil && c.Value != "" {
		h.sessions.Delete(c.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	w.WriteHeader(http.StatusNoContent)
}

// HandleMe returns the logged-in user's identity.
func (h *Handlers) HandleMe(w http.ResponseWriter, r *http.Request) {
	sess := h.sessionFromRequest(r)
	if sess == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{
		"id":       sess.User.ID,
		"username": sess.User.Username,
		"name":     sess.User.DisplayName(),
	}); err != nil {
		slog.Warn("failed to encode JSON response", slog.Any("err", err))
	}
}
