// Package discordapi contains minimal helpers for the Discord HTTP API used by
// the dashboard login flow: the OAuth2 authorization-code exchange and the two
// identity endpoints the session layer needs.
package discordapi

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
)

// Endpoint is Discord's OAuth2 endpoint pair.
var Endpoint = oauth2.Endpoint{
	AuthURL:  "https://discord.com/api/oauth2/authorize",
	TokenURL: "https://discord.com/api/oauth2/token",
}

// OAuthConfig builds the oauth2 config for the dashboard login flow.
func OAuthConfig(clientID, clientSecret, redirectURI, scopes string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes:       strings.Fields(strings.ReplaceAll(scopes, ",", " ")),
		Endpoint:     Endpoint,
	}
}

// BuildAuthorizeURL constructs the user authorization URL for the code grant.
func BuildAuthorizeURL(cfg *oauth2.Config, state string) (string, error) {
	if cfg.ClientID == "" || cfg.RedirectURL == "" {
		return "", errors.New("missing clientID or redirectURI")
	}
	return cfg.AuthCodeURL(state), nil
}

// ExchangeAuthCode exchanges an authorization code for tokens.
func ExchangeAuthCode(ctx context.Context, cfg *oauth2.Config, code string) (*oauth2.Token, error) {
	if code == "" {
		return nil, errors.New("missing authorization code")
	}
	return cfg.Exchange(ctx, code)
}

// ValidRedirectURI reports whether the configured redirect URI parses as an
// absolute http(s) URL. Used at startup to fail fast on misconfiguration.
func ValidRedirectURI(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
