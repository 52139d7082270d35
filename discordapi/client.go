package discordapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
)

const defaultBaseURL = "https://discord.com/api/v10"

// PermissionManageGuild is the Manage Server permission bit.
const PermissionManageGuild = 1 << 5

// Client provides the identity endpoints needed by the dashboard session
// layer. Calls authenticate with the user's OAuth access token.
type Client struct {
	HTTPClient *http.Client
	BaseURL    string // override for tests; defaults to the public API
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) base() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return defaultBaseURL
}

// User is the authenticated principal as returned by /users/@me.
type User struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	GlobalName    string `json:"global_name"`
	Discriminator string `json:"discriminator"`
	Avatar        string `json:"avatar"`
}

// DisplayName prefers the global display name over the login username.
func (u User) DisplayName() string {
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}

// Guild is a guild membership as returned by /users/@me/guilds.
type Guild struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Icon        string `json:"icon"`
	Owner       bool   `json:"owner"`
	Permissions string `json:"permissions"`
}

// CanManage reports whether the user may administer this guild (owner or
// holder of the Manage Server permission).
func (g Guild) CanManage() bool {
	if g.Owner {
		return true
	}
	perms, err := strconv.ParseInt(g.Permissions, 10, 64)
	if err != nil {
		return false
	}
	return perms&PermissionManageGuild != 0
}

// Me resolves the authenticated user.
func (c *Client) Me(ctx context.Context, accessToken string) (*User, error) {
	var u User
	if err := c.get(ctx, "/users/@me", accessToken, &u); err != nil {
		return nil, err
	}
	if u.ID == "" {
		return nil, fmt.Errorf("identity response missing user id")
	}
	return &u, nil
}

// MyGuilds lists the authenticated user's guild memberships.
func (c *Client) MyGuilds(ctx context.Context, accessToken string) ([]Guild, error) {
	var out []Guild
	if err := c.get(ctx, "/users/@me/guilds", accessToken, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path, accessToken string, dst any) error {
	if accessToken == "" {
		return fmt.Errorf("access token empty")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base()+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	resp, err := c.http().Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("discord api %s failed: %s: %s", path, resp.Status, string(b))
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}
