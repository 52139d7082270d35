package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/qtcord/room-tender/rooms"
	"github.com/qtcord/room-tender/settings"
)

// HandleGuilds lists the guilds the logged-in user can manage, annotated
// with the bot's current configuration for each.
func (h *Handlers) HandleGuilds(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sess := h.sessionFromRequest(r)
	if sess == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	guilds, err := h.api.MyGuilds(r.Context(), sess.AccessToken)
	if err != nil {
		slog.Warn("guild listing failed", slog.Any("err", err))
		http.Error(w, "guild listing failed", http.StatusBadGateway)
		return
	}
	type guildView struct {
		ID               string `json:"id"`
		Name             string `json:"name"`
		Icon             string `json:"icon,omitempty"`
		TriggerChannelID string `json:"triggerChannelId,omitempty"`
		ManagedRooms     int    `json:"managedRooms"`
	}
	out := make([]guildView, 0, len(guilds))
	for _, g := range guilds {
		if !g.CanManage() {
			continue
		}
		gv := guildView{ID: g.ID, Name: g.Name, Icon: g.Icon}
		if gc, ok := h.store.GuildConfig(g.ID); ok {
			gv.TriggerChannelID = gc.TriggerChannelID
			gv.ManagedRooms = len(gc.ManagedChannelIDs)
		}
		out = append(out, gv)
	}
	writeJSON(w, out)
}

// HandleGuildsDispatcher routes requests under /api/guilds/{id}/* to the
// per-guild sub-handlers.
func (h *Handlers) HandleGuildsDispatcher(w http.ResponseWriter, r *http.Request) {
	// crude routing
	path := strings.TrimPrefix(r.URL.Path, "/api/guilds/")
	parts := strings.Split(path, "/")
	guildID := parts[0]
	tail := ""
	if len(parts) > 1 {
		tail = strings.Join(parts[1:], "/")
	}
	if guildID == "" {
		http.NotFound(w, r)
		return
	}
	sess := h.sessionFromRequest(r)
	if sess == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if !h.canManage(w, r, sess, guildID) {
		return
	}
	switch tail {
	case "channels":
		h.handleGuildChannels(w, r, guildID)
	case "trigger":
		h.handleGuildTrigger(w, r, guildID)
	default:
		http.NotFound(w, r)
	}
}

// canManage verifies the session user manages the guild, writing the error
// response itself when not.
func (h *Handlers) canManage(w http.ResponseWriter, r *http.Request, sess *session, guildID string) bool {
	guilds, err := h.api.MyGuilds(r.Context(), sess.AccessToken)
	if err != nil {
		slog.Warn("guild listing failed", slog.Any("err", err))
		http.Error(w, "guild listing failed", http.StatusBadGateway)
		return false
	}
	for _, g := range guilds {
		if g.ID == guildID && g.CanManage() {
			return true
		}
	}
	http.Error(w, "forbidden", http.StatusForbidden)
	return false
}

// handleGuildChannels lists the guild's voice channels so the dashboard can
// offer a trigger picker.
func (h *Handlers) handleGuildChannels(w http.ResponseWriter, r *http.Request, guildID string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	chans, err := h.gw.GuildVoiceChannels(r.Context(), guildID)
	if err != nil {
		if errors.Is(err, rooms.ErrNotFound) {
			http.Error(w, "bot is not in this guild", http.StatusNotFound)
			return
		}
		slog.Warn("channel listing failed", slog.String("guild_id", guildID), slog.Any("err", err))
		http.Error(w, "channel listing failed", http.StatusBadGateway)
		return
	}
	type channelView struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		ParentID string `json:"parentId,omitempty"`
	}
	out := make([]channelView, 0, len(chans))
	for _, c := range chans {
		out = append(out, channelView{ID: c.ID, Name: c.Name, ParentID: c.ParentID})
	}
	writeJSON(w, out)
}

// handleGuildTrigger reads or updates the guild's trigger channel.
func (h *Handlers) handleGuildTrigger(w http.ResponseWriter, r *http.Request, guildID string) {
	switch r.Method {
	case http.MethodGet:
		gc, _ := h.store.GuildConfig(guildID)
		writeJSON(w, map[string]string{"triggerChannelId": gc.TriggerChannelID})
	case http.MethodPut:
		var body struct {
			TriggerChannelID string `json:"triggerChannelId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "bad request body", http.StatusBadRequest)
			return
		}
		if body.TriggerChannelID != "" {
			if !h.voiceChannelInGuild(w, r, guildID, body.TriggerChannelID) {
				return
			}
		}
		if err := h.store.SetTriggerChannel(guildID, body.TriggerChannelID); err != nil {
			if errors.Is(err, settings.ErrManagedChannel) {
				http.Error(w, "channel is managed by the bot", http.StatusConflict)
				return
			}
			slog.Error("trigger update failed", slog.String("guild_id", guildID), slog.Any("err", err))
			http.Error(w, "persisting setting failed", http.StatusInternalServerError)
			return
		}
		slog.Info("trigger channel updated",
			slog.String("guild_id", guildID),
			slog.String("channel_id", body.TriggerChannelID))
		writeJSON(w, map[string]string{"triggerChannelId": body.TriggerChannelID})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// voiceChannelInGuild checks the candidate trigger is one of the guild's
// voice channels, writing the error response itself when not.
func (h *Handlers) voiceChannelInGuild(w http.ResponseWriter, r *http.Request, guildID, channelID string) bool {
	chans, err := h.gw.GuildVoiceChannels(r.Context(), guildID)
	if err != nil {
		if errors.Is(err, rooms.ErrNotFound) {
			http.Error(w, "bot is not in this guild", http.StatusNotFound)
			return false
		}
		slog.Warn("channel listing failed", slog.String("guild_id", guildID), slog.Any("err", err))
		http.Error(w, "channel listing failed", http.StatusBadGateway)
		return false
	}
	for _, c := range chans {
		if c.ID == channelID {
			return true
		}
	}
	http.Error(w, "not a voice channel in this guild", http.StatusUnprocessableEntity)
	return false
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode JSON response", slog.Any("err", err))
	}
}
