// Package bot wires the Discord session to the room lifecycle controller:
// voice presence events are translated into controller events, and the guild
// slash commands are registered and dispatched.
package bot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"

	"github.com/qtcord/room-tender/rooms"
	"github.com/qtcord/room-tender/settings"
	"github.com/qtcord/room-tender/telemetry"
)

// Intents required by the bot: guild metadata, voice state transitions, and
// member data for channel naming.
const Intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildVoiceStates |
	discordgo.IntentsGuildMembers

// Bot owns the handler registrations on a connected session.
type Bot struct {
	session *discordgo.Session
	ctrl    *rooms.Controller
	store   *settings.Store
	gw      rooms.Gateway

	ctx context.Context
}

func New(session *discordgo.Session, ctrl *rooms.Controller, store *settings.Store, gw rooms.Gateway) *Bot {
	return &Bot{session: session, ctrl: ctrl, store: store, gw: gw}
}

// Start registers event handlers and the slash commands. The session must
// already be open. Handlers run until the session closes; ctx bounds the
// work each handler performs.
func (b *Bot) Start(ctx context.Context) error {
	b.ctx = ctx
	b.session.AddHandler(b.onVoiceStateUpdate)
	b.session.AddHandler(b.onInteraction)
	if err := b.registerCommands(); err != nil {
		return fmt.Errorf("register commands: %w", err)
	}
	slog.Info("bot handlers registered", slog.String("user_id", b.session.State.User.ID))
	return nil
}

func (b *Bot) onVoiceStateUpdate(s *discordgo.Session, v *discordgo.VoiceStateUpdate) {
	if v.Member != nil && v.Member.User != nil && v.Member.User.Bot {
		return
	}
	ev := eventFromUpdate(v)
	if ev.Username == "" {
		// member payload absent on some gateway events; resolve for naming
		if m, err := s.GuildMember(ev.GuildID, ev.UserID); err == nil {
			if m.User != nil && m.User.Bot {
				return
			}
			ev.Username = memberDisplayName(m)
		}
	}
	ctx := telemetry.WithCorrelation(b.ctx, uuid.NewString())
	b.ctrl.HandleVoiceEvent(ctx, ev)
}

// eventFromUpdate flattens a gateway voice state update into a controller
// event. BeforeUpdate is nil when the user was not previously in a channel.
func eventFromUpdate(v *discordgo.VoiceStateUpdate) rooms.VoiceEvent {
	ev := rooms.VoiceEvent{
		GuildID:   v.GuildID,
		UserID:    v.UserID,
		ChannelID: v.ChannelID,
	}
	if v.BeforeUpdate != nil {
		ev.PrevChannelID = v.BeforeUpdate.ChannelID
	}
	if v.Member != nil {
		ev.Username = memberDisplayName(v.Member)
	}
	return ev
}

// memberDisplayName prefers the guild nickname, then the global display name,
// then the login username.
func memberDisplayName(m *discordgo.Member) string {
	if m == nil {
		return ""
	}
	if m.Nick != "" {
		return m.Nick
	}
	if m.User == nil {
		return ""
	}
	if m.User.GlobalName != "" {
		return m.User.GlobalName
	}
	return m.User.Username
}
