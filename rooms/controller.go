package rooms

import (
	"context"
	"errors"
	"log/slog"

	"github.com/qtcord/room-tender/settings"
	"github.com/qtcord/room-tender/telemetry"
)

// Controller reacts to voice presence transitions. When a user joins a guild's
// trigger channel it provisions a dedicated voice channel for them (or moves
// them back to the one they already own); when a bot-created channel empties it
// is deleted.
//
// Handling is serialized per (guild, user) key, so concurrent events for one
// user cannot race a second channel into existence. Events for different users
// interleave freely.
type Controller struct {
	botUserID string
	gw        Gateway
	registry  *Registry
	store     *settings.Store
	locks     *keyedLocks
}

// NewController wires the controller. botUserID is the bot's own user id;
// events it generates (being moved, joining channels) are ignored.
func NewController(botUserID string, gw Gateway, registry *Registry, store *settings.Store) *Controller {
	telemetry.Init()
	return &Controller{
		botUserID: botUserID,
		gw:        gw,
		registry:  registry,
		store:     store,
		locks:     newKeyedLocks(),
	}
}

// Registry exposes the mapping registry (read paths for status surfaces).
func (c *Controller) Registry() *Registry { return c.registry }

// HandleVoiceEvent processes one presence transition. Gateway failures are
// logged and counted; none propagate. The join-trigger and leave-managed
// branches both run: an event can simultaneously be a join into the trigger
// and a departure from a managed channel.
func (c *Controller) HandleVoiceEvent(ctx context.Context, ev VoiceEvent) {
	if ev.UserID == "" || ev.UserID == c.botUserID {
		return
	}
	if ev.ChannelID == ev.PrevChannelID {
		// mute/deafen updates arrive as presence events without a move
		return
	}
	telemetry.TimeFunc(telemetry.EventHandleDuration, func() {
		ctx, span := telemetry.StartSpan(ctx, "rooms", "voice_event",
			telemetry.GuildAttr(ev.GuildID), telemetry.UserAttr(ev.UserID))
		defer span.End()
		c.handleTriggerJoin(ctx, ev)
		c.handleManagedLeave(ctx, ev)
	})
	telemetry.SetActiveRooms(c.registry.Len())
}

func (c *Controller) handleTriggerJoin(ctx context.Context, ev VoiceEvent) {
	cfg, ok := c.store.GuildConfig(ev.GuildID)
	if !ok || cfg.TriggerChannelID == "" {
		// guild not configured: never touch its channels
		return
	}
	if ev.ChannelID != cfg.TriggerChannelID {
		return
	}

	release, ok := c.locks.acquire(ctx, ev.GuildID+"/"+ev.UserID)
	if !ok {
		return
	}
	defer release()

	log := telemetry.LoggerWithCorr(ctx).With(
		slog.String("component", "rooms"),
		slog.String("guild_id", ev.GuildID),
		slog.String("user_id", ev.UserID),
	)

	if m, ok := c.registry.Get(ev.UserID, ev.GuildID); ok {
		_, err := c.gw.ChannelInfo(ctx, m.ChannelID)
		switch {
		case err == nil:
			// the user already owns a live room: route them back, never create a second one
			if err := c.gw.MoveMember(ctx, ev.GuildID, ev.UserID, m.ChannelID); err != nil {
				telemetry.MoveFailures.Inc()
				log.Error("move to existing room failed", slog.String("channel_id", m.ChannelID), slog.Any("err", err))
				return
			}
			telemetry.RoomsReused.Inc()
			log.Info("moved user back to existing room", slog.String("channel_id", m.ChannelID))
			return
		case errors.Is(err, ErrNotFound):
			// room was deleted out from under us; forget it and create a fresh one
			c.registry.RemoveByChannel(m.ChannelID)
			if serr := c.store.RemoveManagedChannel(ev.GuildID, m.ChannelID); serr != nil {
				log.Error("failed to unpersist stale room", slog.Any("err", serr))
			}
			telemetry.StaleMappings.Inc()
			log.Info("pruned stale room mapping", slog.String("channel_id", m.ChannelID))
		default:
			log.Error("room lookup failed", slog.String("channel_id", m.ChannelID), slog.Any("err", err))
			return
		}
	}

	parentID := ""
	if info, err := c.gw.ChannelInfo(ctx, cfg.TriggerChannelID); err == nil {
		parentID = info.ParentID
	} else {
		log.Warn("trigger channel lookup failed; creating room without category", slog.Any("err", err))
	}

	channelID, err := c.gw.CreateVoiceChannel(ctx, ev.GuildID, roomName(ev.Username), parentID)
	if err != nil {
		telemetry.CreateFailures.Inc()
		log.Error("room create failed", slog.Any("err", err))
		return
	}
	c.registry.Put(ev.UserID, ev.GuildID, channelID)
	if err := c.store.AddManagedChannel(ev.GuildID, channelID); err != nil {
		log.Error("failed to persist managed channel", slog.String("channel_id", channelID), slog.Any("err", err))
	}
	telemetry.RoomsCreated.Inc()
	log.Info("room created", slog.String("channel_id", channelID))

	if err := c.gw.MoveMember(ctx, ev.GuildID, ev.UserID, channelID); err != nil {
		// the room stays; the user can connect on their own
		telemetry.MoveFailures.Inc()
		log.Error("move into new room failed", slog.String("channel_id", channelID), slog.Any("err", err))
	}
}

func (c *Controller) handleManagedLeave(ctx context.Context, ev VoiceEvent) {
	if ev.PrevChannelID == "" {
		return
	}
	m, ok := c.registry.FindByChannel(ev.PrevChannelID)
	if !ok {
		// not ours: leave it alone
		return
	}

	// Serialize on the room's owner, not the leaver: deletion races the
	// owner's rejoin, not whoever happened to leave last.
	release, ok := c.locks.acquire(ctx, m.GuildID+"/"+m.UserID)
	if !ok {
		return
	}
	defer release()

	if _, ok := c.registry.FindByChannel(ev.PrevChannelID); !ok {
		// pruned while we waited for the lock
		return
	}

	log := telemetry.LoggerWithCorr(ctx).With(
		slog.String("component", "rooms"),
		slog.String("guild_id", m.GuildID),
		slog.String("channel_id", ev.PrevChannelID),
	)

	count, err := c.gw.ChannelMemberCount(ctx, m.GuildID, ev.PrevChannelID)
	switch {
	case errors.Is(err, ErrNotFound):
		// already deleted elsewhere: just forget it
		c.forgetChannel(m.GuildID, ev.PrevChannelID, log)
		telemetry.StaleMappings.Inc()
		return
	case err != nil:
		log.Error("member count failed", slog.Any("err", err))
		return
	case count > 0:
		return
	}

	if err := c.gw.DeleteChannel(ctx, ev.PrevChannelID); err != nil && !errors.Is(err, ErrNotFound) {
		// keep the mapping so the next event on this channel retries the delete
		telemetry.DeleteFailures.Inc()
		log.Error("room delete failed", slog.Any("err", err))
		return
	}
	c.forgetChannel(m.GuildID, ev.PrevChannelID, log)
	telemetry.RoomsDeleted.Inc()
	log.Info("empty room deleted")
}

func (c *Controller) forgetChannel(guildID, channelID string, log *slog.Logger) {
	c.registry.RemoveByChannel(channelID)
	if err := c.store.RemoveManagedChannel(guildID, channelID); err != nil {
		log.Error("failed to unpersist managed channel", slog.Any("err", err))
	}
}

func roomName(username string) string {
	if username == "" {
		username = "someone"
	}
	return username + "'s Channel"
}
