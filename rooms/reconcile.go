package rooms

import (
	"context"
	"errors"
	"log/slog"

	"github.com/qtcord/room-tender/telemetry"
)

// Reconcile sweeps the persisted managed channels of every configured guild
// against the platform: ids whose channel is gone are unpersisted, empty
// channels are deleted, occupied channels are left in place. Ownership of a
// surviving channel is not re-registered; the registry only learns owners as
// users touch the trigger channel.
//
// Runs at startup and whenever the settings file changes on disk.
func (c *Controller) Reconcile(ctx context.Context) {
	telemetry.ReconcilePasses.Inc()
	log := telemetry.LoggerWithCorr(ctx).With(slog.String("component", "rooms.reconcile"))

	for guildID, cfg := range c.store.AllGuildConfigs() {
		if cfg.TriggerChannelID == "" {
			continue
		}
		for _, channelID := range cfg.ManagedChannelIDs {
			if ctx.Err() != nil {
				return
			}
			if channelID == cfg.TriggerChannelID {
				// the trigger channel must never be subject to auto-deletion
				c.forgetChannel(guildID, channelID, log)
				continue
			}
			count, err := c.gw.ChannelMemberCount(ctx, guildID, channelID)
			switch {
			case errors.Is(err, ErrNotFound):
				c.forgetChannel(guildID, channelID, log)
				log.Info("dropped ghost room", slog.String("guild_id", guildID), slog.String("channel_id", channelID))
			case err != nil:
				log.Warn("member count failed", slog.String("channel_id", channelID), slog.Any("err", err))
			case count == 0:
				if derr := c.gw.DeleteChannel(ctx, channelID); derr != nil && !errors.Is(derr, ErrNotFound) {
					telemetry.DeleteFailures.Inc()
					log.Error("orphan delete failed", slog.String("channel_id", channelID), slog.Any("err", derr))
					continue
				}
				c.forgetChannel(guildID, channelID, log)
				telemetry.RoomsDeleted.Inc()
				log.Info("deleted empty orphan room", slog.String("guild_id", guildID), slog.String("channel_id", channelID))
			}
		}
	}
	telemetry.SetActiveRooms(c.registry.Len())
}
