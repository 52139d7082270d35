package bot

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/qtcord/room-tender/settings"
)

const (
	cmdSetup = "roomsetup"
	cmdHelp  = "roomhelp"
)

var manageGuildPermission int64 = discordgo.PermissionManageServer

// commandDefinitions returns the guild commands the bot registers globally.
func commandDefinitions() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:                     cmdSetup,
			Description:              "Set the voice channel that spawns private rooms when joined.",
			DefaultMemberPermissions: &manageGuildPermission,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:         discordgo.ApplicationCommandOptionChannel,
					Name:         "channel",
					Description:  "The trigger voice channel.",
					Required:     true,
					ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildVoice},
				},
			},
		},
		{
			Name:        cmdHelp,
			Description: "How the private room bot works.",
		},
	}
}

func (b *Bot) registerCommands() error {
	appID := b.session.State.User.ID
	_, err := b.session.ApplicationCommandBulkOverwrite(appID, "", commandDefinitions())
	return err
}

func (b *Bot) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()
	switch data.Name {
	case cmdSetup:
		b.handleSetup(s, i, data)
	case cmdHelp:
		b.handleHelp(s, i)
	}
}

func (b *Bot) handleSetup(s *discordgo.Session, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	if i.GuildID == "" {
		respondEphemeral(s, i, "This command only works inside a server.")
		return
	}
	if len(data.Options) == 0 {
		respondEphemeral(s, i, "Pick a voice channel.")
		return
	}
	ch := data.Options[0].ChannelValue(s)
	if ch == nil || ch.Type != discordgo.ChannelTypeGuildVoice || ch.GuildID != i.GuildID {
		respondEphemeral(s, i, "That is not a voice channel in this server.")
		return
	}
	if err := b.store.SetTriggerChannel(i.GuildID, ch.ID); err != nil {
		if errors.Is(err, settings.ErrManagedChannel) {
			respondEphemeral(s, i, "That channel is managed by the bot and cannot be the trigger.")
			return
		}
		slog.Error("setup command failed", slog.String("guild_id", i.GuildID), slog.Any("err", err))
		respondEphemeral(s, i, "Saving the setting failed, try again later.")
		return
	}
	slog.Info("trigger channel configured", slog.String("guild_id", i.GuildID), slog.String("channel_id", ch.ID))
	respondEphemeral(s, i, fmt.Sprintf("Joining **%s** now creates a private room.", ch.Name))
}

func (b *Bot) handleHelp(s *discordgo.Session, i *discordgo.InteractionCreate) {
	respondEphemeral(s, i,
		"Join the configured trigger voice channel and I will create a voice channel "+
			"just for you and move you into it. When your channel empties, it is removed. "+
			"Admins set the trigger channel with /"+cmdSetup+" or through the dashboard.")
}

func respondEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, msg string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: msg,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		slog.Warn("interaction response failed", slog.Any("err", err))
	}
}
