// Package discord adapts the Discord session to the rooms.Gateway contract.
// Channel and member reads prefer the session's state cache and fall back to
// the REST API; platform "unknown entity" errors are mapped to
// rooms.ErrNotFound so the controller can tell staleness from real failures.
package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"

	"github.com/qtcord/room-tender/rooms"
)

// Gateway implements rooms.Gateway on top of a connected discordgo session.
type Gateway struct {
	session *discordgo.Session
}

func NewGateway(session *discordgo.Session) *Gateway {
	return &Gateway{session: session}
}

// CreateVoiceChannel creates a voice channel under parentID. Created channels
// allow @everyone to connect and speak, matching the open-room policy: rooms
// are private in ownership, not in visibility.
func (g *Gateway) CreateVoiceChannel(ctx context.Context, guildID, name, parentID string) (string, error) {
	data := discordgo.GuildChannelCreateData{
		Name:     name,
		Type:     discordgo.ChannelTypeGuildVoice,
		ParentID: parentID,
		PermissionOverwrites: []*discordgo.PermissionOverwrite{
			{
				// the @everyone role id equals the guild id
				ID:    guildID,
				Type:  discordgo.PermissionOverwriteTypeRole,
				Allow: discordgo.PermissionVoiceConnect | discordgo.PermissionVoiceSpeak,
			},
		},
	}
	ch, err := g.session.GuildChannelCreateComplex(guildID, data, discordgo.WithContext(ctx))
	if err != nil {
		return "", mapErr(err)
	}
	return ch.ID, nil
}

func (g *Gateway) DeleteChannel(ctx context.Context, channelID string) error {
	_, err := g.session.ChannelDelete(channelID, discordgo.WithContext(ctx))
	return mapErr(err)
}

func (g *Gateway) MoveMember(ctx context.Context, guildID, userID, channelID string) error {
	err := g.session.GuildMemberMove(guildID, userID, &channelID, discordgo.WithContext(ctx))
	return mapErr(err)
}

// ChannelMemberCount counts members connected to a voice channel using the
// state cache's voice states. The channel's existence is verified first so a
// deleted channel reports NotFound rather than zero.
func (g *Gateway) ChannelMemberCount(ctx context.Context, guildID, channelID string) (int, error) {
	if _, err := g.ChannelInfo(ctx, channelID); err != nil {
		return 0, err
	}
	guild, err := g.session.State.Guild(guildID)
	if err != nil {
		return 0, mapErr(err)
	}
	n := 0
	for _, vs := range guild.VoiceStates {
		if vs.ChannelID == channelID {
			n++
		}
	}
	return n, nil
}

func (g *Gateway) ChannelInfo(ctx context.Context, channelID string) (rooms.ChannelInfo, error) {
	ch, err := g.session.State.Channel(channelID)
	if err != nil {
		ch, err = g.session.Channel(channelID, discordgo.WithContext(ctx))
		if err != nil {
			return rooms.ChannelInfo{}, mapErr(err)
		}
	}
	return channelInfo(ch), nil
}

func (g *Gateway) GuildVoiceChannels(ctx context.Context, guildID string) ([]rooms.ChannelInfo, error) {
	channels, err := g.session.GuildChannels(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapErr(err)
	}
	out := make([]rooms.ChannelInfo, 0, len(channels))
	for _, ch := range channels {
		if ch.Type != discordgo.ChannelTypeGuildVoice {
			continue
		}
		out = append(out, channelInfo(ch))
	}
	return out, nil
}

func channelInfo(ch *discordgo.Channel) rooms.ChannelInfo {
	return rooms.ChannelInfo{
		ID:       ch.ID,
		GuildID:  ch.GuildID,
		Name:     ch.Name,
		ParentID: ch.ParentID,
		Voice:    ch.Type == discordgo.ChannelTypeGuildVoice,
	}
}

// mapErr translates Discord "unknown entity" responses into rooms.ErrNotFound.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, discordgo.ErrStateNotFound) {
		return fmt.Errorf("%w: not in state cache", rooms.ErrNotFound)
	}
	var rerr *discordgo.RESTError
	if errors.As(err, &rerr) {
		if rerr.Message != nil {
			switch rerr.Message.Code {
			case discordgo.ErrCodeUnknownChannel, discordgo.ErrCodeUnknownGuild, discordgo.ErrCodeUnknownMember:
				return fmt.Errorf("%w: %s", rooms.ErrNotFound, rerr.Message.Message)
			}
		}
		if rerr.Response != nil && rerr.Response.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %s", rooms.ErrNotFound, rerr.Response.Status)
		}
	}
	return err
}
