// Package rooms contains the room lifecycle logic: tracking which voice channel
// belongs to which user and reacting to voice presence transitions by creating,
// reusing, or deleting channels through a platform gateway.
package rooms

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Gateway implementations when the referenced
// channel, member, or guild no longer exists on the platform.
var ErrNotFound = errors.New("not found")

// ChannelInfo describes a channel as known to the platform.
type ChannelInfo struct {
	ID       string
	GuildID  string
	Name     string
	ParentID string
	Voice    bool
}

// VoiceEvent is a single voice presence transition: the user moved from
// PrevChannelID (empty when joining from nowhere) to ChannelID (empty when
// disconnecting).
type VoiceEvent struct {
	GuildID       string
	UserID        string
	Username      string
	PrevChannelID string
	ChannelID     string
}

// Gateway is the platform capability surface the controller drives. Every call
// is an independent network operation and independently fallible.
type Gateway interface {
	// CreateVoiceChannel creates a voice channel under parentID (the category;
	// empty for top level) and returns its id.
	CreateVoiceChannel(ctx context.Context, guildID, name, parentID string) (string, error)
	// DeleteChannel removes a channel; ErrNotFound when already gone.
	DeleteChannel(ctx context.Context, channelID string) error
	// MoveMember moves a connected member into channelID.
	MoveMember(ctx context.Context, guildID, userID, channelID string) error
	// ChannelMemberCount reports how many members are connected to a voice
	// channel; ErrNotFound when the channel does not exist.
	ChannelMemberCount(ctx context.Context, guildID, channelID string) (int, error)
	// ChannelInfo resolves a channel id; ErrNotFound when it does not exist.
	ChannelInfo(ctx context.Context, channelID string) (ChannelInfo, error)
	// GuildVoiceChannels lists the voice channels of a guild.
	GuildVoiceChannels(ctx context.Context, guildID string) ([]ChannelInfo, error)
}
