package rooms

import (
	"context"
	"fmt"
	"sync"
)

// fakeGateway is an in-memory Gateway: channels live in a map, member
// locations in another. Error injection per operation drives failure paths.
type fakeGateway struct {
	mu       sync.Mutex
	channels map[string]ChannelInfo
	members  map[string]string // userID -> channelID
	nextID   int

	created []string
	deleted []string
	moves   []string

	createErr error
	deleteErr error
	moveErr   error
	countErr  error
	infoErr   error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		channels: make(map[string]ChannelInfo),
		members:  make(map[string]string),
	}
}

func (g *fakeGateway) addChannel(id, guildID, parentID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.channels[id] = ChannelInfo{ID: id, GuildID: guildID, ParentID: parentID, Voice: true}
}

func (g *fakeGateway) dropChannel(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.channels, id)
}

func (g *fakeGateway) placeMember(userID, channelID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.members[userID] = channelID
}

func (g *fakeGateway) CreateVoiceChannel(ctx context.Context, guildID, name, parentID string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return "", g.createErr
	}
	g.nextID++
	id := fmt.Sprintf("room-%d", g.nextID)
	g.channels[id] = ChannelInfo{ID: id, GuildID: guildID, Name: name, ParentID: parentID, Voice: true}
	g.created = append(g.created, id)
	return id, nil
}

func (g *fakeGateway) DeleteChannel(ctx context.Context, channelID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.deleteErr != nil {
		return g.deleteErr
	}
	if _, ok := g.channels[channelID]; !ok {
		return ErrNotFound
	}
	delete(g.channels, channelID)
	g.deleted = append(g.deleted, channelID)
	return nil
}

func (g *fakeGateway) MoveMember(ctx context.Context, guildID, userID, channelID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.moveErr != nil {
		return g.moveErr
	}
	if _, ok := g.channels[channelID]; !ok {
		return ErrNotFound
	}
	g.members[userID] = channelID
	g.moves = append(g.moves, userID+"->"+channelID)
	return nil
}

func (g *fakeGateway) ChannelMemberCount(ctx context.Context, guildID, channelID string) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.countErr != nil {
		return 0, g.countErr
	}
	if _, ok := g.channels[channelID]; !ok {
		return 0, ErrNotFound
	}
	n := 0
	for _, ch := range g.members {
		if ch == channelID {
			n++
		}
	}
	return n, nil
}

func (g *fakeGateway) ChannelInfo(ctx context.Context, channelID string) (ChannelInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.infoErr != nil {
		return ChannelInfo{}, g.infoErr
	}
	info, ok := g.channels[channelID]
	if !ok {
		return ChannelInfo{}, ErrNotFound
	}
	return info, nil
}

func (g *fakeGateway) GuildVoiceChannels(ctx context.Context, guildID string) ([]ChannelInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []ChannelInfo
	for _, ch := range g.channels {
		if ch.GuildID == guildID && ch.Voice {
			out = append(out, ch)
		}
	}
	return out, nil
}

func (g *fakeGateway) createdCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.created)
}

func (g *fakeGateway) memberChannel(userID string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.members[userID]
}
