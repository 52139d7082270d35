package rooms

import "sync"

// Mapping records that a user owns a bot-created channel in a guild.
type Mapping struct {
	UserID    string
	GuildID   string
	ChannelID string
}

type ownerKey struct {
	userID  string
	guildID string
}

// Registry is the in-memory source of truth for which channels the bot created
// and who owns them. A user owns at most one channel per guild; Put replaces.
// State is not persisted and is rebuilt lazily after a restart.
type Registry struct {
	mu        sync.RWMutex
	byOwner   map[ownerKey]*Mapping
	byChannel map[string]*Mapping
}

func NewRegistry() *Registry {
	return &Registry{
		byOwner:   make(map[ownerKey]*Mapping),
		byChannel: make(map[string]*Mapping),
	}
}

// Put records ownership of channelID by (userID, guildID), replacing any
// previous mapping for that owner.
func (r *Registry) Put(userID, guildID, channelID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := ownerKey{userID, guildID}
	if old, ok := r.byOwner[key]; ok {
		delete(r.byChannel, old.ChannelID)
	}
	m := &Mapping{UserID: userID, GuildID: guildID, ChannelID: channelID}
	r.byOwner[key] = m
	r.byChannel[channelID] = m
}

// Get returns the mapping owned by (userID, guildID).
func (r *Registry) Get(userID, guildID string) (Mapping, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byOwner[ownerKey{userID, guildID}]
	if !ok {
		return Mapping{}, false
	}
	return *m, true
}

// FindByChannel returns the mapping for a channel id.
func (r *Registry) FindByChannel(channelID string) (Mapping, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byChannel[channelID]
	if !ok {
		return Mapping{}, false
	}
	return *m, true
}

// RemoveByChannel drops the mapping for a channel id, if any.
func (r *Registry) RemoveByChannel(channelID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.byChannel[channelID]
	if !ok {
		return
	}
	delete(r.byChannel, channelID)
	delete(r.byOwner, ownerKey{m.UserID, m.GuildID})
}

// RemoveByOwner drops the mapping owned by (userID, guildID), if any.
func (r *Registry) RemoveByOwner(userID, guildID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := ownerKey{userID, guildID}
	m, ok := r.byOwner[key]
	if !ok {
		return
	}
	delete(r.byOwner, key)
	delete(r.byChannel, m.ChannelID)
}

// Len returns the number of tracked mappings.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byOwner)
}
