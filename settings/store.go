// Package settings persists per-guild bot configuration to a JSON document on disk.
// The on-disk layout is the contract consumed by the dashboard and the bot:
//
//	{
//	  "guilds": {
//	    "<guildId>": {
//	      "triggerChannelId": "<channelId>",
//	      "managedChannelIds": ["<channelId>", ...]
//	    }
//	  }
//	}
//
// Writes always rewrite the whole file and go through a temp-file rename so a
// concurrent reader never observes a partial document. Reads are served from an
// in-memory cache populated at load; Reload refreshes the cache after an
// external edit.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

// GuildConfig is the persisted configuration for a single guild.
type GuildConfig struct {
	TriggerChannelID  string   `json:"triggerChannelId"`
	ManagedChannelIDs []string `json:"managedChannelIds"`
}

type document struct {
	Guilds map[string]*GuildConfig `json:"guilds"`
}

// Store is a file-backed settings store. All methods are safe for concurrent use;
// mutations persist synchronously before returning.
type Store struct {
	mu   sync.RWMutex
	path string
	doc  document
}

// Open loads the settings file at path, creating an empty document if the file
// does not exist yet.
func Open(path string) (*Store, error) {
	s := &Store{path: path, doc: document{Guilds: map[string]*GuildConfig{}}}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Reload re-reads the backing file, replacing the in-memory cache. A missing
// file resets the store to an empty document.
func (s *Store) Reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.mu.Lock()
			s.doc = document{Guilds: map[string]*GuildConfig{}}
			s.mu.Unlock()
			return nil
		}
		return fmt.Errorf("read settings: %w", err)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse settings %s: %w", s.path, err)
	}
	if doc.Guilds == nil {
		doc.Guilds = map[string]*GuildConfig{}
	}
	s.mu.Lock()
	s.doc = doc
	s.mu.Unlock()
	return nil
}

// save rewrites the whole file via temp-file + rename. Callers must hold mu.
func (s *Store) save() error {
	data, err := json.MarshalIndent(&s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".settings-*.json")
	if err != nil {
		return fmt.Errorf("create temp settings file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close settings file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace settings file: %w", err)
	}
	return nil
}

// GuildConfig returns a copy of the configuration for guildID, with ok=false
// when the guild has never been configured.
func (s *Store) GuildConfig(guildID string) (GuildConfig, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	gc, ok := s.doc.Guilds[guildID]
	if !ok {
		return GuildConfig{}, false
	}
	return GuildConfig{
		TriggerChannelID:  gc.TriggerChannelID,
		ManagedChannelIDs: slices.Clone(gc.ManagedChannelIDs),
	}, true
}

// AllGuildConfigs returns a copy of every guild configuration keyed by guild id.
func (s *Store) AllGuildConfigs() map[string]GuildConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]GuildConfig, len(s.doc.Guilds))
	for id, gc := range s.doc.Guilds {
		out[id] = GuildConfig{
			TriggerChannelID:  gc.TriggerChannelID,
			ManagedChannelIDs: slices.Clone(gc.ManagedChannelIDs),
		}
	}
	return out
}

// ErrManagedChannel is returned when a channel currently managed by the bot is
// offered as a trigger channel.
var ErrManagedChannel = errors.New("channel is managed by the bot")

// SetTriggerChannel sets the trigger voice channel for a guild, creating the
// guild entry on first write. A channel the bot currently manages is refused:
// the trigger channel must never itself become subject to auto-deletion.
func (s *Store) SetTriggerChannel(guildID, channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	gc, ok := s.doc.Guilds[guildID]
	if !ok {
		gc = &GuildConfig{}
		s.doc.Guilds[guildID] = gc
	}
	if channelID != "" && slices.Contains(gc.ManagedChannelIDs, channelID) {
		return ErrManagedChannel
	}
	gc.TriggerChannelID = channelID
	return s.save()
}

// AddManagedChannel records a channel created by the bot for a guild.
func (s *Store) AddManagedChannel(guildID, channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	gc, ok := s.doc.Guilds[guildID]
	if !ok {
		gc = &GuildConfig{}
		s.doc.Guilds[guildID] = gc
	}
	if slices.Contains(gc.ManagedChannelIDs, channelID) {
		return nil
	}
	gc.ManagedChannelIDs = append(gc.ManagedChannelIDs, channelID)
	return s.save()
}

// RemoveManagedChannel forgets a channel previously recorded for a guild.
// Removing an unknown channel is a no-op.
func (s *Store) RemoveManagedChannel(guildID, channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	gc, ok := s.doc.Guilds[guildID]
	if !ok {
		return nil
	}
	idx := slices.Index(gc.ManagedChannelIDs, channelID)
	if idx < 0 {
		return nil
	}
	gc.ManagedChannelIDs = slices.Delete(gc.ManagedChannelIDs, idx, idx+1)
	return s.save()
}
