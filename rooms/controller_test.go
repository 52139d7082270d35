package rooms

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/qtcord/room-tender/settings"
)

const (
	testGuild   = "g1"
	testTrigger = "c-trigger"
	botID       = "bot-1"
)

func newTestController(t *testing.T) (*Controller, *fakeGateway, *settings.Store) {
	t.Helper()
	store, err := settings.Open(filepath.Join(t.TempDir(), "settings.json"))
	if err != nil {
		t.Fatalf("settings.Open: %v", err)
	}
	if err := store.SetTriggerChannel(testGuild, testTrigger); err != nil {
		t.Fatalf("SetTriggerChannel: %v", err)
	}
	gw := newFakeGateway()
	gw.addChannel(testTrigger, testGuild, "cat-1")
	return NewController(botID, gw, NewRegistry(), store), gw, store
}

func joinTrigger(user, username, from string) VoiceEvent {
	return VoiceEvent{GuildID: testGuild, UserID: user, Username: username, PrevChannelID: from, ChannelID: testTrigger}
}

func TestTriggerJoinCreatesRoom(t *testing.T) {
	c, gw, store := newTestController(t)
	ctx := context.Background()

	gw.placeMember("u1", testTrigger)
	c.HandleVoiceEvent(ctx, joinTrigger("u1", "alice", ""))

	if gw.createdCount() != 1 {
		t.Fatalf("created %d channels, want 1", gw.createdCount())
	}
	m, ok := c.Registry().Get("u1", testGuild)
	if !ok {
		t.Fatal("no mapping registered")
	}
	info, err := gw.ChannelInfo(ctx, m.ChannelID)
	if err != nil {
		t.Fatalf("created channel missing: %v", err)
	}
	if info.Name != "alice's Channel" {
		t.Errorf("channel name = %q, want alice's Channel", info.Name)
	}
	if info.ParentID != "cat-1" {
		t.Errorf("channel parent = %q, want trigger's category cat-1", info.ParentID)
	}
	if gw.memberChannel("u1") != m.ChannelID {
		t.Errorf("user not moved into new room")
	}
	gc, _ := store.GuildConfig(testGuild)
	if len(gc.ManagedChannelIDs) != 1 || gc.ManagedChannelIDs[0] != m.ChannelID {
		t.Errorf("managed ids = %v, want [%s]", gc.ManagedChannelIDs, m.ChannelID)
	}
}

func TestRejoinRoutesToExistingRoom(t *testing.T) {
	c, gw, _ := newTestController(t)
	ctx := context.Background()

	gw.placeMember("u1", testTrigger)
	c.HandleVoiceEvent(ctx, joinTrigger("u1", "alice", ""))
	m, _ := c.Registry().Get("u1", testGuild)

	// rejoin the trigger while the room is still live
	gw.placeMember("u1", testTrigger)
	c.HandleVoiceEvent(ctx, joinTrigger("u1", "alice", ""))

	if gw.createdCount() != 1 {
		t.Fatalf("created %d channels after rejoin, want 1 (no duplicates)", gw.createdCount())
	}
	if gw.memberChannel("u1") != m.ChannelID {
		t.Errorf("user moved to %q, want existing room %q", gw.memberChannel("u1"), m.ChannelID)
	}
}

func TestRepeatedJoinsCreateOneRoom(t *testing.T) {
	c, gw, _ := newTestController(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		gw.placeMember("u1", testTrigger)
		c.HandleVoiceEvent(ctx, joinTrigger("u1", "alice", ""))
	}
	if gw.createdCount() != 1 {
		t.Errorf("created %d channels across repeated joins, want 1", gw.createdCount())
	}
}

func TestStaleMappingRecovered(t *testing.T) {
	c, gw, store := newTestController(t)
	ctx := context.Background()

	gw.placeMember("u1", testTrigger)
	c.HandleVoiceEvent(ctx, joinTrigger("u1", "alice", ""))
	old, _ := c.Registry().Get("u1", testGuild)

	// a moderator deletes the room out of band
	gw.dropChannel(old.ChannelID)

	gw.placeMember("u1", testTrigger)
	c.HandleVoiceEvent(ctx, joinTrigger("u1", "alice", old.ChannelID))

	fresh, ok := c.Registry().Get("u1", testGuild)
	if !ok {
		t.Fatal("no mapping after stale recovery")
	}
	if fresh.ChannelID == old.ChannelID {
		t.Fatal("stale channel id still mapped")
	}
	if gw.createdCount() != 2 {
		t.Errorf("created %d channels, want 2 (original + replacement)", gw.createdCount())
	}
	gc, _ := store.GuildConfig(testGuild)
	for _, id := range gc.ManagedChannelIDs {
		if id == old.ChannelID {
			t.Error("stale channel id still persisted")
		}
	}
}

func TestEmptyRoomDeletedOnLeave(t *testing.T) {
	c, gw, store := newTestController(t)
	ctx := context.Background()

	gw.placeMember("u1", testTrigger)
	c.HandleVoiceEvent(ctx, joinTrigger("u1", "alice", ""))
	m, _ := c.Registry().Get("u1", testGuild)

	// the user disconnects entirely
	gw.placeMember("u1", "")
	c.HandleVoiceEvent(ctx, VoiceEvent{GuildID: testGuild, UserID: "u1", PrevChannelID: m.ChannelID})

	if _, err := gw.ChannelInfo(ctx, m.ChannelID); !errors.Is(err, ErrNotFound) {
		t.Errorf("room still exists after emptying")
	}
	if _, ok := c.Registry().Get("u1", testGuild); ok {
		t.Error("mapping survived deletion")
	}
	gc, _ := store.GuildConfig(testGuild)
	if len(gc.ManagedChannelIDs) != 0 {
		t.Errorf("managed ids = %v, want empty", gc.ManagedChannelIDs)
	}
}

func TestOccupiedRoomNotDeleted(t *testing.T) {
	c, gw, _ := newTestController(t)
	ctx := context.Background()

	gw.placeMember("u1", testTrigger)
	c.HandleVoiceEvent(ctx, joinTrigger("u1", "alice", ""))
	m, _ := c.Registry().Get("u1", testGuild)

	// a friend is still inside when the owner leaves
	gw.placeMember("u2", m.ChannelID)
	gw.placeMember("u1", "")
	c.HandleVoiceEvent(ctx, VoiceEvent{GuildID: testGuild, UserID: "u1", PrevChannelID: m.ChannelID})

	if _, err := gw.ChannelInfo(ctx, m.ChannelID); err != nil {
		t.Error("room deleted while a member remained")
	}
	if _, ok := c.Registry().Get("u1", testGuild); !ok {
		t.Error("mapping dropped while room lives")
	}

	// now the friend leaves too
	gw.placeMember("u2", "")
	c.HandleVoiceEvent(ctx, VoiceEvent{GuildID: testGuild, UserID: "u2", PrevChannelID: m.ChannelID})
	if _, err := gw.ChannelInfo(ctx, m.ChannelID); !errors.Is(err, ErrNotFound) {
		t.Error("room not deleted after last member left")
	}
}

func TestUntrackedLeaveIsNoOp(t *testing.T) {
	c, gw, _ := newTestController(t)
	ctx := context.Background()

	gw.addChannel("c-other", testGuild, "")
	gw.placeMember("u1", "")
	c.HandleVoiceEvent(ctx, VoiceEvent{GuildID: testGuild, UserID: "u1", PrevChannelID: "c-other"})

	if _, err := gw.ChannelInfo(ctx, "c-other"); err != nil {
		t.Error("untracked channel was deleted")
	}
	if len(gw.deleted) != 0 {
		t.Errorf("deletes = %v, want none", gw.deleted)
	}
}

func TestUnconfiguredGuildUntouched(t *testing.T) {
	store, err := settings.Open(filepath.Join(t.TempDir(), "settings.json"))
	if err != nil {
		t.Fatal(err)
	}
	gw := newFakeGateway()
	gw.addChannel("c-any", "g-unconfigured", "")
	c := NewController(botID, gw, NewRegistry(), store)
	ctx := context.Background()

	c.HandleVoiceEvent(ctx, VoiceEvent{GuildID: "g-unconfigured", UserID: "u1", Username: "alice", ChannelID: "c-any"})
	c.HandleVoiceEvent(ctx, VoiceEvent{GuildID: "g-unconfigured", UserID: "u1", PrevChannelID: "c-any"})

	if gw.createdCount() != 0 || len(gw.deleted) != 0 {
		t.Errorf("unconfigured guild saw created=%d deleted=%v", gw.createdCount(), gw.deleted)
	}
}

func TestBotOwnEventsIgnored(t *testing.T) {
	c, gw, _ := newTestController(t)
	c.HandleVoiceEvent(context.Background(), joinTrigger(botID, "room-tender", ""))
	if gw.createdCount() != 0 {
		t.Error("bot's own join created a room")
	}
}

func TestFailedDeleteKeepsMapping(t *testing.T) {
	c, gw, _ := newTestController(t)
	ctx := context.Background()

	gw.placeMember("u1", testTrigger)
	c.HandleVoiceEvent(ctx, joinTrigger("u1", "alice", ""))
	m, _ := c.Registry().Get("u1", testGuild)

	gw.placeMember("u1", "")
	gw.mu.Lock()
	gw.deleteErr = errors.New("permission denied")
	gw.mu.Unlock()
	c.HandleVoiceEvent(ctx, VoiceEvent{GuildID: testGuild, UserID: "u1", PrevChannelID: m.ChannelID})

	if _, ok := c.Registry().FindByChannel(m.ChannelID); !ok {
		t.Fatal("mapping dropped despite failed delete; retry impossible")
	}

	// the failure clears; the next event touching the channel converges
	gw.mu.Lock()
	gw.deleteErr = nil
	gw.mu.Unlock()
	c.HandleVoiceEvent(ctx, VoiceEvent{GuildID: testGuild, UserID: "u2", PrevChannelID: m.ChannelID})
	if _, err := gw.ChannelInfo(ctx, m.ChannelID); !errors.Is(err, ErrNotFound) {
		t.Error("room not deleted on retry")
	}
}

func TestFailedCreateLeavesNoMapping(t *testing.T) {
	c, gw, _ := newTestController(t)
	gw.mu.Lock()
	gw.createErr = errors.New("rate limited")
	gw.mu.Unlock()
	c.HandleVoiceEvent(context.Background(), joinTrigger("u1", "alice", ""))
	if _, ok := c.Registry().Get("u1", testGuild); ok {
		t.Error("mapping registered for a channel that was never created")
	}
}

func TestFailedMoveDoesNotRollBackCreate(t *testing.T) {
	c, gw, _ := newTestController(t)
	gw.mu.Lock()
	gw.moveErr = errors.New("member not connected")
	gw.mu.Unlock()
	c.HandleVoiceEvent(context.Background(), joinTrigger("u1", "alice", ""))
	m, ok := c.Registry().Get("u1", testGuild)
	if !ok {
		t.Fatal("mapping missing after failed move")
	}
	if _, err := gw.ChannelInfo(context.Background(), m.ChannelID); err != nil {
		t.Error("created room rolled back after failed move")
	}
}

func TestTwoUsersGetSeparateRooms(t *testing.T) {
	c, gw, _ := newTestController(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, u := range []string{"u1", "u2"} {
		wg.Add(1)
		go func(user string) {
			defer wg.Done()
			gw.placeMember(user, testTrigger)
			c.HandleVoiceEvent(ctx, joinTrigger(user, user, ""))
		}(u)
	}
	wg.Wait()

	if gw.createdCount() != 2 {
		t.Fatalf("created %d channels for two users, want 2", gw.createdCount())
	}
	m1, _ := c.Registry().Get("u1", testGuild)
	m2, _ := c.Registry().Get("u2", testGuild)
	if m1.ChannelID == m2.ChannelID {
		t.Error("both users mapped to the same room")
	}
}

func TestConcurrentJoinsSameUserCreateOneRoom(t *testing.T) {
	c, gw, _ := newTestController(t)
	ctx := context.Background()
	gw.placeMember("u1", testTrigger)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.HandleVoiceEvent(ctx, joinTrigger("u1", "alice", ""))
		}()
	}
	wg.Wait()

	if gw.createdCount() != 1 {
		t.Errorf("concurrent joins created %d channels, want exactly 1", gw.createdCount())
	}
}

func TestMoveFromOwnRoomToTriggerKeepsRoom(t *testing.T) {
	c, gw, _ := newTestController(t)
	ctx := context.Background()

	gw.placeMember("u1", testTrigger)
	c.HandleVoiceEvent(ctx, joinTrigger("u1", "alice", ""))
	m, _ := c.Registry().Get("u1", testGuild)

	// the user hops from their own room back into the trigger: the join branch
	// moves them home before the emptiness check, so the room must survive
	gw.placeMember("u1", testTrigger)
	c.HandleVoiceEvent(ctx, joinTrigger("u1", "alice", m.ChannelID))

	if _, err := gw.ChannelInfo(ctx, m.ChannelID); err != nil {
		t.Error("room deleted while its owner was being routed back into it")
	}
	if gw.memberChannel("u1") != m.ChannelID {
		t.Errorf("user in %q, want %q", gw.memberChannel("u1"), m.ChannelID)
	}
	if gw.createdCount() != 1 {
		t.Errorf("created %d channels, want 1", gw.createdCount())
	}
}
