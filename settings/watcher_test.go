package settings

import (
	"context"
	"os"
	"sync/atomic"
	"testing"
	"time"
)

func TestWatchReloadsAfterExternalWrite(t *testing.T) {
	s := newTestStore(t)
	if err := s.SetTriggerChannel("g1", "old"); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var fired atomic.Int32
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = Watch(ctx, s, 50*time.Millisecond, func(context.Context) {
			fired.Add(1)
		})
	}()

	// Give the watcher a moment to attach before editing.
	time.Sleep(100 * time.Millisecond)
	external := []byte(`{"guilds":{"g1":{"triggerChannelId":"new","managedChannelIds":[]}}}`)
	if err := os.WriteFile(s.Path(), external, 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(5 * time.Second)
	for fired.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("watcher did not fire within deadline")
		case <-time.After(20 * time.Millisecond):
		}
	}

	gc, _ := s.GuildConfig("g1")
	if gc.TriggerChannelID != "new" {
		t.Errorf("TriggerChannelID = %q, want new (store should reload before callback)", gc.TriggerChannelID)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop on context cancel")
	}
}

func TestWatchDebouncesBursts(t *testing.T) {
	s := newTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var fired atomic.Int32
	go func() {
		_ = Watch(ctx, s, 200*time.Millisecond, func(context.Context) {
			fired.Add(1)
		})
	}()

	time.Sleep(100 * time.Millisecond)
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(s.Path(), []byte(`{"guilds":{}}`), 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	time.Sleep(600 * time.Millisecond)
	if n := fired.Load(); n != 1 {
		t.Errorf("callback fired %d times for a write burst, want 1", n)
	}
}
