package settings

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch observes the store's backing file and invokes onChange after edits have
// settled for the debounce interval. The callback runs outside the filesystem
// notification path, so a half-written external edit is never observed: by the
// time the debounce fires, the whole-file rename has completed.
//
// Watch blocks until ctx is canceled. The watcher is attached to the parent
// directory because atomic replaces (rename over the file) would otherwise
// drop the watch.
func Watch(ctx context.Context, store *Store, debounce time.Duration, onChange func(context.Context)) error {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() {
		if err := w.Close(); err != nil {
			slog.Warn("failed to close settings watcher", slog.Any("err", err))
		}
	}()

	dir := filepath.Dir(store.Path())
	if err := w.Add(dir); err != nil {
		return err
	}
	target := filepath.Clean(store.Path())

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	slog.Info("watching settings file", slog.String("path", target))

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			timer.Reset(debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Warn("settings watch error", slog.Any("err", err))
		case <-timer.C:
			if err := store.Reload(); err != nil {
				slog.Error("settings reload failed", slog.Any("err", err))
				continue
			}
			slog.Info("settings reloaded", slog.String("path", target))
			if onChange != nil {
				onChange(ctx)
			}
		}
	}
}
