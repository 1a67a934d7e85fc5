package config

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"time"
)

// RoomsWatcher polls rooms.yaml and hands every changed, valid revision to
// onUpdate. A revision that fails to parse is reported and skipped; the
// previous inventory stays in effect.
type RoomsWatcher struct {
	path     string
	onUpdate func(*RoomsConfig)
	onError  func(error)

	modTime time.Time
	sum     [sha256.Size]byte
	loaded  bool
}

// NewRoomsWatcher creates a watcher for path.
func NewRoomsWatcher(path string, onUpdate func(*RoomsConfig)) *RoomsWatcher {
	if path == "" {
		path = "configs/rooms.yaml"
	}
	return &RoomsWatcher{path: path, onUpdate: onUpdate}
}

// OnError registers a callback for reload failures.
func (w *RoomsWatcher) OnError(fn func(error)) {
	w.onError = fn
}

// Check loads the file if it changed since the last successful load and
// reports whether onUpdate was called. Touching the file without changing
// its content is not a change.
func (w *RoomsWatcher) Check() (bool, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return false, fmt.Errorf("stat rooms config: %w", err)
	}
	if w.loaded && !info.ModTime().After(w.modTime) {
		return false, nil
	}

	data, err := os.ReadFile(w.path)
	if err != nil {
		return false, fmt.Errorf("read rooms config: %w", err)
	}
	sum := sha256.Sum256(data)
	if w.loaded && sum == w.sum {
		w.modTime = info.ModTime()
		return false, nil
	}

	cfg, err := ParseRoomsConfig(data)
	if err != nil {
		return false, err
	}
	w.modTime, w.sum, w.loaded = info.ModTime(), sum, true
	if w.onUpdate != nil {
		w.onUpdate(cfg)
	}
	return true, nil
}

// Run checks the file every interval until ctx is done.
func (w *RoomsWatcher) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.Check(); err != nil && w.onError != nil {
				w.onError(err)
			}
		}
	}
}

// WatchRooms loads rooms.yaml once, failing if it is unusable, and then
// keeps reloading it in the background until ctx is done. onError, when
// set, receives background reload failures.
func WatchRooms(ctx context.Context, path string, interval time.Duration, onUpdate func(*RoomsConfig), onError ...func(error)) error {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	w := NewRoomsWatcher(path, onUpdate)
	if len(onError) > 0 {
		w.OnError(onError[0])
	}
	if _, err := w.Check(); err != nil {
		return err
	}
	go w.Run(ctx, interval)
	return nil
}
