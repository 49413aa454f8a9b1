// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package settings

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jeranaias/chatly-tui/internal/logging"
)

// debounce coalesces the write+rename burst of an atomic save.
const debounce = 50 * time.Millisecond

// Watch reloads the file whenever it changes on disk until ctx is done.
// The parent directory is watched because atomic saves replace the file.
func (s *Store) Watch(ctx context.Context, log *logging.Logger) error {
	log = log.Named("settings")

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return err
	}

	go func() {
		defer w.Close()
		var timer *time.Timer
		var fire <-chan time.Time
		name := filepath.Clean(s.path)

		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return

			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != name {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(debounce)
				} else {
					timer.Reset(debounce)
				}
				fire = timer.C

			case <-fire:
				fire = nil
				changed, err := s.reload()
				if err != nil && !os.IsNotExist(err) {
					log.Warn("failed to reload settings", logging.Fields{"error": err})
					continue
				}
				if changed {
					log.Info("settings reloaded", nil)
				}

			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warn("settings watcher error", logging.Fields{"error": err})
			}
		}
	}()
	return nil
}
