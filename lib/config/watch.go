// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// Store holds the configuration revision new sessions start from. It is
// safe for concurrent use.
type Store struct {
	current atomic.Pointer[Config]
}

// NewStore returns a Store holding initial.
func NewStore(initial *Config) *Store {
	store := &Store{}
	store.current.Store(initial)
	return store
}

// Load returns the current revision. Callers must not modify it.
func (s *Store) Load() *Config { return s.current.Load() }

// Swap installs next and returns the previous revision.
func (s *Store) Swap(next *Config) *Config { return s.current.Swap(next) }

// Watch reloads path whenever it changes and calls apply with every
// revision that loads and validates. Revisions that fail are logged and
// skipped, so the last good configuration stays in force. Watch blocks
// until ctx is done.
//
// The directory is watched rather than the file so that editors which
// replace the file by rename are followed.
func Watch(ctx context.Context, path string, logger *slog.Logger, apply func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating config watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(path), err)
	}

	baseName := filepath.Base(path)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != baseName {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			next, err := LoadFile(path)
			if err == nil {
				err = next.Validate()
			}
			if err != nil {
				logger.Warn("ignoring invalid configuration change", "path", path, "error", err)
				continue
			}
			logger.Info("configuration reloaded", "path", path)
			apply(next)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config watcher error", "path", path, "error", err)
		}
	}
}
