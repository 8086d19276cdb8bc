// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// defaultDebounce collapses the burst of events editors emit on save.
const defaultDebounce = 200 * time.Millisecond

// Store holds the live configuration. Readers always see a complete
// Config; Reload swaps it atomically and keeps the previous one when the
// new file does not load.
//
// Store implements redact.KeySource, so clients built with it pick up
// filter_parameters changes on their next request.
type Store struct {
	path     string
	logger   *slog.Logger
	debounce time.Duration

	current atomic.Pointer[Config]

	// mu serializes reloads and guards onChange.
	mu       sync.Mutex
	onChange []func(*Config)
}

// NewStore loads path and returns a Store serving it. An empty path
// serves the defaults plus environment overrides.
func NewStore(path string, logger *slog.Logger) (*Store, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{
		path:     path,
		logger:   logger.With(slog.String("component", "config")),
		debounce: defaultDebounce,
	}
	s.current.Store(cfg)
	return s, nil
}

// Path returns the file the store loads from.
func (s *Store) Path() string {
	return s.path
}

// Config returns the current configuration. Callers must not modify it.
func (s *Store) Config() *Config {
	return s.current.Load()
}

// FilterParameters implements redact.KeySource.
func (s *Store) FilterParameters() []string {
	return s.current.Load().FilterParams
}

// OnChange registers fn to run after every successful reload.
func (s *Store) OnChange(fn func(*Config)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

// Reload reads the file again. On error the current configuration stays
// in place and the error is returned.
func (s *Store) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := Load(s.path)
	if err != nil {
		s.logger.Warn("config reload failed, keeping previous configuration",
			slog.String("path", s.path),
			slog.String("error", err.Error()),
		)
		return err
	}

	s.current.Store(cfg)
	s.logger.Info("config reloaded",
		slog.String("path", s.path),
		slog.Int("services", len(cfg.Services)),
		slog.Int("filter_parameters", len(cfg.FilterParams)),
	)

	for _, fn := range s.onChange {
		fn(cfg)
	}
	return nil
}

// Watch reloads the configuration whenever the file changes, until ctx is
// done. The parent directory is watched so that editors which replace the
// file by rename are still seen. Watch returns once the watch is in
// place.
func (s *Store) Watch(ctx context.Context) error {
	if s.path == "" {
		return fmt.Errorf("config: no file to watch")
	}

	target, err := filepath.Abs(s.path)
	if err != nil {
		return fmt.Errorf("failed to resolve path %s: %w", s.path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(target), err)
	}

	s.logger.Debug("watching config file", slog.String("path", target))

	go s.processEvents(ctx, watcher, target)
	return nil
}

func (s *Store) processEvents(ctx context.Context, watcher *fsnotify.Watcher, target string) {
	defer watcher.Close()

	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	defer func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timerMu.Unlock()
	}()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			timerMu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(s.debounce, func() {
				if ctx.Err() != nil {
					return
				}
				_ = s.Reload()
			})
			timerMu.Unlock()

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.Error("config watcher error", slog.String("error", err.Error()))

		case <-ctx.Done():
			return
		}
	}
}
