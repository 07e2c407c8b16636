package config

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const reloadDebounce = 250 * time.Millisecond

// Store holds the current Settings snapshot. Readers never block; a reload
// swaps the whole snapshot at once.
type Store struct {
	path     string
	current  atomic.Pointer[Settings]
	log      zerolog.Logger
	onChange func(Settings)
}

// NewStore loads path and returns a Store holding the result.
func NewStore(path string, log zerolog.Logger) (*Store, error) {
	settings, err := Load(path)
	if err != nil {
		return nil, err
	}
	s := &Store{path: path, log: log}
	s.current.Store(&settings)
	return s, nil
}

// NewStaticStore returns a Store that is never reloaded from disk.
func NewStaticStore(settings Settings) *Store {
	s := &Store{log: zerolog.Nop()}
	s.current.Store(&settings)
	return s
}

// Get returns the current snapshot.
func (s *Store) Get() Settings {
	return *s.current.Load()
}

// Set replaces the snapshot after validating it.
func (s *Store) Set(settings Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	s.current.Store(&settings)
	if s.onChange != nil {
		s.onChange(settings)
	}
	return nil
}

// OnChange registers fn to run after every successful reload.
// Must be called before Watch.
func (s *Store) OnChange(fn func(Settings)) {
	s.onChange = fn
}

// Reload re-reads the file. On error the previous snapshot stays in force.
func (s *Store) Reload() error {
	if s.path == "" {
		return nil
	}
	settings, err := Load(s.path)
	if err != nil {
		return err
	}
	return s.Set(settings)
}

// Watch reloads the file whenever it changes until ctx is cancelled.
// The directory is watched rather than the file so editors that replace
// the file by rename are picked up.
func (s *Store) Watch(ctx context.Context) error {
	if s.path == "" {
		<-ctx.Done()
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	dir, file := filepath.Split(filepath.Clean(s.path))
	if dir == "" {
		dir = "."
	}
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	s.log.Debug().Str("dir", dir).Str("file", file).Msg("config watcher started")

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	reload := func() {
		if err := s.Reload(); err != nil {
			s.log.Warn().Err(err).Str("path", s.path).Msg("config reload failed, keeping previous settings")
			return
		}
		s.log.Info().Str("path", s.path).Msg("config reloaded")
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !strings.EqualFold(filepath.Base(ev.Name), file) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(reloadDebounce, reload)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.log.Warn().Err(err).Msg("config watch error")
		}
	}
}
