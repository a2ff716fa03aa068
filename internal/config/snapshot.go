package config

import (
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// Snapshot publishes an immutable *Config behind an atomic pointer. Readers
// call Snapshot.Load and never block; Reload builds a brand-new Config and
// swaps it in only if it validates. In-flight requests keep the *Config
// pointer they already loaded, per §9's hot-reload design note.
type Snapshot struct {
	ptr  atomic.Pointer[Config]
	path string
}

// NewSnapshot loads the initial config and returns a Snapshot wrapping it.
func NewSnapshot(path string) (*Snapshot, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	s := &Snapshot{path: path}
	s.ptr.Store(cfg)
	return s, nil
}

// Load returns the current immutable config. Safe for concurrent callers.
func (s *Snapshot) Load() *Config {
	if s == nil {
		return DefaultConfig()
	}
	return s.ptr.Load()
}

// Reload re-reads the config file and swaps it in if (and only if) it validates.
// A failed reload logs and keeps serving the previous snapshot.
func (s *Snapshot) Reload() error {
	cfg, err := Load(s.path)
	if err != nil {
		log.WithError(err).Warn("config: reload failed, keeping previous snapshot")
		return err
	}
	s.ptr.Store(cfg)
	log.Info("config: reloaded snapshot")
	return nil
}

// WatchReload watches the config file's directory for changes (fsnotify handles
// editors that replace the file via rename-over) and calls Reload on each event,
// until stop is closed.
func (s *Snapshot) WatchReload(stop <-chan struct{}) error {
	if s.path == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return err
	}

	go func() {
		defer func() { _ = watcher.Close() }()
		for {
			select {
			case <-stop:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(s.path) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					if err := s.Reload(); err != nil {
						log.WithError(err).Warn("config: watch-triggered reload failed")
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.WithError(err).Warn("config: watcher error")
			}
		}
	}()
	return nil
}
