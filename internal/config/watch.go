package config

import (
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/flowforge/flowd/internal/logger"
)

// Watcher holds the most recently loaded Config and swaps it atomically
// whenever the file named by path changes on disk.
type Watcher struct {
	path    string
	current atomic.Pointer[Config]
	watcher *fsnotify.Watcher
}

// NewWatcher starts watching path for changes, seeded with initial.
func NewWatcher(path string, initial *Config) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return nil, err
	}
	w := &Watcher{path: path, watcher: fsw}
	w.current.Store(initial)
	go w.run()
	return w, nil
}

// Current returns the most recently loaded Config.
func (w *Watcher) Current() *Config {
	return w.current.Load()
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) run() {
	log := logger.GetLogger()
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				log.Warn().Str("path", w.path).Err(err).Msg("config reload failed, keeping previous config")
				continue
			}
			if err := cfg.Validate(); err != nil {
				log.Warn().Str("path", w.path).Err(err).Msg("reloaded config failed validation, keeping previous config")
				continue
			}
			w.current.Store(cfg)
			log.Info().Str("path", w.path).Msg("config reloaded")
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("config watcher error")
		}
	}
}
