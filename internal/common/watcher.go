package common

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ConfigWatcher reloads the analytics section of a config file when it
// changes on disk. Other sections (ports, storage) need a restart.
type ConfigWatcher struct {
	path     string
	runtime  *RuntimeAnalytics
	logger   *Logger
	watcher  *fsnotify.Watcher
	debounce time.Duration

	mu      sync.Mutex
	running bool
}

// NewConfigWatcher creates a watcher for path feeding runtime.
func NewConfigWatcher(path string, runtime *RuntimeAnalytics, logger *Logger) (*ConfigWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %s: %w", path, err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create config watcher: %w", err)
	}
	return &ConfigWatcher{
		path:     abs,
		runtime:  runtime,
		logger:   logger,
		watcher:  w,
		debounce: 100 * time.Millisecond,
	}, nil
}

// Start watches the config file's directory until ctx is cancelled or Stop is called.
// Editors that replace the file via rename are handled by watching the directory.
func (cw *ConfigWatcher) Start(ctx context.Context) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	if cw.running {
		return fmt.Errorf("config watcher already running")
	}
	if err := cw.watcher.Add(filepath.Dir(cw.path)); err != nil {
		return fmt.Errorf("failed to watch config dir: %w", err)
	}
	cw.running = true
	go cw.loop(ctx)
	return nil
}

// Stop releases the underlying watcher.
func (cw *ConfigWatcher) Stop() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	if !cw.running {
		return nil
	}
	cw.running = false
	return cw.watcher.Close()
}

func (cw *ConfigWatcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != cw.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			// Let the writer finish before reading.
			time.Sleep(cw.debounce)
			cw.reload()
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			cw.logger.Warn().Err(err).Str("path", cw.path).Msg("Config watcher error")
		}
	}
}

func (cw *ConfigWatcher) reload() {
	cfg, err := LoadConfig(cw.path)
	if err != nil {
		cw.logger.Warn().Err(err).Str("path", cw.path).Msg("Config reload rejected, keeping previous analytics settings")
		return
	}
	if err := cw.runtime.Store(cfg.Analytics); err != nil {
		cw.logger.Warn().Err(err).Msg("Analytics config invalid, keeping previous settings")
		return
	}
	cw.logger.Info().Str("path", cw.path).Msg("Analytics config reloaded")
}
