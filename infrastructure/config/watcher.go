package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Overrides is the runtime-changeable subset of the configuration, read from
// the optional CONFIG_OVERRIDES_FILE JSON document.
type Overrides struct {
	LogLevel    string            `json:"logLevel,omitempty"`
	Credentials map[string]string `json:"credentials,omitempty"`
}

// OverridesCallback is invoked with the freshly loaded overrides.
type OverridesCallback func(*Overrides)

// Watcher watches the overrides file for changes and republishes it to the
// registered callbacks. Atomic saves (write + rename) are handled by watching
// the parent directory as well.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	logger   *zap.Logger
	stopCh   chan struct{}
	stopOnce sync.Once

	mu        sync.RWMutex
	current   *Overrides
	callbacks []OverridesCallback
}

// NewWatcher loads the overrides file and starts watching it.
func NewWatcher(path string, logger *zap.Logger) (*Watcher, error) {
	current, err := loadOverrides(path)
	if err != nil {
		return nil, fmt.Errorf("load initial overrides: %w", err)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	if err := fsWatcher.Add(path); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("watch overrides file: %w", err)
	}
	if err := fsWatcher.Add(filepath.Dir(path)); err != nil {
		logger.Warn("failed to watch overrides directory", zap.Error(err))
	}

	w := &Watcher{
		path:    path,
		watcher: fsWatcher,
		logger:  logger,
		stopCh:  make(chan struct{}),
		current: current,
	}
	go w.run()
	return w, nil
}

// Current returns the last successfully loaded overrides.
func (w *Watcher) Current() *Overrides {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// OnChange registers a callback fired on every successful reload. The
// callback also fires immediately with the current value.
func (w *Watcher) OnChange(cb OverridesCallback) {
	w.mu.Lock()
	w.callbacks = append(w.callbacks, cb)
	current := w.current
	w.mu.Unlock()
	cb(current)
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	w.stopOnce.Do(func() { close(w.stopCh) })
	return w.watcher.Close()
}

func (w *Watcher) run() {
	for {
		select {
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Name != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("overrides watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload() {
	overrides, err := loadOverrides(w.path)
	if err != nil {
		w.logger.Warn("ignoring unreadable overrides file", zap.Error(err))
		return
	}

	w.mu.Lock()
	w.current = overrides
	callbacks := append([]OverridesCallback(nil), w.callbacks...)
	w.mu.Unlock()

	w.logger.Info("configuration overrides reloaded", zap.String("path", w.path))
	for _, cb := range callbacks {
		cb(overrides)
	}
}

func loadOverrides(path string) (*Overrides, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var overrides Overrides
	if err := json.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &overrides, nil
}
