package config

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// debounceDelay coalesces the multiple events editors emit for one save.
const debounceDelay = 100 * time.Millisecond

// Watcher reloads settings when the settings file changes on disk.
type Watcher struct {
	path     string
	holder   *Holder
	logger   *zap.Logger
	onChange func(*Settings)
}

// NewWatcher returns a watcher that stores reloaded settings in holder and
// then calls onChange (which may be nil).
func NewWatcher(path string, holder *Holder, logger *zap.Logger, onChange func(*Settings)) *Watcher {
	return &Watcher{
		path:     path,
		holder:   holder,
		logger:   logger.Named("config"),
		onChange: onChange,
	}
}

// Start begins watching. It returns once the watch is established; events are
// processed until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	if err := watcher.Add(w.path); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", w.path, err)
	}

	go w.run(ctx, watcher)

	return nil
}

func (w *Watcher) run(ctx context.Context, watcher *fsnotify.Watcher) {
	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
		_ = watcher.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}

			// Remove and Rename are part of atomic saves.
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}

			debounceTimer = time.AfterFunc(debounceDelay, func() {
				w.reload(watcher)
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("settings watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload(watcher *fsnotify.Watcher) {
	s, err := Load(w.path)
	if err != nil {
		w.logger.Warn("failed to reload settings", zap.String("path", w.path), zap.Error(err))
		return
	}

	// Re-add so a file recreated by an atomic save stays watched.
	if err := watcher.Add(w.path); err != nil {
		w.logger.Warn("failed to watch settings", zap.String("path", w.path), zap.Error(err))
	}

	w.holder.Store(s)
	w.logger.Info("settings reloaded", zap.String("path", w.path))

	if w.onChange != nil {
		w.onChange(s)
	}
}
