package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const DefaultDebounce = 250 * time.Millisecond

// Watcher reloads a config file whenever it changes on disk and hands
// every valid result to a callback. Invalid edits are logged and skipped.
type Watcher struct {
	path     string
	logger   *zap.Logger
	debounce time.Duration
	watcher  *fsnotify.Watcher
}

func NewWatcher(path string, logger *zap.Logger, debounce time.Duration) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: create watcher: %w", err)
	}
	return &Watcher{
		path:     filepath.Clean(path),
		logger:   logger,
		debounce: debounce,
		watcher:  w,
	}, nil
}

// Start watches the file's directory, since editors often replace the
// file rather than write to it. onChange runs on the watcher goroutine.
func (w *Watcher) Start(ctx context.Context, onChange func(*Config)) error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("config: watch %s: %w", w.path, err)
	}

	timer := time.NewTimer(0)
	<-timer.C

	go func() {
		for {
			select {
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != w.path {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				timer.Reset(w.debounce)

			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.logger.Warn("config watcher error", zap.Error(err))

			case <-timer.C:
				cfg, err := Load(w.path)
				if err != nil {
					w.logger.Warn("ignoring config change", zap.String("path", w.path), zap.Error(err))
					continue
				}
				w.logger.Info("config reloaded", zap.String("path", w.path))
				onChange(cfg)

			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

func (w *Watcher) Stop() error {
	return w.watcher.Close()
}
