// Package watch reloads the config file when it changes on disk.
package watch

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jimmyptl-jer/Docker/internal/config"
)

const defaultDebounce = 500 * time.Millisecond

// Watcher re-reads a config file after writes settle and hands the result
// to an apply func. Decode failures are logged and the previous values stay.
type Watcher struct {
	path     string
	apply    func(*config.Config)
	debounce time.Duration
	logger   *slog.Logger
}

// New creates a watcher for the config file at path.
func New(path string, apply func(*config.Config), logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		path:     path,
		apply:    apply,
		debounce: defaultDebounce,
		logger:   logger.With("component", "watch"),
	}
}

// WithDebounce overrides the quiet period before a reload.
func (w *Watcher) WithDebounce(d time.Duration) *Watcher {
	w.debounce = d
	return w
}

// Run watches until ctx is cancelled. The parent directory is watched so
// that editors which replace the file via rename are still seen.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	abs, err := filepath.Abs(w.path)
	if err != nil {
		return err
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		return err
	}

	w.logger.Info("watching config file for changes", "file", abs)

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			w.logger.Debug("config file changed", "op", event.Op)

			// Debounce: reset timer on each event
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounce, func() {
				if ctx.Err() != nil {
					return
				}
				w.reload()
			})

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("file watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := config.LoadFile(w.path)
	if err != nil {
		w.logger.Error("config reload failed, keeping previous values", "error", err)
		return
	}
	w.logger.Info("config reloaded", "file", w.path)
	w.apply(cfg)
}
