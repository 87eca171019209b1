package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce coalesces the burst of write events editors emit when
// saving a file.
const reloadDebounce = 500 * time.Millisecond

// Watcher reloads a config file on change and hands the result to a
// callback. Invalid intermediate states are logged and skipped; the
// last good config stays in effect.
type Watcher struct {
	path     string
	onReload func(*Config)
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
}

// NewWatcher watches the given config file. onReload is called with
// each successfully loaded and validated config.
func NewWatcher(path string, onReload func(*Config), logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the directory, not the file: editors replace files on
	// save, which would drop a direct file watch.
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, err
	}

	return &Watcher{
		path:     path,
		onReload: onReload,
		watcher:  fsw,
		logger:   logger,
	}, nil
}

// Run processes watch events until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	defer w.watcher.Close()

	var timer *time.Timer
	reload := func() {
		cfg, err := LoadFromFile(w.path)
		if err != nil {
			w.logger.Warn("Config reload failed, keeping previous config",
				slog.String("path", w.path),
				slog.String("error", err.Error()))
			return
		}
		if err := cfg.Validate(); err != nil {
			w.logger.Warn("Reloaded config invalid, keeping previous config",
				slog.String("path", w.path),
				slog.String("error", err.Error()))
			return
		}
		w.logger.Info("Config reloaded", slog.String("path", w.path))
		w.onReload(cfg)
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(reloadDebounce, reload)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Config watch error", slog.String("error", err.Error()))
		}
	}
}
