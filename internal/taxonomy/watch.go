package taxonomy

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 500 * time.Millisecond

// Watcher reloads a taxonomy file when it changes. A reload builds and
// validates a fresh Registry and swaps it into the Holder; a file that
// fails validation is logged and the previous Registry stays live.
type Watcher struct {
	path     string
	holder   *Holder
	debounce time.Duration
	logger   *zap.Logger
	onReload func(ok bool)
}

func NewWatcher(path string, holder *Holder, debounce time.Duration, logger *zap.Logger) *Watcher {
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		path:     filepath.Clean(path),
		holder:   holder,
		debounce: debounce,
		logger:   logger.Named("taxonomy"),
	}
}

// OnReload registers a callback invoked after every reload attempt.
func (w *Watcher) OnReload(fn func(ok bool)) {
	w.onReload = fn
}

// Run watches the file's directory until ctx is cancelled. The directory
// is watched rather than the file so editors that replace the file by
// rename are still seen.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create taxonomy watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", w.path, err)
	}

	w.logger.Info("watching taxonomy",
		zap.String("path", w.path),
		zap.Duration("debounce", w.debounce),
	)

	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				fire = time.After(w.debounce)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("taxonomy watcher error", zap.Error(err))

		case <-fire:
			fire = nil
			if err := w.Reload(); err != nil {
				w.logger.Error("taxonomy reload rejected, keeping previous version", zap.Error(err))
			}
		}
	}
}

// Reload loads the file now and swaps it in when valid.
func (w *Watcher) Reload() error {
	reg, err := LoadFile(w.path)
	if err != nil {
		w.notify(false)
		return err
	}
	old := w.holder.Swap(reg)

	fields := []zap.Field{zap.Int("version", reg.Version()), zap.Int("profiles", len(reg.ordered))}
	if old != nil {
		fields = append(fields, zap.Int("previous_version", old.Version()))
	}
	w.logger.Info("taxonomy reloaded", fields...)
	w.notify(true)
	return nil
}

func (w *Watcher) notify(ok bool) {
	if w.onReload != nil {
		w.onReload(ok)
	}
}
