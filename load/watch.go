package load

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReloadFunc receives the freshly parsed definitions after a change to the
// watched directory, or the parse error when reloading failed.
type ReloadFunc func(defs *Definitions, err error)

// Watch reloads the definition directory whenever one of its YAML files
// changes and hands the result to fn. Events are debounced briefly since
// editors typically emit several per save. Watch blocks until ctx is done.
func Watch(ctx context.Context, dir string, fn ReloadFunc) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(dir); err != nil {
		return err
	}
	const debounce = 100 * time.Millisecond
	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Op.Has(fsnotify.Write | fsnotify.Create | fsnotify.Remove | fsnotify.Rename) {
				continue
			}
			switch filepath.Ext(event.Name) {
			case ".yaml", ".yml":
			default:
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
				pending = timer.C
			} else {
				timer.Reset(debounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("load: watch error", "dir", dir, "err", err)
		case <-pending:
			timer, pending = nil, nil
			fn(Directory(dir))
		}
	}
}
