package packs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/keystride/keystride/pkg/logger"
)

// Watch invalidates the metadata cache whenever something under the root
// changes. Bursts of events are collapsed by the debounce interval. It blocks
// until ctx is done.
func (c *Catalog) Watch(ctx context.Context) error {
	if c.dir == "" {
		return ErrNoPacksDir
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = w.Close() }()

	if err := w.Add(c.dir); err != nil {
		return fmt.Errorf("watch %s: %w", c.dir, err)
	}
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("read packs dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			c.addWatch(ctx, w, filepath.Join(c.dir, e.Name()))
		}
	}
	c.log.Info(ctx, "watching packs", logger.String("dir", c.dir))

	timer := time.NewTimer(c.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					c.addWatch(ctx, w, ev.Name)
				}
			}
			timer.Reset(c.debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			c.log.Warn(ctx, "pack watcher error", logger.Error(err))
		case <-timer.C:
			c.Invalidate()
			c.log.Debug(ctx, "pack catalog invalidated")
		}
	}
}

func (c *Catalog) addWatch(ctx context.Context, w *fsnotify.Watcher, dir string) {
	if err := w.Add(dir); err != nil {
		c.log.Warn(ctx, "failed to watch pack", logger.String("dir", dir), logger.Error(err))
	}
}
