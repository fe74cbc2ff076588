package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/glasswing-io/tray-agent/internal/logging"
)

// Editors save by writing a temp file and renaming it over the original,
// so events for the watched name can arrive as create or rename. Bursts of
// events for one save are collapsed into a single callback.
const watchDebounce = 250 * time.Millisecond

// Watcher reports changes to one config file.
type Watcher struct {
	fw   *fsnotify.Watcher
	done chan struct{}
	once sync.Once
}

// Watch starts watching path and invokes onChange (on the watcher's own
// goroutine) after the file changes. The parent directory is watched
// rather than the file itself so replace-style saves keep working.
func Watch(path string, onChange func()) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create config watcher: %w", err)
	}
	dir := filepath.Dir(path)
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	w := &Watcher{fw: fw, done: make(chan struct{})}
	go w.loop(filepath.Clean(path), onChange)

	logging.Debug(logging.CatConfig, "Watching config file", map[string]any{
		"path": path,
	})
	return w, nil
}

func (w *Watcher) loop(path string, onChange func()) {
	var pending *time.Timer
	defer func() {
		if pending != nil {
			pending.Stop()
		}
	}()

	for {
		select {
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			logging.Debug(logging.CatConfig, "Config file changed", map[string]any{
				"op": ev.Op.String(),
			})
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(watchDebounce, onChange)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			logging.Warn(logging.CatConfig, "Config watcher error", map[string]any{
				"error": err.Error(),
			})
		case <-w.done:
			return
		}
	}
}

// Close stops the watcher. Safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.fw.Close()
	})
	return err
}
