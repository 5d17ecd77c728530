package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Watcher invokes a callback when the configuration document changes on disk.
// Events are debounced: editors and atomic-rename writers fire several events
// per save.
type Watcher struct {
	watcher *fsnotify.Watcher
	logger  *logrus.Logger
	done    chan struct{}
}

func NewWatcher(path string, debounce time.Duration, logger *logrus.Logger, onChange func()) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create config watcher: %w", err)
	}

	// Watch the directory, not the file: rename-based saves replace the
	// inode and would silently drop a file watch.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}

	w := &Watcher{watcher: fw, logger: logger, done: make(chan struct{})}
	go w.run(filepath.Base(path), debounce, onChange)
	return w, nil
}

func (w *Watcher) run(base string, debounce time.Duration, onChange func()) {
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			w.logger.Info("Config file changed, reloading")
			onChange()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Errorf("Config watcher error: %v", err)
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) Stop() {
	close(w.done)
	w.watcher.Close()
}
