package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher observes the persona package directory. Persona configuration is
// immutable per run, so a change on disk cannot be hot-applied; instead the
// watcher signals the orchestrator to finish the current session and stop so
// a supervisor can restart with the new files.
type Watcher struct {
	watcher *fsnotify.Watcher
	changed chan string
	logger  *zap.Logger
}

// NewWatcher starts watching dir. Close the returned watcher on shutdown.
func NewWatcher(dir string, logger *zap.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Watcher{
		watcher: fw,
		changed: make(chan string, 1),
		logger:  logger,
	}
	return w, nil
}

// Run pumps fsnotify events until ctx is done. Only writes/creates/removes of
// yaml files count as persona changes.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(ev.Name, ".yaml") && !strings.HasSuffix(ev.Name, ".yml") {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.logger.Warn("persona package changed on disk; restart required to apply",
				zap.String("file", ev.Name), zap.String("op", ev.Op.String()))
			select {
			case w.changed <- ev.Name:
			default: // already pending
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("persona watcher error", zap.Error(err))
		}
	}
}

// Changed is signalled at most once per pending change.
func (w *Watcher) Changed() <-chan string {
	return w.changed
}

// Close stops the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
