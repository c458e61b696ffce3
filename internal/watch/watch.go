// Package watch reruns a callback when the CUE files of a layout directory
// change. Bursts of events are debounced so an editor's save sequence
// triggers one rebuild.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher watches one directory for changes to .cue files.
type Watcher struct {
	dir      string
	debounce time.Duration
	log      *zap.Logger

	mu      sync.Mutex
	pending map[string]time.Time
}

// New returns a watcher for dir. A nil logger discards log output.
func New(dir string, debounce time.Duration, log *zap.Logger) (*Watcher, error) {
	if debounce < 0 {
		return nil, fmt.Errorf("watch: debounce must not be negative, got %s", debounce)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Watcher{
		dir:      dir,
		debounce: debounce,
		log:      log.Named("watch"),
		pending:  make(map[string]time.Time),
	}, nil
}

// Run watches until ctx is done, calling onChange with the changed files
// once they have been quiet for the debounce period. onChange runs on the
// watcher goroutine, so events that arrive during a rebuild are batched
// into the next call. Run returns nil when ctx is canceled.
func (w *Watcher) Run(ctx context.Context, onChange func(ctx context.Context, files []string)) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch: add %s: %w", w.dir, err)
	}
	w.log.Debug("watching", zap.String("dir", w.dir), zap.Duration("debounce", w.debounce))

	ticker := time.NewTicker(tickInterval(w.debounce))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watcher error", zap.Error(err))

		case now := <-ticker.C:
			if files := w.settled(now); len(files) > 0 {
				onChange(ctx, files)
			}
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Ext(event.Name) != ".cue" {
		return
	}
	// Chmod alone does not change content.
	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) &&
		!event.Op.Has(fsnotify.Remove) && !event.Op.Has(fsnotify.Rename) {
		return
	}
	w.log.Debug("change", zap.String("file", event.Name), zap.Stringer("op", event.Op))

	w.mu.Lock()
	w.pending[event.Name] = time.Now()
	w.mu.Unlock()
}

// settled removes and returns, sorted, the files quiet since now-debounce.
// A file is only reported once every pending file has settled, so one
// save touching several files yields one callback.
func (w *Watcher) settled(now time.Time) []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.pending) == 0 {
		return nil
	}
	for _, at := range w.pending {
		if now.Sub(at) < w.debounce {
			return nil
		}
	}
	files := make([]string, 0, len(w.pending))
	for f := range w.pending {
		files = append(files, f)
	}
	clear(w.pending)
	slices.Sort(files)
	return files
}

func tickInterval(debounce time.Duration) time.Duration {
	tick := debounce / 2
	switch {
	case tick < 10*time.Millisecond:
		return 10 * time.Millisecond
	case tick > 100*time.Millisecond:
		return 100 * time.Millisecond
	}
	return tick
}
