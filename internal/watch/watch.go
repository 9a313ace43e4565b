// Package watch re-triggers the consolidation pass when new relaxation
// results land in the tree. Long DFT campaigns finish charge states days
// apart; watching the energy logs keeps the merged ground-state set current
// without manual re-runs.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"shakedown/internal/defects"
)

// DebounceInterval is how long the watcher waits after the last energy-log
// change before firing, so a batch of files copied in at once triggers a
// single re-run.
const DebounceInterval = 2 * time.Second

// Watcher observes a results tree and invokes a callback after energy logs
// change.
type Watcher struct {
	root     string
	onChange func()
	fs       *fsnotify.Watcher
}

// New sets up a watcher over root and every "<defect>_<charge>" directory
// beneath it.
func New(root string, onChange func()) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fs.Add(root); err != nil {
		fs.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", root, err)
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		fs.Close()
		return nil, fmt.Errorf("failed to read %s: %w", root, err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, _, ok := defects.SplitSpeciesDir(e.Name()); !ok {
			continue
		}
		if err := fs.Add(filepath.Join(root, e.Name())); err != nil {
			fs.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", e.Name(), err)
		}
	}
	return &Watcher{root: root, onChange: onChange, fs: fs}, nil
}

// Run blocks, debouncing energy-log events into onChange calls, until the
// context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fs.Close()

	var timer *time.Timer
	fire := make(chan struct{}, 1)
	schedule := func() {
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(DebounceInterval, func() {
			select {
			case fire <- struct{}{}:
			default:
			}
		})
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-fire:
			w.onChange()
		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if w.relevant(event) {
				schedule()
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch error: %w", err)
		}
	}
}

// relevant reports whether an event concerns an energy log, or a newly
// created charge-state directory (which is added to the watch set).
func (w *Watcher) relevant(event fsnotify.Event) bool {
	name := filepath.Base(event.Name)
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if _, _, ok := defects.SplitSpeciesDir(name); ok {
				_ = w.fs.Add(event.Name)
			}
			return false
		}
	}
	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
		return false
	}
	return strings.HasSuffix(name, ".txt")
}
