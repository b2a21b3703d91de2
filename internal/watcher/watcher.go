// Package watcher keeps an index current by following file system events.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/robert-at-pretension-io/hdlkit/internal/config"
	"github.com/robert-at-pretension-io/hdlkit/internal/indexer"
)

// Applier receives coalesced events
type Applier interface {
	Apply(ctx context.Context, ev indexer.Event) (indexer.Outcome, error)
}

// Change is one event as applied to the index
type Change struct {
	Event   indexer.Event
	Outcome indexer.Outcome
	Err     error
}

// Watcher follows a directory tree and feeds HDL file changes to an Applier
type Watcher struct {
	// OnChange, when set, is called after every applied event. Calls may
	// come from several goroutines.
	OnChange func(Change)

	idx  Applier
	root string
	cfg  *config.Config
	fsw  *fsnotify.Watcher
}

// New creates a Watcher for root
func New(idx Applier, root string, cfg *config.Config) *Watcher {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Watcher{idx: idx, root: root, cfg: cfg}
}

// Run watches until ctx is done. Pending events are dropped on return and
// in-flight applies are waited for.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer fsw.Close()
	w.fsw = fsw

	if err := w.addWatchRecursive(w.root); err != nil {
		return fmt.Errorf("add watch paths: %w", err)
	}
	slog.Debug("watcher.started", "root", w.root, "debounce", w.cfg.Debounce())

	d := newDebouncer(w.cfg.Debounce(), func(ev indexer.Event) {
		w.dispatch(ctx, ev)
	})
	defer d.Stop()

	for {
		select {
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			for _, ev := range w.translate(event) {
				d.Add(ev)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watcher.error", "error", err)
		case <-ctx.Done():
			return nil
		}
	}
}

func (w *Watcher) dispatch(ctx context.Context, ev indexer.Event) {
	if ctx.Err() != nil {
		return
	}
	out, err := w.idx.Apply(ctx, ev)
	slog.Debug("watcher.applied", "op", ev.Kind.String(), "path", ev.Path, "outcome", out.String())
	if w.OnChange != nil {
		w.OnChange(Change{Event: ev, Outcome: out, Err: err})
	}
}

// translate maps one fsnotify event to zero or more index events
func (w *Watcher) translate(event fsnotify.Event) []indexer.Event {
	slog.Debug("watcher.event", "op", event.Op.String(), "path", event.Name)

	switch {
	case event.Op&fsnotify.Create != 0:
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if w.cfg.IsExcludedDir(event.Name) {
				return nil
			}
			if err := w.addWatchRecursive(event.Name); err != nil {
				slog.Warn("watcher.add_failed", "path", event.Name, "error", err)
			}
			// files may land in a new directory before it is watched
			return w.existingSources(event.Name)
		}
		if w.cfg.IsSource(event.Name) {
			return []indexer.Event{{Kind: indexer.EventCreate, Path: event.Name}}
		}
	case event.Op&fsnotify.Write != 0:
		if w.cfg.IsSource(event.Name) {
			return []indexer.Event{{Kind: indexer.EventChange, Path: event.Name}}
		}
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		if w.cfg.IsSource(event.Name) {
			return []indexer.Event{{Kind: indexer.EventDelete, Path: event.Name}}
		}
	}
	return nil
}

func (w *Watcher) existingSources(dir string) []indexer.Event {
	var events []indexer.Event
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != dir && w.cfg.IsExcludedDir(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if w.cfg.IsSource(path) {
			events = append(events, indexer.Event{Kind: indexer.EventCreate, Path: path})
		}
		return nil
	})
	return events
}

// addWatchRecursive adds the directory and all subdirectories to the watcher
func (w *Watcher) addWatchRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && w.cfg.IsExcludedDir(path) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

// debouncer coalesces events per path; the newest event for a path replaces
// any pending one and restarts that path's timer.
type debouncer struct {
	mu      sync.Mutex
	delay   time.Duration
	pending map[string]*pendingEvent
	onFire  func(indexer.Event)
	stopped bool
	wg      sync.WaitGroup
}

type pendingEvent struct {
	ev    indexer.Event
	timer *time.Timer
}

func newDebouncer(delay time.Duration, onFire func(indexer.Event)) *debouncer {
	return &debouncer{
		delay:   delay,
		pending: make(map[string]*pendingEvent),
		onFire:  onFire,
	}
}

// Add queues ev, replacing any pending event for the same path
func (d *debouncer) Add(ev indexer.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if prev, ok := d.pending[ev.Path]; ok {
		if prev.timer.Stop() {
			d.wg.Done()
		}
	}
	p := &pendingEvent{ev: ev}
	d.wg.Add(1)
	p.timer = time.AfterFunc(d.delay, func() { d.fire(p) })
	d.pending[ev.Path] = p
}

func (d *debouncer) fire(p *pendingEvent) {
	defer d.wg.Done()
	d.mu.Lock()
	if d.stopped || d.pending[p.ev.Path] != p {
		d.mu.Unlock()
		return
	}
	delete(d.pending, p.ev.Path)
	d.mu.Unlock()
	d.onFire(p.ev)
}

// Stop drops pending events and waits for running callbacks
func (d *debouncer) Stop() {
	d.mu.Lock()
	d.stopped = true
	for path, p := range d.pending {
		if p.timer.Stop() {
			d.wg.Done()
		}
		delete(d.pending, path)
	}
	d.mu.Unlock()
	d.wg.Wait()
}
