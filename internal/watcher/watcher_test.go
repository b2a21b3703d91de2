package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-at-pretension-io/hdlkit/internal/config"
	"github.com/robert-at-pretension-io/hdlkit/internal/indexer"
)

type recordingApplier struct {
	mu     sync.Mutex
	events []indexer.Event
}

func (r *recordingApplier) Apply(_ context.Context, ev indexer.Event) (indexer.Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return indexer.OutcomeUpdated, nil
}

func (r *recordingApplier) snapshot() []indexer.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]indexer.Event(nil), r.events...)
}

func TestDebouncerCoalescesPerPath(t *testing.T) {
	var mu sync.Mutex
	var fired []indexer.Event
	d := newDebouncer(30*time.Millisecond, func(ev indexer.Event) {
		mu.Lock()
		fired = append(fired, ev)
		mu.Unlock()
	})

	d.Add(indexer.Event{Kind: indexer.EventCreate, Path: "a.sv"})
	d.Add(indexer.Event{Kind: indexer.EventChange, Path: "a.sv"})
	d.Add(indexer.Event{Kind: indexer.EventChange, Path: "b.sv"})
	d.Add(indexer.Event{Kind: indexer.EventDelete, Path: "a.sv"})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(fired) == 2
	}, 2*time.Second, 5*time.Millisecond)
	d.Stop()

	byPath := map[string]indexer.EventKind{}
	for _, ev := range fired {
		byPath[ev.Path] = ev.Kind
	}
	assert.Equal(t, map[string]indexer.EventKind{
		"a.sv": indexer.EventDelete,
		"b.sv": indexer.EventChange,
	}, byPath)
}

func TestDebouncerStopDropsPending(t *testing.T) {
	called := false
	d := newDebouncer(time.Hour, func(indexer.Event) { called = true })
	d.Add(indexer.Event{Kind: indexer.EventChange, Path: "a.sv"})
	d.Stop()
	d.Add(indexer.Event{Kind: indexer.EventChange, Path: "b.sv"})
	assert.False(t, called)
	assert.Empty(t, d.pending)
}

func TestTranslate(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.sv")
	require.NoError(t, os.WriteFile(file, []byte("module a; endmodule"), 0o644))

	w := New(&recordingApplier{}, dir, config.DefaultConfig())

	tests := []struct {
		name  string
		event fsnotify.Event
		want  []indexer.Event
	}{
		{"create", fsnotify.Event{Name: file, Op: fsnotify.Create}, []indexer.Event{{Kind: indexer.EventCreate, Path: file}}},
		{"write", fsnotify.Event{Name: file, Op: fsnotify.Write}, []indexer.Event{{Kind: indexer.EventChange, Path: file}}},
		{"remove", fsnotify.Event{Name: file, Op: fsnotify.Remove}, []indexer.Event{{Kind: indexer.EventDelete, Path: file}}},
		{"rename", fsnotify.Event{Name: file, Op: fsnotify.Rename}, []indexer.Event{{Kind: indexer.EventDelete, Path: file}}},
		{"chmod", fsnotify.Event{Name: file, Op: fsnotify.Chmod}, nil},
		{"not hdl", fsnotify.Event{Name: filepath.Join(dir, "notes.md"), Op: fsnotify.Write}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, w.translate(tt.event))
		})
	}
}

func TestRunAppliesFileChanges(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Watch.DebounceMS = 20

	rec := &recordingApplier{}
	w := New(rec, dir, cfg)
	changes := make(chan Change, 16)
	w.OnChange = func(c Change) {
		select {
		case changes <- c:
		default:
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	// give the watcher time to register the root
	time.Sleep(100 * time.Millisecond)

	file := filepath.Join(dir, "core.sv")
	require.NoError(t, os.WriteFile(file, []byte("module core; endmodule"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.md"), []byte("x"), 0o644))

	select {
	case c := <-changes:
		assert.Equal(t, file, c.Event.Path)
		assert.NotEqual(t, indexer.EventDelete, c.Event.Kind)
		assert.Equal(t, indexer.OutcomeUpdated, c.Outcome)
	case <-time.After(5 * time.Second):
		t.Fatal("no change observed")
	}

	sub := filepath.Join(dir, "rtl")
	require.NoError(t, os.Mkdir(sub, 0o755))
	nested := filepath.Join(sub, "alu.v")
	require.NoError(t, os.WriteFile(nested, []byte("module alu; endmodule"), 0o644))

	require.Eventually(t, func() bool {
		for _, ev := range rec.snapshot() {
			if ev.Path == nested {
				return true
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)

	for _, ev := range rec.snapshot() {
		assert.NotEqual(t, filepath.Join(dir, "readme.md"), ev.Path)
	}
}
