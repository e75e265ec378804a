package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vcnkl/coalesce/debounce"
)

func newTestWatcher(t *testing.T, ignore []string) (*Watcher, *clockwork.FakeClock, chan string) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	w, err := New(Options{
		Ignore:   ignore,
		Debounce: debounce.Options{Wait: 100 * time.Millisecond, Clock: clock},
	})
	require.NoError(t, err)
	t.Cleanup(w.Stop)

	changes := make(chan string, 10)
	w.OnChange(func(path string) { changes <- path })
	return w, clock, changes
}

func expectChange(t *testing.T, changes <-chan string) string {
	t.Helper()
	select {
	case path := <-changes:
		return path
	case <-time.After(2 * time.Second):
		t.Fatal("expected a change notification")
		return ""
	}
}

func expectNoChange(t *testing.T, changes <-chan string) {
	t.Helper()
	select {
	case path := <-changes:
		t.Fatalf("unexpected change notification for %s", path)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWatcher_CoalescesBurst(t *testing.T) {
	w, clock, changes := newTestWatcher(t, nil)

	w.handle(fsnotify.Event{Name: "a.go", Op: fsnotify.Write})
	clock.Advance(50 * time.Millisecond)
	w.handle(fsnotify.Event{Name: "b.go", Op: fsnotify.Create})
	clock.Advance(50 * time.Millisecond)
	w.handle(fsnotify.Event{Name: "c.go", Op: fsnotify.Remove})
	expectNoChange(t, changes)

	clock.Advance(100 * time.Millisecond)
	assert.Equal(t, "c.go", expectChange(t, changes))
	expectNoChange(t, changes)
}

func TestWatcher_IgnoresChmod(t *testing.T) {
	w, clock, changes := newTestWatcher(t, nil)

	w.handle(fsnotify.Event{Name: "a.go", Op: fsnotify.Chmod})
	clock.Advance(time.Second)
	expectNoChange(t, changes)
}

func TestWatcher_PauseResume(t *testing.T) {
	w, clock, changes := newTestWatcher(t, nil)

	w.Pause()
	assert.True(t, w.Paused())
	w.handle(fsnotify.Event{Name: "a.go", Op: fsnotify.Write})
	clock.Advance(time.Second)
	expectNoChange(t, changes)

	w.Resume()
	assert.False(t, w.Paused())
	w.handle(fsnotify.Event{Name: "b.go", Op: fsnotify.Write})
	clock.Advance(100 * time.Millisecond)
	assert.Equal(t, "b.go", expectChange(t, changes))
}

func TestWatcher_OnChangeSwapsHandler(t *testing.T) {
	w, clock, changes := newTestWatcher(t, nil)

	w.handle(fsnotify.Event{Name: "a.go", Op: fsnotify.Write})

	swapped := make(chan string, 1)
	w.OnChange(func(path string) { swapped <- path })
	clock.Advance(100 * time.Millisecond)

	assert.Equal(t, "a.go", expectChange(t, swapped))
	expectNoChange(t, changes)
}

func TestWatcher_ShouldIgnore(t *testing.T) {
	tests := []struct {
		name     string
		ignore   []string
		path     string
		expected bool
	}{
		{name: "no patterns", path: "src/main.go", expected: false},
		{name: "extension glob", ignore: []string{"*.log"}, path: "logs/app.log", expected: true},
		{name: "extension glob miss", ignore: []string{"*.log"}, path: "src/main.go", expected: false},
		{name: "directory segment", ignore: []string{"slices"}, path: "out/slices/0.wav", expected: true},
		{name: "double star", ignore: []string{"./dist/**"}, path: "dist/bundle.js", expected: true},
		{name: "trailing slash", ignore: []string{"build/"}, path: "build/app", expected: true},
		{name: "partial segment is not a match", ignore: []string{"slice"}, path: "slices/0.wav", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &Watcher{ignore: tt.ignore}
			assert.Equal(t, tt.expected, w.shouldIgnore(tt.path))
		})
	}
}

func TestWatcher_Start(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules"), 0755))

	w, err := New(Options{
		Paths:    []string{root},
		Ignore:   []string{"*.tmp"},
		Debounce: debounce.Options{Wait: 20 * time.Millisecond},
	})
	require.NoError(t, err)

	changes := make(chan string, 10)
	w.OnChange(func(path string) { changes <- path })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	target := filepath.Join(root, "main.go")
	require.Eventually(t, func() bool {
		if err := os.WriteFile(target, []byte("package main"), 0644); err != nil {
			return false
		}
		select {
		case path := <-changes:
			return path == target
		case <-time.After(100 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	w.Stop()
}

func TestWatcher_StartMissingPath(t *testing.T) {
	w, err := New(Options{Paths: []string{filepath.Join(t.TempDir(), "missing")}})
	require.NoError(t, err)
	defer w.Stop()

	err = w.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to watch path")
}
