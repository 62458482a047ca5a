// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package watch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/gasper/internal/site"
)

// countingBuilder records builds and fails the ones listed in fail.
type countingBuilder struct {
	mu    sync.Mutex
	calls int
	fail  map[int]bool
	built chan struct{}
}

func newCountingBuilder() *countingBuilder {
	return &countingBuilder{fail: map[int]bool{}, built: make(chan struct{}, 64)}
}

func (b *countingBuilder) Build(context.Context) (site.Summary, error) {
	b.mu.Lock()
	b.calls++
	n := b.calls
	b.mu.Unlock()
	defer func() { b.built <- struct{}{} }()
	if b.fail[n] {
		return site.Summary{ID: "b", Failed: 1}, errors.New("1 of 1 documents failed")
	}
	return site.Summary{ID: "b", Generated: 1}, nil
}

func (b *countingBuilder) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newWatcher(t *testing.T, b Builder) (*Watcher, string, string) {
	t.Helper()
	root := t.TempDir()
	out := filepath.Join(root, "dist")
	require.NoError(t, os.MkdirAll(out, 0o755))
	w, err := New(root, out, b, quiet())
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return w, root, out
}

func TestShouldIgnore(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{path: "site/index.md", want: false},
		{path: "site/_layout/base.html", want: false},
		{path: "site/.index.md.swp", want: true},
		{path: "site/index.md.swp", want: true},
		{path: "site/index.md~", want: true},
		{path: "site/#index.md#", want: true},
		{path: "site/.DS_Store", want: true},
		{path: "site/Thumbs.db", want: true},
		{path: "site/4913", want: true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldIgnore(tt.path))
		})
	}
}

func TestHandleRebuildsOncePerEvent(t *testing.T) {
	b := newCountingBuilder()
	w, root, out := newWatcher(t, b)
	ctx := context.Background()

	w.handle(ctx, fsnotify.Event{Name: filepath.Join(root, "index.md"), Op: fsnotify.Write})
	w.handle(ctx, fsnotify.Event{Name: filepath.Join(root, "about.md"), Op: fsnotify.Create})
	w.handle(ctx, fsnotify.Event{Name: filepath.Join(root, "about.md"), Op: fsnotify.Chmod})
	w.handle(ctx, fsnotify.Event{Name: filepath.Join(out, "index.html"), Op: fsnotify.Write})
	w.handle(ctx, fsnotify.Event{Name: filepath.Join(root, ".about.md.swp"), Op: fsnotify.Write})

	assert.Equal(t, 2, b.Calls())
}

func TestFailedRebuildKeepsWatching(t *testing.T) {
	b := newCountingBuilder()
	b.fail[1] = true
	w, root, _ := newWatcher(t, b)

	var outcomes []error
	w.OnBuild = func(_ site.Summary, err error) { outcomes = append(outcomes, err) }

	ctx := context.Background()
	w.handle(ctx, fsnotify.Event{Name: filepath.Join(root, "a.md"), Op: fsnotify.Write})
	w.handle(ctx, fsnotify.Event{Name: filepath.Join(root, "a.md"), Op: fsnotify.Write})

	require.Len(t, outcomes, 2)
	assert.Error(t, outcomes[0])
	assert.NoError(t, outcomes[1])
}

func TestNewSkipsOutputAndHiddenDirs(t *testing.T) {
	root := t.TempDir()
	for _, dir := range []string{"dist/sub", ".git/objects", "_layout", "blog/2024"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, dir), 0o755))
	}

	w, err := New(root, filepath.Join(root, "dist"), newCountingBuilder(), quiet())
	require.NoError(t, err)
	defer w.Close()

	watched := w.fsw.WatchList()
	assert.Contains(t, watched, filepath.Join(root, "_layout"))
	assert.Contains(t, watched, filepath.Join(root, "blog", "2024"))
	assert.NotContains(t, watched, filepath.Join(root, "dist"))
	assert.NotContains(t, watched, filepath.Join(root, "dist", "sub"))
	assert.NotContains(t, watched, filepath.Join(root, ".git"))
}

func TestRunRebuildsOnChange(t *testing.T) {
	b := newCountingBuilder()
	w, root, _ := newWatcher(t, b)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.NoError(t, os.WriteFile(filepath.Join(root, "index.md"), []byte("hi"), 0o644))

	select {
	case <-b.built:
	case <-time.After(5 * time.Second):
		t.Fatal("no rebuild after file change")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunWatchesNewDirectories(t *testing.T) {
	b := newCountingBuilder()
	w, root, _ := newWatcher(t, b)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	sub := filepath.Join(root, "blog")
	require.NoError(t, os.Mkdir(sub, 0o755))
	select {
	case <-b.built:
	case <-time.After(5 * time.Second):
		t.Fatal("no rebuild after directory creation")
	}

	assert.Eventually(t, func() bool {
		for _, p := range w.fsw.WatchList() {
			if p == sub {
				return true
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)
}
