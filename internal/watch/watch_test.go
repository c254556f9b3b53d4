package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	calls []bool
}

func (r *recorder) build(_ context.Context, full bool) error {
	r.mu.Lock()
	r.calls = append(r.calls, full)
	r.mu.Unlock()
	return nil
}

func (r *recorder) snapshot() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.calls...)
}

func runWatcher(t *testing.T, w *Watcher) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-errCh:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("watcher did not stop")
		}
	})
	// give fsnotify time to register
	time.Sleep(50 * time.Millisecond)
	return cancel
}

func TestFileChangeTriggersDebouncedBuild(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "cigars"), 0o750))
	rec := &recorder{}
	w := New(rec.build, Options{
		Roots:    []string{root},
		Debounce: 50 * time.Millisecond,
		Relevant: func(p string) bool { return strings.HasSuffix(p, ".md") },
	})
	runWatcher(t, w)

	for i := range 3 {
		require.NoError(t, os.WriteFile(filepath.Join(root, "cigars", "a.md"), []byte{byte('a' + i)}, 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "cigars", "ignored.txt"), []byte("x"), 0o644))

	require.Eventually(t, func() bool { return w.Builds() >= 1 }, 3*time.Second, 10*time.Millisecond)
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, []bool{false}, rec.snapshot(), "burst collapses into one incremental build")
}

func TestMovedInDirectoryTriggersFullBuild(t *testing.T) {
	root := t.TempDir()
	staging := t.TempDir()
	src := filepath.Join(staging, "snus")
	require.NoError(t, os.MkdirAll(src, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(src, "2024-05-01-general.md"), []byte("x"), 0o644))
	old := time.Now().Add(-24 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(src, "2024-05-01-general.md"), old, old))

	rec := &recorder{}
	w := New(rec.build, Options{
		Roots:    []string{root},
		Debounce: 50 * time.Millisecond,
		Relevant: func(p string) bool { return strings.HasSuffix(p, ".md") },
	})
	runWatcher(t, w)

	require.NoError(t, os.Rename(src, filepath.Join(root, "snus")))
	require.Eventually(t, func() bool { return w.Builds() >= 1 }, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, []bool{true}, rec.snapshot())

	// an empty directory alone does not rebuild
	require.NoError(t, os.MkdirAll(filepath.Join(root, "ryo"), 0o750))
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 1, w.Builds())
}

func TestTriggersCoalesceWhileBuilding(t *testing.T) {
	release := make(chan struct{})
	var started atomic.Int32
	var mu sync.Mutex
	var fulls []bool
	w := New(func(_ context.Context, full bool) error {
		started.Add(1)
		mu.Lock()
		fulls = append(fulls, full)
		mu.Unlock()
		<-release
		return nil
	}, Options{Roots: []string{t.TempDir()}})
	runWatcher(t, w)

	w.Trigger(false)
	require.Eventually(t, func() bool { return started.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	w.Trigger(false)
	w.Trigger(true)
	w.Trigger(false)
	close(release)

	require.Eventually(t, func() bool { return w.Builds() == 2 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []bool{false, true}, fulls, "queued requests merge and keep the full flag")
}

func TestPeriodicFullRebuild(t *testing.T) {
	rec := &recorder{}
	w := New(rec.build, Options{Roots: []string{t.TempDir()}, FullRebuildInterval: 50 * time.Millisecond})
	runWatcher(t, w)

	require.Eventually(t, func() bool { return w.Builds() >= 1 }, 3*time.Second, 10*time.Millisecond)
	calls := rec.snapshot()
	require.NotEmpty(t, calls)
	assert.True(t, calls[0])
}

func TestIgnored(t *testing.T) {
	assert.True(t, ignored("/x/.hidden.md"))
	assert.True(t, ignored("/x/note.md.swp"))
	assert.True(t, ignored("/x/note.md~"))
	assert.False(t, ignored("/x/2024-01-01-note.md"))
}
