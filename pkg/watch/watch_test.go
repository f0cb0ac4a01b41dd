package watch_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyhub-apps/pdfpages-golang/pkg/watch"
)

func newWatcher(t *testing.T) (*watch.Watcher, chan string) {
	t.Helper()
	changed := make(chan string, 16)
	w, err := watch.New(func(path string) { changed <- path }, 20*time.Millisecond, nil)
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })
	return w, changed
}

func TestReportsWritesToWatchedFiles(t *testing.T) {
	dir := t.TempDir()
	watched := filepath.Join(dir, "a.pdf")
	other := filepath.Join(dir, "b.pdf")
	require.NoError(t, os.WriteFile(watched, []byte("one"), 0o644))
	require.NoError(t, os.WriteFile(other, []byte("one"), 0o644))

	w, changed := newWatcher(t)
	require.NoError(t, w.Add(watched))
	assert.True(t, w.Watching(watched))

	require.NoError(t, os.WriteFile(other, []byte("two"), 0o644))
	// several writes collapse into one notification
	for range 3 {
		require.NoError(t, os.WriteFile(watched, []byte("three"), 0o644))
	}

	select {
	case path := <-changed:
		abs, _ := filepath.Abs(watched)
		assert.Equal(t, abs, path)
	case <-time.After(2 * time.Second):
		t.Fatal("no change reported")
	}

	select {
	case path := <-changed:
		t.Fatalf("unexpected second notification for %s", path)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestReportsRemoval(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gone.png")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	w, changed := newWatcher(t)
	require.NoError(t, w.Add(path))
	require.NoError(t, os.Remove(path))

	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Fatal("removal not reported")
	}
}

func TestRemoveStopsNotifications(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.pdf")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	w, changed := newWatcher(t)
	require.NoError(t, w.Add(path))
	w.Remove(path)
	assert.False(t, w.Watching(path))

	require.NoError(t, os.WriteFile(path, []byte("y"), 0o644))
	select {
	case p := <-changed:
		t.Fatalf("unexpected notification for %s", p)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestClose(t *testing.T) {
	w, _ := newWatcher(t)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	assert.ErrorIs(t, w.Add(filepath.Join(t.TempDir(), "x.pdf")), watch.ErrClosed)
}
