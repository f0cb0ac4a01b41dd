package session_test

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyhub-apps/pdfpages-golang/internal/testpdf"
	"github.com/pyhub-apps/pdfpages-golang/pkg/export"
	"github.com/pyhub-apps/pdfpages-golang/pkg/page"
	"github.com/pyhub-apps/pdfpages-golang/pkg/pdf"
	"github.com/pyhub-apps/pdfpages-golang/pkg/render"
	"github.com/pyhub-apps/pdfpages-golang/pkg/session"
	"github.com/pyhub-apps/pdfpages-golang/pkg/source"
)

func TestMain(m *testing.M) {
	api.DisableConfigDir()
	os.Exit(m.Run())
}

func newSession(t *testing.T, opts ...session.Option) (*session.Session, *session.Recorder) {
	t.Helper()
	rec := &session.Recorder{}
	cfg := session.DefaultConfig()
	cfg.ItemSize = 32
	s, err := session.New(cfg, append([]session.Option{session.WithEmitter(rec)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, rec
}

func numbers(s *session.Session) []int {
	var out []int
	for _, p := range s.State().Pages {
		out = append(out, p.Number)
	}
	return out
}

// structural events only; thumbnails arrive asynchronously
var structural = []session.EventKind{
	session.EventBusy,
	session.EventSelection,
	session.EventPageCount,
	session.EventModified,
	session.EventHistory,
	session.EventOperation,
}

func TestInsertFileIntoSequence(t *testing.T) {
	dir := t.TempDir()
	nine := testpdf.WritePages(t, dir, "nine.pdf", 9)
	two := testpdf.WritePDF(t, dir, "two.pdf", testpdf.Page{Width: 200, Height: 100}, testpdf.Page{Width: 200, Height: 100})
	s, rec := newSession(t)
	ctx := context.Background()

	report, err := s.Insert(ctx, 0, []string{nine})
	require.NoError(t, err)
	assert.Equal(t, 9, report.Inserted)
	assert.Equal(t, []session.EventKind{
		session.EventBusy,
		session.EventPageCount,
		session.EventModified,
		session.EventHistory,
		session.EventOperation,
		session.EventBusy,
	}, rec.Kinds(structural...))

	report, err = s.Insert(ctx, 3, []string{two})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Inserted)

	state := s.State()
	require.Len(t, state.Pages, 11)
	assert.Equal(t, []int{1, 2, 3, 1, 2, 4, 5, 6, 7, 8, 9}, numbers(s))
	twoKey, _ := filepath.Abs(two)
	assert.Equal(t, twoKey, state.Pages[3].FileID)
	assert.Equal(t, twoKey, state.Pages[4].FileID)
	assert.Equal(t, 4, state.Pages[5].Number)
	for i, p := range state.Pages {
		assert.Equal(t, i, p.Index)
	}
	assert.True(t, state.History.Modified)
}

func TestInsertIsBestEffort(t *testing.T) {
	dir := t.TempDir()
	good := testpdf.WritePages(t, dir, "good.pdf", 2)
	photo := testpdf.WritePNG(t, dir, "photo.png", 20, 10)
	junk := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(junk, []byte("hello"), 0o644))
	s, _ := newSession(t)

	report, err := s.Insert(context.Background(), 0, []string{good, filepath.Join(dir, "missing.pdf"), junk, photo})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Inserted)
	require.Len(t, report.Skipped, 2)
	assert.ErrorIs(t, report.Skipped[0], source.ErrNotFound)
	assert.ErrorIs(t, report.Skipped[1], source.ErrUnsupported)

	state := s.State()
	assert.Equal(t, page.KindImage, state.Pages[2].Kind)
}

func TestInsertAuthenticationFailureAborts(t *testing.T) {
	dir := t.TempDir()
	good := testpdf.WritePages(t, dir, "good.pdf", 2)
	locked := testpdf.WriteEncrypted(t, dir, "locked.pdf", 1, "secret")
	wrong := source.PasswordFunc(func(context.Context, string) (string, error) { return "nope", nil })
	s, _ := newSession(t, session.WithPasswordQuerier(wrong))

	report, err := s.Insert(context.Background(), 0, []string{good, locked})
	assert.ErrorIs(t, err, source.ErrAuthentication)
	assert.Zero(t, report.Inserted)
	assert.Zero(t, s.Len())
	assert.False(t, s.State().History.CanUndo)
}

func TestInsertCancelledPromptIsSwallowed(t *testing.T) {
	locked := testpdf.WriteEncrypted(t, t.TempDir(), "locked.pdf", 1, "secret")
	cancel := source.PasswordFunc(func(context.Context, string) (string, error) { return "", source.ErrCancelled })
	s, rec := newSession(t, session.WithPasswordQuerier(cancel))

	report, err := s.Insert(context.Background(), 0, []string{locked})
	require.NoError(t, err)
	assert.True(t, report.Cancelled)
	assert.Zero(t, s.Len())
	assert.False(t, s.State().History.Modified)

	var done []session.OperationCompleted
	for _, e := range rec.Events() {
		if oc, ok := e.(session.OperationCompleted); ok {
			done = append(done, oc)
		}
	}
	require.Len(t, done, 1)
	assert.True(t, done[0].Cancelled)
	assert.NoError(t, done[0].Err)
}

func TestProtectedSourcePromptsOnce(t *testing.T) {
	locked := testpdf.WriteEncrypted(t, t.TempDir(), "locked.pdf", 2, "secret")
	var mu sync.Mutex
	prompts := 0
	q := source.PasswordFunc(func(context.Context, string) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		prompts++
		return "secret", nil
	})
	s, _ := newSession(t, session.WithPasswordQuerier(q))

	for range 2 {
		_, err := s.Insert(context.Background(), 0, []string{locked})
		require.NoError(t, err)
	}
	assert.Equal(t, 4, s.Len())
	assert.Equal(t, 1, prompts)
}

func TestBusyGateRejectsConcurrentRequests(t *testing.T) {
	path := testpdf.WritePages(t, t.TempDir(), "a.pdf", 3)
	entered := make(chan struct{})
	release := make(chan struct{})
	opener := source.OpenFunc(func(ctx context.Context, p string, q source.PasswordQuerier) (source.Document, error) {
		close(entered)
		<-release
		return pdf.Open(ctx, p, q)
	})
	s, _ := newSession(t, session.WithOpener(opener))

	done := make(chan error, 1)
	go func() {
		_, err := s.Insert(context.Background(), 0, []string{path})
		done <- err
	}()
	<-entered

	assert.True(t, s.Busy())
	_, err := s.Move(context.Background(), 1)
	assert.ErrorIs(t, err, session.ErrBusy)
	assert.ErrorIs(t, s.Select(context.Background(), true), session.ErrBusy)
	assert.ErrorIs(t, s.Close(), session.ErrBusy)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, s.Busy())
	assert.Equal(t, 3, s.Len())
}

func TestUndoRedoAndModified(t *testing.T) {
	dir := t.TempDir()
	path := testpdf.WritePages(t, dir, "a.pdf", 4)
	s, _ := newSession(t)
	ctx := context.Background()

	_, err := s.Insert(ctx, 0, []string{path})
	require.NoError(t, err)
	require.NoError(t, s.SetSelection(ctx, []int{0, 3}))

	applied, err := s.Rotate(ctx, 90)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, 90, s.State().Pages[3].Rotation)

	require.NoError(t, s.Save(ctx, filepath.Join(dir, "out.pdf")))
	assert.False(t, s.State().History.Modified)

	ok, err := s.Undo(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, s.State().Pages[3].Rotation)
	assert.True(t, s.State().History.Modified)

	ok, err = s.Redo(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 90, s.State().Pages[3].Rotation)
	assert.False(t, s.State().History.Modified)

	ok, err = s.Redo(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "nothing to redo")
}

func TestSelectionChangesAreNotHistory(t *testing.T) {
	path := testpdf.WritePages(t, t.TempDir(), "a.pdf", 3)
	s, rec := newSession(t)
	ctx := context.Background()

	_, err := s.Insert(ctx, 0, []string{path})
	require.NoError(t, err)
	before := s.State().History

	rec.Reset()
	require.NoError(t, s.Select(ctx, true))
	require.NoError(t, s.Select(ctx, true))
	require.NoError(t, s.Flip(ctx))

	assert.Equal(t, before, s.State().History)
	// the second select changed nothing and must not notify
	assert.Len(t, rec.Kinds(session.EventSelection), 2)
	assert.Empty(t, s.State().Selected)
}

func TestThumbnailsForRemovedPagesAreDiscarded(t *testing.T) {
	path := testpdf.WritePages(t, t.TempDir(), "a.pdf", 2)
	release := make(chan struct{})
	var started sync.WaitGroup
	started.Add(2)
	r := render.Func(func(ctx context.Context, p page.Page, size page.Size) (image.Image, error) {
		started.Done()
		<-release
		return image.NewRGBA(image.Rect(0, 0, 4, 4)), nil
	})
	s, rec := newSession(t, session.WithRenderer(r))
	ctx := context.Background()

	_, err := s.Insert(ctx, 0, []string{path})
	require.NoError(t, err)
	started.Wait()

	_, err = s.Remove(ctx, []int{0})
	require.NoError(t, err)
	close(release)
	s.WaitThumbnails()

	var ready []session.ThumbnailReady
	for _, e := range rec.Events() {
		if tr, ok := e.(session.ThumbnailReady); ok {
			ready = append(ready, tr)
		}
	}
	require.Len(t, ready, 1)
	assert.Equal(t, 2, ready[0].Page.Number)
}

func TestDoDispatchesRequests(t *testing.T) {
	dir := t.TempDir()
	path := testpdf.WritePages(t, dir, "a.pdf", 5)
	s, _ := newSession(t)
	ctx := context.Background()

	res := s.Do(ctx, session.InsertRequest{At: 0, Sources: []string{path}})
	require.NoError(t, res.Err)
	assert.True(t, res.Applied)
	assert.Equal(t, 5, res.Insert.Inserted)

	res = s.Do(ctx, session.ExtractRequest{Path: filepath.Join(dir, "none.pdf")})
	assert.ErrorIs(t, res.Err, export.ErrNoPages)

	require.NoError(t, s.Do(ctx, session.SetSelectionRequest{Indices: []int{1, 3}}).Err)
	res = s.Do(ctx, session.MoveRequest{Delta: -1})
	require.NoError(t, res.Err)
	assert.True(t, res.Applied)
	assert.Equal(t, []int{2, 1, 4, 3, 5}, numbers(s))

	res = s.Do(ctx, session.RemoveSelectedRequest{})
	require.NoError(t, res.Err)
	assert.Equal(t, []int{1, 3, 5}, numbers(s))

	res = s.Do(ctx, session.RemoveRequest{Indices: []int{7}})
	assert.Error(t, res.Err)

	res = s.Do(ctx, session.UndoRequest{})
	require.NoError(t, res.Err)
	assert.Equal(t, []int{2, 1, 4, 3, 5}, numbers(s))

	require.NoError(t, s.Do(ctx, session.SelectRequest{Selected: true}).Err)
	out := filepath.Join(dir, "all.pdf")
	require.NoError(t, s.Do(ctx, session.ExtractRequest{Path: out}).Err)
	doc, err := pdf.OpenWithPassword(out, "")
	require.NoError(t, err)
	assert.Equal(t, 5, doc.PageCount())
	doc.Close()
}

func TestClose(t *testing.T) {
	path := testpdf.WritePages(t, t.TempDir(), "a.pdf", 2)
	s, rec := newSession(t)
	ctx := context.Background()

	_, err := s.Insert(ctx, 0, []string{path})
	require.NoError(t, err)
	require.NoError(t, s.Select(ctx, true))

	rec.Reset()
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	state := s.State()
	assert.True(t, state.Closed)
	assert.Empty(t, state.Pages)
	assert.Empty(t, state.Selected)
	assert.False(t, state.History.CanUndo)
	assert.Zero(t, s.Cache().Len())
	assert.Contains(t, rec.Events(), session.PageCountChanged{Count: 0})

	// teardown is bracketed by busy events like any other operation
	var busy []session.Event
	for _, e := range rec.Events() {
		if e.Kind() == session.EventBusy {
			busy = append(busy, e)
		}
	}
	assert.Equal(t, []session.Event{session.BusyChanged{Busy: true}, session.BusyChanged{Busy: false}}, busy)

	_, err = s.Insert(ctx, 0, []string{path})
	assert.ErrorIs(t, err, session.ErrClosed)
	_, err = s.Undo(ctx)
	assert.ErrorIs(t, err, session.ErrClosed)
}

func TestWatchedSourceChangeEvictsCache(t *testing.T) {
	path := testpdf.WritePages(t, t.TempDir(), "a.pdf", 1)
	rec := &session.Recorder{}
	cfg := session.DefaultConfig()
	cfg.WatchFiles = true
	cfg.WatchDebounce = 20 * time.Millisecond
	s, err := session.New(cfg, session.WithEmitter(rec))
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Insert(context.Background(), 0, []string{path})
	require.NoError(t, err)
	require.True(t, s.Cache().Contains(path))

	require.NoError(t, os.WriteFile(path, testpdf.Build(testpdf.A4, testpdf.A4), 0o644))

	require.Eventually(t, func() bool {
		return len(rec.Kinds(session.EventSourceChanged)) > 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.False(t, s.Cache().Contains(path))
}
