// Package session implements the editing session: it couples the page
// collection, the undo history and the document cache, and serializes every
// mutating operation behind a busy gate.
//
// A session is driven from one goroutine at a time in practice, but the busy
// gate is authoritative: a request arriving while another is in flight is
// rejected with ErrBusy and never touches state.
package session

import (
	"errors"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/pyhub-apps/pdfpages-golang/pkg/cache"
	"github.com/pyhub-apps/pdfpages-golang/pkg/collection"
	"github.com/pyhub-apps/pdfpages-golang/pkg/history"
	"github.com/pyhub-apps/pdfpages-golang/pkg/imagefile"
	"github.com/pyhub-apps/pdfpages-golang/pkg/page"
	"github.com/pyhub-apps/pdfpages-golang/pkg/pdf"
	"github.com/pyhub-apps/pdfpages-golang/pkg/render"
	"github.com/pyhub-apps/pdfpages-golang/pkg/source"
	"github.com/pyhub-apps/pdfpages-golang/pkg/watch"
)

var (
	// ErrBusy is returned when an operation is requested while another one
	// is still running.
	ErrBusy = errors.New("session busy")
	// ErrClosed is returned for any operation after Close.
	ErrClosed = errors.New("session closed")
)

// Config is the explicit configuration of a session.
type Config struct {
	ItemSize         float64       // longest thumbnail side in pixels
	ThumbnailWorkers int           // background render workers
	MaxThumbnails    int           // rendered thumbnails kept in memory
	ImageDPI         float64       // resolution assumed for image files
	WatchFiles       bool          // evict backing files that change on disk
	WatchDebounce    time.Duration // quiet period before a change is reported
}

// DefaultConfig returns the configuration used when none is given
func DefaultConfig() Config {
	return Config{
		ItemSize:         256,
		ThumbnailWorkers: 4,
		MaxThumbnails:    cache.DefaultMaxThumbnails,
		ImageDPI:         imagefile.DefaultDPI,
		WatchDebounce:    watch.DefaultDebounce,
	}
}

// Option configures a Session.
type Option func(*Session)

// WithOpener replaces the file-open capability. The default opens PDFs and
// the image formats of package imagefile.
func WithOpener(o source.Opener) Option {
	return func(s *Session) { s.opener = o }
}

// WithPasswordQuerier sets the capability asked for passwords. Without one,
// protected files fail with source.ErrAuthentication.
func WithPasswordQuerier(q source.PasswordQuerier) Option {
	return func(s *Session) { s.querier = q }
}

// WithRenderer replaces the thumbnail renderer (render.Default()).
func WithRenderer(r render.Renderer) Option {
	return func(s *Session) { s.renderer = r }
}

// WithEmitter sets the observer receiving session events.
func WithEmitter(e Emitter) Option {
	return func(s *Session) {
		if e != nil {
			s.emitter = e
		}
	}
}

// WithLogger sets the logger (slog.Default() otherwise).
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Session is one editing session.
type Session struct {
	id       string
	cfg      Config
	opener   source.Opener
	querier  source.PasswordQuerier
	renderer render.Renderer
	emitter  Emitter
	logger   *slog.Logger

	busy   atomic.Bool
	closed atomic.Bool

	// touched only while the busy gate is held
	pages   *collection.Collection
	history *history.History
	last    history.State // as last published

	cache   *cache.Cache
	pool    *render.Pool
	watcher *watch.Watcher
	live    *liveSet

	viewMu sync.RWMutex
	view   State
}

// State is a read-only snapshot of the session, refreshed after every
// operation.
type State struct {
	Pages    []page.Page
	Selected []int
	History  history.State
	Busy     bool
	Closed   bool
}

// New creates an empty session.
func New(cfg Config, opts ...Option) (*Session, error) {
	def := DefaultConfig()
	if cfg.ItemSize <= 0 {
		cfg.ItemSize = def.ItemSize
	}
	if cfg.ThumbnailWorkers <= 0 {
		cfg.ThumbnailWorkers = def.ThumbnailWorkers
	}
	if cfg.MaxThumbnails <= 0 {
		cfg.MaxThumbnails = def.MaxThumbnails
	}
	if cfg.ImageDPI <= 0 {
		cfg.ImageDPI = def.ImageDPI
	}

	s := &Session{
		id:       uuid.NewString(),
		cfg:      cfg,
		renderer: render.Default(),
		emitter:  discard{},
		logger:   slog.Default(),
		pages:    collection.New(),
		history:  history.New(),
		live:     newLiveSet(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("session", s.id)
	if s.opener == nil {
		s.opener = DefaultOpener(cfg.ImageDPI)
	}

	s.cache = cache.New(s.opener,
		cache.WithPasswordQuerier(s.querier),
		cache.WithRenderer(s.renderer),
		cache.WithMaxThumbnails(cfg.MaxThumbnails),
		cache.WithLogger(s.logger),
	)
	s.pool = render.NewPool(s.cache, cfg.ThumbnailWorkers, s.deliverThumbnail, render.WithPoolLogger(s.logger))

	if cfg.WatchFiles {
		w, err := watch.New(s.sourceChanged, cfg.WatchDebounce, s.logger)
		if err != nil {
			s.pool.Stop()
			s.cache.Close()
			return nil, err
		}
		s.watcher = w
	}

	s.pages.Selection().Subscribe(func(indices []int) {
		s.emit(SelectionChanged{Indices: indices})
	})
	s.refreshView()

	s.logger.Debug("session created", "item_size", cfg.ItemSize, "workers", cfg.ThumbnailWorkers)
	return s, nil
}

// DefaultOpener opens PDF files and the image formats of package imagefile,
// decoding images at dpi.
func DefaultOpener(dpi float64) source.Opener {
	return source.NewFormats().
		Register(pdf.Opener(), ".pdf").
		Register(imagefile.Opener(dpi), imagefile.Extensions...)
}

// ID returns the unique session id used in logs
func (s *Session) ID() string {
	return s.id
}

// Config returns the effective configuration
func (s *Session) Config() Config {
	return s.cfg
}

// Cache returns the document cache of the session.
func (s *Session) Cache() *cache.Cache {
	return s.cache
}

// State returns the latest snapshot. It is safe to call from any goroutine.
func (s *Session) State() State {
	s.viewMu.RLock()
	defer s.viewMu.RUnlock()
	v := s.view
	v.Pages = slices.Clone(v.Pages)
	v.Selected = slices.Clone(v.Selected)
	v.Busy = s.busy.Load()
	return v
}

// Busy reports whether an operation is in flight
func (s *Session) Busy() bool {
	return s.busy.Load()
}

// WaitThumbnails blocks until every queued thumbnail was rendered or dropped.
func (s *Session) WaitThumbnails() {
	s.pool.Wait()
}

// Close releases the session: it clears the history, the selection, the
// page collection and the document cache in that order, then stops the
// background workers and the file watcher. Close fails with ErrBusy while an
// operation is running; closing twice is a no-op.
func (s *Session) Close() error {
	if s.closed.Load() {
		return nil
	}
	if !s.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	if !s.closed.CompareAndSwap(false, true) {
		s.busy.Store(false)
		return nil
	}
	s.emit(BusyChanged{Busy: true})

	count := s.pages.Len()
	s.history.Clear()
	s.pages.Selection().Clear()
	s.pages.Clear()
	s.live.reset(nil)
	s.pool.Stop()
	if s.watcher != nil {
		if err := s.watcher.Close(); err != nil {
			s.logger.Warn("failed to close watcher", "error", err)
		}
	}
	err := s.cache.Close()

	s.publish(count)
	s.refreshView()
	s.busy.Store(false)
	s.emit(BusyChanged{Busy: false})
	s.logger.Debug("session closed")
	return err
}

func (s *Session) emit(e Event) {
	s.emitter.Emit(e)
}

// begin takes the busy gate.
func (s *Session) begin() error {
	if s.closed.Load() {
		return ErrClosed
	}
	if !s.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	if s.closed.Load() {
		s.busy.Store(false)
		return ErrClosed
	}
	s.emit(BusyChanged{Busy: true})
	return nil
}

// end publishes the outcome of op and releases the busy gate.
func (s *Session) end(op string, count int, err error, cancelled bool) {
	s.publish(count)
	s.refreshView()
	s.emit(OperationCompleted{Op: op, Err: err, Cancelled: cancelled})
	s.busy.Store(false)
	s.emit(BusyChanged{Busy: false})
}

// publish emits the derived-state events that changed since count pages.
func (s *Session) publish(count int) {
	if n := s.pages.Len(); n != count {
		s.emit(PageCountChanged{Count: n})
	}

	state := s.history.State()
	if state.Modified != s.last.Modified {
		s.emit(ModifiedChanged{Modified: state.Modified})
	}
	if state.CanUndo != s.last.CanUndo || state.CanRedo != s.last.CanRedo {
		s.emit(HistoryChanged{
			CanUndo:   state.CanUndo,
			CanRedo:   state.CanRedo,
			UndoLabel: s.history.UndoLabel(),
			RedoLabel: s.history.RedoLabel(),
		})
	}
	s.last = state
}

func (s *Session) refreshView() {
	v := State{
		Pages:    s.pages.Pages(),
		Selected: s.pages.Selection().Indices(),
		History:  s.history.State(),
		Closed:   s.closed.Load(),
	}
	s.viewMu.Lock()
	s.view = v
	s.viewMu.Unlock()
}
