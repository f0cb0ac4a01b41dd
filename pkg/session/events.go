package session

import (
	"image"
	"slices"
	"sync"

	"github.com/pyhub-apps/pdfpages-golang/pkg/page"
)

// EventKind tags the concrete type of an Event.
type EventKind int

const (
	EventBusy EventKind = iota
	EventSelection
	EventPageCount
	EventModified
	EventHistory
	EventOperation
	EventThumbnail
	EventSourceChanged
)

// String returns the event name
func (k EventKind) String() string {
	switch k {
	case EventBusy:
		return "busy"
	case EventSelection:
		return "selection"
	case EventPageCount:
		return "page-count"
	case EventModified:
		return "modified"
	case EventHistory:
		return "history"
	case EventOperation:
		return "operation"
	case EventThumbnail:
		return "thumbnail"
	case EventSourceChanged:
		return "source-changed"
	default:
		return "unknown"
	}
}

// Event is a notification from a session to its observer.
type Event interface {
	Kind() EventKind
}

// BusyChanged fires before (Busy true) and after (Busy false) every
// serialized operation.
type BusyChanged struct {
	Busy bool
}

// SelectionChanged fires once per distinct change of the selection.
type SelectionChanged struct {
	Indices []int
}

// PageCountChanged fires when an operation changed the number of pages.
type PageCountChanged struct {
	Count int
}

// ModifiedChanged fires when the document moves away from or back to its
// last saved state.
type ModifiedChanged struct {
	Modified bool
}

// HistoryChanged fires when undo or redo availability changes.
type HistoryChanged struct {
	CanUndo   bool
	CanRedo   bool
	UndoLabel string
	RedoLabel string
}

// OperationCompleted reports the outcome of one operation. A cancelled
// operation has Cancelled set and no error.
type OperationCompleted struct {
	Op        string
	Err       error
	Cancelled bool
}

// ThumbnailReady delivers a rendered thumbnail. It is only published while
// a page with that identity and rotation is still in the collection.
type ThumbnailReady struct {
	Page     page.Identity
	Rotation int
	Image    image.Image
}

// SourceChanged fires when a watched backing file changed on disk. The file
// was evicted from the cache and is reopened on next use.
type SourceChanged struct {
	Path string
}

func (BusyChanged) Kind() EventKind        { return EventBusy }
func (SelectionChanged) Kind() EventKind   { return EventSelection }
func (PageCountChanged) Kind() EventKind   { return EventPageCount }
func (ModifiedChanged) Kind() EventKind    { return EventModified }
func (HistoryChanged) Kind() EventKind     { return EventHistory }
func (OperationCompleted) Kind() EventKind { return EventOperation }
func (ThumbnailReady) Kind() EventKind     { return EventThumbnail }
func (SourceChanged) Kind() EventKind      { return EventSourceChanged }

// Emitter receives session events. Thumbnail and source events arrive on
// background goroutines, so implementations must be safe for concurrent use.
type Emitter interface {
	Emit(Event)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(Event)

// Emit calls f
func (f EmitterFunc) Emit(e Event) { f(e) }

type discard struct{}

func (discard) Emit(Event) {}

// Recorder is an Emitter that keeps every event, for tests and scripting.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Emit records e
func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Kinds returns the kinds of the recorded events, optionally filtered.
func (r *Recorder) Kinds(only ...EventKind) []EventKind {
	var out []EventKind
	for _, e := range r.Events() {
		if len(only) == 0 || slices.Contains(only, e.Kind()) {
			out = append(out, e.Kind())
		}
	}
	return out
}

// Reset drops the recorded events
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
