// Package pdfpages assembles new PDF documents from the pages of existing PDF
// and image files. Pages can be inserted, removed, reordered and rotated
// with full undo and redo, then saved or extracted.
//
// Most programs only need NewSession; the subpackages expose the parts
// (document cache, page collection, history, export) individually.
package pdfpages

import (
	"context"

	"github.com/pyhub-apps/pdfpages-golang/pkg/imagefile"
	"github.com/pyhub-apps/pdfpages-golang/pkg/page"
	"github.com/pyhub-apps/pdfpages-golang/pkg/session"
	"github.com/pyhub-apps/pdfpages-golang/pkg/source"
)

// Re-export types from the session and source packages for the public API
type (
	Session         = session.Session
	Config          = session.Config
	Option          = session.Option
	State           = session.State
	Event           = session.Event
	Emitter         = session.Emitter
	EmitterFunc     = session.EmitterFunc
	InsertReport    = session.InsertReport
	Request         = session.Request
	Result          = session.Result
	Page            = page.Page
	Document        = source.Document
	PasswordQuerier = source.PasswordQuerier
	PasswordFunc    = source.PasswordFunc
)

// Re-export errors
var (
	ErrBusy           = session.ErrBusy
	ErrClosed         = session.ErrClosed
	ErrAuthentication = source.ErrAuthentication
	ErrCancelled      = source.ErrCancelled
	ErrNotFound       = source.ErrNotFound
	ErrUnreadable     = source.ErrUnreadable
	ErrUnsupported    = source.ErrUnsupported
)

// Re-export option functions
var (
	WithPasswordQuerier = session.WithPasswordQuerier
	WithEmitter         = session.WithEmitter
	WithLogger          = session.WithLogger
	WithRenderer        = session.WithRenderer
	WithOpener          = session.WithOpener
)

// DefaultConfig returns the default session configuration
func DefaultConfig() Config {
	return session.DefaultConfig()
}

// NewSession creates an empty editing session with the default configuration.
func NewSession(opts ...Option) (*Session, error) {
	return session.New(session.DefaultConfig(), opts...)
}

// Open opens a single PDF or image file outside of any session. The caller
// owns the returned document and must close it.
func Open(ctx context.Context, path string, q PasswordQuerier) (Document, error) {
	return session.DefaultOpener(imagefile.DefaultDPI).Open(ctx, path, q)
}
