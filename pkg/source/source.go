// Package source defines the contracts between the editing core and the
// backing files it reads: the Document handle, the open capability, and the
// password-query capability.
package source

import (
	"context"
	"fmt"

	"github.com/pyhub-apps/pdfpages-golang/pkg/page"
)

// Document is an opened backing file. Handles are owned by the document
// cache; callers must not use one after the cache was cleared.
type Document interface {
	// Path returns the path the document was opened from
	Path() string

	// Kind returns the format of the document
	Kind() page.Kind

	// PageCount returns the total number of pages (or frames)
	PageCount() int

	// PageInfo returns metadata for a 1-based page number
	PageInfo(number int) (PageInfo, error)

	// Close releases resources associated with the document
	Close() error
}

// Protected is implemented by documents that were unlocked with a password.
type Protected interface {
	Password() string
}

// PageInfo is the per-page metadata a backend reports.
type PageInfo struct {
	Number     int     // 1-based
	Width      float64 // points
	Height     float64 // points
	Rotation   int     // intrinsic rotation in degrees
	Resolution float64 // DPI
}

// Opener opens a backing file. q may be nil when no prompt is available; an
// opener must invoke q at most once per call.
type Opener interface {
	Open(ctx context.Context, path string, q PasswordQuerier) (Document, error)
}

// OpenFunc adapts a function to Opener.
type OpenFunc func(ctx context.Context, path string, q PasswordQuerier) (Document, error)

// Open calls f
func (f OpenFunc) Open(ctx context.Context, path string, q PasswordQuerier) (Document, error) {
	return f(ctx, path, q)
}

// PasswordQuerier asks for the password of a protected file. It returns
// ErrCancelled (or a context error) when the user aborts the prompt.
type PasswordQuerier interface {
	QueryPassword(ctx context.Context, path string) (string, error)
}

// PasswordFunc adapts a function to PasswordQuerier.
type PasswordFunc func(ctx context.Context, path string) (string, error)

// QueryPassword calls f
func (f PasswordFunc) QueryPassword(ctx context.Context, path string) (string, error) {
	return f(ctx, path)
}

// Pages builds the page list of doc. fileID becomes Page.FileID of every page.
func Pages(doc Document, fileID string) ([]page.Page, error) {
	count := doc.PageCount()
	pages := make([]page.Page, 0, count)
	for n := 1; n <= count; n++ {
		info, err := doc.PageInfo(n)
		if err != nil {
			return nil, fmt.Errorf("failed to read page %d of %s: %w", n, doc.Path(), err)
		}
		pages = append(pages, page.Page{
			FileID:       fileID,
			Number:       info.Number,
			Kind:         doc.Kind(),
			BaseRotation: page.NormalizeRotation(info.Rotation),
			Size:         page.Size{Width: info.Width, Height: info.Height},
			Resolution:   info.Resolution,
			Index:        len(pages),
		})
	}
	return pages, nil
}
