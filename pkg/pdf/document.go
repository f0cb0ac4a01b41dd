package pdf

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pyhub-apps/pdfpages-golang/pkg/page"
	"github.com/pyhub-apps/pdfpages-golang/pkg/source"
)

// Document is an opened PDF file. Page metadata is read once at open time;
// the backend state stays alive until Close.
type Document struct {
	path     string
	backend  string
	password string
	pages    []source.PageInfo

	// pdfcpu state for layout reads; nil for fallback backends and after Close
	mu     sync.Mutex
	pdfctx *model.Context

	closer    io.Closer
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

var (
	_ source.Document  = (*Document)(nil)
	_ source.Protected = (*Document)(nil)
)

// OpenWithPassword opens a PDF file with pdfcpu. An empty password opens
// unencrypted files and files protected by an owner password only.
func OpenWithPassword(path string, password string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	if password != "" {
		conf.UserPW = password
		conf.OwnerPW = password
	}

	ctx, err := api.ReadContext(f, conf)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF context: %w", err)
	}

	if err := api.ValidateContext(ctx); err != nil {
		return nil, fmt.Errorf("invalid PDF: %w", err)
	}

	pages := make([]source.PageInfo, 0, ctx.PageCount)
	for n := 1; n <= ctx.PageCount; n++ {
		info, err := pdfcpuPageInfo(ctx, n)
		if err != nil {
			return nil, fmt.Errorf("failed to read page %d: %w", n, err)
		}
		pages = append(pages, info)
	}

	return &Document{
		path:     path,
		backend:  BackendPDFCPU,
		password: password,
		pages:    pages,
		pdfctx:   ctx,
	}, nil
}

// Path returns the file path
func (d *Document) Path() string {
	return d.path
}

// Kind returns page.KindPDF
func (d *Document) Kind() page.Kind {
	return page.KindPDF
}

// Backend returns the name of the library that parsed the file
func (d *Document) Backend() string {
	return d.backend
}

// Password returns the password that unlocked the file, if any
func (d *Document) Password() string {
	return d.password
}

// PageCount returns the total number of pages
func (d *Document) PageCount() int {
	return len(d.pages)
}

// PageInfo returns metadata for a 1-based page number
func (d *Document) PageInfo(number int) (source.PageInfo, error) {
	if d.closed.Load() {
		return source.PageInfo{}, fmt.Errorf("%w: %s", source.ErrClosed, d.path)
	}
	if number < 1 || number > len(d.pages) {
		return source.PageInfo{}, fmt.Errorf("%w: %d not in [1, %d]", source.ErrPageRange, number, len(d.pages))
	}
	return d.pages[number-1], nil
}

// Layout reads what a 1-based page paints. Only documents parsed by pdfcpu
// carry page content; others return ErrNoLayout.
func (d *Document) Layout(number int) (*Layout, error) {
	if number < 1 || number > len(d.pages) {
		return nil, fmt.Errorf("%w: %d not in [1, %d]", source.ErrPageRange, number, len(d.pages))
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed.Load() {
		return nil, fmt.Errorf("%w: %s", source.ErrClosed, d.path)
	}
	if d.pdfctx == nil {
		return nil, fmt.Errorf("%w: %s backend", ErrNoLayout, d.backend)
	}
	return pdfcpuLayout(d.pdfctx, number)
}

// Close releases resources associated with the document. Closing twice is a no-op.
func (d *Document) Close() error {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed.Store(true)
		d.pdfctx = nil
		d.mu.Unlock()
		if d.closer != nil {
			d.closeErr = d.closer.Close()
		}
	})
	return d.closeErr
}

// defaultPageInfo is used when a page carries no usable box (US Letter).
func defaultPageInfo(number int) source.PageInfo {
	return source.PageInfo{
		Number:     number,
		Width:      612,
		Height:     792,
		Resolution: page.DefaultPDFResolution,
	}
}
