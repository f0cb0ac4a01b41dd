// Package imagefile opens raster image files as backing documents with one
// page per frame. Animated GIFs yield one page per frame; every other format
// yields a single page.
package imagefile

import (
	"context"
	"fmt"
	"image"
	"image/gif"
	"io"
	"os"
	"sync/atomic"

	// decoders registered with image.Decode
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/pyhub-apps/pdfpages-golang/pkg/page"
	"github.com/pyhub-apps/pdfpages-golang/pkg/source"
)

// DefaultDPI is the resolution assumed for images that do not declare one.
const DefaultDPI = 96.0

// Extensions lists the file extensions this package decodes.
var Extensions = []string{".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff", ".webp"}

// Document is an opened image file. Pixel data is decoded on demand.
type Document struct {
	path   string
	format string
	dpi    float64
	frames []image.Point // pixel size of each frame
	closed atomic.Bool
}

var _ source.Document = (*Document)(nil)

// Opener returns a source.Opener decoding images at dpi (DefaultDPI if <= 0).
func Opener(dpi float64) source.Opener {
	return source.OpenFunc(func(ctx context.Context, path string, _ source.PasswordQuerier) (source.Document, error) {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", source.ErrCancelled, err)
		}
		return Open(path, dpi)
	})
}

// Open reads the frame layout of an image file.
func Open(path string, dpi float64) (*Document, error) {
	if dpi <= 0 {
		dpi = DefaultDPI
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", source.ErrNotFound, path)
		}
		return nil, fmt.Errorf("%w: %s: %v", source.ErrUnreadable, path, err)
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", source.ErrUnreadable, path, err)
	}

	doc := &Document{path: path, format: format, dpi: dpi}

	if format == "gif" {
		if _, err := f.Seek(0, 0); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", source.ErrUnreadable, path, err)
		}
		anim, err := gif.DecodeAll(f)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", source.ErrUnreadable, path, err)
		}
		for range anim.Image {
			// frames are composited onto the logical screen
			doc.frames = append(doc.frames, image.Pt(anim.Config.Width, anim.Config.Height))
		}
	} else {
		doc.frames = []image.Point{image.Pt(cfg.Width, cfg.Height)}
	}

	if len(doc.frames) == 0 {
		return nil, fmt.Errorf("%w: %s has no frames", source.ErrUnreadable, path)
	}
	return doc, nil
}

// Path returns the file path
func (d *Document) Path() string { return d.path }

// Kind returns page.KindImage
func (d *Document) Kind() page.Kind { return page.KindImage }

// Format returns the decoder name, e.g. "png" or "gif"
func (d *Document) Format() string { return d.format }

// PageCount returns the number of frames
func (d *Document) PageCount() int { return len(d.frames) }

// PageInfo returns the size of a 1-based frame in points at the document DPI.
func (d *Document) PageInfo(number int) (source.PageInfo, error) {
	if d.closed.Load() {
		return source.PageInfo{}, fmt.Errorf("%w: %s", source.ErrClosed, d.path)
	}
	if number < 1 || number > len(d.frames) {
		return source.PageInfo{}, fmt.Errorf("%w: %d not in [1, %d]", source.ErrPageRange, number, len(d.frames))
	}
	px := d.frames[number-1]
	scale := page.DefaultPDFResolution / d.dpi
	return source.PageInfo{
		Number:     number,
		Width:      float64(px.X) * scale,
		Height:     float64(px.Y) * scale,
		Resolution: d.dpi,
	}, nil
}

// Close marks the document closed. Closing twice is a no-op.
func (d *Document) Close() error {
	d.closed.Store(true)
	return nil
}

// Decode returns the pixels of a 1-based frame. GIF frames are composited
// over the preceding frames the way a viewer shows them.
func Decode(path string, frame int) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	// the container decides, not the extension
	_, format, err := image.DecodeConfig(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", source.ErrUnreadable, path, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind image: %w", err)
	}

	if format != "gif" || frame == 1 {
		img, _, err := image.Decode(f)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", source.ErrUnreadable, path, err)
		}
		return img, nil
	}

	anim, err := gif.DecodeAll(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", source.ErrUnreadable, path, err)
	}
	if frame < 1 || frame > len(anim.Image) {
		return nil, fmt.Errorf("%w: frame %d not in [1, %d]", source.ErrPageRange, frame, len(anim.Image))
	}

	canvas := image.NewRGBA(image.Rect(0, 0, anim.Config.Width, anim.Config.Height))
	for i := 0; i < frame; i++ {
		src := anim.Image[i]
		draw.Draw(canvas, src.Bounds(), src, src.Bounds().Min, draw.Over)
	}
	return canvas, nil
}
