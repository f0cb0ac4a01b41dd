// Package render produces page thumbnails. The Renderer capability is
// invoked only from background workers (see Pool), never inline with a
// collection mutation.
package render

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"

	"github.com/pyhub-apps/pdfpages-golang/pkg/imagefile"
	"github.com/pyhub-apps/pdfpages-golang/pkg/page"
	"github.com/pyhub-apps/pdfpages-golang/pkg/source"
)

// Renderer produces pixel data for a page, fitted into size (pixels) and
// showing the page under its effective rotation.
type Renderer interface {
	Render(ctx context.Context, p page.Page, size page.Size) (image.Image, error)
}

// Func adapts a function to Renderer.
type Func func(ctx context.Context, p page.Page, size page.Size) (image.Image, error)

// Render calls f
func (f Func) Render(ctx context.Context, p page.Page, size page.Size) (image.Image, error) {
	return f(ctx, p, size)
}

// Mux dispatches on the page kind.
type Mux struct {
	PDF   Renderer
	Image Renderer
}

// Default returns the renderer used when none is configured: decoded pixels
// for image pages and the content layout for PDF pages, with a blank sheet
// of the right proportions where the layout cannot be read.
func Default() *Mux {
	return &Mux{PDF: Layout{Fallback: Blank{}}, Image: Image{}}
}

// Render forwards to the renderer for p.Kind
func (m *Mux) Render(ctx context.Context, p page.Page, size page.Size) (image.Image, error) {
	r, err := m.pick(p)
	if err != nil {
		return nil, err
	}
	return r.Render(ctx, p, size)
}

// RenderDocument forwards doc to the renderer for p.Kind when it can use it.
func (m *Mux) RenderDocument(ctx context.Context, doc source.Document, p page.Page, size page.Size) (image.Image, error) {
	r, err := m.pick(p)
	if err != nil {
		return nil, err
	}
	if dr, ok := r.(DocumentRenderer); ok {
		return dr.RenderDocument(ctx, doc, p, size)
	}
	return r.Render(ctx, p, size)
}

func (m *Mux) pick(p page.Page) (Renderer, error) {
	var r Renderer
	switch p.Kind {
	case page.KindPDF:
		r = m.PDF
	case page.KindImage:
		r = m.Image
	}
	if r == nil {
		return nil, fmt.Errorf("%w: no renderer for %s pages", source.ErrUnsupported, p.Kind)
	}
	return r, nil
}

// Image renders image-backed pages by decoding the frame, turning it by the
// page rotation and scaling it into the target box.
type Image struct {
	// Scaler defaults to draw.CatmullRom
	Scaler draw.Scaler
}

// Render decodes and scales the frame behind p
func (r Image) Render(ctx context.Context, p page.Page, size page.Size) (image.Image, error) {
	if p.Kind != page.KindImage {
		return nil, fmt.Errorf("%w: %s is not an image page", source.ErrUnsupported, p.Identity())
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src, err := imagefile.Decode(p.FileID, p.Number)
	if err != nil {
		return nil, err
	}
	src = RotateQuarter(src, p.TotalRotation())

	b := src.Bounds()
	target := page.Size{Width: float64(b.Dx()), Height: float64(b.Dy())}.Fit(size)
	dst := image.NewRGBA(image.Rect(0, 0, pixels(target.Width), pixels(target.Height)))

	scaler := r.Scaler
	if scaler == nil {
		scaler = draw.CatmullRom
	}
	scaler.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst, nil
}

// Blank renders a paper-coloured sheet with a thin border, sized like the
// rotated page. It stands in for PDF pages whose content cannot be read.
type Blank struct {
	Paper  color.Color
	Border color.Color
}

// Render draws the placeholder sheet
func (r Blank) Render(ctx context.Context, p page.Page, size page.Size) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	paper, border := r.Paper, r.Border
	if paper == nil {
		paper = color.White
	}
	if border == nil {
		border = color.Gray{Y: 0x80}
	}

	target := p.RotatedSize().Fit(size)
	dst := image.NewRGBA(image.Rect(0, 0, pixels(target.Width), pixels(target.Height)))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(border), image.Point{}, draw.Src)
	if inner := dst.Bounds().Inset(1); !inner.Empty() {
		draw.Draw(dst, inner, image.NewUniform(paper), image.Point{}, draw.Src)
	}
	return dst, nil
}

// RotateQuarter turns img clockwise by degrees, which must be a multiple of
// 90; other angles are rounded down to the previous quarter turn.
func RotateQuarter(img image.Image, degrees int) image.Image {
	turns := page.NormalizeRotation(degrees) / 90
	if turns == 0 {
		return img
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	var dst *image.RGBA
	if turns == 2 {
		dst = image.NewRGBA(image.Rect(0, 0, w, h))
	} else {
		dst = image.NewRGBA(image.Rect(0, 0, h, w))
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := img.At(b.Min.X+x, b.Min.Y+y)
			switch turns {
			case 1:
				dst.Set(h-1-y, x, c)
			case 2:
				dst.Set(w-1-x, h-1-y, c)
			case 3:
				dst.Set(y, w-1-x, c)
			}
		}
	}
	return dst
}

func pixels(v float64) int {
	return max(1, int(math.Round(v)))
}
