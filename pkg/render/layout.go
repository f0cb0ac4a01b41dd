package render

import (
	"context"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/vector"

	"github.com/pyhub-apps/pdfpages-golang/pkg/page"
	"github.com/pyhub-apps/pdfpages-golang/pkg/pdf"
	"github.com/pyhub-apps/pdfpages-golang/pkg/source"
)

// DocumentRenderer is implemented by renderers that can reuse a document the
// caller already opened, such as a cached handle unlocked by a password.
type DocumentRenderer interface {
	RenderDocument(ctx context.Context, doc source.Document, p page.Page, size page.Size) (image.Image, error)
}

// LayoutDocument is implemented by documents that can describe what a page
// paints (see pdf.Document).
type LayoutDocument interface {
	Layout(number int) (*pdf.Layout, error)
}

// Layout draws PDF pages from their content layout: filled areas, stroked
// lines, placed images and one bar per glyph. Pages whose layout cannot be
// read are drawn by Fallback.
type Layout struct {
	// Fallback defaults to Blank
	Fallback Renderer
	// Images is the tone of placed images; light gray by default
	Images color.Color
}

// Render opens the file behind p without a password and draws the page.
// Protected files should go through RenderDocument with the unlocked handle.
func (r Layout) Render(ctx context.Context, p page.Page, size page.Size) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := pdf.OpenWithPassword(p.FileID, "")
	if err != nil {
		return r.fallback().Render(ctx, p, size)
	}
	defer doc.Close()
	return r.RenderDocument(ctx, doc, p, size)
}

// RenderDocument draws the page of p from doc
func (r Layout) RenderDocument(ctx context.Context, doc source.Document, p page.Page, size page.Size) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ld, ok := doc.(LayoutDocument)
	if !ok {
		return r.fallback().Render(ctx, p, size)
	}
	layout, err := ld.Layout(p.Number)
	if err != nil || layout.Box.Width() <= 0 || layout.Box.Height() <= 0 {
		return r.fallback().Render(ctx, p, size)
	}
	return r.draw(layout, p, size), nil
}

func (r Layout) fallback() Renderer {
	if r.Fallback != nil {
		return r.Fallback
	}
	return Blank{}
}

// draw paints the layout upright and then turns it by the page rotation.
func (r Layout) draw(l *pdf.Layout, p page.Page, size page.Size) image.Image {
	target := p.RotatedSize().Fit(size)
	w, h := pixels(target.Width), pixels(target.Height)
	if page.NormalizeRotation(p.TotalRotation())%180 != 0 {
		w, h = h, w
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.Gray{Y: 0x80}), image.Point{}, draw.Src)
	if inner := dst.Bounds().Inset(1); !inner.Empty() {
		draw.Draw(dst, inner, image.White, image.Point{}, draw.Src)
	}

	c := canvas{
		dst:   dst,
		z:     vector.NewRasterizer(w, h),
		box:   l.Box,
		scale: math.Min(float64(w)/l.Box.Width(), float64(h)/l.Box.Height()),
	}

	objs := l.Objects
	imageTone := r.Images
	if imageTone == nil {
		imageTone = color.Gray{Y: 0xd0}
	}
	for _, box := range objs.Images {
		c.fillBox(box, imageTone)
	}
	for _, rect := range objs.Rects {
		c.fillBox(rect.BoundingBox, rect.FillColor)
	}
	for _, shape := range objs.Shapes {
		c.fillPolygon(shape.Points, shape.FillColor)
	}
	for _, line := range objs.Lines {
		c.strokeLine(line)
	}
	for _, ch := range objs.Chars {
		// a glyph reads as a bar over its lower two thirds
		bar := ch.BoundingBox
		bar.Y1 = bar.Y0 + bar.Height()*2/3
		c.fillBox(bar, ch.Color)
	}

	return RotateQuarter(dst, p.TotalRotation())
}

// canvas maps page space onto a pixel grid (y grows downwards).
type canvas struct {
	dst   *image.RGBA
	z     *vector.Rasterizer
	box   pdf.BoundingBox
	scale float64
}

func (c canvas) pt(p pdf.Point) (float32, float32) {
	return float32((p.X - c.box.X0) * c.scale), float32((c.box.Y1 - p.Y) * c.scale)
}

func (c canvas) fillBox(b pdf.BoundingBox, col color.Color) {
	if !b.Intersects(c.box) {
		return
	}
	// boxes thinner than a pixel still leave a mark
	minSide := 1 / c.scale
	if b.Width() < minSide {
		b.X1 = b.X0 + minSide
	}
	if b.Height() < minSide {
		b.Y1 = b.Y0 + minSide
	}
	c.fillPolygon([]pdf.Point{{X: b.X0, Y: b.Y0}, {X: b.X1, Y: b.Y0}, {X: b.X1, Y: b.Y1}, {X: b.X0, Y: b.Y1}}, col)
}

func (c canvas) fillPolygon(pts []pdf.Point, col color.Color) {
	if len(pts) < 3 {
		return
	}
	b := c.dst.Bounds()
	c.z.Reset(b.Dx(), b.Dy())
	c.z.MoveTo(c.pt(pts[0]))
	for _, p := range pts[1:] {
		c.z.LineTo(c.pt(p))
	}
	c.z.ClosePath()
	c.z.Draw(c.dst, b, image.NewUniform(col), image.Point{})
}

// strokeLine draws a segment as a quad at least one pixel wide.
func (c canvas) strokeLine(l pdf.LineObject) {
	x0, y0 := c.pt(pdf.Point{X: l.X0, Y: l.Y0})
	x1, y1 := c.pt(pdf.Point{X: l.X1, Y: l.Y1})
	dx, dy := float64(x1-x0), float64(y1-y0)
	length := math.Hypot(dx, dy)
	if length == 0 {
		return
	}
	half := math.Max(l.Width*c.scale, 1) / 2
	nx, ny := float32(-dy/length*half), float32(dx/length*half)

	b := c.dst.Bounds()
	c.z.Reset(b.Dx(), b.Dy())
	c.z.MoveTo(x0+nx, y0+ny)
	c.z.LineTo(x1+nx, y1+ny)
	c.z.LineTo(x1-nx, y1-ny)
	c.z.LineTo(x0-nx, y0-ny)
	c.z.ClosePath()
	c.z.Draw(c.dst, b, image.NewUniform(l.StrokeColor), image.Point{})
}
