package pdf

import (
	"errors"
	"image/color"
)

// ErrNoLayout is returned for pages whose content cannot be read, e.g. files
// that only a fallback backend could open.
var ErrNoLayout = errors.New("page layout not available")

// BoundingBox is a rectangle in PDF user space (origin lower left).
type BoundingBox struct {
	X0 float64 // Left
	Y0 float64 // Bottom
	X1 float64 // Right
	Y1 float64 // Top
}

// Width returns the width of the bounding box
func (b BoundingBox) Width() float64 {
	return b.X1 - b.X0
}

// Height returns the height of the bounding box
func (b BoundingBox) Height() float64 {
	return b.Y1 - b.Y0
}

// Intersects checks if two bounding boxes intersect
func (b BoundingBox) Intersects(other BoundingBox) bool {
	return !(b.X1 < other.X0 || b.X0 > other.X1 || b.Y1 < other.Y0 || b.Y0 > other.Y1)
}

// Layout is what one page paints, in page space.
type Layout struct {
	// Box is the visible page area: the crop box, else the media box.
	Box     BoundingBox
	Objects Objects
}

// Objects groups the painted objects of a page by kind.
type Objects struct {
	Chars  []CharObject
	Lines  []LineObject
	Rects  []RectObject
	Shapes []ShapeObject
	Images []BoundingBox
}

// Empty reports whether nothing was painted
func (o Objects) Empty() bool {
	return len(o.Chars) == 0 && len(o.Lines) == 0 && len(o.Rects) == 0 &&
		len(o.Shapes) == 0 && len(o.Images) == 0
}

// CharObject is the box of one shown glyph. Widths are estimated from the
// font size, so boxes are approximate.
type CharObject struct {
	BoundingBox
	FontSize float64
	Color    color.RGBA
}

// LineObject is one stroked segment.
type LineObject struct {
	X0, Y0      float64
	X1, Y1      float64
	Width       float64
	StrokeColor color.RGBA
}

// RectObject is an axis-aligned filled rectangle.
type RectObject struct {
	BoundingBox
	FillColor color.RGBA
}

// ShapeObject is any other filled outline. Curves are flattened.
type ShapeObject struct {
	Points    []Point
	FillColor color.RGBA
}

// Point is a position in user space
type Point struct {
	X, Y float64
}

// Matrix is a PDF transformation matrix [a b c d e f].
type Matrix struct {
	A, B, C, D, E, F float64
}

// IdentityMatrix returns the identity transformation
func IdentityMatrix() Matrix {
	return Matrix{A: 1, D: 1}
}

// TranslationMatrix returns a translation by (tx, ty)
func TranslationMatrix(tx, ty float64) Matrix {
	return Matrix{A: 1, D: 1, E: tx, F: ty}
}

// Multiply returns m × n, i.e. m applied first.
func (m Matrix) Multiply(n Matrix) Matrix {
	return Matrix{
		A: m.A*n.A + m.B*n.C,
		B: m.A*n.B + m.B*n.D,
		C: m.C*n.A + m.D*n.C,
		D: m.C*n.B + m.D*n.D,
		E: m.E*n.A + m.F*n.C + n.E,
		F: m.E*n.B + m.F*n.D + n.F,
	}
}

// Apply transforms the point (x, y)
func (m Matrix) Apply(x, y float64) Point {
	return Point{X: m.A*x + m.C*y + m.E, Y: m.B*x + m.D*y + m.F}
}
