// Package page defines the Page value: one addressable unit of an edited
// document, sourced from a PDF page or an image frame.
package page

import "fmt"

// Kind identifies the format of the backing file a page comes from.
type Kind int

const (
	KindPDF Kind = iota
	KindImage
)

// String returns the kind name
func (k Kind) String() string {
	switch k {
	case KindPDF:
		return "pdf"
	case KindImage:
		return "image"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// DefaultPDFResolution is the resolution of PDF user space (1 unit = 1/72 inch).
const DefaultPDFResolution = 72.0

// Identity is the stable identity of a page across reordering: the owning
// backing file and the 1-based page number inside it.
type Identity struct {
	FileID string
	Number int
}

// String returns "path#number"
func (id Identity) String() string {
	return fmt.Sprintf("%s#%d", id.FileID, id.Number)
}

// Size holds a width and height, in points for page sizes and pixels for
// render targets.
type Size struct {
	Width  float64
	Height float64
}

// Swap returns the size with width and height exchanged
func (s Size) Swap() Size {
	return Size{Width: s.Height, Height: s.Width}
}

// Fit scales s uniformly so that it fits inside box, keeping the aspect ratio.
// A zero or negative box dimension leaves s unchanged.
func (s Size) Fit(box Size) Size {
	if s.Width <= 0 || s.Height <= 0 || box.Width <= 0 || box.Height <= 0 {
		return s
	}
	scale := box.Width / s.Width
	if h := box.Height / s.Height; h < scale {
		scale = h
	}
	return Size{Width: s.Width * scale, Height: s.Height * scale}
}

// Page describes one page of the edited document.
type Page struct {
	FileID       string  // cache key of the backing file
	Number       int     // 1-based page (or frame) number inside the backing file
	Kind         Kind    // format of the backing file
	Rotation     int     // user rotation in degrees, normalized to [0, 360)
	BaseRotation int     // intrinsic rotation of the source page, normalized to [0, 360)
	Size         Size    // intrinsic size in points, before any rotation
	Resolution   float64 // DPI of the source
	Index        int     // position in the owning collection
}

// Identity returns the stable identity of the page
func (p Page) Identity() Identity {
	return Identity{FileID: p.FileID, Number: p.Number}
}

// Equal reports whether both values denote the same source page.
// Index and rotation are not part of equality.
func (p Page) Equal(other Page) bool {
	return p.FileID == other.FileID && p.Number == other.Number
}

// TotalRotation returns the effective rotation: intrinsic plus user rotation
func (p Page) TotalRotation() int {
	return NormalizeRotation(p.BaseRotation + p.Rotation)
}

// Rotated returns a copy of the page with degrees added to its user rotation
func (p Page) Rotated(degrees int) Page {
	p.Rotation = NormalizeRotation(p.Rotation + degrees)
	return p
}

// RotatedSize returns the page size after applying the effective rotation.
// Only quarter turns swap the dimensions.
func (p Page) RotatedSize() Size {
	switch p.TotalRotation() {
	case 90, 270:
		return p.Size.Swap()
	default:
		return p.Size
	}
}

// ViewSize returns the rotated page size scaled so that its longest side
// equals maxSide. A non-positive maxSide returns the rotated size unscaled.
func (p Page) ViewSize(maxSide float64) Size {
	size := p.RotatedSize()
	if maxSide <= 0 {
		return size
	}
	return size.Fit(Size{Width: maxSide, Height: maxSide})
}

// String returns a short description used in logs
func (p Page) String() string {
	return fmt.Sprintf("%s@%d rot=%d", p.Identity(), p.Index, p.Rotation)
}

// NormalizeRotation maps any angle in degrees onto [0, 360).
func NormalizeRotation(degrees int) int {
	degrees %= 360
	if degrees < 0 {
		degrees += 360
	}
	return degrees
}

// Identities returns the identities of pages in order
func Identities(pages []Page) []Identity {
	ids := make([]Identity, len(pages))
	for i, p := range pages {
		ids[i] = p.Identity()
	}
	return ids
}

// Reindex assigns Index = position for every page in the slice.
func Reindex(pages []Page) {
	for i := range pages {
		pages[i].Index = i
	}
}
