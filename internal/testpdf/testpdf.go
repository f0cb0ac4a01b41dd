// Package testpdf writes small PDF and image fixtures for tests.
package testpdf

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/stretchr/testify/require"
)

// Page describes one page of a generated PDF.
type Page struct {
	Width  float64
	Height float64
	Rotate int
	// Content is the page content stream; a diagonal line when empty
	Content string
}

// A4 is a portrait A4 page
var A4 = Page{Width: 595, Height: 842}

// Build returns a minimal valid PDF with the given pages. Every page carries
// a small content stream so readers that require /Contents are satisfied.
func Build(pages ...Page) []byte {
	var buf bytes.Buffer
	var offsets []int

	buf.WriteString("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")
	object := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	kids := make([]string, len(pages))
	for k := range pages {
		kids[k] = fmt.Sprintf("%d 0 R", 3+2*k)
	}

	object("<< /Type /Catalog /Pages 2 0 R >>")
	object(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)))
	for k, p := range pages {
		object(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %g %g] /Rotate %d /Resources << >> /Contents %d 0 R >>",
			p.Width, p.Height, p.Rotate, 4+2*k))
		content := p.Content
		if content == "" {
			content = fmt.Sprintf("0 0 m %g %g l S", p.Width, p.Height)
		}
		object(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}

// WritePDF writes a PDF with the given pages to dir/name and returns its path.
func WritePDF(t testing.TB, dir, name string, pages ...Page) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, Build(pages...), 0o644), "writing %s", name)
	return path
}

// WritePages writes a PDF of n A4 pages.
func WritePages(t testing.TB, dir, name string, n int) string {
	t.Helper()
	pages := make([]Page, n)
	for i := range pages {
		pages[i] = A4
	}
	return WritePDF(t, dir, name, pages...)
}

// WriteEncrypted writes a PDF of n A4 pages protected by userPW.
func WriteEncrypted(t testing.TB, dir, name string, n int, userPW string) string {
	t.Helper()
	plain := WritePages(t, dir, "plain-"+name, n)
	path := filepath.Join(dir, name)

	conf := model.NewDefaultConfiguration()
	conf.UserPW = userPW
	conf.OwnerPW = userPW + "-owner"
	require.NoError(t, api.EncryptFile(plain, path, conf), "encrypting %s", name)
	return path
}

// WritePNG writes a solid w x h PNG and returns its path.
func WritePNG(t testing.TB, dir, name string, w, h int) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644), "writing %s", name)
	return path
}

// WriteGIF writes an animated GIF with the given number of w x h frames.
func WriteGIF(t testing.TB, dir, name string, frames, w, h int) string {
	t.Helper()
	palette := color.Palette{color.White, color.Black}
	anim := &gif.GIF{}
	for i := 0; i < frames; i++ {
		frame := image.NewPaletted(image.Rect(0, 0, w, h), palette)
		frame.SetColorIndex(i%w, 0, 1)
		anim.Image = append(anim.Image, frame)
		anim.Delay = append(anim.Delay, 10)
	}
	var buf bytes.Buffer
	require.NoError(t, gif.EncodeAll(&buf, anim))

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644), "writing %s", name)
	return path
}
