package source_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyhub-apps/pdfpages-golang/pkg/page"
	"github.com/pyhub-apps/pdfpages-golang/pkg/source"
)

type stubDoc struct {
	path  string
	kind  page.Kind
	infos []source.PageInfo
}

func (d *stubDoc) Path() string    { return d.path }
func (d *stubDoc) Kind() page.Kind { return d.kind }
func (d *stubDoc) PageCount() int  { return len(d.infos) }
func (d *stubDoc) Close() error    { return nil }

func (d *stubDoc) PageInfo(number int) (source.PageInfo, error) {
	if number < 1 || number > len(d.infos) {
		return source.PageInfo{}, source.ErrPageRange
	}
	return d.infos[number-1], nil
}

// tagOpener records which format handled the last open.
func tagOpener(tag string, got *string) source.Opener {
	return source.OpenFunc(func(_ context.Context, path string, _ source.PasswordQuerier) (source.Document, error) {
		*got = tag
		return &stubDoc{path: path}, nil
	})
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestFormatsDispatch(t *testing.T) {
	var got string
	formats := source.NewFormats().
		Register(tagOpener("pdf", &got), ".pdf").
		Register(tagOpener("image", &got), "png", ".GIF", ".webp", ".jpg", ".tiff")
	dir := t.TempDir()
	ctx := context.Background()

	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"doc.pdf", []byte("anything"), "pdf"},
		{"DOC.PDF", []byte("anything"), "pdf"},
		{"pic.png", []byte("anything"), "image"},
		{"anim.gif", []byte("anything"), "image"},
		{"noext", []byte("%PDF-1.7\n"), "pdf"},
		{"scan.bin", []byte("\x89PNG\r\n\x1a\nrest"), "image"},
		{"junk-first", []byte("garbage\n%PDF-1.4\n"), "pdf"},
		{"riff", []byte("RIFF\x00\x00\x00\x00WEBPVP8 "), "image"},
		{"camera-roll", []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00"), "image"},
		{"fax", []byte("II*\x00\x08\x00\x00\x00"), "image"},
		{"animation", []byte("GIF89a\x01\x00\x01\x00"), "image"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got = ""
			path := writeFile(t, dir, tc.name, tc.data)
			doc, err := formats.Open(ctx, path, nil)
			require.NoError(t, err)
			assert.Equal(t, path, doc.Path())
			assert.Equal(t, tc.want, got)
		})
	}

	assert.True(t, formats.Supports("x.PNG"))
	assert.False(t, formats.Supports("x.txt"))
}

func TestFormatsErrors(t *testing.T) {
	var got string
	formats := source.NewFormats().Register(tagOpener("pdf", &got), ".pdf")
	dir := t.TempDir()
	ctx := context.Background()

	_, err := formats.Open(ctx, filepath.Join(dir, "missing.pdf"), nil)
	assert.ErrorIs(t, err, source.ErrNotFound)

	_, err = formats.Open(ctx, dir, nil)
	assert.ErrorIs(t, err, source.ErrUnreadable)

	_, err = formats.Open(ctx, writeFile(t, dir, "notes.txt", []byte("hello")), nil)
	assert.ErrorIs(t, err, source.ErrUnsupported)
	assert.True(t, source.IsSkippable(err))
	assert.Empty(t, got)
}

func TestErrorClassification(t *testing.T) {
	assert.True(t, source.IsCancelled(source.ErrCancelled))
	assert.True(t, source.IsCancelled(context.Canceled))
	assert.False(t, source.IsCancelled(source.ErrAuthentication))

	skipped := &source.SourceError{Path: "a.pdf", Err: source.ErrNotFound}
	assert.True(t, errors.Is(skipped, source.ErrNotFound))
	assert.Contains(t, skipped.Error(), "a.pdf")
	assert.False(t, source.IsSkippable(source.ErrAuthentication))
}

func TestPages(t *testing.T) {
	doc := &stubDoc{
		path: "/tmp/x.pdf",
		kind: page.KindPDF,
		infos: []source.PageInfo{
			{Number: 1, Width: 100, Height: 200, Resolution: 72},
			{Number: 2, Width: 300, Height: 400, Rotation: -90, Resolution: 72},
		},
	}

	pages, err := source.Pages(doc, "key")
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, "key", pages[1].FileID)
	assert.Equal(t, 2, pages[1].Number)
	assert.Equal(t, 1, pages[1].Index)
	assert.Equal(t, 270, pages[1].BaseRotation)
	assert.Equal(t, 0, pages[1].Rotation)
	assert.Equal(t, page.Size{Width: 300, Height: 400}, pages[1].Size)
}
