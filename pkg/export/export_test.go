package export_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyhub-apps/pdfpages-golang/internal/testpdf"
	"github.com/pyhub-apps/pdfpages-golang/pkg/export"
	"github.com/pyhub-apps/pdfpages-golang/pkg/page"
	"github.com/pyhub-apps/pdfpages-golang/pkg/pdf"
	"github.com/pyhub-apps/pdfpages-golang/pkg/source"
)

func TestMain(m *testing.M) {
	api.DisableConfigDir()
	os.Exit(m.Run())
}

func pdfPage(fileID string, number int) page.Page {
	return page.Page{FileID: fileID, Number: number, Kind: page.KindPDF}
}

func TestWriteReordersAndRotates(t *testing.T) {
	dir := t.TempDir()
	src := testpdf.WritePDF(t, dir, "src.pdf",
		testpdf.Page{Width: 100, Height: 200},
		testpdf.Page{Width: 300, Height: 400},
		testpdf.Page{Width: 500, Height: 600},
	)
	out := filepath.Join(dir, "out.pdf")

	pages := []page.Page{pdfPage(src, 3), pdfPage(src, 1).Rotated(90)}
	require.NoError(t, export.Write(context.Background(), pages, out, nil))

	doc, err := pdf.OpenWithPassword(out, "")
	require.NoError(t, err)
	defer doc.Close()
	require.Equal(t, 2, doc.PageCount())

	first, err := doc.PageInfo(1)
	require.NoError(t, err)
	assert.InDelta(t, 500, first.Width, 0.5)
	assert.Equal(t, 0, first.Rotation)

	second, err := doc.PageInfo(2)
	require.NoError(t, err)
	assert.InDelta(t, 100, second.Width, 0.5)
	assert.Equal(t, 90, second.Rotation)
}

func TestWriteSinglePage(t *testing.T) {
	dir := t.TempDir()
	src := testpdf.WritePages(t, dir, "src.pdf", 4)
	out := filepath.Join(dir, "one.pdf")

	require.NoError(t, export.Write(context.Background(), []page.Page{pdfPage(src, 2)}, out, nil))

	doc, err := pdf.OpenWithPassword(out, "")
	require.NoError(t, err)
	defer doc.Close()
	assert.Equal(t, 1, doc.PageCount())
}

func TestWriteImagePages(t *testing.T) {
	dir := t.TempDir()
	src := testpdf.WritePages(t, dir, "src.pdf", 1)
	still := testpdf.WritePNG(t, dir, "still.png", 40, 20)
	anim := testpdf.WriteGIF(t, dir, "anim.gif", 2, 8, 8)
	out := filepath.Join(dir, "mixed.pdf")

	pages := []page.Page{
		pdfPage(src, 1),
		{FileID: still, Number: 1, Kind: page.KindImage},
		{FileID: anim, Number: 2, Kind: page.KindImage, Rotation: 180},
	}
	require.NoError(t, export.Write(context.Background(), pages, out, nil))

	doc, err := pdf.OpenWithPassword(out, "")
	require.NoError(t, err)
	defer doc.Close()
	assert.Equal(t, 3, doc.PageCount())
}

func TestWriteErrors(t *testing.T) {
	dir := t.TempDir()
	src := testpdf.WritePages(t, dir, "src.pdf", 1)
	out := filepath.Join(dir, "out.pdf")

	err := export.Write(context.Background(), nil, out, nil)
	assert.ErrorIs(t, err, export.ErrNoPages)

	skewed := pdfPage(src, 1)
	skewed.Rotation = 45
	err = export.Write(context.Background(), []page.Page{skewed}, out, nil)
	assert.ErrorIs(t, err, export.ErrRotation)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = export.Write(ctx, []page.Page{pdfPage(src, 1)}, out, nil)
	assert.ErrorIs(t, err, source.ErrCancelled)

	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr), "failed exports must not create the output")
}
