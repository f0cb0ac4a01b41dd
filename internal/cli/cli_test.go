package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyhub-apps/pdfpages-golang/internal/testpdf"
	"github.com/pyhub-apps/pdfpages-golang/pkg/pdf"
	"github.com/pyhub-apps/pdfpages-golang/pkg/session"
	"github.com/pyhub-apps/pdfpages-golang/pkg/source"
)

func TestMain(m *testing.M) {
	api.DisableConfigDir()
	os.Exit(m.Run())
}

type testEnv struct {
	t      *testing.T
	dir    string
	config string
	stdin  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	return &testEnv{t: t, dir: dir, config: filepath.Join(dir, "config.yaml")}
}

func (e *testEnv) runErr(args ...string) (string, string, error) {
	e.t.Helper()
	var out, errOut bytes.Buffer
	root := NewRootCmd(strings.NewReader(e.stdin), &out, &errOut)
	root.SetArgs(append([]string{"--config", e.config}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func (e *testEnv) run(args ...string) string {
	e.t.Helper()
	out, errOut, err := e.runErr(args...)
	require.NoError(e.t, err, "stderr: %s", errOut)
	return out
}

func openPDF(t *testing.T, path string) *pdf.Document {
	t.Helper()
	doc, err := pdf.OpenWithPassword(path, "")
	require.NoError(t, err)
	t.Cleanup(func() { doc.Close() })
	return doc
}

func pageWidths(t *testing.T, doc *pdf.Document) []float64 {
	t.Helper()
	var widths []float64
	for n := 1; n <= doc.PageCount(); n++ {
		info, err := doc.PageInfo(n)
		require.NoError(t, err)
		widths = append(widths, info.Width)
	}
	return widths
}

func TestInfo(t *testing.T) {
	env := newTestEnv(t)
	src := testpdf.WritePDF(t, env.dir, "src.pdf",
		testpdf.Page{Width: 100, Height: 200},
		testpdf.Page{Width: 300, Height: 400, Rotate: 90},
	)
	img := testpdf.WritePNG(t, env.dir, "img.png", 40, 20)

	out := env.run("info", src, img)
	assert.Contains(t, out, "2 pages")
	assert.Contains(t, out, "100 x 200")
	assert.Contains(t, out, "rotate 90")
	assert.Contains(t, out, "image")

	summary := env.run("info", "--summary", src)
	assert.NotContains(t, summary, "100 x 200")

	out, _, err := env.runErr("info", src, filepath.Join(env.dir, "missing.pdf"))
	assert.Error(t, err)
	assert.Contains(t, out, "missing.pdf")
}

func TestArrange(t *testing.T) {
	env := newTestEnv(t)
	src := testpdf.WritePDF(t, env.dir, "src.pdf",
		testpdf.Page{Width: 100, Height: 200},
		testpdf.Page{Width: 300, Height: 400},
		testpdf.Page{Width: 500, Height: 600},
	)
	outPath := filepath.Join(env.dir, "out.pdf")

	out := env.run("arrange", "-o", outPath, src,
		"--op", "select 1",
		"--op", "move 2",
		"--op", "rotate 90",
		"--op", "select 1",
		"--op", "remove",
		"--op", "undo",
	)
	assert.Contains(t, out, "wrote 3 pages")

	doc := openPDF(t, outPath)
	assert.InDeltaSlice(t, []float64{300, 500, 100}, pageWidths(t, doc), 0.5)

	last, err := doc.PageInfo(3)
	require.NoError(t, err)
	assert.Equal(t, 90, last.Rotation)
}

func TestArrangeInsertAndSkip(t *testing.T) {
	env := newTestEnv(t)
	src := testpdf.WritePDF(t, env.dir, "src.pdf", testpdf.Page{Width: 100, Height: 200})
	extra := testpdf.WritePDF(t, env.dir, "extra.pdf", testpdf.Page{Width: 300, Height: 400})
	outPath := filepath.Join(env.dir, "out.pdf")

	_, errOut, err := env.runErr("arrange", "-o", outPath, src, filepath.Join(env.dir, "nope.pdf"),
		"--op", "insert 1 "+extra,
	)
	require.NoError(t, err)
	assert.Contains(t, errOut, "skipped")

	doc := openPDF(t, outPath)
	assert.InDeltaSlice(t, []float64{300, 100}, pageWidths(t, doc), 0.5)
}

func TestArrangeErrors(t *testing.T) {
	env := newTestEnv(t)
	src := testpdf.WritePages(t, env.dir, "src.pdf", 2)
	outPath := filepath.Join(env.dir, "out.pdf")

	_, _, err := env.runErr("arrange", "-o", outPath, src, "--op", "explode")
	assert.ErrorContains(t, err, "unknown operation")

	_, _, err = env.runErr("arrange", "-o", outPath, src, "--op", "select 9")
	assert.Error(t, err)

	_, _, err = env.runErr("arrange", "-o", outPath, src, "--op", "select-all", "--op", "remove")
	assert.ErrorContains(t, err, "no pages")

	_, _, err = env.runErr("arrange", src)
	assert.Error(t, err, "output is required")

	_, statErr := os.Stat(outPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestExtract(t *testing.T) {
	env := newTestEnv(t)
	src := testpdf.WritePDF(t, env.dir, "src.pdf",
		testpdf.Page{Width: 100, Height: 200},
		testpdf.Page{Width: 300, Height: 400},
		testpdf.Page{Width: 500, Height: 600},
	)
	outPath := filepath.Join(env.dir, "out.pdf")

	out := env.run("extract", "-o", outPath, "--pages", "3,1", src)
	assert.Contains(t, out, "wrote 2 pages")

	doc := openPDF(t, outPath)
	assert.InDeltaSlice(t, []float64{100, 500}, pageWidths(t, doc), 0.5)
}

func TestProtectedSource(t *testing.T) {
	env := newTestEnv(t)
	src := testpdf.WriteEncrypted(t, env.dir, "locked.pdf", 2, "secret")

	env.stdin = "secret\n"
	out := env.run("info", "--summary", src)
	assert.Contains(t, out, "2 pages")

	env.stdin = "\n"
	_, _, err := env.runErr("info", src)
	assert.ErrorIs(t, err, source.ErrCancelled)
}

func TestConfigCommand(t *testing.T) {
	env := newTestEnv(t)

	out := env.run("config")
	for _, key := range []string{"thumbnail.size", "image.dpi", "watch.enabled"} {
		assert.Contains(t, out, key)
	}

	env.run("config", "thumbnail.size", "128")
	assert.Equal(t, "128\n", env.run("config", "thumbnail.size"))
	assert.FileExists(t, env.config)

	_, _, err := env.runErr("config", "thumbnail.size", "-3")
	assert.Error(t, err)
	_, _, err = env.runErr("config", "no.such.key")
	assert.Error(t, err)
}

func TestParseOp(t *testing.T) {
	tests := []struct {
		in   string
		want session.Request
	}{
		{"select 1,3", session.SetSelectionRequest{Indices: []int{0, 2}}},
		{"select 2-4,1", session.SetSelectionRequest{Indices: []int{0, 1, 2, 3}}},
		{"SELECT-ALL", session.SelectRequest{Selected: true}},
		{"select-none", session.SelectRequest{Selected: false}},
		{"flip", session.FlipRequest{}},
		{"move -1", session.MoveRequest{Delta: -1}},
		{"rotate 270", session.RotateRequest{Degrees: 270}},
		{"remove", session.RemoveSelectedRequest{}},
		{"remove 2,2,5", session.RemoveRequest{Indices: []int{1, 4}}},
		{"insert 3 a.pdf b.png", session.InsertRequest{At: 2, Sources: []string{"a.pdf", "b.png"}}},
		{"undo", session.UndoRequest{}},
		{"redo", session.RedoRequest{}},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := parseOp(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	for _, bad := range []string{"", "select", "select 0", "select 3-1", "move", "move x", "flip 1", "insert 0 a.pdf", "insert 1", "shuffle",
		"select 1-2000000000", "remove 99999999999"} {
		_, err := parseOp(bad)
		assert.Error(t, err, bad)
	}
}

func TestParsePagesBoundsRanges(t *testing.T) {
	got, err := parsePages("99999-100000")
	require.NoError(t, err)
	assert.Equal(t, []int{99998, 99999}, got)

	_, err = parsePages("1-2000000000")
	assert.ErrorContains(t, err, "exceeds")

	env := newTestEnv(t)
	src := testpdf.WritePages(t, env.dir, "src.pdf", 2)
	_, _, err = env.runErr("extract", "-o", filepath.Join(env.dir, "out.pdf"), "--pages", "1-2000000000", src)
	assert.ErrorContains(t, err, "exceeds")
}

func TestPrompterCancelsOnEmptyLine(t *testing.T) {
	var prompt bytes.Buffer
	p := newPrompter(strings.NewReader("pw\n\n"), &prompt)

	got, err := p.QueryPassword(context.Background(), "/tmp/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, "pw", got)
	assert.Contains(t, prompt.String(), "a.pdf")

	_, err = p.QueryPassword(context.Background(), "/tmp/a.pdf")
	assert.ErrorIs(t, err, source.ErrCancelled)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.QueryPassword(ctx, "/tmp/a.pdf")
	assert.ErrorIs(t, err, source.ErrCancelled)
}
