// Package export writes a page sequence to a new PDF file using pdfcpu.
//
// Every page becomes a single-page part file in a scratch directory: PDF
// pages are collected from their (decrypted) source, image pages are
// imported, and each part is turned by its user rotation. The parts are then
// merged in sequence order.
package export

import (
	"context"
	"errors"
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/pyhub-apps/pdfpages-golang/pkg/imagefile"
	"github.com/pyhub-apps/pdfpages-golang/pkg/page"
	"github.com/pyhub-apps/pdfpages-golang/pkg/source"
)

var (
	// ErrNoPages is returned when there is nothing to write.
	ErrNoPages = errors.New("no pages to export")
	// ErrRotation is returned for a user rotation that is not a quarter turn.
	ErrRotation = errors.New("rotation must be a multiple of 90 degrees")
)

// PasswordLookup returns the password that unlocks a backing file, or "".
type PasswordLookup func(fileID string) string

// Option configures Write.
type Option func(*writer)

// WithLogger sets the logger (slog.Default() otherwise).
func WithLogger(logger *slog.Logger) Option {
	return func(w *writer) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithScratchDir sets the parent of the temporary working directory.
func WithScratchDir(dir string) Option {
	return func(w *writer) { w.scratchParent = dir }
}

type writer struct {
	logger        *slog.Logger
	scratchParent string
	passwords     PasswordLookup

	scratch   string
	decrypted map[string]string
	seq       int
}

// Write creates out containing pages in order. out is replaced only after
// every page was prepared successfully.
func Write(ctx context.Context, pages []page.Page, out string, passwords PasswordLookup, opts ...Option) error {
	if len(pages) == 0 {
		return ErrNoPages
	}
	for _, p := range pages {
		if p.Rotation%90 != 0 {
			return fmt.Errorf("%w: %s rotated by %d", ErrRotation, p.Identity(), p.Rotation)
		}
	}

	w := &writer{
		logger:    slog.Default(),
		passwords: passwords,
		decrypted: make(map[string]string),
	}
	for _, opt := range opts {
		opt(w)
	}

	scratch, err := os.MkdirTemp(w.scratchParent, "pdfpages-export-*")
	if err != nil {
		return fmt.Errorf("failed to create scratch directory: %w", err)
	}
	defer os.RemoveAll(scratch)
	w.scratch = scratch

	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: export to %s", source.ErrCancelled, out)
		}
		part, err := w.part(p)
		if err != nil {
			return fmt.Errorf("failed to export %s: %w", p.Identity(), err)
		}
		parts = append(parts, part)
	}

	merged := w.path("merged.pdf")
	if len(parts) == 1 {
		merged = parts[0]
	} else if err := api.MergeCreateFile(parts, merged, false, w.conf()); err != nil {
		return fmt.Errorf("failed to merge %d pages: %w", len(parts), err)
	}

	if err := moveFile(merged, out); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}
	w.logger.Debug("exported pages", "out", out, "pages", len(pages))
	return nil
}

func (w *writer) conf() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

func (w *writer) path(name string) string {
	return filepath.Join(w.scratch, name)
}

func (w *writer) next(prefix string) string {
	w.seq++
	return w.path(fmt.Sprintf("%s-%04d.pdf", prefix, w.seq))
}

// part produces the single-page PDF for p.
func (w *writer) part(p page.Page) (string, error) {
	var part string
	var err error
	switch p.Kind {
	case page.KindPDF:
		part, err = w.collect(p)
	case page.KindImage:
		part, err = w.importImage(p)
	default:
		return "", fmt.Errorf("%w: %s", source.ErrUnsupported, p.Kind)
	}
	if err != nil {
		return "", err
	}

	if p.Rotation == 0 {
		return part, nil
	}
	rotated := w.next("rotated")
	if err := api.RotateFile(part, rotated, p.Rotation, nil, w.conf()); err != nil {
		return "", fmt.Errorf("failed to rotate by %d: %w", p.Rotation, err)
	}
	return rotated, nil
}

func (w *writer) collect(p page.Page) (string, error) {
	src, err := w.plain(p.FileID)
	if err != nil {
		return "", err
	}
	part := w.next("page")
	if err := api.CollectFile(src, part, []string{strconv.Itoa(p.Number)}, w.conf()); err != nil {
		return "", fmt.Errorf("failed to collect page %d: %w", p.Number, err)
	}
	return part, nil
}

// plain returns a path to an unencrypted copy of fileID, decrypting it once
// per export if a password is known.
func (w *writer) plain(fileID string) (string, error) {
	if path, ok := w.decrypted[fileID]; ok {
		return path, nil
	}
	path := fileID
	if w.passwords != nil {
		if pw := w.passwords(fileID); pw != "" {
			conf := w.conf()
			conf.UserPW = pw
			conf.OwnerPW = pw
			path = w.next("decrypted")
			if err := api.DecryptFile(fileID, path, conf); err != nil {
				return "", fmt.Errorf("%w: failed to decrypt %s: %v", source.ErrAuthentication, fileID, err)
			}
		}
	}
	w.decrypted[fileID] = path
	return path, nil
}

// pdfcpu imports these formats directly; everything else is re-encoded.
var importable = map[string]bool{".png": true, ".jpg": true, ".jpeg": true}

func (w *writer) importImage(p page.Page) (string, error) {
	img := p.FileID
	if p.Number != 1 || !importable[strings.ToLower(filepath.Ext(p.FileID))] {
		frame, err := imagefile.Decode(p.FileID, p.Number)
		if err != nil {
			return "", err
		}
		img = strings.TrimSuffix(w.next("frame"), ".pdf") + ".png"
		f, err := os.Create(img)
		if err != nil {
			return "", err
		}
		if err := png.Encode(f, frame); err != nil {
			f.Close()
			return "", fmt.Errorf("failed to encode frame %d: %w", p.Number, err)
		}
		if err := f.Close(); err != nil {
			return "", err
		}
	}

	part := w.next("image")
	if err := api.ImportImagesFile([]string{img}, part, pdfcpu.DefaultImportConfig(), w.conf()); err != nil {
		return "", fmt.Errorf("failed to import image: %w", err)
	}
	return part, nil
}

// moveFile renames src to dst, copying when they live on different devices.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}
