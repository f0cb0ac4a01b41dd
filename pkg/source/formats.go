package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Formats dispatches Open to a per-format opener chosen by file extension,
// falling back to content sniffing for unknown or missing extensions.
type Formats struct {
	byExt map[string]Opener
}

// NewFormats returns an empty registry
func NewFormats() *Formats {
	return &Formats{byExt: make(map[string]Opener)}
}

// Register binds opener to each extension (with or without the leading dot).
func (f *Formats) Register(opener Opener, exts ...string) *Formats {
	for _, ext := range exts {
		f.byExt[normalizeExt(ext)] = opener
	}
	return f
}

// Supports reports whether path has a registered extension
func (f *Formats) Supports(path string) bool {
	_, ok := f.byExt[normalizeExt(filepath.Ext(path))]
	return ok
}

// Open opens path with the opener registered for its format.
func (f *Formats) Open(ctx context.Context, path string, q PasswordQuerier) (Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreadable, path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrUnreadable, path)
	}

	opener, ok := f.byExt[normalizeExt(filepath.Ext(path))]
	if !ok {
		ext, err := sniff(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrUnreadable, path, err)
		}
		if opener, ok = f.byExt[ext]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnsupported, path)
		}
	}
	return opener.Open(ctx, path, q)
}

// sniffLen covers the headers mimetype inspects for the formats we open.
const sniffLen = 3072

// sniff guesses the extension of path from its content.
func sniff(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	head = head[:n]

	m := mimetype.Detect(head)
	// PDF allows junk before the header, which reads as plain text or data
	if (m.Is("text/plain") || m.Is("application/octet-stream")) && bytes.Contains(head, []byte("%PDF-")) {
		return ".pdf", nil
	}
	return normalizeExt(m.Extension()), nil
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
