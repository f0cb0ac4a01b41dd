package pdf

import (
	"fmt"
	"math"
	"os"

	lpdf "github.com/ledongthuc/pdf"
	"github.com/pyhub-apps/pdfpages-golang/pkg/source"
)

// OpenWithLedongthuc opens a PDF file using the ledongthuc/pdf library.
// pw is called to obtain passwords to try; returning "" stops trying.
func OpenWithLedongthuc(path string, pw func() string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	tracked := trackPassword(pw)
	r, err := lpdf.NewReaderEncrypted(f, fi.Size(), tracked.next)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to open PDF with ledongthuc: %w", err)
	}

	pageCount := r.NumPage()
	pages := make([]source.PageInfo, 0, pageCount)
	for i := 1; i <= pageCount; i++ {
		pages = append(pages, ledongthucPageInfo(r.Page(i), i))
	}

	return &Document{
		path:     path,
		backend:  BackendLedongthuc,
		password: tracked.last,
		pages:    pages,
		closer:   f,
	}, nil
}

// ledongthucPageInfo reads the page box and rotation, following the
// Parent chain for inherited attributes.
func ledongthucPageInfo(p lpdf.Page, number int) source.PageInfo {
	info := defaultPageInfo(number)

	box := ledongthucInherited(p.V, "CropBox")
	if box.Kind() != lpdf.Array || box.Len() != 4 {
		box = ledongthucInherited(p.V, "MediaBox")
	}
	if box.Kind() == lpdf.Array && box.Len() == 4 {
		// box is [x0, y0, x1, y1]
		w := math.Abs(box.Index(2).Float64() - box.Index(0).Float64())
		h := math.Abs(box.Index(3).Float64() - box.Index(1).Float64())
		if w > 0 && h > 0 {
			info.Width, info.Height = w, h
		}
	}

	if rot := ledongthucInherited(p.V, "Rotate"); rot.Kind() == lpdf.Integer {
		info.Rotation = int(rot.Int64())
	}
	return info
}

func ledongthucInherited(v lpdf.Value, key string) lpdf.Value {
	for depth := 0; depth < maxInheritDepth && !v.IsNull(); depth++ {
		if x := v.Key(key); !x.IsNull() {
			return x
		}
		v = v.Key("Parent")
	}
	return lpdf.Value{}
}
