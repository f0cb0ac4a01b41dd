package pdf

import (
	"fmt"
	"math"
	"os"

	gopdf "github.com/dslipak/pdf"
	"github.com/pyhub-apps/pdfpages-golang/pkg/source"
)

// OpenWithDslipak opens a PDF file using the dslipak/pdf library.
// pw is called to obtain passwords to try; returning "" stops trying.
func OpenWithDslipak(path string, pw func() string) (*Document, error) {
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
	r, err := gopdf.NewReaderEncrypted(f, fi.Size(), tracked.next)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to open PDF with dslipak: %w", err)
	}

	pageCount := r.NumPage()
	pages := make([]source.PageInfo, 0, pageCount)
	for i := 1; i <= pageCount; i++ {
		pages = append(pages, dslipakPageInfo(r.Page(i), i))
	}

	return &Document{
		path:     path,
		backend:  BackendDslipak,
		password: tracked.last,
		pages:    pages,
		closer:   f,
	}, nil
}

// dslipakPageInfo reads the page box and rotation, following the Parent
// chain for inherited attributes.
func dslipakPageInfo(p gopdf.Page, number int) source.PageInfo {
	info := defaultPageInfo(number)

	box := dslipakInherited(p.V, "CropBox")
	if box.Kind() != gopdf.Array || box.Len() != 4 {
		box = dslipakInherited(p.V, "MediaBox")
	}
	if box.Kind() == gopdf.Array && box.Len() == 4 {
		w := math.Abs(box.Index(2).Float64() - box.Index(0).Float64())
		h := math.Abs(box.Index(3).Float64() - box.Index(1).Float64())
		if w > 0 && h > 0 {
			info.Width, info.Height = w, h
		}
	}

	if rot := dslipakInherited(p.V, "Rotate"); rot.Kind() == gopdf.Integer {
		info.Rotation = int(rot.Int64())
	}
	return info
}

func dslipakInherited(v gopdf.Value, key string) gopdf.Value {
	for depth := 0; depth < maxInheritDepth && !v.IsNull(); depth++ {
		if x := v.Key(key); !x.IsNull() {
			return x
		}
		v = v.Key("Parent")
	}
	return gopdf.Value{}
}
