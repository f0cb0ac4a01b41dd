// Package pdf opens PDF backing files and reports their page metadata.
//
// Three parsing libraries are tried in order: pdfcpu (primary, full
// validation and encryption support), then ledongthuc/pdf and dslipak/pdf as
// lenient fallbacks for files pdfcpu rejects.
package pdf

// Backend names reported by Document.Backend.
const (
	BackendPDFCPU     = "pdfcpu"
	BackendLedongthuc = "ledongthuc"
	BackendDslipak    = "dslipak"
)

// maxInheritDepth bounds the Parent walk for inherited page attributes so a
// cyclic page tree cannot loop forever.
const maxInheritDepth = 32

// fallback opens a file with a lenient backend.
type fallback struct {
	name string
	open func(path string, pw func() string) (*Document, error)
}

// fallbacks are tried in order after pdfcpu fails for a reason other than
// a missing or wrong password.
var fallbacks = []fallback{
	{name: BackendLedongthuc, open: OpenWithLedongthuc},
	{name: BackendDslipak, open: OpenWithDslipak},
}

// passwordTracker wraps a password callback and remembers the last value
// handed out, so the document can report the password that unlocked it.
type passwordTracker struct {
	pw   func() string
	last string
}

func trackPassword(pw func() string) *passwordTracker {
	return &passwordTracker{pw: pw}
}

func (t *passwordTracker) next() string {
	if t.pw == nil {
		return ""
	}
	t.last = t.pw()
	return t.last
}
