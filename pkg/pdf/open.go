package pdf

import (
	"context"
	"fmt"
	"strings"

	"github.com/pyhub-apps/pdfpages-golang/pkg/source"
)

// Open opens a PDF file, prompting through q when the file needs a user
// password. q is invoked at most once per call. A cancelled prompt yields
// source.ErrCancelled, a wrong password source.ErrAuthentication, and a file
// no backend can parse source.ErrUnreadable.
func Open(ctx context.Context, path string, q source.PasswordQuerier) (source.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", source.ErrCancelled, err)
	}

	a := &attempt{ctx: ctx, path: path, q: q}

	doc, err := OpenWithPassword(path, "")
	if err == nil {
		return doc, nil
	}
	if isPasswordError(err) {
		password, qerr := a.password()
		if qerr != nil {
			return nil, qerr
		}
		doc, err = OpenWithPassword(path, password)
		if err == nil {
			return doc, nil
		}
		if isPasswordError(err) {
			return nil, fmt.Errorf("%w: wrong password for %s", source.ErrAuthentication, path)
		}
	}

	primary := err
	for _, fb := range fallbacks {
		doc, ferr := fb.open(path, a.callback())
		if ferr == nil {
			return doc, nil
		}
		if a.err != nil {
			// the prompt itself was cancelled or unavailable
			return nil, a.err
		}
		if a.asked && isPasswordError(ferr) {
			return nil, fmt.Errorf("%w: wrong password for %s", source.ErrAuthentication, path)
		}
	}

	return nil, fmt.Errorf("%w: %s: %v", source.ErrUnreadable, path, primary)
}

// Opener returns Open as a source.Opener
func Opener() source.Opener {
	return source.OpenFunc(Open)
}

// attempt memoizes the answer of the password prompt for one Open call.
type attempt struct {
	ctx  context.Context
	path string
	q    source.PasswordQuerier

	asked  bool
	answer string
	err    error
}

func (a *attempt) password() (string, error) {
	if a.asked {
		return a.answer, a.err
	}
	a.asked = true

	if a.q == nil {
		a.err = fmt.Errorf("%w: %s is password protected", source.ErrAuthentication, a.path)
		return "", a.err
	}

	answer, err := a.q.QueryPassword(a.ctx, a.path)
	switch {
	case err == nil:
		a.answer = answer
	case source.IsCancelled(err) || a.ctx.Err() != nil:
		a.err = fmt.Errorf("%w: password prompt for %s", source.ErrCancelled, a.path)
	default:
		a.err = fmt.Errorf("%w: %s: %v", source.ErrAuthentication, a.path, err)
	}
	return a.answer, a.err
}

// callback adapts the attempt to the "call until empty" password callback
// of the rsc.io/pdf style readers: the first call yields the prompt answer,
// every later call stops the retry loop.
func (a *attempt) callback() func() string {
	called := false
	return func() string {
		if called {
			return ""
		}
		called = true
		answer, err := a.password()
		if err != nil {
			return ""
		}
		return answer
	}
}

// isPasswordError reports whether a backend rejected the file for a missing
// or wrong password. None of the backends export a typed error for this.
func isPasswordError(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "password")
}
