package source

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrAuthentication is returned when a protected file cannot be unlocked
	// with the supplied password. It never poisons the cache.
	ErrAuthentication = errors.New("authentication failed")
	// ErrCancelled is returned when the user aborts a pending prompt.
	ErrCancelled = errors.New("operation cancelled")
	// ErrNotFound is returned when a source path does not exist.
	ErrNotFound = errors.New("file not found")
	// ErrUnreadable is returned when a source exists but cannot be decoded.
	ErrUnreadable = errors.New("file unreadable")
	// ErrUnsupported is returned for files of an unknown format.
	ErrUnsupported = errors.New("unsupported file format")
	// ErrClosed is returned when a handle or cache is used after Close.
	ErrClosed = errors.New("document closed")
	// ErrPageRange is returned for page numbers outside [1, PageCount].
	ErrPageRange = errors.New("page number out of range")
)

// SourceError reports a source that was skipped during a best-effort insert.
type SourceError struct {
	Path string
	Err  error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// IsCancelled reports whether err is a user or context cancellation.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)
}

// IsSkippable reports whether err only disqualifies one source of a
// multi-source insert rather than the whole operation.
func IsSkippable(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnreadable) || errors.Is(err, ErrUnsupported)
}
