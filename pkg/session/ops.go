package session

import (
	"context"
	"fmt"
	"time"

	"github.com/pyhub-apps/pdfpages-golang/pkg/cache"
	"github.com/pyhub-apps/pdfpages-golang/pkg/export"
	"github.com/pyhub-apps/pdfpages-golang/pkg/history"
	"github.com/pyhub-apps/pdfpages-golang/pkg/page"
	"github.com/pyhub-apps/pdfpages-golang/pkg/source"
)

// Operation names reported in OperationCompleted.
const (
	OpInsert       = "insert"
	OpRemove       = "remove"
	OpMove         = "move"
	OpRotate       = "rotate"
	OpSelect       = "select"
	OpFlip         = "flip"
	OpSetSelection = "set-selection"
	OpUndo         = "undo"
	OpRedo         = "redo"
	OpSave         = "save"
	OpExtract      = "extract"
)

// InsertReport describes the outcome of a best-effort insert.
type InsertReport struct {
	Inserted  int                   // pages added to the collection
	Skipped   []*source.SourceError // sources that were missing or unreadable
	Cancelled bool                  // a password prompt was cancelled; nothing was inserted
}

// perform runs fn behind the busy gate and publishes its outcome.
// Cancellation is reported but not returned when swallow is set.
func (s *Session) perform(ctx context.Context, op string, swallow bool, fn func(ctx context.Context) error) (cancelled bool, err error) {
	if err := s.begin(); err != nil {
		return false, err
	}
	count := s.pages.Len()
	start := time.Now()

	err = fn(ctx)
	s.syncThumbnails()
	if source.IsCancelled(err) {
		cancelled = true
		if swallow {
			err = nil
		}
	}

	s.end(op, count, err, cancelled)
	s.logger.Debug("operation completed",
		"op", op,
		"pages", s.pages.Len(),
		"cancelled", cancelled,
		"error", err,
		"duration", time.Since(start),
	)
	return cancelled, err
}

// commit records item in the history. Nil items (no-ops) are dropped.
func (s *Session) commit(item history.Item) bool {
	if item == nil {
		return false
	}
	s.history.Register(item)
	return true
}

// Insert adds the pages of every source file before position at (clamped,
// so a position past the end appends). Sources are opened through the cache,
// prompting for passwords as needed. Missing, unreadable and unsupported
// sources are skipped and reported; an authentication failure aborts the
// whole insert without changes, as does a cancelled prompt, which is
// reported in InsertReport.Cancelled rather than as an error.
func (s *Session) Insert(ctx context.Context, at int, sources []string) (InsertReport, error) {
	var report InsertReport
	cancelled, err := s.perform(ctx, OpInsert, true, func(ctx context.Context) error {
		var pages []page.Page
		var opened []string
		for _, path := range sources {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("%w: %v", source.ErrCancelled, err)
			}
			filePages, err := s.cache.Pages(ctx, path)
			switch {
			case err == nil:
				pages = append(pages, filePages...)
				opened = append(opened, path)
			case source.IsCancelled(err):
				return err
			case source.IsSkippable(err):
				s.logger.Warn("skipping source", "path", path, "error", err)
				report.Skipped = append(report.Skipped, &source.SourceError{Path: path, Err: err})
			default:
				return fmt.Errorf("failed to insert %s: %w", path, err)
			}
		}

		if s.commit(s.pages.Insert(at, pages)) {
			report.Inserted = len(pages)
		}
		s.watchSources(opened)
		return nil
	})
	report.Cancelled = cancelled
	return report, err
}

func (s *Session) watchSources(paths []string) {
	if s.watcher == nil {
		return
	}
	for _, path := range paths {
		if err := s.watcher.Add(cache.Key(path)); err != nil {
			s.logger.Warn("failed to watch source", "path", path, "error", err)
		}
	}
}

// Remove deletes the pages at indices (pre-removal positions, as a set).
// It reports whether anything was removed.
func (s *Session) Remove(ctx context.Context, indices []int) (bool, error) {
	var applied bool
	_, err := s.perform(ctx, OpRemove, false, func(context.Context) error {
		item, err := s.pages.Remove(indices)
		if err != nil {
			return err
		}
		applied = s.commit(item)
		return nil
	})
	return applied, err
}

// RemoveSelected deletes the selected pages.
func (s *Session) RemoveSelected(ctx context.Context) (bool, error) {
	var applied bool
	_, err := s.perform(ctx, OpRemove, false, func(context.Context) error {
		item, err := s.pages.RemoveSelected()
		if err != nil {
			return err
		}
		applied = s.commit(item)
		return nil
	})
	return applied, err
}

// Move shifts the selected pages by delta positions (negative towards the
// start). It reports whether any page moved.
func (s *Session) Move(ctx context.Context, delta int) (bool, error) {
	return s.mutate(ctx, OpMove, func() history.Item { return s.pages.Move(delta) })
}

// Rotate turns the selected pages by degrees (clockwise).
func (s *Session) Rotate(ctx context.Context, degrees int) (bool, error) {
	return s.mutate(ctx, OpRotate, func() history.Item { return s.pages.Rotate(degrees) })
}

func (s *Session) mutate(ctx context.Context, op string, fn func() history.Item) (bool, error) {
	var applied bool
	_, err := s.perform(ctx, op, false, func(context.Context) error {
		applied = s.commit(fn())
		return nil
	})
	return applied, err
}

// Select selects or deselects every page. Selection changes are not
// recorded in the history.
func (s *Session) Select(ctx context.Context, selected bool) error {
	_, err := s.perform(ctx, OpSelect, false, func(context.Context) error {
		s.pages.Select(selected)
		return nil
	})
	return err
}

// Flip complements the selection.
func (s *Session) Flip(ctx context.Context) error {
	_, err := s.perform(ctx, OpFlip, false, func(context.Context) error {
		s.pages.Flip()
		return nil
	})
	return err
}

// SetSelection replaces the selection with indices.
func (s *Session) SetSelection(ctx context.Context, indices []int) error {
	_, err := s.perform(ctx, OpSetSelection, false, func(context.Context) error {
		return s.pages.SetSelection(indices)
	})
	return err
}

// Undo reverts the latest operation. It reports false when there was
// nothing to undo.
func (s *Session) Undo(ctx context.Context) (bool, error) {
	var ok bool
	_, err := s.perform(ctx, OpUndo, false, func(context.Context) error {
		ok = s.history.Undo()
		return nil
	})
	return ok, err
}

// Redo re-applies the latest undone operation. It reports false when there
// was nothing to redo.
func (s *Session) Redo(ctx context.Context) (bool, error) {
	var ok bool
	_, err := s.perform(ctx, OpRedo, false, func(context.Context) error {
		ok = s.history.Redo()
		return nil
	})
	return ok, err
}

// Save writes every page to out and marks the current state as saved.
func (s *Session) Save(ctx context.Context, out string) error {
	_, err := s.perform(ctx, OpSave, false, func(ctx context.Context) error {
		if err := s.write(ctx, s.pages.Pages(), out); err != nil {
			return err
		}
		s.history.MarkSaved()
		return nil
	})
	return err
}

// Extract writes the selected pages to out. The session state is unchanged.
func (s *Session) Extract(ctx context.Context, out string) error {
	_, err := s.perform(ctx, OpExtract, false, func(ctx context.Context) error {
		return s.write(ctx, s.pages.Selected(), out)
	})
	return err
}

func (s *Session) write(ctx context.Context, pages []page.Page, out string) error {
	if err := export.Write(ctx, pages, out, s.cache.Password, export.WithLogger(s.logger)); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}
	return nil
}

// Len returns the number of pages. Prefer State from other goroutines.
func (s *Session) Len() int {
	return len(s.State().Pages)
}
