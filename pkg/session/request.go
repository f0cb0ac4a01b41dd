package session

import (
	"context"
	"fmt"
)

// Request is one session operation, as passed between a front end and the
// session. The set of requests is closed: only the types in this file
// implement it.
type Request interface {
	op() string
}

// InsertRequest asks for Insert.
type InsertRequest struct {
	At      int
	Sources []string
}

// RemoveRequest asks for Remove.
type RemoveRequest struct {
	Indices []int
}

// RemoveSelectedRequest asks for RemoveSelected.
type RemoveSelectedRequest struct{}

// MoveRequest asks for Move.
type MoveRequest struct {
	Delta int
}

// RotateRequest asks for Rotate.
type RotateRequest struct {
	Degrees int
}

// SelectRequest asks for Select.
type SelectRequest struct {
	Selected bool
}

// FlipRequest asks for Flip.
type FlipRequest struct{}

// SetSelectionRequest asks for SetSelection.
type SetSelectionRequest struct {
	Indices []int
}

// UndoRequest asks for Undo.
type UndoRequest struct{}

// RedoRequest asks for Redo.
type RedoRequest struct{}

// SaveRequest asks for Save.
type SaveRequest struct {
	Path string
}

// ExtractRequest asks for Extract.
type ExtractRequest struct {
	Path string
}

func (InsertRequest) op() string         { return OpInsert }
func (RemoveRequest) op() string         { return OpRemove }
func (RemoveSelectedRequest) op() string { return OpRemove }
func (MoveRequest) op() string           { return OpMove }
func (RotateRequest) op() string         { return OpRotate }
func (SelectRequest) op() string         { return OpSelect }
func (FlipRequest) op() string           { return OpFlip }
func (SetSelectionRequest) op() string   { return OpSetSelection }
func (UndoRequest) op() string           { return OpUndo }
func (RedoRequest) op() string           { return OpRedo }
func (SaveRequest) op() string           { return OpSave }
func (ExtractRequest) op() string        { return OpExtract }

// Result is the outcome of Do.
type Result struct {
	Op      string
	Applied bool         // the operation changed the document (or undo/redo happened)
	Insert  InsertReport // set for InsertRequest
	Err     error
}

// Do executes req and reports its outcome.
func (s *Session) Do(ctx context.Context, req Request) Result {
	res := Result{Op: req.op()}
	switch r := req.(type) {
	case InsertRequest:
		res.Insert, res.Err = s.Insert(ctx, r.At, r.Sources)
		res.Applied = res.Insert.Inserted > 0
	case RemoveRequest:
		res.Applied, res.Err = s.Remove(ctx, r.Indices)
	case RemoveSelectedRequest:
		res.Applied, res.Err = s.RemoveSelected(ctx)
	case MoveRequest:
		res.Applied, res.Err = s.Move(ctx, r.Delta)
	case RotateRequest:
		res.Applied, res.Err = s.Rotate(ctx, r.Degrees)
	case SelectRequest:
		res.Err = s.Select(ctx, r.Selected)
	case FlipRequest:
		res.Err = s.Flip(ctx)
	case SetSelectionRequest:
		res.Err = s.SetSelection(ctx, r.Indices)
	case UndoRequest:
		res.Applied, res.Err = s.Undo(ctx)
	case RedoRequest:
		res.Applied, res.Err = s.Redo(ctx)
	case SaveRequest:
		res.Err = s.Save(ctx, r.Path)
		res.Applied = res.Err == nil
	case ExtractRequest:
		res.Err = s.Extract(ctx, r.Path)
		res.Applied = res.Err == nil
	default:
		res.Err = fmt.Errorf("unknown request %T", req)
	}
	return res
}
