// Package history provides reversible command records and a two-stack
// undo/redo controller.
//
// Items are opaque to History: each one captures enough state to invert its
// own effect. History never calls Do on Register; operations apply
// themselves and hand the item over afterwards.
package history

// Item is a reversible record of one mutation.
type Item interface {
	// Do re-applies the mutation. Only called after Undo.
	Do()
	// Undo reverts the mutation.
	Undo()
}

// Labeler is implemented by items that carry a display label.
type Labeler interface {
	Label() string
}

// Func adapts a pair of closures to Item.
type Func struct {
	Name     string
	DoFunc   func()
	UndoFunc func()
}

// Do calls DoFunc
func (f Func) Do() { f.DoFunc() }

// Undo calls UndoFunc
func (f Func) Undo() { f.UndoFunc() }

// Label returns the item name
func (f Func) Label() string { return f.Name }

// State summarizes the controller for observers.
type State struct {
	CanUndo  bool
	CanRedo  bool
	Modified bool
}

// History keeps the applied sequence and the undone (redo-available) stack.
// It is not safe for concurrent use.
type History struct {
	applied []Item
	undone  []Item
	saved   int // applied depth at the last save; -1 once that state is unreachable
}

// New returns an empty, unmodified history
func New() *History {
	return &History{}
}

// Register appends an already applied item and discards the redo stack.
func (h *History) Register(item Item) {
	if item == nil {
		return
	}
	if h.saved > len(h.applied) {
		// the saved state lived on the branch being discarded
		h.saved = -1
	}
	h.applied = append(h.applied, item)
	clear(h.undone)
	h.undone = h.undone[:0]
}

// Undo reverts the most recent item. It returns false if there is nothing to undo.
func (h *History) Undo() bool {
	if len(h.applied) == 0 {
		return false
	}
	item := h.applied[len(h.applied)-1]
	h.applied = h.applied[:len(h.applied)-1]
	item.Undo()
	h.undone = append(h.undone, item)
	return true
}

// Redo re-applies the most recently undone item. It returns false if there is
// nothing to redo.
func (h *History) Redo() bool {
	if len(h.undone) == 0 {
		return false
	}
	item := h.undone[len(h.undone)-1]
	h.undone = h.undone[:len(h.undone)-1]
	item.Do()
	h.applied = append(h.applied, item)
	return true
}

// Clear empties both stacks without invoking any item and resets the
// modified state.
func (h *History) Clear() {
	h.applied = nil
	h.undone = nil
	h.saved = 0
}

// CanUndo reports whether the applied sequence is non-empty
func (h *History) CanUndo() bool { return len(h.applied) > 0 }

// CanRedo reports whether the undone stack is non-empty
func (h *History) CanRedo() bool { return len(h.undone) > 0 }

// Len returns the number of applied items
func (h *History) Len() int { return len(h.applied) }

// Modified reports whether the current state differs from the last saved one.
func (h *History) Modified() bool {
	return h.saved != len(h.applied)
}

// MarkSaved records the current state as saved.
func (h *History) MarkSaved() {
	h.saved = len(h.applied)
}

// UndoLabel returns the label of the item Undo would revert, if any.
func (h *History) UndoLabel() string {
	if len(h.applied) == 0 {
		return ""
	}
	return label(h.applied[len(h.applied)-1])
}

// RedoLabel returns the label of the item Redo would re-apply, if any.
func (h *History) RedoLabel() string {
	if len(h.undone) == 0 {
		return ""
	}
	return label(h.undone[len(h.undone)-1])
}

// State returns a snapshot for observers
func (h *History) State() State {
	return State{CanUndo: h.CanUndo(), CanRedo: h.CanRedo(), Modified: h.Modified()}
}

func label(item Item) string {
	if l, ok := item.(Labeler); ok {
		return l.Label()
	}
	return ""
}
