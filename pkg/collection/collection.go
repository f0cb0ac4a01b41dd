// Package collection implements the ordered page sequence of an editing
// session. Every mutation applies immediately and returns a history.Item
// that inverts it exactly; the caller decides whether to record it.
//
// After every mutation Page.Index equals the page position, and the
// selection refers to the same pages it did before.
package collection

import (
	"errors"
	"fmt"
	"slices"

	"github.com/pyhub-apps/pdfpages-golang/pkg/history"
	"github.com/pyhub-apps/pdfpages-golang/pkg/page"
	"github.com/pyhub-apps/pdfpages-golang/pkg/selection"
)

// ErrIndexOutOfRange is returned when an index does not address a page.
var ErrIndexOutOfRange = errors.New("index out of range")

// Operation labels carried by the returned history items.
const (
	OpInsert = "insert"
	OpRemove = "remove"
	OpMove   = "move"
	OpRotate = "rotate"
)

// Collection is an ordered sequence of pages with a selection over it.
// It is not safe for concurrent use.
type Collection struct {
	pages []page.Page
	sel   *selection.Selection
}

// New returns an empty collection
func New() *Collection {
	return &Collection{sel: selection.New()}
}

// Selection returns the live selection, e.g. to subscribe to changes.
func (c *Collection) Selection() *selection.Selection {
	return c.sel
}

// Len returns the number of pages
func (c *Collection) Len() int {
	return len(c.pages)
}

// Pages returns a copy of the sequence
func (c *Collection) Pages() []page.Page {
	return slices.Clone(c.pages)
}

// At returns the page at index
func (c *Collection) At(index int) (page.Page, error) {
	if index < 0 || index >= len(c.pages) {
		return page.Page{}, fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, index, len(c.pages))
	}
	return c.pages[index], nil
}

// Selected returns copies of the selected pages in sequence order
func (c *Collection) Selected() []page.Page {
	indices := c.sel.Indices()
	out := make([]page.Page, 0, len(indices))
	for _, i := range indices {
		out = append(out, c.pages[i])
	}
	return out
}

// Insert places pages before position at; at is clamped to [0, Len()], so
// any position past the end appends. Selected indices at or after the
// insertion point shift up. Inserting nothing returns a nil item.
func (c *Collection) Insert(at int, pages []page.Page) history.Item {
	if len(pages) == 0 {
		return nil
	}
	at = min(max(at, 0), len(c.pages))
	added := slices.Clone(pages)
	prevSel := c.sel.Indices()
	nextSel := selection.Shifted(prevSel, at, len(added))

	apply := func() {
		c.pages = slices.Insert(c.pages, at, added...)
		page.Reindex(c.pages)
		c.sel.Set(nextSel)
	}
	revert := func() {
		c.pages = slices.Delete(c.pages, at, at+len(added))
		page.Reindex(c.pages)
		c.sel.Set(prevSel)
	}

	apply()
	return history.Func{Name: OpInsert, DoFunc: apply, UndoFunc: revert}
}

// Remove drops the pages at indices, which are pre-removal positions and are
// resolved as a set. Any out-of-range index fails the whole call without
// mutation; an empty set returns a nil item.
func (c *Collection) Remove(indices []int) (history.Item, error) {
	targets := slices.Clone(indices)
	slices.Sort(targets)
	targets = slices.Compact(targets)
	if len(targets) == 0 {
		return nil, nil
	}
	if targets[0] < 0 || targets[len(targets)-1] >= len(c.pages) {
		return nil, fmt.Errorf("%w: remove %v (len %d)", ErrIndexOutOfRange, indices, len(c.pages))
	}

	removed := make([]page.Page, len(targets))
	for k, i := range targets {
		removed[k] = c.pages[i]
	}
	prevSel := c.sel.Indices()
	nextSel := selection.Compacted(prevSel, targets)

	apply := func() {
		kept := make([]page.Page, 0, len(c.pages)-len(targets))
		for i, p := range c.pages {
			if _, found := slices.BinarySearch(targets, i); !found {
				kept = append(kept, p)
			}
		}
		c.pages = kept
		page.Reindex(c.pages)
		c.sel.Set(nextSel)
	}
	revert := func() {
		// ascending reinsertion puts every page back at its original index
		for k, i := range targets {
			c.pages = slices.Insert(c.pages, i, removed[k])
		}
		page.Reindex(c.pages)
		c.sel.Set(prevSel)
	}

	apply()
	return history.Func{Name: OpRemove, DoFunc: apply, UndoFunc: revert}, nil
}

// RemoveSelected removes the selected pages
func (c *Collection) RemoveSelected() (history.Item, error) {
	return c.Remove(c.sel.Indices())
}

// Move shifts the selected pages by delta positions. It behaves as if every
// selected page swapped with its unselected neighbour in the direction of
// delta, one step at a time, |delta| times, never passing the sequence
// boundary or another selected page. The final permutation is computed
// directly. A move that changes nothing returns a nil item.
func (c *Collection) Move(delta int) history.Item {
	prevSel := c.sel.Indices()
	if delta == 0 || len(prevSel) == 0 {
		return nil
	}

	nextSel := moveTargets(prevSel, delta, len(c.pages))
	if slices.Equal(prevSel, nextSel) {
		return nil
	}
	order := permutation(prevSel, nextSel, len(c.pages))

	apply := func() {
		c.pages = permute(c.pages, order)
		page.Reindex(c.pages)
		c.sel.Set(nextSel)
	}
	revert := func() {
		c.pages = unpermute(c.pages, order)
		page.Reindex(c.pages)
		c.sel.Set(prevSel)
	}

	apply()
	return history.Func{Name: OpMove, DoFunc: apply, UndoFunc: revert}
}

// Rotate adds degrees to the rotation of every selected page. An empty
// selection or a full turn returns a nil item.
func (c *Collection) Rotate(degrees int) history.Item {
	targets := c.sel.Indices()
	if len(targets) == 0 || page.NormalizeRotation(degrees) == 0 {
		return nil
	}

	turn := func(by int) func() {
		return func() {
			for _, i := range targets {
				c.pages[i] = c.pages[i].Rotated(by)
			}
		}
	}

	apply := turn(degrees)
	apply()
	return history.Func{Name: OpRotate, DoFunc: apply, UndoFunc: turn(-degrees)}
}

// Select selects or deselects every page
func (c *Collection) Select(selected bool) {
	c.sel.SelectAll(len(c.pages), selected)
}

// Flip complements the selection
func (c *Collection) Flip() {
	c.sel.Flip(len(c.pages))
}

// SetSelection replaces the selection. Every index must address a page.
func (c *Collection) SetSelection(indices []int) error {
	for _, i := range indices {
		if i < 0 || i >= len(c.pages) {
			return fmt.Errorf("%w: select %d (len %d)", ErrIndexOutOfRange, i, len(c.pages))
		}
	}
	c.sel.Set(indices)
	return nil
}

// Clear drops every page and the selection
func (c *Collection) Clear() {
	c.pages = nil
	c.sel.Clear()
}

// moveTargets returns the final positions of the selected indices sel
// (ascending) after a move by delta in a sequence of n pages.
func moveTargets(sel []int, delta, n int) []int {
	out := make([]int, len(sel))
	if delta < 0 {
		prev := -1
		for k, p := range sel {
			out[k] = max(p+delta, prev+1)
			prev = out[k]
		}
		return out
	}
	next := n
	for k := len(sel) - 1; k >= 0; k-- {
		out[k] = min(sel[k]+delta, next-1)
		next = out[k]
	}
	return out
}

// permutation returns order where order[i] is the pre-move position of the
// page that ends up at position i. Unselected pages fill the free positions
// in their original relative order.
func permutation(from, to []int, n int) []int {
	order := make([]int, n)
	taken := make([]bool, n)
	for k := range from {
		order[to[k]] = from[k]
		taken[to[k]] = true
	}

	src := 0
	for i := range order {
		if taken[i] {
			continue
		}
		for {
			if _, found := slices.BinarySearch(from, src); !found {
				break
			}
			src++
		}
		order[i] = src
		src++
	}
	return order
}

func permute(pages []page.Page, order []int) []page.Page {
	out := make([]page.Page, len(order))
	for i, j := range order {
		out[i] = pages[j]
	}
	return out
}

func unpermute(pages []page.Page, order []int) []page.Page {
	out := make([]page.Page, len(order))
	for i, j := range order {
		out[j] = pages[i]
	}
	return out
}
