// Package selection implements the ordered set of selected page indices
// with change notification.
package selection

import (
	"slices"
	"sync"
)

// Listener receives the new selected indices, ascending, after a change.
type Listener func(indices []int)

// Selection is a set of indices into a page sequence. Every public mutation
// notifies listeners at most once, and only if the set actually changed.
//
// Selection is not safe for concurrent mutation; the owning session
// serializes access. Subscribe may be called from any goroutine.
type Selection struct {
	set []int // ascending, no duplicates

	mu        sync.Mutex
	listeners []Listener
}

// New returns an empty selection
func New() *Selection {
	return &Selection{}
}

// Subscribe registers fn to be called after every change.
func (s *Selection) Subscribe(fn Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Count returns the number of selected indices
func (s *Selection) Count() int {
	return len(s.set)
}

// Last returns the highest selected index, or -1 if nothing is selected.
func (s *Selection) Last() int {
	if len(s.set) == 0 {
		return -1
	}
	return s.set[len(s.set)-1]
}

// Contains reports whether index is selected
func (s *Selection) Contains(index int) bool {
	_, ok := slices.BinarySearch(s.set, index)
	return ok
}

// Indices returns a copy of the selected indices in ascending order
func (s *Selection) Indices() []int {
	return slices.Clone(s.set)
}

// Set replaces the selection with indices. Negative values are dropped.
func (s *Selection) Set(indices []int) {
	s.replace(normalize(indices))
}

// Add selects the given indices
func (s *Selection) Add(indices ...int) {
	next := append(slices.Clone(s.set), indices...)
	s.replace(normalize(next))
}

// Remove deselects the given indices
func (s *Selection) Remove(indices ...int) {
	drop := normalize(indices)
	next := make([]int, 0, len(s.set))
	for _, i := range s.set {
		if _, found := slices.BinarySearch(drop, i); !found {
			next = append(next, i)
		}
	}
	s.replace(next)
}

// Clear deselects everything
func (s *Selection) Clear() {
	s.replace(nil)
}

// SelectAll selects (or deselects) every index in [0, n).
func (s *Selection) SelectAll(n int, selected bool) {
	if !selected || n <= 0 {
		s.replace(nil)
		return
	}
	next := make([]int, n)
	for i := range next {
		next[i] = i
	}
	s.replace(next)
}

// Flip complements the selection over [0, n).
func (s *Selection) Flip(n int) {
	next := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if !s.Contains(i) {
			next = append(next, i)
		}
	}
	s.replace(next)
}

// Clamp drops every index >= n.
func (s *Selection) Clamp(n int) {
	cut, _ := slices.BinarySearch(s.set, n)
	s.replace(slices.Clone(s.set[:cut]))
}

// Shifted returns indices adjusted for count pages inserted at position at:
// every index >= at moves up by count.
func Shifted(indices []int, at, count int) []int {
	out := make([]int, len(indices))
	for k, i := range indices {
		if i >= at {
			i += count
		}
		out[k] = i
	}
	return out
}

// Compacted returns indices adjusted for the removal of the positions in
// removed (ascending, pre-removal positions). Removed indices disappear and
// the rest shift down by the number of removed positions below them.
func Compacted(indices, removed []int) []int {
	out := make([]int, 0, len(indices))
	for _, i := range indices {
		below, found := slices.BinarySearch(removed, i)
		if found {
			continue
		}
		out = append(out, i-below)
	}
	return out
}

func (s *Selection) replace(next []int) {
	if slices.Equal(s.set, next) {
		return
	}
	s.set = next

	s.mu.Lock()
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(append([]int{}, next...))
	}
}

func normalize(indices []int) []int {
	out := make([]int, 0, len(indices))
	for _, i := range indices {
		if i >= 0 {
			out = append(out, i)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
