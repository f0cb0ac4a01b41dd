package cli

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/pyhub-apps/pdfpages-golang/pkg/session"
)

// parseOp turns one --op argument into a session request. Page numbers are
// 1-based positions in the document as it is at that point of the script.
//
//	select 1,3,5-7   select exactly these pages
//	select-all       select every page
//	select-none      clear the selection
//	flip             invert the selection
//	move -1          move the selected pages one step towards the start
//	rotate 90        rotate the selected pages clockwise
//	remove [pages]   remove the listed pages, or the selection
//	insert N files   insert files before page N (past the end appends)
//	undo, redo
func parseOp(s string) (session.Request, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty operation")
	}
	name, args := strings.ToLower(fields[0]), fields[1:]

	noArgs := func(req session.Request) (session.Request, error) {
		if len(args) != 0 {
			return nil, fmt.Errorf("%s takes no arguments", name)
		}
		return req, nil
	}

	switch name {
	case "select":
		if len(args) != 1 {
			return nil, fmt.Errorf("select needs a page list, e.g. select 1,3")
		}
		indices, err := parsePages(args[0])
		if err != nil {
			return nil, err
		}
		return session.SetSelectionRequest{Indices: indices}, nil
	case "select-all":
		return noArgs(session.SelectRequest{Selected: true})
	case "select-none":
		return noArgs(session.SelectRequest{Selected: false})
	case "flip":
		return noArgs(session.FlipRequest{})
	case "undo":
		return noArgs(session.UndoRequest{})
	case "redo":
		return noArgs(session.RedoRequest{})
	case "move":
		n, err := intArg(name, args)
		if err != nil {
			return nil, err
		}
		return session.MoveRequest{Delta: n}, nil
	case "rotate":
		n, err := intArg(name, args)
		if err != nil {
			return nil, err
		}
		return session.RotateRequest{Degrees: n}, nil
	case "remove":
		switch len(args) {
		case 0:
			return session.RemoveSelectedRequest{}, nil
		case 1:
			indices, err := parsePages(args[0])
			if err != nil {
				return nil, err
			}
			return session.RemoveRequest{Indices: indices}, nil
		default:
			return nil, fmt.Errorf("remove takes at most one page list")
		}
	case "insert":
		if len(args) < 2 {
			return nil, fmt.Errorf("insert needs a position and at least one file")
		}
		at, err := strconv.Atoi(args[0])
		if err != nil || at < 1 {
			return nil, fmt.Errorf("invalid insert position %q", args[0])
		}
		return session.InsertRequest{At: at - 1, Sources: args[1:]}, nil
	default:
		return nil, fmt.Errorf("unknown operation %q", name)
	}
}

func intArg(name string, args []string) (int, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("%s needs exactly one number", name)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %q", name, args[0])
	}
	return n, nil
}

// maxPageNumber bounds page numbers in page lists so a range like
// 1-2000000000 fails instead of expanding into billions of indices.
const maxPageNumber = 100_000

// parsePages parses "1,3,5-7" into sorted, distinct 0-based indices.
func parsePages(s string) ([]int, error) {
	var indices []int
	for part := range strings.SplitSeq(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(part, "-")
		first, err := pageNumber(lo)
		if err != nil {
			return nil, err
		}
		last := first
		if isRange {
			if last, err = pageNumber(hi); err != nil {
				return nil, err
			}
			if last < first {
				return nil, fmt.Errorf("invalid page range %q", part)
			}
		}
		for n := first; n <= last; n++ {
			indices = append(indices, n-1)
		}
	}
	if len(indices) == 0 {
		return nil, fmt.Errorf("empty page list %q", s)
	}
	slices.Sort(indices)
	return slices.Compact(indices), nil
}

func pageNumber(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid page number %q", s)
	}
	if n > maxPageNumber {
		return 0, fmt.Errorf("page number %q exceeds %d", s, maxPageNumber)
	}
	return n, nil
}
