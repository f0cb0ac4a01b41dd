// Command benchmark times the main editing operations on one input file:
// opening, a series of moves and rotations, undoing them all and saving.
package main

import (
	"context"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	pdfpages "github.com/pyhub-apps/pdfpages-golang"
)

const rounds = 200

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./cmd/benchmark <file>")
		os.Exit(1)
	}
	path := os.Args[1]
	ctx := context.Background()

	s, err := pdfpages.NewSession()
	if err != nil {
		log.Fatalf("Failed to create session: %v", err)
	}
	defer s.Close()

	start := time.Now()
	report, err := s.Insert(ctx, 0, []string{path})
	if err != nil {
		log.Fatalf("Failed to open %s: %v", path, err)
	}
	if report.Inserted == 0 {
		log.Fatalf("No pages in %s", path)
	}
	openTime := time.Since(start)

	fmt.Printf("=== pdfpages benchmark ===\n")
	fmt.Printf("File: %s\n", path)
	fmt.Printf("Pages: %d\n", report.Inserted)
	fmt.Printf("Open time: %v\n", openTime)

	n := s.Len()
	start = time.Now()
	for i := 0; i < rounds; i++ {
		if err := s.SetSelection(ctx, []int{rand.IntN(n)}); err != nil {
			log.Fatal(err)
		}
		var err error
		if i%2 == 0 {
			_, err = s.Move(ctx, rand.IntN(5)-2)
		} else {
			_, err = s.Rotate(ctx, 90)
		}
		if err != nil {
			log.Fatal(err)
		}
	}
	editTime := time.Since(start)
	fmt.Printf("%d edits: %v (%v/op)\n", rounds, editTime, editTime/rounds)

	start = time.Now()
	undone := 0
	for {
		ok, err := s.Undo(ctx)
		if err != nil {
			log.Fatal(err)
		}
		if !ok {
			break
		}
		undone++
	}
	fmt.Printf("Undo %d edits: %v\n", undone, time.Since(start))

	start = time.Now()
	s.WaitThumbnails()
	fmt.Printf("Thumbnails: %v\n", time.Since(start))

	dir, err := os.MkdirTemp("", "pdfpages-bench")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	start = time.Now()
	if err := s.Save(ctx, filepath.Join(dir, "out.pdf")); err != nil {
		log.Fatalf("Failed to save: %v", err)
	}
	fmt.Printf("Save time: %v\n", time.Since(start))
}
