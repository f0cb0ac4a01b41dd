package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/term"

	"github.com/pyhub-apps/pdfpages-golang/pkg/source"
)

// prompter asks for document passwords on the terminal. When input is not a
// terminal the password is read as a plain line, which keeps scripted use
// and tests working. An empty answer cancels.
type prompter struct {
	mu     sync.Mutex
	lines  *bufio.Reader
	out    io.Writer
	isTerm func() (int, bool)
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{
		lines: bufio.NewReader(in),
		out:   out,
		isTerm: func() (int, bool) {
			f, ok := in.(*os.File)
			if !ok || !term.IsTerminal(int(f.Fd())) {
				return 0, false
			}
			return int(f.Fd()), true
		},
	}
}

// QueryPassword implements source.PasswordQuerier.
func (p *prompter) QueryPassword(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", source.ErrCancelled, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.out, "Password for %s (empty to cancel): ", filepath.Base(path))

	var password string
	if fd, ok := p.isTerm(); ok {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(p.out)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		password = string(b)
	} else {
		line, err := p.lines.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("reading password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}

	if password == "" {
		return "", source.ErrCancelled
	}
	return password, nil
}
