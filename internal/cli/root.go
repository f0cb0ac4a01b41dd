// Package cli implements the pdfpages command line: inspect PDF and image
// files, and rearrange or extract their pages through an editing session.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/spf13/cobra"

	"github.com/pyhub-apps/pdfpages-golang/internal/config"
	"github.com/pyhub-apps/pdfpages-golang/pkg/session"
)

// app holds the state shared by all commands of one invocation.
type app struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	configPath string
	verbose    bool

	cfg    *config.Config
	logger *slog.Logger
}

// NewRootCmd builds the pdfpages command tree reading prompts from in and
// writing results to out and diagnostics to errOut.
func NewRootCmd(in io.Reader, out, errOut io.Writer) *cobra.Command {
	a := &app{in: in, out: out, errOut: errOut}

	root := &cobra.Command{
		Use:   "pdfpages",
		Short: "Rearrange the pages of PDF and image files",
		Long: `pdfpages combines pages from PDF and image files into a new PDF.
Pages can be reordered, rotated, removed and extracted.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
	}
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default ~/.pdfpages/config.yaml)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log debug output to stderr")

	root.AddCommand(
		a.newInfoCmd(),
		a.newArrangeCmd(),
		a.newExtractCmd(),
		a.newConfigCmd(),
	)
	return root
}

func (a *app) setup() error {
	level := slog.LevelWarn
	if a.verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(a.errOut, &slog.HandlerOptions{Level: level}))

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

// newSession opens an editing session configured from the config file. The
// caller closes it.
func (a *app) newSession() (*session.Session, error) {
	return session.New(a.cfg.SessionConfig(),
		session.WithPasswordQuerier(newPrompter(a.in, a.errOut)),
		session.WithLogger(a.logger),
	)
}

// Execute runs the command line and exits with status 1 on failure.
func Execute() {
	api.DisableConfigDir()

	root := NewRootCmd(os.Stdin, os.Stdout, os.Stderr)
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
