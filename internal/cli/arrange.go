package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pyhub-apps/pdfpages-golang/pkg/session"
)

func (a *app) newArrangeCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "arrange -o <output.pdf> <input>... [--op <operation>]...",
		Short: "Combine files and apply page operations",
		Long: `Insert every input file into a new document, apply the --op operations
in order and save the result.

Operations (page numbers are 1-based positions at that point of the script):
  select 1,3,5-7   select-all   select-none   flip
  move <delta>     rotate <degrees>
  remove [pages]   insert <position> <file>...
  undo             redo`,
		Args: cobra.MinimumNArgs(1),
		RunE: a.runArrange,
	}
	c.Flags().StringP("output", "o", "", "output PDF file (required)")
	c.Flags().StringArray("op", nil, "operation to apply (repeatable)")
	_ = c.MarkFlagRequired("output")
	return c
}

func (a *app) newExtractCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "extract -o <output.pdf> --pages <list> <input>...",
		Short: "Write selected pages to a new PDF",
		Long:  `Combine the input files and write only the listed pages (e.g. 1,3,5-7) to the output.`,
		Args:  cobra.MinimumNArgs(1),
		RunE:  a.runExtract,
	}
	c.Flags().StringP("output", "o", "", "output PDF file (required)")
	c.Flags().StringP("pages", "p", "", "pages to extract, e.g. 1,3,5-7 (required)")
	_ = c.MarkFlagRequired("output")
	_ = c.MarkFlagRequired("pages")
	return c
}

func (a *app) runArrange(c *cobra.Command, args []string) error {
	ctx := c.Context()
	outPath, _ := c.Flags().GetString("output")
	opArgs, _ := c.Flags().GetStringArray("op")

	// Parse everything before touching any file.
	reqs := make([]session.Request, 0, len(opArgs))
	for _, arg := range opArgs {
		req, err := parseOp(arg)
		if err != nil {
			return fmt.Errorf("--op %q: %w", arg, err)
		}
		reqs = append(reqs, req)
	}

	s, err := a.newSession()
	if err != nil {
		return err
	}
	defer s.Close()

	if err := a.insert(ctx, s, session.InsertRequest{At: 0, Sources: args}); err != nil {
		return err
	}

	for i, req := range reqs {
		if ins, ok := req.(session.InsertRequest); ok {
			if err := a.insert(ctx, s, ins); err != nil {
				return fmt.Errorf("--op %q: %w", opArgs[i], err)
			}
			continue
		}
		res := s.Do(ctx, req)
		if res.Err != nil {
			return fmt.Errorf("--op %q: %w", opArgs[i], res.Err)
		}
		a.logger.Debug("applied operation", "op", opArgs[i], "changed", res.Applied, "pages", s.Len())
	}

	if s.Len() == 0 {
		return errors.New("no pages left to save")
	}
	if err := s.Save(ctx, outPath); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "wrote %d pages to %s\n", s.Len(), outPath)
	return nil
}

func (a *app) runExtract(c *cobra.Command, args []string) error {
	ctx := c.Context()
	outPath, _ := c.Flags().GetString("output")
	list, _ := c.Flags().GetString("pages")

	indices, err := parsePages(list)
	if err != nil {
		return err
	}

	s, err := a.newSession()
	if err != nil {
		return err
	}
	defer s.Close()

	if err := a.insert(ctx, s, session.InsertRequest{At: 0, Sources: args}); err != nil {
		return err
	}
	if err := s.SetSelection(ctx, indices); err != nil {
		return fmt.Errorf("--pages %q: %w", list, err)
	}
	if err := s.Extract(ctx, outPath); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "wrote %d pages to %s\n", len(indices), outPath)
	return nil
}

// insert runs a best-effort insert, reporting skipped sources. A cancelled
// password prompt aborts the command.
func (a *app) insert(ctx context.Context, s *session.Session, req session.InsertRequest) error {
	report, err := s.Insert(ctx, req.At, req.Sources)
	if err != nil {
		return err
	}
	for _, skipped := range report.Skipped {
		fmt.Fprintf(a.errOut, "skipped %v\n", skipped)
	}
	if report.Cancelled {
		return errors.New("cancelled")
	}
	return nil
}
