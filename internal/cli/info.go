package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pyhub-apps/pdfpages-golang/pkg/source"
)

func (a *app) newInfoCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "info <file>...",
		Short: "Show the pages of PDF and image files",
		Long:  `Print the page count of each file and the size and rotation of every page.`,
		Args:  cobra.MinimumNArgs(1),
		RunE:  a.runInfo,
	}
	c.Flags().Bool("summary", false, "only print page counts")
	return c
}

func (a *app) runInfo(c *cobra.Command, args []string) error {
	ctx := c.Context()
	summary, _ := c.Flags().GetBool("summary")

	s, err := a.newSession()
	if err != nil {
		return err
	}
	defer s.Close()

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	defer w.Flush()

	var failed int
	for _, path := range args {
		pages, err := s.Cache().Pages(ctx, path)
		if source.IsCancelled(err) {
			return err
		}
		if err != nil {
			failed++
			fmt.Fprintf(w, "%s\terror: %v\n", path, err)
			continue
		}

		fmt.Fprintf(w, "%s\t%d pages\n", path, len(pages))
		if summary {
			continue
		}
		for _, p := range pages {
			fmt.Fprintf(w, "  %d\t%s\t%.0f x %.0f\trotate %d\n",
				p.Number, p.Kind, p.Size.Width, p.Size.Height, p.TotalRotation())
		}
	}

	if failed > 0 {
		w.Flush()
		return fmt.Errorf("%d of %d files could not be read", failed, len(args))
	}
	return nil
}
