package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pyhub-apps/pdfpages-golang/internal/config"
)

func (a *app) newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config [key] [value]",
		Short: "Get or set configuration values",
		Long: `With no arguments, list all settings. With a key, print its value.
With a key and a value, store the value in the config file.`,
		Args: cobra.MaximumNArgs(2),
		RunE: a.runConfig,
	}
}

func (a *app) runConfig(_ *cobra.Command, args []string) error {
	switch len(args) {
	case 0:
		for _, key := range config.ValidKeys() {
			v, err := a.cfg.Get(key)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s = %s\n", key, v)
		}
		return nil
	case 1:
		v, err := a.cfg.Get(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, v)
		return nil
	default:
		if err := a.cfg.Set(args[0], args[1]); err != nil {
			return err
		}
		if err := a.cfg.Save(); err != nil {
			return err
		}
		a.logger.Debug("config updated", "key", args[0], "path", a.cfg.Path())
		return nil
	}
}
