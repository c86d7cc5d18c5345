package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/strata/internal/ui/report"
)

func (c *CLI) newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <recipe> <dir>",
		Short: "Build a recipe and write its final filesystem to a directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.app.Export(cmd.Context(), args[0], args[1], runOptions(cmd))
			if res != nil {
				report.Build(cmd.OutOrStdout(), res)
			}
			return err
		},
	}
	addRunFlags(cmd)
	return cmd
}
