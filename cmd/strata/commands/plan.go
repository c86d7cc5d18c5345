package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/strata/internal/ui/report"
)

func (c *CLI) newPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan <recipe>",
		Short: "Show the fingerprint chain of a recipe without executing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := c.app.Plan(cmd.Context(), args[0], runOptions(cmd))
			if err != nil {
				return err
			}
			report.Plan(cmd.OutOrStdout(), entries)
			return nil
		},
	}
	cmd.Flags().BoolP("no-cache", "n", false, "Do not consult the layer cache")
	return cmd
}
