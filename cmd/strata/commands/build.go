package commands

import (
	"errors"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.trai.ch/strata/internal/app"
	"go.trai.ch/strata/internal/core/domain"
	"go.trai.ch/strata/internal/tui"
	"go.trai.ch/strata/internal/ui/report"
	"go.trai.ch/zerr"
)

const (
	progressAuto  = "auto"
	progressTUI   = "tui"
	progressPlain = "plain"
)

var errInvalidProgress = zerr.New("invalid progress mode")

func (c *CLI) newBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build [recipes...]",
		Short: "Build one or more recipes",
		Long: "Build one or more recipes concurrently. A recipe is a strata.yaml file or a " +
			"directory containing one. Unchanged step prefixes are reused from the layer cache.",
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				// Display command usage help without returning an error
				_ = cmd.Help()
				return nil
			}

			mode, _ := cmd.Flags().GetString("progress")
			interactive, err := c.useTUI(mode, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			var results []*domain.BuildResult
			if interactive {
				results, err = c.buildWithProgress(cmd, args, runOptions(cmd))
			} else {
				results, err = c.app.Build(cmd.Context(), args, runOptions(cmd))
			}

			for _, res := range results {
				if res != nil {
					report.Build(cmd.OutOrStdout(), res)
				}
			}
			return err
		},
	}
	addRunFlags(cmd)
	cmd.Flags().String("progress", progressAuto, "Progress output: auto, tui, or plain")
	return cmd
}

func (c *CLI) useTUI(mode string, w io.Writer) (bool, error) {
	switch mode {
	case progressPlain:
		return false, nil
	case progressTUI:
		return c.progress != nil, nil
	case progressAuto:
		f, ok := w.(*os.File)
		return c.progress != nil && ok && isatty.IsTerminal(f.Fd()), nil
	default:
		return false, zerr.With(errInvalidProgress, "mode", mode)
	}
}

// buildWithProgress runs the build while the terminal UI follows it on stderr.
func (c *CLI) buildWithProgress(cmd *cobra.Command, args []string, opts app.RunOptions) ([]*domain.BuildResult, error) {
	feed := c.progress.Subscribe()

	done := make(chan error, 1)
	go func() {
		done <- tui.Run(cmd.Context(), feed, cmd.ErrOrStderr())
	}()

	results, err := c.app.Build(cmd.Context(), args, opts)
	c.progress.Unsubscribe(feed)

	return results, errors.Join(err, <-done)
}
