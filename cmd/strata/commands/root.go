// Package commands implements the CLI commands for the strata build tool.
package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.trai.ch/strata/internal/adapters/telemetry/progrock"
	"go.trai.ch/strata/internal/app"
	"go.trai.ch/strata/internal/build"
	"go.trai.ch/strata/internal/core/domain"
)

// CLI represents the command line interface for strata.
type CLI struct {
	app      Application
	progress Progress
	rootCmd  *cobra.Command
}

// Application represents the application logic interface.
type Application interface {
	Build(ctx context.Context, recipePaths []string, opts app.RunOptions) ([]*domain.BuildResult, error)
	Plan(ctx context.Context, recipePath string, opts app.RunOptions) ([]domain.PlanEntry, error)
	Export(ctx context.Context, recipePath, dir string, opts app.RunOptions) (*domain.BuildResult, error)
	Clean(ctx context.Context) error
}

// Progress supplies live status updates for the terminal UI.
type Progress interface {
	Subscribe() *progrock.Feed
	Unsubscribe(feed *progrock.Feed)
}

// Option configures the CLI.
type Option func(*CLI)

// WithProgress enables the terminal UI for builds.
func WithProgress(p Progress) Option {
	return func(c *CLI) {
		c.progress = p
	}
}

// New creates a new CLI instance with the given app.
func New(a Application, opts ...Option) *CLI {
	rootCmd := &cobra.Command{
		Use:           "strata",
		Short:         "A layered, cache-first environment builder",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       build.Version,
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"{{.Name}} version {{.Version}} (commit: %s, date: %s)\n",
		build.Commit,
		build.Date,
	))
	rootCmd.InitDefaultVersionFlag()
	rootCmd.Flags().Lookup("version").Usage = "Print the application version"

	c := &CLI{
		app:     a,
		rootCmd: rootCmd,
	}
	for _, opt := range opts {
		opt(c)
	}

	rootCmd.AddCommand(c.newBuildCmd())
	rootCmd.AddCommand(c.newPlanCmd())
	rootCmd.AddCommand(c.newExportCmd())
	rootCmd.AddCommand(c.newCleanCmd())
	rootCmd.AddCommand(c.newVersionCmd())

	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput sets the output and error streams for the root command. Used for testing.
func (c *CLI) SetOutput(out, err io.Writer) {
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(err)
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().BoolP("no-cache", "n", false, "Skip cache lookups and commits")
	cmd.Flags().Bool("verify", false, "Execute every step and fail if a cached layer does not reproduce")
	cmd.Flags().Duration("timeout", 0, "Default timeout for run and install steps (0 means none)")
}

func runOptions(cmd *cobra.Command) app.RunOptions {
	noCache, _ := cmd.Flags().GetBool("no-cache")
	verify, _ := cmd.Flags().GetBool("verify")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	return app.RunOptions{
		NoCache: noCache,
		Verify:  verify,
		Timeout: timeout,
	}
}
