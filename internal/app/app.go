// Package app implements the application layer for strata.
package app

import (
	"context"
	"errors"
	"os"
	"time"

	"go.trai.ch/strata/internal/core/domain"
	"go.trai.ch/strata/internal/core/ports"
	"go.trai.ch/strata/internal/engine/builder"
	"go.trai.ch/strata/internal/engine/parser"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// App represents the main application logic.
type App struct {
	recipeLoader ports.RecipeLoader
	builder      *builder.Builder
	workspace    ports.Workspace
	logger       ports.Logger
	storePath    string
}

// New creates a new App instance.
func New(
	loader ports.RecipeLoader,
	b *builder.Builder,
	workspace ports.Workspace,
	log ports.Logger,
) *App {
	return &App{
		recipeLoader: loader,
		builder:      b,
		workspace:    workspace,
		logger:       log,
		storePath:    domain.DefaultStorePath(),
	}
}

// WithStorePath sets the store directory removed by Clean.
func (a *App) WithStorePath(path string) *App {
	a.storePath = path
	return a
}

// RunOptions configuration for the Build and Export methods.
type RunOptions struct {
	NoCache bool
	Verify  bool
	Timeout time.Duration
}

// Build loads and builds every recipe concurrently. Results are returned in the order of
// recipePaths; a failed build leaves a partial result in its slot.
func (a *App) Build(ctx context.Context, recipePaths []string, opts RunOptions) ([]*domain.BuildResult, error) {
	if len(recipePaths) == 0 {
		return nil, domain.ErrNoRecipesSpecified
	}

	results := make([]*domain.BuildResult, len(recipePaths))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range recipePaths {
		g.Go(func() error {
			res, err := a.build(ctx, path, opts)
			results[i] = res
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return results, errors.Join(domain.ErrBuildExecutionFailed, err)
	}
	return results, nil
}

// Plan computes the fingerprint chain of a recipe without executing it.
func (a *App) Plan(ctx context.Context, recipePath string, opts RunOptions) ([]domain.PlanEntry, error) {
	recipe, steps, err := a.load(recipePath)
	if err != nil {
		return nil, err
	}
	return a.builder.Plan(ctx, steps, a.builderOptions(recipe, opts))
}

// Export builds a recipe and writes its final filesystem into dir.
func (a *App) Export(ctx context.Context, recipePath, dir string, opts RunOptions) (*domain.BuildResult, error) {
	res, err := a.build(ctx, recipePath, opts)
	if err != nil {
		return res, errors.Join(domain.ErrBuildExecutionFailed, err)
	}

	if err := a.workspace.Export(ctx, res.Final.Tree, dir); err != nil {
		return res, zerr.With(zerr.Wrap(err, "failed to export filesystem"), "dir", dir)
	}

	a.logger.Info("exported " + res.Final.Fingerprint.String() + " to " + dir)
	return res, nil
}

// Clean removes the store with every committed snapshot and blob.
func (a *App) Clean(_ context.Context) error {
	if err := os.RemoveAll(a.storePath); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to remove store"), "path", a.storePath)
	}
	a.logger.Info("removed " + a.storePath)
	return nil
}

func (a *App) build(ctx context.Context, recipePath string, opts RunOptions) (*domain.BuildResult, error) {
	recipe, steps, err := a.load(recipePath)
	if err != nil {
		return nil, err
	}
	return a.builder.Run(ctx, steps, a.builderOptions(recipe, opts))
}

func (a *App) load(recipePath string) (*domain.Recipe, []domain.Step, error) {
	recipe, err := a.recipeLoader.Load(recipePath)
	if err != nil {
		return nil, nil, zerr.Wrap(err, "failed to load recipe")
	}

	steps, err := parser.Parse(recipe.Instructions)
	if err != nil {
		return nil, nil, err
	}
	return recipe, steps, nil
}

func (a *App) builderOptions(recipe *domain.Recipe, opts RunOptions) builder.Options {
	return builder.Options{
		Name:        recipe.Name,
		ContextDir:  recipe.ContextDir,
		NoCache:     opts.NoCache,
		Verify:      opts.Verify,
		StepTimeout: opts.Timeout,
	}
}
