package builder

import (
	"context"
	"path"
	"path/filepath"
	"strings"

	"go.trai.ch/strata/internal/core/domain"
	"go.trai.ch/zerr"
)

// copyTree imports the copy source from the build context and places it in the tree of child.
func (b *Builder) copyTree(
	ctx context.Context,
	child *domain.Snapshot,
	step domain.Step,
	contextDir string,
) (*domain.Tree, error) {
	imported, err := b.workspace.Import(ctx, contextDir, step.Payload.Source, step.Payload.Exclude)
	if err != nil {
		return nil, err
	}

	dest := step.Payload.Destination
	target := resolvePath(child.EffectiveWorkdir(), dest)

	if !imported.IsFile() {
		return child.Tree.Graft(target, imported.Tree), nil
	}

	existing, exists := child.Tree.Lookup(target)
	if strings.HasSuffix(dest, "/") || (exists && existing.IsDir()) {
		target = path.Join(target, imported.File)
	}

	e, ok := imported.Tree.Lookup(imported.File)
	if !ok {
		return nil, zerr.With(domain.ErrSourceNotFound, "source", step.Payload.Source)
	}
	e.Path = domain.NewInternedString(target)
	return child.Tree.With(e), nil
}

// runCommand materializes the tree of child, runs script inside it and captures the result
// back into child.
func (b *Builder) runCommand(
	ctx context.Context,
	child *domain.Snapshot,
	step domain.Step,
	script string,
	opts Options,
) error {
	cwd := child.EffectiveWorkdir()
	if step.Workdir != "" {
		cwd = resolvePath(cwd, step.Workdir)
	}

	tree, err := ensureDir(child.Tree, cwd)
	if err != nil {
		return err
	}

	root, cleanup, err := b.workspace.Materialize(ctx, tree)
	if err != nil {
		return err
	}
	defer cleanup()

	timeout := step.Timeout
	if timeout == 0 {
		timeout = opts.StepTimeout
	}
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	res, err := b.runner.Run(runCtx, domain.Command{
		Script: script,
		Shell:  domain.DefaultShell,
		Dir:    filepath.Join(root, filepath.FromSlash(cwd)),
		Env:    child.Env.Overlay(step.Env).Environ(),
	})
	if err != nil || !res.Succeeded() {
		return &domain.StepExecutionError{
			Index:       step.Index,
			Kind:        step.Kind,
			Instruction: step.Instruction(),
			ExitCode:    res.ExitCode,
			Output:      res.Output,
			Err:         err,
		}
	}

	captured, err := b.workspace.Capture(ctx, root)
	if err != nil {
		return err
	}
	child.Tree = captured
	return nil
}

// resolvePath returns p as a clean absolute path, joining relative paths onto base.
func resolvePath(base, p string) string {
	if path.IsAbs(p) {
		return domain.CleanPath(p)
	}
	return domain.CleanPath(path.Join(base, p))
}

// ensureDir returns tree with a directory at dir, creating it when missing.
func ensureDir(tree *domain.Tree, dir string) (*domain.Tree, error) {
	e, ok := tree.Lookup(dir)
	switch {
	case !ok:
		return tree.With(domain.Entry{Path: domain.NewInternedString(dir), Mode: domain.DefaultDirMode}), nil
	case e.IsDir():
		return tree, nil
	default:
		return nil, zerr.With(domain.ErrNotADirectory, "path", dir)
	}
}
