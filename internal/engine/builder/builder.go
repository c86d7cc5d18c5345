// Package builder implements the step execution engine.
package builder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/opencontainers/go-digest"
	"go.trai.ch/strata/internal/core/domain"
	"go.trai.ch/strata/internal/core/ports"
	"go.trai.ch/zerr"
)

// Options controls a single build.
type Options struct {
	// Name is recorded on the result.
	Name string
	// ContextDir is the build context that copy sources are read from.
	ContextDir string
	// NoCache skips cache lookups and commits.
	NoCache bool
	// Verify executes every step even on a cache hit and commits the result, so a step
	// that does not reproduce its cached content fails with a DuplicateCommitError.
	Verify bool
	// StepTimeout applies to run and install steps without their own timeout.
	StepTimeout time.Duration
}

// Builder applies steps one at a time on top of the root snapshot, reusing committed
// snapshots from the layer cache whenever a fingerprint was seen before.
type Builder struct {
	cache     ports.LayerCache
	workspace ports.Workspace
	images    ports.ImageSource
	runner    ports.CommandRunner
	hasher    ports.TreeHasher
	logger    ports.Logger
	telemetry ports.Telemetry
	now       func() time.Time
}

// Option configures a Builder.
type Option func(*Builder)

// WithClock replaces the clock used to timestamp snapshots.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) {
		b.now = now
	}
}

// NewBuilder creates a new Builder.
func NewBuilder(
	cache ports.LayerCache,
	workspace ports.Workspace,
	images ports.ImageSource,
	runner ports.CommandRunner,
	hasher ports.TreeHasher,
	logger ports.Logger,
	telemetry ports.Telemetry,
	opts ...Option,
) *Builder {
	b := &Builder{
		cache:     cache,
		workspace: workspace,
		images:    images,
		runner:    runner,
		hasher:    hasher,
		logger:    logger,
		telemetry: telemetry,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run applies steps in order and returns the build result.
//
// On failure the returned result describes every step up to and including the failed one,
// Final holds the last committed snapshot, and the error is a *domain.StepExecutionError.
// Nothing is committed for the failed step or any step after it.
func (b *Builder) Run(ctx context.Context, steps []domain.Step, opts Options) (*domain.BuildResult, error) {
	state := b.newRunState(steps, opts)

	current := domain.RootSnapshot()
	for _, step := range steps {
		next, err := state.apply(ctx, current, step)
		if err != nil {
			state.result.Final = current
			return state.result, err
		}
		current = next
	}

	state.result.Final = current
	b.logger.Info(fmt.Sprintf("build %s finished: %s (%d executed, %d cached)",
		state.result.ID, current.Fingerprint, state.result.Executions, len(steps)-state.result.Executions))
	return state.result, nil
}

// Plan computes the fingerprint chain of steps without executing anything and reports
// which fingerprints are already committed.
func (b *Builder) Plan(_ context.Context, steps []domain.Step, opts Options) ([]domain.PlanEntry, error) {
	entries := make([]domain.PlanEntry, 0, len(steps))

	var parent digest.Digest
	for _, step := range steps {
		fp, err := b.fingerprint(parent, step, opts.ContextDir)
		if err != nil {
			return nil, stepError(step, err)
		}

		cached := false
		if !opts.NoCache {
			snap, err := b.cache.Lookup(fp)
			if err != nil {
				return nil, stepError(step, err)
			}
			cached = snap != nil
		}

		entries = append(entries, domain.PlanEntry{
			Index:       step.Index,
			Kind:        step.Kind,
			Instruction: step.Instruction(),
			Fingerprint: fp,
			Cached:      cached,
		})
		parent = fp
	}

	return entries, nil
}

func (b *Builder) fingerprint(parent digest.Digest, step domain.Step, contextDir string) (digest.Digest, error) {
	var sourceHash string
	if step.Kind == domain.KindCopyTree {
		h, err := b.hasher.HashTree(contextDir, step.Payload.Source, step.Payload.Exclude)
		if err != nil {
			return "", err
		}
		sourceHash = h
	}
	return domain.ComputeFingerprint(parent, step, sourceHash), nil
}

type runState struct {
	b      *Builder
	opts   Options
	result *domain.BuildResult
}

func (b *Builder) newRunState(steps []domain.Step, opts Options) *runState {
	records := make([]domain.StepRecord, len(steps))
	for i, step := range steps {
		records[i] = domain.StepRecord{
			Index:       step.Index,
			Kind:        step.Kind,
			Instruction: step.Instruction(),
			Status:      domain.StepStatusPending,
		}
	}

	return &runState{
		b:    b,
		opts: opts,
		result: &domain.BuildResult{
			ID:     uuid.NewString(),
			Recipe: opts.Name,
			Steps:  records,
		},
	}
}

func (state *runState) record(step domain.Step) *domain.StepRecord {
	for i := range state.result.Steps {
		if state.result.Steps[i].Index == step.Index {
			return &state.result.Steps[i]
		}
	}
	// Steps are always recorded in newRunState.
	panic(fmt.Sprintf("no record for step %d", step.Index))
}

func (state *runState) transition(rec *domain.StepRecord, next domain.StepStatus) {
	if !rec.Status.CanTransition(next) {
		state.b.logger.Warn(fmt.Sprintf("ignoring step %d transition %s -> %s", rec.Index+1, rec.Status, next))
		return
	}
	rec.Status = next
}

// apply runs one step through pending -> running -> committed or failed.
func (state *runState) apply(ctx context.Context, parent *domain.Snapshot, step domain.Step) (*domain.Snapshot, error) {
	b := state.b
	rec := state.record(step)
	start := b.now()
	state.transition(rec, domain.StepStatusRunning)

	fail := func(err error) (*domain.Snapshot, error) {
		rec.Duration = b.now().Sub(start)
		state.transition(rec, domain.StepStatusFailed)
		err = stepError(step, err)
		b.logger.Error(err)
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	fp, err := b.fingerprint(parent.Fingerprint, step, state.opts.ContextDir)
	if err != nil {
		return fail(err)
	}
	rec.Fingerprint = fp

	vctx, vertex := b.telemetry.Record(ctx, rec.Instruction, ports.WithVertexID(fp.String()))

	if !state.opts.NoCache && !state.opts.Verify {
		cached, err := b.cache.Lookup(fp)
		if err != nil {
			vertex.Complete(err)
			return fail(err)
		}
		if cached != nil {
			vertex.Cached()
			vertex.Complete(nil)
			rec.Cached = true
			rec.Duration = b.now().Sub(start)
			state.transition(rec, domain.StepStatusCommitted)
			b.logger.Debug(fmt.Sprintf("step %d %s: cached %s", step.Index+1, rec.Instruction, fp))
			return cached, nil
		}
	}

	b.logger.Info(fmt.Sprintf("step %d %s", step.Index+1, rec.Instruction))

	child, err := b.execute(vctx, parent, step, fp, state.opts)
	if err == nil && !state.opts.NoCache {
		err = b.cache.Commit(child)
	}
	vertex.Complete(err)
	if err != nil {
		return fail(err)
	}

	state.result.Executions++
	rec.Duration = b.now().Sub(start)
	state.transition(rec, domain.StepStatusCommitted)
	return child, nil
}

// stepError attaches the identity of step to err unless err already carries it.
func stepError(step domain.Step, err error) error {
	var stepErr *domain.StepExecutionError
	if errors.As(err, &stepErr) {
		return err
	}
	return &domain.StepExecutionError{
		Index:       step.Index,
		Kind:        step.Kind,
		Instruction: step.Instruction(),
		Err:         err,
	}
}

// execute derives the child snapshot of parent by applying step.
func (b *Builder) execute(
	ctx context.Context,
	parent *domain.Snapshot,
	step domain.Step,
	fp digest.Digest,
	opts Options,
) (*domain.Snapshot, error) {
	child := parent.Derive(step, fp, b.now())

	switch step.Kind {
	case domain.KindBaseImage:
		tree, err := b.images.Resolve(ctx, step.Payload.Text)
		if err != nil {
			return nil, err
		}
		child.Tree = tree
		if _, ok := parent.Env.Get("PATH"); !ok {
			child.Env = parent.Env.Set("PATH", domain.DefaultPath)
		}

	case domain.KindSetEnv:
		child.Env = parent.Env.Set(step.Payload.Key, parent.Env.Expand(step.Payload.Value))

	case domain.KindSetWorkdir:
		dir := resolvePath(parent.EffectiveWorkdir(), step.Payload.Text)
		tree, err := ensureDir(parent.Tree, dir)
		if err != nil {
			return nil, err
		}
		child.Tree = tree
		child.Workdir = dir

	case domain.KindCopyTree:
		tree, err := b.copyTree(ctx, child, step, opts.ContextDir)
		if err != nil {
			return nil, err
		}
		child.Tree = tree

	case domain.KindRunCommand:
		if err := b.runCommand(ctx, child, step, step.Payload.Text, opts); err != nil {
			return nil, err
		}

	case domain.KindInstallDependencies:
		manifest := resolvePath(child.EffectiveWorkdir(), step.Payload.Manifest)
		if e, ok := child.Tree.Lookup(manifest); !ok || e.IsDir() {
			return nil, zerr.With(domain.ErrManifestNotFound, "manifest", manifest)
		}
		if err := b.runCommand(ctx, child, step, step.Payload.Text, opts); err != nil {
			return nil, err
		}

	default:
		return nil, zerr.With(domain.ErrMalformedStep, "kind", string(step.Kind))
	}

	return child, nil
}
