package cas_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/strata/internal/adapters/cas"
	"go.trai.ch/strata/internal/core/domain"
)

func snapshot(fp string, env ...domain.EnvVar) *domain.Snapshot {
	return &domain.Snapshot{
		Fingerprint: digest.FromString(fp),
		Step:        0,
		Kind:        domain.KindSetEnv,
		Instruction: "ENV A=1",
		Tree: domain.NewTree(domain.Entry{
			Path: domain.NewInternedString("/app/main.py"),
			Mode: 0o644,
			Size: 5,
			Blob: digest.FromString("hello"),
		}),
		Env:       domain.NewEnvironment(env...),
		Workdir:   "/app",
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestLayerStore_LookupMissing(t *testing.T) {
	store := cas.NewMemoryLayerStore()

	got, err := store.Lookup(digest.FromString("nope"))
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Zero(t, store.Len())
}

func TestLayerStore_CommitAndLookup(t *testing.T) {
	store := cas.NewMemoryLayerStore()
	snap := snapshot("fp", domain.EnvVar{Key: "A", Value: "1"})

	require.NoError(t, store.Commit(snap))

	got, err := store.Lookup(snap.Fingerprint)
	require.NoError(t, err)
	assert.Same(t, snap, got)
	assert.Equal(t, 1, store.Len())
}

func TestLayerStore_RecommitIdenticalIsNoOp(t *testing.T) {
	store := cas.NewMemoryLayerStore()
	first := snapshot("fp", domain.EnvVar{Key: "A", Value: "1"})
	second := snapshot("fp", domain.EnvVar{Key: "A", Value: "1"})
	second.CreatedAt = first.CreatedAt.Add(time.Hour)

	require.NoError(t, store.Commit(first))
	require.NoError(t, store.Commit(second))

	got, err := store.Lookup(first.Fingerprint)
	require.NoError(t, err)
	assert.Same(t, first, got, "first commit wins")
	assert.Equal(t, 1, store.Len())
}

func TestLayerStore_DuplicateCommit(t *testing.T) {
	store := cas.NewMemoryLayerStore()
	require.NoError(t, store.Commit(snapshot("fp", domain.EnvVar{Key: "A", Value: "1"})))

	err := store.Commit(snapshot("fp", domain.EnvVar{Key: "A", Value: "2"}))

	var dup *domain.DuplicateCommitError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, digest.FromString("fp"), dup.Fingerprint)
	assert.NotEqual(t, dup.Existing, dup.Incoming)
	assert.ErrorIs(t, err, domain.ErrDuplicateCommit)
}

func TestLayerStore_RejectsMissingFingerprint(t *testing.T) {
	store := cas.NewMemoryLayerStore()
	snap := snapshot("fp")
	snap.Fingerprint = ""

	require.Error(t, store.Commit(snap))
}

func TestLayerStore_Persistence(t *testing.T) {
	dir := t.TempDir()
	snap := snapshot("fp", domain.EnvVar{Key: "PATH", Value: "/usr/bin"})

	first, err := cas.NewLayerStore(dir)
	require.NoError(t, err)
	require.NoError(t, first.Commit(snap))

	second, err := cas.NewLayerStore(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Len())

	got, err := second.Lookup(snap.Fingerprint)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, snap.ContentDigest(), got.ContentDigest())
	assert.Equal(t, snap.Instruction, got.Instruction)
	assert.Equal(t, "/app", got.Workdir)
	assert.True(t, snap.CreatedAt.Equal(got.CreatedAt))

	v, ok := got.Env.Get("PATH")
	assert.True(t, ok)
	assert.Equal(t, "/usr/bin", v)
}

func TestLayerStore_DuplicateAcrossInstances(t *testing.T) {
	dir := t.TempDir()

	first, err := cas.NewLayerStore(dir)
	require.NoError(t, err)
	second, err := cas.NewLayerStore(dir)
	require.NoError(t, err)

	require.NoError(t, first.Commit(snapshot("fp", domain.EnvVar{Key: "A", Value: "1"})))
	require.NoError(t, second.Commit(snapshot("fp", domain.EnvVar{Key: "A", Value: "1"})))

	err = second.Commit(snapshot("fp", domain.EnvVar{Key: "A", Value: "other"}))
	assert.ErrorIs(t, err, domain.ErrDuplicateCommit)
}

func TestLayerStore_ConcurrentCommits(t *testing.T) {
	dir := t.TempDir()
	const writers = 8

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		errs   []error
		stores = make([]*cas.LayerStore, writers)
	)
	for i := range stores {
		s, err := cas.NewLayerStore(dir)
		require.NoError(t, err)
		stores[i] = s
	}

	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			value := "even"
			if i%2 == 1 {
				value = "odd"
			}
			err := stores[i].Commit(snapshot("race", domain.EnvVar{Key: "V", Value: value}))
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}()
	}
	wg.Wait()

	var dup, ok int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrDuplicateCommit):
			dup++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, writers/2, ok, "writers agreeing with the winner succeed")
	assert.Equal(t, writers/2, dup, "writers disagreeing with the winner fail")

	fresh, err := cas.NewLayerStore(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, fresh.Len())
}
