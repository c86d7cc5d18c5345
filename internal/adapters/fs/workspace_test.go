package fs_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/strata/internal/adapters/cas"
	"go.trai.ch/strata/internal/adapters/fs"
	"go.trai.ch/strata/internal/core/domain"
)

func newWorkspace(t *testing.T) *fs.Workspace {
	t.Helper()
	blobs, err := cas.NewBlobStore(filepath.Join(t.TempDir(), "blobs"))
	require.NoError(t, err)
	return fs.NewWorkspace(blobs, fs.NewWalker(), fs.NewResolver(), t.TempDir())
}

func TestWorkspace_ImportDirectory(t *testing.T) {
	ctxDir := t.TempDir()
	writeFiles(t, ctxDir, map[string]string{
		"app/main.py":      "print('hi')",
		"app/lib/util.py":  "x = 1",
		"app/build.pyc":    "junk",
		"app/.git/objects": "git",
	})
	ws := newWorkspace(t)

	imported, err := ws.Import(context.Background(), ctxDir, "app", []string{"*.pyc"})
	require.NoError(t, err)
	assert.False(t, imported.IsFile())

	var paths []string
	for e := range imported.Tree.Entries() {
		paths = append(paths, e.Path.String())
	}
	assert.Equal(t, []string{"/", "/lib", "/lib/util.py", "/main.py"}, paths)
}

func TestWorkspace_Import_UnreadableDirectory(t *testing.T) {
	ctxDir := t.TempDir()
	writeFiles(t, ctxDir, map[string]string{"src/a/x.txt": "x", "src/secret/y.txt": "y", "src/z.txt": "z"})
	unreadable(t, filepath.Join(ctxDir, "src", "secret"))
	ws := newWorkspace(t)

	_, err := ws.Import(context.Background(), ctxDir, "src", nil)
	require.ErrorContains(t, err, domain.ErrCaptureFailed.Error())
}

func TestWorkspace_Capture_UnreadableDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"etc/hosts": "localhost", "root/.profile": "x"})
	unreadable(t, filepath.Join(dir, "root"))
	ws := newWorkspace(t)

	_, err := ws.Capture(context.Background(), dir)
	require.ErrorContains(t, err, domain.ErrCaptureFailed.Error())
}

func TestWorkspace_ImportFile(t *testing.T) {
	ctxDir := t.TempDir()
	writeFiles(t, ctxDir, map[string]string{"requirements.txt": "numpy\n"})
	ws := newWorkspace(t)

	imported, err := ws.Import(context.Background(), ctxDir, "requirements.txt", nil)
	require.NoError(t, err)
	assert.True(t, imported.IsFile())
	assert.Equal(t, "requirements.txt", imported.File)

	e, ok := imported.Tree.Lookup("/requirements.txt")
	require.True(t, ok)
	assert.Equal(t, int64(6), e.Size)
}

func TestWorkspace_MaterializeCaptureRoundTrip(t *testing.T) {
	ctxDir := t.TempDir()
	writeFiles(t, ctxDir, map[string]string{"src/main.py": "print()", "src/data/x.csv": "1,2"})
	require.NoError(t, os.Symlink("main.py", filepath.Join(ctxDir, "src", "entry.py")))
	ws := newWorkspace(t)
	ctx := context.Background()

	imported, err := ws.Import(ctx, ctxDir, "src", nil)
	require.NoError(t, err)
	tree := domain.EmptyTree().Graft("/app", imported.Tree)

	dir, cleanup, err := ws.Materialize(ctx, tree)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "app", "main.py"))
	require.NoError(t, err)
	assert.Equal(t, "print()", string(data))

	link, err := os.Readlink(filepath.Join(dir, "app", "entry.py"))
	require.NoError(t, err)
	assert.Equal(t, "main.py", link)

	captured, err := ws.Capture(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, tree.With(mustRoot(t, captured)).Digest(), captured.Digest())

	cleanup()
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestWorkspace_CaptureSeesCommandChanges(t *testing.T) {
	ws := newWorkspace(t)
	ctx := context.Background()

	dir, cleanup, err := ws.Materialize(ctx, domain.EmptyTree())
	require.NoError(t, err)
	defer cleanup()

	writeFiles(t, dir, map[string]string{"out/result.txt": "42"})

	captured, err := ws.Capture(ctx, dir)
	require.NoError(t, err)
	e, ok := captured.Lookup("/out/result.txt")
	require.True(t, ok)
	assert.Equal(t, int64(2), e.Size)
}

func TestWorkspace_Export(t *testing.T) {
	ctxDir := t.TempDir()
	writeFiles(t, ctxDir, map[string]string{"a.txt": "a"})
	ws := newWorkspace(t)
	ctx := context.Background()

	imported, err := ws.Import(ctx, ctxDir, ".", nil)
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "rootfs")
	require.NoError(t, ws.Export(ctx, imported.Tree, out))

	data, err := os.ReadFile(filepath.Join(out, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "a", string(data))

	err = ws.Export(ctx, imported.Tree, out)
	require.ErrorContains(t, err, domain.ErrMaterializeFailed.Error())
}

func TestWorkspace_MaterializeHonoursContext(t *testing.T) {
	ws := newWorkspace(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tree := domain.NewTree(domain.Entry{Path: domain.NewInternedString("/d"), Mode: domain.DefaultDirMode})
	_, _, err := ws.Materialize(ctx, tree)
	require.ErrorIs(t, err, context.Canceled)
}

// mustRoot returns the root entry of tree.
func mustRoot(t *testing.T, tree *domain.Tree) domain.Entry {
	t.Helper()
	e, ok := tree.Lookup("/")
	require.True(t, ok)
	return e
}
