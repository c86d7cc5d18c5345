package fs_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/strata/internal/adapters/fs"
	"go.trai.ch/strata/internal/core/domain"
)

func newHasher() *fs.Hasher {
	return fs.NewHasher(fs.NewWalker(), fs.NewResolver())
}

func TestHasher_HashTree_Stable(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"src/a.py": "a", "src/b.py": "b"})

	first, err := newHasher().HashTree(root, "src", nil)
	require.NoError(t, err)

	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(root, "src", "a.py"), past, past))

	second, err := newHasher().HashTree(root, "src", nil)
	require.NoError(t, err)
	assert.Equal(t, first, second, "modification times do not matter")
}

func TestHasher_HashTree_ContentChange(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"src/a.py": "a"})

	before, err := newHasher().HashTree(root, ".", nil)
	require.NoError(t, err)

	writeFiles(t, root, map[string]string{"src/a.py": "changed"})
	after, err := newHasher().HashTree(root, ".", nil)
	require.NoError(t, err)

	assert.NotEqual(t, before, after)
}

func TestHasher_HashTree_Rename(t *testing.T) {
	a := t.TempDir()
	b := t.TempDir()
	writeFiles(t, a, map[string]string{"x.txt": "same"})
	writeFiles(t, b, map[string]string{"y.txt": "same"})

	ha, err := newHasher().HashTree(a, ".", nil)
	require.NoError(t, err)
	hb, err := newHasher().HashTree(b, ".", nil)
	require.NoError(t, err)

	assert.NotEqual(t, ha, hb)
}

func TestHasher_HashTree_ModeChange(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"run.sh": "echo"})

	before, err := newHasher().HashTree(root, "run.sh", nil)
	require.NoError(t, err)

	require.NoError(t, os.Chmod(filepath.Join(root, "run.sh"), 0o700)) //nolint:gosec // Test file
	after, err := newHasher().HashTree(root, "run.sh", nil)
	require.NoError(t, err)

	assert.NotEqual(t, before, after)
}

func TestHasher_HashTree_SourceDirectoryMode(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"src/a.py": "a"})
	require.NoError(t, os.Chmod(filepath.Join(root, "src"), 0o750)) //nolint:gosec // Test directory

	before, err := newHasher().HashTree(root, "src", nil)
	require.NoError(t, err)

	require.NoError(t, os.Chmod(filepath.Join(root, "src"), 0o700))
	after, err := newHasher().HashTree(root, "src", nil)
	require.NoError(t, err)

	assert.NotEqual(t, before, after, "the source directory is grafted with its own mode")
}

func TestHasher_HashTree_UnreadableDirectory(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"src/a/x.txt": "x", "src/secret/y.txt": "y", "src/z.txt": "z"})
	unreadable(t, filepath.Join(root, "src", "secret"))

	_, err := newHasher().HashTree(root, "src", nil)
	require.ErrorContains(t, err, domain.ErrPathStatFailed.Error())
	assert.ErrorIs(t, err, os.ErrPermission)
}

func TestHasher_HashTree_ExcludedChangesIgnored(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"main.py": "x", "main.pyc": "1"})

	before, err := newHasher().HashTree(root, ".", []string{"*.pyc"})
	require.NoError(t, err)

	writeFiles(t, root, map[string]string{"main.pyc": "2"})
	after, err := newHasher().HashTree(root, ".", []string{"*.pyc"})
	require.NoError(t, err)

	assert.Equal(t, before, after)
}

func TestHasher_HashTree_Missing(t *testing.T) {
	_, err := newHasher().HashTree(t.TempDir(), "nope", nil)
	require.Error(t, err)
}
