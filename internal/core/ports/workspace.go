package ports

import (
	"context"

	"go.trai.ch/strata/internal/core/domain"
)

// Workspace moves filesystem trees between the content store and real directories.
//
//go:generate go run go.uber.org/mock/mockgen -source=workspace.go -destination=mocks/mock_workspace.go -package=mocks
type Workspace interface {
	// Materialize writes tree into a fresh scratch directory.
	// The returned cleanup function removes the directory.
	Materialize(ctx context.Context, tree *domain.Tree) (dir string, cleanup func(), err error)

	// Capture reads dir back into a tree, storing file contents in the blob store.
	Capture(ctx context.Context, dir string) (*domain.Tree, error)

	// Import reads src, relative to contextDir, into a tree.
	Import(ctx context.Context, contextDir, src string, exclude []string) (domain.ImportedTree, error)

	// Export writes tree into dir, which must not exist or be empty.
	Export(ctx context.Context, tree *domain.Tree, dir string) error
}
