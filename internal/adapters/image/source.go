// Package image resolves base image references against a local image directory.
package image

import (
	"context"
	"errors"
	iofs "io/fs"
	"os"
	"path/filepath"
	"sync"

	"go.trai.ch/strata/internal/core/domain"
	"go.trai.ch/strata/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.ImageSource = (*DirectorySource)(nil)

// DirectorySource implements ports.ImageSource over a directory laid out as
// <root>/<name>/<tag>, where each tag directory is the image's root filesystem.
// Resolved trees are kept for the lifetime of the source.
type DirectorySource struct {
	root      string
	workspace ports.Workspace

	mu     sync.Mutex
	images map[string]*domain.Tree
}

// NewDirectorySource creates a DirectorySource reading from root.
func NewDirectorySource(root string, workspace ports.Workspace) *DirectorySource {
	return &DirectorySource{
		root:      filepath.Clean(root),
		workspace: workspace,
		images:    make(map[string]*domain.Tree),
	}
}

// Resolve returns the tree for ref. The scratch image resolves to an empty tree.
func (s *DirectorySource) Resolve(ctx context.Context, ref string) (*domain.Tree, error) {
	parsed, err := domain.ParseImageRef(ref)
	if err != nil {
		return nil, err
	}
	if parsed.IsScratch() {
		return domain.EmptyTree(), nil
	}

	key := parsed.String()

	s.mu.Lock()
	defer s.mu.Unlock()

	if tree, ok := s.images[key]; ok {
		return tree, nil
	}

	dir := filepath.Join(s.root, filepath.FromSlash(parsed.Name), parsed.Tag)
	info, err := os.Stat(dir)
	switch {
	case errors.Is(err, iofs.ErrNotExist):
		return nil, zerr.With(zerr.With(domain.ErrImageNotFound, "ref", key), "path", dir)
	case err != nil:
		return nil, zerr.With(zerr.Wrap(err, domain.ErrPathStatFailed.Error()), "path", dir)
	case !info.IsDir():
		return nil, zerr.With(zerr.With(domain.ErrImageNotFound, "ref", key), "path", dir)
	}

	tree, err := s.workspace.Capture(ctx, dir)
	if err != nil {
		return nil, zerr.With(err, "ref", key)
	}
	s.images[key] = tree
	return tree, nil
}
