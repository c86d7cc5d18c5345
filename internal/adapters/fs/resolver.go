package fs

import (
	"errors"
	iofs "io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.trai.ch/strata/internal/core/domain"
	"go.trai.ch/zerr"
)

// Resolver locates copy sources inside a build context.
type Resolver struct{}

// NewResolver creates a new Resolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

// ResolveSource returns the absolute path of src inside contextDir together with its
// file info. Sources that escape the context or do not exist are rejected.
func (r *Resolver) ResolveSource(contextDir, src string) (string, iofs.FileInfo, error) {
	root, err := filepath.Abs(contextDir)
	if err != nil {
		return "", nil, zerr.With(zerr.Wrap(err, domain.ErrPathStatFailed.Error()), "path", contextDir)
	}

	path := filepath.Join(root, filepath.FromSlash(src))
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", nil, zerr.With(domain.ErrSourceOutsideContext, "source", src)
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return "", nil, zerr.With(zerr.With(domain.ErrSourceNotFound, "source", src), "context", root)
		}
		return "", nil, zerr.With(zerr.Wrap(err, domain.ErrPathStatFailed.Error()), "path", path)
	}
	return path, info, nil
}
