package fs

import (
	"encoding/binary"
	"fmt"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/strata/internal/core/domain"
	"go.trai.ch/strata/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.TreeHasher = (*Hasher)(nil)

// Hasher computes content hashes of build context paths.
type Hasher struct {
	walker   *Walker
	resolver *Resolver
}

// NewHasher creates a new Hasher.
func NewHasher(walker *Walker, resolver *Resolver) *Hasher {
	return &Hasher{walker: walker, resolver: resolver}
}

// ComputeFileHash computes the XXHash of a file's content.
func (h *Hasher) ComputeFileHash(path string) (uint64, error) {
	f, err := os.Open(path) //nolint:gosec // Path is controlled by caller
	if err != nil {
		return 0, zerr.With(zerr.Wrap(err, "failed to open file"), "path", path)
	}
	defer f.Close() //nolint:errcheck // Best effort close in defer

	hasher := xxhash.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return 0, zerr.With(zerr.Wrap(err, domain.ErrFileHashFailed.Error()), "path", path)
	}

	return hasher.Sum64(), nil
}

// HashTree hashes src, relative to root. Relative paths, permission bits, link targets and
// file contents all contribute; modification times do not.
func (h *Hasher) HashTree(root, src string, exclude []string) (string, error) {
	path, info, err := h.resolver.ResolveSource(root, src)
	if err != nil {
		return "", err
	}

	hasher := xxhash.New()

	if !info.IsDir() {
		if err := h.hashEntry(hasher, path, filepath.Base(path), info.Mode()); err != nil {
			return "", err
		}
		return fmt.Sprintf("%016x", hasher.Sum64()), nil
	}

	// Import grafts the source directory with its own mode.
	if err := h.hashEntry(hasher, path, ".", info.Mode()); err != nil {
		return "", err
	}

	for e, err := range h.walker.Walk(path, exclude) {
		if err != nil {
			return "", zerr.With(zerr.Wrap(err, domain.ErrPathStatFailed.Error()), "path", path)
		}
		fi, err := e.Info()
		if err != nil {
			return "", zerr.With(zerr.Wrap(err, domain.ErrPathStatFailed.Error()), "path", e.Rel)
		}
		if err := h.hashEntry(hasher, filepath.Join(path, filepath.FromSlash(e.Rel)), e.Rel, fi.Mode()); err != nil {
			return "", err
		}
	}

	return fmt.Sprintf("%016x", hasher.Sum64()), nil
}

func (h *Hasher) hashEntry(w io.Writer, path, rel string, mode iofs.FileMode) error {
	_, _ = w.Write([]byte(rel))
	_, _ = w.Write([]byte{0})
	_ = binary.Write(w, binary.LittleEndian, uint32(mode&(iofs.ModeType|iofs.ModePerm)))

	switch {
	case mode.IsDir():
	case mode&iofs.ModeSymlink != 0:
		target, err := os.Readlink(path)
		if err != nil {
			return zerr.With(zerr.Wrap(err, domain.ErrFileHashFailed.Error()), "path", path)
		}
		_, _ = w.Write([]byte(target))
	case mode.IsRegular():
		sum, err := h.ComputeFileHash(path)
		if err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, sum); err != nil {
			return zerr.Wrap(err, "failed to write hash to digest")
		}
	}
	_, _ = w.Write([]byte{0})
	return nil
}
