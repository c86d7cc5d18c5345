// Package cas implements content addressable storage for file blobs and committed layers.
package cas

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/opencontainers/go-digest"
	"go.trai.ch/strata/internal/core/domain"
	"go.trai.ch/strata/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.BlobStore = (*BlobStore)(nil)

// BlobStore implements ports.BlobStore on a directory laid out as <root>/<algorithm>/<hex>.
type BlobStore struct {
	root string
}

// NewBlobStore creates a BlobStore rooted at root, creating the directory if needed.
func NewBlobStore(root string) (*BlobStore, error) {
	root = filepath.Clean(root)
	if err := os.MkdirAll(root, domain.DirPerm); err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrStoreCreateFailed.Error()), "path", root)
	}
	return &BlobStore{root: root}, nil
}

// Root returns the directory the store writes to.
func (s *BlobStore) Root() string {
	return s.root
}

func (s *BlobStore) path(d digest.Digest) string {
	return filepath.Join(s.root, d.Algorithm().String(), d.Encoded())
}

// Put copies r into the store. Writing content that is already present is a no-op.
func (s *BlobStore) Put(r io.Reader) (digest.Digest, int64, error) {
	tmp, err := os.CreateTemp(s.root, ".blob-*")
	if err != nil {
		return "", 0, zerr.Wrap(err, domain.ErrStoreWriteFailed.Error())
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	digester := digest.Canonical.Digester()
	n, err := io.Copy(io.MultiWriter(tmp, digester.Hash()), r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", 0, zerr.Wrap(err, domain.ErrStoreWriteFailed.Error())
	}

	d := digester.Digest()
	dst := s.path(d)
	if _, err := os.Stat(dst); err == nil {
		return d, n, nil
	}
	if err := os.MkdirAll(filepath.Dir(dst), domain.DirPerm); err != nil {
		return "", 0, zerr.Wrap(err, domain.ErrStoreCreateFailed.Error())
	}
	if err := os.Chmod(tmp.Name(), domain.FilePerm); err != nil {
		return "", 0, zerr.Wrap(err, domain.ErrStoreWriteFailed.Error())
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", 0, zerr.With(zerr.Wrap(err, domain.ErrStoreWriteFailed.Error()), "digest", d.String())
	}
	return d, n, nil
}

// Open returns a reader for the blob. Reading to EOF fails with ErrBlobCorrupted if the
// content no longer matches d.
func (s *BlobStore) Open(d digest.Digest) (io.ReadCloser, error) {
	if err := d.Validate(); err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrBlobNotFound.Error()), "digest", d.String())
	}

	//nolint:gosec // Path is derived from a validated digest
	f, err := os.Open(s.path(d))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, zerr.With(domain.ErrBlobNotFound, "digest", d.String())
		}
		return nil, zerr.Wrap(err, domain.ErrStoreReadFailed.Error())
	}
	return &verifyingReader{f: f, d: d, v: d.Verifier()}, nil
}

type verifyingReader struct {
	f *os.File
	d digest.Digest
	v digest.Verifier
}

func (r *verifyingReader) Read(p []byte) (int, error) {
	n, err := r.f.Read(p)
	_, _ = r.v.Write(p[:n])
	if errors.Is(err, io.EOF) && !r.v.Verified() {
		return n, zerr.With(domain.ErrBlobCorrupted, "digest", r.d.String())
	}
	return n, err
}

func (r *verifyingReader) Close() error {
	return r.f.Close()
}
