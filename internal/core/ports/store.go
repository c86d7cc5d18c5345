package ports

import (
	"io"

	"github.com/opencontainers/go-digest"
	"go.trai.ch/strata/internal/core/domain"
)

// LayerCache maps fingerprints to committed snapshots.
//
// Implementations must be safe for concurrent use. Commit is atomic: two racing commits
// for the same fingerprint leave exactly one snapshot in the cache.
//
//go:generate go run go.uber.org/mock/mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks
type LayerCache interface {
	// Lookup returns the snapshot committed under fp.
	// Returns nil, nil if not found.
	Lookup(fp digest.Digest) (*domain.Snapshot, error)

	// Commit stores snapshot under its fingerprint.
	// Committing identical content again is a no-op; committing different content under an
	// existing fingerprint returns a *domain.DuplicateCommitError.
	Commit(snapshot *domain.Snapshot) error

	// Len returns the number of committed snapshots.
	Len() int
}

// BlobStore stores file contents addressed by digest.
type BlobStore interface {
	// Put stores the content read from r and returns its digest and size.
	Put(r io.Reader) (digest.Digest, int64, error)

	// Open returns a reader for the blob. The content is verified against d as it is read.
	Open(d digest.Digest) (io.ReadCloser, error)
}
