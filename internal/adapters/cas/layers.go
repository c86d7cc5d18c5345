package cas

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/opencontainers/go-digest"
	"go.trai.ch/strata/internal/core/domain"
	"go.trai.ch/strata/internal/core/ports"
	"go.trai.ch/zerr"
)

const recordVersion = 1

var _ ports.LayerCache = (*LayerStore)(nil)

// LayerStore implements ports.LayerCache.
//
// Committed snapshots are kept in memory. When the store has a directory, each snapshot is
// also written to <dir>/<algorithm>/<hex>.json, and commits are linked into place so that
// concurrent processes sharing the directory agree on a single winner.
type LayerStore struct {
	dir    string
	mu     sync.RWMutex
	layers map[digest.Digest]*domain.Snapshot
}

// NewMemoryLayerStore creates a LayerStore that keeps snapshots in memory only.
func NewMemoryLayerStore() *LayerStore {
	return &LayerStore{layers: make(map[digest.Digest]*domain.Snapshot)}
}

// NewLayerStore creates a LayerStore persisted under dir.
func NewLayerStore(dir string) (*LayerStore, error) {
	dir = filepath.Clean(dir)
	if err := os.MkdirAll(dir, domain.DirPerm); err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrStoreCreateFailed.Error()), "path", dir)
	}
	s := NewMemoryLayerStore()
	s.dir = dir
	return s, nil
}

// Lookup returns the snapshot committed under fp, or nil if there is none.
func (s *LayerStore) Lookup(fp digest.Digest) (*domain.Snapshot, error) {
	s.mu.RLock()
	snap, ok := s.layers[fp]
	s.mu.RUnlock()
	if ok || s.dir == "" {
		return snap, nil
	}

	snap, err := s.read(fp)
	if err != nil || snap == nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.layers[fp]; ok {
		return existing, nil
	}
	s.layers[fp] = snap
	return snap, nil
}

// Commit stores snapshot under its fingerprint.
func (s *LayerStore) Commit(snapshot *domain.Snapshot) error {
	if snapshot == nil || snapshot.Fingerprint == "" {
		return zerr.With(domain.ErrStoreWriteFailed, "reason", "snapshot has no fingerprint")
	}
	fp := snapshot.Fingerprint

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.layers[fp]; ok {
		return compare(existing, snapshot)
	}

	if s.dir != "" {
		existing, err := s.link(snapshot)
		if err != nil {
			return err
		}
		if existing != nil {
			s.layers[fp] = existing
			return compare(existing, snapshot)
		}
	}

	s.layers[fp] = snapshot
	return nil
}

// Len returns the number of committed snapshots.
func (s *LayerStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.dir == "" {
		return len(s.layers)
	}

	n := 0
	_ = filepath.WalkDir(s.dir, func(_ string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() && strings.HasSuffix(d.Name(), ".json") {
			n++
		}
		return nil
	})
	return max(n, len(s.layers))
}

func compare(existing, incoming *domain.Snapshot) error {
	have, want := existing.ContentDigest(), incoming.ContentDigest()
	if have == want {
		return nil
	}
	return &domain.DuplicateCommitError{
		Fingerprint: incoming.Fingerprint,
		Existing:    have,
		Incoming:    want,
	}
}

func (s *LayerStore) path(fp digest.Digest) string {
	return filepath.Join(s.dir, fp.Algorithm().String(), fp.Encoded()+".json")
}

// link writes the record to a temporary file and hard-links it into place. If another
// writer got there first, the record already on disk is returned instead.
func (s *LayerStore) link(snapshot *domain.Snapshot) (*domain.Snapshot, error) {
	dst := s.path(snapshot.Fingerprint)
	if err := os.MkdirAll(filepath.Dir(dst), domain.DirPerm); err != nil {
		return nil, zerr.Wrap(err, domain.ErrStoreCreateFailed.Error())
	}

	data, err := json.MarshalIndent(newRecord(snapshot), "", "  ")
	if err != nil {
		return nil, zerr.Wrap(err, domain.ErrStoreWriteFailed.Error())
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".layer-*")
	if err != nil {
		return nil, zerr.Wrap(err, domain.ErrStoreWriteFailed.Error())
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	_, err = tmp.Write(data)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Chmod(tmp.Name(), domain.FilePerm)
	}
	if err != nil {
		return nil, zerr.Wrap(err, domain.ErrStoreWriteFailed.Error())
	}

	err = os.Link(tmp.Name(), dst)
	switch {
	case err == nil:
		return nil, nil
	case errors.Is(err, fs.ErrExist):
		existing, rerr := s.read(snapshot.Fingerprint)
		if rerr != nil {
			return nil, rerr
		}
		return existing, nil
	default:
		return nil, zerr.With(zerr.Wrap(err, domain.ErrStoreWriteFailed.Error()), "fingerprint", snapshot.Fingerprint.String())
	}
}

func (s *LayerStore) read(fp digest.Digest) (*domain.Snapshot, error) {
	if err := fp.Validate(); err != nil {
		return nil, nil
	}

	//nolint:gosec // Path is derived from a validated digest
	data, err := os.ReadFile(s.path(fp))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, zerr.Wrap(err, domain.ErrStoreReadFailed.Error())
	}

	var rec layerRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrStoreUnmarshalFailed.Error()), "fingerprint", fp.String())
	}
	if rec.Version != recordVersion {
		return nil, zerr.With(domain.ErrStoreUnmarshalFailed, "version", rec.Version)
	}

	snap := rec.snapshot()
	if snap.Fingerprint != fp || snap.ContentDigest() != rec.Content {
		return nil, zerr.With(domain.ErrStoreUnmarshalFailed, "fingerprint", fp.String())
	}
	return snap, nil
}

type entryRecord struct {
	Path string        `json:"path"`
	Mode uint32        `json:"mode"`
	Size int64         `json:"size,omitempty"`
	Blob digest.Digest `json:"blob,omitempty"`
	Link string        `json:"link,omitempty"`
}

type envRecord struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type layerRecord struct {
	Version     int             `json:"version"`
	Fingerprint digest.Digest   `json:"fingerprint"`
	Parent      digest.Digest   `json:"parent,omitempty"`
	Step        int             `json:"step"`
	Kind        domain.StepKind `json:"kind"`
	Instruction string          `json:"instruction"`
	Workdir     string          `json:"workdir,omitempty"`
	Env         []envRecord     `json:"env,omitempty"`
	Entries     []entryRecord   `json:"entries"`
	Content     digest.Digest   `json:"content"`
	CreatedAt   time.Time       `json:"created_at"`
}

func newRecord(s *domain.Snapshot) layerRecord {
	rec := layerRecord{
		Version:     recordVersion,
		Fingerprint: s.Fingerprint,
		Parent:      s.Parent,
		Step:        s.Step,
		Kind:        s.Kind,
		Instruction: s.Instruction,
		Workdir:     s.Workdir,
		Content:     s.ContentDigest(),
		CreatedAt:   s.CreatedAt.UTC(),
	}
	for _, v := range s.Env.Vars() {
		rec.Env = append(rec.Env, envRecord(v))
	}
	for e := range s.Tree.Entries() {
		rec.Entries = append(rec.Entries, entryRecord{
			Path: e.Path.String(),
			Mode: uint32(e.Mode),
			Size: e.Size,
			Blob: e.Blob,
			Link: e.Link,
		})
	}
	return rec
}

func (r layerRecord) snapshot() *domain.Snapshot {
	entries := make([]domain.Entry, 0, len(r.Entries))
	for _, e := range r.Entries {
		entries = append(entries, domain.Entry{
			Path: domain.NewInternedString(e.Path),
			Mode: fs.FileMode(e.Mode),
			Size: e.Size,
			Blob: e.Blob,
			Link: e.Link,
		})
	}
	env := make([]domain.EnvVar, 0, len(r.Env))
	for _, v := range r.Env {
		env = append(env, domain.EnvVar(v))
	}
	return &domain.Snapshot{
		Fingerprint: r.Fingerprint,
		Parent:      r.Parent,
		Step:        r.Step,
		Kind:        r.Kind,
		Instruction: r.Instruction,
		Tree:        domain.NewTree(entries...),
		Env:         domain.NewEnvironment(env...),
		Workdir:     r.Workdir,
		CreatedAt:   r.CreatedAt,
	}
}
