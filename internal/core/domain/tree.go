package domain

import (
	"fmt"
	"io/fs"
	"iter"
	"maps"
	"path"
	"slices"
	"strings"

	"github.com/opencontainers/go-digest"
)

// RootPath is the path of the filesystem root inside a Tree.
const RootPath = "/"

// DefaultDirMode is the mode given to directories a Tree creates implicitly.
const DefaultDirMode = fs.ModeDir | 0o755

// Entry describes one path in a Tree. Regular files reference their content by blob digest.
type Entry struct {
	Path InternedString
	Mode fs.FileMode
	Size int64
	Blob digest.Digest
	Link string
}

// IsDir reports whether the entry is a directory.
func (e Entry) IsDir() bool {
	return e.Mode.IsDir()
}

// IsSymlink reports whether the entry is a symbolic link.
func (e Entry) IsSymlink() bool {
	return e.Mode&fs.ModeSymlink != 0
}

// Tree is an immutable filesystem state keyed by clean absolute slash paths.
// A nil *Tree behaves like an empty tree.
type Tree struct {
	entries map[InternedString]Entry
}

// EmptyTree returns a tree with no entries.
func EmptyTree() *Tree {
	return &Tree{entries: make(map[InternedString]Entry)}
}

// NewTree builds a tree from entries, creating missing parent directories.
func NewTree(entries ...Entry) *Tree {
	return EmptyTree().With(entries...)
}

// CleanPath normalizes p to a clean absolute slash path.
func CleanPath(p string) string {
	return path.Clean(RootPath + strings.TrimPrefix(p, RootPath))
}

// Len returns the number of entries.
func (t *Tree) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// Lookup returns the entry at p.
func (t *Tree) Lookup(p string) (Entry, bool) {
	if t == nil {
		return Entry{}, false
	}
	e, ok := t.entries[NewInternedString(CleanPath(p))]
	return e, ok
}

// Entries yields the entries sorted by path, so parents always precede children.
func (t *Tree) Entries() iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		if t == nil {
			return
		}
		for _, p := range t.sortedPaths() {
			if !yield(t.entries[NewInternedString(p)]) {
				return
			}
		}
	}
}

// With returns a copy of the tree with entries added or replaced.
// Missing parent directories are created with DefaultDirMode.
// Replacing a directory with a non-directory drops everything beneath it.
func (t *Tree) With(entries ...Entry) *Tree {
	next := t.clone()
	for _, e := range entries {
		p := CleanPath(e.Path.String())
		e.Path = NewInternedString(p)

		if old, ok := next.entries[e.Path]; ok && old.IsDir() && !e.IsDir() {
			next.dropBelow(p)
		}
		next.ensureParents(p)
		next.entries[e.Path] = e
	}
	return next
}

// Graft returns a copy of the tree with every entry of sub placed below dest.
// The root entry of sub, if present, becomes the entry for dest itself.
func (t *Tree) Graft(dest string, sub *Tree) *Tree {
	dest = CleanPath(dest)
	moved := make([]Entry, 0, sub.Len()+1)
	if _, ok := sub.Lookup(RootPath); !ok {
		moved = append(moved, Entry{Path: NewInternedString(dest), Mode: DefaultDirMode})
	}
	for e := range sub.Entries() {
		e.Path = NewInternedString(path.Join(dest, e.Path.String()))
		moved = append(moved, e)
	}
	return t.With(moved...)
}

// Digest returns a content digest over every entry, independent of insertion order.
func (t *Tree) Digest() digest.Digest {
	d := digest.Canonical.Digester()
	h := d.Hash()
	for e := range t.Entries() {
		_, _ = fmt.Fprintf(h, "%s\x00%o\x00%d\x00%s\x00%s\x00", e.Path.String(), uint32(e.Mode), e.Size, e.Blob, e.Link)
	}
	return d.Digest()
}

func (t *Tree) clone() *Tree {
	if t == nil {
		return EmptyTree()
	}
	return &Tree{entries: maps.Clone(t.entries)}
}

func (t *Tree) sortedPaths() []string {
	paths := make([]string, 0, len(t.entries))
	for k := range t.entries {
		paths = append(paths, k.String())
	}
	slices.Sort(paths)
	return paths
}

func (t *Tree) ensureParents(p string) {
	for dir := path.Dir(p); ; dir = path.Dir(dir) {
		key := NewInternedString(dir)
		if existing, ok := t.entries[key]; ok && existing.IsDir() {
			if dir == RootPath {
				return
			}
			continue
		}
		t.entries[key] = Entry{Path: key, Mode: DefaultDirMode}
		if dir == RootPath {
			return
		}
	}
}

func (t *Tree) dropBelow(p string) {
	prefix := strings.TrimSuffix(p, RootPath) + RootPath
	for k := range t.entries {
		if strings.HasPrefix(k.String(), prefix) {
			delete(t.entries, k)
		}
	}
}

// ImportedTree is the result of reading a copy source from the build context.
// Directory sources are rooted at "/"; a single file source holds one entry named File.
type ImportedTree struct {
	Tree *Tree
	File string
}

// IsFile reports whether the import came from a single regular file.
func (i ImportedTree) IsFile() bool {
	return i.File != ""
}
