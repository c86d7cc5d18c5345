// Package fs provides file system adapters for walking, hashing and materializing trees.
package fs

import (
	"io/fs"
	"iter"
	"path/filepath"
	"slices"
)

// contextSkipDirs are skipped when walking a build context.
var contextSkipDirs = []string{".git", ".jj", ".strata"}

// Walker provides file walking functionality.
type Walker struct {
	skipDirs []string
}

// NewWalker creates a Walker for build contexts. It skips version control directories
// and the project metadata directory.
func NewWalker() *Walker {
	return &Walker{skipDirs: contextSkipDirs}
}

// NewTreeWalker creates a Walker that visits everything, used for captured filesystems.
func NewTreeWalker() *Walker {
	return &Walker{}
}

// WalkEntry is one entry visited by Walk.
type WalkEntry struct {
	fs.DirEntry

	// Rel is the slash separated path relative to the walk root.
	Rel string
}

// Walk yields every entry below root, excluding root itself. Entries are visited in
// lexical order so parents precede children.
//
// An exclude pattern matches either the base name or the relative path of an entry;
// an excluded directory is skipped entirely.
//
// A directory that cannot be read yields its error and ends the walk.
func (w *Walker) Walk(root string, exclude []string) iter.Seq2[WalkEntry, error] {
	return func(yield func(WalkEntry, error) bool) {
		stopped := false
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if path == root {
				return nil
			}

			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)

			if w.skip(rel, d, exclude) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			if !yield(WalkEntry{DirEntry: d, Rel: rel}, nil) {
				stopped = true
				return filepath.SkipAll
			}
			return nil
		})
		if err != nil && !stopped {
			yield(WalkEntry{}, err)
		}
	}
}

// WalkFiles yields the relative paths of regular files and symlinks below root.
func (w *Walker) WalkFiles(root string, exclude []string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for e, err := range w.Walk(root, exclude) {
			if err != nil {
				yield("", err)
				return
			}
			if e.IsDir() {
				continue
			}
			if !yield(e.Rel, nil) {
				return
			}
		}
	}
}

func (w *Walker) skip(rel string, d fs.DirEntry, exclude []string) bool {
	name := d.Name()

	if d.IsDir() && slices.Contains(w.skipDirs, name) {
		return true
	}

	for _, pattern := range exclude {
		if matched, _ := filepath.Match(pattern, name); matched {
			return true
		}
		if matched, _ := filepath.Match(pattern, rel); matched {
			return true
		}
	}
	return false
}
