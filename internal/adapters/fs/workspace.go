package fs

import (
	"context"
	"errors"
	"io"
	iofs "io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"

	"go.trai.ch/strata/internal/core/domain"
	"go.trai.ch/strata/internal/core/ports"
	"go.trai.ch/zerr"
)

const rootfsPattern = "strata-rootfs-*"

var _ ports.Workspace = (*Workspace)(nil)

// Workspace implements ports.Workspace on the local filesystem. File contents move through
// the blob store, so trees stay small and identical files are stored once.
type Workspace struct {
	blobs    ports.BlobStore
	context  *Walker
	rootfs   *Walker
	resolver *Resolver
	scratch  string
}

// NewWorkspace creates a Workspace. Scratch directories are created inside scratch, or in
// the system temporary directory when scratch is empty.
func NewWorkspace(blobs ports.BlobStore, walker *Walker, resolver *Resolver, scratch string) *Workspace {
	return &Workspace{
		blobs:    blobs,
		context:  walker,
		rootfs:   NewTreeWalker(),
		resolver: resolver,
		scratch:  scratch,
	}
}

// Materialize writes tree into a fresh scratch directory.
func (w *Workspace) Materialize(ctx context.Context, tree *domain.Tree) (string, func(), error) {
	if w.scratch != "" {
		if err := os.MkdirAll(w.scratch, domain.DirPerm); err != nil {
			return "", nil, zerr.Wrap(err, domain.ErrMaterializeFailed.Error())
		}
	}
	dir, err := os.MkdirTemp(w.scratch, rootfsPattern)
	if err != nil {
		return "", nil, zerr.Wrap(err, domain.ErrMaterializeFailed.Error())
	}
	cleanup := func() { _ = removeAll(dir) }

	if err := w.write(ctx, tree, dir); err != nil {
		cleanup()
		return "", nil, err
	}
	return dir, cleanup, nil
}

// Export writes tree into dir, which must not exist or be empty.
func (w *Workspace) Export(ctx context.Context, tree *domain.Tree, dir string) error {
	if err := os.MkdirAll(dir, domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrMaterializeFailed.Error()), "path", dir)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrMaterializeFailed.Error()), "path", dir)
	}
	if len(entries) > 0 {
		return zerr.With(zerr.With(domain.ErrMaterializeFailed, "reason", "destination is not empty"), "path", dir)
	}
	return w.write(ctx, tree, dir)
}

// write creates every entry of tree below dir. Directory permissions are applied last,
// deepest first, so read-only directories can still be populated.
func (w *Workspace) write(ctx context.Context, tree *domain.Tree, dir string) error {
	type dirMode struct {
		path string
		mode iofs.FileMode
	}
	dirs := []dirMode{{path: dir, mode: domain.DefaultDirMode.Perm()}}

	for e := range tree.Entries() {
		if err := ctx.Err(); err != nil {
			return err
		}

		p := e.Path.String()
		target := filepath.Join(dir, filepath.FromSlash(p))

		switch {
		case p == domain.RootPath:
			dirs[0].mode = e.Mode.Perm()
		case e.IsDir():
			if err := os.MkdirAll(target, domain.DirPerm); err != nil {
				return zerr.With(zerr.Wrap(err, domain.ErrMaterializeFailed.Error()), "path", p)
			}
			dirs = append(dirs, dirMode{path: target, mode: e.Mode.Perm()})
		case e.IsSymlink():
			if err := os.Symlink(e.Link, target); err != nil {
				return zerr.With(zerr.Wrap(err, domain.ErrMaterializeFailed.Error()), "path", p)
			}
		default:
			if err := w.writeFile(e, target); err != nil {
				return zerr.With(err, "path", p)
			}
		}
	}

	for _, d := range slices.Backward(dirs) {
		//nolint:gosec // Modes come from captured trees
		if err := os.Chmod(d.path, d.mode); err != nil {
			return zerr.With(zerr.Wrap(err, domain.ErrMaterializeFailed.Error()), "path", d.path)
		}
	}
	return nil
}

func (w *Workspace) writeFile(e domain.Entry, target string) error {
	src, err := w.blobs.Open(e.Blob)
	if err != nil {
		return err
	}
	defer src.Close() //nolint:errcheck // Read-only handle

	//nolint:gosec // Target is below a directory this workspace created
	dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, e.Mode.Perm())
	if err != nil {
		return zerr.Wrap(err, domain.ErrMaterializeFailed.Error())
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return zerr.Wrap(err, domain.ErrMaterializeFailed.Error())
	}
	if err := dst.Close(); err != nil {
		return zerr.Wrap(err, domain.ErrMaterializeFailed.Error())
	}
	// OpenFile honours the umask; restore the recorded bits.
	if err := os.Chmod(target, e.Mode.Perm()); err != nil {
		return zerr.Wrap(err, domain.ErrMaterializeFailed.Error())
	}
	return nil
}

// Capture reads dir back into a tree. Modification times and ownership are not recorded.
func (w *Workspace) Capture(ctx context.Context, dir string) (*domain.Tree, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrCaptureFailed.Error()), "path", dir)
	}

	entries := []domain.Entry{{
		Path: domain.NewInternedString(domain.RootPath),
		Mode: iofs.ModeDir | info.Mode().Perm(),
	}}
	for we, err := range w.rootfs.Walk(dir, nil) {
		if err != nil {
			return nil, zerr.With(zerr.Wrap(err, domain.ErrCaptureFailed.Error()), "path", dir)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e, ok, err := w.entry(filepath.Join(dir, filepath.FromSlash(we.Rel)), "/"+we.Rel, we)
		if err != nil {
			return nil, err
		}
		if ok {
			entries = append(entries, e)
		}
	}
	return domain.NewTree(entries...), nil
}

// Import reads src from the build context. A directory source becomes a tree rooted at
// "/"; a file source becomes a tree holding that one file.
func (w *Workspace) Import(ctx context.Context, contextDir, src string, exclude []string) (domain.ImportedTree, error) {
	abs, info, err := w.resolver.ResolveSource(contextDir, src)
	if err != nil {
		return domain.ImportedTree{}, err
	}

	if !info.IsDir() {
		name := path.Base(filepath.ToSlash(abs))
		e, err := w.fileEntry(abs, "/"+name, info)
		if err != nil {
			return domain.ImportedTree{}, err
		}
		return domain.ImportedTree{Tree: domain.NewTree(e), File: name}, nil
	}

	entries := []domain.Entry{{
		Path: domain.NewInternedString(domain.RootPath),
		Mode: iofs.ModeDir | info.Mode().Perm(),
	}}
	for we, err := range w.context.Walk(abs, exclude) {
		if err != nil {
			return domain.ImportedTree{}, zerr.With(zerr.Wrap(err, domain.ErrCaptureFailed.Error()), "path", abs)
		}
		if err := ctx.Err(); err != nil {
			return domain.ImportedTree{}, err
		}
		e, ok, err := w.entry(filepath.Join(abs, filepath.FromSlash(we.Rel)), "/"+we.Rel, we)
		if err != nil {
			return domain.ImportedTree{}, err
		}
		if ok {
			entries = append(entries, e)
		}
	}
	return domain.ImportedTree{Tree: domain.NewTree(entries...)}, nil
}

// entry converts one walked path. Sockets, devices and pipes are skipped.
func (w *Workspace) entry(abs, p string, d iofs.DirEntry) (domain.Entry, bool, error) {
	info, err := d.Info()
	if err != nil {
		return domain.Entry{}, false, zerr.With(zerr.Wrap(err, domain.ErrCaptureFailed.Error()), "path", abs)
	}
	mode := info.Mode()

	switch {
	case mode.IsDir():
		return domain.Entry{Path: domain.NewInternedString(p), Mode: iofs.ModeDir | mode.Perm()}, true, nil
	case mode&iofs.ModeSymlink != 0:
		target, err := os.Readlink(abs)
		if err != nil {
			return domain.Entry{}, false, zerr.With(zerr.Wrap(err, domain.ErrCaptureFailed.Error()), "path", abs)
		}
		return domain.Entry{Path: domain.NewInternedString(p), Mode: iofs.ModeSymlink | 0o777, Link: target}, true, nil
	case mode.IsRegular():
		e, err := w.fileEntry(abs, p, info)
		return e, err == nil, err
	default:
		return domain.Entry{}, false, nil
	}
}

func (w *Workspace) fileEntry(abs, p string, info iofs.FileInfo) (domain.Entry, error) {
	f, err := os.Open(abs) //nolint:gosec // Path comes from a directory walk
	if err != nil {
		return domain.Entry{}, zerr.With(zerr.Wrap(err, domain.ErrCaptureFailed.Error()), "path", abs)
	}
	defer f.Close() //nolint:errcheck // Read-only handle

	d, n, err := w.blobs.Put(f)
	if err != nil {
		return domain.Entry{}, zerr.With(err, "path", abs)
	}
	return domain.Entry{
		Path: domain.NewInternedString(p),
		Mode: info.Mode().Perm(),
		Size: n,
		Blob: d,
	}, nil
}

// removeAll deletes dir even when it contains read-only directories.
func removeAll(dir string) error {
	_ = filepath.WalkDir(dir, func(p string, d iofs.DirEntry, err error) error {
		if err == nil && d.IsDir() {
			_ = os.Chmod(p, 0o700) //nolint:gosec // Owner-only access for removal
		}
		return nil
	})
	if err := os.RemoveAll(dir); err != nil && !errors.Is(err, iofs.ErrNotExist) {
		return err
	}
	return nil
}
