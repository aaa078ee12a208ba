package hostfs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/copywrite-ai/nano-web-git/internal/utils"
)

const (
	// MetadataDir lives inside the granted root and is never part of the
	// mirrored tree. Holds the run lock.
	MetadataDir = ".nanogit"

	lockFile = "sync.lock"
)

var (
	ErrNotFound   = errors.New("hostfs: path not found")
	ErrRootLocked = errors.New("hostfs: destination root locked by another sync run")
)

// Root is a handle on a user-granted destination directory. All paths are
// slash-delimited and relative; resolution never escapes the root.
type Root struct {
	dir   string
	flock *flock.Flock
}

func NewRoot(dir string) (*Root, error) {
	resolved, err := utils.ResolvePath(dir)
	if err != nil {
		return nil, fmt.Errorf("hostfs: resolve root %q: %w", dir, err)
	}
	if err := utils.EnsureDir(resolved); err != nil {
		return nil, fmt.Errorf("hostfs: create root %q: %w", resolved, err)
	}

	return &Root{
		dir:   resolved,
		flock: flock.New(filepath.Join(resolved, MetadataDir, lockFile)),
	}, nil
}

func (r *Root) Dir() string {
	return r.dir
}

// LockRun takes the per-root sync lock. Concurrent sync runs against the
// same destination are serialized by failing fast here.
func (r *Root) LockRun() error {
	if err := utils.EnsureDir(filepath.Join(r.dir, MetadataDir)); err != nil {
		return fmt.Errorf("hostfs: create metadata dir: %w", err)
	}

	locked, err := r.flock.TryLock()
	if err != nil {
		return fmt.Errorf("hostfs: lock %s: %w", r.flock.Path(), err)
	}
	if !locked {
		return ErrRootLocked
	}
	return nil
}

func (r *Root) UnlockRun() error {
	return r.flock.Unlock()
}

// ReadFile reads the file at the relative path.
func (r *Root) ReadFile(rel string) ([]byte, error) {
	h, err := r.Resolve(rel, ResolveOpts{Kind: KindFile})
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(h.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, rel)
	}
	return data, err
}

// WriteFile writes data with create-or-truncate semantics, creating
// intermediate directories as needed.
func (r *Root) WriteFile(rel string, data []byte) error {
	h, err := r.Resolve(rel, ResolveOpts{Create: true, Kind: KindFile})
	if err != nil {
		return err
	}
	return os.WriteFile(h.Path, data, 0o644)
}

// Mkdir creates the directory at the relative path, parents included.
func (r *Root) Mkdir(rel string) error {
	_, err := r.Resolve(rel, ResolveOpts{Create: true, Kind: KindDir})
	return err
}

// Stat fails with ErrNotFound when the path is missing.
func (r *Root) Stat(rel string) (fs.FileInfo, error) {
	abs, err := r.abs(rel)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, rel)
	}
	return info, err
}

// Remove deletes a single file (non-recursive).
func (r *Root) Remove(rel string) error {
	abs, err := r.abs(rel)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, rel)
	} else if err != nil {
		return err
	}
	return nil
}

// RemoveAll deletes a directory recursively. Removing a missing path is not
// an error.
func (r *Root) RemoveAll(rel string) error {
	abs, err := r.abs(rel)
	if err != nil {
		return err
	}
	return os.RemoveAll(abs)
}

// List returns the entries of the directory at the relative path.
func (r *Root) List(rel string) ([]fs.DirEntry, error) {
	abs, err := r.abs(rel)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, rel)
	}
	return entries, err
}
