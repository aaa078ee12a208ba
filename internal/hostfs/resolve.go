package hostfs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

type Kind uint8

const (
	// KindAny tries a file first, then falls back to a directory.
	KindAny Kind = iota
	KindFile
	KindDir
)

type ResolveOpts struct {
	// Create makes intermediate directories, and the final directory when
	// Kind is KindDir.
	Create bool
	Kind   Kind
}

// Handle is a resolved position inside the root.
type Handle struct {
	Rel  string // slash-delimited path relative to the root
	Path string // absolute host path
	Kind Kind
}

// Resolve splits rel on separators and walks from the root, creating
// intermediate directories when opts.Create is set.
func (r *Root) Resolve(rel string, opts ResolveOpts) (*Handle, error) {
	abs, err := r.abs(rel)
	if err != nil {
		return nil, err
	}

	if opts.Create {
		parent := filepath.Dir(abs)
		if err := os.MkdirAll(parent, 0o755); err != nil {
			return nil, fmt.Errorf("hostfs: create parents of %s: %w", rel, err)
		}
	}

	switch opts.Kind {
	case KindDir:
		if opts.Create {
			if err := os.MkdirAll(abs, 0o755); err != nil {
				return nil, fmt.Errorf("hostfs: create dir %s: %w", rel, err)
			}
		} else if err := statKind(abs, rel, true); err != nil {
			return nil, err
		}
		return &Handle{Rel: rel, Path: abs, Kind: KindDir}, nil

	case KindFile:
		if !opts.Create {
			if err := statKind(abs, rel, false); err != nil {
				return nil, err
			}
		}
		return &Handle{Rel: rel, Path: abs, Kind: KindFile}, nil

	default:
		info, err := os.Stat(abs)
		if errors.Is(err, fs.ErrNotExist) {
			if opts.Create {
				return &Handle{Rel: rel, Path: abs, Kind: KindFile}, nil
			}
			return nil, fmt.Errorf("%w: %s", ErrNotFound, rel)
		} else if err != nil {
			return nil, err
		}
		kind := KindFile
		if info.IsDir() {
			kind = KindDir
		}
		return &Handle{Rel: rel, Path: abs, Kind: kind}, nil
	}
}

func statKind(abs, rel string, wantDir bool) error {
	info, err := os.Stat(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, rel)
	} else if err != nil {
		return err
	}
	if info.IsDir() != wantDir {
		return fmt.Errorf("%w: %s is not the requested kind", ErrNotFound, rel)
	}
	return nil
}

// abs confines rel to the root directory, rejecting traversal escapes.
func (r *Root) abs(rel string) (string, error) {
	rel = strings.TrimPrefix(rel, "/")
	if rel == "" || rel == "." {
		return r.dir, nil
	}

	clean := filepath.Clean(filepath.FromSlash(rel))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || filepath.IsAbs(clean) {
		return "", fmt.Errorf("hostfs: path %q escapes the root", rel)
	}
	return filepath.Join(r.dir, clean), nil
}
