// Package store holds the sandboxed content tree the worker operates on.
// The versioning engine reads and writes through the Store interface and
// never touches the host filesystem directly.
package store

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("store: path not found")

// Entry describes a single node of the content tree.
type Entry struct {
	Path string `json:"pth"`
	Dir  bool   `json:"dir,omitempty"`
	Size int64  `json:"sz,omitempty"`
}

// Store is the byte-oriented file interface the versioning engine requires.
// Paths are slash-delimited and relative to the store root.
type Store interface {
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte) error
	Stat(path string) (*Entry, error)
	// List returns the immediate children of dir, directories first,
	// lexicographic within each group.
	List(dir string) ([]*Entry, error)
	Remove(path string) error
	RemoveAll(path string) error
}

func notFound(path string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, path)
}
