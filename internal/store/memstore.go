package store

import (
	"path"
	"sort"
	"strings"
	"sync"
)

// MemStore is the in-memory Store owned by the worker. It exists for the
// lifetime of the worker and is wiped by the `wipe` operation; nothing in it
// survives the process.
type MemStore struct {
	mu    sync.RWMutex
	files map[string][]byte
	dirs  map[string]bool
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{
		files: make(map[string][]byte),
		dirs:  map[string]bool{".": true},
	}
}

func clean(p string) string {
	p = path.Clean("/" + p)
	return strings.TrimPrefix(p, "/")
}

func (s *MemStore) ReadFile(p string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.files[clean(p)]
	if !ok {
		return nil, notFound(p)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (s *MemStore) WriteFile(p string, data []byte) error {
	p = clean(p)

	s.mu.Lock()
	defer s.mu.Unlock()

	// register parent directories
	for dir := path.Dir(p); dir != "." && dir != "/"; dir = path.Dir(dir) {
		s.dirs[dir] = true
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	s.files[p] = buf
	return nil
}

func (s *MemStore) Stat(p string) (*Entry, error) {
	p = clean(p)

	s.mu.RLock()
	defer s.mu.RUnlock()

	if data, ok := s.files[p]; ok {
		return &Entry{Path: p, Size: int64(len(data))}, nil
	}
	if p == "" || s.dirs[p] || p == "." {
		if p == "" {
			p = "."
		}
		return &Entry{Path: p, Dir: true}, nil
	}
	return nil, notFound(p)
}

func (s *MemStore) List(dir string) ([]*Entry, error) {
	dir = clean(dir)
	if dir == "" {
		dir = "."
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if dir != "." && !s.dirs[dir] {
		return nil, notFound(dir)
	}

	prefix := ""
	if dir != "." {
		prefix = dir + "/"
	}

	var dirs, files []*Entry
	seen := make(map[string]bool)

	for d := range s.dirs {
		if name, ok := childName(d, prefix); ok && !seen[name] {
			seen[name] = true
			dirs = append(dirs, &Entry{Path: prefix + name, Dir: true})
		}
	}
	for f, data := range s.files {
		name, ok := childName(f, prefix)
		if !ok {
			continue
		}
		if strings.Contains(strings.TrimPrefix(f, prefix), "/") {
			continue // file lives deeper, its parent dir is in s.dirs
		}
		if !seen[name] {
			seen[name] = true
			files = append(files, &Entry{Path: f, Size: int64(len(data))})
		}
	}

	sort.Slice(dirs, func(i, j int) bool { return dirs[i].Path < dirs[j].Path })
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return append(dirs, files...), nil
}

// childName extracts the first path segment of p under prefix.
func childName(p, prefix string) (string, bool) {
	if prefix != "" && !strings.HasPrefix(p, prefix) {
		return "", false
	}
	rest := strings.TrimPrefix(p, prefix)
	if rest == "" || rest == "." {
		return "", false
	}
	if i := strings.Index(rest, "/"); i >= 0 {
		rest = rest[:i]
	}
	return rest, true
}

func (s *MemStore) Remove(p string) error {
	p = clean(p)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[p]; !ok {
		return notFound(p)
	}
	delete(s.files, p)
	return nil
}

func (s *MemStore) RemoveAll(p string) error {
	p = clean(p)

	s.mu.Lock()
	defer s.mu.Unlock()

	if p == "" || p == "." {
		s.files = make(map[string][]byte)
		s.dirs = map[string]bool{".": true}
		return nil
	}

	prefix := p + "/"
	for f := range s.files {
		if f == p || strings.HasPrefix(f, prefix) {
			delete(s.files, f)
		}
	}
	for d := range s.dirs {
		if d == p || strings.HasPrefix(d, prefix) {
			delete(s.dirs, d)
		}
	}
	return nil
}

// Walk visits every entry below root depth-first, directories before their
// contents.
func (s *MemStore) Walk(root string, fn func(*Entry) error) error {
	entries, err := s.List(root)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := fn(e); err != nil {
			return err
		}
		if e.Dir {
			if err := s.Walk(e.Path, fn); err != nil {
				return err
			}
		}
	}
	return nil
}
