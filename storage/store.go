package storage

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"sync"
)

// Store is a generic interface over the tree that holds sealed shard state.
// It keeps the encode/encrypt pipeline independent of real file I/O so the
// node can run against the local filesystem, a managed key-value store, or an
// in-memory map in tests.
//
// Paths are slash-separated and interpreted relative to whatever root the
// implementation was opened with. Write is a full overwrite of the entry; no
// durability barrier beyond the single write is provided.
type Store interface {
	// Read returns the full content of the entry at path. Reading a path
	// that does not exist fails with an error matching fs.ErrNotExist.
	Read(path string) ([]byte, error)
	// Write replaces the content of the entry at path, creating it if needed.
	Write(path string, data []byte) error
	// Exists reports whether an entry is present at path.
	Exists(path string) bool
	// EnsureDir creates the directory at path. Creating an existing
	// directory is not an error.
	EnsureDir(path string) error
	// List returns the names of the immediate children of dir. Listing a
	// directory that does not exist fails with an error matching
	// fs.ErrNotExist.
	List(dir string) ([]string, error)
	// Close releases any resources held by the store.
	Close()
}

// --- Filesystem store (production default) ---

// Filesystem serves Store directly from the operating system file tree rooted
// at a base directory.
type Filesystem struct {
	root string
}

// NewFilesystem returns a store rooted at the given directory. The directory
// itself is not created until something is written below it.
func NewFilesystem(root string) *Filesystem {
	return &Filesystem{root: root}
}

func (s *Filesystem) abs(p string) string {
	return filepath.Join(s.root, filepath.FromSlash(p))
}

func (s *Filesystem) Read(p string) ([]byte, error) {
	return os.ReadFile(s.abs(p))
}

func (s *Filesystem) Write(p string, data []byte) error {
	return os.WriteFile(s.abs(p), data, 0o600)
}

func (s *Filesystem) Exists(p string) bool {
	_, err := os.Stat(s.abs(p))
	return err == nil
}

func (s *Filesystem) EnsureDir(p string) error {
	return os.MkdirAll(s.abs(p), 0o700)
}

func (s *Filesystem) List(dir string) ([]string, error) {
	entries, err := os.ReadDir(s.abs(dir))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names, nil
}

// Close satisfies the Store interface; the filesystem store holds no handles.
func (s *Filesystem) Close() {}

// --- In-memory store (for testing) ---

// MemStore is an in-memory Store used by tests.
type MemStore struct {
	mu    sync.RWMutex
	files map[string][]byte
	dirs  map[string]struct{}
}

func NewMemStore() *MemStore {
	return &MemStore{
		files: make(map[string][]byte),
		dirs:  make(map[string]struct{}),
	}
}

func (s *MemStore) Read(p string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.files[path.Clean(p)]
	if !ok {
		return nil, &fs.PathError{Op: "read", Path: p, Err: fs.ErrNotExist}
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (s *MemStore) Write(p string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]byte, len(data))
	copy(stored, data)
	s.files[path.Clean(p)] = stored
	return nil
}

func (s *MemStore) Exists(p string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p = path.Clean(p)
	if _, ok := s.files[p]; ok {
		return true
	}
	_, ok := s.dirs[p]
	return ok
}

func (s *MemStore) EnsureDir(p string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for p = path.Clean(p); p != "." && p != "/"; p = path.Dir(p) {
		s.dirs[p] = struct{}{}
	}
	return nil
}

func (s *MemStore) List(dir string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dir = path.Clean(dir)
	if _, ok := s.dirs[dir]; !ok {
		return nil, &fs.PathError{Op: "list", Path: dir, Err: fs.ErrNotExist}
	}
	seen := make(map[string]struct{})
	collect := func(p string) {
		rel, found := childOf(dir, p)
		if found {
			seen[rel] = struct{}{}
		}
	}
	for p := range s.files {
		collect(p)
	}
	for p := range s.dirs {
		collect(p)
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Close satisfies the Store interface for MemStore.
func (s *MemStore) Close() {}

// childOf returns the name of the immediate child of dir on the way to p.
func childOf(dir, p string) (string, bool) {
	for {
		parent := path.Dir(p)
		if parent == p {
			return "", false
		}
		if parent == dir {
			return path.Base(p), true
		}
		p = parent
	}
}
