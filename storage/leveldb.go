package storage

import (
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Key prefixes separating file entries from directory markers.
const (
	levelFilePrefix = "f:"
	levelDirPrefix  = "d:"
)

// LevelDB keeps the sealed shard tree inside a LevelDB database instead of
// loose files. Paths map to keys, so operators can keep all node state under
// a single managed database directory.
type LevelDB struct {
	db *leveldb.DB
}

// NewLevelDB creates or opens a LevelDB-backed store at the given path.
func NewLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &LevelDB{db: db}, nil
}

func (s *LevelDB) Read(p string) ([]byte, error) {
	data, err := s.db.Get([]byte(levelFilePrefix+path.Clean(p)), nil)
	if err == leveldb.ErrNotFound {
		return nil, &fs.PathError{Op: "read", Path: p, Err: fs.ErrNotExist}
	}
	return data, err
}

func (s *LevelDB) Write(p string, data []byte) error {
	return s.db.Put([]byte(levelFilePrefix+path.Clean(p)), data, nil)
}

func (s *LevelDB) Exists(p string) bool {
	p = path.Clean(p)
	if ok, _ := s.db.Has([]byte(levelFilePrefix+p), nil); ok {
		return true
	}
	ok, _ := s.db.Has([]byte(levelDirPrefix+p), nil)
	return ok
}

func (s *LevelDB) EnsureDir(p string) error {
	for p = path.Clean(p); p != "." && p != "/"; p = path.Dir(p) {
		if err := s.db.Put([]byte(levelDirPrefix+p), nil, nil); err != nil {
			return err
		}
	}
	return nil
}

func (s *LevelDB) List(dir string) ([]string, error) {
	dir = path.Clean(dir)
	if ok, err := s.db.Has([]byte(levelDirPrefix+dir), nil); err != nil {
		return nil, err
	} else if !ok {
		return nil, &fs.PathError{Op: "list", Path: dir, Err: fs.ErrNotExist}
	}

	seen := make(map[string]struct{})
	for _, prefix := range []string{levelFilePrefix, levelDirPrefix} {
		iter := s.db.NewIterator(util.BytesPrefix([]byte(prefix+dir+"/")), nil)
		for iter.Next() {
			rel := strings.TrimPrefix(string(iter.Key()), prefix+dir+"/")
			if name, _, _ := strings.Cut(rel, "/"); name != "" {
				seen[name] = struct{}{}
			}
		}
		err := iter.Error()
		iter.Release()
		if err != nil {
			return nil, err
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Close closes the underlying database.
func (s *LevelDB) Close() {
	s.db.Close()
}
