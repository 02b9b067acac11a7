package encode

import (
	"os"
	"path/filepath"
)

// CacheStore maps query keys to fact and formula locations.
// Entries are only ever added; nothing checks whether a cached formula is
// still current with the rule files.
type CacheStore interface {
	FactPath(k Key) string
	FormulaPath(k Key) string
	// Lookup returns the formula path when a non-empty formula is cached.
	Lookup(k Key) (string, bool)
}

// FileStore keeps fact files under <Root>/bul and formulas under <Root>/cnf.
type FileStore struct {
	Root string
}

// NewFileStore returns a FileStore rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{Root: dir}
}

func (s *FileStore) FactPath(k Key) string {
	return filepath.Join(s.Root, "bul", k.Stem()+".bul")
}

func (s *FileStore) FormulaPath(k Key) string {
	return filepath.Join(s.Root, "cnf", k.Stem()+".cnf")
}

func (s *FileStore) Lookup(k Key) (string, bool) {
	path := s.FormulaPath(k)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() || info.Size() == 0 {
		return "", false
	}
	return path, true
}
