package components

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/twosixlabs/magicwand/pkg/cerrors"
	"github.com/twosixlabs/magicwand/pkg/types"
)

// Store reads and writes component configuration documents under
// <root>/<category>/<name>.json
type Store struct {
	Root string
}

// NewStore returns a store rooted at the components root
func NewStore(root string) *Store {
	return &Store{Root: root}
}

// Path returns the document location of a component
func (s *Store) Path(category, name string) string {
	return filepath.Join(s.Root, category, name+".json")
}

// Load reads a component configuration document
func (s *Store) Load(category, name string) (types.Document, error) {
	path := s.Path(category, name)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, cerrors.Config{Path: path, Reason: err.Error()}
	}
	doc := types.Document{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, cerrors.Config{Path: path, Reason: err.Error()}
	}
	return doc, nil
}

// Save writes a component configuration document, replacing it atomically
func (s *Store) Save(category, name string, doc types.Document) error {
	path := s.Path(category, name)
	raw, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return cerrors.Config{Path: path, Reason: err.Error()}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return cerrors.Config{Path: path, Reason: err.Error()}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(raw, '\n'), 0644); err != nil {
		return cerrors.Config{Path: path, Reason: err.Error()}
	}
	if err := os.Rename(tmp, path); err != nil {
		return cerrors.Config{Path: path, Reason: err.Error()}
	}
	return nil
}
