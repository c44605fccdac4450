package cachestore

import (
	"fmt"
	"sync"

	"github.com/solostec/smf-gateway/internal/gwerr"
)

// Store is a named set of tables.
type Store struct {
	mu     sync.Mutex
	tables map[string]*Table
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{tables: make(map[string]*Table)}
}

// CreateTable registers a new table under meta.Name. Re-registering an
// existing name is an error.
func (s *Store) CreateTable(meta Meta) (*Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tables[meta.Name]; exists {
		return nil, fmt.Errorf("cachestore: table %q already exists: %w", meta.Name, gwerr.ErrConfig)
	}
	t := newTable(meta)
	s.tables[meta.Name] = t
	return t, nil
}

// Table looks up a table by name.
func (s *Store) Table(name string) (*Table, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[name]
	return t, ok
}

// Tables returns the names of every registered table.
func (s *Store) Tables() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	return names
}
