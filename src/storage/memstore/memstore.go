// Package memstore keeps tables in process memory.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Blackdeer1524/RelDB/src/storage"
)

type Store struct {
	mu     sync.RWMutex
	tables map[string]*storage.Table
}

var _ storage.Engine = &Store{}

func New() *Store {
	return &Store{tables: make(map[string]*storage.Table)}
}

func (s *Store) Lookup(_ context.Context, name string) (storage.TableHandle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tables[name]
	if !ok {
		return storage.TableHandle{}, fmt.Errorf("%w: %s", storage.ErrTableNotFound, name)
	}

	return storage.TableHandle{Name: t.Name, Schema: t.Schema, Version: t.Version}, nil
}

func (s *Store) ReadAllRows(_ context.Context, h storage.TableHandle) ([]storage.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tables[h.Name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrTableNotFound, h.Name)
	}

	if t.Version != h.Version {
		return nil, fmt.Errorf("%w: %s", storage.ErrVersionConflict, h.Name)
	}

	return storage.CopyRows(t.Rows), nil
}

// Commit swaps the table pointer under the write lock; the swap is the only
// point at which readers can observe the change.
func (s *Store) Commit(
	_ context.Context,
	h storage.TableHandle,
	change storage.Change,
) (storage.TableHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.tables[h.Name]
	if !ok {
		return storage.TableHandle{}, fmt.Errorf("%w: %s", storage.ErrTableNotFound, h.Name)
	}

	next, err := storage.ApplyChange(*cur, h, change, func(name string) bool {
		_, ok := s.tables[name]
		return ok
	})
	if err != nil {
		return storage.TableHandle{}, err
	}

	delete(s.tables, cur.Name)
	s.tables[next.Name] = &next

	return storage.TableHandle{Name: next.Name, Schema: next.Schema, Version: next.Version}, nil
}

func (s *Store) CreateTable(
	_ context.Context,
	name string,
	schema *storage.Schema,
) (storage.TableHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tables[name]; ok {
		return storage.TableHandle{}, fmt.Errorf("%w: %s", storage.ErrTableExists, name)
	}

	s.tables[name] = &storage.Table{Name: name, Schema: schema, Version: 1}
	return storage.TableHandle{Name: name, Schema: schema, Version: 1}, nil
}

func (s *Store) DropTable(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tables[name]; !ok {
		return fmt.Errorf("%w: %s", storage.ErrTableNotFound, name)
	}

	delete(s.tables, name)
	return nil
}

func (s *Store) ListTables(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	sort.Strings(names)

	return names, nil
}

func (s *Store) Close() error {
	return nil
}
