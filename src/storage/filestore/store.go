// Package filestore persists tables as versioned JSON catalogs on an afero
// filesystem.
//
// Every commit writes new files only: a fresh rows file for the changed
// table and catalog_{N+1}.json. Rewriting CURRENT to N+1 (written to a
// temporary file and renamed over CURRENT) is the single point at which the
// commit becomes visible. Files of superseded versions are removed after that
// on a best-effort basis.
package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/Blackdeer1524/RelDB/src"
	"github.com/Blackdeer1524/RelDB/src/storage"
)

type Store struct {
	fs       afero.Fs
	basePath string
	logger   src.Logger

	mu             sync.RWMutex
	data           *catalogData
	currentVersion uint64
}

var _ storage.Engine = &Store{}

// Open initializes basePath if it holds no catalog yet and loads the current
// catalog version.
func Open(fs afero.Fs, basePath string, logger src.Logger) (*Store, error) {
	if err := initCatalog(fs, basePath); err != nil {
		return nil, fmt.Errorf("failed to init catalog: %w", err)
	}

	v, err := readCurrentVersion(fs, basePath)
	if err != nil {
		return nil, err
	}

	data, err := readCatalog(fs, basePath, v)
	if err != nil {
		return nil, err
	}

	return &Store{
		fs:             fs,
		basePath:       basePath,
		logger:         logger,
		data:           data,
		currentVersion: v,
	}, nil
}

func (s *Store) handle(name string, meta tableMeta) storage.TableHandle {
	return storage.TableHandle{Name: name, Schema: meta.Schema, Version: meta.Version}
}

func (s *Store) Lookup(_ context.Context, name string) (storage.TableHandle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	meta, ok := s.data.Tables[name]
	if !ok {
		return storage.TableHandle{}, fmt.Errorf("%w: %s", storage.ErrTableNotFound, name)
	}

	return s.handle(name, meta), nil
}

func (s *Store) ReadAllRows(_ context.Context, h storage.TableHandle) ([]storage.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	meta, ok := s.data.Tables[h.Name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrTableNotFound, h.Name)
	}

	if meta.Version != h.Version {
		return nil, fmt.Errorf("%w: %s", storage.ErrVersionConflict, h.Name)
	}

	return readRows(s.fs, s.basePath, meta)
}

func (s *Store) Commit(
	_ context.Context,
	h storage.TableHandle,
	change storage.Change,
) (storage.TableHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, ok := s.data.Tables[h.Name]
	if !ok {
		return storage.TableHandle{}, fmt.Errorf("%w: %s", storage.ErrTableNotFound, h.Name)
	}

	cur := storage.Table{Name: h.Name, Schema: meta.Schema, Version: meta.Version}
	next, err := storage.ApplyChange(cur, h, change, func(name string) bool {
		_, ok := s.data.Tables[name]
		return ok
	})
	if err != nil {
		return storage.TableHandle{}, err
	}

	nextMeta := tableMeta{
		Schema:   next.Schema,
		Version:  next.Version,
		RowsFile: meta.RowsFile,
		Checksum: meta.Checksum,
	}

	var created []string
	if change.ReplaceRows {
		nextMeta.RowsFile, nextMeta.Checksum, err = s.writeRows(next.Rows)
		if err != nil {
			return storage.TableHandle{}, err
		}
		created = append(created, getRowsFilename(s.basePath, nextMeta.RowsFile))
	}

	data := s.data.Copy()
	delete(data.Tables, h.Name)
	data.Tables[next.Name] = nextMeta

	if err := s.switchVersion(&data, created); err != nil {
		return storage.TableHandle{}, err
	}

	if change.ReplaceRows && meta.RowsFile != "" {
		s.removeBestEffort(getRowsFilename(s.basePath, meta.RowsFile))
	}

	return s.handle(next.Name, nextMeta), nil
}

func (s *Store) CreateTable(
	_ context.Context,
	name string,
	schema *storage.Schema,
) (storage.TableHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.Tables[name]; ok {
		return storage.TableHandle{}, fmt.Errorf("%w: %s", storage.ErrTableExists, name)
	}

	meta := tableMeta{Schema: schema, Version: 1}
	data := s.data.Copy()
	data.Tables[name] = meta

	if err := s.switchVersion(&data, nil); err != nil {
		return storage.TableHandle{}, err
	}

	return s.handle(name, meta), nil
}

func (s *Store) DropTable(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, ok := s.data.Tables[name]
	if !ok {
		return fmt.Errorf("%w: %s", storage.ErrTableNotFound, name)
	}

	data := s.data.Copy()
	delete(data.Tables, name)

	if err := s.switchVersion(&data, nil); err != nil {
		return err
	}

	if meta.RowsFile != "" {
		s.removeBestEffort(getRowsFilename(s.basePath, meta.RowsFile))
	}

	return nil
}

func (s *Store) ListTables(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.data.Tables))
	for name := range s.data.Tables {
		names = append(names, name)
	}
	sort.Strings(names)

	return names, nil
}

func (s *Store) Close() error {
	return nil
}

func (s *Store) writeRows(rows []storage.Row) (name string, sum string, err error) {
	if rows == nil {
		rows = []storage.Row{}
	}

	raw, err := json.Marshal(rows)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal rows: %w", err)
	}

	name = uuid.NewString() + ".json"
	if err := writeFile(s.fs, getRowsFilename(s.basePath, name), raw); err != nil {
		s.removeIfExists(getRowsFilename(s.basePath, name))
		return "", "", err
	}

	return name, checksum(raw), nil
}

// switchVersion persists data as the next catalog version and points CURRENT
// at it. On failure every file listed in created, and the new catalog file,
// are removed and the in-memory state is left untouched. Must be called with
// s.mu held.
func (s *Store) switchVersion(data *catalogData, created []string) (err error) {
	nVersion := s.currentVersion + 1
	catalogFile := getCatalogFilename(s.basePath, nVersion)
	tmpVersionFile := getVersionFileName(s.basePath) + ".tmp"

	defer func() {
		if err == nil {
			return
		}

		for _, path := range append(created, catalogFile, tmpVersionFile) {
			s.removeIfExists(path)
		}
	}()

	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal catalog: %w", err)
	}

	if err = writeFile(s.fs, catalogFile, raw); err != nil {
		return err
	}

	if err = writeFile(s.fs, tmpVersionFile, []byte(strconv.FormatUint(nVersion, 10))); err != nil {
		return err
	}

	if err = s.fs.Rename(tmpVersionFile, getVersionFileName(s.basePath)); err != nil {
		return fmt.Errorf("failed to switch catalog version: %w", err)
	}

	s.removeBestEffort(getCatalogFilename(s.basePath, s.currentVersion))

	s.data = data
	s.currentVersion = nVersion

	return nil
}

func (s *Store) removeIfExists(path string) {
	ok, err := isFileExists(s.fs, path)
	if err != nil || !ok {
		return
	}

	if err := s.fs.Remove(path); err != nil {
		s.logger.Warnw("failed to clean up after aborted commit", "path", path, "error", err)
	}
}

func (s *Store) removeBestEffort(path string) {
	if err := s.fs.Remove(path); err != nil {
		s.logger.Warnw("failed to remove superseded file", "path", path, "error", err)
	}
}
