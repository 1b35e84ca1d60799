package filestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"github.com/zeebo/blake3"

	"github.com/Blackdeer1524/RelDB/src/storage"
)

const (
	currentVersionFile = "CURRENT"
	rowsDir            = "rows"
	zeroVersion        = uint64(0)
)

var ErrChecksumMismatch = errors.New("rows file checksum mismatch")

type tableMeta struct {
	Schema   *storage.Schema `json:"schema"`
	Version  uint64          `json:"version"`
	RowsFile string          `json:"rows_file"`
	Checksum string          `json:"checksum"`
}

// catalogData is the content of one catalog_N.json. Row contents live in
// separate files referenced by name and blake3 checksum.
type catalogData struct {
	Tables map[string]tableMeta `json:"tables"`
}

func (d *catalogData) Copy() catalogData {
	tables := make(map[string]tableMeta, len(d.Tables))
	for k, v := range d.Tables {
		tables[k] = v
	}

	return catalogData{Tables: tables}
}

func getVersionFileName(basePath string) string {
	return filepath.Join(basePath, currentVersionFile)
}

func getCatalogFilename(basePath string, v uint64) string {
	return filepath.Join(basePath, "catalog_"+strconv.FormatUint(v, 10)+".json")
}

func getRowsFilename(basePath string, name string) string {
	return filepath.Join(basePath, rowsDir, name)
}

func isFileExists(fs afero.Fs, path string) (bool, error) {
	_, err := fs.Stat(path)
	if err == nil {
		return true, nil
	}

	if os.IsNotExist(err) {
		return false, nil
	}

	return false, err
}

func checksum(data []byte) string {
	sum := blake3.Sum256(data)
	return fmt.Sprintf("%x", sum[:])
}

func writeFile(fs afero.Fs, path string, data []byte) (err error) {
	file, err := fs.OpenFile(filepath.Clean(path), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() {
		err = errors.Join(err, file.Close())
	}()

	if _, err = file.Write(data); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	if err = file.Sync(); err != nil {
		return fmt.Errorf("failed to sync %s: %w", path, err)
	}

	return nil
}

// initCatalog creates an empty catalog_0.json and a CURRENT pointing to it
// unless CURRENT already exists.
func initCatalog(fs afero.Fs, basePath string) error {
	versionFile := getVersionFileName(basePath)

	ok, err := isFileExists(fs, versionFile)
	if err != nil {
		return fmt.Errorf("failed to check existence of current version file: %w", err)
	}

	if ok {
		return nil
	}

	if err := fs.MkdirAll(filepath.Join(basePath, rowsDir), 0o750); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	data, err := json.Marshal(catalogData{Tables: map[string]tableMeta{}})
	if err != nil {
		return fmt.Errorf("failed to marshal to json: %w", err)
	}

	if err := writeFile(fs, getCatalogFilename(basePath, zeroVersion), data); err != nil {
		return err
	}

	return writeFile(fs, versionFile, []byte(strconv.FormatUint(zeroVersion, 10)))
}

func readCurrentVersion(fs afero.Fs, basePath string) (uint64, error) {
	raw, err := afero.ReadFile(fs, getVersionFileName(basePath))
	if err != nil {
		return 0, fmt.Errorf("failed to read current version file: %w", err)
	}

	v, err := strconv.ParseUint(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed current version file: %w", err)
	}

	return v, nil
}

func readCatalog(fs afero.Fs, basePath string, v uint64) (*catalogData, error) {
	raw, err := afero.ReadFile(fs, getCatalogFilename(basePath, v))
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var data catalogData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal catalog file: %w", err)
	}

	if data.Tables == nil {
		data.Tables = map[string]tableMeta{}
	}

	return &data, nil
}

func readRows(fs afero.Fs, basePath string, meta tableMeta) ([]storage.Row, error) {
	if meta.RowsFile == "" {
		return nil, nil
	}

	raw, err := afero.ReadFile(fs, getRowsFilename(basePath, meta.RowsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read rows file: %w", err)
	}

	if got := checksum(raw); got != meta.Checksum {
		return nil, fmt.Errorf("%w: %s has %s, catalog expects %s", ErrChecksumMismatch, meta.RowsFile, got, meta.Checksum)
	}

	var rows []storage.Row
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rows file: %w", err)
	}

	return rows, nil
}
