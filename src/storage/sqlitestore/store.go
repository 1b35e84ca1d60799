// Package sqlitestore keeps tables inside a SQLite database. Each commit is a
// single SQL transaction.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/Blackdeer1524/RelDB/src"
	"github.com/Blackdeer1524/RelDB/src/storage"
)

const driverName = "sqlite"

const schemaDDL = `
CREATE TABLE IF NOT EXISTS reldb_tables (
	name        TEXT PRIMARY KEY,
	schema_json TEXT NOT NULL,
	version     INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS reldb_rows (
	table_name TEXT NOT NULL,
	pos        INTEGER NOT NULL,
	data       TEXT NOT NULL,
	PRIMARY KEY (table_name, pos)
);
`

type Store struct {
	db     *sql.DB
	logger src.Logger
}

var _ storage.Engine = &Store{}

func Open(ctx context.Context, path string, logger src.Logger) (*Store, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// a single connection serializes writers and keeps :memory: databases shared
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schemaDDL); err != nil {
		return nil, errors.Join(fmt.Errorf("failed to create catalog tables: %w", err), db.Close())
	}

	return &Store{db: db, logger: logger}, nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func lookup(ctx context.Context, q querier, name string) (storage.TableHandle, error) {
	var (
		raw     string
		version uint64
	)

	err := q.QueryRowContext(ctx,
		`SELECT schema_json, version FROM reldb_tables WHERE name = ?`, name,
	).Scan(&raw, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.TableHandle{}, fmt.Errorf("%w: %s", storage.ErrTableNotFound, name)
	}
	if err != nil {
		return storage.TableHandle{}, fmt.Errorf("failed to look up table %s: %w", name, err)
	}

	var schema storage.Schema
	if err := json.Unmarshal([]byte(raw), &schema); err != nil {
		return storage.TableHandle{}, fmt.Errorf("failed to unmarshal schema of %s: %w", name, err)
	}

	return storage.TableHandle{Name: name, Schema: &schema, Version: version}, nil
}

func (s *Store) Lookup(ctx context.Context, name string) (storage.TableHandle, error) {
	return lookup(ctx, s.db, name)
}

func (s *Store) ReadAllRows(ctx context.Context, h storage.TableHandle) (rows []storage.Row, err error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to begin read: %w", err)
	}
	defer func() {
		err = errors.Join(err, tx.Rollback())
	}()

	cur, err := lookup(ctx, tx, h.Name)
	if err != nil {
		return nil, err
	}

	if cur.Version != h.Version {
		return nil, fmt.Errorf("%w: %s", storage.ErrVersionConflict, h.Name)
	}

	res, err := tx.QueryContext(ctx,
		`SELECT data FROM reldb_rows WHERE table_name = ? ORDER BY pos`, h.Name,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows of %s: %w", h.Name, err)
	}
	defer func() {
		err = errors.Join(err, res.Close())
	}()

	for res.Next() {
		var raw string
		if err := res.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		var row storage.Row
		if err := json.Unmarshal([]byte(raw), &row); err != nil {
			return nil, fmt.Errorf("failed to unmarshal row: %w", err)
		}
		rows = append(rows, row)
	}

	if err := res.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows of %s: %w", h.Name, err)
	}

	return rows, nil
}

// Commit runs the whole change in one SQL transaction; the COMMIT is the
// linearization point.
func (s *Store) Commit(
	ctx context.Context,
	h storage.TableHandle,
	change storage.Change,
) (_ storage.TableHandle, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storage.TableHandle{}, fmt.Errorf("failed to begin commit: %w", err)
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, tx.Rollback())
		}
	}()

	cur, err := lookup(ctx, tx, h.Name)
	if err != nil {
		return storage.TableHandle{}, err
	}

	next, err := storage.ApplyChange(
		storage.Table{Name: cur.Name, Schema: cur.Schema, Version: cur.Version},
		h,
		change,
		func(name string) bool {
			_, lerr := lookup(ctx, tx, name)
			return lerr == nil
		},
	)
	if err != nil {
		return storage.TableHandle{}, err
	}

	schemaJSON, err := json.Marshal(next.Schema)
	if err != nil {
		return storage.TableHandle{}, fmt.Errorf("failed to marshal schema: %w", err)
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE reldb_tables SET name = ?, schema_json = ?, version = ? WHERE name = ?`,
		next.Name, string(schemaJSON), next.Version, h.Name,
	); err != nil {
		return storage.TableHandle{}, fmt.Errorf("failed to update table %s: %w", h.Name, err)
	}

	if change.ReplaceRows {
		if _, err = tx.ExecContext(ctx, `DELETE FROM reldb_rows WHERE table_name = ?`, h.Name); err != nil {
			return storage.TableHandle{}, fmt.Errorf("failed to delete rows of %s: %w", h.Name, err)
		}

		if err = insertRows(ctx, tx, next.Name, next.Rows); err != nil {
			return storage.TableHandle{}, err
		}
	} else if next.Name != h.Name {
		if _, err = tx.ExecContext(ctx,
			`UPDATE reldb_rows SET table_name = ? WHERE table_name = ?`, next.Name, h.Name,
		); err != nil {
			return storage.TableHandle{}, fmt.Errorf("failed to move rows of %s: %w", h.Name, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return storage.TableHandle{}, fmt.Errorf("failed to commit: %w", err)
	}

	return storage.TableHandle{Name: next.Name, Schema: next.Schema, Version: next.Version}, nil
}

func insertRows(ctx context.Context, tx *sql.Tx, table string, rows []storage.Row) (err error) {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO reldb_rows (table_name, pos, data) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare row insert: %w", err)
	}
	defer func() {
		err = errors.Join(err, stmt.Close())
	}()

	for i, r := range rows {
		raw, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("failed to marshal row %d: %w", i, err)
		}

		if _, err := stmt.ExecContext(ctx, table, i, string(raw)); err != nil {
			return fmt.Errorf("failed to insert row %d: %w", i, err)
		}
	}

	return nil
}

func (s *Store) CreateTable(
	ctx context.Context,
	name string,
	schema *storage.Schema,
) (storage.TableHandle, error) {
	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return storage.TableHandle{}, fmt.Errorf("failed to marshal schema: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO reldb_tables (name, schema_json, version) VALUES (?, ?, 1) ON CONFLICT (name) DO NOTHING`,
		name, string(schemaJSON),
	)
	if err != nil {
		return storage.TableHandle{}, fmt.Errorf("failed to create table %s: %w", name, err)
	}

	if n, err := res.RowsAffected(); err != nil {
		return storage.TableHandle{}, fmt.Errorf("failed to create table %s: %w", name, err)
	} else if n == 0 {
		return storage.TableHandle{}, fmt.Errorf("%w: %s", storage.ErrTableExists, name)
	}

	return storage.TableHandle{Name: name, Schema: schema, Version: 1}, nil
}

func (s *Store) DropTable(ctx context.Context, name string) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin drop: %w", err)
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, tx.Rollback())
		}
	}()

	res, err := tx.ExecContext(ctx, `DELETE FROM reldb_tables WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to drop table %s: %w", name, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to drop table %s: %w", name, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", storage.ErrTableNotFound, name)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM reldb_rows WHERE table_name = ?`, name); err != nil {
		return fmt.Errorf("failed to drop rows of %s: %w", name, err)
	}

	return tx.Commit()
}

func (s *Store) ListTables(ctx context.Context) (names []string, err error) {
	res, err := s.db.QueryContext(ctx, `SELECT name FROM reldb_tables ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer func() {
		err = errors.Join(err, res.Close())
	}()

	for res.Next() {
		var name string
		if err := res.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		names = append(names, name)
	}

	return names, res.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
