// Package storage defines the gateway the query layer persists tables through.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/Blackdeer1524/RelDB/src/types"
)

var (
	ErrTableNotFound   = errors.New("table not found")
	ErrTableExists     = errors.New("table already exists")
	ErrVersionConflict = errors.New("table version conflict")
	ErrRowMismatch     = errors.New("row does not match schema")
	ErrSchemaInvalid   = errors.New("invalid schema")
)

type Row []types.Value

func (r Row) Copy() Row {
	c := make(Row, len(r))
	copy(c, r)
	return c
}

func CopyRows(rows []Row) []Row {
	c := make([]Row, len(rows))
	for i, r := range rows {
		c[i] = r.Copy()
	}
	return c
}

// TableHandle identifies a table at a given version. Commits through a stale
// handle fail with ErrVersionConflict.
type TableHandle struct {
	Name    string
	Schema  *Schema
	Version uint64
}

// Change is a whole-table update. Schema nil keeps the current schema; Rows
// are used only with ReplaceRows; RenameTo renames the table.
type Change struct {
	Schema      *Schema
	Rows        []Row
	ReplaceRows bool
	RenameTo    string
}

type Gateway interface {
	Lookup(ctx context.Context, name string) (TableHandle, error)
	ReadAllRows(ctx context.Context, h TableHandle) ([]Row, error)
	// Commit applies change atomically: readers observe either the table as
	// it was or the table with the whole change applied.
	Commit(ctx context.Context, h TableHandle, change Change) (TableHandle, error)
}

type Engine interface {
	Gateway

	CreateTable(ctx context.Context, name string, schema *Schema) (TableHandle, error)
	DropTable(ctx context.Context, name string) error
	ListTables(ctx context.Context) ([]string, error)
	Close() error
}

// Table is the full state of one table, used by engines to apply a Change.
type Table struct {
	Name    string
	Schema  *Schema
	Rows    []Row
	Version uint64
}

// ApplyChange validates change against cur and returns the resulting table.
// exists reports whether another table already uses a name. cur is not
// modified.
func ApplyChange(cur Table, h TableHandle, change Change, exists func(name string) bool) (Table, error) {
	if h.Version != cur.Version {
		return Table{}, fmt.Errorf("%w: %s is at version %d, handle has %d", ErrVersionConflict, cur.Name, cur.Version, h.Version)
	}

	next := Table{
		Name:    cur.Name,
		Schema:  cur.Schema,
		Rows:    cur.Rows,
		Version: cur.Version + 1,
	}

	if change.RenameTo != "" && change.RenameTo != cur.Name {
		if exists(change.RenameTo) {
			return Table{}, fmt.Errorf("%w: %s", ErrTableExists, change.RenameTo)
		}
		next.Name = change.RenameTo
	}

	if change.Schema != nil {
		next.Schema = change.Schema
	}

	if change.ReplaceRows {
		for i, r := range change.Rows {
			if err := next.Schema.ValidateRow(r); err != nil {
				return Table{}, fmt.Errorf("row %d: %w", i, err)
			}
		}
		next.Rows = CopyRows(change.Rows)
	} else if next.Schema.Len() != cur.Schema.Len() {
		return Table{}, fmt.Errorf("%w: schema width changed without a row rewrite", ErrRowMismatch)
	}

	return next, nil
}
