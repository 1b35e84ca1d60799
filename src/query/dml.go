package query

import (
	"context"
	"fmt"

	"github.com/Blackdeer1524/RelDB/src/dberr"
	"github.com/Blackdeer1524/RelDB/src/pkg/common"
	"github.com/Blackdeer1524/RelDB/src/query/ast"
	"github.com/Blackdeer1524/RelDB/src/storage"
	"github.com/Blackdeer1524/RelDB/src/txns"
	"github.com/Blackdeer1524/RelDB/src/types"
)

func (e *Executor) insert(ctx context.Context, stmt ast.Insert) (Payload, error) {
	err := e.withLocks(ctx, txns.SimpleLockExclusive, []string{stmt.Table}, func(common.TxnID) error {
		h, err := e.lookup(ctx, stmt.Table)
		if err != nil {
			return err
		}

		positions, err := insertPositions(h, stmt.Columns)
		if err != nil {
			return err
		}

		newRows := make([]storage.Row, 0, len(stmt.Rows))
		for i, exprs := range stmt.Rows {
			if len(exprs) != len(positions) {
				return dberr.WrongColumnCount(stmt.Table,
					fmt.Sprintf("row %d has %d values, expected %d", i+1, len(exprs), len(positions)))
			}

			row, err := e.buildRow(ctx, h.Schema, positions, exprs)
			if err != nil {
				return err
			}
			newRows = append(newRows, row)
		}

		rows, err := e.se.ReadAllRows(ctx, h)
		if err != nil {
			return dberr.Storage(err)
		}
		rows = append(rows, newRows...)

		if err := checkUnique(h.Schema, rows); err != nil {
			return err
		}

		if _, err := e.se.Commit(ctx, h, storage.Change{Rows: rows, ReplaceRows: true}); err != nil {
			return dberr.Storage(err)
		}
		return nil
	})
	if err != nil {
		return Payload{}, err
	}

	return Payload{Kind: PayloadInsert, Table: stmt.Table, Affected: len(stmt.Rows)}, nil
}

// insertPositions maps each listed column to its schema position; -1 marks
// a column that is absent from the list.
func insertPositions(h storage.TableHandle, columns []string) ([]int, error) {
	if columns == nil {
		positions := make([]int, h.Schema.Len())
		for i := range positions {
			positions[i] = i
		}
		return positions, nil
	}

	seen := make(map[int]struct{}, len(columns))
	positions := make([]int, 0, len(columns))
	for _, name := range columns {
		i, ok := h.Schema.Lookup(name)
		if !ok {
			return nil, dberr.ColumnNotFound(name)
		}
		if _, dup := seen[i]; dup {
			return nil, dberr.WrongColumnCount(h.Name, fmt.Sprintf("column %s listed twice", name))
		}
		seen[i] = struct{}{}
		positions = append(positions, i)
	}

	return positions, nil
}

// buildRow evaluates exprs into their positions and fills the remaining
// columns from defaults.
func (e *Executor) buildRow(
	ctx context.Context,
	schema *storage.Schema,
	positions []int,
	exprs []ast.Expr,
) (storage.Row, error) {
	row := make(storage.Row, schema.Len())
	given := make([]bool, schema.Len())

	for j, pos := range positions {
		def := schema.Column(pos)

		v, err := e.eval.EvaluateStateless(ctx, exprs[j])
		if err != nil {
			if _, ok := dberr.KindOf(err); ok {
				return nil, err
			}
			return nil, dberr.IncompatibleValue(def.Name, def.DataType, err)
		}

		if v, err = types.Coerce(v, def.DataType); err != nil {
			return nil, dberr.IncompatibleValue(def.Name, def.DataType, err)
		}

		row[pos] = v
		given[pos] = true
	}

	for i, def := range schema.Columns() {
		if !given[i] {
			v, err := e.materializeDefault(ctx, def)
			if err != nil {
				return nil, err
			}
			row[i] = v
		}

		if row[i].IsNull() && !def.Nullable {
			return nil, dberr.NullValueOnNotNullField(def.Name)
		}
	}

	return row, nil
}

func checkUnique(schema *storage.Schema, rows []storage.Row) error {
	for i, def := range schema.Columns() {
		if def.Unique == nil {
			continue
		}

		seen := make(map[string]struct{}, len(rows))
		for _, row := range rows {
			v := row[i]
			if v.IsNull() {
				continue
			}

			key := v.Key()
			if _, dup := seen[key]; dup {
				return dberr.DuplicateUniqueValue(def.Name, v)
			}
			seen[key] = struct{}{}
		}
	}

	return nil
}

type rowScope struct {
	schema *storage.Schema
	row    storage.Row
}

func (s rowScope) Column(name string) (types.Value, bool) {
	i, ok := s.schema.Lookup(name)
	if !ok {
		return types.Null, false
	}
	return s.row[i], true
}

func (e *Executor) selectRows(ctx context.Context, stmt ast.Select) (Payload, error) {
	payload := Payload{Kind: PayloadSelect, Table: stmt.From}

	err := e.withLocks(ctx, txns.SimpleLockShared, []string{stmt.From}, func(common.TxnID) error {
		h, err := e.lookup(ctx, stmt.From)
		if err != nil {
			return err
		}

		rows, err := e.se.ReadAllRows(ctx, h)
		if err != nil {
			return dberr.Storage(err)
		}

		payload.Columns = projectionNames(h.Schema, stmt.Projection)
		payload.Rows = make([]storage.Row, 0, len(rows))

		for _, row := range rows {
			if stmt.Limit != nil && int64(len(payload.Rows)) >= *stmt.Limit {
				break
			}

			scope := rowScope{schema: h.Schema, row: row}
			if stmt.Where != nil {
				ok, err := e.matches(ctx, stmt.Where, scope)
				if err != nil {
					return err
				}
				if !ok {
					continue
				}
			}

			if stmt.Projection == nil {
				payload.Rows = append(payload.Rows, row)
				continue
			}

			out := make(storage.Row, len(stmt.Projection))
			for i, expr := range stmt.Projection {
				if out[i], err = e.eval.Evaluate(ctx, expr, scope); err != nil {
					return err
				}
			}
			payload.Rows = append(payload.Rows, out)
		}

		return nil
	})
	if err != nil {
		return Payload{}, err
	}

	return payload, nil
}

// matches reports whether where is TRUE for the row. NULL and FALSE filter
// the row out.
func (e *Executor) matches(ctx context.Context, where ast.Expr, scope rowScope) (bool, error) {
	v, err := e.eval.Evaluate(ctx, where, scope)
	if err != nil {
		return false, err
	}

	if v.IsNull() {
		return false, nil
	}
	if v.Type != types.Boolean {
		return false, dberr.IncompatibleValue("WHERE", types.Boolean, types.ErrIncompatibleType)
	}

	return v.B, nil
}

func projectionNames(schema *storage.Schema, projection []ast.Expr) []string {
	if projection == nil {
		return schema.Names()
	}

	names := make([]string, len(projection))
	for i, expr := range projection {
		switch x := expr.(type) {
		case ast.Identifier:
			names[i] = x.Name
		case ast.CompoundIdentifier:
			names[i] = x.Parts[len(x.Parts)-1]
		default:
			names[i] = x.String()
		}
	}

	return names
}
