package query

import (
	"context"
	"errors"

	"github.com/Blackdeer1524/RelDB/src/dberr"
	"github.com/Blackdeer1524/RelDB/src/pkg/assert"
	"github.com/Blackdeer1524/RelDB/src/pkg/common"
	"github.com/Blackdeer1524/RelDB/src/query/ast"
	"github.com/Blackdeer1524/RelDB/src/storage"
	"github.com/Blackdeer1524/RelDB/src/txns"
	"github.com/Blackdeer1524/RelDB/src/types"
)

func (e *Executor) createTable(ctx context.Context, stmt ast.CreateTable) (Payload, error) {
	payload := Payload{Kind: PayloadCreate, Table: stmt.Name}

	if err := e.checkColumnDefs(ctx, stmt.Columns); err != nil {
		return Payload{}, err
	}

	schema, err := storage.NewSchema(stmt.Columns)
	if err != nil {
		return Payload{}, err
	}

	err = e.withLocks(ctx, txns.SimpleLockExclusive, []string{stmt.Name}, func(common.TxnID) error {
		_, err := e.se.CreateTable(ctx, stmt.Name, schema)
		switch {
		case errors.Is(err, storage.ErrTableExists):
			if stmt.IfNotExists {
				return nil
			}
			return dberr.AlreadyExistingTable(stmt.Name)
		case err != nil:
			return dberr.Storage(err)
		}
		return nil
	})
	if err != nil {
		return Payload{}, err
	}

	return payload, nil
}

// checkColumnDefs rejects definitions that could never hold a row: repeated
// names, UNIQUE on unsupported types and defaults that are not stateless or
// do not fit the column.
func (e *Executor) checkColumnDefs(ctx context.Context, defs []ast.ColumnDef) error {
	seen := make(map[string]struct{}, len(defs))
	for _, def := range defs {
		if _, ok := seen[def.Name]; ok {
			return dberr.AlreadyExistingColumn(def.Name)
		}
		seen[def.Name] = struct{}{}

		if def.Unique != nil && !def.DataType.SupportsUnique() {
			return dberr.UnsupportedDataTypeForUniqueColumn(def.Name, def.DataType)
		}

		if def.Default == nil {
			continue
		}

		if _, err := e.materializeDefault(ctx, def); err != nil {
			return err
		}
	}

	return nil
}

// materializeDefault evaluates def's default, or NULL when it has none, and
// casts it to the column type.
func (e *Executor) materializeDefault(ctx context.Context, def ast.ColumnDef) (types.Value, error) {
	v := types.Null
	if def.Default != nil {
		var err error
		if v, err = e.eval.EvaluateStateless(ctx, def.Default); err != nil {
			if _, ok := dberr.KindOf(err); ok {
				return types.Null, err
			}
			return types.Null, dberr.IncompatibleDefaultValue(def.Name, def.DataType, err)
		}
	}

	v, err := types.Coerce(v, def.DataType)
	if err != nil {
		return types.Null, dberr.IncompatibleDefaultValue(def.Name, def.DataType, err)
	}

	if v.IsNull() && !def.Nullable {
		return types.Null, dberr.NullValueOnNotNullField(def.Name)
	}

	return v, nil
}

func (e *Executor) dropTable(ctx context.Context, stmt ast.DropTable) (Payload, error) {
	err := e.withLocks(ctx, txns.SimpleLockExclusive, []string{stmt.Name}, func(common.TxnID) error {
		err := e.se.DropTable(ctx, stmt.Name)
		switch {
		case errors.Is(err, storage.ErrTableNotFound):
			if stmt.IfExists {
				return nil
			}
			return dberr.TableNotFound(stmt.Name)
		case err != nil:
			return dberr.Storage(err)
		}
		return nil
	})
	if err != nil {
		return Payload{}, err
	}

	return Payload{Kind: PayloadDropTable, Table: stmt.Name}, nil
}

// alterTable holds an exclusive lock on the table, and on the target name for
// RENAME TO, from lookup until the rewrite has committed.
func (e *Executor) alterTable(ctx context.Context, stmt ast.AlterTable) (Payload, error) {
	tables := []string{stmt.Name}
	rename, isRename := stmt.Operation.(ast.RenameTable)
	if isRename {
		tables = append(tables, rename.NewName)
	}

	var next storage.TableHandle
	err := e.withLocks(ctx, txns.SimpleLockExclusive, tables, func(txnID common.TxnID) (err error) {
		defer func() {
			if err == nil {
				e.logger.Infow("altered table",
					"table", stmt.Name,
					"operation", stmt.Operation.String(),
					"txn_id", txnID,
					"version", next.Version,
				)
				return
			}

			kind, _ := dberr.KindOf(err)
			e.logger.Warnw("alter table failed",
				"table", stmt.Name,
				"operation", stmt.Operation.String(),
				"txn_id", txnID,
				"kind", kind.String(),
				"error", err,
			)
		}()

		h, err := e.lookup(ctx, stmt.Name)
		if err != nil {
			return err
		}

		if isRename {
			_, err := e.se.Lookup(ctx, rename.NewName)
			switch {
			case err == nil:
				return dberr.AlreadyExistingTable(rename.NewName)
			case !errors.Is(err, storage.ErrTableNotFound):
				return dberr.Storage(err)
			}
		}

		m, err := e.validator.Validate(ctx, h.Schema, stmt.Operation)
		if err != nil {
			return err
		}

		for _, name := range tables {
			mode, ok := e.locker.Held(txnID, name)
			assert.Assert(ok && mode == txns.SimpleLockExclusive, "txn %d rewrites %s without an exclusive lock", txnID, name)
		}

		next, err = e.rewriter.Apply(ctx, h, m)
		return err
	})
	if err != nil {
		return Payload{}, err
	}

	return Payload{Kind: PayloadAlterTable, Table: next.Name}, nil
}
