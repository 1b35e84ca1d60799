package alter

import (
	"context"
	"errors"
	"fmt"

	"github.com/Blackdeer1524/RelDB/src/dberr"
	"github.com/Blackdeer1524/RelDB/src/query/ast"
	"github.com/Blackdeer1524/RelDB/src/query/eval"
	"github.com/Blackdeer1524/RelDB/src/storage"
	"github.com/Blackdeer1524/RelDB/src/types"
)

type Validator struct {
	eval eval.StatelessEvaluator
}

func NewValidator(ev eval.StatelessEvaluator) *Validator {
	return &Validator{eval: ev}
}

// Validate checks op against schema without touching stored rows.
//
// For ADD COLUMN the checks run in a fixed order and the first failure wins:
// name collision, NOT NULL without default, default evaluation, UNIQUE type
// eligibility, default coercion and nullability.
func (v *Validator) Validate(
	ctx context.Context,
	schema *storage.Schema,
	op ast.AlterTableOperation,
) (Mutation, error) {
	switch op := op.(type) {
	case ast.RenameTable:
		return RenameTableMutation{NewName: op.NewName}, nil
	case ast.RenameColumn:
		return v.renameColumn(schema, op)
	case ast.AddColumn:
		return v.addColumn(ctx, schema, op.Column)
	case ast.DropColumn:
		return v.dropColumn(schema, op)
	}

	panic(fmt.Sprintf("unexpected alter table operation %T", op))
}

func (v *Validator) renameColumn(schema *storage.Schema, op ast.RenameColumn) (Mutation, error) {
	i, ok := schema.Lookup(op.OldName)
	if !ok {
		return nil, dberr.RenamingColumnNotFound()
	}

	if j, taken := schema.Lookup(op.NewName); taken && j != i {
		return nil, dberr.AlreadyExistingColumn(op.NewName)
	}

	next, err := schema.WithRenamedColumn(i, op.NewName)
	if err != nil {
		return nil, err
	}

	return RenameColumnMutation{Schema: next}, nil
}

func (v *Validator) addColumn(ctx context.Context, schema *storage.Schema, def ast.ColumnDef) (Mutation, error) {
	if _, taken := schema.Lookup(def.Name); taken {
		return nil, dberr.AlreadyExistingColumn(def.Name)
	}

	if !def.Nullable && def.Default == nil {
		return nil, dberr.DefaultValueRequired(def)
	}

	value := types.Null
	if def.Default != nil {
		var err error
		value, err = v.eval.EvaluateStateless(ctx, def.Default)
		if err != nil {
			var dbErr *dberr.Error
			if errors.As(err, &dbErr) {
				return nil, err
			}
			return nil, dberr.IncompatibleDefaultValue(def.Name, def.DataType, err)
		}
	}

	if def.Unique != nil && !def.DataType.SupportsUnique() {
		return nil, dberr.UnsupportedDataTypeForUniqueColumn(def.Name, def.DataType)
	}

	value, err := types.Coerce(value, def.DataType)
	if err != nil {
		return nil, dberr.IncompatibleDefaultValue(def.Name, def.DataType, err)
	}

	if value.IsNull() && !def.Nullable {
		return nil, dberr.NullValueOnNotNullField(def.Name)
	}

	next, err := schema.WithColumn(def)
	if err != nil {
		return nil, err
	}

	return AddColumnMutation{Schema: next, Column: def, Default: value}, nil
}

func (v *Validator) dropColumn(schema *storage.Schema, op ast.DropColumn) (Mutation, error) {
	i, ok := schema.Lookup(op.Name)
	if !ok {
		if op.IfExists {
			return NoopMutation{}, nil
		}
		return nil, dberr.DroppingColumnNotFound(op.Name)
	}

	next, err := schema.WithoutColumn(i)
	if err != nil {
		return nil, err
	}

	return DropColumnMutation{Schema: next, Index: i}, nil
}
