// Package dberr holds the errors surfaced to users of the engine. Every error
// carries its kind and the operand that caused it.
package dberr

import (
	"errors"
	"fmt"

	"github.com/Blackdeer1524/RelDB/src/query/ast"
	"github.com/Blackdeer1524/RelDB/src/types"
)

type Kind int

const (
	KindTableNotFound Kind = iota + 1
	KindAlreadyExistingTable
	KindRenamingColumnNotFound
	KindAlreadyExistingColumn
	KindDefaultValueRequired
	KindDroppingColumnNotFound
	KindUnsupportedDataTypeForUniqueColumn
	KindUnsupportedStatelessExpr
	KindUnsupportedAlterTableOperation
	KindUnsupportedDataType
	KindIncompatibleDefaultValue
	KindNullValueOnNotNullField
	KindDuplicateUniqueValue
	KindColumnNotFound
	KindWrongColumnCount
	KindIncompatibleValue
	KindSyntax
	KindStorage
)

var kindNames = map[Kind]string{
	KindTableNotFound:                      "TableNotFound",
	KindAlreadyExistingTable:               "AlreadyExistingTable",
	KindRenamingColumnNotFound:             "RenamingColumnNotFound",
	KindAlreadyExistingColumn:              "AlreadyExistingColumn",
	KindDefaultValueRequired:               "DefaultValueRequired",
	KindDroppingColumnNotFound:             "DroppingColumnNotFound",
	KindUnsupportedDataTypeForUniqueColumn: "UnsupportedDataTypeForUniqueColumn",
	KindUnsupportedStatelessExpr:           "UnsupportedStatelessExpr",
	KindUnsupportedAlterTableOperation:     "UnsupportedAlterTableOperation",
	KindUnsupportedDataType:                "UnsupportedDataType",
	KindIncompatibleDefaultValue:           "IncompatibleDefaultValue",
	KindNullValueOnNotNullField:            "NullValueOnNotNullField",
	KindDuplicateUniqueValue:               "DuplicateUniqueValue",
	KindColumnNotFound:                     "ColumnNotFound",
	KindWrongColumnCount:                   "WrongColumnCount",
	KindIncompatibleValue:                  "IncompatibleValue",
	KindSyntax:                             "SyntaxError",
	KindStorage:                            "StorageError",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}

	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is a user-facing failure. Only the fields relevant to Kind are set.
type Error struct {
	Kind     Kind
	Table    string
	Column   string
	DataType types.DataType
	Def      *ast.ColumnDef
	Expr     ast.Expr
	Value    types.Value
	Raw      string
	Cause    error
}

// Is matches any *Error of the same kind, so the sentinels below work with
// errors.Is regardless of operands.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindTableNotFound:
		return fmt.Sprintf("table not found: %s", e.Table)
	case KindAlreadyExistingTable:
		return fmt.Sprintf("table already exists: %s", e.Table)
	case KindRenamingColumnNotFound:
		return "renaming column not found"
	case KindAlreadyExistingColumn:
		return fmt.Sprintf("column already exists: %s", e.Column)
	case KindDefaultValueRequired:
		return fmt.Sprintf("default value is required: %s", e.Def)
	case KindDroppingColumnNotFound:
		return fmt.Sprintf("dropping column not found: %s", e.Column)
	case KindUnsupportedDataTypeForUniqueColumn:
		return fmt.Sprintf("unsupported data type for unique column: %s %s", e.Column, e.DataType)
	case KindUnsupportedStatelessExpr:
		return fmt.Sprintf("unsupported stateless expression: %s", e.Expr)
	case KindUnsupportedAlterTableOperation:
		return fmt.Sprintf("unsupported alter table operation: %s", e.Raw)
	case KindUnsupportedDataType:
		return fmt.Sprintf("unsupported data type: %s", e.Raw)
	case KindIncompatibleDefaultValue:
		return fmt.Sprintf("incompatible default value for column %s %s: %v", e.Column, e.DataType, e.Cause)
	case KindNullValueOnNotNullField:
		return fmt.Sprintf("null value on not null field: %s", e.Column)
	case KindDuplicateUniqueValue:
		return fmt.Sprintf("duplicate value %s in unique column %s", e.Value, e.Column)
	case KindColumnNotFound:
		return fmt.Sprintf("column not found: %s", e.Column)
	case KindWrongColumnCount:
		return fmt.Sprintf("wrong number of values for table %s: %s", e.Table, e.Raw)
	case KindIncompatibleValue:
		return fmt.Sprintf("incompatible value for column %s %s: %v", e.Column, e.DataType, e.Cause)
	case KindSyntax:
		return fmt.Sprintf("syntax error: %v", e.Cause)
	case KindStorage:
		return fmt.Sprintf("storage error: %v", e.Cause)
	default:
		return e.Kind.String()
	}
}

var (
	ErrTableNotFound                      = &Error{Kind: KindTableNotFound}
	ErrAlreadyExistingTable               = &Error{Kind: KindAlreadyExistingTable}
	ErrRenamingColumnNotFound             = &Error{Kind: KindRenamingColumnNotFound}
	ErrAlreadyExistingColumn              = &Error{Kind: KindAlreadyExistingColumn}
	ErrDefaultValueRequired               = &Error{Kind: KindDefaultValueRequired}
	ErrDroppingColumnNotFound             = &Error{Kind: KindDroppingColumnNotFound}
	ErrUnsupportedDataTypeForUniqueColumn = &Error{Kind: KindUnsupportedDataTypeForUniqueColumn}
	ErrUnsupportedStatelessExpr           = &Error{Kind: KindUnsupportedStatelessExpr}
	ErrUnsupportedAlterTableOperation     = &Error{Kind: KindUnsupportedAlterTableOperation}
	ErrUnsupportedDataType                = &Error{Kind: KindUnsupportedDataType}
	ErrIncompatibleDefaultValue           = &Error{Kind: KindIncompatibleDefaultValue}
	ErrNullValueOnNotNullField            = &Error{Kind: KindNullValueOnNotNullField}
	ErrDuplicateUniqueValue               = &Error{Kind: KindDuplicateUniqueValue}
	ErrColumnNotFound                     = &Error{Kind: KindColumnNotFound}
	ErrWrongColumnCount                   = &Error{Kind: KindWrongColumnCount}
	ErrIncompatibleValue                  = &Error{Kind: KindIncompatibleValue}
	ErrSyntax                             = &Error{Kind: KindSyntax}
	ErrStorage                            = &Error{Kind: KindStorage}
)

func TableNotFound(table string) *Error {
	return &Error{Kind: KindTableNotFound, Table: table}
}

func AlreadyExistingTable(table string) *Error {
	return &Error{Kind: KindAlreadyExistingTable, Table: table}
}

func RenamingColumnNotFound() *Error {
	return &Error{Kind: KindRenamingColumnNotFound}
}

func AlreadyExistingColumn(column string) *Error {
	return &Error{Kind: KindAlreadyExistingColumn, Column: column}
}

func DefaultValueRequired(def ast.ColumnDef) *Error {
	return &Error{Kind: KindDefaultValueRequired, Column: def.Name, Def: &def}
}

func DroppingColumnNotFound(column string) *Error {
	return &Error{Kind: KindDroppingColumnNotFound, Column: column}
}

func UnsupportedDataTypeForUniqueColumn(column string, dt types.DataType) *Error {
	return &Error{Kind: KindUnsupportedDataTypeForUniqueColumn, Column: column, DataType: dt}
}

func UnsupportedStatelessExpr(expr ast.Expr) *Error {
	return &Error{Kind: KindUnsupportedStatelessExpr, Expr: expr}
}

func UnsupportedAlterTableOperation(raw string) *Error {
	return &Error{Kind: KindUnsupportedAlterTableOperation, Raw: raw}
}

func UnsupportedDataType(name string) *Error {
	return &Error{Kind: KindUnsupportedDataType, Raw: name}
}

func IncompatibleDefaultValue(column string, dt types.DataType, cause error) *Error {
	return &Error{Kind: KindIncompatibleDefaultValue, Column: column, DataType: dt, Cause: cause}
}

func NullValueOnNotNullField(column string) *Error {
	return &Error{Kind: KindNullValueOnNotNullField, Column: column}
}

func DuplicateUniqueValue(column string, v types.Value) *Error {
	return &Error{Kind: KindDuplicateUniqueValue, Column: column, Value: v}
}

func ColumnNotFound(column string) *Error {
	return &Error{Kind: KindColumnNotFound, Column: column}
}

func WrongColumnCount(table string, detail string) *Error {
	return &Error{Kind: KindWrongColumnCount, Table: table, Raw: detail}
}

func IncompatibleValue(column string, dt types.DataType, cause error) *Error {
	return &Error{Kind: KindIncompatibleValue, Column: column, DataType: dt, Cause: cause}
}

func Syntax(cause error) *Error {
	return &Error{Kind: KindSyntax, Cause: cause}
}

func Storage(cause error) *Error {
	return &Error{Kind: KindStorage, Cause: cause}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if !errors.As(err, &e) {
		return 0, false
	}
	return e.Kind, true
}
