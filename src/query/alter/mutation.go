// Package alter validates ALTER TABLE operations against a table schema and
// rewrites the table's rows to match.
package alter

import (
	"github.com/Blackdeer1524/RelDB/src/query/ast"
	"github.com/Blackdeer1524/RelDB/src/storage"
	"github.com/Blackdeer1524/RelDB/src/types"
)

// Mutation is a fully checked change produced by Validator.Validate. It holds
// no references to mutable state and is consumed once by Rewriter.Apply.
type Mutation interface {
	mutation()
}

type RenameTableMutation struct {
	NewName string
}

type RenameColumnMutation struct {
	Schema *storage.Schema
}

// AddColumnMutation appends Default to every row.
type AddColumnMutation struct {
	Schema  *storage.Schema
	Column  ast.ColumnDef
	Default types.Value
}

// DropColumnMutation removes position Index from every row.
type DropColumnMutation struct {
	Schema *storage.Schema
	Index  int
}

// NoopMutation is the result of DROP COLUMN IF EXISTS on a missing column.
type NoopMutation struct{}

func (RenameTableMutation) mutation()  {}
func (RenameColumnMutation) mutation() {}
func (AddColumnMutation) mutation()    {}
func (DropColumnMutation) mutation()   {}
func (NoopMutation) mutation()         {}
