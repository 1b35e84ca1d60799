package ast

// AlterTableOperation is one of RenameTable, RenameColumn, AddColumn or
// DropColumn. Any other ALTER TABLE shape is rejected during translation.
type AlterTableOperation interface {
	String() string
	alterTableOperation()
}

type RenameTable struct {
	NewName string
}

type RenameColumn struct {
	OldName string
	NewName string
}

type AddColumn struct {
	Column ColumnDef
}

type DropColumn struct {
	Name     string
	IfExists bool
}

func (RenameTable) alterTableOperation()  {}
func (RenameColumn) alterTableOperation() {}
func (AddColumn) alterTableOperation()    {}
func (DropColumn) alterTableOperation()   {}

func (op RenameTable) String() string {
	return "RENAME TO " + QuoteIdent(op.NewName)
}

func (op RenameColumn) String() string {
	return "RENAME COLUMN " + QuoteIdent(op.OldName) + " TO " + QuoteIdent(op.NewName)
}

func (op AddColumn) String() string {
	return "ADD COLUMN " + op.Column.String()
}

func (op DropColumn) String() string {
	if op.IfExists {
		return "DROP COLUMN IF EXISTS " + QuoteIdent(op.Name)
	}

	return "DROP COLUMN " + QuoteIdent(op.Name)
}
