package ast

import (
	"strconv"
	"strings"

	"github.com/Blackdeer1524/RelDB/src/types"
)

type Statement interface {
	statement()
}

type CreateTable struct {
	Name        string
	IfNotExists bool
	Columns     []ColumnDef
}

type DropTable struct {
	Name     string
	IfExists bool
}

type Insert struct {
	Table   string
	Columns []string
	Rows    [][]Expr
}

// Select is a single-table query. A nil Projection means "*".
type Select struct {
	Projection []Expr
	From       string
	Where      Expr
	Limit      *int64
}

type AlterTable struct {
	Name      string
	Operation AlterTableOperation
}

func (CreateTable) statement() {}
func (DropTable) statement()   {}
func (Insert) statement()      {}
func (Select) statement()      {}
func (AlterTable) statement()  {}

func (s Select) String() string {
	var sb strings.Builder
	sb.WriteString("SELECT ")

	if s.Projection == nil {
		sb.WriteString("*")
	} else {
		for i, p := range s.Projection {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(p.String())
		}
	}

	sb.WriteString(" FROM ")
	sb.WriteString(QuoteIdent(s.From))

	if s.Where != nil {
		sb.WriteString(" WHERE ")
		sb.WriteString(s.Where.String())
	}

	if s.Limit != nil {
		sb.WriteString(" LIMIT ")
		sb.WriteString(strconv.FormatInt(*s.Limit, 10))
	}

	return sb.String()
}

// ColumnUniqueOption marks a column UNIQUE. A primary key is a unique,
// non-nullable column.
type ColumnUniqueOption struct {
	IsPrimary bool
}

type ColumnDef struct {
	Name     string
	DataType types.DataType
	Nullable bool
	Default  Expr
	Unique   *ColumnUniqueOption
}

func (c ColumnDef) String() string {
	var sb strings.Builder
	sb.WriteString(QuoteIdent(c.Name))
	sb.WriteString(" ")
	sb.WriteString(c.DataType.String())

	if c.Nullable {
		sb.WriteString(" NULL")
	} else {
		sb.WriteString(" NOT NULL")
	}

	if c.Default != nil {
		sb.WriteString(" DEFAULT ")
		sb.WriteString(c.Default.String())
	}

	if c.Unique != nil {
		if c.Unique.IsPrimary {
			sb.WriteString(" PRIMARY KEY")
		} else {
			sb.WriteString(" UNIQUE")
		}
	}

	return sb.String()
}
