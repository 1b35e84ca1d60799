package storage

import (
	"encoding/json"
	"fmt"

	"github.com/Blackdeer1524/RelDB/src/query/ast"
	"github.com/Blackdeer1524/RelDB/src/query/translate"
	"github.com/Blackdeer1524/RelDB/src/types"
)

// Schema is the ordered column list of a table plus a name lookup. It is
// immutable: every mutation builds a new Schema, so the lookup is always
// rebuilt together with the column list.
type Schema struct {
	columns []ast.ColumnDef
	index   map[string]int
}

func NewSchema(columns []ast.ColumnDef) (*Schema, error) {
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		if _, ok := index[c.Name]; ok {
			return nil, fmt.Errorf("%w: duplicate column %s", ErrSchemaInvalid, c.Name)
		}
		index[c.Name] = i
	}

	cols := make([]ast.ColumnDef, len(columns))
	copy(cols, columns)

	return &Schema{columns: cols, index: index}, nil
}

// Columns returns a copy of the column list.
func (s *Schema) Columns() []ast.ColumnDef {
	cols := make([]ast.ColumnDef, len(s.columns))
	copy(cols, s.columns)
	return cols
}

func (s *Schema) Len() int {
	return len(s.columns)
}

func (s *Schema) Column(i int) ast.ColumnDef {
	return s.columns[i]
}

// Lookup finds a column by exact, case-sensitive name.
func (s *Schema) Lookup(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

func (s *Schema) Names() []string {
	names := make([]string, len(s.columns))
	for i, c := range s.columns {
		names[i] = c.Name
	}
	return names
}

func (s *Schema) WithRenamedColumn(i int, name string) (*Schema, error) {
	cols := s.Columns()
	cols[i].Name = name
	return NewSchema(cols)
}

func (s *Schema) WithColumn(def ast.ColumnDef) (*Schema, error) {
	return NewSchema(append(s.Columns(), def))
}

func (s *Schema) WithoutColumn(i int) (*Schema, error) {
	cols := s.Columns()
	return NewSchema(append(cols[:i], cols[i+1:]...))
}

// ValidateRow checks that row is positionally aligned with s: same length,
// every non-null value carrying its column's type and NOT NULL honored.
func (s *Schema) ValidateRow(row Row) error {
	if len(row) != len(s.columns) {
		return fmt.Errorf("%w: row has %d values, schema has %d columns", ErrRowMismatch, len(row), len(s.columns))
	}

	for i, v := range row {
		c := s.columns[i]
		if v.IsNull() {
			if !c.Nullable {
				return fmt.Errorf("%w: NULL in NOT NULL column %s", ErrRowMismatch, c.Name)
			}
			continue
		}

		if v.Type != c.DataType {
			return fmt.Errorf("%w: column %s is %s, got %s", ErrRowMismatch, c.Name, c.DataType, v.Type)
		}
	}

	return nil
}

type columnJSON struct {
	Name     string         `json:"name"`
	Type     types.DataType `json:"type"`
	Nullable bool           `json:"nullable"`
	Default  string         `json:"default,omitempty"`
	Unique   bool           `json:"unique,omitempty"`
	Primary  bool           `json:"primary,omitempty"`
}

// MarshalJSON stores defaults unevaluated, as SQL text.
func (s *Schema) MarshalJSON() ([]byte, error) {
	cols := make([]columnJSON, len(s.columns))
	for i, c := range s.columns {
		cols[i] = columnJSON{
			Name:     c.Name,
			Type:     c.DataType,
			Nullable: c.Nullable,
			Unique:   c.Unique != nil,
			Primary:  c.Unique != nil && c.Unique.IsPrimary,
		}
		if c.Default != nil {
			cols[i].Default = c.Default.String()
		}
	}

	return json.Marshal(cols)
}

func (s *Schema) UnmarshalJSON(data []byte) error {
	var cols []columnJSON
	if err := json.Unmarshal(data, &cols); err != nil {
		return err
	}

	defs := make([]ast.ColumnDef, len(cols))
	for i, c := range cols {
		defs[i] = ast.ColumnDef{
			Name:     c.Name,
			DataType: c.Type,
			Nullable: c.Nullable,
		}
		if c.Unique {
			defs[i].Unique = &ast.ColumnUniqueOption{IsPrimary: c.Primary}
		}
		if c.Default != "" {
			e, err := translate.ParseExpr(c.Default)
			if err != nil {
				return fmt.Errorf("failed to parse default of column %s: %w", c.Name, err)
			}
			defs[i].Default = e
		}
	}

	parsed, err := NewSchema(defs)
	if err != nil {
		return err
	}

	*s = *parsed
	return nil
}
