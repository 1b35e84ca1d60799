package translate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Blackdeer1524/RelDB/src/dberr"
	"github.com/Blackdeer1524/RelDB/src/query/ast"
	"github.com/Blackdeer1524/RelDB/src/types"
)

func parseOne(t *testing.T, sql string) ast.Statement {
	t.Helper()

	stmts, err := Parse(sql)
	require.NoError(t, err)
	require.Len(t, stmts, 1)

	return stmts[0]
}

func TestParse_AlterTable(t *testing.T) {
	cases := []struct {
		sql string
		op  ast.AlterTableOperation
	}{
		{
			sql: "ALTER TABLE Foo RENAME TO Bar;",
			op:  ast.RenameTable{NewName: "Bar"},
		},
		{
			sql: "alter table Foo rename column name to new_name",
			op:  ast.RenameColumn{OldName: "name", NewName: "new_name"},
		},
		{
			sql: "ALTER TABLE Foo ADD COLUMN amount INTEGER DEFAULT 10",
			op: ast.AddColumn{Column: ast.ColumnDef{
				Name:     "amount",
				DataType: types.Int,
				Nullable: true,
				Default:  ast.Literal{Value: types.NewInt(10)},
			}},
		},
		{
			sql: "ALTER TABLE Foo ADD amount INTEGER NOT NULL",
			op: ast.AddColumn{Column: ast.ColumnDef{
				Name:     "amount",
				DataType: types.Int,
				Nullable: false,
			}},
		},
		{
			sql: "ALTER TABLE Foo ADD COLUMN something FLOAT UNIQUE",
			op: ast.AddColumn{Column: ast.ColumnDef{
				Name:     "something",
				DataType: types.Float,
				Nullable: true,
				Unique:   &ast.ColumnUniqueOption{IsPrimary: false},
			}},
		},
		{
			sql: "ALTER TABLE Foo DROP COLUMN amount",
			op:  ast.DropColumn{Name: "amount"},
		},
		{
			sql: "ALTER TABLE Foo DROP COLUMN IF EXISTS something",
			op:  ast.DropColumn{Name: "something", IfExists: true},
		},
	}

	for _, tc := range cases {
		t.Run(tc.sql, func(t *testing.T) {
			stmt := parseOne(t, tc.sql)
			alter, ok := stmt.(ast.AlterTable)
			require.True(t, ok)
			assert.Equal(t, "Foo", alter.Name)
			assert.Equal(t, tc.op, alter.Operation)
		})
	}
}

func TestParse_UnsupportedAlterTableOperation(t *testing.T) {
	_, err := Parse(`ALTER TABLE Foo ADD CONSTRAINT "hey" PRIMARY KEY (asdf);`)
	require.Equal(t, dberr.UnsupportedAlterTableOperation(`ADD CONSTRAINT "hey" PRIMARY KEY (asdf)`), err)

	_, err = Parse("ALTER TABLE Foo ADD FOREIGN KEY (id) REFERENCES Bar (id)")
	require.ErrorIs(t, err, dberr.ErrUnsupportedAlterTableOperation)
}

func TestParse_UnsupportedDataType(t *testing.T) {
	_, err := Parse("ALTER TABLE Foo ADD COLUMN something SOMEWHAT")
	require.Equal(t, dberr.UnsupportedDataType("SOMEWHAT"), err)

	_, err = Parse("CREATE TABLE Foo (id Wat)")
	require.Equal(t, dberr.UnsupportedDataType("Wat"), err)
}

func TestParse_SubqueryDefault(t *testing.T) {
	stmt := parseOne(t, "ALTER TABLE Foo ADD COLUMN something INTEGER DEFAULT (SELECT id FROM Bar LIMIT 1)")

	add := stmt.(ast.AlterTable).Operation.(ast.AddColumn)
	sub, ok := add.Column.Default.(ast.Subquery)
	require.True(t, ok)
	assert.Equal(t, "(SELECT id FROM Bar LIMIT 1)", sub.String())
}

func TestParse_SyntaxError(t *testing.T) {
	stmts, err := Parse("SELEC * FROM Foo")
	require.ErrorIs(t, err, dberr.ErrSyntax)
	require.Nil(t, stmts)
}

func TestParse_CreateInsertSelect(t *testing.T) {
	stmts, err := Parse(`
		CREATE TABLE IF NOT EXISTS Foo (id INTEGER PRIMARY KEY, name TEXT NULL, num INT8 DEFAULT -1);
		-- seed
		INSERT INTO Foo (id, name) VALUES (1, 'it''s'), (2, NULL);
		SELECT id, name FROM Foo WHERE id > 1 AND name <> 'x' LIMIT 3;
	`)
	require.NoError(t, err)
	require.Len(t, stmts, 3)

	create := stmts[0].(ast.CreateTable)
	assert.True(t, create.IfNotExists)
	require.Len(t, create.Columns, 3)
	assert.Equal(t, &ast.ColumnUniqueOption{IsPrimary: true}, create.Columns[0].Unique)
	assert.False(t, create.Columns[0].Nullable)
	assert.True(t, create.Columns[1].Nullable)
	assert.Equal(t, types.Int8, create.Columns[2].DataType)
	assert.Equal(t, ast.Unary{Op: "-", Expr: ast.Literal{Value: types.NewInt(1)}}, create.Columns[2].Default)

	insert := stmts[1].(ast.Insert)
	assert.Equal(t, []string{"id", "name"}, insert.Columns)
	require.Len(t, insert.Rows, 2)
	assert.Equal(t, ast.Literal{Value: types.NewText("it's")}, insert.Rows[0][1])
	assert.Equal(t, ast.Literal{Value: types.Null}, insert.Rows[1][1])

	sel := stmts[2].(ast.Select)
	require.NotNil(t, sel.Limit)
	assert.Equal(t, int64(3), *sel.Limit)
	assert.Equal(t, "SELECT id, name FROM Foo WHERE id > 1 AND name <> 'x' LIMIT 3", sel.String())
}

func TestParseExpr_RoundTrip(t *testing.T) {
	exprs := []string{
		"1 + 2 * 3",
		"(1 + 2) * 3",
		"'a' || UPPER('b')",
		"CAST('2024-01-01' AS DATE)",
		"NOT TRUE OR FALSE AND NULL",
		"GENERATE_UUID()",
		"-1.5",
		"- -1",
		"-(-1)",
		"+ -2 - -3",
		`"select" + t.x`,
	}

	for _, src := range exprs {
		e, err := ParseExpr(src)
		require.NoError(t, err, src)

		again, err := ParseExpr(e.String())
		require.NoError(t, err, e.String())
		assert.Equal(t, e, again, src)
	}
}

func TestUnary_SignedOperandKeepsSpace(t *testing.T) {
	e := ast.Unary{Op: "-", Expr: ast.Unary{Op: "-", Expr: ast.Literal{Value: types.NewInt(1)}}}
	assert.Equal(t, "- -1", e.String())

	again, err := ParseExpr(e.String())
	require.NoError(t, err)
	assert.Equal(t, e, again)
}

func TestParseExpr_Precedence(t *testing.T) {
	e, err := ParseExpr("1 + 2 * 3")
	require.NoError(t, err)

	assert.Equal(t, ast.Binary{
		Left: ast.Literal{Value: types.NewInt(1)},
		Op:   "+",
		Right: ast.Binary{
			Left:  ast.Literal{Value: types.NewInt(2)},
			Op:    "*",
			Right: ast.Literal{Value: types.NewInt(3)},
		},
	}, e)
}
