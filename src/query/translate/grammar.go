package translate

import (
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/Blackdeer1524/RelDB/src/query/ast"
)

var sqlLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `--[^\n]*`},
	{Name: "Whitespace", Pattern: `\s+`},
	{Name: "Keyword", Pattern: `(?i)\b(?:` + strings.Join(ast.Keywords, "|") + `)\b`},
	{Name: "QuotedIdent", Pattern: `"(?:[^"]|"")*"`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
	{Name: "Number", Pattern: `(?:\d+(?:\.\d*)?|\.\d+)(?:[eE][-+]?\d+)?`},
	{Name: "String", Pattern: `'(?:[^']|'')*'`},
	{Name: "Punct", Pattern: `<>|<=|>=|!=|\|\||[-+*/%=<>(),;.]`},
})

func unquote(tok lexer.Token) (lexer.Token, error) {
	quote := tok.Value[:1]
	tok.Value = strings.ReplaceAll(tok.Value[1:len(tok.Value)-1], quote+quote, quote)
	return tok, nil
}

var sqlParser = participle.MustBuild[script](
	participle.Lexer(sqlLexer),
	participle.Elide("Comment", "Whitespace"),
	participle.CaseInsensitive("Keyword"),
	participle.Map(unquote, "QuotedIdent", "String"),
	participle.UseLookahead(8),
)

var exprParser = participle.MustBuild[orExpr](
	participle.Lexer(sqlLexer),
	participle.Elide("Comment", "Whitespace"),
	participle.CaseInsensitive("Keyword"),
	participle.Map(unquote, "QuotedIdent", "String"),
	participle.UseLookahead(8),
)

type script struct {
	Statements []*statement `( @@ | ";" )*`
}

type statement struct {
	Create *createTable `  @@`
	Drop   *dropTable   `| @@`
	Insert *insertStmt  `| @@`
	Select *selectStmt  `| @@`
	Alter  *alterTable  `| @@`
}

type createTable struct {
	IfNotExists bool         `"CREATE" "TABLE" @("IF" "NOT" "EXISTS")?`
	Name        string       `@(Ident | QuotedIdent)`
	Columns     []*columnDef `"(" @@ ( "," @@ )* ")"`
}

type dropTable struct {
	IfExists bool   `"DROP" "TABLE" @("IF" "EXISTS")?`
	Name     string `@(Ident | QuotedIdent)`
}

type insertStmt struct {
	Table   string       `"INSERT" "INTO" @(Ident | QuotedIdent)`
	Columns []string     `( "(" @(Ident | QuotedIdent) ( "," @(Ident | QuotedIdent) )* ")" )?`
	Rows    []*valuesRow `"VALUES" @@ ( "," @@ )*`
}

type valuesRow struct {
	Values []*orExpr `"(" @@ ( "," @@ )* ")"`
}

type selectStmt struct {
	Star    bool      `"SELECT" ( @"*"`
	Columns []*orExpr `        | @@ ( "," @@ )* )`
	From    string    `"FROM" @(Ident | QuotedIdent)`
	Where   *orExpr   `( "WHERE" @@ )?`
	Limit   *int64    `( "LIMIT" @Number )?`
}

type alterTable struct {
	Table string   `"ALTER" "TABLE" @(Ident | QuotedIdent)`
	Op    *alterOp `@@`
}

type alterOp struct {
	RenameColumn *renameColumn `  @@`
	RenameTable  *renameTable  `| @@`
	AddColumn    *addColumn    `| @@`
	DropColumn   *dropColumn   `| @@`
	Other        *rawOperation `| @@`
}

type renameColumn struct {
	Old string `"RENAME" "COLUMN"? @(Ident | QuotedIdent)`
	New string `"TO" @(Ident | QuotedIdent)`
}

type renameTable struct {
	New string `"RENAME" "TO" @(Ident | QuotedIdent)`
}

type addColumn struct {
	Column *columnDef `"ADD" "COLUMN"? @@`
}

type dropColumn struct {
	IfExists bool   `"DROP" "COLUMN"? @("IF" "EXISTS")?`
	Name     string `@(Ident | QuotedIdent)`
}

// rawOperation swallows an ALTER TABLE clause no other shape accepts, so it
// can be reported verbatim.
type rawOperation struct {
	Pos    lexer.Position
	EndPos lexer.Position

	Words []string `@( ~";" )+`
}

type columnDef struct {
	Name     string          `@(Ident | QuotedIdent)`
	Type     string          `@Ident`
	TypeArgs []string        `( "(" @Number ( "," @Number )* ")" )?`
	Options  []*columnOption `@@*`
}

type columnOption struct {
	NotNull bool    `  @( "NOT" "NULL" )`
	Null    bool    `| @"NULL"`
	Default *orExpr `| "DEFAULT" @@`
	Unique  bool    `| @"UNIQUE"`
	Primary bool    `| @( "PRIMARY" "KEY" )`
}

type orExpr struct {
	Left  *andExpr   `@@`
	Right []*andExpr `( "OR" @@ )*`
}

type andExpr struct {
	Left  *notExpr   `@@`
	Right []*notExpr `( "AND" @@ )*`
}

type notExpr struct {
	Not *notExpr `  "NOT" @@`
	Cmp *cmpExpr `| @@`
}

type cmpExpr struct {
	Left  *addExpr `@@`
	Op    string   `( @( "=" | "<>" | "!=" | "<=" | ">=" | "<" | ">" )`
	Right *addExpr `  @@ )?`
}

type addExpr struct {
	Left *mulExpr `@@`
	Rest []*addOp `@@*`
}

type addOp struct {
	Op    string   `@( "+" | "-" | "||" )`
	Right *mulExpr `@@`
}

type mulExpr struct {
	Left *unaryExpr `@@`
	Rest []*mulOp   `@@*`
}

type mulOp struct {
	Op    string     `@( "*" | "/" | "%" )`
	Right *unaryExpr `@@`
}

type unaryExpr struct {
	Op      string       `  ( @( "-" | "+" )`
	Operand *unaryExpr   `    @@ )`
	Primary *primaryExpr `| @@`
}

type primaryExpr struct {
	Subquery *selectStmt `  "(" @@ ")"`
	Nested   *orExpr     `| "(" @@ ")"`
	Cast     *castExpr   `| @@`
	Call     *callExpr   `| @@`
	Number   *string     `| @Number`
	String   *string     `| @String`
	Bool     *string     `| @( "TRUE" | "FALSE" )`
	Null     bool        `| @"NULL"`
	Column   []string    `| @(Ident | QuotedIdent) ( "." @(Ident | QuotedIdent) )*`
}

type castExpr struct {
	Expr *orExpr `"CAST" "(" @@`
	Type string  `"AS" @Ident ")"`
}

type callExpr struct {
	Name string    `@Ident "("`
	Args []*orExpr `( @@ ( "," @@ )* )? ")"`
}
