package ast

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/Blackdeer1524/RelDB/src/types"
)

// Expr is a parsed scalar expression. String renders SQL that parses back
// into an equal tree, which is how column defaults are persisted.
type Expr interface {
	String() string
	expr()
}

type Literal struct {
	Value types.Value
}

type Identifier struct {
	Name string
}

type CompoundIdentifier struct {
	Parts []string
}

type Unary struct {
	Op   string
	Expr Expr
}

type Binary struct {
	Left  Expr
	Op    string
	Right Expr
}

type Nested struct {
	Expr Expr
}

type Function struct {
	Name string
	Args []Expr
}

type Cast struct {
	Expr Expr
	Type types.DataType
}

type Subquery struct {
	Query *Select
}

func (Literal) expr()            {}
func (Identifier) expr()         {}
func (CompoundIdentifier) expr() {}
func (Unary) expr()              {}
func (Binary) expr()             {}
func (Nested) expr()             {}
func (Function) expr()           {}
func (Cast) expr()               {}
func (Subquery) expr()           {}

func (l Literal) String() string {
	v := l.Value
	switch {
	case v.IsNull():
		return "NULL"
	case v.Type.IsInteger():
		return strconv.FormatInt(v.I, 10)
	}

	switch v.Type {
	case types.Boolean:
		return v.String()
	case types.Float:
		s := strconv.FormatFloat(v.F, 'f', -1, 64)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s
	case types.Text:
		return QuoteString(v.S)
	default:
		return "CAST(" + QuoteString(v.String()) + " AS " + v.Type.String() + ")"
	}
}

func (i Identifier) String() string {
	return QuoteIdent(i.Name)
}

func (c CompoundIdentifier) String() string {
	parts := make([]string, len(c.Parts))
	for i, p := range c.Parts {
		parts[i] = QuoteIdent(p)
	}

	return strings.Join(parts, ".")
}

func (u Unary) String() string {
	if u.Op == "NOT" {
		return "NOT " + u.Expr.String()
	}

	// "--" starts a comment, so a signed operand is separated by a space
	inner := u.Expr.String()
	if strings.HasPrefix(inner, "-") || strings.HasPrefix(inner, "+") {
		return u.Op + " " + inner
	}

	return u.Op + inner
}

func (b Binary) String() string {
	return b.Left.String() + " " + b.Op + " " + b.Right.String()
}

func (n Nested) String() string {
	return "(" + n.Expr.String() + ")"
}

func (f Function) String() string {
	args := make([]string, len(f.Args))
	for i, a := range f.Args {
		args[i] = a.String()
	}

	return f.Name + "(" + strings.Join(args, ", ") + ")"
}

func (c Cast) String() string {
	return "CAST(" + c.Expr.String() + " AS " + c.Type.String() + ")"
}

func (s Subquery) String() string {
	return "(" + s.Query.String() + ")"
}

var plainIdent = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Keywords lists the reserved words of the dialect. Identifiers spelled like
// one of them are quoted when rendered.
var Keywords = []string{
	"SELECT", "FROM", "WHERE", "LIMIT", "INSERT", "INTO", "VALUES",
	"CREATE", "TABLE", "DROP", "ALTER", "RENAME", "TO", "COLUMN", "ADD",
	"IF", "NOT", "EXISTS", "NULL", "DEFAULT", "UNIQUE", "PRIMARY", "KEY",
	"TRUE", "FALSE", "AND", "OR", "CAST", "AS", "CONSTRAINT",
}

var keywordSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(Keywords))
	for _, k := range Keywords {
		m[k] = struct{}{}
	}
	return m
}()

func QuoteIdent(name string) string {
	if _, reserved := keywordSet[strings.ToUpper(name)]; !reserved && plainIdent.MatchString(name) {
		return name
	}

	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
