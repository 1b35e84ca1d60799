// Package translate turns SQL text into ast statements.
package translate

import (
	"math/big"
	"strconv"
	"strings"

	"github.com/Blackdeer1524/RelDB/src/dberr"
	"github.com/Blackdeer1524/RelDB/src/query/ast"
	"github.com/Blackdeer1524/RelDB/src/types"
)

// Parse translates a script of ';'-separated statements.
func Parse(sql string) ([]ast.Statement, error) {
	tree, err := sqlParser.ParseString("", sql)
	if err != nil {
		return nil, dberr.Syntax(err)
	}

	stmts := make([]ast.Statement, 0, len(tree.Statements))
	for _, s := range tree.Statements {
		stmt, err := translateStatement(sql, s)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}

	return stmts, nil
}

// ParseExpr translates a standalone expression, e.g. a persisted column default.
func ParseExpr(sql string) (ast.Expr, error) {
	tree, err := exprParser.ParseString("", sql)
	if err != nil {
		return nil, dberr.Syntax(err)
	}

	return translateOr(tree)
}

func translateStatement(sql string, s *statement) (ast.Statement, error) {
	switch {
	case s.Create != nil:
		cols := make([]ast.ColumnDef, 0, len(s.Create.Columns))
		for _, c := range s.Create.Columns {
			def, err := translateColumnDef(c)
			if err != nil {
				return nil, err
			}
			cols = append(cols, def)
		}
		return ast.CreateTable{
			Name:        s.Create.Name,
			IfNotExists: s.Create.IfNotExists,
			Columns:     cols,
		}, nil
	case s.Drop != nil:
		return ast.DropTable{Name: s.Drop.Name, IfExists: s.Drop.IfExists}, nil
	case s.Insert != nil:
		rows := make([][]ast.Expr, 0, len(s.Insert.Rows))
		for _, r := range s.Insert.Rows {
			row, err := translateList(r.Values)
			if err != nil {
				return nil, err
			}
			rows = append(rows, row)
		}
		return ast.Insert{Table: s.Insert.Table, Columns: s.Insert.Columns, Rows: rows}, nil
	case s.Select != nil:
		sel, err := translateSelect(s.Select)
		if err != nil {
			return nil, err
		}
		return *sel, nil
	case s.Alter != nil:
		op, err := translateAlterOp(sql, s.Alter.Op)
		if err != nil {
			return nil, err
		}
		return ast.AlterTable{Name: s.Alter.Table, Operation: op}, nil
	}

	panic("unreachable: empty statement node")
}

func translateAlterOp(sql string, op *alterOp) (ast.AlterTableOperation, error) {
	switch {
	case op.RenameColumn != nil:
		return ast.RenameColumn{OldName: op.RenameColumn.Old, NewName: op.RenameColumn.New}, nil
	case op.RenameTable != nil:
		return ast.RenameTable{NewName: op.RenameTable.New}, nil
	case op.AddColumn != nil:
		def, err := translateColumnDef(op.AddColumn.Column)
		if err != nil {
			return nil, err
		}
		return ast.AddColumn{Column: def}, nil
	case op.DropColumn != nil:
		return ast.DropColumn{Name: op.DropColumn.Name, IfExists: op.DropColumn.IfExists}, nil
	default:
		raw := strings.TrimSpace(sql[op.Other.Pos.Offset:op.Other.EndPos.Offset])
		return nil, dberr.UnsupportedAlterTableOperation(raw)
	}
}

func translateColumnDef(c *columnDef) (ast.ColumnDef, error) {
	dt, ok := types.ParseDataType(c.Type)
	if !ok {
		return ast.ColumnDef{}, dberr.UnsupportedDataType(c.Type)
	}

	def := ast.ColumnDef{Name: c.Name, DataType: dt, Nullable: true}
	for _, o := range c.Options {
		switch {
		case o.NotNull:
			def.Nullable = false
		case o.Null:
			def.Nullable = true
		case o.Default != nil:
			e, err := translateOr(o.Default)
			if err != nil {
				return ast.ColumnDef{}, err
			}
			def.Default = e
		case o.Unique:
			def.Unique = &ast.ColumnUniqueOption{IsPrimary: false}
		case o.Primary:
			def.Unique = &ast.ColumnUniqueOption{IsPrimary: true}
			def.Nullable = false
		}
	}

	return def, nil
}

func translateSelect(s *selectStmt) (*ast.Select, error) {
	sel := &ast.Select{From: s.From, Limit: s.Limit}
	if !s.Star {
		proj, err := translateList(s.Columns)
		if err != nil {
			return nil, err
		}
		sel.Projection = proj
	}

	if s.Where != nil {
		where, err := translateOr(s.Where)
		if err != nil {
			return nil, err
		}
		sel.Where = where
	}

	return sel, nil
}

func translateList(list []*orExpr) ([]ast.Expr, error) {
	out := make([]ast.Expr, 0, len(list))
	for _, e := range list {
		expr, err := translateOr(e)
		if err != nil {
			return nil, err
		}
		out = append(out, expr)
	}

	return out, nil
}

func translateOr(e *orExpr) (ast.Expr, error) {
	left, err := translateAnd(e.Left)
	if err != nil {
		return nil, err
	}

	for _, r := range e.Right {
		right, err := translateAnd(r)
		if err != nil {
			return nil, err
		}
		left = ast.Binary{Left: left, Op: "OR", Right: right}
	}

	return left, nil
}

func translateAnd(e *andExpr) (ast.Expr, error) {
	left, err := translateNot(e.Left)
	if err != nil {
		return nil, err
	}

	for _, r := range e.Right {
		right, err := translateNot(r)
		if err != nil {
			return nil, err
		}
		left = ast.Binary{Left: left, Op: "AND", Right: right}
	}

	return left, nil
}

func translateNot(e *notExpr) (ast.Expr, error) {
	if e.Not != nil {
		inner, err := translateNot(e.Not)
		if err != nil {
			return nil, err
		}
		return ast.Unary{Op: "NOT", Expr: inner}, nil
	}

	left, err := translateAdd(e.Cmp.Left)
	if err != nil {
		return nil, err
	}

	if e.Cmp.Op == "" {
		return left, nil
	}

	right, err := translateAdd(e.Cmp.Right)
	if err != nil {
		return nil, err
	}

	op := e.Cmp.Op
	if op == "!=" {
		op = "<>"
	}

	return ast.Binary{Left: left, Op: op, Right: right}, nil
}

func translateAdd(e *addExpr) (ast.Expr, error) {
	left, err := translateMul(e.Left)
	if err != nil {
		return nil, err
	}

	for _, r := range e.Rest {
		right, err := translateMul(r.Right)
		if err != nil {
			return nil, err
		}
		left = ast.Binary{Left: left, Op: r.Op, Right: right}
	}

	return left, nil
}

func translateMul(e *mulExpr) (ast.Expr, error) {
	left, err := translateUnary(e.Left)
	if err != nil {
		return nil, err
	}

	for _, r := range e.Rest {
		right, err := translateUnary(r.Right)
		if err != nil {
			return nil, err
		}
		left = ast.Binary{Left: left, Op: r.Op, Right: right}
	}

	return left, nil
}

func translateUnary(e *unaryExpr) (ast.Expr, error) {
	if e.Primary == nil {
		inner, err := translateUnary(e.Operand)
		if err != nil {
			return nil, err
		}
		return ast.Unary{Op: e.Op, Expr: inner}, nil
	}

	return translatePrimary(e.Primary)
}

func translatePrimary(p *primaryExpr) (ast.Expr, error) {
	switch {
	case p.Subquery != nil:
		sel, err := translateSelect(p.Subquery)
		if err != nil {
			return nil, err
		}
		return ast.Subquery{Query: sel}, nil
	case p.Nested != nil:
		inner, err := translateOr(p.Nested)
		if err != nil {
			return nil, err
		}
		return ast.Nested{Expr: inner}, nil
	case p.Cast != nil:
		dt, ok := types.ParseDataType(p.Cast.Type)
		if !ok {
			return nil, dberr.UnsupportedDataType(p.Cast.Type)
		}
		inner, err := translateOr(p.Cast.Expr)
		if err != nil {
			return nil, err
		}
		return ast.Cast{Expr: inner, Type: dt}, nil
	case p.Call != nil:
		args, err := translateList(p.Call.Args)
		if err != nil {
			return nil, err
		}
		return ast.Function{Name: strings.ToUpper(p.Call.Name), Args: args}, nil
	case p.Number != nil:
		return ast.Literal{Value: numberLiteral(*p.Number)}, nil
	case p.String != nil:
		return ast.Literal{Value: types.NewText(*p.String)}, nil
	case p.Bool != nil:
		return ast.Literal{Value: types.NewBool(strings.EqualFold(*p.Bool, "TRUE"))}, nil
	case p.Null:
		return ast.Literal{Value: types.Null}, nil
	case len(p.Column) == 1:
		return ast.Identifier{Name: p.Column[0]}, nil
	default:
		return ast.CompoundIdentifier{Parts: p.Column}, nil
	}
}

// numberLiteral types an unsigned numeric literal: integers that fit 64 bits
// are INT, larger integers DECIMAL, anything with a fraction or exponent FLOAT.
func numberLiteral(s string) types.Value {
	if !strings.ContainsAny(s, ".eE") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return types.NewInt(i)
		}
		if _, ok := new(big.Int).SetString(s, 10); ok {
			return types.Value{Type: types.Decimal, S: s}
		}
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return types.Value{Type: types.Decimal, S: s}
	}

	return types.NewFloat(f)
}
