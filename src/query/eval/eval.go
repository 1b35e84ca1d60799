// Package eval computes expression values.
package eval

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Blackdeer1524/RelDB/src/dberr"
	"github.com/Blackdeer1524/RelDB/src/query/ast"
	"github.com/Blackdeer1524/RelDB/src/types"
)

var (
	ErrDivisionByZero  = errors.New("division by zero")
	ErrUnknownFunction = errors.New("unknown function")
	ErrWrongArgCount   = errors.New("wrong number of arguments")
)

// StatelessEvaluator evaluates expressions that need no row context, such as
// column defaults.
type StatelessEvaluator interface {
	EvaluateStateless(ctx context.Context, expr ast.Expr) (types.Value, error)
}

// Scope resolves column references while evaluating against a row.
type Scope interface {
	Column(name string) (types.Value, bool)
}

type Evaluator struct {
	now func() time.Time
}

var _ StatelessEvaluator = &Evaluator{}

func New() *Evaluator {
	return &Evaluator{now: time.Now}
}

// NewWithClock pins NOW() to the given clock.
func NewWithClock(now func() time.Time) *Evaluator {
	return &Evaluator{now: now}
}

// EvaluateStateless fails with dberr.UnsupportedStatelessExpr on the first
// column reference or subquery it meets.
func (e *Evaluator) EvaluateStateless(ctx context.Context, expr ast.Expr) (types.Value, error) {
	return e.eval(ctx, expr, nil)
}

// Evaluate resolves identifiers through scope.
func (e *Evaluator) Evaluate(ctx context.Context, expr ast.Expr, scope Scope) (types.Value, error) {
	return e.eval(ctx, expr, scope)
}

func (e *Evaluator) eval(ctx context.Context, expr ast.Expr, scope Scope) (types.Value, error) {
	if err := ctx.Err(); err != nil {
		return types.Null, err
	}

	switch x := expr.(type) {
	case ast.Literal:
		return x.Value, nil
	case ast.Nested:
		return e.eval(ctx, x.Expr, scope)
	case ast.Identifier:
		if scope == nil {
			return types.Null, dberr.UnsupportedStatelessExpr(x)
		}
		v, ok := scope.Column(x.Name)
		if !ok {
			return types.Null, dberr.ColumnNotFound(x.Name)
		}
		return v, nil
	case ast.CompoundIdentifier:
		if scope == nil {
			return types.Null, dberr.UnsupportedStatelessExpr(x)
		}
		name := x.Parts[len(x.Parts)-1]
		v, ok := scope.Column(name)
		if !ok {
			return types.Null, dberr.ColumnNotFound(strings.Join(x.Parts, "."))
		}
		return v, nil
	case ast.Subquery:
		return types.Null, dberr.UnsupportedStatelessExpr(x)
	case ast.Unary:
		v, err := e.eval(ctx, x.Expr, scope)
		if err != nil {
			return types.Null, err
		}
		return unary(x.Op, v)
	case ast.Binary:
		return e.binary(ctx, x, scope)
	case ast.Cast:
		v, err := e.eval(ctx, x.Expr, scope)
		if err != nil {
			return types.Null, err
		}
		return types.Convert(v, x.Type)
	case ast.Function:
		args := make([]types.Value, len(x.Args))
		for i, a := range x.Args {
			v, err := e.eval(ctx, a, scope)
			if err != nil {
				return types.Null, err
			}
			args[i] = v
		}
		return e.call(x.Name, args)
	}

	return types.Null, fmt.Errorf("unexpected expression %T", expr)
}

func unary(op string, v types.Value) (types.Value, error) {
	if v.IsNull() {
		return types.Null, nil
	}

	switch op {
	case "NOT":
		if v.Type != types.Boolean {
			return types.Null, fmt.Errorf("%w: NOT expects BOOLEAN, got %s", types.ErrIncompatibleType, v.Type)
		}
		return types.NewBool(!v.B), nil
	case "+":
		if !v.Type.IsNumeric() {
			return types.Null, fmt.Errorf("%w: unary + on %s", types.ErrIncompatibleType, v.Type)
		}
		return v, nil
	case "-":
		switch {
		case v.Type.IsInteger():
			if v.I == math.MinInt64 {
				return types.Null, fmt.Errorf("%w: integer overflow", types.ErrIncompatibleType)
			}
			return types.Value{Type: v.Type, I: -v.I}, nil
		case v.Type == types.Float:
			return types.NewFloat(-v.F), nil
		case v.Type == types.Int128 || v.Type == types.Decimal:
			if strings.HasPrefix(v.S, "-") {
				return types.Value{Type: v.Type, S: v.S[1:]}, nil
			}
			return types.Value{Type: v.Type, S: "-" + v.S}, nil
		}
		return types.Null, fmt.Errorf("%w: unary - on %s", types.ErrIncompatibleType, v.Type)
	}

	return types.Null, fmt.Errorf("unknown unary operator %q", op)
}

func (e *Evaluator) binary(ctx context.Context, b ast.Binary, scope Scope) (types.Value, error) {
	l, err := e.eval(ctx, b.Left, scope)
	if err != nil {
		return types.Null, err
	}

	r, err := e.eval(ctx, b.Right, scope)
	if err != nil {
		return types.Null, err
	}

	switch b.Op {
	case "AND", "OR":
		return logical(b.Op, l, r)
	}

	if l.IsNull() || r.IsNull() {
		return types.Null, nil
	}

	switch b.Op {
	case "=", "<>", "<", "<=", ">", ">=":
		return compare(b.Op, l, r)
	case "||":
		return types.NewText(l.String() + r.String()), nil
	case "+", "-", "*", "/", "%":
		return arithmetic(b.Op, l, r)
	}

	return types.Null, fmt.Errorf("unknown binary operator %q", b.Op)
}

// logical implements three-valued AND/OR.
func logical(op string, l, r types.Value) (types.Value, error) {
	for _, v := range []types.Value{l, r} {
		if !v.IsNull() && v.Type != types.Boolean {
			return types.Null, fmt.Errorf("%w: %s expects BOOLEAN, got %s", types.ErrIncompatibleType, op, v.Type)
		}
	}

	if op == "AND" {
		switch {
		case (!l.IsNull() && !l.B) || (!r.IsNull() && !r.B):
			return types.NewBool(false), nil
		case l.IsNull() || r.IsNull():
			return types.Null, nil
		default:
			return types.NewBool(true), nil
		}
	}

	switch {
	case (!l.IsNull() && l.B) || (!r.IsNull() && r.B):
		return types.NewBool(true), nil
	case l.IsNull() || r.IsNull():
		return types.Null, nil
	default:
		return types.NewBool(false), nil
	}
}

func compare(op string, l, r types.Value) (types.Value, error) {
	if op == "=" || op == "<>" {
		if l.Type == r.Type || !(l.Type.IsNumeric() && r.Type.IsNumeric()) {
			eq := l.Equal(r)
			return types.NewBool(eq == (op == "=")), nil
		}
	}

	c, err := types.Compare(l, r)
	if err != nil {
		return types.Null, err
	}

	switch op {
	case "=":
		return types.NewBool(c == 0), nil
	case "<>":
		return types.NewBool(c != 0), nil
	case "<":
		return types.NewBool(c < 0), nil
	case "<=":
		return types.NewBool(c <= 0), nil
	case ">":
		return types.NewBool(c > 0), nil
	default:
		return types.NewBool(c >= 0), nil
	}
}

func arithmetic(op string, l, r types.Value) (types.Value, error) {
	switch {
	case l.Type.IsInteger() && r.Type.IsInteger():
		return intArithmetic(op, l.I, r.I)
	case l.Type.IsNumeric() && r.Type.IsNumeric():
		lf, err := types.Convert(l, types.Float)
		if err != nil {
			return types.Null, err
		}
		rf, err := types.Convert(r, types.Float)
		if err != nil {
			return types.Null, err
		}
		return floatArithmetic(op, lf.F, rf.F)
	}

	return types.Null, fmt.Errorf("%w: %s %s %s", types.ErrIncompatibleType, l.Type, op, r.Type)
}

func intArithmetic(op string, a, b int64) (types.Value, error) {
	var res int64
	switch op {
	case "+":
		res = a + b
		if (res > a) != (b > 0) {
			return types.Null, fmt.Errorf("%w: integer overflow", types.ErrIncompatibleType)
		}
	case "-":
		res = a - b
		if (res < a) != (b > 0) {
			return types.Null, fmt.Errorf("%w: integer overflow", types.ErrIncompatibleType)
		}
	case "*":
		if a != 0 && b != 0 {
			res = a * b
			if res/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
				return types.Null, fmt.Errorf("%w: integer overflow", types.ErrIncompatibleType)
			}
		}
	case "/":
		if b == 0 {
			return types.Null, ErrDivisionByZero
		}
		res = a / b
	case "%":
		if b == 0 {
			return types.Null, ErrDivisionByZero
		}
		res = a % b
	}

	return types.NewInt(res), nil
}

func floatArithmetic(op string, a, b float64) (types.Value, error) {
	var res float64
	switch op {
	case "+":
		res = a + b
	case "-":
		res = a - b
	case "*":
		res = a * b
	case "/":
		if b == 0 {
			return types.Null, ErrDivisionByZero
		}
		res = a / b
	default:
		if b == 0 {
			return types.Null, ErrDivisionByZero
		}
		res = math.Mod(a, b)
	}

	if math.IsNaN(res) || math.IsInf(res, 0) {
		return types.Null, fmt.Errorf("%w: %g %s %g is not a finite FLOAT", types.ErrIncompatibleType, a, op, b)
	}

	return types.NewFloat(res), nil
}

func (e *Evaluator) call(name string, args []types.Value) (types.Value, error) {
	arity := func(n int) error {
		if len(args) != n {
			return fmt.Errorf("%w: %s expects %d, got %d", ErrWrongArgCount, name, n, len(args))
		}
		return nil
	}

	switch name {
	case "NOW":
		if err := arity(0); err != nil {
			return types.Null, err
		}
		return types.Value{Type: types.Timestamp, S: e.now().UTC().Format(types.TimestampLayout)}, nil
	case "GENERATE_UUID":
		if err := arity(0); err != nil {
			return types.Null, err
		}
		return types.Value{Type: types.UUID, S: uuid.NewString()}, nil
	case "COALESCE":
		for _, a := range args {
			if !a.IsNull() {
				return a, nil
			}
		}
		return types.Null, nil
	case "UPPER", "LOWER", "LENGTH":
		if err := arity(1); err != nil {
			return types.Null, err
		}
		v := args[0]
		if v.IsNull() {
			return types.Null, nil
		}
		if v.Type != types.Text {
			return types.Null, fmt.Errorf("%w: %s expects TEXT, got %s", types.ErrIncompatibleType, name, v.Type)
		}
		switch name {
		case "UPPER":
			return types.NewText(strings.ToUpper(v.S)), nil
		case "LOWER":
			return types.NewText(strings.ToLower(v.S)), nil
		default:
			return types.NewInt(int64(len([]rune(v.S)))), nil
		}
	case "ABS":
		if err := arity(1); err != nil {
			return types.Null, err
		}
		v := args[0]
		switch {
		case v.IsNull():
			return types.Null, nil
		case v.Type.IsInteger() && v.I < 0:
			return unary("-", v)
		case v.Type == types.Float:
			return types.NewFloat(math.Abs(v.F)), nil
		case v.Type.IsNumeric():
			if strings.HasPrefix(v.S, "-") {
				return unary("-", v)
			}
			return v, nil
		}
		return types.Null, fmt.Errorf("%w: ABS expects a number, got %s", types.ErrIncompatibleType, v.Type)
	}

	return types.Null, fmt.Errorf("%w: %s", ErrUnknownFunction, name)
}
