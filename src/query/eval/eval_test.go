package eval

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Blackdeer1524/RelDB/src/dberr"
	"github.com/Blackdeer1524/RelDB/src/query/ast"
	"github.com/Blackdeer1524/RelDB/src/query/translate"
	"github.com/Blackdeer1524/RelDB/src/types"
)

type mapScope map[string]types.Value

func (m mapScope) Column(name string) (types.Value, bool) {
	v, ok := m[name]
	return v, ok
}

func mustExpr(t *testing.T, sql string) ast.Expr {
	t.Helper()

	e, err := translate.ParseExpr(sql)
	require.NoError(t, err)

	return e
}

func TestEvaluateStateless_Values(t *testing.T) {
	clock := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	ev := NewWithClock(func() time.Time { return clock })
	ctx := context.Background()

	cases := []struct {
		sql  string
		want types.Value
	}{
		{"10", types.NewInt(10)},
		{"-10 + 3 * 2", types.NewInt(-4)},
		{"7 % 4", types.NewInt(3)},
		{"1 / 2.0", types.NewFloat(0.5)},
		{"'a' || 'b'", types.NewText("ab")},
		{"UPPER('abc')", types.NewText("ABC")},
		{"LENGTH('héllo')", types.NewInt(5)},
		{"ABS(-3)", types.NewInt(3)},
		{"COALESCE(NULL, 2)", types.NewInt(2)},
		{"CAST('12' AS INT)", types.NewInt(12)},
		{"1 < 2 AND 2 <= 2", types.NewBool(true)},
		{"NULL AND FALSE", types.NewBool(false)},
		{"NULL OR TRUE", types.NewBool(true)},
		{"NULL = 1", types.Null},
		{"NOT (1 = 1)", types.NewBool(false)},
		{"1 = 1.0", types.NewBool(true)},
		{"NOW()", types.Value{Type: types.Timestamp, S: "2024-05-06 07:08:09"}},
		{"CAST('2024-01-02' AS DATE)", types.Value{Type: types.Date, S: "2024-01-02"}},
	}

	for _, c := range cases {
		v, err := ev.EvaluateStateless(ctx, mustExpr(t, c.sql))
		require.NoError(t, err, c.sql)
		assert.Equal(t, c.want, v, c.sql)
	}
}

func TestEvaluateStateless_GenerateUUID(t *testing.T) {
	v, err := New().EvaluateStateless(context.Background(), mustExpr(t, "GENERATE_UUID()"))
	require.NoError(t, err)
	require.Equal(t, types.UUID, v.Type)

	_, err = uuid.Parse(v.S)
	require.NoError(t, err)
}

func TestEvaluateStateless_RejectsRowContext(t *testing.T) {
	ev := New()
	ctx := context.Background()

	_, err := ev.EvaluateStateless(ctx, mustExpr(t, "id"))
	require.Equal(t, dberr.UnsupportedStatelessExpr(ast.Identifier{Name: "id"}), err)

	sub := mustExpr(t, "(SELECT id FROM Bar LIMIT 1)")
	_, err = ev.EvaluateStateless(ctx, sub)
	require.Equal(t, dberr.UnsupportedStatelessExpr(sub), err)

	_, err = ev.EvaluateStateless(ctx, mustExpr(t, "1 + amount"))
	require.Equal(t, dberr.UnsupportedStatelessExpr(ast.Identifier{Name: "amount"}), err)
}

func TestEvaluateStateless_Errors(t *testing.T) {
	ev := New()
	ctx := context.Background()

	_, err := ev.EvaluateStateless(ctx, mustExpr(t, "1 / 0"))
	require.ErrorIs(t, err, ErrDivisionByZero)

	_, err = ev.EvaluateStateless(ctx, mustExpr(t, "NOPE(1)"))
	require.ErrorIs(t, err, ErrUnknownFunction)

	_, err = ev.EvaluateStateless(ctx, mustExpr(t, "9223372036854775807 + 1"))
	require.ErrorIs(t, err, types.ErrIncompatibleType)

	_, err = ev.EvaluateStateless(ctx, mustExpr(t, "1 + 'a'"))
	require.ErrorIs(t, err, types.ErrIncompatibleType)

	_, err = ev.EvaluateStateless(ctx, mustExpr(t, "1e308 * 10"))
	require.ErrorIs(t, err, types.ErrIncompatibleType)

	_, err = ev.EvaluateStateless(ctx, mustExpr(t, "-1e308 - 1e308"))
	require.ErrorIs(t, err, types.ErrIncompatibleType)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = ev.EvaluateStateless(cancelled, mustExpr(t, "1"))
	require.ErrorIs(t, err, context.Canceled)
}

func TestEvaluate_WithScope(t *testing.T) {
	scope := mapScope{
		"id":   types.NewInt(3),
		"name": types.NewText("Bob"),
	}

	v, err := New().Evaluate(context.Background(), mustExpr(t, "id > 1 AND LOWER(name) = 'bob'"), scope)
	require.NoError(t, err)
	require.Equal(t, types.NewBool(true), v)

	_, err = New().Evaluate(context.Background(), mustExpr(t, "missing"), scope)
	require.Equal(t, dberr.ColumnNotFound("missing"), err)
}
