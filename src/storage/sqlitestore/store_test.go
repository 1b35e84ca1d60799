package sqlitestore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Blackdeer1524/RelDB/src/pkg/utils"
	"github.com/Blackdeer1524/RelDB/src/query/ast"
	"github.com/Blackdeer1524/RelDB/src/storage"
	"github.com/Blackdeer1524/RelDB/src/types"
)

func openStore(t *testing.T, path string) *Store {
	t.Helper()

	s, err := Open(context.Background(), path, zap.NewNop().Sugar())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func TestStore_CommitAndReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "reldb.sqlite")
	s := openStore(t, path)

	schema := utils.Must(storage.NewSchema([]ast.ColumnDef{
		{Name: "id", DataType: types.Int},
		{Name: "amount", DataType: types.Int, Nullable: true, Default: ast.Literal{Value: types.NewInt(10)}},
	}))
	h, err := s.CreateTable(ctx, "Foo", schema)
	require.NoError(t, err)

	_, err = s.CreateTable(ctx, "Foo", schema)
	require.ErrorIs(t, err, storage.ErrTableExists)

	rows := []storage.Row{
		{types.NewInt(1), types.NewInt(10)},
		{types.NewInt(2), types.Null},
	}
	h, err = s.Commit(ctx, h, storage.Change{Rows: rows, ReplaceRows: true})
	require.NoError(t, err)

	h, err = s.Commit(ctx, h, storage.Change{RenameTo: "Bar"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened := openStore(t, path)

	_, err = reopened.Lookup(ctx, "Foo")
	require.ErrorIs(t, err, storage.ErrTableNotFound)

	got, err := reopened.Lookup(ctx, "Bar")
	require.NoError(t, err)
	assert.Equal(t, h.Version, got.Version)
	assert.Equal(t, schema.Columns(), got.Schema.Columns())

	read, err := reopened.ReadAllRows(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, rows, read)

	names, err := reopened.ListTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Bar"}, names)
}

func TestStore_RejectedCommitRollsBack(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, filepath.Join(t.TempDir(), "reldb.sqlite"))

	schema := utils.Must(storage.NewSchema([]ast.ColumnDef{{Name: "id", DataType: types.Int}}))
	h := utils.Must(s.CreateTable(ctx, "Foo", schema))
	_ = utils.Must(s.CreateTable(ctx, "Taken", schema))
	h = utils.Must(s.Commit(ctx, h, storage.Change{Rows: []storage.Row{{types.NewInt(1)}}, ReplaceRows: true}))

	_, err := s.Commit(ctx, h, storage.Change{RenameTo: "Taken"})
	require.ErrorIs(t, err, storage.ErrTableExists)

	_, err = s.Commit(ctx, h, storage.Change{Rows: []storage.Row{{types.NewText("x")}}, ReplaceRows: true})
	require.ErrorIs(t, err, storage.ErrRowMismatch)

	stale := h
	stale.Version--
	_, err = s.Commit(ctx, stale, storage.Change{Rows: nil, ReplaceRows: true})
	require.ErrorIs(t, err, storage.ErrVersionConflict)

	cur := utils.Must(s.Lookup(ctx, "Foo"))
	assert.Equal(t, h.Version, cur.Version)
	assert.Equal(t, []storage.Row{{types.NewInt(1)}}, utils.Must(s.ReadAllRows(ctx, cur)))

	require.NoError(t, s.DropTable(ctx, "Foo"))
	require.ErrorIs(t, s.DropTable(ctx, "Foo"), storage.ErrTableNotFound)
}

func TestStore_ReopenWithSignedDefault(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "reldb.sqlite")
	s := openStore(t, path)

	schema := utils.Must(storage.NewSchema([]ast.ColumnDef{
		{Name: "id", DataType: types.Int},
		{
			Name:     "n",
			DataType: types.Int,
			Nullable: true,
			Default:  ast.Unary{Op: "-", Expr: ast.Unary{Op: "-", Expr: ast.Literal{Value: types.NewInt(1)}}},
		},
	}))
	_, err := s.CreateTable(ctx, "Foo", schema)
	require.NoError(t, err)

	got, err := s.Lookup(ctx, "Foo")
	require.NoError(t, err)
	assert.Equal(t, schema.Columns(), got.Schema.Columns())
	require.NoError(t, s.Close())

	got, err = openStore(t, path).Lookup(ctx, "Foo")
	require.NoError(t, err)
	assert.Equal(t, schema.Columns(), got.Schema.Columns())
}
