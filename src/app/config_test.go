package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Blackdeer1524/RelDB/src/dberr"
	"github.com/Blackdeer1524/RelDB/src/storage"
	"github.com/Blackdeer1524/RelDB/src/types"
)

func TestLoadEnv_Defaults(t *testing.T) {
	env, err := LoadEnv(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, EnvDev, env.Environment)
	assert.Equal(t, "127.0.0.1", env.ServerHost)
	assert.Equal(t, 8080, env.ServerPort)
	assert.Equal(t, StorageMemory, env.Storage)
	assert.Equal(t, 4, env.RewriteWorkers)
	assert.Equal(t, 1024, env.RewriteChunk)
	assert.Empty(t, env.RaftID)
}

func TestLoadEnv_DotenvDoesNotOverrideProcessEnv(t *testing.T) {
	t.Setenv("RELDB_SERVER_PORT", "9090")

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("RELDB_SERVER_PORT=7070\nRELDB_REWRITE_CHUNK=16\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("RELDB_REWRITE_CHUNK") })

	env, err := LoadEnv(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, env.ServerPort)
	assert.Equal(t, 16, env.RewriteChunk)
}

func TestLoadEnv_Invalid(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
	}{
		{"unknown storage", map[string]string{"RELDB_STORAGE": "tape"}},
		{"unknown environment", map[string]string{"RELDB_ENVIRONMENT": "staging"}},
		{"zero chunk", map[string]string{"RELDB_REWRITE_CHUNK": "0"}},
		{"raft without addr", map[string]string{"RELDB_RAFT_ID": "n1"}},
		{"raft with sqlite", map[string]string{
			"RELDB_RAFT_ID":   "n1",
			"RELDB_RAFT_ADDR": "127.0.0.1:7000",
			"RELDB_STORAGE":   "sqlite",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.vars {
				t.Setenv(k, v)
			}

			_, err := LoadEnv("")
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestOpenEngine(t *testing.T) {
	for _, kind := range []StorageKind{StorageMemory, StorageFile, StorageSQLite} {
		t.Run(string(kind), func(t *testing.T) {
			ctx := context.Background()
			env := envVars{Storage: kind, DataDir: t.TempDir(), RewriteWorkers: 2, RewriteChunk: 8}
			log := zap.NewNop().Sugar()

			se, err := OpenEngine(ctx, env, log)
			require.NoError(t, err)
			t.Cleanup(func() { _ = se.Close() })

			pool, err := NewRewritePool(env)
			require.NoError(t, err)
			t.Cleanup(pool.Release)

			exec := NewExecutor(se, pool, env, log)
			_, err = exec.Execute(ctx, `
				CREATE TABLE Foo (id INT);
				INSERT INTO Foo VALUES (1), (2);
				ALTER TABLE Foo ADD COLUMN amount INT DEFAULT 10;
				ALTER TABLE Foo RENAME TO Bar;
			`)
			require.NoError(t, err)

			res, err := exec.Execute(ctx, "SELECT amount FROM Bar")
			require.NoError(t, err)
			assert.Len(t, res[0].Rows, 2)

			_, err = exec.Execute(ctx, "ALTER TABLE Bar ADD COLUMN x INT NOT NULL")
			require.ErrorIs(t, err, dberr.ErrDefaultValueRequired)

			h, err := se.Lookup(ctx, "Bar")
			require.NoError(t, err)
			assert.Equal(t, []string{"id", "amount"}, h.Schema.Names())

			_, err = se.Lookup(ctx, "Foo")
			require.ErrorIs(t, err, storage.ErrTableNotFound)

			_, err = exec.Execute(ctx, "ALTER TABLE Bar ADD COLUMN n INT DEFAULT - -1")
			require.NoError(t, err)

			res, err = exec.Execute(ctx, "SELECT n FROM Bar")
			require.NoError(t, err)
			assert.Equal(t, types.NewInt(1), res[0].Rows[0][0])
		})
	}
}

func TestNewRewritePool_Disabled(t *testing.T) {
	pool, err := NewRewritePool(envVars{RewriteWorkers: 0})
	require.NoError(t, err)
	assert.Nil(t, pool)
}
