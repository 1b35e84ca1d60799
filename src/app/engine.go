package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/panjf2000/ants/v2"
	"github.com/spf13/afero"

	"github.com/Blackdeer1524/RelDB/src"
	"github.com/Blackdeer1524/RelDB/src/query"
	"github.com/Blackdeer1524/RelDB/src/storage"
	"github.com/Blackdeer1524/RelDB/src/storage/filestore"
	"github.com/Blackdeer1524/RelDB/src/storage/memstore"
	"github.com/Blackdeer1524/RelDB/src/storage/sqlitestore"
	"github.com/Blackdeer1524/RelDB/src/txns"
)

const sqliteFilename = "reldb.sqlite"

func OpenEngine(ctx context.Context, env envVars, log src.Logger) (storage.Engine, error) {
	switch env.Storage {
	case StorageMemory:
		return memstore.New(), nil
	case StorageFile:
		return filestore.Open(afero.NewOsFs(), env.DataDir, log)
	case StorageSQLite:
		if err := os.MkdirAll(env.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data dir: %w", err)
		}
		return sqlitestore.Open(ctx, filepath.Join(env.DataDir, sqliteFilename), log)
	}

	return nil, fmt.Errorf("%w: unknown storage %q", ErrInvalidConfig, env.Storage)
}

// NewRewritePool returns nil when workers is 0, which makes rewrites run on
// the statement's goroutine.
func NewRewritePool(env envVars) (*ants.Pool, error) {
	if env.RewriteWorkers == 0 {
		return nil, nil
	}

	pool, err := ants.NewPool(env.RewriteWorkers)
	if err != nil {
		return nil, fmt.Errorf("failed to create rewrite pool: %w", err)
	}

	return pool, nil
}

func NewExecutor(se storage.Engine, pool *ants.Pool, env envVars, log src.Logger) *query.Executor {
	return query.New(se, txns.NewTableLocker(), pool, env.RewriteChunk, log)
}
