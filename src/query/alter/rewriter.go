package alter

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/Blackdeer1524/RelDB/src"
	"github.com/Blackdeer1524/RelDB/src/dberr"
	"github.com/Blackdeer1524/RelDB/src/pkg/assert"
	"github.com/Blackdeer1524/RelDB/src/pkg/utils"
	"github.com/Blackdeer1524/RelDB/src/storage"
)

const DefaultChunkSize = 1024

// Rewriter applies validated mutations to stored tables. Each Apply ends in
// exactly one gateway commit, so a failure leaves the table untouched.
type Rewriter struct {
	gw        storage.Gateway
	pool      *ants.Pool
	chunkSize int
	logger    src.Logger
}

// NewRewriter creates a rewriter. With a nil pool, rows are rewritten on the
// calling goroutine.
func NewRewriter(gw storage.Gateway, pool *ants.Pool, chunkSize int, logger src.Logger) *Rewriter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	return &Rewriter{
		gw:        gw,
		pool:      pool,
		chunkSize: chunkSize,
		logger:    logger,
	}
}

func (r *Rewriter) Apply(ctx context.Context, h storage.TableHandle, m Mutation) (storage.TableHandle, error) {
	switch m := m.(type) {
	case NoopMutation:
		return h, nil
	case RenameTableMutation:
		next, err := r.gw.Commit(ctx, h, storage.Change{RenameTo: m.NewName})
		if errors.Is(err, storage.ErrTableExists) {
			return storage.TableHandle{}, dberr.AlreadyExistingTable(m.NewName)
		}
		return next, wrapStorage(err)
	case RenameColumnMutation:
		next, err := r.gw.Commit(ctx, h, storage.Change{Schema: m.Schema})
		return next, wrapStorage(err)
	case AddColumnMutation:
		return r.addColumn(ctx, h, m)
	case DropColumnMutation:
		return r.dropColumn(ctx, h, m)
	}

	panic(fmt.Sprintf("unexpected mutation %T", m))
}

func (r *Rewriter) addColumn(ctx context.Context, h storage.TableHandle, m AddColumnMutation) (storage.TableHandle, error) {
	rows, err := r.gw.ReadAllRows(ctx, h)
	if err != nil {
		return storage.TableHandle{}, wrapStorage(err)
	}

	// every existing row receives the same default
	if m.Column.Unique != nil && !m.Default.IsNull() && len(rows) > 1 {
		return storage.TableHandle{}, dberr.DuplicateUniqueValue(m.Column.Name, m.Default)
	}

	next, err := r.rewrite(ctx, rows, func(row storage.Row) storage.Row {
		res := make(storage.Row, len(row)+1)
		copy(res, row)
		res[len(row)] = m.Default
		return res
	})
	if err != nil {
		return storage.TableHandle{}, err
	}

	committed, err := r.gw.Commit(ctx, h, storage.Change{Schema: m.Schema, Rows: next, ReplaceRows: true})
	return committed, wrapStorage(err)
}

func (r *Rewriter) dropColumn(ctx context.Context, h storage.TableHandle, m DropColumnMutation) (storage.TableHandle, error) {
	rows, err := r.gw.ReadAllRows(ctx, h)
	if err != nil {
		return storage.TableHandle{}, wrapStorage(err)
	}

	next, err := r.rewrite(ctx, rows, func(row storage.Row) storage.Row {
		assert.Assert(m.Index < len(row), "dropped column %d is out of row of width %d", m.Index, len(row))

		res := make(storage.Row, 0, len(row)-1)
		res = append(res, row[:m.Index]...)
		return append(res, row[m.Index+1:]...)
	})
	if err != nil {
		return storage.TableHandle{}, err
	}

	committed, err := r.gw.Commit(ctx, h, storage.Change{Schema: m.Schema, Rows: next, ReplaceRows: true})
	return committed, wrapStorage(err)
}

// rewrite maps fn over rows preserving order. Tables of at least chunkSize
// rows are split into chunks handled by the pool.
func (r *Rewriter) rewrite(ctx context.Context, rows []storage.Row, fn func(storage.Row) storage.Row) ([]storage.Row, error) {
	res := make([]storage.Row, len(rows))

	if r.pool == nil || len(rows) < r.chunkSize {
		for i, row := range rows {
			res[i] = fn(row)
		}
		return res, ctx.Err()
	}

	chunks := utils.Chunks(len(rows), r.chunkSize)

	var wg sync.WaitGroup
	for _, c := range chunks {
		task := func() {
			defer wg.Done()
			for i := c[0]; i < c[1]; i++ {
				res[i] = fn(rows[i])
			}
		}

		wg.Add(1)
		if err := r.pool.Submit(task); err != nil {
			r.logger.Warnw("row rewrite pool rejected chunk, running inline",
				"lo", c[0], "hi", c[1], "error", err)
			task()
		}
	}
	wg.Wait()

	r.logger.Debugw("rewrote rows", "rows", len(rows), "chunks", len(chunks))

	return res, ctx.Err()
}

func wrapStorage(err error) error {
	if err == nil {
		return nil
	}

	var dbErr *dberr.Error
	if errors.As(err, &dbErr) {
		return err
	}

	return dberr.Storage(err)
}
