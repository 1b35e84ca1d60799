// Package query executes SQL statements against a storage engine.
package query

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/panjf2000/ants/v2"

	"github.com/Blackdeer1524/RelDB/src"
	"github.com/Blackdeer1524/RelDB/src/dberr"
	"github.com/Blackdeer1524/RelDB/src/pkg/common"
	"github.com/Blackdeer1524/RelDB/src/query/alter"
	"github.com/Blackdeer1524/RelDB/src/query/ast"
	"github.com/Blackdeer1524/RelDB/src/query/eval"
	"github.com/Blackdeer1524/RelDB/src/query/translate"
	"github.com/Blackdeer1524/RelDB/src/storage"
	"github.com/Blackdeer1524/RelDB/src/txns"
)

type Executor struct {
	se        storage.Engine
	txnTicker atomic.Uint64
	locker    *txns.TableLocker
	eval      *eval.Evaluator
	validator *alter.Validator
	rewriter  *alter.Rewriter
	logger    src.Logger
}

// New creates an executor. pool may be nil, in which case row rewrites run on
// the calling goroutine.
func New(
	se storage.Engine,
	locker *txns.TableLocker,
	pool *ants.Pool,
	chunkSize int,
	logger src.Logger,
) *Executor {
	ev := eval.New()

	return &Executor{
		se:        se,
		locker:    locker,
		eval:      ev,
		validator: alter.NewValidator(ev),
		rewriter:  alter.NewRewriter(se, pool, chunkSize, logger),
		logger:    logger,
	}
}

func (e *Executor) newTxnID() common.TxnID {
	return common.TxnID(e.txnTicker.Add(1))
}

// Execute parses sql and runs its statements in order. It stops at the first
// failing statement and returns the payloads of those that succeeded.
func (e *Executor) Execute(ctx context.Context, sql string) ([]Payload, error) {
	stmts, err := translate.Parse(sql)
	if err != nil {
		return nil, err
	}

	res := make([]Payload, 0, len(stmts))
	for _, stmt := range stmts {
		p, err := e.ExecuteStatement(ctx, stmt)
		if err != nil {
			return res, err
		}
		res = append(res, p)
	}

	return res, nil
}

func (e *Executor) ExecuteStatement(ctx context.Context, stmt ast.Statement) (Payload, error) {
	switch stmt := stmt.(type) {
	case ast.CreateTable:
		return e.createTable(ctx, stmt)
	case ast.DropTable:
		return e.dropTable(ctx, stmt)
	case ast.Insert:
		return e.insert(ctx, stmt)
	case ast.Select:
		return e.selectRows(ctx, stmt)
	case ast.AlterTable:
		return e.alterTable(ctx, stmt)
	}

	panic(fmt.Sprintf("unexpected statement %T", stmt))
}

// withLocks runs fn holding mode on tables under a fresh transaction ID.
func (e *Executor) withLocks(
	ctx context.Context,
	mode txns.SimpleLockMode,
	tables []string,
	fn func(txnID common.TxnID) error,
) (err error) {
	guard, err := e.locker.Acquire(ctx, e.newTxnID(), mode, tables...)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, guard.Unlock())
	}()

	return fn(guard.Resource)
}

func (e *Executor) lookup(ctx context.Context, name string) (storage.TableHandle, error) {
	h, err := e.se.Lookup(ctx, name)
	if errors.Is(err, storage.ErrTableNotFound) {
		return storage.TableHandle{}, dberr.TableNotFound(name)
	}
	if err != nil {
		return storage.TableHandle{}, dberr.Storage(err)
	}

	return h, nil
}

// Describe returns the current handle of a table.
func (e *Executor) Describe(ctx context.Context, name string) (h storage.TableHandle, err error) {
	err = e.withLocks(ctx, txns.SimpleLockShared, []string{name}, func(common.TxnID) error {
		h, err = e.lookup(ctx, name)
		return err
	})

	return h, err
}

// Idle reports whether no statement holds or waits for a table lock.
func (e *Executor) Idle() bool {
	return e.locker.AreAllQueuesEmpty()
}

func (e *Executor) Tables(ctx context.Context) ([]string, error) {
	names, err := e.se.ListTables(ctx)
	if err != nil {
		return nil, dberr.Storage(err)
	}

	return names, nil
}
