package txns

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/Blackdeer1524/RelDB/src/pkg/common"
	"github.com/Blackdeer1524/RelDB/src/pkg/utils"
)

// maxReaders bounds concurrent shared holders of one table. An exclusive
// holder takes all units.
const maxReaders = 1 << 20

var ErrLockUpgrade = errors.New("lock upgrade is not supported")

type tableLock struct {
	sem     *semaphore.Weighted
	holders map[common.TxnID]SimpleLockMode
	// refs counts holders and waiters; the entry is dropped at zero
	refs int
}

// TableLocker hands out per-table shared/exclusive locks. All locks of a
// transaction are released together by Unlock.
type TableLocker struct {
	mu     sync.Mutex
	tables map[string]*tableLock
	held   map[common.TxnID][]string
}

func NewTableLocker() *TableLocker {
	return &TableLocker{
		tables: make(map[string]*tableLock),
		held:   make(map[common.TxnID][]string),
	}
}

func (l *TableLocker) get(table string) *tableLock {
	t, ok := l.tables[table]
	if !ok {
		t = &tableLock{
			sem:     semaphore.NewWeighted(maxReaders),
			holders: make(map[common.TxnID]SimpleLockMode),
		}
		l.tables[table] = t
	}
	return t
}

// Lock acquires mode on every table in tables for txnID. Tables are locked
// in sorted order, so two transactions locking overlapping sets never
// deadlock. On failure the locks taken by this call are released.
func (l *TableLocker) Lock(ctx context.Context, txnID common.TxnID, mode SimpleLockMode, tables ...string) error {
	sorted := slices.Clone(tables)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	var taken []string
	for _, name := range sorted {
		if err := l.lockOne(ctx, txnID, mode, name); err != nil {
			for _, n := range taken {
				l.unlockOne(txnID, n)
			}
			return err
		}
		taken = append(taken, name)
	}

	return nil
}

func (l *TableLocker) lockOne(ctx context.Context, txnID common.TxnID, mode SimpleLockMode, table string) error {
	l.mu.Lock()
	t := l.get(table)
	if cur, ok := t.holders[txnID]; ok {
		l.mu.Unlock()
		if mode.WeakerOrEqual(cur) {
			return nil
		}
		return fmt.Errorf("%w: %s %s -> %s", ErrLockUpgrade, table, cur, mode)
	}
	t.refs++
	l.mu.Unlock()

	if err := t.sem.Acquire(ctx, mode.weight()); err != nil {
		l.mu.Lock()
		l.release(table, t)
		l.mu.Unlock()
		return fmt.Errorf("failed to lock table %s: %w", table, err)
	}

	l.mu.Lock()
	t.holders[txnID] = mode
	l.held[txnID] = append(l.held[txnID], table)
	l.mu.Unlock()

	return nil
}

func (l *TableLocker) unlockOne(txnID common.TxnID, table string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, ok := l.tables[table]
	if !ok {
		return
	}

	mode, ok := t.holders[txnID]
	if !ok {
		return
	}

	delete(t.holders, txnID)
	l.held[txnID] = slices.DeleteFunc(l.held[txnID], func(n string) bool { return n == table })
	if len(l.held[txnID]) == 0 {
		delete(l.held, txnID)
	}
	t.sem.Release(mode.weight())
	l.release(table, t)
}

// release drops one reference to t. Must be called with l.mu held.
func (l *TableLocker) release(table string, t *tableLock) {
	t.refs--
	if t.refs == 0 {
		delete(l.tables, table)
	}
}

// Unlock releases every lock held by txnID.
func (l *TableLocker) Unlock(txnID common.TxnID) {
	l.mu.Lock()
	tables := slices.Clone(l.held[txnID])
	l.mu.Unlock()

	for _, name := range tables {
		l.unlockOne(txnID, name)
	}
}

// Acquire locks tables like Lock and returns a guard whose Unlock releases
// everything txnID holds.
func (l *TableLocker) Acquire(
	ctx context.Context,
	txnID common.TxnID,
	mode SimpleLockMode,
	tables ...string,
) (utils.WithUnlock[common.TxnID], error) {
	if err := l.Lock(ctx, txnID, mode, tables...); err != nil {
		return utils.WithUnlock[common.TxnID]{}, err
	}

	return utils.WithUnlock[common.TxnID]{
		Resource: txnID,
		UnlockFn: func() error {
			l.Unlock(txnID)
			return nil
		},
	}, nil
}

// Held reports the mode txnID holds on table.
func (l *TableLocker) Held(txnID common.TxnID, table string) (SimpleLockMode, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, ok := l.tables[table]
	if !ok {
		return SimpleLockMode{}, false
	}

	mode, ok := t.holders[txnID]
	return mode, ok
}

// AreAllQueuesEmpty reports whether no transaction holds or waits for a
// lock.
func (l *TableLocker) AreAllQueuesEmpty() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.held) == 0 && len(l.tables) == 0
}
