package txns

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Blackdeer1524/RelDB/src/pkg/common"
)

func TestSimpleLockMode(t *testing.T) {
	assert.True(t, SimpleLockShared.WeakerOrEqual(SimpleLockExclusive))
	assert.False(t, SimpleLockExclusive.WeakerOrEqual(SimpleLockShared))

	assert.Equal(t, "EXCLUSIVE", SimpleLockExclusive.String())
}

func TestTableLocker_SharedHoldersCoexist(t *testing.T) {
	l := NewTableLocker()
	ctx := context.Background()

	require.NoError(t, l.Lock(ctx, 1, SimpleLockShared, "Foo"))
	require.NoError(t, l.Lock(ctx, 2, SimpleLockShared, "Foo"))

	mode, ok := l.Held(2, "Foo")
	require.True(t, ok)
	assert.Equal(t, SimpleLockShared, mode)

	l.Unlock(1)
	l.Unlock(2)
	assert.True(t, l.AreAllQueuesEmpty())
}

func TestTableLocker_ExclusiveWaits(t *testing.T) {
	l := NewTableLocker()
	ctx := context.Background()

	require.NoError(t, l.Lock(ctx, 1, SimpleLockExclusive, "Foo"))

	timeout, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, l.Lock(timeout, 2, SimpleLockShared, "Foo"), context.DeadlineExceeded)

	// other tables are unaffected
	require.NoError(t, l.Lock(ctx, 2, SimpleLockExclusive, "Bar"))

	acquired := make(chan struct{})
	go func() {
		assert.NoError(t, l.Lock(ctx, 3, SimpleLockShared, "Foo"))
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("shared lock granted while exclusive is held")
	case <-time.After(20 * time.Millisecond):
	}

	l.Unlock(1)

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("shared lock not granted after release")
	}

	l.Unlock(2)
	l.Unlock(3)
	assert.True(t, l.AreAllQueuesEmpty())
}

func TestTableLocker_Reentrant(t *testing.T) {
	l := NewTableLocker()
	ctx := context.Background()

	require.NoError(t, l.Lock(ctx, 1, SimpleLockExclusive, "Foo"))
	require.NoError(t, l.Lock(ctx, 1, SimpleLockShared, "Foo"))
	require.NoError(t, l.Lock(ctx, 1, SimpleLockExclusive, "Foo"))

	require.NoError(t, l.Lock(ctx, 2, SimpleLockShared, "Bar"))
	require.ErrorIs(t, l.Lock(ctx, 2, SimpleLockExclusive, "Bar"), ErrLockUpgrade)

	l.Unlock(1)
	l.Unlock(2)
	assert.True(t, l.AreAllQueuesEmpty())
}

func TestTableLocker_FailedLockReleasesPartial(t *testing.T) {
	l := NewTableLocker()
	ctx := context.Background()

	require.NoError(t, l.Lock(ctx, 1, SimpleLockExclusive, "B"))

	timeout, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	require.Error(t, l.Lock(timeout, 2, SimpleLockExclusive, "B", "A"))

	_, ok := l.Held(2, "A")
	assert.False(t, ok)

	l.Unlock(1)
	assert.True(t, l.AreAllQueuesEmpty())
}

func TestTableLocker_OverlappingSetsDoNotDeadlock(t *testing.T) {
	l := NewTableLocker()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(id common.TxnID) {
			defer wg.Done()

			tables := []string{"Foo", "Bar"}
			if id%2 == 0 {
				tables = []string{"Bar", "Foo"}
			}

			assert.NoError(t, l.Lock(ctx, id, SimpleLockExclusive, tables...))
			l.Unlock(id)
		}(common.TxnID(i + 1))
	}
	wg.Wait()

	assert.True(t, l.AreAllQueuesEmpty())
}

func TestTableLocker_AcquireGuard(t *testing.T) {
	l := NewTableLocker()
	ctx := context.Background()

	guard, err := l.Acquire(ctx, 7, SimpleLockExclusive, "Foo", "Bar")
	require.NoError(t, err)
	assert.Equal(t, common.TxnID(7), guard.Resource)

	_, ok := l.Held(7, "Bar")
	require.True(t, ok)

	require.NoError(t, guard.Unlock())
	assert.True(t, l.AreAllQueuesEmpty())
}

func TestTableLocker_ForgetsIdleTables(t *testing.T) {
	l := NewTableLocker()
	ctx := context.Background()

	for i := range 100 {
		id := common.TxnID(i + 1)
		require.NoError(t, l.Lock(ctx, id, SimpleLockShared, fmt.Sprintf("t%d", i)))
		l.Unlock(id)
	}
	assert.Empty(t, l.tables)

	require.NoError(t, l.Lock(ctx, 1, SimpleLockExclusive, "Foo"))

	timeout, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	require.Error(t, l.Lock(timeout, 2, SimpleLockShared, "Foo"))

	// the failed waiter must not drop the entry the holder still uses
	require.Contains(t, l.tables, "Foo")
	assert.False(t, l.AreAllQueuesEmpty())

	l.Unlock(1)
	assert.Empty(t, l.tables)
	assert.True(t, l.AreAllQueuesEmpty())
}
