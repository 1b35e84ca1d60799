// Package txns serializes statements that touch the same table.
package txns

import "fmt"

type TaggedType[T any] struct{ v T } // this trick forbids casting one lock mode to another

type SimpleLockMode TaggedType[uint8]

var (
	SimpleLockShared    SimpleLockMode = SimpleLockMode{0}
	SimpleLockExclusive SimpleLockMode = SimpleLockMode{1}
)

func (m SimpleLockMode) String() string {
	switch m {
	case SimpleLockShared:
		return "SHARED"
	case SimpleLockExclusive:
		return "EXCLUSIVE"
	default:
		return fmt.Sprintf("SimpleLockMode(%d)", m.v)
	}
}

// WeakerOrEqual reports whether a holder of other already covers m.
func (m SimpleLockMode) WeakerOrEqual(other SimpleLockMode) bool {
	return m == SimpleLockShared || other == SimpleLockExclusive
}

// weight is the number of semaphore units a holder of m takes.
func (m SimpleLockMode) weight() int64 {
	if m == SimpleLockExclusive {
		return maxReaders
	}
	return 1
}
