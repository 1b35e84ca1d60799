package types

import (
	"bytes"
	"cmp"
	"fmt"
	"math/big"
	"strings"
)

// Compare orders two non-null values. Numeric kinds compare across widths;
// any other pair must share a type.
func Compare(a, b Value) (int, error) {
	if a.IsNull() || b.IsNull() {
		return 0, fmt.Errorf("%w: cannot compare NULL", ErrIncompatibleType)
	}

	if a.Type.IsNumeric() && b.Type.IsNumeric() {
		return compareNumeric(a, b)
	}

	if a.Type != b.Type {
		return 0, fmt.Errorf("%w: cannot compare %s with %s", ErrIncompatibleType, a.Type, b.Type)
	}

	switch a.Type {
	case Boolean:
		switch {
		case a.B == b.B:
			return 0, nil
		case !a.B:
			return -1, nil
		default:
			return 1, nil
		}
	case Bytea:
		return bytes.Compare(a.Bytes, b.Bytes), nil
	case List, Map:
		if a.Equal(b) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %s values are not ordered", ErrIncompatibleType, a.Type)
	default:
		// canonical text forms of the temporal kinds sort chronologically
		return strings.Compare(a.S, b.S), nil
	}
}

func compareNumeric(a, b Value) (int, error) {
	if a.Type.IsInteger() && b.Type.IsInteger() {
		return cmp.Compare(a.I, b.I), nil
	}

	ra, err := toRat(a)
	if err != nil {
		return 0, err
	}

	rb, err := toRat(b)
	if err != nil {
		return 0, err
	}

	return ra.Cmp(rb), nil
}

func toRat(v Value) (*big.Rat, error) {
	switch {
	case v.Type.IsInteger():
		return new(big.Rat).SetInt64(v.I), nil
	case v.Type == Float:
		r := new(big.Rat).SetFloat64(v.F)
		if r == nil {
			return nil, fmt.Errorf("%w: %v is not comparable", ErrIncompatibleType, v.F)
		}
		return r, nil
	default:
		r, ok := new(big.Rat).SetString(v.S)
		if !ok {
			return nil, fmt.Errorf("%w: %q is not a number", ErrIncompatibleType, v.S)
		}
		return r, nil
	}
}
