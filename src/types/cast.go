package types

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"math/big"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrIncompatibleType = errors.New("incompatible value type")

const (
	DateLayout      = "2006-01-02"
	TimeLayout      = "15:04:05.999999"
	TimestampLayout = "2006-01-02 15:04:05.999999"
)

var intBounds = map[DataType][2]int64{
	Int8:   {math.MinInt8, math.MaxInt8},
	Int16:  {math.MinInt16, math.MaxInt16},
	Int32:  {math.MinInt32, math.MaxInt32},
	Int:    {math.MinInt64, math.MaxInt64},
	Uint8:  {0, math.MaxUint8},
	Uint16: {0, math.MaxUint16},
}

var (
	minInt128 = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
	maxInt128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
)

var timestampLayouts = []string{
	TimestampLayout,
	"2006-01-02T15:04:05.999999",
	time.RFC3339Nano,
	DateLayout,
}

var timeLayouts = []string{
	TimeLayout,
	"15:04",
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func incompatible(v Value, to DataType) error {
	if v.Type == Text {
		return fmt.Errorf("%w: cannot use '%s' as %s", ErrIncompatibleType, v.S, to)
	}

	return fmt.Errorf("%w: cannot use %s value %s as %s", ErrIncompatibleType, v.Type, v, to)
}

// Coerce converts v to the declared type to without losing information.
// It is used to place literals and defaults into typed columns: an integer
// literal fits any integer column whose range holds it, text is parsed into
// temporal, UUID, INET, DECIMAL and BYTEA columns. NULL coerces to anything.
func Coerce(v Value, to DataType) (Value, error) {
	// NaN and infinities have no stored form
	if v.Type == Float && !isFinite(v.F) {
		return Null, incompatible(v, to)
	}

	if v.IsNull() || v.Type == to {
		return v, nil
	}

	switch {
	case to.IsInteger():
		i, ok := exactInt64(v)
		if !ok {
			return Null, incompatible(v, to)
		}
		return intValue(i, to, v)
	}

	switch to {
	case Int128:
		b, ok := exactBigInt(v)
		if !ok {
			return Null, incompatible(v, to)
		}
		return int128Value(b, v)
	case Float:
		switch {
		case v.Type.IsInteger():
			return NewFloat(float64(v.I)), nil
		case v.Type == Int128 || v.Type == Decimal:
			f, err := strconv.ParseFloat(v.S, 64)
			if err != nil || !isFinite(f) {
				return Null, incompatible(v, to)
			}
			return NewFloat(f), nil
		}
	case Decimal:
		switch {
		case v.Type.IsInteger():
			return Value{Type: Decimal, S: strconv.FormatInt(v.I, 10)}, nil
		case v.Type == Int128:
			return Value{Type: Decimal, S: v.S}, nil
		case v.Type == Float:
			return Value{Type: Decimal, S: strconv.FormatFloat(v.F, 'f', -1, 64)}, nil
		case v.Type == Text:
			s := strings.TrimSpace(v.S)
			if _, ok := new(big.Rat).SetString(s); !ok {
				return Null, incompatible(v, to)
			}
			return Value{Type: Decimal, S: s}, nil
		}
	case Date:
		switch v.Type {
		case Text:
			t, err := time.Parse(DateLayout, strings.TrimSpace(v.S))
			if err != nil {
				return Null, incompatible(v, to)
			}
			return Value{Type: Date, S: t.Format(DateLayout)}, nil
		case Timestamp:
			return Value{Type: Date, S: v.S[:len(DateLayout)]}, nil
		}
	case Timestamp:
		switch v.Type {
		case Text, Date:
			t, ok := parseAny(strings.TrimSpace(v.S), timestampLayouts)
			if !ok {
				return Null, incompatible(v, to)
			}
			return Value{Type: Timestamp, S: t.Format(TimestampLayout)}, nil
		}
	case Time:
		if v.Type == Text {
			t, ok := parseAny(strings.TrimSpace(v.S), timeLayouts)
			if !ok {
				return Null, incompatible(v, to)
			}
			return Value{Type: Time, S: t.Format(TimeLayout)}, nil
		}
	case Interval:
		if v.Type == Text && strings.TrimSpace(v.S) != "" {
			return Value{Type: Interval, S: strings.TrimSpace(v.S)}, nil
		}
	case UUID:
		switch v.Type {
		case Text:
			u, err := uuid.Parse(strings.TrimSpace(v.S))
			if err != nil {
				return Null, incompatible(v, to)
			}
			return Value{Type: UUID, S: u.String()}, nil
		case Bytea:
			u, err := uuid.FromBytes(v.Bytes)
			if err != nil {
				return Null, incompatible(v, to)
			}
			return Value{Type: UUID, S: u.String()}, nil
		}
	case Inet:
		if v.Type == Text {
			s := strings.TrimSpace(v.S)
			if addr, err := netip.ParseAddr(s); err == nil {
				return Value{Type: Inet, S: addr.String()}, nil
			}
			if prefix, err := netip.ParsePrefix(s); err == nil {
				return Value{Type: Inet, S: prefix.String()}, nil
			}
			return Null, incompatible(v, to)
		}
	case Bytea:
		if v.Type == Text {
			b, err := hex.DecodeString(strings.TrimSpace(v.S))
			if err != nil {
				return Null, incompatible(v, to)
			}
			return NewBytea(b), nil
		}
	}

	return Null, incompatible(v, to)
}

// Convert is the explicit CAST: everything Coerce accepts plus rendering any
// value as TEXT and parsing TEXT into numbers and booleans.
func Convert(v Value, to DataType) (Value, error) {
	if res, err := Coerce(v, to); err == nil {
		return res, nil
	}

	switch {
	case to == Text:
		return NewText(v.String()), nil
	case to == Boolean && v.Type == Text:
		b, err := strconv.ParseBool(strings.TrimSpace(v.S))
		if err != nil {
			return Null, incompatible(v, to)
		}
		return NewBool(b), nil
	case to == Boolean && v.Type.IsInteger():
		return NewBool(v.I != 0), nil
	case to.IsInteger() && v.Type == Boolean:
		if v.B {
			return intValue(1, to, v)
		}
		return intValue(0, to, v)
	case to.IsInteger() && v.Type == Float:
		if math.IsNaN(v.F) || math.IsInf(v.F, 0) || v.F < math.MinInt64 || v.F >= math.MaxInt64 {
			return Null, incompatible(v, to)
		}
		return intValue(int64(math.Trunc(v.F)), to, v)
	case to.IsInteger() && v.Type == Text:
		i, err := strconv.ParseInt(strings.TrimSpace(v.S), 10, 64)
		if err != nil {
			return Null, incompatible(v, to)
		}
		return intValue(i, to, v)
	case to == Float && v.Type == Text:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.S), 64)
		if err != nil || !isFinite(f) {
			return Null, incompatible(v, to)
		}
		return NewFloat(f), nil
	case to == Int128 && v.Type == Text:
		b, ok := new(big.Int).SetString(strings.TrimSpace(v.S), 10)
		if !ok {
			return Null, incompatible(v, to)
		}
		return int128Value(b, v)
	}

	return Null, incompatible(v, to)
}

func exactInt64(v Value) (int64, bool) {
	switch {
	case v.Type.IsInteger():
		return v.I, true
	case v.Type == Int128:
		b, ok := new(big.Int).SetString(v.S, 10)
		if !ok || !b.IsInt64() {
			return 0, false
		}
		return b.Int64(), true
	}

	return 0, false
}

func exactBigInt(v Value) (*big.Int, bool) {
	switch {
	case v.Type.IsInteger():
		return big.NewInt(v.I), true
	case v.Type == Decimal:
		return new(big.Int).SetString(v.S, 10)
	}

	return nil, false
}

func intValue(i int64, to DataType, src Value) (Value, error) {
	bounds := intBounds[to]
	if i < bounds[0] || i > bounds[1] {
		return Null, fmt.Errorf("%w: %s is out of range for %s", ErrIncompatibleType, src, to)
	}

	return Value{Type: to, I: i}, nil
}

func int128Value(b *big.Int, src Value) (Value, error) {
	if b.Cmp(minInt128) < 0 || b.Cmp(maxInt128) > 0 {
		return Null, fmt.Errorf("%w: %s is out of range for %s", ErrIncompatibleType, src, Int128)
	}

	return Value{Type: Int128, S: b.String()}, nil
}

func parseAny(s string, layouts []string) (time.Time, bool) {
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}
