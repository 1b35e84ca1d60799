package types

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Value is a single cell. Type selects which payload field is meaningful;
// the zero Value is NULL.
//
// Integer kinds up to 64 bits live in I, FLOAT in F, BOOLEAN in B, BYTEA in
// Bytes. INT128, DECIMAL, TEXT and the temporal/UUID/INET kinds keep their
// canonical text form in S.
type Value struct {
	Type  DataType         `json:"t,omitempty"`
	I     int64            `json:"i,omitempty"`
	F     float64          `json:"f,omitempty"`
	S     string           `json:"s,omitempty"`
	B     bool             `json:"b,omitempty"`
	Bytes []byte           `json:"x,omitempty"`
	List  []Value          `json:"l,omitempty"`
	Map   map[string]Value `json:"m,omitempty"`
}

var Null = Value{}

func NewInt(v int64) Value {
	return Value{Type: Int, I: v}
}

func NewFloat(v float64) Value {
	return Value{Type: Float, F: v}
}

func NewText(v string) Value {
	return Value{Type: Text, S: v}
}

func NewBool(v bool) Value {
	return Value{Type: Boolean, B: v}
}

func NewBytea(v []byte) Value {
	return Value{Type: Bytea, Bytes: v}
}

func NewList(vs ...Value) Value {
	return Value{Type: List, List: vs}
}

func NewMap(m map[string]Value) Value {
	return Value{Type: Map, Map: m}
}

func (v Value) IsNull() bool {
	return v.Type == ""
}

// String renders v for display. Text is not quoted.
func (v Value) String() string {
	switch {
	case v.IsNull():
		return "NULL"
	case v.Type.IsInteger():
		return strconv.FormatInt(v.I, 10)
	}

	switch v.Type {
	case Float:
		return strconv.FormatFloat(v.F, 'g', -1, 64)
	case Boolean:
		if v.B {
			return "TRUE"
		}
		return "FALSE"
	case Bytea:
		return hex.EncodeToString(v.Bytes)
	case List:
		parts := make([]string, len(v.List))
		for i, item := range v.List {
			parts[i] = item.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case Map:
		keys := make([]string, 0, len(v.Map))
		for k := range v.Map {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%q: %s", k, v.Map[k].String())
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return v.S
	}
}

// Key is an equality key: two values have the same key iff they are equal.
func (v Value) Key() string {
	return string(v.Type) + ":" + v.String()
}

func (v Value) Equal(o Value) bool {
	return v.Key() == o.Key()
}
