package types

import "strings"

// DataType is the declared type of a column.
type DataType string

const (
	Boolean   DataType = "BOOLEAN"
	Int8      DataType = "INT8"
	Int16     DataType = "INT16"
	Int32     DataType = "INT32"
	Int       DataType = "INT"
	Int128    DataType = "INT128"
	Uint8     DataType = "UINT8"
	Uint16    DataType = "UINT16"
	Float     DataType = "FLOAT"
	Text      DataType = "TEXT"
	Bytea     DataType = "BYTEA"
	Date      DataType = "DATE"
	Timestamp DataType = "TIMESTAMP"
	Time      DataType = "TIME"
	Interval  DataType = "INTERVAL"
	Decimal   DataType = "DECIMAL"
	UUID      DataType = "UUID"
	Inet      DataType = "INET"
	List      DataType = "LIST"
	Map       DataType = "MAP"
)

var dataTypeNames = map[string]DataType{
	"BOOLEAN":   Boolean,
	"BOOL":      Boolean,
	"INT8":      Int8,
	"INT16":     Int16,
	"INT32":     Int32,
	"INT":       Int,
	"INTEGER":   Int,
	"INT64":     Int,
	"BIGINT":    Int,
	"INT128":    Int128,
	"UINT8":     Uint8,
	"UINT16":    Uint16,
	"FLOAT":     Float,
	"FLOAT64":   Float,
	"DOUBLE":    Float,
	"REAL":      Float,
	"TEXT":      Text,
	"VARCHAR":   Text,
	"STRING":    Text,
	"BYTEA":     Bytea,
	"DATE":      Date,
	"TIMESTAMP": Timestamp,
	"TIME":      Time,
	"INTERVAL":  Interval,
	"DECIMAL":   Decimal,
	"NUMERIC":   Decimal,
	"UUID":      UUID,
	"INET":      Inet,
	"LIST":      List,
	"MAP":       Map,
}

// ParseDataType resolves a type name as written in SQL. Names are case-insensitive.
func ParseDataType(name string) (DataType, bool) {
	dt, ok := dataTypeNames[strings.ToUpper(name)]
	return dt, ok
}

func (t DataType) String() string {
	return string(t)
}

// IsInteger reports whether values of t are stored in Value.I.
func (t DataType) IsInteger() bool {
	switch t {
	case Int8, Int16, Int32, Int, Uint8, Uint16:
		return true
	}

	return false
}

func (t DataType) IsNumeric() bool {
	return t.IsInteger() || t == Int128 || t == Float || t == Decimal
}

// SupportsUnique reports whether a UNIQUE column may be declared over t.
// Equality on floats and on nested values is not stable enough for the
// uniqueness check.
func (t DataType) SupportsUnique() bool {
	switch t {
	case Float, List, Map:
		return false
	}

	return true
}
