// Package ndarray provides the typed numeric frame buffer and the bounded
// pool frames are allocated from.
package ndarray

import (
	"fmt"
	"strings"
)

// DataType is the element type of an Array. The order follows the detector
// data type list and is stable across releases.
type DataType int

const (
	Int8 DataType = iota
	UInt8
	Int16
	UInt16
	Int32
	UInt32
	Int64
	UInt64
	Float32
	Float64
)

var dataTypeNames = [...]string{
	Int8:    "Int8",
	UInt8:   "UInt8",
	Int16:   "Int16",
	UInt16:  "UInt16",
	Int32:   "Int32",
	UInt32:  "UInt32",
	Int64:   "Int64",
	UInt64:  "UInt64",
	Float32: "Float32",
	Float64: "Float64",
}

var dataTypeSizes = [...]int{
	Int8: 1, UInt8: 1,
	Int16: 2, UInt16: 2,
	Int32: 4, UInt32: 4,
	Int64: 8, UInt64: 8,
	Float32: 4, Float64: 8,
}

// Valid reports whether d is one of the defined element types.
func (d DataType) Valid() bool {
	return d >= Int8 && d <= Float64
}

// Size returns the element size in bytes, or 0 for an invalid type.
func (d DataType) Size() int {
	if !d.Valid() {
		return 0
	}
	return dataTypeSizes[d]
}

// IsFloat reports whether d is a floating point type.
func (d DataType) IsFloat() bool {
	return d == Float32 || d == Float64
}

func (d DataType) String() string {
	if !d.Valid() {
		return fmt.Sprintf("DataType(%d)", int(d))
	}
	return dataTypeNames[d]
}

// ParseDataType maps a name such as "uint16" or "Float64" to its DataType.
func ParseDataType(name string) (DataType, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for i, n := range dataTypeNames {
		if strings.ToLower(n) == key {
			return DataType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown data type %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (d DataType) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("invalid data type %d", int(d))
	}
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *DataType) UnmarshalText(text []byte) error {
	v, err := ParseDataType(string(text))
	if err != nil {
		return err
	}
	*d = v
	return nil
}
