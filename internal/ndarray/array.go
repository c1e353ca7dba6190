package ndarray

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidDims is returned when an array shape or element type is unusable.
var ErrInvalidDims = errors.New("ndarray: invalid dimensions or data type")

// Numeric is the set of element types an Array can hold.
type Numeric interface {
	~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32 | ~int64 | ~uint64 | ~float32 | ~float64
}

// Array is a contiguous, row-major frame buffer. Dims is [width] for 1D
// frames and [width, height] for 2D frames; element (x, y) lives at
// index y*width + x.
type Array struct {
	UniqueID    int
	ImageNumber int
	TimeStamp   time.Time
	Elapsed     time.Duration

	Dims     []int
	DataType DataType

	// data is one of []int8 ... []float64 matching DataType.
	data any
	n    int
}

// New allocates a zeroed array outside any pool.
func New(dims []int, dt DataType) (*Array, error) {
	n, err := elements(dims, dt)
	if err != nil {
		return nil, err
	}
	return &Array{Dims: append([]int(nil), dims...), DataType: dt, data: makeData(dt, n), n: n}, nil
}

func elements(dims []int, dt DataType) (int, error) {
	if !dt.Valid() || len(dims) == 0 || len(dims) > 2 {
		return 0, fmt.Errorf("%w: dims=%v type=%v", ErrInvalidDims, dims, dt)
	}
	n := 1
	for _, d := range dims {
		if d <= 0 {
			return 0, fmt.Errorf("%w: dims=%v", ErrInvalidDims, dims)
		}
		n *= d
	}
	return n, nil
}

func makeData(dt DataType, n int) any {
	switch dt {
	case Int8:
		return make([]int8, n)
	case UInt8:
		return make([]uint8, n)
	case Int16:
		return make([]int16, n)
	case UInt16:
		return make([]uint16, n)
	case Int32:
		return make([]int32, n)
	case UInt32:
		return make([]uint32, n)
	case Int64:
		return make([]int64, n)
	case UInt64:
		return make([]uint64, n)
	case Float32:
		return make([]float32, n)
	case Float64:
		return make([]float64, n)
	}
	return nil
}

// Len returns the number of elements.
func (a *Array) Len() int {
	if a == nil {
		return 0
	}
	return a.n
}

// Width is the first dimension.
func (a *Array) Width() int {
	if a == nil || len(a.Dims) == 0 {
		return 0
	}
	return a.Dims[0]
}

// Height is the second dimension, or 1 for a 1D array.
func (a *Array) Height() int {
	if a == nil || len(a.Dims) < 2 {
		return 1
	}
	return a.Dims[1]
}

// Is2D reports whether the array has two dimensions.
func (a *Array) Is2D() bool { return a != nil && len(a.Dims) == 2 }

// NumBytes is the storage size of the element data.
func (a *Array) NumBytes() int64 { return int64(a.Len()) * int64(a.DataType.Size()) }

// SameShape reports whether the array already has the given dims and type.
func (a *Array) SameShape(dims []int, dt DataType) bool {
	if a == nil || a.DataType != dt || len(a.Dims) != len(dims) {
		return false
	}
	for i := range dims {
		if a.Dims[i] != dims[i] {
			return false
		}
	}
	return true
}

// Zero clears every element.
func (a *Array) Zero() {
	switch d := a.data.(type) {
	case []int8:
		clear(d)
	case []uint8:
		clear(d)
	case []int16:
		clear(d)
	case []uint16:
		clear(d)
	case []int32:
		clear(d)
	case []uint32:
		clear(d)
	case []int64:
		clear(d)
	case []uint64:
		clear(d)
	case []float32:
		clear(d)
	case []float64:
		clear(d)
	}
}

// Accumulate adds src element-wise into the array. Each value is narrowed
// to the element type before the add, and integer adds wrap on overflow.
// Extra elements on either side are ignored.
func (a *Array) Accumulate(src []float64) {
	switch d := a.data.(type) {
	case []int8:
		accumulateInt(d, src)
	case []uint8:
		accumulateInt(d, src)
	case []int16:
		accumulateInt(d, src)
	case []uint16:
		accumulateInt(d, src)
	case []int32:
		accumulateInt(d, src)
	case []uint32:
		accumulateInt(d, src)
	case []int64:
		accumulateInt(d, src)
	case []uint64:
		accumulateInt(d, src)
	case []float32:
		accumulateFloat(d, src)
	case []float64:
		accumulateFloat(d, src)
	}
}

// Add narrows v to the element type and adds it at index i.
func (a *Array) Add(i int, v float64) {
	switch d := a.data.(type) {
	case []int8:
		d[i] += int8(wrapInt(v))
	case []uint8:
		d[i] += uint8(wrapInt(v))
	case []int16:
		d[i] += int16(wrapInt(v))
	case []uint16:
		d[i] += uint16(wrapInt(v))
	case []int32:
		d[i] += int32(wrapInt(v))
	case []uint32:
		d[i] += uint32(wrapInt(v))
	case []int64:
		d[i] += int64(wrapInt(v))
	case []uint64:
		d[i] += wrapInt(v)
	case []float32:
		d[i] += float32(v)
	case []float64:
		d[i] += v
	}
}

// At returns element i widened to float64.
func (a *Array) At(i int) float64 {
	switch d := a.data.(type) {
	case []int8:
		return float64(d[i])
	case []uint8:
		return float64(d[i])
	case []int16:
		return float64(d[i])
	case []uint16:
		return float64(d[i])
	case []int32:
		return float64(d[i])
	case []uint32:
		return float64(d[i])
	case []int64:
		return float64(d[i])
	case []uint64:
		return float64(d[i])
	case []float32:
		return float64(d[i])
	case []float64:
		return d[i]
	}
	return 0
}

// Float64s returns a widened copy of the element data.
func (a *Array) Float64s() []float64 {
	out := make([]float64, a.Len())
	for i := range out {
		out[i] = a.At(i)
	}
	return out
}

// Clone returns a deep copy including stamps.
func (a *Array) Clone() *Array {
	if a == nil {
		return nil
	}
	c := *a
	c.Dims = append([]int(nil), a.Dims...)
	switch d := a.data.(type) {
	case []int8:
		c.data = append([]int8(nil), d...)
	case []uint8:
		c.data = append([]uint8(nil), d...)
	case []int16:
		c.data = append([]int16(nil), d...)
	case []uint16:
		c.data = append([]uint16(nil), d...)
	case []int32:
		c.data = append([]int32(nil), d...)
	case []uint32:
		c.data = append([]uint32(nil), d...)
	case []int64:
		c.data = append([]int64(nil), d...)
	case []uint64:
		c.data = append([]uint64(nil), d...)
	case []float32:
		c.data = append([]float32(nil), d...)
	case []float64:
		c.data = append([]float64(nil), d...)
	}
	return &c
}

// Data returns the typed backing slice when T matches the element type.
// The slice aliases the array.
func Data[T Numeric](a *Array) ([]T, bool) {
	if a == nil {
		return nil, false
	}
	d, ok := a.data.([]T)
	return d, ok
}

func accumulateInt[T int8 | uint8 | int16 | uint16 | int32 | uint32 | int64 | uint64](dst []T, src []float64) {
	n := min(len(dst), len(src))
	for i := 0; i < n; i++ {
		dst[i] += T(wrapInt(src[i]))
	}
}

func accumulateFloat[T float32 | float64](dst []T, src []float64) {
	n := min(len(dst), len(src))
	for i := 0; i < n; i++ {
		dst[i] += T(src[i])
	}
}

// wrapInt truncates v toward zero and returns its two's complement bit
// pattern modulo 2^64, so narrowing to any integer type wraps the same way
// on every platform. NaN and infinities map to 0.
func wrapInt(v float64) uint64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	if v >= -0x1p63 && v < 0x1p63 {
		return uint64(int64(v))
	}
	m := math.Mod(math.Trunc(v), 0x1p64)
	if m < 0 {
		m += 0x1p64
	}
	if m >= 0x1p64 {
		return 0
	}
	return uint64(m)
}
