package ndarray

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrPoolExhausted is returned when every buffer the pool may hold is in use.
	ErrPoolExhausted = errors.New("ndarray: pool buffer limit reached")
	// ErrMemoryExhausted is returned when an allocation would exceed the memory limit.
	ErrMemoryExhausted = errors.New("ndarray: pool memory limit reached")
)

// PoolStats is a point in time view of pool usage.
type PoolStats struct {
	InUse      int   `json:"in_use"`
	Free       int   `json:"free"`
	Bytes      int64 `json:"bytes"`
	MaxBuffers int   `json:"max_buffers"`
	MaxMemory  int64 `json:"max_memory"`
	Allocs     int64 `json:"allocs"`
	Reuses     int64 `json:"reuses"`
}

// Pool hands out Arrays under a buffer count and memory ceiling. Released
// arrays are kept on a free list and reused when the element type matches
// and the capacity is large enough. A zero limit means unlimited.
type Pool struct {
	maxBuffers int
	maxMemory  int64

	mu     sync.Mutex
	inUse  map[*Array]struct{}
	free   []*Array
	bytes  int64
	allocs int64
	reuses int64
}

// NewPool returns a pool limited to maxBuffers live arrays and maxMemory
// bytes of element storage. Non-positive values disable the limit.
func NewPool(maxBuffers int, maxMemory int64) *Pool {
	return &Pool{
		maxBuffers: max(maxBuffers, 0),
		maxMemory:  max(maxMemory, 0),
		inUse:      make(map[*Array]struct{}),
	}
}

// Alloc returns a zeroed array of the given shape. The caller owns it until
// Release.
func (p *Pool) Alloc(dims []int, dt DataType) (*Array, error) {
	n, err := elements(dims, dt)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.maxBuffers > 0 && len(p.inUse) >= p.maxBuffers {
		return nil, fmt.Errorf("%w: %d in use", ErrPoolExhausted, len(p.inUse))
	}

	for i, a := range p.free {
		if a.DataType != dt || capacity(a) < n {
			continue
		}
		p.free = append(p.free[:i], p.free[i+1:]...)
		a.reshape(dims, n)
		a.Zero()
		a.resetStamps()
		p.inUse[a] = struct{}{}
		p.reuses++
		return a, nil
	}

	need := int64(n) * int64(dt.Size())
	// Evict free buffers that cannot be reused before giving up on memory.
	for p.maxMemory > 0 && p.bytes+need > p.maxMemory && len(p.free) > 0 {
		victim := p.free[0]
		p.free = p.free[1:]
		p.bytes -= int64(capacity(victim)) * int64(victim.DataType.Size())
	}
	if p.maxMemory > 0 && p.bytes+need > p.maxMemory {
		return nil, fmt.Errorf("%w: need %d bytes, %d of %d used", ErrMemoryExhausted, need, p.bytes, p.maxMemory)
	}

	a := &Array{Dims: append([]int(nil), dims...), DataType: dt, data: makeData(dt, n), n: n}
	p.inUse[a] = struct{}{}
	p.bytes += need
	p.allocs++
	return a, nil
}

// Release returns a to the free list. Arrays not handed out by this pool
// are ignored.
func (p *Pool) Release(a *Array) {
	if a == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.inUse[a]; !ok {
		return
	}
	delete(p.inUse, a)
	p.free = append(p.free, a)
}

// Stats reports current usage.
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PoolStats{
		InUse:      len(p.inUse),
		Free:       len(p.free),
		Bytes:      p.bytes,
		MaxBuffers: p.maxBuffers,
		MaxMemory:  p.maxMemory,
		Allocs:     p.allocs,
		Reuses:     p.reuses,
	}
}

func (a *Array) resetStamps() {
	a.UniqueID = 0
	a.ImageNumber = 0
	a.TimeStamp = time.Time{}
	a.Elapsed = 0
}

func (a *Array) reshape(dims []int, n int) {
	a.Dims = append(a.Dims[:0], dims...)
	a.n = n
	switch d := a.data.(type) {
	case []int8:
		a.data = d[:n]
	case []uint8:
		a.data = d[:n]
	case []int16:
		a.data = d[:n]
	case []uint16:
		a.data = d[:n]
	case []int32:
		a.data = d[:n]
	case []uint32:
		a.data = d[:n]
	case []int64:
		a.data = d[:n]
	case []uint64:
		a.data = d[:n]
	case []float32:
		a.data = d[:n]
	case []float64:
		a.data = d[:n]
	}
}

func capacity(a *Array) int {
	switch d := a.data.(type) {
	case []int8:
		return cap(d)
	case []uint8:
		return cap(d)
	case []int16:
		return cap(d)
	case []uint16:
		return cap(d)
	case []int32:
		return cap(d)
	case []uint32:
		return cap(d)
	case []int64:
		return cap(d)
	case []uint64:
		return cap(d)
	case []float32:
		return cap(d)
	case []float64:
		return cap(d)
	}
	return 0
}
