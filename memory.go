package gudablas

import (
	"math"
	"sync"
	"unsafe"
)

// MemoryPool manages device memory allocation with efficient reuse.
// It maintains a free list of previously allocated blocks to reduce
// allocation overhead, and refuses requests that would exceed the device
// capacity.
type MemoryPool struct {
	mu         sync.Mutex
	capacity   int64
	freeList   []*allocation
	totalAlloc int64
	peakAlloc  int64
	numAllocs  int64
	numReuse   int64
}

type allocation struct {
	mem  any // []E
	size int64
	used bool
}

// MemoryStats is a snapshot of pool usage in bytes.
type MemoryStats struct {
	Capacity int64
	InUse    int64
	Peak     int64
	Cached   int64
	Allocs   int64
	Reused   int64
}

// NewMemoryPool creates a new memory pool holding at most capacity bytes
// in use at once.
func NewMemoryPool(capacity int64) *MemoryPool {
	return &MemoryPool{capacity: capacity}
}

// alignedBytes returns the pool footprint of n elements of E. ok is false
// when the footprint does not fit in an int64.
func alignedBytes[E any](n int) (size int64, ok bool) {
	var zero E
	elem := int64(unsafe.Sizeof(zero))
	if elem > 0 && int64(n) > (math.MaxInt64-MemoryAlignment)/elem {
		return 0, false
	}
	size = int64(n) * elem
	return (size + MemoryAlignment - 1) &^ (MemoryAlignment - 1), true
}

// poolAllocate takes n elements of E from the pool, reusing a cached block
// of the same element type when one is large enough.
func poolAllocate[E any](mp *MemoryPool, n int) (*allocation, []E, error) {
	size, ok := alignedBytes[E](n)

	mp.mu.Lock()
	defer mp.mu.Unlock()

	if !ok {
		return nil, nil, NewOutOfDeviceMemoryError("Allocate", math.MaxInt64, mp.capacity-mp.totalAlloc)
	}
	if size > mp.capacity-mp.totalAlloc {
		return nil, nil, NewOutOfDeviceMemoryError("Allocate", size, mp.capacity-mp.totalAlloc)
	}

	// Try to reuse from free list
	for i, alloc := range mp.freeList {
		mem, ok := alloc.mem.([]E)
		if !ok || cap(mem) < n || alloc.size != size {
			continue
		}
		mp.freeList = append(mp.freeList[:i], mp.freeList[i+1:]...)
		alloc.used = true
		mem = mem[:n]
		clear(mem)
		mp.track(size)
		mp.numReuse++
		return alloc, mem, nil
	}

	mem := make([]E, n)
	alloc := &allocation{mem: mem, size: size, used: true}
	mp.track(size)
	return alloc, mem, nil
}

func (mp *MemoryPool) track(size int64) {
	mp.totalAlloc += size
	mp.numAllocs++
	if mp.totalAlloc > mp.peakAlloc {
		mp.peakAlloc = mp.totalAlloc
	}
}

// release returns an allocation to the pool.
func (mp *MemoryPool) release(alloc *allocation) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if !alloc.used {
		return ErrDoubleFree
	}
	alloc.used = false
	mp.totalAlloc -= alloc.size
	if len(mp.freeList) < FreeListThreshold {
		mp.freeList = append(mp.freeList, alloc)
	}
	return nil
}

// Trim drops every cached block.
func (mp *MemoryPool) Trim() {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.freeList = nil
}

// Stats returns memory pool statistics
func (mp *MemoryPool) Stats() MemoryStats {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	var cached int64
	for _, a := range mp.freeList {
		cached += a.size
	}
	return MemoryStats{
		Capacity: mp.capacity,
		InUse:    mp.totalAlloc,
		Peak:     mp.peakAlloc,
		Cached:   cached,
		Allocs:   mp.numAllocs,
		Reused:   mp.numReuse,
	}
}
