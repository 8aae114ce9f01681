package gudablas

import (
	"fmt"
	"sync/atomic"
)

// Buffer is a contiguous device allocation of Len() elements of E. Its
// element type and extent never change after creation. A Buffer is created
// by Allocate (pool owned) or MakeBuffer (wraps caller host memory) and
// released exactly once.
type Buffer[E any] struct {
	id       uint64
	data     []E
	owned    bool
	alloc    *allocation
	queue    *Queue
	released atomic.Bool
}

// Len returns the extent of the buffer in elements.
func (b *Buffer[E]) Len() int {
	return len(b.data)
}

// ID returns the identifier the policy handler registered the buffer under.
func (b *Buffer[E]) ID() uint64 {
	return b.id
}

// Owned reports whether the pool owns the memory.
func (b *Buffer[E]) Owned() bool {
	return b.owned
}

// Released reports whether the buffer has been deallocated.
func (b *Buffer[E]) Released() bool {
	return b.released.Load()
}

// Begin returns an iterator at element 0.
func (b *Buffer[E]) Begin() Iterator[E] {
	return Iterator[E]{buf: b}
}

// Handle returns the opaque device pointer of element 0.
func (b *Buffer[E]) Handle() DevicePtr {
	return DevicePtr{id: b.id}
}

func (b *Buffer[E]) String() string {
	return fmt.Sprintf("buffer#%d[%d]", b.id, len(b.data))
}

func (b *Buffer[E]) locate() (uint64, int) { return b.id, 0 }

func (b *Buffer[E]) resolve() (*Buffer[E], int) { return b, 0 }

// Iterator is a (buffer, offset) position inside a Buffer.
type Iterator[E any] struct {
	buf    *Buffer[E]
	offset int
}

// Add returns the iterator advanced by n elements.
func (it Iterator[E]) Add(n int) Iterator[E] {
	return Iterator[E]{buf: it.buf, offset: it.offset + n}
}

// Buffer returns the buffer the iterator points into.
func (it Iterator[E]) Buffer() *Buffer[E] {
	return it.buf
}

// Offset returns the element offset from the start of the buffer.
func (it Iterator[E]) Offset() int {
	return it.offset
}

// Handle returns the opaque device pointer of the current position.
func (it Iterator[E]) Handle() DevicePtr {
	return DevicePtr{id: it.buf.id, offset: it.offset}
}

func (it Iterator[E]) locate() (uint64, int) { return it.buf.id, it.offset }

func (it Iterator[E]) resolve() (*Buffer[E], int) { return it.buf, it.offset }

// DevicePtr is an opaque handle to an element of a device allocation. It can
// be resolved back to its Buffer with GetBuffer.
type DevicePtr struct {
	id     uint64
	offset int
}

// Offset returns a handle shifted by n elements.
func (d DevicePtr) Offset(n int) DevicePtr {
	return DevicePtr{id: d.id, offset: d.offset + n}
}

// IsNil reports whether the handle refers to no allocation.
func (d DevicePtr) IsNil() bool {
	return d.id == 0
}

func (d DevicePtr) locate() (uint64, int) { return d.id, d.offset }

// Locator is anything that names a position in a device allocation:
// a *Buffer, an Iterator, a View or a DevicePtr.
type Locator interface {
	locate() (id uint64, offset int)
}

// BufferRef is a vector argument: a *Buffer or an Iterator into one.
type BufferRef[E any] interface {
	Locator
	resolve() (*Buffer[E], int)
}

// resolveRef validates a BufferRef and returns its buffer and offset.
func resolveRef[E any](op string, ref BufferRef[E]) (*Buffer[E], int, error) {
	if ref == nil {
		return nil, 0, NewInvalidArgError(op, "nil buffer")
	}
	buf, off := ref.resolve()
	if buf == nil {
		return nil, 0, NewInvalidArgError(op, "nil buffer")
	}
	if buf.Released() {
		return nil, 0, NewInvalidArgError(op, fmt.Sprintf("%v has been released", buf))
	}
	if off < 0 || off > len(buf.data) {
		return nil, 0, NewInvalidArgError(op, fmt.Sprintf("offset %d outside %v", off, buf))
	}
	return buf, off, nil
}
