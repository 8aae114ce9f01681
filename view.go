package gudablas

import (
	"fmt"

	"gonum.org/v1/gonum/blas"
)

// View is a strided, offset, non-owning reference into a Buffer. Logical
// element i lives at physical index offset + i*stride. Views are metadata
// only and are passed by value.
type View[E any] struct {
	buf    *Buffer[E]
	offset int
	stride int
	size   int
}

// NewView returns a view of size elements starting offset elements past
// ref with the given stride. It performs no device I/O.
func NewView[E any](ref BufferRef[E], offset, stride, size int) (View[E], error) {
	buf, base, err := resolveRef("View", ref)
	if err != nil {
		return View[E]{}, err
	}
	return newView(buf, base+offset, stride, size)
}

func newView[E any](buf *Buffer[E], offset, stride, size int) (View[E], error) {
	if stride <= 0 {
		return View[E]{}, NewInvalidStrideError("View", stride)
	}
	if size < 0 || offset < 0 {
		return View[E]{}, NewInvalidArgError("View",
			fmt.Sprintf("negative offset %d or size %d", offset, size))
	}
	if size > 0 && offset+(size-1)*stride >= buf.Len() {
		return View[E]{}, NewInvalidArgError("View",
			fmt.Sprintf("last element %d outside %v", offset+(size-1)*stride, buf))
	}
	return View[E]{buf: buf, offset: offset, stride: stride, size: size}, nil
}

// Size returns the number of logical elements.
func (v View[E]) Size() int { return v.size }

// Stride returns the physical distance between logical elements.
func (v View[E]) Stride() int { return v.stride }

// Offset returns the physical index of logical element 0.
func (v View[E]) Offset() int { return v.offset }

// Buffer returns the referenced buffer.
func (v View[E]) Buffer() *Buffer[E] { return v.buf }

// Advance returns the view shifted by n logical elements, sharing storage.
func (v View[E]) Advance(n int) (View[E], error) {
	if n < 0 || n > v.size {
		return View[E]{}, NewInvalidArgError("Advance",
			fmt.Sprintf("cannot advance %d elements in a view of %d", n, v.size))
	}
	return View[E]{buf: v.buf, offset: v.offset + n*v.stride, stride: v.stride, size: v.size - n}, nil
}

// Access returns an accessor for the view. A host accessor first waits for
// every in-flight launch touching the buffer; a device accessor is raw.
func (v View[E]) Access(mode AccessMode) Accessor[E] {
	if mode == AccessHost && v.buf != nil && v.buf.queue != nil {
		v.buf.queue.waitBuffer(v.buf.id)
	}
	return Accessor[E]{view: v, mode: mode}
}

// at reads logical element i without synchronization.
func (v View[E]) at(i int) E {
	return v.buf.data[v.offset+i*v.stride]
}

// set writes logical element i without synchronization.
func (v View[E]) set(i int, x E) {
	v.buf.data[v.offset+i*v.stride] = x
}

func (v View[E]) locate() (uint64, int) { return v.buf.id, v.offset }

func (v View[E]) String() string {
	return fmt.Sprintf("view(%v, off=%d, inc=%d, n=%d)", v.buf, v.offset, v.stride, v.size)
}

// AccessMode selects the side an Accessor is used from.
type AccessMode int

const (
	// AccessDevice is the raw accessor used inside kernels.
	AccessDevice AccessMode = iota
	// AccessHost is synchronized with the queue on creation.
	AccessHost
)

func (m AccessMode) String() string {
	if m == AccessHost {
		return "host"
	}
	return "device"
}

// Accessor reads and writes the elements of a View.
type Accessor[E any] struct {
	view View[E]
	mode AccessMode
}

// Mode returns the side the accessor was created for.
func (a Accessor[E]) Mode() AccessMode { return a.mode }

// Len returns the number of logical elements.
func (a Accessor[E]) Len() int { return a.view.size }

// At returns logical element i.
func (a Accessor[E]) At(i int) E { return a.view.at(i) }

// Set stores x at logical element i.
func (a Accessor[E]) Set(i int, x E) { a.view.set(i, x) }

// Slice copies the logical elements into a new slice.
func (a Accessor[E]) Slice() []E {
	out := make([]E, a.view.size)
	for i := range out {
		out[i] = a.view.at(i)
	}
	return out
}

// Matrix is a rows x cols operand addressed as offset + i*rowStride +
// j*colStride. A column-major matrix has rowStride 1 and colStride ld;
// transposing swaps the strides.
type Matrix[E any] struct {
	buf       *Buffer[E]
	offset    int
	rows      int
	cols      int
	rowStride int
	colStride int
}

// NewMatrix describes op(A) for a column-major A stored with leading
// dimension ld. rows and cols are the extents of op(A).
func NewMatrix[E any](ref BufferRef[E], t blas.Transpose, rows, cols, ld int) (Matrix[E], error) {
	stored := rows
	rs, cs := 1, ld
	switch t {
	case blas.NoTrans:
	case blas.Trans, blas.ConjTrans:
		stored = cols
		rs, cs = ld, 1
	default:
		return Matrix[E]{}, NewInvalidArgError("Matrix", fmt.Sprintf("bad transpose %q", byte(t)))
	}
	if ld < max(1, stored) {
		return Matrix[E]{}, NewInvalidArgError("Matrix",
			fmt.Sprintf("leading dimension %d smaller than %d", ld, stored))
	}
	return newMatrix(ref, rows, cols, rs, cs)
}

// vectorMatrix describes a strided vector as an n x 1 matrix.
func vectorMatrix[E any](ref BufferRef[E], n, inc int) (Matrix[E], error) {
	if inc <= 0 {
		return Matrix[E]{}, NewInvalidStrideError("Matrix", inc)
	}
	return newMatrix(ref, n, 1, inc, 1)
}

func newMatrix[E any](ref BufferRef[E], rows, cols, rs, cs int) (Matrix[E], error) {
	buf, off, err := resolveRef("Matrix", ref)
	if err != nil {
		return Matrix[E]{}, err
	}
	if rows < 0 || cols < 0 {
		return Matrix[E]{}, NewInvalidArgError("Matrix", fmt.Sprintf("negative extent %dx%d", rows, cols))
	}
	if rows > 0 && cols > 0 {
		if last := off + (rows-1)*rs + (cols-1)*cs; last >= buf.Len() {
			return Matrix[E]{}, NewInvalidArgError("Matrix",
				fmt.Sprintf("last element %d outside %v", last, buf))
		}
	}
	return Matrix[E]{buf: buf, offset: off, rows: rows, cols: cols, rowStride: rs, colStride: cs}, nil
}

// Dims returns the logical extents.
func (m Matrix[E]) Dims() (rows, cols int) { return m.rows, m.cols }

// Row returns row i as a view of cols elements.
func (m Matrix[E]) Row(i int) View[E] {
	return View[E]{buf: m.buf, offset: m.offset + i*m.rowStride, stride: m.colStride, size: m.cols}
}

// Col returns column j as a view of rows elements.
func (m Matrix[E]) Col(j int) View[E] {
	return View[E]{buf: m.buf, offset: m.offset + j*m.colStride, stride: m.rowStride, size: m.rows}
}

func (m Matrix[E]) at(i, j int) E {
	return m.buf.data[m.offset+i*m.rowStride+j*m.colStride]
}

func (m Matrix[E]) set(i, j int, x E) {
	m.buf.data[m.offset+i*m.rowStride+j*m.colStride] = x
}
