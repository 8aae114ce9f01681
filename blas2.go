package gudablas

import (
	"fmt"

	"gonum.org/v1/gonum/blas"

	"github.com/LynnColeArt/gudablas/compute"
)

// Gemv computes y = alpha*op(A)*x + beta*y for a column-major m x n matrix
// A. Each element of y is the Sum reduction of a row of op(A) times x.
func Gemv[T compute.Scalar](ex *Executor, trans blas.Transpose, m, n int, alpha T, a BufferRef[T], lda int, x BufferRef[T], incx int, beta T, y BufferRef[T], incy int) (*Event, error) {
	if m < 0 || n < 0 {
		return nil, NewInvalidArgError("Gemv", fmt.Sprintf("negative extent %dx%d", m, n))
	}
	if incx <= 0 {
		return nil, NewInvalidStrideError("Gemv", incx)
	}
	if incy <= 0 {
		return nil, NewInvalidStrideError("Gemv", incy)
	}
	rows, cols := m, n
	if trans != blas.NoTrans {
		rows, cols = n, m
	}
	am, err := NewMatrix(a, trans, rows, cols, lda)
	if err != nil {
		return nil, err
	}
	xm, err := vectorMatrix(x, cols, incx)
	if err != nil {
		return nil, err
	}
	ym, err := vectorMatrix(y, rows, incy)
	if err != nil {
		return nil, err
	}
	t, err := NewTree[T](ex.ph, WithName("gemv"))
	if err != nil {
		return nil, err
	}
	if err := t.Contract(ym, am, xm, alpha, beta); err != nil {
		return nil, err
	}
	return ex.Execute(t)
}
