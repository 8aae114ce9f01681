package gudablas

import (
	"fmt"

	"github.com/LynnColeArt/gudablas/compute"
)

// Level 1 BLAS routines. Each builds one statement over views of its
// arguments and submits it; the returned event completes when the result
// is in device memory. Vector arguments are a *Buffer or an Iterator.

func checkLength(op string, n int) error {
	if n < 0 {
		return NewInvalidArgError(op, fmt.Sprintf("negative length %d", n))
	}
	return nil
}

// vectorView returns the n-element view of ref with increment inc.
func vectorView[E any](op string, ref BufferRef[E], n, inc int) (View[E], error) {
	if inc <= 0 {
		return View[E]{}, NewInvalidStrideError(op, inc)
	}
	return NewView(ref, 0, inc, n)
}

func scalarResult[E any](ref BufferRef[E]) (View[E], error) {
	return NewView(ref, 0, 1, 1)
}

// Scal computes x = alpha*x.
func Scal[T compute.Scalar](ex *Executor, n int, alpha T, x BufferRef[T], incx int) (*Event, error) {
	if err := checkLength("Scal", n); err != nil {
		return nil, err
	}
	xv, err := vectorView("Scal", x, n, incx)
	if err != nil {
		return nil, err
	}
	t, err := NewTree[T](ex.ph, WithName("scal"))
	if err != nil {
		return nil, err
	}
	e, err := t.Expr(compute.OpMul, t.Scalar(alpha), t.Leaf(xv))
	if err != nil {
		return nil, err
	}
	if err := t.Assign(xv, e); err != nil {
		return nil, err
	}
	return ex.Execute(t)
}

// Axpy computes y = alpha*x + y.
func Axpy[T compute.Scalar](ex *Executor, n int, alpha T, x BufferRef[T], incx int, y BufferRef[T], incy int) (*Event, error) {
	if err := checkLength("Axpy", n); err != nil {
		return nil, err
	}
	xv, err := vectorView("Axpy", x, n, incx)
	if err != nil {
		return nil, err
	}
	yv, err := vectorView("Axpy", y, n, incy)
	if err != nil {
		return nil, err
	}
	t, err := NewTree[T](ex.ph, WithName("axpy"))
	if err != nil {
		return nil, err
	}
	e, err := t.Expr(compute.OpMad, t.Scalar(alpha), t.Leaf(xv), t.Leaf(yv))
	if err != nil {
		return nil, err
	}
	if err := t.Assign(yv, e); err != nil {
		return nil, err
	}
	return ex.Execute(t)
}

// Copy computes y = x.
func Copy[T compute.Scalar](ex *Executor, n int, x BufferRef[T], incx int, y BufferRef[T], incy int) (*Event, error) {
	if err := checkLength("Copy", n); err != nil {
		return nil, err
	}
	xv, err := vectorView("Copy", x, n, incx)
	if err != nil {
		return nil, err
	}
	yv, err := vectorView("Copy", y, n, incy)
	if err != nil {
		return nil, err
	}
	t, err := NewTree[T](ex.ph, WithName("copy"))
	if err != nil {
		return nil, err
	}
	if err := t.Assign(yv, t.Leaf(xv)); err != nil {
		return nil, err
	}
	return ex.Execute(t)
}

// Dot writes sum(x[i]*y[i]) to result[0].
func Dot[T compute.Scalar](ex *Executor, n int, x BufferRef[T], incx int, y BufferRef[T], incy int, result BufferRef[T]) (*Event, error) {
	if err := checkLength("Dot", n); err != nil {
		return nil, err
	}
	xv, err := vectorView("Dot", x, n, incx)
	if err != nil {
		return nil, err
	}
	yv, err := vectorView("Dot", y, n, incy)
	if err != nil {
		return nil, err
	}
	rv, err := scalarResult(result)
	if err != nil {
		return nil, err
	}
	t, err := NewTree[T](ex.ph, WithName("dot"))
	if err != nil {
		return nil, err
	}
	prod, err := t.Make(ShapeElementwise, compute.OpMul, xv, yv)
	if err != nil {
		return nil, err
	}
	if _, err := t.Make(ShapeReduction, compute.Sum, rv, prod); err != nil {
		return nil, err
	}
	return ex.Execute(t)
}

// Asum writes sum(|x[i]|) to result[0].
func Asum[T compute.Scalar](ex *Executor, n int, x BufferRef[T], incx int, result BufferRef[T]) (*Event, error) {
	if err := checkLength("Asum", n); err != nil {
		return nil, err
	}
	xv, err := vectorView("Asum", x, n, incx)
	if err != nil {
		return nil, err
	}
	rv, err := scalarResult(result)
	if err != nil {
		return nil, err
	}
	t, err := NewTree[T](ex.ph, WithName("asum"))
	if err != nil {
		return nil, err
	}
	if err := t.Reduce(compute.SumAbs, rv, t.Leaf(xv)); err != nil {
		return nil, err
	}
	return ex.Execute(t)
}

// Nrm2 writes the Euclidean norm of x to result[0]. It runs as two
// statements, a sum of squares and a square root, ordered through result.
func Nrm2[T compute.Scalar](ex *Executor, n int, x BufferRef[T], incx int, result BufferRef[T]) (*Event, error) {
	if err := checkLength("Nrm2", n); err != nil {
		return nil, err
	}
	xv, err := vectorView("Nrm2", x, n, incx)
	if err != nil {
		return nil, err
	}
	rv, err := scalarResult(result)
	if err != nil {
		return nil, err
	}

	squares, err := NewTree[T](ex.ph, WithName("nrm2"))
	if err != nil {
		return nil, err
	}
	leaf := squares.Leaf(xv)
	sq, err := squares.Expr(compute.OpMul, leaf, leaf)
	if err != nil {
		return nil, err
	}
	if err := squares.Reduce(compute.Sum, rv, sq); err != nil {
		return nil, err
	}

	sqrtTree, err := NewTree[T](ex.ph, WithName("nrm2.sqrt"))
	if err != nil {
		return nil, err
	}
	s, err := sqrtTree.Expr(compute.OpSqrt, sqrtTree.Leaf(rv))
	if err != nil {
		return nil, err
	}
	if err := sqrtTree.Assign(rv, s); err != nil {
		return nil, err
	}

	events, err := ex.ExecuteAll(squares, sqrtTree)
	if err != nil {
		return nil, err
	}
	return events[1], nil
}

func indexReduce[T compute.Scalar](ex *Executor, name string, op compute.ReduceOp, n int, x BufferRef[T], incx int, result BufferRef[compute.IndexValue[T]]) (*Event, error) {
	if err := checkLength(name, n); err != nil {
		return nil, err
	}
	xv, err := vectorView(name, x, n, incx)
	if err != nil {
		return nil, err
	}
	rv, err := scalarResult(result)
	if err != nil {
		return nil, err
	}
	t, err := NewTree[T](ex.ph, WithName(name))
	if err != nil {
		return nil, err
	}
	if err := t.ReduceIndex(op, rv, t.Leaf(xv)); err != nil {
		return nil, err
	}
	return ex.Execute(t)
}

// Iamax writes the index and value of the element of x with the largest
// magnitude to result[0]. The first occurrence wins ties; an empty x
// yields index -1.
func Iamax[T compute.Scalar](ex *Executor, n int, x BufferRef[T], incx int, result BufferRef[compute.IndexValue[T]]) (*Event, error) {
	return indexReduce(ex, "iamax", compute.MaxIndex, n, x, incx, result)
}

// Iamin is Iamax for the smallest magnitude.
func Iamin[T compute.Scalar](ex *Executor, n int, x BufferRef[T], incx int, result BufferRef[compute.IndexValue[T]]) (*Event, error) {
	return indexReduce(ex, "iamin", compute.MinIndex, n, x, incx, result)
}

// Swap exchanges x and y.
func Swap[T compute.Scalar](ex *Executor, n int, x BufferRef[T], incx int, y BufferRef[T], incy int) (*Event, error) {
	if err := checkLength("Swap", n); err != nil {
		return nil, err
	}
	xv, err := vectorView("Swap", x, n, incx)
	if err != nil {
		return nil, err
	}
	yv, err := vectorView("Swap", y, n, incy)
	if err != nil {
		return nil, err
	}
	t, err := NewTree[T](ex.ph, WithName("swap"))
	if err != nil {
		return nil, err
	}
	if err := t.Assign2(xv, t.Leaf(yv), yv, t.Leaf(xv)); err != nil {
		return nil, err
	}
	return ex.Execute(t)
}

// Rot applies the plane rotation (c, s): x = c*x + s*y, y = c*y - s*x.
func Rot[T compute.Scalar](ex *Executor, n int, x BufferRef[T], incx int, y BufferRef[T], incy int, c, s T) (*Event, error) {
	if err := checkLength("Rot", n); err != nil {
		return nil, err
	}
	xv, err := vectorView("Rot", x, n, incx)
	if err != nil {
		return nil, err
	}
	yv, err := vectorView("Rot", y, n, incy)
	if err != nil {
		return nil, err
	}
	t, err := NewTree[T](ex.ph, WithName("rot"))
	if err != nil {
		return nil, err
	}
	lx, ly := t.Leaf(xv), t.Leaf(yv)
	cs, sn := t.Scalar(c), t.Scalar(s)

	cx, err := t.Expr(compute.OpMul, cs, lx)
	if err != nil {
		return nil, err
	}
	newX, err := t.Expr(compute.OpMad, sn, ly, cx)
	if err != nil {
		return nil, err
	}
	cy, err := t.Expr(compute.OpMul, cs, ly)
	if err != nil {
		return nil, err
	}
	sx, err := t.Expr(compute.OpMul, sn, lx)
	if err != nil {
		return nil, err
	}
	newY, err := t.Expr(compute.OpSub, cy, sx)
	if err != nil {
		return nil, err
	}
	if err := t.Assign2(xv, newX, yv, newY); err != nil {
		return nil, err
	}
	return ex.Execute(t)
}
