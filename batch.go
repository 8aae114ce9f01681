package gudablas

import (
	"fmt"

	"gonum.org/v1/gonum/blas"

	"github.com/LynnColeArt/gudablas/compute"
)

// Batched routines launch count independent statements and return one
// event per statement. Arguments are read from the first count entries of
// args. On a construction error the events already submitted are returned
// with the error.

// ScalArgs are the arguments of one Scal.
type ScalArgs[T compute.Scalar] struct {
	N     int
	Alpha T
	X     BufferRef[T]
	IncX  int
}

// AxpyArgs are the arguments of one Axpy.
type AxpyArgs[T compute.Scalar] struct {
	N     int
	Alpha T
	X     BufferRef[T]
	IncX  int
	Y     BufferRef[T]
	IncY  int
}

// DotArgs are the arguments of one Dot.
type DotArgs[T compute.Scalar] struct {
	N      int
	X      BufferRef[T]
	IncX   int
	Y      BufferRef[T]
	IncY   int
	Result BufferRef[T]
}

// GemmArgs are the arguments of one Gemm.
type GemmArgs[T compute.Scalar] struct {
	TransA, TransB blas.Transpose
	M, N, K        int
	Alpha          T
	A              BufferRef[T]
	LDA            int
	B              BufferRef[T]
	LDB            int
	Beta           T
	C              BufferRef[T]
	LDC            int
}

func batch[A any](op string, count int, args []A, launch func(A) (*Event, error)) (Events, error) {
	if count < 0 || count > len(args) {
		return nil, NewInvalidArgError(op, fmt.Sprintf("count %d with %d argument sets", count, len(args)))
	}
	events := make(Events, 0, count)
	for i := 0; i < count; i++ {
		ev, err := launch(args[i])
		if err != nil {
			return events, fmt.Errorf("%s batch entry %d: %w", op, i, err)
		}
		events = append(events, ev)
	}
	return events, nil
}

// ScalBatch runs Scal for each of the first count argument sets.
func ScalBatch[T compute.Scalar](ex *Executor, count int, args []ScalArgs[T]) (Events, error) {
	return batch("ScalBatch", count, args, func(a ScalArgs[T]) (*Event, error) {
		return Scal(ex, a.N, a.Alpha, a.X, a.IncX)
	})
}

// AxpyBatch runs Axpy for each of the first count argument sets.
func AxpyBatch[T compute.Scalar](ex *Executor, count int, args []AxpyArgs[T]) (Events, error) {
	return batch("AxpyBatch", count, args, func(a AxpyArgs[T]) (*Event, error) {
		return Axpy(ex, a.N, a.Alpha, a.X, a.IncX, a.Y, a.IncY)
	})
}

// DotBatch runs Dot for each of the first count argument sets.
func DotBatch[T compute.Scalar](ex *Executor, count int, args []DotArgs[T]) (Events, error) {
	return batch("DotBatch", count, args, func(a DotArgs[T]) (*Event, error) {
		return Dot(ex, a.N, a.X, a.IncX, a.Y, a.IncY, a.Result)
	})
}

// GemmBatch runs Gemm for each of the first count argument sets.
func GemmBatch[T compute.Scalar](ex *Executor, count int, args []GemmArgs[T]) (Events, error) {
	return batch("GemmBatch", count, args, func(a GemmArgs[T]) (*Event, error) {
		return Gemm(ex, a.TransA, a.TransB, a.M, a.N, a.K, a.Alpha, a.A, a.LDA, a.B, a.LDB, a.Beta, a.C, a.LDC)
	})
}
