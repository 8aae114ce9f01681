package gudablas

import (
	"fmt"

	"gonum.org/v1/gonum/blas"

	"github.com/LynnColeArt/gudablas/compute"
)

// Gemm computes C = alpha*op(A)*op(B) + beta*C with column-major storage.
// op(A) is m x k, op(B) is k x n and C is m x n. The transpose of each
// operand only changes the strides its rows and columns are read with.
// C is computed in square tiles of Config.TileSize, one work-group each.
func Gemm[T compute.Scalar](ex *Executor, transA, transB blas.Transpose, m, n, k int, alpha T, a BufferRef[T], lda int, b BufferRef[T], ldb int, beta T, c BufferRef[T], ldc int) (*Event, error) {
	if m < 0 || n < 0 || k < 0 {
		return nil, NewInvalidArgError("Gemm", fmt.Sprintf("negative extent m=%d n=%d k=%d", m, n, k))
	}
	am, err := NewMatrix(a, transA, m, k, lda)
	if err != nil {
		return nil, err
	}
	bm, err := NewMatrix(b, transB, k, n, ldb)
	if err != nil {
		return nil, err
	}
	cm, err := NewMatrix(c, blas.NoTrans, m, n, ldc)
	if err != nil {
		return nil, err
	}
	t, err := NewTree[T](ex.ph, WithName("gemm"))
	if err != nil {
		return nil, err
	}
	if err := t.Contract(cm, am, bm, alpha, beta); err != nil {
		return nil, err
	}
	return ex.Execute(t)
}
