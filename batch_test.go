package gudablas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/floats"
)

func TestAxpyBatch(t *testing.T) {
	ph, ex := newTestExecutor(t)
	const count = 5
	xs := make([][]float64, count)
	ys := make([][]float64, count)
	args := make([]AxpyArgs[float64], count+2)
	for i := 0; i < count; i++ {
		xs[i] = seq(10+i, func(j int) float64 { return float64(j) })
		ys[i] = seq(10+i, func(int) float64 { return 1 })
		args[i] = AxpyArgs[float64]{
			N: 10 + i, Alpha: float64(i),
			X: mustBuffer(t, ph, xs[i]), IncX: 1,
			Y: mustBuffer(t, ph, ys[i]), IncY: 1,
		}
	}

	events, err := AxpyBatch(ex, count, args)
	require.NoError(t, err)
	require.Len(t, events, count)
	require.NoError(t, ex.Wait(events))
	assert.True(t, events.Complete())
	for i := 0; i < count; i++ {
		for j, y := range ys[i] {
			assert.Equal(t, 1+float64(i*j), y, "batch %d element %d", i, j)
		}
	}
}

func TestDotAndScalBatch(t *testing.T) {
	ph, ex := newTestExecutor(t)
	x := seq(16, func(i int) float64 { return float64(i + 1) })
	y := seq(16, func(i int) float64 { return float64(16 - i) })
	res := make([]float64, 2)
	rb := mustBuffer(t, ph, res)
	xb, yb := mustBuffer(t, ph, x), mustBuffer(t, ph, y)

	events, err := DotBatch(ex, 2, []DotArgs[float64]{
		{N: 16, X: xb, IncX: 1, Y: yb, IncY: 1, Result: rb},
		{N: 8, X: xb, IncX: 2, Y: yb, IncY: 2, Result: rb.Begin().Add(1)},
	})
	require.NoError(t, err)
	require.NoError(t, ex.Wait(events))
	assert.Equal(t, floats.Dot(x, y), res[0])
	var strided float64
	for i := 0; i < 16; i += 2 {
		strided += x[i] * y[i]
	}
	assert.Equal(t, strided, res[1])

	events, err = ScalBatch(ex, 1, []ScalArgs[float64]{{N: 2, Alpha: 0.5, X: rb, IncX: 1}})
	require.NoError(t, err)
	require.NoError(t, ex.Wait(events))
	assert.Equal(t, floats.Dot(x, y)/2, res[0])
}

func TestGemmBatch(t *testing.T) {
	ph, ex := newTestExecutor(t)
	a := []float64{1, 2, 3, 4}
	b := []float64{5, 6, 7, 8}
	c0 := make([]float64, 4)
	c1 := make([]float64, 4)
	ab, bb := mustBuffer(t, ph, a), mustBuffer(t, ph, b)
	args := []GemmArgs[float64]{
		{TransA: blas.NoTrans, TransB: blas.NoTrans, M: 2, N: 2, K: 2, Alpha: 1, A: ab, LDA: 2, B: bb, LDB: 2, C: mustBuffer(t, ph, c0), LDC: 2},
		{TransA: blas.Trans, TransB: blas.NoTrans, M: 2, N: 2, K: 2, Alpha: 1, A: ab, LDA: 2, B: bb, LDB: 2, C: mustBuffer(t, ph, c1), LDC: 2},
	}
	events, err := GemmBatch(ex, 2, args)
	require.NoError(t, err)
	require.NoError(t, ex.Wait(events))
	// Column-major A = [1 3; 2 4], B = [5 7; 6 8].
	assert.Equal(t, []float64{23, 34, 31, 46}, c0)
	assert.Equal(t, []float64{17, 39, 23, 53}, c1)
}

func TestBatchErrors(t *testing.T) {
	ph, ex := newTestExecutor(t)
	_, err := ScalBatch[float64](ex, 3, make([]ScalArgs[float64], 2))
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = ScalBatch[float64](ex, -1, nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	events, err := ScalBatch(ex, 0, []ScalArgs[float64]{})
	require.NoError(t, err)
	assert.Empty(t, events)

	x := mustBuffer(t, ph, []float64{1, 2})
	events, err = ScalBatch(ex, 2, []ScalArgs[float64]{
		{N: 2, Alpha: 2, X: x, IncX: 1},
		{N: 2, Alpha: 2, X: x, IncX: 0},
	})
	assert.ErrorIs(t, err, ErrInvalidStride)
	assert.Contains(t, err.Error(), "batch entry 1")
	require.Len(t, events, 1, "entries before the failure stay submitted")
	require.NoError(t, ex.Wait(events))
}
