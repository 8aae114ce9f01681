package gudablas

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/LynnColeArt/gudablas/compute"
	"github.com/LynnColeArt/gudablas/traits"
)

func randVec(rnd *rand.Rand, n int) []float64 {
	return seq(n, func(int) float64 { return rnd.Float64()*2 - 1 })
}

func TestAxpy(t *testing.T) {
	ph, ex := newTestExecutor(t, withLocalSize(16))
	rnd := rand.New(rand.NewSource(1))
	for _, n := range []int{0, 1, 15, 16, 17, 1000} {
		xs, ys := randVec(rnd, n), randVec(rnd, n)
		want := make([]float64, n)
		for i := range want {
			want[i] = ys[i] + 0.75*xs[i]
		}
		ev, err := Axpy[float64](ex, n, 0.75, mustBuffer(t, ph, xs), 1, mustBuffer(t, ph, ys), 1)
		require.NoError(t, err)
		require.NoError(t, ex.Wait(ev))
		assert.True(t, floats.EqualApprox(want, ys, 1e-12), "n=%d", n)
	}
}

func TestAxpyFloat32Strided(t *testing.T) {
	ph, ex := newTestExecutor(t)
	xs := []float32{1, 0, 2, 0, 3, 0}
	ys := []float32{10, 20, 30}
	ev, err := Axpy[float32](ex, 3, 2, mustBuffer(t, ph, xs), 2, mustBuffer(t, ph, ys), 1)
	require.NoError(t, err)
	require.NoError(t, ex.Wait(ev))
	assert.Equal(t, []float32{12, 24, 36}, ys)
}

func TestScal(t *testing.T) {
	ph, ex := newTestExecutor(t)
	xs := []float64{1, 2, 3, 4, 5}
	ev, err := Scal[float64](ex, 3, -2, mustBuffer(t, ph, xs), 2)
	require.NoError(t, err)
	require.NoError(t, ex.Wait(ev))
	assert.Equal(t, []float64{-2, 2, -6, 4, -10}, xs)
}

func TestCopy(t *testing.T) {
	ph, ex := newTestExecutor(t)
	xs := []float64{1, 2, 3}
	ys := make([]float64, 6)
	ev, err := Copy[float64](ex, 3, mustBuffer(t, ph, xs), 1, mustBuffer(t, ph, ys), 2)
	require.NoError(t, err)
	require.NoError(t, ex.Wait(ev))
	assert.Equal(t, []float64{1, 0, 2, 0, 3, 0}, ys)
}

func TestSwapStrideOnlyTouchesMultiples(t *testing.T) {
	ph, ex := newTestExecutor(t)
	const n, stride = 10, 2
	xs := seq(n, func(i int) float64 { return float64(i) })
	ys := seq(n, func(i int) float64 { return float64(100 + i) })
	// n/stride logical elements cover physical indices 0,2,4,6,8.
	ev, err := Swap[float64](ex, n/stride, mustBuffer(t, ph, xs), stride, mustBuffer(t, ph, ys), stride)
	require.NoError(t, err)
	require.NoError(t, ex.Wait(ev))
	for i := 0; i < n; i++ {
		if i%stride == 0 {
			assert.Equal(t, float64(100+i), xs[i], "x[%d] swapped", i)
			assert.Equal(t, float64(i), ys[i], "y[%d] swapped", i)
		} else {
			assert.Equal(t, float64(i), xs[i], "x[%d] untouched", i)
			assert.Equal(t, float64(100+i), ys[i], "y[%d] untouched", i)
		}
	}
}

func TestDotCommutative(t *testing.T) {
	ph, ex := newTestExecutor(t, withLocalSize(32), withHostReduce(2))
	rnd := rand.New(rand.NewSource(3))
	for _, n := range []int{1, 31, 32, 33, 5000} {
		xs, ys := randVec(rnd, n), randVec(rnd, n)
		x, y := mustBuffer(t, ph, xs), mustBuffer(t, ph, ys)
		r1, r2 := make([]float64, 1), make([]float64, 1)
		ev1, err := Dot[float64](ex, n, x, 1, y, 1, mustBuffer(t, ph, r1))
		require.NoError(t, err)
		ev2, err := Dot[float64](ex, n, y, 1, x, 1, mustBuffer(t, ph, r2))
		require.NoError(t, err)
		require.NoError(t, ex.Wait(ev1, ev2))
		assert.InDelta(t, r1[0], r2[0], 1e-9, "n=%d", n)
		assert.InDelta(t, floats.Dot(xs, ys), r1[0], 1e-9, "n=%d", n)
	}
}

func TestDotEmptyWritesZero(t *testing.T) {
	ph, ex := newTestExecutor(t)
	res := []float64{42}
	ev, err := Dot[float64](ex, 0, mustBuffer(t, ph, []float64{}), 1, mustBuffer(t, ph, []float64{}), 1, mustBuffer(t, ph, res))
	require.NoError(t, err)
	require.NoError(t, ex.Wait(ev))
	assert.Equal(t, 0.0, res[0])
}

func TestAsumSignInvariant(t *testing.T) {
	ph, ex := newTestExecutor(t, withLocalSize(8))
	rnd := rand.New(rand.NewSource(5))
	xs := randVec(rnd, 257)
	flipped := make([]float64, len(xs))
	for i, v := range xs {
		flipped[i] = v
		if i%3 == 0 {
			flipped[i] = -v
		}
	}
	r1, r2 := make([]float64, 1), make([]float64, 1)
	ev1, err := Asum[float64](ex, len(xs), mustBuffer(t, ph, xs), 1, mustBuffer(t, ph, r1))
	require.NoError(t, err)
	ev2, err := Asum[float64](ex, len(xs), mustBuffer(t, ph, flipped), 1, mustBuffer(t, ph, r2))
	require.NoError(t, err)
	require.NoError(t, ex.Wait(Events{ev1, ev2}))
	assert.InDelta(t, r1[0], r2[0], 1e-12)

	var want float64
	for _, v := range xs {
		want += math.Abs(v)
	}
	assert.InDelta(t, want, r1[0], 1e-9)
}

func TestNrm2(t *testing.T) {
	ph, ex := newTestExecutor(t)
	xs := []float32{3, 99, 4, 99}
	res := make([]float32, 1)
	ev, err := Nrm2[float32](ex, 2, mustBuffer(t, ph, xs), 2, mustBuffer(t, ph, res))
	require.NoError(t, err)
	require.NoError(t, ex.Wait(ev))
	assert.InDelta(t, 5, float64(res[0]), 1e-6)
}

func TestIamaxFirstOccurrence(t *testing.T) {
	ph, ex := newTestExecutor(t)
	xs := []float64{3.0, -3.0, 1.0}
	res := make([]compute.IndexValue[float64], 1)
	ev, err := Iamax[float64](ex, 3, mustBuffer(t, ph, xs), 1, mustBuffer(t, ph, res))
	require.NoError(t, err)
	require.NoError(t, ex.Wait(ev))
	assert.Equal(t, compute.IndexValue[float64]{Index: 0, Value: 3}, res[0])
}

func TestIamin(t *testing.T) {
	ph, ex := newTestExecutor(t)
	xs := []float32{4, -0.5, 2, 0.5, -0.5}
	res := make([]compute.IndexValue[float32], 1)
	ev, err := Iamin[float32](ex, len(xs), mustBuffer(t, ph, xs), 1, mustBuffer(t, ph, res))
	require.NoError(t, err)
	require.NoError(t, ex.Wait(ev))
	assert.Equal(t, compute.IndexValue[float32]{Index: 1, Value: -0.5}, res[0])
}

func TestIamaxTieAcrossWorkGroups(t *testing.T) {
	// Four elements per group and a host threshold of one force every
	// partial through the recursive merge.
	ph, ex := newTestExecutor(t, withLocalSize(4), withHostReduce(1))
	xs := make([]float64, 67)
	for i := range xs {
		xs[i] = float64(i%5) / 10
	}
	xs[6] = -9
	xs[21] = 9
	xs[66] = 9
	res := make([]compute.IndexValue[float64], 1)
	ev, err := Iamax[float64](ex, len(xs), mustBuffer(t, ph, xs), 1, mustBuffer(t, ph, res))
	require.NoError(t, err)
	require.NoError(t, ex.Wait(ev))
	assert.Equal(t, compute.IndexValue[float64]{Index: 6, Value: -9}, res[0])
}

func TestReductionsWithUnitLocalSize(t *testing.T) {
	// One element per group leaves every partial pass with one element
	// per group too, unless the partial passes widen their groups.
	ph, ex := newTestExecutor(t, withLocalSize(1), withHostReduce(1))
	xs := seq(100, func(i int) float64 { return 1 })
	xs[73] = -4
	sum := make([]float64, 1)
	idx := make([]compute.IndexValue[float64], 1)

	xb, sb, ib := mustBuffer(t, ph, xs), mustBuffer(t, ph, sum), mustBuffer(t, ph, idx)

	done := make(chan error, 1)
	go func() {
		ev1, err := Asum[float64](ex, len(xs), xb, 1, sb)
		if err != nil {
			done <- err
			return
		}
		ev2, err := Iamax[float64](ex, len(xs), xb, 1, ib)
		if err != nil {
			done <- err
			return
		}
		done <- ex.Wait(Events{ev1, ev2})
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("reductions with a local size of one did not finish")
	}
	assert.Equal(t, 103.0, sum[0])
	assert.Equal(t, compute.IndexValue[float64]{Index: 73, Value: -4}, idx[0])
}

func TestIamaxEmpty(t *testing.T) {
	ph, ex := newTestExecutor(t)
	res := []compute.IndexValue[float64]{{Index: 7, Value: 1}}
	ev, err := Iamax[float64](ex, 0, mustBuffer(t, ph, []float64{}), 1, mustBuffer(t, ph, res))
	require.NoError(t, err)
	require.NoError(t, ex.Wait(ev))
	assert.Equal(t, int64(-1), res[0].Index)
}

func TestRot(t *testing.T) {
	ph, ex := newTestExecutor(t)
	c, s, _, _ := compute.Rotg(3.0, 4.0)
	xs := []float64{3, 1}
	ys := []float64{4, 2}
	ev, err := Rot[float64](ex, 2, mustBuffer(t, ph, xs), 1, mustBuffer(t, ph, ys), 1, c, s)
	require.NoError(t, err)
	require.NoError(t, ex.Wait(ev))
	assert.InDelta(t, 5, xs[0], 1e-12)
	assert.InDelta(t, 0, ys[0], 1e-12)
	assert.InDelta(t, 0.6*1+0.8*2, xs[1], 1e-12)
	assert.InDelta(t, 0.6*2-0.8*1, ys[1], 1e-12)
}

func TestLevel1ArgumentErrors(t *testing.T) {
	ph, ex := newTestExecutor(t)
	x := mustBuffer(t, ph, make([]float64, 4))
	y := mustBuffer(t, ph, make([]float64, 4))

	_, err := Axpy[float64](ex, 4, 1, x, 0, y, 1)
	assert.ErrorIs(t, err, ErrInvalidStride)
	_, err = Scal[float64](ex, 2, 1, x, -1)
	assert.ErrorIs(t, err, ErrInvalidStride)
	_, err = Swap[float64](ex, -1, x, 1, y, 1)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = Copy[float64](ex, 3, x, 2, y, 1)
	assert.ErrorIs(t, err, ErrInvalidArgument, "x needs 5 elements")
	_, err = Dot[float64](ex, 4, x, 1, y, 1, mustBuffer(t, ph, []float64{}))
	assert.ErrorIs(t, err, ErrInvalidArgument, "result needs one element")
}

func TestIteratorArguments(t *testing.T) {
	ph, ex := newTestExecutor(t)
	xs := []float64{0, 0, 1, 2, 3}
	x := mustBuffer(t, ph, xs)
	ev, err := Scal[float64](ex, 3, 10, x.Begin().Add(2), 1)
	require.NoError(t, err)
	require.NoError(t, ex.Wait(ev))
	assert.Equal(t, []float64{0, 0, 10, 20, 30}, xs)
}

func TestUnsupportedFloat64OnNoDouble(t *testing.T) {
	ph, ex := newTestExecutor(t, func(c *Config) { c.Device = traits.DeviceNoDouble })
	_, err := Axpy[float64](ex, 1, 1, mustBuffer(t, ph, []float64{1}), 1, mustBuffer(t, ph, []float64{1}), 1)
	assert.ErrorIs(t, err, ErrUnsupportedOperation)

	ys := []float32{1}
	ev, err := Axpy[float32](ex, 1, 2, mustBuffer(t, ph, []float32{3}), 1, mustBuffer(t, ph, ys), 1)
	require.NoError(t, err)
	require.NoError(t, ex.Wait(ev))
	assert.Equal(t, float32(7), ys[0])
}
