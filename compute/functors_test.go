package compute

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/LynnColeArt/gudablas/traits"
)

func TestApply(t *testing.T) {
	tests := []struct {
		op   Op
		args []float64
		want float64
	}{
		{OpAbs, []float64{-2.5}, 2.5},
		{OpSqrt, []float64{9}, 3},
		{OpNeg, []float64{4}, -4},
		{OpSin, []float64{0}, 0},
		{OpCos, []float64{0}, 1},
		{OpAdd, []float64{1, 2}, 3},
		{OpSub, []float64{1, 2}, -1},
		{OpMul, []float64{3, 2}, 6},
		{OpDiv, []float64{3, 2}, 1.5},
		{OpMin, []float64{3, -2}, -2},
		{OpMax, []float64{3, -2}, 3},
		{OpMad, []float64{3, 2, 1}, 7},
	}
	for _, tt := range tests {
		t.Run(tt.op.String(), func(t *testing.T) {
			assert.Equal(t, len(tt.args), tt.op.Arity())
			assert.InDelta(t, tt.want, apply(tt.op, tt.args...), 1e-12)
			assert.InDelta(t, tt.want, float64(apply(tt.op, toF32(tt.args)...)), 1e-6)
		})
	}
}

func toF32(x []float64) []float32 {
	out := make([]float32, len(x))
	for i, v := range x {
		out[i] = float32(v)
	}
	return out
}

func apply[T Scalar](op Op, args ...T) T {
	switch len(args) {
	case 1:
		return Apply1(op, args[0])
	case 2:
		return Apply2(op, args[0], args[1])
	}
	return Apply3(op, args[0], args[1], args[2])
}

func TestApplyWrongArityPanics(t *testing.T) {
	assert.Panics(t, func() { Apply1(OpAdd, 1.0) })
	assert.Panics(t, func() { Apply2(OpAbs, 1.0, 2.0) })
	assert.Panics(t, func() { Apply3(OpMul, 1.0, 2.0, 3.0) })
}

func TestOpCapability(t *testing.T) {
	c, ok := OpSin.Capability()
	assert.True(t, ok)
	assert.Equal(t, traits.Sin, c)

	_, ok = OpNeg.Capability()
	assert.False(t, ok)

	assert.False(t, Op(99).Valid())
	assert.Equal(t, 0, Op(99).Arity())
}

func TestSqrtOfNegativeIsNaN(t *testing.T) {
	assert.True(t, math.IsNaN(Apply1(OpSqrt, -1.0)))
}
