package gudablas

import (
	"fmt"

	"github.com/LynnColeArt/gudablas/compute"
	"github.com/LynnColeArt/gudablas/traits"
)

// kernelSet holds the kernel builders instantiated for one (scalar type,
// index type) pair.
type kernelSet[T compute.Scalar] struct {
	scalar      traits.ScalarType
	index       traits.IndexType
	assign      func(env kernelEnv, dst []View[T], src []func(int) T, n int) error
	reduce      func(env kernelEnv, op compute.ReduceOp, src func(int) T, n int) (T, error)
	reduceIndex func(env kernelEnv, op compute.ReduceOp, src func(int) T, n int) (compute.IndexValue[T], error)
	contract    func(env kernelEnv, c, a, b Matrix[T], alpha, beta T, template func() elementTemplate[T]) error
}

type registryKey struct {
	scalar traits.ScalarType
	index  traits.IndexType
}

// registry maps (scalar, index) to a *kernelSet of the matching T. It is
// populated by init and read-only afterwards.
var registry = map[registryKey]any{}

func register[T compute.Scalar](index traits.IndexType) {
	s := traits.Of[T]()
	registry[registryKey{s, index}] = &kernelSet[T]{
		scalar:      s,
		index:       index,
		assign:      assignKernel[T],
		reduce:      reduceKernel[T],
		reduceIndex: reduceIndexKernel[T],
		contract:    contractKernel[T],
	}
}

func init() {
	for _, index := range []traits.IndexType{traits.Int32, traits.Int64} {
		register[float32](index)
		register[float64](index)
	}
}

func lookupKernels[T compute.Scalar](s traits.ScalarType, index traits.IndexType) (*kernelSet[T], error) {
	entry, ok := registry[registryKey{s, index}]
	if !ok {
		return nil, NewUnsupportedError("Registry", fmt.Sprintf("no kernels for (%s, %s)", s, index))
	}
	ks, ok := entry.(*kernelSet[T])
	if !ok {
		return nil, NewUnsupportedError("Registry", fmt.Sprintf("kernels for (%s, %s) have type %T", s, index, entry))
	}
	return ks, nil
}

// Registered lists the (scalar, index) pairs kernels exist for.
func Registered() [][2]string {
	var out [][2]string
	for _, s := range []traits.ScalarType{traits.Float32, traits.Float64} {
		for _, idx := range []traits.IndexType{traits.Int32, traits.Int64} {
			if _, ok := registry[registryKey{s, idx}]; ok {
				out = append(out, [2]string{s.String(), idx.String()})
			}
		}
	}
	return out
}
