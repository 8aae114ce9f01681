// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package compute

import (
	"fmt"
	"math"
)

// ReduceOp is a combining functor for reductions.
type ReduceOp int

const (
	Sum ReduceOp = iota
	Product
	SumAbs
	MaxIndex
	MinIndex
)

func (op ReduceOp) String() string {
	switch op {
	case Sum:
		return "sum"
	case Product:
		return "product"
	case SumAbs:
		return "sumabs"
	case MaxIndex:
		return "maxindex"
	case MinIndex:
		return "minindex"
	default:
		return fmt.Sprintf("reduce(%d)", int(op))
	}
}

// Indexed reports whether op produces an IndexValue rather than a scalar.
func (op ReduceOp) Indexed() bool {
	return op == MaxIndex || op == MinIndex
}

// Identity returns the neutral element of a scalar reduction.
func Identity[T Scalar](op ReduceOp) T {
	switch op {
	case Sum, SumAbs:
		return 0
	case Product:
		return 1
	}
	panic(fmt.Sprintf("compute: %v has no scalar identity", op))
}

// Lift maps a source element into the accumulator domain of op.
func Lift[T Scalar](op ReduceOp, v T) T {
	if op == SumAbs {
		return T(math.Abs(float64(v)))
	}
	return v
}

// Combine merges two partial accumulators of a scalar reduction.
func Combine[T Scalar](op ReduceOp, a, b T) T {
	switch op {
	case Sum, SumAbs:
		return a + b
	case Product:
		return a * b
	}
	panic(fmt.Sprintf("compute: %v is not a scalar reduction", op))
}

// Fold reduces x serially from the identity.
func Fold[T Scalar](op ReduceOp, x []T) T {
	acc := Identity[T](op)
	for _, v := range x {
		acc = Combine(op, acc, Lift(op, v))
	}
	return acc
}

// IndexValue is the result of an index-producing reduction. Index is the
// global logical index of the selected element and Value its signed value.
// Index -1 means no element was seen.
type IndexValue[T Scalar] struct {
	Index int64
	Value T
}

// NoIndex returns the identity of index reductions.
func NoIndex[T Scalar]() IndexValue[T] {
	return IndexValue[T]{Index: -1}
}

// CombineIndex merges two partial results of an index reduction. Elements
// compare by absolute value; on equal magnitude the lower index wins, so the
// result does not depend on merge order.
func CombineIndex[T Scalar](op ReduceOp, a, b IndexValue[T]) IndexValue[T] {
	if a.Index < 0 {
		return b
	}
	if b.Index < 0 {
		return a
	}
	av, bv := math.Abs(float64(a.Value)), math.Abs(float64(b.Value))
	var better bool
	switch op {
	case MaxIndex:
		better = bv > av
	case MinIndex:
		better = bv < av
	default:
		panic(fmt.Sprintf("compute: %v is not an index reduction", op))
	}
	if better || (av == bv && b.Index < a.Index) {
		return b
	}
	return a
}

// FoldIndex reduces x serially. base is the global index of x[0]; ties keep
// the lowest index.
func FoldIndex[T Scalar](op ReduceOp, x []T, base int64) IndexValue[T] {
	acc := NoIndex[T]()
	for i, v := range x {
		acc = CombineIndex(op, acc, IndexValue[T]{Index: base + int64(i), Value: v})
	}
	return acc
}

// MergeIndex combines partial index results in any order.
func MergeIndex[T Scalar](op ReduceOp, parts []IndexValue[T]) IndexValue[T] {
	acc := NoIndex[T]()
	for _, p := range parts {
		acc = CombineIndex(op, acc, p)
	}
	return acc
}
