// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package compute holds the scalar functors, reduction folds and small host
// helpers evaluated per work-item by the gudablas kernels. Everything here is
// a pure function of its arguments.
package compute

import (
	"fmt"
	"math"

	"github.com/LynnColeArt/gudablas/traits"
)

// Scalar is the set of element types the engine computes in.
type Scalar interface {
	float32 | float64
}

// Op is an elementwise functor tag.
type Op int

const (
	// Unary
	OpAbs Op = iota
	OpSqrt
	OpNeg
	OpSin
	OpCos
	// Binary
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMin
	OpMax
	// Ternary: a*b + c
	OpMad
	numOps
)

var opNames = [...]string{
	OpAbs: "abs", OpSqrt: "sqrt", OpNeg: "neg", OpSin: "sin", OpCos: "cos",
	OpAdd: "add", OpSub: "sub", OpMul: "mul", OpDiv: "div", OpMin: "min",
	OpMax: "max", OpMad: "mad",
}

func (op Op) String() string {
	if op < 0 || op >= numOps {
		return fmt.Sprintf("op(%d)", int(op))
	}
	return opNames[op]
}

// Valid reports whether op is a known functor.
func (op Op) Valid() bool {
	return op >= 0 && op < numOps
}

// Arity returns the number of operands op consumes.
func (op Op) Arity() int {
	switch {
	case op <= OpCos:
		return 1
	case op <= OpMax:
		return 2
	case op == OpMad:
		return 3
	default:
		return 0
	}
}

// Capability returns the device capability op needs. Negation is always
// available and reports ok=false.
func (op Op) Capability() (c traits.Capability, ok bool) {
	switch op {
	case OpAbs:
		return traits.Abs, true
	case OpSqrt:
		return traits.Sqrt, true
	case OpSin:
		return traits.Sin, true
	case OpCos:
		return traits.Cos, true
	case OpAdd:
		return traits.Add, true
	case OpSub:
		return traits.Sub, true
	case OpMul:
		return traits.Mul, true
	case OpDiv:
		return traits.Div, true
	case OpMin:
		return traits.Min, true
	case OpMax:
		return traits.Max, true
	case OpMad:
		return traits.Mad, true
	}
	return 0, false
}

// Apply1 evaluates a unary functor.
func Apply1[T Scalar](op Op, a T) T {
	switch op {
	case OpAbs:
		return T(math.Abs(float64(a)))
	case OpSqrt:
		return T(math.Sqrt(float64(a)))
	case OpNeg:
		return -a
	case OpSin:
		return T(math.Sin(float64(a)))
	case OpCos:
		return T(math.Cos(float64(a)))
	}
	panic(fmt.Sprintf("compute: %v is not unary", op))
}

// Apply2 evaluates a binary functor.
func Apply2[T Scalar](op Op, a, b T) T {
	switch op {
	case OpAdd:
		return a + b
	case OpSub:
		return a - b
	case OpMul:
		return a * b
	case OpDiv:
		return a / b
	case OpMin:
		if b < a {
			return b
		}
		return a
	case OpMax:
		if b > a {
			return b
		}
		return a
	}
	panic(fmt.Sprintf("compute: %v is not binary", op))
}

// Apply3 evaluates a ternary functor.
func Apply3[T Scalar](op Op, a, b, c T) T {
	if op != OpMad {
		panic(fmt.Sprintf("compute: %v is not ternary", op))
	}
	return a*b + c
}
