// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package compute

import "gonum.org/v1/gonum/blas/gonum"

var level1 gonum.Implementation

// Rotg computes the plane rotation that zeroes b, returning c, s, r and z
// such that
//
//	[ c s ] [ a ]   [ r ]
//	[-s c ] [ b ] = [ 0 ]
//
// z encodes the rotation compactly for later reconstruction, as in the
// reference BLAS.
func Rotg[T Scalar](a, b T) (c, s, r, z T) {
	switch a := any(a).(type) {
	case float32:
		c, s, r, z := level1.Srotg(a, any(b).(float32))
		return T(c), T(s), T(r), T(z)
	default:
		c, s, r, z := level1.Drotg(a.(float64), any(b).(float64))
		return T(c), T(s), T(r), T(z)
	}
}
