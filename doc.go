// Copyright ©2019 The Gonum Authors. All rights reserved.
// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package gudablas is a BLAS execution engine that treats the CPU as an
// accelerator in the GUDA model.
//
// Routines such as Axpy, Dot or Gemm do not compute directly. They build an
// operation Tree over strided Views of device Buffers and hand it to an
// Executor, which lowers it to work-group launches on the PolicyHandler's
// queue and returns an Event:
//
//	ph, _ := gudablas.NewPolicyHandler(gudablas.DefaultConfig())
//	defer ph.Close()
//	ex := gudablas.NewExecutor(ph)
//
//	x, _ := gudablas.MakeBuffer(ph, xs)
//	y, _ := gudablas.MakeBuffer(ph, ys)
//	ev, _ := gudablas.Axpy(ex, len(xs), 2.0, x, 1, y, 1)
//	if err := ex.Wait(ev); err != nil {
//		// a launch faulted
//	}
//
// Launches are ordered only by the buffers they share. Argument errors are
// returned when the statement is built; faults raised while a launch runs
// are queued and returned by Wait.
package gudablas
