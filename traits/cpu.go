// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package traits

import (
	"runtime"

	"golang.org/x/sys/cpu"
)

// CPUFeatures tracks the instruction set extensions that decide the host
// packet width.
type CPUFeatures struct {
	HasSSE4    bool
	HasAVX     bool
	HasAVX2    bool
	HasFMA     bool
	HasAVX512F bool
	HasNEON    bool
}

var cpuFeatures = detectCPUFeatures()

func detectCPUFeatures() CPUFeatures {
	f := CPUFeatures{
		HasSSE4:    cpu.X86.HasSSE41 || cpu.X86.HasSSE42,
		HasAVX:     cpu.X86.HasAVX,
		HasAVX2:    cpu.X86.HasAVX2,
		HasFMA:     cpu.X86.HasFMA,
		HasAVX512F: cpu.X86.HasAVX512F,
	}
	if runtime.GOARCH == "arm64" {
		f.HasNEON = cpu.ARM64.HasASIMD
	}
	return f
}

// HostFeatures returns the detected host features.
func HostFeatures() CPUFeatures {
	return cpuFeatures
}

// VectorBytes returns the widest native vector register in bytes.
func (f CPUFeatures) VectorBytes() int {
	switch {
	case f.HasAVX512F:
		return 64
	case f.HasAVX2, f.HasAVX:
		return 32
	case f.HasSSE4, f.HasNEON:
		return 16
	default:
		return 0
	}
}

// String lists the detected extensions.
func (f CPUFeatures) String() string {
	var out string
	add := func(ok bool, name string) {
		if !ok {
			return
		}
		if out != "" {
			out += ","
		}
		out += name
	}
	add(f.HasSSE4, "SSE4")
	add(f.HasAVX, "AVX")
	add(f.HasAVX2, "AVX2")
	add(f.HasFMA, "FMA")
	add(f.HasAVX512F, "AVX512F")
	add(f.HasNEON, "NEON")
	if out == "" {
		return "scalar"
	}
	return out
}

func hostLanes(s ScalarType) int {
	lanes := cpuFeatures.VectorBytes() / s.Size()
	if lanes < 1 {
		return 1
	}
	return lanes
}
