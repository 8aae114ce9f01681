package gudablas

import (
	"fmt"
	"runtime"

	"github.com/LynnColeArt/gudablas/traits"
)

// Device represents a compute device. In GUDA, this is the CPU with its
// cores and available memory, presented through the capability row
// selected by Kind.
type Device struct {
	ID               int                // Unique device identifier
	Name             string             // Human-readable device name
	Kind             traits.DeviceKind  // Capability table row
	TotalMem         uint64             // Total device memory in bytes
	NumCores         int                // Number of CPU cores
	MaxWorkGroupSize int                // Maximum work-items per work-group
	Features         traits.CPUFeatures // Detected host vector extensions
}

func newDevice(kind traits.DeviceKind, mem int64) *Device {
	return &Device{
		Name:             fmt.Sprintf("CPU (%s)", kind),
		Kind:             kind,
		TotalMem:         uint64(mem),
		NumCores:         runtime.NumCPU(),
		MaxWorkGroupSize: MaxThreadsPerBlock,
		Features:         traits.HostFeatures(),
	}
}

// Traits returns the packet traits of s on this device.
func (d *Device) Traits(s traits.ScalarType) traits.PacketTraits {
	return traits.Lookup(s, d.Kind)
}

// ParallelForSetup returns the launch geometry for extent work-items: the
// work-group size, clamped to the device maximum, and ceil(extent/local)
// work-groups.
func (d *Device) ParallelForSetup(extent, localSize int) (local, groups int) {
	local = localSize
	if local > d.MaxWorkGroupSize {
		local = d.MaxWorkGroupSize
	}
	if local < 1 {
		local = 1
	}
	if extent <= 0 {
		return local, 0
	}
	return local, (extent + local - 1) / local
}

// Dim3 represents 3D dimensions for grid and block configurations.
// This matches CUDA's dim3 structure for kernel launch parameters.
type Dim3 struct {
	X, Y, Z int
}

// Size returns the total number of elements
func (d Dim3) Size() int {
	return d.X * d.Y * d.Z
}

// ThreadID identifies a thread's position within the execution hierarchy.
// It provides the same indexing semantics as CUDA's built-in variables:
// blockIdx, threadIdx, blockDim, and gridDim.
type ThreadID struct {
	BlockIdx  Dim3 // Block index within the grid
	ThreadIdx Dim3 // Thread index within the block
	BlockDim  Dim3 // Dimensions of the block
	GridDim   Dim3 // Dimensions of the grid
}

// Global returns the global thread index
func (tid ThreadID) Global() int {
	return tid.BlockIdx.X*tid.BlockDim.X + tid.ThreadIdx.X
}

// GlobalY returns the global Y index
func (tid ThreadID) GlobalY() int {
	return tid.BlockIdx.Y*tid.BlockDim.Y + tid.ThreadIdx.Y
}

// GlobalZ returns the global Z index
func (tid ThreadID) GlobalZ() int {
	return tid.BlockIdx.Z*tid.BlockDim.Z + tid.ThreadIdx.Z
}

// KernelFunc is a function that can be launched as a kernel. It is called
// once per thread, concurrently across blocks.
type KernelFunc func(tid ThreadID)

// linearTo3D converts a linear index to 3D coordinates
func linearTo3D(linear int, dim Dim3) Dim3 {
	z := linear / (dim.X * dim.Y)
	y := (linear % (dim.X * dim.Y)) / dim.X
	x := linear % dim.X
	return Dim3{X: x, Y: y, Z: z}
}

// normalize fills zero dimensions with 1.
func (d Dim3) normalize() Dim3 {
	if d.X == 0 {
		d.X = 1
	}
	if d.Y == 0 {
		d.Y = 1
	}
	if d.Z == 0 {
		d.Z = 1
	}
	return d
}
