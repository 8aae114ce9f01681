//go:build !linux

package gudablas

// systemMemory returns the default device memory; the platform does not
// report physical memory portably.
func systemMemory() uint64 {
	return DefaultDeviceMemory
}
