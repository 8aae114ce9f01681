// Package gudablas configuration constants
package gudablas

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"k8s.io/klog/v2"

	"github.com/LynnColeArt/gudablas/traits"
)

// Thread and block dimensions
const (
	// Default work-group size for elementwise and reduction launches
	DefaultLocalSize = 256

	// Maximum work-items per work-group (CUDA compatibility)
	MaxThreadsPerBlock = 1024

	// Default edge of a GEMM tile of C; one tile is one work-group
	DefaultTileSize = 16
)

// Reduction and queue parameters
const (
	// Partial counts at or below this are finished on the host
	DefaultHostReduceThreshold = 64

	// Capacity of the asynchronous fault queue
	DefaultFaultQueueSize = 64

	// Launches allowed in flight at once
	DefaultMaxConcurrentLaunches = 16
)

// Memory pool parameters
const (
	// Memory alignment for allocations
	MemoryAlignment = 64

	// Free list size threshold for reuse
	FreeListThreshold = 100

	// Device memory assumed when the platform cannot report it
	DefaultDeviceMemory = 16 << 30
)

// Config tunes a PolicyHandler and the executors bound to it.
type Config struct {
	// LocalSize is the work-group size; clamped to the device maximum.
	LocalSize int
	// TileSize is the edge of a GEMM tile.
	TileSize int
	// Workers bounds how many work-groups of one launch run in parallel.
	Workers int
	// MaxConcurrentLaunches bounds how many launches execute at once.
	MaxConcurrentLaunches int
	// HostReduceThreshold is the partial count at which the second
	// reduction phase moves to the host.
	HostReduceThreshold int
	// FaultQueueSize is the capacity of the fault queue.
	FaultQueueSize int
	// DeviceMemory is the pool capacity in bytes.
	DeviceMemory int64
	// Device selects the capability table row.
	Device traits.DeviceKind
}

// DefaultConfig returns the defaults for the host device.
func DefaultConfig() Config {
	return Config{
		LocalSize:             DefaultLocalSize,
		TileSize:              DefaultTileSize,
		Workers:               runtime.NumCPU(),
		MaxConcurrentLaunches: DefaultMaxConcurrentLaunches,
		HostReduceThreshold:   DefaultHostReduceThreshold,
		FaultQueueSize:        DefaultFaultQueueSize,
		DeviceMemory:          int64(systemMemory()),
		Device:                traits.DeviceHost,
	}
}

// Validate rejects configurations no device could run.
func (c Config) Validate() error {
	switch {
	case c.LocalSize <= 0:
		return NewInvalidArgError("Config", fmt.Sprintf("local size must be positive, got %d", c.LocalSize))
	case c.TileSize <= 0:
		return NewInvalidArgError("Config", fmt.Sprintf("tile size must be positive, got %d", c.TileSize))
	case c.Workers <= 0:
		return NewInvalidArgError("Config", fmt.Sprintf("workers must be positive, got %d", c.Workers))
	case c.MaxConcurrentLaunches <= 0:
		return NewInvalidArgError("Config", fmt.Sprintf("max concurrent launches must be positive, got %d", c.MaxConcurrentLaunches))
	case c.HostReduceThreshold < 1:
		return NewInvalidArgError("Config", fmt.Sprintf("host reduce threshold must be at least 1, got %d", c.HostReduceThreshold))
	case c.FaultQueueSize < 1:
		return NewInvalidArgError("Config", fmt.Sprintf("fault queue size must be at least 1, got %d", c.FaultQueueSize))
	case c.DeviceMemory <= 0:
		return NewInvalidArgError("Config", fmt.Sprintf("device memory must be positive, got %d", c.DeviceMemory))
	}
	if c.Device != traits.DeviceHost && c.Device != traits.DeviceNoDouble {
		return NewInvalidArgError("Config", fmt.Sprintf("unknown device kind %d", int(c.Device)))
	}
	return nil
}

// ConfigFromEnv returns DefaultConfig overridden by GUDABLAS_* variables.
// Invalid values are logged and ignored.
func ConfigFromEnv() Config {
	c := DefaultConfig()
	c.LocalSize = envInt("GUDABLAS_LOCAL_SIZE", c.LocalSize)
	c.TileSize = envInt("GUDABLAS_TILE_SIZE", c.TileSize)
	c.Workers = envInt("GUDABLAS_WORKERS", c.Workers)
	c.MaxConcurrentLaunches = envInt("GUDABLAS_MAX_LAUNCHES", c.MaxConcurrentLaunches)
	c.HostReduceThreshold = envInt("GUDABLAS_HOST_REDUCE", c.HostReduceThreshold)
	c.FaultQueueSize = envInt("GUDABLAS_FAULT_QUEUE", c.FaultQueueSize)
	c.DeviceMemory = int64(envInt("GUDABLAS_DEVICE_MEMORY", int(c.DeviceMemory)))
	if s := envVar("GUDABLAS_DEVICE"); s != "" {
		d, err := traits.ParseDeviceKind(s)
		if err != nil {
			klog.Warningf("invalid GUDABLAS_DEVICE %q, using default %s", s, c.Device)
		} else {
			c.Device = d
		}
	}
	return c
}

// envVar returns an environment variable stripped of quotes and spaces.
func envVar(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}

func envInt(key string, defaultValue int) int {
	s := envVar(key)
	if s == "" {
		return defaultValue
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		klog.Warningf("invalid %s %q, using default %d", key, s, defaultValue)
		return defaultValue
	}
	return int(n)
}
