package gudablas

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocateOutOfDeviceMemory(t *testing.T) {
	ph, _ := newTestExecutor(t, func(c *Config) { c.DeviceMemory = 1024 })

	_, err := Allocate[float64](ph, 200)
	assert.ErrorIs(t, err, ErrOutOfDeviceMemory)

	a, err := Allocate[float64](ph, 100)
	require.NoError(t, err)
	assert.Equal(t, 100, a.Len())
	assert.True(t, a.Owned())

	_, err = Allocate[float64](ph, 100)
	assert.ErrorIs(t, err, ErrOutOfDeviceMemory)

	require.NoError(t, Deallocate(ph, a))
	b, err := Allocate[float64](ph, 100)
	require.NoError(t, err)
	st := ph.Stats()
	assert.Equal(t, int64(1), st.Reused)
	assert.Equal(t, int64(832), st.InUse)
	require.NoError(t, Deallocate(ph, b))
}

func TestAllocateSizeOverflow(t *testing.T) {
	ph, _ := newTestExecutor(t)
	_, err := Allocate[float64](ph, 1<<61)
	assert.ErrorIs(t, err, ErrOutOfDeviceMemory)
	_, err = Allocate[float32](ph, math.MaxInt)
	assert.ErrorIs(t, err, ErrOutOfDeviceMemory)
	assert.Zero(t, ph.Stats().InUse)
}

func TestDeallocateTwice(t *testing.T) {
	ph, _ := newTestExecutor(t)
	b, err := Allocate[float32](ph, 16)
	require.NoError(t, err)
	require.NoError(t, Deallocate(ph, b))
	assert.True(t, b.Released())

	err = Deallocate(ph, b)
	assert.ErrorIs(t, err, ErrDoubleFree)
	assert.True(t, IsDoubleFreeError(err))
}

func TestDeallocateCallerOwned(t *testing.T) {
	ph, _ := newTestExecutor(t)
	b := mustBuffer(t, ph, []float64{1, 2})
	assert.ErrorIs(t, Deallocate(ph, b), ErrInvalidArgument)
}

func TestReleasedBufferRejected(t *testing.T) {
	ph, ex := newTestExecutor(t)
	b, err := Allocate[float64](ph, 4)
	require.NoError(t, err)
	require.NoError(t, Deallocate(ph, b))
	_, err = Scal[float64](ex, 4, 1, b, 1)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestDeallocateDefersUntilLaunchesComplete(t *testing.T) {
	ph, ex := newTestExecutor(t)
	b, err := Allocate[float64](ph, 64)
	require.NoError(t, err)
	release := make(chan struct{})
	ev, err := ex.Launch("hold", Dim3{X: 1}, Dim3{X: 1}, func(ThreadID) { <-release }, Write(b))
	require.NoError(t, err)

	require.NoError(t, Deallocate(ph, b), "release does not block")
	assert.Equal(t, int64(512), ph.Stats().InUse)

	close(release)
	require.NoError(t, ex.Wait(ev))
	assert.Eventually(t, func() bool { return ph.Stats().InUse == 0 }, time.Second, time.Millisecond)
}

func TestGetBufferIdentity(t *testing.T) {
	ph, _ := newTestExecutor(t)
	b, err := Allocate[float32](ph, 10)
	require.NoError(t, err)

	it := b.Begin().Add(3)
	got, err := GetBuffer[float32](ph, it.Handle())
	require.NoError(t, err)
	assert.Same(t, b, got)

	got, err = GetBuffer[float32](ph, it)
	require.NoError(t, err)
	assert.Same(t, b, got)

	v, err := NewView[float32](it, 2, 1, 3)
	require.NoError(t, err)
	got, err = GetBuffer[float32](ph, v)
	require.NoError(t, err)
	assert.Same(t, b, got)

	assert.Equal(t, 3, GetOffset(it.Handle()))
	assert.Equal(t, 4, GetOffset(it.Handle().Offset(1)))
	assert.Equal(t, 5, GetOffset(v))
	assert.Equal(t, 0, GetOffset(b))

	_, err = GetBuffer[float64](ph, it)
	assert.ErrorIs(t, err, ErrInvalidArgument, "wrong element type")
	_, err = GetBuffer[float32](ph, DevicePtr{})
	assert.ErrorIs(t, err, ErrInvalidArgument, "unknown handle")
}

func TestCopyCountZeroUsesDestinationExtent(t *testing.T) {
	ph, ex := newTestExecutor(t)
	b, err := Allocate[float64](ph, 8)
	require.NoError(t, err)

	host := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	up, err := CopyToDevice(ph, host, b, 0)
	require.NoError(t, err)

	tail, err := CopyToDevice(ph, []float64{90, 91, 92}, b.Begin().Add(6), 0)
	require.NoError(t, err, "count 0 copies the two elements left after offset 6")

	out := make([]float64, 5)
	down, err := CopyToHost(ph, b, out, 0)
	require.NoError(t, err)
	full := make([]float64, 8)
	all, err := CopyToHost(ph, b, full, 8)
	require.NoError(t, err)

	require.NoError(t, ex.Wait(Events{up, tail, down, all}))
	assert.Equal(t, []float64{1, 2, 3, 4, 5}, out)
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6, 90, 91}, full)
}

func TestCopyRejectsOversizedCounts(t *testing.T) {
	ph, _ := newTestExecutor(t)
	b, err := Allocate[float64](ph, 4)
	require.NoError(t, err)

	_, err = CopyToDevice(ph, make([]float64, 2), b, 0)
	assert.ErrorIs(t, err, ErrInvalidArgument, "host shorter than the device extent")
	_, err = CopyToDevice(ph, make([]float64, 8), b, 5)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = CopyToHost(ph, b, make([]float64, 8), 0)
	assert.ErrorIs(t, err, ErrInvalidArgument, "host longer than the device extent")
}

func TestCopyOrderedAfterKernels(t *testing.T) {
	ph, ex := newTestExecutor(t)
	b, err := Allocate[float64](ph, 3)
	require.NoError(t, err)
	up, err := CopyToDevice(ph, []float64{1, 2, 3}, b, 0)
	require.NoError(t, err)
	scal, err := Scal[float64](ex, 3, 3, b, 1)
	require.NoError(t, err)
	out := make([]float64, 3)
	down, err := CopyToHost(ph, b, out, 0)
	require.NoError(t, err)
	require.NoError(t, ex.Wait(down))
	assert.True(t, up.Complete())
	assert.True(t, scal.Complete())
	assert.Equal(t, []float64{3, 6, 9}, out)
}

func TestNewPolicyHandlerValidates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workers = 0
	_, err := NewPolicyHandler(cfg)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	cfg = DefaultConfig()
	cfg.LocalSize = 4096
	ph, err := NewPolicyHandler(cfg)
	require.NoError(t, err)
	defer ph.Close()
	assert.Equal(t, MaxThreadsPerBlock, ph.Config().LocalSize)
	assert.NotEmpty(t, ph.Session())
}
