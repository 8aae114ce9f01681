package gudablas

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"k8s.io/klog/v2"
)

// PolicyHandler is the only component that touches device memory. It owns
// the device, its queue and its memory pool, allocates and releases
// buffers, moves data between host and device and resolves handles back to
// buffers. One handler serves a session and is torn down by Close.
//
// Every operation returns once the work is enqueued; completion is observed
// through the returned Event.
type PolicyHandler struct {
	cfg     Config
	dev     *Device
	q       *Queue
	pool    *MemoryPool
	session uuid.UUID
	log     klog.Logger

	nextID atomic.Uint64
	mu     sync.Mutex
	bufs   map[uint64]any // *Buffer[E]
	closed bool
}

// NewPolicyHandler validates cfg and starts a session.
func NewPolicyHandler(cfg Config) (*PolicyHandler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	session := uuid.New()
	log := klog.Background().WithName("gudablas").WithValues("session", session.String())
	dev := newDevice(cfg.Device, cfg.DeviceMemory)
	if cfg.LocalSize > dev.MaxWorkGroupSize {
		log.Info("clamping local size to device maximum", "localSize", cfg.LocalSize, "max", dev.MaxWorkGroupSize)
		cfg.LocalSize = dev.MaxWorkGroupSize
	}
	ph := &PolicyHandler{
		cfg:     cfg,
		dev:     dev,
		q:       newQueue(dev, cfg, log.WithName("queue")),
		pool:    NewMemoryPool(cfg.DeviceMemory),
		session: session,
		log:     log,
		bufs:    make(map[uint64]any),
	}
	log.V(1).Info("session started", "device", dev.Name, "features", dev.Features.String(),
		"localSize", cfg.LocalSize, "workers", cfg.Workers, "memory", cfg.DeviceMemory)
	return ph, nil
}

// Device returns the bound device.
func (ph *PolicyHandler) Device() *Device { return ph.dev }

// Config returns the effective configuration.
func (ph *PolicyHandler) Config() Config { return ph.cfg }

// Session returns the session identifier used in logs.
func (ph *PolicyHandler) Session() string { return ph.session.String() }

// Stats returns memory pool statistics.
func (ph *PolicyHandler) Stats() MemoryStats { return ph.pool.Stats() }

// Faults drains the fault queue without waiting for anything.
func (ph *PolicyHandler) Faults() []error {
	return ph.drainFaults()
}

func (ph *PolicyHandler) drainFaults() []error {
	errs, folded := ph.q.faults.drain()
	if folded > 0 {
		ph.log.V(1).Info("fault queue overflowed", "queued", len(errs), "folded", folded)
	}
	return errs
}

// Synchronize blocks until every submitted launch has completed.
func (ph *PolicyHandler) Synchronize() {
	ph.q.drain()
}

// Close waits for in-flight work, ends the session and returns any faults
// that were never drained. Later operations fail with InvalidArgument.
func (ph *PolicyHandler) Close() error {
	ph.mu.Lock()
	if ph.closed {
		ph.mu.Unlock()
		return nil
	}
	ph.closed = true
	ph.mu.Unlock()

	ph.q.drain()
	ph.pool.Trim()
	ph.log.V(1).Info("session closed", "peak", ph.pool.Stats().Peak)
	return errors.Join(ph.drainFaults()...)
}

func (ph *PolicyHandler) checkOpen(op string) error {
	ph.mu.Lock()
	defer ph.mu.Unlock()
	if ph.closed {
		return NewInvalidArgError(op, "policy handler is closed")
	}
	return nil
}

func (ph *PolicyHandler) register(b any) uint64 {
	id := ph.nextID.Add(1)
	ph.mu.Lock()
	ph.bufs[id] = b
	ph.mu.Unlock()
	return id
}

// Allocate returns a new pool-owned buffer of count zeroed elements. It
// fails with OutOfDeviceMemory when the pool capacity would be exceeded.
func Allocate[E any](ph *PolicyHandler, count int) (*Buffer[E], error) {
	if err := ph.checkOpen("Allocate"); err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, NewInvalidArgError("Allocate", fmt.Sprintf("negative count %d", count))
	}
	alloc, mem, err := poolAllocate[E](ph.pool, count)
	if err != nil {
		ph.log.Error(err, "allocation failed", "count", count)
		return nil, err
	}
	b := &Buffer[E]{data: mem, owned: true, alloc: alloc, queue: ph.q}
	b.id = ph.register(b)
	ph.log.V(4).Info("allocate", "buffer", b.id, "count", count, "bytes", alloc.size)
	return b, nil
}

// MakeBuffer wraps caller-owned host memory as a device buffer without
// copying. Kernels read and write host directly; the caller must not touch
// it while launches using the buffer are in flight.
func MakeBuffer[E any](ph *PolicyHandler, host []E) (*Buffer[E], error) {
	if err := ph.checkOpen("MakeBuffer"); err != nil {
		return nil, err
	}
	b := &Buffer[E]{data: host, queue: ph.q}
	b.id = ph.register(b)
	return b, nil
}

// Deallocate releases a pool-owned buffer. Releasing twice fails with
// DoubleFree. The memory returns to the pool once the launches touching the
// buffer have completed; Deallocate itself never waits.
func Deallocate[E any](ph *PolicyHandler, b *Buffer[E]) error {
	if b == nil {
		return NewInvalidArgError("Deallocate", "nil buffer")
	}
	if !b.owned {
		return NewInvalidArgError("Deallocate", fmt.Sprintf("%v is caller-owned", b))
	}
	if b.released.Swap(true) {
		return &Error{Type: ErrTypeDoubleFree, Op: "Deallocate", Message: fmt.Sprintf("%v released twice", b)}
	}
	ph.mu.Lock()
	delete(ph.bufs, b.id)
	ph.mu.Unlock()

	pending := ph.q.inflight(b.id)
	if len(pending) == 0 {
		ph.q.forget(b.id)
		return ph.pool.release(b.alloc)
	}
	go func() {
		for _, e := range pending {
			<-e.done
		}
		ph.q.forget(b.id)
		if err := ph.pool.release(b.alloc); err != nil {
			ph.q.faults.push(err)
		}
	}()
	return nil
}

// GetBuffer resolves a handle back to the canonical buffer it belongs to.
// The same allocation always yields the same *Buffer.
func GetBuffer[E any](ph *PolicyHandler, loc Locator) (*Buffer[E], error) {
	if loc == nil {
		return nil, NewInvalidArgError("GetBuffer", "nil handle")
	}
	id, _ := loc.locate()
	ph.mu.Lock()
	entry, ok := ph.bufs[id]
	ph.mu.Unlock()
	if !ok {
		return nil, NewInvalidArgError("GetBuffer", fmt.Sprintf("unknown allocation %d", id))
	}
	b, ok := entry.(*Buffer[E])
	if !ok {
		var zero E
		return nil, NewInvalidArgError("GetBuffer", fmt.Sprintf("allocation %d does not hold %T", id, zero))
	}
	return b, nil
}

// GetOffset returns the element offset of loc within its allocation.
func GetOffset(loc Locator) int {
	_, off := loc.locate()
	return off
}

// CopyToDevice copies count elements from host into dst. count 0 copies
// dst's extent from its offset to the end. host must stay untouched until
// the event completes.
func CopyToDevice[E any](ph *PolicyHandler, host []E, dst BufferRef[E], count int) (*Event, error) {
	if err := ph.checkOpen("CopyToDevice"); err != nil {
		return nil, err
	}
	buf, off, err := resolveRef("CopyToDevice", dst)
	if err != nil {
		return nil, err
	}
	extent := buf.Len() - off
	if count == 0 {
		count = extent
	}
	if count < 0 || count > extent || count > len(host) {
		return nil, NewInvalidArgError("CopyToDevice",
			fmt.Sprintf("cannot copy %d elements from %d host into %d device elements", count, len(host), extent))
	}
	return ph.q.submit("CopyToDevice", []BufferAccess{Write(buf)}, func(context.Context) error {
		copy(buf.data[off:off+count], host[:count])
		return nil
	}), nil
}

// CopyToHost copies count elements from src into host. count 0 copies
// len(host) elements.
func CopyToHost[E any](ph *PolicyHandler, src BufferRef[E], host []E, count int) (*Event, error) {
	if err := ph.checkOpen("CopyToHost"); err != nil {
		return nil, err
	}
	buf, off, err := resolveRef("CopyToHost", src)
	if err != nil {
		return nil, err
	}
	extent := buf.Len() - off
	if count == 0 {
		count = len(host)
	}
	if count < 0 || count > extent || count > len(host) {
		return nil, NewInvalidArgError("CopyToHost",
			fmt.Sprintf("cannot copy %d elements from %d device into %d host elements", count, extent, len(host)))
	}
	return ph.q.submit("CopyToHost", []BufferAccess{Read(buf)}, func(context.Context) error {
		copy(host[:count], buf.data[off:off+count])
		return nil
	}), nil
}
