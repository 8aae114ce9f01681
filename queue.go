package gudablas

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"k8s.io/klog/v2"
)

// Queue is the device queue. Every launch runs on its own goroutine once
// the launches it depends on have completed; dependencies are derived from
// the buffers each launch reads and writes. Launches on disjoint buffers are
// independent and may run concurrently or out of order.
type Queue struct {
	dev     *Device
	workers int
	sem     *semaphore.Weighted
	faults  *faultQueue
	log     klog.Logger

	seq     atomic.Uint64
	pending sync.WaitGroup

	mu     sync.Mutex
	tracks map[uint64]*bufferTrack
}

// bufferTrack records the accessors of one buffer: the last writer and
// every reader since.
type bufferTrack struct {
	writer  *Event
	readers []*Event
}

// BufferAccess declares how a launch touches a buffer.
type BufferAccess struct {
	id    uint64
	write bool
}

// Read declares a read of the allocation loc points into.
func Read(loc Locator) BufferAccess {
	id, _ := loc.locate()
	return BufferAccess{id: id}
}

// Write declares a write (or read-write) of the allocation loc points into.
func Write(loc Locator) BufferAccess {
	id, _ := loc.locate()
	return BufferAccess{id: id, write: true}
}

func newQueue(dev *Device, cfg Config, log klog.Logger) *Queue {
	return &Queue{
		dev:     dev,
		workers: cfg.Workers,
		sem:     semaphore.NewWeighted(int64(cfg.MaxConcurrentLaunches)),
		faults:  newFaultQueue(cfg.FaultQueueSize),
		log:     log,
		tracks:  make(map[uint64]*bufferTrack),
	}
}

// submit enqueues run behind every earlier launch that conflicts with
// accesses and returns its event. It never blocks on device work.
func (q *Queue) submit(name string, accesses []BufferAccess, run func(ctx context.Context) error) *Event {
	ev := newEvent(q.seq.Add(1), name)
	deps := q.order(ev, accesses)
	ev.advance(EventSubmitted)
	q.log.V(2).Info("submit", "launch", name, "seq", ev.seq, "deps", len(deps))

	q.pending.Add(1)
	go func() {
		defer q.pending.Done()
		for _, d := range deps {
			<-d.done
		}
		ctx := context.Background()
		if err := q.sem.Acquire(ctx, 1); err != nil {
			q.complete(ev, NewBackendFaultError(name, "acquire launch slot", err))
			return
		}
		ev.advance(EventExecuting)
		err := protect(name, func() error { return run(ctx) })
		q.sem.Release(1)
		q.complete(ev, err)
	}()
	return ev
}

func (q *Queue) complete(ev *Event, err error) {
	if err != nil {
		if !IsBackendFaultError(err) {
			err = NewBackendFaultError(ev.name, "launch failed", err)
		}
		q.log.Error(err, "launch failed", "launch", ev.name, "seq", ev.seq)
		q.faults.push(err)
	}
	ev.finish(err)
	q.log.V(4).Info("complete", "launch", ev.name, "seq", ev.seq)
}

// order computes the dependencies of a launch with the given accesses and
// records it as the newest accessor of each buffer: a read waits for the
// last writer; a write also waits for every reader since.
func (q *Queue) order(ev *Event, accesses []BufferAccess) []*Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	seen := make(map[*Event]bool)
	var deps []*Event
	add := func(d *Event) {
		if d == nil || d == ev || seen[d] || d.Complete() {
			return
		}
		seen[d] = true
		deps = append(deps, d)
	}

	for _, a := range merge(accesses) {
		t := q.tracks[a.id]
		if t == nil {
			t = &bufferTrack{}
			q.tracks[a.id] = t
		}
		add(t.writer)
		if a.write {
			for _, r := range t.readers {
				add(r)
			}
			t.writer = ev
			t.readers = nil
		} else {
			t.readers = pruneComplete(append(t.readers, ev))
		}
		q.log.V(4).Info("access", "launch", ev.name, "buffer", a.id, "write", a.write)
	}
	return deps
}

// merge folds repeated accesses to one buffer, a write winning over reads.
func merge(accesses []BufferAccess) []BufferAccess {
	out := make([]BufferAccess, 0, len(accesses))
	index := make(map[uint64]int, len(accesses))
	for _, a := range accesses {
		if a.id == 0 {
			continue
		}
		if i, ok := index[a.id]; ok {
			out[i].write = out[i].write || a.write
			continue
		}
		index[a.id] = len(out)
		out = append(out, a)
	}
	return out
}

func pruneComplete(events []*Event) []*Event {
	out := events[:0]
	for _, e := range events {
		if !e.Complete() {
			out = append(out, e)
		}
	}
	return out
}

// inflight returns the incomplete launches touching buffer id.
func (q *Queue) inflight(id uint64) []*Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	t := q.tracks[id]
	if t == nil {
		return nil
	}
	var out []*Event
	if t.writer != nil && !t.writer.Complete() {
		out = append(out, t.writer)
	}
	for _, r := range t.readers {
		if !r.Complete() {
			out = append(out, r)
		}
	}
	return out
}

// waitBuffer blocks until no launch touching buffer id is in flight.
func (q *Queue) waitBuffer(id uint64) {
	for _, e := range q.inflight(id) {
		<-e.done
	}
}

// forget drops the access record of a released buffer.
func (q *Queue) forget(id uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.tracks, id)
}

// drain blocks until every submitted launch has completed.
func (q *Queue) drain() {
	q.pending.Wait()
}

// forGroups runs fn for every work-group index in [0, groups) with at most
// q.workers groups in parallel. A panic inside fn becomes a BackendFault.
func (q *Queue) forGroups(ctx context.Context, name string, groups int, fn func(group int) error) error {
	if groups == 0 {
		return nil
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(q.workers)
	for group := 0; group < groups; group++ {
		if ctx.Err() != nil {
			break
		}
		group := group
		g.Go(func() error {
			return protect(name, func() error { return fn(group) })
		})
	}
	return g.Wait()
}

// protect runs fn and converts a panic into a BackendFault.
func protect(name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = NewBackendFaultError(name, "kernel panicked", e)
				return
			}
			err = NewBackendFaultError(name, fmt.Sprintf("kernel panicked: %v", r), nil)
		}
	}()
	return fn()
}
