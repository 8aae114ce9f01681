package gudablas

import (
	"context"
	"errors"

	"k8s.io/klog/v2"
)

// Executor lowers statements into launches on its policy handler's queue
// and exposes completion through events.
type Executor struct {
	ph  *PolicyHandler
	q   *Queue
	cfg Config
	log klog.Logger
}

// NewExecutor returns an executor bound to ph.
func NewExecutor(ph *PolicyHandler) *Executor {
	return &Executor{
		ph:  ph,
		q:   ph.q,
		cfg: ph.cfg,
		log: ph.log.WithName("executor"),
	}
}

// PolicyHandler returns the handler the executor launches through.
func (ex *Executor) PolicyHandler() *PolicyHandler {
	return ex.ph
}

// Execute lowers stmt and submits it. Construction errors are returned
// synchronously; faults raised while the launch runs complete the event and
// are reported by Wait.
func (ex *Executor) Execute(stmt Statement) (*Event, error) {
	if err := ex.ph.checkOpen(stmt.Name()); err != nil {
		return nil, err
	}
	l, err := stmt.lower(ex)
	if err != nil {
		return nil, err
	}
	return ex.submit(l), nil
}

// ExecuteAll lowers every statement before submitting any, then submits
// them in order and returns one event per statement.
func (ex *Executor) ExecuteAll(stmts ...Statement) (Events, error) {
	launches := make([]*launch, len(stmts))
	for i, s := range stmts {
		if err := ex.ph.checkOpen(s.Name()); err != nil {
			return nil, err
		}
		l, err := s.lower(ex)
		if err != nil {
			return nil, err
		}
		launches[i] = l
	}
	events := make(Events, len(launches))
	for i, l := range launches {
		events[i] = ex.submit(l)
	}
	return events, nil
}

func (ex *Executor) submit(l *launch) *Event {
	ex.log.V(4).Info("lowered", "launch", l.name, "extent", l.extent, "buffers", len(l.accesses))
	return ex.q.submit(l.name, l.accesses, ex.runLaunch(l))
}

// Launch runs kernel once per thread of a grid x block launch. Blocks run
// in parallel; threads within a block run in order on one goroutine, as in
// the CUDA-on-CPU model. accesses order the launch against others.
func (ex *Executor) Launch(name string, grid, block Dim3, kernel KernelFunc, accesses ...BufferAccess) (*Event, error) {
	if err := ex.ph.checkOpen(name); err != nil {
		return nil, err
	}
	if kernel == nil {
		return nil, NewInvalidArgError(name, "nil kernel")
	}
	grid, block = grid.normalize(), block.normalize()
	if block.Size() > ex.q.dev.MaxWorkGroupSize {
		return nil, NewInvalidArgError(name, "block exceeds the maximum work-group size")
	}
	blockSize := block.Size()
	return ex.q.submit(name, accesses, func(ctx context.Context) error {
		ex.log.V(2).Info("launch", "kernel", name, "grid", grid, "block", block)
		return ex.q.forGroups(ctx, name, grid.Size(), func(blockID int) error {
			blockIdx := linearTo3D(blockID, grid)
			for threadID := 0; threadID < blockSize; threadID++ {
				kernel(ThreadID{
					BlockIdx:  blockIdx,
					ThreadIdx: linearTo3D(threadID, block),
					BlockDim:  block,
					GridDim:   grid,
				})
			}
			return nil
		})
	}), nil
}

// Wait blocks until every given event is complete, then drains the fault
// queue and returns the queued faults joined in completion order. It
// accepts single events, event collections, or nothing.
func (ex *Executor) Wait(ws ...Waitable) error {
	for _, w := range ws {
		if w == nil {
			continue
		}
		for _, e := range w.events() {
			<-e.done
		}
	}
	return errors.Join(ex.ph.drainFaults()...)
}

// WaitContext is Wait bounded by ctx. When ctx ends first it returns
// ctx.Err(); the launches keep running and their faults stay queued.
func (ex *Executor) WaitContext(ctx context.Context, ws ...Waitable) error {
	for _, w := range ws {
		if w == nil {
			continue
		}
		for _, e := range w.events() {
			select {
			case <-e.done:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return errors.Join(ex.ph.drainFaults()...)
}
