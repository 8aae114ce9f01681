package gudablas

import (
	"fmt"
	"sync/atomic"
)

// EventState is the lifecycle position of a launch.
type EventState int32

const (
	EventBuilt EventState = iota
	EventSubmitted
	EventExecuting
	EventComplete
)

func (s EventState) String() string {
	switch s {
	case EventBuilt:
		return "built"
	case EventSubmitted:
		return "submitted"
	case EventExecuting:
		return "executing"
	case EventComplete:
		return "complete"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Event is the completion handle of one launch or transfer. Its state only
// moves forward; once complete, every query is side-effect free.
type Event struct {
	seq   uint64
	name  string
	state atomic.Int32
	done  chan struct{}
	err   error
}

func newEvent(seq uint64, name string) *Event {
	return &Event{seq: seq, name: name, done: make(chan struct{})}
}

// completedEvent returns an event that is already complete, used for
// launches with nothing to do.
func completedEvent(name string) *Event {
	e := newEvent(0, name)
	e.state.Store(int32(EventComplete))
	close(e.done)
	return e
}

// Name returns the launch name.
func (e *Event) Name() string {
	return e.name
}

// State returns the current state.
func (e *Event) State() EventState {
	return EventState(e.state.Load())
}

// Done returns a channel closed on completion.
func (e *Event) Done() <-chan struct{} {
	return e.done
}

// Complete reports whether the launch has finished.
func (e *Event) Complete() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}

// Err returns the fault the launch raised, or nil. It is only meaningful
// once the event is complete.
func (e *Event) Err() error {
	if !e.Complete() {
		return nil
	}
	return e.err
}

func (e *Event) advance(s EventState) {
	e.state.Store(int32(s))
}

// finish records err and completes the event.
func (e *Event) finish(err error) {
	e.err = err
	e.advance(EventComplete)
	close(e.done)
}

func (e *Event) String() string {
	return fmt.Sprintf("%s#%d(%s)", e.name, e.seq, e.State())
}

func (e *Event) events() []*Event {
	if e == nil {
		return nil
	}
	return []*Event{e}
}

// Events is a fixed-size collection of events from a batched launch.
type Events []*Event

func (es Events) events() []*Event {
	out := make([]*Event, 0, len(es))
	for _, e := range es {
		if e != nil {
			out = append(out, e)
		}
	}
	return out
}

// Complete reports whether every event has finished.
func (es Events) Complete() bool {
	for _, e := range es {
		if e != nil && !e.Complete() {
			return false
		}
	}
	return true
}

// Waitable is accepted by Wait: an *Event or Events.
type Waitable interface {
	events() []*Event
}
