package gudablas

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventStates(t *testing.T) {
	e := newEvent(7, "axpy")
	assert.Equal(t, EventBuilt, e.State())
	assert.False(t, e.Complete())
	assert.NoError(t, e.Err())

	e.advance(EventSubmitted)
	e.advance(EventExecuting)
	assert.Equal(t, "axpy#7(executing)", e.String())

	boom := errors.New("boom")
	e.finish(boom)
	assert.True(t, e.Complete())
	assert.Equal(t, EventComplete, e.State())
	assert.Equal(t, boom, e.Err())
	<-e.Done()

	done := completedEvent("noop")
	assert.True(t, done.Complete())
	assert.NoError(t, done.Err())
}

func TestEventsSkipsNil(t *testing.T) {
	a, b := completedEvent("a"), newEvent(1, "b")
	es := Events{a, nil, b}
	assert.Len(t, es.events(), 2)
	assert.False(t, es.Complete())
	b.finish(nil)
	assert.True(t, es.Complete())

	var nilEvent *Event
	assert.Empty(t, nilEvent.events())
}

func TestFaultQueueBounded(t *testing.T) {
	q := newFaultQueue(2)
	q.push(nil)
	assert.Equal(t, 0, q.len())

	e1, e2, e3, e4 := errors.New("1"), errors.New("2"), errors.New("3"), errors.New("4")
	for _, e := range []error{e1, e2, e3, e4} {
		q.push(e)
	}
	assert.Equal(t, 2, q.len())

	got, folded := q.drain()
	require.Len(t, got, 2)
	assert.Equal(t, 2, folded)
	assert.Equal(t, e1, got[0])
	for _, e := range []error{e2, e3, e4} {
		assert.ErrorIs(t, got[1], e)
	}
	got, folded = q.drain()
	assert.Empty(t, got)
	assert.Zero(t, folded)
}
