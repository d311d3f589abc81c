package memory

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipewright/fitting"
)

func TestSink_CapturesDeliveriesInOrder(t *testing.T) {
	s := New()
	h := fitting.NewHandle("double", nil, fitting.Follow())

	require.NoError(t, s.Deliver("double", h, 1))
	require.NoError(t, s.Deliver("double", h, 2))

	assert.Equal(t, []any{1, 2}, s.Outputs())

	deliveries := s.Deliveries()
	require.Len(t, deliveries, 2)
	assert.Equal(t, "double", deliveries[0].Stage)
}

func TestSink_EOISignalsDone(t *testing.T) {
	s := New()
	h := fitting.NewHandle("double", nil, fitting.Follow())

	select {
	case <-s.Done():
		t.Fatal("done must not be closed before eoi")
	default:
	}

	s.EOI(h)

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("done not closed after eoi")
	}
	assert.Equal(t, 1, s.EOICount())

	// A second signal is recorded but does not panic the done channel.
	require.NotPanics(t, func() { s.EOI(h) })
	assert.Equal(t, 2, s.EOICount())
}

func TestSink_ConcurrentDeliveries(t *testing.T) {
	s := New()
	h := fitting.NewHandle("double", nil, fitting.Follow())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = s.Deliver("double", h, n)
		}(i)
	}
	wg.Wait()

	assert.Len(t, s.Outputs(), 20)
}
