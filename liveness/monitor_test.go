package liveness

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeer_TerminateIsIdempotent(t *testing.T) {
	p := NewPeer("p1")
	assert.False(t, p.Terminated())

	first := errors.New("first")
	p.Terminate(first)
	p.Terminate(errors.New("second"))

	assert.True(t, p.Terminated())
	assert.Equal(t, first, p.Err(), "only the first termination is recorded")

	select {
	case <-p.Done():
	default:
		t.Fatal("done channel should be closed")
	}
}

func TestPeer_NormalExitHasNilErr(t *testing.T) {
	p := NewPeer("p1")
	p.Terminate(nil)

	assert.True(t, p.Terminated())
	assert.NoError(t, p.Err())
}

func TestWatch_FiresOnceOnTermination(t *testing.T) {
	p := NewPeer("p1")
	fired := make(chan error, 2)

	Watch(p, func(err error) { fired <- err })

	exit := errors.New("crashed")
	p.Terminate(exit)

	select {
	case err := <-fired:
		assert.Equal(t, exit, err)
	case <-time.After(time.Second):
		t.Fatal("watch did not fire")
	}

	select {
	case <-fired:
		t.Fatal("watch fired more than once")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWatch_AlreadyTerminatedFiresImmediately(t *testing.T) {
	p := NewPeer("p1")
	p.Terminate(nil)

	fired := make(chan error, 1)
	Watch(p, func(err error) { fired <- err })

	select {
	case err := <-fired:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watch did not fire for terminated peer")
	}
}

func TestWatch_CancelSuppressesNotification(t *testing.T) {
	p := NewPeer("p1")
	fired := make(chan error, 1)

	token := Watch(p, func(err error) { fired <- err })
	token.Cancel()

	// Give the watcher goroutine a moment to observe the cancel.
	time.Sleep(20 * time.Millisecond)
	p.Terminate(errors.New("crashed"))

	select {
	case <-fired:
		t.Fatal("canceled watch should not fire")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestToken_CancelIsIdempotent(t *testing.T) {
	p := NewPeer("p1")
	token := Watch(p, func(error) {})

	require.NotPanics(t, func() {
		token.Cancel()
		token.Cancel()
	})
}
