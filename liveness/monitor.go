// Package liveness provides process-local peer monitoring: a Peer is a
// terminable identity, and Watch delivers a one-shot notification when a
// peer terminates. Cancellation of a watch is idempotent.
package liveness

import (
	"sync"
)

// Peer is a monitorable identity for one actor. A peer terminates exactly
// once; the recorded error is nil for a normal exit.
type Peer struct {
	id   string
	once sync.Once

	mu   sync.Mutex
	err  error
	done chan struct{}
}

// NewPeer creates a live peer with the given identity.
func NewPeer(id string) *Peer {
	return &Peer{
		id:   id,
		done: make(chan struct{}),
	}
}

// ID returns the peer's identity.
func (p *Peer) ID() string {
	return p.id
}

// Done returns a channel that is closed when the peer terminates.
func (p *Peer) Done() <-chan struct{} {
	return p.done
}

// Terminate marks the peer as terminated with the given exit error.
// Only the first call has any effect.
func (p *Peer) Terminate(err error) {
	p.once.Do(func() {
		p.mu.Lock()
		p.err = err
		p.mu.Unlock()
		close(p.done)
	})
}

// Terminated reports whether the peer has terminated.
func (p *Peer) Terminated() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Err returns the exit error recorded by Terminate. It is nil while the
// peer is still live and for peers that exited normally.
func (p *Peer) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Token cancels a watch installed with Watch. Cancel is idempotent. A
// termination that races with Cancel may still be delivered; receivers
// must tolerate a notification for a watch they have already canceled.
type Token struct {
	once   sync.Once
	cancel chan struct{}
}

// Cancel unregisters the watch. Safe to call multiple times.
func (t *Token) Cancel() {
	t.once.Do(func() {
		close(t.cancel)
	})
}

// Watch invokes fn at most once, with the peer's exit error, when the peer
// terminates. The returned token unregisters the watch; once the watcher
// has observed Cancel, fn is not invoked, but a termination racing with
// Cancel may still be delivered (see Token). Watching an already-terminated
// peer fires immediately.
func Watch(p *Peer, fn func(err error)) *Token {
	t := &Token{cancel: make(chan struct{})}

	go func() {
		select {
		case <-p.done:
			select {
			case <-t.cancel:
				return
			default:
			}
			fn(p.Err())
		case <-t.cancel:
		}
	}()

	return t
}
