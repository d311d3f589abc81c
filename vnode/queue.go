package vnode

import (
	"sync"

	"github.com/pipewright/fitting/worker"
)

// queue is the pending-input FIFO for one (stage, partition) pair. A
// blocked NextInput wakes on new items, on drain, and on an archive
// directive. Archive directives preempt queued items: the remaining items
// are transferred to the handoff destination, not processed here.
type queue struct {
	mu         sync.Mutex
	cond       *sync.Cond
	items      []worker.Input
	drained    bool
	archiveReq bool
	warned     bool
}

func newQueue() *queue {
	q := &queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// push appends one input and returns the resulting depth.
func (q *queue) push(in worker.Input) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, in)
	q.cond.Broadcast()
	return len(q.items)
}

// next blocks until an input is available. Priority order: a pending
// archive directive, then queued items, then the drain marker.
func (q *queue) next() worker.Input {
	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		if q.archiveReq {
			q.archiveReq = false
			return worker.Input{Kind: worker.InputArchive}
		}
		if len(q.items) > 0 {
			in := q.items[0]
			q.items = q.items[1:]
			return in
		}
		if q.drained {
			return worker.Input{Kind: worker.InputDone}
		}
		q.cond.Wait()
	}
}

// markDrained records that no further inputs will arrive for this queue.
// Existing items are still delivered before the done marker.
func (q *queue) markDrained() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.drained = true
	q.cond.Broadcast()
}

// requestArchive directs the hosted worker to archive and terminate.
func (q *queue) requestArchive() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.archiveReq = true
	q.cond.Broadcast()
}

// takeAll removes and returns all queued items, for transfer during
// handoff.
func (q *queue) takeAll() []worker.Input {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

// depth returns the current number of queued items.
func (q *queue) depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// warnOnce reports true the first time the queue crosses the given depth.
func (q *queue) warnOnce(depth, threshold int) bool {
	if threshold <= 0 || depth < threshold {
		return false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.warned {
		return false
	}
	q.warned = true
	return true
}
