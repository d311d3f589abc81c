// Package vnode provides an in-process realization of the vnode
// collaborator: it owns the pending-input queues for the partitions it
// hosts, creates workers when work first arrives, delivers the drain
// marker after end-of-inputs, and performs worker handoff between vnodes.
package vnode

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pipewright/fitting"
	"github.com/pipewright/fitting/metrics"
	"github.com/pipewright/fitting/worker"
)

// Config configures a vnode.
type Config struct {
	// Name labels the vnode in logs. Defaults to a generated name.
	Name string

	// Ring maps partitions to their owning vnodes. Optional: without a
	// ring the vnode hosts every partition queued on it.
	Ring *Ring

	// Logger is for observability. The zero value discards everything.
	Logger zerolog.Logger

	// QueueWarn logs a warning the first time a queue crosses this depth.
	// Zero disables the check.
	QueueWarn int

	// Metrics is an optional collector for observability.
	Metrics *metrics.Collector
}

// key addresses one (stage, partition) pair on this vnode.
type key struct {
	stage     string
	partition fitting.PartitionID
}

// hosted tracks one running worker.
type hosted struct {
	w   *worker.Worker
	ref *fitting.WorkerRef
}

// Vnode hosts stage workers and their pending-input queues.
type Vnode struct {
	cfg Config
	log zerolog.Logger

	mu             sync.Mutex
	queues         map[key]*queue
	workers        map[key]*hosted
	creating       map[key]bool
	pendingArchive map[key]chan any
}

// Compile-time check that Vnode implements the surfaces the core drives.
var (
	_ fitting.Vnode = (*Vnode)(nil)
	_ worker.Host   = (*Vnode)(nil)
)

// New creates a vnode.
func New(cfg Config) *Vnode {
	if cfg.Name == "" {
		cfg.Name = "vnode-" + uuid.New().String()[:8]
	}
	v := &Vnode{
		cfg:            cfg,
		queues:         make(map[key]*queue),
		workers:        make(map[key]*hosted),
		creating:       make(map[key]bool),
		pendingArchive: make(map[key]chan any),
	}
	v.log = cfg.Logger.With().Str("vnode", cfg.Name).Logger()
	return v
}

// Name returns the vnode's label.
func (v *Vnode) Name() string {
	return v.cfg.Name
}

// queue returns (creating if needed) the queue for (h, p).
func (v *Vnode) queue(h *fitting.Handle, p fitting.PartitionID) *queue {
	k := key{stage: h.UniqueID, partition: p}
	v.mu.Lock()
	defer v.mu.Unlock()
	q, ok := v.queues[k]
	if !ok {
		q = newQueue()
		v.queues[k] = q
	}
	return q
}

// QueueWork enqueues output for (h, partition), forwarding to the owning
// vnode when a ring is configured, and ensures a worker exists to consume
// it. Enqueuing is unbounded; the QueueWarn threshold makes runaway
// queues visible.
func (v *Vnode) QueueWork(h *fitting.Handle, p fitting.PartitionID, output any) error {
	if v.cfg.Ring != nil {
		if owner := v.cfg.Ring.Owner(p); owner != nil && owner != v {
			return owner.QueueWork(h, p, output)
		}
	}

	q := v.queue(h, p)
	depth := q.push(worker.Input{Kind: worker.InputPayload, Payload: output})
	if v.cfg.Metrics != nil {
		v.cfg.Metrics.IncInputsQueued(h.Name)
	}
	if q.warnOnce(depth, v.cfg.QueueWarn) {
		v.log.Warn().Str("stage", h.Name).Int("partition", int(p)).Int("depth", depth).
			Msg("queue depth over threshold")
	}

	return v.ensureWorker(h, p)
}

// DeliverEOI marks (h, partition) as drained. The hosted worker observes
// a done input once the existing queue empties.
func (v *Vnode) DeliverEOI(h *fitting.Handle, p fitting.PartitionID) {
	v.log.Debug().Str("stage", h.Name).Int("partition", int(p)).Msg("eoi delivered")
	v.queue(h, p).markDrained()
}

// NextInput implements worker.Host: it blocks until the next input for
// (h, partition) is available.
func (v *Vnode) NextInput(h *fitting.Handle, p fitting.PartitionID) worker.Input {
	return v.queue(h, p).next()
}

// ReplyArchive implements worker.Host: it resolves the pending handoff
// that requested the archive. A reply with no pending handoff is dropped.
func (v *Vnode) ReplyArchive(h *fitting.Handle, p fitting.PartitionID, archive any) {
	k := key{stage: h.UniqueID, partition: p}
	v.mu.Lock()
	ch := v.pendingArchive[k]
	delete(v.pendingArchive, k)
	v.mu.Unlock()

	if ch != nil {
		ch <- archive
	}
}

// Handoff archives the worker at (h, p) and transfers its state and
// pending inputs to dest. The archived worker terminates normally and is
// reported done to the control; the successor worker on dest adopts the
// archive before seeing any transferred input.
func (v *Vnode) Handoff(h *fitting.Handle, p fitting.PartitionID, dest *Vnode) error {
	if dest == nil || dest == v {
		return fmt.Errorf("handoff requires a distinct destination vnode")
	}

	k := key{stage: h.UniqueID, partition: p}
	v.mu.Lock()
	hw := v.workers[k]
	v.mu.Unlock()

	q := v.queue(h, p)

	var archive any
	if hw != nil {
		ch := make(chan any, 1)
		v.mu.Lock()
		v.pendingArchive[k] = ch
		v.mu.Unlock()

		q.requestArchive()
		select {
		case archive = <-ch:
			<-hw.w.Done()
		case <-hw.w.Done():
			// The worker exited before honoring the directive (it may have
			// drained concurrently). The buffered reply, if any, still wins.
			select {
			case archive = <-ch:
			default:
			}
			v.mu.Lock()
			delete(v.pendingArchive, k)
			v.mu.Unlock()
		}
	}

	rest := q.takeAll()

	v.log.Debug().Str("stage", h.Name).Int("partition", int(p)).
		Int("pending", len(rest)).Str("dest", dest.Name()).Msg("handing off")
	if v.cfg.Metrics != nil {
		v.cfg.Metrics.IncHandoffs(h.Name)
	}

	return dest.acceptHandoff(h, p, archive, rest)
}

// acceptHandoff installs a transferred archive and pending inputs, then
// starts a successor worker. The archive (when defined) is queued ahead of
// the transferred inputs so the successor adopts state first.
func (v *Vnode) acceptHandoff(h *fitting.Handle, p fitting.PartitionID, archive any, rest []worker.Input) error {
	q := v.queue(h, p)
	if archive != nil && archive != any(fitting.ArchiveUndefined) {
		q.push(worker.Input{Kind: worker.InputHandoff, Archive: archive})
	}
	for _, in := range rest {
		q.push(in)
	}
	return v.ensureWorker(h, p)
}

// ensureWorker creates the worker for (h, p) if none is running. The
// worker's reference is registered with the stage control via GetDetails
// before the worker starts; a Gone control means the stage has finished
// or failed, and the pending inputs are dropped.
func (v *Vnode) ensureWorker(h *fitting.Handle, p fitting.PartitionID) error {
	k := key{stage: h.UniqueID, partition: p}

	v.mu.Lock()
	if v.workers[k] != nil || v.creating[k] {
		v.mu.Unlock()
		return nil
	}
	v.creating[k] = true
	v.mu.Unlock()

	ref := fitting.NewWorkerRef(v)
	details, err := h.Control.GetDetails(context.Background(), p, ref)
	if err != nil {
		v.mu.Lock()
		delete(v.creating, k)
		v.mu.Unlock()
		v.queue(h, p).takeAll()
		v.log.Warn().Err(err).Str("stage", h.Name).Int("partition", int(p)).
			Msg("stage gone, dropping pending inputs")
		return err
	}

	w, err := worker.New(worker.Config{
		Handle:    h,
		Details:   details,
		Partition: p,
		Host:      v,
		Ref:       ref,
		Metrics:   v.cfg.Metrics,
	})
	if err != nil {
		v.mu.Lock()
		delete(v.creating, k)
		v.mu.Unlock()
		ref.Peer.Terminate(err)
		return err
	}

	v.mu.Lock()
	v.workers[k] = &hosted{w: w, ref: ref}
	delete(v.creating, k)
	v.mu.Unlock()

	w.Start()
	go v.reap(h, k, w, ref)
	return nil
}

// reap waits for a worker to exit, reports a normal exit as done to the
// stage control, and clears the slot so a later input can start a fresh
// worker. An abnormal exit is left to the control's liveness monitor.
func (v *Vnode) reap(h *fitting.Handle, k key, w *worker.Worker, ref *fitting.WorkerRef) {
	<-w.Done()

	v.mu.Lock()
	if cur := v.workers[k]; cur != nil && cur.ref.ID == ref.ID {
		delete(v.workers, k)
	}
	v.mu.Unlock()

	if w.Err() == nil {
		h.Control.WorkerDone(ref)
		return
	}
	v.log.Warn().Err(w.Err()).Str("stage", h.Name).Int("partition", int(k.partition)).
		Msg("worker exited abnormally")
}
