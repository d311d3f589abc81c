package fitting

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pipewright/fitting/liveness"
)

// PartitionID identifies one partition of a stage's input space.
type PartitionID int

// PartitionFunc maps an output value to the partition that should process
// it next. Implementations must be pure and deterministic.
type PartitionFunc func(output any) PartitionID

// PartfunKind selects the routing mode of a Partfun.
type PartfunKind int

const (
	// PartfunFollow routes an output to the same partition as its sender.
	PartfunFollow PartfunKind = iota

	// PartfunSink marks the handle as the pipeline sink; outputs addressed
	// to it are delivered to the sink directly.
	PartfunSink

	// PartfunFunc routes an output via a user-supplied pure function.
	PartfunFunc
)

// Partfun is the routing selector for inputs entering a stage.
type Partfun struct {
	// Kind is the routing mode.
	Kind PartfunKind

	// Func is the partition function. Set only when Kind is PartfunFunc.
	Func PartitionFunc
}

// Follow returns a partfun that keeps outputs on the sender's partition.
func Follow() Partfun {
	return Partfun{Kind: PartfunFollow}
}

// PartitionBy returns a partfun that routes outputs through fn.
func PartitionBy(fn PartitionFunc) Partfun {
	return Partfun{Kind: PartfunFunc, Func: fn}
}

// Spec describes one stage of a pipeline. It is immutable once the
// pipeline has been constructed.
type Spec struct {
	// Name is an opaque label for the stage, used in logs and sink
	// deliveries.
	Name string

	// ModuleID names the registered module implementing the stage.
	ModuleID string

	// Arg is an opaque initialization argument passed through to the
	// module untouched.
	Arg any

	// Partfun selects which partition each input entering this stage is
	// processed on.
	Partfun Partfun
}

// Control is the request surface of a stage's control actor. All methods
// are safe for concurrent use; they serialize through the actor's mailbox.
type Control interface {
	// GetDetails registers the calling worker in the stage roster (if not
	// already present) and returns the stage details. Returns ErrGone if
	// the control has terminated.
	GetDetails(ctx context.Context, partition PartitionID, ref *WorkerRef) (*Details, error)

	// WorkerDone reports that the referenced worker has finished. It is
	// fire-and-forget and never fails.
	WorkerDone(ref *WorkerRef)

	// EOI signals that no further inputs will arrive from upstream. It is
	// fire-and-forget and never fails.
	EOI()

	// Workers returns the partitions currently present in the roster.
	// Returns ErrGone if the control has terminated.
	Workers(ctx context.Context) ([]PartitionID, error)
}

// Sink receives the pipeline's final outputs and its end-of-inputs signal.
type Sink interface {
	// Deliver hands one final output to the sink, tagged with the name and
	// handle of the stage that emitted it.
	Deliver(stage string, h *Handle, output any) error

	// EOI signals that the stage addressed by h has drained and no further
	// outputs will be delivered on its behalf.
	EOI(h *Handle)
}

// Vnode is the slice of the vnode surface the core calls into: queuing
// emitted work and marking a stage's partition as drained.
type Vnode interface {
	// QueueWork enqueues output for (h, partition) on the vnode owning
	// that partition.
	QueueWork(h *Handle, partition PartitionID, output any) error

	// DeliverEOI marks (h, partition) as drained on this vnode. The
	// hosted worker observes a done input once its queue empties.
	DeliverEOI(h *Handle, partition PartitionID)
}

// Handle addresses either a stage's control or the pipeline sink. Handles
// are immutable once assigned; UniqueID distinguishes reincarnations of
// the same stage.
type Handle struct {
	// Control is the stage's control actor. Nil for sink handles.
	Control Control

	// Sink is the pipeline sink. Nil for stage handles.
	Sink Sink

	// UniqueID is freshly minted per handle.
	UniqueID string

	// Name is the stage name, or "sink" for sink handles.
	Name string

	// Partfun is a cached copy of the stage's partfun so routers need not
	// dereference the control.
	Partfun Partfun
}

// NewHandle mints a handle for a stage control.
func NewHandle(name string, c Control, pf Partfun) *Handle {
	return &Handle{
		Control:  c,
		UniqueID: uuid.New().String(),
		Name:     name,
		Partfun:  pf,
	}
}

// SinkHandle mints the distinguished handle addressing the pipeline sink.
func SinkHandle(s Sink) *Handle {
	return &Handle{
		Sink:     s,
		UniqueID: uuid.New().String(),
		Name:     "sink",
		Partfun:  Partfun{Kind: PartfunSink},
	}
}

// IsSink reports whether the handle addresses the pipeline sink.
func (h *Handle) IsSink() bool {
	return h.Partfun.Kind == PartfunSink
}

// Options are pipeline-global settings distributed to workers with the
// stage details.
type Options struct {
	// Registry resolves module IDs to module constructors (required).
	Registry *Registry

	// Logger is used by controls, workers and vnodes for observability.
	// The zero value discards everything.
	Logger zerolog.Logger

	// Trace enables per-input trace logging in workers.
	Trace bool

	// DrainTimeout bounds the time a control waits for its workers to
	// report done after end-of-inputs. Zero means wait forever. On expiry
	// the control terminates abnormally with ErrDrainTimeout.
	DrainTimeout time.Duration
}

// Details is the full stage description distributed to workers on demand.
// It is created once per stage and read-only thereafter.
type Details struct {
	// Spec is the stage's specification.
	Spec Spec

	// Output is the handle of the next stage's control, or the sink
	// handle for the last stage.
	Output *Handle

	// Options are the pipeline-global options.
	Options Options
}

// WorkerRef identifies one worker: its ID, its monitorable peer, and the
// vnode hosting it (the target for EOI delivery).
type WorkerRef struct {
	// ID is the worker's unique identity.
	ID string

	// Peer is the worker's liveness peer, terminated when the worker
	// exits.
	Peer *liveness.Peer

	// Vnode is the vnode hosting the worker.
	Vnode Vnode
}

// NewWorkerRef mints a worker reference hosted by the given vnode.
func NewWorkerRef(vn Vnode) *WorkerRef {
	id := uuid.New().String()
	return &WorkerRef{
		ID:    id,
		Peer:  liveness.NewPeer(id),
		Vnode: vn,
	}
}
