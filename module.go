package fitting

// Module is the behavior a stage hosts on each of its partitions. One
// instance is constructed per worker; its methods are invoked from that
// worker's goroutine only and may block.
//
// Init is called once before any input, with the worker's environment.
// Process is called once per input; it emits downstream via the Env kept
// from Init. Done is called after the last input, before the worker
// terminates.
type Module interface {
	Init(env *Env) error
	Process(input any) error
	Done() error
}

// ArgValidator is implemented by modules that want their spec argument
// checked at validation time, before the pipeline is constructed.
type ArgValidator interface {
	ValidateArg(arg any) error
}

// Archiver is implemented by modules that can snapshot their state for
// handoff. The returned archive is replayed into the successor worker's
// Handoff callback.
type Archiver interface {
	Archive() (any, error)
}

// Handoffer is implemented by modules that can adopt an archived
// predecessor state. Modules without it silently discard the archive.
type Handoffer interface {
	Handoff(archive any) error
}

// Env is the environment a worker hands to its module at Init: the stage
// details, the worker's partition, and the emission primitive.
type Env struct {
	details   *Details
	partition PartitionID
	vnode     Vnode
}

// NewEnv builds a module environment. vn is the vnode hosting the worker;
// emitted outputs that are not sink-bound enqueue through it.
func NewEnv(details *Details, partition PartitionID, vn Vnode) *Env {
	return &Env{
		details:   details,
		partition: partition,
		vnode:     vn,
	}
}

// Details returns the stage details.
func (e *Env) Details() *Details {
	return e.details
}

// Partition returns the partition this worker runs on.
func (e *Env) Partition() PartitionID {
	return e.partition
}

// Arg returns the spec's initialization argument.
func (e *Env) Arg() any {
	return e.details.Spec.Arg
}

// Emit routes one output toward the next stage. Sink-bound outputs are
// delivered directly; everything else enqueues on the vnode owning the
// target partition. Emit is best-effort from the worker's perspective;
// backpressure is the vnode's concern.
func (e *Env) Emit(output any) error {
	out := e.details.Output
	r := RouteOutput(out, output, e.partition)
	if r.ToSink {
		return out.Sink.Deliver(e.details.Spec.Name, out, output)
	}
	return e.vnode.QueueWork(out, r.Partition, output)
}
