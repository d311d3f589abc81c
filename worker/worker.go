// Package worker implements the per-(stage, partition) actor that hosts
// one module instance, pulls inputs from its vnode, and cooperates with
// handoff and archive.
package worker

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/pipewright/fitting"
	"github.com/pipewright/fitting/metrics"
)

// InputKind tags one vnode reply to a next-input request.
type InputKind int

const (
	// InputPayload carries one input item to process.
	InputPayload InputKind = iota

	// InputDone means the stage has drained; the worker runs its module's
	// Done and terminates.
	InputDone

	// InputHandoff carries a predecessor worker's archive to adopt.
	InputHandoff

	// InputArchive directs the worker to archive its state and terminate.
	InputArchive
)

// Input is one reply from the vnode to a next-input request.
type Input struct {
	Kind InputKind

	// Payload is the input item. Set for InputPayload.
	Payload any

	// Archive is the predecessor's archived state. Set for InputHandoff.
	Archive any
}

// Host is the vnode surface a worker drives: the pull-based input request
// and the archive reply, plus the emission surface modules reach through
// their environment.
type Host interface {
	// NextInput blocks until the next input for (h, partition) is
	// available and returns it.
	NextInput(h *fitting.Handle, partition fitting.PartitionID) Input

	// ReplyArchive hands the worker's archived state back to the vnode
	// that requested it.
	ReplyArchive(h *fitting.Handle, partition fitting.PartitionID, archive any)

	fitting.Vnode
}

// state tags the worker's position in its driving loop.
type state int

const (
	// stateInitialInputRequest is entered after module init succeeds,
	// before the first input has been received.
	stateInitialInputRequest state = iota

	// stateWaitForInput is the steady state between inputs.
	stateWaitForInput
)

// Config configures a worker.
type Config struct {
	// Handle is the worker's own stage handle (required).
	Handle *fitting.Handle

	// Details is the stage description from the control (required).
	Details *fitting.Details

	// Partition is the partition this worker runs on.
	Partition fitting.PartitionID

	// Host is the hosting vnode surface (required).
	Host Host

	// Ref is the worker's reference; its peer is terminated when the
	// worker exits (required).
	Ref *fitting.WorkerRef

	// Metrics is an optional collector for observability.
	Metrics *metrics.Collector
}

// Worker hosts one module instance on one partition. Start runs the
// driving loop on a dedicated goroutine; the module's callbacks execute
// there and may block.
type Worker struct {
	cfg    Config
	module fitting.Module
	state  state
	log    zerolog.Logger
}

// New builds a worker, resolving its module instance from the registry
// carried in the stage options.
func New(cfg Config) (*Worker, error) {
	if cfg.Handle == nil || cfg.Details == nil {
		return nil, fmt.Errorf("handle and details are required")
	}
	if cfg.Host == nil {
		return nil, fmt.Errorf("host is required")
	}
	if cfg.Ref == nil {
		return nil, fmt.Errorf("worker ref is required")
	}

	reg := cfg.Details.Options.Registry
	if reg == nil {
		return nil, fmt.Errorf("no module registry in options")
	}
	module, err := reg.New(cfg.Details.Spec.ModuleID)
	if err != nil {
		return nil, err
	}

	w := &Worker{
		cfg:    cfg,
		module: module,
	}
	w.log = cfg.Details.Options.Logger.With().
		Str("stage", cfg.Details.Spec.Name).
		Int("partition", int(cfg.Partition)).
		Str("worker", cfg.Ref.ID).
		Logger()

	return w, nil
}

// Start runs the worker loop in its own goroutine.
func (w *Worker) Start() {
	go w.run()
}

// Done returns a channel closed when the worker terminates.
func (w *Worker) Done() <-chan struct{} {
	return w.cfg.Ref.Peer.Done()
}

// Err returns the worker's exit error. Nil for a normal termination.
func (w *Worker) Err() error {
	return w.cfg.Ref.Peer.Err()
}

// run drives the module: init, then the pull loop against the host.
func (w *Worker) run() {
	env := fitting.NewEnv(w.cfg.Details, w.cfg.Partition, w.cfg.Host)

	if err := guard(func() error { return w.module.Init(env) }); err != nil {
		kind := fitting.InitFailureError
		if _, ok := err.(panicError); ok {
			kind = fitting.InitFailurePanic
		}
		initErr := &fitting.InitError{Kind: kind, Err: err}
		w.log.Error().Err(initErr).Msg("module init failed")
		w.terminate(initErr)
		return
	}

	// The first request is its own state: startup must finish before any
	// input is pulled, mirroring the deferred first transition of the
	// protocol.
	w.state = stateInitialInputRequest

	for {
		in := w.cfg.Host.NextInput(w.cfg.Handle, w.cfg.Partition)
		if w.state == stateInitialInputRequest {
			w.state = stateWaitForInput
		}

		switch in.Kind {
		case InputPayload:
			if err := w.process(in.Payload); err != nil {
				w.log.Error().Err(err).Msg("process failed")
				w.terminate(err)
				return
			}

		case InputDone:
			err := guard(func() error { return w.module.Done() })
			if err != nil {
				w.log.Error().Err(err).Msg("module done failed")
			}
			w.terminate(err)
			return

		case InputHandoff:
			h, ok := w.module.(fitting.Handoffer)
			if !ok {
				// Modules without handoff support discard the archive.
				w.log.Debug().Msg("archive discarded")
				continue
			}
			if err := guard(func() error { return h.Handoff(in.Archive) }); err != nil {
				w.log.Error().Err(err).Msg("handoff failed")
				w.terminate(err)
				return
			}

		case InputArchive:
			archive := any(fitting.ArchiveUndefined)
			var archErr error
			if a, ok := w.module.(fitting.Archiver); ok {
				archive, archErr = w.archive(a)
				if archErr != nil {
					// Reply with the undefined archive so the requesting
					// vnode is never left waiting, then fail.
					archive = fitting.ArchiveUndefined
				}
			}
			w.cfg.Host.ReplyArchive(w.cfg.Handle, w.cfg.Partition, archive)
			if archErr != nil {
				w.log.Error().Err(archErr).Msg("archive failed")
			}
			w.terminate(archErr)
			return
		}
	}
}

// process runs the module's Process callback on one input.
func (w *Worker) process(payload any) error {
	if w.cfg.Details.Options.Trace {
		w.log.Trace().Interface("input", payload).Msg("processing input")
	}

	start := time.Now()
	err := guard(func() error { return w.module.Process(payload) })
	if w.cfg.Metrics != nil {
		stage := w.cfg.Details.Spec.Name
		w.cfg.Metrics.IncInputsProcessed(stage)
		w.cfg.Metrics.ObserveProcessDuration(stage, time.Since(start).Seconds())
	}
	return err
}

// archive runs the module's Archive callback, converting panics.
func (w *Worker) archive(a fitting.Archiver) (archive any, err error) {
	err = guard(func() error {
		var aerr error
		archive, aerr = a.Archive()
		return aerr
	})
	return archive, err
}

// terminate marks the worker's peer terminated with the given exit error.
func (w *Worker) terminate(err error) {
	w.cfg.Ref.Peer.Terminate(err)
}

// panicError marks an error recovered from a callback panic.
type panicError struct {
	value any
}

func (e panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}

// guard invokes a module callback, converting a panic into an error. No
// other worker activity happens while the callback runs.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError{value: r}
		}
	}()
	return fn()
}
