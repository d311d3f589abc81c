// Package control implements the fitting control actor: the single
// process per stage that serves stage details, owns the worker roster,
// and coordinates end-of-inputs with its workers and the next stage.
package control

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/pipewright/fitting"
	"github.com/pipewright/fitting/liveness"
	"github.com/pipewright/fitting/metrics"
)

// mailboxSize bounds the control's pending-message buffer. Senders block
// (or observe termination) once it is full.
const mailboxSize = 64

// state tags the control's position in the end-of-inputs protocol.
type state int

const (
	// stateWaitUpstreamEOI is the initial state: inputs may still arrive
	// upstream, the roster grows as workers request details.
	stateWaitUpstreamEOI state = iota

	// stateWaitWorkersDone is entered after end-of-inputs was observed
	// and broadcast; the control waits for every roster entry to drain.
	stateWaitWorkersDone
)

// Config configures a fitting control.
type Config struct {
	// Builder is the liveness peer of the pipeline builder (required).
	// Abnormal builder termination is fatal for the control.
	Builder *liveness.Peer

	// Spec is the stage specification (required).
	Spec fitting.Spec

	// Output is the handle of the next stage's control, or the sink
	// handle (required).
	Output *fitting.Handle

	// Options are the pipeline-global options.
	Options fitting.Options

	// Metrics is an optional collector for observability.
	Metrics *metrics.Collector
}

// Control is the single actor coordinating one stage. Its handlers run
// one at a time in message-arrival order on a dedicated goroutine; the
// exported methods are the concurrent-safe request surface.
type Control struct {
	cfg     Config
	handle  *fitting.Handle
	details fitting.Details
	peer    *liveness.Peer
	mailbox chan any
	log     zerolog.Logger

	builderToken *liveness.Token

	// Owned by the run goroutine.
	state      state
	roster     roster
	drainTimer *time.Timer
	drainStart time.Time
}

// Compile-time check that Control implements fitting.Control.
var _ fitting.Control = (*Control)(nil)

// Messages processed by the run loop.
type (
	getDetailsMsg struct {
		partition fitting.PartitionID
		ref       *fitting.WorkerRef
		reply     chan *fitting.Details
	}
	workerDoneMsg struct {
		ref *fitting.WorkerRef
	}
	eoiMsg     struct{}
	workersMsg struct {
		reply chan []fitting.PartitionID
	}
	downMsg struct {
		ref *fitting.WorkerRef
		err error
	}
	builderExitMsg struct {
		err error
	}
	drainTimeoutMsg struct{}
)

// New creates a fitting control for the given stage and starts its actor
// goroutine. The control binds its liveness to the builder peer: if the
// builder terminates abnormally, the control terminates with
// fitting.ErrBuilderExited and all subsequent requests observe ErrGone.
func New(cfg Config) (*Control, error) {
	if cfg.Builder == nil {
		return nil, fmt.Errorf("builder peer is required")
	}
	if cfg.Output == nil {
		return nil, fmt.Errorf("output handle is required")
	}

	c := &Control{
		cfg:     cfg,
		mailbox: make(chan any, mailboxSize),
		state:   stateWaitUpstreamEOI,
	}
	c.handle = fitting.NewHandle(cfg.Spec.Name, c, cfg.Spec.Partfun)
	c.details = fitting.Details{
		Spec:    cfg.Spec,
		Output:  cfg.Output,
		Options: cfg.Options,
	}
	c.peer = liveness.NewPeer("fitting-" + c.handle.UniqueID)
	c.log = cfg.Options.Logger.With().
		Str("stage", cfg.Spec.Name).
		Str("fitting", c.handle.UniqueID).
		Logger()

	c.builderToken = liveness.Watch(cfg.Builder, func(err error) {
		c.post(builderExitMsg{err: err})
	})

	if cfg.Metrics != nil {
		cfg.Metrics.IncFittingsCreated()
	}

	go c.run()

	return c, nil
}

// Handle returns the stage's handle.
func (c *Control) Handle() *fitting.Handle {
	return c.handle
}

// Done returns a channel closed when the control terminates.
func (c *Control) Done() <-chan struct{} {
	return c.peer.Done()
}

// Err returns the control's exit error. Nil while the control is live and
// after a normal termination.
func (c *Control) Err() error {
	return c.peer.Err()
}

// GetDetails implements fitting.Control.
func (c *Control) GetDetails(ctx context.Context, partition fitting.PartitionID, ref *fitting.WorkerRef) (*fitting.Details, error) {
	reply := make(chan *fitting.Details, 1)
	if err := c.send(ctx, getDetailsMsg{partition: partition, ref: ref, reply: reply}); err != nil {
		return nil, err
	}
	select {
	case details := <-reply:
		return details, nil
	case <-c.peer.Done():
		return nil, fitting.ErrGone
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// WorkerDone implements fitting.Control.
func (c *Control) WorkerDone(ref *fitting.WorkerRef) {
	c.post(workerDoneMsg{ref: ref})
}

// EOI implements fitting.Control.
func (c *Control) EOI() {
	c.post(eoiMsg{})
}

// Workers implements fitting.Control.
func (c *Control) Workers(ctx context.Context) ([]fitting.PartitionID, error) {
	reply := make(chan []fitting.PartitionID, 1)
	if err := c.send(ctx, workersMsg{reply: reply}); err != nil {
		return nil, err
	}
	select {
	case parts := <-reply:
		return parts, nil
	case <-c.peer.Done():
		return nil, fitting.ErrGone
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// send enqueues a message, failing with ErrGone once the control has
// terminated.
func (c *Control) send(ctx context.Context, m any) error {
	select {
	case c.mailbox <- m:
		return nil
	case <-c.peer.Done():
		return fitting.ErrGone
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post enqueues a fire-and-forget message. Messages to a terminated
// control are dropped.
func (c *Control) post(m any) {
	select {
	case c.mailbox <- m:
	case <-c.peer.Done():
	}
}

// run is the actor loop. It owns state and roster exclusively; handlers
// never block on I/O and are O(|roster|) at most.
func (c *Control) run() {
	for {
		m := <-c.mailbox
		switch m := m.(type) {
		case getDetailsMsg:
			c.handleGetDetails(m)

		case workerDoneMsg:
			if c.handleWorkerGone(m.ref, false) {
				return
			}

		case downMsg:
			if c.handleWorkerGone(m.ref, true) {
				return
			}

		case eoiMsg:
			if c.handleEOI() {
				return
			}

		case workersMsg:
			m.reply <- c.roster.partitions()

		case builderExitMsg:
			if m.err != nil {
				c.log.Error().Err(m.err).Msg("builder exited abnormally")
				c.terminate(fmt.Errorf("%w: %v", fitting.ErrBuilderExited, m.err))
				return
			}
			// A builder that finishes normally leaves the stage running.

		case drainTimeoutMsg:
			if c.state == stateWaitWorkersDone {
				c.log.Error().Int("workers", c.roster.size()).Msg("drain timeout")
				c.terminate(fitting.ErrDrainTimeout)
				return
			}
		}
	}
}

// handleGetDetails admits a worker to the roster (idempotently) and
// replies with the stage details. A request arriving after end-of-inputs
// is a late arrival due to handoff: the worker is admitted and its vnode
// is told to drain it immediately so it cannot block forwarding.
func (c *Control) handleGetDetails(m getDetailsMsg) {
	if !c.roster.contains(m.partition, m.ref) {
		token := liveness.Watch(m.ref.Peer, func(err error) {
			c.post(downMsg{ref: m.ref, err: err})
		})
		c.roster.add(entry{partition: m.partition, ref: m.ref, token: token})
		c.observeRoster()
		if c.cfg.Metrics != nil {
			c.cfg.Metrics.IncWorkersStarted(c.cfg.Spec.Name)
		}
		c.log.Debug().Int("partition", int(m.partition)).Str("worker", m.ref.ID).Msg("worker admitted")
	}

	// Reply before any vnode callback so the caller is never held up by
	// its own vnode lock.
	m.reply <- &c.details

	if c.state == stateWaitWorkersDone {
		if c.cfg.Metrics != nil {
			c.cfg.Metrics.IncLateArrivals(c.cfg.Spec.Name)
		}
		c.log.Debug().Int("partition", int(m.partition)).Msg("late arrival, delivering eoi")
		m.ref.Vnode.DeliverEOI(c.handle, m.partition)
	}
}

// handleWorkerGone removes ref from the roster, either because its vnode
// reported done or because its liveness monitor fired. Before upstream
// end-of-inputs this is a handoff departure and the roster simply shrinks;
// afterwards an empty roster completes the drain. Returns true when the
// control terminated.
func (c *Control) handleWorkerGone(ref *fitting.WorkerRef, vanished bool) bool {
	removed := c.roster.removeRef(ref)
	for _, e := range removed {
		e.token.Cancel()
	}
	if len(removed) == 0 {
		return false
	}
	c.observeRoster()

	if c.cfg.Metrics != nil {
		if vanished {
			c.cfg.Metrics.IncWorkersVanished(c.cfg.Spec.Name)
		} else {
			c.cfg.Metrics.IncWorkersDone(c.cfg.Spec.Name)
		}
	}
	if vanished {
		c.log.Warn().Str("worker", ref.ID).Msg("worker vanished")
	} else {
		c.log.Debug().Str("worker", ref.ID).Msg("worker done")
	}

	if c.state == stateWaitWorkersDone && c.roster.empty() {
		c.forwardEOI()
		c.terminate(nil)
		return true
	}
	return false
}

// handleEOI observes upstream end-of-inputs. With an empty roster the
// signal is forwarded at once; otherwise it is broadcast to every roster
// worker's vnode and the control waits for done reports. Returns true
// when the control terminated.
func (c *Control) handleEOI() bool {
	if c.state != stateWaitUpstreamEOI {
		return false
	}

	c.log.Debug().Int("workers", c.roster.size()).Msg("end of inputs")

	if c.roster.empty() {
		c.forwardEOI()
		c.terminate(nil)
		return true
	}

	for _, e := range c.roster.entries {
		e.ref.Vnode.DeliverEOI(c.handle, e.partition)
	}
	c.state = stateWaitWorkersDone
	c.drainStart = time.Now()

	if d := c.cfg.Options.DrainTimeout; d > 0 {
		c.drainTimer = time.AfterFunc(d, func() {
			c.post(drainTimeoutMsg{})
		})
	}
	return false
}

// forwardEOI propagates end-of-inputs downstream: to the next stage's
// control, or through the sink notification API for the last stage.
func (c *Control) forwardEOI() {
	out := c.cfg.Output
	if out.IsSink() {
		out.Sink.EOI(c.handle)
	} else {
		out.Control.EOI()
	}

	if c.cfg.Metrics != nil {
		c.cfg.Metrics.IncEOIForwarded(c.cfg.Spec.Name)
		if !c.drainStart.IsZero() {
			c.cfg.Metrics.ObserveDrainDuration(c.cfg.Spec.Name, time.Since(c.drainStart).Seconds())
		}
	}
	c.log.Debug().Msg("eoi forwarded")
}

// observeRoster publishes the roster size gauge.
func (c *Control) observeRoster() {
	if c.cfg.Metrics != nil {
		c.cfg.Metrics.SetRosterSize(c.cfg.Spec.Name, c.roster.size())
	}
}

// terminate releases monitors and marks the control terminated. Pending
// and future requests observe ErrGone.
func (c *Control) terminate(err error) {
	if c.drainTimer != nil {
		c.drainTimer.Stop()
	}
	c.builderToken.Cancel()
	for _, e := range c.roster.entries {
		e.token.Cancel()
	}
	c.roster.entries = nil
	c.observeRoster()
	c.peer.Terminate(err)

	if err != nil {
		c.log.Error().Err(err).Msg("fitting terminated")
	} else {
		c.log.Debug().Msg("fitting terminated")
	}
}
