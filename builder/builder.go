// Package builder constructs pipelines: it validates stage specs, creates
// the chain of fitting controls wired sink-first, and binds their liveness
// to the builder so a failed build tears the whole pipeline down.
package builder

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pipewright/fitting"
	"github.com/pipewright/fitting/control"
	"github.com/pipewright/fitting/liveness"
	"github.com/pipewright/fitting/metrics"
	"github.com/pipewright/fitting/vnode"
)

// Config configures a pipeline build.
type Config struct {
	// Name labels the pipeline in logs. Defaults to a generated name.
	Name string

	// Specs are the stage specifications, source first (required).
	Specs []fitting.Spec

	// Sink receives the final stage's outputs (required).
	Sink fitting.Sink

	// Options are the pipeline-global options distributed to workers.
	Options fitting.Options

	// Metrics is an optional collector shared by all stages.
	Metrics *metrics.Collector
}

// Pipeline is a built chain of fitting controls. The pipeline value holds
// the builder's liveness peer: destroying the pipeline propagates an
// abnormal builder exit to every control.
type Pipeline struct {
	name       string
	peer       *liveness.Peer
	controls   []*control.Control
	head       *fitting.Handle
	sinkHandle *fitting.Handle
	log        zerolog.Logger
}

// New validates every spec and creates the stage controls, last stage
// first so each control is handed its downstream output handle. A
// validation failure aborts construction with a BadSpecError and is never
// retried.
func New(cfg Config) (*Pipeline, error) {
	if len(cfg.Specs) == 0 {
		return nil, fmt.Errorf("at least one stage spec is required")
	}
	if cfg.Sink == nil {
		return nil, fmt.Errorf("sink is required")
	}
	if cfg.Name == "" {
		cfg.Name = "pipeline-" + uuid.New().String()[:8]
	}

	for i, spec := range cfg.Specs {
		if err := fitting.ValidateSpec(cfg.Options.Registry, spec, i == 0); err != nil {
			return nil, err
		}
	}

	p := &Pipeline{
		name: cfg.Name,
		peer: liveness.NewPeer("builder-" + cfg.Name),
	}
	p.log = cfg.Options.Logger.With().Str("pipeline", cfg.Name).Logger()
	p.sinkHandle = fitting.SinkHandle(cfg.Sink)

	output := p.sinkHandle
	p.controls = make([]*control.Control, len(cfg.Specs))
	for i := len(cfg.Specs) - 1; i >= 0; i-- {
		c, err := control.New(control.Config{
			Builder: p.peer,
			Spec:    cfg.Specs[i],
			Output:  output,
			Options: cfg.Options,
			Metrics: cfg.Metrics,
		})
		if err != nil {
			// Tear down the controls already created.
			p.peer.Terminate(fmt.Errorf("pipeline build failed: %w", err))
			return nil, err
		}
		p.controls[i] = c
		output = c.Handle()
	}
	p.head = p.controls[0].Handle()

	p.log.Debug().Int("stages", len(cfg.Specs)).Msg("pipeline built")
	return p, nil
}

// Name returns the pipeline's label.
func (p *Pipeline) Name() string {
	return p.name
}

// Handle returns the head stage's handle, the target for source inputs.
func (p *Pipeline) Handle() *fitting.Handle {
	return p.head
}

// SinkHandle returns the distinguished sink handle of this pipeline.
func (p *Pipeline) SinkHandle() *fitting.Handle {
	return p.sinkHandle
}

// Controls returns the stage controls, source first.
func (p *Pipeline) Controls() []*control.Control {
	out := make([]*control.Control, len(p.controls))
	copy(out, p.controls)
	return out
}

// Inject queues one source input for the head stage, routed through the
// head stage's partfun.
func (p *Pipeline) Inject(vn *vnode.Vnode, input any) error {
	r := fitting.RouteOutput(p.head, input, 0)
	if r.ToSink {
		return fmt.Errorf("head stage routes to sink")
	}
	return vn.QueueWork(p.head, r.Partition, input)
}

// EOI signals the head stage that the source has no further inputs. The
// barrier then chains stage by stage toward the sink.
func (p *Pipeline) EOI() {
	p.head.Control.EOI()
}

// Wait blocks until every stage control has terminated or ctx expires.
// It returns the first abnormal stage exit, if any.
func (p *Pipeline) Wait(ctx context.Context) error {
	for _, c := range p.controls {
		select {
		case <-c.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	for _, c := range p.controls {
		if err := c.Err(); err != nil {
			return err
		}
	}
	return nil
}

// Finish records a normal builder exit. Running stages are unaffected.
func (p *Pipeline) Finish() {
	p.peer.Terminate(nil)
}

// Destroy simulates an abnormal builder exit: every live control
// terminates with fitting.ErrBuilderExited and subsequent requests to
// them observe ErrGone.
func (p *Pipeline) Destroy() {
	p.peer.Terminate(errors.New("pipeline destroyed"))
}
