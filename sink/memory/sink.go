// Package memory provides an in-memory sink for tests and demos. It
// captures deliveries in arrival order and signals once end-of-inputs
// reaches the sink.
package memory

import (
	"sync"

	"github.com/pipewright/fitting"
)

// Delivery is one captured sink delivery.
type Delivery struct {
	// Stage is the name of the stage that emitted the output.
	Stage string

	// Output is the delivered value.
	Output any
}

// Sink is an in-memory implementation of fitting.Sink. It is safe for
// concurrent use.
type Sink struct {
	mu         sync.Mutex
	deliveries []Delivery
	eois       []string

	eoiOnce sync.Once
	done    chan struct{}
}

// Compile-time check that Sink implements fitting.Sink.
var _ fitting.Sink = (*Sink)(nil)

// New creates a new empty in-memory sink.
func New() *Sink {
	return &Sink{done: make(chan struct{})}
}

// Deliver implements fitting.Sink.
func (s *Sink) Deliver(stage string, h *fitting.Handle, output any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deliveries = append(s.deliveries, Delivery{Stage: stage, Output: output})
	return nil
}

// EOI implements fitting.Sink. The first call closes the Done channel.
func (s *Sink) EOI(h *fitting.Handle) {
	s.mu.Lock()
	s.eois = append(s.eois, h.Name)
	s.mu.Unlock()
	s.eoiOnce.Do(func() { close(s.done) })
}

// Done returns a channel closed once end-of-inputs has reached the sink.
func (s *Sink) Done() <-chan struct{} {
	return s.done
}

// Deliveries returns a copy of all captured deliveries in arrival order.
func (s *Sink) Deliveries() []Delivery {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Delivery, len(s.deliveries))
	copy(out, s.deliveries)
	return out
}

// Outputs returns just the delivered values in arrival order.
func (s *Sink) Outputs() []any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]any, len(s.deliveries))
	for i, d := range s.deliveries {
		out[i] = d.Output
	}
	return out
}

// EOICount returns the number of end-of-inputs signals received.
func (s *Sink) EOICount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.eois)
}
