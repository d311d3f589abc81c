// Package sink provides sink implementations and test doubles for the
// fitting.Sink interface: the terminal recipient of pipeline outputs.
package sink

import (
	"sync"

	"github.com/pipewright/fitting"
)

// MockSink is a configurable mock implementation of fitting.Sink for use
// in tests. It records calls and allows injecting delivery errors.
type MockSink struct {
	mu sync.Mutex

	// DeliverFunc is called by Deliver if set.
	DeliverFunc func(stage string, h *fitting.Handle, output any) error

	// DeliverCalls records the parameters of each Deliver call.
	DeliverCalls []DeliverCall

	// EOICalls records the handle of each EOI call.
	EOICalls []*fitting.Handle
}

// DeliverCall records the parameters of a single Deliver call.
type DeliverCall struct {
	Stage  string
	Handle *fitting.Handle
	Output any
}

// Compile-time check that MockSink implements fitting.Sink.
var _ fitting.Sink = (*MockSink)(nil)

// NewMockSink creates a new MockSink with an empty call history.
func NewMockSink() *MockSink {
	return &MockSink{}
}

// Deliver implements fitting.Sink.
func (m *MockSink) Deliver(stage string, h *fitting.Handle, output any) error {
	m.mu.Lock()
	m.DeliverCalls = append(m.DeliverCalls, DeliverCall{Stage: stage, Handle: h, Output: output})
	fn := m.DeliverFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(stage, h, output)
	}
	return nil
}

// EOI implements fitting.Sink.
func (m *MockSink) EOI(h *fitting.Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EOICalls = append(m.EOICalls, h)
}

// Delivered returns a copy of the recorded Deliver calls.
func (m *MockSink) Delivered() []DeliverCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]DeliverCall, len(m.DeliverCalls))
	copy(out, m.DeliverCalls)
	return out
}

// EOICount returns the number of recorded EOI calls.
func (m *MockSink) EOICount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.EOICalls)
}

// Reset clears the call history.
func (m *MockSink) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeliverCalls = nil
	m.EOICalls = nil
}
