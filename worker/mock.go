package worker

import (
	"sync"

	"github.com/pipewright/fitting"
)

// MockHost is a scriptable implementation of Host for testing. Inputs are
// fed through a channel; emission and archive calls are recorded.
type MockHost struct {
	mu sync.Mutex

	// Inputs is drained by NextInput, one item per request.
	Inputs chan Input

	// QueueWorkFunc is called by QueueWork if set.
	QueueWorkFunc func(h *fitting.Handle, partition fitting.PartitionID, output any) error

	// QueueWorkCalls records the parameters of each QueueWork call.
	QueueWorkCalls []QueueWorkCall

	// ReplyArchiveCalls records the parameters of each ReplyArchive call.
	ReplyArchiveCalls []ReplyArchiveCall

	// DeliverEOICalls records the parameters of each DeliverEOI call.
	DeliverEOICalls []DeliverEOICall
}

// QueueWorkCall records the parameters of a single QueueWork call.
type QueueWorkCall struct {
	Handle    *fitting.Handle
	Partition fitting.PartitionID
	Output    any
}

// ReplyArchiveCall records the parameters of a single ReplyArchive call.
type ReplyArchiveCall struct {
	Handle    *fitting.Handle
	Partition fitting.PartitionID
	Archive   any
}

// DeliverEOICall records the parameters of a single DeliverEOI call.
type DeliverEOICall struct {
	Handle    *fitting.Handle
	Partition fitting.PartitionID
}

// NewMockHost creates a MockHost with a buffered input script.
func NewMockHost(buffer int) *MockHost {
	return &MockHost{
		Inputs: make(chan Input, buffer),
	}
}

// NextInput implements Host by popping the next scripted input.
func (m *MockHost) NextInput(h *fitting.Handle, partition fitting.PartitionID) Input {
	return <-m.Inputs
}

// ReplyArchive implements Host.
func (m *MockHost) ReplyArchive(h *fitting.Handle, partition fitting.PartitionID, archive any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReplyArchiveCalls = append(m.ReplyArchiveCalls, ReplyArchiveCall{Handle: h, Partition: partition, Archive: archive})
}

// QueueWork implements fitting.Vnode.
func (m *MockHost) QueueWork(h *fitting.Handle, partition fitting.PartitionID, output any) error {
	m.mu.Lock()
	m.QueueWorkCalls = append(m.QueueWorkCalls, QueueWorkCall{Handle: h, Partition: partition, Output: output})
	fn := m.QueueWorkFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(h, partition, output)
	}
	return nil
}

// DeliverEOI implements fitting.Vnode.
func (m *MockHost) DeliverEOI(h *fitting.Handle, partition fitting.PartitionID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeliverEOICalls = append(m.DeliverEOICalls, DeliverEOICall{Handle: h, Partition: partition})
}

// Queued returns a copy of the recorded QueueWork calls.
func (m *MockHost) Queued() []QueueWorkCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]QueueWorkCall, len(m.QueueWorkCalls))
	copy(out, m.QueueWorkCalls)
	return out
}

// Archives returns a copy of the recorded ReplyArchive calls.
func (m *MockHost) Archives() []ReplyArchiveCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ReplyArchiveCall, len(m.ReplyArchiveCalls))
	copy(out, m.ReplyArchiveCalls)
	return out
}
