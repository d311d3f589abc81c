package vnode

import (
	"sync"

	"github.com/pipewright/fitting"
)

// Ring maps partitions to their owning vnodes. Work queued for a
// partition is forwarded to its owner, so emitters never need to know the
// placement. Placement policy itself is up to the caller.
type Ring struct {
	mu     sync.RWMutex
	owners map[fitting.PartitionID]*Vnode
}

// NewRing creates an empty ring.
func NewRing() *Ring {
	return &Ring{owners: make(map[fitting.PartitionID]*Vnode)}
}

// Assign makes v the owner of partition p, replacing any previous owner.
func (r *Ring) Assign(p fitting.PartitionID, v *Vnode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.owners[p] = v
}

// Owner returns the vnode owning partition p, or nil if unassigned.
func (r *Ring) Owner(p fitting.PartitionID) *Vnode {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.owners[p]
}
