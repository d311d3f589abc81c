package control

import (
	"github.com/pipewright/fitting"
	"github.com/pipewright/fitting/liveness"
)

// entry records one worker working for the stage: its partition, its
// reference, and the token canceling its liveness watch.
type entry struct {
	partition fitting.PartitionID
	ref       *fitting.WorkerRef
	token     *liveness.Token
}

// roster is the authoritative set of (partition, worker) pairs active for
// one stage. It holds at most one entry per (partition, worker) pair and
// is mutated only from the owning control's run goroutine. A small ordered
// slice is sufficient; rosters are bounded by partition count.
type roster struct {
	entries []entry
}

// contains reports whether (partition, ref) is already present.
func (r *roster) contains(partition fitting.PartitionID, ref *fitting.WorkerRef) bool {
	for _, e := range r.entries {
		if e.partition == partition && e.ref.ID == ref.ID {
			return true
		}
	}
	return false
}

// add appends an entry. The caller must have checked contains first.
func (r *roster) add(e entry) {
	r.entries = append(r.entries, e)
}

// removeRef removes every entry whose worker reference matches ref and
// returns the removed entries so the caller can cancel their watches.
func (r *roster) removeRef(ref *fitting.WorkerRef) []entry {
	var removed []entry
	kept := r.entries[:0]
	for _, e := range r.entries {
		if e.ref.ID == ref.ID {
			removed = append(removed, e)
			continue
		}
		kept = append(kept, e)
	}
	r.entries = kept
	return removed
}

// partitions returns a copy of the partition IDs currently present.
func (r *roster) partitions() []fitting.PartitionID {
	out := make([]fitting.PartitionID, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.partition
	}
	return out
}

// empty reports whether the roster has no entries.
func (r *roster) empty() bool {
	return len(r.entries) == 0
}

// size returns the number of entries.
func (r *roster) size() int {
	return len(r.entries)
}
