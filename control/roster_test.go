package control

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pipewright/fitting"
	"github.com/pipewright/fitting/liveness"
)

func rosterRef(id string) *fitting.WorkerRef {
	return &fitting.WorkerRef{ID: id, Peer: liveness.NewPeer(id)}
}

func TestRoster_ContainsByPartitionAndRef(t *testing.T) {
	var r roster
	ref := rosterRef("w1")
	r.add(entry{partition: 0, ref: ref})

	assert.True(t, r.contains(0, ref))
	assert.False(t, r.contains(1, ref), "same ref on another partition is a distinct pair")
	assert.False(t, r.contains(0, rosterRef("w2")))
}

func TestRoster_RemoveRefRemovesAllEntriesForRef(t *testing.T) {
	var r roster
	w1 := rosterRef("w1")
	w2 := rosterRef("w2")
	r.add(entry{partition: 0, ref: w1})
	r.add(entry{partition: 1, ref: w2})
	r.add(entry{partition: 2, ref: w1})

	removed := r.removeRef(w1)

	assert.Len(t, removed, 2)
	assert.Equal(t, []fitting.PartitionID{1}, r.partitions())
	assert.Equal(t, 1, r.size())
}

func TestRoster_RemoveUnknownRefIsEmpty(t *testing.T) {
	var r roster
	r.add(entry{partition: 0, ref: rosterRef("w1")})

	removed := r.removeRef(rosterRef("unknown"))

	assert.Empty(t, removed)
	assert.Equal(t, 1, r.size())
}

func TestRoster_PartitionsReturnsCopy(t *testing.T) {
	var r roster
	r.add(entry{partition: 3, ref: rosterRef("w1")})

	parts := r.partitions()
	parts[0] = 99

	assert.Equal(t, []fitting.PartitionID{3}, r.partitions())
}

func TestRoster_Empty(t *testing.T) {
	var r roster
	assert.True(t, r.empty())

	ref := rosterRef("w1")
	r.add(entry{partition: 0, ref: ref})
	assert.False(t, r.empty())

	r.removeRef(ref)
	assert.True(t, r.empty())
}
