package fitting

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// passModule forwards every input unchanged.
type passModule struct {
	env *Env
}

func (m *passModule) Init(env *Env) error {
	m.env = env
	return nil
}

func (m *passModule) Process(input any) error {
	return m.env.Emit(input)
}

func (m *passModule) Done() error { return nil }

// pickyModule only accepts string args.
type pickyModule struct {
	passModule
}

func (m *pickyModule) ValidateArg(arg any) error {
	if _, ok := arg.(string); !ok {
		return errors.New("arg must be a string")
	}
	return nil
}

// panickyModule panics in ValidateArg.
type panickyModule struct {
	passModule
}

func (m *panickyModule) ValidateArg(arg any) error {
	panic("boom")
}

// fakeVnode records queued work.
type fakeVnode struct {
	mu     sync.Mutex
	queued []struct {
		handle    *Handle
		partition PartitionID
		output    any
	}
	eois []PartitionID
}

func (v *fakeVnode) QueueWork(h *Handle, p PartitionID, output any) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.queued = append(v.queued, struct {
		handle    *Handle
		partition PartitionID
		output    any
	}{h, p, output})
	return nil
}

func (v *fakeVnode) DeliverEOI(h *Handle, p PartitionID) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.eois = append(v.eois, p)
}

// fakeSink records direct deliveries.
type fakeSink struct {
	mu        sync.Mutex
	delivered []any
	stages    []string
	eois      int
}

func (s *fakeSink) Deliver(stage string, h *Handle, output any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delivered = append(s.delivered, output)
	s.stages = append(s.stages, stage)
	return nil
}

func (s *fakeSink) EOI(h *Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eois++
}

func testRegistry() *Registry {
	reg := NewRegistry()
	reg.Register("pass", func() Module { return &passModule{} })
	reg.Register("picky", func() Module { return &pickyModule{} })
	reg.Register("panicky", func() Module { return &panickyModule{} })
	return reg
}

func TestRegistry_RegisterAndNew(t *testing.T) {
	reg := testRegistry()

	m, err := reg.New("pass")
	require.NoError(t, err)
	assert.IsType(t, &passModule{}, m)

	m2, err := reg.New("pass")
	require.NoError(t, err)
	assert.NotSame(t, m, m2, "each worker gets a fresh instance")
}

func TestRegistry_NewUnknownModule(t *testing.T) {
	reg := testRegistry()

	_, err := reg.New("missing")
	assert.ErrorIs(t, err, ErrModuleNotFound)
}

func TestRegistry_ListIsSorted(t *testing.T) {
	reg := testRegistry()

	assert.Equal(t, []string{"panicky", "pass", "picky"}, reg.List())
}

func TestEnv_EmitFollowRouting(t *testing.T) {
	vn := &fakeVnode{}
	next := NewHandle("addone", nil, Follow())
	details := &Details{
		Spec:   Spec{Name: "double", ModuleID: "pass"},
		Output: next,
	}
	env := NewEnv(details, 2, vn)

	require.NoError(t, env.Emit(10))

	require.Len(t, vn.queued, 1)
	assert.Equal(t, next, vn.queued[0].handle)
	assert.Equal(t, PartitionID(2), vn.queued[0].partition, "follow keeps the sender's partition")
	assert.Equal(t, 10, vn.queued[0].output)
}

func TestEnv_EmitPartfunRouting(t *testing.T) {
	vn := &fakeVnode{}
	next := NewHandle("addone", nil, PartitionBy(func(output any) PartitionID {
		return PartitionID(output.(int) % 2)
	}))
	details := &Details{
		Spec:   Spec{Name: "double", ModuleID: "pass"},
		Output: next,
	}
	env := NewEnv(details, 0, vn)

	require.NoError(t, env.Emit(3))

	require.Len(t, vn.queued, 1)
	assert.Equal(t, PartitionID(1), vn.queued[0].partition)
}

func TestEnv_EmitSinkDelivery(t *testing.T) {
	vn := &fakeVnode{}
	sk := &fakeSink{}
	details := &Details{
		Spec:   Spec{Name: "double", ModuleID: "pass"},
		Output: SinkHandle(sk),
	}
	env := NewEnv(details, 0, vn)

	require.NoError(t, env.Emit(7))

	assert.Empty(t, vn.queued)
	require.Len(t, sk.delivered, 1)
	assert.Equal(t, 7, sk.delivered[0])
	assert.Equal(t, "double", sk.stages[0], "sink deliveries carry the emitting stage name")
}

func TestEnv_Accessors(t *testing.T) {
	details := &Details{
		Spec:   Spec{Name: "double", ModuleID: "pass", Arg: "setting"},
		Output: SinkHandle(&fakeSink{}),
	}
	env := NewEnv(details, 5, &fakeVnode{})

	assert.Equal(t, details, env.Details())
	assert.Equal(t, PartitionID(5), env.Partition())
	assert.Equal(t, "setting", env.Arg())
}
