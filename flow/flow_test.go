package flow_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/streamgraph/filtercore/flow"
	"github.com/streamgraph/filtercore/packet"
	"github.com/streamgraph/filtercore/pid"
	"github.com/streamgraph/filtercore/prop"
)

type fakeFilter struct {
	id            string
	wouldBlock    int
	outputs       int
	reposted      int
	unblockedOut  bool
}

func (f *fakeFilter) ID() string { return f.id }
func (f *fakeFilter) IncWouldBlock() { f.wouldBlock++ }
func (f *fakeFilter) DecWouldBlock() { f.wouldBlock-- }
func (f *fakeFilter) HasUnblockedOutput() bool { return f.unblockedOut }
func (f *fakeFilter) RepostProcess() { f.reposted++ }

func mkPacket(durationUS int64) *packet.Instance {
	pk := packet.New(packet.KindNormal, prop.NewMap(), nil, durationUS)
	pi := packet.NewInstance(pk)
	pk.ReleaseProducerRef()
	return pi
}

func TestEnqueueSetsWouldBlockAtThreshold(t *testing.T) {
	producer := &fakeFilter{id: "producer"}
	consumer := &fakeFilter{id: "consumer", unblockedOut: true}

	p := pid.NewOutputPID(producer, 0)
	p.MaxBufferUnits = 4
	inst := pid.NewInstance(p, consumer)
	p.AddDestination(inst)

	for i := 0; i < 4; i++ {
		flow.Enqueue(p, []*pid.Instance{inst}, mkPacket(0), producer)
	}
	assert.True(t, p.WouldBlock())
	assert.Equal(t, 1, producer.wouldBlock)

	_, _, ok := flow.Drop(inst, []*pid.Instance{inst}, producer)
	assert.True(t, ok)
	assert.False(t, p.WouldBlock())
	assert.Equal(t, 0, producer.wouldBlock)
}

func TestZeroThresholdsNeverBlock(t *testing.T) {
	producer := &fakeFilter{id: "producer"}
	p := pid.NewOutputPID(producer, 0)
	inst := pid.NewInstance(p, &fakeFilter{id: "consumer"})
	p.AddDestination(inst)

	for i := 0; i < 100; i++ {
		flow.Enqueue(p, []*pid.Instance{inst}, mkPacket(0), producer)
	}
	assert.False(t, p.WouldBlock())
}

func TestDropInterpretsEOS(t *testing.T) {
	producer := &fakeFilter{id: "producer"}
	p := pid.NewOutputPID(producer, 0)
	p.SetHasSeenEOS(true)
	inst := pid.NewInstance(p, &fakeFilter{id: "consumer"})
	p.AddDestination(inst)

	pk := packet.New(packet.KindEOS, prop.NewMap(), nil, 0)
	pi := packet.NewInstance(pk)
	pk.ReleaseProducerRef()
	inst.Enqueue(pi)
	inst.AdjustBufferCounts(1, 0)

	_, ctl, ok := flow.Drop(inst, []*pid.Instance{inst}, producer)
	assert.True(t, ok)
	assert.True(t, ctl.IsControl)
	assert.Equal(t, packet.KindEOS, ctl.Kind)
	assert.True(t, inst.IsEndOfStream())
}
