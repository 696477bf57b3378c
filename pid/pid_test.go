package pid_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/streamgraph/filtercore/packet"
	"github.com/streamgraph/filtercore/pid"
	"github.com/streamgraph/filtercore/prop"
)

type fakeOwner struct{ id string }

func (f *fakeOwner) ID() string { return f.id }

var styp = prop.CodeKeyFromString("STYP")

func TestNewOutputPIDDefaultName(t *testing.T) {
	p := pid.NewOutputPID(&fakeOwner{id: "f1"}, 0)
	assert.Equal(t, "PID0", p.Name)
	p2 := pid.NewOutputPID(&fakeOwner{id: "f1"}, 3)
	assert.Equal(t, "PID3", p2.Name)
}

func TestSetPropertyRenamesOnPIDIDKey(t *testing.T) {
	p := pid.NewOutputPID(&fakeOwner{id: "f1"}, 0)
	p.SetProperty(pid.RoleOutput, pid.PIDIDKey, prop.IntValue(7), false)
	assert.Equal(t, "PID7", p.Name)
}

func TestSetPropertyIgnoredOnInputRole(t *testing.T) {
	p := pid.NewOutputPID(&fakeOwner{id: "f1"}, 0)
	before := p.CurrentMap()
	p.SetProperty(pid.RoleInput, styp, prop.StringValue("video"), false)
	assert.Same(t, before, p.CurrentMap(), "a RoleInput write must be a no-op")
}

func TestSetPropertyCopyOnWritePreservesOlderSnapshot(t *testing.T) {
	p := pid.NewOutputPID(&fakeOwner{id: "f1"}, 0)
	old := p.CurrentMap()
	p.SetProperty(pid.RoleOutput, styp, prop.StringValue("video"), false)

	_, ok := old.Get(styp)
	assert.False(t, ok, "the previously-dispatched snapshot must be untouched")
	v, ok := p.CurrentMap().Get(styp)
	assert.True(t, ok)
	assert.Equal(t, "video", v.String())
}

func TestCopyPropertiesIsNoopWhenEquivalent(t *testing.T) {
	dst := pid.NewOutputPID(&fakeOwner{id: "dst"}, 0)
	src := pid.NewOutputPID(&fakeOwner{id: "src"}, 0)
	src.SetProperty(pid.RoleOutput, styp, prop.StringValue("video"), false)
	dst.SetProperty(pid.RoleOutput, styp, prop.StringValue("video"), false)

	before := dst.CurrentMap()
	pid.CopyProperties(dst, src)
	assert.Same(t, before, dst.CurrentMap(), "merging an equivalent map must not publish a new snapshot")
}

func TestCopyPropertiesMergesNewKeys(t *testing.T) {
	dst := pid.NewOutputPID(&fakeOwner{id: "dst"}, 0)
	src := pid.NewOutputPID(&fakeOwner{id: "src"}, 0)
	src.SetProperty(pid.RoleOutput, styp, prop.StringValue("video"), false)

	pid.CopyProperties(dst, src)
	v, ok := dst.CurrentMap().Get(styp)
	assert.True(t, ok)
	assert.Equal(t, "video", v.String())
}

func TestAddRemoveDestination(t *testing.T) {
	p := pid.NewOutputPID(&fakeOwner{id: "f1"}, 0)
	owner := &fakeOwner{id: "consumer"}
	inst := pid.NewInstance(p, owner)

	p.AddDestination(inst)
	assert.Equal(t, 1, p.NumDestinations())
	assert.True(t, p.HasDestinationTo(owner))

	assert.True(t, p.RemoveDestination(inst))
	assert.Equal(t, 0, p.NumDestinations())
	assert.False(t, p.RemoveDestination(inst), "removing twice must report false")
}

func TestSetWouldBlockReportsTransition(t *testing.T) {
	p := pid.NewOutputPID(&fakeOwner{id: "f1"}, 0)
	assert.True(t, p.SetWouldBlock(true))
	assert.False(t, p.SetWouldBlock(true), "setting the same value again is not a transition")
	assert.True(t, p.SetWouldBlock(false))
}

func TestResolvedStreamTypeFirstCallNeverCountsAsChange(t *testing.T) {
	p := pid.NewOutputPID(&fakeOwner{id: "f1"}, 0)
	_, ok := p.ResolvedStreamType()
	assert.False(t, ok)

	assert.False(t, p.SetResolvedStreamType(5))
	st, ok := p.ResolvedStreamType()
	assert.True(t, ok)
	assert.Equal(t, int32(5), st)
}

func TestResolvedStreamTypeDetectsChange(t *testing.T) {
	p := pid.NewOutputPID(&fakeOwner{id: "f1"}, 0)
	p.SetResolvedStreamType(5)
	assert.False(t, p.SetResolvedStreamType(5), "same value again is not a change")
	assert.True(t, p.SetResolvedStreamType(6), "a genuinely different value is a change")
}

func TestForcedCap(t *testing.T) {
	p := pid.NewOutputPID(&fakeOwner{id: "f1"}, 0)
	_, ok := p.ForcedCap()
	assert.False(t, ok)

	p.SetForcedCap(styp)
	k, ok := p.ForcedCap()
	assert.True(t, ok)
	assert.True(t, k.Equal(styp))
}

func TestInstanceBufferCountsAndHasFullBlockReady(t *testing.T) {
	p := pid.NewOutputPID(&fakeOwner{id: "f1"}, 0)
	inst := pid.NewInstance(p, &fakeOwner{id: "consumer"})
	inst.RequiresFullDataBlock = true

	assert.False(t, inst.HasFullBlockReady(), "empty queue is never ready")

	pk := packet.New(packet.KindNormal, prop.NewMap(), nil, 0)
	pk.BlockEnd = false
	pi := packet.NewInstance(pk)
	pk.ReleaseProducerRef()
	inst.Enqueue(pi)
	assert.False(t, inst.HasFullBlockReady(), "no block-end packet queued yet")

	pk2 := packet.New(packet.KindNormal, prop.NewMap(), nil, 0)
	pk2.BlockEnd = true
	pi2 := packet.NewInstance(pk2)
	pk2.ReleaseProducerRef()
	inst.Enqueue(pi2)
	assert.True(t, inst.HasFullBlockReady())
}

func TestTransferStateMovesQueueAndBuffers(t *testing.T) {
	p := pid.NewOutputPID(&fakeOwner{id: "f1"}, 0)
	oldInst := pid.NewInstance(p, &fakeOwner{id: "old"})
	newInst := pid.NewInstance(p, &fakeOwner{id: "new"})

	pk := packet.New(packet.KindNormal, prop.NewMap(), nil, 500)
	pi := packet.NewInstance(pk)
	pk.ReleaseProducerRef()
	oldInst.Enqueue(pi)
	oldInst.AdjustBufferCounts(1, 500)
	oldInst.SetEndOfStream(true)

	oldInst.TransferState(newInst)

	assert.Equal(t, 0, oldInst.QueueLen())
	assert.Equal(t, 1, newInst.QueueLen())
	units, dur := newInst.BufferCounts()
	assert.Equal(t, 1, units)
	assert.Equal(t, int64(500), dur)
	assert.True(t, newInst.IsEndOfStream())
}

func TestRecordProcessTimeTracksMax(t *testing.T) {
	p := pid.NewOutputPID(&fakeOwner{id: "f1"}, 0)
	inst := pid.NewInstance(p, &fakeOwner{id: "consumer"})

	inst.RecordProcessTime(10)
	inst.RecordProcessTime(30)
	inst.RecordProcessTime(5)

	assert.Equal(t, int64(30), inst.MaxProcessTimeUS.Load())
	assert.Equal(t, int64(45), inst.TotalProcessTimeUS.Load())
}
