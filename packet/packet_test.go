package packet_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/streamgraph/filtercore/packet"
	"github.com/streamgraph/filtercore/prop"
)

func TestNewPacketStartsWithProducerRef(t *testing.T) {
	props := prop.NewMap()
	pk := packet.New(packet.KindNormal, props, []byte("payload"), 1000)
	assert.Equal(t, int32(1), pk.RefCount())
	assert.Equal(t, int32(2), props.RefCount(), "New must take its own Ref on props")
}

func TestInstanceRefcountLifecycle(t *testing.T) {
	props := prop.NewMap()
	pk := packet.New(packet.KindNormal, props, nil, 0)

	inst1 := packet.NewInstance(pk)
	inst2 := packet.NewInstance(pk)
	assert.Equal(t, int32(3), pk.RefCount())

	pk.ReleaseProducerRef()
	assert.Equal(t, int32(2), pk.RefCount())

	inst1.Drop()
	assert.Equal(t, int32(1), pk.RefCount())

	inst2.Drop()
	assert.Equal(t, int32(0), pk.RefCount())
}

func TestDropIsSafeOnNilInstanceAndDoubleDrop(t *testing.T) {
	var inst *packet.Instance
	assert.NotPanics(t, func() { inst.Drop() })

	pk := packet.New(packet.KindEOS, prop.NewMap(), nil, 0)
	i := packet.NewInstance(pk)
	i.Drop()
	assert.Nil(t, i.Pkt)
	assert.NotPanics(t, func() { i.Drop() }, "dropping an already-dropped instance must be a no-op")
}

func TestKindInternalClassifiesControlKinds(t *testing.T) {
	assert.False(t, packet.KindNormal.Internal())
	assert.False(t, packet.KindSAP.Internal())
	assert.True(t, packet.KindEOS.Internal())
	assert.True(t, packet.KindRemove.Internal())
	assert.True(t, packet.KindClockRef.Internal())
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "eos", packet.KindEOS.String())
	assert.Equal(t, "normal", packet.KindNormal.String())
}
