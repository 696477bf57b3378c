// Package packet implements the Packet and per-destination
// PacketInstance types carried over PID-instance queues.
//
// Packet mirrors gravwell's entry.Entry split of a fixed header
// (timestamp, tag-like Kind) plus a payload, generalized with a
// reference to the property map active at creation time in
// place of Entry's enumerated-value block, and a reference count
// instead of wire encoding (no transport I/O in this core).
package packet

import (
	"sync/atomic"
	"time"

	"github.com/streamgraph/filtercore/prop"
)

// Kind distinguishes ordinary payload packets from the internal
// control packets (end-of-stream, remove, clock reference) the flow
// controller interprets on dequeue.
type Kind uint8

const (
	KindNormal Kind = iota
	KindSAP
	KindEOS
	KindRemove
	KindClockRef
)

func (k Kind) String() string {
	switch k {
	case KindSAP:
		return "sap"
	case KindEOS:
		return "eos"
	case KindRemove:
		return "remove"
	case KindClockRef:
		return "clockref"
	default:
		return "normal"
	}
}

func (k Kind) Internal() bool { return k != KindNormal && k != KindSAP }

// Packet carries payload plus a reference to the property map active
// when it was created. The producer holds a creation-time reference;
// every dispatched PacketInstance holds another, so Packet.refs
// mirrors the invariant "pk.refcount = n" for n destinations,
// plus one for the producer until it releases.
type Packet struct {
	Kind      Kind
	TS        time.Time
	Props     *prop.Map // referenced, not owned; Release()d when the packet is destroyed
	Data      []byte
	DurationUS int64 // packet duration scaled to microseconds, used by the flow controller
	BlockEnd   bool  // marks the last fragment of a full data block, for framing-mode consumers

	refs atomic.Int32
}

// New creates a packet with the producer's creation-time reference
// already accounted for and a Ref taken on props.
func New(kind Kind, props *prop.Map, data []byte, durationUS int64) *Packet {
	p := &Packet{
		Kind:       kind,
		TS:         time.Now(),
		Props:      props.Ref(),
		Data:       data,
		DurationUS: durationUS,
	}
	p.refs.Store(1)
	return p
}

// Instance wraps a shared Packet with per-destination wrapper
// bookkeeping: each destination receives its own packet-instance
// wrapper referencing the shared packet.
type Instance struct {
	Pkt *Packet
}

// NewInstance adds a destination reference to pkt and returns its
// wrapper; call Drop exactly once per Instance to release it.
func NewInstance(pkt *Packet) *Instance {
	pkt.refs.Add(1)
	return &Instance{Pkt: pkt}
}

// Drop releases this instance's reference to the underlying packet,
// destroying it (and releasing its property-map reference) if this was
// the last reference. Mirrors drop_packet's decrement-and-maybe-free
// contract.
func (inst *Instance) Drop() {
	if inst == nil || inst.Pkt == nil {
		return
	}
	if inst.Pkt.refs.Add(-1) == 0 {
		inst.Pkt.Props.Release()
	}
	inst.Pkt = nil
}

// ReleaseProducerRef releases the producer's creation-time reference,
// used once the producer has finished dispatching to every
// destination: a packet lives until every consumer instance has
// dropped its packet-instance AND the producer has released its
// creation-time reference.
func (p *Packet) ReleaseProducerRef() {
	if p.refs.Add(-1) == 0 {
		p.Props.Release()
	}
}

func (p *Packet) RefCount() int32 { return p.refs.Load() }
