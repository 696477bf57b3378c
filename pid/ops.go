package pid

import (
	"github.com/streamgraph/filtercore/packet"
	"github.com/streamgraph/filtercore/prop"
)

// PIDIDKey is the well-known 4CC for the PID_ID property; writing it
// also renames the pid to PID<value>.
var PIDIDKey = prop.CodeKeyFromString("PIID")

// Role reports whether this PID value is being used as an input
// PID by the caller context. Output PIDs are owned by their producer
// and accept writes; input PIDs (a PID viewed through one of its
// Instances) must not be mutated directly — a write is ignored when
// the pid is an input. The core models this by callers only ever invoking
// SetProperty on the producer's own PID object, never on one reached
// via an Instance; this flag exists for callers that hold a PID
// reference of ambiguous origin (e.g. a generic filter helper).
type Role uint8

const (
	RoleOutput Role = iota
	RoleInput
)

// SetProperty mutates p's current property map. A non-info write
// allocates a new map via copy-on-write so that packets already
// dispatched against the previous map keep their original snapshot.
// An info write updates the separate info-map in place and never
// invalidates dispatched packets.
func (p *PID) SetProperty(role Role, k prop.Key, v prop.PropValue, info bool) {
	if role == RoleInput {
		return
	}
	if info {
		p.SetInfoMap(p.InfoMap().CopyWith(k, v, true))
	} else {
		p.PublishMap(p.CurrentMap().CopyWith(k, v, false))
		if k.Equal(PIDIDKey) {
			p.Name = "PID" + v.String()
		}
	}
}

// CopyProperties replaces dst's current map with a fresh map merged
// from src's latest. A no-op (no new map allocated) when the merge
// result is equivalent to dst's current map.
func CopyProperties(dst, src *PID) {
	merged := prop.MergeFrom(dst.CurrentMap(), src.CurrentMap())
	if merged.Equivalent(dst.CurrentMap()) {
		return
	}
	dst.PublishMap(merged)
}

// GetProperty reads from the producer's latest map. An input's view,
// the instance's pinned map, is read with GetInstanceProperty.
func GetProperty(pd *PID, k prop.Key) (prop.PropValue, bool) {
	return pd.CurrentMap().Get(k)
}

func GetInstanceProperty(inst *Instance, k prop.Key) (prop.PropValue, bool) {
	return inst.PinnedMap().Get(k)
}

func GetPropertyStr(pd *PID, k prop.Key) (string, bool) {
	v, ok := pd.CurrentMap().Get(k)
	if !ok {
		return "", false
	}
	s, ok := v.Str()
	return s, ok
}

// UpstreamInfoSource is implemented by whatever owns the traversal
// across filters; GetInfo below calls it only when this PID's own
// maps (current + info) don't carry k: "if absent on
// this PID, recursively consults upstream input PIDs."
type UpstreamInfoSource interface {
	UpstreamGetInfo(k prop.Key) (prop.PropValue, bool)
}

// GetInfo reads k from p's info-map, falling back to its current map,
// falling back to upstream (if producer implements UpstreamInfoSource).
// This allows informational propagation without forcing a reconfigure.
func (p *PID) GetInfo(k prop.Key) (prop.PropValue, bool) {
	if v, ok := p.InfoMap().GetInfo(k); ok {
		return v, true
	}
	if v, ok := p.CurrentMap().Get(k); ok {
		return v, true
	}
	if up, ok := p.Producer.(UpstreamInfoSource); ok {
		return up.UpstreamGetInfo(k)
	}
	return prop.PropValue{}, false
}

// HasFullBlockReady implements the full-data-block framing mode: when
// inst requires full blocks, it reports ready only once a queued
// packet carries the block-end flag ("Framing mode"). When
// the instance doesn't require full blocks, any queued packet is ready.
func (inst *Instance) HasFullBlockReady() bool {
	inst.qmu.Lock()
	defer inst.qmu.Unlock()
	if inst.queue.Len() == 0 {
		return false
	}
	if !inst.RequiresFullDataBlock {
		return true
	}
	for e := inst.queue.Front(); e != nil; e = e.Next() {
		if e.Value.(*packet.Instance).Pkt.BlockEnd {
			return true
		}
	}
	return false
}
