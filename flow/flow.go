// Package flow implements C5: per-PID buffer accounting, the
// would-block/unblock transition, and the interpretation of internal
// control packets (EOS, remove, clock reference).
//
// It generalizes gravwell's chancacher.ChanCacher (chancacher/
// chancacher.go): where ChanCacher pipes interface{} through an
// In/Out channel pair and spills overflow to a disk-backed cache when
// the buffered channel fills, the flow controller pipes
// *packet.Instance through a pid.Instance's queue and, instead of
// spilling to disk, flips a would_block flag that tells the producer
// to stop — this controller keeps no on-disk spill path at all, only
// the in-memory buffer accounting. The producer/consumer "run loop"
// pattern chancacher uses to move values between channels under a
// lock is replaced here by plain Enqueue/Drop call pairs, since the
// core never blocks internally.
package flow

import (
	"time"

	"github.com/streamgraph/filtercore/packet"
	"github.com/streamgraph/filtercore/pid"
)

// SpeedScaler matches the SPEED_SCALER constant: the
// would-block comparison is `nb_buffer_units * SPEED_SCALER >=
// max_buffer_units * pid.speed_scaler`, letting playback speed changes
// scale the effective threshold without rewriting it.
const SpeedScaler = 1000

// Default buffer sizes "Stream-type buffering defaults".
const (
	DefaultRawVisualUnits = 4
	DefaultRawAudioUnits  = 20
)

// FilterHandle is the non-owning view the flow controller needs of
// the owning filter to maintain the invariant
// `filter.would_block <= filter.num_output_pids` and to repost a
// process task when a block clears (dequeue path). The
// filter package's Filter type implements this.
type FilterHandle interface {
	IncWouldBlock()
	DecWouldBlock()
	HasUnblockedOutput() bool
	RepostProcess()
}

// Defaults picks the buffer thresholds assigns by stream
// role: raw visual and raw audio get small unit-count buffers,
// decoder inputs and everything else are time-based (unit count 0,
// using the supplied microsecond ceilings).
func Defaults(rawVideo, rawAudio, isDecoderInput bool, decoderBufferMaxUS, sessionDefaultUS int64) (maxUnits int, maxTimeUS int64) {
	switch {
	case rawVideo:
		return DefaultRawVisualUnits, 0
	case rawAudio:
		return DefaultRawAudioUnits, 0
	case isDecoderInput:
		return 0, decoderBufferMaxUS
	default:
		return 0, sessionDefaultUS
	}
}

// wouldBlockNow evaluates the block condition against the
// pid's own thresholds (copied locally since pid.PID keeps them
// unexported except via its public fields).
func wouldBlockNow(maxUnits int, maxTimeUS int64, speedScaler int, units int, durationUS int64) bool {
	if speedScaler <= 0 {
		speedScaler = SpeedScaler
	}
	if maxUnits > 0 && int64(units)*SpeedScaler >= int64(maxUnits)*int64(speedScaler) {
		return true
	}
	if maxTimeUS > 0 && durationUS*SpeedScaler > maxTimeUS*int64(speedScaler) {
		return true
	}
	return false
}

// Enqueue pushes pi onto every element of dests (the destination
// instances the producer is dispatching this packet copy to),
// updates each instance's and the pid's aggregate buffer counters,
// and — when the resulting occupancy crosses the configured
// thresholds — sets would_block on p and bumps owner's counter.
//
// Internal (non-normal) packets are also pushed through the same
// queue: the get_packet is expected to filter them out of the
// consumer-visible stream; Drop below interprets them when popped.
func Enqueue(p *pid.PID, dests []*pid.Instance, pi *packet.Instance, owner FilterHandle) {
	for _, inst := range dests {
		inst.Enqueue(pi)
		inst.AdjustBufferCounts(1, pi.Pkt.DurationUS)
	}
	recomputeAndMaybeBlock(p, dests, owner)
}

// recomputeAndMaybeBlock re-derives p's nb_buffer_units/buffer_duration
// as the max across dests (invariant) and transitions
// would_block if the thresholds are now exceeded.
func recomputeAndMaybeBlock(p *pid.PID, dests []*pid.Instance, owner FilterHandle) {
	var maxUnits int
	var maxDur int64
	for _, inst := range dests {
		u, d := inst.BufferCounts()
		if u > maxUnits {
			maxUnits = u
		}
		if d > maxDur {
			maxDur = d
		}
	}
	p.SetAggregates(maxUnits, maxDur)

	blocked := wouldBlockNow(p.MaxBufferUnits, p.MaxBufferTimeUS, p.SpeedScaler, maxUnits, maxDur)
	if blocked == p.WouldBlock() {
		return
	}
	if p.SetWouldBlock(blocked) && owner != nil {
		if blocked {
			owner.IncWouldBlock()
		} else {
			owner.DecWouldBlock()
		}
	}
}

// Drop implements the "Dequeue path": pops inst's head packet
// instance, decrements its buffer counters, recomputes the owning
// pid's aggregates, and runs check_unblock — clearing would_block and
// reposting a process task on owner if the block condition is no
// longer satisfied and owner still has somewhere to send data.
//
// Internal control packets are interpreted here and
// returned to the caller as a Control value instead of being handed
// to filter code as ordinary payload.
func Drop(inst *pid.Instance, allDests []*pid.Instance, owner FilterHandle) (*packet.Instance, Control, bool) {
	pi, ok := inst.Dequeue()
	if !ok {
		return nil, Control{}, false
	}
	inst.AdjustBufferCounts(-1, -pi.Pkt.DurationUS)
	recomputeAndMaybeBlock(inst.PID, allDests, owner)

	ctl := interpret(inst, pi)

	if owner != nil && !inst.PID.WouldBlock() && owner.HasUnblockedOutput() {
		owner.RepostProcess()
	}
	return pi, ctl, true
}

// Control carries the interpretation of an internal (non-normal)
// packet popped off a queue; ordinary payload and SAP packets produce
// a zero Control (IsControl == false).
type Control struct {
	IsControl  bool
	Kind       packet.Kind
	ClockValue int64
	Timescale  uint32
}

func interpret(inst *pid.Instance, pi *packet.Instance) Control {
	if !pi.Pkt.Kind.Internal() {
		return Control{}
	}
	switch pi.Pkt.Kind {
	case packet.KindEOS:
		if inst.PID.HasSeenEOS() {
			inst.SetEndOfStream(true)
		}
		return Control{IsControl: true, Kind: packet.KindEOS}
	case packet.KindRemove:
		return Control{IsControl: true, Kind: packet.KindRemove}
	case packet.KindClockRef:
		inst.LastClockValue = clockValue(pi)
		return Control{IsControl: true, Kind: packet.KindClockRef, ClockValue: inst.LastClockValue, Timescale: inst.Timescale}
	}
	return Control{IsControl: true, Kind: pi.Pkt.Kind}
}

func clockValue(pi *packet.Instance) int64 {
	// The clock reference packet encodes its anchor as DurationUS on
	// this core's Packet (no dedicated field — clock refs are just
	// another internal Kind carrying a payload); callers that need
	// sub-field decoding read pi.Pkt.Data directly.
	return pi.Pkt.DurationUS
}

// RecordThroughput folds nbytes delivered "now" into inst's
// bit-rate histogram, generalizing ingest/rates.go's HumanRate
// reporting (bytes over a measured duration) into the 1-second-window
// sampling specifies for PID-instances.
func RecordThroughput(inst *pid.Instance, now time.Time, nbytes uint64) {
	inst.RecordBitrateSample(now.Unix(), nbytes)
	inst.ProcessedBytes.Add(nbytes)
	inst.ProcessedPackets.Add(1)
}
