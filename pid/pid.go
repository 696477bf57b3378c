// Package pid implements C1: the PID and PID-Instance data entities
// and the filter-facing operations over them.
//
// A PID is owned by its producing filter; a PID owns its destination
// Instances. Back-references (Instance to PID, PID/Instance to the
// owning filter) are expressed as the non-owning FilterRef interface
// rather than a concrete *filter.Filter, so this package has no
// dependency on the filter/orchestrator package that owns the other
// side of the relationship.
//
// Concurrency mirrors gravwell's IngestMuxer.mtx/sig discipline
// (ingest/muxer.go): a PID's destination list and aggregate counters
// are guarded by one mutex, standing in for the owning filter's own
// per-filter exclusion; callers running inside the external
// scheduler's per-filter exclusion may rely on that external guarantee
// instead and treat this mutex as a cheap redundant guard.
package pid

import (
	"container/list"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/streamgraph/filtercore/packet"
	"github.com/streamgraph/filtercore/prop"
)

// FilterRef is the non-owning handle a PID/Instance keeps back to its
// filter. The filter package's Filter type implements this.
type FilterRef interface {
	ID() string
}

// PID is an output channel of a producing filter.
type PID struct {
	IDStr    string
	Name     string
	Producer FilterRef

	mu          sync.Mutex
	maps        []*prop.Map // ordered sequence of property-map snapshots; maps[len-1] is current
	infoMap     *prop.Map   // info-only entries, mutated without bumping the sequence
	destinations []*Instance

	MaxBufferUnits   int
	MaxBufferTimeUS  int64
	SpeedScaler      int // scale applied in the SPEED_SCALER comparison; 1000 (SPEED_SCALER) at normal speed

	nbBufferUnits    int
	bufferDurationUS int64

	wouldBlock  atomic.Bool
	hasSeenEOS  bool
	rawMedia    bool
	isPlaying   bool
	removed     bool

	forcedCap    prop.Key
	hasForcedCap bool

	decoderInputCount int
	reaggregation     int

	RenegotiateCounter atomic.Int32 // nb_caps_renegotiate
	AdapterBlacklist   map[string]bool // registry names excluded by this pid's own resolution history
	CapsNegotiate      *prop.Map       // published by reconfigure on renegotiation

	resolvedStreamType    int32
	hasResolvedStreamType bool
}

// ResolvedStreamType returns the stream type most recently recorded by
// SetResolvedStreamType, if any. The value's meaning (graph.StreamType)
// is opaque to this package; it is stored as an int32 so pid has no
// dependency on package graph.
func (p *PID) ResolvedStreamType() (int32, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resolvedStreamType, p.hasResolvedStreamType
}

// SetResolvedStreamType records t as this pid's producer-resolved
// stream type, reporting true if a previously recorded type actually
// changed (the "bundle loose auto-disconnect on stream-type
// swap" supplement): callers use the transition to decide whether
// downstream connections need re-validating.
func (p *PID) SetResolvedStreamType(t int32) (changed bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	changed = p.hasResolvedStreamType && p.resolvedStreamType != t
	p.resolvedStreamType, p.hasResolvedStreamType = t, true
	return changed
}

// NewOutputPID allocates a PID owned by producer, with the default
// name PID<N> per new_output_pid.
func NewOutputPID(producer FilterRef, ordinal int) *PID {
	p := &PID{
		IDStr:       uuid.NewString(),
		Producer:    producer,
		SpeedScaler: 1000,
	}
	p.Name = defaultName(ordinal)
	p.maps = []*prop.Map{prop.NewMap()}
	p.infoMap = prop.NewMap()
	return p
}

func defaultName(n int) string {
	return "PID" + itoa(n)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func (p *PID) ID() string { return p.IDStr }

// CurrentMap returns the producer's latest property-map snapshot.
func (p *PID) CurrentMap() *prop.Map {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maps[len(p.maps)-1]
}

// PublishMap appends m as the new current snapshot (copy-on-write),
// used by set_property/copy_properties when a mutation must not
// disturb packets already dispatched against the previous snapshot.
func (p *PID) PublishMap(m *prop.Map) {
	p.mu.Lock()
	p.maps = append(p.maps, m)
	p.mu.Unlock()
}

func (p *PID) InfoMap() *prop.Map {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.infoMap
}

func (p *PID) SetInfoMap(m *prop.Map) {
	p.mu.Lock()
	p.infoMap = m
	p.mu.Unlock()
}

func (p *PID) Destinations() []*Instance {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Instance, len(p.destinations))
	copy(out, p.destinations)
	return out
}

func (p *PID) AddDestination(inst *Instance) {
	p.mu.Lock()
	p.destinations = append(p.destinations, inst)
	p.mu.Unlock()
}

// RemoveDestination removes inst from the destination list, returning
// true if it was present. The caller (C4's disconnect/detach task) is
// responsible for tearing inst down.
func (p *PID) RemoveDestination(inst *Instance) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, d := range p.destinations {
		if d == inst {
			p.destinations = append(p.destinations[:i], p.destinations[i+1:]...)
			return true
		}
	}
	return false
}

func (p *PID) NumDestinations() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.destinations)
}

// HasDestinationTo reports whether f already consumes this PID.
func (p *PID) HasDestinationTo(f FilterRef) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, d := range p.destinations {
		if d.Owner != nil && d.Owner.ID() == f.ID() {
			return true
		}
	}
	return false
}

func (p *PID) WouldBlock() bool   { return p.wouldBlock.Load() }
func (p *PID) setWouldBlock(v bool) bool {
	return p.wouldBlock.Swap(v) != v // returns true if the state transitioned
}

func (p *PID) HasSeenEOS() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hasSeenEOS
}

func (p *PID) SetHasSeenEOS(v bool) {
	p.mu.Lock()
	p.hasSeenEOS = v
	p.mu.Unlock()
}

func (p *PID) Removed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.removed
}

func (p *PID) MarkRemoved() {
	p.mu.Lock()
	p.removed = true
	p.mu.Unlock()
}

func (p *PID) SetForcedCap(k prop.Key) {
	p.mu.Lock()
	p.forcedCap, p.hasForcedCap = k, true
	p.mu.Unlock()
}

func (p *PID) ForcedCap() (prop.Key, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.forcedCap, p.hasForcedCap
}

// Aggregates returns the pid-level buffer aggregates: nb_buffer_units
// and buffer_duration, each the max across destination queues.
func (p *PID) Aggregates() (units int, durationUS int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.nbBufferUnits, p.bufferDurationUS
}

func (p *PID) setAggregates(units int, durationUS int64) {
	p.mu.Lock()
	p.nbBufferUnits, p.bufferDurationUS = units, durationUS
	p.mu.Unlock()
}

// SetAggregates lets the flow controller (package flow) publish the
// pid-level max-across-destinations aggregates it computed for
// nb_buffer_units/buffer_duration.
func (p *PID) SetAggregates(units int, durationUS int64) { p.setAggregates(units, durationUS) }

// SetWouldBlock lets the flow controller publish the block/unblock
// transition; it reports whether the state actually changed so the
// caller knows whether to adjust the owning filter's would_block
// counter.
func (p *PID) SetWouldBlock(v bool) (changed bool) { return p.setWouldBlock(v) }

// Instance is one consumer's view of a PID.
type Instance struct {
	IDStr string
	PID   *PID
	Owner FilterRef

	qmu   sync.Mutex
	queue *list.List // of *packet.Instance

	reassembly *list.List

	pinnedMap *prop.Map

	IsDecoderInput        bool
	RequiresFullDataBlock bool
	lastBlockEnded        bool
	firstBlockStarted     bool
	isEndOfStream         atomic.Bool
	DetachPending         atomic.Bool
	DiscardPackets        atomic.Bool

	ProcessedPackets atomic.Uint64
	ProcessedBytes   atomic.Uint64
	SAPCount         atomic.Uint64
	MaxProcessTimeUS atomic.Int64
	TotalProcessTimeUS atomic.Int64

	rateMu    sync.Mutex
	rateWindowSec int64
	rateBytesThisWindow uint64
	bitrateHistory      []uint64 // bytes/sec, most recent last, capped

	LastClockValue   int64
	Timescale        uint32
	ClockType        int
	HandlesClockRefs bool

	unitCount  int
	durationUS int64
}

// BufferCounts returns this instance's current queued-packet count and
// accumulated duration (µs), the per-destination numbers the flow
// controller maxes across destinations into the owning PID's
// aggregates.
func (inst *Instance) BufferCounts() (units int, durationUS int64) {
	inst.qmu.Lock()
	defer inst.qmu.Unlock()
	return inst.unitCount, inst.durationUS
}

// AdjustBufferCounts applies a delta (positive on enqueue, negative on
// drop) to this instance's buffer counters and returns the new
// totals, used by the flow controller's enqueue/dequeue paths.
func (inst *Instance) AdjustBufferCounts(deltaUnits int, deltaDurationUS int64) (units int, durationUS int64) {
	inst.qmu.Lock()
	defer inst.qmu.Unlock()
	inst.unitCount += deltaUnits
	inst.durationUS += deltaDurationUS
	if inst.unitCount < 0 {
		inst.unitCount = 0
	}
	if inst.durationUS < 0 {
		inst.durationUS = 0
	}
	return inst.unitCount, inst.durationUS
}

func NewInstance(pd *PID, owner FilterRef) *Instance {
	return &Instance{
		IDStr:      uuid.NewString(),
		PID:        pd,
		Owner:      owner,
		queue:      list.New(),
		reassembly: list.New(),
		pinnedMap:  pd.CurrentMap().Ref(),
	}
}

func (inst *Instance) ID() string { return inst.IDStr }

func (inst *Instance) PinnedMap() *prop.Map {
	inst.qmu.Lock()
	defer inst.qmu.Unlock()
	return inst.pinnedMap
}

// RepinMap releases the previously pinned map and pins m instead,
// called when the instance consumes a packet carrying a new map.
func (inst *Instance) RepinMap(m *prop.Map) {
	inst.qmu.Lock()
	old := inst.pinnedMap
	inst.pinnedMap = m.Ref()
	inst.qmu.Unlock()
	old.Release()
}

func (inst *Instance) QueueLen() int {
	inst.qmu.Lock()
	defer inst.qmu.Unlock()
	return inst.queue.Len()
}

func (inst *Instance) Enqueue(pi *packet.Instance) {
	inst.qmu.Lock()
	inst.queue.PushBack(pi)
	inst.qmu.Unlock()
}

// Dequeue pops the head packet instance without yet touching buffer
// counters; the flow controller (package flow) wraps this with the
// buffer-accounting and unblock logic.
func (inst *Instance) Dequeue() (*packet.Instance, bool) {
	inst.qmu.Lock()
	defer inst.qmu.Unlock()
	e := inst.queue.Front()
	if e == nil {
		return nil, false
	}
	inst.queue.Remove(e)
	return e.Value.(*packet.Instance), true
}

// Peek returns the head packet instance without removing it, used by
// full-data-block framing to check the block-end flag before
// releasing a batch to the consumer.
func (inst *Instance) Peek() (*packet.Instance, bool) {
	inst.qmu.Lock()
	defer inst.qmu.Unlock()
	e := inst.queue.Front()
	if e == nil {
		return nil, false
	}
	return e.Value.(*packet.Instance), true
}

func (inst *Instance) IsEndOfStream() bool     { return inst.isEndOfStream.Load() }
func (inst *Instance) SetEndOfStream(v bool)   { inst.isEndOfStream.Store(v) }

func (inst *Instance) ReassemblyList() *list.List { return inst.reassembly }

// TransferState moves inst's queued packets, reassembly buffer,
// buffer counters, end-of-stream flag, and pinned property-map
// reference onto dst, leaving inst empty. Used by the swap task:
// queued packets and the reassembly buffer move to the new instance
// preserving order; end-of-stream flag, buffer duration, and the
// active property map move with them.
func (inst *Instance) TransferState(dst *Instance) {
	inst.qmu.Lock()
	for e := inst.queue.Front(); e != nil; {
		next := e.Next()
		inst.queue.Remove(e)
		dst.queue.PushBack(e.Value)
		e = next
	}
	for e := inst.reassembly.Front(); e != nil; {
		next := e.Next()
		inst.reassembly.Remove(e)
		dst.reassembly.PushBack(e.Value)
		e = next
	}
	units, dur := inst.unitCount, inst.durationUS
	inst.unitCount, inst.durationUS = 0, 0
	pm := inst.pinnedMap
	inst.pinnedMap = nil
	eos := inst.isEndOfStream.Load()
	inst.qmu.Unlock()

	dst.qmu.Lock()
	dst.unitCount += units
	dst.durationUS += dur
	old := dst.pinnedMap
	dst.pinnedMap = pm
	dst.qmu.Unlock()
	old.Release()

	dst.SetEndOfStream(eos)
}

// RecordProcessTime folds a process-call duration (microseconds) into
// the instance's max/total statistics ("max and total process
// times").
func (inst *Instance) RecordProcessTime(us int64) {
	inst.TotalProcessTimeUS.Add(us)
	for {
		cur := inst.MaxProcessTimeUS.Load()
		if us <= cur {
			break
		}
		if inst.MaxProcessTimeUS.CompareAndSwap(cur, us) {
			break
		}
	}
}

// RecordBitrateSample folds nbytes delivered at unix second sec into
// the 1-second-window bitrate histogram ("bit-rate histograms
// over 1-second windows"), retaining the last 60 windows.
func (inst *Instance) RecordBitrateSample(sec int64, nbytes uint64) {
	inst.rateMu.Lock()
	defer inst.rateMu.Unlock()
	if sec != inst.rateWindowSec {
		if inst.rateWindowSec != 0 {
			inst.bitrateHistory = append(inst.bitrateHistory, inst.rateBytesThisWindow)
			if len(inst.bitrateHistory) > 60 {
				inst.bitrateHistory = inst.bitrateHistory[len(inst.bitrateHistory)-60:]
			}
		}
		inst.rateWindowSec = sec
		inst.rateBytesThisWindow = 0
	}
	inst.rateBytesThisWindow += nbytes
}

func (inst *Instance) BitrateHistory() []uint64 {
	inst.rateMu.Lock()
	defer inst.rateMu.Unlock()
	out := make([]uint64, len(inst.bitrateHistory))
	copy(out, inst.bitrateHistory)
	return out
}
