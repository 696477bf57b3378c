package filter

import (
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/streamgraph/filtercore/internal/lock"
	"github.com/streamgraph/filtercore/pid"
	"github.com/streamgraph/filtercore/prop"
)

// Filter is the core's view of an opaque processing unit:
// a registry, its live input/output PIDs, and the scratch fields the
// core itself owns (blacklist, clone back-reference, destination
// hint, dynamic-insertion flag, counters). Everything else about a
// filter's behavior is reached only through Registry.Callbacks.
type Filter struct {
	IDStr    string
	Registry *Registry
	SourceID string // for source-id exclusion filters (init task)

	// RepostFn is set by the orchestrator when the filter is
	// registered; Filter.RepostProcess calls it to schedule a process
	// task, standing in for "the scheduler" treats as
	// external.
	RepostFn func()

	mu       lock.Mutex
	inputs   []*pid.Instance
	outputs  []*pid.PID
	detached []*pid.Instance
	pending  []*pid.PID // new_output_pid results awaiting the init-task flush

	Blacklist        map[string]bool
	ClonedFrom       *Filter
	DestinationHint  string
	DestinationArgs  string
	DynamicInsertion bool

	// Args carries the session config's parsed `:key=value` arguments
	// for this filter instance (the arg syntax is parsed outside
	// this core; Registry.Callbacks consult this map by whatever keys
	// that registry declares, since the core itself assigns no meaning
	// to filter-specific argument names).
	Args map[string]prop.PropValue

	streamResetPending atomic.Int32
	wouldBlock         atomic.Int32
	pendingPackets     atomic.Int32
	outConnectPending  atomic.Int32

	removed      atomic.Bool
	notConnected atomic.Bool
}

// New allocates a Filter bound to registry.
func New(registry *Registry) *Filter {
	return &Filter{
		IDStr:     uuid.NewString(),
		Registry:  registry,
		Blacklist: make(map[string]bool),
		Args:      make(map[string]prop.PropValue),
	}
}

func (f *Filter) ID() string { return f.IDStr }

// NewOutputPID allocates a PID owned by f and enqueues it on f's
// pending-pids queue, per new_output_pid contract: init
// tasks are triggered once the filter callback returns and the
// pending queue is flushed (PID() FlushPending below).
func (f *Filter) NewOutputPID() *pid.PID {
	f.mu.Lock()
	ordinal := len(f.outputs) + len(f.pending)
	p := pid.NewOutputPID(f, ordinal)
	f.outputs = append(f.outputs, p)
	f.pending = append(f.pending, p)
	f.mu.Unlock()
	return p
}

// FlushPending drains and returns the pids queued by NewOutputPID
// since the last flush, for the orchestrator to post Init tasks
// against: new output pids are flushed on return from the filter
// callback to trigger their init tasks.
func (f *Filter) FlushPending() []*pid.PID {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.pending
	f.pending = nil
	return out
}

func (f *Filter) OutputPIDs() []*pid.PID {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*pid.PID, len(f.outputs))
	copy(out, f.outputs)
	return out
}

func (f *Filter) NumOutputPIDs() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.outputs)
}

func (f *Filter) InputInstances() []*pid.Instance {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*pid.Instance, len(f.inputs))
	copy(out, f.inputs)
	return out
}

func (f *Filter) NumInputs() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inputs)
}

func (f *Filter) addInput(inst *pid.Instance) {
	f.mu.Lock()
	f.inputs = append(f.inputs, inst)
	f.mu.Unlock()
}

func (f *Filter) removeInput(inst *pid.Instance) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, in := range f.inputs {
		if in == inst {
			f.inputs = append(f.inputs[:i], f.inputs[i+1:]...)
			return true
		}
	}
	return false
}

func (f *Filter) parkDetached(inst *pid.Instance) {
	f.mu.Lock()
	f.detached = append(f.detached, inst)
	f.mu.Unlock()
}

// TakeDetached removes and returns a previously detached instance of
// p, if any is parked, for a later swap to reattach via the
// detach/swap task pair.
func (f *Filter) TakeDetached(p *pid.PID) (*pid.Instance, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, d := range f.detached {
		if d.PID == p {
			f.detached = append(f.detached[:i], f.detached[i+1:]...)
			return d, true
		}
	}
	return nil, false
}

// IsFinalized reports the lifecycle condition: no inputs, no
// outputs, and no pending connection/reset counters.
func (f *Filter) IsFinalized() bool {
	f.mu.Lock()
	noInputs := len(f.inputs) == 0
	noOutputs := len(f.outputs) == 0
	f.mu.Unlock()
	return noInputs && noOutputs &&
		f.streamResetPending.Load() == 0 &&
		f.outConnectPending.Load() == 0
}

func (f *Filter) Removed() bool        { return f.removed.Load() }
func (f *Filter) MarkRemoved()         { f.removed.Store(true) }
func (f *Filter) NotConnected() bool   { return f.notConnected.Load() }
func (f *Filter) MarkNotConnected()    { f.notConnected.Store(true) }

func (f *Filter) WouldBlockCount() int32 { return f.wouldBlock.Load() }

// IncWouldBlock/DecWouldBlock/HasUnblockedOutput/RepostProcess
// implement flow.FilterHandle.
func (f *Filter) IncWouldBlock() { f.wouldBlock.Add(1) }
func (f *Filter) DecWouldBlock() {
	if f.wouldBlock.Add(-1) < 0 {
		f.wouldBlock.Store(0)
	}
}

// HasUnblockedOutput implements the invariant check: at least
// one output can accept data when would_block + not-connected + eos
// outputs is fewer than the total.
func (f *Filter) HasUnblockedOutput() bool {
	outs := f.OutputPIDs()
	if len(outs) == 0 {
		return false
	}
	blocked := int(f.wouldBlock.Load())
	unusable := 0
	for _, p := range outs {
		if p.NumDestinations() == 0 || p.HasSeenEOS() || p.Removed() {
			unusable++
		}
	}
	return blocked+unusable < len(outs)
}

func (f *Filter) RepostProcess() {
	if f.RepostFn != nil {
		f.RepostFn()
	}
}

// StreamResetPending / PendingPackets / OutConnectPending expose the
// "atomic counters" design note's pending fields that other
// packages (notably the orchestrator's delete-instance task) must
// observe before tearing down state.
func (f *Filter) StreamResetPending() int32 { return f.streamResetPending.Load() }
func (f *Filter) BeginStreamReset()         { f.streamResetPending.Add(1) }
func (f *Filter) EndStreamReset()           { f.streamResetPending.Add(-1) }

func (f *Filter) PendingPackets() int32 { return f.pendingPackets.Load() }
func (f *Filter) AddPendingPackets(n int32) { f.pendingPackets.Add(n) }

func (f *Filter) BeginOutConnect() { f.outConnectPending.Add(1) }
func (f *Filter) EndOutConnect()   { f.outConnectPending.Add(-1) }

// IsInParentChain walks backward from f via each input instance's
// pid.Producer, reporting whether candidate appears anywhere in that
// chain. Used for cycle detection: a connect that would create one is
// rejected.
func (f *Filter) IsInParentChain(candidate *Filter) bool {
	seen := make(map[string]bool)
	return walkParents(f, candidate, seen)
}

func walkParents(f, candidate *Filter, seen map[string]bool) bool {
	if f == nil || seen[f.IDStr] {
		return false
	}
	seen[f.IDStr] = true
	for _, inst := range f.InputInstances() {
		producer, ok := inst.PID.Producer.(*Filter)
		if !ok || producer == nil {
			continue
		}
		if producer == candidate {
			return true
		}
		if walkParents(producer, candidate, seen) {
			return true
		}
	}
	return false
}
