package filter

import (
	"sync"
	"time"

	"github.com/streamgraph/filtercore/caps"
	"github.com/streamgraph/filtercore/graph"
	"github.com/streamgraph/filtercore/internal/lock"
	"github.com/streamgraph/filtercore/internal/task"
	"github.com/streamgraph/filtercore/pid"
	"github.com/streamgraph/filtercore/prop"
)

// deleteInstanceBackoff is the "requeues itself with a 50 µs
// backoff" for the delete-instance task.
const deleteInstanceBackoff = 50 * time.Microsecond

// Orchestrator runs C4's task transitions (init, connect, reconfigure,
// detach, swap, disconnect, delete-instance) over the set of live
// filters, using package graph for chain resolution when a direct
// connection isn't possible. Grounded on ingest/muxer.go's
// IngestMuxer, which plays the analogous "session object driving
// per-connection state machines over a shared task queue" role.
type Orchestrator struct {
	mu      lock.RWMutex
	filters map[string]*Filter

	g *graph.Graph
	q *task.Queue

	MaxResolveChainLen int
	PreferredRegistry  string

	// SourceIDExcluded lets the caller (the public session API,
	// outside this core) exclude candidate filters by source-id
	// filters supplied on the command line, without this package
	// needing to know anything about arg syntax (init:
	// "excluded by source-id filters"; arg parsing is an external
	// collaborator per ).
	SourceIDExcluded func(candidate *Filter, p *pid.PID) bool

	errMu          sync.Mutex
	lastConnectErr error
}

func NewOrchestrator(g *graph.Graph, q *task.Queue) *Orchestrator {
	return &Orchestrator{
		filters:            make(map[string]*Filter),
		g:                  g,
		q:                  q,
		MaxResolveChainLen: 8,
	}
}

func (o *Orchestrator) AddFilter(f *Filter) {
	f.RepostFn = func() {
		o.q.PostNow(func() {
			if f.Registry.Callbacks.Process != nil {
				f.Registry.Callbacks.Process(f)
			}
		})
	}
	o.mu.Lock()
	o.filters[f.IDStr] = f
	o.mu.Unlock()
	o.g.AddRegistry(f.Registry.ToGraphRegistry())
}

func (o *Orchestrator) RemoveFilter(f *Filter) {
	o.mu.Lock()
	delete(o.filters, f.IDStr)
	o.mu.Unlock()
}

func (o *Orchestrator) Filters() []*Filter {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]*Filter, 0, len(o.filters))
	for _, f := range o.filters {
		out = append(out, f)
	}
	return out
}

func (o *Orchestrator) LastConnectError() error {
	o.errMu.Lock()
	defer o.errMu.Unlock()
	return o.lastConnectErr
}

func (o *Orchestrator) recordConnectErr(err error) {
	o.errMu.Lock()
	o.lastConnectErr = err
	o.errMu.Unlock()
}

// PostInit schedules an Init task for p: a filter creating a new
// output PID always triggers one.
func (o *Orchestrator) PostInit(p *pid.PID) {
	o.q.PostNow(func() { o.Init(p) })
}

func pidLookup(p *pid.PID) caps.ValueLookup {
	return func(k prop.Key) (prop.PropValue, bool) { return p.CurrentMap().Get(k) }
}

// InvalidateStreamType implements the "bundle loose
// auto-disconnect on stream-type swap" supplement. A producer's
// output bundle's stream type is resolved once, at connect time;
// graph.StreamCompatible is never re-checked against live traffic.
// When a source re-probes (e.g. after a registry swap) and its
// selected bundle now resolves to a different StreamType than the one
// p's current destinations were matched under, those destinations are
// no longer known-compatible, so they are dropped and p is
// re-initialized from scratch rather than left attached on a stale
// match. Reports whether an invalidation actually happened.
func (o *Orchestrator) InvalidateStreamType(p *pid.PID, newType graph.StreamType) bool {
	if !p.SetResolvedStreamType(int32(newType)) {
		return false
	}
	for _, inst := range p.Destinations() {
		if owner, ok := inst.Owner.(*Filter); ok {
			o.Disconnect(owner, p)
		}
	}
	o.PostInit(p)
	return true
}

// Init implements the init task.
func (o *Orchestrator) Init(p *pid.PID) {
	producer, _ := p.Producer.(*Filter)
	if producer != nil && producer.Registry.OutputStreamType != nil {
		bundle := selectSourceBundle(producer.Registry, p)
		if o.InvalidateStreamType(p, producer.Registry.OutputStreamType(bundle)) {
			return
		}
	}
	lookup := pidLookup(p)
	forcedCap, hasForced := p.ForcedCap()

	var directMatches []*Filter
	for _, f := range o.Filters() {
		if !o.initCandidateOK(f, producer, p) {
			continue
		}
		res := caps.PidCapsMatch(f.Registry.Caps, lookup, -1, forcedCap, hasForced)
		if res.Matched {
			if f.Registry.MaxInputs > 0 && f.NumInputs() >= f.Registry.MaxInputs && f.Registry.Clone != nil {
				// Clonable filter already at its input limit: connect a clone.
				clone := f.Registry.Clone()
				clone.ClonedFrom = f
				o.AddFilter(clone)
				f = clone
			}
			directMatches = append(directMatches, f)
		}
	}
	for _, f := range directMatches {
		o.PostConnect(f, p)
	}
	if len(directMatches) > 0 {
		return
	}

	if chain, ok := o.resolveChain(producer, p); ok {
		o.instantiateChain(p, chain)
		return
	}

	// No direct match and no resolvable chain. If producer is a
	// source filter with nothing downstream yet, registry-swap probing
	// is the caller's job ; the orchestrator only surfaces
	// the failure so a session-level probe loop can retry.
	if producer != nil {
		producer.MarkNotConnected()
	}
	o.recordConnectErr(graph.ErrNoPath)
}

func (o *Orchestrator) initCandidateOK(f, producer *Filter, p *pid.PID) bool {
	if f.Removed() {
		return false
	}
	if producer != nil && f.Registry.Name == producer.Registry.Name {
		return false // re-entrant: same registry as pid's filter
	}
	if producer != nil && producer.IsInParentChain(f) {
		return false // would create a cycle
	}
	if producer != nil && producer.Blacklist[f.Registry.Name] {
		return false
	}
	if f.Registry.MaxInputs > 0 && f.NumInputs() >= f.Registry.MaxInputs && !f.Registry.Clonable {
		return false
	}
	if o.SourceIDExcluded != nil && o.SourceIDExcluded(f, p) {
		return false
	}
	return true
}

// resolveChain runs package graph's Dijkstra search for an
// intermediate chain when no live filter directly accepts p. This is
// the init task's second pass, tried only after a direct match fails.
func (o *Orchestrator) resolveChain(producer *Filter, p *pid.PID) ([]graph.Step, bool) {
	if producer == nil {
		return nil, false
	}
	target := pickResolutionTarget(o.Filters(), producer)
	if target == "" {
		return nil, false
	}
	srcBundle := selectSourceBundle(producer.Registry, p)
	req := graph.Request{
		SourceRegistry:     producer.Registry.Name,
		SourceBundle:       srcBundle,
		TargetRegistry:     target,
		Blacklist:          producer.Blacklist,
		AdapterBlacklist:   p.AdapterBlacklist,
		MaxChainLen:        o.MaxResolveChainLen,
		PreferredRegistry:  o.PreferredRegistry,
	}
	chain, err := o.g.Resolve(req)
	if err != nil {
		o.recordConnectErr(err)
		return nil, false
	}
	return chain, true
}

// pickResolutionTarget picks a registry to resolve toward: the first
// filter in Filters() order (which is unspecified) that is neither the
// producer nor of the producer's registry and that has a ConfigurePID
// callback. It does not check whether the producer already feeds that
// filter or how many inputs it has.
func pickResolutionTarget(filters []*Filter, producer *Filter) string {
	for _, f := range filters {
		if f == producer || f.Registry.Name == producer.Registry.Name {
			continue
		}
		if !f.Registry.hasConfigurePID() {
			continue
		}
		return f.Registry.Name
	}
	return ""
}

// selectSourceBundle finds the producer registry's OUTPUT bundle
// whose caps are satisfied by p's live property values, a simplified
// stand-in for pid_caps_match's bundle selection applied to the
// producer's own declared outputs.
func selectSourceBundle(registry *Registry, p *pid.PID) int {
	bundles := caps.PartitionBundles(registry.Caps)
	for bi, b := range bundles {
		ok := true
		for _, c := range b {
			if !c.Flags.Has(caps.FlagOutput) || c.Flags.Has(caps.FlagOptional) {
				continue
			}
			v, present := p.CurrentMap().Get(c.Key)
			if c.Flags.Has(caps.FlagExcluded) {
				if present && v.Equal(c.Value) {
					ok = false
					break
				}
				continue
			}
			if !present || !v.Equal(c.Value) {
				ok = false
				break
			}
		}
		if ok {
			return bi
		}
	}
	return 0
}

// instantiateChain clones a new Filter for the first resolved registry
// step, sets its destination hint to the next step's registry, and
// posts a connect from source to it. Later steps are not instantiated
// here, and existing filters are not reused.
func (o *Orchestrator) instantiateChain(source *pid.PID, chain []graph.Step) {
	// Only the first hop connects directly to the caller-supplied
	// source pid; downstream hops arrive through each instantiated
	// filter's own new_output_pid calls triggering fresh Init tasks
	// once it actually produces output, per control flow
	// ("subsequent property changes... trigger reconfigure tasks").
	if len(chain) == 0 {
		return
	}
	reg := o.registryByName(chain[0].Registry)
	if reg == nil || reg.Clone == nil {
		return
	}
	nf := reg.Clone()
	if len(chain) > 1 {
		nf.DestinationHint = chain[1].Registry
	}
	o.AddFilter(nf)
	o.PostConnect(nf, source)
}

func (o *Orchestrator) registryByName(name string) *Registry {
	for _, f := range o.Filters() {
		if f.Registry.Name == name {
			return f.Registry
		}
	}
	return nil
}

// PostConnect schedules a connect task.
func (o *Orchestrator) PostConnect(f *Filter, p *pid.PID) {
	f.BeginOutConnect()
	o.q.PostNow(func() {
		defer f.EndOutConnect()
		o.Connect(f, p)
	})
}

// Connect implements the connect task.
func (o *Orchestrator) Connect(f *Filter, p *pid.PID) {
	inst, reused := f.TakeDetached(p)
	if !reused {
		inst = pid.NewInstance(p, f)
	}

	res := ConfigureOK
	if f.Registry.Callbacks.ConfigurePID != nil {
		res = f.Registry.Callbacks.ConfigurePID(f, inst, false)
	}

	switch res {
	case ConfigureOK:
		f.addInput(inst)
		p.AddDestination(inst)
	case ConfigureRequiresNewInstance:
		if f.Registry.Clone == nil {
			o.recordConnectErr(errOutOfMem)
			return
		}
		clone := f.Registry.Clone()
		clone.ClonedFrom = f
		o.AddFilter(clone)
		o.PostConnect(clone, p)
	default:
		if f.NumOutputPIDs() > 0 {
			o.blacklistRegistry(producerOf(p), p, f.Registry.Name)
			for _, other := range f.InputInstances() {
				o.Disconnect(f, other.PID)
			}
			o.PostInit(p)
		} else {
			o.recordConnectErr(errSinkRejected)
		}
	}
}

// Reconfigure implements the reconfigure task: same callback
// as connect (is_remove=false) but against the already-attached
// instance.
func (o *Orchestrator) Reconfigure(f *Filter, p *pid.PID) {
	inst := findInstance(f, p)
	if inst == nil {
		return
	}
	res := ConfigureOK
	if f.Registry.Callbacks.ConfigurePID != nil {
		res = f.Registry.Callbacks.ConfigurePID(f, inst, false)
	}
	if res == ConfigureOK {
		return
	}
	o.negotiateCaps(f, p)
}

// negotiateCaps implements the "caps renegotiation": publish
// the desired map as caps_negotiate, blacklist the current adaptor on
// the pid, bump the renegotiation counter, and disconnect — then
// immediately attempt a reconfigurable-only resolution in place of
// "the source filter's next process cycle" , since this
// core has no external process loop to defer to.
func (o *Orchestrator) negotiateCaps(f *Filter, p *pid.PID) {
	p.CapsNegotiate = p.CurrentMap()
	if p.AdapterBlacklist == nil {
		p.AdapterBlacklist = make(map[string]bool)
	}
	p.AdapterBlacklist[f.Registry.Name] = true
	p.RenegotiateCounter.Add(1)
	o.Disconnect(f, p)

	producer, _ := p.Producer.(*Filter)
	if producer == nil {
		return
	}
	target := pickResolutionTarget(o.Filters(), producer)
	if target == "" {
		return
	}
	req := graph.Request{
		SourceRegistry:     producer.Registry.Name,
		SourceBundle:       selectSourceBundle(producer.Registry, p),
		TargetRegistry:     target,
		Blacklist:          producer.Blacklist,
		AdapterBlacklist:   p.AdapterBlacklist,
		ReconfigurableOnly: true,
		MaxChainLen:        o.MaxResolveChainLen,
		PreferredRegistry:  o.PreferredRegistry,
	}
	if chain, err := o.g.Resolve(req); err == nil {
		o.instantiateChain(p, chain)
	} else {
		o.recordConnectErr(err)
	}
}

// Disconnect implements the disconnect task.
func (o *Orchestrator) Disconnect(f *Filter, p *pid.PID) {
	inst := findInstance(f, p)
	if inst == nil {
		return
	}
	if f.Registry.Callbacks.ConfigurePID != nil {
		f.Registry.Callbacks.ConfigurePID(f, inst, true)
	}
	f.removeInput(inst)
	p.RemoveDestination(inst)
	o.postDeleteInstance(f, p, inst)
	if f.NumInputs() == 0 && !f.Registry.Sticky {
		f.MarkRemoved()
	}
}

// Detach implements the detach task: parks the instance for a
// later swap rather than tearing it fully down.
func (o *Orchestrator) Detach(f *Filter, p *pid.PID) {
	inst := findInstance(f, p)
	if inst == nil {
		return
	}
	f.removeInput(inst)
	inst.DetachPending.Store(true)
	f.parkDetached(inst)
}

// Swap implements the swap task: replaces oldInst
// with newInst in oldInst.PID's destination list, transferring
// queued state, then schedules a detach on the old pid so its origin
// filter can be torn down.
func (o *Orchestrator) Swap(oldInst, newInst *pid.Instance) {
	p := oldInst.PID
	if p == newInst.PID {
		// Source and destination instances refer to the same pid:
		// nothing to transfer (boundary behavior).
		p.RemoveDestination(oldInst)
		return
	}
	p.RemoveDestination(oldInst)
	p.AddDestination(newInst)
	oldInst.TransferState(newInst)

	if owner, ok := oldInst.Owner.(*Filter); ok {
		o.q.PostNow(func() { o.Detach(owner, p) })
	}
}

// postDeleteInstance implements the delete-instance task: it
// only actually tears down once the pid has no outstanding shared
// packets and no stream-reset pending, else it requeues itself with a
// 50 µs backoff ("Suspension/blocking points").
func (o *Orchestrator) postDeleteInstance(f *Filter, p *pid.PID, inst *pid.Instance) {
	var attempt task.Func
	attempt = func() {
		if inst.QueueLen() > 0 || f.PendingPackets() > 0 || f.StreamResetPending() > 0 {
			o.q.Post(attempt, deleteInstanceBackoff)
			return
		}
		// Instance is fully drained; nothing further to release here
		// since pid.Instance carries no separate heap allocation this
		// core must free explicitly (Go's GC reclaims it once
		// unreferenced).
	}
	o.q.PostNow(attempt)
}

// blacklistRegistry implements the failure handling and the
// clone-back-reference-chain supplement: a clone's blacklist
// additions are also applied to the filter it was cloned from, so a
// future init doesn't immediately re-clone into the same dead end.
func (o *Orchestrator) blacklistRegistry(srcFilter *Filter, p *pid.PID, registryName string) {
	if srcFilter == nil {
		return
	}
	if srcFilter.Blacklist == nil {
		srcFilter.Blacklist = make(map[string]bool)
	}
	srcFilter.Blacklist[registryName] = true
	for cur := srcFilter.ClonedFrom; cur != nil; cur = cur.ClonedFrom {
		if cur.Blacklist == nil {
			cur.Blacklist = make(map[string]bool)
		}
		cur.Blacklist[registryName] = true
	}
}

// DependencyReconnect implements the dependency handling:
// when p carries a dependency_id property, find sibling output pids
// of the same producer whose id/esid matches, and if they feed a
// different decoder filter than p, reroute them to p's decoder via a
// disconnect+reconnect so both streams land on the same decoder.
func (o *Orchestrator) DependencyReconnect(p *pid.PID, dependencyKey, idKey prop.Key) {
	producer, ok := p.Producer.(*Filter)
	if !ok || producer == nil {
		return
	}
	depVal, ok := p.CurrentMap().Get(dependencyKey)
	if !ok {
		return
	}
	var myDecoder *Filter
	for _, d := range p.Destinations() {
		if d.IsDecoderInput {
			myDecoder, _ = d.Owner.(*Filter)
			break
		}
	}
	if myDecoder == nil {
		return
	}
	for _, sibling := range producer.OutputPIDs() {
		if sibling == p {
			continue
		}
		idVal, ok := sibling.CurrentMap().Get(idKey)
		if !ok || !idVal.Equal(depVal) {
			continue
		}
		for _, d := range sibling.Destinations() {
			if !d.IsDecoderInput {
				continue
			}
			owner, ok := d.Owner.(*Filter)
			if !ok || owner == myDecoder {
				continue
			}
			o.Disconnect(owner, sibling)
			o.PostConnect(myDecoder, sibling)
		}
	}
}

func findInstance(f *Filter, p *pid.PID) *pid.Instance {
	for _, inst := range f.InputInstances() {
		if inst.PID == p {
			return inst
		}
	}
	return nil
}

func producerOf(p *pid.PID) *Filter {
	f, _ := p.Producer.(*Filter)
	return f
}
