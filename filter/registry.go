// Package filter implements C4: the connection orchestrator that
// executes init/connect/reconfigure/detach/swap/disconnect task
// transitions, plus the Filter and Registry types those transitions
// operate on.
//
// Grounded on gravwell's processor registry and its constructor
// dispatch (ingest/processors/processors.go registers a name to a
// build function the muxer calls per configured preprocessor) and on
// ingest/muxer.go's per-connection task/state bookkeeping
// (uuid-identified entities, a tasks mutex per mutable entity).
package filter

import (
	"github.com/streamgraph/filtercore/caps"
	"github.com/streamgraph/filtercore/graph"
	"github.com/streamgraph/filtercore/pid"
)

// Flags mirrors the registry flags.
type Flags uint8

const (
	FlagExplicitOnly Flags = 1 << iota
	FlagHideWeight
	FlagMainThread
	FlagRegDynamicPids
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

// ConfigureResult is the return contract of a registry's ConfigurePID
// callback.
type ConfigureResult int

const (
	ConfigureOK ConfigureResult = iota
	ConfigureRequiresNewInstance
	ConfigureNotSupported
	ConfigureBadParam
	ConfigureFilterNotFound
	ConfigureOutOfMem
	ConfigureServiceError
)

func (r ConfigureResult) String() string {
	switch r {
	case ConfigureOK:
		return "OK"
	case ConfigureRequiresNewInstance:
		return "REQUIRES_NEW_INSTANCE"
	case ConfigureNotSupported:
		return "NOT_SUPPORTED"
	case ConfigureBadParam:
		return "BAD_PARAM"
	case ConfigureFilterNotFound:
		return "FILTER_NOT_FOUND"
	case ConfigureOutOfMem:
		return "OUT_OF_MEM"
	case ConfigureServiceError:
		return "SERVICE_ERROR"
	}
	return "UNKNOWN"
}

// Callbacks is the vtable-like function table the "Dynamic
// dispatch" design note requires: the core never holds a reference to
// a specific filter type, only to these declared entry points.
type Callbacks struct {
	ConfigurePID      func(f *Filter, inst *pid.Instance, isRemove bool) ConfigureResult
	Process           func(f *Filter) error
	ProcessEvent      func(f *Filter, ev Event) (cancel bool)
	ReconfigureOutput func(f *Filter, p *pid.PID) error
}

// Registry describes one loadable filter implementation.
// It also satisfies graph.Registry's node shape, via ToGraphRegistry,
// for the capability-graph search in package graph.
type Registry struct {
	Name      string
	Flags     Flags
	Priority  int
	Caps      []caps.Capability
	Callbacks Callbacks

	// MaxInputs caps concurrent input PID-instances; 0 means
	// unlimited. Exceeding it without Clonable set skips this
	// registry as an init candidate (init task).
	MaxInputs int
	Clonable  bool
	// Sticky filters are not torn down when they lose their last
	// input (disconnect task's "if the filter loses its
	// last input and is not sticky, mark it removed").
	Sticky bool

	// OutputStreamType resolves the stream type produced by a given
	// output bundle index (edge annotation).
	OutputStreamType func(bundleIdx int) graph.StreamType

	// Clone builds a fresh Filter instance sharing this Registry,
	// used by the orchestrator when a registry is clonable or a
	// configure_pid call returns REQUIRES_NEW_INSTANCE.
	Clone func() *Filter
}

func (r *Registry) hasConfigurePID() bool { return r.Callbacks.ConfigurePID != nil }
func (r *Registry) hasReconfigureOutput() bool { return r.Callbacks.ReconfigureOutput != nil }

// ToGraphRegistry adapts this Registry to the shape package graph
// searches over (Node).
func (r *Registry) ToGraphRegistry() *graph.Registry {
	return &graph.Registry{
		Name:                 r.Name,
		Caps:                 r.Caps,
		HasConfigurePID:      r.hasConfigurePID(),
		HasReconfigureOutput: r.hasReconfigureOutput(),
		ExplicitOnly:         r.Flags.Has(FlagExplicitOnly),
		HideWeight:           r.Flags.Has(FlagHideWeight),
		OutputStreamType:     r.OutputStreamType,
	}
}
