// Package graph implements C3: the capability graph over every known
// filter registry, and Dijkstra-based resolution of a path from a
// source PID to a target filter.
//
// Grounded on gravwell's processor registry dispatch
// (ingest/processors.go's name-to-constructor table, generalized from
// a flat lookup to a weighted graph) and on muxer.go's tag-resolution
// bookkeeping for the notion of a "resolved" destination.
package graph

import "github.com/streamgraph/filtercore/caps"

// Registry describes one loadable filter implementation as a graph
// node. Name must be unique within a Graph.
type Registry struct {
	Name string
	Caps []caps.Capability

	// HasConfigurePID reports whether this registry can accept an
	// input PID at all (step 1).
	HasConfigurePID bool
	// HasReconfigureOutput gates candidacy when a resolution run is
	// restricted to reconfigurable-only registries (step 1).
	HasReconfigureOutput bool
	// ExplicitOnly registries are only usable as the resolution's
	// explicit source or target, never as an intermediate hop.
	ExplicitOnly bool
	// HideWeight registries contribute zero edge weight, letting
	// Dijkstra treat them as free passthroughs (step 5).
	HideWeight bool

	// OutputStreamType resolves the stream type produced by the given
	// output bundle index, per edge annotation.
	OutputStreamType func(bundleIdx int) StreamType
}

func (r *Registry) streamTypeFor(bundleIdx int) StreamType {
	if r.OutputStreamType == nil {
		return StreamUnspecified
	}
	return r.OutputStreamType(bundleIdx)
}

// Edge is A -> B: A's output bundle srcBundle can feed B's input
// bundle dstBundle, with the match score from caps.CapsToCapsMatch as
// its weight (Edge).
type Edge struct {
	From, To   string
	SrcBundle  int
	DstBundle  int
	Weight     int
	Priority   int
	LoadedOnly bool
	SrcStream  StreamType
}
