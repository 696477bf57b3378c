package graph

import (
	"sync"

	"github.com/streamgraph/filtercore/caps"
	"golang.org/x/sync/singleflight"
)

// Graph holds the full set of known registries and their derived
// edges ("Session graph cache"): built once, rebuilt lazily
// when registries change, guarded by a lock so resolution calls never
// race a rebuild. Concurrent rebuild triggers collapse via
// singleflight so N callers racing a registry change pay for one
// rebuild, not N.
type Graph struct {
	mu         sync.RWMutex
	registries map[string]*Registry
	edges      []Edge
	dirty      bool

	group singleflight.Group
}

func New() *Graph {
	return &Graph{registries: make(map[string]*Registry), dirty: true}
}

// AddRegistry inserts or replaces a registry and marks the cached edge
// set dirty; the next Snapshot call rebuilds it.
func (g *Graph) AddRegistry(r *Registry) {
	g.mu.Lock()
	g.registries[r.Name] = r
	g.dirty = true
	g.mu.Unlock()
}

func (g *Graph) RemoveRegistry(name string) {
	g.mu.Lock()
	delete(g.registries, name)
	g.dirty = true
	g.mu.Unlock()
}

func (g *Graph) Registry(name string) (*Registry, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	r, ok := g.registries[name]
	return r, ok
}

// snapshot is the immutable view a resolution run searches: the
// registry set plus the derived edge list, both captured under the
// read lock so a concurrent AddRegistry can't be observed half-applied.
type snapshot struct {
	registries map[string]*Registry
	edges      []Edge
}

// Snapshot returns the current edge set, rebuilding it first if any
// registry changed since the last build. Concurrent callers racing a
// rebuild collapse into a single singleflight.Do call.
func (g *Graph) Snapshot() *snapshot {
	g.mu.RLock()
	if !g.dirty {
		snap := &snapshot{registries: copyRegistries(g.registries), edges: g.edges}
		g.mu.RUnlock()
		return snap
	}
	g.mu.RUnlock()

	v, _, _ := g.group.Do("rebuild", func() (interface{}, error) {
		g.mu.Lock()
		defer g.mu.Unlock()
		if g.dirty {
			g.edges = buildEdges(g.registries)
			g.dirty = false
		}
		return &snapshot{registries: copyRegistries(g.registries), edges: g.edges}, nil
	})
	return v.(*snapshot)
}

// copyRegistries returns a shallow copy of the registry map so a
// snapshot a caller iterates outside the lock can't race a concurrent
// AddRegistry/RemoveRegistry mutating g.registries underneath it.
func copyRegistries(registries map[string]*Registry) map[string]*Registry {
	out := make(map[string]*Registry, len(registries))
	for k, v := range registries {
		out[k] = v
	}
	return out
}

// buildEdges computes every A->B edge where caps_to_caps_match finds a
// nonzero-scoring destination bundle for some source output bundle
// (Edge).
func buildEdges(registries map[string]*Registry) []Edge {
	var edges []Edge
	for fromName, from := range registries {
		fromBundles := caps.PartitionBundles(from.Caps)
		for i := range fromBundles {
			if !bundleHasFlag(fromBundles[i], caps.FlagOutput) {
				continue
			}
			for toName, to := range registries {
				if fromName == toName || !to.HasConfigurePID {
					continue
				}
				bi, score := caps.CapsToCapsMatch(from.Caps, i, to.Caps)
				if score <= 0 || bi < 0 {
					continue
				}
				dstBundles := caps.PartitionBundles(to.Caps)
				edges = append(edges, Edge{
					From:       fromName,
					To:         toName,
					SrcBundle:  i,
					DstBundle:  bi,
					Weight:     score,
					Priority:   bundlePriority(dstBundles[bi]),
					LoadedOnly: bundleHasFlag(dstBundles[bi], caps.FlagLoadedFilter),
					SrcStream:  from.streamTypeFor(i),
				})
			}
		}
	}
	return edges
}

func bundleHasFlag(b caps.Bundle, f caps.Flag) bool {
	for _, c := range b {
		if c.Flags.Has(f) {
			return true
		}
	}
	return false
}

func bundlePriority(b caps.Bundle) int {
	max := 0
	for _, c := range b {
		if c.Priority > max {
			max = c.Priority
		}
	}
	return max
}
