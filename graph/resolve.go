package graph

import (
	"container/heap"
	"errors"
	"strings"
)

// ErrNoPath is returned when no chain of registries connects the
// source PID to the target filter under the given constraints.
var ErrNoPath = errors.New("graph: no resolvable path")

// Request parameterizes one resolution run ("Resolution for
// a given (source pid, target filter)").
type Request struct {
	SourceRegistry string
	SourceBundle   int // the bundle pid_caps_match selected for this pid's producer
	TargetRegistry string

	Blacklist        map[string]bool // source filter's blacklist
	AdapterBlacklist map[string]bool // this pid's adapter blacklist

	ReconfigurableOnly bool
	MaxChainLen        int
	PreferredRegistry  string // e.g. "gfreg=foo", matched as a substring against registry names
}

// Step is one hop of a resolved chain: instantiate Registry, binding
// it via its DstBundle-th input bundle.
type Step struct {
	Registry  string
	SrcBundle int
	DstBundle int
}

// Resolve finds the chain of registries from req.SourceRegistry's
// output to req.TargetRegistry's input, steps 1-6.
func (g *Graph) Resolve(req Request) ([]Step, error) {
	snap := g.Snapshot()
	maxHops := req.MaxChainLen
	if maxHops <= 0 {
		maxHops = len(snap.registries)
	}

	candidates := candidateSet(snap.registries, req)
	if !candidates[req.SourceRegistry] {
		candidates[req.SourceRegistry] = true
	}
	if !candidates[req.TargetRegistry] {
		candidates[req.TargetRegistry] = true
	}

	edgesInto := make(map[string][]Edge)
	for _, e := range snap.edges {
		if !candidates[e.From] || !candidates[e.To] {
			continue
		}
		edgesInto[e.To] = append(edgesInto[e.To], e)
	}

	enabled := markEnabledEdges(edgesInto, req.TargetRegistry, req.SourceRegistry, maxHops)
	edgesFrom := make(map[string][]Edge)
	for _, e := range enabled {
		if e.From == req.SourceRegistry && e.SrcBundle != req.SourceBundle {
			continue // step 4: only the pid's actually-selected bundle may leave the source
		}
		edgesFrom[e.From] = append(edgesFrom[e.From], e)
	}

	prev, prevEdge, ok := dijkstra(snap.registries, edgesFrom, req.SourceRegistry, req.TargetRegistry, req.PreferredRegistry)
	if !ok {
		return nil, ErrNoPath
	}

	var chain []Step
	cur := req.TargetRegistry
	for cur != req.SourceRegistry {
		e, ok := prevEdge[cur]
		if !ok {
			return nil, ErrNoPath
		}
		chain = append([]Step{{Registry: cur, SrcBundle: e.SrcBundle, DstBundle: e.DstBundle}}, chain...)
		cur = prev[cur]
	}
	return chain, nil
}

// candidateSet applies step 1's eligibility rules.
func candidateSet(registries map[string]*Registry, req Request) map[string]bool {
	out := make(map[string]bool, len(registries))
	for name, r := range registries {
		if !r.HasConfigurePID {
			continue
		}
		if req.Blacklist[name] || req.AdapterBlacklist[name] {
			continue
		}
		if r.ExplicitOnly && name != req.SourceRegistry && name != req.TargetRegistry {
			continue
		}
		if req.ReconfigurableOnly && !r.HasReconfigureOutput {
			continue
		}
		out[name] = true
	}
	return out
}

// markEnabledEdges walks backward from target, enabling an edge only
// when its destination is reachable within maxHops AND stream-type
// compatibility holds along the accumulated path (step 3).
func markEnabledEdges(edgesInto map[string][]Edge, target, source string, maxHops int) []Edge {
	type state struct {
		hops   int
		stream StreamType
	}
	visited := map[string]state{target: {0, StreamUnspecified}}
	queue := []string{target}
	var enabled []Edge

	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		st := visited[v]
		if st.hops >= maxHops {
			continue
		}
		for _, e := range edgesInto[v] {
			if !StreamCompatible(e.SrcStream, st.stream) {
				continue
			}
			enabled = append(enabled, e)
			next := st.stream
			if next == StreamUnspecified || next == StreamAmbiguous {
				next = e.SrcStream
			}
			if prior, ok := visited[e.From]; !ok || st.hops+1 < prior.hops {
				visited[e.From] = state{hops: st.hops + 1, stream: next}
				queue = append(queue, e.From)
			}
		}
	}
	return enabled
}

// dijkstra runs unit-weight (zero for hide-weight registries)
// shortest path search with the tie-break rules of step 5.
func dijkstra(registries map[string]*Registry, edgesFrom map[string][]Edge, source, target, preferred string) (prev map[string]string, prevEdge map[string]Edge, ok bool) {
	dist := map[string]*pqItem{}
	pq := &priorityQueue{}
	heap.Init(pq)

	start := &pqItem{registry: source, dist: 0}
	dist[source] = start
	heap.Push(pq, start)

	prev = map[string]string{}
	prevEdge = map[string]Edge{}
	visited := map[string]bool{}

	for pq.Len() > 0 {
		item := heap.Pop(pq).(*pqItem)
		if visited[item.registry] {
			continue
		}
		visited[item.registry] = true
		if item.registry == target {
			return prev, prevEdge, true
		}
		for _, e := range edgesFrom[item.registry] {
			if visited[e.To] {
				continue
			}
			weight := 1
			if to, ok := registries[e.To]; ok && to.HideWeight {
				weight = 0
			}
			nd := item.dist + weight
			nh := item.preferredHops
			if preferred != "" && strings.Contains(preferred, e.To) {
				nh++
			}
			np := item.prioritySum + e.Priority

			cur, exists := dist[e.To]
			cand := &pqItem{registry: e.To, dist: nd, preferredHops: nh, prioritySum: np}
			if !exists || less(cand, cur) {
				dist[e.To] = cand
				prev[e.To] = item.registry
				prevEdge[e.To] = e
				heap.Push(pq, cand)
			}
		}
	}
	return nil, nil, false
}

func less(a, b *pqItem) bool {
	if a.dist != b.dist {
		return a.dist < b.dist
	}
	if a.preferredHops != b.preferredHops {
		return a.preferredHops > b.preferredHops
	}
	return a.prioritySum < b.prioritySum
}
