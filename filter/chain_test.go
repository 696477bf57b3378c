package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/streamgraph/filtercore/pid"
)

func TestIsInParentChainDetectsIndirectAncestor(t *testing.T) {
	a := New(&Registry{Name: "a"})
	b := New(&Registry{Name: "b"})
	c := New(&Registry{Name: "c"})

	pAB := a.NewOutputPID()
	instAB := pid.NewInstance(pAB, a)
	b.addInput(instAB)

	pBC := b.NewOutputPID()
	instBC := pid.NewInstance(pBC, b)
	c.addInput(instBC)

	assert.True(t, c.IsInParentChain(a), "c's input chain runs c<-b<-a")
	assert.True(t, c.IsInParentChain(b))
	assert.False(t, a.IsInParentChain(c), "the relation is not symmetric")
}

func TestIsInParentChainIgnoresUnrelatedFilter(t *testing.T) {
	a := New(&Registry{Name: "a"})
	b := New(&Registry{Name: "b"})
	other := New(&Registry{Name: "other"})

	pAB := a.NewOutputPID()
	instAB := pid.NewInstance(pAB, a)
	b.addInput(instAB)

	assert.False(t, b.IsInParentChain(other))
}

func TestBlacklistRegistryPropagatesUpCloneChain(t *testing.T) {
	o := &Orchestrator{filters: make(map[string]*Filter)}
	grandparent := New(&Registry{Name: "grandparent"})
	parent := New(&Registry{Name: "parent"})
	parent.ClonedFrom = grandparent
	clone := New(&Registry{Name: "clone"})
	clone.ClonedFrom = parent

	o.blacklistRegistry(clone, nil, "deadend")

	assert.True(t, clone.Blacklist["deadend"])
	assert.True(t, parent.Blacklist["deadend"], "a clone's blacklist addition must propagate to the filter it was cloned from")
	assert.True(t, grandparent.Blacklist["deadend"], "propagation must walk the whole clone chain, not just one hop")
}
