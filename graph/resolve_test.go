package graph_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/streamgraph/filtercore/caps"
	"github.com/streamgraph/filtercore/graph"
	"github.com/streamgraph/filtercore/prop"
)

var codecKey = prop.CodeKeyFromString("CODC")

func reg(name string, out, in []caps.Capability, configurePID bool) *graph.Registry {
	all := append(append([]caps.Capability{}, out...), in...)
	return &graph.Registry{
		Name:            name,
		Caps:            all,
		HasConfigurePID: configurePID,
	}
}

func TestResolveSimpleChain(t *testing.T) {
	g := graph.New()
	g.AddRegistry(reg("src", []caps.Capability{
		{Key: codecKey, Value: prop.StringValue("raw"), Flags: caps.FlagOutput},
	}, nil, false))
	g.AddRegistry(reg("mid", []caps.Capability{
		{Key: codecKey, Value: prop.StringValue("encoded"), Flags: caps.FlagOutput},
	}, []caps.Capability{
		{Key: codecKey, Value: prop.StringValue("raw"), Flags: caps.FlagInput},
	}, true))
	g.AddRegistry(reg("dst", nil, []caps.Capability{
		{Key: codecKey, Value: prop.StringValue("encoded"), Flags: caps.FlagInput},
	}, true))

	chain, err := g.Resolve(graph.Request{
		SourceRegistry: "src",
		SourceBundle:   0,
		TargetRegistry: "dst",
		MaxChainLen:    5,
	})
	assert.NoError(t, err)
	if assert.Len(t, chain, 2) {
		assert.Equal(t, "mid", chain[0].Registry)
		assert.Equal(t, "dst", chain[1].Registry)
	}
}

func TestResolveNoPath(t *testing.T) {
	g := graph.New()
	g.AddRegistry(reg("src", []caps.Capability{
		{Key: codecKey, Value: prop.StringValue("raw"), Flags: caps.FlagOutput},
	}, nil, false))
	g.AddRegistry(reg("dst", nil, []caps.Capability{
		{Key: codecKey, Value: prop.StringValue("encoded"), Flags: caps.FlagInput},
	}, true))

	_, err := g.Resolve(graph.Request{
		SourceRegistry: "src",
		SourceBundle:   0,
		TargetRegistry: "dst",
		MaxChainLen:    5,
	})
	assert.ErrorIs(t, err, graph.ErrNoPath)
}

func TestResolveRespectsBlacklist(t *testing.T) {
	g := graph.New()
	g.AddRegistry(reg("src", []caps.Capability{
		{Key: codecKey, Value: prop.StringValue("raw"), Flags: caps.FlagOutput},
	}, nil, false))
	g.AddRegistry(reg("mid", []caps.Capability{
		{Key: codecKey, Value: prop.StringValue("encoded"), Flags: caps.FlagOutput},
	}, []caps.Capability{
		{Key: codecKey, Value: prop.StringValue("raw"), Flags: caps.FlagInput},
	}, true))
	g.AddRegistry(reg("dst", nil, []caps.Capability{
		{Key: codecKey, Value: prop.StringValue("encoded"), Flags: caps.FlagInput},
	}, true))

	_, err := g.Resolve(graph.Request{
		SourceRegistry: "src",
		SourceBundle:   0,
		TargetRegistry: "dst",
		MaxChainLen:    5,
		Blacklist:      map[string]bool{"mid": true},
	})
	assert.ErrorIs(t, err, graph.ErrNoPath)
}
