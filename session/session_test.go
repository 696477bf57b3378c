package session

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamgraph/filtercore/config"
	"github.com/streamgraph/filtercore/filter"
)

func TestSessionStartInstantiatesConfiguredFilters(t *testing.T) {
	reg := &filter.Registry{Name: "fileout"}
	reg.Clone = func() *filter.Filter { return filter.New(reg) }

	cfg := config.SessionConfig{
		Global: config.Global{ArgSeparator: ":"},
		Filter: map[string]*config.FilterSection{
			"out1": {Registry: "fileout", Args: "path=/tmp/out.ts:bitrate=5000"},
		},
	}

	s := New(cfg)
	s.RegisterRegistry(reg)
	require.NoError(t, s.Start())
	defer s.Close()

	filters := s.Orchestrator().Filters()
	require.Len(t, filters, 1)
	assert.Equal(t, "fileout", filters[0].Registry.Name)
	assert.Contains(t, filters[0].Args, "path")
	assert.Contains(t, filters[0].Args, "bitrate")
}

func TestSessionStartUnknownRegistryFails(t *testing.T) {
	cfg := config.SessionConfig{
		Filter: map[string]*config.FilterSection{
			"out1": {Registry: "nope"},
		},
	}
	s := New(cfg)
	err := s.Start()
	require.Error(t, err)
	var target *ErrUnknownRegistry
	assert.ErrorAs(t, err, &target)
}

func TestSessionMetricsOptIn(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := New(config.SessionConfig{}, WithMetricsRegisterer(reg))
	defer s.Close()
	require.NotNil(t, s.Metrics())
	assert.Equal(t, 0, s.QueueDepth())
}

func TestSessionWithoutMetricsIsNoop(t *testing.T) {
	s := New(config.SessionConfig{})
	defer s.Close()
	assert.Nil(t, s.Metrics())
	assert.Equal(t, 0, s.QueueDepth())
}

func TestSessionNewOutputPIDPostsInit(t *testing.T) {
	reg := &filter.Registry{Name: "demux"}
	reg.Clone = func() *filter.Filter { return filter.New(reg) }
	f := reg.Clone()

	s := New(config.SessionConfig{})
	defer s.Close()
	s.Orchestrator().AddFilter(f)

	p := s.NewOutputPID(f)
	require.NotNil(t, p)
	assert.Equal(t, "PID0", p.Name)
	assert.Eventually(t, f.NotConnected, time.Second, time.Millisecond,
		"the posted init task runs and, finding no destination, marks f not connected")
}
