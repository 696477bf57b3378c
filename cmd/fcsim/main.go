// Command fcsim is a smoke-test harness for this module: it wires a
// session, registers two toy filter registries (a source that
// produces one video PID and a sink that accepts anything video), and
// prints the resulting connection and flow decisions. It is not a
// user-facing CLI — it plays the role of gravwell's small example
// mains under ingesters/test, demonstrating the library rather than
// shipping a product.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/streamgraph/filtercore/caps"
	"github.com/streamgraph/filtercore/config"
	"github.com/streamgraph/filtercore/fclog"
	"github.com/streamgraph/filtercore/filter"
	"github.com/streamgraph/filtercore/flow"
	"github.com/streamgraph/filtercore/packet"
	"github.com/streamgraph/filtercore/pid"
	"github.com/streamgraph/filtercore/prop"
	"github.com/streamgraph/filtercore/session"
)

var streamTypeKey = prop.CodeKeyFromString("STYP")

func main() {
	confPath := flag.String("config", "", "path to a session config file (optional; a built-in demo config is used if empty)")
	verbose := flag.Bool("v", false, "enable info-level logging")
	flag.Parse()

	lvl := fclog.Warn
	if *verbose {
		lvl = fclog.Info
	}
	logger := fclog.New(os.Stdout, lvl)

	cfg := config.SessionConfig{
		Global: config.Global{ArgSeparator: ":"},
		Filter: map[string]*config.FilterSection{
			"src": {Registry: "demosrc"},
			"out": {Registry: "demosink"},
		},
	}
	if *confPath != "" {
		if err := config.LoadConfigFile(&cfg, *confPath); err != nil {
			fmt.Fprintf(os.Stderr, "fcsim: loading config: %v\n", err)
			os.Exit(1)
		}
	}

	s := session.New(cfg, session.WithLogger(logger))
	defer s.Close()

	s.RegisterRegistry(sourceRegistry())
	s.RegisterRegistry(sinkRegistry())
	if err := s.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "fcsim: %v\n", err)
		os.Exit(1)
	}

	var source *filter.Filter
	for _, f := range s.Orchestrator().Filters() {
		if f.Registry.Name == "demosrc" {
			source = f
		}
	}
	if source == nil {
		fmt.Fprintln(os.Stderr, "fcsim: demosrc filter did not register")
		os.Exit(1)
	}

	p := s.NewOutputPID(source)
	p.SetProperty(pid.RoleOutput, streamTypeKey, prop.StringValue("video"), false)

	// Give the scheduler's workers a moment to drain the posted init
	// and connect tasks before inspecting the result.
	time.Sleep(20 * time.Millisecond)

	fmt.Printf("pid %s connected to %d destination(s)\n", p.Name, p.NumDestinations())
	if err := s.Orchestrator().LastConnectError(); err != nil {
		fmt.Printf("last connect error: %v\n", err)
	}

	simulateFlow(p)
}

// sourceRegistry is a minimal producer with one output bundle
// declaring a "video" stream type.
func sourceRegistry() *filter.Registry {
	reg := &filter.Registry{
		Name:      "demosrc",
		MaxInputs: 0,
		Caps: []caps.Capability{
			{Key: streamTypeKey, Value: prop.StringValue("video"), Flags: caps.FlagOutput},
		},
	}
	reg.Clone = func() *filter.Filter { return filter.New(reg) }
	return reg
}

// sinkRegistry accepts any video-typed input and always reports a
// successful configure_pid.
func sinkRegistry() *filter.Registry {
	reg := &filter.Registry{
		Name: "demosink",
		Caps: []caps.Capability{
			{Key: streamTypeKey, Value: prop.StringValue("video"), Flags: caps.FlagInput},
		},
		Callbacks: filter.Callbacks{
			ConfigurePID: func(f *filter.Filter, inst *pid.Instance, isRemove bool) filter.ConfigureResult {
				return filter.ConfigureOK
			},
		},
	}
	reg.Clone = func() *filter.Filter { return filter.New(reg) }
	return reg
}

// simulateFlow pushes a handful of packets through p's destinations to
// print the flow controller's buffer aggregates and would-block state,
// demonstrating package flow's enqueue/dequeue accounting.
func simulateFlow(p *pid.PID) {
	dests := p.Destinations()
	if len(dests) == 0 {
		return
	}
	const pktBytes = 1400
	start := time.Now()
	var totalBytes, totalCount uint64
	for i := 0; i < 3; i++ {
		pkt := packet.New(packet.KindNormal, p.CurrentMap(), nil, 33000)
		inst := packet.NewInstance(pkt)
		flow.Enqueue(p, dests, inst, nil)
		for _, d := range dests {
			flow.RecordThroughput(d, start, pktBytes)
		}
		totalBytes += pktBytes
		totalCount++
		pkt.ReleaseProducerRef()
	}
	units, durUS := p.Aggregates()
	fmt.Printf("buffered: %d units, %s\n", units, time.Duration(durUS)*time.Microsecond)
	for _, d := range dests {
		if _, ctl, ok := flow.Drop(d, dests, nil); ok && !ctl.IsControl {
			// ordinary payload popped; nothing further to do in this demo
		}
	}

	elapsed := time.Since(start)
	fmt.Printf("delivered %s in %v (%s, %s)\n",
		flow.HumanSize(totalBytes), elapsed,
		flow.HumanRate(totalBytes, elapsed), flow.HumanEntryRate(totalCount, elapsed))
}
