// Package session is the module's public entry point: it wires
// together the property/packet/pid layer, the capability graph, the
// filter orchestrator, the flow controller, and the ambient logging/
// metrics/config stack into one object an embedding program
// constructs once and drives.
//
// Grounded on ingest/muxer.go's NewMuxer/NewUniformMuxer: both build a
// muxer by allocating its internal collaborators (config, connection
// pool, tag registry, logger) from a single config struct and expose a
// small surface (Start/Close plus accessors) over the machinery
// underneath. This package plays the same role over C1-C5 instead of
// over ingest connections.
package session

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/streamgraph/filtercore/config"
	"github.com/streamgraph/filtercore/fclog"
	"github.com/streamgraph/filtercore/filter"
	"github.com/streamgraph/filtercore/graph"
	"github.com/streamgraph/filtercore/internal/task"
	"github.com/streamgraph/filtercore/metrics"
	"github.com/streamgraph/filtercore/pid"
)

// defaultWorkers mirrors gravwell's default ingest muxer connection
// pool size order of magnitude; this core's tasks are cheap in-memory
// transitions, not network I/O, so a small fixed pool is enough.
const defaultWorkers = 4

// Session is the public object embedding programs construct.
type Session struct {
	mu sync.RWMutex

	cfg config.SessionConfig

	graph   *graph.Graph
	queue   *task.Queue
	orch    *filter.Orchestrator
	metrics *metrics.Registry
	log     *fclog.Logger

	catalog map[string]*filter.Registry
}

// Option configures a Session at construction time.
type Option func(*Session)

// WithLogger overrides the default stderr/Warn logger; logging is an
// external collaborator the embedding program supplies.
func WithLogger(l *fclog.Logger) Option {
	return func(s *Session) { s.log = l }
}

// WithMetricsRegisterer folds this session's Prometheus collectors
// into reg instead of a private, unexported registry, so an embedding
// program can expose them on its own /metrics endpoint.
func WithMetricsRegisterer(reg prometheus.Registerer) Option {
	return func(s *Session) { s.metrics = metrics.New(reg) }
}

// WithWorkers overrides the task queue's worker pool size.
func WithWorkers(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.queue = task.New(n)
		}
	}
}

// New builds a Session from cfg, wiring the graph resolver, task
// queue, and orchestrator per the session config's [Global] block,
// including its MaxResolveChainLen/PreferredRegistry tie-break.
func New(cfg config.SessionConfig, opts ...Option) *Session {
	s := &Session{
		cfg:     cfg,
		graph:   graph.New(),
		log:     fclog.Default(),
		catalog: make(map[string]*filter.Registry),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.queue == nil {
		s.queue = task.New(defaultWorkers)
	}
	s.orch = filter.NewOrchestrator(s.graph, s.queue)
	if cfg.Global.MaxResolveChainLen > 0 {
		s.orch.MaxResolveChainLen = cfg.Global.MaxResolveChainLen
	}
	s.orch.PreferredRegistry = cfg.Global.PreferredRegistry
	return s
}

// RegisterRegistry adds reg to the catalog of compiled-in filter
// implementations a [Filter "name"] config section may reference by
// reg.Name. Registration is the embedding program's job — filter
// implementations themselves are outside this core — mirroring
// ingest/processors/processors.go's build-function registration.
func (s *Session) RegisterRegistry(reg *filter.Registry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalog[reg.Name] = reg
}

// ErrUnknownRegistry is returned by Start when a config section names
// a registry that was never registered.
type ErrUnknownRegistry struct{ Section, Registry string }

func (e *ErrUnknownRegistry) Error() string {
	return fmt.Sprintf("session: filter section %q references unregistered registry %q", e.Section, e.Registry)
}

// Start instantiates one Filter per [Filter "name"] config section,
// applies its parsed arg string to the new Filter's Args
// map, and registers it with the orchestrator. Call once after every
// RegisterRegistry call the config depends on.
func (s *Session) Start() error {
	sep := s.cfg.Global.Separator()
	s.mu.RLock()
	defer s.mu.RUnlock()

	for name, section := range s.cfg.Filter {
		reg, ok := s.catalog[section.Registry]
		if !ok {
			return &ErrUnknownRegistry{Section: name, Registry: section.Registry}
		}
		var f *filter.Filter
		if reg.Clone != nil {
			f = reg.Clone()
		} else {
			f = filter.New(reg)
		}
		f.SourceID = section.SourceID

		args, err := config.ParseArgString(section.Args, sep)
		if err != nil {
			return fmt.Errorf("session: filter %q: %w", name, err)
		}
		for _, a := range args {
			f.Args[a.Key] = a.PropValue()
		}

		s.orch.AddFilter(f)
		s.log.Info("filter registered", fclog.KV("section", name), fclog.KV("registry", reg.Name))
	}
	return nil
}

// Close stops the task queue, draining in-flight work first.
func (s *Session) Close() {
	s.queue.Close()
}

// NotifyNewOutputPID flushes f's pending output PIDs and posts an init
// task for each: new output PIDs are flushed on return from the
// filter callback to trigger their init tasks. The embedding program
// calls this immediately after a registry callback that may have
// called Filter.NewOutputPID returns.
func (s *Session) NotifyNewOutputPID(f *filter.Filter) {
	for _, p := range f.FlushPending() {
		s.orch.PostInit(p)
	}
}

// NewOutputPID is a convenience wrapper that allocates a PID on f and
// immediately posts its init task, for the common case of a single
// new output pid per callback invocation.
func (s *Session) NewOutputPID(f *filter.Filter) *pid.PID {
	p := f.NewOutputPID()
	s.NotifyNewOutputPID(f)
	return p
}

func (s *Session) Graph() *graph.Graph               { return s.graph }
func (s *Session) Orchestrator() *filter.Orchestrator { return s.orch }
func (s *Session) Metrics() *metrics.Registry         { return s.metrics }
func (s *Session) Logger() *fclog.Logger              { return s.log }

// QueueDepth reports the scheduler's current not-yet-run task
// backlog, publishing it to /metrics if a registerer was configured.
func (s *Session) QueueDepth() int {
	n := s.queue.Len()
	s.metrics.SetTaskQueueDepth(n)
	return n
}
