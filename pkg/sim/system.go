// Package sim wires the fluid network engine together: the System type is
// the public entry point the surrounding game drives once per simulation
// tick. It owns the registry, topology manager, flow simulator, and
// performance scheduler, and answers all read-only queries.
//
// The System is single-threaded by contract: every method must be called
// from the goroutine that owns the simulation tick. External mutation is
// enqueued and applied at the start of the next tick's structural phase, so
// aggregates are never observed in a torn state.
package sim

import (
	"time"

	"github.com/dd0wney/fluidnet/pkg/config"
	"github.com/dd0wney/fluidnet/pkg/entity"
	"github.com/dd0wney/fluidnet/pkg/flow"
	"github.com/dd0wney/fluidnet/pkg/fluid"
	"github.com/dd0wney/fluidnet/pkg/logging"
	"github.com/dd0wney/fluidnet/pkg/metrics"
	"github.com/dd0wney/fluidnet/pkg/network"
	"github.com/dd0wney/fluidnet/pkg/sched"
)

// Options configures a System. Zero fields fall back to defaults: an
// in-memory store, an always-on power probe, a nop logger, no metrics.
type Options struct {
	Config  config.Config
	Store   entity.Store
	Power   entity.PowerProbe
	Logger  logging.Logger
	Metrics *metrics.Registry
}

// commandKind discriminates queued external mutations.
type commandKind int

const (
	cmdPlace commandKind = iota
	cmdRemove
	cmdSetFluid
)

// command is one queued structural or administrative edit.
type command struct {
	kind   commandKind
	handle entity.Handle
	net    network.ID
	fluid  fluid.Kind
	amount float64
}

// System is the fluid network engine's orchestrator.
type System struct {
	cfg   config.Config
	store entity.Store
	reg   *network.Registry
	mgr   *network.Manager
	simr  *flow.Simulator
	sch   *sched.Scheduler
	probe entity.PowerProbe
	log   logging.Logger
	met   *metrics.Registry

	queue []command
	tick  uint64
}

// New creates a System from options.
func New(opts Options) *System {
	cfg := opts.Config
	if cfg.TickRate == 0 {
		cfg = config.Default()
	}
	if opts.Store == nil {
		opts.Store = entity.NewMapStore()
	}
	if opts.Power == nil {
		opts.Power = entity.AlwaysPowered{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNopLogger()
	}

	reg := network.NewRegistry()
	return &System{
		cfg:   cfg,
		store: opts.Store,
		reg:   reg,
		mgr: network.NewManager(opts.Store, reg, network.ManagerConfig{
			TraversalBudget: cfg.SplitTraversalBudget,
			Logger:          opts.Logger,
			Metrics:         opts.Metrics,
		}),
		simr: flow.NewSimulator(opts.Logger, opts.Metrics),
		sch: sched.New(sched.Config{
			LargeNetworkThreshold: cfg.LargeNetworkThreshold,
			Stride:                cfg.SchedulerStride,
		}),
		probe: opts.Power,
		log:   opts.Logger,
		met:   opts.Metrics,
	}
}

// Store returns the participant store the system runs over.
func (s *System) Store() entity.Store { return s.store }

// Spawn stores a fresh participant and immediately places it into the
// topology, the synchronous path the building subsystem uses between ticks.
func (s *System) Spawn(p *entity.Participant) (entity.Handle, error) {
	h := s.store.Create(p)
	if err := s.mgr.Place(h); err != nil {
		s.store.Delete(h)
		return entity.NoHandle, err
	}
	return h, nil
}

// Place inserts an already-stored participant into the topology.
func (s *System) Place(h entity.Handle) error { return s.mgr.Place(h) }

// Remove detaches a participant and deletes it from the store.
func (s *System) Remove(h entity.Handle) error {
	if err := s.mgr.Remove(h); err != nil {
		return err
	}
	s.store.Delete(h)
	return nil
}

// QueuePlace defers a placement to the next tick's structural phase.
func (s *System) QueuePlace(h entity.Handle) {
	s.queue = append(s.queue, command{kind: cmdPlace, handle: h})
}

// QueueRemove defers a removal to the next tick's structural phase.
func (s *System) QueueRemove(h entity.Handle) {
	s.queue = append(s.queue, command{kind: cmdRemove, handle: h})
}

// QueueSetFluid defers an administrative fluid edit: the network's total is
// set to amount liters of the given kind at the next structural phase, then
// rebalanced across members. Edits against stale networks or conflicting
// kinds are dropped with a warning, never an error.
func (s *System) QueueSetFluid(id network.ID, kind fluid.Kind, amount float64) {
	s.queue = append(s.queue, command{kind: cmdSetFluid, net: id, fluid: kind, amount: amount})
}

// Update advances the whole engine by dt seconds: structural phase first
// (queued commands, resumed recomputes, bridge claims), then flow over
// every network the scheduler deems due. No condition in here may abort
// the tick; failures degrade to logged no-ops.
func (s *System) Update(dt float64) {
	start := time.Now()
	s.tick++

	s.mgr.ResetBudget()
	s.drainQueue()
	s.mgr.ResumePending()
	s.mgr.ResolveBridges()
	s.sch.Prune(func(id network.ID) bool {
		_, ok := s.reg.Network(id)
		return ok
	})

	for _, id := range s.reg.IDs() {
		n, ok := s.reg.Network(id)
		if !ok || n.Pending {
			continue
		}
		due, elapsed := s.sch.Due(id, n.Size(), dt)
		if !due {
			continue
		}
		s.simr.Advance(s.store, s.probe, n, elapsed)
	}

	s.met.SetThrottledNetworks(s.sch.ThrottledCount(func(id network.ID) int {
		n, ok := s.reg.Network(id)
		if !ok || n.Pending {
			return 0
		}
		return n.Size()
	}))
	s.met.RecordTick(time.Since(start), s.reg.Count())
	s.log.Debug("tick complete",
		logging.Tick(s.tick),
		logging.Int("networks", s.reg.Count()),
		logging.Bool("pending_splits", s.mgr.HasPending()),
		logging.Duration("took", time.Since(start)))
}

// drainQueue applies queued commands in arrival order. Command failures are
// logged and dropped; a stale handle must not poison the tick.
func (s *System) drainQueue() {
	pending := s.queue
	s.queue = nil
	for _, c := range pending {
		switch c.kind {
		case cmdPlace:
			if err := s.mgr.Place(c.handle); err != nil {
				s.log.Warn("queued place failed", logging.Err(err),
					logging.EntityHandle(uint64(c.handle)))
			}
		case cmdRemove:
			if err := s.mgr.Remove(c.handle); err != nil {
				s.log.Warn("queued remove failed", logging.Err(err),
					logging.EntityHandle(uint64(c.handle)))
			} else {
				s.store.Delete(c.handle)
			}
		case cmdSetFluid:
			s.applySetFluid(c)
		}
	}
}

// applySetFluid installs an administrative fluid total on a network.
func (s *System) applySetFluid(c command) {
	n, ok := s.reg.Network(c.net)
	if !ok || n.Pending {
		s.log.Warn("fluid edit against unknown or pending network",
			logging.Err(network.ErrUnknownNetwork),
			logging.NetworkID(uint64(c.net)))
		return
	}
	if n.Established() && c.fluid.Valid() && c.fluid != n.Kind {
		s.log.Warn("fluid edit kind conflict dropped",
			logging.Err(network.ErrKindConflict),
			logging.NetworkID(uint64(c.net)),
			logging.FluidKind(c.fluid.String()))
		return
	}
	q := fluid.NewQuantity(c.fluid, n.TotalCapacity)
	q.Add(c.amount)
	if !n.Established() && q.Amount > 0 && c.fluid.Valid() {
		n.Kind = c.fluid
	}
	n.TotalFluid = q.Amount
	s.simr.Rebalance(s.store, n)
}

// Tick returns the number of completed Update calls.
func (s *System) Tick() uint64 { return s.tick }
