// Package flow advances the fluid state of one network by one timestep:
// production under backpressure, consumption under starvation, and
// equal-fill-ratio redistribution across storing members.
//
// Capacity and starvation conditions are throttling outcomes, never errors;
// nothing in this package can fail a tick.
package flow

import (
	"github.com/dd0wney/fluidnet/pkg/entity"
	"github.com/dd0wney/fluidnet/pkg/fluid"
	"github.com/dd0wney/fluidnet/pkg/logging"
	"github.com/dd0wney/fluidnet/pkg/metrics"
	"github.com/dd0wney/fluidnet/pkg/network"
)

// Report summarizes one network advance, mostly for tests and diagnostics.
type Report struct {
	ProducedLiters float64
	ConsumedLiters float64
	Backpressured  int // producers admitted nothing
	Starved        int // consumers served below demand
}

// Simulator advances networks. It holds no per-network state; all state
// lives in the registry and the participant records.
type Simulator struct {
	log logging.Logger
	met *metrics.Registry
}

// NewSimulator creates a flow simulator.
func NewSimulator(log logging.Logger, met *metrics.Registry) *Simulator {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Simulator{log: log, met: met}
}

// Advance moves one network forward by dt seconds. Networks pending a
// membership recompute are skipped entirely; their fluid is frozen until
// the topology is finalized.
func (s *Simulator) Advance(store entity.Store, probe entity.PowerProbe, n *network.Network, dt float64) Report {
	var rep Report
	if n == nil || n.Pending || dt <= 0 {
		return rep
	}
	members := n.SortedMembers()

	s.produce(store, probe, n, members, dt, &rep)
	s.consume(store, n, members, dt, &rep)
	s.redistribute(store, n, members)

	s.log.Debug("network advanced",
		logging.NetworkID(uint64(n.ID)),
		logging.Float64("dt", dt),
		logging.Liters("produced", rep.ProducedLiters),
		logging.Liters("consumed", rep.ConsumedLiters),
		logging.Liters("total", n.TotalFluid))
	return rep
}

// produce admits fluid from powered producers, bounded by spare capacity.
// The first admission into an unestablished network locks in its kind.
// Unadmitted production is not banked.
func (s *Simulator) produce(store entity.Store, probe entity.PowerProbe, n *network.Network, members []entity.Handle, dt float64, rep *Report) {
	pool := fluid.Quantity{Kind: n.Kind, Amount: n.TotalFluid, Capacity: n.TotalCapacity}
	for _, h := range members {
		p, ok := store.Get(h)
		if !ok || !p.IsProducer() {
			continue
		}
		spec := p.Production
		if !probe.Powered(h) {
			continue
		}
		if n.Established() && spec.Kind != n.Kind {
			continue
		}

		request := spec.RatePerSecond * dt
		admitted := pool.Add(request)
		if admitted <= 0 {
			rep.Backpressured++
			s.met.RecordBackpressure()
			continue
		}
		if admitted < request {
			rep.Backpressured++
			s.met.RecordBackpressure()
		}

		if !n.Established() {
			n.Kind = spec.Kind
			pool.Kind = spec.Kind
		}
		rep.ProducedLiters += admitted
		s.met.RecordProduced(spec.Kind.String(), admitted)
	}
	n.TotalFluid = pool.Amount
}

// consume serves matching-kind consumers, partially when the network lacks
// fluid. A consumer on an unestablished or differently-typed network draws
// exactly nothing.
func (s *Simulator) consume(store entity.Store, n *network.Network, members []entity.Handle, dt float64, rep *Report) {
	pool := fluid.Quantity{Kind: n.Kind, Amount: n.TotalFluid, Capacity: n.TotalCapacity}
	for _, h := range members {
		p, ok := store.Get(h)
		if !ok || !p.IsConsumer() {
			continue
		}
		spec := p.Consumption
		if !n.Established() || spec.Kind != n.Kind {
			continue
		}

		demand := spec.RatePerSecond * dt * spec.Efficiency
		if demand <= 0 {
			continue
		}
		served := pool.Drain(demand)
		if served < demand {
			rep.Starved++
			s.met.RecordStarvation()
		}
		if served <= 0 {
			continue
		}
		rep.ConsumedLiters += served
		s.met.RecordConsumed(spec.Kind.String(), served)
	}
	n.TotalFluid = pool.Amount
}

// Rebalance redistributes the network's current aggregate across members
// without producing or consuming. Used after queued administrative fluid
// edits so the invariant "aggregate equals sum of members" holds before the
// next flow pass.
func (s *Simulator) Rebalance(store entity.Store, n *network.Network) {
	if n == nil || n.Pending {
		return
	}
	s.redistribute(store, n, n.SortedMembers())
}

// redistribute rebalances fluid so every storing member sits at the
// network's overall fill ratio, each clamped to its own capacity. The
// aggregate is then rewritten from the members, which absorbs floating
// error and keeps "aggregate equals sum of members" exact.
func (s *Simulator) redistribute(store entity.Store, n *network.Network, members []entity.Handle) {
	if n.TotalFluid > n.TotalCapacity {
		n.TotalFluid = n.TotalCapacity
	}
	ratio := n.FillRatio()

	sum := 0.0
	for _, h := range members {
		p, ok := store.Get(h)
		if !ok {
			continue
		}
		if !p.HasCapacity() {
			p.Amount = 0
			p.ClampAmount()
			continue
		}
		p.Amount = p.CapacityValue() * ratio
		if p.Amount > 0 {
			p.Content = n.Kind
		}
		p.ClampAmount()
		sum += p.Amount
	}
	n.TotalFluid = sum
}
