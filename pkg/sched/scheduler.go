// Package sched bounds the cost of simulating very large networks. Networks
// above a member-count threshold advance only once every stride ticks; when
// they do, they receive the accumulated elapsed time since their last
// advance, so delivered volume over any window matches the every-tick
// result. Accumulators are touched only here and invalidated only by
// structural events, never by ordinary flow.
package sched

import "github.com/dd0wney/fluidnet/pkg/network"

// Config tunes the scheduler.
type Config struct {
	// LargeNetworkThreshold is the member count at which throttling starts.
	LargeNetworkThreshold int
	// Stride is how many ticks a throttled network waits between advances.
	Stride int
}

// DefaultConfig returns the scheduler defaults.
func DefaultConfig() Config {
	return Config{LargeNetworkThreshold: 256, Stride: 4}
}

// accum tracks elapsed time and skipped ticks for one network.
type accum struct {
	elapsed float64
	ticks   int
}

// Scheduler decides which networks advance each tick and with what
// timestep.
type Scheduler struct {
	cfg  Config
	accs map[network.ID]*accum
}

// New creates a scheduler.
func New(cfg Config) *Scheduler {
	if cfg.LargeNetworkThreshold <= 0 {
		cfg.LargeNetworkThreshold = DefaultConfig().LargeNetworkThreshold
	}
	if cfg.Stride <= 0 {
		cfg.Stride = DefaultConfig().Stride
	}
	return &Scheduler{cfg: cfg, accs: make(map[network.ID]*accum)}
}

// Due accumulates dt against the network and reports whether it should
// advance this tick and, if so, with what effective timestep. The effective
// timestep is the accumulated elapsed time, not stride*dt, so the result
// stays correct even if the stride changes mid-flight.
func (s *Scheduler) Due(id network.ID, memberCount int, dt float64) (bool, float64) {
	a := s.accs[id]
	if a == nil {
		a = &accum{}
		s.accs[id] = a
	}
	a.elapsed += dt
	a.ticks++

	if memberCount < s.cfg.LargeNetworkThreshold {
		elapsed := a.elapsed
		a.elapsed = 0
		a.ticks = 0
		return true, elapsed
	}

	if a.ticks < s.cfg.Stride {
		return false, 0
	}
	elapsed := a.elapsed
	a.elapsed = 0
	a.ticks = 0
	return true, elapsed
}

// Prune drops accumulators for networks that no longer exist, typically
// after a merge or split retired their ids. Called after the structural
// phase of a tick.
func (s *Scheduler) Prune(alive func(network.ID) bool) {
	for id := range s.accs {
		if !alive(id) {
			delete(s.accs, id)
		}
	}
}

// Reset drops every accumulator, used after a topology rebuild.
func (s *Scheduler) Reset() {
	s.accs = make(map[network.ID]*accum)
}

// ThrottledCount reports how many known networks currently sit above the
// threshold, for the metrics gauge.
func (s *Scheduler) ThrottledCount(sizeOf func(network.ID) int) int {
	n := 0
	for id := range s.accs {
		if sizeOf(id) >= s.cfg.LargeNetworkThreshold {
			n++
		}
	}
	return n
}
