package sim

import (
	"github.com/dd0wney/fluidnet/pkg/entity"
	"github.com/dd0wney/fluidnet/pkg/fluid"
	"github.com/dd0wney/fluidnet/pkg/network"
)

// Read-only queries. All of them are side-effect-free and return a sentinel
// ("no network", zero, empty) for unknown or stale ids instead of failing;
// the rendering and debug consumers poll these without error handling.

// NetworkOf returns the network a participant belongs to, or network.None.
func (s *System) NetworkOf(h entity.Handle) network.ID {
	id, ok := s.reg.Lookup(h)
	if !ok {
		return network.None
	}
	return id
}

// EstablishedKind returns the fluid a network transports, or KindNone for
// unestablished or unknown networks.
func (s *System) EstablishedKind(id network.ID) fluid.Kind {
	n, ok := s.reg.Network(id)
	if !ok {
		return fluid.KindNone
	}
	return n.Kind
}

// TotalFluid returns a network's aggregate liters, 0 for unknown ids.
func (s *System) TotalFluid(id network.ID) float64 {
	n, ok := s.reg.Network(id)
	if !ok {
		return 0
	}
	return n.TotalFluid
}

// TotalCapacity returns a network's aggregate capacity, 0 for unknown ids.
func (s *System) TotalCapacity(id network.ID) float64 {
	n, ok := s.reg.Network(id)
	if !ok {
		return 0
	}
	return n.TotalCapacity
}

// FillRatio returns the diagnostic "pressure" value, 0 for unknown ids.
func (s *System) FillRatio(id network.ID) float64 {
	n, ok := s.reg.Network(id)
	if !ok {
		return 0
	}
	return n.FillRatio()
}

// NetworkIDs returns every live network id in ascending order.
func (s *System) NetworkIDs() []network.ID { return s.reg.IDs() }

// Members returns a network's member handles in ascending order, nil for
// unknown ids.
func (s *System) Members(id network.ID) []entity.Handle {
	n, ok := s.reg.Network(id)
	if !ok {
		return nil
	}
	return n.SortedMembers()
}

// MemberCount returns a network's size, 0 for unknown ids.
func (s *System) MemberCount(id network.ID) int {
	n, ok := s.reg.Network(id)
	if !ok {
		return 0
	}
	return n.Size()
}

// Participant returns the capability record for a handle. Consumers must
// treat the record as read-only; mutating it bypasses the command queue.
func (s *System) Participant(h entity.Handle) (*entity.Participant, bool) {
	return s.store.Get(h)
}

// IsBridge reports whether a participant is an unresolved cross-kind
// bridge, shown distinctly by the debug overlay.
func (s *System) IsBridge(h entity.Handle) bool {
	return s.reg.IsBridge(h)
}
