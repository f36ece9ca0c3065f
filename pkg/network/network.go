// Package network maintains the partition of fluid participants into
// connected networks: incremental merge on placement, flood-fill split on
// removal, deferred cross-kind bridging, and bounded recompute under a
// per-tick traversal budget.
//
// The partition is an explicitly owned Registry object, never a process-wide
// singleton, so multiple simulations can coexist in one process.
package network

import (
	"sort"

	"github.com/dd0wney/fluidnet/pkg/entity"
	"github.com/dd0wney/fluidnet/pkg/fluid"
)

// ID identifies a network. IDs are stable across ticks absent a structural
// edit; they change only on merge (canonical id retained) and split (fresh
// ids for all but the largest component).
type ID uint64

// None is the "no network" sentinel.
const None ID = 0

// Network is one maximal connected set of participants able to exchange a
// single fluid kind.
type Network struct {
	ID ID

	// Kind is the transported fluid, KindNone until the first fluid enters
	// any member.
	Kind fluid.Kind

	// Members is keyed by participant handle.
	Members map[entity.Handle]struct{}

	// TotalFluid and TotalCapacity are aggregates over members, maintained
	// incrementally on structural edits and rewritten by the flow pass.
	TotalFluid    float64
	TotalCapacity float64

	// Pending marks a network whose membership recompute exceeded the
	// traversal budget; it is excluded from flow until finalized.
	Pending bool
}

// Size returns the member count.
func (n *Network) Size() int { return len(n.Members) }

// FillRatio returns the aggregate fill ratio, the diagnostic "pressure"
// value. Zero-capacity networks report 0.
func (n *Network) FillRatio() float64 {
	if n.TotalCapacity <= 0 {
		return 0
	}
	return n.TotalFluid / n.TotalCapacity
}

// Established reports whether the network has locked in a fluid kind.
func (n *Network) Established() bool { return n.Kind.Valid() }

// SortedMembers returns member handles in ascending order. Flow and split
// passes iterate members in this order so results are deterministic.
func (n *Network) SortedMembers() []entity.Handle {
	out := make([]entity.Handle, 0, len(n.Members))
	for h := range n.Members {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
