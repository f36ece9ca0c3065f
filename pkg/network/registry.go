package network

import (
	"sort"

	"github.com/dd0wney/fluidnet/pkg/entity"
)

// Registry owns the network partition: id allocation, handle membership,
// the tile position index, and the set of unresolved bridges. It is a plain
// data object; all editing goes through a Manager.
type Registry struct {
	nextID   ID
	networks map[ID]*Network
	byHandle map[entity.Handle]ID

	// positions indexes tile -> occupant, the neighbor-lookup cache. It is
	// invalidated only by structural edits, never by per-tick flow.
	positions map[entity.Position]entity.Handle

	// bridges holds participants placed between differently-typed networks,
	// waiting for first fluid arrival to resolve the merge.
	bridges map[entity.Handle]struct{}
}

// NewRegistry returns an empty partition. The first minted network id is 1.
func NewRegistry() *Registry {
	return &Registry{
		nextID:    1,
		networks:  make(map[ID]*Network),
		byHandle:  make(map[entity.Handle]ID),
		positions: make(map[entity.Position]entity.Handle),
		bridges:   make(map[entity.Handle]struct{}),
	}
}

// mint allocates a fresh network id.
func (r *Registry) mint() ID {
	id := r.nextID
	r.nextID++
	return id
}

// newNetwork creates and registers an empty network.
func (r *Registry) newNetwork() *Network {
	n := &Network{
		ID:      r.mint(),
		Members: make(map[entity.Handle]struct{}),
	}
	r.networks[n.ID] = n
	return n
}

// Lookup returns the network id of a participant, or None.
func (r *Registry) Lookup(h entity.Handle) (ID, bool) {
	id, ok := r.byHandle[h]
	if !ok {
		return None, false
	}
	return id, true
}

// Network returns a network by id.
func (r *Registry) Network(id ID) (*Network, bool) {
	n, ok := r.networks[id]
	return n, ok
}

// At returns the participant occupying a tile, or NoHandle.
func (r *Registry) At(pos entity.Position) (entity.Handle, bool) {
	h, ok := r.positions[pos]
	if !ok {
		return entity.NoHandle, false
	}
	return h, true
}

// Count returns the number of networks.
func (r *Registry) Count() int { return len(r.networks) }

// IDs returns all network ids in ascending order.
func (r *Registry) IDs() []ID {
	out := make([]ID, 0, len(r.networks))
	for id := range r.networks {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Bridges returns unresolved bridge handles in ascending order.
func (r *Registry) Bridges() []entity.Handle {
	out := make([]entity.Handle, 0, len(r.bridges))
	for h := range r.bridges {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// IsBridge reports whether a participant is an unresolved bridge.
func (r *Registry) IsBridge(h entity.Handle) bool {
	_, ok := r.bridges[h]
	return ok
}

// attach adds a participant to a network and updates aggregates.
func (r *Registry) attach(n *Network, h entity.Handle, p *entity.Participant) {
	n.Members[h] = struct{}{}
	r.byHandle[h] = n.ID
	n.TotalCapacity += p.CapacityValue()
	n.TotalFluid += p.Amount
}

// detach removes a participant from its network and updates aggregates.
// Empty networks are dropped.
func (r *Registry) detach(n *Network, h entity.Handle, p *entity.Participant) {
	delete(n.Members, h)
	delete(r.byHandle, h)
	n.TotalCapacity -= p.CapacityValue()
	n.TotalFluid -= p.Amount
	if n.TotalCapacity < 0 {
		n.TotalCapacity = 0
	}
	if n.TotalFluid < 0 {
		n.TotalFluid = 0
	}
	if len(n.Members) == 0 {
		delete(r.networks, n.ID)
	}
}

// drop removes a network wholesale, re-pointing nothing. Callers move the
// members first.
func (r *Registry) drop(id ID) {
	delete(r.networks, id)
}

// recomputeAggregates rewrites a network's totals from its members.
func (r *Registry) recomputeAggregates(n *Network, store entity.Store) {
	n.TotalFluid = 0
	n.TotalCapacity = 0
	for h := range n.Members {
		if p, ok := store.Get(h); ok {
			n.TotalFluid += p.Amount
			n.TotalCapacity += p.CapacityValue()
		}
	}
}

// PendingCount returns how many participants sit in pending networks.
func (r *Registry) PendingCount() int {
	total := 0
	for _, n := range r.networks {
		if n.Pending {
			total += len(n.Members)
		}
	}
	return total
}
