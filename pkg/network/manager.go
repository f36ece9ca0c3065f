package network

import (
	"errors"

	"github.com/dd0wney/fluidnet/pkg/entity"
	"github.com/dd0wney/fluidnet/pkg/fluid"
	"github.com/dd0wney/fluidnet/pkg/logging"
	"github.com/dd0wney/fluidnet/pkg/metrics"
)

// ErrAlreadyPlaced indicates a handle placed twice without a removal.
var ErrAlreadyPlaced = errors.New("participant already placed")

// ErrTileOccupied indicates a placement onto a tile another participant
// already holds.
var ErrTileOccupied = errors.New("tile already occupied")

// ManagerConfig tunes a topology manager.
type ManagerConfig struct {
	// TraversalBudget caps flood-fill visits per tick during splits.
	TraversalBudget int
	Logger          logging.Logger
	Metrics         *metrics.Registry
}

// Manager applies structural edits to a Registry. It never runs during
// steady-state ticks with no edits; its cost is proportional to the affected
// network, not the world.
type Manager struct {
	store entity.Store
	reg   *Registry
	log   logging.Logger
	met   *metrics.Registry

	budget int
	spent  int

	// resumes holds splits that ran out of traversal budget.
	resumes []*pendingSplit
}

// pendingSplit carries the resumable flood-fill state of one re-partition.
type pendingSplit struct {
	netID      ID
	seeds      []entity.Handle
	seedIdx    int
	visited    map[entity.Handle]struct{}
	queue      []entity.Handle
	current    []entity.Handle
	components [][]entity.Handle
}

// NewManager creates a topology manager over a store and registry.
func NewManager(store entity.Store, reg *Registry, cfg ManagerConfig) *Manager {
	if cfg.TraversalBudget <= 0 {
		cfg.TraversalBudget = 4096
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNopLogger()
	}
	return &Manager{
		store:  store,
		reg:    reg,
		log:    cfg.Logger,
		met:    cfg.Metrics,
		budget: cfg.TraversalBudget,
	}
}

// Registry returns the partition the manager edits.
func (m *Manager) Registry() *Registry { return m.reg }

// ResetBudget starts a fresh per-tick traversal budget. The orchestrator
// calls this once at the top of every tick.
func (m *Manager) ResetBudget() { m.spent = 0 }

// HasPending reports whether any split is awaiting more budget.
func (m *Manager) HasPending() bool { return len(m.resumes) > 0 }

// neighborHandles returns the handles geometrically adjacent to p through
// mutually exposed sides, in fixed direction order.
func (m *Manager) neighborHandles(p *entity.Participant) []entity.Handle {
	var out []entity.Handle
	for _, d := range entity.Directions() {
		if !p.ConnectsTo(d) {
			continue
		}
		qh, ok := m.reg.At(p.Position.Shifted(d))
		if !ok {
			continue
		}
		q, ok := m.store.Get(qh)
		if !ok || !q.ConnectsTo(d.Opposite()) {
			continue
		}
		out = append(out, qh)
	}
	return out
}

// neighborNetworks returns the distinct network ids among p's neighbors,
// ascending, excluding the given id.
func (m *Manager) neighborNetworks(p *entity.Participant, exclude ID) []ID {
	seen := make(map[ID]struct{})
	var ids []ID
	for _, qh := range m.neighborHandles(p) {
		id, ok := m.reg.Lookup(qh)
		if !ok || id == exclude {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	// Insertion order follows direction order; sort ascending so the
	// lowest id is always first.
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j] < ids[j-1]; j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
	return ids
}

// kindConflict reports whether p's current contents cannot enter n. Only
// possible for freshly loaded state, where a participant arrives already
// holding fluid.
func kindConflict(n *Network, p *entity.Participant) bool {
	return n.Established() && p.Amount > 0 && p.Content.Valid() && p.Content != n.Kind
}

// establish locks in a network kind from a member's current contents.
func establish(n *Network, p *entity.Participant) {
	if !n.Established() && p.Amount > 0 && p.Content.Valid() {
		n.Kind = p.Content
	}
}

// Place inserts a participant into the topology. Zero compatible neighbor
// networks start a new one; exactly one joins it; several merge into the
// lowest id, unless they transport different kinds, in which case the
// participant becomes an unresolved bridge and the merge waits for fluid.
func (m *Manager) Place(h entity.Handle) error {
	p, ok := m.store.Get(h)
	if !ok {
		return placeError(h, entity.ErrUnknownHandle)
	}
	if _, dup := m.reg.Lookup(h); dup {
		return placeError(h, ErrAlreadyPlaced)
	}
	if occ, taken := m.reg.At(p.Position); taken && occ != h {
		return placeError(h, ErrTileOccupied)
	}

	m.reg.positions[p.Position] = h
	ids := m.neighborNetworks(p, None)

	switch len(ids) {
	case 0:
		n := m.reg.newNetwork()
		m.reg.attach(n, h, p)
		establish(n, p)
		m.log.Debug("placed into new network",
			logging.EntityHandle(uint64(h)), logging.NetworkID(uint64(n.ID)))

	case 1:
		n, _ := m.reg.Network(ids[0])
		if kindConflict(n, p) {
			// Loaded participant carrying the wrong fluid: reject the
			// join, it starts its own network.
			own := m.reg.newNetwork()
			m.reg.attach(own, h, p)
			establish(own, p)
			m.log.Warn("join rejected on kind conflict",
				logging.Err(ErrKindConflict),
				logging.EntityHandle(uint64(h)),
				logging.NetworkID(uint64(n.ID)),
				logging.FluidKind(p.Content.String()))
		} else {
			m.reg.attach(n, h, p)
			establish(n, p)
			if n.Pending {
				m.scheduleSplit(n)
			}
		}

	default:
		kinds := make(map[fluid.Kind]struct{})
		for _, id := range ids {
			n, _ := m.reg.Network(id)
			kinds[n.Kind] = struct{}{}
		}
		if len(kinds) > 1 {
			// Differently-typed sides: no contents merge now. The new
			// participant bridges them until fluid claims it.
			own := m.reg.newNetwork()
			m.reg.attach(own, h, p)
			m.reg.bridges[h] = struct{}{}
			m.met.RecordBridgeDeferred()
			m.log.Info("merge deferred to bridge",
				logging.EntityHandle(uint64(h)),
				logging.Int("sides", len(ids)))
			return nil
		}

		dst, _ := m.reg.Network(ids[0])
		needsRecompute := dst.Pending
		for _, id := range ids[1:] {
			src, _ := m.reg.Network(id)
			if m.merge(dst, src) {
				needsRecompute = true
			}
		}
		if kindConflict(dst, p) {
			own := m.reg.newNetwork()
			m.reg.attach(own, h, p)
			establish(own, p)
		} else {
			m.reg.attach(dst, h, p)
			establish(dst, p)
		}
		if needsRecompute {
			m.scheduleSplit(dst)
		}
	}
	return nil
}

// merge folds src into dst. dst must carry the lower id. Reports whether
// either side had an in-flight recompute; the caller must reschedule one
// over the final membership after it finishes editing, since a stale
// partial flood fill could mislabel members attached later.
func (m *Manager) merge(dst, src *Network) bool {
	if dst == src {
		return dst.Pending
	}
	for h := range src.Members {
		dst.Members[h] = struct{}{}
		m.reg.byHandle[h] = dst.ID
	}
	dst.TotalFluid += src.TotalFluid
	dst.TotalCapacity += src.TotalCapacity
	if !dst.Established() && src.Established() {
		dst.Kind = src.Kind
	}
	srcPending := src.Pending
	m.dropResumes(src.ID)
	m.reg.drop(src.ID)
	m.met.RecordMerge()
	m.log.Debug("networks merged",
		logging.NetworkID(uint64(dst.ID)),
		logging.Uint64("absorbed", uint64(src.ID)))
	return srcPending || dst.Pending
}

// Remove detaches a participant. Removal moves no fluid; it only relabels:
// if the remainder is disconnected, the largest component keeps the id and
// the rest get fresh ones. The flood fill is charged against the per-tick
// budget and resumes next tick when it runs out.
func (m *Manager) Remove(h entity.Handle) error {
	p, ok := m.store.Get(h)
	if !ok {
		return removeError(h, entity.ErrUnknownHandle)
	}
	if occ, ok := m.reg.At(p.Position); ok && occ == h {
		delete(m.reg.positions, p.Position)
	}
	delete(m.reg.bridges, h)

	id, ok := m.reg.Lookup(h)
	if !ok {
		return nil
	}
	n, _ := m.reg.Network(id)
	m.reg.detach(n, h, p)

	if _, alive := m.reg.Network(id); !alive || n.Size() <= 1 {
		m.dropResumes(id)
		n.Pending = false
		return nil
	}

	m.scheduleSplit(n)
	return nil
}

// dropResumes discards any in-flight recompute targeting a network.
func (m *Manager) dropResumes(id ID) {
	kept := m.resumes[:0]
	for _, ps := range m.resumes {
		if ps.netID != id {
			kept = append(kept, ps)
		}
	}
	m.resumes = kept
}

// scheduleSplit starts (or restarts) a membership recompute for a network.
// Any previous in-flight recompute is discarded first; its partial view is
// stale once the network is edited again.
func (m *Manager) scheduleSplit(n *Network) {
	m.dropResumes(n.ID)
	ps := &pendingSplit{
		netID:   n.ID,
		seeds:   n.SortedMembers(),
		visited: make(map[entity.Handle]struct{}),
	}
	if m.runSplit(ps) {
		m.applySplit(ps)
		return
	}
	n.Pending = true
	m.resumes = append(m.resumes, ps)
	m.met.SetPendingRecompute(m.reg.PendingCount())
	m.log.Warn("split deferred",
		logging.Err(ErrBudgetExceeded),
		logging.NetworkID(uint64(n.ID)),
		logging.Int("members", n.Size()))
}

// runSplit advances a flood fill until completion or budget exhaustion.
// Returns true when every member has been assigned to a component.
func (m *Manager) runSplit(ps *pendingSplit) bool {
	for {
		if len(ps.queue) == 0 {
			if ps.current != nil {
				ps.components = append(ps.components, ps.current)
				ps.current = nil
			}
			seeded := false
			for ps.seedIdx < len(ps.seeds) {
				s := ps.seeds[ps.seedIdx]
				ps.seedIdx++
				if _, done := ps.visited[s]; done {
					continue
				}
				if got, ok := m.reg.Lookup(s); !ok || got != ps.netID {
					continue
				}
				ps.visited[s] = struct{}{}
				ps.queue = append(ps.queue, s)
				seeded = true
				break
			}
			if !seeded {
				return true
			}
		}

		if m.spent >= m.budget {
			return false
		}
		h := ps.queue[0]
		ps.queue = ps.queue[1:]
		m.spent++
		ps.current = append(ps.current, h)

		p, ok := m.store.Get(h)
		if !ok {
			continue
		}
		for _, qh := range m.neighborHandles(p) {
			if got, ok := m.reg.Lookup(qh); !ok || got != ps.netID {
				continue
			}
			if _, seen := ps.visited[qh]; seen {
				continue
			}
			ps.visited[qh] = struct{}{}
			ps.queue = append(ps.queue, qh)
		}
	}
}

// applySplit rewrites membership from the discovered components. The largest
// component keeps the original id; fully drained fragments revert to an
// unestablished kind so they can accept whatever arrives next.
func (m *Manager) applySplit(ps *pendingSplit) {
	n, ok := m.reg.Network(ps.netID)
	if !ok {
		return
	}
	n.Pending = false

	if len(ps.components) <= 1 {
		m.reg.recomputeAggregates(n, m.store)
		m.met.SetPendingRecompute(m.reg.PendingCount())
		return
	}

	largest := 0
	for i, comp := range ps.components {
		if len(comp) > len(ps.components[largest]) {
			largest = i
		}
	}

	for i, comp := range ps.components {
		if i == largest {
			continue
		}
		frag := m.reg.newNetwork()
		frag.Kind = n.Kind
		for _, h := range comp {
			delete(n.Members, h)
			if p, ok := m.store.Get(h); ok {
				m.reg.attach(frag, h, p)
			}
		}
		if frag.TotalFluid <= 0 {
			frag.Kind = fluid.KindNone
		}
	}
	m.reg.recomputeAggregates(n, m.store)
	if n.TotalFluid <= 0 {
		n.Kind = fluid.KindNone
	}

	m.met.RecordSplit(len(ps.components) - 1)
	m.met.SetPendingRecompute(m.reg.PendingCount())
	m.log.Info("network split",
		logging.NetworkID(uint64(n.ID)),
		logging.Int("components", len(ps.components)))
}

// ResumePending continues budget-deferred splits. Called at the top of each
// tick, after ResetBudget.
func (m *Manager) ResumePending() {
	remaining := m.resumes[:0]
	for i, ps := range m.resumes {
		if m.spent >= m.budget {
			remaining = append(remaining, m.resumes[i:]...)
			break
		}
		if m.runSplit(ps) {
			m.applySplit(ps)
		} else {
			remaining = append(remaining, ps)
		}
	}
	m.resumes = remaining
	m.met.SetPendingRecompute(m.reg.PendingCount())
}

// ResolveBridges completes deferred merges whose fluid has arrived. Sides
// are evaluated in ascending network-id order; the first established,
// non-empty side claims the bridge, and any still-compatible flanking
// network folds into the claim at the same moment.
func (m *Manager) ResolveBridges() {
	for _, h := range m.reg.Bridges() {
		p, ok := m.store.Get(h)
		if !ok {
			delete(m.reg.bridges, h)
			continue
		}
		bridgeID, ok := m.reg.Lookup(h)
		if !ok {
			delete(m.reg.bridges, h)
			continue
		}
		sides := m.neighborNetworks(p, bridgeID)

		var claimer *Network
		for _, id := range sides {
			n, _ := m.reg.Network(id)
			if n.Pending || !n.Established() || n.TotalFluid <= 0 {
				continue
			}
			claimer = n
			break
		}
		if claimer == nil {
			continue
		}

		// Gather every network joining the claim: the bridge itself, the
		// claimer, and compatible remaining sides. Lowest id is canonical.
		bridgeNet, _ := m.reg.Network(bridgeID)
		group := []*Network{claimer, bridgeNet}
		for _, id := range sides {
			n, _ := m.reg.Network(id)
			if n == claimer || n.Pending {
				continue
			}
			if !n.Established() || n.Kind == claimer.Kind {
				group = append(group, n)
			}
		}
		canon := group[0]
		for _, n := range group[1:] {
			if n.ID < canon.ID {
				canon = n
			}
		}
		if !canon.Established() {
			canon.Kind = claimer.Kind
		}
		needsRecompute := false
		for _, n := range group {
			if n != canon {
				if m.merge(canon, n) {
					needsRecompute = true
				}
			}
		}
		if needsRecompute {
			m.scheduleSplit(canon)
		}
		delete(m.reg.bridges, h)
		m.met.RecordBridgeClaim()
		m.log.Info("bridge claimed",
			logging.EntityHandle(uint64(h)),
			logging.NetworkID(uint64(canon.ID)),
			logging.FluidKind(canon.Kind.String()))
	}
}

// Rebuild discards all membership and rediscovers it from the store with a
// full flood fill. Used after loading a snapshot, where stored network ids
// are hints only. Runs without a traversal budget; load is not tick time.
//
// The fill honors kind boundaries: a loaded participant whose contents
// conflict with the growing network's established kind is left unvisited
// and seeds its own network later, so adjacent networks of different
// fluids survive a reload. An empty participant flanked by two kinds
// attaches to whichever side is flooded first (ascending seed handle).
func (m *Manager) Rebuild() {
	m.reg.networks = make(map[ID]*Network)
	m.reg.byHandle = make(map[entity.Handle]ID)
	m.reg.positions = make(map[entity.Position]entity.Handle)
	m.reg.bridges = make(map[entity.Handle]struct{})
	m.resumes = nil

	var handles []entity.Handle
	m.store.ForEach(func(h entity.Handle, p *entity.Participant) bool {
		m.reg.positions[p.Position] = h
		handles = append(handles, h)
		return true
	})
	for i := 1; i < len(handles); i++ {
		for j := i; j > 0 && handles[j] < handles[j-1]; j-- {
			handles[j], handles[j-1] = handles[j-1], handles[j]
		}
	}

	visited := make(map[entity.Handle]struct{}, len(handles))
	for _, seed := range handles {
		if _, done := visited[seed]; done {
			continue
		}
		n := m.reg.newNetwork()
		queue := []entity.Handle{seed}
		visited[seed] = struct{}{}
		for len(queue) > 0 {
			h := queue[0]
			queue = queue[1:]
			p, ok := m.store.Get(h)
			if !ok {
				continue
			}
			if kindConflict(n, p) {
				// Reachable but incompatible. Drop the visit mark so a
				// later seed floods it into its own network.
				delete(visited, h)
				continue
			}
			m.reg.attach(n, h, p)
			establish(n, p)
			for _, qh := range m.neighborHandles(p) {
				if _, seen := visited[qh]; seen {
					continue
				}
				visited[qh] = struct{}{}
				queue = append(queue, qh)
			}
		}
	}
	m.log.Info("topology rebuilt",
		logging.Int("participants", len(handles)),
		logging.Int("networks", m.reg.Count()))
}
