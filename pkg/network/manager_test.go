package network

import (
	"errors"
	"testing"

	"github.com/dd0wney/fluidnet/pkg/entity"
	"github.com/dd0wney/fluidnet/pkg/fluid"
)

// newTestWorld creates an empty store, registry, and manager with a budget
// large enough that no test splits defer unless asked to.
func newTestWorld(t *testing.T) (*entity.MapStore, *Registry, *Manager) {
	t.Helper()
	store := entity.NewMapStore()
	reg := NewRegistry()
	mgr := NewManager(store, reg, ManagerConfig{TraversalBudget: 1 << 20})
	return store, reg, mgr
}

// pipe builds an all-sided storing participant.
func pipe(x, y int, capacity float64) *entity.Participant {
	return &entity.Participant{
		Position:  entity.Position{X: x, Y: y},
		Adjacency: entity.AllSides(),
		Capacity:  &capacity,
	}
}

// filledPipe builds a pipe already holding fluid, the loaded-state case.
func filledPipe(x, y int, capacity float64, kind fluid.Kind, amount float64) *entity.Participant {
	p := pipe(x, y, capacity)
	p.Content = kind
	p.Amount = amount
	return p
}

// place stores and places a participant, failing the test on error.
func place(t *testing.T, store *entity.MapStore, mgr *Manager, p *entity.Participant) entity.Handle {
	t.Helper()
	h := store.Create(p)
	if err := mgr.Place(h); err != nil {
		t.Fatalf("Place(%d) failed: %v", h, err)
	}
	return h
}

func TestPlaceIsolatedStartsNetwork(t *testing.T) {
	store, reg, mgr := newTestWorld(t)

	h1 := place(t, store, mgr, pipe(0, 0, 10))
	h2 := place(t, store, mgr, pipe(5, 5, 10))

	id1, _ := reg.Lookup(h1)
	id2, _ := reg.Lookup(h2)
	if id1 == id2 {
		t.Fatalf("isolated pipes share network %d", id1)
	}
	if reg.Count() != 2 {
		t.Fatalf("network count = %d, want 2", reg.Count())
	}
}

func TestPlaceJoinsNeighbor(t *testing.T) {
	store, reg, mgr := newTestWorld(t)

	h1 := place(t, store, mgr, pipe(0, 0, 10))
	h2 := place(t, store, mgr, pipe(1, 0, 10))

	id1, _ := reg.Lookup(h1)
	id2, _ := reg.Lookup(h2)
	if id1 != id2 {
		t.Fatalf("adjacent pipes in different networks %d and %d", id1, id2)
	}
	n, _ := reg.Network(id1)
	if n.Size() != 2 {
		t.Errorf("network size = %d, want 2", n.Size())
	}
	if n.TotalCapacity != 20 {
		t.Errorf("total capacity = %v, want 20", n.TotalCapacity)
	}
}

func TestPlaceMergeKeepsLowestID(t *testing.T) {
	store, reg, mgr := newTestWorld(t)

	left := place(t, store, mgr, pipe(0, 0, 10))
	right := place(t, store, mgr, pipe(2, 0, 10))
	leftID, _ := reg.Lookup(left)
	rightID, _ := reg.Lookup(right)
	if leftID == rightID {
		t.Fatal("setup: pipes should start in different networks")
	}

	middle := place(t, store, mgr, pipe(1, 0, 10))

	want := leftID
	if rightID < want {
		want = rightID
	}
	for _, h := range []entity.Handle{left, middle, right} {
		got, _ := reg.Lookup(h)
		if got != want {
			t.Errorf("handle %d in network %d, want canonical %d", h, got, want)
		}
	}
	if reg.Count() != 1 {
		t.Errorf("network count = %d, want 1", reg.Count())
	}
}

func TestPlaceRespectsAdjacencySides(t *testing.T) {
	store, reg, mgr := newTestWorld(t)

	// A pipe that only connects east cannot join through its north side.
	east := &entity.Participant{
		Position:  entity.Position{X: 0, Y: 0},
		Adjacency: entity.Sides(entity.East),
	}
	h1 := place(t, store, mgr, east)
	h2 := place(t, store, mgr, pipe(0, 1, 10)) // south of h1

	id1, _ := reg.Lookup(h1)
	id2, _ := reg.Lookup(h2)
	if id1 == id2 {
		t.Fatal("participants joined through an unexposed side")
	}

	// Connecting through the exposed east side works.
	h3 := place(t, store, mgr, pipe(1, 0, 10))
	id3, _ := reg.Lookup(h3)
	if id1 != id3 {
		t.Fatal("participants failed to join through exposed sides")
	}
}

func TestPlaceEstablishesKindFromLoadedFluid(t *testing.T) {
	store, reg, mgr := newTestWorld(t)

	h := place(t, store, mgr, filledPipe(0, 0, 10, fluid.Water, 5))
	id, _ := reg.Lookup(h)
	n, _ := reg.Network(id)

	if n.Kind != fluid.Water {
		t.Errorf("kind = %v, want water", n.Kind)
	}
	if n.TotalFluid != 5 {
		t.Errorf("total fluid = %v, want 5", n.TotalFluid)
	}
}

func TestPlaceJoinRejectedOnKindConflict(t *testing.T) {
	store, reg, mgr := newTestWorld(t)

	water := place(t, store, mgr, filledPipe(0, 0, 10, fluid.Water, 5))
	oil := place(t, store, mgr, filledPipe(1, 0, 10, fluid.CrudeOil, 3))

	waterID, _ := reg.Lookup(water)
	oilID, _ := reg.Lookup(oil)
	if waterID == oilID {
		t.Fatal("conflicting loaded pipe joined the network anyway")
	}
	wn, _ := reg.Network(waterID)
	on, _ := reg.Network(oilID)
	if wn.Kind != fluid.Water || on.Kind != fluid.CrudeOil {
		t.Errorf("kinds = %v/%v, want water/crude-oil", wn.Kind, on.Kind)
	}
}

func TestRemoveSplitsAndKeepsIDOnLargest(t *testing.T) {
	store, reg, mgr := newTestWorld(t)

	// Line of five pipes; removing index 3 leaves components of 3 and 1.
	var handles []entity.Handle
	for x := 0; x < 5; x++ {
		handles = append(handles, place(t, store, mgr, pipe(x, 0, 10)))
	}
	origID, _ := reg.Lookup(handles[0])

	if err := mgr.Remove(handles[3]); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	store.Delete(handles[3])

	bigID, _ := reg.Lookup(handles[0])
	if bigID != origID {
		t.Errorf("largest component id = %d, want original %d", bigID, origID)
	}
	for _, h := range handles[:3] {
		if got, _ := reg.Lookup(h); got != origID {
			t.Errorf("handle %d in network %d, want %d", h, got, origID)
		}
	}
	smallID, _ := reg.Lookup(handles[4])
	if smallID == origID {
		t.Error("detached component kept the original id")
	}
	if reg.Count() != 2 {
		t.Errorf("network count = %d, want 2", reg.Count())
	}
}

func TestRemoveDoesNotMoveFluid(t *testing.T) {
	store, reg, mgr := newTestWorld(t)

	a := place(t, store, mgr, filledPipe(0, 0, 10, fluid.Water, 4))
	b := place(t, store, mgr, filledPipe(1, 0, 10, fluid.Water, 2))
	c := place(t, store, mgr, filledPipe(2, 0, 10, fluid.Water, 6))

	if err := mgr.Remove(b); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	store.Delete(b)

	aID, _ := reg.Lookup(a)
	cID, _ := reg.Lookup(c)
	an, _ := reg.Network(aID)
	cn, _ := reg.Network(cID)
	if an.TotalFluid != 4 {
		t.Errorf("a-side fluid = %v, want 4", an.TotalFluid)
	}
	if cn.TotalFluid != 6 {
		t.Errorf("c-side fluid = %v, want 6", cn.TotalFluid)
	}
}

func TestRemoveLastMemberDropsNetwork(t *testing.T) {
	store, reg, mgr := newTestWorld(t)

	h := place(t, store, mgr, pipe(0, 0, 10))
	id, _ := reg.Lookup(h)

	if err := mgr.Remove(h); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, ok := reg.Network(id); ok {
		t.Error("empty network survived removal")
	}
	if reg.Count() != 0 {
		t.Errorf("network count = %d, want 0", reg.Count())
	}
}

func TestBridgeDeferredBetweenDifferentKinds(t *testing.T) {
	store, reg, mgr := newTestWorld(t)

	water := place(t, store, mgr, filledPipe(0, 0, 10, fluid.Water, 5))
	oil := place(t, store, mgr, filledPipe(2, 0, 10, fluid.CrudeOil, 5))
	bridge := place(t, store, mgr, pipe(1, 0, 10))

	waterID, _ := reg.Lookup(water)
	oilID, _ := reg.Lookup(oil)
	bridgeID, _ := reg.Lookup(bridge)
	if waterID == oilID || waterID == bridgeID || oilID == bridgeID {
		t.Fatal("differently-typed networks merged instantly")
	}
	if !reg.IsBridge(bridge) {
		t.Fatal("bridging participant not recorded")
	}
	bn, _ := reg.Network(bridgeID)
	if bn.Established() {
		t.Error("bridge network should stay unestablished")
	}
}

func TestBridgeClaimedByLowestSideWithFluid(t *testing.T) {
	store, reg, mgr := newTestWorld(t)

	water := place(t, store, mgr, filledPipe(0, 0, 10, fluid.Water, 5))
	oil := place(t, store, mgr, filledPipe(2, 0, 10, fluid.CrudeOil, 5))
	bridge := place(t, store, mgr, pipe(1, 0, 10))
	waterID, _ := reg.Lookup(water)
	oilID, _ := reg.Lookup(oil)

	mgr.ResolveBridges()

	// Water holds the lower network id, so it claims the bridge; the oil
	// side stays its own network.
	gotBridge, _ := reg.Lookup(bridge)
	if gotBridge != waterID {
		t.Errorf("bridge in network %d, want claimer %d", gotBridge, waterID)
	}
	if reg.IsBridge(bridge) {
		t.Error("claimed bridge still recorded as pending")
	}
	if gotOil, _ := reg.Lookup(oil); gotOil != oilID {
		t.Errorf("oil network changed id to %d", gotOil)
	}
	wn, _ := reg.Network(waterID)
	if wn.Size() != 2 || wn.TotalFluid != 5 {
		t.Errorf("claimer network size=%d fluid=%v, want 2 and 5", wn.Size(), wn.TotalFluid)
	}
}

func TestBridgeClaimFoldsCompatibleSide(t *testing.T) {
	store, reg, mgr := newTestWorld(t)

	// Established water on one side, empty unestablished pipe on the other.
	water := place(t, store, mgr, filledPipe(0, 0, 10, fluid.Water, 5))
	empty := place(t, store, mgr, pipe(2, 0, 10))
	bridge := place(t, store, mgr, pipe(1, 0, 10))

	waterID, _ := reg.Lookup(water)
	emptyID, _ := reg.Lookup(empty)
	if waterID == emptyID {
		t.Fatal("setup: sides should differ before the claim")
	}

	mgr.ResolveBridges()

	for _, h := range []entity.Handle{water, bridge, empty} {
		if got, _ := reg.Lookup(h); got != waterID {
			t.Errorf("handle %d in network %d, want %d", h, got, waterID)
		}
	}
	n, _ := reg.Network(waterID)
	if n.TotalCapacity != 30 || n.TotalFluid != 5 {
		t.Errorf("merged network cap=%v fluid=%v, want 30 and 5", n.TotalCapacity, n.TotalFluid)
	}
	if n.Kind != fluid.Water {
		t.Errorf("merged kind = %v, want water", n.Kind)
	}
}

func TestBridgeUnclaimedWithoutFluid(t *testing.T) {
	store, reg, mgr := newTestWorld(t)

	// Two established but empty-adjacent kinds cannot claim anything.
	place(t, store, mgr, filledPipe(0, 0, 10, fluid.Water, 5))
	place(t, store, mgr, filledPipe(2, 0, 10, fluid.CrudeOil, 5))
	bridge := place(t, store, mgr, pipe(1, 0, 10))

	// Drain both sides before resolution.
	store.ForEach(func(h entity.Handle, p *entity.Participant) bool {
		if h != bridge {
			p.Amount = 0
			p.ClampAmount()
		}
		return true
	})
	for _, id := range reg.IDs() {
		n, _ := reg.Network(id)
		recomputeForTest(reg, store, n)
	}

	mgr.ResolveBridges()

	if !reg.IsBridge(bridge) {
		t.Error("bridge resolved with no fluid on either side")
	}
}

// recomputeForTest rewrites aggregates after tests mutate amounts directly.
func recomputeForTest(reg *Registry, store *entity.MapStore, n *Network) {
	reg.recomputeAggregates(n, store)
}

func TestSplitBudgetDefersAndResumes(t *testing.T) {
	store := entity.NewMapStore()
	reg := NewRegistry()
	mgr := NewManager(store, reg, ManagerConfig{TraversalBudget: 8})

	var handles []entity.Handle
	for x := 0; x < 40; x++ {
		h := store.Create(pipe(x, 0, 10))
		handles = append(handles, h)
		if err := mgr.Place(h); err != nil {
			t.Fatalf("Place failed: %v", err)
		}
	}
	origID, _ := reg.Lookup(handles[0])

	mgr.ResetBudget()
	if err := mgr.Remove(handles[20]); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	store.Delete(handles[20])

	n, _ := reg.Network(origID)
	if !n.Pending {
		t.Fatal("oversized split should defer under a budget of 8")
	}
	if !mgr.HasPending() {
		t.Fatal("manager should report pending work")
	}

	// Resume with a fresh budget each simulated tick until finalized.
	for i := 0; i < 20 && mgr.HasPending(); i++ {
		mgr.ResetBudget()
		mgr.ResumePending()
	}
	if mgr.HasPending() {
		t.Fatal("split never completed")
	}
	if n.Pending {
		t.Error("network still marked pending after completion")
	}
	if reg.Count() != 2 {
		t.Errorf("network count = %d, want 2", reg.Count())
	}
	leftID, _ := reg.Lookup(handles[0])
	rightID, _ := reg.Lookup(handles[39])
	if leftID == rightID {
		t.Error("components share a network after the split")
	}
}

func TestRebuildRediscoversComponents(t *testing.T) {
	store, reg, mgr := newTestWorld(t)

	a1 := place(t, store, mgr, filledPipe(0, 0, 10, fluid.Water, 3))
	a2 := place(t, store, mgr, pipe(1, 0, 10))
	b1 := place(t, store, mgr, filledPipe(5, 5, 10, fluid.Steam, 2))

	mgr.Rebuild()

	aID, ok := reg.Lookup(a1)
	if !ok {
		t.Fatal("rebuild lost a participant")
	}
	if got, _ := reg.Lookup(a2); got != aID {
		t.Error("rebuild separated connected pipes")
	}
	bID, _ := reg.Lookup(b1)
	if bID == aID {
		t.Error("rebuild merged disconnected components")
	}

	an, _ := reg.Network(aID)
	bn, _ := reg.Network(bID)
	if an.Kind != fluid.Water || an.TotalFluid != 3 {
		t.Errorf("component A kind=%v fluid=%v, want water/3", an.Kind, an.TotalFluid)
	}
	if bn.Kind != fluid.Steam || bn.TotalFluid != 2 {
		t.Errorf("component B kind=%v fluid=%v, want steam/2", bn.Kind, bn.TotalFluid)
	}
}

func TestRebuildKeepsKindBoundaries(t *testing.T) {
	store, reg, mgr := newTestWorld(t)

	water := place(t, store, mgr, filledPipe(0, 0, 10, fluid.Water, 5))
	oil := place(t, store, mgr, filledPipe(1, 0, 10, fluid.CrudeOil, 4))
	if reg.Count() != 2 {
		t.Fatalf("setup: network count = %d, want 2", reg.Count())
	}

	mgr.Rebuild()

	waterID, _ := reg.Lookup(water)
	oilID, _ := reg.Lookup(oil)
	if waterID == oilID {
		t.Fatal("rebuild fused adjacent networks of different kinds")
	}
	wn, _ := reg.Network(waterID)
	on, _ := reg.Network(oilID)
	if wn.Kind != fluid.Water || wn.TotalFluid != 5 {
		t.Errorf("water side kind=%v fluid=%v, want water/5", wn.Kind, wn.TotalFluid)
	}
	if on.Kind != fluid.CrudeOil || on.TotalFluid != 4 {
		t.Errorf("oil side kind=%v fluid=%v, want crude-oil/4", on.Kind, on.TotalFluid)
	}
}

func TestRebuildAttachesEmptyMiddleToFirstSeed(t *testing.T) {
	store, reg, mgr := newTestWorld(t)

	water := place(t, store, mgr, filledPipe(0, 0, 10, fluid.Water, 5))
	oil := place(t, store, mgr, filledPipe(2, 0, 10, fluid.CrudeOil, 4))
	middle := place(t, store, mgr, pipe(1, 0, 10))

	mgr.Rebuild()

	// Seeds flood in ascending handle order, so the empty middle belongs
	// to the water side and the oil pipe stands alone.
	waterID, _ := reg.Lookup(water)
	middleID, _ := reg.Lookup(middle)
	oilID, _ := reg.Lookup(oil)
	if middleID != waterID {
		t.Errorf("middle in network %d, want water side %d", middleID, waterID)
	}
	if oilID == waterID {
		t.Fatal("rebuild fused across the oil pipe")
	}
	wn, _ := reg.Network(waterID)
	on, _ := reg.Network(oilID)
	if wn.Size() != 2 || wn.Kind != fluid.Water || wn.TotalFluid != 5 {
		t.Errorf("water side size=%d kind=%v fluid=%v, want 2/water/5",
			wn.Size(), wn.Kind, wn.TotalFluid)
	}
	if on.Size() != 1 || on.Kind != fluid.CrudeOil || on.TotalFluid != 4 {
		t.Errorf("oil side size=%d kind=%v fluid=%v, want 1/crude-oil/4",
			on.Size(), on.Kind, on.TotalFluid)
	}
}

func TestPlaceRejectsOccupiedTile(t *testing.T) {
	store, reg, mgr := newTestWorld(t)

	first := place(t, store, mgr, pipe(0, 0, 10))

	second := store.Create(pipe(0, 0, 25))
	err := mgr.Place(second)
	if !errors.Is(err, ErrTileOccupied) {
		t.Fatalf("error = %v, want ErrTileOccupied", err)
	}
	if _, placed := reg.Lookup(second); placed {
		t.Error("rejected participant entered the topology")
	}
	if got, _ := reg.At(entity.Position{X: 0, Y: 0}); got != first {
		t.Errorf("tile owner = %d, want %d", got, first)
	}
	if reg.Count() != 1 {
		t.Errorf("network count = %d, want 1", reg.Count())
	}
}

func TestPlaceUnknownHandle(t *testing.T) {
	_, _, mgr := newTestWorld(t)
	err := mgr.Place(entity.Handle(99))
	if err == nil {
		t.Fatal("expected error for unknown handle")
	}
	var te *TopologyError
	if !errors.As(err, &te) {
		t.Fatalf("error type = %T, want *TopologyError", err)
	}
	if te.Op != "place" {
		t.Errorf("op = %q, want place", te.Op)
	}
	if !errors.Is(err, entity.ErrUnknownHandle) {
		t.Error("cause should be ErrUnknownHandle")
	}
}
