package entity

import "errors"

// ErrUnknownHandle indicates a lookup against a handle the store has never
// allocated or has since released.
var ErrUnknownHandle = errors.New("unknown entity handle")

// Store is the component-store contract the engine depends on. The
// surrounding game supplies its own implementation; MapStore below is the
// in-memory one used by tests and the demo binaries.
//
// The engine is single-threaded: all Store calls happen on the simulation
// tick's owning goroutine, so implementations need no internal locking.
type Store interface {
	// Create allocates a fresh handle for the participant and stores it.
	Create(p *Participant) Handle
	// Get returns the participant record for a handle, or false if the
	// handle is unknown.
	Get(h Handle) (*Participant, bool)
	// Put installs or replaces the record for a handle.
	Put(h Handle, p *Participant)
	// Delete releases a handle and its record.
	Delete(h Handle)
	// Len returns the number of live participants.
	Len() int
	// ForEach visits every live participant until fn returns false.
	// Iteration order is unspecified.
	ForEach(fn func(Handle, *Participant) bool)
}

// PowerProbe answers the activation precondition for producers and pumps.
// The engine only ever queries it; power and fuel state is owned elsewhere.
type PowerProbe interface {
	Powered(h Handle) bool
}

// AlwaysPowered is the default probe: every producer may run every tick.
type AlwaysPowered struct{}

// Powered implements PowerProbe.
func (AlwaysPowered) Powered(Handle) bool { return true }

// MapStore is a map-backed Store that also allocates handles.
type MapStore struct {
	next         Handle
	participants map[Handle]*Participant
}

// NewMapStore returns an empty store. The first allocated handle is 1;
// handle 0 stays reserved as the sentinel.
func NewMapStore() *MapStore {
	return &MapStore{
		next:         1,
		participants: make(map[Handle]*Participant),
	}
}

// Create allocates a fresh handle for the participant and stores it.
func (s *MapStore) Create(p *Participant) Handle {
	h := s.next
	s.next++
	s.participants[h] = p
	return h
}

// Get implements Store.
func (s *MapStore) Get(h Handle) (*Participant, bool) {
	p, ok := s.participants[h]
	return p, ok
}

// Put implements Store.
func (s *MapStore) Put(h Handle, p *Participant) {
	s.participants[h] = p
	if h >= s.next {
		s.next = h + 1
	}
}

// Delete implements Store.
func (s *MapStore) Delete(h Handle) {
	delete(s.participants, h)
}

// Len implements Store.
func (s *MapStore) Len() int { return len(s.participants) }

// ForEach implements Store.
func (s *MapStore) ForEach(fn func(Handle, *Participant) bool) {
	for h, p := range s.participants {
		if !fn(h, p) {
			return
		}
	}
}
