package entity

import "github.com/dd0wney/fluidnet/pkg/fluid"

// ProductionSpec describes a producer or pump capability.
type ProductionSpec struct {
	Kind          fluid.Kind
	RatePerSecond float64
}

// ConsumptionSpec describes a consumer capability. Efficiency scales the
// nominal rate; 1.0 means the consumer draws its full rated demand.
type ConsumptionSpec struct {
	Kind          fluid.Kind
	RatePerSecond float64
	Efficiency    float64
}

// Participant is the uniform capability record for anything that can hold or
// move fluid. Pipes and tanks carry a Capacity; producers and pumps carry a
// Production; consumers carry a Consumption. The topology and flow code
// dispatch on field presence only, never on an entity type.
type Participant struct {
	Position  Position
	Adjacency map[Direction]bool

	Capacity    *float64
	Production  *ProductionSpec
	Consumption *ConsumptionSpec

	// Content and Amount are the fluid currently held. Content stays
	// KindNone while Amount is zero.
	Content fluid.Kind
	Amount  float64
}

// HasCapacity reports whether the participant can store fluid.
func (p *Participant) HasCapacity() bool {
	return p.Capacity != nil && *p.Capacity > 0
}

// CapacityValue returns the storage capacity, 0 for non-storing participants.
func (p *Participant) CapacityValue() float64 {
	if p.Capacity == nil {
		return 0
	}
	return *p.Capacity
}

// IsProducer reports whether the participant injects fluid.
func (p *Participant) IsProducer() bool { return p.Production != nil }

// IsConsumer reports whether the participant draws fluid.
func (p *Participant) IsConsumer() bool { return p.Consumption != nil }

// ConnectsTo reports whether the participant exposes the given side.
func (p *Participant) ConnectsTo(d Direction) bool {
	return p.Adjacency[d]
}

// ClampAmount restores 0 <= Amount <= capacity and clears Content when the
// participant runs dry.
func (p *Participant) ClampAmount() {
	q := fluid.Quantity{Kind: p.Content, Amount: p.Amount, Capacity: p.CapacityValue()}
	q.Clamp()
	p.Amount = q.Amount
	if p.Amount == 0 {
		p.Content = fluid.KindNone
	}
}

// Clone returns a deep copy of the participant, used by snapshot round-trips
// and by tests that compare before/after states.
func (p *Participant) Clone() *Participant {
	c := *p
	c.Adjacency = make(map[Direction]bool, len(p.Adjacency))
	for d, ok := range p.Adjacency {
		c.Adjacency[d] = ok
	}
	if p.Capacity != nil {
		v := *p.Capacity
		c.Capacity = &v
	}
	if p.Production != nil {
		v := *p.Production
		c.Production = &v
	}
	if p.Consumption != nil {
		v := *p.Consumption
		c.Consumption = &v
	}
	return &c
}

// AllSides is a convenience adjacency set exposing every direction, the
// default for plain pipes and tanks.
func AllSides() map[Direction]bool {
	return map[Direction]bool{North: true, East: true, South: true, West: true}
}

// Sides builds an adjacency set from the listed directions.
func Sides(dirs ...Direction) map[Direction]bool {
	m := make(map[Direction]bool, len(dirs))
	for _, d := range dirs {
		m[d] = true
	}
	return m
}
