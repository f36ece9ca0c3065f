// Package entity defines the participant model of the fluid network engine:
// opaque entity handles, tile positions and directions, capability records,
// and the component-store contract the engine depends on.
//
// The engine never holds object-graph references between participants; every
// relationship goes through a Handle keyed into a Store, which sidesteps
// lifetime and cycle concerns entirely.
package entity

// Handle is an opaque identifier for a participant. Handle 0 is never
// allocated and acts as the "no entity" sentinel.
type Handle uint64

// NoHandle is the sentinel returned when no entity matches.
const NoHandle Handle = 0

// Position is a tile coordinate on the factory grid.
type Position struct {
	X, Y int
}

// Direction is one of the four sides of a tile.
type Direction uint8

const (
	North Direction = iota
	East
	South
	West
)

// directionNames is used by snapshots and logging.
var directionNames = [...]string{"north", "east", "south", "west"}

// String returns the lowercase name of the direction.
func (d Direction) String() string {
	if int(d) < len(directionNames) {
		return directionNames[d]
	}
	return "invalid"
}

// Offset returns the tile delta one step in the direction.
func (d Direction) Offset() (dx, dy int) {
	switch d {
	case North:
		return 0, -1
	case East:
		return 1, 0
	case South:
		return 0, 1
	case West:
		return -1, 0
	}
	return 0, 0
}

// Opposite returns the facing direction, used to check that a neighbor
// exposes a matching connection side.
func (d Direction) Opposite() Direction {
	switch d {
	case North:
		return South
	case East:
		return West
	case South:
		return North
	case West:
		return East
	}
	return d
}

// Directions returns all four directions in a fixed order.
func Directions() [4]Direction {
	return [4]Direction{North, East, South, West}
}

// ParseDirection converts a direction name back to a Direction.
func ParseDirection(s string) (Direction, bool) {
	for i, name := range directionNames {
		if name == s {
			return Direction(i), true
		}
	}
	return North, false
}

// Shifted returns the position one tile away in the direction.
func (p Position) Shifted(d Direction) Position {
	dx, dy := d.Offset()
	return Position{X: p.X + dx, Y: p.Y + dy}
}
