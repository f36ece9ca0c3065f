// Package fluid defines the value types shared by the fluid network engine:
// fluid kinds with their fixed physical properties, and bounded quantities.
package fluid

import "fmt"

// Kind identifies a fluid type. The zero value KindNone means "no fluid" and
// is used for networks that have not yet established a transported kind.
type Kind uint8

const (
	KindNone Kind = iota
	Water
	CrudeOil
	PetroleumGas
	LightOil
	HeavyOil
	Steam
)

// Properties holds the fixed physical properties of a fluid kind.
// Properties are immutable and shared by value.
type Properties struct {
	Density        float64 // kg per liter
	Viscosity      float64 // relative to water = 1.0
	ReferenceTempC float64 // degrees Celsius at standard conditions
	EnergyKJPerL   float64 // fuel value, 0 for inert fluids
}

// properties is the fixed lookup table for all known kinds.
var properties = map[Kind]Properties{
	Water:        {Density: 1.00, Viscosity: 1.0, ReferenceTempC: 15, EnergyKJPerL: 0},
	CrudeOil:     {Density: 0.87, Viscosity: 8.5, ReferenceTempC: 25, EnergyKJPerL: 38000},
	PetroleumGas: {Density: 0.45, Viscosity: 0.2, ReferenceTempC: 25, EnergyKJPerL: 46000},
	LightOil:     {Density: 0.81, Viscosity: 3.2, ReferenceTempC: 25, EnergyKJPerL: 42000},
	HeavyOil:     {Density: 0.94, Viscosity: 12.0, ReferenceTempC: 25, EnergyKJPerL: 40000},
	Steam:        {Density: 0.0006, Viscosity: 0.1, ReferenceTempC: 165, EnergyKJPerL: 2.4},
}

// kindNames maps kinds to their canonical string form, used by snapshots,
// configuration, and logging.
var kindNames = map[Kind]string{
	KindNone:     "none",
	Water:        "water",
	CrudeOil:     "crude-oil",
	PetroleumGas: "petroleum-gas",
	LightOil:     "light-oil",
	HeavyOil:     "heavy-oil",
	Steam:        "steam",
}

// String returns the canonical name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Valid reports whether k names an actual fluid (KindNone is not valid).
func (k Kind) Valid() bool {
	_, ok := properties[k]
	return ok
}

// Properties returns the physical properties of the kind. Unknown kinds and
// KindNone return the zero Properties.
func (k Kind) Properties() Properties {
	return properties[k]
}

// Kinds returns all valid fluid kinds in declaration order.
func Kinds() []Kind {
	return []Kind{Water, CrudeOil, PetroleumGas, LightOil, HeavyOil, Steam}
}

// ParseKind converts a canonical kind name back to a Kind. The inverse of
// String for all valid kinds and for "none".
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return KindNone, fmt.Errorf("unknown fluid kind %q", s)
}
