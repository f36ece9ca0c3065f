package logging

import "time"

// String creates a string field.
func String(key, value string) Field { return Field{Key: key, Value: value} }

// Int creates an int field.
func Int(key string, value int) Field { return Field{Key: key, Value: value} }

// Uint64 creates a uint64 field.
func Uint64(key string, value uint64) Field { return Field{Key: key, Value: value} }

// Float64 creates a float64 field.
func Float64(key string, value float64) Field { return Field{Key: key, Value: value} }

// Bool creates a bool field.
func Bool(key string, value bool) Field { return Field{Key: key, Value: value} }

// Err creates an "error" field from an error value.
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Duration creates a field carrying a duration in milliseconds.
func Duration(key string, d time.Duration) Field {
	return Field{Key: key, Value: float64(d.Microseconds()) / 1000.0}
}

// Domain-specific helpers. Handles, network IDs, and liter volumes recur in
// almost every engine log line, so they get fixed key names here.

// NetworkID creates a "network" field.
func NetworkID(id uint64) Field { return Field{Key: "network", Value: id} }

// EntityHandle creates an "entity" field.
func EntityHandle(h uint64) Field { return Field{Key: "entity", Value: h} }

// FluidKind creates a "kind" field.
func FluidKind(name string) Field { return Field{Key: "kind", Value: name} }

// Liters creates a fluid volume field.
func Liters(key string, v float64) Field { return Field{Key: key, Value: v} }

// Tick creates a "tick" field.
func Tick(n uint64) Field { return Field{Key: "tick", Value: n} }
