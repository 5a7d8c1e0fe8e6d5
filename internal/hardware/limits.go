package hardware

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Field identifies one controllable limit.
type Field uint8

const (
	// Sustained is the long-term package power limit (STAPM / PL1).
	Sustained Field = iota
	// Fast is the short boost power limit (PPT fast / PL2).
	Fast
	// Slow is the slow boost power limit (PPT slow).
	Slow
	// SkinTemp is the skin temperature limit in degrees Celsius.
	SkinTemp

	fieldCount
)

var fieldNames = [fieldCount]string{"sustained", "fast", "slow", "skin_temp"}

// AllFields lists every Field in register order.
var AllFields = []Field{Sustained, Fast, Slow, SkinTemp}

func (f Field) String() string {
	if f < fieldCount {
		return fieldNames[f]
	}
	return fmt.Sprintf("field(%d)", uint8(f))
}

// IsPower reports whether the field is a power limit (milliwatts) rather
// than a temperature.
func (f Field) IsPower() bool {
	return f != SkinTemp
}

// ParseField converts a catalog field name into a Field.
func ParseField(name string) (Field, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range fieldNames {
		if n == name {
			return Field(i), true
		}
	}
	return 0, false
}

// Limits is a validated set of register values: power fields in milliwatts,
// SkinTemp in degrees Celsius. Unset fields are left untouched by drivers.
// The zero value sets nothing. Limits is comparable with ==.
type Limits struct {
	values [fieldCount]uint32
	set    uint8
}

// With returns a copy of l with f set to v.
func (l Limits) With(f Field, v uint32) Limits {
	if f >= fieldCount {
		return l
	}
	l.values[f] = v
	l.set |= 1 << f
	return l
}

// Without returns a copy of l with f unset.
func (l Limits) Without(f Field) Limits {
	if f >= fieldCount {
		return l
	}
	l.values[f] = 0
	l.set &^= 1 << f
	return l
}

// Get returns the value of f and whether it is set.
func (l Limits) Get(f Field) (uint32, bool) {
	if f >= fieldCount || l.set&(1<<f) == 0 {
		return 0, false
	}
	return l.values[f], true
}

// Has reports whether f is set.
func (l Limits) Has(f Field) bool {
	_, ok := l.Get(f)
	return ok
}

// Empty reports whether no field is set.
func (l Limits) Empty() bool {
	return l.set == 0
}

// Merge returns l overlaid with every field set in o.
func (l Limits) Merge(o Limits) Limits {
	for _, f := range o.Fields() {
		v, _ := o.Get(f)
		l = l.With(f, v)
	}
	return l
}

// Covers reports whether every field set in o is set in l with the same
// value.
func (l Limits) Covers(o Limits) bool {
	for _, f := range o.Fields() {
		want, _ := o.Get(f)
		if got, ok := l.Get(f); !ok || got != want {
			return false
		}
	}
	return true
}

// Fields returns the set fields in register order.
func (l Limits) Fields() []Field {
	fields := make([]Field, 0, fieldCount)
	for _, f := range AllFields {
		if l.Has(f) {
			fields = append(fields, f)
		}
	}
	return fields
}

func (l Limits) String() string {
	if l.Empty() {
		return "{}"
	}

	parts := make([]string, 0, fieldCount)
	for _, f := range l.Fields() {
		v, _ := l.Get(f)
		if f.IsPower() {
			parts = append(parts, fmt.Sprintf("%s=%.3fW", f, float64(v)/milliWattsPerWatt))
		} else {
			parts = append(parts, fmt.Sprintf("%s=%dC", f, v))
		}
	}
	return "{" + strings.Join(parts, " ") + "}"
}

// MarshalJSON renders power fields in watts and the temperature in °C.
func (l Limits) MarshalJSON() ([]byte, error) {
	out := make(map[string]float64, fieldCount)
	for _, f := range l.Fields() {
		v, _ := l.Get(f)
		if f.IsPower() {
			out[f.String()] = float64(v) / milliWattsPerWatt
		} else {
			out[f.String()] = float64(v)
		}
	}
	return json.Marshal(out)
}

const milliWattsPerWatt = 1000

// MilliWatts converts watts to the register unit, rounding to the nearest
// milliwatt. Negative input yields zero.
func MilliWatts(watts float64) uint32 {
	if watts <= 0 {
		return 0
	}
	return uint32(watts*milliWattsPerWatt + 0.5)
}

// Watts converts a register value back to watts.
func Watts(milliWatts uint32) float64 {
	return float64(milliWatts) / milliWattsPerWatt
}
