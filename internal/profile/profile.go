package profile

import (
	"fmt"
	"path"
	"strconv"
	"strings"

	"codeberg.org/mutker/tdpctl/internal/hardware"
)

// Profile is a named set of limits. Power values are in watts, SkinTemp in
// degrees Celsius. A zero value leaves that field untouched.
type Profile struct {
	Name      string  `json:"name"`
	Sustained float64 `json:"sustained,omitempty"`
	Fast      float64 `json:"fast,omitempty"`
	Slow      float64 `json:"slow,omitempty"`
	SkinTemp  float64 `json:"skin_temp,omitempty"`
}

// Value returns the configured value of f, if any.
func (p Profile) Value(f hardware.Field) (float64, bool) {
	var v float64

	switch f {
	case hardware.Sustained:
		v = p.Sustained
	case hardware.Fast:
		v = p.Fast
	case hardware.Slow:
		v = p.Slow
	case hardware.SkinTemp:
		v = p.SkinTemp
	}

	return v, v > 0
}

// IsZero reports whether p is the empty profile.
func (p Profile) IsZero() bool {
	return p == Profile{}
}

// Manual returns the synthetic profile used for an ad-hoc watt override.
func Manual(watts float64) Profile {
	return Profile{
		Name:      "Manual " + strconv.FormatFloat(watts, 'f', -1, 64) + "W",
		Sustained: watts,
		Fast:      watts,
		Slow:      watts,
	}
}

// FromLimits converts register values to a profile named name.
func FromLimits(name string, l hardware.Limits) Profile {
	p := Profile{Name: name}

	for _, f := range l.Fields() {
		v, _ := l.Get(f)
		switch f {
		case hardware.Sustained:
			p.Sustained = hardware.Watts(v)
		case hardware.Fast:
			p.Fast = hardware.Watts(v)
		case hardware.Slow:
			p.Slow = hardware.Watts(v)
		case hardware.SkinTemp:
			p.SkinTemp = float64(v)
		}
	}

	return p
}

// Range bounds a field: watts for power fields, °C for SkinTemp.
type Range struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// Contains reports whether v lies within the range, inclusive.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// DeviceCapability lists the fields a processor model honors and their
// valid ranges. A field missing from Fields is unsupported.
type DeviceCapability struct {
	ID     string                    `json:"id"`
	Fields map[hardware.Field]Range `json:"-"`
}

// Supports returns the range of f and whether the device honors it.
func (c DeviceCapability) Supports(f hardware.Field) (Range, bool) {
	r, ok := c.Fields[f]
	return r, ok
}

// Trigger maps a process image pattern to a profile name. The profile is
// resolved by name at lookup time.
type Trigger struct {
	Pattern  string `yaml:"pattern" json:"pattern"`
	Profile  string `yaml:"profile" json:"profile"`
	Priority int    `yaml:"priority" json:"priority"`
}

// Key identifies the trigger within a catalog. Patterns are unique up to
// case and path separators.
func (t Trigger) Key() string {
	return normalizeImage(t.Pattern)
}

func (t Trigger) String() string {
	return fmt.Sprintf("%s->%s", t.Pattern, t.Profile)
}

// Matches reports whether the process image matches the trigger pattern.
// Matching is case-insensitive. Patterns without a slash are matched
// against the executable name. Patterns with a slash are matched against
// the whole path and against every trailing run of path elements, so
// "steamapps/common/*/*" matches any install location.
func (t Trigger) Matches(image string) bool {
	pattern := normalizeImage(t.Pattern)
	target := normalizeImage(image)
	if target == "" {
		return false
	}

	if !strings.Contains(pattern, "/") {
		return match(pattern, path.Base(target))
	}

	for {
		if match(pattern, target) {
			return true
		}

		i := strings.IndexByte(target, '/')
		if i < 0 {
			return false
		}
		target = target[i+1:]
	}
}

func match(pattern, name string) bool {
	ok, err := path.Match(pattern, name)
	return err == nil && ok
}

func normalizeImage(s string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), `\`, "/"))
}
