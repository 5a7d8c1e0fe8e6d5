package profile

import (
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"codeberg.org/mutker/tdpctl/internal/errors"
	"codeberg.org/mutker/tdpctl/internal/hardware"
	"gopkg.in/yaml.v3"
)

// DefaultOptions are the selectable TDP values offered when the catalog
// does not list its own.
var DefaultOptions = []float64{5, 7.5, 10, 15, 20, 24, 28}

// Catalog is an immutable, validated set of profiles, triggers and device
// capabilities.
type Catalog struct {
	defaultName string
	profiles    []Profile
	byName      map[string]Profile
	triggers    []Trigger
	devices     []DeviceCapability
	options     []float64
}

type catalogFile struct {
	Default  string        `yaml:"default"`
	Options  []float64     `yaml:"options"`
	Profiles []profileSpec `yaml:"profiles"`
	Triggers []Trigger     `yaml:"triggers"`
	Devices  []deviceSpec  `yaml:"devices"`
}

type profileSpec struct {
	Name      string   `yaml:"name"`
	TDP       *float64 `yaml:"tdp"`
	Sustained *float64 `yaml:"sustained"`
	Fast      *float64 `yaml:"fast"`
	Slow      *float64 `yaml:"slow"`
	SkinTemp  *float64 `yaml:"skin_temp"`
}

type deviceSpec struct {
	ID     string           `yaml:"id"`
	Fields map[string]Range `yaml:"fields"`
}

// ParseCatalog decodes and validates a YAML catalog. No partially valid
// catalog is ever returned.
func ParseCatalog(r io.Reader) (*Catalog, error) {
	errFactory := errors.New()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var raw catalogFile
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errFactory.WithData(ErrInvalidCatalog, "catalog is empty")
		}
		return nil, errFactory.Wrap(ErrReadCatalog, err)
	}

	return newCatalog(raw)
}

func newCatalog(raw catalogFile) (*Catalog, error) {
	errFactory := errors.New()
	invalid := func(format string, args ...any) error {
		return errFactory.WithData(ErrInvalidCatalog, fmt.Sprintf(format, args...))
	}

	c := &Catalog{
		defaultName: strings.TrimSpace(raw.Default),
		byName:      make(map[string]Profile, len(raw.Profiles)),
		options:     DefaultOptions,
	}

	if len(raw.Profiles) == 0 {
		return nil, invalid("catalog defines no profiles")
	}

	for i, entry := range raw.Profiles {
		p, err := entry.profile(i)
		if err != nil {
			return nil, err
		}
		if _, dup := c.byName[p.Name]; dup {
			return nil, invalid("duplicate profile %q", p.Name)
		}

		c.byName[p.Name] = p
		c.profiles = append(c.profiles, p)
	}

	if c.defaultName != "" {
		if _, ok := c.byName[c.defaultName]; !ok {
			return nil, invalid("default profile %q is not defined", c.defaultName)
		}
	}

	seen := make(map[string]bool, len(raw.Triggers))
	for i, t := range raw.Triggers {
		t.Pattern = strings.TrimSpace(t.Pattern)
		if t.Pattern == "" {
			return nil, invalid("trigger %d: pattern is required", i)
		}
		if _, err := path.Match(normalizeImage(t.Pattern), ""); err != nil {
			return nil, invalid("trigger %q: %v", t.Pattern, err)
		}
		if _, ok := c.byName[t.Profile]; !ok {
			return nil, invalid("trigger %q references unknown profile %q", t.Pattern, t.Profile)
		}

		key := normalizeImage(t.Pattern)
		if seen[key] {
			return nil, invalid("duplicate trigger pattern %q", t.Pattern)
		}
		seen[key] = true

		c.triggers = append(c.triggers, t)
	}

	// Higher priority first; configured order breaks ties.
	sort.SliceStable(c.triggers, func(i, j int) bool {
		return c.triggers[i].Priority > c.triggers[j].Priority
	})

	for i, d := range raw.Devices {
		capability, err := d.capability(i)
		if err != nil {
			return nil, err
		}
		c.devices = append(c.devices, capability)
	}

	if len(raw.Options) > 0 {
		c.options = make([]float64, 0, len(raw.Options))
		for _, w := range raw.Options {
			if w <= 0 {
				return nil, invalid("option %v must be positive", w)
			}
			c.options = append(c.options, w)
		}
		sort.Float64s(c.options)
	}

	return c, nil
}

func (s profileSpec) profile(index int) (Profile, error) {
	errFactory := errors.New()

	p := Profile{Name: strings.TrimSpace(s.Name)}
	if p.Name == "" {
		return p, errFactory.WithData(ErrInvalidCatalog, fmt.Sprintf("profile %d: name is required", index))
	}

	if s.TDP != nil {
		p.Sustained, p.Fast, p.Slow = *s.TDP, *s.TDP, *s.TDP
	}

	fields := []struct {
		name string
		src  *float64
		dst  *float64
	}{
		{"sustained", s.Sustained, &p.Sustained},
		{"fast", s.Fast, &p.Fast},
		{"slow", s.Slow, &p.Slow},
		{"skin_temp", s.SkinTemp, &p.SkinTemp},
	}

	for _, f := range fields {
		if f.src != nil {
			*f.dst = *f.src
		}
		if *f.dst < 0 || (f.src != nil && *f.src == 0) {
			return p, errFactory.WithData(ErrInvalidCatalog,
				fmt.Sprintf("profile %q: %s must be positive", p.Name, f.name))
		}
	}

	if p.Sustained == 0 && p.Fast == 0 && p.Slow == 0 && p.SkinTemp == 0 {
		return p, errFactory.WithData(ErrInvalidCatalog, fmt.Sprintf("profile %q: no limits set", p.Name))
	}

	return p, nil
}

func (d deviceSpec) capability(index int) (DeviceCapability, error) {
	errFactory := errors.New()

	c := DeviceCapability{
		ID:     strings.TrimSpace(d.ID),
		Fields: make(map[hardware.Field]Range, len(d.Fields)),
	}
	if c.ID == "" {
		return c, errFactory.WithData(ErrInvalidCatalog, fmt.Sprintf("device %d: id is required", index))
	}

	for name, r := range d.Fields {
		f, ok := hardware.ParseField(name)
		if !ok {
			return c, errFactory.WithData(ErrInvalidCatalog,
				fmt.Sprintf("device %q: unknown field %q", c.ID, name))
		}
		if r.Min <= 0 || r.Min > r.Max {
			return c, errFactory.WithData(ErrInvalidCatalog,
				fmt.Sprintf("device %q: invalid %s range [%v, %v]", c.ID, name, r.Min, r.Max))
		}
		c.Fields[f] = r
	}

	return c, nil
}

// Profiles returns the profiles in configured order.
func (c *Catalog) Profiles() []Profile {
	return append([]Profile(nil), c.profiles...)
}

// Triggers returns the triggers in match order.
func (c *Catalog) Triggers() []Trigger {
	return append([]Trigger(nil), c.triggers...)
}

// Options returns the selectable TDP values in watts, ascending.
func (c *Catalog) Options() []float64 {
	return append([]float64(nil), c.options...)
}

// DefaultName returns the name of the default profile, or "".
func (c *Catalog) DefaultName() string {
	return c.defaultName
}

// Resolve looks a profile up by name. Unknown names are not an error.
func (c *Catalog) Resolve(name string) (Profile, bool) {
	p, ok := c.byName[name]
	return p, ok
}

// Default returns the default profile, if one is configured.
func (c *Catalog) Default() (Profile, bool) {
	if c.defaultName == "" {
		return Profile{}, false
	}
	return c.Resolve(c.defaultName)
}

// Match returns the first trigger, in priority order, whose pattern matches
// the process image.
func (c *Catalog) Match(image string) (Trigger, bool) {
	for _, t := range c.triggers {
		if t.Matches(image) {
			return t, true
		}
	}
	return Trigger{}, false
}

// CapabilityFor returns the capability of deviceID. An exact
// (case-insensitive) ID wins, otherwise the longest configured ID that is a
// prefix of deviceID. Unknown devices support no fields.
func (c *Catalog) CapabilityFor(deviceID string) DeviceCapability {
	id := strings.ToLower(strings.TrimSpace(deviceID))

	var (
		best    DeviceCapability
		bestLen = -1
	)

	for _, d := range c.devices {
		candidate := strings.ToLower(d.ID)
		switch {
		case candidate == id:
			return d
		case strings.HasPrefix(id, candidate) && len(candidate) > bestLen:
			best, bestLen = d, len(candidate)
		}
	}

	if bestLen >= 0 {
		return best
	}

	return DeviceCapability{ID: deviceID, Fields: map[hardware.Field]Range{}}
}
