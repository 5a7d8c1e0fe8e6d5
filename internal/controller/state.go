package controller

import (
	"time"

	"codeberg.org/mutker/tdpctl/internal/hardware"
	"codeberg.org/mutker/tdpctl/internal/profile"
)

// Phase is the controller state machine position.
type Phase int

const (
	// PhaseDefault: no trigger or override; the default profile, the
	// baseline, or nothing is applied.
	PhaseDefault Phase = iota
	PhaseApplying
	PhaseApplied
	PhaseReverting
)

var phaseNames = map[Phase]string{
	PhaseDefault:   "default",
	PhaseApplying:  "applying",
	PhaseApplied:   "applied",
	PhaseReverting: "reverting",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return "unknown"
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Settled reports whether no apply is outstanding.
func (p Phase) Settled() bool {
	return p == PhaseDefault || p == PhaseApplied
}

// State is a read-only snapshot of the controller.
type State struct {
	Phase      Phase  `json:"phase"`
	Generation uint64 `json:"generation"`
	// Profile is the last profile confirmed on hardware, nil when the
	// hardware is at its baseline or unmanaged.
	Profile *profile.Profile `json:"profile,omitempty"`
	// Trigger is the origin of Profile; nil for manual and default.
	Trigger *profile.Trigger `json:"trigger,omitempty"`
	Manual  bool             `json:"manual"`
	// Target is the profile being applied while Applying or Reverting.
	Target *profile.Profile `json:"target,omitempty"`
	// Limits are the register values last confirmed written.
	Limits    hardware.Limits   `json:"limits"`
	Stack     []profile.Trigger `json:"stack"`
	Degraded  bool              `json:"degraded"`
	Err       string            `json:"error,omitempty"`
	Device    string            `json:"device"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// ProfileName returns the applied profile name, or "" when none.
func (s State) ProfileName() string {
	if s.Profile == nil {
		return ""
	}
	return s.Profile.Name
}

// origin is where a desired configuration comes from.
type origin int

const (
	originUnmanaged origin = iota
	originBaseline
	originDefault
	originTrigger
	originManual
)

// desired is a fully resolved and clamped target. It is comparable.
type desired struct {
	origin  origin
	profile profile.Profile
	trigger profile.Trigger
	limits  hardware.Limits
	err     string
}

func (d desired) settledPhase() Phase {
	if d.origin == originTrigger || d.origin == originManual {
		return PhaseApplied
	}
	return PhaseDefault
}

func (d desired) hasProfile() bool {
	return d.origin == originDefault || d.origin == originTrigger || d.origin == originManual
}
