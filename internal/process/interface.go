package process

import (
	"context"

	"codeberg.org/mutker/tdpctl/internal/profile"
)

// EventKind is the kind of a process lifecycle notification.
type EventKind int

const (
	Start EventKind = iota
	Stop
	Foreground
)

func (k EventKind) String() string {
	switch k {
	case Start:
		return "start"
	case Stop:
		return "stop"
	case Foreground:
		return "foreground"
	default:
		return "unknown"
	}
}

// Event is a process lifecycle notification. Created is the process start
// time in milliseconds since the epoch, or zero when unknown; together
// with PID it identifies a process across pid reuse.
type Event struct {
	Kind    EventKind
	PID     int32
	Image   string
	Created int64
}

// Source delivers process events until ctx is cancelled.
type Source interface {
	Run(ctx context.Context, events chan<- Event) error
}

// Prober checks whether a tracked process is still the one that was
// started.
type Prober interface {
	Alive(ctx context.Context, pid int32, created int64) bool
}

// Matcher maps a process image to a trigger. *profile.Store implements it.
type Matcher interface {
	Match(image string) (profile.Trigger, bool)
}

// TriggerEventKind is the kind of a trigger notification.
type TriggerEventKind int

const (
	Activated TriggerEventKind = iota
	Deactivated
	// Updated replaces an active trigger with an edited version of the same
	// key, without changing when it was activated.
	Updated
)

func (k TriggerEventKind) String() string {
	switch k {
	case Activated:
		return "activated"
	case Deactivated:
		return "deactivated"
	case Updated:
		return "updated"
	default:
		return "unknown"
	}
}

// TriggerEvent is emitted when a trigger's first matching process appears
// (or comes to the foreground), when its last one exits, and when a catalog
// reload edits it.
type TriggerEvent struct {
	Kind    TriggerEventKind
	Trigger profile.Trigger
}
