package hardware

import (
	"context"
	"time"
)

// Driver is the vendor register-access primitive. Implementations need not
// be safe for concurrent use; the Adapter never calls them concurrently.
type Driver interface {
	Name() string
	// Apply programs every set field of limits. Unset fields are left alone.
	Apply(ctx context.Context, limits Limits) error
}

// LimitReader is implemented by drivers that can report the currently
// programmed limits. The controller uses it to capture a baseline.
type LimitReader interface {
	ReadLimits(ctx context.Context) (Limits, error)
}

// PowerSource reports instantaneous power draw from one measurement point.
type PowerSource interface {
	Name() string
	Read(ctx context.Context) (SourceReading, error)
}

// SourceReading is a single PowerSource measurement.
type SourceReading struct {
	Watts float64
	// Battery is set by battery sources only.
	Battery *BatteryState
}

// BatteryState describes the battery at the time of a reading.
type BatteryState struct {
	// Charging is true while external power is connected.
	Charging bool `json:"charging"`
	// Watts is the charge rate while charging, the discharge rate otherwise.
	Watts float64 `json:"watts"`
	// MinutesLeft is the estimated runtime, or -1 when unknown or charging.
	MinutesLeft int `json:"minutes_left"`
}

// PowerReading is the combined result of one Adapter.ReadPower call.
type PowerReading struct {
	Timestamp  time.Time          `json:"timestamp"`
	Watts      float64            `json:"watts"`
	Components map[string]float64 `json:"components"`
	Battery    *BatteryState      `json:"battery,omitempty"`
}

// Controller is the contract the TDP controller and telemetry sampler use.
// *Adapter implements it.
type Controller interface {
	ApplyLimits(ctx context.Context, limits Limits) error
	ReadPower(ctx context.Context) (PowerReading, error)
	ReadLimits(ctx context.Context) (Limits, error)
}
