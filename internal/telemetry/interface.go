package telemetry

import (
	"context"
	"time"

	"codeberg.org/mutker/tdpctl/internal/hardware"
)

// Sample is one power reading with its rolling average.
type Sample struct {
	Timestamp  time.Time              `json:"timestamp"`
	Watts      float64                `json:"watts"`
	Smoothed   float64                `json:"smoothed"`
	Components map[string]float64     `json:"components,omitempty"`
	Battery    *hardware.BatteryState `json:"battery,omitempty"`
}

// Status reports whether telemetry is currently available.
type Status struct {
	Available           bool      `json:"available"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	Err                 string    `json:"error,omitempty"`
	Since               time.Time `json:"since"`
}

// Reader supplies power readings. *hardware.Adapter implements it.
type Reader interface {
	ReadPower(ctx context.Context) (hardware.PowerReading, error)
}

// Publisher receives samples and status transitions. It must not block.
type Publisher interface {
	PublishSample(Sample)
	PublishStatus(Status)
}
