package history

import (
	"context"
	"time"
)

// Repository stores controller transitions.
type Repository interface {
	Record(t Transition) error
	Recent(ctx context.Context, limit int) ([]Transition, error)
	Close() error
}

// Transition is one settled controller state as persisted.
type Transition struct {
	Timestamp  time.Time `json:"timestamp"`
	Generation uint64    `json:"generation"`
	Phase      string    `json:"phase"`
	Profile    string    `json:"profile"`
	Trigger    string    `json:"trigger,omitempty"`
	Manual     bool      `json:"manual"`
	Degraded   bool      `json:"degraded"`
	Err        string    `json:"error,omitempty"`

	// Limits in milliwatts (°C for SkinTemp); zero when not set.
	Sustained uint32 `json:"sustained_mw"`
	Fast      uint32 `json:"fast_mw"`
	Slow      uint32 `json:"slow_mw"`
	SkinTemp  uint32 `json:"skin_temp_c"`
}
