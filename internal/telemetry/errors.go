package telemetry

import "codeberg.org/mutker/tdpctl/internal/errors"

const (
	ErrUnavailable = errors.ErrTelemetryUnavailable
)
