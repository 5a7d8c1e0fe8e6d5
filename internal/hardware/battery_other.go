//go:build !linux && !windows

package hardware

import "codeberg.org/mutker/tdpctl/internal/errors"

// NewBatterySource is not implemented on this platform.
func NewBatterySource(string) (PowerSource, error) {
	return nil, errors.New().WithData(ErrUnsupported, "battery telemetry is not implemented on this platform")
}
