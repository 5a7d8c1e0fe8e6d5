//go:build !linux

package hardware

import "codeberg.org/mutker/tdpctl/internal/errors"

// NewNVMLSource is only available on Linux.
func NewNVMLSource() (PowerSource, error) {
	return nil, errors.New().WithData(ErrUnsupported, "NVML power readings require Linux")
}
