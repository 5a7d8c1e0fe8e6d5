//go:build !linux

package hardware

import "codeberg.org/mutker/tdpctl/internal/errors"

// NewRAPLSource is only available on Linux.
func NewRAPLSource(string) (PowerSource, error) {
	return nil, errors.New().WithData(ErrUnsupported, "RAPL energy counters require Linux")
}
