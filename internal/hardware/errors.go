package hardware

import "codeberg.org/mutker/tdpctl/internal/errors"

const (
	// Failure classes every driver maps its errors onto
	ErrUnsupported = errors.ErrHardwareUnsupported
	ErrUnavailable = errors.ErrHardwareUnavailable
	ErrTimeout     = errors.ErrTimeout

	// Adapter Errors
	ErrAdapterClosed = errors.ErrorCode("hardware_adapter_closed")
	ErrNoPowerSource = errors.ErrorCode("hardware_no_power_source")

	// Driver Errors
	ErrInvalidLimits = errors.ErrorCode("hardware_invalid_limits")
)

// IsUnsupported reports whether the device or driver rejected the request.
func IsUnsupported(err error) bool {
	return errors.HasCode(err, ErrUnsupported)
}

// IsUnavailable reports whether the driver could not be reached, e.g. for
// lack of privilege or because the device is absent.
func IsUnavailable(err error) bool {
	return errors.HasCode(err, ErrUnavailable) || errors.HasCode(err, ErrAdapterClosed)
}

// IsTimeout reports whether the driver round-trip exceeded its deadline.
func IsTimeout(err error) bool {
	return errors.HasCode(err, ErrTimeout)
}
