package profile

import (
	"codeberg.org/mutker/tdpctl/internal/errors"
	"codeberg.org/mutker/tdpctl/internal/hardware"
)

const (
	// Catalog Errors
	ErrInvalidCatalog = errors.ErrInvalidConfig
	ErrReadCatalog    = errors.ErrReadConfig

	// Clamp Errors
	ErrClampRejected     = errors.ErrorCode("profile_clamp_rejected")
	ErrNoSupportedFields = hardware.ErrUnsupported

	// Watcher Errors
	ErrWatchFailed = errors.ErrorCode("profile_watch_failed")

	// Detection Errors
	ErrDetectDevice = errors.ErrorCode("profile_detect_device_failed")
)
