package overlay

import "codeberg.org/mutker/tdpctl/internal/errors"

const (
	ErrWriteOverlay = errors.ErrorCode("overlay_write_failed")
)
