package controller

import "codeberg.org/mutker/tdpctl/internal/errors"

const (
	// Override Errors
	ErrUnknownProfile = errors.ErrorCode("controller_unknown_profile")
	ErrInvalidWatts   = errors.ErrorCode("controller_invalid_watts")

	// Lifecycle Errors
	ErrNotRunning  = errors.ErrorCode("controller_not_running")
	ErrRestoreFail = errors.ErrRestoreLimit
)
