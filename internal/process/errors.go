package process

import "codeberg.org/mutker/tdpctl/internal/errors"

const (
	// Source Errors
	ErrListProcesses = errors.ErrorCode("process_list_failed")
	ErrSourceStopped = errors.ErrorCode("process_source_stopped")
)
