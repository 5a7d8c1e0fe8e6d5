package display

import "codeberg.org/mutker/tdpctl/internal/errors"

const (
	ErrClosed       = errors.ErrorCode("display_subscription_closed")
	ErrDuplicateSub = errors.ErrorCode("display_duplicate_subscriber")
)
