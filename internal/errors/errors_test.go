package errors_test

import (
	"fmt"
	"testing"

	"codeberg.org/mutker/tdpctl/internal/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	f := errors.New()

	assert.Equal(t, "Operation timed out", f.New(errors.ErrTimeout).Error())
	assert.Equal(t, "custom", f.WithMessage(errors.ErrTimeout, "custom").Error())
	assert.Equal(t, "Invalid configuration: bad field", f.WithData(errors.ErrInvalidConfig, "bad field").Error())

	wrapped := f.Wrap(errors.ErrHardwareUnavailable, fmt.Errorf("permission denied"))
	assert.Equal(t, "Hardware access unavailable: permission denied", wrapped.Error())
}

func TestHasCode(t *testing.T) {
	f := errors.New()
	inner := f.New(errors.ErrTimeout)
	outer := f.Wrap(errors.ErrOperationFailed, inner)

	assert.True(t, errors.HasCode(outer, errors.ErrTimeout))
	assert.True(t, errors.HasCode(outer, errors.ErrOperationFailed))
	assert.False(t, errors.HasCode(outer, errors.ErrHardwareUnsupported))
	assert.False(t, errors.HasCode(nil, errors.ErrTimeout))

	joined := errors.Join(fmt.Errorf("plain"), f.New(errors.ErrHardwareUnsupported))
	assert.True(t, errors.HasCode(joined, errors.ErrHardwareUnsupported))

	assert.Equal(t, errors.ErrOperationFailed, errors.CodeOf(outer))
	assert.Equal(t, errors.ErrorCode(""), errors.CodeOf(fmt.Errorf("plain")))
}
