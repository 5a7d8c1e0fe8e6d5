package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWindow(t *testing.T) {
	w := newWindow(3)

	assert.InDelta(t, 3.0, w.push(3), 1e-9)
	assert.InDelta(t, 4.5, w.push(6), 1e-9)
	assert.InDelta(t, 5.0, w.push(6), 1e-9)
	// 3 falls out.
	assert.InDelta(t, 8.0, w.push(12), 1e-9)

	w.reset()
	assert.InDelta(t, 10.0, w.push(10), 1e-9)
}
