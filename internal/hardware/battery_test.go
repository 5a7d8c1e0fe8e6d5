package hardware

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewBatteryState(t *testing.T) {
	s := newBatteryState(false, 12, 30)
	assert.Equal(t, 150, s.MinutesLeft)
	assert.False(t, s.Charging)

	s = newBatteryState(true, 25, 30)
	assert.Equal(t, -1, s.MinutesLeft)

	s = newBatteryState(false, 0, 30)
	assert.Equal(t, -1, s.MinutesLeft)
}
