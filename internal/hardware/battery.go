package hardware

import "math"

// newBatteryState derives the runtime estimate from the remaining energy
// and the current rate.
func newBatteryState(charging bool, watts, remainingWattHours float64) *BatteryState {
	state := &BatteryState{Charging: charging, Watts: watts, MinutesLeft: -1}

	if !charging && watts > 0 && remainingWattHours > 0 {
		state.MinutesLeft = int(math.Round(remainingWattHours / watts * 60))
	}

	return state
}
