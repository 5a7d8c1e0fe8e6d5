//go:build windows

package hardware

import (
	"context"

	"codeberg.org/mutker/tdpctl/internal/errors"
	"github.com/StackExchange/wmi"
)

const batteryQuery = "SELECT ChargeRate, DischargeRate, RemainingCapacity, Charging, PowerOnline FROM BatteryStatus"

// win32BatteryStatus mirrors the root\wmi BatteryStatus class. Rates are in
// mW and capacity in mWh.
type win32BatteryStatus struct {
	ChargeRate        int32
	DischargeRate     int32
	RemainingCapacity uint32
	Charging          bool
	PowerOnline       bool
}

type batterySource struct{}

// NewBatterySource queries the battery through WMI. The sysfs path is
// ignored on Windows.
func NewBatterySource(string) (PowerSource, error) {
	return &batterySource{}, nil
}

func (*batterySource) Name() string { return "battery" }

func (*batterySource) Read(context.Context) (SourceReading, error) {
	errFactory := errors.New()

	var dst []win32BatteryStatus
	if err := wmi.QueryNamespace(batteryQuery, &dst, `root\wmi`); err != nil {
		return SourceReading{}, errFactory.Wrap(ErrUnavailable, err)
	}
	if len(dst) == 0 {
		return SourceReading{}, errFactory.WithData(ErrUnavailable, "no battery present")
	}

	bs := dst[0]
	charging := bs.PowerOnline || bs.Charging

	rate := bs.DischargeRate
	if charging {
		rate = bs.ChargeRate
	}
	if rate < 0 {
		rate = -rate
	}

	state := newBatteryState(charging, float64(rate)/1000, float64(bs.RemainingCapacity)/1000)

	return SourceReading{Watts: state.Watts, Battery: state}, nil
}
