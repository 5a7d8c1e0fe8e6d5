//go:build linux

package hardware

import (
	"context"
	"math"
	"strings"

	"codeberg.org/mutker/tdpctl/internal/errors"
	"github.com/prometheus/procfs/sysfs"
)

type batterySource struct {
	fs sysfs.FS
}

// NewBatterySource reads the first battery of the power_supply class.
func NewBatterySource(sysfsPath string) (PowerSource, error) {
	fs, err := sysfs.NewFS(sysfsPath)
	if err != nil {
		return nil, errors.New().Wrap(ErrUnavailable, err)
	}

	return &batterySource{fs: fs}, nil
}

func (*batterySource) Name() string { return "battery" }

func (b *batterySource) Read(context.Context) (SourceReading, error) {
	errFactory := errors.New()

	supplies, err := b.fs.PowerSupplyClass()
	if err != nil {
		return SourceReading{}, errFactory.Wrap(ErrUnavailable, err)
	}

	for _, ps := range supplies {
		if !strings.EqualFold(ps.Type, "Battery") {
			continue
		}

		state, ok := supplyState(ps)
		if !ok {
			return SourceReading{}, errFactory.WithData(ErrUnsupported, ps.Name+" reports no power rate")
		}

		return SourceReading{Watts: state.Watts, Battery: state}, nil
	}

	return SourceReading{}, errFactory.WithData(ErrUnavailable, "no battery present")
}

// supplyState converts power_supply attributes. Drivers report either
// power_now/energy_now (µW, µWh) or current_now/charge_now with voltage_now
// (µA, µAh, µV).
func supplyState(ps sysfs.PowerSupply) (*BatteryState, bool) {
	var watts, wattHours float64

	switch {
	case ps.PowerNow != nil:
		watts = float64(*ps.PowerNow) / 1e6
	case ps.CurrentNow != nil && ps.VoltageNow != nil:
		watts = float64(*ps.CurrentNow) * float64(*ps.VoltageNow) / 1e12
	default:
		return nil, false
	}

	switch {
	case ps.EnergyNow != nil:
		wattHours = float64(*ps.EnergyNow) / 1e6
	case ps.ChargeNow != nil && ps.VoltageNow != nil:
		wattHours = float64(*ps.ChargeNow) * float64(*ps.VoltageNow) / 1e12
	}

	charging := !strings.EqualFold(ps.Status, "Discharging")

	return newBatteryState(charging, math.Abs(watts), wattHours), true
}
