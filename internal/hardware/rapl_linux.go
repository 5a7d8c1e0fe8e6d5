//go:build linux

package hardware

import (
	"strconv"
	"strings"
	"time"

	"codeberg.org/mutker/tdpctl/internal/errors"
	"github.com/prometheus/procfs/sysfs"
)

type sysfsRaplZone struct {
	zone sysfs.RaplZone
}

func (s sysfsRaplZone) Key() string {
	return s.zone.Name + ":" + strconv.Itoa(s.zone.Index)
}

func (s sysfsRaplZone) Energy() (uint64, error) {
	return s.zone.GetEnergyMicrojoules()
}

func (s sysfsRaplZone) MaxEnergy() uint64 {
	return s.zone.MaxMicrojoules
}

// NewRAPLSource reports processor package power from the RAPL energy
// counters exposed under sysfsPath.
func NewRAPLSource(sysfsPath string) (PowerSource, error) {
	fs, err := sysfs.NewFS(sysfsPath)
	if err != nil {
		return nil, errors.New().Wrap(ErrUnavailable, err)
	}

	zones := func() ([]energyZone, error) {
		raplZones, err := sysfs.GetRaplZones(fs)
		if err != nil {
			return nil, err
		}

		packages := make([]energyZone, 0, len(raplZones))
		for _, z := range raplZones {
			// Sub-zones (core, uncore, dram) are contained in the package zone.
			if strings.HasPrefix(z.Name, "package") {
				packages = append(packages, sysfsRaplZone{zone: z})
			}
		}
		return packages, nil
	}

	m := newRAPLMeter(zones, time.Now)
	if err := m.prime(); err != nil {
		return nil, err
	}

	return m, nil
}
