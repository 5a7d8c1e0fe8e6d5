package hardware

import (
	"codeberg.org/mutker/tdpctl/internal/config"
	"codeberg.org/mutker/tdpctl/internal/errors"
	"codeberg.org/mutker/tdpctl/internal/logger"
)

// Open builds the configured driver and power sources and starts an Adapter
// around them. Power sources that fail to initialize are skipped with a
// warning; telemetry reports them as unavailable.
func Open(cfg config.HardwareConfig, log logger.Logger) (*Adapter, error) {
	if log == nil {
		log = logger.Nop()
	}

	var (
		driver  Driver
		sources []PowerSource
	)

	switch cfg.Driver {
	case config.DriverRyzenAdj:
		driver = NewRyzenAdj(cfg.RyzenAdjPath)
	case config.DriverPowercap:
		pc, err := NewPowercap(cfg.SysfsPath, cfg.PowercapZone)
		if err != nil {
			return nil, err
		}
		driver = pc
	case config.DriverSimulated:
		sim := NewSimulated(Limits{}.
			With(Sustained, MilliWatts(15)).
			With(Fast, MilliWatts(25)).
			With(Slow, MilliWatts(20)))
		driver = sim
		sources = append(sources, NewSimulatedSource(sim))
	default:
		return nil, errors.New().WithData(errors.ErrInvalidConfig, "unknown driver "+string(cfg.Driver))
	}

	if cfg.Driver != config.DriverSimulated {
		for _, name := range cfg.PowerSources {
			src, err := openSource(name, cfg.SysfsPath)
			if err != nil {
				log.Warn().Str("source", name).Err(err).Msg("Power source disabled")
				continue
			}
			sources = append(sources, src)
		}
	}

	log.Info().
		Str("driver", driver.Name()).
		Int("power_sources", len(sources)).
		Dur("timeout", cfg.Timeout).
		Msg("Hardware adapter ready")

	return NewAdapter(driver, sources, cfg.Timeout, log), nil
}

func openSource(name, sysfsPath string) (PowerSource, error) {
	switch name {
	case config.SourceRAPL:
		return NewRAPLSource(sysfsPath)
	case config.SourceBattery:
		return NewBatterySource(sysfsPath)
	case config.SourceNVML:
		return NewNVMLSource()
	default:
		return nil, errors.New().WithData(errors.ErrInvalidConfig, "unknown power source "+name)
	}
}
