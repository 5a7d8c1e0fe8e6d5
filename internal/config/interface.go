package config

// LogLevel represents valid logging levels
type LogLevel string

const (
	LogLevelDebug   LogLevel = "debug"
	LogLevelInfo    LogLevel = "info"
	LogLevelWarning LogLevel = "warning"
	LogLevelError   LogLevel = "error"
)

// IsValid returns whether the log level is valid
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarning, LogLevelError:
		return true
	default:
		return false
	}
}

// String implements the Stringer interface
func (l LogLevel) String() string {
	return string(l)
}

// Driver names a hardware backend.
type Driver string

const (
	DriverRyzenAdj  Driver = "ryzenadj"
	DriverPowercap  Driver = "powercap"
	DriverSimulated Driver = "simulated"
)

// IsValid returns whether the driver is known
func (d Driver) IsValid() bool {
	switch d {
	case DriverRyzenAdj, DriverPowercap, DriverSimulated:
		return true
	default:
		return false
	}
}

// Power source names accepted in hardware.power_sources.
const (
	SourceRAPL    = "rapl"
	SourceBattery = "battery"
	SourceNVML    = "nvml"
)
