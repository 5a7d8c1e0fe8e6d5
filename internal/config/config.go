package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"codeberg.org/mutker/tdpctl/internal/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultLogLevel      = LogLevelInfo
	DefaultCatalogPath   = "/etc/tdpctl/profiles.yaml"
	DefaultPIDFile       = "/run/tdpctl.pid"
	DefaultHistoryDBPath = "/var/lib/tdpctl/history.db"
	DefaultListen        = "127.0.0.1:8383"

	envPrefix  = "TDPCTL"
	envConfig  = "TDPCTL_CONFIG"
	configName = "tdpctl"
)

type Config struct {
	LogLevel   string           `mapstructure:"log_level"`
	PIDFile    string           `mapstructure:"pid_file"`
	Catalog    string           `mapstructure:"catalog"`
	DeviceID   string           `mapstructure:"device_id"`
	Hardware   HardwareConfig   `mapstructure:"hardware"`
	Controller ControllerConfig `mapstructure:"controller"`
	Process    ProcessConfig    `mapstructure:"process"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
	Display    DisplayConfig    `mapstructure:"display"`
	API        APIConfig        `mapstructure:"api"`
	History    HistoryConfig    `mapstructure:"history"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

type HardwareConfig struct {
	Driver       Driver        `mapstructure:"driver"`
	RyzenAdjPath string        `mapstructure:"ryzenadj_path"`
	PowercapZone string        `mapstructure:"powercap_zone"`
	SysfsPath    string        `mapstructure:"sysfs_path"`
	Timeout      time.Duration `mapstructure:"timeout"`
	PowerSources []string      `mapstructure:"power_sources"`
}

type ControllerConfig struct {
	Strict        bool          `mapstructure:"strict"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryBackoff  time.Duration `mapstructure:"retry_backoff"`
	RestoreOnExit bool          `mapstructure:"restore_on_exit"`
}

type ProcessConfig struct {
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	LivenessInterval time.Duration `mapstructure:"liveness_interval"`
}

type TelemetryConfig struct {
	Interval         time.Duration `mapstructure:"interval"`
	Window           int           `mapstructure:"window"`
	FailureThreshold int           `mapstructure:"failure_threshold"`
}

type DisplayConfig struct {
	QueueSize   int    `mapstructure:"queue_size"`
	OverlayFile string `mapstructure:"overlay_file"`
}

type APIConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

type HistoryConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	DBPath       string        `mapstructure:"db_path"`
	BatchSize    int           `mapstructure:"batch_size"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", string(DefaultLogLevel))
	v.SetDefault("pid_file", DefaultPIDFile)
	v.SetDefault("catalog", DefaultCatalogPath)
	v.SetDefault("device_id", "")

	v.SetDefault("hardware.driver", string(DriverRyzenAdj))
	v.SetDefault("hardware.ryzenadj_path", "ryzenadj")
	v.SetDefault("hardware.powercap_zone", "intel-rapl:0")
	v.SetDefault("hardware.sysfs_path", "/sys")
	v.SetDefault("hardware.timeout", 2*time.Second)
	v.SetDefault("hardware.power_sources", []string{SourceRAPL, SourceBattery})

	v.SetDefault("controller.strict", false)
	v.SetDefault("controller.retry_attempts", 3)
	v.SetDefault("controller.retry_backoff", 500*time.Millisecond)
	v.SetDefault("controller.restore_on_exit", true)

	v.SetDefault("process.poll_interval", 2*time.Second)
	v.SetDefault("process.liveness_interval", 10*time.Second)

	v.SetDefault("telemetry.interval", time.Second)
	v.SetDefault("telemetry.window", 5)
	v.SetDefault("telemetry.failure_threshold", 3)

	v.SetDefault("display.queue_size", 16)
	v.SetDefault("display.overlay_file", "")

	v.SetDefault("api.enabled", true)
	v.SetDefault("api.listen", DefaultListen)

	v.SetDefault("history.enabled", false)
	v.SetDefault("history.db_path", DefaultHistoryDBPath)
	v.SetDefault("history.batch_size", 10)
	v.SetDefault("history.batch_timeout", 30*time.Second)

	v.SetDefault("metrics.enabled", true)
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("tdpctl", pflag.ContinueOnError)
	fs.String("config", "", "Path to the configuration file")
	fs.String("log-level", string(DefaultLogLevel), "Log level (debug, info, warning, error)")
	fs.String("catalog", DefaultCatalogPath, "Path to the profile catalog")
	fs.String("device-id", "", "Override the detected device identifier")
	fs.String("driver", string(DriverRyzenAdj), "Hardware driver (ryzenadj, powercap, simulated)")
	fs.Bool("dry-run", false, "Use the simulated driver instead of touching hardware")
	fs.Duration("interval", time.Second, "Telemetry sampling interval")
	fs.String("listen", DefaultListen, "HTTP API listen address")
	fs.String("overlay-file", "", "Write overlay text to this file")

	return fs
}

var flagKeys = map[string]string{
	"log-level":    "log_level",
	"catalog":      "catalog",
	"device-id":    "device_id",
	"driver":       "hardware.driver",
	"interval":     "telemetry.interval",
	"listen":       "api.listen",
	"overlay-file": "display.overlay_file",
}

// Load reads the configuration from defaults, the config file, TDPCTL_*
// environment variables and command line flags, in increasing precedence.
func Load(args []string) (*Config, error) {
	errFactory := errors.New()
	v := viper.New()
	setDefaults(v)

	fs := newFlagSet()
	if err := fs.Parse(args); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	for flag, key := range flagKeys {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return nil, errFactory.Wrap(errors.ErrBindFlags, err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configPath, _ := fs.GetString("config")
	if configPath == "" {
		configPath = os.Getenv(envConfig)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("toml")
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("toml")
		v.AddConfigPath("/etc")
		v.AddConfigPath("/etc/tdpctl")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrReadConfig, err)
	}

	if dryRun, _ := fs.GetBool("dry-run"); dryRun {
		cfg.Hardware.Driver = DriverSimulated
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the loaded values.
func (c *Config) Validate() error {
	errFactory := errors.New()

	if !LogLevel(strings.ToLower(c.LogLevel)).IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}

	if !c.Hardware.Driver.IsValid() {
		return errFactory.WithData(errors.ErrInvalidConfig, fmt.Sprintf("unknown driver %q", c.Hardware.Driver))
	}

	for _, src := range c.Hardware.PowerSources {
		switch src {
		case SourceRAPL, SourceBattery, SourceNVML:
		default:
			return errFactory.WithData(errors.ErrInvalidConfig, fmt.Sprintf("unknown power source %q", src))
		}
	}

	if c.Hardware.Timeout <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, "hardware.timeout must be positive")
	}

	if c.Telemetry.Interval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, "telemetry.interval must be positive")
	}

	if c.Process.PollInterval <= 0 || c.Process.LivenessInterval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, "process intervals must be positive")
	}

	if c.Telemetry.Window < 1 || c.Telemetry.FailureThreshold < 1 {
		return errFactory.WithData(errors.ErrInvalidConfig, "telemetry window and failure_threshold must be at least 1")
	}

	if c.Controller.RetryAttempts < 1 {
		return errFactory.WithData(errors.ErrInvalidConfig, "controller.retry_attempts must be at least 1")
	}

	if c.Display.QueueSize < 1 {
		return errFactory.WithData(errors.ErrInvalidConfig, "display.queue_size must be at least 1")
	}

	if c.Catalog == "" {
		return errFactory.New(errors.ErrMissingConfig).WithMessage("catalog path is required")
	}

	if c.History.Enabled && c.History.DBPath == "" {
		return errFactory.WithData(errors.ErrInvalidConfig, "history.db_path is required when history is enabled")
	}

	return nil
}
