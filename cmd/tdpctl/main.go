package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/mutker/tdpctl/internal/api"
	"codeberg.org/mutker/tdpctl/internal/config"
	"codeberg.org/mutker/tdpctl/internal/controller"
	"codeberg.org/mutker/tdpctl/internal/display"
	"codeberg.org/mutker/tdpctl/internal/errors"
	"codeberg.org/mutker/tdpctl/internal/hardware"
	"codeberg.org/mutker/tdpctl/internal/history"
	"codeberg.org/mutker/tdpctl/internal/logger"
	"codeberg.org/mutker/tdpctl/internal/metrics"
	"codeberg.org/mutker/tdpctl/internal/overlay"
	"codeberg.org/mutker/tdpctl/internal/pid"
	"codeberg.org/mutker/tdpctl/internal/process"
	"codeberg.org/mutker/tdpctl/internal/profile"
	"codeberg.org/mutker/tdpctl/internal/telemetry"
	"github.com/oklog/run"
	"github.com/spf13/pflag"
)

const detectTimeout = 5 * time.Second

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.LogLevel, logger.IsService(), os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.Debug().Msg("Config loaded")

	if err := runDaemon(cfg); err != nil {
		logger.Error().Err(err).Msg("tdpctl terminated with an error")
		os.Exit(1)
	}
	logger.Info().Msg("Exiting...")
}

func runDaemon(cfg *config.Config) error {
	errFactory := errors.New()

	pidFile := pid.New(cfg.PIDFile)
	if err := pidFile.Write(); err != nil {
		return err
	}
	defer func() {
		if err := pidFile.Remove(); err != nil {
			logger.Warn().Err(err).Msg("Failed to remove pid file")
		}
	}()

	store := profile.NewStore(logger.New("profile"))
	if _, err := store.LoadFile(cfg.Catalog); err != nil {
		return errFactory.Wrap(errors.ErrInitApp, err)
	}

	deviceID := cfg.DeviceID
	if deviceID == "" {
		ctx, cancel := context.WithTimeout(context.Background(), detectTimeout)
		detected, err := profile.DetectDevice(ctx)
		cancel()
		if err != nil {
			logger.Warn().Err(err).Msg("Could not detect the processor, no limits will be applied")
		}
		deviceID = detected
	}
	logger.Info().Str("device", deviceID).Msg("Device identified")

	adapter, err := hardware.Open(cfg.Hardware, logger.New("hardware"))
	if err != nil {
		return errFactory.Wrap(errors.ErrInitApp, err)
	}
	defer adapter.Close()

	hub := display.NewHub(logger.New("display"))
	defer hub.Close()

	monitor := process.NewMonitor(
		process.NewPollSource(cfg.Process.PollInterval, logger.New("process")),
		store,
		process.GopsutilProber{},
		process.WithLivenessInterval(cfg.Process.LivenessInterval),
		process.WithReload(store.Subscribe()),
		process.WithLogger(logger.New("process")),
	)

	ctrl := controller.New(adapter, store, monitor.Events(), controller.Options{
		DeviceID:      deviceID,
		Strict:        cfg.Controller.Strict,
		RetryAttempts: cfg.Controller.RetryAttempts,
		RetryBackoff:  cfg.Controller.RetryBackoff,
		RestoreOnExit: cfg.Controller.RestoreOnExit,
		Logger:        logger.New("controller"),
		Publisher:     hub,
	})

	sampler := telemetry.NewSampler(adapter, hub, telemetry.Options{
		Interval:         cfg.Telemetry.Interval,
		Window:           cfg.Telemetry.Window,
		FailureThreshold: cfg.Telemetry.FailureThreshold,
		Logger:           logger.New("telemetry"),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var g run.Group

	addService := func(name string, fn func(context.Context) error) {
		g.Add(
			func() error {
				if err := fn(ctx); err != nil {
					return errFactory.WithData(errors.ErrMainLoop, name+": "+err.Error())
				}
				return nil
			},
			func(err error) {
				if err != nil {
					logger.Warn().Str("service", name).Err(err).Msg("Service terminated with error")
				}
				cancel()
			},
		)
	}

	addService("controller", ctrl.Run)
	addService("process-monitor", monitor.Run)
	addService("telemetry", sampler.Run)
	addService("catalog-watcher", profile.NewWatcher(store, cfg.Catalog, logger.New("profile")).Run)

	consumers := map[string]display.Handler{
		"log": display.NewLogHandler(logger.New("display")),
	}

	if cfg.Display.OverlayFile != "" {
		w := overlay.NewWriter(cfg.Display.OverlayFile, logger.New("overlay"))
		defer func() {
			if err := w.Close(); err != nil {
				logger.Warn().Err(err).Msg("Failed to remove overlay file")
			}
		}()
		consumers["overlay"] = w
	}

	var repo history.Repository
	if cfg.History.Enabled {
		repo, err = history.NewRepository(history.Config{
			DBPath:       cfg.History.DBPath,
			BatchSize:    cfg.History.BatchSize,
			BatchTimeout: cfg.History.BatchTimeout,
		}, nil, logger.New("history"))
		if err != nil {
			logger.Warn().Err(err).Msg("History disabled")
		} else {
			defer repo.Close()
			consumers["history"] = history.NewJournal(repo, logger.New("history"))
		}
	}

	var exporter *metrics.Exporter
	if cfg.Metrics.Enabled {
		exporter = metrics.NewExporter()
		consumers["metrics"] = exporter
	}

	for name, h := range consumers {
		sub, err := hub.Subscribe(name, cfg.Display.QueueSize)
		if err != nil {
			return errFactory.Wrap(errors.ErrInitApp, err)
		}
		addService("display-"+name, func(ctx context.Context) error {
			return display.Consume(ctx, sub, h)
		})
	}

	if cfg.API.Enabled {
		opts := api.Options{
			Controller:  ctrl,
			Store:       store,
			CatalogPath: cfg.Catalog,
			Display:     hub,
			Logger:      logger.New("api"),
		}
		if repo != nil {
			opts.History = repo
		}
		if exporter != nil {
			opts.Metrics = exporter.Handler()
		}
		server := api.NewServer(opts)

		g.Add(
			func() error {
				return server.Start(cfg.API.Listen)
			},
			func(error) {
				if err := server.Shutdown(); err != nil {
					logger.Warn().Err(err).Msg("API shutdown failed")
				}
				cancel()
			},
		)
	}

	g.Add(waitForSignal(ctx, os.Interrupt, syscall.SIGTERM))

	logger.Info().
		Str("driver", adapter.DriverName()).
		Str("catalog", cfg.Catalog).
		Msg("Starting tdpctl")

	return g.Run()
}

func waitForSignal(ctx context.Context, signals ...os.Signal) (func() error, func(error)) {
	ctxInternal, cancel := context.WithCancel(ctx)
	return func() error {
			sigs := make(chan os.Signal, 1)
			signal.Notify(sigs, signals...)
			defer signal.Stop(sigs)

			select {
			case sig := <-sigs:
				logger.Info().Str("signal", sig.String()).Msg("Received termination signal")
				return nil
			case <-ctxInternal.Done():
				return nil
			}
		}, func(error) {
			cancel()
		}
}
