package telemetry

import (
	"context"
	"time"

	"codeberg.org/mutker/tdpctl/internal/errors"
	"codeberg.org/mutker/tdpctl/internal/logger"
	"k8s.io/utils/clock"
)

const (
	DefaultInterval         = time.Second
	DefaultWindow           = 5
	DefaultFailureThreshold = 3
)

type Options struct {
	Interval         time.Duration
	Window           int
	FailureThreshold int
	Clock            clock.WithTicker
	Logger           logger.Logger
}

type availability int

const (
	unknown availability = iota
	available
	unavailable
)

// Sampler reads power on a fixed interval and publishes raw and smoothed
// samples. Consecutive read failures beyond the threshold are reported as
// unavailability until the next successful read.
type Sampler struct {
	reader Reader
	pub    Publisher
	opts   Options
	log    logger.Logger

	window   *window
	failures int
	state    availability
	last     time.Time
}

func NewSampler(reader Reader, pub Publisher, opts Options) *Sampler {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Window < 1 {
		opts.Window = DefaultWindow
	}
	if opts.FailureThreshold < 1 {
		opts.FailureThreshold = DefaultFailureThreshold
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}

	return &Sampler{
		reader: reader,
		pub:    pub,
		opts:   opts,
		log:    opts.Logger,
		window: newWindow(opts.Window),
	}
}

// Run samples until ctx is cancelled.
func (s *Sampler) Run(ctx context.Context) error {
	ticker := s.opts.Clock.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	s.log.Debug().
		Dur("interval", s.opts.Interval).
		Int("window", s.opts.Window).
		Msg("Telemetry sampler started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C():
			s.sample(ctx)
		}
	}
}

func (s *Sampler) sample(ctx context.Context) {
	reading, err := s.reader.ReadPower(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.fail(err)
		return
	}

	now := s.opts.Clock.Now()
	if !now.After(s.last) {
		now = s.last.Add(time.Nanosecond)
	}
	s.last = now

	if s.state != available {
		s.setStatus(Status{Available: true, Since: now})
	}
	s.failures = 0

	s.pub.PublishSample(Sample{
		Timestamp:  now,
		Watts:      reading.Watts,
		Smoothed:   s.window.push(reading.Watts),
		Components: reading.Components,
		Battery:    reading.Battery,
	})
}

func (s *Sampler) fail(err error) {
	s.failures++

	s.log.Debug().Err(err).Int("failures", s.failures).Msg("Power read failed")

	if s.failures < s.opts.FailureThreshold || s.state == unavailable {
		return
	}

	// Smoothing restarts from fresh readings after an outage.
	s.window.reset()

	s.log.Warn().Err(err).Int("failures", s.failures).Msg("Telemetry unavailable")
	s.setStatus(Status{
		ConsecutiveFailures: s.failures,
		Err:                 errors.New().Wrap(ErrUnavailable, err).Error(),
		Since:               s.opts.Clock.Now(),
	})
}

func (s *Sampler) setStatus(st Status) {
	if st.Available {
		if s.state == unavailable {
			s.log.Info().Msg("Telemetry available again")
		}
		s.state = available
	} else {
		s.state = unavailable
	}
	s.pub.PublishStatus(st)
}
