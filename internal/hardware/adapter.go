package hardware

import (
	"context"
	"io"
	"sync"
	"time"

	"codeberg.org/mutker/tdpctl/internal/errors"
	"codeberg.org/mutker/tdpctl/internal/logger"
)

const (
	DefaultTimeout = 2 * time.Second

	// hardDeadlineFactor bounds how long the owner lets a single driver
	// call run after its caller has given up.
	hardDeadlineFactor = 4
)

type result struct {
	value any
	err   error
}

type request struct {
	ctx   context.Context
	fn    func(ctx context.Context) (any, error)
	reply chan result
}

// Adapter owns the driver and power sources. Every call is executed on a
// single owner goroutine, so register access is never concurrent.
type Adapter struct {
	driver  Driver
	sources []PowerSource
	timeout time.Duration
	log     logger.Logger
	now     func() time.Time

	requests  chan request
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

// NewAdapter starts the owner goroutine. Close must be called to stop it.
func NewAdapter(driver Driver, sources []PowerSource, timeout time.Duration, log logger.Logger) *Adapter {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = logger.Nop()
	}

	a := &Adapter{
		driver:   driver,
		sources:  sources,
		timeout:  timeout,
		log:      log,
		now:      time.Now,
		requests: make(chan request),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}

	go a.serve()

	return a
}

// DriverName returns the name of the underlying driver.
func (a *Adapter) DriverName() string {
	return a.driver.Name()
}

func (a *Adapter) serve() {
	defer close(a.stopped)

	for {
		select {
		case <-a.done:
			return
		case req := <-a.requests:
			// Nobody is waiting any more; skip rather than touch hardware.
			if req.ctx.Err() != nil {
				continue
			}

			ctx, cancel := context.WithTimeout(context.Background(), a.timeout*hardDeadlineFactor)
			v, err := req.fn(ctx)
			cancel()

			req.reply <- result{value: v, err: err}
		}
	}
}

func (a *Adapter) do(ctx context.Context, op string, fn func(ctx context.Context) (any, error)) (any, error) {
	errFactory := errors.New()

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	req := request{ctx: ctx, fn: fn, reply: make(chan result, 1)}

	select {
	case a.requests <- req:
	case <-a.done:
		return nil, errFactory.WithData(ErrAdapterClosed, op)
	case <-ctx.Done():
		return nil, errFactory.Wrap(ErrTimeout, ctx.Err()).WithMessage(op + " timed out waiting for hardware")
	}

	select {
	case res := <-req.reply:
		return res.value, res.err
	case <-ctx.Done():
		a.log.Warn().Str("op", op).Dur("timeout", a.timeout).Msg("Hardware call exceeded timeout")
		return nil, errFactory.Wrap(ErrTimeout, ctx.Err()).WithMessage(op + " timed out")
	}
}

// ApplyLimits programs limits through the driver. The values must already be
// clamped against the device capability; the adapter does not clamp.
func (a *Adapter) ApplyLimits(ctx context.Context, limits Limits) error {
	if limits.Empty() {
		return errors.New().WithData(ErrInvalidLimits, "no fields set")
	}

	_, err := a.do(ctx, "apply", func(ctx context.Context) (any, error) {
		return nil, a.driver.Apply(ctx, limits)
	})
	if err == nil {
		a.log.Debug().Str("limits", limits.String()).Msg("Limits applied")
	}

	return err
}

// ReadLimits returns the limits currently programmed, if the driver can
// report them.
func (a *Adapter) ReadLimits(ctx context.Context) (Limits, error) {
	reader, ok := a.driver.(LimitReader)
	if !ok {
		return Limits{}, errors.New().WithData(ErrUnsupported, a.driver.Name()+" cannot read limits")
	}

	v, err := a.do(ctx, "read_limits", func(ctx context.Context) (any, error) {
		return reader.ReadLimits(ctx)
	})
	if err != nil {
		return Limits{}, err
	}

	return v.(Limits), nil
}

// ReadPower queries every power source. It fails only when all of them fail.
// While a battery reports discharging its rate is the system draw; otherwise
// the component sources are summed.
func (a *Adapter) ReadPower(ctx context.Context) (PowerReading, error) {
	if len(a.sources) == 0 {
		return PowerReading{}, errors.New().New(ErrNoPowerSource)
	}

	v, err := a.do(ctx, "read_power", func(ctx context.Context) (any, error) {
		return a.readSources(ctx)
	})
	if err != nil {
		return PowerReading{}, err
	}

	return v.(PowerReading), nil
}

func (a *Adapter) readSources(ctx context.Context) (PowerReading, error) {
	reading := PowerReading{
		Timestamp:  a.now(),
		Components: make(map[string]float64, len(a.sources)),
	}

	var (
		errs      []error
		component float64
		haveComp  bool
	)

	for _, src := range a.sources {
		r, err := src.Read(ctx)
		if err != nil {
			a.log.Debug().Str("source", src.Name()).Err(err).Msg("Power source read failed")
			errs = append(errs, err)
			continue
		}

		reading.Components[src.Name()] = r.Watts
		if r.Battery != nil {
			reading.Battery = r.Battery
			continue
		}

		component += r.Watts
		haveComp = true
	}

	if len(reading.Components) == 0 {
		return PowerReading{}, errors.Join(errs...)
	}

	switch {
	case reading.Battery != nil && !reading.Battery.Charging:
		reading.Watts = reading.Battery.Watts
	case haveComp:
		reading.Watts = component
	default:
		reading.Watts = reading.Battery.Watts
	}

	return reading, nil
}

// Close stops the owner goroutine and closes the driver and sources that
// implement io.Closer. An in-flight call is allowed to finish first.
func (a *Adapter) Close() error {
	var errs []error

	a.closeOnce.Do(func() {
		close(a.done)
		<-a.stopped

		if c, ok := a.driver.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		for _, src := range a.sources {
			if c, ok := src.(io.Closer); ok {
				if err := c.Close(); err != nil {
					errs = append(errs, err)
				}
			}
		}
	})

	return errors.Join(errs...)
}
