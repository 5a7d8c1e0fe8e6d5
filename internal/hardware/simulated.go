package hardware

import (
	"context"
	"sync"
	"time"
)

// Simulated is an in-memory driver and power source used for dry runs and
// tests. It records every Apply call.
type Simulated struct {
	mu       sync.Mutex
	limits   Limits
	applied  []Limits
	failures []error
	delay    time.Duration
	hook     func(Limits) error
}

// NewSimulated returns a driver whose current limits are initial.
func NewSimulated(initial Limits) *Simulated {
	return &Simulated{limits: initial}
}

func (*Simulated) Name() string { return "simulated" }

// FailNext queues errors returned by the next Apply calls, in order.
func (s *Simulated) FailNext(errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, errs...)
}

// SetDelay makes every Apply take d.
func (s *Simulated) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// SetHook installs fn to run inside Apply before the limits are stored. A
// non-nil error from fn fails the call. A nil fn removes the hook.
func (s *Simulated) SetHook(fn func(Limits) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = fn
}

func (s *Simulated) Apply(ctx context.Context, limits Limits) error {
	s.mu.Lock()
	delay := s.delay
	hook := s.hook
	var injected error
	if len(s.failures) > 0 {
		injected = s.failures[0]
		s.failures = s.failures[1:]
	}
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if hook != nil {
		if err := hook(limits); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.applied = append(s.applied, limits)
	if injected != nil {
		return injected
	}

	for _, f := range limits.Fields() {
		v, _ := limits.Get(f)
		s.limits = s.limits.With(f, v)
	}

	return nil
}

func (s *Simulated) ReadLimits(context.Context) (Limits, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.limits, nil
}

// Limits returns the currently programmed limits.
func (s *Simulated) Limits() Limits {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.limits
}

// Applied returns every limit set passed to Apply, including failed ones.
func (s *Simulated) Applied() []Limits {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Limits(nil), s.applied...)
}

// SimulatedSource reports power as a fixed fraction of the sustained limit
// programmed in the driver.
type SimulatedSource struct {
	driver *Simulated
	load   float64
}

// NewSimulatedSource returns a power source backed by driver.
func NewSimulatedSource(driver *Simulated) *SimulatedSource {
	return &SimulatedSource{driver: driver, load: 0.8}
}

func (*SimulatedSource) Name() string { return "simulated" }

func (s *SimulatedSource) Read(context.Context) (SourceReading, error) {
	sustained, _ := s.driver.Limits().Get(Sustained)
	return SourceReading{Watts: Watts(sustained) * s.load}, nil
}
