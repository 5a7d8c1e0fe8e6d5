package controller

import (
	"context"
	"sync"
	"time"

	"codeberg.org/mutker/tdpctl/internal/errors"
	"codeberg.org/mutker/tdpctl/internal/hardware"
	"codeberg.org/mutker/tdpctl/internal/logger"
	"k8s.io/utils/clock"
)

type job struct {
	gen    uint64
	target desired
}

type applyResult struct {
	job      job
	err      error
	attempts int
}

// applier runs hardware applies one at a time. Submitting while a job is
// queued replaces the queued job; a running job is never interrupted.
type applier struct {
	hw       hardware.Controller
	clock    clock.Clock
	attempts int
	backoff  time.Duration
	log      logger.Logger

	mu     sync.Mutex
	next   *job
	signal chan struct{}

	results chan applyResult
}

func newApplier(hw hardware.Controller, clk clock.Clock, attempts int, backoff time.Duration, log logger.Logger) *applier {
	return &applier{
		hw:       hw,
		clock:    clk,
		attempts: attempts,
		backoff:  backoff,
		log:      log,
		signal:   make(chan struct{}, 1),
		results:  make(chan applyResult),
	}
}

func (a *applier) submit(j job) {
	a.mu.Lock()
	a.next = &j
	a.mu.Unlock()

	select {
	case a.signal <- struct{}{}:
	default:
	}
}

func (a *applier) take() (job, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.next == nil {
		return job{}, false
	}
	j := *a.next
	a.next = nil

	return j, true
}

func (a *applier) superseded() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.next != nil
}

func (a *applier) run(ctx context.Context) {
	for {
		j, ok := a.take()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-a.signal:
				continue
			}
		}

		res := a.apply(ctx, j)

		select {
		case a.results <- res:
		case <-ctx.Done():
			return
		}
	}
}

// apply writes the job's limits, retrying transient failures with
// exponential backoff. Unsupported limits are not retried, and retries stop
// once a newer job is queued.
func (a *applier) apply(ctx context.Context, j job) applyResult {
	delay := a.backoff
	res := applyResult{job: j}

	for {
		res.attempts++
		res.err = a.hw.ApplyLimits(ctx, j.target.limits)

		switch {
		case res.err == nil:
			return res
		case hardware.IsUnsupported(res.err),
			errors.HasCode(res.err, hardware.ErrInvalidLimits),
			res.attempts >= a.attempts:
			return res
		case a.superseded():
			return res
		}

		a.log.Warn().
			Err(res.err).
			Uint64("generation", j.gen).
			Int("attempt", res.attempts).
			Dur("backoff", delay).
			Msg("Apply failed, retrying")

		if !a.wait(ctx, delay) {
			return res
		}
		delay *= 2
	}
}

// wait sleeps for d. It returns false when ctx ends or a newer job arrives.
func (a *applier) wait(ctx context.Context, d time.Duration) bool {
	timer := a.clock.NewTimer(d)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-timer.C():
			return true
		case <-a.signal:
			if a.superseded() {
				return false
			}
		}
	}
}
