package controller

import (
	"context"
	"sync/atomic"
	"time"

	"codeberg.org/mutker/tdpctl/internal/errors"
	"codeberg.org/mutker/tdpctl/internal/hardware"
	"codeberg.org/mutker/tdpctl/internal/logger"
	"codeberg.org/mutker/tdpctl/internal/process"
	"codeberg.org/mutker/tdpctl/internal/profile"
	"k8s.io/utils/clock"
)

const (
	DefaultRetryAttempts = 3
	DefaultRetryBackoff  = 500 * time.Millisecond

	restoreTimeout = 5 * time.Second
	baselineName   = "stock"
)

// Catalog is the part of the profile store the controller reads.
// *profile.Store implements it.
type Catalog interface {
	Resolve(name string) (profile.Profile, bool)
	Default() (profile.Profile, bool)
	CapabilityFor(deviceID string) profile.DeviceCapability
	Subscribe() <-chan struct{}
}

// Publisher receives every state snapshot. It must not block.
type Publisher interface {
	PublishState(State)
}

// Options configures a Controller.
type Options struct {
	DeviceID      string
	Strict        bool
	RetryAttempts int
	RetryBackoff  time.Duration
	RestoreOnExit bool
	Clock         clock.Clock
	Logger        logger.Logger
	Publisher     Publisher
}

type override struct {
	profile profile.Profile
	// byName overrides follow catalog edits of the named profile.
	byName bool
}

type commandKind int

const (
	cmdSetOverride commandKind = iota
	cmdClearOverride
)

type command struct {
	kind     commandKind
	override override
	reply    chan error
}

// Controller owns the applied TDP state. All transitions run on the Run
// goroutine; hardware writes go through a single applier so at most one
// apply is in flight.
type Controller struct {
	hw        hardware.Controller
	catalog   Catalog
	triggers  <-chan process.TriggerEvent
	reload    <-chan struct{}
	opts      Options
	log       logger.Logger
	publisher Publisher

	commands chan command
	applier  *applier
	running  atomic.Bool
	snapshot atomic.Pointer[State]

	// Owned by the Run goroutine.
	stack         Stack
	override      *override
	gen           uint64
	submittedGen  uint64
	completedGen  uint64
	desired       desired
	applied       desired
	phase         Phase
	degraded      bool
	lastErr       string
	hwLimits      hardware.Limits
	hwKnown       bool
	baseline      hardware.Limits
	baselineKnown bool
}

// New returns a controller consuming trigger events from triggers.
func New(hw hardware.Controller, catalog Catalog, triggers <-chan process.TriggerEvent, opts Options) *Controller {
	if opts.RetryAttempts < 1 {
		opts.RetryAttempts = DefaultRetryAttempts
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = DefaultRetryBackoff
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}

	c := &Controller{
		hw:        hw,
		catalog:   catalog,
		triggers:  triggers,
		reload:    catalog.Subscribe(),
		opts:      opts,
		log:       opts.Logger,
		publisher: opts.Publisher,
		commands:  make(chan command),
		applier:   newApplier(hw, opts.Clock, opts.RetryAttempts, opts.RetryBackoff, opts.Logger),
	}

	initial := State{Phase: PhaseDefault, Device: opts.DeviceID, UpdatedAt: opts.Clock.Now()}
	c.snapshot.Store(&initial)

	return c
}

// State returns the latest published snapshot.
func (c *Controller) State() State {
	return *c.snapshot.Load()
}

// SetOverride pins the named catalog profile until ClearOverride. Trigger
// activity never evicts an override.
func (c *Controller) SetOverride(ctx context.Context, name string) error {
	p, ok := c.catalog.Resolve(name)
	if !ok {
		return errors.New().WithData(ErrUnknownProfile, name)
	}
	return c.send(ctx, command{kind: cmdSetOverride, override: override{profile: p, byName: true}})
}

// SetOverrideWatts pins an ad-hoc profile setting all power limits to watts.
func (c *Controller) SetOverrideWatts(ctx context.Context, watts float64) error {
	if watts <= 0 {
		return errors.New().WithData(ErrInvalidWatts, watts)
	}
	return c.send(ctx, command{kind: cmdSetOverride, override: override{profile: profile.Manual(watts)}})
}

// ClearOverride removes a manual override, if any.
func (c *Controller) ClearOverride(ctx context.Context) error {
	return c.send(ctx, command{kind: cmdClearOverride})
}

func (c *Controller) send(ctx context.Context, cmd command) error {
	if !c.running.Load() {
		return errors.New().New(ErrNotRunning)
	}

	cmd.reply = make(chan error, 1)

	select {
	case c.commands <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-cmd.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drives the state machine until ctx is cancelled. On exit the
// baseline limits are restored when configured.
func (c *Controller) Run(ctx context.Context) error {
	c.running.Store(true)
	defer c.running.Store(false)

	c.captureBaseline(ctx)

	applierCtx, cancelApplier := context.WithCancel(context.Background())
	applierDone := make(chan struct{})
	go func() {
		defer close(applierDone)
		c.applier.run(applierCtx)
	}()

	c.reconcile("startup", false)

	for {
		select {
		case <-ctx.Done():
			cancelApplier()
			<-applierDone
			return c.restore()

		case ev, ok := <-c.triggers:
			if !ok {
				c.triggers = nil
				continue
			}
			c.handleTrigger(ev)

		case <-c.reload:
			c.reconcile("catalog reloaded", false)

		case cmd := <-c.commands:
			cmd.reply <- c.handleCommand(cmd)

		case res := <-c.applier.results:
			c.handleResult(res)
		}
	}
}

func (c *Controller) captureBaseline(ctx context.Context) {
	limits, err := c.hw.ReadLimits(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("Could not read current limits, baseline restore disabled")
		return
	}

	c.baseline, c.baselineKnown = limits, true
	c.hwLimits, c.hwKnown = limits, true
	c.log.Info().Str("limits", limits.String()).Msg("Captured baseline limits")
}

// baselineLimits checks the captured baseline against the current device
// capability like any profile.
func (c *Controller) baselineLimits() (hardware.Limits, error) {
	res, err := profile.ClampLimits(baselineName, c.baseline, c.catalog.CapabilityFor(c.opts.DeviceID), c.opts.Strict)
	if err != nil {
		return hardware.Limits{}, err
	}
	return res.Limits, nil
}

func (c *Controller) restore() error {
	if !c.opts.RestoreOnExit || !c.baselineKnown || !c.hwKnown {
		return nil
	}

	limits, err := c.baselineLimits()
	if err != nil {
		c.log.Warn().Err(err).Msg("Baseline limits not restorable on this device")
		return nil
	}
	if c.hwLimits.Covers(limits) {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), restoreTimeout)
	defer cancel()

	if err := c.hw.ApplyLimits(ctx, limits); err != nil {
		c.log.Error().Err(err).Msg("Failed to restore baseline limits")
		return errors.New().Wrap(ErrRestoreFail, err)
	}

	c.log.Info().Str("limits", limits.String()).Msg("Restored baseline limits")

	return nil
}

func (c *Controller) handleTrigger(ev process.TriggerEvent) {
	switch ev.Kind {
	case process.Activated:
		c.stack.Push(ev.Trigger)
		c.reconcile("trigger activated: "+ev.Trigger.String(), false)

	case process.Deactivated:
		wasTop := c.stack.IsTop(ev.Trigger)
		if !c.stack.Remove(ev.Trigger) {
			return
		}
		c.reconcile("trigger deactivated: "+ev.Trigger.String(), wasTop)

	case process.Updated:
		if !c.stack.Replace(ev.Trigger) {
			return
		}
		c.reconcile("trigger updated: "+ev.Trigger.String(), false)
	}
}

func (c *Controller) handleCommand(cmd command) error {
	switch cmd.kind {
	case cmdSetOverride:
		o := cmd.override
		c.override = &o
		c.reconcile("manual override: "+o.profile.Name, false)

	case cmdClearOverride:
		if c.override == nil {
			return nil
		}
		c.override = nil
		c.reconcile("manual override cleared", true)
	}

	return nil
}

// resolveTarget picks the effective profile: manual override, then the
// topmost trigger whose profile still resolves, then the catalog default,
// then the captured baseline. The result is clamped against the current
// device capability on every call.
func (c *Controller) resolveTarget() desired {
	var d desired

	switch {
	case c.override != nil:
		p := c.override.profile
		if c.override.byName {
			if fresh, ok := c.catalog.Resolve(p.Name); ok {
				p = fresh
			}
		}
		d = desired{origin: originManual, profile: p}

	default:
		entries := c.stack.Entries()
		for i := len(entries) - 1; i >= 0; i-- {
			if p, ok := c.catalog.Resolve(entries[i].Profile); ok {
				d = desired{origin: originTrigger, profile: p, trigger: entries[i]}
				break
			}
		}

		if d.origin == originUnmanaged {
			if p, ok := c.catalog.Default(); ok {
				d = desired{origin: originDefault, profile: p}
			} else if c.baselineKnown {
				d = desired{origin: originBaseline}
				limits, err := c.baselineLimits()
				if err != nil {
					d.err = err.Error()
					return d
				}
				d.limits = limits
				return d
			} else {
				return desired{}
			}
		}
	}

	res, err := profile.Clamp(d.profile, c.catalog.CapabilityFor(c.opts.DeviceID), c.opts.Strict)
	if err != nil {
		d.err = err.Error()
		return d
	}

	if len(res.Clamped) > 0 || len(res.Dropped) > 0 {
		c.log.Debug().
			Str("profile", d.profile.Name).
			Str("limits", res.Limits.String()).
			Int("clamped", len(res.Clamped)).
			Int("dropped", len(res.Dropped)).
			Msg("Profile adjusted to device capability")
	}
	d.limits = res.Limits

	return d
}

func (c *Controller) inflight() bool {
	return c.submittedGen > c.completedGen
}

func (c *Controller) reconcile(reason string, reverting bool) {
	next := c.resolveTarget()
	if next == c.desired && !c.degraded {
		c.publish()
		return
	}

	c.gen++
	c.desired = next

	c.log.Debug().
		Uint64("generation", c.gen).
		Str("reason", reason).
		Str("origin", next.origin.String()).
		Str("profile", next.profile.Name).
		Str("limits", next.limits.String()).
		Msg("Target changed")

	switch {
	case next.err != "":
		c.degraded, c.lastErr = true, next.err
		if !c.inflight() {
			c.phase = c.applied.settledPhase()
		}
		c.log.Warn().Str("reason", reason).Str("error", next.err).Msg("Target cannot be applied")

	case next.origin == originUnmanaged:
		if c.inflight() {
			c.phase = PhaseReverting
			break
		}
		c.settle(next)

	case !c.inflight() && c.hwKnown && c.hwLimits.Covers(next.limits):
		c.settle(next)

	default:
		c.submittedGen = c.gen
		c.applier.submit(job{gen: c.gen, target: next})
		if reverting {
			c.phase = PhaseReverting
		} else {
			c.phase = PhaseApplying
		}
	}

	c.publish()
}

func (c *Controller) handleResult(res applyResult) {
	if res.job.gen > c.completedGen {
		c.completedGen = res.job.gen
	}

	if res.err == nil {
		c.hwLimits = c.hwLimits.Merge(res.job.target.limits)
		c.hwKnown = true
		c.applied = res.job.target
	}

	if res.job.gen < c.submittedGen {
		c.log.Debug().
			Uint64("generation", res.job.gen).
			Uint64("current", c.gen).
			Msg("Discarding superseded apply result")
		return
	}

	switch {
	case res.job.gen == c.gen && res.err == nil:
		c.settle(c.desired)
		c.log.Info().
			Uint64("generation", c.gen).
			Str("profile", c.desired.profile.Name).
			Str("limits", c.hwLimits.String()).
			Int("attempts", res.attempts).
			Msg("Profile applied")

	case res.job.gen == c.gen:
		c.phase = c.applied.settledPhase()
		c.degraded, c.lastErr = true, res.err.Error()
		c.log.Error().
			Err(res.err).
			Uint64("generation", c.gen).
			Str("profile", c.desired.profile.Name).
			Int("attempts", res.attempts).
			Msg("Failed to apply profile, keeping last applied limits")

	case c.desired.err != "":
		// The target changed to something unappliable while this job ran.
		c.phase = c.applied.settledPhase()

	default:
		// Unmanaged target reached while the last write was in flight.
		c.settle(c.desired)
	}

	c.publish()
}

func (c *Controller) settle(d desired) {
	c.applied = d
	c.phase = d.settledPhase()
	c.degraded, c.lastErr = false, ""
}

func (c *Controller) publish() {
	s := State{
		Phase:      c.phase,
		Generation: c.gen,
		Limits:     c.hwLimits,
		Stack:      c.stack.Entries(),
		Degraded:   c.degraded,
		Err:        c.lastErr,
		Device:     c.opts.DeviceID,
		UpdatedAt:  c.opts.Clock.Now(),
	}

	if c.applied.hasProfile() {
		p := c.applied.profile
		s.Profile = &p
	}
	switch c.applied.origin {
	case originTrigger:
		t := c.applied.trigger
		s.Trigger = &t
	case originManual:
		s.Manual = true
	}

	if !c.phase.Settled() && c.desired.hasProfile() {
		p := c.desired.profile
		s.Target = &p
	}

	c.snapshot.Store(&s)
	if c.publisher != nil {
		c.publisher.PublishState(s)
	}
}

func (o origin) String() string {
	switch o {
	case originBaseline:
		return "baseline"
	case originDefault:
		return "default"
	case originTrigger:
		return "trigger"
	case originManual:
		return "manual"
	default:
		return "unmanaged"
	}
}
