package controller_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"codeberg.org/mutker/tdpctl/internal/controller"
	"codeberg.org/mutker/tdpctl/internal/errors"
	"codeberg.org/mutker/tdpctl/internal/hardware"
	"codeberg.org/mutker/tdpctl/internal/process"
	"codeberg.org/mutker/tdpctl/internal/profile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	fakeclock "k8s.io/utils/clock/testing"
)

const testCatalog = `
default: Balanced
profiles:
  - {name: Quiet, tdp: 10}
  - {name: Balanced, tdp: 15}
  - {name: Turbo, tdp: 25}
  - {name: TurboClone, tdp: 25}
  - {name: Boost, sustained: 20, fast: 30, slow: 25}
triggers:
  - {pattern: GameA.exe, profile: Turbo}
  - {pattern: GameB.exe, profile: Quiet}
  - {pattern: GameC.exe, profile: TurboClone}
  - {pattern: GameD.exe, profile: Boost}
devices:
  - id: handheld
    fields:
      sustained: {min: 7, max: 25}
      fast: {min: 7, max: 25}
      slow: {min: 7, max: 25}
`

var (
	gameA = profile.Trigger{Pattern: "GameA.exe", Profile: "Turbo"}
	gameB = profile.Trigger{Pattern: "GameB.exe", Profile: "Quiet"}
	gameC = profile.Trigger{Pattern: "GameC.exe", Profile: "TurboClone"}
	gameD = profile.Trigger{Pattern: "GameD.exe", Profile: "Boost"}
)

func watts(w float64) hardware.Limits {
	mw := hardware.MilliWatts(w)
	return hardware.Limits{}.With(hardware.Sustained, mw).With(hardware.Fast, mw).With(hardware.Slow, mw)
}

type fakeHW struct {
	mu      sync.Mutex
	current hardware.Limits
	writes  []hardware.Limits
	fail    []error
	gate    chan struct{}
	started chan hardware.Limits
	readErr error
}

func newFakeHW(baseline hardware.Limits) *fakeHW {
	return &fakeHW{current: baseline}
}

func (f *fakeHW) failNext(errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = append(f.fail, errs...)
}

func (f *fakeHW) block() (release func(), started <-chan hardware.Limits) {
	f.mu.Lock()
	defer f.mu.Unlock()

	gate := make(chan struct{})
	ch := make(chan hardware.Limits, 8)
	f.gate, f.started = gate, ch

	return func() { close(gate) }, ch
}

func (f *fakeHW) ApplyLimits(ctx context.Context, l hardware.Limits) error {
	f.mu.Lock()
	gate, started := f.gate, f.started
	f.mu.Unlock()

	if started != nil {
		started <- l
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.writes = append(f.writes, l)
	if len(f.fail) > 0 {
		err := f.fail[0]
		f.fail = f.fail[1:]
		return err
	}
	f.current = f.current.Merge(l)

	return nil
}

func (f *fakeHW) ReadLimits(context.Context) (hardware.Limits, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current, f.readErr
}

func (*fakeHW) ReadPower(context.Context) (hardware.PowerReading, error) {
	return hardware.PowerReading{}, nil
}

func (f *fakeHW) Writes() []hardware.Limits {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]hardware.Limits(nil), f.writes...)
}

type recorder struct {
	mu     sync.Mutex
	states []controller.State
}

func (r *recorder) PublishState(s controller.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *recorder) States() []controller.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]controller.State(nil), r.states...)
}

type harness struct {
	t        *testing.T
	hw       *fakeHW
	store    *profile.Store
	triggers chan process.TriggerEvent
	rec      *recorder
	clock    *fakeclock.FakeClock
	ctrl     *controller.Controller
	cancel   context.CancelFunc
	done     chan error
}

func newHarness(t *testing.T, catalog string, opts controller.Options) *harness {
	t.Helper()

	store := profile.NewStore(nil)
	_, err := store.Load(strings.NewReader(catalog))
	require.NoError(t, err)

	h := &harness{
		t:        t,
		hw:       newFakeHW(watts(20)),
		store:    store,
		triggers: make(chan process.TriggerEvent),
		rec:      &recorder{},
		clock:    fakeclock.NewFakeClock(time.Now()),
		done:     make(chan error, 1),
	}

	if opts.DeviceID == "" {
		opts.DeviceID = "handheld"
	}
	opts.Clock = h.clock
	opts.Publisher = h.rec

	h.ctrl = controller.New(h.hw, store, h.triggers, opts)
	return h
}

func (h *harness) start() {
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { h.done <- h.ctrl.Run(ctx) }()

	h.t.Cleanup(func() {
		if h.cancel != nil {
			_ = h.stop()
		}
	})
}

func (h *harness) stop() error {
	h.cancel()
	h.cancel = nil
	return <-h.done
}

func (h *harness) activate(t profile.Trigger) {
	h.triggers <- process.TriggerEvent{Kind: process.Activated, Trigger: t}
}

func (h *harness) deactivate(t profile.Trigger) {
	h.triggers <- process.TriggerEvent{Kind: process.Deactivated, Trigger: t}
}

func (h *harness) waitFor(desc string, pred func(controller.State) bool) controller.State {
	h.t.Helper()

	var s controller.State
	ok := assert.Eventually(h.t, func() bool {
		s = h.ctrl.State()
		return pred(s)
	}, 2*time.Second, 2*time.Millisecond, desc)
	if !ok {
		h.t.Fatalf("last state: %+v", h.ctrl.State())
	}

	return s
}

func applied(profileName, pattern string) func(controller.State) bool {
	return func(s controller.State) bool {
		if s.Phase != controller.PhaseApplied || s.ProfileName() != profileName {
			return false
		}
		if pattern == "" {
			return s.Trigger == nil
		}
		return s.Trigger != nil && s.Trigger.Pattern == pattern
	}
}

func atDefault(profileName string) func(controller.State) bool {
	return func(s controller.State) bool {
		return s.Phase == controller.PhaseDefault && s.ProfileName() == profileName && s.Trigger == nil
	}
}

func TestStartupAppliesDefault(t *testing.T) {
	h := newHarness(t, testCatalog, controller.Options{})
	h.start()

	s := h.waitFor("default applied", atDefault("Balanced"))
	assert.False(t, s.Manual)
	assert.Equal(t, watts(15), s.Limits)
	assert.Equal(t, []hardware.Limits{watts(15)}, h.hw.Writes())
}

func TestGameLaunchScenario(t *testing.T) {
	store := profile.NewStore(nil)
	_, err := store.Load(strings.NewReader(testCatalog))
	require.NoError(t, err)

	src := make(chan process.Event)
	mon := process.NewMonitor(chanSource(src), store, aliveProber{})

	hw := newFakeHW(watts(20))
	ctrl := controller.New(hw, store, mon.Events(), controller.Options{DeviceID: "handheld"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = mon.Run(ctx) }()
	go func() { _ = ctrl.Run(ctx) }()

	h := &harness{t: t, ctrl: ctrl}

	h.waitFor("default", atDefault("Balanced"))

	src <- process.Event{Kind: process.Start, PID: 100, Image: `C:\Games\GameA\GameA.exe`, Created: 1}
	h.waitFor("Turbo for GameA", applied("Turbo", "GameA.exe"))
	writes := len(hw.Writes())

	// A helper process matching no trigger changes nothing.
	src <- process.Event{Kind: process.Start, PID: 101, Image: `C:\Games\GameA\HelperA.exe`, Created: 2}
	src <- process.Event{Kind: process.Stop, PID: 101, Created: 2}
	time.Sleep(50 * time.Millisecond)
	assert.True(t, applied("Turbo", "GameA.exe")(ctrl.State()))
	assert.Len(t, hw.Writes(), writes)

	src <- process.Event{Kind: process.Stop, PID: 100, Created: 1}
	h.waitFor("reverted to default", atDefault("Balanced"))
	assert.Equal(t, []hardware.Limits{watts(15), watts(25), watts(15)}, hw.Writes())
}

func TestManualOverrideScenario(t *testing.T) {
	h := newHarness(t, testCatalog, controller.Options{})
	h.start()
	h.waitFor("default", atDefault("Balanced"))

	h.activate(gameA)
	h.waitFor("Turbo", applied("Turbo", "GameA.exe"))

	require.NoError(t, h.ctrl.SetOverride(context.Background(), "Quiet"))
	s := h.waitFor("manual Quiet", applied("Quiet", ""))
	assert.True(t, s.Manual)

	// Game activity never evicts the override.
	h.activate(gameB)
	h.deactivate(gameB)
	h.deactivate(gameA)
	time.Sleep(50 * time.Millisecond)
	s = h.ctrl.State()
	assert.True(t, applied("Quiet", "")(s))
	assert.True(t, s.Manual)
	assert.Empty(t, s.Stack)

	require.NoError(t, h.ctrl.ClearOverride(context.Background()))
	s = h.waitFor("back to default", atDefault("Balanced"))
	assert.False(t, s.Manual)
}

func TestOverrideWatts(t *testing.T) {
	h := newHarness(t, testCatalog, controller.Options{})
	h.start()
	h.waitFor("default", atDefault("Balanced"))

	require.NoError(t, h.ctrl.SetOverrideWatts(context.Background(), 12))
	s := h.waitFor("manual watts", applied("Manual 12W", ""))
	assert.Equal(t, watts(12), s.Limits)

	err := h.ctrl.SetOverrideWatts(context.Background(), 0)
	assert.True(t, errors.HasCode(err, controller.ErrInvalidWatts))
}

func TestOverrideErrors(t *testing.T) {
	h := newHarness(t, testCatalog, controller.Options{})

	err := h.ctrl.SetOverride(context.Background(), "Quiet")
	assert.True(t, errors.HasCode(err, controller.ErrNotRunning))

	h.start()
	h.waitFor("default", atDefault("Balanced"))

	err = h.ctrl.SetOverride(context.Background(), "Ludicrous")
	assert.True(t, errors.HasCode(err, controller.ErrUnknownProfile))

	// Clearing without an override is a no-op.
	require.NoError(t, h.ctrl.ClearOverride(context.Background()))
}

func TestIdenticalLimitsSkipWrite(t *testing.T) {
	h := newHarness(t, testCatalog, controller.Options{})
	h.start()
	h.waitFor("default", atDefault("Balanced"))

	h.activate(gameA)
	h.waitFor("Turbo", applied("Turbo", "GameA.exe"))
	before := len(h.hw.Writes())

	// TurboClone has the same values under a different name.
	h.activate(gameC)
	s := h.waitFor("TurboClone", applied("TurboClone", "GameC.exe"))
	assert.Len(t, h.hw.Writes(), before)
	assert.Equal(t, watts(25), s.Limits)

	// Reloading an unchanged catalog does not write either.
	_, err := h.store.Load(strings.NewReader(testCatalog))
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, h.hw.Writes(), before)
}

func TestCatalogEditReapplies(t *testing.T) {
	h := newHarness(t, testCatalog, controller.Options{})
	h.start()
	h.waitFor("default", atDefault("Balanced"))

	h.activate(gameA)
	h.waitFor("Turbo", applied("Turbo", "GameA.exe"))

	_, err := h.store.Load(strings.NewReader(strings.Replace(testCatalog, "{name: Turbo, tdp: 25}", "{name: Turbo, tdp: 22}", 1)))
	require.NoError(t, err)

	s := h.waitFor("edited Turbo", func(s controller.State) bool {
		return applied("Turbo", "GameA.exe")(s) && s.Limits == watts(22)
	})
	assert.Equal(t, 22.0, s.Profile.Sustained)
}

func TestSupersededApplyIsDiscarded(t *testing.T) {
	h := newHarness(t, testCatalog, controller.Options{})
	h.start()
	h.waitFor("default", atDefault("Balanced"))

	release, started := h.hw.block()

	h.activate(gameA)
	assert.Equal(t, watts(25), <-started)
	turboGen := h.ctrl.State().Generation

	h.activate(gameB)
	s := h.waitFor("Quiet pending", func(s controller.State) bool {
		return s.Phase == controller.PhaseApplying && s.Target != nil && s.Target.Name == "Quiet"
	})
	assert.Greater(t, s.Generation, turboGen)

	release()

	final := h.waitFor("Quiet applied", applied("Quiet", "GameB.exe"))
	assert.Equal(t, watts(10), final.Limits)

	// The stale write was issued, then corrected.
	writes := h.hw.Writes()
	assert.Equal(t, []hardware.Limits{watts(25), watts(10)}, writes[len(writes)-2:])

	for _, st := range h.rec.States() {
		if st.Phase == controller.PhaseApplied {
			assert.NotEqual(t, "Turbo", st.ProfileName(), "superseded Turbo must never be reported applied")
		}
	}
}

func TestQueuedApplyIsCoalesced(t *testing.T) {
	h := newHarness(t, testCatalog, controller.Options{})
	h.start()
	h.waitFor("default", atDefault("Balanced"))

	release, started := h.hw.block()

	h.activate(gameA)
	<-started
	// Both of these queue behind the in-flight write; only the last runs.
	h.activate(gameB)
	h.activate(gameD)

	release()
	h.waitFor("Boost", applied("Boost", "GameD.exe"))

	writes := h.hw.Writes()
	assert.NotContains(t, writes, watts(10))
}

func TestStackTopIsAppliedWhenSettled(t *testing.T) {
	h := newHarness(t, testCatalog, controller.Options{})
	h.start()
	h.waitFor("default", atDefault("Balanced"))

	type step struct {
		activate bool
		trigger  profile.Trigger
	}
	steps := []step{
		{true, gameA}, {true, gameB}, {true, gameC}, {false, gameB},
		{true, gameA}, {false, gameC}, {true, gameD}, {false, gameA},
		{false, gameB}, {false, gameD}, {true, gameB}, {false, gameB},
	}

	var model []profile.Trigger
	remove := func(t profile.Trigger) {
		for i, e := range model {
			if e.Pattern == t.Pattern {
				model = append(model[:i], model[i+1:]...)
				return
			}
		}
	}

	for i, st := range steps {
		if st.activate {
			remove(st.trigger)
			model = append(model, st.trigger)
			h.activate(st.trigger)
		} else {
			remove(st.trigger)
			h.deactivate(st.trigger)
		}

		want := append([]profile.Trigger{}, model...)
		s := h.waitFor("settled", func(s controller.State) bool {
			return s.Phase.Settled() && len(s.Stack) == len(want) && (len(want) == 0 || s.Stack[len(s.Stack)-1] == want[len(want)-1])
		})

		if len(want) == 0 {
			assert.Nil(t, s.Trigger, "step %d", i)
			assert.Equal(t, "Balanced", s.ProfileName(), "step %d", i)
			continue
		}
		require.NotNil(t, s.Trigger, "step %d", i)
		assert.Equal(t, want[len(want)-1].Pattern, s.Trigger.Pattern, "step %d", i)
	}
}

func TestClampAgainstCapability(t *testing.T) {
	// Boost asks for 30 W fast boost on a device limited to [7, 25] W.
	h := newHarness(t, testCatalog, controller.Options{})
	h.start()
	h.waitFor("default", atDefault("Balanced"))

	h.activate(gameD)
	s := h.waitFor("Boost", applied("Boost", "GameD.exe"))

	want := hardware.Limits{}.
		With(hardware.Sustained, 20000).
		With(hardware.Fast, 25000).
		With(hardware.Slow, 25000)
	assert.Equal(t, want, s.Limits)
	assert.Equal(t, want, h.hw.Writes()[len(h.hw.Writes())-1])
}

func TestStrictClampRejects(t *testing.T) {
	h := newHarness(t, testCatalog, controller.Options{Strict: true})
	h.start()
	h.waitFor("default", atDefault("Balanced"))
	before := len(h.hw.Writes())

	h.activate(gameD)
	s := h.waitFor("degraded", func(s controller.State) bool { return s.Degraded })

	assert.Equal(t, "Balanced", s.ProfileName())
	assert.Contains(t, s.Err, "fast")
	assert.Len(t, h.hw.Writes(), before)

	// Leaving the rejected game recovers.
	h.deactivate(gameD)
	s = h.waitFor("recovered", func(s controller.State) bool { return !s.Degraded })
	assert.Equal(t, "Balanced", s.ProfileName())
}

func TestUnknownDeviceWritesNothing(t *testing.T) {
	h := newHarness(t, testCatalog, controller.Options{DeviceID: "Mystery APU"})
	h.start()

	s := h.waitFor("degraded", func(s controller.State) bool { return s.Degraded })
	assert.Equal(t, controller.PhaseDefault, s.Phase)
	assert.Nil(t, s.Profile)
	assert.Empty(t, h.hw.Writes())
}

func TestRetryWithBackoff(t *testing.T) {
	h := newHarness(t, testCatalog, controller.Options{RetryAttempts: 3, RetryBackoff: 500 * time.Millisecond})
	unavailable := errors.New().New(hardware.ErrUnavailable)
	h.hw.failNext(unavailable, unavailable)
	h.start()

	require.Eventually(t, h.clock.HasWaiters, time.Second, time.Millisecond)
	h.clock.Step(500 * time.Millisecond)
	require.Eventually(t, h.clock.HasWaiters, time.Second, time.Millisecond)
	h.clock.Step(time.Second)

	s := h.waitFor("default after retries", atDefault("Balanced"))
	assert.False(t, s.Degraded)
	assert.Len(t, h.hw.Writes(), 3)
}

func TestRetryExhaustedKeepsLastApplied(t *testing.T) {
	h := newHarness(t, testCatalog, controller.Options{RetryAttempts: 3, RetryBackoff: 100 * time.Millisecond})
	h.start()
	h.waitFor("default", atDefault("Balanced"))
	before := len(h.hw.Writes())

	timeout := errors.New().New(hardware.ErrTimeout)
	h.hw.failNext(timeout, timeout, timeout)
	h.activate(gameA)

	require.Eventually(t, h.clock.HasWaiters, time.Second, time.Millisecond)
	h.clock.Step(100 * time.Millisecond)
	require.Eventually(t, h.clock.HasWaiters, time.Second, time.Millisecond)
	h.clock.Step(200 * time.Millisecond)

	s := h.waitFor("degraded", func(s controller.State) bool { return s.Degraded })
	assert.Equal(t, controller.PhaseDefault, s.Phase)
	assert.Equal(t, "Balanced", s.ProfileName())
	assert.Equal(t, watts(15), s.Limits)
	assert.NotEmpty(t, s.Err)
	assert.Len(t, h.hw.Writes(), before+3)
}

func TestUnsupportedIsNotRetried(t *testing.T) {
	h := newHarness(t, testCatalog, controller.Options{})
	h.start()
	h.waitFor("default", atDefault("Balanced"))
	before := len(h.hw.Writes())

	h.hw.failNext(errors.New().New(hardware.ErrUnsupported))
	h.activate(gameA)

	s := h.waitFor("degraded", func(s controller.State) bool { return s.Degraded })
	assert.Equal(t, "Balanced", s.ProfileName())
	assert.Len(t, h.hw.Writes(), before+1)
	assert.False(t, h.clock.HasWaiters())
}

func TestBaselineFallbackWithoutDefault(t *testing.T) {
	catalog := strings.Replace(testCatalog, "default: Balanced\n", "", 1)
	h := newHarness(t, catalog, controller.Options{})
	h.start()

	s := h.waitFor("unmanaged start", func(s controller.State) bool {
		return s.Phase == controller.PhaseDefault && s.Generation > 0
	})
	assert.Nil(t, s.Profile)
	assert.Empty(t, h.hw.Writes())

	h.activate(gameA)
	h.waitFor("Turbo", applied("Turbo", "GameA.exe"))

	h.deactivate(gameA)
	s = h.waitFor("baseline", func(s controller.State) bool {
		return s.Phase == controller.PhaseDefault && s.Profile == nil && s.Limits == watts(20)
	})
	assert.Equal(t, []hardware.Limits{watts(25), watts(20)}, h.hw.Writes())
}

func TestRestoreBaselineOnExit(t *testing.T) {
	h := newHarness(t, testCatalog, controller.Options{RestoreOnExit: true})
	h.start()
	h.waitFor("default", atDefault("Balanced"))

	h.activate(gameA)
	h.waitFor("Turbo", applied("Turbo", "GameA.exe"))

	require.NoError(t, h.stop())

	writes := h.hw.Writes()
	assert.Equal(t, watts(20), writes[len(writes)-1])
}

func TestNoRestoreWithoutBaseline(t *testing.T) {
	h := newHarness(t, testCatalog, controller.Options{RestoreOnExit: true})
	h.hw.readErr = errors.New().New(hardware.ErrUnsupported)
	h.start()
	h.waitFor("default", atDefault("Balanced"))

	require.NoError(t, h.stop())

	assert.Equal(t, []hardware.Limits{watts(15)}, h.hw.Writes())
}

func TestTriggerUpdateKeepsStackOrder(t *testing.T) {
	h := newHarness(t, testCatalog, controller.Options{})
	h.start()
	h.waitFor("default", atDefault("Balanced"))

	h.activate(gameB)
	h.waitFor("Quiet", applied("Quiet", "GameB.exe"))
	h.activate(gameA)
	h.waitFor("Turbo", applied("Turbo", "GameA.exe"))

	edited := profile.Trigger{Pattern: "GameB.exe", Profile: "Balanced", Priority: 1}
	h.triggers <- process.TriggerEvent{Kind: process.Updated, Trigger: edited}

	s := h.waitFor("stack updated", func(s controller.State) bool {
		return len(s.Stack) == 2 && s.Stack[0] == edited
	})
	assert.Equal(t, []profile.Trigger{edited, gameA}, s.Stack)
	assert.Equal(t, "Turbo", s.ProfileName())

	// The edited entry takes effect once it is on top again.
	h.deactivate(gameA)
	h.waitFor("Balanced via GameB", applied("Balanced", "GameB.exe"))

	// Updates for triggers the controller never saw are ignored.
	h.triggers <- process.TriggerEvent{Kind: process.Updated, Trigger: gameC}
	h.waitFor("still Balanced", applied("Balanced", "GameB.exe"))
	assert.Len(t, h.ctrl.State().Stack, 1)
}

func TestBaselineIsClampedToCapability(t *testing.T) {
	catalog := strings.Replace(testCatalog, "default: Balanced\n", "", 1)
	h := newHarness(t, catalog, controller.Options{RestoreOnExit: true})
	h.hw.current = watts(30).With(hardware.SkinTemp, 70)
	h.start()

	h.waitFor("clamped baseline", func(s controller.State) bool {
		return s.Phase == controller.PhaseDefault && s.Generation > 0 && s.Limits.Covers(watts(25))
	})

	h.activate(gameB)
	h.waitFor("Quiet", applied("Quiet", "GameB.exe"))

	h.deactivate(gameB)
	s := h.waitFor("baseline", func(s controller.State) bool {
		return s.Phase == controller.PhaseDefault && s.Generation > 2 && s.Limits.Covers(watts(25))
	})
	assert.False(t, s.Degraded)

	h.activate(gameB)
	h.waitFor("Quiet again", applied("Quiet", "GameB.exe"))
	require.NoError(t, h.stop())

	assert.Equal(t, []hardware.Limits{watts(25), watts(10), watts(25), watts(10), watts(25)}, h.hw.Writes())
}

func TestStrictBaselineOutOfRangeIsRejected(t *testing.T) {
	catalog := strings.Replace(testCatalog, "default: Balanced\n", "", 1)
	h := newHarness(t, catalog, controller.Options{Strict: true, RestoreOnExit: true})
	h.hw.current = watts(30)
	h.start()

	s := h.waitFor("degraded", func(s controller.State) bool { return s.Degraded })
	assert.Nil(t, s.Profile)
	require.NoError(t, h.stop())

	assert.Empty(t, h.hw.Writes())
}

type chanSource chan process.Event

func (s chanSource) Run(ctx context.Context, events chan<- process.Event) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-s:
			select {
			case events <- ev:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

type aliveProber struct{}

func (aliveProber) Alive(context.Context, int32, int64) bool { return true }
