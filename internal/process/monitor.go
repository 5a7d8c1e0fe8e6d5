package process

import (
	"context"
	"sort"
	"time"

	"codeberg.org/mutker/tdpctl/internal/errors"
	"codeberg.org/mutker/tdpctl/internal/logger"
	"codeberg.org/mutker/tdpctl/internal/profile"
	"k8s.io/utils/clock"
)

const (
	DefaultLivenessInterval = 10 * time.Second

	eventBuffer  = 64
	outputBuffer = 32
)

// trackedProcess is a process seen by the monitor. Unmatched processes are
// kept too, so a reloaded catalog can match them later.
type trackedProcess struct {
	image   string
	created int64
	trigger profile.Trigger
	matched bool
}

type activeTrigger struct {
	trigger profile.Trigger
	refs    int
	// newest is the latest start time among the matching processes.
	newest int64
}

// Monitor turns process events into reference-counted trigger activations.
// A trigger is activated when its first matching process starts and
// deactivated only when its last matching process is gone. A catalog reload
// that edits an active trigger in place emits Updated.
type Monitor struct {
	source   Source
	matcher  Matcher
	prober   Prober
	clock    clock.WithTicker
	liveness time.Duration
	reload   <-chan struct{}
	log      logger.Logger

	out chan TriggerEvent

	// Owned by the Run goroutine.
	tracked map[int32]*trackedProcess
	active  map[string]*activeTrigger
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithClock replaces the clock driving liveness checks.
func WithClock(c clock.WithTicker) Option {
	return func(m *Monitor) { m.clock = c }
}

// WithLivenessInterval sets how often tracked processes are re-checked.
func WithLivenessInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.liveness = d
		}
	}
}

// WithReload makes the monitor re-match tracked processes whenever ch is
// signalled, typically from profile.Store.Subscribe.
func WithReload(ch <-chan struct{}) Option {
	return func(m *Monitor) { m.reload = ch }
}

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(m *Monitor) { m.log = log }
}

// NewMonitor returns a monitor reading from source.
func NewMonitor(source Source, matcher Matcher, prober Prober, opts ...Option) *Monitor {
	m := &Monitor{
		source:   source,
		matcher:  matcher,
		prober:   prober,
		clock:    clock.RealClock{},
		liveness: DefaultLivenessInterval,
		log:      logger.Nop(),
		out:      make(chan TriggerEvent, outputBuffer),
		tracked:  make(map[int32]*trackedProcess),
		active:   make(map[string]*activeTrigger),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Events returns the trigger event stream. It is closed when Run returns.
func (m *Monitor) Events() <-chan TriggerEvent {
	return m.out
}

// Run processes events until ctx is cancelled or the source fails.
func (m *Monitor) Run(ctx context.Context) error {
	defer close(m.out)

	events := make(chan Event, eventBuffer)
	srcErr := make(chan error, 1)

	srcCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() { srcErr <- m.source.Run(srcCtx, events) }()

	ticker := m.clock.NewTicker(m.liveness)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case err := <-srcErr:
			if ctx.Err() != nil {
				return nil
			}
			return errors.New().Wrap(ErrSourceStopped, err)

		case ev := <-events:
			m.handle(ctx, ev)

		case <-ticker.C():
			m.checkLiveness(ctx)

		case <-m.reload:
			m.rematch(ctx)
		}
	}
}

func (m *Monitor) handle(ctx context.Context, ev Event) {
	switch ev.Kind {
	case Start:
		m.start(ctx, ev, false)
	case Foreground:
		m.start(ctx, ev, true)
	case Stop:
		m.stop(ctx, ev.PID, ev.Created)
	}
}

func (m *Monitor) start(ctx context.Context, ev Event, foreground bool) {
	if tp, ok := m.tracked[ev.PID]; ok {
		if !sameProcess(tp.created, ev.Created) {
			// Missed the stop of the previous owner of this pid.
			m.untrack(ctx, ev.PID)
		} else {
			if foreground && tp.matched {
				m.emit(ctx, Activated, tp.trigger)
			}
			return
		}
	}

	tp := &trackedProcess{image: ev.Image, created: ev.Created}
	m.tracked[ev.PID] = tp

	t, ok := m.matcher.Match(ev.Image)
	if !ok {
		return
	}
	tp.trigger, tp.matched = t, true

	a := m.active[t.Key()]
	if a == nil {
		a = &activeTrigger{trigger: t}
		m.active[t.Key()] = a
	}
	a.add(tp)

	m.log.Debug().
		Int32("pid", ev.PID).
		Str("image", ev.Image).
		Str("trigger", t.String()).
		Int("refs", a.refs).
		Msg("Tracking process")

	if a.refs == 1 || foreground {
		m.emit(ctx, Activated, t)
	}
}

func (m *Monitor) stop(ctx context.Context, pid int32, created int64) {
	tp, ok := m.tracked[pid]
	if !ok || !sameProcess(tp.created, created) {
		return
	}
	m.untrack(ctx, pid)
}

func (m *Monitor) untrack(ctx context.Context, pid int32) {
	tp := m.tracked[pid]
	delete(m.tracked, pid)
	if !tp.matched {
		return
	}

	key := tp.trigger.Key()
	a := m.active[key]
	if a == nil {
		return
	}

	a.refs--
	m.log.Debug().Int32("pid", pid).Str("trigger", a.trigger.String()).Int("refs", a.refs).Msg("Process gone")

	if a.refs <= 0 {
		delete(m.active, key)
		m.emit(ctx, Deactivated, a.trigger)
	}
}

// checkLiveness catches processes whose stop event was missed, including
// pids that were reused by an unrelated process.
func (m *Monitor) checkLiveness(ctx context.Context) {
	for _, pid := range m.sortedPIDs() {
		tp := m.tracked[pid]
		if !tp.matched || m.prober.Alive(ctx, pid, tp.created) {
			continue
		}

		m.log.Info().Int32("pid", pid).Str("image", tp.image).Msg("Tracked process no longer alive")
		m.untrack(ctx, pid)
	}
}

// rematch re-evaluates every known process against a reloaded catalog.
// Triggers that keep their key but change otherwise are updated in place;
// newly matched triggers activate oldest first.
func (m *Monitor) rematch(ctx context.Context) {
	next := make(map[string]*activeTrigger, len(m.active))

	for _, pid := range m.sortedPIDs() {
		tp := m.tracked[pid]

		t, ok := m.matcher.Match(tp.image)
		tp.trigger, tp.matched = t, ok
		if !ok {
			continue
		}

		a := next[t.Key()]
		if a == nil {
			a = &activeTrigger{trigger: t}
			next[t.Key()] = a
		}
		a.add(tp)
	}

	prev := m.active
	m.active = next

	for _, key := range sortedKeys(prev) {
		if _, ok := next[key]; !ok {
			m.emit(ctx, Deactivated, prev[key].trigger)
		}
	}

	var added []*activeTrigger
	for _, key := range sortedKeys(next) {
		p, ok := prev[key]
		switch {
		case !ok:
			added = append(added, next[key])
		case p.trigger != next[key].trigger:
			m.emit(ctx, Updated, next[key].trigger)
		}
	}

	sort.SliceStable(added, func(i, j int) bool { return added[i].newest < added[j].newest })
	for _, a := range added {
		m.emit(ctx, Activated, a.trigger)
	}
}

func (a *activeTrigger) add(tp *trackedProcess) {
	a.refs++
	if tp.created > a.newest {
		a.newest = tp.created
	}
}

func (m *Monitor) emit(ctx context.Context, kind TriggerEventKind, t profile.Trigger) {
	m.log.Info().Str("event", kind.String()).Str("trigger", t.String()).Msg("Trigger event")

	select {
	case m.out <- TriggerEvent{Kind: kind, Trigger: t}:
	case <-ctx.Done():
	}
}

func (m *Monitor) sortedPIDs() []int32 {
	pids := make([]int32, 0, len(m.tracked))
	for pid := range m.tracked {
		pids = append(pids, pid)
	}
	sort.Slice(pids, func(i, j int) bool { return pids[i] < pids[j] })
	return pids
}

func sortedKeys(active map[string]*activeTrigger) []string {
	keys := make([]string, 0, len(active))
	for k := range active {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// sameProcess compares start times; an unknown time matches anything.
func sameProcess(a, b int64) bool {
	return a == 0 || b == 0 || a == b
}
