package process

import (
	"context"
	"sort"
	"time"

	"codeberg.org/mutker/tdpctl/internal/errors"
	"codeberg.org/mutker/tdpctl/internal/logger"
	"github.com/shirou/gopsutil/v3/process"
	"k8s.io/utils/clock"
)

const DefaultPollInterval = 2 * time.Second

type procKey struct {
	pid     int32
	created int64
}

// Snapshot lists the running processes keyed by pid and start time, with
// their image paths.
type Snapshot map[procKey]string

// missingFrom returns the keys of s absent from other, ordered by start
// time and pid.
func (s Snapshot) missingFrom(other Snapshot) []procKey {
	keys := make([]procKey, 0)
	for key := range s {
		if _, ok := other[key]; !ok {
			keys = append(keys, key)
		}
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].created != keys[j].created {
			return keys[i].created < keys[j].created
		}
		return keys[i].pid < keys[j].pid
	})

	return keys
}

// Lister produces a process table snapshot. prev is the previous snapshot,
// which a lister may use to avoid re-reading known images.
type Lister func(ctx context.Context, prev Snapshot) (Snapshot, error)

// PollSource emits Start and Stop events by diffing the process table on
// every tick. Processes already running when it starts are reported as
// started.
type PollSource struct {
	interval time.Duration
	clock    clock.WithTicker
	list     Lister
	log      logger.Logger
}

// NewPollSource returns a gopsutil-backed poller.
func NewPollSource(interval time.Duration, log logger.Logger) *PollSource {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if log == nil {
		log = logger.Nop()
	}

	return &PollSource{
		interval: interval,
		clock:    clock.RealClock{},
		list:     ListProcesses,
		log:      log,
	}
}

// Run polls until ctx is cancelled.
func (s *PollSource) Run(ctx context.Context, events chan<- Event) error {
	prev := Snapshot{}

	poll := func() error {
		cur, err := s.list(ctx, prev)
		if err != nil {
			// Keep the previous table; a failed poll must not look like
			// every process exiting.
			s.log.Warn().Err(err).Msg("Process poll failed")
			return nil
		}

		for _, key := range prev.missingFrom(cur) {
			if !send(ctx, events, Event{Kind: Stop, PID: key.pid, Image: prev[key], Created: key.created}) {
				return ctx.Err()
			}
		}
		// Oldest first, so the most recently started process ends up on
		// top of the trigger stack.
		for _, key := range cur.missingFrom(prev) {
			if !send(ctx, events, Event{Kind: Start, PID: key.pid, Image: cur[key], Created: key.created}) {
				return ctx.Err()
			}
		}

		prev = cur
		return nil
	}

	if err := poll(); err != nil {
		return nil
	}

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C():
			if err := poll(); err != nil {
				return nil
			}
		}
	}
}

func send(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// ListProcesses reads the process table through gopsutil. Images of
// processes present in prev are reused.
func ListProcesses(ctx context.Context, prev Snapshot) (Snapshot, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, errors.New().Wrap(ErrListProcesses, err)
	}

	cur := make(Snapshot, len(procs))
	for _, p := range procs {
		created, err := p.CreateTimeWithContext(ctx)
		if err != nil {
			// Exited between listing and inspection.
			continue
		}

		key := procKey{pid: p.Pid, created: created}
		if image, ok := prev[key]; ok {
			cur[key] = image
			continue
		}

		image, err := p.ExeWithContext(ctx)
		if err != nil || image == "" {
			// Kernel threads and processes of other users without
			// privilege only expose their name.
			if image, err = p.NameWithContext(ctx); err != nil {
				continue
			}
		}
		cur[key] = image
	}

	return cur, nil
}

// GopsutilProber checks liveness through gopsutil.
type GopsutilProber struct{}

func (GopsutilProber) Alive(ctx context.Context, pid int32, created int64) bool {
	exists, err := process.PidExistsWithContext(ctx, pid)
	if err != nil || !exists {
		return false
	}
	if created == 0 {
		return true
	}

	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return false
	}

	ct, err := p.CreateTimeWithContext(ctx)
	if err != nil {
		return false
	}

	return ct == created
}
