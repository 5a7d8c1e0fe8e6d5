package history

import (
	"context"

	"codeberg.org/mutker/tdpctl/internal/controller"
	"codeberg.org/mutker/tdpctl/internal/display"
	"codeberg.org/mutker/tdpctl/internal/hardware"
	"codeberg.org/mutker/tdpctl/internal/logger"
)

// Journal records settled controller states that differ from the previous
// one. Intermediate Applying/Reverting states and telemetry are ignored.
type Journal struct {
	repo Repository
	log  logger.Logger
	last Transition
	seen bool
}

func NewJournal(repo Repository, log logger.Logger) *Journal {
	if log == nil {
		log = logger.Nop()
	}
	return &Journal{repo: repo, log: log}
}

func (j *Journal) HandleUpdate(_ context.Context, u display.Update) {
	if u.Kind != display.KindState || !u.State.Phase.Settled() {
		return
	}

	t := NewTransition(u.State)
	if j.seen && sameTransition(j.last, t) {
		return
	}

	if err := j.repo.Record(t); err != nil {
		j.log.Warn().Err(err).Uint64("generation", t.Generation).Msg("Failed to record transition")
		return
	}
	j.last, j.seen = t, true
}

// NewTransition converts a controller snapshot.
func NewTransition(s controller.State) Transition {
	t := Transition{
		Timestamp:  s.UpdatedAt,
		Generation: s.Generation,
		Phase:      s.Phase.String(),
		Profile:    s.ProfileName(),
		Manual:     s.Manual,
		Degraded:   s.Degraded,
		Err:        s.Err,
	}
	if s.Trigger != nil {
		t.Trigger = s.Trigger.Pattern
	}

	t.Sustained, _ = s.Limits.Get(hardware.Sustained)
	t.Fast, _ = s.Limits.Get(hardware.Fast)
	t.Slow, _ = s.Limits.Get(hardware.Slow)
	t.SkinTemp, _ = s.Limits.Get(hardware.SkinTemp)

	return t
}

func sameTransition(a, b Transition) bool {
	a.Timestamp, a.Generation = b.Timestamp, b.Generation
	return a == b
}
