package display

import (
	"context"

	"codeberg.org/mutker/tdpctl/internal/controller"
	"codeberg.org/mutker/tdpctl/internal/logger"
)

// LogHandler logs controller transitions and telemetry availability changes.
// Samples are logged at debug level only.
type LogHandler struct {
	log  logger.Logger
	last controller.State
	seen bool
}

func NewLogHandler(log logger.Logger) *LogHandler {
	return &LogHandler{log: log}
}

func (l *LogHandler) HandleUpdate(_ context.Context, u Update) {
	switch u.Kind {
	case KindState:
		s := u.State
		if l.seen && s.Phase == l.last.Phase && s.ProfileName() == l.last.ProfileName() &&
			s.Degraded == l.last.Degraded && s.Manual == l.last.Manual {
			return
		}
		l.last, l.seen = s, true

		event := l.log.Info().Event
		if s.Degraded {
			event = l.log.Warn().Str("error", s.Err)
		}
		event = event.
			Str("phase", s.Phase.String()).
			Uint64("generation", s.Generation).
			Str("profile", s.ProfileName()).
			Bool("manual", s.Manual).
			Str("limits", s.Limits.String())
		if s.Trigger != nil {
			event = event.Str("trigger", s.Trigger.Pattern)
		}
		event.Msg("TDP state")

	case KindStatus:
		if u.Status.Available {
			l.log.Info().Msg("Power telemetry available")
			return
		}
		l.log.Warn().
			Int("failures", u.Status.ConsecutiveFailures).
			Str("error", u.Status.Err).
			Msg("Power telemetry unavailable")

	case KindSample:
		l.log.Debug().
			Float64("watts", u.Sample.Watts).
			Float64("smoothed", u.Sample.Smoothed).
			Msg("Power sample")
	}
}
