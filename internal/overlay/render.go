package overlay

import (
	"fmt"
	"strings"

	"codeberg.org/mutker/tdpctl/internal/display"
)

// Render formats the on-screen text: power draw with the battery estimate
// on the first line, the active profile on the second.
func Render(s display.Snapshot) string {
	var b strings.Builder

	switch {
	case s.HasStatus && !s.Status.Available:
		b.WriteString("--.---W (no telemetry)")

	case s.HasSample && s.Sample.Battery != nil:
		bat := s.Sample.Battery
		fmt.Fprintf(&b, "%.3fW", bat.Watts)
		if !bat.Charging && bat.MinutesLeft >= 0 {
			fmt.Fprintf(&b, " %d mins", bat.MinutesLeft)
		} else {
			b.WriteString(" (on charger)")
		}

	case s.HasSample:
		fmt.Fprintf(&b, "%.3fW", s.Sample.Watts)

	default:
		b.WriteString("--.---W")
	}

	b.WriteByte('\n')

	if !s.HasState {
		b.WriteString("TDP: unknown\n")
		return b.String()
	}

	st := s.State
	name := st.ProfileName()
	if name == "" {
		name = "stock"
	}
	b.WriteString("TDP: " + name)

	switch {
	case st.Manual:
		b.WriteString(" (manual)")
	case st.Trigger != nil:
		b.WriteString(" (" + st.Trigger.Pattern + ")")
	}
	if !st.Phase.Settled() {
		b.WriteString(" ...")
	}
	if st.Degraded {
		b.WriteString(" !")
	}
	b.WriteByte('\n')

	return b.String()
}
