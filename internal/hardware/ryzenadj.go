package hardware

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"codeberg.org/mutker/tdpctl/internal/errors"
)

// ryzenadj option names per field. Power values are passed in milliwatts,
// the skin temperature in degrees Celsius.
var ryzenAdjOptions = map[Field]string{
	Sustained: "stapm-limit",
	Fast:      "fast-limit",
	Slow:      "slow-limit",
	SkinTemp:  "apu-skin-temp",
}

// commandRunner executes a command and returns its combined output.
type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// RyzenAdj drives AMD APUs through the ryzenadj command line tool.
type RyzenAdj struct {
	path string
	run  commandRunner
}

// NewRyzenAdj returns a driver invoking the binary at path (looked up in
// PATH when not absolute).
func NewRyzenAdj(path string) *RyzenAdj {
	if path == "" {
		path = "ryzenadj"
	}
	return &RyzenAdj{path: path, run: execRunner}
}

func (*RyzenAdj) Name() string { return "ryzenadj" }

func (r *RyzenAdj) Apply(ctx context.Context, limits Limits) error {
	args := make([]string, 0, len(ryzenAdjOptions))
	for _, f := range limits.Fields() {
		v, _ := limits.Get(f)
		args = append(args, fmt.Sprintf("--%s=%d", ryzenAdjOptions[f], v))
	}
	if len(args) == 0 {
		return nil
	}

	out, err := r.run(ctx, r.path, args...)
	return classifyRyzenAdj(ctx, out, err)
}

// ReadLimits parses the table printed by `ryzenadj --info`.
func (r *RyzenAdj) ReadLimits(ctx context.Context) (Limits, error) {
	out, err := r.run(ctx, r.path, "--info")
	if err := classifyRyzenAdj(ctx, out, err); err != nil {
		return Limits{}, err
	}

	limits := parseRyzenAdjInfo(out)
	if limits.Empty() {
		return Limits{}, errors.New().WithData(ErrUnsupported, "ryzenadj reported no limits")
	}

	return limits, nil
}

// parseRyzenAdjInfo reads rows of the form
// "| STAPM LIMIT | 15.000 | stapm-limit |". Power values are in watts.
func parseRyzenAdjInfo(out []byte) Limits {
	var limits Limits

	byOption := make(map[string]Field, len(ryzenAdjOptions))
	for f, opt := range ryzenAdjOptions {
		byOption[opt] = f
	}

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		cols := strings.Split(scanner.Text(), "|")
		if len(cols) < 4 {
			continue
		}

		f, ok := byOption[strings.TrimSpace(cols[3])]
		if !ok {
			continue
		}

		v, err := strconv.ParseFloat(strings.TrimSpace(cols[2]), 64)
		if err != nil || v <= 0 {
			continue
		}

		if f.IsPower() {
			limits = limits.With(f, MilliWatts(v))
		} else {
			limits = limits.With(f, uint32(v+0.5))
		}
	}

	return limits
}

// classifyRyzenAdj maps process errors and ryzenadj's diagnostics onto the
// hardware failure classes. ryzenadj may print a rejection and still exit 0.
func classifyRyzenAdj(ctx context.Context, out []byte, err error) error {
	errFactory := errors.New()
	text := strings.ToLower(string(out))
	detail := strings.TrimSpace(string(out))

	switch {
	case errors.Is(err, exec.ErrNotFound):
		return errFactory.Wrap(ErrUnavailable, err).WithMessage("ryzenadj binary not found")
	case ctx.Err() != nil:
		return errFactory.Wrap(ErrTimeout, ctx.Err()).WithMessage("ryzenadj did not respond")
	case strings.Contains(text, "check permission"),
		strings.Contains(text, "unable to init"),
		strings.Contains(text, "permission denied"):
		return errFactory.WithData(ErrUnavailable, detail)
	case strings.Contains(text, "not supported"),
		strings.Contains(text, "rejected"),
		strings.Contains(text, "unsupported"):
		return errFactory.WithData(ErrUnsupported, detail)
	case strings.Contains(text, "timeout"):
		return errFactory.WithData(ErrTimeout, detail)
	case err != nil:
		return errFactory.Wrap(ErrUnavailable, err).WithData(detail)
	}

	return nil
}
