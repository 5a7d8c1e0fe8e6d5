package hardware

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"codeberg.org/mutker/tdpctl/internal/errors"
)

// Powercap drives Intel RAPL power limits through the powercap sysfs class.
// The long_term constraint carries Sustained and short_term carries Fast.
type Powercap struct {
	zoneDir     string
	constraints map[Field]int
}

var powercapConstraintFields = map[string]Field{
	"long_term":  Sustained,
	"short_term": Fast,
}

// NewPowercap opens a zone such as "intel-rapl:0" below sysfsPath.
func NewPowercap(sysfsPath, zone string) (*Powercap, error) {
	errFactory := errors.New()

	dir := filepath.Join(sysfsPath, "class", "powercap", zone)
	if _, err := os.Stat(dir); err != nil {
		return nil, errFactory.Wrap(ErrUnavailable, err).WithMessage("powercap zone not found")
	}

	p := &Powercap{zoneDir: dir, constraints: make(map[Field]int)}
	for i := 0; ; i++ {
		name, err := os.ReadFile(filepath.Join(dir, fmt.Sprintf("constraint_%d_name", i)))
		if err != nil {
			break
		}
		if f, ok := powercapConstraintFields[strings.TrimSpace(string(name))]; ok {
			p.constraints[f] = i
		}
	}

	if len(p.constraints) == 0 {
		return nil, errFactory.WithData(ErrUnsupported, "no known constraints in "+dir)
	}

	return p, nil
}

func (*Powercap) Name() string { return "powercap" }

func (p *Powercap) limitPath(i int) string {
	return filepath.Join(p.zoneDir, fmt.Sprintf("constraint_%d_power_limit_uw", i))
}

func (p *Powercap) Apply(_ context.Context, limits Limits) error {
	errFactory := errors.New()

	for _, f := range limits.Fields() {
		if _, ok := p.constraints[f]; !ok {
			return errFactory.WithData(ErrUnsupported, f.String()+" has no powercap constraint")
		}
	}

	for _, f := range limits.Fields() {
		v, _ := limits.Get(f)
		microWatts := strconv.FormatUint(uint64(v)*1000, 10)

		if err := os.WriteFile(p.limitPath(p.constraints[f]), []byte(microWatts), 0o644); err != nil {
			return sysfsError(err)
		}
	}

	return nil
}

func (p *Powercap) ReadLimits(context.Context) (Limits, error) {
	var limits Limits

	for f, i := range p.constraints {
		raw, err := os.ReadFile(p.limitPath(i))
		if err != nil {
			return Limits{}, sysfsError(err)
		}

		uw, err := strconv.ParseUint(strings.TrimSpace(string(raw)), 10, 64)
		if err != nil {
			return Limits{}, errors.New().Wrap(ErrUnsupported, err)
		}
		limits = limits.With(f, uint32(uw/1000))
	}

	return limits, nil
}

func sysfsError(err error) error {
	errFactory := errors.New()

	switch {
	case os.IsPermission(err), os.IsNotExist(err):
		return errFactory.Wrap(ErrUnavailable, err)
	default:
		// EINVAL/EOPNOTSUPP from the kernel: the value or constraint was refused.
		return errFactory.Wrap(ErrUnsupported, err)
	}
}
