package profile

import (
	"fmt"
	"math"

	"codeberg.org/mutker/tdpctl/internal/errors"
	"codeberg.org/mutker/tdpctl/internal/hardware"
)

// ClampResult is a profile converted to register values for one device.
type ClampResult struct {
	Limits hardware.Limits
	// Clamped lists fields whose value was moved into range.
	Clamped []hardware.Field
	// Dropped lists fields the device does not support.
	Dropped []hardware.Field
}

// Clamp validates p against capability. Unsupported fields are dropped and
// out-of-range values are clamped; in strict mode either condition rejects
// the whole profile instead. A profile left with no supported fields is
// rejected as unsupported.
func Clamp(p Profile, capability DeviceCapability, strict bool) (ClampResult, error) {
	errFactory := errors.New()
	var res ClampResult

	for _, f := range hardware.AllFields {
		v, ok := p.Value(f)
		if !ok {
			continue
		}

		r, supported := capability.Supports(f)
		if !supported {
			if strict {
				return ClampResult{}, errFactory.WithData(ErrClampRejected,
					fmt.Sprintf("%s: %s is not supported by %q", p.Name, f, capability.ID))
			}
			res.Dropped = append(res.Dropped, f)
			continue
		}

		if !r.Contains(v) {
			if strict {
				return ClampResult{}, errFactory.WithData(ErrClampRejected,
					fmt.Sprintf("%s: %s=%v outside [%v, %v]", p.Name, f, v, r.Min, r.Max))
			}
			v = math.Min(math.Max(v, r.Min), r.Max)
			res.Clamped = append(res.Clamped, f)
		}

		if f.IsPower() {
			res.Limits = res.Limits.With(f, hardware.MilliWatts(v))
		} else {
			res.Limits = res.Limits.With(f, uint32(math.Round(v)))
		}
	}

	if res.Limits.Empty() {
		return res, errFactory.WithData(ErrNoSupportedFields,
			fmt.Sprintf("%s: no field supported by %q", p.Name, capability.ID))
	}

	return res, nil
}

// ClampLimits runs raw register values, such as limits read back from the
// hardware, through the same capability checks as a profile.
func ClampLimits(name string, limits hardware.Limits, capability DeviceCapability, strict bool) (ClampResult, error) {
	return Clamp(FromLimits(name, limits), capability, strict)
}
