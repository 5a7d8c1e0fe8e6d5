//go:build linux

package hardware

import (
	"context"

	"codeberg.org/mutker/tdpctl/internal/errors"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

// nvmlError represents an NVML-specific error
type nvmlError struct {
	ret nvml.Return
}

func (e nvmlError) Error() string {
	return nvml.ErrorString(e.ret)
}

// newNVMLError creates an error from an NVML return code
func newNVMLError(ret nvml.Return) error {
	if ret == nvml.SUCCESS {
		return nil
	}
	return &nvmlError{ret: ret}
}

type nvmlSource struct {
	devices []nvml.Device
}

// NewNVMLSource reports the summed board power of every NVIDIA GPU. It
// fails with Unavailable when the driver library cannot be loaded.
func NewNVMLSource() (PowerSource, error) {
	errFactory := errors.New()

	if ret := nvml.Init(); ret != nvml.SUCCESS {
		return nil, errFactory.Wrap(ErrUnavailable, newNVMLError(ret)).WithMessage("NVML initialization failed")
	}

	count, ret := nvml.DeviceGetCount()
	if ret != nvml.SUCCESS {
		_ = nvml.Shutdown()
		return nil, errFactory.Wrap(ErrUnavailable, newNVMLError(ret))
	}

	src := &nvmlSource{devices: make([]nvml.Device, 0, count)}
	for i := 0; i < count; i++ {
		device, ret := nvml.DeviceGetHandleByIndex(i)
		if ret != nvml.SUCCESS {
			_ = nvml.Shutdown()
			return nil, errFactory.Wrap(ErrUnavailable, newNVMLError(ret))
		}
		src.devices = append(src.devices, device)
	}

	if len(src.devices) == 0 {
		_ = nvml.Shutdown()
		return nil, errFactory.WithData(ErrUnavailable, "no NVIDIA devices")
	}

	return src, nil
}

func (*nvmlSource) Name() string { return "nvml" }

func (s *nvmlSource) Read(context.Context) (SourceReading, error) {
	var total float64

	for _, d := range s.devices {
		milliWatts, ret := d.GetPowerUsage()
		switch ret {
		case nvml.SUCCESS:
			total += float64(milliWatts) / milliWattsPerWatt
		case nvml.ERROR_NOT_SUPPORTED:
			return SourceReading{}, errors.New().Wrap(ErrUnsupported, newNVMLError(ret))
		default:
			return SourceReading{}, errors.New().Wrap(ErrUnavailable, newNVMLError(ret))
		}
	}

	return SourceReading{Watts: total}, nil
}

func (*nvmlSource) Close() error {
	if ret := nvml.Shutdown(); ret != nvml.SUCCESS {
		return errors.New().Wrap(errors.ErrShutdownFailed, newNVMLError(ret))
	}
	return nil
}
