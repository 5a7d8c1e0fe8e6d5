package profile

import (
	"context"
	"strings"

	"codeberg.org/mutker/tdpctl/internal/errors"
	"github.com/shirou/gopsutil/v3/cpu"
)

// DetectDevice returns the processor model name used to look up the
// device capability.
func DetectDevice(ctx context.Context) (string, error) {
	errFactory := errors.New()

	infos, err := cpu.InfoWithContext(ctx)
	if err != nil {
		return "", errFactory.Wrap(ErrDetectDevice, err)
	}

	for _, info := range infos {
		if model := strings.TrimSpace(info.ModelName); model != "" {
			return model, nil
		}
	}

	return "", errFactory.WithData(ErrDetectDevice, "no processor model reported")
}
