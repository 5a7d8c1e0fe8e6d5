package overlay_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"codeberg.org/mutker/tdpctl/internal/controller"
	"codeberg.org/mutker/tdpctl/internal/display"
	"codeberg.org/mutker/tdpctl/internal/hardware"
	"codeberg.org/mutker/tdpctl/internal/overlay"
	"codeberg.org/mutker/tdpctl/internal/profile"
	"codeberg.org/mutker/tdpctl/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	turbo := profile.Profile{Name: "Turbo", Sustained: 25}
	quiet := profile.Profile{Name: "Quiet", Sustained: 10}
	gameA := profile.Trigger{Pattern: "GameA.exe", Profile: "Turbo"}

	tests := []struct {
		name string
		snap display.Snapshot
		want string
	}{
		{
			name: "nothing yet",
			want: "--.---W\nTDP: unknown\n",
		},
		{
			name: "discharging",
			snap: display.Snapshot{
				HasSample: true,
				Sample: telemetry.Sample{Watts: 11, Battery: &hardware.BatteryState{
					Watts: 12.345, MinutesLeft: 95,
				}},
				HasState: true,
				State:    controller.State{Phase: controller.PhaseApplied, Profile: &turbo, Trigger: &gameA},
			},
			want: "12.345W 95 mins\nTDP: Turbo (GameA.exe)\n",
		},
		{
			name: "charging",
			snap: display.Snapshot{
				HasSample: true,
				Sample: telemetry.Sample{Battery: &hardware.BatteryState{
					Charging: true, Watts: 30, MinutesLeft: -1,
				}},
				HasState: true,
				State:    controller.State{Phase: controller.PhaseApplied, Profile: &quiet, Manual: true},
			},
			want: "30.000W (on charger)\nTDP: Quiet (manual)\n",
		},
		{
			name: "no battery, applying, degraded",
			snap: display.Snapshot{
				HasSample: true,
				Sample:    telemetry.Sample{Watts: 7.5},
				HasState:  true,
				State:     controller.State{Phase: controller.PhaseApplying, Degraded: true},
			},
			want: "7.500W\nTDP: stock ... !\n",
		},
		{
			name: "telemetry unavailable",
			snap: display.Snapshot{
				HasSample: true,
				Sample:    telemetry.Sample{Watts: 7.5},
				HasStatus: true,
				Status:    telemetry.Status{Available: false},
				HasState:  true,
				State:     controller.State{Phase: controller.PhaseDefault, Profile: &quiet},
			},
			want: "--.---W (no telemetry)\nTDP: Quiet\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, overlay.Render(tt.snap))
		})
	}
}

func TestWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overlay.txt")
	w := overlay.NewWriter(path, nil)
	ctx := context.Background()

	w.HandleUpdate(ctx, display.Update{Kind: display.KindSample, Sample: telemetry.Sample{Watts: 9}})

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "9.000W\nTDP: unknown\n", string(data))

	quiet := profile.Profile{Name: "Quiet"}
	w.HandleUpdate(ctx, display.Update{Kind: display.KindState, State: controller.State{
		Phase: controller.PhaseDefault, Profile: &quiet,
	}})

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "9.000W\nTDP: Quiet\n", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")

	require.NoError(t, w.Close())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestWriterMissingDirectory(t *testing.T) {
	w := overlay.NewWriter(filepath.Join(t.TempDir(), "missing", "overlay.txt"), nil)

	w.HandleUpdate(context.Background(), display.Update{Kind: display.KindSample, Sample: telemetry.Sample{Watts: 9}})

	require.NoError(t, w.Close())
}
