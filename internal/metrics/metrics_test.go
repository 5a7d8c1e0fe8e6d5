package metrics_test

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"codeberg.org/mutker/tdpctl/internal/controller"
	"codeberg.org/mutker/tdpctl/internal/display"
	"codeberg.org/mutker/tdpctl/internal/hardware"
	"codeberg.org/mutker/tdpctl/internal/metrics"
	"codeberg.org/mutker/tdpctl/internal/profile"
	"codeberg.org/mutker/tdpctl/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExporterState(t *testing.T) {
	e := metrics.NewExporter()
	ctx := context.Background()

	turbo := profile.Profile{Name: "Turbo", Sustained: 25}
	limits := hardware.Limits{}.
		With(hardware.Sustained, 25000).
		With(hardware.SkinTemp, 42)

	e.HandleUpdate(ctx, display.Update{Kind: display.KindState, State: controller.State{
		Phase: controller.PhaseApplying, Generation: 3,
	}})
	e.HandleUpdate(ctx, display.Update{Kind: display.KindState, State: controller.State{
		Phase: controller.PhaseApplied, Generation: 3, Profile: &turbo, Limits: limits,
	}})
	// A republished state does not count as a change.
	e.HandleUpdate(ctx, display.Update{Kind: display.KindState, State: controller.State{
		Phase: controller.PhaseApplied, Generation: 3, Profile: &turbo, Limits: limits,
	}})

	expected := `
# HELP tdpctl_controller_phase 1 for the current controller phase
# TYPE tdpctl_controller_phase gauge
tdpctl_controller_phase{phase="applied"} 1
tdpctl_controller_phase{phase="applying"} 0
tdpctl_controller_phase{phase="default"} 0
tdpctl_controller_phase{phase="reverting"} 0
# HELP tdpctl_controller_limit Last confirmed limit per field, watts for power fields and degrees Celsius for skin temperature
# TYPE tdpctl_controller_limit gauge
tdpctl_controller_limit{field="skin_temp"} 42
tdpctl_controller_limit{field="sustained"} 25
# HELP tdpctl_controller_profile_changes_total Settled changes of the applied profile
# TYPE tdpctl_controller_profile_changes_total counter
tdpctl_controller_profile_changes_total{profile="Turbo"} 1
`
	require.NoError(t, testutil.GatherAndCompare(e.Registry(), strings.NewReader(expected),
		"tdpctl_controller_phase", "tdpctl_controller_limit", "tdpctl_controller_profile_changes_total"))
}

func TestExporterTelemetry(t *testing.T) {
	e := metrics.NewExporter()
	ctx := context.Background()

	e.HandleUpdate(ctx, display.Update{Kind: display.KindSample, Sample: telemetry.Sample{
		Watts:      12.5,
		Smoothed:   11,
		Components: map[string]float64{"rapl": 10, "nvml": 2.5},
		Battery:    &hardware.BatteryState{Watts: 14, MinutesLeft: 95},
	}})
	e.HandleUpdate(ctx, display.Update{Kind: display.KindStatus, Status: telemetry.Status{Available: true}})

	n, err := testutil.GatherAndCount(e.Registry(), "tdpctl_power_source_watts")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rec := httptest.NewRecorder()
	e.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), "tdpctl_power_watts 12.5")
	assert.Contains(t, string(body), "tdpctl_power_smoothed_watts 11")
	assert.Contains(t, string(body), "tdpctl_battery_minutes_left 95")
	assert.Contains(t, string(body), "tdpctl_telemetry_available 1")
	assert.Contains(t, string(body), "go_goroutines")
}
