package metrics

import (
	"context"
	"net/http"

	"codeberg.org/mutker/tdpctl/internal/controller"
	"codeberg.org/mutker/tdpctl/internal/display"
	"codeberg.org/mutker/tdpctl/internal/hardware"
	"codeberg.org/mutker/tdpctl/internal/telemetry"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tdpctl"

var phases = []controller.Phase{
	controller.PhaseDefault,
	controller.PhaseApplying,
	controller.PhaseApplied,
	controller.PhaseReverting,
}

// Exporter mirrors display updates into prometheus metrics on its own
// registry.
type Exporter struct {
	registry *prom.Registry

	power          prom.Gauge
	smoothed       prom.Gauge
	components     *prom.GaugeVec
	batteryMinutes prom.Gauge
	charging       prom.Gauge
	available      prom.Gauge

	limits      *prom.GaugeVec
	phase       *prom.GaugeVec
	generation  prom.Gauge
	degraded    prom.Gauge
	manual      prom.Gauge
	transitions *prom.CounterVec

	lastProfile string
}

func NewExporter() *Exporter {
	e := &Exporter{
		registry: prom.NewRegistry(),
		power: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace, Subsystem: "power", Name: "watts",
			Help: "Latest package power draw in watts",
		}),
		smoothed: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace, Subsystem: "power", Name: "smoothed_watts",
			Help: "Rolling average of package power draw in watts",
		}),
		components: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace, Subsystem: "power", Name: "source_watts",
			Help: "Power draw reported by each power source in watts",
		}, []string{"source"}),
		batteryMinutes: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace, Subsystem: "battery", Name: "minutes_left",
			Help: "Estimated battery runtime in minutes, -1 when unknown",
		}),
		charging: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace, Subsystem: "battery", Name: "charging",
			Help: "1 when the battery is charging or on external power",
		}),
		available: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace, Subsystem: "telemetry", Name: "available",
			Help: "1 while power telemetry is available",
		}),
		limits: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace, Subsystem: "controller", Name: "limit",
			Help: "Last confirmed limit per field, watts for power fields and degrees Celsius for skin temperature",
		}, []string{"field"}),
		phase: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace, Subsystem: "controller", Name: "phase",
			Help: "1 for the current controller phase",
		}, []string{"phase"}),
		generation: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace, Subsystem: "controller", Name: "generation",
			Help: "Current target generation",
		}),
		degraded: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace, Subsystem: "controller", Name: "degraded",
			Help: "1 when the last target could not be applied",
		}),
		manual: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace, Subsystem: "controller", Name: "manual_override",
			Help: "1 while a manual override is active",
		}),
		transitions: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace, Subsystem: "controller", Name: "profile_changes_total",
			Help: "Settled changes of the applied profile",
		}, []string{"profile"}),
	}

	e.registry.MustRegister(
		e.power, e.smoothed, e.components, e.batteryMinutes, e.charging, e.available,
		e.limits, e.phase, e.generation, e.degraded, e.manual, e.transitions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return e
}

// Registry returns the registry holding the exporter's metrics.
func (e *Exporter) Registry() *prom.Registry {
	return e.registry
}

// Handler serves the registry in the prometheus exposition format.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

func (e *Exporter) HandleUpdate(_ context.Context, u display.Update) {
	switch u.Kind {
	case display.KindState:
		e.observeState(u.State)
	case display.KindSample:
		e.observeSample(u.Sample)
	case display.KindStatus:
		e.available.Set(boolFloat(u.Status.Available))
	}
}

func (e *Exporter) observeState(s controller.State) {
	for _, p := range phases {
		e.phase.WithLabelValues(p.String()).Set(boolFloat(p == s.Phase))
	}
	e.generation.Set(float64(s.Generation))
	e.degraded.Set(boolFloat(s.Degraded))
	e.manual.Set(boolFloat(s.Manual))

	e.limits.Reset()
	for _, f := range s.Limits.Fields() {
		v, _ := s.Limits.Get(f)
		if f.IsPower() {
			e.limits.WithLabelValues(f.String()).Set(hardware.Watts(v))
		} else {
			e.limits.WithLabelValues(f.String()).Set(float64(v))
		}
	}

	if s.Phase.Settled() && s.ProfileName() != e.lastProfile {
		e.lastProfile = s.ProfileName()
		if e.lastProfile != "" {
			e.transitions.WithLabelValues(e.lastProfile).Inc()
		}
	}
}

func (e *Exporter) observeSample(s telemetry.Sample) {
	e.power.Set(s.Watts)
	e.smoothed.Set(s.Smoothed)
	for source, w := range s.Components {
		e.components.WithLabelValues(source).Set(w)
	}

	if s.Battery != nil {
		e.batteryMinutes.Set(float64(s.Battery.MinutesLeft))
		e.charging.Set(boolFloat(s.Battery.Charging))
	}
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
