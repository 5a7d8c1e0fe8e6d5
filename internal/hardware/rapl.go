package hardware

import (
	"context"
	"sync"
	"time"

	"codeberg.org/mutker/tdpctl/internal/errors"
)

// energyZone is a monotonically increasing energy counter that wraps at
// MaxEnergy.
type energyZone interface {
	Key() string
	Energy() (uint64, error)
	MaxEnergy() uint64
}

type zoneSample struct {
	energy uint64
	at     time.Time
}

// raplMeter turns package energy counters into average power between
// consecutive reads.
type raplMeter struct {
	mu    sync.Mutex
	zones func() ([]energyZone, error)
	now   func() time.Time
	last  map[string]zoneSample
}

func newRAPLMeter(zones func() ([]energyZone, error), now func() time.Time) *raplMeter {
	return &raplMeter{zones: zones, now: now, last: make(map[string]zoneSample)}
}

// prime records the starting counters so the first Read returns a value.
func (m *raplMeter) prime() error {
	_, err := m.read()
	if errors.HasCode(err, ErrUnavailable) && len(m.last) > 0 {
		return nil
	}
	return err
}

func (*raplMeter) Name() string { return "rapl" }

func (m *raplMeter) Read(context.Context) (SourceReading, error) {
	watts, err := m.read()
	if err != nil {
		return SourceReading{}, err
	}
	return SourceReading{Watts: watts}, nil
}

func (m *raplMeter) read() (float64, error) {
	errFactory := errors.New()

	m.mu.Lock()
	defer m.mu.Unlock()

	zones, err := m.zones()
	if err != nil {
		return 0, errFactory.Wrap(ErrUnavailable, err)
	}
	if len(zones) == 0 {
		return 0, errFactory.WithData(ErrUnsupported, "no RAPL package zones")
	}

	now := m.now()

	var (
		total    float64
		measured bool
	)

	for _, z := range zones {
		energy, err := z.Energy()
		if err != nil {
			return 0, errFactory.Wrap(ErrUnavailable, err)
		}

		prev, ok := m.last[z.Key()]
		m.last[z.Key()] = zoneSample{energy: energy, at: now}
		if !ok {
			continue
		}

		elapsed := now.Sub(prev.at)
		if elapsed <= 0 {
			continue
		}

		delta := energyDelta(prev.energy, energy, z.MaxEnergy())
		total += float64(delta) / float64(elapsed.Microseconds())
		measured = true
	}

	if !measured {
		return 0, errFactory.WithData(ErrUnavailable, "no previous RAPL sample")
	}

	return total, nil
}

// energyDelta returns the microjoules consumed between two counter values,
// accounting for a single wraparound at max.
func energyDelta(prev, cur, max uint64) uint64 {
	if cur >= prev {
		return cur - prev
	}
	if max == 0 || prev > max {
		return cur
	}
	return max - prev + cur
}
