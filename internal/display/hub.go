package display

import (
	"context"
	"sync"

	"codeberg.org/mutker/tdpctl/internal/controller"
	"codeberg.org/mutker/tdpctl/internal/errors"
	"codeberg.org/mutker/tdpctl/internal/logger"
	"codeberg.org/mutker/tdpctl/internal/telemetry"
)

const (
	DefaultQueueSize = 16

	// A queue holds at most one unsuperseded state and status, plus room
	// for a sample.
	minQueueSize = 3
)

type Kind int

const (
	KindState Kind = iota
	KindSample
	KindStatus
)

func (k Kind) String() string {
	switch k {
	case KindState:
		return "state"
	case KindSample:
		return "sample"
	case KindStatus:
		return "status"
	default:
		return "unknown"
	}
}

// Update carries exactly one of State, Sample or Status, selected by Kind.
type Update struct {
	Kind   Kind
	State  controller.State
	Sample telemetry.Sample
	Status telemetry.Status
}

// Snapshot is the most recent value of each kind.
type Snapshot struct {
	State     controller.State
	HasState  bool
	Sample    telemetry.Sample
	HasSample bool
	Status    telemetry.Status
	HasStatus bool
}

// Hub fans state and telemetry out to display consumers. Publishing never
// blocks: each subscriber has a bounded queue. A full queue drops its oldest
// sample first, then the oldest state or status that a newer one of the
// same kind supersedes, so the newest state and status always get through.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]*Subscription
	latest Snapshot
	closed bool
	log    logger.Logger
}

func NewHub(log logger.Logger) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{subs: make(map[string]*Subscription), log: log}
}

// Subscribe registers a consumer with a queue of size entries. The latest
// known values are queued immediately so late subscribers start current.
func (h *Hub) Subscribe(name string, size int) (*Subscription, error) {
	switch {
	case size < 1:
		size = DefaultQueueSize
	case size < minQueueSize:
		size = minQueueSize
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[name]; ok {
		return nil, errors.New().WithData(ErrDuplicateSub, name)
	}

	sub := newSubscription(name, size)
	if h.closed {
		sub.close()
		return sub, nil
	}

	if h.latest.HasStatus {
		sub.push(Update{Kind: KindStatus, Status: h.latest.Status})
	}
	if h.latest.HasState {
		sub.push(Update{Kind: KindState, State: h.latest.State})
	}
	if h.latest.HasSample {
		sub.push(Update{Kind: KindSample, Sample: h.latest.Sample})
	}

	h.subs[name] = sub
	h.log.Debug().Str("subscriber", name).Int("queue", size).Msg("Display subscriber added")

	return sub, nil
}

// Unsubscribe removes and closes sub.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.subs[sub.name] == sub {
		delete(h.subs, sub.name)
	}
	sub.close()
}

func (h *Hub) PublishState(s controller.State) {
	h.publish(Update{Kind: KindState, State: s})
}

func (h *Hub) PublishSample(s telemetry.Sample) {
	h.publish(Update{Kind: KindSample, Sample: s})
}

func (h *Hub) PublishStatus(s telemetry.Status) {
	h.publish(Update{Kind: KindStatus, Status: s})
}

// Latest returns the most recent value of each kind.
func (h *Hub) Latest() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.latest
}

// Close closes every subscription. Later publishes only update Latest.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for name, sub := range h.subs {
		sub.close()
		delete(h.subs, name)
	}
}

// publish records u as the latest value of its kind and queues it for every
// subscriber under one lock, so all subscribers see the same order.
func (h *Hub) publish(u Update) {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch u.Kind {
	case KindState:
		h.latest.State, h.latest.HasState = u.State, true
	case KindSample:
		h.latest.Sample, h.latest.HasSample = u.Sample, true
	case KindStatus:
		h.latest.Status, h.latest.HasStatus = u.Status, true
	}

	for _, sub := range h.subs {
		if sub.push(u) {
			h.log.Debug().
				Str("subscriber", sub.name).
				Str("kind", u.Kind.String()).
				Msg("Subscriber queue full, dropped an update")
		}
	}
}

// Subscription is one consumer's queue.
type Subscription struct {
	name string
	size int

	mu      sync.Mutex
	queue   []Update
	dropped uint64
	closed  bool
	ready   chan struct{}
}

func newSubscription(name string, size int) *Subscription {
	return &Subscription{
		name:  name,
		size:  size,
		queue: make([]Update, 0, size),
		ready: make(chan struct{}, 1),
	}
}

func (s *Subscription) Name() string { return s.name }

// Dropped returns how many updates were discarded because the queue was full.
func (s *Subscription) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// push enqueues u and reports whether a queued update was dropped.
func (s *Subscription) push(u Update) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	var dropped bool
	if len(s.queue) >= s.size {
		i := s.victim(u)
		s.queue = append(s.queue[:i], s.queue[i+1:]...)
		s.dropped++
		dropped = true
	}
	s.queue = append(s.queue, u)

	select {
	case s.ready <- struct{}{}:
	default:
	}

	return dropped
}

// victim returns the index to evict from a full queue before u is added.
func (s *Subscription) victim(u Update) int {
	for i, q := range s.queue {
		if q.Kind == KindSample {
			return i
		}
	}

	for i, q := range s.queue {
		if q.Kind == u.Kind {
			return i
		}
		for _, later := range s.queue[i+1:] {
			if later.Kind == q.Kind {
				return i
			}
		}
	}

	return 0
}

func (s *Subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.ready)
}

// Next blocks for the next update. Queued updates are still delivered after
// the subscription is closed; ErrClosed follows once the queue is drained.
func (s *Subscription) Next(ctx context.Context) (Update, error) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			u := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return u, nil
		}
		closed := s.closed
		s.mu.Unlock()

		if closed {
			return Update{}, errors.New().New(ErrClosed)
		}

		select {
		case <-ctx.Done():
			return Update{}, ctx.Err()
		case <-s.ready:
		}
	}
}
