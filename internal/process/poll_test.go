package process

import (
	"context"
	"sync"
	"testing"
	"time"

	"codeberg.org/mutker/tdpctl/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	fakeclock "k8s.io/utils/clock/testing"
)

type scriptedLister struct {
	mu        sync.Mutex
	snapshots []Snapshot
}

func (l *scriptedLister) list(context.Context, Snapshot) (Snapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := l.snapshots[0]
	if len(l.snapshots) > 1 {
		l.snapshots = l.snapshots[1:]
	}
	return s, nil
}

func receive(t *testing.T, events <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for process event")
		return Event{}
	}
}

func TestPollSourceDiffsProcessTable(t *testing.T) {
	lister := &scriptedLister{snapshots: []Snapshot{
		{
			{pid: 1, created: 10}:  "/sbin/init",
			{pid: 50, created: 30}: "/opt/GameA.exe",
			{pid: 40, created: 20}: "/usr/bin/steam",
		},
		{
			{pid: 1, created: 10}:  "/sbin/init",
			{pid: 40, created: 20}: "/usr/bin/steam",
			{pid: 60, created: 40}: "/opt/GameB.exe",
		},
	}}

	fc := fakeclock.NewFakeClock(time.Now())
	src := &PollSource{interval: time.Second, clock: fc, list: lister.list, log: logger.Nop()}

	events := make(chan Event, 16)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- src.Run(ctx, events) }()

	// Initial table, oldest first.
	assert.Equal(t, Event{Kind: Start, PID: 1, Image: "/sbin/init", Created: 10}, receive(t, events))
	assert.Equal(t, Event{Kind: Start, PID: 40, Image: "/usr/bin/steam", Created: 20}, receive(t, events))
	assert.Equal(t, Event{Kind: Start, PID: 50, Image: "/opt/GameA.exe", Created: 30}, receive(t, events))

	require.Eventually(t, fc.HasWaiters, time.Second, 5*time.Millisecond)
	fc.Step(time.Second)

	assert.Equal(t, Event{Kind: Stop, PID: 50, Image: "/opt/GameA.exe", Created: 30}, receive(t, events))
	assert.Equal(t, Event{Kind: Start, PID: 60, Image: "/opt/GameB.exe", Created: 40}, receive(t, events))

	cancel()
	require.NoError(t, <-done)
}

func TestSnapshotMissingFrom(t *testing.T) {
	a := Snapshot{{pid: 1, created: 5}: "a", {pid: 2, created: 5}: "b", {pid: 3, created: 1}: "c"}
	b := Snapshot{{pid: 2, created: 5}: "b"}

	assert.Equal(t, []procKey{{pid: 3, created: 1}, {pid: 1, created: 5}}, a.missingFrom(b))
	assert.Empty(t, b.missingFrom(a))
}
