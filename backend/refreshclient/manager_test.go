package refreshclient

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luxury-yacht/app/backend/refreshclient/bus"
)

func waitForStatus(t *testing.T, m *Manager, name string, want Status, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if st, ok := m.GetState(name); ok && st.Status == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	st, _ := m.GetState(name)
	t.Fatalf("refresher %q never reached status %q, last seen %q", name, want, st.Status)
}

// S1: manual trigger, cooldown, then auto tick.
func TestManagerManualTriggerThenAutoTick(t *testing.T) {
	clock := newFakeClock()
	eventBus := bus.New()
	m := NewManager(clock, nil, eventBus, ViewBindings{})

	calls := make(chan bool, 4)
	m.Register(RefresherConfig{Name: "R", Interval: time.Second, Cooldown: 300 * time.Millisecond, Timeout: 2 * time.Second})
	m.Subscribe("R", func(ctx context.Context, isManual bool) error {
		calls <- isManual
		return nil
	})

	m.TriggerManualRefresh("R")
	select {
	case isManual := <-calls:
		require.True(t, isManual)
	case <-time.After(time.Second):
		t.Fatal("manual subscriber never invoked")
	}
	waitForStatus(t, m, "R", StatusCooldown, time.Second)

	clock.Advance(300 * time.Millisecond)
	waitForStatus(t, m, "R", StatusIdle, time.Second)

	clock.Advance(time.Second)
	select {
	case isManual := <-calls:
		require.False(t, isManual)
	case <-time.After(time.Second):
		t.Fatal("auto subscriber never invoked")
	}
	waitForStatus(t, m, "R", StatusCooldown, time.Second)
}

// S2: a failing subscriber drives consecutiveErrors and an immediate retry
// once cooldown elapses.
func TestManagerFailingSubscriberRetriesAfterCooldown(t *testing.T) {
	clock := newFakeClock()
	eventBus := bus.New()
	m := NewManager(clock, nil, eventBus, ViewBindings{})

	attempts := make(chan struct{}, 4)
	m.Register(RefresherConfig{Name: "R", Interval: 10 * time.Second, Cooldown: 300 * time.Millisecond, Timeout: 2 * time.Second})
	m.Subscribe("R", func(ctx context.Context, isManual bool) error {
		attempts <- struct{}{}
		return errors.New("boom")
	})

	m.TriggerManualRefresh("R")
	<-attempts
	waitForStatus(t, m, "R", StatusCooldown, time.Second)
	st, _ := m.GetState("R")
	require.Equal(t, 1, st.ConsecutiveErrors)
	require.Equal(t, "boom", st.Error)

	clock.Advance(300 * time.Millisecond)
	// Immediate retry is only scheduled for a failing *automatic* run; the
	// manual trigger above must not itself auto-retry.
	select {
	case <-attempts:
		t.Fatal("unexpected retry after a failing manual run")
	case <-time.After(50 * time.Millisecond):
	}
	waitForStatus(t, m, "R", StatusIdle, time.Second)
}

// S3: global pause/resume affects every enabled refresher, including ones
// registered while paused.
func TestManagerPauseResumeAffectsAllRefreshers(t *testing.T) {
	clock := newFakeClock()
	eventBus := bus.New()
	m := NewManager(clock, nil, eventBus, ViewBindings{})

	m.Register(RefresherConfig{Name: "A", Interval: time.Second, Cooldown: time.Second, Timeout: time.Second, InitialEnabled: true})
	m.Register(RefresherConfig{Name: "B", Interval: time.Second, Cooldown: time.Second, Timeout: time.Second, InitialEnabled: true})
	waitForStatus(t, m, "A", StatusIdle, time.Second)
	waitForStatus(t, m, "B", StatusIdle, time.Second)

	m.Pause("")
	waitForStatus(t, m, "A", StatusPaused, time.Second)
	waitForStatus(t, m, "B", StatusPaused, time.Second)

	m.Register(RefresherConfig{Name: "C", Interval: time.Second, Cooldown: time.Second, Timeout: time.Second, InitialEnabled: true})
	waitForStatus(t, m, "C", StatusPaused, time.Second)

	m.Resume("")
	waitForStatus(t, m, "A", StatusIdle, time.Second)
	waitForStatus(t, m, "B", StatusIdle, time.Second)
	waitForStatus(t, m, "C", StatusIdle, time.Second)
}

func TestManagerReRegisterPreservesSubscribers(t *testing.T) {
	clock := newFakeClock()
	m := NewManager(clock, nil, bus.New(), ViewBindings{})

	calls := make(chan struct{}, 2)
	m.Register(RefresherConfig{Name: "R", Interval: time.Hour, Cooldown: time.Second, Timeout: time.Second})
	m.Subscribe("R", func(ctx context.Context, isManual bool) error {
		calls <- struct{}{}
		return nil
	})

	m.Register(RefresherConfig{Name: "R", Interval: 2 * time.Hour, Cooldown: time.Second, Timeout: time.Second})

	m.TriggerManualRefresh("R")
	select {
	case <-calls:
	case <-time.After(time.Second):
		t.Fatal("subscriber from before re-registration was dropped")
	}
}

func TestManagerUnsubscribeDetaches(t *testing.T) {
	m := NewManager(newFakeClock(), nil, bus.New(), ViewBindings{})
	m.Register(RefresherConfig{Name: "R", Interval: time.Hour, Cooldown: time.Second, Timeout: time.Second})

	called := false
	unsub := m.Subscribe("R", func(ctx context.Context, isManual bool) error {
		called = true
		return nil
	})
	unsub()

	m.TriggerManualRefresh("R")
	waitForStatus(t, m, "R", StatusCooldown, time.Second)
	require.False(t, called)
}

// A manual trigger that preempts an already-refreshing run must not let the
// preempted run's belated completion clobber the new run's state once it
// settles (spec.md §4.1's "aborts prior, awaits its settle").
func TestManagerManualTriggerPreemptsInFlightRun(t *testing.T) {
	m := NewManager(newFakeClock(), nil, bus.New(), ViewBindings{})
	m.Register(RefresherConfig{Name: "R", Interval: 0, Cooldown: 300 * time.Millisecond, Timeout: time.Second})

	invoked := make(chan int, 2)
	release2 := make(chan struct{})
	var calls int32
	m.Subscribe("R", func(ctx context.Context, isManual bool) error {
		idx := int(atomic.AddInt32(&calls, 1))
		invoked <- idx
		if idx == 1 {
			<-ctx.Done()
			return ctx.Err()
		}
		<-release2
		return nil
	})

	m.TriggerManualRefresh("R")
	require.Equal(t, 1, <-invoked)

	m.TriggerManualRefresh("R")
	require.Equal(t, 2, <-invoked)

	// Give the preempted first run time to unwind and call completeRun for
	// its stale generation; the second run is still blocked on release2.
	time.Sleep(50 * time.Millisecond)
	st, ok := m.GetState("R")
	require.True(t, ok)
	require.Equal(t, StatusRefreshing, st.Status, "stale completion from the preempted run must not reset status while the new run is still in flight")

	close(release2)
	waitForStatus(t, m, "R", StatusCooldown, time.Second)
	st, _ = m.GetState("R")
	require.Equal(t, 0, st.ConsecutiveErrors)
	require.False(t, st.LastRefreshTime.IsZero())
}

func TestCooldownDurationBackoff(t *testing.T) {
	base := 300 * time.Millisecond
	require.Equal(t, base, cooldownDuration(base, 0))
	require.Equal(t, base, cooldownDuration(base, 1))
	require.Equal(t, 2*base, cooldownDuration(base, 2))
	require.Equal(t, 4*base, cooldownDuration(base, 3))
	require.Equal(t, 60*time.Second, cooldownDuration(time.Minute, 10))
}

func TestComputeManualTargetsNamespaceChange(t *testing.T) {
	bindings := ViewBindings{
		NamespaceViewRefresher: map[string]string{"pods": "namespace-workloads"},
	}
	prev := RefreshContext{CurrentView: "namespace", SelectedNamespace: "team-a", ActiveNamespaceView: "pods"}
	next := RefreshContext{CurrentView: "namespace", SelectedNamespace: "team-b", ActiveNamespaceView: "pods"}

	targets := computeManualTargets(prev, next, bindings)
	require.Equal(t, []string{"namespace-workloads"}, targets)
}

func TestComputeManualTargetsObjectPanelOpen(t *testing.T) {
	prev := RefreshContext{}
	next := RefreshContext{ObjectPanel: ObjectPanel{IsOpen: true, ObjectKind: "Pod", ObjectName: "a", ObjectNamespace: "ns"}}

	targets := computeManualTargets(prev, next, ViewBindings{})
	require.Equal(t, []string{"object-pod", "object-pod-events"}, targets)
}
