package refreshclient

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/luxury-yacht/app/backend/refreshclient/bus"
)

// ViewBindings maps navigation sub-tabs to the refresher name responsible
// for them, used by computeManualTargets.
type ViewBindings struct {
	NamespaceViewRefresher map[string]string
	ClusterViewRefresher   map[string]string
}

type entry struct {
	config    RefresherConfig
	state     RefresherState
	enabled   bool
	subs      map[uint64]Subscriber
	nextSubID uint64

	intervalTimer Timer
	cooldownTimer Timer
	cancelRun     context.CancelFunc
	// gen tags the run currently in flight (or the last one started). A
	// manual trigger that preempts a refreshing run bumps this before
	// launching the replacement, so the preempted run's own completeRun
	// call - which still lands after the cancellation, asynchronously -
	// can tell it is stale and no-op instead of clobbering the new run's
	// state (spec.md §4.1's "aborts prior, awaits its settle").
	gen uint64
}

// Manager owns a fixed set of named refreshers, each a cooperative state
// machine with periodic and manual firing, per-subscriber fan-out and
// exponential cooldown backoff.
type Manager struct {
	mu      sync.Mutex
	clock   Clock
	logger  Logger
	bus     *bus.Bus
	paused  bool
	entries map[string]*entry
	context RefreshContext
	bindings ViewBindings
}

// NewManager constructs a Manager. clock and logger may be nil, in which
// case the real clock and a no-op logger are used.
func NewManager(clock Clock, logger Logger, eventBus *bus.Bus, bindings ViewBindings) *Manager {
	if clock == nil {
		clock = NewRealClock()
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Manager{
		clock:    clock,
		logger:   logger,
		bus:      eventBus,
		entries:  make(map[string]*entry),
		bindings: bindings,
	}
}

// Register creates a refresher, or updates an existing one's configuration
// while preserving its subscriber set (spec.md §4.1).
func (m *Manager) Register(config RefresherConfig) {
	m.mu.Lock()
	e, exists := m.entries[config.Name]
	if exists {
		e.config = config
	} else {
		e = &entry{config: config, subs: make(map[uint64]Subscriber)}
		m.entries[config.Name] = e
	}
	e.enabled = config.InitialEnabled
	firstRun := config.InitialEnabled && e.state.LastRefreshTime.IsZero()
	switch {
	case !config.InitialEnabled:
		e.state.Status = StatusDisabled
	case m.paused:
		e.state.Status = StatusPaused
	default:
		e.state.Status = StatusIdle
	}
	state := e.state
	shouldArm := config.InitialEnabled && !m.paused
	m.mu.Unlock()

	if exists {
		m.logger.Warn(fmt.Sprintf("refresher %q re-registered, preserving subscribers", config.Name), "refresh-manager")
	}
	m.publishStateChange(config.Name, state)
	m.publishRegistered(config.Name)

	if shouldArm {
		m.armInterval(config.Name)
	}
	if firstRun {
		m.startRun(config.Name, false)
	}
}

// Unregister cancels timers, drops subscribers and removes state.
func (m *Manager) Unregister(name string) {
	m.mu.Lock()
	e, ok := m.entries[name]
	if !ok {
		m.mu.Unlock()
		return
	}
	m.clearTimersLocked(e)
	cancel := e.cancelRun
	delete(m.entries, name)
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Enable arms a refresher's timers, or moves it to paused if the manager is
// globally paused.
func (m *Manager) Enable(name string) {
	m.mu.Lock()
	e, ok := m.entries[name]
	if !ok || e.enabled {
		m.mu.Unlock()
		return
	}
	e.enabled = true
	if m.paused {
		e.state.Status = StatusPaused
		state := e.state
		m.mu.Unlock()
		m.publishStateChange(name, state)
		return
	}
	e.state.Status = StatusIdle
	firstRun := e.state.LastRefreshTime.IsZero()
	state := e.state
	m.mu.Unlock()

	m.publishStateChange(name, state)
	m.armInterval(name)
	if firstRun {
		m.startRun(name, false)
	}
}

// Disable cancels any running refresh and transitions the refresher to
// disabled.
func (m *Manager) Disable(name string) {
	m.mu.Lock()
	e, ok := m.entries[name]
	if !ok || (!e.enabled && e.state.Status == StatusDisabled) {
		m.mu.Unlock()
		return
	}
	e.enabled = false
	m.clearTimersLocked(e)
	cancel := e.cancelRun
	e.state.Status = StatusDisabled
	state := e.state
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.publishStateChange(name, state)
}

// Subscribe attaches a callback to a refresher and returns a detach function.
func (m *Manager) Subscribe(name string, sub Subscriber) (unsubscribe func()) {
	m.mu.Lock()
	e, ok := m.entries[name]
	if !ok || sub == nil {
		m.mu.Unlock()
		return func() {}
	}
	id := e.nextSubID
	e.nextSubID++
	e.subs[id] = sub
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if e, ok := m.entries[name]; ok {
			delete(e.subs, id)
		}
	}
}

// UpdateContext merges partial into the stored context, computes the manual
// refresh targets implied by the transition (spec.md §4.1), applies the
// namespace/view-change abort policy, and triggers those targets.
func (m *Manager) UpdateContext(partial ContextPatch) {
	m.mu.Lock()
	prev := m.context
	next := prev.merge(partial)
	m.context = next
	m.mu.Unlock()

	targets := computeManualTargets(prev, next, m.bindings)
	if len(targets) == 0 {
		return
	}

	namespaceChanged := prev.SelectedNamespace != next.SelectedNamespace ||
		prev.SelectedNamespaceClusterID != next.SelectedNamespaceClusterID
	viewChanged := prev.CurrentView != next.CurrentView

	if namespaceChanged {
		m.abortMany(targets)
	} else if viewChanged {
		m.abortMany(namespacePrefixed(targets))
	}

	m.TriggerManualRefreshMany(targets)
}

// computeManualTargets derives the set of refresher names that must fire a
// manual refresh in response to a context transition (spec.md §4.1).
func computeManualTargets(prev, next RefreshContext, bindings ViewBindings) []string {
	seen := make(map[string]struct{})
	var targets []string
	add := func(name string) {
		if name == "" {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		targets = append(targets, name)
	}

	namespaceChanged := prev.SelectedNamespace != next.SelectedNamespace ||
		prev.SelectedNamespaceClusterID != next.SelectedNamespaceClusterID
	if namespaceChanged && next.CurrentView == "namespace" {
		add(bindings.NamespaceViewRefresher[next.ActiveNamespaceView])
	}

	if prev.ActiveClusterView != next.ActiveClusterView && next.CurrentView == "cluster" {
		add(bindings.ClusterViewRefresher[next.ActiveClusterView])
	}

	if prev.ObjectPanel.identity() != next.ObjectPanel.identity() || prev.ObjectPanel.IsOpen != next.ObjectPanel.IsOpen {
		if next.ObjectPanel.IsOpen {
			kind := next.ObjectPanel.normalizedKind()
			add("object-" + kind)
			add("object-" + kind + "-events")
		}
	}

	sort.Strings(targets)
	return targets
}

// namespacePrefixed filters to refresher names following this package's
// "namespace-<view>" naming convention (spec.md §4.4 namespace class).
func namespacePrefixed(names []string) []string {
	const prefix = "namespace-"
	var out []string
	for _, n := range names {
		if strings.HasPrefix(n, prefix) {
			out = append(out, n)
		}
	}
	return out
}

func (m *Manager) abortMany(names []string) {
	for _, name := range names {
		m.abortRun(name)
	}
}

func (m *Manager) abortRun(name string) {
	m.mu.Lock()
	e, ok := m.entries[name]
	if !ok {
		m.mu.Unlock()
		return
	}
	cancel := e.cancelRun
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// TriggerManualRefresh fires a single refresher as a manual refresh.
func (m *Manager) TriggerManualRefresh(name string) {
	m.startRun(name, true)
}

// TriggerManualRefreshMany deduplicates names and fires each as manual.
// It never returns an error; failures are recorded per-refresher.
func (m *Manager) TriggerManualRefreshMany(names []string) {
	seen := make(map[string]struct{}, len(names))
	var wg sync.WaitGroup
	for _, name := range names {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			m.startRun(name, true)
		}(name)
	}
	wg.Wait()
}

// TriggerManualRefreshForContext computes the current-view refresher set
// from the given context (or the stored one if ctx is nil) and triggers
// them as manual.
func (m *Manager) TriggerManualRefreshForContext(ctx *RefreshContext) {
	var current RefreshContext
	if ctx != nil {
		current = *ctx
	} else {
		m.mu.Lock()
		current = m.context
		m.mu.Unlock()
	}
	targets := computeManualTargets(RefreshContext{}, current, m.bindings)
	m.TriggerManualRefreshMany(targets)
}

// Pause flips the global pause flag when name is empty, otherwise pauses
// only that refresher.
func (m *Manager) Pause(name string) {
	m.mu.Lock()
	var changed []struct {
		name  string
		state RefresherState
	}
	if name == "" {
		m.paused = true
		for n, e := range m.entries {
			if !e.enabled {
				continue
			}
			m.clearTimersLocked(e)
			e.state.Status = StatusPaused
			changed = append(changed, struct {
				name  string
				state RefresherState
			}{n, e.state})
		}
	} else if e, ok := m.entries[name]; ok && e.enabled {
		m.clearTimersLocked(e)
		e.state.Status = StatusPaused
		changed = append(changed, struct {
			name  string
			state RefresherState
		}{name, e.state})
	}
	m.mu.Unlock()

	for _, c := range changed {
		m.publishStateChange(c.name, c.state)
	}
}

// Resume clears the global pause flag (or a single refresher's pause) and
// re-arms interval timers.
func (m *Manager) Resume(name string) {
	m.mu.Lock()
	var changed []string
	if name == "" {
		m.paused = false
		for n, e := range m.entries {
			if e.enabled && e.state.Status == StatusPaused {
				e.state.Status = StatusIdle
				changed = append(changed, n)
			}
		}
	} else if e, ok := m.entries[name]; ok && e.enabled && e.state.Status == StatusPaused {
		e.state.Status = StatusIdle
		changed = append(changed, name)
	}
	states := make(map[string]RefresherState, len(changed))
	for _, n := range changed {
		states[n] = m.entries[n].state
	}
	m.mu.Unlock()

	for _, n := range changed {
		m.publishStateChange(n, states[n])
		m.armInterval(n)
	}
}

// CancelAllRefreshes aborts in-flight work, clears every timer, and resets
// each refresher to idle (enabled) or disabled.
func (m *Manager) CancelAllRefreshes() {
	m.mu.Lock()
	var cancels []context.CancelFunc
	var changed []struct {
		name  string
		state RefresherState
	}
	for n, e := range m.entries {
		m.clearTimersLocked(e)
		if e.cancelRun != nil {
			cancels = append(cancels, e.cancelRun)
		}
		if e.enabled {
			if m.paused {
				e.state.Status = StatusPaused
			} else {
				e.state.Status = StatusIdle
			}
		} else {
			e.state.Status = StatusDisabled
		}
		changed = append(changed, struct {
			name  string
			state RefresherState
		}{n, e.state})
	}
	m.mu.Unlock()

	for _, c := range cancels {
		c()
	}
	for _, c := range changed {
		m.publishStateChange(c.name, c.state)
	}
}

// GetState returns the current state record for name.
func (m *Manager) GetState(name string) (RefresherState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[name]
	if !ok {
		return RefresherState{}, false
	}
	return e.state, true
}

// GetRefresherInterval returns the configured interval for name.
func (m *Manager) GetRefresherInterval(name string) (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[name]
	if !ok {
		return 0, false
	}
	return e.config.Interval, true
}

func (m *Manager) clearTimersLocked(e *entry) {
	if e.intervalTimer != nil {
		e.intervalTimer.Stop()
		e.intervalTimer = nil
	}
	if e.cooldownTimer != nil {
		e.cooldownTimer.Stop()
		e.cooldownTimer = nil
	}
}

func (m *Manager) armInterval(name string) {
	m.mu.Lock()
	e, ok := m.entries[name]
	if !ok || !e.enabled || m.paused || e.config.Interval <= 0 {
		m.mu.Unlock()
		return
	}
	if e.intervalTimer != nil {
		e.intervalTimer.Stop()
	}
	e.intervalTimer = m.clock.AfterFunc(e.config.Interval, func() { m.onIntervalTick(name) })
	m.mu.Unlock()
}

func (m *Manager) onIntervalTick(name string) {
	m.mu.Lock()
	e, ok := m.entries[name]
	if !ok || !e.enabled || m.paused {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	m.armInterval(name)
	m.startRun(name, false)
}

// cooldownDuration implements spec.md §4.1/§8's backoff formula.
func cooldownDuration(base time.Duration, consecutiveErrors int) time.Duration {
	if consecutiveErrors <= 1 {
		return base
	}
	shift := consecutiveErrors - 1
	d := base
	for i := 0; i < shift && d < 60*time.Second; i++ {
		d *= 2
	}
	if d > 60*time.Second {
		d = 60 * time.Second
	}
	return d
}

// startRun begins a refresh cycle for name, honoring the preemption rules:
// manual triggers abort an in-flight run and clear timers; automatic ticks
// are dropped while a run is already in flight or the refresher is not idle.
func (m *Manager) startRun(name string, isManual bool) {
	m.mu.Lock()
	e, ok := m.entries[name]
	if !ok {
		m.mu.Unlock()
		return
	}

	switch e.state.Status {
	case StatusRefreshing:
		if !isManual {
			m.mu.Unlock()
			return
		}
		if e.cancelRun != nil {
			e.cancelRun()
		}
	case StatusIdle:
		if isManual {
			m.clearTimersLocked(e)
		}
	case StatusCooldown:
		if !isManual {
			m.mu.Unlock()
			return
		}
		m.clearTimersLocked(e)
	default:
		// paused, disabled, error: only manual can force a run.
		if !isManual {
			m.mu.Unlock()
			return
		}
		m.clearTimersLocked(e)
	}

	subs := make([]Subscriber, 0, len(e.subs))
	for _, s := range e.subs {
		subs = append(subs, s)
	}
	runCtx, cancel := context.WithCancel(context.Background())
	e.cancelRun = cancel
	e.state.Status = StatusRefreshing
	e.gen++
	gen := e.gen
	state := e.state
	timeout := e.config.Timeout
	m.mu.Unlock()

	m.publishStateChange(name, state)
	m.publishStart(name, isManual)

	go m.executeRun(name, gen, runCtx, subs, isManual, timeout)
}

func (m *Manager) executeRun(name string, gen uint64, runCtx context.Context, subs []Subscriber, isManual bool, timeout time.Duration) {
	if len(subs) == 0 {
		m.completeRun(name, gen, isManual, nil)
		return
	}

	results := make([]error, len(subs))
	var wg sync.WaitGroup
	for i, sub := range subs {
		wg.Add(1)
		go func(i int, sub Subscriber) {
			defer wg.Done()
			subCtx, cancel := context.WithCancel(runCtx)
			var timer Timer
			if timeout > 0 {
				timer = m.clock.AfterFunc(timeout, cancel)
			}
			results[i] = invokeSubscriber(sub, subCtx, isManual)
			if timer != nil {
				timer.Stop()
			}
			cancel()
		}(i, sub)
	}
	wg.Wait()

	if runCtx.Err() != nil {
		m.completeRun(name, gen, isManual, NewAbortError("refresh cancelled"))
		return
	}

	var firstErr error
	succeeded := false
	for _, err := range results {
		if err == nil {
			succeeded = true
			continue
		}
		if IsAbort(err) {
			continue
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	if succeeded {
		m.completeRun(name, gen, isManual, nil)
		return
	}
	if firstErr == nil {
		firstErr = NewAbortError("refresh cancelled")
	}
	m.completeRun(name, gen, isManual, firstErr)
}

func invokeSubscriber(sub Subscriber, ctx context.Context, isManual bool) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("subscriber panic: %v", r)
		}
	}()
	return sub(ctx, isManual)
}

func (m *Manager) completeRun(name string, gen uint64, isManual bool, err error) {
	m.mu.Lock()
	e, ok := m.entries[name]
	if !ok || e.state.Status != StatusRefreshing || e.gen != gen {
		// A stale completion: either the entry is gone, or a manual
		// trigger already preempted this run and bumped gen for its own
		// replacement. Let the newer run settle on its own.
		m.mu.Unlock()
		return
	}

	if IsAbort(err) {
		e.cancelRun = nil
		e.state.Status = StatusIdle
		state := e.state
		m.mu.Unlock()

		m.publishStateChange(name, state)
		m.publishComplete(name, isManual, false, err)
		m.armInterval(name)
		return
	}

	success := err == nil
	now := m.clock.Now()
	if success {
		e.state.ConsecutiveErrors = 0
		e.state.Error = ""
	} else {
		e.state.ConsecutiveErrors++
		e.state.Error = err.Error()
	}
	e.state.LastRefreshTime = now
	cooldown := cooldownDuration(e.config.Cooldown, e.state.ConsecutiveErrors)
	e.state.Status = StatusCooldown
	e.state.NextRefreshTime = now.Add(cooldown)
	e.cancelRun = nil
	state := e.state

	e.cooldownTimer = m.clock.AfterFunc(cooldown, func() {
		m.onCooldownElapsed(name, isManual, !success)
	})
	m.mu.Unlock()

	m.publishStateChange(name, state)
	m.publishComplete(name, isManual, success, err)
}

func (m *Manager) onCooldownElapsed(name string, wasManual bool, hadError bool) {
	m.mu.Lock()
	e, ok := m.entries[name]
	if !ok || e.state.Status != StatusCooldown {
		m.mu.Unlock()
		return
	}
	e.cooldownTimer = nil
	e.state.Status = StatusIdle
	state := e.state
	enabled := e.enabled
	paused := m.paused
	m.mu.Unlock()

	m.publishStateChange(name, state)

	if wasManual && enabled && !paused {
		m.armInterval(name)
	}
	if hadError && !wasManual && enabled && !paused {
		m.startRun(name, false)
	}
}

func (m *Manager) publishStateChange(name string, state RefresherState) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(TopicRefreshStateChange, StateChangeEvent{Name: name, State: state})
}

func (m *Manager) publishStart(name string, isManual bool) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(TopicRefreshStart, StartEvent{Name: name, IsManual: isManual})
}

func (m *Manager) publishComplete(name string, isManual, success bool, err error) {
	if m.bus == nil {
		return
	}
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	m.bus.Publish(TopicRefreshComplete, CompleteEvent{Name: name, IsManual: isManual, Success: success, Error: msg})
}

func (m *Manager) publishRegistered(name string) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(TopicRefreshRegistered, RegisteredEvent{Name: name})
}
