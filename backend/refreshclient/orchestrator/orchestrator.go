// Package orchestrator layers data domains on top of refreshclient.Manager:
// scope normalization, snapshot fetch with ETag/conditional-GET, streaming
// lifecycle, metrics-only overlays, error-policy deduplication, and the
// event-bus reactions that tie navigation and kubeconfig transitions back
// into domain state (spec.md §4.2).
package orchestrator

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/luxury-yacht/app/backend/refreshclient"
	"github.com/luxury-yacht/app/backend/refreshclient/bus"
	"github.com/luxury-yacht/app/backend/refreshclient/scope"
	"github.com/luxury-yacht/app/backend/refreshclient/snapshotclient"
	"github.com/luxury-yacht/app/backend/refreshclient/store"
)

// metricsCadenceGuard caps how often a metrics-only overlay apply runs per
// (domain, scope), even if the underlying refresher ticks faster (spec.md
// §4.2 "Metrics cadence guard").
const metricsCadenceGuard = 10 * time.Second

// kubeconfigSuppressionWindow is the duration after a kubeconfig:changed or
// kubeconfig:selection-changed event during which network-transient fetch
// errors are swallowed rather than surfaced (spec.md §4.2, §7).
const kubeconfigSuppressionWindow = 6 * time.Second

// ErrorHandler receives fatal per-refresh errors exactly once per unique
// message per (domain, scope) key (spec.md §7 "User visibility").
type ErrorHandler func(err error, domain, scopeStr, category string)

// Orchestrator is the process-wide singleton coordinating data domains.
type Orchestrator struct {
	mu sync.Mutex

	manager *refreshclient.Manager
	client  *snapshotclient.Client
	st      *store.Store
	bus     *bus.Bus
	logger  refreshclient.Logger
	clock   refreshclient.Clock
	onError ErrorHandler

	domains map[string]*domainRuntime
	context refreshclient.RefreshContext

	contextVersion     uint64
	lastNotifiedErrors map[string]string
	blockedStreams     map[string]bool
	suppressUntil      time.Time
	suspendedDomains   map[string]bool
	metricsInterval    refreshclient.MetricsIntervalFunc
}

// New constructs an Orchestrator and installs its bus listeners for the
// process lifetime (spec.md §3 "Global singletons").
func New(manager *refreshclient.Manager, client *snapshotclient.Client, st *store.Store, eventBus *bus.Bus, logger refreshclient.Logger, clock refreshclient.Clock, onError ErrorHandler) *Orchestrator {
	if logger == nil {
		logger = noopLogger{}
	}
	if clock == nil {
		clock = refreshclient.NewRealClock()
	}
	o := &Orchestrator{
		manager:            manager,
		client:             client,
		st:                 st,
		bus:                eventBus,
		logger:             logger,
		clock:              clock,
		onError:            onError,
		domains:            make(map[string]*domainRuntime),
		lastNotifiedErrors: make(map[string]string),
		blockedStreams:     make(map[string]bool),
		suspendedDomains:   make(map[string]bool),
	}
	o.installBusListeners()
	return o
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...string) {}
func (noopLogger) Info(string, ...string)  {}
func (noopLogger) Warn(string, ...string)  {}
func (noopLogger) Error(string, ...string) {}

// SetMetricsIntervalFunc installs the preference-driven interval source for
// metrics refreshers (spec.md §4.4's "pref" column); domains already
// registered keep whatever interval ResolveTiming resolved at registration
// time, so this should be called before RegisterDomain for metrics domains.
func (o *Orchestrator) SetMetricsIntervalFunc(fn refreshclient.MetricsIntervalFunc) {
	o.mu.Lock()
	o.metricsInterval = fn
	o.mu.Unlock()
}

// RegisterDomain installs a domain, ensures its refresher exists with the
// timing table's values, and subscribes the fan-out fetch callback
// (spec.md §4.2). Re-registering a scoped domain preserves prior scope
// enablement; re-registering a non-scoped domain preserves its enabled flag.
func (o *Orchestrator) RegisterDomain(config DomainConfig) {
	o.mu.Lock()
	rt, existed := o.domains[config.Name]
	if existed {
		rt.config = config
	} else {
		rt = newDomainRuntime(config)
		o.domains[config.Name] = rt
	}
	o.mu.Unlock()

	o.mu.Lock()
	metricsInterval := o.metricsInterval
	o.mu.Unlock()

	rc := refreshclient.RefresherConfig{Name: config.Refresher, InitialEnabled: config.AutoStart}
	if timing, ok := refreshclient.ResolveTiming(config.Refresher, metricsInterval); ok {
		rc.Interval, rc.Cooldown, rc.Timeout = timing.Interval, timing.Cooldown, timing.Timeout
	}
	o.manager.Register(rc)

	if !existed {
		name := config.Name
		o.manager.Subscribe(config.Refresher, func(ctx context.Context, isManual bool) error {
			return o.runDomainRefresh(ctx, name, isManual)
		})
	}
}

func (o *Orchestrator) runDomainRefresh(ctx context.Context, domainName string, isManual bool) error {
	o.mu.Lock()
	rt, ok := o.domains[domainName]
	o.mu.Unlock()
	if !ok {
		return nil
	}

	if !rt.config.Scoped {
		scopeStr := o.resolveNonScopedScope(rt)
		return o.FetchScopedDomain(ctx, domainName, scopeStr, FetchOptions{IsManual: isManual})
	}

	o.mu.Lock()
	scopes := make([]string, 0, len(rt.enabledScopes))
	for s, enabled := range rt.enabledScopes {
		if enabled {
			scopes = append(scopes, s)
		}
	}
	o.mu.Unlock()

	var firstErr error
	for _, s := range scopes {
		if err := o.FetchScopedDomain(ctx, domainName, s, FetchOptions{IsManual: isManual}); err != nil && !refreshclient.IsAbort(err) && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// pinnedBody implements the hard-coded scope bodies of spec.md §4.2's scope
// normalization rules.
func pinnedBody(name string, category Category) (body string, pinned bool) {
	switch name {
	case "nodes":
		return "", true
	case "cluster-events":
		return "cluster", true
	case "cluster-overview":
		return "", true
	}
	if category == CategoryCluster {
		return "", true
	}
	return "", false
}

func (o *Orchestrator) resolveNonScopedScope(rt *domainRuntime) string {
	o.mu.Lock()
	ctx := o.context
	o.mu.Unlock()
	return resolveNonScopedScopeFor(rt.config, ctx)
}

// resolveNonScopedScopeFor is the pure form of resolveNonScopedScope, usable
// against an arbitrary RefreshContext without touching orchestrator state
// (spec.md §4.2, used to diff scopes across a context change).
func resolveNonScopedScopeFor(config DomainConfig, ctx refreshclient.RefreshContext) string {
	body := ""
	if b, pinned := pinnedBody(config.Name, config.Category); pinned {
		body = b
	} else if config.ScopeResolver != nil {
		if b, ok := config.ScopeResolver(ctx); ok {
			body = b
		}
	}

	if config.Name == "cluster-overview" {
		return scope.BuildClusterScope(ctx.SelectedClusterID, body)
	}

	ids := ctx.SelectedClusterIDs
	if len(ids) == 0 && ctx.SelectedClusterID != "" {
		ids = []string{ctx.SelectedClusterID}
	}
	return scope.BuildClusterScopeList(ids, body)
}

// normalizeScopedBody rewrites an unqualified namespace name into
// "namespace:<name>" per spec.md §4.2.
func normalizeScopedBody(body string) string {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return trimmed
	}
	if strings.Contains(trimmed, ":") {
		return trimmed
	}
	return scope.NamespaceBody(trimmed)
}

// SetDomainScope installs a user-controlled scope override.
func (o *Orchestrator) SetDomainScope(domainName string, scopeStr string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	rt, ok := o.domains[domainName]
	if !ok {
		return
	}
	v := scopeStr
	rt.scopeOverride = &v
}

// ClearDomainScope removes a prior override.
func (o *Orchestrator) ClearDomainScope(domainName string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if rt, ok := o.domains[domainName]; ok {
		rt.scopeOverride = nil
	}
}

// GetDomainScope returns the current override, if any.
func (o *Orchestrator) GetDomainScope(domainName string) (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	rt, ok := o.domains[domainName]
	if !ok || rt.scopeOverride == nil {
		return "", false
	}
	return *rt.scopeOverride, true
}

// GetSelectedNamespace returns the namespace currently in view.
func (o *Orchestrator) GetSelectedNamespace() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.context.SelectedNamespace
}

// GetSelectedClusterID returns the foreground cluster id.
func (o *Orchestrator) GetSelectedClusterID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.context.SelectedClusterID
}

// IsStreamingDomain reports whether domainName declares streaming hooks.
func (o *Orchestrator) IsStreamingDomain(domainName string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	rt, ok := o.domains[domainName]
	return ok && rt.config.Streaming != nil
}

// SetDomainEnabled toggles a non-scoped domain. Namespace-category domains
// may only be enabled while the namespace context is active; enabling one
// outside that context forces it back off (spec.md §4.2).
func (o *Orchestrator) SetDomainEnabled(domainName string, enabled bool) {
	o.mu.Lock()
	rt, ok := o.domains[domainName]
	if !ok {
		o.mu.Unlock()
		return
	}
	if enabled && rt.config.Category == CategoryNamespace && o.context.CurrentView != "namespace" {
		o.mu.Unlock()
		o.resetDomainState(domainName, rt.config.Scoped)
		o.manager.Disable(rt.config.Refresher)
		return
	}
	rt.enabled = enabled
	refresherName := rt.config.Refresher
	o.mu.Unlock()

	if enabled {
		o.manager.Enable(refresherName)
	} else {
		o.manager.Disable(refresherName)
		o.resetDomainState(domainName, rt.config.Scoped)
	}
}

// SetScopedDomainEnabled toggles one scope of a scoped domain. The
// underlying refresher stays enabled iff at least one scope is enabled. A
// newly enabled streaming scope schedules a streaming start.
func (o *Orchestrator) SetScopedDomainEnabled(domainName, scopeStr string, enabled bool) {
	trimmed := strings.TrimSpace(scopeStr)
	if trimmed == "" {
		return
	}

	o.mu.Lock()
	rt, ok := o.domains[domainName]
	if !ok {
		o.mu.Unlock()
		return
	}
	already := rt.enabledScopes[trimmed]
	rt.enabledScopes[trimmed] = enabled
	anyEnabled := false
	for _, v := range rt.enabledScopes {
		if v {
			anyEnabled = true
			break
		}
	}
	refresherName := rt.config.Refresher
	streaming := rt.config.Streaming
	o.mu.Unlock()

	if anyEnabled {
		o.manager.Enable(refresherName)
	} else {
		o.manager.Disable(refresherName)
	}

	if enabled && !already {
		o.resetScopedDomainState(domainName, trimmed)
		if streaming != nil {
			go o.scheduleStreamingStart(domainName, trimmed)
		}
	} else if !enabled && already && streaming != nil {
		o.StopStreamingDomain(domainName, trimmed, true)
	}
}

// TriggerManualRefresh refreshes domainName for every currently enabled
// scope (or once, for a non-scoped domain).
func (o *Orchestrator) TriggerManualRefresh(domainName string) {
	ctx := context.Background()
	_ = o.runDomainRefresh(ctx, domainName, true)
}

// TriggerManualRefreshForContext refreshes the domains eligible for the
// current (or given) view, plus the system "namespaces" domain and the
// selected namespace's pods scope when the pods view is active (spec.md
// §4.2).
func (o *Orchestrator) TriggerManualRefreshForContext(rc *refreshclient.RefreshContext) {
	var current refreshclient.RefreshContext
	o.mu.Lock()
	if rc != nil {
		current = *rc
	} else {
		current = o.context
	}
	names := make([]string, 0, len(o.domains))
	for name, rt := range o.domains {
		switch rt.config.Category {
		case CategorySystem:
			names = append(names, name)
		case CategoryNamespace:
			if current.CurrentView == "namespace" {
				names = append(names, name)
			}
		case CategoryCluster:
			if current.CurrentView == "cluster" {
				names = append(names, name)
			}
		}
	}
	o.mu.Unlock()

	for _, name := range names {
		o.TriggerManualRefresh(name)
	}

	if current.CurrentView == "namespace" && current.ActiveNamespaceView == "pods" && current.SelectedNamespace != "" {
		podsScope := scope.BuildClusterScope(current.SelectedNamespaceClusterID, scope.NamespaceBody(current.SelectedNamespace))
		_ = o.FetchScopedDomain(context.Background(), "pods", podsScope, FetchOptions{IsManual: true})
	}
}

// ResetDomain drops a non-scoped domain's cached data.
func (o *Orchestrator) ResetDomain(domainName string) {
	o.mu.Lock()
	rt, ok := o.domains[domainName]
	o.mu.Unlock()
	if !ok {
		return
	}
	o.resetDomainState(domainName, rt.config.Scoped)
}

// ResetScopedDomain drops cached data for (domain, scope).
func (o *Orchestrator) ResetScopedDomain(domainName, scopeStr string) {
	o.resetScopedDomainState(domainName, scopeStr)
}

func (o *Orchestrator) resetDomainState(domainName string, scoped bool) {
	if scoped {
		o.st.ResetAllScopedDomainStates(domainName)
		return
	}
	o.st.ResetDomainState(domainName)
}

func (o *Orchestrator) resetScopedDomainState(domainName, scopeStr string) {
	o.st.ResetScopedDomainState(domainName, scopeStr)
}

// UpdateContext normalizes objectPanel.ObjectKind to lowercase, merges the
// patch, forwards it to the Manager, disables namespace-category domains on
// namespace-context deactivation, and recomputes non-scoped streaming scopes
// (spec.md §4.2).
func (o *Orchestrator) UpdateContext(partial refreshclient.ContextPatch) {
	if partial.ObjectPanel != nil {
		normalized := *partial.ObjectPanel
		normalized.ObjectKind = strings.ToLower(normalized.ObjectKind)
		partial.ObjectPanel = &normalized
	}

	o.mu.Lock()
	prev := o.context
	next := prev.merge(partial)
	o.context = next
	navigationChanged := prev.SelectedNamespace != next.SelectedNamespace ||
		prev.SelectedNamespaceClusterID != next.SelectedNamespaceClusterID ||
		prev.SelectedClusterID != next.SelectedClusterID ||
		prev.CurrentView != next.CurrentView ||
		prev.ActiveNamespaceView != next.ActiveNamespaceView ||
		prev.ActiveClusterView != next.ActiveClusterView
	if navigationChanged {
		o.contextVersion++
	}
	o.mu.Unlock()

	o.manager.UpdateContext(partial)

	if prev.CurrentView == "namespace" && next.CurrentView != "namespace" {
		o.mu.Lock()
		var toDisable []string
		for name, rt := range o.domains {
			if rt.config.Category == CategoryNamespace {
				toDisable = append(toDisable, name)
			}
		}
		o.mu.Unlock()
		for _, name := range toDisable {
			o.SetDomainEnabled(name, false)
		}
	}

	o.restartNonScopedStreamsOnContextChange(prev, next)
}
