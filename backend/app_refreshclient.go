package backend

import (
	"context"
	"time"

	"github.com/luxury-yacht/app/backend/internal/config"
	"github.com/luxury-yacht/app/backend/refreshclient"
	"github.com/luxury-yacht/app/backend/refreshclient/bus"
	"github.com/luxury-yacht/app/backend/refreshclient/orchestrator"
	"github.com/luxury-yacht/app/backend/refreshclient/snapshotclient"
	"github.com/luxury-yacht/app/backend/refreshclient/store"
)

// refreshClientDomains mirrors backend/refresh/system/registrations.go's
// domain table one-for-one (SPEC_FULL.md §0): every domain the server can
// snapshot gets a client-side scheduling counterpart. Refresher names match
// backend/refreshclient.TimingTable's keys, which is not always the same
// string as the backend snapshot domain name (DomainConfig.Name); where the
// two differ, BackendDomain is left empty since orchestrator.DomainConfig
// already defaults it to Name and the snapshot route always addresses the
// domain by its backend name.
var refreshClientDomains = []orchestrator.DomainConfig{
	{Name: "namespaces", Refresher: "namespaces", Category: orchestrator.CategorySystem, AutoStart: true},
	{Name: "cluster-overview", Refresher: "cluster-overview", Category: orchestrator.CategoryCluster, AutoStart: true},
	{Name: "catalog", Refresher: "cluster-browse", Category: orchestrator.CategoryCluster},
	{Name: "catalog-diff", Refresher: "cluster-catalogDiff", Category: orchestrator.CategoryCluster},
	{Name: "nodes", Refresher: "cluster-nodes", Category: orchestrator.CategoryCluster, AutoStart: true},
	{Name: "cluster-config", Refresher: "cluster-config", Category: orchestrator.CategoryCluster},
	{Name: "cluster-crds", Refresher: "cluster-crds", Category: orchestrator.CategoryCluster},
	{Name: "cluster-custom", Refresher: "cluster-custom", Category: orchestrator.CategoryCluster},
	{Name: "cluster-events", Refresher: "cluster-events", Category: orchestrator.CategoryCluster},
	{Name: "cluster-rbac", Refresher: "cluster-rbac", Category: orchestrator.CategoryCluster},
	{Name: "cluster-storage", Refresher: "cluster-storage", Category: orchestrator.CategoryCluster},
	{Name: "node-maintenance", Refresher: "node-maintenance", Category: orchestrator.CategoryCluster},

	{Name: "namespace-workloads", Refresher: "namespace-workloads", Category: orchestrator.CategoryNamespace, Scoped: true},
	{Name: "namespace-autoscaling", Refresher: "namespace-autoscaling", Category: orchestrator.CategoryNamespace, Scoped: true},
	{Name: "namespace-config", Refresher: "namespace-config", Category: orchestrator.CategoryNamespace, Scoped: true},
	{Name: "namespace-custom", Refresher: "namespace-custom", Category: orchestrator.CategoryNamespace, Scoped: true},
	{Name: "namespace-events", Refresher: "namespace-events", Category: orchestrator.CategoryNamespace, Scoped: true},
	{Name: "namespace-helm", Refresher: "namespace-helm", Category: orchestrator.CategoryNamespace, Scoped: true},
	{Name: "namespace-network", Refresher: "namespace-network", Category: orchestrator.CategoryNamespace, Scoped: true},
	{Name: "namespace-quotas", Refresher: "namespace-quotas", Category: orchestrator.CategoryNamespace, Scoped: true},
	{Name: "namespace-rbac", Refresher: "namespace-rbac", Category: orchestrator.CategoryNamespace, Scoped: true},
	{Name: "namespace-storage", Refresher: "namespace-storage", Category: orchestrator.CategoryNamespace, Scoped: true},
	{Name: "pods", Refresher: "unified-pods", Category: orchestrator.CategoryNamespace, Scoped: true},

	{Name: "object-details", Refresher: "object-details", Category: orchestrator.CategoryNamespace, Scoped: true},
	{Name: "object-yaml", Refresher: "object-yaml", Category: orchestrator.CategoryNamespace, Scoped: true},
	{Name: "object-helm-manifest", Refresher: "object-helm", Category: orchestrator.CategoryNamespace, Scoped: true},
	{Name: "object-helm-values", Refresher: "object-helm", Category: orchestrator.CategoryNamespace, Scoped: true},
	{Name: "object-events", Refresher: "object-events", Category: orchestrator.CategoryNamespace, Scoped: true},

	// object-logs has no backend snapshot route of its own - the object
	// panel's log tail is served by the streaming transport spec.md §1
	// scopes out of this core - but the refresher itself still needs to
	// exist so the manual-refresh targets manager.go's object-panel-open
	// logic computes ("object-logs") resolve to a real, timed refresher
	// instead of silently no-oping.
	{Name: "object-logs", Refresher: "object-logs", Category: orchestrator.CategoryNamespace, Scoped: true},
}

// initRefreshClient constructs the client-side refresh coordination core:
// the event bus, reactive store, refresh manager and orchestrator, wires the
// bus onto the same Wails event bridge Logger already uses, and registers
// every domain the backend can snapshot. It runs once, from NewApp, since
// the orchestrator is a process-wide singleton (spec.md §3); the backend
// base URL it targets resolves lazily through a.GetRefreshBaseURL, which
// only starts returning a real address once the refresh HTTP server comes
// up (app_refresh_setup.go's startRefreshHTTPServer).
func (a *App) initRefreshClient() {
	a.refreshClientBus = bus.New()
	a.refreshClientStore = store.New()
	clock := refreshclient.NewRealClock()

	a.refreshClientManager = refreshclient.NewManager(clock, a.logger, a.refreshClientBus, refreshclient.ViewBindings{
		NamespaceViewRefresher: map[string]string{
			"workloads":    "namespace-workloads",
			"autoscaling":  "namespace-autoscaling",
			"config":       "namespace-config",
			"custom":       "namespace-custom",
			"events":       "namespace-events",
			"helm":         "namespace-helm",
			"network":      "namespace-network",
			"quotas":       "namespace-quotas",
			"rbac":         "namespace-rbac",
			"storage":      "namespace-storage",
			"pods":         "unified-pods",
		},
		ClusterViewRefresher: map[string]string{
			"overview": "cluster-overview",
			"catalog":  "cluster-browse",
			"nodes":    "cluster-nodes",
			"config":   "cluster-config",
			"crds":     "cluster-crds",
			"custom":   "cluster-custom",
			"events":   "cluster-events",
			"rbac":     "cluster-rbac",
			"storage":  "cluster-storage",
		},
	})

	resolveBase := func(ctx context.Context) (string, error) {
		return a.GetRefreshBaseURL()
	}
	client := snapshotclient.New(resolveBase, nil, a.logger, clock)

	a.refreshClient = orchestrator.New(
		a.refreshClientManager,
		client,
		a.refreshClientStore,
		a.refreshClientBus,
		a.logger,
		clock,
		a.notifyRefreshClientError,
	)
	a.refreshClient.SetMetricsIntervalFunc(func() time.Duration {
		if a.appSettings == nil || a.appSettings.MetricsRefreshIntervalMs <= 0 {
			return config.RefreshMetricsInterval
		}
		return time.Duration(a.appSettings.MetricsRefreshIntervalMs) * time.Millisecond
	})

	for _, domainConfig := range refreshClientDomains {
		a.refreshClient.RegisterDomain(domainConfig)
	}

	a.installRefreshClientBusBridge()
}

// notifyRefreshClientError is the orchestrator's ErrorHandler: fatal,
// deduplicated per-domain errors surface to the UI the same "backend-error"
// channel stderr capture already uses (app_lifecycle.go's errorcapture
// wiring), tagged with the failing domain and scope instead of a bare
// message.
func (a *App) notifyRefreshClientError(err error, domain, scopeStr, category string) {
	a.logger.Warn(domain+" refresh failed: "+err.Error(), "RefreshClient")
	a.emitEvent("refresh-client-error", map[string]any{
		"domain":   domain,
		"scope":    scopeStr,
		"category": category,
		"message":  err.Error(),
	})
}

// installRefreshClientBusBridge forwards every refreshclient bus topic to
// the frontend over the same runtime.EventsEmit path emitEvent already
// bridges Logger entries through (SPEC_FULL.md §0).
func (a *App) installRefreshClientBusBridge() {
	topics := []string{
		refreshclient.TopicRefreshStateChange,
		refreshclient.TopicRefreshStart,
		refreshclient.TopicRefreshComplete,
		refreshclient.TopicRefreshRegistered,
	}
	for _, topic := range topics {
		name := topic
		a.refreshClientBus.Subscribe(name, func(payload any) {
			a.emitEvent(name, payload)
		})
	}
}

// UpdateRefreshContext merges a navigation patch into the refresh client's
// context, the client-side analogue of the backend's own per-request
// context threading (spec.md §4.1's updateContext).
func (a *App) UpdateRefreshContext(patch refreshclient.ContextPatch) {
	if a.refreshClient == nil {
		return
	}
	a.refreshClient.UpdateContext(patch)
}

// NotifyViewReset publishes view:reset on the refresh client bus, tearing
// every domain back to its not-yet-fetched shape (spec.md §4.2).
func (a *App) NotifyViewReset() {
	if a.refreshClientBus == nil {
		return
	}
	a.refreshClientBus.Publish(refreshclient.TopicViewReset, nil)
}

// NotifyKubeconfigChanging publishes kubeconfig:changing, run just before a
// kubeconfig switch begins (spec.md §4.2).
func (a *App) NotifyKubeconfigChanging() {
	if a.refreshClientBus == nil {
		return
	}
	a.refreshClientBus.Publish(refreshclient.TopicKubeconfigChanging, nil)
}

// NotifyKubeconfigChanged publishes kubeconfig:changed once a new kubeconfig
// connection is up, opening the transient-error suppression window (spec.md
// §4.2, §7).
func (a *App) NotifyKubeconfigChanged() {
	if a.refreshClientBus == nil {
		return
	}
	a.refreshClientBus.Publish(refreshclient.TopicKubeconfigChanged, nil)
}

// NotifyKubeconfigSelectionChanged publishes kubeconfig:selection-changed
// for a narrower transition than a full kubeconfig swap: the set of
// selected clusters changed (spec.md §4.2).
func (a *App) NotifyKubeconfigSelectionChanged() {
	if a.refreshClientBus == nil {
		return
	}
	a.refreshClientBus.Publish(refreshclient.TopicKubeconfigSelectionSet, nil)
}
