package orchestrator

import (
	"context"
	"time"

	"github.com/luxury-yacht/app/backend/refreshclient"
	"github.com/luxury-yacht/app/backend/refreshclient/snapshotclient"
)

// Category classifies a domain's lifetime relative to navigation (spec.md §3).
type Category string

const (
	CategorySystem    Category = "system"
	CategoryCluster   Category = "cluster"
	CategoryNamespace Category = "namespace"
)

// StopFunc tears down an active stream for one scope.
type StopFunc func()

// StreamingHooks describes the streaming lifecycle a domain may provide in
// place of (or alongside) a polled snapshot (spec.md §3, §4.2).
type StreamingHooks struct {
	// Start begins streaming for scope and returns a cleanup function.
	Start func(ctx context.Context, scope string) (StopFunc, error)
	// Stop tears the stream transport down for scope; reset additionally
	// asks the provider to drop any data it buffered.
	Stop func(ctx context.Context, scope string, reset bool) error
	// RefreshOnce asks the stream to re-deliver its current state instead of
	// polling a snapshot. If nil, refreshes fall back to stop+start.
	RefreshOnce func(ctx context.Context, scope string) error
	// MetricsOnly domains apply incoming snapshots as a usage-field overlay
	// instead of a full replace while their stream is healthy.
	MetricsOnly bool
	// PauseRefresherWhenStreaming disables the underlying refresher while a
	// non-scoped stream is active, re-enabling it when the stream stops.
	PauseRefresherWhenStreaming bool
}

// NaturalKeyFunc extracts the natural key overlay rows are matched by
// (spec.md §4.2 metrics-only overlay): pods use clusterId::namespace::name,
// workloads add ::kind, nodes use clusterId::name.
type NaturalKeyFunc func(row map[string]any) string

// UsageFields lists the payload keys copied during a metrics-only overlay
// apply; anything else on a matched row is left untouched.
var UsageFields = []string{"cpuUsage", "memUsage", "memoryUsage", "podMetrics"}

// ScopeResolver derives a domain's current scope body from the active
// RefreshContext, used by domains whose scope is not user-overridden.
type ScopeResolver func(ctx refreshclient.RefreshContext) (body string, ok bool)

// DomainConfig installs a data domain on top of a named refresher
// (spec.md §3, §4.2).
type DomainConfig struct {
	Name          string
	Refresher     string
	Category      Category
	Scoped        bool
	ScopeResolver ScopeResolver
	Streaming     *StreamingHooks
	AutoStart     bool
	NaturalKey    NaturalKeyFunc

	// BackendDomain is the name used against GET /api/v2/snapshots/<name>;
	// it defaults to Name when empty.
	BackendDomain string
}

func (d DomainConfig) backendName() string {
	if d.BackendDomain != "" {
		return d.BackendDomain
	}
	return d.Name
}

// FetchOptions parametrizes a manual or automatic scoped fetch.
type FetchOptions struct {
	IsManual bool
}

type domainRuntime struct {
	config DomainConfig

	scopeOverride *string
	enabled       bool // non-scoped enablement
	enabledScopes map[string]bool

	stateByScope map[string]*scopedFetchState // key: scope ("" for non-scoped)
}

// scopedFetchState tracks in-flight and streaming bookkeeping for one
// (domain, scope) key (spec.md §3 In-Flight Record / Streaming Tracking).
type scopedFetchState struct {
	inFlightCancel context.CancelFunc
	inFlightID     string

	streamCleanup    StopFunc
	streamPending    bool
	streamCancelled  bool
	streamActive     bool

	lastMetricsOverlay time.Time
	lastETag           string
	lastData           snapshotclient.Snapshot
	hasData            bool
}

func newDomainRuntime(config DomainConfig) *domainRuntime {
	return &domainRuntime{
		config:        config,
		enabledScopes: make(map[string]bool),
		stateByScope:  make(map[string]*scopedFetchState),
	}
}

func (r *domainRuntime) stateFor(scopeKey string) *scopedFetchState {
	st, ok := r.stateByScope[scopeKey]
	if !ok {
		st = &scopedFetchState{}
		r.stateByScope[scopeKey] = st
	}
	return st
}
