package orchestrator

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/luxury-yacht/app/backend/refreshclient"
	"github.com/luxury-yacht/app/backend/refreshclient/scope"
	"github.com/luxury-yacht/app/backend/refreshclient/snapshotclient"
	"github.com/luxury-yacht/app/backend/refreshclient/store"
)

var errScopedDomainRequiresBody = errors.New("scoped domain fetch requires a non-empty scope body")

// FetchScopedDomain performs the ten-step snapshot fetch protocol of
// spec.md §4.2 for (domain, scope): enablement check, loading-state
// transition, in-flight collision handling, conditional GET, apply, and
// context-version staleness discard. For a streaming domain with a healthy
// non-metrics-only stream it delegates to RefreshOnce instead.
func (o *Orchestrator) FetchScopedDomain(ctx context.Context, domainName, scopeStr string, opts FetchOptions) error {
	o.mu.Lock()
	rt, ok := o.domains[domainName]
	if !ok {
		o.mu.Unlock()
		return nil
	}

	scopeKey := scopeStr
	if rt.config.Scoped {
		scopeStr = normalizeScopedBody(scopeStr)
		scopeKey = scopeStr
		if strings.TrimSpace(scope.StripClusterScope(scopeStr)) == "" {
			o.mu.Unlock()
			return errScopedDomainRequiresBody
		}
		if !rt.enabledScopes[scopeStr] {
			o.mu.Unlock()
			o.resetScopedDomainState(domainName, scopeStr)
			return nil
		}
	}
	fst := rt.stateFor(scopeKey)

	if rt.config.Streaming != nil && fst.streamActive && !rt.config.Streaming.MetricsOnly {
		hooks := rt.config.Streaming
		o.mu.Unlock()
		if hooks.RefreshOnce != nil {
			return hooks.RefreshOnce(ctx, scopeStr)
		}
		return o.RestartStreamingDomain(domainName, scopeStr)
	}

	metricsOverlay := rt.config.Streaming != nil && rt.config.Streaming.MetricsOnly && fst.streamActive
	if metricsOverlay && o.clock.Now().Sub(fst.lastMetricsOverlay) < metricsCadenceGuard && !fst.lastMetricsOverlay.IsZero() {
		o.mu.Unlock()
		o.st.IncrementDroppedAutoRefresh(domainName)
		return nil
	}

	if fst.inFlightCancel != nil {
		if opts.IsManual {
			fst.inFlightCancel()
		} else {
			o.mu.Unlock()
			o.st.IncrementDroppedAutoRefresh(domainName)
			return nil
		}
	}

	requestID := uuid.NewString()[:8]
	runCtx, cancel := context.WithCancel(ctx)
	fst.inFlightCancel = cancel
	fst.inFlightID = requestID
	startVersion := o.contextVersion
	ifNoneMatch := fst.lastETag
	o.mu.Unlock()

	o.transitionLoading(domainName, scopeKey, rt.config.Scoped, scopeStr, opts.IsManual)

	var snap snapshotclient.Snapshot
	var err error
	if parsed := scope.ParseClusterScope(scopeStr); metricsOverlay && parsed.IsMultiCluster {
		snap, err = o.fetchMetricsOverlayFanOut(runCtx, rt.config.backendName(), parsed)
	} else {
		snap, err = o.client.FetchSnapshot(runCtx, rt.config.backendName(), snapshotclient.FetchOptions{
			Scope:       scopeStr,
			IfNoneMatch: ifNoneMatch,
		})
	}

	o.mu.Lock()
	if fst.inFlightID == requestID {
		fst.inFlightCancel = nil
		fst.inFlightID = ""
	}
	stillCurrent := o.contextVersion == startVersion
	o.mu.Unlock()

	if !stillCurrent {
		return refreshclient.NewAbortError("context changed before fetch completed")
	}

	if err != nil {
		return o.applyFetchError(domainName, scopeKey, scopeStr, rt.config.Scoped, opts.IsManual, err)
	}

	if snap.NotModified {
		o.applyNotModified(domainName, scopeKey, rt.config.Scoped, scopeStr, opts.IsManual)
		return nil
	}

	if metricsOverlay {
		o.applyMetricsOverlay(domainName, scopeKey, rt.config.Scoped, scopeStr, rt, snap)
		o.mu.Lock()
		fst.lastMetricsOverlay = o.clock.Now()
		o.mu.Unlock()
	} else {
		o.applySnapshot(domainName, scopeKey, rt.config.Scoped, scopeStr, opts.IsManual, snap)
	}

	o.mu.Lock()
	fst.lastETag = snap.Checksum
	fst.hasData = true
	fst.lastData = snap
	o.mu.Unlock()

	return nil
}

func (o *Orchestrator) transitionLoading(domainName, scopeKey string, scoped bool, scopeStr string, isManual bool) {
	updater := func(current store.DomainState) store.DomainState {
		if current.Data != nil {
			current.Status = store.StatusUpdating
		} else {
			current.Status = store.StatusLoading
		}
		current.IsManual = isManual
		return current
	}
	if scoped {
		o.st.SetScopedDomainState(domainName, scopeStr, updater)
		return
	}
	o.st.SetDomainState(domainName, updater)
}

func (o *Orchestrator) applyNotModified(domainName, scopeKey string, scoped bool, scopeStr string, isManual bool) {
	now := o.clock.Now().UnixMilli()
	updater := func(current store.DomainState) store.DomainState {
		if current.Data != nil {
			current.Status = store.StatusReady
		} else {
			current.Status = store.StatusIdle
		}
		if isManual {
			current.LastManualRefresh = now
		} else {
			current.LastAutoRefresh = now
		}
		current.Error = ""
		return current
	}
	if scoped {
		o.st.SetScopedDomainState(domainName, scopeStr, updater)
	} else {
		o.st.SetDomainState(domainName, updater)
	}
	o.clearNotifiedError(domainName, scopeKey)
}

func (o *Orchestrator) applySnapshot(domainName, scopeKey string, scoped bool, scopeStr string, isManual bool, snap snapshotclient.Snapshot) {
	now := o.clock.Now().UnixMilli()
	updater := func(current store.DomainState) store.DomainState {
		current.Status = store.StatusReady
		current.Data = snap.Payload
		current.Stats = snap.Stats
		current.Version = strconv.FormatUint(snap.Version, 10)
		current.Checksum = snap.Checksum
		current.ETag = snap.ETag
		current.LastUpdated = now
		if isManual {
			current.LastManualRefresh = now
		} else {
			current.LastAutoRefresh = now
		}
		current.IsManual = isManual
		current.Error = ""
		return current
	}
	if scoped {
		o.st.SetScopedDomainState(domainName, scopeStr, updater)
	} else {
		o.st.SetDomainState(domainName, updater)
	}
	o.clearNotifiedError(domainName, scopeKey)
}

// errorCategory classifies err per the taxonomy of spec.md §7, for the
// {source, domain, scope, category} payload handed to the external error
// handler.
func errorCategory(err error) string {
	switch {
	case refreshclient.IsAbort(err):
		return "abort"
	case refreshclient.IsSuppressed(err):
		return "network-transient"
	case refreshclient.IsHydrationPending(err):
		return "hydration-pending"
	case refreshclient.IsObjectNotFound(err):
		return "object-not-found"
	default:
		return "fatal"
	}
}

func (o *Orchestrator) applyFetchError(domainName, scopeKey, scopeStr string, scoped bool, isManual bool, err error) error {
	if refreshclient.IsAbort(err) {
		return err
	}

	if refreshclient.IsNetworkTransient(err) {
		o.mu.Lock()
		suppressed := o.clock.Now().Before(o.suppressUntil)
		o.mu.Unlock()
		if suppressed {
			return refreshclient.NewSuppressedError(err)
		}
	}

	if refreshclient.IsHydrationPending(err) {
		o.logger.Warn(err.Error(), "refresh-orchestrator")
		return nil
	}
	if domainName == "object-details" && refreshclient.IsObjectNotFound(err) {
		o.logger.Warn(err.Error(), "refresh-orchestrator")
		return nil
	}

	updater := func(current store.DomainState) store.DomainState {
		current.Status = store.StatusError
		current.Error = err.Error()
		return current
	}
	if scoped {
		o.st.SetScopedDomainState(domainName, scopeStr, updater)
	} else {
		o.st.SetDomainState(domainName, updater)
	}

	o.notifyErrorOnce(domainName, scopeKey, scopeStr, err)
	return err
}

func (o *Orchestrator) notifyErrorOnce(domainName, scopeKey, scopeStr string, err error) {
	key := errorKey(domainName, scopeKey)
	o.mu.Lock()
	last, seen := o.lastNotifiedErrors[key]
	if seen && last == err.Error() {
		o.mu.Unlock()
		return
	}
	o.lastNotifiedErrors[key] = err.Error()
	o.mu.Unlock()

	if o.onError != nil {
		o.onError(err, domainName, scopeStr, errorCategory(err))
	}
}

func (o *Orchestrator) clearNotifiedError(domainName, scopeKey string) {
	key := errorKey(domainName, scopeKey)
	o.mu.Lock()
	delete(o.lastNotifiedErrors, key)
	o.mu.Unlock()
}

func errorKey(domainName, scopeKey string) string {
	if scopeKey == "" {
		return domainName + "::__global__"
	}
	return domainName + "::" + scopeKey
}
