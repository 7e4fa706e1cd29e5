package orchestrator

import (
	"context"
	"strings"

	"github.com/luxury-yacht/app/backend/refreshclient"
	"github.com/luxury-yacht/app/backend/refreshclient/scope"
)

// isScopeEnabledLocked reports whether scopeStr (or the domain itself, for
// non-scoped domains) is currently enabled. Callers must hold o.mu.
func isScopeEnabledLocked(rt *domainRuntime, scopeStr string) bool {
	if rt.config.Scoped {
		return rt.enabledScopes[scopeStr]
	}
	return rt.enabled
}

// streamEligibleLocked implements spec.md §4.2's "Scope eligibility for
// streaming": a non-empty body, a single-cluster scope, and no active drift
// block. Callers must hold o.mu.
func (o *Orchestrator) streamEligibleLocked(domainName, scopeStr string) bool {
	if strings.TrimSpace(scope.StripClusterScope(scopeStr)) == "" {
		return false
	}
	if scope.ParseClusterScope(scopeStr).IsMultiCluster {
		return false
	}
	return !o.blockedStreams[domainName+"::"+scopeStr]
}

// scheduleStreamingStart is the asynchronous path SetScopedDomainEnabled
// uses: it gates the actual Start call on EnsureRefreshBaseURL so a newly
// enabled scope does not attempt to stream before the backend is ready.
func (o *Orchestrator) scheduleStreamingStart(domainName, scopeStr string) {
	_ = o.startStreaming(context.Background(), domainName, scopeStr)
}

// StartStreamingDomain starts streaming for (domain, scope) immediately.
func (o *Orchestrator) StartStreamingDomain(domainName, scopeStr string) error {
	return o.startStreaming(context.Background(), domainName, scopeStr)
}

func (o *Orchestrator) startStreaming(ctx context.Context, domainName, scopeStr string) error {
	o.mu.Lock()
	rt, ok := o.domains[domainName]
	if !ok || rt.config.Streaming == nil {
		o.mu.Unlock()
		return nil
	}
	hooks := rt.config.Streaming
	fst := rt.stateFor(scopeStr)
	if fst.streamActive || fst.streamPending {
		o.mu.Unlock()
		return nil
	}
	if !o.streamEligibleLocked(domainName, scopeStr) {
		o.mu.Unlock()
		return nil
	}
	fst.streamPending = true
	fst.streamCancelled = false
	o.mu.Unlock()

	if _, err := o.client.EnsureRefreshBaseURL(ctx); err != nil {
		o.mu.Lock()
		fst.streamPending = false
		o.mu.Unlock()
		return err
	}

	o.mu.Lock()
	wanted := isScopeEnabledLocked(rt, scopeStr) && !fst.streamCancelled
	if !wanted {
		fst.streamPending = false
		fst.streamCancelled = false
		o.mu.Unlock()
		return nil
	}
	o.mu.Unlock()

	cleanup, err := hooks.Start(ctx, scopeStr)

	o.mu.Lock()
	fst.streamPending = false
	if err != nil {
		o.mu.Unlock()
		return err
	}
	if fst.streamCancelled {
		fst.streamCancelled = false
		o.mu.Unlock()
		if cleanup != nil {
			cleanup()
		}
		return nil
	}
	fst.streamCleanup = cleanup
	fst.streamActive = true
	pauseRefresher := hooks.PauseRefresherWhenStreaming && !rt.config.Scoped
	refresherName := rt.config.Refresher
	metricsOnly := hooks.MetricsOnly
	o.mu.Unlock()

	if pauseRefresher {
		o.manager.Disable(refresherName)
	}
	if metricsOnly {
		_ = o.client.SetMetricsActive(ctx, true)
	}
	return nil
}

// StopStreamingDomain tears down streaming for (domain, scope). If reset is
// true, cached data for that scope is also dropped (spec.md §4.2).
func (o *Orchestrator) StopStreamingDomain(domainName, scopeStr string, reset bool) {
	o.mu.Lock()
	rt, ok := o.domains[domainName]
	if !ok || rt.config.Streaming == nil {
		o.mu.Unlock()
		return
	}
	hooks := rt.config.Streaming
	fst := rt.stateFor(scopeStr)
	fst.streamCancelled = true
	cleanup := fst.streamCleanup
	fst.streamCleanup = nil
	wasActive := fst.streamActive
	fst.streamActive = false
	pauseRefresher := hooks.PauseRefresherWhenStreaming && !rt.config.Scoped
	refresherName := rt.config.Refresher
	metricsOnly := hooks.MetricsOnly
	o.mu.Unlock()

	// A pending start observes streamCancelled once its own Start call
	// resolves and invokes cleanup itself; nothing further to await here
	// since this package's Start hooks are synchronous from the scheduling
	// goroutine's point of view.
	if cleanup != nil {
		cleanup()
	}

	ctx := context.Background()
	if hooks.Stop != nil {
		_ = hooks.Stop(ctx, scopeStr, reset)
	}

	if pauseRefresher && wasActive {
		o.manager.Enable(refresherName)
	}
	if metricsOnly && wasActive {
		_ = o.client.SetMetricsActive(ctx, false)
	}
	if reset {
		o.resetScopedDomainState(domainName, scopeStr)
	}
}

// RefreshStreamingDomainOnce asks the stream to redeliver its current state;
// domains without a RefreshOnce hook fall back to stop+start.
func (o *Orchestrator) RefreshStreamingDomainOnce(domainName, scopeStr string) error {
	o.mu.Lock()
	rt, ok := o.domains[domainName]
	if !ok || rt.config.Streaming == nil {
		o.mu.Unlock()
		return nil
	}
	hooks := rt.config.Streaming
	o.mu.Unlock()

	if hooks.RefreshOnce != nil {
		return hooks.RefreshOnce(context.Background(), scopeStr)
	}
	return o.RestartStreamingDomain(domainName, scopeStr)
}

// RestartStreamingDomain stops then starts streaming for (domain, scope),
// dropping buffered data (spec.md §9 Open Question b: the reset-on-restart
// policy is not independently configurable here either).
func (o *Orchestrator) RestartStreamingDomain(domainName, scopeStr string) error {
	o.StopStreamingDomain(domainName, scopeStr, true)
	return o.StartStreamingDomain(domainName, scopeStr)
}

// blockStream marks (domain, scope) as drift-blocked: its stream is stopped
// without reset and it falls back to snapshot-only behavior until the next
// global reset (spec.md §4.2 "Resource stream drift").
func (o *Orchestrator) blockStream(domainName, scopeStr string) {
	o.mu.Lock()
	o.blockedStreams[domainName+"::"+scopeStr] = true
	o.mu.Unlock()
	o.StopStreamingDomain(domainName, scopeStr, false)
}

// restartNonScopedStreamsOnContextChange recomputes the scope for every
// non-scoped streaming domain and restarts its stream when the scope
// changed (spec.md §4.2 UpdateContext).
func (o *Orchestrator) restartNonScopedStreamsOnContextChange(prev, next refreshclient.RefreshContext) {
	o.mu.Lock()
	type candidate struct {
		name string
		rt   *domainRuntime
	}
	var candidates []candidate
	for name, rt := range o.domains {
		if rt.config.Scoped || rt.config.Streaming == nil {
			continue
		}
		for _, fst := range rt.stateByScope {
			if fst.streamActive {
				candidates = append(candidates, candidate{name, rt})
				break
			}
		}
	}
	o.mu.Unlock()

	for _, c := range candidates {
		oldScope := resolveNonScopedScopeFor(c.rt.config, prev)
		newScope := resolveNonScopedScopeFor(c.rt.config, next)
		if oldScope != newScope {
			o.StopStreamingDomain(c.name, oldScope, true)
			_ = o.StartStreamingDomain(c.name, newScope)
		}
	}
}
