package orchestrator

import (
	"github.com/luxury-yacht/app/backend/refreshclient"
)

// installBusListeners wires the orchestrator's reactions to navigation and
// kubeconfig transitions (spec.md §4.2 "Event-bus reactions"). Subscriptions
// live for the orchestrator's process lifetime; there is no matching
// Close/unsubscribe since the orchestrator itself is a process singleton.
func (o *Orchestrator) installBusListeners() {
	if o.bus == nil {
		return
	}
	o.bus.Subscribe(refreshclient.TopicViewReset, func(any) { o.onViewReset() })
	o.bus.Subscribe(refreshclient.TopicKubeconfigChanging, func(any) { o.onKubeconfigChanging() })
	o.bus.Subscribe(refreshclient.TopicKubeconfigChanged, func(any) { o.onKubeconfigChanged() })
	o.bus.Subscribe(refreshclient.TopicKubeconfigSelectionSet, func(any) { o.onKubeconfigSelectionChanged() })
	o.bus.Subscribe(refreshclient.TopicResourceStreamDrift, func(payload any) {
		if evt, ok := payload.(refreshclient.ResourceStreamDriftEvent); ok {
			o.onResourceStreamDrift(evt)
		}
	})
}

// onViewReset tears every domain back to its empty, not-yet-fetched shape:
// streams stopped with reset, in-flight fetches cancelled, scope overrides
// cleared, and every recorded state dropped (spec.md §4.2 "view:reset").
func (o *Orchestrator) onViewReset() {
	o.mu.Lock()
	o.contextVersion++
	names := make([]string, 0, len(o.domains))
	for name, rt := range o.domains {
		names = append(names, name)
		rt.scopeOverride = nil
	}
	o.mu.Unlock()

	o.client.InvalidateRefreshBaseURL()
	o.stopAllStreams(true)
	o.cancelAllInFlight()

	for _, name := range names {
		o.mu.Lock()
		rt := o.domains[name]
		scoped := rt.config.Scoped
		o.mu.Unlock()
		o.resetDomainState(name, scoped)
	}
}

// onKubeconfigChanging performs a view:reset and additionally remembers
// which domains were enabled (so they can resume post-switch) and clears
// scoped enablement, since scope bodies from the old kubeconfig's cluster
// ids are no longer meaningful (spec.md §4.2 "kubeconfig:changing").
func (o *Orchestrator) onKubeconfigChanging() {
	o.onViewReset()

	o.mu.Lock()
	for name, rt := range o.domains {
		if rt.enabled {
			o.suspendedDomains[name] = true
		}
		rt.enabledScopes = make(map[string]bool)
	}
	o.mu.Unlock()
}

// onKubeconfigChanged opens the transient-error suppression window (network
// errors are expected for a few seconds while the new cluster connection
// warms up) and clears the suspension/block bookkeeping from the prior
// transition (spec.md §4.2, §7).
func (o *Orchestrator) onKubeconfigChanged() {
	o.mu.Lock()
	o.contextVersion++
	o.suppressUntil = o.clock.Now().Add(kubeconfigSuppressionWindow)
	o.suspendedDomains = make(map[string]bool)
	o.blockedStreams = make(map[string]bool)
	o.mu.Unlock()

	o.client.InvalidateRefreshBaseURL()
}

// onKubeconfigSelectionChanged handles a narrower transition than a full
// kubeconfig swap: the set of selected clusters changed, so scope bodies
// shift but domain enablement does not need to be suspended.
func (o *Orchestrator) onKubeconfigSelectionChanged() {
	o.mu.Lock()
	o.contextVersion++
	o.suppressUntil = o.clock.Now().Add(kubeconfigSuppressionWindow)
	o.blockedStreams = make(map[string]bool)
	o.mu.Unlock()

	o.client.InvalidateRefreshBaseURL()
}

// onResourceStreamDrift blocks (domain, scope) from streaming again until
// the next reset and falls it back to snapshot-only polling, in reaction to
// a transport-level signal that the stream desynced from backend state
// (spec.md §4.2 "Resource stream drift").
func (o *Orchestrator) onResourceStreamDrift(evt refreshclient.ResourceStreamDriftEvent) {
	o.logger.Warn("resource stream drift: "+evt.Reason, "refresh-orchestrator")
	o.blockStream(evt.Domain, evt.Scope)
}

func (o *Orchestrator) stopAllStreams(reset bool) {
	o.mu.Lock()
	type target struct {
		domain string
		scope  string
	}
	var targets []target
	for name, rt := range o.domains {
		if rt.config.Streaming == nil {
			continue
		}
		for scopeKey, fst := range rt.stateByScope {
			if fst.streamActive || fst.streamPending {
				targets = append(targets, target{name, scopeKey})
			}
		}
	}
	o.mu.Unlock()

	for _, t := range targets {
		o.StopStreamingDomain(t.domain, t.scope, reset)
	}
}

func (o *Orchestrator) cancelAllInFlight() {
	o.mu.Lock()
	var cancels []func()
	for _, rt := range o.domains {
		for _, fst := range rt.stateByScope {
			if fst.inFlightCancel != nil {
				cancels = append(cancels, fst.inFlightCancel)
			}
		}
	}
	o.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}
