package orchestrator

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/luxury-yacht/app/backend/refreshclient/scope"
	"github.com/luxury-yacht/app/backend/refreshclient/snapshotclient"
	"github.com/luxury-yacht/app/backend/refreshclient/store"
)

// metricsFanOutConcurrency bounds how many per-cluster fetches a single
// multi-cluster metrics-overlay refresh issues at once.
const metricsFanOutConcurrency = 4

// fetchMetricsOverlayFanOut implements spec.md §4.2's "a multi-cluster pods
// scope with metricsOnly fans out to one single-cluster scope per cluster in
// parallel and merges the usage updates back into the report-scope state":
// each cluster gets its own single-cluster fetch, issued concurrently and
// without a conditional GET (the combined response has no single ETag to
// compare against), and the resulting rows are concatenated into one
// combined snapshot before applyMetricsOverlay's natural-key match-and-copy
// runs over it exactly as it would for a single-cluster response.
func (o *Orchestrator) fetchMetricsOverlayFanOut(ctx context.Context, backendName string, parsed scope.Parsed) (snapshotclient.Snapshot, error) {
	snaps := make([]snapshotclient.Snapshot, len(parsed.ClusterIDs))
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(metricsFanOutConcurrency)
	for i, clusterID := range parsed.ClusterIDs {
		i, clusterID := i, clusterID
		group.Go(func() error {
			singleScope := scope.BuildClusterScope(clusterID, parsed.Scope)
			snap, err := o.client.FetchSnapshot(gctx, backendName, snapshotclient.FetchOptions{Scope: singleScope})
			if err != nil {
				return err
			}
			snaps[i] = snap
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return snapshotclient.Snapshot{}, err
	}
	return mergeClusterSnapshots(backendName, snaps), nil
}

// mergeClusterSnapshots concatenates each per-cluster snapshot's rows into
// one payload; natural keys already embed clusterId, so rows from different
// clusters never collide in the merged result.
func mergeClusterSnapshots(backendName string, snaps []snapshotclient.Snapshot) snapshotclient.Snapshot {
	merged := snapshotclient.Snapshot{Domain: backendName}
	var rows []map[string]any
	for _, snap := range snaps {
		if rs, ok := asRows(snap.Payload); ok {
			rows = append(rows, rs...)
		}
		if snap.Version > merged.Version {
			merged.Version = snap.Version
		}
		if snap.GeneratedAt > merged.GeneratedAt {
			merged.GeneratedAt = snap.GeneratedAt
		}
		merged.Checksum += snap.Checksum
		merged.Stats.ItemCount += snap.Stats.ItemCount
		merged.Stats.TotalItems += snap.Stats.TotalItems
		if snap.Stats.BuildDurationMs > merged.Stats.BuildDurationMs {
			merged.Stats.BuildDurationMs = snap.Stats.BuildDurationMs
		}
		merged.Stats.Truncated = merged.Stats.Truncated || snap.Stats.Truncated
		merged.Stats.Warnings = append(merged.Stats.Warnings, snap.Stats.Warnings...)
	}
	merged.Payload = rows
	return merged
}

// applyMetricsOverlay copies only UsageFields onto rows of the cached
// payload that match a freshly fetched row by natural key, leaving every
// other row and every other field untouched (spec.md §4.2 "Metrics-only
// overlay"). Because the natural key embeds clusterId, a multi-cluster
// scope's rows never collide across clusters, so the same match-and-copy
// pass handles the fan-out case without special-casing it.
func (o *Orchestrator) applyMetricsOverlay(domainName, scopeKey string, scoped bool, scopeStr string, rt *domainRuntime, snap snapshotclient.Snapshot) {
	keyFn := rt.config.NaturalKey
	freshRows, ok := asRows(snap.Payload)
	if !ok || keyFn == nil {
		o.applySnapshot(domainName, scopeKey, scoped, scopeStr, false, snap)
		return
	}

	overlay := make(map[string]map[string]any, len(freshRows))
	for _, row := range freshRows {
		overlay[keyFn(row)] = row
	}

	updater := func(current store.DomainState) store.DomainState {
		rows, ok := asRows(current.Data)
		if !ok {
			return current
		}
		merged := make([]map[string]any, len(rows))
		for i, row := range rows {
			if src, found := overlay[keyFn(row)]; found {
				merged[i] = mergeUsageFields(row, src)
			} else {
				merged[i] = row
			}
		}
		current.Data = merged
		if current.Status != store.StatusReady {
			current.Status = store.StatusReady
		}
		return current
	}

	if scoped {
		o.st.SetScopedDomainState(domainName, scopeStr, updater)
	} else {
		o.st.SetDomainState(domainName, updater)
	}
}

// asRows normalizes a decoded JSON payload into a slice of row maps. Both
// []map[string]any (produced by code that already typed its payload) and
// []any wrapping map[string]any (the json.Unmarshal-into-interface{} shape)
// are accepted; anything else means the domain isn't row-shaped and the
// overlay falls back to a full replace.
func asRows(payload any) ([]map[string]any, bool) {
	switch v := payload.(type) {
	case []map[string]any:
		return v, true
	case []any:
		rows := make([]map[string]any, 0, len(v))
		for _, item := range v {
			row, ok := item.(map[string]any)
			if !ok {
				return nil, false
			}
			rows = append(rows, row)
		}
		return rows, true
	default:
		return nil, false
	}
}

// mergeUsageFields returns a shallow copy of row with any key in
// UsageFields that's present in src overwritten; row itself is never
// mutated since it may still be referenced by the previous store snapshot.
func mergeUsageFields(row, src map[string]any) map[string]any {
	merged := make(map[string]any, len(row))
	for k, v := range row {
		merged[k] = v
	}
	for _, field := range UsageFields {
		if v, ok := src[field]; ok {
			merged[field] = v
		}
	}
	return merged
}
