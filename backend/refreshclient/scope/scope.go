// Package scope encodes and decodes the client-side refresh core's
// cluster-scoped data keys. It generalizes backend/refresh.SplitClusterScope
// and JoinClusterScope with a multi-cluster list token, since client-side
// fan-out across several selected clusters is a first-class case the
// server-side codec never needed.
package scope

import "strings"

const (
	delimiter     = "|"
	clustersToken = "clusters="
	listSeparator = ","
)

// Parsed is the decoded form of a canonical scope string.
type Parsed struct {
	ClusterID     string
	ClusterIDs    []string
	Scope         string
	IsMultiCluster bool
}

// BuildClusterScope returns "<clusterID>|<body>". An empty body still keeps
// the delimiter so the cluster id round-trips through StripClusterScope. A
// body that already carries a cluster token is returned unchanged.
func BuildClusterScope(clusterID, body string) string {
	id := strings.TrimSpace(clusterID)
	trimmedBody := strings.TrimSpace(body)
	if hasClusterToken(trimmedBody) {
		return trimmedBody
	}
	if id == "" {
		return trimmedBody
	}
	return id + delimiter + trimmedBody
}

// BuildClusterScopeList dedupes and trims ids, then emits a single-cluster
// scope for one id or a "clusters=id1,id2|<body>" token for several.
func BuildClusterScopeList(ids []string, body string) string {
	trimmedBody := strings.TrimSpace(body)
	if hasClusterToken(trimmedBody) {
		return trimmedBody
	}

	deduped := dedupTrim(ids)
	switch len(deduped) {
	case 0:
		return trimmedBody
	case 1:
		return deduped[0] + delimiter + trimmedBody
	default:
		return clustersToken + strings.Join(deduped, listSeparator) + delimiter + trimmedBody
	}
}

// ParseClusterScope decodes a canonical scope string into its cluster
// token(s) and body.
func ParseClusterScope(s string) Parsed {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Parsed{}
	}

	token, body, hasDelim := cutToken(trimmed)
	if !hasDelim {
		return Parsed{Scope: trimmed}
	}
	if token == "" {
		return Parsed{Scope: body}
	}

	if strings.HasPrefix(token, clustersToken) {
		ids := dedupTrim(strings.Split(strings.TrimPrefix(token, clustersToken), listSeparator))
		if len(ids) <= 1 {
			clusterID := ""
			if len(ids) == 1 {
				clusterID = ids[0]
			}
			return Parsed{ClusterID: clusterID, ClusterIDs: ids, Scope: body}
		}
		return Parsed{ClusterIDs: ids, Scope: body, IsMultiCluster: true}
	}

	return Parsed{ClusterID: token, ClusterIDs: []string{token}, Scope: body}
}

// StripClusterScope returns only the body portion of a canonical scope
// string.
func StripClusterScope(s string) string {
	return ParseClusterScope(s).Scope
}

// hasClusterToken reports whether body already carries a "<id>|" or
// "clusters=...|" prefix, so BuildClusterScope/BuildClusterScopeList never
// re-prefix an already-scoped body.
func hasClusterToken(body string) bool {
	token, _, hasDelim := cutToken(body)
	return hasDelim && token != ""
}

func cutToken(s string) (token, rest string, hasDelim bool) {
	idx := strings.Index(s, delimiter)
	if idx < 0 {
		return "", s, false
	}
	return strings.TrimSpace(s[:idx]), strings.TrimSpace(s[idx+1:]), true
}

func dedupTrim(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, raw := range ids {
		id := strings.TrimSpace(raw)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// NamespaceBody returns "namespace:<name>", rewriting an unqualified name
// into the sub-form domains use for namespace-bound scopes.
func NamespaceBody(name string) string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "namespace:") {
		return trimmed
	}
	return "namespace:" + trimmed
}
