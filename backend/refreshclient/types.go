package refreshclient

import (
	"context"
	"strings"
	"time"
)

// Status enumerates the refresher state machine (spec.md §3, §4.1).
type Status string

const (
	StatusIdle        Status = "idle"
	StatusRefreshing  Status = "refreshing"
	StatusCooldown    Status = "cooldown"
	StatusError       Status = "error"
	StatusPaused      Status = "paused"
	StatusDisabled    Status = "disabled"
)

// RefresherConfig declares a schedulable unit of refresh (spec.md §3).
type RefresherConfig struct {
	Name           string
	Interval       time.Duration
	Cooldown       time.Duration
	Timeout        time.Duration
	InitialEnabled bool
}

// RefresherState is the observable state record for one refresher (spec.md §3).
type RefresherState struct {
	Status            Status
	LastRefreshTime   time.Time
	NextRefreshTime   time.Time
	Error             string
	ConsecutiveErrors int
}

// Subscriber is invoked once per refresh tick. Multiple subscribers on one
// refresher all start before any is awaited (spec.md §3, §4.1).
type Subscriber func(ctx context.Context, isManual bool) error

// ObjectPanel describes the floating object inspector (spec.md §3).
type ObjectPanel struct {
	IsOpen          bool
	ObjectKind      string
	ObjectName      string
	ObjectNamespace string
}

// normalizedKind returns ObjectKind lowercased, per spec.md §3.
func (p ObjectPanel) normalizedKind() string {
	return strings.ToLower(p.ObjectKind)
}

// identity returns the tuple used to detect an object panel target change.
func (p ObjectPanel) identity() [3]string {
	return [3]string{p.normalizedKind(), p.ObjectName, p.ObjectNamespace}
}

// RefreshContext is the navigation-derived state both the Manager and the
// Orchestrator react to (spec.md §3).
type RefreshContext struct {
	CurrentView                string
	ActiveNamespaceView        string
	ActiveClusterView          string
	SelectedNamespace          string
	SelectedNamespaceClusterID string
	SelectedClusterID          string
	SelectedClusterIDs         []string
	ObjectPanel                ObjectPanel
}

// clone returns a deep-enough copy so mutating the receiver's slice does not
// alias a previously stored context.
func (c RefreshContext) clone() RefreshContext {
	out := c
	if c.SelectedClusterIDs != nil {
		out.SelectedClusterIDs = append([]string(nil), c.SelectedClusterIDs...)
	}
	return out
}

// merge applies non-zero fields of partial onto the receiver and returns the
// result. A nil-equivalent (zero value) field in partial leaves the base
// value untouched, matching the "merges into the current context" semantics
// of spec.md §4.1's updateContext.
func (c RefreshContext) merge(partial ContextPatch) RefreshContext {
	next := c.clone()
	if partial.CurrentView != nil {
		next.CurrentView = *partial.CurrentView
	}
	if partial.ActiveNamespaceView != nil {
		next.ActiveNamespaceView = *partial.ActiveNamespaceView
	}
	if partial.ActiveClusterView != nil {
		next.ActiveClusterView = *partial.ActiveClusterView
	}
	if partial.SelectedNamespace != nil {
		next.SelectedNamespace = *partial.SelectedNamespace
	}
	if partial.SelectedNamespaceClusterID != nil {
		next.SelectedNamespaceClusterID = *partial.SelectedNamespaceClusterID
	}
	if partial.SelectedClusterID != nil {
		next.SelectedClusterID = *partial.SelectedClusterID
	}
	if partial.SelectedClusterIDs != nil {
		next.SelectedClusterIDs = append([]string(nil), *partial.SelectedClusterIDs...)
	}
	if partial.ObjectPanel != nil {
		next.ObjectPanel = *partial.ObjectPanel
	}
	return next
}

// ContextPatch is a partial update to a RefreshContext; nil fields are left
// untouched by merge. Pointer fields let the zero value (empty string, closed
// panel) be distinguished from "not specified".
type ContextPatch struct {
	CurrentView                *string
	ActiveNamespaceView        *string
	ActiveClusterView          *string
	SelectedNamespace          *string
	SelectedNamespaceClusterID *string
	SelectedClusterID          *string
	SelectedClusterIDs         *[]string
	ObjectPanel                *ObjectPanel
}

// StateChangeEvent is published on the bus as "refresh:state-change".
type StateChangeEvent struct {
	Name  string
	State RefresherState
}

// StartEvent is published on the bus as "refresh:start".
type StartEvent struct {
	Name     string
	IsManual bool
}

// CompleteEvent is published on the bus as "refresh:complete".
type CompleteEvent struct {
	Name     string
	IsManual bool
	Success  bool
	Error    string
}

// RegisteredEvent is published on the bus as "refresh:registered".
type RegisteredEvent struct {
	Name string
}

// Bus topic names (spec.md §6).
const (
	TopicViewReset               = "view:reset"
	TopicKubeconfigChanging      = "kubeconfig:changing"
	TopicKubeconfigChanged       = "kubeconfig:changed"
	TopicKubeconfigSelectionSet  = "kubeconfig:selection-changed"
	TopicResourceStreamDrift     = "refresh:resource-stream-drift"
	TopicRefreshStateChange      = "refresh:state-change"
	TopicRefreshStart            = "refresh:start"
	TopicRefreshComplete         = "refresh:complete"
	TopicRefreshRegistered       = "refresh:registered"
)

// ResourceStreamDriftEvent is published inbound on refresh:resource-stream-drift.
type ResourceStreamDriftEvent struct {
	Domain string
	Scope  string
	Reason string
}
