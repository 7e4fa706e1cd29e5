package refreshclient

import "time"

// Timing is the (interval, cooldown, timeout) triple a refresher is
// registered with.
type Timing struct {
	Interval time.Duration
	Cooldown time.Duration
	Timeout  time.Duration
}

// MetricsIntervalFunc is threaded in from application preferences for
// refreshers whose interval is the configurable metrics cadence ("pref" in
// spec.md §4.4) rather than a fixed value.
type MetricsIntervalFunc func() time.Duration

// TimingTable is the full refresher timing table from spec.md §4.4, keyed
// by refresher name. Entries whose interval is preference-driven carry
// Interval == 0 here; callers resolve it through a MetricsIntervalFunc at
// registration time.
var TimingTable = map[string]Timing{
	// namespace class
	"namespace-workloads": {Interval: 0, Cooldown: 500 * time.Millisecond, Timeout: 10 * time.Second},
	"namespace-config":    {Interval: 5 * time.Second, Cooldown: 1000 * time.Millisecond, Timeout: 10 * time.Second},
	"namespace-network":   {Interval: 5 * time.Second, Cooldown: 1000 * time.Millisecond, Timeout: 10 * time.Second},
	"namespace-storage":   {Interval: 5 * time.Second, Cooldown: 1000 * time.Millisecond, Timeout: 10 * time.Second},
	"namespace-rbac":      {Interval: 5 * time.Second, Cooldown: 1000 * time.Millisecond, Timeout: 10 * time.Second},
	"namespace-quotas":    {Interval: 10 * time.Second, Cooldown: 1000 * time.Millisecond, Timeout: 10 * time.Second},
	"namespace-helm":      {Interval: 10 * time.Second, Cooldown: 1000 * time.Millisecond, Timeout: 60 * time.Second},
	"namespace-custom":    {Interval: 10 * time.Second, Cooldown: 1000 * time.Millisecond, Timeout: 60 * time.Second},
	"namespace-events":    {Interval: 3 * time.Second, Cooldown: 1000 * time.Millisecond, Timeout: 10 * time.Second},

	// cluster class
	"cluster-nodes":       {Interval: 0, Cooldown: 1000 * time.Millisecond, Timeout: 10 * time.Second},
	"cluster-rbac":        {Interval: 10 * time.Second, Cooldown: 1000 * time.Millisecond, Timeout: 10 * time.Second},
	"cluster-storage":     {Interval: 10 * time.Second, Cooldown: 1000 * time.Millisecond, Timeout: 10 * time.Second},
	"cluster-config":      {Interval: 10 * time.Second, Cooldown: 1000 * time.Millisecond, Timeout: 10 * time.Second},
	"cluster-crds":        {Interval: 15 * time.Second, Cooldown: 1000 * time.Millisecond, Timeout: 60 * time.Second},
	"cluster-custom":      {Interval: 15 * time.Second, Cooldown: 1000 * time.Millisecond, Timeout: 60 * time.Second},
	"cluster-events":      {Interval: 3 * time.Second, Cooldown: 1000 * time.Millisecond, Timeout: 10 * time.Second},
	"cluster-browse":      {Interval: 15 * time.Second, Cooldown: 1500 * time.Millisecond, Timeout: 30 * time.Second},
	"cluster-catalogDiff": {Interval: 15 * time.Second, Cooldown: 1500 * time.Millisecond, Timeout: 30 * time.Second},

	// system class
	"namespaces":        {Interval: 2 * time.Second, Cooldown: 1000 * time.Millisecond, Timeout: 10 * time.Second},
	"cluster-overview":  {Interval: 10 * time.Second, Cooldown: 1000 * time.Millisecond, Timeout: 10 * time.Second},
	"unified-pods":      {Interval: 0, Cooldown: 1000 * time.Millisecond, Timeout: 30 * time.Second},
	"object-details":    {Interval: 2 * time.Second, Cooldown: 1000 * time.Millisecond, Timeout: 10 * time.Second},
	"object-events":     {Interval: 2 * time.Second, Cooldown: 1000 * time.Millisecond, Timeout: 10 * time.Second},
	"object-logs":       {Interval: 3 * time.Second, Cooldown: 1000 * time.Millisecond, Timeout: 10 * time.Second},
	"object-yaml":       {Interval: 5 * time.Second, Cooldown: 1000 * time.Millisecond, Timeout: 10 * time.Second},
	"object-helm":       {Interval: 5 * time.Second, Cooldown: 1000 * time.Millisecond, Timeout: 10 * time.Second},
}

// metricsRefresherNames carry a preference-driven interval (the "pref"
// column of spec.md §4.4) rather than a fixed one.
var metricsRefresherNames = map[string]struct{}{
	"namespace-workloads": {},
	"cluster-nodes":       {},
	"unified-pods":        {},
}

// IsMetricsRefresher reports whether name's interval should be resolved
// through a MetricsIntervalFunc instead of TimingTable's zero placeholder.
func IsMetricsRefresher(name string) bool {
	_, ok := metricsRefresherNames[name]
	return ok
}

// ResolveTiming returns the RefresherConfig timing fields for name, applying
// metricsInterval() in place of the table's zero Interval placeholder for
// metrics-driven refreshers.
func ResolveTiming(name string, metricsInterval MetricsIntervalFunc) (Timing, bool) {
	t, ok := TimingTable[name]
	if !ok {
		return Timing{}, false
	}
	if IsMetricsRefresher(name) && metricsInterval != nil {
		t.Interval = metricsInterval()
	}
	return t, true
}
