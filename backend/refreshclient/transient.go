package refreshclient

import "strings"

// transientPatterns are substrings (case-insensitive) that mark a fetch
// failure as network-transient rather than fatal (spec.md §4.2 step 8, §7
// category 2).
var transientPatterns = []string{
	"failed to fetch",
	"load failed",
	"could not connect to the server",
	"snapshot request failed",
}

// IsNetworkTransient reports whether err's message matches one of the
// recognized transient-failure patterns.
func IsNetworkTransient(err error) bool {
	if err == nil {
		return false
	}
	lower := strings.ToLower(err.Error())
	for _, pattern := range transientPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

// hydrationPendingPattern marks catalog-hydration errors that are tracked
// but never surfaced (spec.md §7 category 4).
const hydrationPendingPattern = "catalog hydration incomplete"

// IsHydrationPending reports whether err represents a catalog still being
// hydrated.
func IsHydrationPending(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), hydrationPendingPattern)
}

// objectNotFoundPatterns mark stale-panel errors for the object-details
// domain that are tracked but never surfaced (spec.md §7 category 5).
var objectNotFoundPatterns = []string{"not found", "could not find"}

// IsObjectNotFound reports whether err indicates the inspected object panel
// target has disappeared.
func IsObjectNotFound(err error) bool {
	if err == nil {
		return false
	}
	lower := strings.ToLower(err.Error())
	for _, pattern := range objectNotFoundPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}
