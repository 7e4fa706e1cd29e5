// Package store implements the reactive per-domain and per-(domain,scope)
// state the orchestrator writes to and the UI layer subscribes to (spec.md
// §4.5).
package store

import (
	"reflect"
	"sync"
)

// Status is the lifecycle of one domain (or scoped domain) snapshot.
type Status string

const (
	StatusIdle         Status = "idle"
	StatusLoading      Status = "loading"
	StatusInitialising Status = "initialising"
	StatusUpdating     Status = "updating"
	StatusReady        Status = "ready"
	StatusError        Status = "error"
)

// DomainState is the snapshot record held per domain, or per (domain, scope).
type DomainState struct {
	Status             Status
	Data               any
	Stats              any
	Version            string
	Checksum           string
	ETag               string
	LastUpdated        int64
	LastManualRefresh  int64
	LastAutoRefresh    int64
	Error              string
	IsManual           bool
	DroppedAutoRefresh int
	Scope              string
}

// emptyState is the shared, never-mutated sentinel returned for domains with
// no recorded state, avoiding an allocation per miss (spec.md §4.5).
var emptyState = DomainState{Status: StatusIdle}

var (
	emptyScopedStates = map[string]DomainState{}
	emptyScopedEntries = []ScopedEntry{}
)

// ScopedEntry pairs a scope key with its state, giving subscribers a stable
// ordered view without re-deriving it from the map each time.
type ScopedEntry struct {
	Scope string
	State DomainState
}

// Updater computes the next DomainState from the current one. Returning the
// identical value (by the caller's own reference semantics) suppresses
// notification; in practice this package treats any returned DomainState as
// a replacement, so updaters that want a no-op must return the value passed
// in unchanged.
type Updater func(current DomainState) DomainState

// Listener is invoked after any state mutation that produces a notification.
type Listener func()

// Store holds all domain and scoped-domain state for the process lifetime.
type Store struct {
	mu             sync.RWMutex
	domains        map[string]DomainState
	scopedDomains  map[string]map[string]DomainState
	scopedEntries  map[string][]ScopedEntry
	pendingCount   int
	listeners      map[uint64]Listener
	nextListenerID uint64
}

// New constructs an empty Store.
func New() *Store {
	return &Store{
		domains:       make(map[string]DomainState),
		scopedDomains: make(map[string]map[string]DomainState),
		scopedEntries: make(map[string][]ScopedEntry),
		listeners:     make(map[uint64]Listener),
	}
}

// GetDomainState returns domain's current state, or the shared empty
// sentinel if it has never been set.
func (s *Store) GetDomainState(domain string) DomainState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.domains[domain]; ok {
		return st
	}
	return emptyState
}

// GetScopedDomainState returns the state for (domain, scope).
func (s *Store) GetScopedDomainState(domain, scope string) DomainState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if scopes, ok := s.scopedDomains[domain]; ok {
		if st, ok := scopes[scope]; ok {
			return st
		}
	}
	return emptyState
}

// GetScopedDomainStates returns the full scope->state map for domain, or a
// shared empty map if nothing has been recorded.
func (s *Store) GetScopedDomainStates(domain string) map[string]DomainState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if scopes, ok := s.scopedDomains[domain]; ok {
		return scopes
	}
	return emptyScopedStates
}

// GetScopedDomainEntries returns domain's scoped states as a stable ordered
// slice, kept in sync with the underlying map on every write.
func (s *Store) GetScopedDomainEntries(domain string) []ScopedEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if entries, ok := s.scopedEntries[domain]; ok {
		return entries
	}
	return emptyScopedEntries
}

// SetDomainState applies updater to domain's current state and notifies
// listeners, unless the updater returned an identical value.
func (s *Store) SetDomainState(domain string, updater Updater) {
	s.mu.Lock()
	current, ok := s.domains[domain]
	if !ok {
		current = emptyState
	}
	next := updater(current)
	changed := !ok || !reflect.DeepEqual(next, current)
	if changed {
		s.domains[domain] = next
	}
	s.mu.Unlock()

	if changed {
		s.notify()
	}
}

// SetScopedDomainState applies updater to the (domain, scope) state and
// keeps the ordered entries slice for domain in sync.
func (s *Store) SetScopedDomainState(domain, scope string, updater Updater) {
	s.mu.Lock()
	scopes, ok := s.scopedDomains[domain]
	if !ok {
		scopes = make(map[string]DomainState)
		s.scopedDomains[domain] = scopes
	}
	current, exists := scopes[scope]
	if !exists {
		current = emptyState
	}
	next := updater(current)
	changed := !exists || !reflect.DeepEqual(next, current)
	if changed {
		next.Scope = scope
		scopes[scope] = next
		s.rebuildEntriesLocked(domain)
	}
	s.mu.Unlock()

	if changed {
		s.notify()
	}
}

// rebuildEntriesLocked recomputes the ordered entries slice for domain.
// Callers must hold s.mu.
func (s *Store) rebuildEntriesLocked(domain string) {
	scopes := s.scopedDomains[domain]
	entries := make([]ScopedEntry, 0, len(scopes))
	for scope, state := range scopes {
		entries = append(entries, ScopedEntry{Scope: scope, State: state})
	}
	s.scopedEntries[domain] = entries
}

// ResetDomainState resets domain to its initial shape and always notifies,
// even if the domain had no prior state, since consumers may depend on the
// status transition itself (spec.md §4.5).
func (s *Store) ResetDomainState(domain string) {
	s.mu.Lock()
	s.domains[domain] = emptyState
	s.mu.Unlock()
	s.notify()
}

// ResetScopedDomainState resets (domain, scope). Resetting a scope that was
// never recorded is a no-op (spec.md §4.5).
func (s *Store) ResetScopedDomainState(domain, scope string) {
	s.mu.Lock()
	scopes, ok := s.scopedDomains[domain]
	if !ok {
		s.mu.Unlock()
		return
	}
	if _, ok := scopes[scope]; !ok {
		s.mu.Unlock()
		return
	}
	delete(scopes, scope)
	s.rebuildEntriesLocked(domain)
	s.mu.Unlock()
	s.notify()
}

// ResetAllScopedDomainStates clears every scope recorded for domain.
func (s *Store) ResetAllScopedDomainStates(domain string) {
	s.mu.Lock()
	_, existed := s.scopedDomains[domain]
	delete(s.scopedDomains, domain)
	delete(s.scopedEntries, domain)
	s.mu.Unlock()
	if existed {
		s.notify()
	}
}

// MarkPendingRequest adjusts the global pending-request counter, clamped at
// zero.
func (s *Store) MarkPendingRequest(delta int) {
	s.mu.Lock()
	s.pendingCount += delta
	if s.pendingCount < 0 {
		s.pendingCount = 0
	}
	s.mu.Unlock()
	s.notify()
}

// PendingRequests returns the current pending-request counter.
func (s *Store) PendingRequests() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pendingCount
}

// IncrementDroppedAutoRefresh bumps domain's global DroppedAutoRefresh
// counter by one.
func (s *Store) IncrementDroppedAutoRefresh(domain string) {
	s.SetDomainState(domain, func(current DomainState) DomainState {
		current.DroppedAutoRefresh++
		return current
	})
}

// Subscribe registers a listener invoked on every notifying mutation, and
// returns a detach function.
func (s *Store) Subscribe(listener Listener) (unsubscribe func()) {
	if listener == nil {
		return func() {}
	}
	s.mu.Lock()
	id := s.nextListenerID
	s.nextListenerID++
	s.listeners[id] = listener
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Store) notify() {
	s.mu.RLock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.RUnlock()

	for _, l := range listeners {
		l()
	}
}
