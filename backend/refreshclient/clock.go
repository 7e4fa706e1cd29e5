package refreshclient

import "time"

// Timer is the subset of *time.Timer the refresh manager depends on.
type Timer interface {
	Stop() bool
}

// Clock abstracts time so refresher scheduling can be driven deterministically
// in tests, the same way backend/refresh/system tests inject fake Kubernetes
// clients instead of talking to a real API server.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// realClock is the production Clock backed by the time package.
type realClock struct{}

// NewRealClock returns a Clock backed by the standard library.
func NewRealClock() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
