package refreshclient

// Logger is the minimal sink the refresh core writes diagnostics to. Its
// shape matches the Logger interface already duplicated across
// backend/refresh/logstream, backend/refresh/eventstream and
// backend/objectcatalog; at runtime it is satisfied by *backend.Logger,
// which forwards entries to the UI via its own event emitter.
type Logger interface {
	Debug(message string, source ...string)
	Info(message string, source ...string)
	Warn(message string, source ...string)
	Error(message string, source ...string)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...string) {}
func (noopLogger) Info(string, ...string)  {}
func (noopLogger) Warn(string, ...string)  {}
func (noopLogger) Error(string, ...string) {}
