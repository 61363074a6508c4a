package logger

// Logger is the minimal structured logging surface the library packages
// depend on. Key-value pairs follow the message.
type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(msg string, kv ...any)
}

// Noop discards everything. Used as the default so library code never has
// to nil-check its logger.
type Noop struct{}

func (Noop) Debug(string, ...any) {}
func (Noop) Info(string, ...any)  {}
func (Noop) Warn(string, ...any)  {}
func (Noop) Error(string, ...any) {}
