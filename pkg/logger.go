package vx2740

type Logger interface {
	Info(message string, module string)
	Error(string)
}

// NopLogger discards every message.
type NopLogger struct{}

func (NopLogger) Info(message string, module string) {}
func (NopLogger) Error(string)                       {}
