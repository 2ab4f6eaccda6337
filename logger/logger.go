// Package logger defines the logging interface shared by all sitemapper
// components, with stdlib, slog and zerolog backed implementations.
package logger

import "log"

// Logger is a minimal printf-style leveled logger. Every component takes
// one as an option and defaults to NewStdLogger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type StdLogger struct{}

// NewStdLogger returns a Logger writing through the standard log package.
func NewStdLogger() Logger {
	return &StdLogger{}
}

func (l *StdLogger) Debug(msg string, args ...any) {
	log.Printf("[DEBUG] "+msg, args...)
}

func (l *StdLogger) Info(msg string, args ...any) {
	log.Printf("[INFO] "+msg, args...)
}

func (l *StdLogger) Warn(msg string, args ...any) {
	log.Printf("[WARN] "+msg, args...)
}

func (l *StdLogger) Error(msg string, args ...any) {
	log.Printf("[ERROR] "+msg, args...)
}

// Nop discards everything. Handy in tests that exercise failure paths.
type Nop struct{}

func NewNop() Logger { return Nop{} }

func (Nop) Debug(msg string, args ...any) {}
func (Nop) Info(msg string, args ...any)  {}
func (Nop) Warn(msg string, args ...any)  {}
func (Nop) Error(msg string, args ...any) {}
