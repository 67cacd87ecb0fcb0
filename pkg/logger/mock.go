package logger

import (
	"fmt"
	"strings"
	"sync"
)

// MockLogger records log calls for assertions in tests.
type MockLogger struct {
	messages *[]LogMessage
	mu       *sync.Mutex
	attrs    []any
}

// LogMessage is a single recorded log call.
type LogMessage struct {
	Level string
	Msg   string
	Args  []any
}

// NewMockLogger creates a new mock logger for testing.
func NewMockLogger() *MockLogger {
	messages := make([]LogMessage, 0)
	return &MockLogger{
		messages: &messages,
		mu:       &sync.Mutex{},
	}
}

// Debug logs a debug message.
func (m *MockLogger) Debug(msg string, args ...any) { m.record("DEBUG", msg, args) }

// Info logs an info message.
func (m *MockLogger) Info(msg string, args ...any) { m.record("INFO", msg, args) }

// Warn logs a warning message.
func (m *MockLogger) Warn(msg string, args ...any) { m.record("WARN", msg, args) }

// Error logs an error message.
func (m *MockLogger) Error(msg string, args ...any) { m.record("ERROR", msg, args) }

// With returns a logger sharing the same message log with extra attributes.
func (m *MockLogger) With(args ...any) Logger {
	m.mu.Lock()
	defer m.mu.Unlock()

	attrs := make([]any, 0, len(m.attrs)+len(args))
	attrs = append(attrs, m.attrs...)
	attrs = append(attrs, args...)

	return &MockLogger{
		messages: m.messages,
		mu:       m.mu,
		attrs:    attrs,
	}
}

// WithGroup returns a new logger with a named group.
func (m *MockLogger) WithGroup(name string) Logger {
	return m.With("group", name)
}

func (m *MockLogger) record(level, msg string, args []any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	merged := args
	if len(m.attrs) > 0 {
		merged = make([]any, 0, len(m.attrs)+len(args))
		merged = append(merged, m.attrs...)
		merged = append(merged, args...)
	}
	*m.messages = append(*m.messages, LogMessage{Level: level, Msg: msg, Args: merged})
}

// Messages returns a copy of everything logged so far.
func (m *MockLogger) Messages() []LogMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]LogMessage, len(*m.messages))
	copy(out, *m.messages)
	return out
}

// HasMessage reports whether a message with the given level and text was logged.
func (m *MockLogger) HasMessage(level, msg string) bool {
	for _, lm := range m.Messages() {
		if lm.Level == level && lm.Msg == msg {
			return true
		}
	}
	return false
}

// HasMessageContaining reports whether a message at level contains substring.
func (m *MockLogger) HasMessageContaining(level, substring string) bool {
	for _, lm := range m.Messages() {
		if lm.Level == level && strings.Contains(lm.Msg, substring) {
			return true
		}
	}
	return false
}

// Count returns how many messages were logged at level.
func (m *MockLogger) Count(level string) int {
	n := 0
	for _, lm := range m.Messages() {
		if lm.Level == level {
			n++
		}
	}
	return n
}

// Clear clears all logged messages.
func (m *MockLogger) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	*m.messages = make([]LogMessage, 0)
}

// String returns a string representation of all logged messages.
func (m *MockLogger) String() string {
	var sb strings.Builder
	for _, msg := range m.Messages() {
		fmt.Fprintf(&sb, "[%s] %s %v\n", msg.Level, msg.Msg, msg.Args)
	}
	return sb.String()
}
