// Package logging provides structured JSON logging for agent components.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// Level represents log severity
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Event represents a structured log event
type Event struct {
	Timestamp string                 `json:"ts"`
	Level     Level                  `json:"level"`
	Component string                 `json:"component"`
	Event     string                 `json:"event"`
	Session   string                 `json:"session,omitempty"`
	Duration  int64                  `json:"duration_ms,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Extra     map[string]interface{} `json:"extra,omitempty"`
}

// Logger provides structured logging
type Logger struct {
	component string
	session   string
	out       io.Writer
}

// New creates a new logger for a component
func New(component string) *Logger {
	return &Logger{
		component: component,
		out:       os.Stderr,
	}
}

// WithSession sets the session context
func (l *Logger) WithSession(session string) *Logger {
	return &Logger{
		component: l.component,
		session:   session,
		out:       l.out,
	}
}

// WithOutput redirects log events (for testing)
func (l *Logger) WithOutput(w io.Writer) *Logger {
	return &Logger{
		component: l.component,
		session:   l.session,
		out:       w,
	}
}

// log emits a structured log event
func (l *Logger) log(level Level, event string, extra map[string]interface{}, err error) {
	e := Event{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Level:     level,
		Component: l.component,
		Event:     event,
		Session:   l.session,
		Extra:     extra,
	}

	if err != nil {
		e.Error = err.Error()
	}

	data, _ := json.Marshal(e)
	fmt.Fprintln(l.out, string(data))
}

// Debug logs a debug event
func (l *Logger) Debug(event string, extra map[string]interface{}) {
	l.log(LevelDebug, event, extra, nil)
}

// Info logs an info event
func (l *Logger) Info(event string, extra map[string]interface{}) {
	l.log(LevelInfo, event, extra, nil)
}

// Warn logs a warning event
func (l *Logger) Warn(event string, extra map[string]interface{}, err error) {
	l.log(LevelWarn, event, extra, err)
}

// Error logs an error event
func (l *Logger) Error(event string, extra map[string]interface{}, err error) {
	l.log(LevelError, event, extra, err)
}

// TimedEvent logs an event with duration
func (l *Logger) TimedEvent(event string, start time.Time, extra map[string]interface{}) {
	e := Event{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Level:     LevelInfo,
		Component: l.component,
		Event:     event,
		Session:   l.session,
		Duration:  time.Since(start).Milliseconds(),
		Extra:     extra,
	}

	data, _ := json.Marshal(e)
	fmt.Fprintln(l.out, string(data))
}
