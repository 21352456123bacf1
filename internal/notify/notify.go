// Package notify surfaces user-facing success and failure messages (toasts).
package notify

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Level is the severity of a notification
type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Action is the affordance a UI should offer next to the message
type Action string

const (
	ActionNone    Action = ""
	ActionRetry   Action = "retry"
	ActionLogin   Action = "login"
	ActionResolve Action = "resolve_conflict"
)

// Notification is a single user-facing message
type Notification struct {
	Level      Level  `json:"level"`
	Collection string `json:"collection,omitempty"`
	Message    string `json:"message"`
	Action     Action `json:"action,omitempty"`
	// Blocking asks the UI for a disruptive surface (dialog) instead of a toast
	Blocking bool `json:"blocking,omitempty"`
}

// Sink receives notifications
type Sink interface {
	Notify(ctx context.Context, n Notification)
}

// LogSink writes notifications to the context logger (or the global one)
type LogSink struct{}

// Notify implements Sink
func (LogSink) Notify(ctx context.Context, n Notification) {
	logger := log.Ctx(ctx)
	if logger.GetLevel() == zerolog.Disabled {
		logger = &log.Logger
	}

	var ev *zerolog.Event
	switch n.Level {
	case LevelError:
		ev = logger.Error()
	case LevelWarning:
		ev = logger.Warn()
	default:
		ev = logger.Info()
	}

	ev.Str("notification", string(n.Level)).
		Str("collection", n.Collection).
		Str("action", string(n.Action)).
		Bool("blocking", n.Blocking).
		Msg(n.Message)
}

// WriterSink prints one line per notification, for terminals
type WriterSink struct {
	W io.Writer

	mu sync.Mutex
}

// Notify implements Sink
func (s *WriterSink) Notify(_ context.Context, n Notification) {
	prefix := string(n.Level)
	if n.Collection != "" {
		prefix += " [" + n.Collection + "]"
	}
	line := prefix + ": " + n.Message
	if n.Action != ActionNone {
		line += " (" + string(n.Action) + ")"
	}

	s.mu.Lock()
	fmt.Fprintln(s.W, line)
	s.mu.Unlock()
}

// Discard drops every notification
type Discard struct{}

// Notify implements Sink
func (Discard) Notify(context.Context, Notification) {}

// Recorder keeps every notification in memory; safe for concurrent use
type Recorder struct {
	mu    sync.Mutex
	items []Notification
}

// Notify implements Sink
func (r *Recorder) Notify(_ context.Context, n Notification) {
	r.mu.Lock()
	r.items = append(r.items, n)
	r.mu.Unlock()
}

// All returns a copy of the recorded notifications
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.items))
	copy(out, r.items)
	return out
}

// ByLevel returns the recorded notifications with the given level
func (r *Recorder) ByLevel(level Level) []Notification {
	var out []Notification
	for _, n := range r.All() {
		if n.Level == level {
			out = append(out, n)
		}
	}
	return out
}

// Reset clears the recorder
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.items = nil
	r.mu.Unlock()
}

// Multi fans out to several sinks
type Multi []Sink

// Notify implements Sink
func (m Multi) Notify(ctx context.Context, n Notification) {
	for _, s := range m {
		s.Notify(ctx, n)
	}
}
