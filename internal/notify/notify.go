// Package notify provides the user-facing notification sinks the sync
// controller reports outcomes to. Sinks are fire-and-forget: nothing they do
// feeds back into the controller.
package notify

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Notifier receives one notification per completed user operation.
type Notifier interface {
	NotifySuccess(message string)
	NotifyError(message string)
}

// Level distinguishes success notifications from error notifications.
type Level int

const (
	LevelSuccess Level = iota
	LevelError
)

func (l Level) String() string {
	if l == LevelError {
		return "error"
	}
	return "success"
}

// Terminal prints notifications as single lines to a writer.
type Terminal struct {
	mu sync.Mutex
	w  io.Writer
}

// NewTerminal creates a Terminal sink writing to w.
func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{w: w}
}

func (t *Terminal) NotifySuccess(message string) { t.print("✓", message) }
func (t *Terminal) NotifyError(message string)   { t.print("✗", message) }

func (t *Terminal) print(mark, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, _ = fmt.Fprintf(t.w, "%s %s\n", mark, message)
}

// Log records notifications in the structured log.
type Log struct {
	log *slog.Logger
}

// NewLog creates a sink that logs successes at Info and errors at Warn.
func NewLog(logger *slog.Logger) *Log {
	return &Log{log: logger}
}

func (l *Log) NotifySuccess(message string) {
	l.log.Info("notification", "level", LevelSuccess, "message", message)
}

func (l *Log) NotifyError(message string) {
	l.log.Warn("notification", "level", LevelError, "message", message)
}

// Multi fans a notification out to every sink in order.
type Multi []Notifier

func (m Multi) NotifySuccess(message string) {
	for _, n := range m {
		n.NotifySuccess(message)
	}
}

func (m Multi) NotifyError(message string) {
	for _, n := range m {
		n.NotifyError(message)
	}
}

// Notification is a single captured notification.
type Notification struct {
	Level   Level
	Message string
}

// Recorder captures notifications in memory. The zero value is ready to use.
type Recorder struct {
	mu   sync.Mutex
	seen []Notification
}

func (r *Recorder) NotifySuccess(message string) { r.add(LevelSuccess, message) }
func (r *Recorder) NotifyError(message string)   { r.add(LevelError, message) }

func (r *Recorder) add(level Level, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, Notification{Level: level, Message: message})
}

// All returns a copy of every notification received so far.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.seen...)
}

// Reset forgets every captured notification.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = nil
}
