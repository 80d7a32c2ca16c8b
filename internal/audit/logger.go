package audit

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Event is a single account audit record.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	UserID    string    `json:"uid,omitempty"`
	Email     string    `json:"email,omitempty"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
}

// Logger writes audit events as JSON lines.
type Logger struct {
	out zerolog.Logger
}

// New returns a Logger writing to stdout.
func New() *Logger {
	return NewWithLogger(zerolog.New(os.Stdout))
}

// NewWithLogger returns a Logger writing through l.
func NewWithLogger(l zerolog.Logger) *Logger {
	return &Logger{out: l.With().Str("log", "audit").Logger()}
}

// Log records an event. A nil Logger discards it.
func (a *Logger) Log(action, uid, email string, err error) {
	if a == nil {
		return
	}
	ev := Event{
		Timestamp: time.Now().UTC(),
		Action:    action,
		UserID:    uid,
		Email:     email,
		Success:   err == nil,
	}
	if err != nil {
		ev.Error = err.Error()
	}

	a.out.Log().
		Time("timestamp", ev.Timestamp).
		Str("action", ev.Action).
		Str("uid", ev.UserID).
		Str("email", ev.Email).
		Bool("success", ev.Success).
		Str("error", ev.Error).
		Msg("")
}
