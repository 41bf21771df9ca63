// Package audit writes the controller's line-delimited JSON audit trail to
// standard output. It is deliberately independent of the component loggers
// in pkg/log: audit events must stay machine-parseable JSON lines regardless
// of LOG_LEVEL or console-vs-JSON log formatting.
package audit

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger emits one JSON object per significant event.
type Logger struct {
	zl zerolog.Logger
}

// New creates an audit Logger writing to w. A nil w defaults to os.Stdout.
func New(w io.Writer) *Logger {
	if w == nil {
		w = os.Stdout
	}
	return &Logger{zl: zerolog.New(w).With().Timestamp().Logger()}
}

// Event records an audit event with an optional instance id and a details
// payload. details may be nil.
func (l *Logger) Event(event, instanceID string, details map[string]any) {
	e := l.zl.Log().Str("event", event).Time("timestamp", time.Now().UTC())
	if instanceID != "" {
		e = e.Str("instance_id", instanceID)
	}
	if details != nil {
		e = e.Interface("details", details)
	}
	e.Send()
}

// Reconcile records the "reconcile" event required by the audit contract.
func (l *Logger) Reconcile(instanceCount int) {
	l.Event("reconcile", "", map[string]any{"instance_count": instanceCount})
}

// InstanceCreated records a successful container creation.
func (l *Logger) InstanceCreated(instanceID string) {
	l.Event("instance_created", instanceID, nil)
}

// InstanceDestroyed records a successful container destruction.
func (l *Logger) InstanceDestroyed(instanceID string) {
	l.Event("instance_destroyed", instanceID, nil)
}

// InstanceRecreated records that an instance went through the recreate path.
func (l *Logger) InstanceRecreated(instanceID string) {
	l.Event("instance_recreated", instanceID, nil)
}

// RateLimitRejected records an admission rejection.
func (l *Logger) RateLimitRejected() {
	l.Event("rate_limit_rejected", "", nil)
}
