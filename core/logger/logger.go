// Package logger is a standardized event logging framework for the
// shell: every pipeline start, exit, stop, and resolution failure is
// recorded as one JSON object per line, stamped with a session id.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// LogEntry is the wire format: a timestamped envelope carrying exactly
// one event payload.
type LogEntry struct {
	TimestampMicros int64  `json:"timestamp_micros"`
	SessionID       string `json:"session_id,omitempty"`

	ShellStart     *ShellStart     `json:"shell_start,omitempty"`
	ShellExit      *ShellExit      `json:"shell_exit,omitempty"`
	PipelineStart  *PipelineStart  `json:"pipeline_start,omitempty"`
	PipelineExit   *PipelineExit   `json:"pipeline_exit,omitempty"`
	JobStopped     *JobStopped     `json:"job_stopped,omitempty"`
	ResolveFailure *ResolveFailure `json:"resolve_failure,omitempty"`
}

// Event is one recordable occurrence; implementations attach themselves
// to the entry envelope.
type Event interface {
	attach(le *LogEntry)
}

// ShellStart records interpreter startup.
type ShellStart struct {
	Pid         int  `json:"pid"`
	Interactive bool `json:"interactive"`
}

// ShellExit records interpreter shutdown with the last status.
type ShellExit struct {
	Status int `json:"status"`
}

// PipelineStart records a pipeline about to execute.
type PipelineStart struct {
	Cmdline string `json:"cmdline"`
	Stages  int    `json:"stages"`
}

// PipelineExit records a finished pipeline and its shell status.
type PipelineExit struct {
	Cmdline string `json:"cmdline"`
	Status  int    `json:"status"`
}

// JobStopped records a foreground job suspended by a stop signal.
type JobStopped struct {
	Pgid   int `json:"pgid"`
	Signal int `json:"signal"`
}

// ResolveFailure records a command that could not be resolved to an
// executable.
type ResolveFailure struct {
	Command string `json:"command"`
	Reason  string `json:"reason"`
}

func (e *ShellStart) attach(le *LogEntry)     { le.ShellStart = e }
func (e *ShellExit) attach(le *LogEntry)      { le.ShellExit = e }
func (e *PipelineStart) attach(le *LogEntry)  { le.PipelineStart = e }
func (e *PipelineExit) attach(le *LogEntry)   { le.PipelineExit = e }
func (e *JobStopped) attach(le *LogEntry)     { le.JobStopped = e }
func (e *ResolveFailure) attach(le *LogEntry) { le.ResolveFailure = e }

// LogRecorder is a callback that stores entries in an external datastore.
type LogRecorder func(le *LogEntry) error

// Logger captures execution event logs.
type Logger struct {
	Record LogRecorder
}

// NewJsonLinesLogRecorder creates a Logger that exports logs in newline
// delimited JSON object format.
func NewJsonLinesLogRecorder(w io.Writer) *Logger {
	return &Logger{
		Record: func(le *LogEntry) error {
			entry, err := json.Marshal(le)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(w, string(entry))
			return err
		},
	}
}

func (l *Logger) recordEvent(sessionID string, ev Event) error {
	le := &LogEntry{
		TimestampMicros: time.Now().UnixMicro(),
		SessionID:       sessionID,
	}
	ev.attach(le)
	return l.Record(le)
}

// NewSession creates a logger with an attached session ID.
func (l *Logger) NewSession() *SessionLogger {
	return &SessionLogger{Logger: l, sessionID: uuid.NewString()}
}

// Sessionless creates a logger without a session ID.
func (l *Logger) Sessionless() *SessionLogger {
	return &SessionLogger{Logger: l}
}

// SessionLogger logs events with a shared session ID.
type SessionLogger struct {
	*Logger
	sessionID string
}

// Record writes one event under the session's ID.
func (l *SessionLogger) Record(ev Event) error {
	return l.recordEvent(l.sessionID, ev)
}

// SessionID exposes the attached id for correlation.
func (l *SessionLogger) SessionID() string {
	return l.sessionID
}
