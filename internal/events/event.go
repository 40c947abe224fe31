package events

import (
	"time"

	"github.com/google/uuid"
)

// Kind classifies an event for sink filtering.
type Kind string

const (
	// Service lifecycle transitions (ready, stopped, failed)
	KindLifecycle Kind = "lifecycle"
	// Attacker interaction reported by a decoy
	KindInteraction Kind = "interaction"
	// Readiness announcement written by a decoy child, turned into a lifecycle event by the supervisor
	KindReady Kind = "ready"
	// Command plumbing
	KindCLI Kind = "cli"
	// Command failures
	KindError Kind = "error"
	// Unstructured child output
	KindOutput Kind = "output"
)

const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

/**
 * Structured log event, immutable once built
 * @property {string} event_type - Service name for service events, kind otherwise
 * @property {string} src - Peer address of an interaction
 * @property {string} act - Alert or action tag of an interaction
 * @property {string} request - Request summary (e.g. "GET /")
 * @property {map[string]interface{}} extras - Free form fields
 */
type Event struct {
	ID        string                 `json:"id"`
	Timestamp time.Time              `json:"timestamp"`
	EventType string                 `json:"event_type"`
	Kind      Kind                   `json:"kind"`
	Level     string                 `json:"level"`
	Service   string                 `json:"service,omitempty"`
	Message   string                 `json:"message"`
	Src       string                 `json:"src,omitempty"`
	Act       string                 `json:"act,omitempty"`
	Request   string                 `json:"request,omitempty"`
	RunID     string                 `json:"run_id,omitempty"`
	Pid       int                    `json:"pid,omitempty"`
	Extras    map[string]interface{} `json:"extras,omitempty"`
}

func newEvent(kind Kind, eventType, service, level, message string) Event {
	return Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Kind:      kind,
		Level:     level,
		Service:   service,
		Message:   message,
	}
}

// Lifecycle builds a service lifecycle event carrying the new state.
func Lifecycle(service, state, message string) Event {
	e := newEvent(KindLifecycle, service, service, LevelInfo, message)
	e.Extras = map[string]interface{}{"state": state}
	return e
}

// Interaction builds an attacker interaction event.
func Interaction(service, act, src, request string) Event {
	e := newEvent(KindInteraction, service, service, LevelInfo, request)
	e.Act = act
	e.Src = src
	e.Request = request
	return e
}

// CLI builds a command plumbing event.
func CLI(level, message string) Event {
	return newEvent(KindCLI, string(KindCLI), "", level, message)
}

// Failure builds the event recorded when a command fails.
func Failure(command string, err error) Event {
	e := newEvent(KindError, string(KindError), "", LevelError, err.Error())
	e.Extras = map[string]interface{}{"command": command}
	return e
}

// Output wraps a line of child output that isn't a structured event.
func Output(service, line string) Event {
	return newEvent(KindOutput, string(KindOutput), service, LevelDebug, line)
}

// IsServiceLevel reports whether the event belongs in service oriented sinks.
func (e Event) IsServiceLevel() bool {
	return e.Kind == KindLifecycle || e.Kind == KindInteraction
}

// State returns the lifecycle state carried in extras, if any.
func (e Event) State() string {
	s, _ := e.Extras["state"].(string)
	return s
}

// WithRun returns a copy bound to a run id and pid.
func (e Event) WithRun(runID string, pid int) Event {
	e.RunID = runID
	e.Pid = pid
	return e
}

// WithExtra returns a copy with one extra field set. The receiver is untouched.
func (e Event) WithExtra(key string, value interface{}) Event {
	extras := make(map[string]interface{}, len(e.Extras)+1)
	for k, v := range e.Extras {
		extras[k] = v
	}
	extras[key] = value
	e.Extras = extras
	return e
}
