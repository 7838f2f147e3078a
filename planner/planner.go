package planner

import (
	"context"
	"errors"
	"time"
)

// DefaultHeartbeatInterval is the fallback keep-alive cadence applied when a
// request does not tune it explicitly.
const DefaultHeartbeatInterval = 30 * time.Second

// Turn is one entry of the dialogue history. Content is opaque to the
// transport; Role and Text are the only fields it ever inspects (for
// persistence and export).
type Turn struct {
	Role     string         `json:"role"`
	Text     string         `json:"text,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Options carries the per-request stream tuning that is also forwarded to the
// planner so it can adapt its output granularity.
type Options struct {
	IncludeMetadata   bool          `json:"includeMetadata"`
	BufferEvents      bool          `json:"bufferEvents"`
	HeartbeatInterval time.Duration `json:"-"`
}

// Request is the immutable input to a planning run.
type Request struct {
	SessionID       string
	DialogueHistory []Turn
	ToolResults     map[string]any
	SessionMetadata map[string]any
	Language        string
	Options         Options
}

// Event is one domain event yielded by the planner. Name becomes the SSE
// event kind on the wire; Data is serialized as the event's JSON payload.
type Event struct {
	Name string
	Data any
}

// EventSink receives planner events in emission order. A sink must be safe to
// call from the planner's goroutine only; it is never called concurrently.
type EventSink func(ctx context.Context, ev Event) error

// Result is the terminal outcome of a successful planning run. SessionID is
// always the echoed request session id.
type Result struct {
	SessionID string         `json:"sessionId"`
	Summary   string         `json:"summary,omitempty"`
	Output    map[string]any `json:"output,omitempty"`
}

// Planner is the opaque planning collaborator. Plan runs to completion,
// pushing zero or more events through sink, and returns either a Result or an
// error. Implementations are not required to honor ctx cancellation
// mid-flight; callers must tolerate a planner that keeps running after the
// consumer is gone.
type Planner interface {
	Plan(ctx context.Context, req Request, sink EventSink) (*Result, error)
}

// PlannerFunc adapts a plain function to the Planner interface.
type PlannerFunc func(ctx context.Context, req Request, sink EventSink) (*Result, error)

func (f PlannerFunc) Plan(ctx context.Context, req Request, sink EventSink) (*Result, error) {
	return f(ctx, req, sink)
}

// Fault is a classified planner failure. Class is a short stable label
// surfaced verbatim to stream consumers in the error frame.
type Fault struct {
	Class string
	Err   error
}

func (f *Fault) Error() string {
	if f.Err == nil {
		return f.Class
	}
	return f.Class + ": " + f.Err.Error()
}

func (f *Fault) Unwrap() error { return f.Err }

// Faultf builds a classified fault wrapping err.
func Faultf(class string, err error) *Fault {
	return &Fault{Class: class, Err: err}
}

// Classify returns the classification label for a planner error: the Fault
// class when one is present anywhere in the chain, otherwise the generic
// planner_error label.
func Classify(err error) string {
	var f *Fault
	if errors.As(err, &f) && f.Class != "" {
		return f.Class
	}
	return "planner_error"
}
