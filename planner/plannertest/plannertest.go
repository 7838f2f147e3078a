// Package plannertest provides a scripted planner.Planner implementation for
// exercising the streaming transport without a real planning engine.
package plannertest

import (
	"context"
	"sync"
	"time"

	"github.com/gtplanner/planstream/planner"
)

// Step is one scripted action executed in order by the Scripted planner.
type Step func(ctx context.Context, req planner.Request, sink planner.EventSink) error

// Emit yields one domain event through the sink.
func Emit(name string, data any) Step {
	return func(ctx context.Context, req planner.Request, sink planner.EventSink) error {
		return sink(ctx, planner.Event{Name: name, Data: data})
	}
}

// Sleep pauses the scripted run, simulating a slow planning phase.
func Sleep(d time.Duration) Step {
	return func(ctx context.Context, req planner.Request, sink planner.EventSink) error {
		time.Sleep(d)
		return nil
	}
}

// Fail aborts the run with err after all prior steps ran.
func Fail(err error) Step {
	return func(ctx context.Context, req planner.Request, sink planner.EventSink) error {
		return err
	}
}

// Panic aborts the run by panicking, exercising the transport's guaranteed
// sentinel push on unexpected producer faults.
func Panic(v any) Step {
	return func(ctx context.Context, req planner.Request, sink planner.EventSink) error {
		panic(v)
	}
}

// Scripted runs its steps in order and, if none failed, returns a Result
// echoing the request session id. It records every request it receives.
type Scripted struct {
	Steps   []Step
	Summary string

	mu       sync.Mutex
	requests []planner.Request
}

var _ planner.Planner = (*Scripted)(nil)

// New creates a Scripted planner from the given steps.
func New(steps ...Step) *Scripted {
	return &Scripted{Steps: steps}
}

func (s *Scripted) Plan(ctx context.Context, req planner.Request, sink planner.EventSink) (*planner.Result, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	for _, step := range s.Steps {
		if err := step(ctx, req, sink); err != nil {
			return nil, err
		}
	}
	return &planner.Result{
		SessionID: req.SessionID,
		Summary:   s.Summary,
		Output:    map[string]any{"turns": len(req.DialogueHistory)},
	}, nil
}

// Requests returns a copy of every request observed so far.
func (s *Scripted) Requests() []planner.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]planner.Request, len(s.requests))
	copy(out, s.requests)
	return out
}
