package streamhttp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gtplanner/planstream/planner"
)

// Reserved frame kinds. Domain frames use the planner event name as their
// kind; an empty name falls back to kindMessage.
const (
	kindConnection = "connection"
	kindMessage    = "message"
	kindHeartbeat  = "heartbeat"
	kindComplete   = "complete"
	kindError      = "error"
	kindClose      = "close"
)

// Frame is one discrete unit of the event stream: an SSE event kind plus a
// JSON payload. Frames are immutable once built.
type Frame struct {
	Kind string
	Data json.RawMessage
}

type streamConfig struct {
	IncludeMetadata          bool    `json:"includeMetadata"`
	BufferEvents             bool    `json:"bufferEvents"`
	HeartbeatIntervalSeconds float64 `json:"heartbeatIntervalSeconds"`
}

type connectionPayload struct {
	Status                string       `json:"status"`
	Timestamp             string       `json:"timestamp"`
	SessionID             string       `json:"sessionId"`
	DialogueHistoryLength int          `json:"dialogueHistoryLength"`
	Config                streamConfig `json:"config"`
}

type domainPayload struct {
	Data      any    `json:"data"`
	Timestamp string `json:"timestamp"`
}

type heartbeatPayload struct {
	Timestamp string `json:"timestamp"`
}

type completePayload struct {
	Result    *planner.Result `json:"result"`
	Timestamp string          `json:"timestamp"`
}

type errorPayload struct {
	Error     string `json:"error"`
	ErrorType string `json:"errorType"`
	Timestamp string `json:"timestamp"`
}

type closePayload struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

func stamp() string { return time.Now().UTC().Format(time.RFC3339Nano) }

// mustFrame marshals the payload, falling back to an empty object on marshal
// failure so a frame is always emittable.
func mustFrame(kind string, payload any) Frame {
	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte("{}")
	}
	return Frame{Kind: kind, Data: data}
}

func connectionFrame(req *StreamRequest) Frame {
	return mustFrame(kindConnection, connectionPayload{
		Status:                "connected",
		Timestamp:             stamp(),
		SessionID:             req.SessionID,
		DialogueHistoryLength: len(req.DialogueHistory),
		Config: streamConfig{
			IncludeMetadata:          req.IncludeMetadata,
			BufferEvents:             req.BufferEvents,
			HeartbeatIntervalSeconds: req.effectiveHeartbeat().Seconds(),
		},
	})
}

func domainFrame(ev planner.Event) Frame {
	kind := ev.Name
	if kind == "" {
		kind = kindMessage
	}
	return mustFrame(kind, domainPayload{Data: ev.Data, Timestamp: stamp()})
}

func heartbeatFrame() Frame {
	return mustFrame(kindHeartbeat, heartbeatPayload{Timestamp: stamp()})
}

func completeFrame(res *planner.Result) Frame {
	return mustFrame(kindComplete, completePayload{Result: res, Timestamp: stamp()})
}

func errorFrame(msg, errType string) Frame {
	return mustFrame(kindError, errorPayload{Error: msg, ErrorType: errType, Timestamp: stamp()})
}

func closeFrame(message string) Frame {
	return mustFrame(kindClose, closePayload{Status: "closing", Message: message, Timestamp: stamp()})
}

// lockedWriteFlusher wraps an io.Writer + http.Flusher with a mutex and an
// optional context. It serializes writes/flushes and avoids writing after ctx
// is canceled.
type lockedWriteFlusher struct {
	io.Writer
	http.Flusher
	mu  sync.Mutex
	ctx context.Context
}

func (l *lockedWriteFlusher) Write(p []byte) (int, error) {
	if l.ctx != nil && l.ctx.Err() != nil {
		return 0, l.ctx.Err()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	// Re-check after acquiring the lock to minimize races with cancellation
	if l.ctx != nil && l.ctx.Err() != nil {
		return 0, l.ctx.Err()
	}
	return l.Writer.Write(p)
}

func (l *lockedWriteFlusher) Flush() {
	if l.ctx != nil && l.ctx.Err() != nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ctx != nil && l.ctx.Err() != nil {
		return
	}
	l.Flusher.Flush()
}

// writeFrame writes one frame as a named Server-Sent Event and flushes it.
func writeFrame(wf *lockedWriteFlusher, f Frame) error {
	if _, err := fmt.Fprintf(wf, "event: %s\n", f.Kind); err != nil {
		return fmt.Errorf("failed to write SSE event name: %w", err)
	}
	if _, err := wf.Write([]byte("data: ")); err != nil {
		return fmt.Errorf("failed to write SSE data prefix: %w", err)
	}
	if _, err := wf.Write(f.Data); err != nil {
		return fmt.Errorf("failed to write SSE payload: %w", err)
	}
	if _, err := wf.Write([]byte("\n\n")); err != nil {
		return fmt.Errorf("failed to write SSE frame terminator: %w", err)
	}
	wf.Flush()
	return nil
}
