package streamhttp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gtplanner/planstream/planner"
	"github.com/gtplanner/planstream/sessions"
)

// StreamRequest is the inbound body of the streaming chat endpoint.
type StreamRequest struct {
	SessionID       string         `json:"sessionId"`
	DialogueHistory []planner.Turn `json:"dialogueHistory"`
	ToolResults     map[string]any `json:"toolResults,omitempty"`
	SessionMetadata map[string]any `json:"sessionMetadata,omitempty"`
	// Language selects the planner output language; falls back to the value in
	// sessionMetadata, then to the handler's configured default.
	Language string `json:"language,omitempty"`

	IncludeMetadata          bool    `json:"includeMetadata,omitempty"`
	BufferEvents             bool    `json:"bufferEvents,omitempty"`
	HeartbeatIntervalSeconds float64 `json:"heartbeatIntervalSeconds,omitempty"`
}

var (
	errSessionIDRequired        = errors.New("sessionId is required")
	errDialogueHistoryRequired  = errors.New("dialogueHistory cannot be empty")
	errHeartbeatIntervalInvalid = errors.New("heartbeatIntervalSeconds must be positive")
)

// validate rejects malformed requests before any stream state exists.
func (r *StreamRequest) validate() error {
	if strings.TrimSpace(r.SessionID) == "" {
		return errSessionIDRequired
	}
	if len(r.DialogueHistory) == 0 {
		return errDialogueHistoryRequired
	}
	if r.HeartbeatIntervalSeconds < 0 {
		return errHeartbeatIntervalInvalid
	}
	return nil
}

// effectiveHeartbeat returns the tuned keep-alive interval, defaulting when
// the request leaves it unset.
func (r *StreamRequest) effectiveHeartbeat() time.Duration {
	if r.HeartbeatIntervalSeconds > 0 {
		return time.Duration(r.HeartbeatIntervalSeconds * float64(time.Second))
	}
	return planner.DefaultHeartbeatInterval
}

// effectiveLanguage resolves the language tag: explicit field, then session
// metadata, then the configured fallback.
func (r *StreamRequest) effectiveLanguage(fallback string) string {
	if r.Language != "" {
		return r.Language
	}
	if v, ok := r.SessionMetadata["language"].(string); ok && v != "" {
		return v
	}
	return fallback
}

func (r *StreamRequest) plannerRequest(language string) planner.Request {
	return planner.Request{
		SessionID:       r.SessionID,
		DialogueHistory: r.DialogueHistory,
		ToolResults:     r.ToolResults,
		SessionMetadata: r.SessionMetadata,
		Language:        language,
		Options: planner.Options{
			IncludeMetadata:   r.IncludeMetadata,
			BufferEvents:      r.BufferEvents,
			HeartbeatInterval: r.effectiveHeartbeat(),
		},
	}
}

// streamSession is the transient per-request bridge state. The producer task
// and the consumer loop each hold the queue; completed is the only
// back-channel, written once by the producer and read by the consumer.
type streamSession struct {
	queue     *frameQueue
	completed atomic.Bool
	done      chan struct{}
}

func newStreamSession() *streamSession {
	return &streamSession{queue: newFrameQueue(), done: make(chan struct{})}
}

// runProducer executes the planner to completion, translating its events and
// terminal outcome into frames. Whatever the exit path (success, planner
// fault, or a panic inside the task), the deferred CloseSend pushes the
// end-of-stream sentinel as the task's last queue act, so the consumer loop
// can always terminate.
func (h *Handler) runProducer(ctx context.Context, preq planner.Request, st *streamSession) {
	defer close(st.done)
	defer st.queue.CloseSend()
	defer func() {
		if v := recover(); v != nil {
			h.log.ErrorContext(ctx, "producer.panic", slog.Any("panic", v))
			st.queue.Push(errorFrame(fmt.Sprintf("%v", v), "panic"))
			st.queue.Push(closeFrame("Stream terminated by internal fault"))
			st.completed.Store(true)
		}
	}()

	sink := func(_ context.Context, ev planner.Event) error {
		st.queue.Push(domainFrame(ev))
		return nil
	}

	res, err := h.planner.Plan(ctx, preq, sink)
	if err != nil {
		h.log.ErrorContext(ctx, "planner.fail", slog.String("err", err.Error()))
		st.queue.Push(errorFrame(err.Error(), planner.Classify(err)))
		st.queue.Push(closeFrame("Stream terminated by planner fault"))
		st.completed.Store(true)
		return
	}

	h.log.InfoContext(ctx, "planner.ok", slog.String("session_id", res.SessionID))

	// Persist before the completion frame so the session is exportable the
	// moment the consumer observes `complete`.
	h.persistSession(ctx, preq, res)

	st.queue.Push(completeFrame(res))
	st.queue.Push(closeFrame("Stream completed successfully"))
	st.completed.Store(true)
}

// persistSession records the finished session transcript and result. Failures
// are logged, never surfaced: the stream is already terminally framed.
func (h *Handler) persistSession(ctx context.Context, preq planner.Request, res *planner.Result) {
	now := time.Now().UTC()
	rec := sessions.Record{
		SessionID: preq.SessionID,
		CreatedAt: now,
		UpdatedAt: now,
		Language:  preq.Language,
		Turns:     preq.DialogueHistory,
		Metadata:  preq.SessionMetadata,
		Result: map[string]any{
			"sessionId": res.SessionID,
			"summary":   res.Summary,
			"output":    res.Output,
		},
	}
	if prev, err := h.store.Get(ctx, preq.SessionID); err == nil {
		rec.CreatedAt = prev.CreatedAt
	}
	if err := h.store.Put(ctx, rec); err != nil {
		h.log.ErrorContext(ctx, "session.persist.fail", slog.String("err", err.Error()))
		return
	}
	h.log.InfoContext(ctx, "session.persist.ok")
}

// serveStream is the lifecycle sequencer: it writes the connection frame
// synchronously, spawns the producer task, drains the queue (racing the
// heartbeat timeout) onto the transport, and joins the producer before
// returning regardless of how the loop ended.
func (h *Handler) serveStream(ctx context.Context, wf *lockedWriteFlusher, req *StreamRequest, language string) {
	if err := writeFrame(wf, connectionFrame(req)); err != nil {
		h.log.WarnContext(ctx, "sse.write.fail", slog.String("err", err.Error()))
		return
	}

	st := newStreamSession()

	// The producer is deliberately detached from request cancellation: the
	// planner has no cancellation contract, so a consumer that disappears
	// mid-stream lets the task run to completion with its late frames
	// discarded unread.
	go h.runProducer(context.WithoutCancel(ctx), req.plannerRequest(language), st)

	interval := req.effectiveHeartbeat()
	drained := false
	for !drained {
		frame, outcome := st.queue.Pop(interval)
		switch outcome {
		case popFrame:
			if err := writeFrame(wf, frame); err != nil {
				h.log.WarnContext(ctx, "sse.write.fail", slog.String("err", err.Error()))
				drained = true
			}
		case popSentinel:
			drained = true
		case popTimeout:
			if st.completed.Load() {
				// Terminal frames were observed but the sentinel was missed;
				// treat as drained rather than heartbeating forever.
				h.log.WarnContext(ctx, "stream.drain.defensive")
				drained = true
				continue
			}
			if err := writeFrame(wf, heartbeatFrame()); err != nil {
				h.log.WarnContext(ctx, "sse.write.fail", slog.String("err", err.Error()))
				drained = true
			}
		}
	}

	// Join the producer task before releasing the transport. It must never be
	// abandoned, even when the loop exited early on a transport fault.
	<-st.done
	h.log.InfoContext(ctx, "stream.end")
}
