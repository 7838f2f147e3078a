package streamhttp

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/elnormous/contenttype"
	"github.com/google/uuid"
	"github.com/invopop/jsonschema"

	"github.com/gtplanner/planstream/export"
	"github.com/gtplanner/planstream/internal/logctx"
	"github.com/gtplanner/planstream/planner"
	"github.com/gtplanner/planstream/sessions"
	"github.com/gtplanner/planstream/toolindex"
)

var _ http.Handler = (*Handler)(nil)

var (
	jsonMediaType         = contenttype.NewMediaType("application/json")
	eventStreamMediaType  = contenttype.NewMediaType("text/event-stream")
	eventStreamMediaTypes = []contenttype.MediaType{eventStreamMediaType}
)

const defaultPreviewLength = 1000

// writeJSONError emits a minimal JSON body for HTTP-layer rejections before
// the stream is accepted. Shape: {"error":{"code":<httpStatus>,"message":"<reason>"}}
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	if ct := w.Header().Get("Content-Type"); ct == "" || ct == jsonMediaType.String() {
		w.Header().Set("Content-Type", jsonMediaType.String())
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"code": status, "message": msg}})
}

// Option configures the Handler.
type Option func(*newConfig)

type newConfig struct {
	serviceName     string
	defaultLanguage string
	logger          *slog.Logger
	toolIndex       *toolindex.Index
}

// WithServiceName sets the human-readable service name surfaced by the health
// and status endpoints.
func WithServiceName(name string) Option {
	return func(c *newConfig) { c.serviceName = name }
}

// WithDefaultLanguage sets the language fallback applied when a request
// carries no language tag.
func WithDefaultLanguage(lang string) Option {
	return func(c *newConfig) { c.defaultLanguage = lang }
}

// WithLogger sets the slog logger used by the handler. If not provided, the
// default logger is used.
func WithLogger(l *slog.Logger) Option {
	return func(c *newConfig) { c.logger = l }
}

// WithToolIndex attaches a tool index whose snapshot is surfaced by the
// status endpoint.
func WithToolIndex(ix *toolindex.Index) Option {
	return func(c *newConfig) { c.toolIndex = ix }
}

// Handler serves the planner streaming API: the SSE chat endpoint plus the
// health, status, schema, and Markdown export surfaces around it.
type Handler struct {
	mux     *http.ServeMux
	log     *slog.Logger
	planner planner.Planner
	store   sessions.Store

	serviceName     string
	defaultLanguage string
	toolIndex       *toolindex.Index
	requestSchema   json.RawMessage

	startedAt     time.Time
	activeStreams atomic.Int64
	totalStreams  atomic.Int64
}

// New constructs a Handler.
//
// Required:
//   - store: sessions.Store used to persist completed sessions and to feed
//     the export endpoints
//   - p: the planner collaborator invoked per stream
func New(store sessions.Store, p planner.Planner, opts ...Option) (*Handler, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if p == nil {
		return nil, fmt.Errorf("planner is required")
	}

	cfg := &newConfig{
		serviceName:     "planstream",
		defaultLanguage: "en",
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	schema, err := reflectRequestSchema()
	if err != nil {
		return nil, fmt.Errorf("failed to build request schema: %w", err)
	}

	h := &Handler{
		log:             slog.New(logctx.Handler{Handler: cfg.logger.Handler()}),
		planner:         p,
		store:           store,
		serviceName:     cfg.serviceName,
		defaultLanguage: cfg.defaultLanguage,
		toolIndex:       cfg.toolIndex,
		requestSchema:   schema,
		startedAt:       time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat/agent", h.handleChatAgent)
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /api/status", h.handleStatus)
	mux.HandleFunc("GET /api/schema", h.handleSchema)
	mux.HandleFunc("OPTIONS /api/schema", h.handleOptionsCORS)
	mux.HandleFunc("POST /api/export/markdown", h.handleExportMarkdown)
	mux.HandleFunc("GET /api/export/preview/{sessionID}", h.handleExportPreview)
	h.mux = mux
	return h, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r.WithContext(logctx.WithRequestData(r.Context(), &logctx.RequestData{
		RequestID:  uuid.NewString(),
		Method:     r.Method,
		UserAgent:  r.UserAgent(),
		RemoteAddr: r.RemoteAddr,
		Path:       r.URL.Path,
	})))
}

// handleChatAgent handles POST /api/chat/agent: validates the request, then
// hands the accepted stream to the lifecycle sequencer. Validation failures
// are synchronous JSON rejections; once SSE headers are written every fault
// is surfaced as a frame.
func (h *Handler) handleChatAgent(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	h.log.InfoContext(ctx, "http.chat.start")

	ctype, err := contenttype.GetMediaType(r)
	if err != nil || !ctype.Matches(jsonMediaType) {
		writeJSONError(w, http.StatusUnsupportedMediaType, "content-type must be application/json")
		h.log.WarnContext(ctx, "content_type.unsupported")
		return
	}

	if acc := r.Header.Get("Accept"); acc != "" {
		if _, _, err := contenttype.GetAcceptableMediaType(r, eventStreamMediaTypes); err != nil {
			writeJSONError(w, http.StatusUnsupportedMediaType, "accept must admit text/event-stream")
			h.log.WarnContext(ctx, "accept.unsupported", slog.String("accept", acc))
			return
		}
	}

	f, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "streaming unsupported")
		h.log.ErrorContext(ctx, "sse.flusher.missing")
		return
	}

	var req StreamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		h.log.WarnContext(ctx, "json.decode.fail", slog.String("err", err.Error()))
		return
	}
	if err := req.validate(); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		h.log.WarnContext(ctx, "request.invalid", slog.String("err", err.Error()))
		return
	}

	language := req.effectiveLanguage(h.defaultLanguage)
	ctx = logctx.WithStreamData(ctx, &logctx.StreamData{
		SessionID: req.SessionID,
		Language:  language,
		Turns:     len(req.DialogueHistory),
	})

	h.activeStreams.Add(1)
	h.totalStreams.Add(1)
	defer h.activeStreams.Add(-1)

	wf := &lockedWriteFlusher{Writer: w, Flusher: f, ctx: ctx}
	w.Header().Set("Content-Type", eventStreamMediaType.String())
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	h.log.InfoContext(ctx, "stream.start")
	h.serveStream(ctx, wf, &req, language)
	h.log.InfoContext(ctx, "http.chat.ok", slog.Duration("dur", time.Since(start)))
}

func (h *Handler) statusSnapshot() map[string]any {
	st := map[string]any{
		"uptimeSeconds":   time.Since(h.startedAt).Seconds(),
		"activeStreams":   h.activeStreams.Load(),
		"totalStreams":    h.totalStreams.Load(),
		"defaultLanguage": h.defaultLanguage,
	}
	if h.toolIndex != nil {
		st["toolIndex"] = h.toolIndex.Snapshot()
	}
	return st
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", jsonMediaType.String())
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    "healthy",
		"service":   h.serviceName,
		"timestamp": stamp(),
		"apiStatus": h.statusSnapshot(),
	})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", jsonMediaType.String())
	_ = json.NewEncoder(w).Encode(h.statusSnapshot())
}

// handleSchema serves the JSON Schema of the stream request body so clients
// can validate payloads without out-of-band documentation.
func (h *Handler) handleSchema(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Vary", "Origin")
	w.Header().Set("Content-Type", jsonMediaType.String())
	_, _ = w.Write(h.requestSchema)
}

func (h *Handler) handleOptionsCORS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept")
	w.Header().Set("Access-Control-Max-Age", "600")
	w.WriteHeader(http.StatusNoContent)
}

type exportRequest struct {
	SessionID           string `json:"sessionId"`
	IncludeConversation *bool  `json:"includeConversation,omitempty"`
	Language            string `json:"language,omitempty"`
}

// handleExportMarkdown renders a persisted session as Markdown.
func (h *Handler) handleExportMarkdown(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		h.log.WarnContext(ctx, "json.decode.fail", slog.String("err", err.Error()))
		return
	}
	if req.SessionID == "" {
		writeJSONError(w, http.StatusBadRequest, "sessionId is required")
		return
	}
	includeConversation := true
	if req.IncludeConversation != nil {
		includeConversation = *req.IncludeConversation
	}
	language := req.Language
	if language == "" {
		language = h.defaultLanguage
	}

	exporter := export.New(h.store, language)
	content, err := exporter.ExportMarkdown(ctx, req.SessionID, includeConversation)
	if err != nil {
		if errors.Is(err, sessions.ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "session not found: "+req.SessionID)
			h.log.InfoContext(ctx, "export.session.miss")
			return
		}
		writeJSONError(w, http.StatusInternalServerError, "export failed")
		h.log.ErrorContext(ctx, "export.fail", slog.String("err", err.Error()))
		return
	}

	h.log.InfoContext(ctx, "export.ok", slog.String("session_id", req.SessionID))
	w.Header().Set("Content-Type", jsonMediaType.String())
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success":   true,
		"content":   content,
		"sessionId": req.SessionID,
		"timestamp": stamp(),
	})
}

// handleExportPreview renders a truncated Markdown preview of a session.
func (h *Handler) handleExportPreview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := r.PathValue("sessionID")

	language := r.URL.Query().Get("language")
	if language == "" {
		language = h.defaultLanguage
	}
	maxLength := defaultPreviewLength
	if v := r.URL.Query().Get("maxLength"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSONError(w, http.StatusBadRequest, "maxLength must be a positive integer")
			return
		}
		maxLength = n
	}

	exporter := export.New(h.store, language)
	preview, err := exporter.Preview(ctx, sessionID, maxLength)
	if err != nil {
		if errors.Is(err, sessions.ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "session not found: "+sessionID)
			h.log.InfoContext(ctx, "export.session.miss")
			return
		}
		writeJSONError(w, http.StatusInternalServerError, "preview failed")
		h.log.ErrorContext(ctx, "export.preview.fail", slog.String("err", err.Error()))
		return
	}

	w.Header().Set("Content-Type", jsonMediaType.String())
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success":   true,
		"preview":   preview,
		"sessionId": sessionID,
		"language":  language,
		"timestamp": stamp(),
	})
}

func reflectRequestSchema() (json.RawMessage, error) {
	reflector := jsonschema.Reflector{DoNotReference: true}
	schema := reflector.Reflect(&StreamRequest{})
	return json.Marshal(schema)
}
