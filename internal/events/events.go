// Package events defines the structured operational events emitted by the
// search pipeline and the ingestion driver. Components report through an
// Emitter instead of writing log lines themselves, so tests can assert on
// what happened without parsing output.
package events

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/getsentry/sentry-go"
	"github.com/govreposcrape/govsearch/internal/telemetry"
)

// Kind names an event
type Kind string

const (
	RequestStart     Kind = "request_start"
	RequestEnd       Kind = "request_end"
	RequestError     Kind = "request_error"
	BackendCall      Kind = "backend_call"
	RetryAttempt     Kind = "retry_attempt"
	RetryExhausted   Kind = "retry_exhausted"
	SlowOperation    Kind = "slow_operation"
	MetadataMiss     Kind = "metadata_miss"
	ProtocolMismatch Kind = "protocol_mismatch"
	CacheDecision    Kind = "cache_decision"
	RepoProcessed    Kind = "repo_processed"
	RepoFailed       Kind = "repo_failed"
	IngestProgress   Kind = "ingest_progress"
	IngestSummary    Kind = "ingest_summary"
)

// Event is a single structured occurrence
type Event struct {
	Kind      Kind
	Level     slog.Level
	Component string
	Message   string
	Fields    map[string]any
}

// Emitter receives events
type Emitter interface {
	Emit(ctx context.Context, e Event)
}

// Nop discards every event
type Nop struct{}

func (Nop) Emit(context.Context, Event) {}

// OrNop returns e, or a Nop emitter when e is nil.
func OrNop(e Emitter) Emitter {
	if e == nil {
		return Nop{}
	}
	return e
}

// SlogEmitter writes events as slog records. Warnings and errors are also
// left as Sentry breadcrumbs on the request scope.
type SlogEmitter struct {
	logger *slog.Logger
}

// NewSlogEmitter creates an emitter backed by logger
func NewSlogEmitter(logger *slog.Logger) *SlogEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogEmitter{logger: logger}
}

func (s *SlogEmitter) Emit(ctx context.Context, e Event) {
	attrs := make([]slog.Attr, 0, len(e.Fields)+2)
	attrs = append(attrs, slog.String("event", string(e.Kind)))
	if e.Component != "" {
		attrs = append(attrs, slog.String("component", e.Component))
	}

	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, e.Fields[k]))
	}

	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	s.logger.LogAttrs(ctx, e.Level, msg, attrs...)

	if e.Level >= slog.LevelWarn {
		level := sentry.LevelWarning
		if e.Level >= slog.LevelError {
			level = sentry.LevelError
		}
		telemetry.AddBreadcrumb(ctx, string(e.Kind), msg, level)
	}
}

// NewJSONLogger returns the process-wide JSON logger.
func NewJSONLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// Recorder keeps events in memory. Safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(_ context.Context, e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of everything recorded so far
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// ByKind returns the recorded events of the given kind, in order
func (r *Recorder) ByKind(kind Kind) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}
