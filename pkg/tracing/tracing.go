// Package tracing times the edit loop. Each property change opens a
// span; the parse, render, diff and patch stages hang off it as
// children, so slow stages show up in the dev server's trace view.
package tracing

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/akshayaparida/react-component-editor-sub000/pkg/pool"
)

// Tracer creates spans and hands completed ones to its recorder.
type Tracer struct {
	serviceName string
	recorder    *Recorder
}

// TracerOption configures a tracer.
type TracerOption func(*Tracer)

// WithRecorder keeps completed spans in r for inspection.
func WithRecorder(r *Recorder) TracerOption {
	return func(t *Tracer) {
		t.recorder = r
	}
}

// NewTracer creates a tracer for a service name.
func NewTracer(serviceName string, opts ...TracerOption) *Tracer {
	t := &Tracer{serviceName: serviceName}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// StartSpan opens a span. The returned context carries the span so
// nested stages become children.
func (t *Tracer) StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, *Span) {
	config := &spanConfig{}
	for _, opt := range opts {
		opt(config)
	}

	span := &Span{
		TraceID:   traceIDFrom(ctx),
		SpanID:    newID(),
		ParentID:  spanIDFrom(ctx),
		Name:      name,
		Service:   t.serviceName,
		StartTime: time.Now(),
		Tags:      make(map[string]string),
		tracer:    t,
	}
	for k, v := range config.tags {
		span.Tags[k] = v
	}

	ctx = context.WithValue(ctx, traceIDKey{}, span.TraceID)
	ctx = context.WithValue(ctx, spanIDKey{}, span.SpanID)
	ctx = context.WithValue(ctx, spanKey{}, span)

	return ctx, span
}

// Span is one timed stage of a trace.
type Span struct {
	TraceID   string
	SpanID    string
	ParentID  string
	Name      string
	Service   string
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Status    SpanStatus
	Tags      map[string]string
	Events    []SpanEvent

	tracer *Tracer
	mu     sync.Mutex
	ended  bool
}

// SpanStatus indicates span completion status.
type SpanStatus int

const (
	StatusUnset SpanStatus = iota
	StatusOK
	StatusError
)

// SpanEvent is a point-in-time annotation within a span.
type SpanEvent struct {
	Name      string
	Timestamp time.Time
	Attrs     map[string]string
}

// End completes the span and records it. Calling End twice records
// once.
func (s *Span) End() {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	s.EndTime = time.Now()
	s.Duration = s.EndTime.Sub(s.StartTime)
	if s.Status == StatusUnset {
		s.Status = StatusOK
	}
	tracer := s.tracer
	s.mu.Unlock()

	if tracer != nil && tracer.recorder != nil {
		tracer.recorder.Record(s)
	}
}

// SetTag sets a tag on the span.
func (s *Span) SetTag(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Tags[key] = value
}

// SetStatus sets the span status.
func (s *Span) SetStatus(status SpanStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Status = status
}

// SetError marks the span as errored and tags the message.
func (s *Span) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Status = StatusError
	s.Tags["error"] = err.Error()
}

// AddEvent adds a point-in-time annotation.
func (s *Span) AddEvent(name string, attrs map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Events = append(s.Events, SpanEvent{
		Name:      name,
		Timestamp: time.Now(),
		Attrs:     attrs,
	})
}

// SpanOption configures a span at start.
type SpanOption func(*spanConfig)

type spanConfig struct {
	tags map[string]string
}

// WithTag adds a tag to the span.
func WithTag(key, value string) SpanOption {
	return func(c *spanConfig) {
		if c.tags == nil {
			c.tags = make(map[string]string)
		}
		c.tags[key] = value
	}
}

type traceIDKey struct{}
type spanIDKey struct{}
type spanKey struct{}

func traceIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(traceIDKey{}).(string); ok {
		return id
	}
	return newID()
}

func spanIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(spanIDKey{}).(string); ok {
		return id
	}
	return ""
}

// SpanFromContext retrieves the current span, or nil.
func SpanFromContext(ctx context.Context) *Span {
	span, _ := ctx.Value(spanKey{}).(*Span)
	return span
}

// TraceIDFromContext retrieves the current trace ID, or "".
func TraceIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(traceIDKey{}).(string); ok {
		return id
	}
	return ""
}

func newID() string {
	return uuid.NewString()[:8]
}

// Middleware traces HTTP requests through the dev server.
func Middleware(tracer *Tracer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if incoming := ExtractTraceID(r.Header); incoming != "" {
				r = r.WithContext(context.WithValue(r.Context(), traceIDKey{}, incoming))
			}

			ctx, span := tracer.StartSpan(r.Context(), "http.request",
				WithTag("http.method", r.Method),
				WithTag("http.path", r.URL.Path),
			)
			defer span.End()

			rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r.WithContext(ctx))

			span.SetTag("http.status_code", fmt.Sprintf("%d", rw.status))
			if rw.status >= 400 {
				span.SetStatus(StatusError)
			}
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (rw *statusWriter) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}

// PropagationHeader carries the trace ID between processes.
const PropagationHeader = "X-Trace-ID"

// InjectTraceID copies the context's trace ID into headers.
func InjectTraceID(ctx context.Context, headers http.Header) {
	if id := TraceIDFromContext(ctx); id != "" {
		headers.Set(PropagationHeader, id)
	}
}

// ExtractTraceID reads the trace ID from headers.
func ExtractTraceID(headers http.Header) string {
	return headers.Get(PropagationHeader)
}

// Recorder keeps the most recent completed spans in a ring, oldest
// evicted first.
type Recorder struct {
	mu   sync.Mutex
	ring *pool.RingBuffer[*Span]
}

// NewRecorder creates a recorder holding up to capacity spans.
func NewRecorder(capacity int) *Recorder {
	return &Recorder{
		ring: pool.NewRingBuffer[*Span](capacity),
	}
}

// Record adds a completed span.
func (r *Recorder) Record(span *Span) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ring.Push(span)
}

// Spans returns the recorded spans, oldest first.
func (r *Recorder) Spans() []*Span {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ring.Items()
}

// Clear discards all recorded spans.
func (r *Recorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ring.Clear()
}
