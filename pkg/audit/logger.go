// Package audit records the edit trail: who joined which document, what
// they changed, and which safety limits fired. Entries are JSON lines
// so the trail greps and replays easily.
package audit

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/akshayaparida/react-component-editor-sub000/pkg/jsx"
)

// Event types recorded in the trail.
const (
	EventSessionJoined  = "session_joined"
	EventSessionLeft    = "session_left"
	EventPropertyChange = "property_change"
	EventSourceReplace  = "source_replace"
	EventUndo           = "undo"
	EventGenerate       = "generate"
	EventEditUnmapped   = "edit_unmapped"
	EventRateLimited    = "rate_limited"
	EventOriginBlocked  = "origin_blocked"
)

// Severity levels for entries.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Entry is one line in the audit trail.
type Entry struct {
	Timestamp time.Time      `json:"timestamp"`
	Event     string         `json:"event"`
	DocID     string         `json:"doc_id,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
	EID       jsx.EID        `json:"eid,omitempty"`
	Property  string         `json:"property,omitempty"`
	Value     string         `json:"value,omitempty"`
	Version   uint64         `json:"version,omitempty"`
	SourceIP  string         `json:"source_ip,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Severity  string         `json:"severity"`
}

// Logger is the interface audit trail destinations implement.
type Logger interface {
	// Log records an entry.
	Log(entry Entry)

	// LogWithContext records an entry, picking the request ID out of
	// the context when present.
	LogWithContext(ctx context.Context, entry Entry)

	// Close flushes pending entries and closes the destination.
	Close() error
}

// JSONLogger writes entries as JSON lines to an io.Writer.
type JSONLogger struct {
	encoder *json.Encoder
	writer  io.Writer
	mu      sync.Mutex
}

// NewJSONLogger creates a JSON lines logger.
func NewJSONLogger(w io.Writer) *JSONLogger {
	return &JSONLogger{
		encoder: json.NewEncoder(w),
		writer:  w,
	}
}

// NewFileLogger creates a logger appending to a file.
func NewFileLogger(path string) (*JSONLogger, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, err
	}
	return NewJSONLogger(f), nil
}

// NewStdLogger creates a logger writing to stdout.
func NewStdLogger() *JSONLogger {
	return NewJSONLogger(os.Stdout)
}

// Log records an entry.
func (l *JSONLogger) Log(entry Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	if entry.Severity == "" {
		entry.Severity = SeverityInfo
	}

	if err := l.encoder.Encode(entry); err != nil {
		log.Printf("audit: failed to encode entry: %v", err)
	}
}

// LogWithContext records an entry with the request ID from ctx.
func (l *JSONLogger) LogWithContext(ctx context.Context, entry Entry) {
	if id := RequestID(ctx); id != "" && entry.RequestID == "" {
		entry.RequestID = id
	}
	l.Log(entry)
}

// Close closes the underlying writer if it is a closer.
func (l *JSONLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if closer, ok := l.writer.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

type requestIDKey struct{}

// WithRequestID attaches a request ID to a context. Server middleware
// sets it so entries correlate with traces.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID extracts the request ID from a context, or "".
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// MultiLogger fans entries out to several destinations.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger creates a logger writing to every destination.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	return &MultiLogger{loggers: loggers}
}

// Log records an entry to all destinations.
func (m *MultiLogger) Log(entry Entry) {
	for _, l := range m.loggers {
		l.Log(entry)
	}
}

// LogWithContext records an entry with context to all destinations.
func (m *MultiLogger) LogWithContext(ctx context.Context, entry Entry) {
	for _, l := range m.loggers {
		l.LogWithContext(ctx, entry)
	}
}

// Close closes all destinations, returning the last error.
func (m *MultiLogger) Close() error {
	var lastErr error
	for _, l := range m.loggers {
		if err := l.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// NopLogger discards entries, for tests or when the trail is disabled.
type NopLogger struct{}

// NewNopLogger creates a no-op logger.
func NewNopLogger() *NopLogger {
	return &NopLogger{}
}

// Log does nothing.
func (n *NopLogger) Log(entry Entry) {}

// LogWithContext does nothing.
func (n *NopLogger) LogWithContext(ctx context.Context, entry Entry) {}

// Close does nothing.
func (n *NopLogger) Close() error { return nil }

// AsyncLogger buffers entries and writes them off the session
// goroutine, so the edit loop never waits on disk.
type AsyncLogger struct {
	logger  Logger
	entries chan Entry
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewAsyncLogger wraps a logger with a buffered writer goroutine.
func NewAsyncLogger(logger Logger, bufferSize int) *AsyncLogger {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	a := &AsyncLogger{
		logger:  logger,
		entries: make(chan Entry, bufferSize),
		done:    make(chan struct{}),
	}
	a.wg.Add(1)
	go a.worker()
	return a
}

func (a *AsyncLogger) worker() {
	defer a.wg.Done()
	for {
		select {
		case entry := <-a.entries:
			a.logger.Log(entry)
		case <-a.done:
			for {
				select {
				case entry := <-a.entries:
					a.logger.Log(entry)
				default:
					return
				}
			}
		}
	}
}

// Log queues an entry. When the buffer is full the entry is written
// synchronously rather than dropped.
func (a *AsyncLogger) Log(entry Entry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	select {
	case a.entries <- entry:
	default:
		a.logger.Log(entry)
	}
}

// LogWithContext queues an entry with the request ID from ctx.
func (a *AsyncLogger) LogWithContext(ctx context.Context, entry Entry) {
	if id := RequestID(ctx); id != "" && entry.RequestID == "" {
		entry.RequestID = id
	}
	a.Log(entry)
}

// Close stops the worker after draining pending entries.
func (a *AsyncLogger) Close() error {
	close(a.done)
	a.wg.Wait()
	return a.logger.Close()
}

// LogJoin records a session joining a document.
func LogJoin(logger Logger, docID, sessionID, ip string) {
	logger.Log(Entry{
		Event:     EventSessionJoined,
		DocID:     docID,
		SessionID: sessionID,
		SourceIP:  ip,
		Severity:  SeverityInfo,
	})
}

// LogLeave records a session leaving a document.
func LogLeave(logger Logger, docID, sessionID string) {
	logger.Log(Entry{
		Event:     EventSessionLeft,
		DocID:     docID,
		SessionID: sessionID,
		Severity:  SeverityInfo,
	})
}

// LogPropertyChange records an edit settling into source.
func LogPropertyChange(logger Logger, docID, sessionID string, eid jsx.EID, property, value string, version uint64) {
	logger.Log(Entry{
		Event:     EventPropertyChange,
		DocID:     docID,
		SessionID: sessionID,
		EID:       eid,
		Property:  property,
		Value:     value,
		Version:   version,
		Severity:  SeverityInfo,
	})
}

// LogSourceReplace records a whole-source replacement.
func LogSourceReplace(logger Logger, docID, sessionID string, version uint64) {
	logger.Log(Entry{
		Event:     EventSourceReplace,
		DocID:     docID,
		SessionID: sessionID,
		Version:   version,
		Severity:  SeverityInfo,
	})
}

// LogUndo records an undo restoring a prior version.
func LogUndo(logger Logger, docID, sessionID string, version uint64) {
	logger.Log(Entry{
		Event:     EventUndo,
		DocID:     docID,
		SessionID: sessionID,
		Version:   version,
		Severity:  SeverityInfo,
	})
}

// LogEditUnmapped records an edit that could not be mapped back to
// source, the signal behind panel reseeds.
func LogEditUnmapped(logger Logger, docID, sessionID string, eid jsx.EID, property string) {
	logger.Log(Entry{
		Event:     EventEditUnmapped,
		DocID:     docID,
		SessionID: sessionID,
		EID:       eid,
		Property:  property,
		Severity:  SeverityWarning,
	})
}

// LogRateLimited records a session exceeding its event budget.
func LogRateLimited(logger Logger, docID, sessionID, event string) {
	logger.Log(Entry{
		Event:     EventRateLimited,
		DocID:     docID,
		SessionID: sessionID,
		Details:   map[string]any{"dropped": event},
		Severity:  SeverityWarning,
	})
}

// LogOriginBlocked records a rejected websocket origin.
func LogOriginBlocked(logger Logger, ip, origin string) {
	logger.Log(Entry{
		Event:    EventOriginBlocked,
		SourceIP: ip,
		Details:  map[string]any{"origin": origin},
		Severity: SeverityWarning,
	})
}
