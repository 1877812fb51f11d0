// Package metrics provides observability counters for the editor runtime.
package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics holds all runtime metrics.
type Metrics struct {
	// Sessions
	SessionsActive *Gauge
	SessionsTotal  *Counter

	// Wire traffic
	EventsReceived *CounterVec
	MessagesSent   *CounterVec
	EventLatency   *Histogram

	// Edit loop
	EditsApplied    *Counter
	MutationNoOps   *Counter
	DebounceFlushes *Counter

	// Rendering
	RenderCount    *Counter
	RenderDuration *Histogram
	PatchOps       *Histogram
	CompileErrors  *Counter

	// Failures
	ErrorsTotal *CounterVec
	PanicsTotal *Counter

	prefix string
}

// NewMetrics creates a metrics instance with the given name prefix.
func NewMetrics(prefix string) *Metrics {
	return &Metrics{
		SessionsActive: NewGauge(prefix+"_sessions_active", "Number of live editor sessions"),
		SessionsTotal:  NewCounter(prefix+"_sessions_total", "Total editor sessions opened"),

		EventsReceived: NewCounterVec(prefix+"_events_received_total", "Events received", "type"),
		MessagesSent:   NewCounterVec(prefix+"_messages_sent_total", "Messages sent", "type"),
		EventLatency:   NewHistogram(prefix+"_event_latency_seconds", "Event processing latency"),

		EditsApplied:    NewCounter(prefix+"_edits_applied_total", "Source mutations applied"),
		MutationNoOps:   NewCounter(prefix+"_mutation_noops_total", "Mutations targeting a vanished element"),
		DebounceFlushes: NewCounter(prefix+"_debounce_flushes_total", "Settled property edits"),

		RenderCount:    NewCounter(prefix+"_render_total", "Preview renders"),
		RenderDuration: NewHistogram(prefix+"_render_duration_seconds", "Render duration"),
		PatchOps:       NewHistogram(prefix+"_patch_ops", "Patch ops per render"),
		CompileErrors:  NewCounter(prefix+"_compile_errors_total", "Failed compiles"),

		ErrorsTotal: NewCounterVec(prefix+"_errors_total", "Total errors", "type"),
		PanicsTotal: NewCounter(prefix+"_panics_total", "Panics recovered in session loops"),

		prefix: prefix,
	}
}

// Handler serves the text exposition format.
func (m *Metrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		m.writeCounter(w, m.SessionsActive.name, m.SessionsActive.Value())
		m.writeCounter(w, m.SessionsTotal.name, m.SessionsTotal.Value())
		m.writeCounter(w, m.EditsApplied.name, m.EditsApplied.Value())
		m.writeCounter(w, m.MutationNoOps.name, m.MutationNoOps.Value())
		m.writeCounter(w, m.DebounceFlushes.name, m.DebounceFlushes.Value())
		m.writeCounter(w, m.RenderCount.name, m.RenderCount.Value())
		m.writeCounter(w, m.CompileErrors.name, m.CompileErrors.Value())
		m.writeCounter(w, m.PanicsTotal.name, m.PanicsTotal.Value())

		m.writeVec(w, m.EventsReceived)
		m.writeVec(w, m.MessagesSent)
		m.writeVec(w, m.ErrorsTotal)

		m.writeHistogram(w, m.EventLatency)
		m.writeHistogram(w, m.RenderDuration)
		m.writeHistogram(w, m.PatchOps)
	})
}

func (m *Metrics) writeCounter(w http.ResponseWriter, name string, value float64) {
	fmt.Fprintf(w, "%s %f\n", name, value)
}

func (m *Metrics) writeVec(w http.ResponseWriter, cv *CounterVec) {
	values := cv.Values()
	labels := make([]string, 0, len(values))
	for label := range values {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		fmt.Fprintf(w, "%s{%s=%q} %f\n", cv.name, cv.label, label, values[label])
	}
}

func (m *Metrics) writeHistogram(w http.ResponseWriter, h *Histogram) {
	stats := h.Stats()
	fmt.Fprintf(w, "%s_sum %f\n", h.name, stats.Sum)
	fmt.Fprintf(w, "%s_count %d\n", h.name, stats.Count)
	fmt.Fprintf(w, "%s_min %f\n", h.name, stats.Min)
	fmt.Fprintf(w, "%s_max %f\n", h.name, stats.Max)
	fmt.Fprintf(w, "%s_avg %f\n", h.name, stats.Avg)
}

// Counter is a monotonically increasing counter.
type Counter struct {
	name  string
	help  string
	value atomic.Int64
}

// NewCounter creates a new counter.
func NewCounter(name, help string) *Counter {
	return &Counter{name: name, help: help}
}

// Inc increments the counter by 1.
func (c *Counter) Inc() {
	c.value.Add(1)
}

// Add adds the given value to the counter.
func (c *Counter) Add(delta int64) {
	c.value.Add(delta)
}

// Value returns the current counter value.
func (c *Counter) Value() float64 {
	return float64(c.value.Load())
}

// Gauge is a value that can go up and down.
type Gauge struct {
	name  string
	help  string
	value atomic.Int64
}

// NewGauge creates a new gauge.
func NewGauge(name, help string) *Gauge {
	return &Gauge{name: name, help: help}
}

// Set sets the gauge to a value.
func (g *Gauge) Set(value int64) {
	g.value.Store(value)
}

// Inc increments the gauge by 1.
func (g *Gauge) Inc() {
	g.value.Add(1)
}

// Dec decrements the gauge by 1.
func (g *Gauge) Dec() {
	g.value.Add(-1)
}

// Value returns the current gauge value.
func (g *Gauge) Value() float64 {
	return float64(g.value.Load())
}

// CounterVec is a counter with one label dimension.
type CounterVec struct {
	name   string
	help   string
	label  string
	values map[string]*Counter
	mu     sync.RWMutex
}

// NewCounterVec creates a new counter vector.
func NewCounterVec(name, help, label string) *CounterVec {
	return &CounterVec{
		name:   name,
		help:   help,
		label:  label,
		values: make(map[string]*Counter),
	}
}

// WithLabel returns the counter for the given label value.
func (cv *CounterVec) WithLabel(value string) *Counter {
	cv.mu.RLock()
	c, ok := cv.values[value]
	cv.mu.RUnlock()
	if ok {
		return c
	}

	cv.mu.Lock()
	defer cv.mu.Unlock()
	if c, ok := cv.values[value]; ok {
		return c
	}
	c = NewCounter(cv.name, cv.help)
	cv.values[value] = c
	return c
}

// Inc increments the counter for the given label.
func (cv *CounterVec) Inc(label string) {
	cv.WithLabel(label).Inc()
}

// Values returns all counter values by label.
func (cv *CounterVec) Values() map[string]float64 {
	cv.mu.RLock()
	defer cv.mu.RUnlock()

	result := make(map[string]float64, len(cv.values))
	for label, counter := range cv.values {
		result[label] = counter.Value()
	}
	return result
}

// Histogram tracks sum, count and bounds of observed values.
type Histogram struct {
	name  string
	help  string
	sum   float64
	count int64
	min   float64
	max   float64
	mu    sync.Mutex
}

// NewHistogram creates a new histogram.
func NewHistogram(name, help string) *Histogram {
	return &Histogram{name: name, help: help, min: -1}
}

// Observe records a value.
func (h *Histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.sum += value
	h.count++
	if h.min < 0 || value < h.min {
		h.min = value
	}
	if value > h.max {
		h.max = value
	}
}

// ObserveDuration records a duration in seconds.
func (h *Histogram) ObserveDuration(d time.Duration) {
	h.Observe(d.Seconds())
}

// Timer returns a timer that records its duration on Stop.
func (h *Histogram) Timer() *Timer {
	return &Timer{histogram: h, start: time.Now()}
}

// Stats returns histogram statistics.
func (h *Histogram) Stats() HistogramStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	stats := HistogramStats{
		Count: h.count,
		Sum:   h.sum,
		Min:   h.min,
		Max:   h.max,
	}
	if h.count > 0 {
		stats.Avg = h.sum / float64(h.count)
	}
	return stats
}

// HistogramStats contains histogram statistics.
type HistogramStats struct {
	Count int64
	Sum   float64
	Min   float64
	Max   float64
	Avg   float64
}

// Timer tracks operation duration.
type Timer struct {
	histogram *Histogram
	start     time.Time
}

// Stop records the elapsed time.
func (t *Timer) Stop() {
	t.histogram.ObserveDuration(time.Since(t.start))
}

// Global is the default metrics instance.
var Global = NewMetrics("jsxedit")

// SessionOpened records a new editor session.
func SessionOpened() {
	Global.SessionsActive.Inc()
	Global.SessionsTotal.Inc()
}

// SessionClosed records a session teardown.
func SessionClosed() {
	Global.SessionsActive.Dec()
}

// EventReceived records an inbound event by type.
func EventReceived(eventType string) {
	Global.EventsReceived.Inc(eventType)
}

// MessageSent records an outbound message by type.
func MessageSent(msgType string) {
	Global.MessagesSent.Inc(msgType)
}

// RecordError records an error by type.
func RecordError(errType string) {
	Global.ErrorsTotal.Inc(errType)
}

// RecordRender records one render with its duration and patch count.
func RecordRender(duration time.Duration, patchOps int) {
	Global.RenderCount.Inc()
	Global.RenderDuration.ObserveDuration(duration)
	Global.PatchOps.Observe(float64(patchOps))
}

// RecordPanic records a recovered session-loop panic.
func RecordPanic() {
	Global.PanicsTotal.Inc()
}
