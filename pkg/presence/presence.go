// Package presence tracks who is viewing each document and which
// element they have selected, so every session can paint the other
// viewers' selection outlines.
package presence

import (
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/akshayaparida/react-component-editor-sub000/pkg/jsx"
)

// Viewer is one session looking at a document.
type Viewer struct {
	// SessionID identifies the session, unique per connection.
	SessionID string `json:"sid" msgpack:"s"`

	// Name is the display name given on join.
	Name string `json:"name" msgpack:"n"`

	// Color is the outline color assigned to this viewer.
	Color string `json:"color" msgpack:"c"`

	// Selected is the element the viewer has selected, empty when none.
	Selected jsx.EID `json:"selected,omitempty" msgpack:"e,omitempty"`

	// JoinedAt is when the viewer joined the document.
	JoinedAt time.Time `json:"joined_at" msgpack:"t"`
}

// palette holds the outline colors handed out to viewers. Stable per
// session ID so a viewer keeps its color across re-renders.
var palette = [...]string{
	"#e06c75", "#61afef", "#98c379", "#c678dd",
	"#d19a66", "#56b6c2", "#be5046", "#528bff",
}

func colorFor(sessionID string) string {
	h := fnv.New32a()
	h.Write([]byte(sessionID))
	return palette[h.Sum32()%uint32(len(palette))]
}

// Tracker holds the viewers of one document.
type Tracker struct {
	topic   string
	mu      sync.RWMutex
	viewers map[string]*Viewer
	onJoin  []func(Viewer)
	onLeave []func(Viewer)
}

// NewTracker creates a tracker for a document topic.
func NewTracker(topic string) *Tracker {
	return &Tracker{
		topic:   topic,
		viewers: make(map[string]*Viewer),
	}
}

// Topic returns the document topic this tracker serves.
func (t *Tracker) Topic() string { return t.topic }

// Track registers a session as viewing the document and returns its
// viewer record. Tracking an already-known session updates the name and
// keeps the original join time.
func (t *Tracker) Track(sessionID, name string) Viewer {
	if name == "" {
		name = "anonymous"
	}

	t.mu.Lock()
	v, exists := t.viewers[sessionID]
	if exists {
		v.Name = name
		viewer := *v
		t.mu.Unlock()
		return viewer
	}

	v = &Viewer{
		SessionID: sessionID,
		Name:      name,
		Color:     colorFor(sessionID),
		JoinedAt:  time.Now(),
	}
	t.viewers[sessionID] = v
	viewer := *v
	handlers := t.onJoin
	t.mu.Unlock()

	for _, fn := range handlers {
		fn(viewer)
	}
	return viewer
}

// Untrack removes a session. It reports whether the session was known.
func (t *Tracker) Untrack(sessionID string) (Viewer, bool) {
	t.mu.Lock()
	v, exists := t.viewers[sessionID]
	if !exists {
		t.mu.Unlock()
		return Viewer{}, false
	}
	delete(t.viewers, sessionID)
	viewer := *v
	handlers := t.onLeave
	t.mu.Unlock()

	for _, fn := range handlers {
		fn(viewer)
	}
	return viewer, true
}

// SetSelected records which element a session has selected. An empty
// EID clears it. Returns false for unknown sessions.
func (t *Tracker) SetSelected(sessionID string, eid jsx.EID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	v, exists := t.viewers[sessionID]
	if !exists {
		return false
	}
	v.Selected = eid
	return true
}

// Get retrieves one viewer by session ID.
func (t *Tracker) Get(sessionID string) (Viewer, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.viewers[sessionID]
	if !ok {
		return Viewer{}, false
	}
	return *v, true
}

// List returns all viewers ordered by join time.
func (t *Tracker) List() []Viewer {
	t.mu.RLock()
	viewers := make([]Viewer, 0, len(t.viewers))
	for _, v := range t.viewers {
		viewers = append(viewers, *v)
	}
	t.mu.RUnlock()

	sort.Slice(viewers, func(i, j int) bool {
		if !viewers[i].JoinedAt.Equal(viewers[j].JoinedAt) {
			return viewers[i].JoinedAt.Before(viewers[j].JoinedAt)
		}
		return viewers[i].SessionID < viewers[j].SessionID
	})
	return viewers
}

// Count returns the number of viewers.
func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.viewers)
}

// OnJoin registers a callback invoked after a new viewer is tracked.
func (t *Tracker) OnJoin(fn func(Viewer)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onJoin = append(t.onJoin, fn)
}

// OnLeave registers a callback invoked after a viewer is untracked.
func (t *Tracker) OnLeave(fn func(Viewer)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onLeave = append(t.onLeave, fn)
}

// Payload renders the viewer list as a presence message payload.
func (t *Tracker) Payload() map[string]any {
	return map[string]any{"viewers": t.List()}
}

// Diff compares the current viewers against a previous snapshot.
func (t *Tracker) Diff(previous []Viewer) Diff {
	current := t.List()

	prev := make(map[string]bool, len(previous))
	for _, v := range previous {
		prev[v.SessionID] = true
	}
	curr := make(map[string]bool, len(current))
	for _, v := range current {
		curr[v.SessionID] = true
	}

	var d Diff
	for _, v := range current {
		if !prev[v.SessionID] {
			d.Joins = append(d.Joins, v)
		}
	}
	for _, v := range previous {
		if !curr[v.SessionID] {
			d.Leaves = append(d.Leaves, v)
		}
	}
	return d
}

// Diff is the change between two presence snapshots.
type Diff struct {
	Joins  []Viewer `json:"joins,omitempty"`
	Leaves []Viewer `json:"leaves,omitempty"`
}

// IsEmpty reports whether nothing joined or left.
func (d Diff) IsEmpty() bool {
	return len(d.Joins) == 0 && len(d.Leaves) == 0
}

// Registry holds one tracker per document topic.
type Registry struct {
	mu       sync.RWMutex
	trackers map[string]*Tracker
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		trackers: make(map[string]*Tracker),
	}
}

// GetOrCreate returns the tracker for a topic, creating it if needed.
func (r *Registry) GetOrCreate(topic string) *Tracker {
	r.mu.RLock()
	t, exists := r.trackers[topic]
	r.mu.RUnlock()
	if exists {
		return t
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if t, exists = r.trackers[topic]; exists {
		return t
	}
	t = NewTracker(topic)
	r.trackers[topic] = t
	return t
}

// Prune removes a topic's tracker when its last viewer left. Returns
// true if the tracker was removed.
func (r *Registry) Prune(topic string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, exists := r.trackers[topic]
	if !exists || t.Count() > 0 {
		return false
	}
	delete(r.trackers, topic)
	return true
}

// Topics returns all topics with a tracker.
func (r *Registry) Topics() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	topics := make([]string, 0, len(r.trackers))
	for topic := range r.trackers {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return topics
}
