// Package state holds the authoritative source documents behind editor
// sessions: the current text, a bounded version history for undo, and
// idle expiry so abandoned documents do not accumulate.
package state

import (
	"errors"
	"sync"
	"time"

	"github.com/akshayaparida/react-component-editor-sub000/pkg/pool"
)

// Common errors returned by store operations.
var (
	// ErrDocNotFound is returned when a document does not exist or has expired.
	ErrDocNotFound = errors.New("document not found")
	// ErrNoHistory is returned by Undo when no earlier version is retained.
	ErrNoHistory = errors.New("no earlier version")
	// ErrStoreClosed is returned when operating on a closed store.
	ErrStoreClosed = errors.New("store is closed")
	// ErrInvalidData is returned when serialized data cannot be decoded.
	ErrInvalidData = errors.New("invalid serialized data")
)

const (
	// defaultHistoryDepth bounds the undo history kept per document.
	defaultHistoryDepth = 50

	// cleanupInterval is how often expired documents are removed.
	cleanupInterval = time.Minute
)

// Now returns the current time. Tests override it to make expiry
// deterministic.
var Now = time.Now

// Snapshot is one immutable version of a document's source text.
type Snapshot struct {
	DocID   string    `json:"doc_id" msgpack:"d"`
	Version uint64    `json:"version" msgpack:"v"`
	Source  string    `json:"source" msgpack:"s"`
	SavedAt time.Time `json:"saved_at" msgpack:"t"`
}

// document tracks the current version and retained history of one text.
type document struct {
	current Snapshot
	history *pool.RingBuffer[Snapshot]
	touched time.Time
}

// Store keeps documents in memory, keyed by document ID. All methods are
// safe for concurrent use; several sessions may share one document.
type Store struct {
	mu           sync.RWMutex
	docs         map[string]*document
	historyDepth int
	ttl          time.Duration
	closed       bool
	cleanupCh    chan struct{}
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithHistoryDepth sets how many earlier versions each document retains
// for undo.
func WithHistoryDepth(n int) StoreOption {
	return func(s *Store) {
		s.historyDepth = n
	}
}

// WithTTL drops documents that have not been written or touched for d.
// Zero disables expiry.
func WithTTL(d time.Duration) StoreOption {
	return func(s *Store) {
		s.ttl = d
	}
}

// NewStore creates an empty document store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		docs:         make(map[string]*document),
		historyDepth: defaultHistoryDepth,
		cleanupCh:    make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.historyDepth < 1 {
		s.historyDepth = 1
	}

	if s.ttl > 0 {
		go s.cleanupLoop()
	}

	return s
}

// Open returns the document's current snapshot, creating it at version 1
// from initial when it does not exist yet.
func (s *Store) Open(docID, initial string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Snapshot{}, ErrStoreClosed
	}

	now := Now()
	if doc, ok := s.docs[docID]; ok && !s.expiredLocked(doc) {
		doc.touched = now
		return doc.current, nil
	}

	doc := &document{
		current: Snapshot{DocID: docID, Version: 1, Source: initial, SavedAt: now},
		history: pool.NewRingBuffer[Snapshot](s.historyDepth),
		touched: now,
	}
	s.docs[docID] = doc
	return doc.current, nil
}

// Get returns the document's current snapshot.
func (s *Store) Get(docID string) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return Snapshot{}, ErrStoreClosed
	}

	doc, ok := s.docs[docID]
	if !ok || s.expiredLocked(doc) {
		return Snapshot{}, ErrDocNotFound
	}
	return doc.current, nil
}

// Update records source as the document's next version, keeping the
// previous one in the undo history. Identical source is a no-op and
// returns the current snapshot unchanged.
func (s *Store) Update(docID, source string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Snapshot{}, ErrStoreClosed
	}

	doc, ok := s.docs[docID]
	if !ok || s.expiredLocked(doc) {
		return Snapshot{}, ErrDocNotFound
	}

	now := Now()
	doc.touched = now
	if doc.current.Source == source {
		return doc.current, nil
	}

	doc.history.Push(doc.current)
	doc.current = Snapshot{
		DocID:   docID,
		Version: doc.current.Version + 1,
		Source:  source,
		SavedAt: now,
	}
	return doc.current, nil
}

// Undo discards the current version and restores the most recent retained
// one. The restored snapshot keeps its original version number.
func (s *Store) Undo(docID string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Snapshot{}, ErrStoreClosed
	}

	doc, ok := s.docs[docID]
	if !ok || s.expiredLocked(doc) {
		return Snapshot{}, ErrDocNotFound
	}

	prev, ok := doc.history.PopNewest()
	if !ok {
		return Snapshot{}, ErrNoHistory
	}

	doc.current = prev
	doc.touched = Now()
	return doc.current, nil
}

// History returns the retained earlier versions, oldest first. The
// current version is not included.
func (s *Store) History(docID string) ([]Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	doc, ok := s.docs[docID]
	if !ok || s.expiredLocked(doc) {
		return nil, ErrDocNotFound
	}
	return doc.history.Items(), nil
}

// Touch refreshes the document's idle timer without changing it. Session
// heartbeats call this to keep open documents alive.
func (s *Store) Touch(docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	doc, ok := s.docs[docID]
	if !ok || s.expiredLocked(doc) {
		return ErrDocNotFound
	}
	doc.touched = Now()
	return nil
}

// Delete removes a document and its history. Deleting an absent document
// is not an error.
func (s *Store) Delete(docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	delete(s.docs, docID)
	return nil
}

// Docs returns the IDs of all live documents.
func (s *Store) Docs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil
	}

	ids := make([]string, 0, len(s.docs))
	for id, doc := range s.docs {
		if !s.expiredLocked(doc) {
			ids = append(ids, id)
		}
	}
	return ids
}

// Len returns the number of documents, including any not yet collected
// after expiry.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Close stops the cleanup goroutine and releases all documents. Close is
// idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.ttl > 0 {
		close(s.cleanupCh)
	}
	s.docs = nil
	return nil
}

// expiredLocked reports whether doc has been idle past the TTL. Callers
// must hold at least a read lock.
func (s *Store) expiredLocked(doc *document) bool {
	return s.ttl > 0 && Now().Sub(doc.touched) > s.ttl
}

func (s *Store) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.removeExpired()
		case <-s.cleanupCh:
			return
		}
	}
}

func (s *Store) removeExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	for id, doc := range s.docs {
		if s.expiredLocked(doc) {
			delete(s.docs, id)
		}
	}
}
