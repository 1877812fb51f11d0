// Package recovery restores editor sessions across reconnects. On
// disconnect a session stashes what the browser would otherwise lose,
// its document, selection and mode, and hands the client a signed
// token; presenting the token on rejoin puts the editor back where it
// was.
package recovery

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/akshayaparida/react-component-editor-sub000/pkg/jsx"
	"github.com/akshayaparida/react-component-editor-sub000/pkg/state"
)

// Common errors.
var (
	ErrTokenExpired  = errors.New("recovery token expired")
	ErrTokenInvalid  = errors.New("recovery token invalid")
	ErrStateNotFound = errors.New("session state not found")
)

// Store persists stashed session state.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// SessionState is what survives a disconnect.
type SessionState struct {
	DocID      string  `json:"doc_id" msgpack:"d"`
	Selected   jsx.EID `json:"selected,omitempty" msgpack:"e,omitempty"`
	SelectMode bool    `json:"select_mode" msgpack:"m"`
	Version    uint64  `json:"version" msgpack:"v"`
	SavedAt    int64   `json:"saved_at" msgpack:"t"`
}

// Token is the signed reference a client presents on rejoin.
type Token struct {
	SessionID string `json:"sid"`
	DocID     string `json:"doc_id"`
	Version   uint64 `json:"version"`
	CreatedAt int64  `json:"created_at"`
	ExpiresAt int64  `json:"expires_at"`
	Signature string `json:"sig"`
}

// Config configures a Manager.
type Config struct {
	Store  Store
	Secret []byte
	TTL    time.Duration
	Prefix string
}

// DefaultConfig stashes state in memory for five minutes. The signing
// secret is random per process; a dev server restart invalidates
// outstanding tokens, which forces a clean rejoin anyway.
func DefaultConfig() *Config {
	return &Config{
		Store:  NewMemoryStore(),
		Secret: []byte(uuid.NewString() + uuid.NewString()),
		TTL:    5 * time.Minute,
		Prefix: "recovery:",
	}
}

// Manager stashes and restores session state.
type Manager struct {
	store      Store
	serializer state.Serializer[SessionState]
	secret     []byte
	ttl        time.Duration
	prefix     string
}

// NewManager creates a manager from config; nil means DefaultConfig.
func NewManager(config *Config) *Manager {
	if config == nil {
		config = DefaultConfig()
	}
	return &Manager{
		store:      config.Store,
		serializer: state.NewGenericSerializer[SessionState](),
		secret:     config.Secret,
		ttl:        config.TTL,
		prefix:     config.Prefix,
	}
}

// Stash saves a session's state and returns the token the client
// presents on rejoin.
func (m *Manager) Stash(ctx context.Context, sessionID string, st *SessionState) (string, error) {
	if err := m.Save(ctx, sessionID, st); err != nil {
		return "", err
	}
	return m.GenerateToken(sessionID, st)
}

// Save stores the state for a session under the manager's TTL.
func (m *Manager) Save(ctx context.Context, sessionID string, st *SessionState) error {
	if st.SavedAt == 0 {
		st.SavedAt = time.Now().Unix()
	}

	data, err := m.serializer.Serialize(*st)
	if err != nil {
		return fmt.Errorf("serialize session state: %w", err)
	}
	return m.store.Set(ctx, m.prefix+sessionID, data, m.ttl)
}

// Restore validates a token and returns the stashed state it refers
// to.
func (m *Manager) Restore(ctx context.Context, tokenStr string) (*SessionState, error) {
	token, err := m.decodeToken(tokenStr)
	if err != nil {
		return nil, err
	}
	if err := m.validateToken(token); err != nil {
		return nil, err
	}

	data, err := m.store.Get(ctx, m.prefix+token.SessionID)
	if err != nil {
		return nil, ErrStateNotFound
	}

	st, err := m.serializer.Deserialize(data)
	if err != nil {
		return nil, fmt.Errorf("deserialize session state: %w", err)
	}

	// The token must refer to the stashed generation, not an older one.
	if st.Version != token.Version || st.DocID != token.DocID {
		return nil, ErrTokenInvalid
	}
	return &st, nil
}

// GenerateToken signs a token for a session's state.
func (m *Manager) GenerateToken(sessionID string, st *SessionState) (string, error) {
	now := time.Now()
	token := &Token{
		SessionID: sessionID,
		DocID:     st.DocID,
		Version:   st.Version,
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(m.ttl).Unix(),
	}
	token.Signature = m.sign(token)

	data, err := json.Marshal(token)
	if err != nil {
		return "", fmt.Errorf("marshal token: %w", err)
	}
	return base64.URLEncoding.EncodeToString(data), nil
}

// Delete drops the stashed state for a session.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	return m.store.Delete(ctx, m.prefix+sessionID)
}

func (m *Manager) decodeToken(tokenStr string) (*Token, error) {
	data, err := base64.URLEncoding.DecodeString(tokenStr)
	if err != nil {
		return nil, ErrTokenInvalid
	}
	var token Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, ErrTokenInvalid
	}
	return &token, nil
}

func (m *Manager) validateToken(token *Token) error {
	if time.Now().Unix() > token.ExpiresAt {
		return ErrTokenExpired
	}
	expected := m.sign(token)
	if !hmac.Equal([]byte(token.Signature), []byte(expected)) {
		return ErrTokenInvalid
	}
	return nil
}

func (m *Manager) sign(token *Token) string {
	data := fmt.Sprintf("%s:%s:%d:%d:%d",
		token.SessionID,
		token.DocID,
		token.Version,
		token.CreatedAt,
		token.ExpiresAt,
	)
	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(data))
	return base64.URLEncoding.EncodeToString(mac.Sum(nil))
}

// MemoryStore keeps stashed state in memory with per-key TTLs.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]*storeItem
	stop  chan struct{}
	once  sync.Once
}

type storeItem struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryStore creates a memory store with a background sweeper.
func NewMemoryStore() *MemoryStore {
	ms := &MemoryStore{
		items: make(map[string]*storeItem),
		stop:  make(chan struct{}),
	}
	go ms.cleanupLoop()
	return ms
}

// Get retrieves a value; expired entries read as missing.
func (ms *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	ms.mu.RLock()
	item, exists := ms.items[key]
	ms.mu.RUnlock()

	if !exists {
		return nil, ErrStateNotFound
	}
	if !item.expiresAt.IsZero() && time.Now().After(item.expiresAt) {
		ms.Delete(ctx, key)
		return nil, ErrStateNotFound
	}
	return item.value, nil
}

// Set stores a value. A non-positive ttl means no expiry.
func (ms *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}
	ms.items[key] = &storeItem{
		value:     value,
		expiresAt: expiresAt,
	}
	return nil
}

// Delete removes a value. Deleting a missing key is not an error.
func (ms *MemoryStore) Delete(ctx context.Context, key string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	delete(ms.items, key)
	return nil
}

// Close stops the background sweeper. Idempotent.
func (ms *MemoryStore) Close() {
	ms.once.Do(func() {
		close(ms.stop)
	})
}

func (ms *MemoryStore) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ms.stop:
			return
		case <-ticker.C:
			now := time.Now()
			ms.mu.Lock()
			for key, item := range ms.items {
				if !item.expiresAt.IsZero() && now.After(item.expiresAt) {
					delete(ms.items, key)
				}
			}
			ms.mu.Unlock()
		}
	}
}
