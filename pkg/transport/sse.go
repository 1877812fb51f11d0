package transport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/akshayaparida/react-component-editor-sub000/pkg/protocol"
)

// SSEConfig configures cross-origin access to the event stream.
type SSEConfig struct {
	// AllowedOrigins is a list of origins allowed for CORS.
	// If empty, no CORS headers are set (same-origin only).
	AllowedOrigins []string

	// AllowCredentials allows credentials in CORS requests.
	AllowCredentials bool
}

// DefaultSSEConfig returns the same-origin-only default.
func DefaultSSEConfig() *SSEConfig {
	return &SSEConfig{}
}

// sseClient is one browser listening on /events. An empty topic means
// it hears everything.
type sseClient struct {
	id    string
	topic string
	ch    chan *protocol.Message
}

// SSEBroker streams server frames to browsers over server-sent events.
// It is the one-way fallback for the websocket down-stream and carries
// reload and lint notifications in watch mode. Frames are always JSON;
// SSE is a text protocol.
type SSEBroker struct {
	config    *Config
	sseConfig *SSEConfig
	codec     protocol.Codec
	mu        sync.RWMutex
	clients   map[string]*sseClient
	closed    bool
	closeCh   chan struct{}
	closeOnce sync.Once
	dropped   atomic.Int64
}

// NewSSEBroker creates an event stream broker. Nil configs get
// defaults.
func NewSSEBroker(config *Config, sseConfig *SSEConfig) *SSEBroker {
	if config == nil {
		config = DefaultConfig()
	}
	if sseConfig == nil {
		sseConfig = DefaultSSEConfig()
	}
	codec, ok := protocol.DefaultCodecRegistry.Get("json")
	if !ok {
		codec = protocol.DefaultCodecRegistry.Default()
	}
	return &SSEBroker{
		config:    config,
		sseConfig: sseConfig,
		codec:     codec,
		clients:   make(map[string]*sseClient),
		closeCh:   make(chan struct{}),
	}
}

// isOriginAllowed checks if the origin is in the allowed list.
func (b *SSEBroker) isOriginAllowed(origin string) bool {
	if b.sseConfig == nil || len(b.sseConfig.AllowedOrigins) == 0 {
		return false
	}
	for _, allowed := range b.sseConfig.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// ServeHTTP subscribes the request to the event stream and writes
// frames until the client goes away or the broker shuts down.
// Query parameters: topic filters to one document channel, client_id
// names the subscription (one is generated otherwise).
func (b *SSEBroker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	clientID := r.URL.Query().Get("client_id")
	if clientID == "" {
		clientID = uuid.NewString()
	}

	client := &sseClient{
		id:    clientID,
		topic: r.URL.Query().Get("topic"),
		ch:    make(chan *protocol.Message, b.config.SendBuffer),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	b.clients[clientID] = client
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.clients, clientID)
		b.mu.Unlock()
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// CORS headers only for explicitly allowed origins; cross-origin
	// listeners are blocked otherwise.
	origin := r.Header.Get("Origin")
	if origin != "" && b.isOriginAllowed(origin) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		if b.sseConfig.AllowCredentials {
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
	}

	var eventID int64

	hello, _ := json.Marshal(map[string]string{"client_id": clientID})
	writeSSEEvent(w, flusher, &eventID, "connected", hello)

	ticker := time.NewTicker(b.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg := <-client.ch:
			data, err := b.codec.Encode(msg)
			if err != nil {
				continue
			}
			if err := writeSSEEvent(w, flusher, &eventID, msg.Event, data); err != nil {
				return
			}

		case <-ticker.C:
			beat, _ := json.Marshal(map[string]int64{"time": time.Now().Unix()})
			if err := writeSSEEvent(w, flusher, &eventID, "heartbeat", beat); err != nil {
				return
			}

		case <-r.Context().Done():
			return

		case <-b.closeCh:
			return
		}
	}
}

// Broadcast fans a frame out to every matching listener. Listeners too
// slow to drain their buffer miss the frame.
func (b *SSEBroker) Broadcast(msg *protocol.Message) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for _, c := range b.clients {
		if c.topic != "" && c.topic != msg.Topic {
			continue
		}
		select {
		case c.ch <- msg:
		default:
			b.dropped.Add(1)
		}
	}
}

// Count returns the number of connected listeners.
func (b *SSEBroker) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Dropped returns how many frames were discarded because a listener
// was too slow.
func (b *SSEBroker) Dropped() int64 {
	return b.dropped.Load()
}

// Close disconnects all listeners. Safe to call more than once.
func (b *SSEBroker) Close() error {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		b.closed = true
		b.mu.Unlock()
		close(b.closeCh)
	})
	return nil
}

// writeSSEEvent writes one event in wire format and flushes it.
func writeSSEEvent(w http.ResponseWriter, flusher http.Flusher, eventID *int64, event string, data []byte) error {
	*eventID++
	if _, err := fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", *eventID, event, data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
