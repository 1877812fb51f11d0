package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/akshayaparida/react-component-editor-sub000/pkg/protocol"
)

// Subprotocol names offered during the websocket handshake. The chosen
// one picks the frame codec; clients that ask for neither get JSON.
const (
	SubprotocolJSON    = "jsxedit.json"
	SubprotocolMsgPack = "jsxedit.msgpack"
)

var subprotocols = []string{SubprotocolMsgPack, SubprotocolJSON}

// ErrOriginNotAllowed is returned when a cross-origin page tries to
// open an editor connection.
var ErrOriginNotAllowed = errors.New("origin not allowed")

// WebSocketConfig configures origin checking for editor connections.
type WebSocketConfig struct {
	// AllowedOrigins lists origins allowed to connect besides the
	// server's own. Empty means same-origin only.
	AllowedOrigins []string

	// AllowAnyOrigin disables origin validation. Any page open in the
	// browser can then drive the editor and rewrite source files, so
	// this exists only for unusual proxy setups.
	AllowAnyOrigin bool
}

// DefaultWebSocketConfig returns the same-origin-only default.
func DefaultWebSocketConfig() *WebSocketConfig {
	return &WebSocketConfig{}
}

// WebSocketTransport carries protocol frames over a websocket.
type WebSocketTransport struct {
	*BaseTransport
	conn     *websocket.Conn
	codec    protocol.Codec
	url      string
	headers  http.Header
	wsConfig *WebSocketConfig
	mu       sync.Mutex
}

// NewWebSocketTransport creates a websocket transport with same-origin
// checking.
func NewWebSocketTransport(config *Config) *WebSocketTransport {
	return NewWebSocketTransportWithConfig(config, nil)
}

// NewWebSocketTransportWithConfig creates a websocket transport with
// explicit origin rules.
func NewWebSocketTransportWithConfig(config *Config, wsConfig *WebSocketConfig) *WebSocketTransport {
	if wsConfig == nil {
		wsConfig = DefaultWebSocketConfig()
	}
	return &WebSocketTransport{
		BaseTransport: NewBaseTransport(config),
		codec:         protocol.DefaultCodecRegistry.Default(),
		headers:       make(http.Header),
		wsConfig:      wsConfig,
	}
}

// isOriginAllowed checks the Origin header against the configured
// rules. Empty origins and same-host origins always pass.
func (t *WebSocketTransport) isOriginAllowed(origin, requestHost string) bool {
	if t.wsConfig != nil && t.wsConfig.AllowAnyOrigin {
		return true
	}

	if origin == "" {
		return true
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}

	if originURL.Host == requestHost {
		return true
	}

	if t.wsConfig != nil {
		for _, allowed := range t.wsConfig.AllowedOrigins {
			if allowed == "*" || allowed == origin {
				return true
			}
			if allowedURL, err := url.Parse(allowed); err == nil {
				if allowedURL.Host != "" && allowedURL.Host == originURL.Host {
					return true
				}
			}
		}
	}

	return false
}

// Kind returns KindWebSocket.
func (t *WebSocketTransport) Kind() Kind {
	return KindWebSocket
}

// Codec returns the frame codec negotiated for this connection.
func (t *WebSocketTransport) Codec() protocol.Codec {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.codec
}

// SetURL sets the websocket URL for client-side connections.
func (t *WebSocketTransport) SetURL(url string) {
	t.url = url
}

// SetHeader sets a handshake header for client-side connections.
func (t *WebSocketTransport) SetHeader(key, value string) {
	t.headers.Set(key, value)
}

// Connect dials the configured URL (client side).
func (t *WebSocketTransport) Connect(ctx context.Context) error {
	if t.url == "" {
		return fmt.Errorf("websocket URL not set")
	}

	opts := &websocket.DialOptions{
		HTTPHeader:   t.headers,
		Subprotocols: subprotocols,
	}

	conn, _, err := websocket.Dial(ctx, t.url, opts)
	if err != nil {
		return fmt.Errorf("dial websocket: %w", err)
	}

	t.adopt(conn)
	return nil
}

// Upgrade accepts an incoming editor connection (server side). The
// Origin header is validated first; 403 is written on rejection.
func (t *WebSocketTransport) Upgrade(w http.ResponseWriter, r *http.Request) error {
	origin := r.Header.Get("Origin")
	if !t.isOriginAllowed(origin, r.Host) {
		http.Error(w, "Forbidden: origin not allowed", http.StatusForbidden)
		return ErrOriginNotAllowed
	}

	opts := &websocket.AcceptOptions{
		Subprotocols: subprotocols,
		// Origin already validated above, with the allow-list applied.
		InsecureSkipVerify: true,
	}

	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		return fmt.Errorf("accept websocket: %w", err)
	}

	t.adopt(conn)
	return nil
}

// adopt takes ownership of a live connection and starts the pumps.
func (t *WebSocketTransport) adopt(conn *websocket.Conn) {
	conn.SetReadLimit(t.config.MaxMessageSize)

	t.mu.Lock()
	t.conn = conn
	t.codec = codecForSubprotocol(conn.Subprotocol())
	t.mu.Unlock()
	t.SetConnected(true)

	go t.readLoop()
	go t.writeLoop()
	go t.pingLoop()
}

// Send queues a frame for the peer, waiting up to WriteTimeout for
// buffer space.
func (t *WebSocketTransport) Send(msg *protocol.Message) error {
	if !t.IsConnected() {
		return ErrNotConnected
	}

	select {
	case t.sendCh <- msg:
		return nil
	case <-t.closeCh:
		return ErrConnectionClosed
	case <-time.After(t.config.WriteTimeout):
		return ErrSendTimeout
	}
}

// Close closes the websocket connection and stops the pumps.
func (t *WebSocketTransport) Close() error {
	t.BaseTransport.Close()

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil {
		err := t.conn.Close(websocket.StatusNormalClosure, "closing")
		t.conn = nil
		return err
	}
	return nil
}

// readLoop decodes incoming frames onto the receive channel. Frames
// that fail to decode are skipped; a full receive buffer drops the
// frame rather than stalling the socket.
func (t *WebSocketTransport) readLoop() {
	defer t.Close()

	for {
		select {
		case <-t.closeCh:
			return
		default:
		}

		t.mu.Lock()
		conn := t.conn
		t.mu.Unlock()

		if conn == nil {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), t.config.ReadTimeout)
		_, data, err := conn.Read(ctx)
		cancel()

		if err != nil {
			return
		}

		msg, err := t.codec.Decode(data)
		if err != nil {
			continue
		}

		t.PushIncoming(msg)
	}
}

// writeLoop encodes queued frames and writes them out. JSON goes as
// text frames, msgpack as binary.
func (t *WebSocketTransport) writeLoop() {
	for {
		select {
		case msg := <-t.sendCh:
			t.mu.Lock()
			conn := t.conn
			codec := t.codec
			t.mu.Unlock()

			if conn == nil {
				return
			}

			data, err := codec.Encode(msg)
			if err != nil {
				continue
			}

			frameType := websocket.MessageText
			if codec.Name() == "msgpack" {
				frameType = websocket.MessageBinary
			}

			ctx, cancel := context.WithTimeout(context.Background(), t.config.WriteTimeout)
			err = conn.Write(ctx, frameType, data)
			cancel()

			if err != nil {
				return
			}

		case <-t.closeCh:
			return
		}
	}
}

// pingLoop keeps the connection alive. A failed ping means the peer is
// gone and the transport shuts down.
func (t *WebSocketTransport) pingLoop() {
	ticker := time.NewTicker(t.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := t.ping(); err != nil {
				t.Close()
				return
			}
		case <-t.closeCh:
			return
		}
	}
}

func (t *WebSocketTransport) ping() error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(context.Background(), t.config.WriteTimeout)
	defer cancel()

	return conn.Ping(ctx)
}

// Conn returns the underlying websocket connection.
func (t *WebSocketTransport) Conn() *websocket.Conn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn
}

// codecForSubprotocol maps a negotiated subprotocol to its codec.
func codecForSubprotocol(name string) protocol.Codec {
	var codecName string
	switch name {
	case SubprotocolMsgPack:
		codecName = "msgpack"
	case SubprotocolJSON:
		codecName = "json"
	default:
		return protocol.DefaultCodecRegistry.Default()
	}
	if c, ok := protocol.DefaultCodecRegistry.Get(codecName); ok {
		return c
	}
	return protocol.DefaultCodecRegistry.Default()
}

// WebSocketHandler upgrades editor connections and hands the live
// transport to the session layer.
type WebSocketHandler struct {
	config   *Config
	wsConfig *WebSocketConfig
	onAccept func(t *WebSocketTransport)
}

// NewWebSocketHandler creates an upgrade handler. onAccept runs once
// per accepted connection with the pumps already started.
func NewWebSocketHandler(config *Config, wsConfig *WebSocketConfig, onAccept func(t *WebSocketTransport)) *WebSocketHandler {
	if config == nil {
		config = DefaultConfig()
	}
	return &WebSocketHandler{
		config:   config,
		wsConfig: wsConfig,
		onAccept: onAccept,
	}
}

// ServeHTTP upgrades the request to a websocket.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	t := NewWebSocketTransportWithConfig(h.config, h.wsConfig)

	if err := t.Upgrade(w, r); err != nil {
		return
	}

	if h.onAccept != nil {
		h.onAccept(t)
	}
}
