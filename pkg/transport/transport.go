// Package transport carries protocol frames between the dev server and
// the browser: websocket as the primary channel, server-sent events as
// the one-way fallback for patch mirroring and live reload.
package transport

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/akshayaparida/react-component-editor-sub000/pkg/protocol"
)

// Common transport errors.
var (
	ErrNotConnected     = errors.New("transport not connected")
	ErrConnectionClosed = errors.New("connection closed")
	ErrSendTimeout      = errors.New("send timeout")
	ErrTransportFull    = errors.New("transport buffer full")
)

// Transport is the interface both wire channels implement.
type Transport interface {
	// Connect establishes the connection (client side).
	Connect(ctx context.Context) error

	// Send queues a frame for the peer.
	Send(msg *protocol.Message) error

	// Receive returns the channel of incoming frames.
	Receive() <-chan *protocol.Message

	// CloseChan is closed when the connection dies, however it dies.
	// Session loops select on it to notice the peer going away.
	CloseChan() <-chan struct{}

	// Close terminates the connection.
	Close() error

	// IsConnected reports whether the connection is live.
	IsConnected() bool

	// Kind returns the wire channel kind.
	Kind() Kind
}

// Kind identifies the wire channel, used in logs and metric labels.
type Kind string

const (
	KindWebSocket Kind = "websocket"
	KindSSE       Kind = "sse"
)

// Config holds common transport tuning.
type Config struct {
	// ReadTimeout is the maximum idle time between incoming frames.
	// Client heartbeats must arrive faster than this.
	ReadTimeout time.Duration

	// WriteTimeout bounds a single outgoing write.
	WriteTimeout time.Duration

	// PingInterval is how often keepalive pings go out.
	PingInterval time.Duration

	// MaxMessageSize caps a single frame. Source replacement payloads
	// carry whole JSX files, so this is generous.
	MaxMessageSize int64

	// SendBuffer is the outgoing channel depth.
	SendBuffer int

	// ReceiveBuffer is the incoming channel depth.
	ReceiveBuffer int
}

// DefaultConfig returns the tuning the dev server ships with.
func DefaultConfig() *Config {
	return &Config{
		ReadTimeout:    60 * time.Second,
		WriteTimeout:   10 * time.Second,
		PingInterval:   30 * time.Second,
		MaxMessageSize: 1 << 20, // 1MB
		SendBuffer:     256,
		ReceiveBuffer:  256,
	}
}

// BaseTransport provides the channel plumbing shared by transports.
type BaseTransport struct {
	config    *Config
	connected bool
	sendCh    chan *protocol.Message
	recvCh    chan *protocol.Message
	closeCh   chan struct{}
	closeOnce sync.Once
	mu        sync.RWMutex
}

// NewBaseTransport creates the shared plumbing. A nil config gets
// defaults.
func NewBaseTransport(config *Config) *BaseTransport {
	if config == nil {
		config = DefaultConfig()
	}
	return &BaseTransport{
		config:  config,
		sendCh:  make(chan *protocol.Message, config.SendBuffer),
		recvCh:  make(chan *protocol.Message, config.ReceiveBuffer),
		closeCh: make(chan struct{}),
	}
}

// Config returns the transport configuration.
func (t *BaseTransport) Config() *Config {
	return t.config
}

// IsConnected returns the connection status.
func (t *BaseTransport) IsConnected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.connected
}

// SetConnected updates the connection status.
func (t *BaseTransport) SetConnected(connected bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connected = connected
}

// Receive returns the incoming frame channel.
func (t *BaseTransport) Receive() <-chan *protocol.Message {
	return t.recvCh
}

// CloseChan returns a channel closed when the transport shuts down.
func (t *BaseTransport) CloseChan() <-chan struct{} {
	return t.closeCh
}

// Close shuts the shared plumbing down. Safe to call more than once.
func (t *BaseTransport) Close() error {
	t.closeOnce.Do(func() {
		t.SetConnected(false)
		close(t.closeCh)
	})
	return nil
}

// PushIncoming delivers a frame to the receive channel without
// blocking. Callers decide what a full buffer means for their frame.
func (t *BaseTransport) PushIncoming(msg *protocol.Message) error {
	select {
	case t.recvCh <- msg:
		return nil
	case <-t.closeCh:
		return ErrConnectionClosed
	default:
		return ErrTransportFull
	}
}
