package testing

import (
	"context"
	"sync"

	"github.com/akshayaparida/react-component-editor-sub000/pkg/protocol"
	"github.com/akshayaparida/react-component-editor-sub000/pkg/transport"
)

// MockTransport implements transport.Transport without a network. Tests
// push incoming frames through the embedded receive channel and inspect
// what the session sent back.
type MockTransport struct {
	*transport.BaseTransport

	mu      sync.Mutex
	sent    []*protocol.Message
	sendErr error
}

// NewMockTransport creates a connected mock.
func NewMockTransport() *MockTransport {
	mt := &MockTransport{BaseTransport: transport.NewBaseTransport(nil)}
	mt.SetConnected(true)
	return mt
}

// Connect marks the transport connected.
func (mt *MockTransport) Connect(ctx context.Context) error {
	mt.SetConnected(true)
	return nil
}

// Send records an outgoing frame, or fails if FailSends is active.
func (mt *MockTransport) Send(msg *protocol.Message) error {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	if mt.sendErr != nil {
		return mt.sendErr
	}
	mt.sent = append(mt.sent, msg)
	return nil
}

// Kind reports websocket so sessions treat the mock as a live duplex
// connection.
func (mt *MockTransport) Kind() transport.Kind { return transport.KindWebSocket }

// Frames returns a copy of everything sent so far.
func (mt *MockTransport) Frames() []*protocol.Message {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	out := make([]*protocol.Message, len(mt.sent))
	copy(out, mt.sent)
	return out
}

// LastByEvent returns the newest frame with the given event, or nil.
func (mt *MockTransport) LastByEvent(event string) *protocol.Message {
	frames := mt.Frames()
	for i := len(frames) - 1; i >= 0; i-- {
		if frames[i].Event == event {
			return frames[i]
		}
	}
	return nil
}

// CountByEvent returns how many frames carried the given event.
func (mt *MockTransport) CountByEvent(event string) int {
	n := 0
	for _, msg := range mt.Frames() {
		if msg.Event == event {
			n++
		}
	}
	return n
}

// Reset discards recorded frames.
func (mt *MockTransport) Reset() {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.sent = nil
}

// FailSends makes every Send return err until called with nil,
// simulating a peer whose socket broke mid-write.
func (mt *MockTransport) FailSends(err error) {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.sendErr = err
}
