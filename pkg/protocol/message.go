// Package protocol defines the wire format spoken between the browser
// client and editor sessions: message envelopes, typed event payloads,
// and pluggable codecs.
package protocol

import (
	"encoding/json"
	"strings"
	"time"
)

// MessageType identifies the coarse kind of a protocol message. The Event
// field carries the specific event name within a kind.
type MessageType uint8

const (
	// MsgUnknown is the zero value; decoders infer the real type from the
	// event name when a frame arrives without one.
	MsgUnknown MessageType = iota
	// MsgJoin is sent when a client joins a document topic.
	MsgJoin
	// MsgLeave is sent when a client leaves a document topic.
	MsgLeave
	// MsgEvent carries an editor interaction (hover, click, propchange...).
	MsgEvent
	// MsgReply answers a request carrying a Ref.
	MsgReply
	// MsgPatch carries DOM patch ops for the preview.
	MsgPatch
	// MsgError reports a compile or protocol error.
	MsgError
	// MsgHeartbeat keeps the connection alive.
	MsgHeartbeat
	// MsgBroadcast fans out to every client on a document.
	MsgBroadcast
	// MsgPresence reports who is viewing a document.
	MsgPresence
)

// String returns a string representation of the message type.
func (mt MessageType) String() string {
	switch mt {
	case MsgJoin:
		return "join"
	case MsgLeave:
		return "leave"
	case MsgEvent:
		return "event"
	case MsgReply:
		return "reply"
	case MsgPatch:
		return "patch"
	case MsgError:
		return "error"
	case MsgHeartbeat:
		return "heartbeat"
	case MsgBroadcast:
		return "broadcast"
	case MsgPresence:
		return "presence"
	default:
		return "unknown"
	}
}

// Events sent by the client.
const (
	EventJoin       = "join"
	EventLeave      = "leave"
	EventHover      = "hover"
	EventClick      = "click"
	EventPropChange = "propchange"
	EventSetSource  = "setsource"
	EventSetMode    = "setmode"
	EventUndo       = "undo"
	EventHeartbeat  = "heartbeat"
)

// Events sent by the server.
const (
	EventPatch        = "patch"
	EventSource       = "source"
	EventSelection    = "selection"
	EventCompileError = "compile_error"
	EventPresence     = "presence"
	EventReload       = "reload"
	EventLint         = "lint"
	EventReply        = "reply"
)

// TypeForEvent maps an event name to its message type. Unrecognized
// events are editor interactions; an empty name stays unknown.
func TypeForEvent(event string) MessageType {
	switch event {
	case "":
		return MsgUnknown
	case EventJoin:
		return MsgJoin
	case EventLeave:
		return MsgLeave
	case EventHeartbeat:
		return MsgHeartbeat
	case EventReply:
		return MsgReply
	case EventPatch:
		return MsgPatch
	case EventCompileError:
		return MsgError
	case EventPresence:
		return MsgPresence
	case EventSource, EventReload:
		return MsgBroadcast
	default:
		return MsgEvent
	}
}

// docTopicPrefix namespaces document channels on the wire.
const docTopicPrefix = "doc:"

// DocTopic returns the wire topic for a document.
func DocTopic(docID string) string {
	return docTopicPrefix + docID
}

// TopicDocID extracts the document ID from a topic. The second return is
// false for topics outside the document namespace.
func TopicDocID(topic string) (string, bool) {
	if !strings.HasPrefix(topic, docTopicPrefix) {
		return "", false
	}
	return topic[len(docTopicPrefix):], true
}

// Message is a protocol frame exchanged between client and server.
type Message struct {
	// Type identifies what kind of message this is
	Type MessageType `json:"t,omitempty" msgpack:"t,omitempty"`

	// Ref is a correlation ID for request/response matching
	Ref string `json:"ref,omitempty" msgpack:"ref,omitempty"`

	// Topic is the document channel this message belongs to (e.g. "doc:demo")
	Topic string `json:"topic" msgpack:"topic"`

	// Event is the specific event name (e.g. "click", "propchange")
	Event string `json:"event,omitempty" msgpack:"event,omitempty"`

	// Payload contains the message data
	Payload map[string]any `json:"payload,omitempty" msgpack:"payload,omitempty"`

	// Timestamp when the message was created, in Unix milliseconds
	Timestamp int64 `json:"ts,omitempty" msgpack:"ts,omitempty"`

	// JoinRef ties the message to the join that opened the topic
	JoinRef string `json:"join_ref,omitempty" msgpack:"join_ref,omitempty"`
}

// NewMessage creates a message of the given type.
func NewMessage(msgType MessageType, topic, event string) *Message {
	return &Message{
		Type:      msgType,
		Topic:     topic,
		Event:     event,
		Payload:   make(map[string]any),
		Timestamp: time.Now().UnixMilli(),
	}
}

// WithRef adds a correlation ID to the message.
func (m *Message) WithRef(ref string) *Message {
	m.Ref = ref
	return m
}

// WithPayload sets the message payload.
func (m *Message) WithPayload(payload map[string]any) *Message {
	m.Payload = payload
	return m
}

// WithJoinRef sets the join reference.
func (m *Message) WithJoinRef(joinRef string) *Message {
	m.JoinRef = joinRef
	return m
}

// SetPayloadValue sets a single value in the payload.
func (m *Message) SetPayloadValue(key string, value any) *Message {
	if m.Payload == nil {
		m.Payload = make(map[string]any)
	}
	m.Payload[key] = value
	return m
}

// GetPayloadString retrieves a string value from the payload.
func (m *Message) GetPayloadString(key string) string {
	if m.Payload == nil {
		return ""
	}
	if v, ok := m.Payload[key].(string); ok {
		return v
	}
	return ""
}

// GetPayloadInt retrieves an int value from the payload.
func (m *Message) GetPayloadInt(key string) int {
	if m.Payload == nil {
		return 0
	}
	switch v := m.Payload[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

// GetPayloadBool retrieves a bool value from the payload.
func (m *Message) GetPayloadBool(key string) bool {
	if m.Payload == nil {
		return false
	}
	if v, ok := m.Payload[key].(bool); ok {
		return v
	}
	return false
}

// IsReply returns true if this message is a reply.
func (m *Message) IsReply() bool {
	return m.Type == MsgReply
}

// IsError returns true if this message is an error.
func (m *Message) IsError() bool {
	return m.Type == MsgError
}

// IsHeartbeat returns true if this is a heartbeat message.
func (m *Message) IsHeartbeat() bool {
	return m.Type == MsgHeartbeat
}

// Clone creates a copy of the message with its own payload map.
func (m *Message) Clone() *Message {
	clone := &Message{
		Type:      m.Type,
		Ref:       m.Ref,
		Topic:     m.Topic,
		Event:     m.Event,
		Timestamp: m.Timestamp,
		JoinRef:   m.JoinRef,
	}
	if m.Payload != nil {
		clone.Payload = make(map[string]any, len(m.Payload))
		for k, v := range m.Payload {
			clone.Payload[k] = v
		}
	}
	return clone
}

// Constructors for common frames.

// JoinMessage creates a join message for a document.
func JoinMessage(docID string, params map[string]any) *Message {
	return NewMessage(MsgJoin, DocTopic(docID), EventJoin).WithPayload(params)
}

// LeaveMessage creates a leave message.
func LeaveMessage(topic string) *Message {
	return NewMessage(MsgLeave, topic, EventLeave)
}

// EventMessage creates an editor interaction message.
func EventMessage(topic, event string, payload map[string]any) *Message {
	return NewMessage(MsgEvent, topic, event).WithPayload(payload)
}

// ReplyMessage creates a reply to the request carrying ref.
func ReplyMessage(ref, topic string, status string, response map[string]any) *Message {
	return NewMessage(MsgReply, topic, EventReply).
		WithRef(ref).
		WithPayload(map[string]any{
			"status":   status,
			"response": response,
		})
}

// OkReply creates a successful reply message.
func OkReply(ref, topic string, response map[string]any) *Message {
	return ReplyMessage(ref, topic, "ok", response)
}

// ErrorReply creates an error reply message.
func ErrorReply(ref, topic string, reason string) *Message {
	return ReplyMessage(ref, topic, "error", map[string]any{"reason": reason})
}

// PatchMessage creates a patch message carrying DOM ops for one render.
func PatchMessage(topic string, payload map[string]any) *Message {
	return NewMessage(MsgPatch, topic, EventPatch).WithPayload(payload)
}

// CompileErrorMessage creates a compile error message.
func CompileErrorMessage(topic string, payload map[string]any) *Message {
	return NewMessage(MsgError, topic, EventCompileError).WithPayload(payload)
}

// HeartbeatMessage creates a heartbeat message.
func HeartbeatMessage() *Message {
	return NewMessage(MsgHeartbeat, "jsxedit", EventHeartbeat)
}

// BroadcastMessage creates a document-wide fanout message.
func BroadcastMessage(topic, event string, payload map[string]any) *Message {
	return NewMessage(MsgBroadcast, topic, event).WithPayload(payload)
}

// PresenceMessage creates a presence update message.
func PresenceMessage(topic string, payload map[string]any) *Message {
	return NewMessage(MsgPresence, topic, EventPresence).WithPayload(payload)
}

// Envelope wraps messages for batching.
type Envelope struct {
	Messages []*Message `json:"messages"`
}

// NewEnvelope creates an empty envelope.
func NewEnvelope() *Envelope {
	return &Envelope{
		Messages: make([]*Message, 0),
	}
}

// Add adds a message to the envelope.
func (e *Envelope) Add(msg *Message) {
	e.Messages = append(e.Messages, msg)
}

// Count returns the number of messages.
func (e *Envelope) Count() int {
	return len(e.Messages)
}

// IsEmpty returns true if the envelope has no messages.
func (e *Envelope) IsEmpty() bool {
	return len(e.Messages) == 0
}

// MarshalJSON implements json.Marshaler for the envelope.
func (e *Envelope) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Messages)
}

// UnmarshalJSON implements json.Unmarshaler for the envelope.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &e.Messages)
}
