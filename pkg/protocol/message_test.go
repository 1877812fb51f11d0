package protocol

import (
	"encoding/json"
	"testing"
)

func TestMessageType_String(t *testing.T) {
	cases := map[MessageType]string{
		MsgUnknown:       "unknown",
		MsgJoin:          "join",
		MsgLeave:         "leave",
		MsgEvent:         "event",
		MsgReply:         "reply",
		MsgPatch:         "patch",
		MsgError:         "error",
		MsgHeartbeat:     "heartbeat",
		MsgBroadcast:     "broadcast",
		MsgPresence:      "presence",
		MessageType(200): "unknown",
	}
	for mt, want := range cases {
		if got := mt.String(); got != want {
			t.Errorf("expected %s, got %s", want, got)
		}
	}
}

func TestTypeForEvent(t *testing.T) {
	cases := []struct {
		event string
		want  MessageType
	}{
		{"", MsgUnknown},
		{EventJoin, MsgJoin},
		{EventLeave, MsgLeave},
		{EventHeartbeat, MsgHeartbeat},
		{EventReply, MsgReply},
		{EventPatch, MsgPatch},
		{EventCompileError, MsgError},
		{EventPresence, MsgPresence},
		{EventSource, MsgBroadcast},
		{EventReload, MsgBroadcast},
		{EventHover, MsgEvent},
		{EventClick, MsgEvent},
		{EventPropChange, MsgEvent},
		{EventUndo, MsgEvent},
		{"custom", MsgEvent},
	}
	for _, tc := range cases {
		if got := TypeForEvent(tc.event); got != tc.want {
			t.Errorf("event %q: expected %s, got %s", tc.event, tc.want, got)
		}
	}
}

func TestDocTopic(t *testing.T) {
	topic := DocTopic("demo")
	if topic != "doc:demo" {
		t.Errorf("expected doc:demo, got %s", topic)
	}

	id, ok := TopicDocID(topic)
	if !ok || id != "demo" {
		t.Errorf("expected demo, got %q %v", id, ok)
	}

	if _, ok := TopicDocID("lv:demo"); ok {
		t.Error("expected non-document topic to be rejected")
	}
}

func TestNewMessage(t *testing.T) {
	msg := NewMessage(MsgEvent, "doc:demo", EventClick)
	if msg.Type != MsgEvent {
		t.Errorf("expected MsgEvent, got %s", msg.Type)
	}
	if msg.Topic != "doc:demo" || msg.Event != EventClick {
		t.Errorf("unexpected topic/event: %s %s", msg.Topic, msg.Event)
	}
	if msg.Payload == nil {
		t.Error("expected payload map to be allocated")
	}
	if msg.Timestamp <= 0 {
		t.Error("expected timestamp to be set")
	}
}

func TestMessage_PayloadHelpers(t *testing.T) {
	msg := &Message{}
	msg.SetPayloadValue("name", "card")
	msg.SetPayloadValue("count", float64(3))
	msg.SetPayloadValue("big", int64(9))
	msg.SetPayloadValue("small", 4)
	msg.SetPayloadValue("on", true)

	if got := msg.GetPayloadString("name"); got != "card" {
		t.Errorf("expected card, got %s", got)
	}
	if got := msg.GetPayloadInt("count"); got != 3 {
		t.Errorf("expected 3, got %d", got)
	}
	if got := msg.GetPayloadInt("big"); got != 9 {
		t.Errorf("expected 9, got %d", got)
	}
	if got := msg.GetPayloadInt("small"); got != 4 {
		t.Errorf("expected 4, got %d", got)
	}
	if !msg.GetPayloadBool("on") {
		t.Error("expected true")
	}

	if msg.GetPayloadString("missing") != "" || msg.GetPayloadInt("missing") != 0 || msg.GetPayloadBool("missing") {
		t.Error("expected zero values for missing keys")
	}

	empty := &Message{}
	if empty.GetPayloadString("x") != "" || empty.GetPayloadInt("x") != 0 || empty.GetPayloadBool("x") {
		t.Error("expected zero values on nil payload")
	}
}

func TestMessage_Clone(t *testing.T) {
	msg := EventMessage("doc:demo", EventHover, map[string]any{"eid": "e1"})
	clone := msg.Clone()

	clone.Payload["eid"] = "e2"
	if msg.GetPayloadString("eid") != "e1" {
		t.Error("expected clone payload to be independent")
	}
	if clone.Topic != msg.Topic || clone.Event != msg.Event || clone.Type != msg.Type {
		t.Error("expected clone to copy header fields")
	}
}

func TestReplyMessages(t *testing.T) {
	ok := OkReply("42", "doc:demo", map[string]any{"version": 3})
	if !ok.IsReply() {
		t.Error("expected reply type")
	}
	if ok.Ref != "42" {
		t.Errorf("expected ref 42, got %s", ok.Ref)
	}
	if ok.GetPayloadString("status") != "ok" {
		t.Errorf("expected status ok, got %v", ok.Payload["status"])
	}

	fail := ErrorReply("43", "doc:demo", "bad frame")
	if fail.GetPayloadString("status") != "error" {
		t.Errorf("expected status error, got %v", fail.Payload["status"])
	}
	response, _ := fail.Payload["response"].(map[string]any)
	if response["reason"] != "bad frame" {
		t.Errorf("expected reason, got %v", response)
	}
}

func TestConstructors(t *testing.T) {
	join := JoinMessage("demo", map[string]any{"doc_id": "demo"})
	if join.Type != MsgJoin || join.Topic != "doc:demo" || join.Event != EventJoin {
		t.Errorf("unexpected join message: %+v", join)
	}

	leave := LeaveMessage("doc:demo")
	if leave.Type != MsgLeave || leave.Event != EventLeave {
		t.Errorf("unexpected leave message: %+v", leave)
	}

	patch := PatchMessage("doc:demo", map[string]any{"version": 2})
	if patch.Type != MsgPatch || patch.Event != EventPatch {
		t.Errorf("unexpected patch message: %+v", patch)
	}

	cerr := CompileErrorMessage("doc:demo", map[string]any{"line": 3})
	if !cerr.IsError() || cerr.Event != EventCompileError {
		t.Errorf("unexpected compile error message: %+v", cerr)
	}

	hb := HeartbeatMessage()
	if !hb.IsHeartbeat() {
		t.Error("expected heartbeat type")
	}

	presence := PresenceMessage("doc:demo", map[string]any{"viewers": 2})
	if presence.Type != MsgPresence {
		t.Errorf("unexpected presence message: %+v", presence)
	}

	bc := BroadcastMessage("doc:demo", EventReload, nil)
	if bc.Type != MsgBroadcast || bc.Event != EventReload {
		t.Errorf("unexpected broadcast message: %+v", bc)
	}
}

func TestEnvelope(t *testing.T) {
	env := NewEnvelope()
	if !env.IsEmpty() {
		t.Error("expected empty envelope")
	}

	env.Add(HeartbeatMessage())
	env.Add(LeaveMessage("doc:demo"))
	if env.Count() != 2 {
		t.Errorf("expected 2 messages, got %d", env.Count())
	}

	data, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if data[0] != '[' {
		t.Errorf("expected JSON array, got %s", data)
	}

	var decoded Envelope
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decoded.Count() != 2 {
		t.Errorf("expected 2 messages after roundtrip, got %d", decoded.Count())
	}
}
