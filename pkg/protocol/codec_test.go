package protocol

import (
	"errors"
	"testing"
)

func TestJSONCodec_RoundTrip(t *testing.T) {
	codec := NewJSONCodec()
	msg := EventMessage("doc:demo", EventClick, map[string]any{"eid": "e7"}).WithRef("9")

	data, err := codec.Encode(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := codec.Decode(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Type != MsgEvent || got.Topic != "doc:demo" || got.Event != EventClick || got.Ref != "9" {
		t.Errorf("roundtrip mismatch: %+v", got)
	}
	if got.GetPayloadString("eid") != "e7" {
		t.Errorf("expected eid e7, got %v", got.Payload)
	}
}

func TestJSONCodec_InfersType(t *testing.T) {
	codec := NewJSONCodec()
	cases := []struct {
		raw  string
		want MessageType
	}{
		{`{"topic":"doc:demo","event":"click"}`, MsgEvent},
		{`{"topic":"doc:demo","event":"join"}`, MsgJoin},
		{`{"topic":"jsxedit","event":"heartbeat"}`, MsgHeartbeat},
		{`{"topic":"doc:demo"}`, MsgUnknown},
	}
	for _, tc := range cases {
		msg, err := codec.Decode([]byte(tc.raw))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if msg.Type != tc.want {
			t.Errorf("%s: expected %s, got %s", tc.raw, tc.want, msg.Type)
		}
	}
}

func TestJSONCodec_NilMessage(t *testing.T) {
	codec := NewJSONCodec()
	if _, err := codec.Encode(nil); !errors.Is(err, ErrInvalidMessage) {
		t.Errorf("expected ErrInvalidMessage, got %v", err)
	}
}

func TestMsgPackCodec_RoundTrip(t *testing.T) {
	codec := NewMsgPackCodec()
	msg := EventMessage("doc:demo", EventPropChange, map[string]any{
		"eid":      "e3",
		"property": "color",
		"value":    "#ff0000",
		"kind":     "style",
	})

	data, err := codec.Encode(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := codec.Decode(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Type != MsgEvent || got.Event != EventPropChange {
		t.Errorf("roundtrip mismatch: %+v", got)
	}
	if got.GetPayloadString("property") != "color" || got.GetPayloadString("value") != "#ff0000" {
		t.Errorf("payload mismatch: %v", got.Payload)
	}
}

func TestMsgPackCodec_InvalidData(t *testing.T) {
	codec := NewMsgPackCodec()
	if _, err := codec.Decode([]byte{0xc1}); err == nil {
		t.Error("expected error for reserved msgpack byte")
	}
}

func TestCodecRegistry(t *testing.T) {
	reg := NewCodecRegistry()

	if c, ok := reg.Get("json"); !ok || c.Name() != "json" {
		t.Error("expected json codec registered")
	}
	if c, ok := reg.Get("msgpack"); !ok || c.Name() != "msgpack" {
		t.Error("expected msgpack codec registered")
	}
	if _, ok := reg.Get("cbor"); ok {
		t.Error("expected unknown codec to be absent")
	}

	if reg.Default().Name() != "json" {
		t.Errorf("expected json default, got %s", reg.Default().Name())
	}

	if err := reg.SetDefault("msgpack"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reg.Default().Name() != "msgpack" {
		t.Errorf("expected msgpack default, got %s", reg.Default().Name())
	}

	if err := reg.SetDefault("cbor"); !errors.Is(err, ErrUnknownCodec) {
		t.Errorf("expected ErrUnknownCodec, got %v", err)
	}
}

func TestPackageEncodeDecode(t *testing.T) {
	data, err := Encode(HeartbeatMessage())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msg, err := Decode(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !msg.IsHeartbeat() {
		t.Errorf("expected heartbeat, got %+v", msg)
	}
}
