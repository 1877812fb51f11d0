package protocol

import (
	"reflect"
	"testing"
)

// FuzzJSONCodec fuzzes the JSON frame decoder and checks that anything it
// accepts survives an encode/decode roundtrip.
func FuzzJSONCodec(f *testing.F) {
	// Seed corpus with valid and edge-case inputs
	f.Add([]byte(`{"t":3,"ref":"1","topic":"doc:demo","event":"click","payload":{"eid":"e7"}}`))
	f.Add([]byte(`{"topic":"doc:demo","event":"propchange","payload":{"eid":"e2","property":"color","value":"#fff","kind":"style"}}`))
	f.Add([]byte(`{"topic":"doc:demo","event":"hover","payload":{"eid":"e1","inside":true,"box":{"x":1,"y":2,"w":3,"h":4}}}`))
	f.Add([]byte(`{"topic":"doc:demo","event":"join","payload":{"doc_id":"demo","source":"<p>Hi</p>"}}`))
	f.Add([]byte(`{"ref":"","topic":"","event":"","payload":null}`))
	f.Add([]byte(`{}`))
	f.Add([]byte(`[]`))
	f.Add([]byte(`null`))
	f.Add([]byte(``))
	f.Add([]byte(`{"ref":"999999999999","topic":"doc:very-long-document-name-that-goes-on","event":"setsource","payload":{"source":"<div><p>x</p></div>","nested":{"a":1}}}`))

	// Malformed inputs
	f.Add([]byte(`{malformed`))
	f.Add([]byte(`{"ref":"1",`))
	f.Add([]byte(`{"ref": 123}`)) // Wrong type
	f.Add([]byte(`{"t": 4000}`))  // Overflows uint8

	codec := NewJSONCodec()

	f.Fuzz(func(t *testing.T, data []byte) {
		msg, err := codec.Decode(data)
		if err != nil {
			// Invalid input is OK
			return
		}

		out, err := codec.Encode(msg)
		if err != nil {
			t.Errorf("failed to encode decoded message: %v", err)
			return
		}

		msg2, err := codec.Decode(out)
		if err != nil {
			t.Errorf("failed to re-parse serialized message: %v", err)
			return
		}

		if msg.Ref != msg2.Ref {
			t.Errorf("ref mismatch: %q != %q", msg.Ref, msg2.Ref)
		}
		if msg.Topic != msg2.Topic {
			t.Errorf("topic mismatch: %q != %q", msg.Topic, msg2.Topic)
		}
		if msg.Event != msg2.Event {
			t.Errorf("event mismatch: %q != %q", msg.Event, msg2.Event)
		}
		if msg.Type != msg2.Type {
			t.Errorf("type mismatch: %s != %s", msg.Type, msg2.Type)
		}
	})
}

// FuzzMsgPackCodec fuzzes the MessagePack frame decoder.
func FuzzMsgPackCodec(f *testing.F) {
	jsonCodec := NewJSONCodec()
	codec := NewMsgPackCodec()

	// Seed with real encoded frames
	for _, raw := range []string{
		`{"t":3,"ref":"1","topic":"doc:demo","event":"click","payload":{"eid":"e7"}}`,
		`{"topic":"doc:demo","event":"undo"}`,
		`{"topic":"jsxedit","event":"heartbeat"}`,
	} {
		if msg, err := jsonCodec.Decode([]byte(raw)); err == nil {
			if data, err := codec.Encode(msg); err == nil {
				f.Add(data)
			}
		}
	}
	f.Add([]byte{})
	f.Add([]byte{0xc0})
	f.Add([]byte{0xc1})
	f.Add([]byte{0x81, 0xa1, 't', 0x03})

	f.Fuzz(func(t *testing.T, data []byte) {
		msg, err := codec.Decode(data)
		if err != nil {
			return
		}

		out, err := codec.Encode(msg)
		if err != nil {
			return
		}

		msg2, err := codec.Decode(out)
		if err != nil {
			t.Errorf("failed to decode encoded message: %v", err)
			return
		}

		if !headersEqual(msg, msg2) {
			t.Errorf("roundtrip mismatch: %+v != %+v", msg, msg2)
		}
	})
}

func headersEqual(a, b *Message) bool {
	if a.Ref != b.Ref || a.JoinRef != b.JoinRef || a.Topic != b.Topic || a.Event != b.Event || a.Type != b.Type {
		return false
	}
	// Compare payloads loosely
	if len(a.Payload) != len(b.Payload) {
		return false
	}
	for k, v := range a.Payload {
		if !reflect.DeepEqual(v, b.Payload[k]) {
			return false
		}
	}
	return true
}
