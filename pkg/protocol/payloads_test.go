package protocol

import (
	"errors"
	"testing"
)

func TestDecodePayload_PropChange(t *testing.T) {
	msg := EventMessage("doc:demo", EventPropChange, map[string]any{
		"eid":      "e4",
		"property": "fontSize",
		"value":    "18",
		"kind":     "style",
	})

	p, err := DecodePayload[PropChangePayload](msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.EID != "e4" || p.Property != "fontSize" || p.Value != "18" || p.Kind != "style" {
		t.Errorf("unexpected payload: %+v", p)
	}
}

func TestDecodePayload_HoverWithBox(t *testing.T) {
	msg := EventMessage("doc:demo", EventHover, map[string]any{
		"eid":    "e2",
		"inside": true,
		"box":    map[string]any{"x": 10.5, "y": 20.0, "w": 120.0, "h": 40.0},
	})

	p, err := DecodePayload[HoverPayload](msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.EID != "e2" || !p.Inside {
		t.Errorf("unexpected payload: %+v", p)
	}
	if p.Box.X != 10.5 || p.Box.Y != 20 || p.Box.W != 120 || p.Box.H != 40 {
		t.Errorf("unexpected box: %+v", p.Box)
	}
}

func TestDecodePayload_WeakTyping(t *testing.T) {
	// JSON numbers arrive as float64; values still decode into strings.
	msg := EventMessage("doc:demo", EventPropChange, map[string]any{
		"eid":      "e1",
		"property": "fontSize",
		"value":    float64(18),
		"kind":     "style",
	})

	p, err := DecodePayload[PropChangePayload](msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Value != "18" {
		t.Errorf("expected coerced string 18, got %q", p.Value)
	}
}

func TestDecodePayload_Join(t *testing.T) {
	msg := JoinMessage("demo", map[string]any{
		"doc_id": "demo",
		"source": "<p>Hi</p>",
		"name":   "ada",
	})

	p, err := DecodePayload[JoinPayload](msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.DocID != "demo" || p.Source != "<p>Hi</p>" || p.Name != "ada" {
		t.Errorf("unexpected payload: %+v", p)
	}
	if p.Token != "" {
		t.Errorf("expected empty token, got %q", p.Token)
	}
}

func TestDecodePayload_SetMode(t *testing.T) {
	msg := EventMessage("doc:demo", EventSetMode, map[string]any{"select": true})

	p, err := DecodePayload[SetModePayload](msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.Select {
		t.Error("expected select mode on")
	}
}

func TestDecodePayload_Empty(t *testing.T) {
	if _, err := DecodePayload[ClickPayload](&Message{}); !errors.Is(err, ErrEmptyPayload) {
		t.Errorf("expected ErrEmptyPayload, got %v", err)
	}
	if _, err := DecodePayload[ClickPayload](nil); !errors.Is(err, ErrEmptyPayload) {
		t.Errorf("expected ErrEmptyPayload, got %v", err)
	}
}
