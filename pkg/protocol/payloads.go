package protocol

import (
	"errors"

	"github.com/mitchellh/mapstructure"
)

// ErrEmptyPayload is returned when decoding a message without a payload.
var ErrEmptyPayload = errors.New("empty payload")

// Box is a bounding rectangle in canvas coordinates, reported by the
// client for the hovered or clicked element.
type Box struct {
	X float64 `json:"x" mapstructure:"x"`
	Y float64 `json:"y" mapstructure:"y"`
	W float64 `json:"w" mapstructure:"w"`
	H float64 `json:"h" mapstructure:"h"`
}

// JoinPayload opens a document. Source seeds the document when it does
// not exist yet; Token restores a previous session.
type JoinPayload struct {
	DocID  string `json:"doc_id" mapstructure:"doc_id"`
	Source string `json:"source" mapstructure:"source"`
	Token  string `json:"token,omitempty" mapstructure:"token"`
	Name   string `json:"name,omitempty" mapstructure:"name"`
}

// HoverPayload reports the pointer moving over an element in the canvas.
// Inside is false when the pointer left the container.
type HoverPayload struct {
	EID    string `json:"eid" mapstructure:"eid"`
	Box    Box    `json:"box" mapstructure:"box"`
	Inside bool   `json:"inside" mapstructure:"inside"`
}

// ClickPayload reports a click on an element in the canvas.
type ClickPayload struct {
	EID    string `json:"eid" mapstructure:"eid"`
	Box    Box    `json:"box" mapstructure:"box"`
	Inside bool   `json:"inside" mapstructure:"inside"`
}

// PropChangePayload carries one property edit from the panel.
// Kind is one of "style", "text" or "attribute".
type PropChangePayload struct {
	EID      string `json:"eid" mapstructure:"eid"`
	Property string `json:"property" mapstructure:"property"`
	Value    string `json:"value" mapstructure:"value"`
	Kind     string `json:"kind" mapstructure:"kind"`
}

// SetSourcePayload replaces the whole document source, as when the user
// pastes into the source pane.
type SetSourcePayload struct {
	Source string `json:"source" mapstructure:"source"`
}

// SetModePayload toggles select mode.
type SetModePayload struct {
	Select bool `json:"select" mapstructure:"select"`
}

// DecodePayload decodes a message payload into a typed struct. Numeric
// wire values are coerced to the struct's field types, so JSON numbers
// decode into ints and floats alike.
func DecodePayload[T any](msg *Message) (T, error) {
	var out T
	if msg == nil || msg.Payload == nil {
		return out, ErrEmptyPayload
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return out, err
	}
	if err := dec.Decode(msg.Payload); err != nil {
		return out, err
	}
	return out, nil
}
