package editor

import (
	"errors"

	"github.com/akshayaparida/react-component-editor-sub000/pkg/dom"
	"github.com/akshayaparida/react-component-editor-sub000/pkg/jsx"
)

// ErrSelectionLost reports that the selected element no longer exists in
// the rendered tree, typically after a source replacement removed it.
var ErrSelectionLost = errors.New("selected element no longer exists")

// Selection is the element a session currently has selected, along with
// the property snapshot its panel was seeded from.
type Selection struct {
	EID      jsx.EID              `json:"eid" msgpack:"e"`
	Snapshot dom.PropertySnapshot `json:"snapshot" msgpack:"p"`
}

// Select resolves an element in the rendered tree and captures its
// property snapshot. It returns ErrSelectionLost when no element carries
// the identity.
func Select(root *dom.Node, id jsx.EID) (*Selection, error) {
	target := dom.Resolve(root, id)
	if target == nil {
		return nil, ErrSelectionLost
	}
	return &Selection{
		EID:      id,
		Snapshot: dom.ComputeProperties(root, target),
	}, nil
}

// Refresh re-resolves the selection against a tree, as after a
// re-render. The snapshot is recomputed so the panel tracks values that
// changed underneath it.
func (s *Selection) Refresh(root *dom.Node) error {
	target := dom.Resolve(root, s.EID)
	if target == nil {
		return ErrSelectionLost
	}
	s.Snapshot = dom.ComputeProperties(root, target)
	return nil
}
