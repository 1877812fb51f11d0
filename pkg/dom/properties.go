package dom

import (
	"github.com/akshayaparida/react-component-editor-sub000/pkg/jsx"
)

// Browser defaults for the inherited properties the panel surfaces.
const (
	DefaultColor    = "#000000"
	DefaultFontSize = "16px"
)

// PropertySnapshot holds the effective values the property panel edits.
// Seeded on selection and refreshed after every remount; the panel never
// reads the tree directly.
type PropertySnapshot struct {
	Tag             string  `json:"tag" msgpack:"tag"`
	EID             jsx.EID `json:"eid" msgpack:"eid"`
	TextContent     string  `json:"text" msgpack:"text"`
	Color           string  `json:"color" msgpack:"color"`
	BackgroundColor string  `json:"backgroundColor" msgpack:"backgroundColor"`
	FontSize        string  `json:"fontSize" msgpack:"fontSize"`
	Padding         string  `json:"padding" msgpack:"padding"`
	BorderRadius    string  `json:"borderRadius" msgpack:"borderRadius"`
	Margin          string  `json:"margin" msgpack:"margin"`
	Gap             string  `json:"gap" msgpack:"gap"`
}

// ComputeProperties derives the target's effective property values from the
// inline style cascade: color and fontSize inherit down the ancestor chain
// from root, the box properties read only the target's own style. Unset
// inherited properties fall back to browser defaults, unset box properties
// stay empty.
func ComputeProperties(root, target *Node) PropertySnapshot {
	snap := PropertySnapshot{
		Tag:         target.Tag,
		EID:         target.EID,
		TextContent: TextContent(target),
		Color:       DefaultColor,
		FontSize:    DefaultFontSize,
	}

	// Inherited properties: every styled ancestor on the path to the
	// target overrides, nearest last.
	for _, n := range pathTo(root, target) {
		if v, ok := n.Style["color"]; ok && v != "" {
			snap.Color = v
		}
		if v, ok := n.Style["fontSize"]; ok && v != "" {
			snap.FontSize = v
		}
	}

	snap.BackgroundColor = target.Style["backgroundColor"]
	snap.Padding = target.Style["padding"]
	snap.BorderRadius = target.Style["borderRadius"]
	snap.Margin = target.Style["margin"]
	snap.Gap = target.Style["gap"]
	return snap
}

// Property reads one snapshot field by its camelCase property name.
// textContent returns the text; unknown names return "".
func (s PropertySnapshot) Property(name string) string {
	switch name {
	case "textContent":
		return s.TextContent
	case "color":
		return s.Color
	case "backgroundColor":
		return s.BackgroundColor
	case "fontSize":
		return s.FontSize
	case "padding":
		return s.Padding
	case "borderRadius":
		return s.BorderRadius
	case "margin":
		return s.Margin
	case "gap":
		return s.Gap
	}
	return ""
}

// SetProperty writes one snapshot field by name, returning false for
// unknown names.
func (s *PropertySnapshot) SetProperty(name, value string) bool {
	switch name {
	case "textContent":
		s.TextContent = value
	case "color":
		s.Color = value
	case "backgroundColor":
		s.BackgroundColor = value
	case "fontSize":
		s.FontSize = value
	case "padding":
		s.Padding = value
	case "borderRadius":
		s.BorderRadius = value
	case "margin":
		s.Margin = value
	case "gap":
		s.Gap = value
	default:
		return false
	}
	return true
}

// pathTo returns the nodes from root down to target inclusive, or nil when
// target is not in the tree.
func pathTo(root, target *Node) []*Node {
	if root == nil || target == nil {
		return nil
	}
	if root == target {
		return []*Node{root}
	}
	for _, child := range root.Children {
		if path := pathTo(child, target); path != nil {
			return append([]*Node{root}, path...)
		}
	}
	return nil
}
