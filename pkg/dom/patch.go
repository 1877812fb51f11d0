package dom

import (
	"fmt"

	"github.com/akshayaparida/react-component-editor-sub000/pkg/jsx"
)

// PatchKind identifies a mutation the browser mirror applies to its copy of
// the tree.
type PatchKind uint8

const (
	// PatchSetText replaces the element's text content.
	PatchSetText PatchKind = iota
	// PatchSetAttr sets one attribute.
	PatchSetAttr
	// PatchRemoveAttr removes one attribute.
	PatchRemoveAttr
	// PatchSetStyle sets one inline style declaration; empty value removes it.
	PatchSetStyle
	// PatchReplaceNode swaps the element's outer HTML.
	PatchReplaceNode
	// PatchInsertNode inserts HTML into a parent at an index.
	PatchInsertNode
	// PatchRemoveNode removes the element.
	PatchRemoveNode
)

func (k PatchKind) String() string {
	switch k {
	case PatchSetText:
		return "set_text"
	case PatchSetAttr:
		return "set_attr"
	case PatchRemoveAttr:
		return "remove_attr"
	case PatchSetStyle:
		return "set_style"
	case PatchReplaceNode:
		return "replace_node"
	case PatchInsertNode:
		return "insert_node"
	case PatchRemoveNode:
		return "remove_node"
	default:
		return fmt.Sprintf("unknown(%d)", k)
	}
}

// PatchOp is one mirror mutation, addressed by stable identity rather than
// tree position so patches stay valid regardless of surrounding edits.
type PatchOp struct {
	Kind PatchKind `json:"k" msgpack:"k"`

	// EID addresses the target element; for PatchInsertNode it is the
	// parent receiving the new child.
	EID jsx.EID `json:"eid" msgpack:"eid"`

	// Name is the attribute or camelCase style property for the attr and
	// style kinds.
	Name string `json:"n,omitempty" msgpack:"n,omitempty"`

	// Value carries text content, attribute or style values.
	Value string `json:"v,omitempty" msgpack:"v,omitempty"`

	// HTML is the serialized subtree for replace and insert.
	HTML string `json:"html,omitempty" msgpack:"html,omitempty"`

	// Index is the child position for PatchInsertNode.
	Index int `json:"i,omitempty" msgpack:"i,omitempty"`
}

// SetText builds a text replacement op.
func SetText(id jsx.EID, text string) PatchOp {
	return PatchOp{Kind: PatchSetText, EID: id, Value: text}
}

// SetAttr builds an attribute set op.
func SetAttr(id jsx.EID, name, value string) PatchOp {
	return PatchOp{Kind: PatchSetAttr, EID: id, Name: name, Value: value}
}

// RemoveAttr builds an attribute removal op.
func RemoveAttr(id jsx.EID, name string) PatchOp {
	return PatchOp{Kind: PatchRemoveAttr, EID: id, Name: name}
}

// SetStyle builds a style declaration op. An empty value clears the
// declaration.
func SetStyle(id jsx.EID, property, value string) PatchOp {
	return PatchOp{Kind: PatchSetStyle, EID: id, Name: property, Value: value}
}

// ReplaceNode builds an outer-HTML replacement op.
func ReplaceNode(id jsx.EID, n *Node) PatchOp {
	return PatchOp{Kind: PatchReplaceNode, EID: id, HTML: String(n)}
}

// InsertNode builds a child insertion op under parent at index.
func InsertNode(parent jsx.EID, index int, n *Node) PatchOp {
	return PatchOp{Kind: PatchInsertNode, EID: parent, Index: index, HTML: String(n)}
}

// RemoveNode builds a node removal op.
func RemoveNode(id jsx.EID) PatchOp {
	return PatchOp{Kind: PatchRemoveNode, EID: id}
}
