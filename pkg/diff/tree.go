// Package diff computes minimal patch sequences between two rendered trees.
// Nodes are matched by stable identity, never by position, so edits around
// an element do not invalidate patches addressed to it.
package diff

import (
	"sync/atomic"

	"github.com/akshayaparida/react-component-editor-sub000/pkg/dom"
	"github.com/akshayaparida/react-component-editor-sub000/pkg/jsx"
)

// Stats tracks differ activity with atomics, safe to read concurrently.
type Stats struct {
	Diffs    atomic.Int64
	Ops      atomic.Int64
	Replaces atomic.Int64
}

var stats Stats

// Statistics returns the package-wide differ counters.
func Statistics() *Stats {
	return &stats
}

// Tree diffs old against new and returns the ops that transform the mirror
// of old into new. A nil old produces a single replace of the whole
// container; identical trees produce no ops.
func Tree(old, new *dom.Node) []dom.PatchOp {
	stats.Diffs.Add(1)
	var ops []dom.PatchOp
	if new == nil {
		if old != nil {
			ops = append(ops, dom.RemoveNode(old.EID))
		}
		return record(ops)
	}
	if old == nil {
		return record([]dom.PatchOp{dom.ReplaceNode("", new)})
	}
	diffNode(&ops, old, new)
	return record(ops)
}

func record(ops []dom.PatchOp) []dom.PatchOp {
	stats.Ops.Add(int64(len(ops)))
	for _, op := range ops {
		if op.Kind == dom.PatchReplaceNode {
			stats.Replaces.Add(1)
		}
	}
	return ops
}

// diffNode compares two nodes assumed to be the same logical element.
func diffNode(ops *[]dom.PatchOp, old, new *dom.Node) {
	if old.Tag != new.Tag || old.EID != new.EID {
		*ops = append(*ops, dom.ReplaceNode(old.EID, new))
		return
	}

	diffAttrs(ops, old, new)
	diffStyle(ops, old, new)

	oldText, oldSimple := textOnlyContent(old)
	newText, newSimple := textOnlyContent(new)
	if oldSimple && newSimple {
		if oldText != newText {
			*ops = append(*ops, dom.SetText(new.EID, newText))
		}
		return
	}

	diffChildren(ops, old, new)
}

func diffAttrs(ops *[]dom.PatchOp, old, new *dom.Node) {
	for name, value := range new.Attrs {
		if prev, ok := old.Attrs[name]; !ok || prev != value {
			*ops = append(*ops, dom.SetAttr(new.EID, name, value))
		}
	}
	for name := range old.Attrs {
		if _, ok := new.Attrs[name]; !ok {
			*ops = append(*ops, dom.RemoveAttr(new.EID, name))
		}
	}
}

func diffStyle(ops *[]dom.PatchOp, old, new *dom.Node) {
	for prop, value := range new.Style {
		if prev, ok := old.Style[prop]; !ok || prev != value {
			*ops = append(*ops, dom.SetStyle(new.EID, prop, value))
		}
	}
	for prop := range old.Style {
		if _, ok := new.Style[prop]; !ok {
			*ops = append(*ops, dom.SetStyle(new.EID, prop, ""))
		}
	}
}

// diffChildren reconciles element children by identity. Insertions and
// removals patch surgically; a change in the relative order of surviving
// children, or any text change among mixed children, falls back to
// replacing the parent, which is always correct.
func diffChildren(ops *[]dom.PatchOp, old, new *dom.Node) {
	oldByID := make(map[jsx.EID]*dom.Node)
	var oldOrder []jsx.EID
	for _, child := range old.Children {
		if !child.IsText() && child.EID != "" {
			oldByID[child.EID] = child
			oldOrder = append(oldOrder, child.EID)
		}
	}

	var newOrder []jsx.EID
	for _, child := range new.Children {
		if !child.IsText() && child.EID != "" {
			newOrder = append(newOrder, child.EID)
		}
	}

	if mixedTextChanged(old, new) {
		replaceParent(ops, old, new)
		return
	}

	// Surviving children must keep their relative order for surgical
	// patching.
	if !sameRelativeOrder(oldOrder, newOrder, oldByID) {
		replaceParent(ops, old, new)
		return
	}

	index := 0
	for _, child := range new.Children {
		if child.IsText() {
			index++
			continue
		}
		if prev, ok := oldByID[child.EID]; ok {
			diffNode(ops, prev, child)
			delete(oldByID, child.EID)
		} else {
			*ops = append(*ops, dom.InsertNode(new.EID, index, child))
		}
		index++
	}
	for _, id := range oldOrder {
		if _, stale := oldByID[id]; stale {
			*ops = append(*ops, dom.RemoveNode(id))
		}
	}
}

func replaceParent(ops *[]dom.PatchOp, old, new *dom.Node) {
	*ops = append(*ops, dom.ReplaceNode(old.EID, new))
}

// sameRelativeOrder reports whether the ids shared by both lists appear in
// the same order.
func sameRelativeOrder(oldOrder, newOrder []jsx.EID, oldByID map[jsx.EID]*dom.Node) bool {
	var oldShared []jsx.EID
	inNew := make(map[jsx.EID]bool, len(newOrder))
	for _, id := range newOrder {
		inNew[id] = true
	}
	for _, id := range oldOrder {
		if inNew[id] {
			oldShared = append(oldShared, id)
		}
	}
	var newShared []jsx.EID
	for _, id := range newOrder {
		if _, ok := oldByID[id]; ok {
			newShared = append(newShared, id)
		}
	}
	if len(oldShared) != len(newShared) {
		return false
	}
	for i := range oldShared {
		if oldShared[i] != newShared[i] {
			return false
		}
	}
	return true
}

// textOnlyContent returns the node's text when all its children are text
// nodes (or it has none).
func textOnlyContent(n *dom.Node) (string, bool) {
	text := ""
	for _, child := range n.Children {
		if !child.IsText() {
			return "", false
		}
		if text != "" {
			text += " "
		}
		text += child.Text
	}
	return text, true
}

// mixedTextChanged reports whether text children differ between two nodes
// that also have element children.
func mixedTextChanged(old, new *dom.Node) bool {
	oldText := collectText(old)
	newText := collectText(new)
	if len(oldText) != len(newText) {
		return true
	}
	for i := range oldText {
		if oldText[i] != newText[i] {
			return true
		}
	}
	return false
}

func collectText(n *dom.Node) []string {
	var out []string
	for _, child := range n.Children {
		if child.IsText() {
			out = append(out, child.Text)
		}
	}
	return out
}
