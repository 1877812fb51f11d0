// Package editor runs the selection and edit loop behind each websocket
// connection: one session goroutine owning the rendered tree, the
// current selection, pending property edits and their debounce timers.
package editor

import (
	"sort"

	"github.com/akshayaparida/react-component-editor-sub000/pkg/dom"
	"github.com/akshayaparida/react-component-editor-sub000/pkg/jsx"
	"github.com/akshayaparida/react-component-editor-sub000/pkg/mutate"
)

// Changeset tracks edits to the selected element: the baseline property
// values read from the rendered tree in Data, and pending edits not yet
// settled into source in Changes. An edit that returns a property to its
// baseline value cancels the pending change instead of recording one.
type Changeset struct {
	// EID is the element these edits target.
	EID jsx.EID

	// Data is the baseline snapshot the panel was seeded from.
	Data map[string]string

	// Changes are pending edits keyed by property.
	Changes map[string]mutate.Edit
}

// NewChangeset creates a changeset for the element with the given
// baseline values. The baseline map is copied.
func NewChangeset(eid jsx.EID, baseline map[string]string) *Changeset {
	data := make(map[string]string, len(baseline))
	for k, v := range baseline {
		data[k] = v
	}

	return &Changeset{
		EID:     eid,
		Data:    data,
		Changes: make(map[string]mutate.Edit),
	}
}

// Baseline flattens a property snapshot into changeset baseline values,
// keyed the way the panel and the mutator name properties.
func Baseline(snap dom.PropertySnapshot) map[string]string {
	return map[string]string{
		"color":           snap.Color,
		"backgroundColor": snap.BackgroundColor,
		"fontSize":        snap.FontSize,
		"padding":         snap.Padding,
		"borderRadius":    snap.BorderRadius,
		"margin":          snap.Margin,
		"gap":             snap.Gap,
		"textContent":     snap.TextContent,
	}
}

// Put records an edit. It returns false when the value matches the
// baseline, in which case any pending change for the property is dropped
// and nothing needs to reach the source.
func (cs *Changeset) Put(edit mutate.Edit) bool {
	if base, ok := cs.Data[edit.Property]; ok && base == edit.Value {
		delete(cs.Changes, edit.Property)
		return false
	}
	cs.Changes[edit.Property] = edit
	return true
}

// GetChange retrieves the pending edit for a property.
func (cs *Changeset) GetChange(property string) (mutate.Edit, bool) {
	edit, ok := cs.Changes[property]
	return edit, ok
}

// Value returns the effective value for a property: the pending edit if
// one exists, otherwise the baseline.
func (cs *Changeset) Value(property string) string {
	if edit, ok := cs.Changes[property]; ok {
		return edit.Value
	}
	return cs.Data[property]
}

// Settle folds the pending edit for a property into the baseline after
// it reached the source, and returns it.
func (cs *Changeset) Settle(property string) (mutate.Edit, bool) {
	edit, ok := cs.Changes[property]
	if !ok {
		return mutate.Edit{}, false
	}
	delete(cs.Changes, property)
	cs.Data[property] = edit.Value
	return edit, true
}

// Discard drops the pending edit for a property without folding it into
// the baseline, as when the mutation turned out to be a no-op.
func (cs *Changeset) Discard(property string) {
	delete(cs.Changes, property)
}

// Reseed replaces the baseline wholesale after a remount. Pending edits
// that the new baseline already reflects are dropped.
func (cs *Changeset) Reseed(baseline map[string]string) {
	data := make(map[string]string, len(baseline))
	for k, v := range baseline {
		data[k] = v
	}
	cs.Data = data

	for property, edit := range cs.Changes {
		if base, ok := data[property]; ok && base == edit.Value {
			delete(cs.Changes, property)
		}
	}
}

// HasChanges returns true if any edit is pending.
func (cs *Changeset) HasChanges() bool {
	return len(cs.Changes) > 0
}

// Pending returns the pending edits ordered by property name.
func (cs *Changeset) Pending() []mutate.Edit {
	if len(cs.Changes) == 0 {
		return nil
	}

	edits := make([]mutate.Edit, 0, len(cs.Changes))
	for _, edit := range cs.Changes {
		edits = append(edits, edit)
	}
	sort.Slice(edits, func(i, j int) bool {
		return edits[i].Property < edits[j].Property
	})
	return edits
}

// View returns the merged panel view: baseline values overlaid with
// pending edits.
func (cs *Changeset) View() map[string]string {
	view := make(map[string]string, len(cs.Data))
	for k, v := range cs.Data {
		view[k] = v
	}
	for property, edit := range cs.Changes {
		view[property] = edit.Value
	}
	return view
}
