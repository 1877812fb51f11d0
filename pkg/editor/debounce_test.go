package editor

import (
	"testing"
	"time"

	"github.com/akshayaparida/react-component-editor-sub000/pkg/mutate"
)

func newTestDebouncer(interval time.Duration) (*Debouncer, chan mutate.Edit) {
	fired := make(chan mutate.Edit, 16)
	d := NewDebouncer(interval, func(edit mutate.Edit) {
		fired <- edit
	})
	return d, fired
}

func waitForEdit(t *testing.T, fired chan mutate.Edit) mutate.Edit {
	t.Helper()
	select {
	case edit := <-fired:
		return edit
	case <-time.After(2 * time.Second):
		t.Fatal("expected an edit to fire")
		return mutate.Edit{}
	}
}

func expectNoEdit(t *testing.T, fired chan mutate.Edit, wait time.Duration) {
	t.Helper()
	select {
	case edit := <-fired:
		t.Fatalf("expected no edit to fire, got %+v", edit)
	case <-time.After(wait):
	}
}

func TestDebouncer_FiresAfterInterval(t *testing.T) {
	d, fired := newTestDebouncer(20 * time.Millisecond)
	defer d.Close()

	d.Push(mutate.Edit{EID: "e1", Property: "color", Value: "blue", Kind: mutate.KindStyle})

	edit := waitForEdit(t, fired)
	if edit.Value != "blue" {
		t.Errorf("expected fired value blue, got %s", edit.Value)
	}
	if d.Pending() != 0 {
		t.Errorf("expected no pending edits after fire, got %d", d.Pending())
	}
}

func TestDebouncer_CoalescesRapidPushes(t *testing.T) {
	d, fired := newTestDebouncer(50 * time.Millisecond)
	defer d.Close()

	for _, value := range []string{"#111", "#222", "#333"} {
		d.Push(mutate.Edit{EID: "e1", Property: "color", Value: value, Kind: mutate.KindStyle})
		time.Sleep(5 * time.Millisecond)
	}

	edit := waitForEdit(t, fired)
	if edit.Value != "#333" {
		t.Errorf("expected the latest value #333, got %s", edit.Value)
	}

	expectNoEdit(t, fired, 200*time.Millisecond)
}

func TestDebouncer_IndependentProperties(t *testing.T) {
	d, fired := newTestDebouncer(20 * time.Millisecond)
	defer d.Close()

	d.Push(mutate.Edit{EID: "e1", Property: "color", Value: "blue", Kind: mutate.KindStyle})
	d.Push(mutate.Edit{EID: "e1", Property: "padding", Value: "16px", Kind: mutate.KindStyle})

	seen := map[string]string{}
	for i := 0; i < 2; i++ {
		edit := waitForEdit(t, fired)
		seen[edit.Property] = edit.Value
	}
	if seen["color"] != "blue" || seen["padding"] != "16px" {
		t.Errorf("expected both properties to fire, got %v", seen)
	}
}

func TestDebouncer_Flush(t *testing.T) {
	d, fired := newTestDebouncer(10 * time.Second)
	defer d.Close()

	d.Push(mutate.Edit{EID: "e1", Property: "color", Value: "blue", Kind: mutate.KindStyle})
	d.Flush("e1", "color")

	edit := waitForEdit(t, fired)
	if edit.Value != "blue" {
		t.Errorf("expected flushed value blue, got %s", edit.Value)
	}

	// Flushing again is a no-op.
	d.Flush("e1", "color")
	expectNoEdit(t, fired, 50*time.Millisecond)
}

func TestDebouncer_FlushAll(t *testing.T) {
	d, fired := newTestDebouncer(10 * time.Second)
	defer d.Close()

	d.Push(mutate.Edit{EID: "e2", Property: "padding", Value: "16px", Kind: mutate.KindStyle})
	d.Push(mutate.Edit{EID: "e1", Property: "color", Value: "blue", Kind: mutate.KindStyle})
	d.Push(mutate.Edit{EID: "e1", Property: "textContent", Value: "Save", Kind: mutate.KindText})

	d.FlushAll()

	var got []mutate.Edit
	for i := 0; i < 3; i++ {
		got = append(got, waitForEdit(t, fired))
	}
	if got[0].EID != "e1" || got[0].Property != "color" {
		t.Errorf("expected e1/color first, got %s/%s", got[0].EID, got[0].Property)
	}
	if got[1].EID != "e1" || got[1].Property != "textContent" {
		t.Errorf("expected e1/textContent second, got %s/%s", got[1].EID, got[1].Property)
	}
	if got[2].EID != "e2" {
		t.Errorf("expected e2 last, got %s", got[2].EID)
	}
	if d.Pending() != 0 {
		t.Errorf("expected no pending edits after FlushAll, got %d", d.Pending())
	}
}

func TestDebouncer_Cancel(t *testing.T) {
	d, fired := newTestDebouncer(20 * time.Millisecond)
	defer d.Close()

	d.Push(mutate.Edit{EID: "e1", Property: "color", Value: "blue", Kind: mutate.KindStyle})
	d.Cancel("e1", "color")

	expectNoEdit(t, fired, 150*time.Millisecond)
	if d.Pending() != 0 {
		t.Errorf("expected no pending edits after Cancel, got %d", d.Pending())
	}
}

func TestDebouncer_CancelAll(t *testing.T) {
	d, fired := newTestDebouncer(20 * time.Millisecond)
	defer d.Close()

	d.Push(mutate.Edit{EID: "e1", Property: "color", Value: "blue", Kind: mutate.KindStyle})
	d.Push(mutate.Edit{EID: "e2", Property: "padding", Value: "16px", Kind: mutate.KindStyle})
	d.CancelAll()

	expectNoEdit(t, fired, 150*time.Millisecond)
}

func TestDebouncer_Close(t *testing.T) {
	d, fired := newTestDebouncer(20 * time.Millisecond)

	d.Push(mutate.Edit{EID: "e1", Property: "color", Value: "blue", Kind: mutate.KindStyle})
	d.Close()

	expectNoEdit(t, fired, 150*time.Millisecond)

	// Pushes after Close are ignored.
	d.Push(mutate.Edit{EID: "e1", Property: "color", Value: "red", Kind: mutate.KindStyle})
	expectNoEdit(t, fired, 150*time.Millisecond)

	// Closing twice is safe.
	d.Close()
}

func TestDebouncer_DefaultInterval(t *testing.T) {
	d := NewDebouncer(0, func(mutate.Edit) {})
	defer d.Close()

	if d.interval != DefaultDebounceInterval {
		t.Errorf("expected default interval %v, got %v", DefaultDebounceInterval, d.interval)
	}
}
