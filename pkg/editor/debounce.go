package editor

import (
	"sort"
	"sync"
	"time"

	"github.com/akshayaparida/react-component-editor-sub000/pkg/jsx"
	"github.com/akshayaparida/react-component-editor-sub000/pkg/mutate"
)

// DefaultDebounceInterval is how long a property must stay untouched
// before its pending edit is committed to source.
const DefaultDebounceInterval = 300 * time.Millisecond

type editKey struct {
	eid      jsx.EID
	property string
}

type pendingEdit struct {
	timer *time.Timer
	edit  mutate.Edit
}

// Debouncer coalesces rapid property changes into one source commit per
// (element, property) pair. Each Push resets the pair's timer; when it
// fires, the latest value is handed to the fire callback. Slider drags
// and color picker scrubs thus settle as a single edit.
type Debouncer struct {
	mu       sync.Mutex
	interval time.Duration
	fire     func(mutate.Edit)
	pending  map[editKey]*pendingEdit
	closed   bool
}

// NewDebouncer creates a debouncer that invokes fire once per settled
// edit. A non-positive interval falls back to DefaultDebounceInterval.
func NewDebouncer(interval time.Duration, fire func(mutate.Edit)) *Debouncer {
	if interval <= 0 {
		interval = DefaultDebounceInterval
	}
	return &Debouncer{
		interval: interval,
		fire:     fire,
		pending:  make(map[editKey]*pendingEdit),
	}
}

// Push records the latest value for an edit's (element, property) pair
// and restarts its timer. Edits to different pairs debounce
// independently.
func (d *Debouncer) Push(edit mutate.Edit) {
	key := editKey{eid: edit.EID, property: edit.Property}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}

	if p, ok := d.pending[key]; ok {
		p.edit = edit
		p.timer.Reset(d.interval)
		return
	}

	p := &pendingEdit{edit: edit}
	p.timer = time.AfterFunc(d.interval, func() {
		d.expire(key)
	})
	d.pending[key] = p
}

// expire fires the timer for a key: the pending entry is removed and the
// latest edit handed to the callback. A Push that lands between the
// timer firing and the lock being taken wins and is left pending.
func (d *Debouncer) expire(key editKey) {
	d.mu.Lock()
	p, ok := d.pending[key]
	if !ok || d.closed {
		d.mu.Unlock()
		return
	}
	if p.timer.Stop() {
		// A concurrent Push reset the timer after it fired; the new
		// value gets its own full interval.
		d.mu.Unlock()
		p.timer.Reset(d.interval)
		return
	}
	delete(d.pending, key)
	edit := p.edit
	d.mu.Unlock()

	d.fire(edit)
}

// Flush commits the pending edit for one pair immediately, if any.
func (d *Debouncer) Flush(eid jsx.EID, property string) {
	key := editKey{eid: eid, property: property}

	d.mu.Lock()
	p, ok := d.pending[key]
	if !ok || d.closed {
		d.mu.Unlock()
		return
	}
	p.timer.Stop()
	delete(d.pending, key)
	edit := p.edit
	d.mu.Unlock()

	d.fire(edit)
}

// FlushAll commits every pending edit immediately, ordered by element
// then property. Sessions call this before persisting on close so no
// trailing edit is lost.
func (d *Debouncer) FlushAll() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	edits := make([]mutate.Edit, 0, len(d.pending))
	for _, p := range d.pending {
		p.timer.Stop()
		edits = append(edits, p.edit)
	}
	d.pending = make(map[editKey]*pendingEdit)
	d.mu.Unlock()

	sortEdits(edits)
	for _, edit := range edits {
		d.fire(edit)
	}
}

// Cancel drops the pending edit for one pair without firing.
func (d *Debouncer) Cancel(eid jsx.EID, property string) {
	key := editKey{eid: eid, property: property}

	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.pending[key]; ok {
		p.timer.Stop()
		delete(d.pending, key)
	}
}

// CancelAll drops every pending edit without firing, as when the whole
// source is replaced and in-flight edits no longer apply.
func (d *Debouncer) CancelAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, p := range d.pending {
		p.timer.Stop()
	}
	d.pending = make(map[editKey]*pendingEdit)
}

// Pending reports how many edits are waiting on timers.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Close cancels all timers and rejects further pushes. It does not fire;
// callers wanting trailing edits committed call FlushAll first.
func (d *Debouncer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	for _, p := range d.pending {
		p.timer.Stop()
	}
	d.pending = nil
}

func sortEdits(edits []mutate.Edit) {
	sort.Slice(edits, func(i, j int) bool {
		if edits[i].EID != edits[j].EID {
			return edits[i].EID < edits[j].EID
		}
		return edits[i].Property < edits[j].Property
	})
}
