package editor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/akshayaparida/react-component-editor-sub000/pkg/a11y"
	"github.com/akshayaparida/react-component-editor-sub000/pkg/audit"
	"github.com/akshayaparida/react-component-editor-sub000/pkg/dom"
	"github.com/akshayaparida/react-component-editor-sub000/pkg/js"
	"github.com/akshayaparida/react-component-editor-sub000/pkg/jsx"
	"github.com/akshayaparida/react-component-editor-sub000/pkg/limits"
	"github.com/akshayaparida/react-component-editor-sub000/pkg/logging"
	"github.com/akshayaparida/react-component-editor-sub000/pkg/metrics"
	"github.com/akshayaparida/react-component-editor-sub000/pkg/mutate"
	"github.com/akshayaparida/react-component-editor-sub000/pkg/presence"
	"github.com/akshayaparida/react-component-editor-sub000/pkg/preview"
	"github.com/akshayaparida/react-component-editor-sub000/pkg/protocol"
	"github.com/akshayaparida/react-component-editor-sub000/pkg/pubsub"
	"github.com/akshayaparida/react-component-editor-sub000/pkg/recovery"
	"github.com/akshayaparida/react-component-editor-sub000/pkg/state"
	"github.com/akshayaparida/react-component-editor-sub000/pkg/style"
	"github.com/akshayaparida/react-component-editor-sub000/pkg/tracing"
	"github.com/akshayaparida/react-component-editor-sub000/pkg/transport"
)

// DefaultSource seeds a document joined without any initial source.
const DefaultSource = `<div style={{padding: '24px', fontFamily: 'sans-serif'}}>
  <h1 style={{color: '#333333'}}>Hello</h1>
  <p>Click an element to edit its properties.</p>
</div>`

const defaultMailboxSize = 64

// Config wires a session to its collaborators. Transport, Store and Bus
// are required; everything else has a working default.
type Config struct {
	Transport transport.Transport
	Store     *state.Store
	Bus       *pubsub.Bus

	// Presence is the per-document viewer registry, shared across
	// sessions. Nil gets a private registry, fine for single-session
	// use and tests.
	Presence *presence.Registry

	// Renderer owns this session's live mount. Nil gets a default
	// renderer. Renderers are session-confined and must not be shared.
	Renderer *preview.Renderer

	// Limiter budgets upstream events per session. Nil disables
	// limiting. Hover is exempt; it tracks the pointer.
	Limiter limits.RateLimiter

	// Recovery stashes session state for reconnects. Nil disables it.
	Recovery *recovery.Manager

	Audit  audit.Logger
	Tracer *tracing.Tracer
	Logger logging.Logger
	Linter *a11y.Linter

	// DebounceInterval is how long a property edit must rest before it
	// is committed to source. Zero means DefaultDebounceInterval.
	DebounceInterval time.Duration

	// MailboxSize is the depth of the internal event queue.
	MailboxSize int

	// RemoteAddr is the peer address, recorded in the audit trail.
	RemoteAddr string
}

type itemKind uint8

const (
	itemFrame itemKind = iota
	itemSettled
	itemBus
)

// mailboxItem is one unit of work for the session goroutine: a client
// frame, a settled debounced edit, or a frame from the document bus.
type mailboxItem struct {
	kind itemKind
	msg  *protocol.Message
	edit mutate.Edit
}

// Session drives the edit loop for one connected browser. All document
// state it owns, the renderer, the selection, the changeset and the
// debounce timers, is confined to the Run goroutine: timers and bus
// subscriptions deliver into the mailbox instead of touching state.
type Session struct {
	id         string
	transport  transport.Transport
	store      *state.Store
	bus        *pubsub.Bus
	registry   *presence.Registry
	limiter    limits.RateLimiter
	recovery   *recovery.Manager
	auditLog   audit.Logger
	tracer     *tracing.Tracer
	log        logging.Logger
	linter     *a11y.Linter
	remoteAddr string

	mailbox   chan mailboxItem
	closeCh   chan struct{}
	closeOnce sync.Once
	done      chan struct{}

	// Everything below is owned by the Run goroutine.
	ctx           context.Context
	renderer      *preview.Renderer
	debouncer     *Debouncer
	docID         string
	topic         string
	joined        bool
	joinRef       string
	version       uint64
	selectMode    bool
	selection     *Selection
	changeset     *Changeset
	selectionLost bool
	tracker       *presence.Tracker
	busSub        *pubsub.Subscription
	lintIssues    []a11y.Issue
	lastLint      int
}

// NewSession creates a session over a connected transport. It does not
// start the loop; call Run.
func NewSession(cfg Config) (*Session, error) {
	if cfg.Transport == nil {
		return nil, errors.New("editor: transport is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("editor: store is required")
	}
	if cfg.Bus == nil {
		return nil, errors.New("editor: bus is required")
	}
	if cfg.Presence == nil {
		cfg.Presence = presence.NewRegistry()
	}
	if cfg.Renderer == nil {
		cfg.Renderer = preview.NewRenderer()
	}
	if cfg.Audit == nil {
		cfg.Audit = audit.NewNopLogger()
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.DefaultLogger
	}
	if cfg.Linter == nil {
		cfg.Linter = a11y.NewLinter()
	}
	if cfg.MailboxSize <= 0 {
		cfg.MailboxSize = defaultMailboxSize
	}

	id := uuid.NewString()
	s := &Session{
		id:         id,
		transport:  cfg.Transport,
		store:      cfg.Store,
		bus:        cfg.Bus,
		registry:   cfg.Presence,
		limiter:    cfg.Limiter,
		recovery:   cfg.Recovery,
		auditLog:   cfg.Audit,
		tracer:     cfg.Tracer,
		log:        cfg.Logger.With(logging.Session(id)),
		linter:     cfg.Linter,
		remoteAddr: cfg.RemoteAddr,
		mailbox:    make(chan mailboxItem, cfg.MailboxSize),
		closeCh:    make(chan struct{}),
		done:       make(chan struct{}),
		ctx:        context.Background(),
		renderer:   cfg.Renderer,
		selectMode: true,
	}
	s.debouncer = NewDebouncer(cfg.DebounceInterval, s.postSettled)
	s.renderer.OnRemount(s.onRemount)
	return s, nil
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// Done is closed when the loop has exited and teardown finished.
func (s *Session) Done() <-chan struct{} { return s.done }

// Close stops the loop. Safe to call from any goroutine, repeatedly.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.closeCh)
	})
}

// Run processes frames until the transport closes, the context is
// canceled or Close is called. It owns all session state; nothing else
// may touch it while Run is live.
func (s *Session) Run(ctx context.Context) error {
	s.ctx = ctx
	metrics.SessionOpened()
	defer metrics.SessionClosed()
	defer close(s.done)
	defer s.teardown()

	s.log.Info("session started",
		logging.String("transport", string(s.transport.Kind())),
		logging.String("remote", s.remoteAddr))

	for {
		// Mounts replaced during the previous turn are dropped now, a
		// full turn after anything could still be reading them.
		s.renderer.Retired()

		select {
		case msg := <-s.transport.Receive():
			s.dispatch(mailboxItem{kind: itemFrame, msg: msg})
		case item := <-s.mailbox:
			s.dispatch(item)
		case <-s.transport.CloseChan():
			s.log.Info("transport closed")
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-s.closeCh:
			return nil
		}
	}
}

// postSettled moves a fired debounce timer into the mailbox so the
// commit runs on the session goroutine.
func (s *Session) postSettled(edit mutate.Edit) {
	select {
	case s.mailbox <- mailboxItem{kind: itemSettled, edit: edit}:
	case <-s.closeCh:
	}
}

// onBusMessage delivers document broadcasts from other sessions into
// the mailbox.
func (s *Session) onBusMessage(msg *protocol.Message) {
	select {
	case s.mailbox <- mailboxItem{kind: itemBus, msg: msg}:
	case <-s.closeCh:
	}
}

func (s *Session) dispatch(item mailboxItem) {
	timer := metrics.Global.EventLatency.Timer()
	defer timer.Stop()
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordPanic()
			s.log.Error("session handler panicked", logging.Any("panic", r))
		}
	}()

	switch item.kind {
	case itemFrame:
		s.handleFrame(item.msg)
	case itemSettled:
		s.settle(item.edit)
	case itemBus:
		s.handleBusFrame(item.msg)
	}
}

func (s *Session) handleFrame(msg *protocol.Message) {
	if msg == nil {
		return
	}
	metrics.EventReceived(msg.Event)

	switch msg.Type {
	case protocol.MsgJoin:
		s.handleJoin(msg)
	case protocol.MsgLeave:
		s.handleLeave(msg)
	case protocol.MsgHeartbeat:
		s.handleHeartbeat(msg)
	case protocol.MsgEvent:
		s.handleEvent(msg)
	default:
		s.log.Debug("unexpected frame",
			logging.String("type", msg.Type.String()),
			logging.String("event", msg.Event))
	}
}

func (s *Session) handleEvent(msg *protocol.Message) {
	if !s.joined {
		s.reply(msg, protocol.ErrorReply(msg.Ref, msg.Topic, "join a document first"))
		return
	}
	if msg.Event != protocol.EventHover && s.limiter != nil && !s.limiter.Allow(s.id) {
		metrics.RecordError("rate_limited")
		audit.LogRateLimited(s.auditLog, s.docID, s.id, msg.Event)
		s.log.Warn("event dropped by rate limit", logging.String("event", msg.Event))
		return
	}

	switch msg.Event {
	case protocol.EventHover:
		s.handleHover(msg)
	case protocol.EventClick:
		s.handleClick(msg)
	case protocol.EventPropChange:
		s.handlePropChange(msg)
	case protocol.EventSetSource:
		s.handleSetSource(msg)
	case protocol.EventSetMode:
		s.handleSetMode(msg)
	case protocol.EventUndo:
		s.handleUndo(msg)
	default:
		s.log.Debug("unknown event", logging.String("event", msg.Event))
	}
}

func (s *Session) handleJoin(msg *protocol.Message) {
	docID, ok := protocol.TopicDocID(msg.Topic)
	if !ok {
		s.reply(msg, protocol.ErrorReply(msg.Ref, msg.Topic, "unknown topic"))
		return
	}

	if s.joined {
		if s.docID == docID {
			// Idempotent re-join: resend the state the client holds
			// stale copies of.
			snap, err := s.store.Get(docID)
			if err != nil {
				s.reply(msg, protocol.ErrorReply(msg.Ref, msg.Topic, err.Error()))
				return
			}
			s.reply(msg, protocol.OkReply(msg.Ref, s.topic, s.joinResponse(snap, s.renderer.HTML())))
			return
		}
		s.leaveDoc()
	}

	var restored *recovery.SessionState
	if token := msg.GetPayloadString("recovery_token"); token != "" && s.recovery != nil {
		st, err := s.recovery.Restore(s.ctx, token)
		switch {
		case err != nil:
			s.log.Debug("recovery token rejected", logging.Err(err))
		case st.DocID != docID:
			s.log.Debug("recovery token is for another document",
				logging.Doc(st.DocID))
		default:
			restored = st
		}
	}

	initial := msg.GetPayloadString("source")
	if strings.TrimSpace(initial) == "" {
		initial = DefaultSource
	}
	snap, err := s.store.Open(docID, initial)
	if err != nil {
		s.reply(msg, protocol.ErrorReply(msg.Ref, msg.Topic, err.Error()))
		return
	}

	sub, err := s.bus.Subscribe(msg.Topic, s.id, s.onBusMessage)
	if err != nil {
		s.reply(msg, protocol.ErrorReply(msg.Ref, msg.Topic, err.Error()))
		return
	}

	s.docID = docID
	s.topic = msg.Topic
	s.joined = true
	s.joinRef = msg.JoinRef
	s.busSub = sub
	if restored != nil {
		s.selectMode = restored.SelectMode
	}

	s.tracker = s.registry.GetOrCreate(s.topic)
	s.tracker.Track(s.id, msg.GetPayloadString("name"))

	result := s.renderer.RenderSource(snap.Source)
	if !result.Errored() {
		// Stamping may have injected identity markers; the stamped
		// text is the authoritative one from here on.
		if result.Document != nil && result.Document.Source != snap.Source {
			if stamped, uerr := s.store.Update(docID, result.Document.Source); uerr == nil {
				snap = stamped
			}
		}
		s.version = snap.Version

		if restored != nil && restored.Selected != "" {
			if sel, serr := Select(result.Tree, restored.Selected); serr == nil {
				s.selection = sel
				s.changeset = NewChangeset(sel.EID, Baseline(sel.Snapshot))
				s.tracker.SetSelected(s.id, sel.EID)
			}
		}
	}

	audit.LogJoin(s.auditLog, docID, s.id, s.remoteAddr)
	s.log.Info("joined document", logging.Doc(docID), logging.Uint64("version", snap.Version))

	s.reply(msg, protocol.OkReply(msg.Ref, s.topic, s.joinResponse(snap, result.HTML)))

	if result.Errored() {
		s.sendCompileError(result.Err)
	} else {
		s.emitLint()
	}
	s.broadcastPresence()
}

func (s *Session) joinResponse(snap state.Snapshot, html string) map[string]any {
	response := map[string]any{
		"session_id":  s.id,
		"doc_id":      s.docID,
		"version":     snap.Version,
		"source":      snap.Source,
		"html":        html,
		"select_mode": s.selectMode,
		"presence":    s.tracker.List(),
	}
	if viewer, ok := s.tracker.Get(s.id); ok {
		response["viewer"] = viewer
	}
	if s.selection != nil {
		response["selection"] = s.selection
	}
	if token := s.freshToken(); token != "" {
		response["recovery_token"] = token
	}
	return response
}

func (s *Session) handleLeave(msg *protocol.Message) {
	s.reply(msg, protocol.OkReply(msg.Ref, msg.Topic, nil))
	s.Close()
}

func (s *Session) handleHeartbeat(msg *protocol.Message) {
	if s.joined {
		if err := s.store.Touch(s.docID); err != nil {
			s.log.Debug("document touch failed", logging.Err(err))
		}
	}
	response := map[string]any{}
	if token := s.freshToken(); token != "" {
		response["recovery_token"] = token
	}
	s.reply(msg, protocol.OkReply(msg.Ref, msg.Topic, response))
}

// handleHover drives the overlay. In select mode a resolvable element
// under the pointer moves the overlay onto the box the client measured;
// anything else hides it.
func (s *Session) handleHover(msg *protocol.Message) {
	if !s.selectMode {
		s.sendJS(js.Commands{js.JS.OverlayHide()})
		return
	}

	eid := jsx.EID(msg.GetPayloadString("eid"))
	target := dom.Resolve(s.renderer.Mount(), eid)
	if eid == "" || target == nil {
		s.sendJS(js.Commands{js.JS.OverlayHide()})
		return
	}

	s.sendJS(js.Commands{
		js.JS.OverlayMove(
			payloadFloat(msg, "x"),
			payloadFloat(msg, "y"),
			payloadFloat(msg, "w"),
			payloadFloat(msg, "h"),
		),
		js.JS.OverlayLabel(target.Tag),
	})
}

// handleClick resolves the clicked element into a selection. A click
// outside any instrumented element clears it. With select mode off the
// canvas behaves like a plain render and clicks pass through.
func (s *Session) handleClick(msg *protocol.Message) {
	if !s.selectMode {
		return
	}

	eid := jsx.EID(msg.GetPayloadString("eid"))
	if eid == "" {
		if s.selection != nil {
			s.clearSelection(true)
		}
		return
	}

	sel, err := Select(s.renderer.Mount(), eid)
	if err != nil {
		// A click racing a re-render can carry an identity the new
		// tree no longer has.
		metrics.RecordError("identity_miss")
		s.log.Debug("click on unresolvable element", logging.EID(string(eid)))
		s.clearSelection(true)
		return
	}

	s.selection = sel
	s.changeset = NewChangeset(sel.EID, Baseline(sel.Snapshot))
	s.tracker.SetSelected(s.id, sel.EID)
	s.sendSelection()
	s.broadcastPresence()
}

// handlePropChange runs the edit pipeline for one property change:
// echo the value on the live mount immediately, track it in the
// changeset, and hand it to the debouncer for the source commit.
func (s *Session) handlePropChange(msg *protocol.Message) {
	if s.selection == nil {
		s.log.Debug("propchange without selection")
		return
	}

	property := msg.GetPayloadString("property")
	if property == "" {
		return
	}
	value := msg.GetPayloadString("value")

	kind, ok := mutate.ParseKind(msg.GetPayloadString("kind"))
	if !ok {
		if property == "textContent" {
			kind = mutate.KindText
		} else {
			kind = mutate.KindStyle
		}
	}
	if kind == mutate.KindStyle {
		value = style.Format(property, value)
	}

	eid := s.selection.EID
	s.optimisticWrite(eid, property, value, kind)

	edit := mutate.Edit{EID: eid, Property: property, Value: value, Kind: kind}
	if !s.changeset.Put(edit) {
		// Back at the baseline; drop any commit in flight for it.
		s.debouncer.Cancel(eid, property)
		return
	}
	s.debouncer.Push(edit)
}

// optimisticWrite echoes an edit on the live mount and mirrors it to
// the browser as a single patch op, giving per-keystroke feedback while
// the source commit waits out the debounce window. A node a concurrent
// re-render disconnected is skipped; the commit still proceeds and the
// next render reconciles.
func (s *Session) optimisticWrite(eid jsx.EID, property, value string, kind mutate.Kind) {
	node := dom.Resolve(s.renderer.Mount(), eid)
	if node == nil {
		metrics.RecordError("dom_write_miss")
		s.log.Debug("optimistic write skipped, element disconnected",
			logging.EID(string(eid)), logging.String("property", property))
		return
	}

	var op dom.PatchOp
	switch kind {
	case mutate.KindText:
		if !textOnly(node) {
			// Mixed content settles through the real render.
			return
		}
		setNodeText(node, value)
		op = dom.SetText(eid, value)
	case mutate.KindAttr:
		if value == "" {
			delete(node.Attrs, property)
			op = dom.RemoveAttr(eid, property)
		} else {
			if node.Attrs == nil {
				node.Attrs = make(map[string]string)
			}
			node.Attrs[property] = value
			op = dom.SetAttr(eid, property, value)
		}
	default:
		if value == "" {
			delete(node.Style, property)
		} else {
			if node.Style == nil {
				node.Style = make(map[string]string)
			}
			node.Style[property] = value
		}
		op = dom.SetStyle(eid, property, value)
	}

	s.send(protocol.PatchMessage(s.topic, map[string]any{
		"version":    s.version,
		"ops":        []dom.PatchOp{op},
		"optimistic": true,
	}))
}

// settle commits a debounced edit to source: mutate, store, re-render,
// patch, then tell the other sessions on the document.
func (s *Session) settle(edit mutate.Edit) {
	if !s.joined {
		return
	}
	metrics.Global.DebounceFlushes.Inc()

	var span *tracing.Span
	if s.tracer != nil {
		_, span = s.tracer.StartSpan(s.ctx, "edit.settle",
			tracing.WithTag("eid", string(edit.EID)),
			tracing.WithTag("property", edit.Property))
		defer span.End()
	}

	doc := s.renderer.Document()
	if doc == nil {
		// Degraded render: no source mapping, nowhere to commit.
		audit.LogEditUnmapped(s.auditLog, s.docID, s.id, edit.EID, edit.Property)
		s.log.Warn("edit dropped, no source mapping",
			logging.EID(string(edit.EID)), logging.String("property", edit.Property))
		return
	}

	next, changed, err := mutate.Apply(doc, edit.EID, edit.Property, edit.Value, edit.Kind)
	if err != nil {
		metrics.RecordError("mutate")
		if span != nil {
			span.SetError(err)
		}
		s.log.Error("source mutation failed", logging.Err(err),
			logging.EID(string(edit.EID)), logging.String("property", edit.Property))
		return
	}
	if !changed {
		s.handleMutationMiss(edit)
		return
	}

	snap, err := s.store.Update(s.docID, next.Source)
	if err != nil {
		metrics.RecordError("store")
		if span != nil {
			span.SetError(err)
		}
		s.log.Error("source update failed", logging.Err(err))
		return
	}

	if s.changeset != nil && s.changeset.EID == edit.EID {
		s.changeset.Settle(edit.Property)
	}
	metrics.Global.EditsApplied.Inc()
	audit.LogPropertyChange(s.auditLog, s.docID, s.id, edit.EID, edit.Property, edit.Value, snap.Version)

	result := s.renderAndEmit(func() preview.Result { return s.renderer.Render(next) }, snap)
	if result.Errored() {
		// The mutator only splices values it mapped, so an unparsable
		// result means a marker bug, not bad user input.
		s.log.Error("mutated source failed to compile",
			logging.EID(string(edit.EID)), logging.String("property", edit.Property))
		return
	}

	s.sendSource(snap)
	s.publishSource(snap)
}

// handleMutationMiss handles a commit that changed nothing: the source
// no longer maps the element, or already holds the value. The pending
// change is dropped and a render from the authoritative source reverts
// the optimistic echo and revalidates the selection.
func (s *Session) handleMutationMiss(edit mutate.Edit) {
	metrics.Global.MutationNoOps.Inc()
	audit.LogEditUnmapped(s.auditLog, s.docID, s.id, edit.EID, edit.Property)
	s.log.Debug("mutation was a no-op",
		logging.EID(string(edit.EID)), logging.String("property", edit.Property))

	if s.changeset != nil && s.changeset.EID == edit.EID {
		s.changeset.Discard(edit.Property)
	}

	snap, err := s.store.Get(s.docID)
	if err != nil {
		s.log.Error("document read failed", logging.Err(err))
		return
	}
	s.renderAndEmit(func() preview.Result { return s.renderer.RenderSource(snap.Source) }, snap)
}

// handleSetSource replaces the whole document text, as when the user
// pastes into the source panel. Pending edits die with the text they
// targeted.
func (s *Session) handleSetSource(msg *protocol.Message) {
	source := msg.GetPayloadString("source")
	if strings.TrimSpace(source) == "" {
		s.reply(msg, protocol.ErrorReply(msg.Ref, s.topic, "source is empty"))
		return
	}

	s.debouncer.CancelAll()

	snap, err := s.store.Update(s.docID, source)
	if err != nil {
		s.reply(msg, protocol.ErrorReply(msg.Ref, s.topic, err.Error()))
		return
	}

	hadSelection := s.selection != nil
	start := time.Now()
	result := s.renderer.RenderSource(source)
	metrics.RecordRender(time.Since(start), len(result.Patches))

	audit.LogSourceReplace(s.auditLog, s.docID, s.id, snap.Version)

	if result.Errored() {
		// The text is stored either way; the previous mount stays up
		// and the compile error tells the user what to fix.
		s.sendCompileError(result.Err)
		s.reply(msg, protocol.OkReply(msg.Ref, s.topic, map[string]any{
			"version": snap.Version,
		}))
		return
	}

	if result.Document != nil && result.Document.Source != source {
		if stamped, uerr := s.store.Update(s.docID, result.Document.Source); uerr == nil {
			snap = stamped
		}
	}
	s.version = snap.Version
	s.emitRenderFrames(result, snap, hadSelection)

	s.reply(msg, protocol.OkReply(msg.Ref, s.topic, map[string]any{
		"version": snap.Version,
		"source":  snap.Source,
	}))
	s.publishSource(snap)
}

func (s *Session) handleSetMode(msg *protocol.Message) {
	enabled := msg.GetPayloadBool("enabled")
	if enabled != s.selectMode {
		s.selectMode = enabled
		if !enabled {
			// Plain preview again: overlay and selection go away.
			if s.selection != nil {
				s.clearSelection(true)
			} else {
				s.sendJS(js.Commands{js.JS.OverlayHide()})
			}
		}
		s.log.Debug("select mode toggled", logging.Bool("enabled", enabled))
	}
	s.reply(msg, protocol.OkReply(msg.Ref, s.topic, map[string]any{
		"select_mode": enabled,
	}))
}

func (s *Session) handleUndo(msg *protocol.Message) {
	s.debouncer.CancelAll()

	snap, err := s.store.Undo(s.docID)
	if err != nil {
		if errors.Is(err, state.ErrNoHistory) {
			s.reply(msg, protocol.ErrorReply(msg.Ref, s.topic, "nothing to undo"))
		} else {
			s.reply(msg, protocol.ErrorReply(msg.Ref, s.topic, err.Error()))
		}
		return
	}

	audit.LogUndo(s.auditLog, s.docID, s.id, snap.Version)
	s.renderAndEmit(func() preview.Result { return s.renderer.RenderSource(snap.Source) }, snap)

	s.reply(msg, protocol.OkReply(msg.Ref, s.topic, map[string]any{
		"version": snap.Version,
		"source":  snap.Source,
	}))
	s.publishSource(snap)
}

// handleBusFrame reacts to document broadcasts from other sessions and
// the dev server: source changes trigger a resync of this session's
// mirror, presence updates are forwarded as-is.
func (s *Session) handleBusFrame(msg *protocol.Message) {
	if msg == nil || !s.joined {
		return
	}
	switch msg.Event {
	case protocol.EventSource:
		s.resync(false)
	case protocol.EventReload:
		s.resync(true)
	default:
		s.send(msg)
	}
}

// resync re-renders from the store after the document changed under
// this session. A stale notification whose text this session already
// mounted is skipped, so a burst of changes renders once per state,
// not once per message.
func (s *Session) resync(reload bool) {
	snap, err := s.store.Get(s.docID)
	if err != nil {
		s.log.Error("resync read failed", logging.Err(err))
		return
	}

	if doc := s.renderer.Document(); doc != nil && doc.Source == snap.Source {
		s.version = snap.Version
		return
	}

	result := s.renderAndEmit(func() preview.Result { return s.renderer.RenderSource(snap.Source) }, snap)
	if result.Errored() {
		return
	}

	s.sendSource(snap)
	if reload {
		s.send(protocol.BroadcastMessage(s.topic, protocol.EventReload, map[string]any{
			"version": snap.Version,
		}))
	}
}

// onRemount runs inside every successful render, after the new tree is
// mounted and before patches go out: the selection is re-resolved
// against the new tree and the tree is linted. Frames for both are
// emitted by the render path afterwards, so the browser always gets
// the patch before the selection that refers to it.
func (s *Session) onRemount(root *dom.Node) {
	s.lintIssues = s.linter.Lint(root)

	if s.selection == nil {
		s.selectionLost = false
		return
	}
	if err := s.selection.Refresh(root); err != nil {
		// The element is gone from the new tree. Never present a
		// disconnected node as selected.
		s.log.Debug("selection lost on remount", logging.EID(string(s.selection.EID)))
		s.selection = nil
		s.changeset = nil
		s.selectionLost = true
		if s.tracker != nil {
			s.tracker.SetSelected(s.id, "")
		}
		return
	}
	s.selectionLost = false
	if s.changeset != nil {
		s.changeset.Reseed(Baseline(s.selection.Snapshot))
	}
}

// renderAndEmit renders, records metrics and emits the resulting
// frames. On compile failure only a compile_error frame goes out and
// the previous mount stays live.
func (s *Session) renderAndEmit(render func() preview.Result, snap state.Snapshot) preview.Result {
	hadSelection := s.selection != nil
	start := time.Now()
	result := render()
	metrics.RecordRender(time.Since(start), len(result.Patches))

	if result.Errored() {
		s.sendCompileError(result.Err)
		return result
	}

	s.version = snap.Version
	s.emitRenderFrames(result, snap, hadSelection)
	return result
}

// emitRenderFrames sends what a successful render produced: the patch,
// then the selection outcome the remount hook computed, then lint.
func (s *Session) emitRenderFrames(result preview.Result, snap state.Snapshot, hadSelection bool) {
	if len(result.Patches) > 0 {
		s.send(protocol.PatchMessage(s.topic, map[string]any{
			"version": snap.Version,
			"ops":     result.Patches,
		}))
	}

	if s.selectionLost {
		s.selectionLost = false
		s.sendSelectionCleared()
		s.broadcastPresence()
	} else if hadSelection && s.selection != nil {
		s.sendSelection()
	}

	s.emitLint()
}

func (s *Session) sendCompileError(cerr *preview.CompileError) {
	metrics.Global.CompileErrors.Inc()
	s.send(protocol.CompileErrorMessage(s.topic, map[string]any{
		"line":   cerr.Line,
		"column": cerr.Column,
		"detail": cerr.Detail,
	}))
}

// emitLint pushes the linter's findings for the current mount. A clean
// result is sent only when it clears previously reported issues.
func (s *Session) emitLint() {
	count := len(s.lintIssues)
	if count == 0 && s.lastLint == 0 {
		return
	}
	issues := s.lintIssues
	if issues == nil {
		issues = []a11y.Issue{}
	}
	s.send(protocol.BroadcastMessage(s.topic, protocol.EventLint, map[string]any{
		"issues": issues,
		"count":  count,
	}))
	s.lastLint = count
}

func (s *Session) sendSelection() {
	if s.selection == nil {
		return
	}
	payload := map[string]any{
		"eid":      string(s.selection.EID),
		"snapshot": s.selection.Snapshot,
		"js":       js.Commands{js.JS.Select(string(s.selection.EID))}.ToJS(),
	}
	if s.changeset != nil {
		payload["values"] = s.changeset.View()
	}
	s.send(protocol.BroadcastMessage(s.topic, protocol.EventSelection, payload))
}

func (s *Session) sendSelectionCleared() {
	s.send(protocol.BroadcastMessage(s.topic, protocol.EventSelection, map[string]any{
		"eid": "",
		"js":  js.Commands{js.JS.ClearSelection(), js.JS.OverlayHide()}.ToJS(),
	}))
}

func (s *Session) clearSelection(notify bool) {
	s.selection = nil
	s.changeset = nil
	if s.tracker != nil {
		s.tracker.SetSelected(s.id, "")
	}
	if notify {
		s.sendSelectionCleared()
		s.broadcastPresence()
	}
}

func (s *Session) sendSource(snap state.Snapshot) {
	s.send(protocol.BroadcastMessage(s.topic, protocol.EventSource, map[string]any{
		"version": snap.Version,
		"source":  snap.Source,
	}))
}

// publishSource tells the document's other sessions the source moved.
// They re-render their own mirrors from the store.
func (s *Session) publishSource(snap state.Snapshot) {
	msg := protocol.BroadcastMessage(s.topic, protocol.EventSource, map[string]any{
		"version": snap.Version,
		"source":  snap.Source,
	})
	if err := s.bus.PublishFrom(s.topic, s.id, msg); err != nil {
		s.log.Debug("source publish failed", logging.Err(err))
	}
}

// broadcastPresence sends the viewer list to this client and publishes
// it for the document's other sessions.
func (s *Session) broadcastPresence() {
	if s.tracker == nil {
		return
	}
	msg := protocol.PresenceMessage(s.topic, s.tracker.Payload())
	s.send(msg)
	s.publishPresence(msg)
}

func (s *Session) publishPresence(msg *protocol.Message) {
	if msg == nil {
		msg = protocol.PresenceMessage(s.topic, s.tracker.Payload())
	}
	if err := s.bus.PublishFrom(s.topic, s.id, msg); err != nil {
		s.log.Debug("presence publish failed", logging.Err(err))
	}
}

func (s *Session) sendJS(cmds js.Commands) {
	s.send(protocol.BroadcastMessage(s.topic, protocol.EventHover, map[string]any{
		"js": cmds.ToJS(),
	}))
}

func (s *Session) send(msg *protocol.Message) {
	if msg == nil {
		return
	}
	if err := s.transport.Send(msg); err != nil {
		s.log.Debug("send failed", logging.Err(err),
			logging.String("event", msg.Event))
		return
	}
	metrics.MessageSent(msg.Type.String())
}

func (s *Session) reply(req, resp *protocol.Message) {
	if req.JoinRef != "" {
		resp.WithJoinRef(req.JoinRef)
	}
	s.send(resp)
}

// freshToken stashes current state and returns a token for it. Tokens
// ride on join and heartbeat replies; the client presents the newest
// one when it reconnects.
func (s *Session) freshToken() string {
	if s.recovery == nil || !s.joined {
		return ""
	}
	token, err := s.recovery.Stash(s.ctx, s.id, s.sessionState())
	if err != nil {
		s.log.Debug("recovery stash failed", logging.Err(err))
		return ""
	}
	return token
}

func (s *Session) sessionState() *recovery.SessionState {
	st := &recovery.SessionState{
		DocID:      s.docID,
		SelectMode: s.selectMode,
		Version:    s.version,
	}
	if s.selection != nil {
		st.Selected = s.selection.EID
	}
	return st
}

// leaveDoc detaches from the current document so another can be
// joined: presence, bus subscription and pending edits all go.
func (s *Session) leaveDoc() {
	if !s.joined {
		return
	}
	s.debouncer.CancelAll()
	if s.busSub != nil {
		s.busSub.Unsubscribe()
		s.busSub = nil
	}
	if s.tracker != nil {
		s.tracker.Untrack(s.id)
		s.publishPresence(nil)
		s.tracker = nil
	}
	audit.LogLeave(s.auditLog, s.docID, s.id)
	s.selection = nil
	s.changeset = nil
	s.selectionLost = false
	s.joined = false
	s.docID = ""
	s.topic = ""
	s.joinRef = ""
	s.version = 0
	s.lastLint = 0
	s.lintIssues = nil
}

func (s *Session) teardown() {
	s.debouncer.Close()

	if s.joined {
		// Stash before the state goes away so a reconnect with the
		// last issued token lands back here.
		if s.recovery != nil {
			if err := s.recovery.Save(context.Background(), s.id, s.sessionState()); err != nil {
				s.log.Debug("recovery save failed", logging.Err(err))
			}
		}
		if s.busSub != nil {
			s.busSub.Unsubscribe()
			s.busSub = nil
		}
		if s.tracker != nil {
			s.tracker.Untrack(s.id)
			s.publishPresence(nil)
		}
		audit.LogLeave(s.auditLog, s.docID, s.id)
	} else if s.busSub != nil {
		s.busSub.Unsubscribe()
		s.busSub = nil
	}

	if tb, ok := s.limiter.(*limits.TokenBucket); ok && tb != nil {
		tb.Forget(s.id)
	}

	s.renderer.Dispose()
	if err := s.transport.Close(); err != nil {
		s.log.Debug("transport close failed", logging.Err(err))
	}
	s.log.Info("session closed", logging.Doc(s.docID))
}

// textOnly reports whether a node's children are all text, the only
// shape the optimistic text echo can handle without diverging from the
// browser mirror.
func textOnly(n *dom.Node) bool {
	for _, child := range n.Children {
		if !child.IsText() {
			return false
		}
	}
	return true
}

func setNodeText(n *dom.Node, value string) {
	for _, child := range n.Children {
		if child.IsText() {
			child.Text = value
			n.Children = []*dom.Node{child}
			return
		}
	}
	n.Children = append(n.Children, dom.NewText(value))
}

func payloadFloat(msg *protocol.Message, key string) float64 {
	if msg.Payload == nil {
		return 0
	}
	switch v := msg.Payload[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case uint64:
		return float64(v)
	}
	return 0
}
