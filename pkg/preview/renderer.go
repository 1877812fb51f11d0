package preview

import (
	"errors"

	"github.com/akshayaparida/react-component-editor-sub000/pkg/diff"
	"github.com/akshayaparida/react-component-editor-sub000/pkg/dom"
	"github.com/akshayaparida/react-component-editor-sub000/pkg/jsx"
	"github.com/akshayaparida/react-component-editor-sub000/pkg/logging"
)

// State is the renderer lifecycle state.
type State uint8

const (
	StateEmpty State = iota
	StateLoading
	StateRendered
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateLoading:
		return "loading"
	case StateRendered:
		return "rendered"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// RemountHook runs after every successful mount, in registration order.
// Sessions use hooks to re-resolve the current selection and re-lint.
type RemountHook func(root *dom.Node)

// Result is the outcome of one render request. An errored result carries
// the previous mount untouched; the canvas is never blanked by a bad edit.
type Result struct {
	State    State
	Tree     *dom.Node
	HTML     string
	Patches  []dom.PatchOp
	Document *jsx.Document
	Err      *CompileError
	Version  uint64
}

// Errored reports whether the render failed to produce a new mount.
func (r Result) Errored() bool {
	return r.Err != nil
}

// DocumentCompiler is implemented by compilers that can skip the parse step
// for an already-parsed document.
type DocumentCompiler interface {
	CompileDocument(*jsx.Document) (Renderable, error)
}

// Renderer owns the live preview mount and its replacement policy. It is
// confined to one session goroutine; none of its methods are safe for
// concurrent use.
type Renderer struct {
	compiler Compiler
	fallback Compiler

	state   State
	mount   *dom.Node
	doc     *jsx.Document
	html    string
	version uint64
	lastErr *CompileError

	hooks   []RemountHook
	retired []*dom.Node

	log logging.Logger
}

// RendererOption configures a Renderer.
type RendererOption func(*Renderer)

// WithCompiler replaces the default TreeCompiler.
func WithCompiler(c Compiler) RendererOption {
	return func(r *Renderer) {
		r.compiler = c
	}
}

// WithFallback enables the degraded structural-approximation mode: when the
// strict compiler fails, the fallback gets one attempt before the render is
// declared errored.
func WithFallback(c Compiler) RendererOption {
	return func(r *Renderer) {
		r.fallback = c
	}
}

// WithRendererLogger sets the renderer's logger.
func WithRendererLogger(log logging.Logger) RendererOption {
	return func(r *Renderer) {
		r.log = log
	}
}

// NewRenderer creates an empty renderer backed by a TreeCompiler.
func NewRenderer(opts ...RendererOption) *Renderer {
	r := &Renderer{
		compiler: NewTreeCompiler(),
		state:    StateEmpty,
		log:      logging.NopLogger{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render mounts an already-parsed document. The previous mount survives a
// failed compile and is retired, not discarded, on a successful one.
func (r *Renderer) Render(doc *jsx.Document) Result {
	if doc == nil || doc.Root == nil {
		return r.fail(newCompileError(dom.ErrEmptyDocument))
	}
	if dc, ok := r.compiler.(DocumentCompiler); ok {
		return r.render(doc.Source, func() (Renderable, error) {
			return dc.CompileDocument(doc)
		})
	}
	return r.RenderSource(doc.Source)
}

// RenderSource compiles raw text and mounts the result.
func (r *Renderer) RenderSource(source string) Result {
	return r.render(source, func() (Renderable, error) {
		return r.compiler.Compile(source)
	})
}

func (r *Renderer) render(source string, compile func() (Renderable, error)) Result {
	r.state = StateLoading

	unit, err := compile()
	if err != nil && r.fallback != nil {
		approx, fallbackErr := r.fallback.Compile(source)
		if fallbackErr == nil {
			r.log.Warn("strict compile failed, mounting structural approximation",
				logging.Err(err))
			unit, err = approx, nil
		}
	}
	if err != nil {
		return r.fail(asCompileError(err))
	}

	next := unit.Tree()
	patches := diff.Tree(r.mount, next)

	if r.mount != nil {
		r.retired = append(r.retired, r.mount)
	}
	r.mount = next
	r.doc = unit.Document()
	r.html = dom.String(next)
	r.version++
	r.state = StateRendered
	r.lastErr = nil

	for _, hook := range r.hooks {
		hook(next)
	}

	return Result{
		State:    StateRendered,
		Tree:     next,
		HTML:     r.html,
		Patches:  patches,
		Document: r.doc,
		Version:  r.version,
	}
}

func (r *Renderer) fail(cerr *CompileError) Result {
	r.state = StateErrored
	r.lastErr = cerr
	return Result{
		State:    StateErrored,
		Err:      cerr,
		Tree:     r.mount,
		HTML:     r.html,
		Document: r.doc,
		Version:  r.version,
	}
}

// OnRemount registers a hook invoked after every successful mount.
func (r *Renderer) OnRemount(hook RemountHook) {
	r.hooks = append(r.hooks, hook)
}

// Retired drains the mounts replaced since the last call. The owning
// session drops them on its next mailbox turn, never inside the render
// call that replaced them, so an in-flight read of the old mount stays
// valid.
func (r *Renderer) Retired() []*dom.Node {
	retired := r.retired
	r.retired = nil
	return retired
}

// State returns the current lifecycle state.
func (r *Renderer) State() State {
	return r.state
}

// Mount returns the currently mounted tree, or nil before the first
// successful render.
func (r *Renderer) Mount() *dom.Node {
	return r.mount
}

// Document returns the stamped document backing the current mount. It is
// nil before the first render and in degraded mode.
func (r *Renderer) Document() *jsx.Document {
	return r.doc
}

// HTML returns the serialized form of the current mount.
func (r *Renderer) HTML() string {
	return r.html
}

// Version increments on every successful mount.
func (r *Renderer) Version() uint64 {
	return r.version
}

// LastError returns the most recent compile failure, or nil after a
// successful render.
func (r *Renderer) LastError() *CompileError {
	return r.lastErr
}

type cacheClearer interface {
	ClearCache()
}

// Dispose releases the mount, pending retirements, hooks and the
// compiler's cache. The renderer returns to the empty state.
func (r *Renderer) Dispose() {
	r.mount = nil
	r.doc = nil
	r.html = ""
	r.retired = nil
	r.hooks = nil
	r.lastErr = nil
	r.state = StateEmpty
	if cc, ok := r.compiler.(cacheClearer); ok {
		cc.ClearCache()
	}
}

func asCompileError(err error) *CompileError {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce
	}
	return newCompileError(err)
}
