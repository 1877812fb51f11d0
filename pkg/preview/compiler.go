// Package preview turns component source text into mounted element trees and
// keeps a live mount in sync with source changes. The contract is the one the
// editor ecosystem expects from any compiler: text in, renderable unit or
// structured error out.
package preview

import (
	"errors"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/akshayaparida/react-component-editor-sub000/pkg/dom"
	"github.com/akshayaparida/react-component-editor-sub000/pkg/jsx"
	"github.com/akshayaparida/react-component-editor-sub000/pkg/logging"
	"github.com/akshayaparida/react-component-editor-sub000/pkg/security"
)

// defaultCacheCapacity bounds the compile cache per compiler instance.
const defaultCacheCapacity = 128

// CompileError is the only user-visible failure class of the preview
// pipeline. It carries a 1-based source position when the underlying cause
// is a parse error.
type CompileError struct {
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`
	Detail string `json:"detail"`
	Err    error  `json:"-"`
}

func (e *CompileError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("compile: %d:%d: %s", e.Line, e.Column, e.Detail)
	}
	return "compile: " + e.Detail
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

func newCompileError(err error) *CompileError {
	var pe *jsx.ParseError
	if errors.As(err, &pe) {
		return &CompileError{Line: pe.Line, Column: pe.Column, Detail: pe.Msg, Err: err}
	}
	return &CompileError{Detail: err.Error(), Err: err}
}

// Renderable is a compiled unit ready to mount. The tree it returns is
// private to the caller; mutating it never affects other holders.
type Renderable interface {
	// Tree returns the element tree to mount.
	Tree() *dom.Node

	// Document returns the stamped source document backing the tree, or nil
	// when the unit was produced by a degraded compiler with no source
	// mapping.
	Document() *jsx.Document
}

// Compiler produces renderable units from raw source text.
type Compiler interface {
	Compile(source string) (Renderable, error)
}

// Compiled is the renderable unit produced by TreeCompiler.
type Compiled struct {
	doc      *jsx.Document
	tree     *dom.Node
	injected int
}

func (c *Compiled) Tree() *dom.Node         { return c.tree }
func (c *Compiled) Document() *jsx.Document { return c.doc }

// Injected reports how many identity markers stamping added. A non-zero
// value means Document's source differs from the compiled input and callers
// should adopt it as the authoritative text.
func (c *Compiled) Injected() int { return c.injected }

// clone shares the immutable document but deep-copies the tree.
func (c *Compiled) clone() *Compiled {
	return &Compiled{doc: c.doc, tree: dom.Clone(c.tree), injected: c.injected}
}

// TreeCompiler is the canonical Compiler: parse, stamp identity markers,
// build the element tree, scrub executable content. Results are cached by
// source fingerprint.
type TreeCompiler struct {
	stamper   *jsx.Stamper
	sanitizer *security.Sanitizer
	cache     *compileCache
	log       logging.Logger
}

// TreeCompilerOption configures a TreeCompiler.
type TreeCompilerOption func(*TreeCompiler)

// WithIDSource sets the marker ID source used when stamping.
func WithIDSource(src jsx.IDSource) TreeCompilerOption {
	return func(c *TreeCompiler) {
		c.stamper = jsx.NewStamper(jsx.WithIDSource(src))
	}
}

// WithSanitizer replaces the default sanitizer. Passing nil disables
// scrubbing entirely.
func WithSanitizer(s *security.Sanitizer) TreeCompilerOption {
	return func(c *TreeCompiler) {
		c.sanitizer = s
	}
}

// WithCacheCapacity bounds the compile cache.
func WithCacheCapacity(n int) TreeCompilerOption {
	return func(c *TreeCompiler) {
		c.cache = newCompileCache(n)
	}
}

// WithCompilerLogger sets the compiler's logger.
func WithCompilerLogger(log logging.Logger) TreeCompilerOption {
	return func(c *TreeCompiler) {
		c.log = log
	}
}

// NewTreeCompiler creates a compiler with the default stamper, sanitizer
// and cache.
func NewTreeCompiler(opts ...TreeCompilerOption) *TreeCompiler {
	c := &TreeCompiler{
		stamper:   jsx.NewStamper(),
		sanitizer: security.NewSanitizer(security.DefaultSanitizerConfig()),
		cache:     newCompileCache(defaultCacheCapacity),
		log:       logging.NopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile turns source text into a renderable unit. Identical source hits
// the cache; the returned tree is always a private copy.
func (c *TreeCompiler) Compile(source string) (Renderable, error) {
	key := fingerprint(source)
	if cached, ok := c.cache.get(key); ok {
		return cached.clone(), nil
	}

	doc, err := jsx.Parse(source)
	if err != nil {
		return nil, newCompileError(err)
	}
	return c.finish(key, doc)
}

// CompileDocument compiles an already-parsed document, skipping the parse
// step. The edit loop uses it after a source mutation has reparsed.
func (c *TreeCompiler) CompileDocument(doc *jsx.Document) (Renderable, error) {
	if doc == nil || doc.Root == nil {
		return nil, newCompileError(dom.ErrEmptyDocument)
	}

	key := fingerprint(doc.Source)
	if cached, ok := c.cache.get(key); ok {
		return cached.clone(), nil
	}
	return c.finish(key, doc)
}

func (c *TreeCompiler) finish(key uint64, doc *jsx.Document) (Renderable, error) {
	stamped, injected, err := c.stamper.Stamp(doc)
	if err != nil {
		return nil, newCompileError(err)
	}

	tree, err := dom.Build(stamped)
	if err != nil {
		return nil, newCompileError(err)
	}

	if c.sanitizer != nil {
		if !tree.IsText() && tree.Tag != "" && c.sanitizer.Blocked(tree.Tag) {
			return nil, newCompileError(fmt.Errorf("blocked root element <%s>", tree.Tag))
		}
		if report := c.sanitizer.SanitizeTree(tree); !report.Clean() {
			c.log.Warn("sanitizer removed content",
				logging.Int("nodes", report.RemovedNodes),
				logging.Int("attrs", report.RemovedAttrs),
				logging.Int("urls", report.RewrittenURLs))
		}
	}

	compiled := &Compiled{doc: stamped, tree: tree, injected: injected}
	c.cache.put(key, compiled)
	return compiled.clone(), nil
}

// CacheStats returns compile cache counters for the metrics endpoint.
func (c *TreeCompiler) CacheStats() CacheStats {
	return c.cache.snapshot()
}

// ClearCache drops all cached compile results.
func (c *TreeCompiler) ClearCache() {
	c.cache.clear()
}

func fingerprint(source string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(source))
	return h.Sum64()
}

// structuralTags are the element types the degraded compiler recognizes,
// checked in source order.
var structuralTags = map[string]bool{
	"div": true, "section": true, "header": true, "footer": true,
	"nav": true, "main": true, "article": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"p": true, "span": true, "a": true, "button": true, "img": true,
	"ul": true, "ol": true, "li": true, "input": true, "label": true,
}

// FallbackCompiler is the degraded mode: when strict parsing is unwanted or
// impossible it reconstructs a best-effort structural approximation from
// recognized tag occurrences. The result has no source mapping, so
// selection works but source rewriting does not.
type FallbackCompiler struct {
	ids jsx.IDSource
}

// FallbackOption configures a FallbackCompiler.
type FallbackOption func(*FallbackCompiler)

// WithFallbackIDSource sets the marker ID source for approximated nodes.
func WithFallbackIDSource(src jsx.IDSource) FallbackOption {
	return func(c *FallbackCompiler) {
		c.ids = src
	}
}

// NewFallbackCompiler creates a degraded-mode compiler.
func NewFallbackCompiler(opts ...FallbackOption) *FallbackCompiler {
	c := &FallbackCompiler{ids: jsx.NewIDSource()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile scans for recognized tags and assembles an approximate tree.
// It fails only when the source contains no recognizable structure.
func (c *FallbackCompiler) Compile(source string) (Renderable, error) {
	var nodes []*dom.Node

	for i := 0; i < len(source); {
		if source[i] != '<' {
			i++
			continue
		}
		tag, end := scanTagName(source, i+1)
		if tag == "" || !structuralTags[tag] {
			i++
			continue
		}

		node := &dom.Node{Tag: tag, EID: c.ids()}
		if text := leadingText(source, end); text != "" {
			node.Children = append(node.Children, dom.NewText(text))
		}
		nodes = append(nodes, node)
		i = end
	}

	if len(nodes) == 0 {
		return nil, &CompileError{Detail: "no recognizable structure in source"}
	}
	if len(nodes) == 1 {
		return &Compiled{tree: nodes[0]}, nil
	}

	root := &dom.Node{Tag: "div", EID: c.ids(), Children: nodes}
	return &Compiled{tree: root}, nil
}

// scanTagName reads a tag name starting at pos, returning the lowercase
// name and the offset just past it, or "" when pos does not start a name.
func scanTagName(source string, pos int) (string, int) {
	start := pos
	for pos < len(source) {
		c := source[pos]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			pos++
			continue
		}
		break
	}
	if pos == start {
		return "", pos
	}
	if pos < len(source) && source[pos] != ' ' && source[pos] != '>' &&
		source[pos] != '/' && source[pos] != '\t' && source[pos] != '\n' && source[pos] != '\r' {
		return "", pos
	}
	return strings.ToLower(source[start:pos]), pos
}

// leadingText extracts the first text run after the opening tag ends.
func leadingText(source string, pos int) string {
	gt := strings.IndexByte(source[pos:], '>')
	if gt < 0 {
		return ""
	}
	rest := source[pos+gt+1:]
	lt := strings.IndexByte(rest, '<')
	if lt < 0 {
		lt = len(rest)
	}
	return strings.Join(strings.Fields(rest[:lt]), " ")
}
