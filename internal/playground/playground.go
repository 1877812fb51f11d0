// Package playground renders the editor shell: the page a browser loads
// to edit a component. It carries no component markup of its own; the
// canvas starts empty and the embedded client runtime fills it from the
// join reply and keeps it patched afterwards.
package playground

import (
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strings"
)

// Config names the endpoints the shell talks to and the document it
// opens. Zero values get the dev server defaults.
type Config struct {
	// Title is the page title.
	Title string

	// DocID is the document opened on load. A ?doc= query parameter
	// overrides it per request.
	DocID string

	// SocketPath is the websocket endpoint.
	SocketPath string

	// EventsPath is the SSE fallback endpoint.
	EventsPath string

	// ClientPath is the URL prefix the runtime JS is served under.
	ClientPath string

	// GeneratePath is the generation API endpoint. Empty hides the
	// prompt bar.
	GeneratePath string
}

// DefaultConfig returns the paths the dev server mounts.
func DefaultConfig() Config {
	return Config{
		Title:        "JSX Editor",
		DocID:        "demo",
		SocketPath:   "/ws",
		EventsPath:   "/events",
		ClientPath:   "/client",
		GeneratePath: "/api/generate",
	}
}

// Editable properties shown in the panel, in display order. Kind picks
// the edit path: style properties patch the style object, text rewrites
// the element's text child.
type panelField struct {
	Label    string
	Property string
	Kind     string
	Input    string // "text" or "color"
}

var panelFields = []panelField{
	{Label: "Text", Property: "textContent", Kind: "text", Input: "text"},
	{Label: "Color", Property: "color", Kind: "style", Input: "color"},
	{Label: "Background", Property: "backgroundColor", Kind: "style", Input: "color"},
	{Label: "Font size", Property: "fontSize", Kind: "style", Input: "text"},
	{Label: "Padding", Property: "padding", Kind: "style", Input: "text"},
	{Label: "Margin", Property: "margin", Kind: "style", Input: "text"},
	{Label: "Border radius", Property: "borderRadius", Kind: "style", Input: "text"},
	{Label: "Gap", Property: "gap", Kind: "style", Input: "text"},
}

// Handler serves the shell. The doc query parameter picks the document,
// so several browser tabs can edit different components against one
// server.
func Handler(cfg Config) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := cfg
		if doc := r.URL.Query().Get("doc"); doc != "" {
			page.DocID = doc
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		fmt.Fprint(w, Render(page))
	})
}

// Render produces the complete shell page.
func Render(cfg Config) string {
	if cfg.Title == "" {
		cfg.Title = "JSX Editor"
	}
	if cfg.DocID == "" {
		cfg.DocID = "demo"
	}
	if cfg.SocketPath == "" {
		cfg.SocketPath = "/ws"
	}
	if cfg.ClientPath == "" {
		cfg.ClientPath = "/client"
	}

	boot, _ := json.Marshal(map[string]string{
		"doc":      cfg.DocID,
		"socket":   cfg.SocketPath,
		"events":   cfg.EventsPath,
		"generate": cfg.GeneratePath,
	})

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
	sb.WriteString("<meta charset=\"UTF-8\">\n")
	sb.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	fmt.Fprintf(&sb, "<title>%s</title>\n", html.EscapeString(cfg.Title))
	sb.WriteString("<style>\n")
	sb.WriteString(shellCSS)
	sb.WriteString("</style>\n</head>\n<body>\n")

	renderToolbar(&sb, cfg)

	sb.WriteString("<main class=\"workspace\">\n")
	renderCanvas(&sb)
	sb.WriteString("<aside class=\"sidebar\">\n")
	renderPanel(&sb)
	renderLintPanel(&sb)
	sb.WriteString("</aside>\n")
	sb.WriteString("</main>\n")

	renderSourcePane(&sb, cfg)

	fmt.Fprintf(&sb, "<script>window.__jsxedit = %s;</script>\n", boot)
	fmt.Fprintf(&sb, "<script src=\"%s/editor.js\" defer></script>\n", cfg.ClientPath)
	sb.WriteString("</body>\n</html>\n")
	return sb.String()
}

func renderToolbar(sb *strings.Builder, cfg Config) {
	sb.WriteString("<header class=\"toolbar\">\n")
	fmt.Fprintf(sb, "<span class=\"brand\">%s</span>\n", html.EscapeString(cfg.Title))
	fmt.Fprintf(sb, "<span class=\"doc\" id=\"doc-name\">%s</span>\n", html.EscapeString(cfg.DocID))
	sb.WriteString("<span class=\"spacer\"></span>\n")
	sb.WriteString("<label class=\"mode\"><input type=\"checkbox\" id=\"select-mode\" checked> Select</label>\n")
	sb.WriteString("<button id=\"undo\" class=\"btn\" title=\"Undo last edit\">Undo</button>\n")
	sb.WriteString("<span id=\"conn\" class=\"conn conn-off\">offline</span>\n")
	sb.WriteString("<span id=\"version\" class=\"version\">v0</span>\n")
	sb.WriteString("</header>\n")
}

func renderCanvas(sb *strings.Builder) {
	sb.WriteString("<section class=\"stage\">\n")
	sb.WriteString("<div id=\"canvas\" class=\"canvas\"></div>\n")
	// The overlay lives outside the canvas so patches never touch it.
	sb.WriteString("<div id=\"overlay\" class=\"overlay\" hidden><span id=\"overlay-label\" class=\"overlay-label\"></span></div>\n")
	sb.WriteString("<div id=\"selection-box\" class=\"selection-box\" hidden></div>\n")
	sb.WriteString("<div id=\"compile-error\" class=\"compile-error\" hidden></div>\n")
	sb.WriteString("</section>\n")
}

func renderPanel(sb *strings.Builder) {
	sb.WriteString("<div class=\"panel\" id=\"prop-panel\">\n")
	sb.WriteString("<h2>Properties</h2>\n")
	sb.WriteString("<p id=\"panel-empty\" class=\"hint\">Click an element to edit it.</p>\n")
	sb.WriteString("<div id=\"panel-fields\" hidden>\n")
	sb.WriteString("<p class=\"selected-tag\"><code id=\"selected-tag\"></code></p>\n")
	for _, f := range panelFields {
		id := "prop-" + f.Property
		fmt.Fprintf(sb, "<label class=\"field\" for=\"%s\">%s</label>\n", id, html.EscapeString(f.Label))
		fmt.Fprintf(sb, "<input id=\"%s\" data-prop=\"%s\" data-kind=\"%s\" type=\"%s\" autocomplete=\"off\">\n",
			id, f.Property, f.Kind, f.Input)
	}
	sb.WriteString("</div>\n</div>\n")
}

func renderLintPanel(sb *strings.Builder) {
	sb.WriteString("<div class=\"panel\" id=\"lint-panel\">\n")
	sb.WriteString("<h2>Accessibility</h2>\n")
	sb.WriteString("<ul id=\"lint-list\" class=\"lint-list\"><li class=\"hint\">No issues.</li></ul>\n")
	sb.WriteString("</div>\n")
}

func renderSourcePane(sb *strings.Builder, cfg Config) {
	sb.WriteString("<footer class=\"source-pane\">\n")
	sb.WriteString("<div class=\"source-head\">\n<h2>Source</h2>\n")
	sb.WriteString("<button id=\"apply-source\" class=\"btn\">Apply</button>\n")
	sb.WriteString("</div>\n")
	sb.WriteString("<textarea id=\"source\" spellcheck=\"false\"></textarea>\n")
	if cfg.GeneratePath != "" {
		sb.WriteString("<div class=\"generate-bar\">\n")
		sb.WriteString("<input id=\"prompt\" type=\"text\" placeholder=\"Describe a component, e.g. a pricing card with a blue button\">\n")
		sb.WriteString("<button id=\"generate\" class=\"btn btn-primary\">Generate</button>\n")
		sb.WriteString("</div>\n")
	}
	sb.WriteString("</footer>\n")
}

// shellCSS is the whole stylesheet. The shell is chrome around the
// canvas; component styles arrive inline on the rendered elements and
// must win, so nothing here targets canvas descendants.
const shellCSS = `
:root {
  --bg: #0f172a;
  --bg-alt: #1e293b;
  --border: #334155;
  --text: #f8fafc;
  --text-dim: #94a3b8;
  --accent: #22d3ee;
  --danger: #f87171;
  --warning: #fbbf24;
}
* { box-sizing: border-box; }
body {
  margin: 0;
  font-family: system-ui, -apple-system, 'Segoe UI', Roboto, sans-serif;
  background: var(--bg);
  color: var(--text);
  display: flex;
  flex-direction: column;
  height: 100vh;
}
.toolbar {
  display: flex;
  align-items: center;
  gap: 0.75rem;
  padding: 0.5rem 1rem;
  background: var(--bg-alt);
  border-bottom: 1px solid var(--border);
}
.brand { font-weight: 600; }
.doc { color: var(--text-dim); font-family: monospace; }
.spacer { flex: 1; }
.mode { color: var(--text-dim); font-size: 0.875rem; user-select: none; }
.btn {
  background: var(--bg);
  color: var(--text);
  border: 1px solid var(--border);
  border-radius: 4px;
  padding: 0.25rem 0.75rem;
  cursor: pointer;
}
.btn:hover { border-color: var(--accent); }
.btn-primary { border-color: var(--accent); color: var(--accent); }
.conn { font-size: 0.75rem; padding: 0.125rem 0.5rem; border-radius: 999px; }
.conn-on { background: #064e3b; color: #34d399; }
.conn-off { background: #450a0a; color: var(--danger); }
.version { color: var(--text-dim); font-size: 0.75rem; font-family: monospace; }
.workspace { display: flex; flex: 1; min-height: 0; }
.stage {
  position: relative;
  flex: 1;
  overflow: auto;
  background: #ffffff;
}
.canvas { min-height: 100%; color: #111111; }
.overlay {
  position: absolute;
  border: 1px dashed var(--accent);
  background: rgba(34, 211, 238, 0.08);
  pointer-events: none;
  z-index: 10;
}
.overlay-label {
  position: absolute;
  top: -1.25rem;
  left: -1px;
  background: var(--accent);
  color: #0f172a;
  font: 0.6875rem monospace;
  padding: 0 0.25rem;
  white-space: nowrap;
}
.selection-box {
  position: absolute;
  border: 2px solid var(--accent);
  pointer-events: none;
  z-index: 9;
}
.compile-error {
  position: absolute;
  left: 1rem; right: 1rem; bottom: 1rem;
  background: #450a0a;
  color: var(--danger);
  border: 1px solid var(--danger);
  border-radius: 4px;
  padding: 0.75rem 1rem;
  font-family: monospace;
  font-size: 0.8125rem;
  white-space: pre-wrap;
  z-index: 20;
}
.sidebar {
  width: 280px;
  background: var(--bg-alt);
  border-left: 1px solid var(--border);
  overflow-y: auto;
}
.panel { padding: 1rem; border-bottom: 1px solid var(--border); }
.panel h2 {
  margin: 0 0 0.75rem;
  font-size: 0.75rem;
  text-transform: uppercase;
  letter-spacing: 0.05em;
  color: var(--text-dim);
}
.hint { color: var(--text-dim); font-size: 0.8125rem; }
.selected-tag code { color: var(--accent); }
.field { display: block; margin-top: 0.5rem; font-size: 0.8125rem; color: var(--text-dim); }
#panel-fields input {
  width: 100%;
  margin-top: 0.25rem;
  background: var(--bg);
  color: var(--text);
  border: 1px solid var(--border);
  border-radius: 4px;
  padding: 0.25rem 0.5rem;
}
#panel-fields input[type="color"] { height: 2rem; padding: 0.125rem; }
.lint-list { margin: 0; padding-left: 1.25rem; font-size: 0.8125rem; }
.lint-list .lint-warning { color: var(--warning); }
.lint-list .lint-error { color: var(--danger); }
.source-pane {
  background: var(--bg-alt);
  border-top: 1px solid var(--border);
  padding: 0.75rem 1rem;
}
.source-head { display: flex; align-items: center; gap: 0.75rem; }
.source-head h2 {
  margin: 0;
  flex: 1;
  font-size: 0.75rem;
  text-transform: uppercase;
  letter-spacing: 0.05em;
  color: var(--text-dim);
}
#source {
  width: 100%;
  height: 9rem;
  margin-top: 0.5rem;
  background: #0d1117;
  color: var(--text);
  border: 1px solid var(--border);
  border-radius: 4px;
  font: 0.8125rem/1.5 'SF Mono', ui-monospace, Menlo, Consolas, monospace;
  padding: 0.5rem;
  resize: vertical;
}
.generate-bar { display: flex; gap: 0.5rem; margin-top: 0.5rem; }
.generate-bar input {
  flex: 1;
  background: var(--bg);
  color: var(--text);
  border: 1px solid var(--border);
  border-radius: 4px;
  padding: 0.375rem 0.75rem;
}
`
