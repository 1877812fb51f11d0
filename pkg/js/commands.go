// Package js builds JavaScript commands for the editor client runtime.
// The session drives the highlight overlay and selection outline through
// these; they execute in the browser without a server roundtrip.
package js

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Command represents a JavaScript command to execute on the client.
type Command interface {
	// ToJS returns the JavaScript code to execute.
	ToJS() string
}

// Commands holds a sequence of commands.
type Commands []Command

// ToJS returns the JavaScript for all commands.
func (cs Commands) ToJS() string {
	var parts []string
	for _, c := range cs {
		parts = append(parts, c.ToJS())
	}
	return strings.Join(parts, ";")
}

// String implements fmt.Stringer.
func (cs Commands) String() string {
	return cs.ToJS()
}

// jsCommand is a simple command holder.
type jsCommand struct {
	code string
}

func (c jsCommand) ToJS() string {
	return c.code
}

func (c jsCommand) String() string {
	return c.code
}

// JS is the namespace for client commands.
var JS = jsNamespace{}

type jsNamespace struct{}

// OverlayMove positions the hover overlay over an element's box.
func (js jsNamespace) OverlayMove(x, y, w, h float64) Command {
	return jsCommand{code: fmt.Sprintf(`jsxedit.overlay.move({x:%g,y:%g,w:%g,h:%g})`, x, y, w, h)}
}

// OverlayLabel sets the tag label shown on the overlay.
func (js jsNamespace) OverlayLabel(text string) Command {
	return jsCommand{code: fmt.Sprintf(`jsxedit.overlay.label(%q)`, text)}
}

// OverlayHide hides the hover overlay.
func (js jsNamespace) OverlayHide() Command {
	return jsCommand{code: `jsxedit.overlay.hide()`}
}

// Select draws the selection outline around the element with the given
// stable ID.
func (js jsNamespace) Select(eid string) Command {
	return jsCommand{code: fmt.Sprintf(`jsxedit.select(%q)`, eid)}
}

// ClearSelection removes the selection outline.
func (js jsNamespace) ClearSelection() Command {
	return jsCommand{code: `jsxedit.clearSelect()`}
}

// Show shows an element.
func (js jsNamespace) Show(selector string, opts ...TransitionOption) Command {
	config := transitionConfig{time: 200}
	for _, opt := range opts {
		opt(&config)
	}

	if config.transition != "" {
		return jsCommand{code: fmt.Sprintf(`jsxedit.show(%q,{transition:%q,time:%d})`, selector, config.transition, config.time)}
	}
	return jsCommand{code: fmt.Sprintf(`jsxedit.show(%q)`, selector)}
}

// Hide hides an element.
func (js jsNamespace) Hide(selector string, opts ...TransitionOption) Command {
	config := transitionConfig{time: 200}
	for _, opt := range opts {
		opt(&config)
	}

	if config.transition != "" {
		return jsCommand{code: fmt.Sprintf(`jsxedit.hide(%q,{transition:%q,time:%d})`, selector, config.transition, config.time)}
	}
	return jsCommand{code: fmt.Sprintf(`jsxedit.hide(%q)`, selector)}
}

// AddClass adds CSS class(es) to an element.
func (js jsNamespace) AddClass(selector, class string) Command {
	return jsCommand{code: fmt.Sprintf(`jsxedit.addClass(%q,%q)`, selector, class)}
}

// RemoveClass removes CSS class(es) from an element.
func (js jsNamespace) RemoveClass(selector, class string) Command {
	return jsCommand{code: fmt.Sprintf(`jsxedit.removeClass(%q,%q)`, selector, class)}
}

// SetAttr sets an attribute on an element.
func (js jsNamespace) SetAttr(selector, attr, value string) Command {
	return jsCommand{code: fmt.Sprintf(`jsxedit.setAttr(%q,%q,%q)`, selector, attr, value)}
}

// RemoveAttr removes an attribute from an element.
func (js jsNamespace) RemoveAttr(selector, attr string) Command {
	return jsCommand{code: fmt.Sprintf(`jsxedit.removeAttr(%q,%q)`, selector, attr)}
}

// Focus sets focus on an element.
func (js jsNamespace) Focus(selector string) Command {
	return jsCommand{code: fmt.Sprintf(`jsxedit.focus(%q)`, selector)}
}

// Dispatch dispatches a DOM event on an element.
func (js jsNamespace) Dispatch(selector, event string, opts ...DispatchOption) Command {
	config := dispatchConfig{}
	for _, opt := range opts {
		opt(&config)
	}

	if config.detail != nil {
		detailJSON, _ := json.Marshal(config.detail)
		return jsCommand{code: fmt.Sprintf(`jsxedit.dispatch(%q,%q,{detail:%s})`, selector, event, string(detailJSON))}
	}
	return jsCommand{code: fmt.Sprintf(`jsxedit.dispatch(%q,%q)`, selector, event)}
}

// Exec executes arbitrary JavaScript.
func (js jsNamespace) Exec(code string) Command {
	return jsCommand{code: code}
}

// Pipe chains multiple commands.
func (js jsNamespace) Pipe(commands ...Command) Command {
	var parts []string
	for _, cmd := range commands {
		parts = append(parts, cmd.ToJS())
	}
	return jsCommand{code: strings.Join(parts, ";")}
}

// Option types

type transitionConfig struct {
	transition string
	time       int
}

// TransitionOption configures show/hide transitions.
type TransitionOption func(*transitionConfig)

// Transition names the CSS transition class to apply.
func Transition(name string) TransitionOption {
	return func(c *transitionConfig) {
		c.transition = name
	}
}

// Time sets the transition duration in milliseconds.
func Time(ms int) TransitionOption {
	return func(c *transitionConfig) {
		c.time = ms
	}
}

type dispatchConfig struct {
	detail map[string]any
}

// DispatchOption configures dispatched events.
type DispatchOption func(*dispatchConfig)

// Detail attaches a detail object to the dispatched event.
func Detail(d map[string]any) DispatchOption {
	return func(c *dispatchConfig) {
		c.detail = d
	}
}

// Transitions defined by the playground stylesheet.
const (
	TransitionFadeIn  = "fade-in"
	TransitionFadeOut = "fade-out"
)
