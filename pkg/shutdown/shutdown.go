// Package shutdown coordinates devserver teardown. Components register
// hooks with a priority; on SIGINT/SIGTERM the handler runs them in
// order, so the listener stops accepting before sessions drain, and
// sessions drain before the bus and audit log close under them.
package shutdown

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"
)

// Common shutdown errors.
var (
	ErrShutdownTimeout = errors.New("shutdown timed out")
	ErrAlreadyClosed   = errors.New("shutdown already ran")
)

// Teardown order. Lower runs earlier.
const (
	// PriorityHTTP stops the listener so no new sessions arrive.
	PriorityHTTP = 100

	// PrioritySessions drains live editor sessions.
	PrioritySessions = 200

	// PriorityWatcher stops the file watcher.
	PriorityWatcher = 300

	// PriorityBus closes the document broadcast bus.
	PriorityBus = 400

	// PriorityAudit flushes the audit log last, so it records the
	// teardown itself.
	PriorityAudit = 500
)

// Hook is one piece of teardown work.
type Hook struct {
	// Name identifies the hook in logs.
	Name string

	// Priority orders execution; lower runs earlier.
	Priority int

	// Fn does the work. It should respect ctx, which carries the
	// overall shutdown deadline.
	Fn func(ctx context.Context) error
}

// Config configures a Handler.
type Config struct {
	// Timeout bounds the whole teardown.
	Timeout time.Duration

	// Signals to listen for. Defaults to SIGINT and SIGTERM.
	Signals []os.Signal

	// OnShutdown runs once when teardown begins.
	OnShutdown func()

	// OnHookComplete runs after each hook, whatever its outcome.
	OnHookComplete func(name string, err error, elapsed time.Duration)
}

// DefaultConfig allows ten seconds for the whole drain.
func DefaultConfig() *Config {
	return &Config{
		Timeout: 10 * time.Second,
		Signals: []os.Signal{os.Interrupt, syscall.SIGTERM},
	}
}

// Handler collects hooks and runs them once.
type Handler struct {
	config *Config
	hooks  []Hook
	done   chan struct{}
	closed bool
	mu     sync.Mutex
}

// NewHandler creates a handler; nil config means DefaultConfig.
func NewHandler(config *Config) *Handler {
	if config == nil {
		config = DefaultConfig()
	}
	return &Handler{
		config: config,
		done:   make(chan struct{}),
	}
}

// Register adds a hook. Safe to call until Shutdown starts.
func (h *Handler) Register(hook Hook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, hook)
}

// RegisterFunc registers a bare function as a hook.
func (h *Handler) RegisterFunc(name string, priority int, fn func(ctx context.Context) error) {
	h.Register(Hook{Name: name, Priority: priority, Fn: fn})
}

// Wait blocks until a signal arrives, then runs the hooks. It returns
// immediately if Shutdown already ran.
func (h *Handler) Wait() error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, h.config.Signals...)
	defer signal.Stop(sigCh)

	select {
	case <-sigCh:
	case <-h.done:
		return nil
	}
	return h.Shutdown()
}

// Shutdown runs the hooks in priority order under the configured
// timeout. Hook errors are collected, not fatal; a blown timeout stops
// the remaining hooks.
func (h *Handler) Shutdown() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrAlreadyClosed
	}
	h.closed = true
	close(h.done)
	hooks := make([]Hook, len(h.hooks))
	copy(hooks, h.hooks)
	h.mu.Unlock()

	sort.SliceStable(hooks, func(i, j int) bool {
		return hooks[i].Priority < hooks[j].Priority
	})

	if h.config.OnShutdown != nil {
		h.config.OnShutdown()
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var errs []error
	for _, hook := range hooks {
		start := time.Now()
		err := hook.Fn(ctx)
		if h.config.OnHookComplete != nil {
			h.config.OnHookComplete(hook.Name, err, time.Since(start))
		}
		if err != nil {
			errs = append(errs, err)
		}

		select {
		case <-ctx.Done():
			return errors.Join(append(errs, ErrShutdownTimeout)...)
		default:
		}
	}
	return errors.Join(errs...)
}

// Done is closed once Shutdown has started.
func (h *Handler) Done() <-chan struct{} {
	return h.done
}

// IsClosed reports whether Shutdown already ran.
func (h *Handler) IsClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// HTTPServerHook wraps an http.Server style Shutdown func at the
// listener priority.
func HTTPServerHook(name string, shutdownFn func(ctx context.Context) error) Hook {
	return Hook{Name: name, Priority: PriorityHTTP, Fn: shutdownFn}
}

// CloseableHook adapts anything with Close() error.
func CloseableHook(name string, priority int, closer interface{ Close() error }) Hook {
	return Hook{
		Name:     name,
		Priority: priority,
		Fn: func(context.Context) error {
			return closer.Close()
		},
	}
}

// TimeoutHook bounds one hook tighter than the overall deadline.
func TimeoutHook(hook Hook, timeout time.Duration) Hook {
	return Hook{
		Name:     hook.Name,
		Priority: hook.Priority,
		Fn: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			return hook.Fn(ctx)
		},
	}
}
