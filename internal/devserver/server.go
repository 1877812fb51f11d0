// Package devserver hosts the editor: the HTTP surface, the websocket
// sessions behind it, the SSE mirror for read-only viewers, watch mode
// and an ordered shutdown.
package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"github.com/akshayaparida/react-component-editor-sub000/client"
	"github.com/akshayaparida/react-component-editor-sub000/internal/playground"
	"github.com/akshayaparida/react-component-editor-sub000/pkg/audit"
	"github.com/akshayaparida/react-component-editor-sub000/pkg/config"
	"github.com/akshayaparida/react-component-editor-sub000/pkg/editor"
	"github.com/akshayaparida/react-component-editor-sub000/pkg/generate"
	"github.com/akshayaparida/react-component-editor-sub000/pkg/health"
	"github.com/akshayaparida/react-component-editor-sub000/pkg/limits"
	"github.com/akshayaparida/react-component-editor-sub000/pkg/logging"
	"github.com/akshayaparida/react-component-editor-sub000/pkg/metrics"
	"github.com/akshayaparida/react-component-editor-sub000/pkg/presence"
	"github.com/akshayaparida/react-component-editor-sub000/pkg/preview"
	"github.com/akshayaparida/react-component-editor-sub000/pkg/protocol"
	"github.com/akshayaparida/react-component-editor-sub000/pkg/pubsub"
	"github.com/akshayaparida/react-component-editor-sub000/pkg/recovery"
	"github.com/akshayaparida/react-component-editor-sub000/pkg/retry"
	"github.com/akshayaparida/react-component-editor-sub000/pkg/shutdown"
	"github.com/akshayaparida/react-component-editor-sub000/pkg/state"
	"github.com/akshayaparida/react-component-editor-sub000/pkg/tracing"
	"github.com/akshayaparida/react-component-editor-sub000/pkg/transport"
)

// maxConnsPerIP caps editor sessions per client address, independent of
// the server-wide cap. Sixteen covers a browser full of tabs.
const maxConnsPerIP = 16

// maxGenerateBody bounds the /api/generate request body.
const maxGenerateBody = 64 << 10

// Server ties the editor together: one document store and bus shared by
// every session, a websocket endpoint that spawns sessions, an SSE
// mirror for passive viewers, and the watch-mode file reloader.
type Server struct {
	cfg       *config.Config
	log       logging.Logger
	store     *state.Store
	bus       *pubsub.Bus
	registry  *presence.Registry
	recovery  *recovery.Manager
	auditLog  audit.Logger
	tracer    *tracing.Tracer
	checker   *health.Checker
	generator *generate.Generator
	sse       *transport.SSEBroker
	conns     *limits.CompositeConnectionLimiter
	watcher   *Watcher
	httpSrv   *http.Server
	hooks     *shutdown.Handler
	wsConfig  *transport.WebSocketConfig
	version   string

	sessions sync.Map // session id -> *editor.Session

	// bridges mirrors document topics onto the SSE broker, one bus
	// subscription per requested topic.
	bridges   map[string]*pubsub.Subscription
	bridgesMu sync.Mutex

	// sessionCtx outlives the accept loop so sessions drain through
	// their shutdown hook instead of dying with the listener.
	sessionCtx    context.Context
	sessionCancel context.CancelFunc
}

// Option overrides a Server collaborator, mostly for tests and
// embedding.
type Option func(*Server)

// WithLogger sets the server logger. The default is a text slog logger
// on stdout.
func WithLogger(log logging.Logger) Option {
	return func(s *Server) { s.log = log }
}

// WithStore supplies a pre-seeded document store.
func WithStore(store *state.Store) Option {
	return func(s *Server) { s.store = store }
}

// WithBus supplies the document broadcast bus.
func WithBus(bus *pubsub.Bus) Option {
	return func(s *Server) { s.bus = bus }
}

// WithAuditLogger sets the audit sink. The default writes JSON lines to
// stdout through an async buffer.
func WithAuditLogger(log audit.Logger) Option {
	return func(s *Server) { s.auditLog = log }
}

// WithGenerator supplies a prompt-to-JSX generator, bypassing the
// config-driven OpenAI setup.
func WithGenerator(g *generate.Generator) Option {
	return func(s *Server) { s.generator = g }
}

// WithVersion stamps the build version into health reports.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// New assembles a server from configuration. Nil cfg means
// config.Default. The watch path, when enabled, must exist; everything
// else is validated lazily.
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	s := &Server{
		cfg:     cfg,
		version: "dev",
		bridges: make(map[string]*pubsub.Subscription),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.log == nil {
		s.log = logging.NewSlogLogger()
	}
	if s.store == nil {
		s.store = state.NewStore(state.WithHistoryDepth(cfg.Editor.HistoryDepth))
	}
	if s.bus == nil {
		s.bus = pubsub.NewBus()
	}
	if s.auditLog == nil {
		s.auditLog = audit.NewAsyncLogger(audit.NewStdLogger(), 256)
	}

	s.registry = presence.NewRegistry()
	s.tracer = tracing.NewTracer("jsxedit")
	s.sse = transport.NewSSEBroker(nil, &transport.SSEConfig{AllowedOrigins: cfg.Server.AllowedOrigins})
	s.conns = limits.NewCompositeConnectionLimiter(maxConnsPerIP, cfg.Limits.MaxConnections)
	s.wsConfig = &transport.WebSocketConfig{AllowedOrigins: cfg.Server.AllowedOrigins}

	rc := recovery.DefaultConfig()
	if ttl := cfg.Editor.RecoveryTTL.Std(); ttl > 0 {
		rc.TTL = ttl
	}
	s.recovery = recovery.NewManager(rc)

	if s.generator == nil && cfg.Generate.APIKey != "" {
		g, err := generate.NewGenerator(generate.Config{
			APIKey:  cfg.Generate.APIKey,
			Model:   cfg.Generate.Model,
			Timeout: cfg.Generate.Timeout.Std(),
			Logger:  s.log,
		})
		if err != nil {
			return nil, fmt.Errorf("devserver: generator: %w", err)
		}
		s.generator = g
	}

	if cfg.Watch.Enabled {
		w, err := NewWatcher(cfg.Watch.Path, s.store, s.bus, s.sse, s.log)
		if err != nil {
			return nil, fmt.Errorf("devserver: watch %s: %w", cfg.Watch.Path, err)
		}
		s.watcher = w
	}

	drainTimeout := cfg.Server.ShutdownTimeout.Std()
	if drainTimeout <= 0 {
		drainTimeout = 10 * time.Second
	}
	s.hooks = shutdown.NewHandler(&shutdown.Config{
		Timeout:    drainTimeout,
		OnShutdown: func() { s.log.Info("shutting down") },
		OnHookComplete: func(name string, err error, elapsed time.Duration) {
			if err != nil {
				s.log.Warn("shutdown hook failed",
					logging.String("hook", name),
					logging.Err(err),
					logging.Duration("elapsed", elapsed))
				return
			}
			s.log.Debug("shutdown hook done",
				logging.String("hook", name),
				logging.Duration("elapsed", elapsed))
		},
	})

	s.checker = health.NewChecker()
	s.checker.SetVersion(s.version)
	s.checker.AddCriticalCheck("ping", health.PingCheck(), 0)
	s.checker.AddCheck("bus", health.BusCheck(s.bus.Dropped, 1000), 0)
	s.checker.AddCheck("connections", health.ConnectionCheck(s.conns.Count, cfg.Limits.MaxConnections), 0)
	s.checker.AddCheck("memory", health.MemoryCheck(1<<30), 0)
	if s.watcher != nil {
		s.checker.AddCheck("workspace", health.WorkspaceCheck(s.watcher.dir), 0)
	}
	if s.generator != nil {
		s.checker.AddCheck("generate", health.BreakerCheck(s.generator.BreakerState), 0)
	}

	s.sessionCtx, s.sessionCancel = context.WithCancel(context.Background())

	s.httpSrv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

// Handler returns the full route table. Exposed so tests can mount the
// server on httptest without a listener.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	// The upgrade and stream endpoints stay off the request logger:
	// its response wrapper hides the Hijacker and Flusher they need.
	r.HandleFunc("/ws", s.handleWS)
	r.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)

	web := r.PathPrefix("/").Subrouter()
	web.Use(logging.RequestLogger(s.log))
	web.PathPrefix("/client/").Handler(http.StripPrefix("/client/", client.Handler()))
	web.Handle("/healthz", s.checker.HealthHandler()).Methods(http.MethodGet)
	web.Handle("/healthz/live", s.checker.LivenessHandler()).Methods(http.MethodGet)
	web.Handle("/healthz/ready", s.checker.ReadinessHandler()).Methods(http.MethodGet)
	web.Handle("/metrics", metrics.Global.Handler()).Methods(http.MethodGet)
	web.HandleFunc("/api/generate", s.handleGenerate).Methods(http.MethodPost)
	web.Handle("/", playground.Handler(s.playgroundConfig())).Methods(http.MethodGet)

	return r
}

func (s *Server) playgroundConfig() playground.Config {
	pc := playground.DefaultConfig()
	if s.generator == nil {
		pc.GeneratePath = ""
	}
	return pc
}

// Store returns the shared document store.
func (s *Server) Store() *state.Store { return s.store }

// Bus returns the shared document bus.
func (s *Server) Bus() *pubsub.Bus { return s.bus }

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ip := limits.ClientIP(r)
	if !s.conns.Acquire(ip) {
		http.Error(w, "editor connection limit reached", http.StatusTooManyRequests)
		return
	}

	t := transport.NewWebSocketTransportWithConfig(nil, s.wsConfig)
	if err := t.Upgrade(w, r); err != nil {
		s.conns.Release(ip)
		s.log.Warn("websocket upgrade failed",
			logging.Err(err),
			logging.String("remote", ip))
		return
	}

	s.startSession(t, ip)
}

// startSession builds a session around an upgraded transport and runs
// it on its own goroutine. The connection slot is held until the
// session loop exits.
func (s *Server) startSession(t transport.Transport, ip string) {
	cfg := editor.Config{
		Transport:        t,
		Store:            s.store,
		Bus:              s.bus,
		Presence:         s.registry,
		Recovery:         s.recovery,
		Audit:            s.auditLog,
		Tracer:           s.tracer,
		Logger:           s.log,
		DebounceInterval: s.cfg.Editor.DebounceInterval.Std(),
		RemoteAddr:       ip,
	}
	if s.cfg.Limits.EventsPerSecond > 0 {
		cfg.Limiter = limits.NewTokenBucket(s.cfg.Limits.EventsPerSecond, s.cfg.Limits.EventBurst)
	}
	if !s.cfg.Editor.Sanitize {
		// Renderers are session-confined, so the unsanitized compiler
		// is built fresh per session rather than shared.
		cfg.Renderer = preview.NewRenderer(preview.WithCompiler(
			preview.NewTreeCompiler(preview.WithSanitizer(nil))))
	}

	sess, err := editor.NewSession(cfg)
	if err != nil {
		s.log.Error("session setup failed", logging.Err(err))
		_ = t.Close()
		s.conns.Release(ip)
		return
	}

	s.sessions.Store(sess.ID(), sess)
	go func() {
		defer s.conns.Release(ip)
		defer s.sessions.Delete(sess.ID())
		if err := sess.Run(s.sessionCtx); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Warn("session ended with error",
				logging.String("session", sess.ID()),
				logging.Err(err))
		}
	}()
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if topic := r.URL.Query().Get("topic"); topic != "" {
		s.bridge(topic)
	}
	s.sse.ServeHTTP(w, r)
}

// bridge forwards one document topic onto the SSE broker. Bridges are
// created on first demand and kept until shutdown; an editor serves a
// handful of documents, so they are never reaped earlier.
func (s *Server) bridge(topic string) {
	s.bridgesMu.Lock()
	defer s.bridgesMu.Unlock()
	if _, ok := s.bridges[topic]; ok {
		return
	}
	sub, err := s.bus.Subscribe(topic, "sse-bridge", func(msg *protocol.Message) {
		s.sse.Broadcast(msg)
	})
	if err != nil {
		s.log.Warn("sse bridge subscribe failed",
			logging.String("topic", topic),
			logging.Err(err))
		return
	}
	s.bridges[topic] = sub
}

func (s *Server) closeBridges() {
	s.bridgesMu.Lock()
	defer s.bridgesMu.Unlock()
	for topic, sub := range s.bridges {
		sub.Unsubscribe()
		delete(s.bridges, topic)
	}
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if s.generator == nil {
		writeJSONError(w, http.StatusServiceUnavailable,
			"generation is not configured; set OPENAI_API_KEY")
		return
	}

	var req struct {
		Prompt string `json:"prompt"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxGenerateBody)).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	source, err := s.generator.Generate(r.Context(), req.Prompt)
	if err != nil {
		switch {
		case errors.Is(err, generate.ErrEmptyPrompt):
			writeJSONError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, generate.ErrRateLimited):
			writeJSONError(w, http.StatusTooManyRequests, err.Error())
		case errors.Is(err, retry.ErrBreakerOpen):
			writeJSONError(w, http.StatusServiceUnavailable, err.Error())
		default:
			s.log.Warn("generation failed", logging.Err(err))
			writeJSONError(w, http.StatusBadGateway, "generation failed")
		}
		return
	}

	_ = json.NewEncoder(w).Encode(map[string]string{"source": source})
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// Run serves until ctx is canceled or a shutdown signal arrives, then
// drains in hook order: listener, sessions, watcher, bus, audit log.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("devserver: listen %s: %w", s.cfg.Server.Addr, err)
	}

	s.registerHooks()
	s.log.Info("dev server listening",
		logging.String("addr", ln.Addr().String()),
		logging.Bool("watch", s.watcher != nil),
		logging.Bool("generate", s.generator != nil))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if s.watcher != nil {
		g.Go(func() error {
			if err := s.watcher.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		waitErr := make(chan error, 1)
		go func() { waitErr <- s.hooks.Wait() }()
		select {
		case err := <-waitErr:
			return err
		case <-gctx.Done():
			if err := s.hooks.Shutdown(); err != nil && !errors.Is(err, shutdown.ErrAlreadyClosed) {
				return err
			}
			return nil
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Shutdown runs the registered teardown hooks once. Safe to call
// concurrently with Run.
func (s *Server) Shutdown() error {
	return s.hooks.Shutdown()
}

func (s *Server) registerHooks() {
	s.hooks.Register(shutdown.HTTPServerHook("http", s.httpSrv.Shutdown))
	s.hooks.RegisterFunc("sessions", shutdown.PrioritySessions, s.drainSessions)
	if s.watcher != nil {
		s.hooks.Register(shutdown.CloseableHook("watcher", shutdown.PriorityWatcher, s.watcher))
	}
	s.hooks.RegisterFunc("bus", shutdown.PriorityBus, func(ctx context.Context) error {
		s.closeBridges()
		return errors.Join(s.sse.Close(), s.bus.Close(), s.store.Close())
	})
	s.hooks.Register(shutdown.CloseableHook("audit", shutdown.PriorityAudit, s.auditLog))
}

// drainSessions closes every live session and waits for their loops to
// exit, bounded by the hook deadline.
func (s *Server) drainSessions(ctx context.Context) error {
	var open []*editor.Session
	s.sessions.Range(func(_, v any) bool {
		open = append(open, v.(*editor.Session))
		return true
	})

	for _, sess := range open {
		sess.Close()
	}
	for _, sess := range open {
		select {
		case <-sess.Done():
		case <-ctx.Done():
			s.sessionCancel()
			return ctx.Err()
		}
	}

	if len(open) > 0 {
		s.log.Info("drained sessions", logging.Int("count", len(open)))
	}
	s.sessionCancel()
	return nil
}
