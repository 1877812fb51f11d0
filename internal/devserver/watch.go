package devserver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/akshayaparida/react-component-editor-sub000/pkg/logging"
	"github.com/akshayaparida/react-component-editor-sub000/pkg/protocol"
	"github.com/akshayaparida/react-component-editor-sub000/pkg/pubsub"
	"github.com/akshayaparida/react-component-editor-sub000/pkg/state"
	"github.com/akshayaparida/react-component-editor-sub000/pkg/transport"
)

// watchSettle is how long a file must stay quiet before it is reloaded.
// Editors write in bursts, and some replace the file twice per save.
const watchSettle = 100 * time.Millisecond

// watchExts are the source files watch mode reloads.
var watchExts = map[string]bool{".jsx": true, ".tsx": true, ".js": true}

// Watcher reloads on-disk component files into live documents. A change
// to Button.jsx updates the "Button" document; every session on it
// re-renders and hears a reload frame.
type Watcher struct {
	dir   string
	only  string // non-empty when watching a single file
	store *state.Store
	bus   *pubsub.Bus
	sse   *transport.SSEBroker
	log   logging.Logger

	fsw       *fsnotify.Watcher
	settled   chan string
	timers    map[string]*time.Timer
	timersMu  sync.Mutex
	closeCh   chan struct{}
	closeOnce sync.Once
}

// NewWatcher watches path, which may be a single component file or a
// directory of them.
func NewWatcher(path string, store *state.Store, bus *pubsub.Bus, sse *transport.SSEBroker, log logging.Logger) (*Watcher, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("watch path: %w", err)
	}

	w := &Watcher{
		store:   store,
		bus:     bus,
		sse:     sse,
		log:     log.With(logging.String("component", "watcher")),
		settled: make(chan string, 16),
		timers:  make(map[string]*time.Timer),
		closeCh: make(chan struct{}),
	}

	if info.IsDir() {
		w.dir = path
	} else {
		// Editors save by writing a temp file and renaming it over the
		// original, which replaces the watched inode. Watching the
		// parent directory survives that.
		w.dir = filepath.Dir(path)
		w.only = filepath.Base(path)
	}

	w.fsw, err = fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.fsw.Add(w.dir); err != nil {
		w.fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", w.dir, err)
	}
	return w, nil
}

// Run processes file events until the context ends or Close is called.
func (w *Watcher) Run(ctx context.Context) error {
	w.log.Info("watching for component changes", logging.String("dir", w.dir))

	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if !w.wants(event.Name) {
				continue
			}
			w.debounce(event.Name)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", logging.Err(err))

		case path := <-w.settled:
			w.reload(path)

		case <-ctx.Done():
			return ctx.Err()

		case <-w.closeCh:
			return nil
		}
	}
}

// Close stops the watcher. Idempotent.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.closeCh)
		err = w.fsw.Close()
		w.timersMu.Lock()
		for _, t := range w.timers {
			t.Stop()
		}
		w.timersMu.Unlock()
	})
	return err
}

func (w *Watcher) wants(path string) bool {
	name := filepath.Base(path)
	if w.only != "" {
		return name == w.only
	}
	return watchExts[strings.ToLower(filepath.Ext(name))]
}

// debounce arms, or re-arms, the settle timer for one file.
func (w *Watcher) debounce(path string) {
	w.timersMu.Lock()
	defer w.timersMu.Unlock()

	if t, ok := w.timers[path]; ok {
		t.Reset(watchSettle)
		return
	}
	w.timers[path] = time.AfterFunc(watchSettle, func() {
		w.timersMu.Lock()
		delete(w.timers, path)
		w.timersMu.Unlock()

		select {
		case w.settled <- path:
		case <-w.closeCh:
		}
	})
}

// reload reads a settled file into its document and tells the sessions
// on it. The document is named after the file: Button.jsx feeds the
// "Button" document.
func (w *Watcher) reload(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		// Renamed away or deleted between the event and the read; the
		// document keeps its last content.
		w.log.Debug("reload read failed", logging.String("path", path), logging.Err(err))
		return
	}
	source := string(data)
	if strings.TrimSpace(source) == "" {
		return
	}

	docID := DocIDForFile(path)

	if prev, err := w.store.Get(docID); err == nil && prev.Source == source {
		return
	}

	snap, err := w.store.Update(docID, source)
	if errors.Is(err, state.ErrDocNotFound) {
		snap, err = w.store.Open(docID, source)
	}
	if err != nil {
		w.log.Error("reload store write failed", logging.Doc(docID), logging.Err(err))
		return
	}

	w.log.Info("reloaded component from disk",
		logging.Doc(docID),
		logging.Uint64("version", snap.Version),
		logging.String("path", path))

	topic := protocol.DocTopic(docID)
	msg := protocol.BroadcastMessage(topic, protocol.EventReload, map[string]any{
		"version": snap.Version,
		"path":    filepath.Base(path),
	})
	if err := w.bus.Publish(topic, msg); err != nil {
		w.log.Debug("reload publish failed", logging.Err(err))
	}
	if w.sse != nil {
		w.sse.Broadcast(msg)
	}
}

// DocIDForFile maps a component file to its document ID.
func DocIDForFile(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}
