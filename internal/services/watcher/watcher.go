// Package watcher reports changes to agent session logs.
package watcher

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/j-veylop/mission-control/internal/logger"
)

// DefaultDebounce coalesces bursts of writes to a sessions file.
const DefaultDebounce = 250 * time.Millisecond

const sessionsFileName = "sessions.json"

// ErrRootMissing is returned when the session log root does not exist.
var ErrRootMissing = errors.New("session log root does not exist")

// Event signals that one or more session files changed.
type Event struct {
	Error error
	Paths []string
}

// Watcher watches <root>/agents/*/sessions for sessions.json changes.
type Watcher struct {
	watcher   *fsnotify.Watcher
	eventChan chan Event
	stopChan  chan struct{}
	timer     *time.Timer
	pending   map[string]struct{}
	root      string
	debounce  time.Duration
	mu        sync.Mutex
	closeOnce sync.Once
}

// New starts watching root. Agents and sessions directories created later
// are picked up as they appear.
func New(root string, debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if _, err := os.Stat(root); err != nil {
		return nil, ErrRootMissing
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		watcher:   fw,
		eventChan: make(chan Event, 16),
		stopChan:  make(chan struct{}),
		pending:   make(map[string]struct{}),
		root:      root,
		debounce:  debounce,
	}

	if err := w.sync(); err != nil {
		if closeErr := fw.Close(); closeErr != nil {
			logger.Error("failed to close watcher", "error", closeErr)
		}
		return nil, err
	}

	go w.watchLoop()
	return w, nil
}

// Events returns the change notification channel.
func (w *Watcher) Events() <-chan Event {
	return w.eventChan
}

// sync adds a watch for every directory level that leads to a sessions
// file. Adding an already watched path is a no-op.
func (w *Watcher) sync() error {
	if err := w.watcher.Add(w.root); err != nil {
		return err
	}

	agentsDir := filepath.Join(w.root, "agents")
	entries, err := os.ReadDir(agentsDir)
	if err != nil {
		return nil
	}
	if err := w.watcher.Add(agentsDir); err != nil {
		return err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		agentDir := filepath.Join(agentsDir, entry.Name())
		if err := w.watcher.Add(agentDir); err != nil {
			logger.Warn("failed to watch agent dir", "path", agentDir, "error", err)
			continue
		}
		sessionsDir := filepath.Join(agentDir, "sessions")
		if _, err := os.Stat(sessionsDir); err != nil {
			continue
		}
		if err := w.watcher.Add(sessionsDir); err != nil {
			logger.Warn("failed to watch sessions dir", "path", sessionsDir, "error", err)
		}
	}
	return nil
}

// watchLoop handles file system events with debouncing.
func (w *Watcher) watchLoop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.sendEvent(Event{Error: err})

		case <-w.stopChan:
			return
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.sync(); err != nil {
				logger.Warn("failed to extend watch", "path", event.Name, "error", err)
			}
			// A sessions file may already exist in the new directory.
			if _, err := os.Stat(filepath.Join(event.Name, sessionsFileName)); err == nil {
				w.schedule(filepath.Join(event.Name, sessionsFileName))
			}
			return
		}
	}

	if filepath.Base(event.Name) != sessionsFileName {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
		w.schedule(event.Name)
	}
}

// schedule records a changed path and restarts the debounce timer.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending[path] = struct{}{}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	if len(paths) > 0 {
		w.sendEvent(Event{Paths: paths})
	}
}

// sendEvent sends an event non-blocking, dropping the oldest when full.
func (w *Watcher) sendEvent(event Event) {
	select {
	case <-w.stopChan:
		return
	default:
	}

	select {
	case w.eventChan <- event:
	default:
		select {
		case <-w.eventChan:
		default:
		}
		select {
		case w.eventChan <- event:
		default:
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.stopChan)
		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
		err = w.watcher.Close()
	})
	return err
}
