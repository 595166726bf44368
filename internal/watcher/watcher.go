// Package watcher wraps fsnotify with debounced, batched change delivery.
//
// Plugins subscribe a root path with an optional set of ignore globs and
// receive batches of events coalesced per debounce window, deduplicated by
// path so a burst of edits to one file yields a single event.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/assetforge/assetforge/internal/logging"
)

// EventType represents the type of file change
type EventType int

const (
	EventTypeCreate EventType = iota
	EventTypeUpdate
	EventTypeDelete
)

// String returns the string representation of the EventType
func (e EventType) String() string {
	switch e {
	case EventTypeCreate:
		return "create"
	case EventTypeUpdate:
		return "update"
	case EventTypeDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Event represents a single file change with an absolute path
type Event struct {
	Type EventType
	Path string
}

// BatchHandler receives all events that fell within one debounce window.
// Order within a batch is filesystem-emission order and not guaranteed.
type BatchHandler func(events []Event)

// SubscribeOptions tunes a subscription
type SubscribeOptions struct {
	// Ignore lists globs matched against the path relative to the
	// subscription root; matching events are dropped.
	Ignore []string
}

// Subscription ties a root path and handler to the watcher
type Subscription struct {
	root    string
	ignore  []string
	handler BatchHandler
}

// FileWatcher watches subscribed roots and delivers debounced batches
type FileWatcher struct {
	watcher       *fsnotify.Watcher
	debouncer     *debouncer
	subscriptions []*Subscription
	logger        logging.Logger
	mutex         sync.RWMutex
}

// debouncer groups rapid file changes into one batch
type debouncer struct {
	delay   time.Duration
	events  chan Event
	output  chan []Event
	timer   *time.Timer
	pending map[string]Event
	mutex   sync.Mutex
}

// New creates a file watcher with the given debounce window.
func New(debounceDelay time.Duration, logger logging.Logger) (*FileWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Nop()
	}

	return &FileWatcher{
		watcher: fsw,
		debouncer: &debouncer{
			delay:   debounceDelay,
			events:  make(chan Event, 256),
			output:  make(chan []Event, 16),
			pending: make(map[string]Event),
		},
		logger: logger.WithScope("watcher"),
	}, nil
}

// Subscribe registers root (recursively) and delivers batched events under
// it to handler. The call returns quickly; delivery happens on the watcher
// goroutines after Start.
func (fw *FileWatcher) Subscribe(root string, handler BatchHandler, opts *SubscribeOptions) (*Subscription, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving subscription root: %w", err)
	}

	if err := fw.addRecursive(absRoot); err != nil {
		return nil, err
	}

	sub := &Subscription{
		root:    absRoot,
		handler: handler,
	}
	if opts != nil {
		sub.ignore = opts.Ignore
	}

	fw.mutex.Lock()
	fw.subscriptions = append(fw.subscriptions, sub)
	fw.mutex.Unlock()

	return sub, nil
}

// Cancel removes the subscription. Already-queued batches may still be
// delivered.
func (fw *FileWatcher) Cancel(sub *Subscription) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	for i, s := range fw.subscriptions {
		if s == sub {
			fw.subscriptions = append(fw.subscriptions[:i], fw.subscriptions[i+1:]...)
			return
		}
	}
}

func (fw *FileWatcher) addRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return fw.watcher.Add(path)
		}
		return nil
	})
}

// Start launches the watch, debounce, and dispatch goroutines. They exit
// when ctx is cancelled.
func (fw *FileWatcher) Start(ctx context.Context) {
	go fw.debouncer.run(ctx)
	go fw.dispatch(ctx)
	go fw.watchLoop(ctx)
}

// Stop closes the underlying fsnotify watcher
func (fw *FileWatcher) Stop() error {
	fw.debouncer.mutex.Lock()
	if fw.debouncer.timer != nil {
		fw.debouncer.timer.Stop()
	}
	fw.debouncer.mutex.Unlock()
	return fw.watcher.Close()
}

func (fw *FileWatcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleFsnotifyEvent(event)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			// Watcher errors never terminate the watch loop.
			fw.logger.Warn(err, "filesystem watch error")
		}
	}
}

func (fw *FileWatcher) handleFsnotifyEvent(event fsnotify.Event) {
	var eventType EventType
	switch {
	case event.Op&fsnotify.Create != 0:
		eventType = EventTypeCreate
		// New directories join the recursive watch so files created
		// inside them are seen.
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := fw.addRecursive(event.Name); err != nil {
				fw.logger.Warn(err, "watching new directory", "path", event.Name)
			}
		}
	case event.Op&fsnotify.Write != 0:
		eventType = EventTypeUpdate
	case event.Op&fsnotify.Remove != 0, event.Op&fsnotify.Rename != 0:
		eventType = EventTypeDelete
	default:
		// Chmod and friends carry no content change.
		return
	}

	path := event.Name
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	select {
	case fw.debouncer.events <- Event{Type: eventType, Path: path}:
	default:
		fw.logger.Warn(nil, "event queue full, dropping event", "path", path)
	}
}

func (fw *FileWatcher) dispatch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch := <-fw.debouncer.output:
			fw.mutex.RLock()
			subs := make([]*Subscription, len(fw.subscriptions))
			copy(subs, fw.subscriptions)
			fw.mutex.RUnlock()

			for _, sub := range subs {
				matched := sub.filter(batch)
				if len(matched) > 0 {
					sub.handler(matched)
				}
			}
		}
	}
}

// filter returns the events under the subscription root that no ignore glob
// matches.
func (s *Subscription) filter(batch []Event) []Event {
	var matched []Event
	for _, ev := range batch {
		rel, err := filepath.Rel(s.root, ev.Path)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		if s.ignored(rel) {
			continue
		}
		matched = append(matched, ev)
	}
	return matched
}

func (s *Subscription) ignored(rel string) bool {
	rel = filepath.ToSlash(rel)
	base := filepath.Base(rel)
	for _, pattern := range s.ignore {
		if ok, _ := filepath.Match(pattern, rel); ok {
			return true
		}
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
	}
	return false
}

func (d *debouncer) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-d.events:
			d.add(event)
		}
	}
}

func (d *debouncer) add(event Event) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	// Deduplicate by path: the latest event within the window wins, except
	// that a create followed by an update is still a create.
	if prev, ok := d.pending[event.Path]; ok &&
		prev.Type == EventTypeCreate && event.Type == EventTypeUpdate {
		event.Type = EventTypeCreate
	}
	d.pending[event.Path] = event

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.flush)
}

func (d *debouncer) flush() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if len(d.pending) == 0 {
		return
	}

	batch := make([]Event, 0, len(d.pending))
	for _, event := range d.pending {
		batch = append(batch, event)
	}
	d.pending = make(map[string]Event)

	select {
	case d.output <- batch:
	default:
		// Output queue full, batch is lost; the next change re-triggers.
	}
}
