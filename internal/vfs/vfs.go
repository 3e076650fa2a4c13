// Package vfs provides a lazily-populated, watcher-invalidated cache over
// the real filesystem: the daemon's only point of contact with disk I/O.
package vfs

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Roblox/rojo/internal/logger"
	"github.com/Roblox/rojo/internal/rojoerr"
)

// EntryKind discriminates a cached entry's shape.
type EntryKind int

const (
	KindFile EntryKind = iota
	KindDir
)

type entry struct {
	kind     EntryKind
	contents []byte
	children map[string]struct{}
	fresh    bool
}

// EventKind enumerates the watcher events the VFS surfaces to consumers.
type EventKind int

const (
	EventCreated EventKind = iota
	EventModified
	EventRemoved
	EventRenamed
)

func (k EventKind) String() string {
	switch k {
	case EventCreated:
		return "created"
	case EventModified:
		return "modified"
	case EventRemoved:
		return "removed"
	case EventRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// Event is a single filesystem change notification. Renames may arrive as
// a Remove+Create pair instead of a single Renamed event; consumers must
// tolerate both forms.
type Event struct {
	Kind EventKind
	Path string
	From string // set only for EventRenamed
}

// VFS is a lazy cache over the real filesystem with a debounced change
// channel. Reads populate the cache and register the touched path with the
// watcher; a CommitEvent call is required before the consumer re-reads a
// path affected by an event, to guarantee freshness.
type VFS struct {
	mu    sync.RWMutex
	cache map[string]*entry

	watcher  *fsnotify.Watcher
	disabled bool
	debounce time.Duration

	watched   map[string]struct{}
	watchedMu sync.Mutex

	events chan Event

	pendingMu sync.Mutex
	pending   map[string]*time.Timer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a VFS. When disabled is true, the watcher is never started
// (one-shot mode): reads still work, but no events are ever produced. This
// avoids the drop-order deadlock described in the session shutdown contract
// when a caller never intends to run a live ChangeProcessor.
func New(debounce time.Duration, disabled bool) (*VFS, error) {
	v := &VFS{
		cache:    make(map[string]*entry),
		disabled: disabled,
		debounce: debounce,
		watched:  make(map[string]struct{}),
		events:   make(chan Event, 10000),
		pending:  make(map[string]*time.Timer),
	}

	if !disabled {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, rojoerr.IOWrap("creating filesystem watcher", err)
		}
		v.watcher = w
	}

	return v, nil
}

// Start begins the watcher's convert-and-debounce loop. It blocks until ctx
// is cancelled or Stop is called (in disabled mode only ctx cancellation
// ends it); callers should run it in a goroutine.
func (v *VFS) Start(ctx context.Context) error {
	if v.disabled {
		<-ctx.Done()
		return nil
	}

	v.ctx, v.cancel = context.WithCancel(ctx)

	v.wg.Add(1)
	go func() {
		defer v.wg.Done()
		v.watchLoop()
	}()

	<-v.ctx.Done()
	return nil
}

// Stop closes the watcher and waits for the converter goroutine to exit.
// Per the session shutdown contract, Stop must be called AFTER the
// ChangeProcessor has stopped consuming from EventChannel — stopping the
// watcher first, while a ChangeProcessor still blocks trying to send,
// deadlocks the shutdown.
func (v *VFS) Stop() error {
	if v.disabled {
		return nil
	}
	if v.cancel != nil {
		v.cancel()
	}
	err := v.watcher.Close()
	v.wg.Wait()

	v.pendingMu.Lock()
	for _, t := range v.pending {
		t.Stop()
	}
	v.pendingMu.Unlock()

	if err != nil {
		return rojoerr.IOWrap("closing filesystem watcher", err)
	}
	return nil
}

// EventChannel returns the channel consumers receive debounced events from.
func (v *VFS) EventChannel() <-chan Event {
	return v.events
}

// Read returns path's file contents, reading through to disk on a cache
// miss and memoizing the result. The file's parent directory is registered
// with the watcher on first touch.
func (v *VFS) Read(path string) ([]byte, error) {
	v.registerWatch(filepath.Dir(path))

	v.mu.RLock()
	if e, ok := v.cache[path]; ok && e.fresh && e.kind == KindFile {
		defer v.mu.RUnlock()
		return e.contents, nil
	}
	v.mu.RUnlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, rojoerr.IOWrap("path not found: "+path, err)
		}
		return nil, rojoerr.IOWrap("reading "+path, err)
	}

	v.mu.Lock()
	v.cache[path] = &entry{kind: KindFile, contents: data, fresh: true}
	v.mu.Unlock()

	return data, nil
}

// Metadata reports whether path is currently a file or directory.
func (v *VFS) Metadata(path string) (EntryKind, error) {
	v.mu.RLock()
	if e, ok := v.cache[path]; ok && e.fresh {
		defer v.mu.RUnlock()
		return e.kind, nil
	}
	v.mu.RUnlock()

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, rojoerr.IOWrap("path not found: "+path, err)
		}
		return 0, rojoerr.IOWrap("stat "+path, err)
	}

	kind := KindFile
	if info.IsDir() {
		kind = KindDir
	}

	v.mu.Lock()
	if _, ok := v.cache[path]; !ok {
		v.cache[path] = &entry{kind: kind, fresh: true}
	} else {
		v.cache[path].kind = kind
		v.cache[path].fresh = true
	}
	v.mu.Unlock()

	return kind, nil
}

// Children returns path's directory listing (file names, not full paths),
// reading through to disk on a cache miss. path is registered with the
// watcher on first touch.
func (v *VFS) Children(path string) ([]string, error) {
	v.registerWatch(path)

	v.mu.RLock()
	if e, ok := v.cache[path]; ok && e.fresh && e.kind == KindDir && e.children != nil {
		defer v.mu.RUnlock()
		return mapKeys(e.children), nil
	}
	v.mu.RUnlock()

	dirEntries, err := os.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, rojoerr.IOWrap("directory not found: "+path, err)
		}
		return nil, rojoerr.IOWrap("listing "+path, err)
	}

	children := make(map[string]struct{}, len(dirEntries))
	for _, de := range dirEntries {
		children[de.Name()] = struct{}{}
	}

	v.mu.Lock()
	v.cache[path] = &entry{kind: KindDir, children: children, fresh: true}
	v.mu.Unlock()

	return mapKeys(children), nil
}

// CommitEvent invalidates the cache entries affected by event. Consumers
// must call this before re-reading a path touched by an event, to
// guarantee a fresh read.
func (v *VFS) CommitEvent(event Event) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.invalidateLocked(event.Path)
	if event.Kind == EventRenamed {
		v.invalidateLocked(event.From)
	}
	v.invalidateLocked(filepath.Dir(event.Path))
}

func (v *VFS) invalidateLocked(path string) {
	if e, ok := v.cache[path]; ok {
		e.fresh = false
	}
}

func (v *VFS) registerWatch(path string) {
	if v.disabled || path == "" {
		return
	}
	v.watchedMu.Lock()
	defer v.watchedMu.Unlock()
	if _, ok := v.watched[path]; ok {
		return
	}
	if err := v.watcher.Add(path); err != nil {
		logger.WithError(err).WithField("path", path).Debug("failed to register watch")
		return
	}
	v.watched[path] = struct{}{}
}

func mapKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
