package vfs

import (
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Roblox/rojo/internal/logger"
)

// watchLoop converts raw fsnotify notifications into debounced Events. Each
// path gets its own debounce timer so rapid-fire editor save bursts (write,
// chmod, write again) coalesce into a single event instead of flooding the
// ChangeProcessor.
func (v *VFS) watchLoop() {
	for {
		select {
		case <-v.ctx.Done():
			return

		case raw, ok := <-v.watcher.Events:
			if !ok {
				return
			}
			v.debounce_(raw)

		case err, ok := <-v.watcher.Errors:
			if !ok {
				return
			}
			logger.WithError(err).Warn("filesystem watcher error")
		}
	}
}

// debounce_ schedules (or reschedules) delivery of raw for its path after
// the configured debounce interval. The trailing underscore avoids
// colliding with the debounce duration field.
func (v *VFS) debounce_(raw fsnotify.Event) {
	v.pendingMu.Lock()
	defer v.pendingMu.Unlock()

	if existing, ok := v.pending[raw.Name]; ok {
		existing.Stop()
	}

	v.pending[raw.Name] = time.AfterFunc(v.debounce, func() {
		v.pendingMu.Lock()
		delete(v.pending, raw.Name)
		v.pendingMu.Unlock()

		event := convertEvent(raw)
		if event == nil {
			return
		}

		// Send BLOCKING so backpressure propagates to the watcher instead
		// of silently dropping events during bulk filesystem operations.
		select {
		case v.events <- *event:
		case <-v.ctx.Done():
		}
	})
}

func convertEvent(raw fsnotify.Event) *Event {
	switch {
	case raw.Op&fsnotify.Create != 0:
		return &Event{Kind: EventCreated, Path: raw.Name}
	case raw.Op&fsnotify.Write != 0:
		return &Event{Kind: EventModified, Path: raw.Name}
	case raw.Op&fsnotify.Remove != 0:
		return &Event{Kind: EventRemoved, Path: raw.Name}
	case raw.Op&fsnotify.Rename != 0:
		// fsnotify reports the source side of a rename as a Rename op on
		// the OLD path with no new-path information; treat it as a Remove
		// like the teacher does, since callers must tolerate a
		// Remove+Create pair in place of a single Renamed event anyway.
		return &Event{Kind: EventRemoved, Path: raw.Name}
	default:
		return nil
	}
}
