// Package queue implements the cursor-keyed broadcast log subscribers
// long-poll against: every applied patch is appended once and delivered to
// any subscriber whose cursor is behind, with no gaps and no duplicates.
package queue

import (
	"context"
	"sync"

	"github.com/Roblox/rojo/internal/patch"
)

// Queue is a cursor-based broadcast queue over patch.AppliedPatchSet.
// Cursors are monotonic 1-based indices into the log and are never reused
// within a session (spec §4.G, P5).
type Queue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	log     []*patch.AppliedPatchSet
	closed  bool
}

// New returns an empty queue, cursor 0.
func New() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends patch to the log and wakes every waiter. A nil or empty
// patch is still appended — callers that only want to push non-empty
// patches should check patch.IsEmpty() themselves (the ChangeProcessor does
// this per spec §4.H step 5).
func (q *Queue) Push(p *patch.AppliedPatchSet) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.log = append(q.log, p)
	q.cond.Broadcast()
}

// Cursor returns the current end-of-log index.
func (q *Queue) Cursor() uint32 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return uint32(len(q.log))
}

// Close wakes every parked subscriber so they can observe cancellation; used
// during session shutdown.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

// Subscribe resolves immediately with any patches whose index > since;
// otherwise it parks until the next Push, ctx cancellation, or Close. If
// since exceeds the current cursor (a client reconnecting to a fresh
// server whose log is shorter than the cursor it remembers), it resolves
// immediately with an empty list and the current cursor — the client is
// expected to re-read the full tree via the read endpoint (spec §4.G).
func (q *Queue) Subscribe(ctx context.Context, since uint32) (uint32, []*patch.AppliedPatchSet) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if int(since) > len(q.log) {
		return uint32(len(q.log)), nil
	}

	if int(since) >= len(q.log) && !q.closed && ctx.Err() == nil {
		done := make(chan struct{})
		defer close(done)
		go func() {
			select {
			case <-ctx.Done():
				q.mu.Lock()
				q.cond.Broadcast()
				q.mu.Unlock()
			case <-done:
			}
		}()

		for int(since) >= len(q.log) && !q.closed && ctx.Err() == nil {
			q.cond.Wait()
		}
	}

	if ctx.Err() != nil {
		return since, nil
	}

	patches := append([]*patch.AppliedPatchSet(nil), q.log[since:]...)
	return uint32(len(q.log)), patches
}
