package queue

import (
	"context"
	"testing"
	"time"

	"github.com/Roblox/rojo/internal/patch"
)

func TestSubscribeAheadOfCursorReturnsImmediately(t *testing.T) {
	q := New()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	cursor, patches := q.Subscribe(ctx, 42)
	if cursor != 0 || patches != nil {
		t.Fatalf("expected immediate (0, nil), got (%d, %v)", cursor, patches)
	}
}

func TestSubscribeAtCursorBlocksUntilPush(t *testing.T) {
	q := New()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan struct{})
	var gotCursor uint32
	var gotPatches []*patch.AppliedPatchSet
	go func() {
		gotCursor, gotPatches = q.Subscribe(ctx, q.Cursor())
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("subscribe returned before any push")
	case <-time.After(50 * time.Millisecond):
	}

	q.Push(&patch.AppliedPatchSet{})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("subscribe did not wake after push")
	}

	if gotCursor != 1 || len(gotPatches) != 1 {
		t.Fatalf("expected (1, [1 patch]), got (%d, %d patches)", gotCursor, len(gotPatches))
	}
}

func TestSubscribeCancelUnblocks(t *testing.T) {
	q := New()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		q.Subscribe(ctx, q.Cursor())
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("subscribe did not unblock on cancellation")
	}
}

func TestCursorsMonotonicAndGapless(t *testing.T) {
	q := New()
	for i := 0; i < 5; i++ {
		q.Push(&patch.AppliedPatchSet{})
	}

	ctx := context.Background()
	cursor, patches := q.Subscribe(ctx, 2)
	if cursor != 5 || len(patches) != 3 {
		t.Fatalf("expected cursor 5 with 3 patches, got cursor=%d patches=%d", cursor, len(patches))
	}
}
