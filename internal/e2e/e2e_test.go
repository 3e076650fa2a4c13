// Package e2e exercises the full pipeline — VFS, middleware, Tree, patch
// engine, ChangeProcessor and MessageQueue together — against the literal
// end-to-end scenarios a Rojo-style session must satisfy.
package e2e

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Roblox/rojo/internal/changeproc"
	"github.com/Roblox/rojo/internal/patch"
	"github.com/Roblox/rojo/internal/queue"
	"github.com/Roblox/rojo/internal/snapshot"
	"github.com/Roblox/rojo/internal/snapshot/middleware"
	"github.com/Roblox/rojo/internal/tree"
	"github.com/Roblox/rojo/internal/vfs"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func newVFS(t *testing.T) *vfs.VFS {
	t.Helper()
	v, err := vfs.New(0, true)
	if err != nil {
		t.Fatalf("vfs.New: %v", err)
	}
	return v
}

// TestBareLuaModule covers scenario 1: a project whose tree is a single
// $path node resolves to a Folder named after the project, containing one
// ModuleScript child per .lua file.
func TestBareLuaModule(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "t.project.json"), `{"name":"t","tree":{"$path":"src"}}`)
	writeFile(t, filepath.Join(root, "src", "hello.lua"), "return 1")

	v := newVFS(t)
	snap, err := middleware.Snapshot(snapshot.NewInstanceContext(), v, filepath.Join(root, "t.project.json"))
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Name != "t" || snap.ClassName != "Folder" {
		t.Fatalf("expected root Folder named t, got %s %s", snap.ClassName, snap.Name)
	}
	if len(snap.Children) != 1 {
		t.Fatalf("expected 1 child, got %d", len(snap.Children))
	}
	child := snap.Children[0]
	if child.Name != "hello" || child.ClassName != "ModuleScript" {
		t.Fatalf("expected hello ModuleScript, got %s %s", child.ClassName, child.Name)
	}
	if child.Properties["Source"].Str != "return 1" {
		t.Fatalf("expected Source 'return 1', got %q", child.Properties["Source"].Str)
	}
}

// TestInitPromotion covers scenario 2: adding an init.server.lua promotes
// its directory from Folder to Script, and a subsequent sibling file change
// produces a ModuleScript child on the promoted instance. Unlike the
// ChangeProcessor's own unit tests, this drives the real fsnotify watcher
// end to end rather than injecting synthetic events.
func TestInitPromotion(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "t.project.json"), `{"name":"t","tree":{"$path":"src"}}`)
	writeFile(t, filepath.Join(root, "src", "hello", "placeholder.lua"), "return 1")

	v, err := vfs.New(10*time.Millisecond, false)
	if err != nil {
		t.Fatalf("vfs.New: %v", err)
	}

	projectPath := filepath.Join(root, "t.project.json")
	rootSnap, err := middleware.Snapshot(snapshot.NewInstanceContext(), v, projectPath)
	if err != nil {
		t.Fatalf("initial Snapshot: %v", err)
	}

	tr := tree.New(rootSnap)
	q := queue.New()
	proc := changeproc.New(v, tr, q, root, projectPath, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go v.Start(ctx)
	go proc.Run(ctx)

	rootID := tr.RootID()
	children := tr.Children(rootID)
	if len(children) != 1 {
		t.Fatalf("expected 1 child (hello), got %d", len(children))
	}
	helloID := children[0]

	helloDir := filepath.Join(root, "src", "hello")
	writeFile(t, filepath.Join(helloDir, "init.server.lua"), "print(1)")

	waitFor(t, func() bool {
		hello, ok := tr.Get(helloID)
		return ok && hello.ClassName == "Script"
	}, "hello promoted to Script")

	writeFile(t, filepath.Join(helloDir, "world.lua"), "return 2")

	waitFor(t, func() bool {
		for _, c := range tr.Children(helloID) {
			if inst, ok := tr.Get(c); ok && inst.Name == "world" && inst.ClassName == "ModuleScript" {
				return true
			}
		}
		return false
	}, "hello gained world ModuleScript child")
}

func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for: %s", what)
}

// TestMetaOverride covers scenario 3: a meta.json sibling alone never
// produces an instance, but once its base file exists, the meta override
// applies to the resulting instance's class.
func TestMetaOverride(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "src", "config.meta.json"), `{"className":"Configuration"}`)

	v := newVFS(t)
	snap, err := middleware.Snapshot(snapshot.NewInstanceContext(), v, filepath.Join(root, "src"))
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snap.Children) != 0 {
		t.Fatalf("expected no children from a meta file alone, got %d", len(snap.Children))
	}

	writeFile(t, filepath.Join(root, "src", "config.lua"), "return {}")

	v2 := newVFS(t)
	snap2, err := middleware.Snapshot(snapshot.NewInstanceContext(), v2, filepath.Join(root, "src"))
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snap2.Children) != 1 {
		t.Fatalf("expected 1 child once config.lua exists, got %d", len(snap2.Children))
	}
	if snap2.Children[0].ClassName != "Configuration" {
		t.Fatalf("expected meta override to Configuration, got %s", snap2.Children[0].ClassName)
	}
}

// TestSubscribeOrdering covers scenario 4: a subscriber parked at the
// current cursor resolves only once a patch is pushed, receiving exactly
// that patch and the advanced cursor; resubscribing at the new cursor
// blocks again.
func TestSubscribeOrdering(t *testing.T) {
	q := queue.New()

	type result struct {
		cursor  uint32
		patches []*patch.AppliedPatchSet
	}
	done := make(chan result, 1)
	go func() {
		cursor, patches := q.Subscribe(context.Background(), 0)
		done <- result{cursor, patches}
	}()

	time.Sleep(20 * time.Millisecond)
	applied := &patch.AppliedPatchSet{Removed: []tree.ID{}}
	q.Push(applied)

	select {
	case r := <-done:
		if r.cursor != 1 || len(r.patches) != 1 {
			t.Fatalf("expected (1, [patch]), got (%d, %d patches)", r.cursor, len(r.patches))
		}
	case <-time.After(time.Second):
		t.Fatal("subscribe did not resolve after push")
	}

	resubscribeDone := make(chan result, 1)
	go func() {
		cursor, patches := q.Subscribe(context.Background(), 1)
		resubscribeDone <- result{cursor, patches}
	}()

	select {
	case <-resubscribeDone:
		t.Fatal("resubscribe at current cursor resolved early")
	case <-time.After(100 * time.Millisecond):
	}
}

// TestIgnoreUnknownPreservesClientInsertedChild covers scenario 5: a client
// write adds a child under an ignore_unknown_instances node; a later
// re-snapshot of that node, recomputed directly against the unchanged disk,
// must not remove it.
func TestIgnoreUnknownPreservesClientInsertedChild(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "t.project.json"),
		`{"name":"t","tree":{"$path":"src","$ignoreUnknownInstances":true}}`)
	writeFile(t, filepath.Join(root, "src", "hello.lua"), "return 1")

	v := newVFS(t)
	projectPath := filepath.Join(root, "t.project.json")
	rootSnap, err := middleware.Snapshot(snapshot.NewInstanceContext(), v, projectPath)
	if err != nil {
		t.Fatalf("initial Snapshot: %v", err)
	}

	tr := tree.New(rootSnap)
	q := queue.New()
	proc := changeproc.New(v, tr, q, root, projectPath, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go proc.Run(ctx)

	rootID := tr.RootID()
	clientSnap := snapshot.New("FromClient", "StringValue")
	applied, err := proc.Write(context.Background(), &patch.PatchSet{
		Added: []patch.AddOp{{ParentID: rootID, Snapshot: clientSnap}},
	})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(applied.Added) != 1 {
		t.Fatalf("expected client child added")
	}
	clientChildID := applied.Added[0].ID

	// Re-running the same snapshot against an unchanged disk state must be a
	// no-op: recompute and reapply directly (bypassing file-event plumbing,
	// which e2e here is not asserting timing for) and confirm the
	// client-inserted child survives because ignore_unknown_instances
	// suppresses its removal.
	newSnap, err := middleware.Snapshot(snapshot.NewInstanceContext(), v, projectPath)
	if err != nil {
		t.Fatalf("re-Snapshot: %v", err)
	}
	ps := patch.ComputePatchSet(newSnap, tr, rootID)
	if _, err := patch.ApplyPatchSet(tr, ps); err != nil {
		t.Fatalf("ApplyPatchSet: %v", err)
	}

	if _, ok := tr.Get(clientChildID); !ok {
		t.Fatal("client-inserted child was removed by re-snapshot despite ignore_unknown_instances")
	}
}

// TestFreshServerCursorAhead covers scenario 6: a client holding a cursor
// from a previous session subscribing against a freshly started, empty
// queue resolves immediately with the server's current (lower) cursor and
// no patches.
func TestFreshServerCursorAhead(t *testing.T) {
	q := queue.New()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	cursor, patches := q.Subscribe(ctx, 42)
	if cursor != 0 {
		t.Fatalf("expected cursor 0, got %d", cursor)
	}
	if len(patches) != 0 {
		t.Fatalf("expected no patches, got %d", len(patches))
	}
}
