// Package changeproc implements the ChangeProcessor: the single thread that
// owns the Tree and the VFS cache, fans watcher events into re-snapshots
// and patches, and serializes client-initiated writes alongside them (spec
// §4.H, §5).
package changeproc

import (
	"context"
	"errors"
	"io/fs"

	"github.com/Roblox/rojo/internal/logger"
	"github.com/Roblox/rojo/internal/pathmap"
	"github.com/Roblox/rojo/internal/patch"
	"github.com/Roblox/rojo/internal/queue"
	"github.com/Roblox/rojo/internal/search"
	"github.com/Roblox/rojo/internal/snapshot"
	"github.com/Roblox/rojo/internal/snapshot/middleware"
	"github.com/Roblox/rojo/internal/tree"
	"github.com/Roblox/rojo/internal/vfs"
)

// WriteRequest is a client-initiated edit (POST /api/write) submitted on
// the writes channel, which Run selects on alongside filesystem events, so
// the façade never races the ChangeProcessor for the tree mutex.
type WriteRequest struct {
	Patch *patch.PatchSet
	reply chan writeResult
}

type writeResult struct {
	Applied *patch.AppliedPatchSet
	Err     error
}

// Processor owns the Tree, the VFS cache, and a path index from filesystem
// anchor paths to the instance currently occupying them. It is the only
// consumer of the VFS event channel and the only mutator of the Tree.
type Processor struct {
	vfs  *vfs.VFS
	tree *tree.Tree
	q    *queue.Queue

	rootPath string
	paths    *pathmap.PathMap[tree.ID]
	search   *search.Index

	writes chan WriteRequest
}

// New constructs a Processor. rootPath is the on-disk directory the tree's
// root instance occupies (the project's folder, per spec §4.H; relative
// $path entries and init-promoted directories both live under it).
// projectFilePath, if non-empty, is the project file's own exact location;
// it is registered as an additional anchor distinct from the root's
// RelevantPaths[0] position, so that editing the project file itself
// (renaming the mounted path, changing ignoreUnknownInstances, and so on)
// re-runs the project middleware from its own file rather than only the
// subtree it mounts. The path index is seeded from the tree's current
// contents before Run is started. idx may be nil, in which case the search
// index is not maintained (spec §4.L's search enrichment is optional).
func New(v *vfs.VFS, t *tree.Tree, q *queue.Queue, rootPath, projectFilePath string, idx *search.Index) *Processor {
	p := &Processor{
		vfs:      v,
		tree:     t,
		q:        q,
		rootPath: rootPath,
		paths:    pathmap.New[tree.ID](),
		search:   idx,
		writes:   make(chan WriteRequest, 64),
	}
	p.indexSubtree(t.RootID())

	if projectFilePath != "" {
		rootID := t.RootID()
		if root, ok := t.Get(rootID); ok {
			if a, ok2 := anchorOf(root.Metadata); !ok2 || a != projectFilePath {
				p.paths.Insert(projectFilePath, rootID)
			}
		}
	}

	return p
}

// Write submits a client-generated patch set for application, serialized
// alongside filesystem events, and blocks until it has been applied (or ctx
// is cancelled).
func (p *Processor) Write(ctx context.Context, ps *patch.PatchSet) (*patch.AppliedPatchSet, error) {
	reply := make(chan writeResult, 1)
	select {
	case p.writes <- WriteRequest{Patch: ps, reply: reply}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case res := <-reply:
		return res.Applied, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Run processes VFS events and write requests strictly in arrival order
// until ctx is cancelled or the VFS event channel closes. Each event is
// fully handled — invalidate, find, re-snapshot, diff, apply, publish —
// before the next begins (spec §4.H ordering guarantee).
func (p *Processor) Run(ctx context.Context) {
	events := p.vfs.EventChannel()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			p.handleEvent(ev)
		case req := <-p.writes:
			p.handleWrite(req)
		}
	}
}

func (p *Processor) handleWrite(req WriteRequest) {
	applied, err := p.applyAndPublish(req.Patch)
	req.reply <- writeResult{Applied: applied, Err: err}
}

func (p *Processor) handleEvent(ev vfs.Event) {
	p.vfs.CommitEvent(ev)

	changed := []string{ev.Path}
	if ev.Kind == vfs.EventRenamed {
		changed = []string{ev.From, ev.Path}
	}

	for _, path := range changed {
		if err := p.reconcilePath(path); err != nil {
			logger.WithError(err).WithField("path", path).Warn("change processor: failed to reconcile path")
		}
	}
}

// reconcilePath finds the instance that owns path and re-snapshots it.
// Descend naturally lands on the owning directory rather than an init.*
// file: an init-promoted instance's RelevantPaths[0] (the only entry this
// index stores) is always the directory, never the init file itself, so no
// separate "step up one level" rule is needed here.
func (p *Processor) reconcilePath(changedPath string) error {
	anchor := p.paths.Descend(p.rootPath, changedPath)

	id, ok := p.paths.Get(anchor)
	if !ok {
		return nil
	}

	return p.resnapshot(id, anchor)
}

// resnapshot re-runs the middleware pipeline at anchorPath and converges
// the tree onto the result. A missing path or a nil result both mean the
// source vanished entirely: the instance is removed rather than updated —
// the always-re-snapshot semantics the spec's open question resolves in
// favor of (spec §9).
func (p *Processor) resnapshot(id tree.ID, anchorPath string) error {
	inst, ok := p.tree.Get(id)
	if !ok {
		return nil
	}

	newSnap, err := middleware.Snapshot(inst.Metadata.Context, p.vfs, anchorPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			_, rerr := p.applyAndPublish(&patch.PatchSet{Removed: []tree.ID{id}})
			return rerr
		}
		return err
	}

	if newSnap == nil {
		_, err := p.applyAndPublish(&patch.PatchSet{Removed: []tree.ID{id}})
		return err
	}

	ps := patch.ComputePatchSet(newSnap, p.tree, id)
	_, err = p.applyAndPublish(ps)
	return err
}

// applyAndPublish applies ps to the tree, keeps the path index in sync with
// the result, and pushes the applied patch to the queue (spec §4.H step 5:
// only non-empty patches are published).
func (p *Processor) applyAndPublish(ps *patch.PatchSet) (*patch.AppliedPatchSet, error) {
	if ps.IsEmpty() {
		return nil, nil
	}

	removedAnchors := make([]string, 0, len(ps.Removed))
	for _, id := range ps.Removed {
		if inst, ok := p.tree.Get(id); ok {
			if a, ok2 := anchorOf(inst.Metadata); ok2 {
				removedAnchors = append(removedAnchors, a)
			}
		}
	}
	updatedOldAnchors := make(map[tree.ID]string, len(ps.Updated))
	for _, u := range ps.Updated {
		if inst, ok := p.tree.Get(u.ID); ok {
			if a, ok2 := anchorOf(inst.Metadata); ok2 {
				updatedOldAnchors[u.ID] = a
			}
		}
	}

	applied, err := patch.ApplyPatchSet(p.tree, ps)
	if err != nil {
		return nil, err
	}

	for _, a := range removedAnchors {
		p.paths.Remove(a)
	}
	for _, id := range ps.Removed {
		p.searchDelete(id)
	}
	for id, oldAnchor := range updatedOldAnchors {
		inst, ok := p.tree.Get(id)
		if !ok {
			continue
		}
		newAnchor, hasNew := anchorOf(inst.Metadata)
		if oldAnchor != "" && (!hasNew || oldAnchor != newAnchor) {
			p.paths.Remove(oldAnchor)
		}
		if hasNew && oldAnchor != newAnchor {
			p.paths.Insert(newAnchor, id)
		}
		p.searchUpsert(id, inst)
	}
	for _, add := range applied.Added {
		p.indexSubtree(add.ID)
	}

	p.q.Push(applied)
	return applied, nil
}

func (p *Processor) indexSubtree(id tree.ID) {
	inst, ok := p.tree.Get(id)
	if !ok {
		return
	}
	if a, ok2 := anchorOf(inst.Metadata); ok2 {
		p.paths.Insert(a, id)
	}
	p.searchUpsert(id, inst)
	for _, c := range inst.Children {
		p.indexSubtree(c)
	}
}

func (p *Processor) searchUpsert(id tree.ID, inst *tree.Instance) {
	if p.search == nil {
		return
	}
	if err := p.search.Upsert(id, inst); err != nil {
		logger.WithError(err).WithField("id", id).Warn("change processor: failed to update search index")
	}
}

func (p *Processor) searchDelete(id tree.ID) {
	if p.search == nil {
		return
	}
	if err := p.search.Delete(id); err != nil {
		logger.WithError(err).WithField("id", id).Warn("change processor: failed to delete from search index")
	}
}

func anchorOf(m snapshot.InstanceMetadata) (string, bool) {
	if m.InstigatingSource.Kind == snapshot.SourcePath && len(m.RelevantPaths) > 0 {
		return m.RelevantPaths[0], true
	}
	return "", false
}
