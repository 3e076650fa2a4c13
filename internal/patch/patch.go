// Package patch implements the diff/apply engine: it compares a freshly
// produced snapshot against the live tree and produces a minimal set of
// adds/removes/updates, then applies that set to the tree.
package patch

import (
	"github.com/Roblox/rojo/internal/snapshot"
	"github.com/Roblox/rojo/internal/tree"
)

// AddOp describes a wholesale addition of an entire unmatched snapshot
// sub-tree under an already-existing parent. It is never flattened into
// per-descendant ops: the sub-snapshot is inserted as a unit by
// tree.Tree.Insert, which itself recurses into snap.Children.
type AddOp struct {
	ParentID tree.ID
	Snapshot *snapshot.InstanceSnapshot
}

// UpdateOp describes a partial change to an existing instance. A nil entry
// in ChangedProperties' value means "remove this property".
type UpdateOp struct {
	ID                tree.ID
	ChangedName       *string
	ChangedClassName  *string
	ChangedProperties map[string]*snapshot.Value
	ChangedMetadata   *snapshot.InstanceMetadata
}

// PatchSet is the output of ComputePatchSet: everything needed to converge
// the tree onto a snapshot.
type PatchSet struct {
	Added   []AddOp
	Removed []tree.ID
	Updated []UpdateOp
}

// IsEmpty reports whether the patch set has no effect, used to test
// idempotence of snapshot+patch (spec property P1).
func (p *PatchSet) IsEmpty() bool {
	return p == nil || (len(p.Added) == 0 && len(p.Removed) == 0 && len(p.Updated) == 0)
}

// AppliedAdd is an AddOp with the concrete IDs the tree assigned on apply.
// It carries the full materialized sub-tree (class, name, properties,
// children with their own concrete IDs) rather than just the top ID, since
// spec §3 defines AppliedPatchSet as "the same shape as PatchSet but with
// concrete IDs for adds" and PatchSet.added pairs a parent ID with a whole
// sub-snapshot — a subscriber receiving only an ID could never materialize
// the instance it names.
type AppliedAdd struct {
	ParentID   tree.ID
	ID         tree.ID
	ClassName  string
	Name       string
	Properties map[string]snapshot.Value
	Children   []AppliedAdd
}

// AppliedPatchSet mirrors PatchSet but with concrete IDs for every add.
type AppliedPatchSet struct {
	Added   []AppliedAdd
	Removed []tree.ID
	Updated []UpdateOp
}

// ComputePatchSet is a pure function: it does not mutate t. rootID must
// already exist in t and corresponds to snap's position in the tree.
func ComputePatchSet(snap *snapshot.InstanceSnapshot, t *tree.Tree, rootID tree.ID) *PatchSet {
	patch := &PatchSet{}
	computeInto(patch, snap, t, rootID)
	return patch
}

func computeInto(patch *PatchSet, snap *snapshot.InstanceSnapshot, t *tree.Tree, rootID tree.ID) {
	inst, ok := t.Get(rootID)
	if !ok {
		return
	}

	update := diffInstance(inst, snap)
	if update != nil {
		patch.Updated = append(patch.Updated, *update)
	}

	matched := matchChildren(t, inst.Children, snap.Children)

	for _, snapChild := range matched.unmatchedSnapshot {
		patch.Added = append(patch.Added, AddOp{ParentID: rootID, Snapshot: snapChild})
	}

	if !inst.Metadata.IgnoreUnknownInstances {
		patch.Removed = append(patch.Removed, matched.unmatchedTree...)
	}

	for _, pair := range matched.pairs {
		computeInto(patch, pair.snap, t, pair.treeID)
	}
}

func diffInstance(inst *tree.Instance, snap *snapshot.InstanceSnapshot) *UpdateOp {
	var changed bool
	update := UpdateOp{ID: inst.ID}

	if inst.Name != snap.Name {
		changed = true
		name := snap.Name
		update.ChangedName = &name
	}
	if inst.ClassName != snap.ClassName {
		changed = true
		class := snap.ClassName
		update.ChangedClassName = &class
	}

	propsDelta := diffProperties(inst.Properties, snap.Properties)
	if len(propsDelta) > 0 {
		changed = true
		update.ChangedProperties = propsDelta
	}

	if !metadataEqual(inst.Metadata, snap.Metadata) {
		changed = true
		meta := snap.Metadata
		update.ChangedMetadata = &meta
	}

	if !changed {
		return nil
	}
	return &update
}

// diffProperties computes the symmetric difference: new/changed keys carry
// the new value, keys present on the instance but absent from the snapshot
// carry nil (remove).
func diffProperties(current, next map[string]snapshot.Value) map[string]*snapshot.Value {
	delta := make(map[string]*snapshot.Value)

	for k, v := range next {
		if existing, ok := current[k]; !ok || !existing.Equal(v) {
			val := v
			delta[k] = &val
		}
	}
	for k := range current {
		if _, ok := next[k]; !ok {
			delta[k] = nil
		}
	}

	return delta
}

func metadataEqual(a, b snapshot.InstanceMetadata) bool {
	if a.IgnoreUnknownInstances != b.IgnoreUnknownInstances {
		return false
	}
	if a.ProjectDefinition != b.ProjectDefinition {
		return false
	}
	if len(a.RelevantPaths) != len(b.RelevantPaths) {
		return false
	}
	for i := range a.RelevantPaths {
		if a.RelevantPaths[i] != b.RelevantPaths[i] {
			return false
		}
	}
	return instigatingSourceEqual(a.InstigatingSource, b.InstigatingSource)
}

// instigatingSourceEqual compares everything about an InstigatingSource
// except the raw ProjectNode payload: that field is a freshly parsed
// *project.Node on every reload, so its identity (or even a deep compare of
// its contents) is not a meaningful signal of change — NodeName already
// identifies which project node it is, and the node's own contents
// (properties, class, children) are separately diffed through the instance
// they produced.
func instigatingSourceEqual(a, b snapshot.InstigatingSource) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case snapshot.SourcePath:
		return a.Path == b.Path
	case snapshot.SourceProjectNode:
		return a.NodeName == b.NodeName
	default:
		return true
	}
}

type childKey struct {
	name      string
	className string
}

type matchedPair struct {
	treeID tree.ID
	snap   *snapshot.InstanceSnapshot
}

type childMatch struct {
	pairs             []matchedPair
	unmatchedSnapshot []*snapshot.InstanceSnapshot
	unmatchedTree     []tree.ID
}

// matchChildren pairs snapshot children with tree children by (name,
// class_name), in the snapshot's order, consuming each tree child at most
// once.
func matchChildren(t *tree.Tree, treeChildren []tree.ID, snapChildren []*snapshot.InstanceSnapshot) childMatch {
	pool := make(map[childKey][]tree.ID)
	for _, id := range treeChildren {
		inst, ok := t.Get(id)
		if !ok {
			continue
		}
		key := childKey{name: inst.Name, className: inst.ClassName}
		pool[key] = append(pool[key], id)
	}

	consumed := make(map[tree.ID]struct{})
	var result childMatch

	for _, snapChild := range snapChildren {
		key := childKey{name: snapChild.Name, className: snapChild.ClassName}
		queue := pool[key]
		if len(queue) == 0 {
			result.unmatchedSnapshot = append(result.unmatchedSnapshot, snapChild)
			continue
		}
		id := queue[0]
		pool[key] = queue[1:]
		consumed[id] = struct{}{}
		result.pairs = append(result.pairs, matchedPair{treeID: id, snap: snapChild})
	}

	for _, id := range treeChildren {
		if _, ok := consumed[id]; !ok {
			result.unmatchedTree = append(result.unmatchedTree, id)
		}
	}

	return result
}

// ApplyPatchSet applies patch to t: removals first, then updates, then
// adds, so that every add's parent already exists. It returns the applied
// patch set with concrete IDs substituted for each add.
func ApplyPatchSet(t *tree.Tree, patch *PatchSet) (*AppliedPatchSet, error) {
	applied := &AppliedPatchSet{
		Removed: append([]tree.ID(nil), patch.Removed...),
		Updated: append([]UpdateOp(nil), patch.Updated...),
	}

	for _, id := range patch.Removed {
		t.Remove(id)
	}

	for _, op := range patch.Updated {
		if err := t.Update(op.ID, tree.UpdateDelta{
			Name:              op.ChangedName,
			ClassName:         op.ChangedClassName,
			ChangedProperties: op.ChangedProperties,
			Metadata:          op.ChangedMetadata,
		}); err != nil {
			return nil, err
		}
	}

	for _, op := range patch.Added {
		id, err := t.Insert(op.ParentID, op.Snapshot)
		if err != nil {
			return nil, err
		}
		applied.Added = append(applied.Added, buildAppliedAdd(t, op.ParentID, id, op.Snapshot))
	}

	return applied, nil
}

// buildAppliedAdd walks the just-inserted sub-tree alongside the snapshot
// that produced it, zipping each snapshot child with the tree's concrete
// child ID assigned for it (Tree.Insert preserves snapshot order), so the
// returned value carries real IDs at every level rather than only the root.
func buildAppliedAdd(t *tree.Tree, parentID, id tree.ID, snap *snapshot.InstanceSnapshot) AppliedAdd {
	inst, _ := t.Get(id)

	add := AppliedAdd{
		ParentID:   parentID,
		ID:         id,
		ClassName:  inst.ClassName,
		Name:       inst.Name,
		Properties: inst.Properties,
	}

	childIDs := t.Children(id)
	for i, childSnap := range snap.Children {
		if i >= len(childIDs) {
			break
		}
		add.Children = append(add.Children, buildAppliedAdd(t, id, childIDs[i], childSnap))
	}

	return add
}
