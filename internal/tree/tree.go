// Package tree holds the live instance forest: the in-memory object graph
// that the patch engine keeps converged with the filesystem, plus a flat
// path→IDs side-index used to find instances affected by a file change.
package tree

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/Roblox/rojo/internal/snapshot"
)

// ID is an opaque 128-bit instance identifier, unique within a session and
// never reused.
type ID = uuid.UUID

// NilID is the zero-value ID, used to mark "no parent" (the root).
var NilID ID

// Instance is a single node of the live tree.
type Instance struct {
	ID         ID
	ClassName  string
	Name       string
	Properties map[string]snapshot.Value
	Parent     ID
	Children   []ID
	Metadata   snapshot.InstanceMetadata
}

// Tree holds the instance forest plus the path index. All IDs are assigned
// by the tree itself and never reused, satisfying invariant I4.
type Tree struct {
	mu         sync.RWMutex
	instances  map[ID]*Instance
	rootID     ID
	pathIndex  map[string]map[ID]struct{}
}

// New creates a tree whose root is built from rootSnapshot (and its
// children, recursively).
func New(rootSnapshot *snapshot.InstanceSnapshot) *Tree {
	t := &Tree{
		instances: make(map[ID]*Instance),
		pathIndex: make(map[string]map[ID]struct{}),
	}
	t.rootID = t.insertLocked(NilID, rootSnapshot)
	return t
}

// RootID returns the tree's single root instance ID.
func (t *Tree) RootID() ID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rootID
}

// Get returns the instance for id, if present. The returned pointer is a
// defensive shallow copy; callers must use Update to mutate the tree.
func (t *Tree) Get(id ID) (*Instance, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	inst, ok := t.instances[id]
	if !ok {
		return nil, false
	}
	cp := *inst
	cp.Children = append([]ID(nil), inst.Children...)
	return &cp, true
}

// Children returns the ordered child IDs of id.
func (t *Tree) Children(id ID) []ID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	inst, ok := t.instances[id]
	if !ok {
		return nil
	}
	return append([]ID(nil), inst.Children...)
}

// Descendants returns every ID transitively reachable from id, not
// including id itself, in pre-order.
func (t *Tree) Descendants(id ID) []ID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []ID
	var walk func(ID)
	walk = func(cur ID) {
		inst, ok := t.instances[cur]
		if !ok {
			return
		}
		for _, c := range inst.Children {
			out = append(out, c)
			walk(c)
		}
	}
	walk(id)
	return out
}

// PathIDs returns every instance ID whose relevant_paths or instigating
// source is path. Multiple instances can share a source path (e.g. a
// project node plus the folder it wraps).
func (t *Tree) PathIDs(path string) []ID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	set, ok := t.pathIndex[path]
	if !ok {
		return nil
	}
	out := make([]ID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

// Insert materializes snap (and its children, recursively) under parent and
// returns the new instance's real ID. parent must already exist, or be
// NilID when inserting the very first root.
func (t *Tree) Insert(parent ID, snap *snapshot.InstanceSnapshot) (ID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if parent != NilID {
		if _, ok := t.instances[parent]; !ok {
			return NilID, fmt.Errorf("tree: parent %s does not exist", parent)
		}
	}

	id := t.insertLocked(parent, snap)

	if parent != NilID {
		p := t.instances[parent]
		p.Children = append(p.Children, id)
	}

	return id, nil
}

// insertLocked performs the recursive insert assuming mu is already held.
func (t *Tree) insertLocked(parent ID, snap *snapshot.InstanceSnapshot) ID {
	id := uuid.New()

	inst := &Instance{
		ID:         id,
		ClassName:  snap.ClassName,
		Name:       snap.Name,
		Properties: copyProperties(snap.Properties),
		Parent:     parent,
		Metadata:   snap.Metadata,
	}
	t.instances[id] = inst
	t.indexPaths(id, snap.Metadata.RelevantPaths)

	for _, child := range snap.Children {
		childID := t.insertLocked(id, child)
		inst.Children = append(inst.Children, childID)
	}

	return id
}

// Remove deletes id and every descendant, returning every removed ID. The
// path index is updated to drop entries for the removed instances.
func (t *Tree) Remove(id ID) map[ID]struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()

	if id != t.rootID {
		if parent, ok := t.instances[id]; ok {
			t.detachChild(parent.Parent, id)
		}
	}

	removed := make(map[ID]struct{})
	var walk func(ID)
	walk = func(cur ID) {
		inst, ok := t.instances[cur]
		if !ok {
			return
		}
		for _, c := range inst.Children {
			walk(c)
		}
		t.unindexPaths(cur, inst.Metadata.RelevantPaths)
		delete(t.instances, cur)
		removed[cur] = struct{}{}
	}
	walk(id)

	return removed
}

func (t *Tree) detachChild(parentID, childID ID) {
	parent, ok := t.instances[parentID]
	if !ok {
		return
	}
	for i, c := range parent.Children {
		if c == childID {
			parent.Children = append(parent.Children[:i], parent.Children[i+1:]...)
			return
		}
	}
}

// UpdateDelta describes a partial update to an instance, matching the
// PatchSet "updated" entry shape: nil means "no change", not "clear".
type UpdateDelta struct {
	Name              *string
	ClassName         *string
	ChangedProperties map[string]*snapshot.Value // nil value pointer means "remove"
	Metadata          *snapshot.InstanceMetadata
}

// Update applies a partial update to the instance at id.
func (t *Tree) Update(id ID, delta UpdateDelta) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	inst, ok := t.instances[id]
	if !ok {
		return fmt.Errorf("tree: instance %s does not exist", id)
	}

	if delta.Name != nil {
		inst.Name = *delta.Name
	}
	if delta.ClassName != nil {
		inst.ClassName = *delta.ClassName
	}
	for k, v := range delta.ChangedProperties {
		if v == nil {
			delete(inst.Properties, k)
		} else {
			if inst.Properties == nil {
				inst.Properties = make(map[string]snapshot.Value)
			}
			inst.Properties[k] = *v
		}
	}
	if delta.Metadata != nil {
		t.unindexPaths(id, inst.Metadata.RelevantPaths)
		inst.Metadata = *delta.Metadata
		t.indexPaths(id, inst.Metadata.RelevantPaths)
	}

	return nil
}

func (t *Tree) indexPaths(id ID, paths []string) {
	for _, p := range paths {
		set, ok := t.pathIndex[p]
		if !ok {
			set = make(map[ID]struct{})
			t.pathIndex[p] = set
		}
		set[id] = struct{}{}
	}
}

func (t *Tree) unindexPaths(id ID, paths []string) {
	for _, p := range paths {
		set, ok := t.pathIndex[p]
		if !ok {
			continue
		}
		delete(set, id)
		if len(set) == 0 {
			delete(t.pathIndex, p)
		}
	}
}

func copyProperties(src map[string]snapshot.Value) map[string]snapshot.Value {
	if src == nil {
		return make(map[string]snapshot.Value)
	}
	dst := make(map[string]snapshot.Value, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
