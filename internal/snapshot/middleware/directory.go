package middleware

import (
	"path/filepath"

	"github.com/Roblox/rojo/internal/snapshot"
)

// snapshotDirectory is the catch-all for any directory not consumed by an
// earlier middleware (project, init-promoted Lua): a Folder instance whose
// children are the recursive snapshots of every listed entry, skipping
// names reserved by other middlewares (spec §4.E.7).
func snapshotDirectory(ctx snapshot.InstanceContext, fs FileSystem, path, base string) (*snapshot.InstanceSnapshot, bool, error) {
	names, err := sortedChildren(fs, path)
	if err != nil {
		return nil, true, err
	}

	// The directory's own relevant path is just its listing: a change to a
	// descendant is owned by that descendant's own instance, found via the
	// tree's path index during change processing, not by bubbling every
	// descendant path up into every ancestor's relevant_paths.
	snap := snapshot.New(base, "Folder")
	snap.Metadata = snap.Metadata.
		WithInstigatingSource(snapshot.NewPathSource(path)).
		WithRelevantPaths([]string{path}).
		WithContext(ctx)

	for _, name := range names {
		if isReserved(name) {
			continue
		}
		childPath := filepath.Join(path, name)
		childSnap, err := Snapshot(ctx, fs, childPath)
		if err != nil {
			return nil, true, err
		}
		if childSnap == nil {
			continue
		}
		snap.Children = append(snap.Children, childSnap)
	}

	return snap, true, nil
}
