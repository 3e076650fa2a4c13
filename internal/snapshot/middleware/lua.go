package middleware

import (
	"path/filepath"
	"strings"

	"github.com/Roblox/rojo/internal/snapshot"
)

// snapshotLuaFile handles a single *.lua file. dispatch never hands it an
// init.* file (isReserved filters those out); snapshotLuaInit calls it
// directly on the init file to get the promoted class and Source. The
// trailing suffix selects the produced class; contents become the Source
// property verbatim.
func snapshotLuaFile(ctx snapshot.InstanceContext, fs FileSystem, path, base string) (*snapshot.InstanceSnapshot, bool, error) {
	className, name, ok := classifyLua(base)
	if !ok {
		return nil, false, nil
	}

	data, err := fs.Read(path)
	if err != nil {
		return nil, true, err
	}

	snap := snapshot.New(name, className).
		WithProperty("Source", snapshot.String(string(data)))
	snap.Metadata = snap.Metadata.
		WithInstigatingSource(snapshot.NewPathSource(path)).
		WithRelevantPaths([]string{path}).
		WithContext(ctx)

	return snap, true, nil
}

// snapshotLuaInit handles the directory side of init promotion: if dirPath
// contains init.lua / init.server.lua / init.client.lua (checked in that
// priority order), the directory is snapshotted as a Folder, then the init
// file's class and properties replace the Folder's, and the directory's
// remaining children become the result's children. The init file itself is
// never added as a separate child.
func snapshotLuaInit(ctx snapshot.InstanceContext, fs FileSystem, dirPath string) (*snapshot.InstanceSnapshot, bool, error) {
	for _, initName := range []string{initLua, initServerLua, initClientLua} {
		initPath := filepath.Join(dirPath, initName)

		if _, err := fs.Metadata(initPath); err != nil {
			continue // not present: try the next priority
		}

		dirSnap, _, derr := snapshotDirectory(ctx, fs, dirPath, filepath.Base(dirPath))
		if derr != nil {
			return nil, true, derr
		}
		if dirSnap == nil {
			return nil, true, nil
		}

		initSnap, matched, ierr := snapshotLuaFile(ctx, fs, initPath, initName)
		if ierr != nil {
			return nil, true, ierr
		}
		if !matched || initSnap == nil {
			continue
		}

		initSnap.Name = dirSnap.Name
		initSnap.Children = dirSnap.Children
		// dirPath comes first: it's this instance's filesystem position (a
		// directory), even though the init file is what instigated the
		// snapshot. The change processor anchors its path index on
		// RelevantPaths[0].
		initSnap.Metadata = initSnap.Metadata.WithRelevantPaths([]string{dirPath, initPath})

		return initSnap, true, nil
	}

	return nil, false, nil
}

func classifyLua(base string) (className, name string, ok bool) {
	switch {
	case strings.HasSuffix(base, ".server.lua"):
		return "Script", stem(base, ".server.lua"), true
	case strings.HasSuffix(base, ".client.lua"):
		return "LocalScript", stem(base, ".client.lua"), true
	case strings.HasSuffix(base, ".lua"):
		return "ModuleScript", stem(base, ".lua"), true
	default:
		return "", "", false
	}
}
