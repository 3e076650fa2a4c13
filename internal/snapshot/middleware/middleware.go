// Package middleware implements the snapshot pipeline: the ordered set of
// producers that turn a filesystem path into a proposed instance sub-tree.
// The first middleware to report ok == true claims the path, even when the
// snapshot it returns is nil; a middleware that doesn't recognize the path
// returns (nil, false, nil) to pass control to the next.
package middleware

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/Roblox/rojo/internal/rojoerr"
	"github.com/Roblox/rojo/internal/snapshot"
	"github.com/Roblox/rojo/internal/vfs"
)

// FileSystem is the subset of *vfs.VFS the pipeline reads through. A narrow
// interface keeps middleware tests independent of the real watcher.
type FileSystem interface {
	Read(path string) ([]byte, error)
	Metadata(path string) (vfs.EntryKind, error)
	Children(path string) ([]string, error)
}

const (
	initLua       = "init.lua"
	initServerLua = "init.server.lua"
	initClientLua = "init.client.lua"
)

// reservedNames are entries the Directory middleware never turns into a
// standalone child: they're consumed by another middleware (init.* lua
// files feed the Lua middleware's directory-promotion rule) or they are
// overlays rather than instance sources (*.meta.json).
func isReserved(name string) bool {
	switch name {
	case initLua, initServerLua, initClientLua:
		return true
	}
	return strings.HasSuffix(name, ".meta.json")
}

// Snapshot runs the middleware pipeline over path, producing an
// InstanceSnapshot or nil if no middleware matches. ctx carries inherited
// configuration (ignore-globs); the produced snapshot's own context is ctx
// unless a middleware extends it for its children (the Project middleware
// does, adding its globIgnorePaths; the Directory middleware passes ctx
// through unchanged).
func Snapshot(ctx snapshot.InstanceContext, fs FileSystem, path string) (*snapshot.InstanceSnapshot, error) {
	base := filepath.Base(path)
	if ctx.IsIgnored(base) {
		return nil, nil
	}

	kind, err := fs.Metadata(path)
	if err != nil {
		return nil, err
	}

	snap, err := dispatch(ctx, fs, path, base, kind)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, nil
	}

	return applyMetaOverlay(fs, path, snap)
}

func dispatch(ctx snapshot.InstanceContext, fs FileSystem, path, base string, kind vfs.EntryKind) (*snapshot.InstanceSnapshot, error) {
	if snap, ok, err := snapshotProject(ctx, fs, path, base, kind); ok || err != nil {
		return snap, err
	}

	if kind == vfs.KindDir {
		if snap, ok, err := snapshotLuaInit(ctx, fs, path); ok || err != nil {
			return snap, err
		}
		return snapshotDirectory(ctx, fs, path, base)
	}

	if isReserved(base) {
		return nil, nil
	}

	if snap, ok, err := snapshotLuaFile(ctx, fs, path, base); ok || err != nil {
		return snap, err
	}
	if snap, ok, err := snapshotCSV(ctx, fs, path, base); ok || err != nil {
		return snap, err
	}
	if snap, ok, err := snapshotTXT(ctx, fs, path, base); ok || err != nil {
		return snap, err
	}
	if snap, ok, err := snapshotJSONModel(ctx, fs, path, base); ok || err != nil {
		return snap, err
	}
	if snap, ok, err := snapshotBinaryModel(ctx, fs, path, base); ok || err != nil {
		return snap, err
	}

	return nil, nil
}

// stem strips one of the known middleware suffixes from a file name,
// leaving the instance name the naming policy derives (spec §4.E).
func stem(name string, suffixes ...string) string {
	for _, suf := range suffixes {
		if strings.HasSuffix(name, suf) {
			return name[:len(name)-len(suf)]
		}
	}
	return name
}

// sortedChildren returns dir's children in a stable, deterministic order;
// the VFS's own Children() is backed by a map and carries no ordering.
func sortedChildren(fs FileSystem, dir string) ([]string, error) {
	names, err := fs.Children(dir)
	if err != nil {
		return nil, err
	}
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	return sorted, nil
}

func decodeErrorf(path, format string, args ...interface{}) error {
	return rojoerr.DecodeWrap(path, rojoerr.Newf(rojoerr.KindDecode, format, args...))
}
