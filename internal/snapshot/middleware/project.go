package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Roblox/rojo/internal/project"
	"github.com/Roblox/rojo/internal/rojoerr"
	"github.com/Roblox/rojo/internal/snapshot"
	"github.com/Roblox/rojo/internal/vfs"
)

// projectDoc mirrors the on-disk *.project.json document shape (spec §6).
// It reuses project.Node's order-preserving, unknown-key-rejecting
// UnmarshalJSON rather than redefining it.
type projectDoc struct {
	Name            string        `json:"name"`
	ServePort       *uint16       `json:"servePort,omitempty"`
	ServePlaceIDs   []uint64      `json:"servePlaceIds,omitempty"`
	GlobIgnorePaths []string      `json:"globIgnorePaths,omitempty"`
	Tree            *project.Node `json:"tree"`
}

// snapshotProject is the first middleware in the pipeline (spec §4.E.1): it
// matches a path ending in .project.json, or a directory containing
// default.project.json, and recursively snapshots the declared tree.
func snapshotProject(ctx snapshot.InstanceContext, fs FileSystem, path, base string, kind vfs.EntryKind) (*snapshot.InstanceSnapshot, bool, error) {
	projectPath := ""

	switch {
	case kind == vfs.KindFile && strings.HasSuffix(base, ".project.json"):
		projectPath = path
	case kind == vfs.KindDir:
		children, err := fs.Children(path)
		if err != nil {
			return nil, false, nil
		}
		for _, c := range children {
			if c == "default.project.json" {
				projectPath = filepath.Join(path, c)
				break
			}
		}
		if projectPath == "" {
			return nil, false, nil
		}
	default:
		return nil, false, nil
	}

	data, err := fs.Read(projectPath)
	if err != nil {
		return nil, true, err
	}

	var doc projectDoc
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, true, rojoerr.ConfigWrap("parsing project file "+projectPath, err)
	}
	if doc.Name == "" {
		return nil, true, rojoerr.Config("project file " + projectPath + " is missing required field 'name'")
	}
	if doc.Tree == nil {
		return nil, true, rojoerr.Config("project file " + projectPath + " is missing required field 'tree'")
	}

	baseDir := filepath.Dir(projectPath)

	rootCtx := ctx
	for _, pattern := range doc.GlobIgnorePaths {
		rootCtx = rootCtx.WithIgnoreGlobs(snapshot.IgnoreGlob{Pattern: filepath.Base(pattern)})
	}

	snap, err := snapshotProjectNode(rootCtx, fs, baseDir, doc.Name, doc.Tree)
	if err != nil {
		return nil, true, err
	}
	// RelevantPaths[0] must stay the root's own filesystem position (the
	// mounted folder, for a $path tree) per the convention metadata.go
	// documents: the change processor anchors on RelevantPaths[0] and walks
	// into it component-by-component to find nested instances. Prepending
	// projectPath here would put the project file at position 0 and break
	// that walk for every path under the mounted subtree, so it is appended
	// instead — the project file's own path is still relevant (editing it
	// must re-run this middleware), just not the anchor position.
	snap.Metadata = snap.Metadata.
		WithInstigatingSource(snapshot.NewPathSource(projectPath)).
		WithRelevantPaths(append(append([]string{}, snap.Metadata.RelevantPaths...), projectPath))

	return snap, true, nil
}

// snapshotProjectNode builds the InstanceSnapshot for a single ProjectNode.
// Project-supplied names always win over whatever a path-backed middleware
// would have derived from the file stem (spec §4.E naming policy).
func snapshotProjectNode(ctx snapshot.InstanceContext, fs FileSystem, baseDir, name string, node *project.Node) (*snapshot.InstanceSnapshot, error) {
	if node.ClassName == "" && !node.HasPath {
		return nil, rojoerr.Config(fmt.Sprintf("project node %q must have at least one of $className or $path", name))
	}

	var snap *snapshot.InstanceSnapshot

	if node.HasPath {
		resolved := node.Path
		if !filepath.IsAbs(resolved) {
			resolved = filepath.Join(baseDir, resolved)
		}

		pathSnap, err := Snapshot(ctx, fs, resolved)
		if err != nil {
			return nil, err
		}
		if pathSnap == nil {
			return nil, rojoerr.Config(fmt.Sprintf("project node %q: $path %s did not produce an instance", name, resolved))
		}

		if node.ClassName != "" {
			if pathSnap.ClassName != "Folder" {
				return nil, rojoerr.Config(fmt.Sprintf(
					"project node %q combines $path and $className, but %s produced a %s, not a Folder",
					name, resolved, pathSnap.ClassName))
			}
			pathSnap.ClassName = node.ClassName
		}

		snap = pathSnap
	} else {
		snap = snapshot.New(name, node.ClassName)
		snap.Metadata = snap.Metadata.
			WithIgnoreUnknownInstances(true).
			WithContext(ctx).
			WithInstigatingSource(snapshot.NewProjectNodeSource(name, node))
	}

	snap.Name = name
	snap.Metadata = snap.Metadata.WithProjectDefinition(true)
	if node.IgnoreUnknownInstances {
		snap.Metadata = snap.Metadata.WithIgnoreUnknownInstances(true)
	}

	for key, raw := range node.Properties {
		var v interface{}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, rojoerr.ConfigWrap(fmt.Sprintf("project node %q property %q", name, key), err)
		}
		snap.Properties[key] = snapshot.FromRaw(v)
	}

	for _, entry := range node.Children {
		childSnap, err := snapshotProjectNode(ctx, fs, baseDir, entry.Name, entry.Node)
		if err != nil {
			return nil, err
		}
		snap.Children = append(snap.Children, childSnap)
	}

	return snap, nil
}
