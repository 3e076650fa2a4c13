package middleware

import (
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/Roblox/rojo/internal/snapshot"
)

// metaFile is the *.meta.json wire shape (spec §6): className/properties/
// ignoreUnknownInstances overrides contributed onto the matching base
// instance. A meta file never produces an instance of its own.
type metaFile struct {
	ClassName              *string                    `json:"className"`
	Properties             map[string]json.RawMessage `json:"properties"`
	IgnoreUnknownInstances *bool                      `json:"ignoreUnknownInstances"`
}

// applyMetaOverlay looks for a sibling <stem(path)>.meta.json and, if
// present, merges its overrides onto snap. The meta file is always added to
// snap's relevant_paths (spec §4.E.8) so a change to the meta file alone
// re-triggers this instance's snapshot even though it wasn't the
// instigating source.
func applyMetaOverlay(fs FileSystem, path string, snap *snapshot.InstanceSnapshot) (*snapshot.InstanceSnapshot, error) {
	metaPath := metaSiblingPath(path)

	if _, err := fs.Metadata(metaPath); err != nil {
		return snap, nil
	}

	data, err := fs.Read(metaPath)
	if err != nil {
		return snap, err
	}

	var meta metaFile
	if err := json.Unmarshal(data, &meta); err != nil {
		return snap, decodeErrorf(metaPath, "parsing meta file: %v", err)
	}

	if meta.ClassName != nil {
		snap.ClassName = *meta.ClassName
	}
	if meta.IgnoreUnknownInstances != nil {
		snap.Metadata = snap.Metadata.WithIgnoreUnknownInstances(*meta.IgnoreUnknownInstances)
	}
	for key, raw := range meta.Properties {
		var v interface{}
		if err := json.Unmarshal(raw, &v); err != nil {
			return snap, decodeErrorf(metaPath, "parsing meta property %q: %v", key, err)
		}
		snap.Properties[key] = snapshot.FromRaw(v)
	}

	relevant := append([]string(nil), snap.Metadata.RelevantPaths...)
	relevant = append(relevant, metaPath)
	snap.Metadata = snap.Metadata.WithRelevantPaths(relevant)

	return snap, nil
}

// metaSiblingPath computes the <name>.meta.json sibling of path, whether
// path is a file (strip its own extension first) or a directory (meta.json
// sits next to it in the parent, not inside it).
func metaSiblingPath(path string) string {
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	name := base
	if idx := strings.Index(base, "."); idx >= 0 {
		name = base[:idx]
	}

	return filepath.Join(dir, name+".meta.json")
}
