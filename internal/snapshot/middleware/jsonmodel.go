package middleware

import (
	"encoding/json"
	"strings"

	"github.com/Roblox/rojo/internal/snapshot"
)

// jsonModelNode mirrors the *.model.json wire shape: a recursive
// (Name?, ClassName, Children[], Properties{}) structure decoded directly
// into a snapshot (spec §4.E.5).
type jsonModelNode struct {
	Name       string                     `json:"Name"`
	ClassName  string                     `json:"ClassName"`
	Children   []jsonModelNode            `json:"Children"`
	Properties map[string]json.RawMessage `json:"Properties"`
}

// snapshotJSONModel turns a *.model.json file into an InstanceSnapshot tree,
// decoding directly without going through any other middleware.
func snapshotJSONModel(ctx snapshot.InstanceContext, fs FileSystem, path, base string) (*snapshot.InstanceSnapshot, bool, error) {
	if !strings.HasSuffix(base, ".model.json") {
		return nil, false, nil
	}

	data, err := fs.Read(path)
	if err != nil {
		return nil, true, err
	}

	var root jsonModelNode
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, true, decodeErrorf(path, "parsing json model: %v", err)
	}

	defaultName := stem(base, ".model.json")
	snap, err := buildJSONModelSnapshot(root, defaultName, ctx)
	if err != nil {
		return nil, true, decodeErrorf(path, "%v", err)
	}

	snap.Metadata = snap.Metadata.
		WithInstigatingSource(snapshot.NewPathSource(path)).
		WithRelevantPaths([]string{path})

	return snap, true, nil
}

func buildJSONModelSnapshot(node jsonModelNode, defaultName string, ctx snapshot.InstanceContext) (*snapshot.InstanceSnapshot, error) {
	name := node.Name
	if name == "" {
		name = defaultName
	}

	snap := snapshot.New(name, node.ClassName)
	snap.Metadata = snap.Metadata.WithContext(ctx)

	for key, raw := range node.Properties {
		var v interface{}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		snap.Properties[key] = snapshot.FromRaw(v)
	}

	for _, child := range node.Children {
		childSnap, err := buildJSONModelSnapshot(child, child.Name, ctx)
		if err != nil {
			return nil, err
		}
		snap.Children = append(snap.Children, childSnap)
	}

	return snap, nil
}
