package middleware

import (
	"strings"

	"github.com/Roblox/rojo/internal/snapshot"
)

// snapshotTXT turns a *.txt file into a StringValue instance whose Value
// property is the file's raw contents (spec §4.E.4).
func snapshotTXT(ctx snapshot.InstanceContext, fs FileSystem, path, base string) (*snapshot.InstanceSnapshot, bool, error) {
	if !strings.HasSuffix(base, ".txt") {
		return nil, false, nil
	}

	data, err := fs.Read(path)
	if err != nil {
		return nil, true, err
	}

	name := stem(base, ".txt")
	snap := snapshot.New(name, "StringValue").
		WithProperty("Value", snapshot.String(string(data)))
	snap.Metadata = snap.Metadata.
		WithInstigatingSource(snapshot.NewPathSource(path)).
		WithRelevantPaths([]string{path}).
		WithContext(ctx)

	return snap, true, nil
}
