package middleware

import (
	"strings"
	"sync"

	"github.com/Roblox/rojo/internal/rojoerr"
	"github.com/Roblox/rojo/internal/snapshot"
)

// DecodedInstance is the shape a ModelCodec hands back for each top-level
// instance it decodes out of an .rbxmx/.rbxm file.
type DecodedInstance struct {
	Name       string
	ClassName  string
	Properties map[string]snapshot.Value
	Children   []DecodedInstance
}

// ModelCodec decodes the on-disk binary (.rbxm) or XML (.rbxmx) model
// formats into a tree of DecodedInstance. Per spec §1 these codecs are
// deliberately out of scope of this daemon ("treated as opaque
// decode(bytes) -> tree ... collaborators") — the pipeline depends only on
// this interface, and a real binary/XML implementation is injected by the
// embedder. RegisterModelCodec lets a caller (or a test) supply one.
type ModelCodec interface {
	Decode(data []byte) ([]DecodedInstance, error)
}

var (
	codecMu    sync.RWMutex
	modelCodec ModelCodec = unconfiguredCodec{}
)

// RegisterModelCodec installs the codec used for .rbxmx/.rbxm files. Not
// calling this leaves model-file snapshotting producing a DecodeError for
// every such file, which is the correct behavior for a build that hasn't
// wired in a concrete codec.
func RegisterModelCodec(c ModelCodec) {
	codecMu.Lock()
	defer codecMu.Unlock()
	modelCodec = c
}

type unconfiguredCodec struct{}

func (unconfiguredCodec) Decode([]byte) ([]DecodedInstance, error) {
	return nil, rojoerr.Decode("no model codec configured for .rbxmx/.rbxm files")
}

// snapshotBinaryModel handles both *.rbxmx (XML) and *.rbxm (binary) model
// files identically: both are opaque inputs to the same ModelCodec. Exactly
// one top-level instance is expected; zero produces no snapshot and more
// than one is a hard DecodeError (spec §4.E.6).
func snapshotBinaryModel(ctx snapshot.InstanceContext, fs FileSystem, path, base string) (*snapshot.InstanceSnapshot, bool, error) {
	var suffix string
	switch {
	case strings.HasSuffix(base, ".rbxmx"):
		suffix = ".rbxmx"
	case strings.HasSuffix(base, ".rbxm"):
		suffix = ".rbxm"
	default:
		return nil, false, nil
	}

	data, err := fs.Read(path)
	if err != nil {
		return nil, true, err
	}

	codecMu.RLock()
	codec := modelCodec
	codecMu.RUnlock()

	decoded, err := codec.Decode(data)
	if err != nil {
		return nil, true, rojoerr.DecodeWrap("decoding "+path, err)
	}

	switch len(decoded) {
	case 0:
		return nil, true, nil
	case 1:
		name := stem(base, suffix)
		snap := decodedToSnapshot(decoded[0], name, ctx)
		snap.Metadata = snap.Metadata.
			WithInstigatingSource(snapshot.NewPathSource(path)).
			WithRelevantPaths([]string{path})
		return snap, true, nil
	default:
		return nil, true, decodeErrorf(path, "model file produced %d top-level instances, expected exactly one", len(decoded))
	}
}

func decodedToSnapshot(d DecodedInstance, defaultName string, ctx snapshot.InstanceContext) *snapshot.InstanceSnapshot {
	name := d.Name
	if name == "" {
		name = defaultName
	}
	snap := snapshot.New(name, d.ClassName)
	snap.Metadata = snap.Metadata.WithContext(ctx)
	for k, v := range d.Properties {
		snap.Properties[k] = v
	}
	for _, child := range d.Children {
		snap.Children = append(snap.Children, decodedToSnapshot(child, child.Name, ctx))
	}
	return snap
}
