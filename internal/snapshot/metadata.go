package snapshot

// IgnoreGlob is a single glob pattern contributed by a project or directory
// middleware to suppress matching paths from producing instances.
type IgnoreGlob struct {
	Pattern string
}

// InstanceContext is inherited configuration propagated down through the
// middleware pipeline as it recurses into children: ignore-globs accumulate,
// never shrink, as snapshotting descends.
type InstanceContext struct {
	PathIgnoreGlobs []IgnoreGlob
}

// NewInstanceContext returns an empty context.
func NewInstanceContext() InstanceContext {
	return InstanceContext{}
}

// WithIgnoreGlobs returns a copy of the context with additional ignore globs
// appended.
func (c InstanceContext) WithIgnoreGlobs(globs ...IgnoreGlob) InstanceContext {
	merged := make([]IgnoreGlob, 0, len(c.PathIgnoreGlobs)+len(globs))
	merged = append(merged, c.PathIgnoreGlobs...)
	merged = append(merged, globs...)
	return InstanceContext{PathIgnoreGlobs: merged}
}

// IsIgnored reports whether name (a single path component, not a full path)
// matches any of the context's ignore globs.
func (c InstanceContext) IsIgnored(name string) bool {
	for _, g := range c.PathIgnoreGlobs {
		if globMatch(g.Pattern, name) {
			return true
		}
	}
	return false
}

// InstigatingSourceKind discriminates InstigatingSource's two variants.
type InstigatingSourceKind int

const (
	SourceNone InstigatingSourceKind = iota
	SourcePath
	SourceProjectNode
)

// InstigatingSource is the single file or project node whose change should
// trigger re-snapshotting of the owning instance. ProjectNode sources carry
// the node's instance name (which may not match the node's class) because
// the raw node on its own doesn't know its own key in the parent mapping.
type InstigatingSource struct {
	Kind        InstigatingSourceKind
	Path        string
	NodeName    string
	ProjectNode interface{} // *project.Node; interface{} to avoid an import cycle
}

func NewPathSource(path string) InstigatingSource {
	return InstigatingSource{Kind: SourcePath, Path: path}
}

func NewProjectNodeSource(name string, node interface{}) InstigatingSource {
	return InstigatingSource{Kind: SourceProjectNode, NodeName: name, ProjectNode: node}
}

// InstanceMetadata carries everything about an instance that isn't itself
// tree structure: how it reacts to re-snapshotting, and what it inherited.
type InstanceMetadata struct {
	IgnoreUnknownInstances bool
	InstigatingSource      InstigatingSource
	// RelevantPaths[0], by convention, is this instance's filesystem
	// position — the path the change processor anchors its path index on
	// to find the instance from an event. It usually equals
	// InstigatingSource.Path, except for init-promoted instances, whose
	// position is the directory even though the init file instigates, and
	// for a project root that mounts a $path, whose position is the mounted
	// path even though the project file instigates.
	RelevantPaths []string
	Context                InstanceContext
	// ProjectDefinition marks an instance produced directly by a project
	// file node, as opposed to synthesized by a file-based middleware.
	ProjectDefinition bool
}

// NewMetadata returns zero-value metadata with no instigating source.
func NewMetadata() InstanceMetadata {
	return InstanceMetadata{}
}

// WithIgnoreUnknownInstances returns a copy with the flag set.
func (m InstanceMetadata) WithIgnoreUnknownInstances(v bool) InstanceMetadata {
	m.IgnoreUnknownInstances = v
	return m
}

// WithInstigatingSource returns a copy with the source set.
func (m InstanceMetadata) WithInstigatingSource(s InstigatingSource) InstanceMetadata {
	m.InstigatingSource = s
	return m
}

// WithRelevantPaths returns a copy with relevant paths set.
func (m InstanceMetadata) WithRelevantPaths(paths []string) InstanceMetadata {
	m.RelevantPaths = paths
	return m
}

// WithContext returns a copy with the context set.
func (m InstanceMetadata) WithContext(c InstanceContext) InstanceMetadata {
	m.Context = c
	return m
}

// WithProjectDefinition returns a copy with the project-definition flag set.
func (m InstanceMetadata) WithProjectDefinition(v bool) InstanceMetadata {
	m.ProjectDefinition = v
	return m
}

// globMatch implements the small subset of shell globbing middlewares need:
// '*' matches any run of characters within a single path component.
func globMatch(pattern, name string) bool {
	return globMatchRunes([]rune(pattern), []rune(name))
}

func globMatchRunes(pattern, name []rune) bool {
	if len(pattern) == 0 {
		return len(name) == 0
	}
	if pattern[0] == '*' {
		for i := 0; i <= len(name); i++ {
			if globMatchRunes(pattern[1:], name[i:]) {
				return true
			}
		}
		return false
	}
	if len(name) == 0 || pattern[0] != name[0] {
		return false
	}
	return globMatchRunes(pattern[1:], name[1:])
}
