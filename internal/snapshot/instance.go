package snapshot

// InstanceSnapshot is the output of a middleware: a proposed instance
// sub-tree that has not yet been reconciled against the live tree. Ids are
// provisional — the patch engine assigns real tree IDs on apply.
type InstanceSnapshot struct {
	// ProvisionalID is an opaque string used only to correlate a snapshot
	// node with its patch-set counterpart during a single compute/apply
	// cycle; it is never a tree.ID.
	ProvisionalID string
	Name          string
	ClassName     string
	Properties    map[string]Value
	Children      []*InstanceSnapshot
	Metadata      InstanceMetadata
}

// New returns an empty snapshot with the given name and class.
func New(name, className string) *InstanceSnapshot {
	return &InstanceSnapshot{
		Name:       name,
		ClassName:  className,
		Properties: make(map[string]Value),
		Metadata:   NewMetadata(),
	}
}

// WithChildren appends children and returns the snapshot for chaining.
func (s *InstanceSnapshot) WithChildren(children ...*InstanceSnapshot) *InstanceSnapshot {
	s.Children = append(s.Children, children...)
	return s
}

// WithProperty sets a single property and returns the snapshot for chaining.
func (s *InstanceSnapshot) WithProperty(name string, value Value) *InstanceSnapshot {
	if s.Properties == nil {
		s.Properties = make(map[string]Value)
	}
	s.Properties[name] = value
	return s
}

// WithMetadata replaces the snapshot's metadata and returns it for chaining.
func (s *InstanceSnapshot) WithMetadata(m InstanceMetadata) *InstanceSnapshot {
	s.Metadata = m
	return s
}
