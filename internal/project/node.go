package project

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// ChildEntry is a single (name, node) pair, preserved in declaration order.
type ChildEntry struct {
	Name string
	Node *Node
}

// Node is a single node of a project's tree: either a reference to a path on
// disk, a synthesized class, or both. Children are an ORDERED mapping from
// instance name to Node, preserved exactly as they appear in the source
// file, since sibling order determines the resulting instance order.
type Node struct {
	ClassName              string
	Path                   string
	HasPath                bool
	Properties             map[string]json.RawMessage
	IgnoreUnknownInstances bool
	Children               []ChildEntry
}

var knownDollarKeys = map[string]bool{
	"$className":              true,
	"$path":                   true,
	"$properties":             true,
	"$ignoreUnknownInstances": true,
}

// UnmarshalJSON walks the object token-by-token rather than unmarshaling
// into a plain map, for two reasons: child order must be preserved (Go maps
// don't preserve insertion order), and unknown "$"-prefixed keys must be
// rejected rather than silently ignored.
func (n *Node) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("reading project node: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("project node must be a JSON object")
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("reading project node key: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("project node key must be a string")
		}

		switch {
		case key == "$className":
			var v string
			if err := dec.Decode(&v); err != nil {
				return fmt.Errorf("decoding $className: %w", err)
			}
			n.ClassName = v
		case key == "$path":
			var v string
			if err := dec.Decode(&v); err != nil {
				return fmt.Errorf("decoding $path: %w", err)
			}
			n.Path = v
			n.HasPath = true
		case key == "$properties":
			var v map[string]json.RawMessage
			if err := dec.Decode(&v); err != nil {
				return fmt.Errorf("decoding $properties: %w", err)
			}
			n.Properties = v
		case key == "$ignoreUnknownInstances":
			var v bool
			if err := dec.Decode(&v); err != nil {
				return fmt.Errorf("decoding $ignoreUnknownInstances: %w", err)
			}
			n.IgnoreUnknownInstances = v
		case len(key) > 0 && key[0] == '$':
			return fmt.Errorf("unknown project node key %q", key)
		default:
			child := &Node{}
			if err := dec.Decode(child); err != nil {
				return fmt.Errorf("decoding child node %q: %w", key, err)
			}
			n.Children = append(n.Children, ChildEntry{Name: key, Node: child})
		}
	}

	if _, err := dec.Token(); err != nil && err != io.EOF {
		return fmt.Errorf("reading project node close: %w", err)
	}

	return nil
}

// validate enforces the project node invariant: at least one of class_name
// or path must be set.
func (n *Node) validate() error {
	if n.ClassName == "" && !n.HasPath {
		return fmt.Errorf("project node must have at least one of $className or $path")
	}
	for _, c := range n.Children {
		if err := c.Node.validate(); err != nil {
			return fmt.Errorf("child %q: %w", c.Name, err)
		}
	}
	return nil
}

// ChildNamed returns the child node with the given name, if present.
func (n *Node) ChildNamed(name string) (*Node, bool) {
	for _, c := range n.Children {
		if c.Name == name {
			return c.Node, true
		}
	}
	return nil, false
}
