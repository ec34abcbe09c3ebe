// Package varfile parses a `_variables.yml` file into a navigable tree
// without losing comments, ordering or the original line layout.
//
// Only a line-oriented subset of YAML is handled: `key: value` pairs,
// nesting by indentation, full-line and inline comments, simple scalars
// and flat arrays. Full-line comments group the keys that follow them
// into named sections.
package varfile

import "fmt"

// ValueType is the closed set of value shapes a node can carry.
type ValueType int

const (
	TypeString ValueType = iota
	TypeNumber
	TypeBoolean
	TypeArray
	TypeObject
	TypeNull
)

func (t ValueType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeNumber:
		return "number"
	case TypeBoolean:
		return "boolean"
	case TypeArray:
		return "array"
	case TypeObject:
		return "object"
	case TypeNull:
		return "null"
	}
	return fmt.Sprintf("ValueType(%d)", int(t))
}

// Node is one key line of the source file. LineStart and LineEnd index
// into the original unmodified source lines; sibling nodes never claim
// overlapping ranges.
type Node struct {
	Key       string
	Value     any
	Type      ValueType
	Level     int
	LineStart int
	LineEnd   int
	Comment   string

	// Children is non-empty exactly when IsStructuralParent is set:
	// a bare container header owns the more-indented run below it.
	Children           []*Node
	IsStructuralParent bool

	// ParentPath is the dotted prefix of the containing parent,
	// derived during parsing. Empty for top-level nodes.
	ParentPath string
}

// Path returns the full dotted path of the node.
func (n *Node) Path() string {
	if n.ParentPath == "" {
		return n.Key
	}
	return n.ParentPath + "." + n.Key
}

// Clone returns a deep copy of the node and its subtree.
func (n *Node) Clone() *Node {
	out := *n
	if n.Children != nil {
		out.Children = make([]*Node, len(n.Children))
		for i, child := range n.Children {
			out.Children[i] = child.Clone()
		}
	}
	return &out
}

// Section groups the nodes introduced by one full-line comment header.
type Section struct {
	Header     string
	Comment    string
	LineNumber int
	Nodes      []*Node
}

// Clone returns a deep copy of the section.
func (s *Section) Clone() *Section {
	out := *s
	out.Nodes = make([]*Node, len(s.Nodes))
	for i, node := range s.Nodes {
		out.Nodes[i] = node.Clone()
	}
	return &out
}

// Structure is the result of one parse. OriginalLines is the verbatim
// input split into lines and serves as the immutable baseline for
// writes; Data mirrors the same values as a plain nested mapping for
// fast dotted-key lookup.
type Structure struct {
	Sections      []*Section
	FlatNodes     []*Node
	OriginalLines []string
	Data          map[string]any
	Warnings      []string

	// DecodeFailed is set when the whole-file decode was rejected and
	// Data fell back to an empty mapping. The structural pass still
	// ran; callers decide how much to trust it.
	DecodeFailed bool
}

// Clone deep-copies sections, nodes, lines and the nested value
// mapping. FlatNodes is re-derived so it points into the copied tree.
func (s *Structure) Clone() *Structure {
	out := &Structure{
		Sections:      make([]*Section, len(s.Sections)),
		OriginalLines: append([]string(nil), s.OriginalLines...),
		Data:          cloneMap(s.Data),
		Warnings:      append([]string(nil), s.Warnings...),
		DecodeFailed:  s.DecodeFailed,
	}
	for i, section := range s.Sections {
		out.Sections[i] = section.Clone()
	}
	out.FlatNodes = flatten(out.Sections)
	return out
}

func cloneMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for key, value := range in {
		if nested, ok := value.(map[string]any); ok {
			out[key] = cloneMap(nested)
			continue
		}
		out[key] = value
	}
	return out
}

// flatten returns a depth-first flattening of all nodes in all sections.
func flatten(sections []*Section) []*Node {
	var flat []*Node
	var walk func(nodes []*Node)
	walk = func(nodes []*Node) {
		for _, node := range nodes {
			flat = append(flat, node)
			if len(node.Children) > 0 {
				walk(node.Children)
			}
		}
	}
	for _, section := range sections {
		walk(section.Nodes)
	}
	return flat
}
