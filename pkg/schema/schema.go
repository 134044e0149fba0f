// Package schema implements the schema tree that drives row assembly and
// disassembly.
//
// A Schema is compiled once from Field descriptions and is immutable
// afterwards, so it can be shared by reference between stores and
// goroutines. Every node knows its dotted path, its kind, its repetition
// flags and its precomputed maximum repetition and definition levels.
//
// Levels are computed as follows:
//
//   - maxRepetitionLevel counts the repeated nodes on the root-to-node
//     path, inclusive. The key and value leaves of a map are one level
//     deeper than the map itself because map entries repeat.
//   - maxDefinitionLevel of a leaf is its maxRepetitionLevel plus one
//     when the leaf is nullable.
//
// Every node receives a dense PathID in depth-first order. Stores key
// their containers by PathID; the string path stays the external identity.
package schema

import (
	"strings"

	"github.com/ajitpratap0/dremel/pkg/errors"
	stringpool "github.com/ajitpratap0/dremel/pkg/strings"
)

const (
	// PathSeparator joins ancestor names into a node path.
	PathSeparator = "."
	// MapKeyName is the name of the synthetic key child of a map.
	MapKeyName = "key"
	// MapValueName is the name of the synthetic value child of a map.
	MapValueName = "value"
	// DefaultMaxDepth is the nesting limit used by New.
	DefaultMaxDepth = 64
)

// PathID is the interned identifier of a node path within one Schema.
type PathID int

// Node is one compiled field of a Schema.
type Node struct {
	name     string
	path     string
	id       PathID
	kind     Kind
	typ      ElementType
	repeated bool
	nullable bool
	depth    int
	maxRL    int
	maxDL    int

	parent   *Node
	children []*Node
	leaves   []*Node
}

// Name returns the node's own name.
func (n *Node) Name() string { return n.name }

// Path returns the dotted path of the node.
func (n *Node) Path() string { return n.path }

// ID returns the interned path identifier.
func (n *Node) ID() PathID { return n.id }

// Kind returns whether the node is a leaf, map or group.
func (n *Node) Kind() Kind { return n.kind }

// Type returns the element type of a leaf; TypeInvalid otherwise.
func (n *Node) Type() ElementType { return n.typ }

// Repeated reports whether the node occurs 0..N times per parent.
func (n *Node) Repeated() bool { return n.repeated }

// Nullable reports whether a leaf's values may be null.
func (n *Node) Nullable() bool { return n.nullable }

// Depth is 1 for top-level fields.
func (n *Node) Depth() int { return n.depth }

// MaxRepetitionLevel returns the number of repeated ancestors, inclusive.
func (n *Node) MaxRepetitionLevel() int { return n.maxRL }

// MaxDefinitionLevel returns the maximum definition level of a leaf. For
// maps and groups it equals MaxRepetitionLevel.
func (n *Node) MaxDefinitionLevel() int { return n.maxDL }

// Parent returns the enclosing node, or nil for top-level fields.
func (n *Node) Parent() *Node { return n.parent }

// Children returns the ordered children of a group, or the key and value
// leaves of a map.
func (n *Node) Children() []*Node { return n.children }

// Key returns the key leaf of a map node.
func (n *Node) Key() *Node {
	if n.kind != KindMap {
		return nil
	}
	return n.children[0]
}

// Value returns the value leaf of a map node.
func (n *Node) Value() *Node {
	if n.kind != KindMap {
		return nil
	}
	return n.children[1]
}

// IsLeaf reports whether the node is a leaf.
func (n *Node) IsLeaf() bool { return n.kind == KindLeaf }

// Leaves returns the descendant leaves of n in depth-first order. A leaf
// returns itself.
func (n *Node) Leaves() []*Node { return n.leaves }

// Schema is a compiled, immutable schema tree.
type Schema struct {
	fields   []*Node
	nodes    []*Node
	byPath   map[string]*Node
	leaves   []*Node
	maxDepth int
}

// New compiles fields into a Schema with DefaultMaxDepth.
func New(fields ...Field) (*Schema, error) {
	return NewWithMaxDepth(DefaultMaxDepth, fields...)
}

// NewWithMaxDepth compiles fields into a Schema, rejecting nesting deeper
// than maxDepth.
func NewWithMaxDepth(maxDepth int, fields ...Field) (*Schema, error) {
	if maxDepth <= 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "max depth must be positive").
			WithDetail("max_depth", maxDepth)
	}
	if len(fields) == 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "schema must have at least one field")
	}

	s := &Schema{
		byPath:   make(map[string]*Node),
		maxDepth: maxDepth,
	}

	seen := make(map[string]struct{}, len(fields))
	for i := range fields {
		if _, dup := seen[fields[i].Name]; dup {
			return nil, errors.New(errors.ErrorTypeValidation, "duplicate field name").
				WithDetail("name", fields[i].Name)
		}
		seen[fields[i].Name] = struct{}{}

		node, err := s.compile(&fields[i], nil, nil, 1, 0)
		if err != nil {
			return nil, err
		}
		s.fields = append(s.fields, node)
	}
	return s, nil
}

func (s *Schema) compile(f *Field, parent *Node, ancestors []string, depth, parentRL int) (*Node, error) {
	if f.Name == "" {
		return nil, errors.New(errors.ErrorTypeValidation, "field name must not be empty").
			WithDetail("parent", pathOf(ancestors))
	}
	if strings.Contains(f.Name, PathSeparator) {
		return nil, errors.New(errors.ErrorTypeValidation, "field name must not contain the path separator").
			WithDetail("parent", pathOf(ancestors)).
			WithDetail("name", f.Name)
	}
	names := append(ancestors[:len(ancestors):len(ancestors)], f.Name)
	path := pathOf(names)
	if _, dup := s.byPath[path]; dup {
		return nil, errors.New(errors.ErrorTypeValidation, "duplicate field path").
			WithDetail("path", path)
	}

	if depth > s.maxDepth {
		return nil, errors.New(errors.ErrorTypeValidation, "schema nesting exceeds max depth").
			WithDetail("path", path).
			WithDetail("max_depth", s.maxDepth)
	}

	n := &Node{
		name:     f.Name,
		path:     path,
		id:       PathID(len(s.nodes)),
		kind:     f.Kind,
		repeated: f.Repeated,
		depth:    depth,
		parent:   parent,
		maxRL:    parentRL,
	}
	if f.Repeated {
		n.maxRL++
	}
	n.maxDL = n.maxRL
	s.nodes = append(s.nodes, n)
	s.byPath[path] = n

	switch f.Kind {
	case KindLeaf:
		if !f.Type.Valid() {
			return nil, errors.New(errors.ErrorTypeValidation, "leaf has no valid element type").
				WithDetail("path", path)
		}
		if len(f.Children) > 0 || f.Key != nil || f.Value != nil {
			return nil, errors.New(errors.ErrorTypeValidation, "leaf must not have children").
				WithDetail("path", path)
		}
		n.typ = f.Type
		n.nullable = f.Nullable
		if f.Nullable {
			n.maxDL++
		}
		n.leaves = []*Node{n}
		s.leaves = append(s.leaves, n)

	case KindMap:
		if f.Key == nil || f.Value == nil {
			return nil, errors.New(errors.ErrorTypeValidation, "map requires key and value").
				WithDetail("path", path)
		}
		if f.Nullable {
			return nil, errors.New(errors.ErrorTypeValidation, "maps cannot be nullable; use an empty map").
				WithDetail("path", path)
		}
		for _, child := range []*Field{f.Key, f.Value} {
			if child.Kind != KindLeaf || child.Repeated {
				return nil, errors.New(errors.ErrorTypeValidation, "map key and value must be non-repeated leaves").
					WithDetail("path", path)
			}
		}
		if f.Key.Nullable {
			return nil, errors.New(errors.ErrorTypeValidation, "map keys cannot be nullable").
				WithDetail("path", path)
		}
		key, value := *f.Key, *f.Value
		key.Name, value.Name = MapKeyName, MapValueName
		// entries repeat within the map
		for _, child := range []*Field{&key, &value} {
			c, err := s.compile(child, n, names, depth+1, n.maxRL+1)
			if err != nil {
				return nil, err
			}
			n.children = append(n.children, c)
			n.leaves = append(n.leaves, c)
		}

	case KindGroup:
		if f.Nullable {
			return nil, errors.New(errors.ErrorTypeValidation, "groups cannot be nullable; mark their leaves nullable").
				WithDetail("path", path)
		}
		seen := make(map[string]struct{}, len(f.Children))
		for i := range f.Children {
			if _, dup := seen[f.Children[i].Name]; dup {
				return nil, errors.New(errors.ErrorTypeValidation, "duplicate field name").
					WithDetail("path", path).
					WithDetail("name", f.Children[i].Name)
			}
			seen[f.Children[i].Name] = struct{}{}

			c, err := s.compile(&f.Children[i], n, names, depth+1, n.maxRL)
			if err != nil {
				return nil, err
			}
			n.children = append(n.children, c)
			n.leaves = append(n.leaves, c.leaves...)
		}

	default:
		return nil, errors.New(errors.ErrorTypeValidation, "unknown field kind").
			WithDetail("path", path).
			WithDetail("kind", int(f.Kind))
	}

	return n, nil
}

func pathOf(names []string) string {
	return stringpool.JoinPooled(names, PathSeparator)
}

// Fields returns the top-level nodes in declaration order.
func (s *Schema) Fields() []*Node { return s.fields }

// Leaves returns every leaf in depth-first order.
func (s *Schema) Leaves() []*Node { return s.leaves }

// Len returns the number of nodes, which bounds every PathID.
func (s *Schema) Len() int { return len(s.nodes) }

// MaxDepth returns the nesting limit the schema was compiled with.
func (s *Schema) MaxDepth() int { return s.maxDepth }

// Node returns the node with the given id, or nil.
func (s *Schema) Node(id PathID) *Node {
	if id < 0 || int(id) >= len(s.nodes) {
		return nil
	}
	return s.nodes[id]
}

// Lookup finds a node by its dotted path.
func (s *Schema) Lookup(path string) (*Node, bool) {
	n, ok := s.byPath[path]
	return n, ok
}

// Contains reports whether n belongs to this schema.
func (s *Schema) Contains(n *Node) bool {
	return n != nil && int(n.id) < len(s.nodes) && s.nodes[n.id] == n
}

// String renders the schema tree, one node per line.
func (s *Schema) String() string {
	b := stringpool.GetBuilder(stringpool.Small)
	defer stringpool.PutBuilder(b, stringpool.Small)

	var render func(n *Node)
	render = func(n *Node) {
		for i := 1; i < n.depth; i++ {
			b.WriteString("  ")
		}
		b.WriteString(n.name)
		b.WriteString(": ")
		switch n.kind {
		case KindLeaf:
			b.WriteString(n.typ.String())
			if n.nullable {
				_ = b.WriteByte('?')
			}
		default:
			b.WriteString(n.kind.String())
		}
		if n.repeated {
			b.WriteString(" repeated")
		}
		b.WriteString(stringpool.Sprintf(" (rl=%d dl=%d)\n", n.maxRL, n.maxDL))
		for _, c := range n.children {
			render(c)
		}
	}
	for _, f := range s.fields {
		render(f)
	}
	return b.String()
}
