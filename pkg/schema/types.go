package schema

import (
	"fmt"
	"strings"
)

// ElementType is the semantic type of the values stored for a leaf.
type ElementType int

const (
	TypeInvalid ElementType = iota
	TypeBool
	TypeInt32
	TypeInt64
	TypeFloat32
	TypeFloat64
	TypeString
	TypeBytes
	TypeTimestamp
)

var elementTypeNames = map[ElementType]string{
	TypeInvalid:   "invalid",
	TypeBool:      "bool",
	TypeInt32:     "int32",
	TypeInt64:     "int64",
	TypeFloat32:   "float32",
	TypeFloat64:   "float64",
	TypeString:    "string",
	TypeBytes:     "bytes",
	TypeTimestamp: "timestamp",
}

func (t ElementType) String() string {
	if name, ok := elementTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("ElementType(%d)", int(t))
}

// Valid reports whether t is one of the supported element types.
func (t ElementType) Valid() bool {
	return t > TypeInvalid && t <= TypeTimestamp
}

// ParseElementType parses the name produced by ElementType.String.
func ParseElementType(name string) (ElementType, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for t, n := range elementTypeNames {
		if n == name && t.Valid() {
			return t, nil
		}
	}
	return TypeInvalid, fmt.Errorf("unknown element type %q", name)
}

// Kind distinguishes leaves, maps and nested groups.
type Kind int

const (
	KindLeaf Kind = iota
	KindMap
	KindGroup
)

func (k Kind) String() string {
	switch k {
	case KindLeaf:
		return "leaf"
	case KindMap:
		return "map"
	case KindGroup:
		return "group"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}
