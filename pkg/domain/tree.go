package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// AttrKind tags the value type held by an Attribute.
type AttrKind string

// Attribute kinds supported by the flat attribute layout.
const (
	KindInt    AttrKind = "int"
	KindDouble AttrKind = "double"
	KindString AttrKind = "string"
	KindBool   AttrKind = "bool"
	KindTree   AttrKind = "tree"
)

// Attribute is a single typed value inside an AttributeTree.
type Attribute struct {
	Kind   AttrKind
	Int    int64
	Double float64
	String string
	Bool   bool
	Tree   AttributeTree
}

// AttributeTree is the flat, typed key/value layout block entities persist
// themselves into. Missing keys read back as zero values.
type AttributeTree map[string]Attribute

// NewAttributeTree returns an empty tree.
func NewAttributeTree() AttributeTree {
	return make(AttributeTree)
}

// Has reports whether key is present.
func (t AttributeTree) Has(key string) bool {
	_, ok := t[key]
	return ok
}

// Delete removes key.
func (t AttributeTree) Delete(key string) {
	delete(t, key)
}

// Keys returns the tree keys in sorted order.
func (t AttributeTree) Keys() []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SetInt stores an integer.
func (t AttributeTree) SetInt(key string, v int) {
	t[key] = Attribute{Kind: KindInt, Int: int64(v)}
}

// GetInt reads an integer; doubles are truncated and anything else yields 0.
func (t AttributeTree) GetInt(key string) int {
	a, ok := t[key]
	if !ok {
		return 0
	}
	switch a.Kind {
	case KindInt:
		return int(a.Int)
	case KindDouble:
		return int(a.Double)
	default:
		return 0
	}
}

// SetDouble stores a float64.
func (t AttributeTree) SetDouble(key string, v float64) {
	t[key] = Attribute{Kind: KindDouble, Double: v}
}

// GetDouble reads a float64; ints are widened and anything else yields 0.
func (t AttributeTree) GetDouble(key string) float64 {
	a, ok := t[key]
	if !ok {
		return 0
	}
	switch a.Kind {
	case KindDouble:
		return a.Double
	case KindInt:
		return float64(a.Int)
	default:
		return 0
	}
}

// SetString stores a string.
func (t AttributeTree) SetString(key, v string) {
	t[key] = Attribute{Kind: KindString, String: v}
}

// GetString reads a string and whether the key held one.
func (t AttributeTree) GetString(key string) (string, bool) {
	a, ok := t[key]
	if !ok || a.Kind != KindString {
		return "", false
	}
	return a.String, true
}

// SetBool stores a bool.
func (t AttributeTree) SetBool(key string, v bool) {
	t[key] = Attribute{Kind: KindBool, Bool: v}
}

// GetBool reads a bool, false when missing.
func (t AttributeTree) GetBool(key string) bool {
	a, ok := t[key]
	return ok && a.Kind == KindBool && a.Bool
}

// SetTree stores a nested tree.
func (t AttributeTree) SetTree(key string, v AttributeTree) {
	t[key] = Attribute{Kind: KindTree, Tree: v}
}

// GetTree reads a nested tree.
func (t AttributeTree) GetTree(key string) (AttributeTree, bool) {
	a, ok := t[key]
	if !ok || a.Kind != KindTree {
		return nil, false
	}
	return a.Tree, true
}

// Clone deep-copies the tree.
func (t AttributeTree) Clone() AttributeTree {
	if t == nil {
		return nil
	}
	out := make(AttributeTree, len(t))
	for k, v := range t {
		if v.Kind == KindTree {
			v.Tree = v.Tree.Clone()
		}
		out[k] = v
	}
	return out
}

// MarshalJSON encodes the attribute as a single-key object naming its kind,
// which keeps ints and doubles distinct across a JSON round trip.
func (a Attribute) MarshalJSON() ([]byte, error) {
	switch a.Kind {
	case KindInt:
		return json.Marshal(map[string]json.RawMessage{string(KindInt): json.RawMessage(strconv.FormatInt(a.Int, 10))})
	case KindDouble:
		raw, err := json.Marshal(a.Double)
		if err != nil {
			return nil, err
		}
		return json.Marshal(map[string]json.RawMessage{string(KindDouble): raw})
	case KindString:
		return json.Marshal(map[string]string{string(KindString): a.String})
	case KindBool:
		return json.Marshal(map[string]bool{string(KindBool): a.Bool})
	case KindTree:
		tree := a.Tree
		if tree == nil {
			tree = AttributeTree{}
		}
		return json.Marshal(map[string]AttributeTree{string(KindTree): tree})
	default:
		return nil, fmt.Errorf("attribute: unknown kind %q", a.Kind)
	}
}

// UnmarshalJSON decodes the single-key object written by MarshalJSON.
func (a *Attribute) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 1 {
		return fmt.Errorf("attribute: expected exactly one kind key, got %d", len(raw))
	}
	for kind, payload := range raw {
		switch AttrKind(kind) {
		case KindInt:
			v, err := strconv.ParseInt(string(payload), 10, 64)
			if err != nil {
				return fmt.Errorf("attribute int: %w", err)
			}
			*a = Attribute{Kind: KindInt, Int: v}
		case KindDouble:
			var v float64
			if err := json.Unmarshal(payload, &v); err != nil {
				return fmt.Errorf("attribute double: %w", err)
			}
			*a = Attribute{Kind: KindDouble, Double: v}
		case KindString:
			var v string
			if err := json.Unmarshal(payload, &v); err != nil {
				return fmt.Errorf("attribute string: %w", err)
			}
			*a = Attribute{Kind: KindString, String: v}
		case KindBool:
			var v bool
			if err := json.Unmarshal(payload, &v); err != nil {
				return fmt.Errorf("attribute bool: %w", err)
			}
			*a = Attribute{Kind: KindBool, Bool: v}
		case KindTree:
			var v AttributeTree
			if err := json.Unmarshal(payload, &v); err != nil {
				return fmt.Errorf("attribute tree: %w", err)
			}
			if v == nil {
				v = AttributeTree{}
			}
			*a = Attribute{Kind: KindTree, Tree: v}
		default:
			return fmt.Errorf("attribute: unknown kind %q", kind)
		}
	}
	return nil
}
