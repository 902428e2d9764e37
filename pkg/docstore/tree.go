// Copyright Conversation Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package docstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Normalize converts v into the generic JSON form used by the tree backends:
// map[string]any, []any, string, json.Number, bool. Null members and empty
// objects are pruned; a result of nil means "nothing to store".
func Normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return NormalizeJSON(data)
}

// NormalizeJSON is Normalize for an already encoded value.
func NormalizeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return prune(generic), nil
}

func prune(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, child := range val {
			if pruned := prune(child); pruned == nil {
				delete(val, k)
			} else {
				val[k] = pruned
			}
		}
		if len(val) == 0 {
			return nil
		}
		return val
	case []any:
		for i, child := range val {
			val[i] = prune(child)
		}
		return val
	default:
		return v
	}
}

// Decode copies a generic value into v through its JSON encoding.
func Decode(value any, v any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}

// Leaf is a scalar or array stored at a full path.
type Leaf struct {
	Path  string
	Value json.RawMessage
}

// Flatten walks a normalized value and returns its leaves, rooted at base.
// Objects become path segments; scalars and arrays become leaves.
func Flatten(base string, value any) ([]Leaf, error) {
	var leaves []Leaf
	var walk func(path string, v any) error
	walk = func(path string, v any) error {
		if m, ok := v.(map[string]any); ok {
			keys := make([]string, 0, len(m))
			for k := range m {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				if _, err := Split(k); err != nil {
					return err
				}
				if err := walk(path+"/"+k, m[k]); err != nil {
					return err
				}
			}
			return nil
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode leaf %s: %w", path, err)
		}
		leaves = append(leaves, Leaf{Path: path, Value: raw})
		return nil
	}
	if value == nil {
		return nil, nil
	}
	if err := walk(base, value); err != nil {
		return nil, err
	}
	return leaves, nil
}

// Assemble rebuilds the value at base from leaves at or below it.
func Assemble(base string, leaves []Leaf) (any, error) {
	var root map[string]any
	for _, leaf := range leaves {
		value, err := NormalizeJSON(leaf.Value)
		if err != nil {
			return nil, err
		}
		if leaf.Path == base {
			return value, nil
		}
		rel := strings.TrimPrefix(leaf.Path, base+"/")
		if root == nil {
			root = map[string]any{}
		}
		insert(root, strings.Split(rel, "/"), value)
	}
	if root == nil {
		return nil, nil
	}
	return root, nil
}

func insert(node map[string]any, segments []string, value any) {
	for _, seg := range segments[:len(segments)-1] {
		child, ok := node[seg].(map[string]any)
		if !ok {
			child = map[string]any{}
			node[seg] = child
		}
		node = child
	}
	node[segments[len(segments)-1]] = value
}

// ChildKeys returns the sorted, distinct first segments of leaf paths below base.
func ChildKeys(base string, paths []string) []string {
	seen := map[string]struct{}{}
	for _, p := range paths {
		rel := strings.TrimPrefix(p, base+"/")
		if rel == p {
			continue
		}
		key, _, _ := strings.Cut(rel, "/")
		seen[key] = struct{}{}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Ancestors returns the proper prefixes of a segment list as joined paths,
// shortest first.
func Ancestors(segments []string) []string {
	out := make([]string, 0, len(segments)-1)
	for i := 1; i < len(segments); i++ {
		out = append(out, Join(segments[:i]...))
	}
	return out
}
