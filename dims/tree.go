package dims

import (
	"fmt"
	"sort"
)

// TreeNode is a user composite that participates in the dispatcher by
// declaring its payload values. WithValues must reconstruct a value of
// the same kind from replacements for exactly those payloads, carrying
// all other state over unchanged.
type TreeNode interface {
	Values() []any
	WithValues(values []any) (any, error)
}

// IsTreeNode reports whether v is traversable: a TreeNode, a built-in
// composite ([]any or map[string]any), or a shaped leaf.
func IsTreeNode(v any) bool {
	if _, _, ok := treeChildren(v); ok {
		return true
	}
	_, leaf := v.(Shaped)
	return leaf
}

// treeChildren decomposes a composite into its payload children and a
// reconstruction function. Built-in composites recurse structurally
// without needing a TreeNode declaration; map children are visited in
// sorted key order so traversal is deterministic.
func treeChildren(v any) (children []any, rebuild func([]any) (any, error), ok bool) {
	switch c := v.(type) {
	case TreeNode:
		children = c.Values()
		return children, c.WithValues, true
	case []any:
		children = append(children, c...)
		rebuild = func(repl []any) (any, error) {
			if len(repl) != len(c) {
				return nil, fmt.Errorf("dims: expected %d children, got %d", len(c), len(repl))
			}
			return append([]any(nil), repl...), nil
		}
		return children, rebuild, true
	case map[string]any:
		keys := make([]string, 0, len(c))
		for k := range c {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			children = append(children, c[k])
		}
		rebuild = func(repl []any) (any, error) {
			if len(repl) != len(keys) {
				return nil, fmt.Errorf("dims: expected %d children, got %d", len(keys), len(repl))
			}
			out := make(map[string]any, len(keys))
			for i, k := range keys {
				out[k] = repl[i]
			}
			return out, nil
		}
		return children, rebuild, true
	}
	return nil, nil, false
}

// mapTree applies op to every child and reconstructs the composite.
func mapTree(v any, op func(child any) (any, error)) (any, error) {
	children, rebuild, ok := treeChildren(v)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not traversable", ErrNotShapable, v)
	}
	repl := make([]any, len(children))
	for i, child := range children {
		out, err := op(child)
		if err != nil {
			return nil, err
		}
		repl[i] = out
	}
	return rebuild(repl)
}
