package codeset

import (
	"sort"

	"github.com/opensafely-core/opencodelists-sub001/hierarchy"
)

// DefiningTree links every defining code to the defining codes directly
// below it, skipping the concepts in between.
type DefiningTree struct {
	// Roots are the defining codes with no defining ancestor.
	Roots []string
	// Children maps a defining code to its nearest defining descendants.
	Children map[string][]string
}

// TreeEntry is one row of a depth-first walk of the defining tree.
type TreeEntry struct {
	Code   string
	Status hierarchy.Status
	Depth  int
}

// DefiningTree rebuilds the tree of defining codes. In a polyhierarchy a code
// can appear below more than one parent.
func (c *Codeset) DefiningTree() DefiningTree {
	defining := c.DefiningCodes()
	tree := DefiningTree{Children: make(map[string][]string)}

	for _, code := range defining.Sorted() {
		marked := c.h.Ancestors(code).Intersect(defining)
		if len(marked) == 0 {
			tree.Roots = append(tree.Roots, code)
			continue
		}
		for _, parent := range nearest(c.h, marked).Sorted() {
			tree.Children[parent] = append(tree.Children[parent], code)
		}
	}
	return tree
}

// nearest keeps the members of ancestors with no other member below them.
func nearest(h *hierarchy.Hierarchy, ancestors hierarchy.CodeSet) hierarchy.CodeSet {
	out := make(hierarchy.CodeSet)
	for a := range ancestors {
		if !h.Descendants(a).Intersects(ancestors) {
			out.Add(a)
		}
	}
	return out
}

// WalkDefiningTree walks the defining tree depth-first. Siblings are ordered
// by sortKey, falling back to the code itself; a nil sortKey orders by code.
func (c *Codeset) WalkDefiningTree(sortKey func(code string) string) []TreeEntry {
	if sortKey == nil {
		sortKey = func(code string) string { return code }
	}
	order := func(codes []string) []string {
		out := append([]string(nil), codes...)
		sort.SliceStable(out, func(i, j int) bool {
			ki, kj := sortKey(out[i]), sortKey(out[j])
			if ki != kj {
				return ki < kj
			}
			return out[i] < out[j]
		})
		return out
	}

	tree := c.DefiningTree()
	type frame struct {
		code  string
		depth int
	}

	var entries []TreeEntry
	var stack []frame
	roots := order(tree.Roots)
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{code: roots[i]})
	}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		entries = append(entries, TreeEntry{Code: f.code, Status: c.Status(f.code), Depth: f.depth})

		children := order(tree.Children[f.code])
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, frame{code: children[i], depth: f.depth + 1})
		}
	}
	return entries
}
