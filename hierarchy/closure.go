package hierarchy

// Ancestors returns every ancestor of node, excluding node itself.
//
// The returned set is the memoized closure and must not be modified.
func (h *Hierarchy) Ancestors(node string) CodeSet {
	return h.closure(node, h.parents, h.ancestorsCache)
}

// Descendants returns every descendant of node, excluding node itself.
//
// The returned set is the memoized closure and must not be modified.
func (h *Hierarchy) Descendants(node string) CodeSet {
	return h.closure(node, h.children, h.descendantsCache)
}

// closure expands node's immediate relations with an explicit work-list,
// reusing any closure already memoized for a node on the way. Only nodes of
// the hierarchy are memoized; any other code has an empty closure.
func (h *Hierarchy) closure(node string, relations map[string]CodeSet, memo map[string]CodeSet) CodeSet {
	if !h.nodes.Has(node) {
		return CodeSet{}
	}

	h.mu.RLock()
	cached, ok := memo[node]
	h.mu.RUnlock()
	if ok {
		return cached
	}

	result := make(CodeSet)
	stack := make([]string, 0, len(relations[node]))
	for r := range relations[node] {
		stack = append(stack, r)
	}

	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if result.Has(n) {
			continue
		}
		result.Add(n)

		h.mu.RLock()
		known, ok := memo[n]
		h.mu.RUnlock()
		if ok {
			result.AddAll(known)
			continue
		}
		for r := range relations[n] {
			if !result.Has(r) {
				stack = append(stack, r)
			}
		}
	}

	h.mu.Lock()
	memo[node] = result
	h.mu.Unlock()
	return result
}

// FilterToUltimateAncestors returns the members of nodes that have no
// ancestor also in nodes.
func (h *Hierarchy) FilterToUltimateAncestors(nodes CodeSet) CodeSet {
	out := make(CodeSet)
	for n := range nodes {
		if !h.Ancestors(n).Intersects(nodes) {
			out.Add(n)
		}
	}
	return out
}

// IsAncestor reports whether ancestor lies strictly above node.
func (h *Hierarchy) IsAncestor(ancestor, node string) bool {
	return h.Ancestors(node).Has(ancestor)
}

// Subtree returns node together with all of its descendants.
func (h *Hierarchy) Subtree(node string) CodeSet {
	out := h.Descendants(node).Clone()
	out.Add(node)
	return out
}
