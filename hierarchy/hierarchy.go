package hierarchy

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/opensafely-core/opencodelists-sub001/service"
)

// Edge is a single parent/child relationship.
type Edge = service.Edge

// Errors returned by hierarchy construction.
var (
	ErrInvalidCodes    = errors.New("hierarchy: invalid codes")
	ErrMalformedRecord = errors.New("hierarchy: malformed cache record")
)

// Hierarchy is a DAG of concept codes with memoized transitive closures.
//
// The parent and child maps never change after construction, so a Hierarchy
// is safe for concurrent use. The memo tables are guarded by mu; a racing
// computation at worst repeats work and the last write wins.
type Hierarchy struct {
	root     string
	nodes    CodeSet
	parents  map[string]CodeSet
	children map[string]CodeSet

	mu               sync.RWMutex
	descendantsCache map[string]CodeSet
	ancestorsCache   map[string]CodeSet
}

// New builds a Hierarchy from (parent, child) edges. The root is always a
// node, even when no edge touches it.
func New(root string, edges []Edge) *Hierarchy {
	h := &Hierarchy{
		root:             root,
		nodes:            NewCodeSet(root),
		parents:          make(map[string]CodeSet),
		children:         make(map[string]CodeSet),
		descendantsCache: make(map[string]CodeSet),
		ancestorsCache:   make(map[string]CodeSet),
	}
	for _, e := range edges {
		h.nodes.Add(e.Parent)
		h.nodes.Add(e.Child)
		addTo(h.parents, e.Child, e.Parent)
		addTo(h.children, e.Parent, e.Child)
	}
	return h
}

func addTo(m map[string]CodeSet, key, value string) {
	s, ok := m[key]
	if !ok {
		s = make(CodeSet)
		m[key] = s
	}
	s.Add(value)
}

// FromCodes builds the Hierarchy around codes by asking the coding system for
// every ancestor and descendant relationship. A requested code that appears in
// no returned edge is attached directly to the coding system's root.
func FromCodes(ctx context.Context, cs service.CodingSystem, codes []string) (*Hierarchy, error) {
	if cs == nil {
		return nil, fmt.Errorf("%w: nil coding system", ErrInvalidCodes)
	}
	for i, c := range codes {
		if c == "" {
			return nil, fmt.Errorf("%w: empty code at position %d", ErrInvalidCodes, i)
		}
	}

	ancestorEdges, err := cs.AncestorRelationships(ctx, codes)
	if err != nil {
		return nil, fmt.Errorf("ancestor relationships: %w", err)
	}
	descendantEdges, err := cs.DescendantRelationships(ctx, codes)
	if err != nil {
		return nil, fmt.Errorf("descendant relationships: %w", err)
	}

	seen := make(map[Edge]struct{}, len(ancestorEdges)+len(descendantEdges))
	edges := make([]Edge, 0, len(ancestorEdges)+len(descendantEdges))
	onEdge := make(CodeSet)
	for _, group := range [][]Edge{ancestorEdges, descendantEdges} {
		for _, e := range group {
			if _, dup := seen[e]; dup {
				continue
			}
			seen[e] = struct{}{}
			edges = append(edges, e)
			onEdge.Add(e.Parent)
			onEdge.Add(e.Child)
		}
	}

	root := cs.Root()
	for _, c := range codes {
		if c == root || onEdge.Has(c) {
			continue
		}
		// Concepts with no recorded lineage, e.g. retired codes.
		e := Edge{Parent: root, Child: c}
		if _, dup := seen[e]; !dup {
			seen[e] = struct{}{}
			edges = append(edges, e)
		}
	}

	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Parent != edges[j].Parent {
			return edges[i].Parent < edges[j].Parent
		}
		return edges[i].Child < edges[j].Child
	})
	return New(root, edges), nil
}

// Root returns the root code.
func (h *Hierarchy) Root() string {
	return h.root
}

// Has reports whether code is a node of the hierarchy.
func (h *Hierarchy) Has(code string) bool {
	return h.nodes.Has(code)
}

// Len returns the number of nodes.
func (h *Hierarchy) Len() int {
	return len(h.nodes)
}

// Nodes returns all node codes in lexical order.
func (h *Hierarchy) Nodes() []string {
	return h.nodes.Sorted()
}

// Parents returns the immediate parents of code in lexical order.
func (h *Hierarchy) Parents(code string) []string {
	return h.parents[code].Sorted()
}

// Children returns the immediate children of code in lexical order.
func (h *Hierarchy) Children(code string) []string {
	return h.children[code].Sorted()
}

// Edges returns every edge, ordered by parent then child.
func (h *Hierarchy) Edges() []Edge {
	var edges []Edge
	for _, parent := range h.nodes.Sorted() {
		for _, child := range h.children[parent].Sorted() {
			edges = append(edges, Edge{Parent: parent, Child: child})
		}
	}
	return edges
}

// MemoStats reports how many closures have been memoized.
type MemoStats struct {
	Nodes       int
	Ancestors   int
	Descendants int
}

// MemoStats returns the current size of the memo tables.
func (h *Hierarchy) MemoStats() MemoStats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return MemoStats{
		Nodes:       len(h.nodes),
		Ancestors:   len(h.ancestorsCache),
		Descendants: len(h.descendantsCache),
	}
}
