package terminology

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/opensafely-core/opencodelists-sub001/service"
)

// Errors returned by this package.
var (
	ErrCodeSystemNotFound = errors.New("terminology: code system not found")
	ErrInvalidCodeSystem  = errors.New("terminology: invalid code system")
	ErrUnsupportedCompose = errors.New("terminology: unsupported ValueSet compose")
)

// ctxCheckInterval is how many concepts a relationship walk visits between
// context checks.
const ctxCheckInterval = 1024

// CodingSystem is an immutable in-memory concept DAG.
//
// Concepts without a recorded parent hang directly below the root, so every
// concept reaches the root through AncestorRelationships.
type CodingSystem struct {
	id       string
	root     string
	display  map[string]string
	parents  map[string][]string
	children map[string][]string
}

// NewCodingSystem builds a CodingSystem from concept displays and edges. Codes
// that only appear in edges are added with an empty display.
func NewCodingSystem(id, root string, display map[string]string, edges []service.Edge) (*CodingSystem, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: missing id", ErrInvalidCodeSystem)
	}
	if root == "" {
		return nil, fmt.Errorf("%w: %s: missing root", ErrInvalidCodeSystem, id)
	}

	cs := &CodingSystem{
		id:       id,
		root:     root,
		display:  make(map[string]string, len(display)+1),
		parents:  make(map[string][]string),
		children: make(map[string][]string),
	}
	for code, d := range display {
		if code == "" {
			return nil, fmt.Errorf("%w: %s: empty code", ErrInvalidCodeSystem, id)
		}
		cs.display[code] = d
	}
	if _, ok := cs.display[root]; !ok {
		cs.display[root] = ""
	}

	seen := make(map[service.Edge]bool, len(edges))
	for _, e := range edges {
		if e.Parent == "" || e.Child == "" {
			return nil, fmt.Errorf("%w: %s: edge %q -> %q has an empty code", ErrInvalidCodeSystem, id, e.Parent, e.Child)
		}
		if e.Parent == e.Child {
			return nil, fmt.Errorf("%w: %s: %s is its own parent", ErrInvalidCodeSystem, id, e.Child)
		}
		if e.Child == root {
			return nil, fmt.Errorf("%w: %s: root %s has parent %s", ErrInvalidCodeSystem, id, root, e.Parent)
		}
		if seen[e] {
			continue
		}
		seen[e] = true
		cs.link(e.Parent, e.Child)
	}

	for code := range cs.display {
		if code != root && len(cs.parents[code]) == 0 {
			cs.link(root, code)
		}
	}
	for _, m := range []map[string][]string{cs.parents, cs.children} {
		for _, codes := range m {
			sort.Strings(codes)
		}
	}
	return cs, nil
}

func (cs *CodingSystem) link(parent, child string) {
	for _, code := range []string{parent, child} {
		if _, ok := cs.display[code]; !ok {
			cs.display[code] = ""
		}
	}
	cs.parents[child] = append(cs.parents[child], parent)
	cs.children[parent] = append(cs.children[parent], child)
}

// ID returns the canonical identifier, usually the CodeSystem URL.
func (cs *CodingSystem) ID() string {
	return cs.id
}

// Root implements service.CodingSystem.
func (cs *CodingSystem) Root() string {
	return cs.root
}

// Has reports whether code is a concept of the system.
func (cs *CodingSystem) Has(code string) bool {
	_, ok := cs.display[code]
	return ok
}

// Display returns the display term for code, or "" when it has none.
func (cs *CodingSystem) Display(code string) string {
	return cs.display[code]
}

// Len returns the number of concepts, root included.
func (cs *CodingSystem) Len() int {
	return len(cs.display)
}

// Codes returns every concept code in sorted order.
func (cs *CodingSystem) Codes() []string {
	out := make([]string, 0, len(cs.display))
	for code := range cs.display {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// Parents returns the direct parents of code.
func (cs *CodingSystem) Parents(code string) []string {
	return append([]string(nil), cs.parents[code]...)
}

// Children returns the direct children of code.
func (cs *CodingSystem) Children(code string) []string {
	return append([]string(nil), cs.children[code]...)
}

// AncestorRelationships implements service.AncestorSource. Unknown codes
// contribute no edges.
func (cs *CodingSystem) AncestorRelationships(ctx context.Context, codes []string) ([]service.Edge, error) {
	return cs.walk(ctx, codes, cs.parents, func(code, next string) service.Edge {
		return service.Edge{Parent: next, Child: code}
	})
}

// DescendantRelationships implements service.DescendantSource. Unknown codes
// contribute no edges.
func (cs *CodingSystem) DescendantRelationships(ctx context.Context, codes []string) ([]service.Edge, error) {
	return cs.walk(ctx, codes, cs.children, func(code, next string) service.Edge {
		return service.Edge{Parent: code, Child: next}
	})
}

func (cs *CodingSystem) walk(ctx context.Context, codes []string, relations map[string][]string, edge func(code, next string) service.Edge) ([]service.Edge, error) {
	var edges []service.Edge
	visited := make(map[string]bool, len(codes))
	queue := make([]string, 0, len(codes))
	for _, c := range codes {
		if cs.Has(c) && !visited[c] {
			visited[c] = true
			queue = append(queue, c)
		}
	}

	for steps := 0; len(queue) > 0; steps++ {
		if steps%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		code := queue[0]
		queue = queue[1:]
		for _, next := range relations[code] {
			edges = append(edges, edge(code, next))
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return edges, nil
}

// Verify interface compliance
var _ service.CodingSystem = (*CodingSystem)(nil)
