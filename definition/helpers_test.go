package definition

import (
	"fmt"
	"math/rand"

	"github.com/opensafely-core/opencodelists-sub001/hierarchy"
)

func edges(pairs ...string) []hierarchy.Edge {
	out := make([]hierarchy.Edge, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, hierarchy.Edge{Parent: pairs[i], Child: pairs[i+1]})
	}
	return out
}

// buildExample returns a→{b,c}, b→{d,e}, c→{e,f}, d→{g,h}, e→{h,i}, f→{i,j}.
func buildExample() *hierarchy.Hierarchy {
	return hierarchy.New("a", edges(
		"a", "b", "a", "c",
		"b", "d", "b", "e",
		"c", "e", "c", "f",
		"d", "g", "d", "h",
		"e", "h", "e", "i",
		"f", "i", "f", "j",
	))
}

// randomHierarchy builds a DAG in which every node after the root has between
// one and three parents chosen among earlier nodes.
func randomHierarchy(rng *rand.Rand, size int) *hierarchy.Hierarchy {
	var es []hierarchy.Edge
	for i := 1; i < size; i++ {
		child := fmt.Sprintf("n%03d", i)
		parents := 1 + rng.Intn(3)
		seen := map[int]bool{}
		for p := 0; p < parents; p++ {
			j := rng.Intn(i)
			if seen[j] {
				continue
			}
			seen[j] = true
			es = append(es, hierarchy.Edge{Parent: fmt.Sprintf("n%03d", j), Child: child})
		}
	}
	return hierarchy.New("n000", es)
}

// randomSubset picks each node with probability p. Picking whole subtrees
// now and then gives the compaction something to compact.
func randomSubset(rng *rand.Rand, h *hierarchy.Hierarchy, p float64) hierarchy.CodeSet {
	out := make(hierarchy.CodeSet)
	for _, n := range h.Nodes() {
		switch x := rng.Float64(); {
		case x < p/4:
			out.AddAll(h.Subtree(n))
		case x < p:
			out.Add(n)
		}
	}
	return out
}
