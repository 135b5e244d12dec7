package definition

import (
	"fmt"

	"github.com/opensafely-core/opencodelists-sub001/hierarchy"
)

// Definition2 describes a codelist with two disjoint sets of marked codes:
// every included ancestor brings in its whole subtree, every excluded
// ancestor removes its whole subtree, and the nearest mark wins.
type Definition2 struct {
	included hierarchy.CodeSet
	excluded hierarchy.CodeSet
}

// NewDefinition2 returns a Definition2 with the given ancestor sets.
func NewDefinition2(included, excluded hierarchy.CodeSet) (*Definition2, error) {
	if overlap := included.Intersect(excluded); len(overlap) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrOverlappingAncestors, overlap.Sorted())
	}
	return &Definition2{included: included.Clone(), excluded: excluded.Clone()}, nil
}

// Definition2FromCodes derives the ancestor sets that resolve to exactly
// codes under h.
func Definition2FromCodes(codes hierarchy.CodeSet, h *hierarchy.Hierarchy) (*Definition2, error) {
	for _, c := range codes.Sorted() {
		if !h.Has(c) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownCode, c)
		}
	}
	d := deriveAncestors(codes, h)
	return &Definition2{included: d.included, excluded: d.excluded}, nil
}

// IncludedAncestors returns a copy of the included ancestor set.
func (d *Definition2) IncludedAncestors() hierarchy.CodeSet {
	return d.included.Clone()
}

// ExcludedAncestors returns a copy of the excluded ancestor set.
func (d *Definition2) ExcludedAncestors() hierarchy.CodeSet {
	return d.excluded.Clone()
}

// Codes returns every node of h whose status is included.
func (d *Definition2) Codes(h *hierarchy.Hierarchy) hierarchy.CodeSet {
	out := make(hierarchy.CodeSet)
	for _, n := range h.Nodes() {
		if h.NodeStatus(n, d.included, d.excluded).IsIncluded() {
			out.Add(n)
		}
	}
	return out
}

// CodeToStatus resolves the marked codes and all of their descendants.
func (d *Definition2) CodeToStatus(h *hierarchy.Hierarchy) map[string]hierarchy.Status {
	nodes := make(hierarchy.CodeSet)
	for _, marks := range []hierarchy.CodeSet{d.included, d.excluded} {
		for c := range marks {
			nodes.Add(c)
			nodes.AddAll(h.Descendants(c))
		}
	}
	return h.NodeStatuses(nodes, d.included, d.excluded)
}

type polarity int

const (
	polarityIncluded polarity = iota
	polarityExcluded
)

func (p polarity) other() polarity {
	if p == polarityIncluded {
		return polarityExcluded
	}
	return polarityIncluded
}

// derivationStep records one ancestor added during derivation together with
// the part of its subtree pushed onto the opposite queue.
type derivationStep struct {
	polarity polarity
	ancestor string
	residual hierarchy.CodeSet
}

type derivation struct {
	included hierarchy.CodeSet
	excluded hierarchy.CodeSet
	steps    []derivationStep
}

// deriveAncestors runs the two-queue work-list.
//
// Each queue entry is reduced to its ultimate ancestors. A new included
// ancestor pushes its off-target descendants onto the excluded queue; a new
// excluded ancestor pushes its target descendants back onto the included
// queue. Every residual lies strictly below the ancestor that produced it, so
// each generation of ancestors is deeper than the last and the loop ends.
// Entries are reduced separately: merging them would let an ancestor from one
// lineage hide a code another lineage needs to override.
func deriveAncestors(target hierarchy.CodeSet, h *hierarchy.Hierarchy) derivation {
	d := derivation{
		included: make(hierarchy.CodeSet),
		excluded: make(hierarchy.CodeSet),
	}
	queues := map[polarity][]hierarchy.CodeSet{
		polarityIncluded: {target},
	}

	for len(queues[polarityIncluded]) > 0 || len(queues[polarityExcluded]) > 0 {
		p := polarityIncluded
		if len(queues[p]) == 0 {
			p = polarityExcluded
		}
		entry := queues[p][0]
		queues[p] = queues[p][1:]

		marks := d.included
		if p == polarityExcluded {
			marks = d.excluded
		}

		for _, a := range h.FilterToUltimateAncestors(entry).Sorted() {
			if marks.Has(a) {
				continue
			}
			marks.Add(a)

			var residual hierarchy.CodeSet
			if p == polarityIncluded {
				residual = h.Descendants(a).Difference(target)
			} else {
				residual = h.Descendants(a).Intersect(target)
			}
			d.steps = append(d.steps, derivationStep{polarity: p, ancestor: a, residual: residual})
			if len(residual) > 0 {
				queues[p.other()] = append(queues[p.other()], residual)
			}
		}
	}
	return d
}
