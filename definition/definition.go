package definition

import (
	"fmt"
	"math"
	"sort"

	"github.com/opensafely-core/opencodelists-sub001/hierarchy"
)

// DefaultNoiseTolerance is the ratio of off-target descendants below which a
// code is described with a single include-with-descendants rule.
const DefaultNoiseTolerance = 0.5

// Definition is an ordered list of include and exclude rules.
//
// A Definition derived with FromCodes also carries the relevant part of the
// hierarchy it was derived from: the target codes, their ancestors and their
// descendants.
type Definition struct {
	rules       []Rule
	tree        map[string][]string
	descendants map[string]hierarchy.CodeSet
}

// New returns a Definition holding rules in the given order.
func New(rules []Rule) *Definition {
	return &Definition{rules: append([]Rule(nil), rules...)}
}

// FromQuery parses fragments into a Definition, keeping their order.
func FromQuery(fragments []string) (*Definition, error) {
	rules := make([]Rule, 0, len(fragments))
	for _, f := range fragments {
		r, err := ParseFragment(f)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return &Definition{rules: rules}, nil
}

// Rules returns a copy of the rules in resolution order.
func (d *Definition) Rules() []Rule {
	return append([]Rule(nil), d.rules...)
}

// IncludedRules returns the rules that add codes.
func (d *Definition) IncludedRules() []Rule {
	return d.filter(false)
}

// ExcludedRules returns the rules that remove codes.
func (d *Definition) ExcludedRules() []Rule {
	return d.filter(true)
}

func (d *Definition) filter(excluded bool) []Rule {
	var out []Rule
	for _, r := range d.rules {
		if r.Excluded == excluded {
			out = append(out, r)
		}
	}
	return out
}

// Query returns the fragment of every rule in order.
func (d *Definition) Query() []string {
	out := make([]string, len(d.rules))
	for i, r := range d.rules {
		out[i] = r.Fragment()
	}
	return out
}

// Tree returns the child lists of the relevant subtree the definition was
// derived from. It is empty for definitions built from rules.
func (d *Definition) Tree() map[string][]string {
	out := make(map[string][]string, len(d.tree))
	for k, v := range d.tree {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// Codes resolves the rules against h in order: an include rule adds its code
// (and descendants when flagged), an exclude rule removes them.
func (d *Definition) Codes(h *hierarchy.Hierarchy) hierarchy.CodeSet {
	codes := make(hierarchy.CodeSet)
	for _, r := range d.rules {
		affected := []string{r.Code}
		if r.IncludesDescendants {
			for c := range d.descendantsOf(h, r.Code) {
				affected = append(affected, c)
			}
		}
		for _, c := range affected {
			if r.Excluded {
				codes.Remove(c)
			} else {
				codes.Add(c)
			}
		}
	}
	return codes
}

func (d *Definition) descendantsOf(h *hierarchy.Hierarchy, code string) hierarchy.CodeSet {
	if desc, ok := d.descendants[code]; ok {
		return desc
	}
	return h.Descendants(code)
}

// FromCodes derives a small rule list that resolves to exactly codes.
//
// r controls how many off-target descendants a code may have before it stops
// being described by one include-with-descendants rule plus exclusions: a
// code qualifies when the fraction of its descendants outside codes is below
// r. r = 0 enumerates every code.
func FromCodes(codes hierarchy.CodeSet, h *hierarchy.Hierarchy, r float64) (*Definition, error) {
	if r < 0 || math.IsNaN(r) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTolerance, r)
	}
	for _, c := range codes.Sorted() {
		if !h.Has(c) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownCode, c)
		}
	}

	relevant := make(hierarchy.CodeSet, len(codes))
	for c := range codes {
		relevant.Add(c)
		relevant.AddAll(h.Ancestors(c))
		relevant.AddAll(h.Descendants(c))
	}

	tree := make(map[string][]string, len(relevant))
	descendants := make(map[string]hierarchy.CodeSet, len(relevant))
	for n := range relevant {
		var children []string
		for _, child := range h.Children(n) {
			if relevant.Has(child) {
				children = append(children, child)
			}
		}
		tree[n] = children
		descendants[n] = h.Descendants(n)
	}

	c := &compactor{
		h:           h,
		target:      codes,
		tolerance:   r,
		tree:        tree,
		descendants: descendants,
		visited:     make(hierarchy.CodeSet),
		covered:     make(hierarchy.CodeSet),
		negVisited:  make(hierarchy.CodeSet),
	}
	c.walkPositive(startNodes(h, relevant))
	rules := c.minimize()

	return &Definition{rules: rules, tree: tree, descendants: descendants}, nil
}

// startNodes returns the relevant nodes without a parent, in lexical order.
func startNodes(h *hierarchy.Hierarchy, relevant hierarchy.CodeSet) []string {
	var starts []string
	for n := range relevant {
		if len(h.Parents(n)) == 0 {
			starts = append(starts, n)
		}
	}
	sort.Strings(starts)
	return starts
}
