package definition

import (
	"github.com/opensafely-core/opencodelists-sub001/hierarchy"
)

// compactor holds the state of one FromCodes derivation.
type compactor struct {
	h           *hierarchy.Hierarchy
	target      hierarchy.CodeSet
	tolerance   float64
	tree        map[string][]string
	descendants map[string]hierarchy.CodeSet

	visited    hierarchy.CodeSet // positive walk
	covered    hierarchy.CodeSet // subtrees of emitted include-with-descendants rules
	negVisited hierarchy.CodeSet // shared by every negative walk

	includes []Rule
	excludes []Rule
}

// offTargetRatio returns the fraction of code's descendants outside the
// target, or 1 for a leaf.
func (c *compactor) offTargetRatio(code string) float64 {
	desc := c.descendants[code]
	if len(desc) == 0 {
		return 1
	}
	off := 0
	for d := range desc {
		if !c.target.Has(d) {
			off++
		}
	}
	return float64(off) / float64(len(desc))
}

// push appends children to stack in reverse order so they pop in order.
func push(stack []string, children []string) []string {
	for i := len(children) - 1; i >= 0; i-- {
		stack = append(stack, children[i])
	}
	return stack
}

// walkPositive visits the relevant tree depth-first, emitting include rules.
func (c *compactor) walkPositive(starts []string) {
	stack := push(nil, starts)
	for len(stack) > 0 {
		code := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if c.visited.Has(code) {
			continue
		}
		c.visited.Add(code)
		if c.covered.Has(code) {
			continue
		}

		if c.target.Has(code) {
			if c.offTargetRatio(code) < c.tolerance {
				c.includes = append(c.includes, Rule{Code: code, IncludesDescendants: true})
				c.covered.AddAll(c.descendants[code])
				c.walkNegative(code)
				continue
			}
			c.includes = append(c.includes, Rule{Code: code})
		}
		stack = push(stack, c.tree[code])
	}
}

// walkNegative visits the subtree below an include-with-descendants rule and
// emits exclude rules for every off-target code in it. A code with no target
// descendants is excluded together with its whole subtree.
func (c *compactor) walkNegative(from string) {
	stack := push(nil, c.tree[from])
	for len(stack) > 0 {
		code := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if c.negVisited.Has(code) {
			continue
		}
		c.negVisited.Add(code)

		if c.target.Has(code) {
			stack = push(stack, c.tree[code])
			continue
		}
		if !c.descendants[code].Intersects(c.target) {
			c.excludes = append(c.excludes, Rule{Code: code, Excluded: true, IncludesDescendants: true})
			continue
		}
		c.excludes = append(c.excludes, Rule{Code: code, Excluded: true})
		stack = push(stack, c.tree[code])
	}
}

// minimize removes rules made redundant by others and returns the remaining
// rules, includes first.
//
// Exclude rules never touch a target code, so an include rule only needs its
// off-target descendants removed. That gives three reductions:
//   - an include-with-descendants rule whose children are all excluded with
//     their descendants covers nothing but its own code;
//   - an include rule below another include-with-descendants rule is implied;
//   - an exclude rule is only needed below an include-with-descendants rule,
//     and not below another exclude-with-descendants rule.
func (c *compactor) minimize() []Rule {
	excludedSubtrees := make(hierarchy.CodeSet)
	for _, r := range c.excludes {
		if r.IncludesDescendants {
			excludedSubtrees.Add(r.Code)
		}
	}

	includes := make([]Rule, len(c.includes))
	copy(includes, c.includes)
	for i, r := range includes {
		if r.IncludesDescendants && c.childrenAllIn(r.Code, excludedSubtrees) {
			includes[i].IncludesDescendants = false
		}
	}

	wildcards := make(hierarchy.CodeSet)
	for _, r := range includes {
		if r.IncludesDescendants {
			wildcards.Add(r.Code)
		}
	}

	rules := make([]Rule, 0, len(includes)+len(c.excludes))
	for _, r := range includes {
		if c.h.Ancestors(r.Code).Intersects(wildcards) {
			continue
		}
		rules = append(rules, r)
	}

	var excludes []Rule
	for _, r := range c.excludes {
		if c.h.Ancestors(r.Code).Intersects(wildcards) {
			excludes = append(excludes, r)
		}
	}
	keptSubtrees := make(hierarchy.CodeSet)
	for _, r := range excludes {
		if r.IncludesDescendants {
			keptSubtrees.Add(r.Code)
		}
	}
	for _, r := range excludes {
		if c.h.Ancestors(r.Code).Intersects(keptSubtrees) {
			continue
		}
		rules = append(rules, r)
	}
	return rules
}

func (c *compactor) childrenAllIn(code string, set hierarchy.CodeSet) bool {
	for _, child := range c.h.Children(code) {
		if !set.Has(child) {
			return false
		}
	}
	return true
}
