package hierarchy

import (
	"fmt"
)

// Status is the resolved membership of a concept. The six values form a
// closed, stable vocabulary shared with presentation layers.
type Status string

// Status values.
const (
	StatusIncluded           Status = "+"
	StatusExcluded           Status = "-"
	StatusIncludedByAncestor Status = "(+)"
	StatusExcludedByAncestor Status = "(-)"
	StatusUnresolved         Status = "?"
	StatusConflicted         Status = "!"
)

// AllStatuses lists every status in display order.
var AllStatuses = []Status{
	StatusIncluded,
	StatusExcluded,
	StatusIncludedByAncestor,
	StatusExcludedByAncestor,
	StatusUnresolved,
	StatusConflicted,
}

// String returns the status symbol.
func (s Status) String() string {
	return string(s)
}

// IsValid reports whether s is one of the six status symbols.
func (s Status) IsValid() bool {
	switch s {
	case StatusIncluded, StatusExcluded, StatusIncludedByAncestor,
		StatusExcludedByAncestor, StatusUnresolved, StatusConflicted:
		return true
	default:
		return false
	}
}

// IsIncluded reports whether the status places a concept in the codelist.
func (s Status) IsIncluded() bool {
	return s == StatusIncluded || s == StatusIncludedByAncestor
}

// IsDefining reports whether the status marks a concept explicitly.
func (s Status) IsDefining() bool {
	return s == StatusIncluded || s == StatusExcluded
}

// ParseStatus converts a symbol into a Status.
func ParseStatus(symbol string) (Status, error) {
	s := Status(symbol)
	if !s.IsValid() {
		return "", fmt.Errorf("unknown status %q", symbol)
	}
	return s, nil
}

// NodeStatus resolves the status of node given disjoint sets of included and
// excluded codes.
//
// A marked ancestor only counts when no other marked ancestor lies below it;
// when the remaining ("significant") ancestors disagree the node is
// conflicted.
func (h *Hierarchy) NodeStatus(node string, included, excluded CodeSet) Status {
	if included.Has(node) {
		return StatusIncluded
	}
	if excluded.Has(node) {
		return StatusExcluded
	}

	ancestors := h.Ancestors(node)
	candidates := make([]string, 0)
	for a := range ancestors {
		if included.Has(a) || excluded.Has(a) {
			candidates = append(candidates, a)
		}
	}
	if len(candidates) == 0 {
		return StatusUnresolved
	}

	var hasIncluded, hasExcluded bool
	for _, a := range candidates {
		if !h.isSignificant(a, candidates) {
			continue
		}
		if included.Has(a) {
			hasIncluded = true
		} else {
			hasExcluded = true
		}
	}

	switch {
	case hasIncluded && !hasExcluded:
		return StatusIncludedByAncestor
	case hasExcluded && !hasIncluded:
		return StatusExcludedByAncestor
	default:
		return StatusConflicted
	}
}

// isSignificant reports whether no other candidate is a descendant of a.
func (h *Hierarchy) isSignificant(a string, candidates []string) bool {
	descendants := h.Descendants(a)
	for _, c := range candidates {
		if c != a && descendants.Has(c) {
			return false
		}
	}
	return true
}

// NodeStatuses resolves the status of every code in nodes.
func (h *Hierarchy) NodeStatuses(nodes CodeSet, included, excluded CodeSet) map[string]Status {
	out := make(map[string]Status, len(nodes))
	for n := range nodes {
		out[n] = h.NodeStatus(n, included, excluded)
	}
	return out
}
