package hierarchy

import (
	"sort"
)

// CodeSet is an unordered set of concept codes.
type CodeSet map[string]struct{}

// NewCodeSet returns a set holding the given codes.
func NewCodeSet(codes ...string) CodeSet {
	s := make(CodeSet, len(codes))
	for _, c := range codes {
		s[c] = struct{}{}
	}
	return s
}

// Has reports whether code is in the set.
func (s CodeSet) Has(code string) bool {
	_, ok := s[code]
	return ok
}

// Add inserts code into the set.
func (s CodeSet) Add(code string) {
	s[code] = struct{}{}
}

// AddAll inserts every member of other into the set.
func (s CodeSet) AddAll(other CodeSet) {
	for c := range other {
		s[c] = struct{}{}
	}
}

// Remove deletes code from the set.
func (s CodeSet) Remove(code string) {
	delete(s, code)
}

// Clone returns a shallow copy of the set.
func (s CodeSet) Clone() CodeSet {
	out := make(CodeSet, len(s))
	for c := range s {
		out[c] = struct{}{}
	}
	return out
}

// Union returns a new set holding the members of both sets.
func (s CodeSet) Union(other CodeSet) CodeSet {
	out := make(CodeSet, len(s)+len(other))
	out.AddAll(s)
	out.AddAll(other)
	return out
}

// Intersect returns a new set holding the members present in both sets.
func (s CodeSet) Intersect(other CodeSet) CodeSet {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}
	out := make(CodeSet)
	for c := range small {
		if large.Has(c) {
			out[c] = struct{}{}
		}
	}
	return out
}

// Difference returns a new set holding the members of s not in other.
func (s CodeSet) Difference(other CodeSet) CodeSet {
	out := make(CodeSet)
	for c := range s {
		if !other.Has(c) {
			out[c] = struct{}{}
		}
	}
	return out
}

// Intersects reports whether the two sets share at least one member.
func (s CodeSet) Intersects(other CodeSet) bool {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}
	for c := range small {
		if large.Has(c) {
			return true
		}
	}
	return false
}

// SubsetOf reports whether every member of s is also in other.
func (s CodeSet) SubsetOf(other CodeSet) bool {
	if len(s) > len(other) {
		return false
	}
	for c := range s {
		if !other.Has(c) {
			return false
		}
	}
	return true
}

// Equal reports whether both sets hold exactly the same members.
func (s CodeSet) Equal(other CodeSet) bool {
	return len(s) == len(other) && s.SubsetOf(other)
}

// Sorted returns the members in lexical order.
func (s CodeSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
