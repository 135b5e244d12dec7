package codeset

import (
	"errors"
	"fmt"

	"github.com/opensafely-core/opencodelists-sub001/definition"
	"github.com/opensafely-core/opencodelists-sub001/hierarchy"
)

// Errors returned by this package.
var (
	ErrInvalidStatus = errors.New("codeset: invalid status map")
	ErrInvalidUpdate = errors.New("codeset: invalid update")
)

// Codeset maps codes to their resolved status within a Hierarchy.
type Codeset struct {
	codeToStatus map[string]hierarchy.Status
	h            *hierarchy.Hierarchy
}

// New wraps an existing status map. Every code must belong to h and every
// status must be one of the six symbols.
func New(codeToStatus map[string]hierarchy.Status, h *hierarchy.Hierarchy) (*Codeset, error) {
	m := make(map[string]hierarchy.Status, len(codeToStatus))
	for code, status := range codeToStatus {
		if !h.Has(code) {
			return nil, fmt.Errorf("%w: code %s not in hierarchy", ErrInvalidStatus, code)
		}
		if !status.IsValid() {
			return nil, fmt.Errorf("%w: code %s has status %q", ErrInvalidStatus, code, status)
		}
		m[code] = status
	}
	return &Codeset{codeToStatus: m, h: h}, nil
}

// FromDefinition resolves every marked code and every code with a marked
// ancestor.
func FromDefinition(included, excluded hierarchy.CodeSet, h *hierarchy.Hierarchy) (*Codeset, error) {
	if overlap := included.Intersect(excluded); len(overlap) > 0 {
		return nil, fmt.Errorf("%w: %v both included and excluded", ErrInvalidStatus, overlap.Sorted())
	}
	nodes := make(hierarchy.CodeSet)
	for _, marks := range []hierarchy.CodeSet{included, excluded} {
		for code := range marks {
			if !h.Has(code) {
				return nil, fmt.Errorf("%w: code %s not in hierarchy", ErrInvalidStatus, code)
			}
			nodes.Add(code)
			nodes.AddAll(h.Descendants(code))
		}
	}
	return &Codeset{codeToStatus: h.NodeStatuses(nodes, included, excluded), h: h}, nil
}

// FromCodes builds the Codeset whose included codes are exactly codes, using
// the ancestor-set derivation to choose the defining codes.
func FromCodes(codes hierarchy.CodeSet, h *hierarchy.Hierarchy) (*Codeset, error) {
	d, err := definition.Definition2FromCodes(codes, h)
	if err != nil {
		return nil, err
	}
	return FromDefinition(d.IncludedAncestors(), d.ExcludedAncestors(), h)
}

// FromRules resolves a rule-based Definition and builds the matching Codeset.
func FromRules(d *definition.Definition, h *hierarchy.Hierarchy) (*Codeset, error) {
	for _, r := range d.Rules() {
		if !h.Has(r.Code) {
			return nil, fmt.Errorf("%w: rule code %s not in hierarchy", definition.ErrUnknownCode, r.Code)
		}
	}
	return FromCodes(d.Codes(h), h)
}

// Hierarchy returns the hierarchy the statuses were resolved against.
func (c *Codeset) Hierarchy() *hierarchy.Hierarchy {
	return c.h
}

// Status returns the status of code. Hierarchy nodes with no marked ancestor
// are unresolved.
func (c *Codeset) Status(code string) hierarchy.Status {
	if s, ok := c.codeToStatus[code]; ok {
		return s
	}
	return hierarchy.StatusUnresolved
}

// CodeToStatus returns a copy of the status map.
func (c *Codeset) CodeToStatus() map[string]hierarchy.Status {
	out := make(map[string]hierarchy.Status, len(c.codeToStatus))
	for k, v := range c.codeToStatus {
		out[k] = v
	}
	return out
}

// Codes returns the codes whose status is one of statuses, defaulting to the
// included statuses "+" and "(+)".
func (c *Codeset) Codes(statuses ...hierarchy.Status) hierarchy.CodeSet {
	if len(statuses) == 0 {
		statuses = []hierarchy.Status{hierarchy.StatusIncluded, hierarchy.StatusIncludedByAncestor}
	}
	want := make(map[hierarchy.Status]bool, len(statuses))
	for _, s := range statuses {
		want[s] = true
	}
	out := make(hierarchy.CodeSet)
	for code, s := range c.codeToStatus {
		if want[s] {
			out.Add(code)
		}
	}
	return out
}

// Included returns the codes marked "+".
func (c *Codeset) Included() hierarchy.CodeSet {
	return c.Codes(hierarchy.StatusIncluded)
}

// Excluded returns the codes marked "-".
func (c *Codeset) Excluded() hierarchy.CodeSet {
	return c.Codes(hierarchy.StatusExcluded)
}

// DefiningCodes returns the codes marked "+" or "-".
func (c *Codeset) DefiningCodes() hierarchy.CodeSet {
	return c.Codes(hierarchy.StatusIncluded, hierarchy.StatusExcluded)
}

// Conflicts returns the codes whose nearest marked ancestors disagree.
func (c *Codeset) Conflicts() hierarchy.CodeSet {
	return c.Codes(hierarchy.StatusConflicted)
}

// Definition2 returns the ancestor-set form of the defining codes.
func (c *Codeset) Definition2() (*definition.Definition2, error) {
	return definition.NewDefinition2(c.Included(), c.Excluded())
}

// Diff is one requested edit: mark Code with Status.
type Diff struct {
	Code   string
	Status hierarchy.Status
}

// Update applies diffs in order and returns the recomputed Codeset.
//
// "+" makes a code a defining inclusion, "-" a defining exclusion and "?"
// removes whatever mark the code had. Statuses are then resolved from scratch
// so that descendants of every touched code pick up the change.
func (c *Codeset) Update(diffs []Diff) (*Codeset, error) {
	included := c.Included()
	excluded := c.Excluded()

	for i, d := range diffs {
		if !c.h.Has(d.Code) {
			return nil, fmt.Errorf("%w: diff %d: code %s not in hierarchy", ErrInvalidUpdate, i, d.Code)
		}
		switch d.Status {
		case hierarchy.StatusIncluded:
			excluded.Remove(d.Code)
			included.Add(d.Code)
		case hierarchy.StatusExcluded:
			included.Remove(d.Code)
			excluded.Add(d.Code)
		case hierarchy.StatusUnresolved:
			included.Remove(d.Code)
			excluded.Remove(d.Code)
		default:
			return nil, fmt.Errorf("%w: diff %d: cannot set %s to %q", ErrInvalidUpdate, i, d.Code, d.Status)
		}
	}
	return FromDefinition(included, excluded, c.h)
}
