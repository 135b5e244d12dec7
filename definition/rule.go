package definition

import (
	"errors"
	"fmt"
	"strings"
)

// Fragment markers.
const (
	excludedMarker    = "~"
	descendantsMarker = "<"
)

// Errors returned by this package.
var (
	ErrInvalidFragment      = errors.New("definition: invalid fragment")
	ErrUnknownCode          = errors.New("definition: code not in hierarchy")
	ErrInvalidTolerance     = errors.New("definition: invalid noise tolerance")
	ErrOverlappingAncestors = errors.New("definition: code both included and excluded")
)

// Rule is a single element of a Definition.
type Rule struct {
	Code                string
	Excluded            bool
	IncludesDescendants bool
}

// Fragment returns the canonical string form of the rule.
func (r Rule) Fragment() string {
	var b strings.Builder
	b.Grow(len(r.Code) + 2)
	if r.Excluded {
		b.WriteString(excludedMarker)
	}
	b.WriteString(r.Code)
	if r.IncludesDescendants {
		b.WriteString(descendantsMarker)
	}
	return b.String()
}

// String implements fmt.Stringer.
func (r Rule) String() string {
	return r.Fragment()
}

// ParseFragment parses a fragment produced by Rule.Fragment.
func ParseFragment(fragment string) (Rule, error) {
	var r Rule
	code := fragment
	if strings.HasPrefix(code, excludedMarker) {
		r.Excluded = true
		code = code[len(excludedMarker):]
	}
	if strings.HasSuffix(code, descendantsMarker) {
		r.IncludesDescendants = true
		code = code[:len(code)-len(descendantsMarker)]
	}
	if code == "" {
		return Rule{}, fmt.Errorf("%w: %q has no code", ErrInvalidFragment, fragment)
	}
	if strings.ContainsAny(code, excludedMarker+descendantsMarker) || strings.TrimSpace(code) != code {
		return Rule{}, fmt.Errorf("%w: %q", ErrInvalidFragment, fragment)
	}
	r.Code = code
	return r, nil
}
