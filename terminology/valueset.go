package terminology

import (
	"fmt"

	"github.com/gofhir/fhir/r4"

	"github.com/opensafely-core/opencodelists-sub001/definition"
	"github.com/opensafely-core/opencodelists-sub001/hierarchy"
)

// DefinitionFromCompose converts the include and exclude entries of a
// ValueSet compose for one code system into a rule-based Definition.
//
// Supported entries are enumerated concepts, "concept is-a X" (X and its
// descendants), "concept descendent-of X" (descendants only) and
// "code = X". Everything else, including entries for another system, fails
// with ErrUnsupportedCompose.
func DefinitionFromCompose(compose *r4.ValueSetCompose, system string) (*definition.Definition, error) {
	if compose == nil {
		return nil, fmt.Errorf("%w: nil compose", ErrUnsupportedCompose)
	}

	var included, selfExclusions, excluded []definition.Rule
	for i := range compose.Include {
		rules, self, err := composeRules(&compose.Include[i], system, false)
		if err != nil {
			return nil, fmt.Errorf("include %d: %w", i, err)
		}
		included = append(included, rules...)
		selfExclusions = append(selfExclusions, self...)
	}
	for i := range compose.Exclude {
		rules, _, err := composeRules(&compose.Exclude[i], system, true)
		if err != nil {
			return nil, fmt.Errorf("exclude %d: %w", i, err)
		}
		excluded = append(excluded, rules...)
	}

	rules := make([]definition.Rule, 0, len(included)+len(selfExclusions)+len(excluded))
	rules = append(rules, included...)
	rules = append(rules, selfExclusions...)
	rules = append(rules, excluded...)
	return definition.New(rules), nil
}

// composeRules converts one compose entry. The second result holds the
// exclusions that "descendent-of" needs once every inclusion has been applied.
func composeRules(inc *r4.ValueSetComposeInclude, system string, exclude bool) (rules, self []definition.Rule, err error) {
	if inc.System == nil {
		return nil, nil, fmt.Errorf("%w: entry has no system", ErrUnsupportedCompose)
	}
	if stripVersionFromURL(*inc.System) != stripVersionFromURL(system) {
		return nil, nil, fmt.Errorf("%w: system %s, want %s", ErrUnsupportedCompose, *inc.System, system)
	}
	if len(inc.Concept) == 0 && len(inc.Filter) == 0 {
		return nil, nil, fmt.Errorf("%w: whole code system entries", ErrUnsupportedCompose)
	}

	for j := range inc.Concept {
		if c := inc.Concept[j].Code; c != nil && *c != "" {
			rules = append(rules, definition.Rule{Code: *c, Excluded: exclude})
		}
	}

	for _, filter := range inc.Filter {
		if filter.Property == nil || filter.Op == nil || filter.Value == nil || *filter.Value == "" {
			return nil, nil, fmt.Errorf("%w: incomplete filter", ErrUnsupportedCompose)
		}
		property, op, value := *filter.Property, string(*filter.Op), *filter.Value

		switch {
		case property == "concept" && op == "is-a":
			rules = append(rules, definition.Rule{Code: value, Excluded: exclude, IncludesDescendants: true})
		case property == "concept" && op == "descendent-of":
			rules = append(rules, definition.Rule{Code: value, Excluded: exclude, IncludesDescendants: true})
			if !exclude {
				self = append(self, definition.Rule{Code: value, Excluded: true})
			}
		case property == "code" && op == "=":
			rules = append(rules, definition.Rule{Code: value, Excluded: exclude})
		default:
			return nil, nil, fmt.Errorf("%w: filter %s %s %s", ErrUnsupportedCompose, property, op, value)
		}
	}
	return rules, self, nil
}

// ExpansionFromCodes lists codes as a flat ValueSet expansion, sorted by
// code, with displays taken from cs.
func ExpansionFromCodes(cs *CodingSystem, codes hierarchy.CodeSet) *r4.ValueSetExpansion {
	system := cs.ID()
	exp := &r4.ValueSetExpansion{
		Contains: make([]r4.ValueSetExpansionContains, 0, len(codes)),
	}
	for _, code := range codes.Sorted() {
		code := code
		contains := r4.ValueSetExpansionContains{System: &system, Code: &code}
		if d := cs.Display(code); d != "" {
			contains.Display = &d
		}
		exp.Contains = append(exp.Contains, contains)
	}
	return exp
}
