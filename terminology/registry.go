package terminology

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/gofhir/fhir/r4"
	"github.com/gofhir/fhirpath"

	"github.com/opensafely-core/opencodelists-sub001/service"
)

// Registry holds coding systems and ValueSets keyed by canonical URL.
type Registry struct {
	mu          sync.RWMutex
	codeSystems map[string]*CodingSystem
	valueSets   map[string]*r4.ValueSet

	filter *fhirpath.Expression
}

// Option configures a Registry.
type Option func(*registryOptions)

type registryOptions struct {
	conceptFilter string
}

// WithConceptFilter keeps only the CodeSystem concepts for which the FHIRPath
// expression evaluates to true. The expression is evaluated against each
// concept's JSON; an empty result keeps the concept.
func WithConceptFilter(expr string) Option {
	return func(o *registryOptions) {
		o.conceptFilter = expr
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) (*Registry, error) {
	var o registryOptions
	for _, opt := range opts {
		opt(&o)
	}

	r := &Registry{
		codeSystems: make(map[string]*CodingSystem),
		valueSets:   make(map[string]*r4.ValueSet),
	}
	if o.conceptFilter != "" {
		expr, err := fhirpath.Compile(o.conceptFilter)
		if err != nil {
			return nil, fmt.Errorf("compile concept filter %q: %w", o.conceptFilter, err)
		}
		r.filter = expr
	}
	return r, nil
}

// Register adds cs, replacing any system with the same ID.
func (r *Registry) Register(cs *CodingSystem) {
	r.mu.Lock()
	r.codeSystems[cs.ID()] = cs
	r.mu.Unlock()
}

// CodingSystem implements service.CodingSystemRegistry.
func (r *Registry) CodingSystem(id string) (service.CodingSystem, bool) {
	cs, err := r.Lookup(id)
	if err != nil {
		return nil, false
	}
	return cs, true
}

// Lookup returns the coding system registered under id. A "|version" suffix
// on id is ignored.
func (r *Registry) Lookup(id string) (*CodingSystem, error) {
	id = stripVersionFromURL(id)

	r.mu.RLock()
	defer r.mu.RUnlock()
	cs, ok := r.codeSystems[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCodeSystemNotFound, id)
	}
	return cs, nil
}

// ValueSet returns the ValueSet registered under url.
func (r *Registry) ValueSet(url string) (*r4.ValueSet, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	vs, ok := r.valueSets[stripVersionFromURL(url)]
	return vs, ok
}

// IDs returns the registered coding system IDs in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.codeSystems))
	for id := range r.codeSystems {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// CountCodeSystems returns the number of loaded coding systems.
func (r *Registry) CountCodeSystems() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.codeSystems)
}

// CountValueSets returns the number of loaded ValueSets.
func (r *Registry) CountValueSets() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.valueSets)
}

// LoadR4ValueSet stores vs for later use with DefinitionFromCompose.
func (r *Registry) LoadR4ValueSet(vs *r4.ValueSet) error {
	if vs == nil || vs.Url == nil {
		return fmt.Errorf("valueset is nil or has no URL")
	}
	r.mu.Lock()
	r.valueSets[stripVersionFromURL(*vs.Url)] = vs
	r.mu.Unlock()
	return nil
}

// LoadR4CodeSystem converts cs and registers it under its URL.
//
// Parent links come from concept nesting and from the "subsumedBy" and
// "parent" properties. When the CodeSystem has exactly one top-level concept
// that concept is the root; otherwise the URL itself acts as a synthetic root.
func (r *Registry) LoadR4CodeSystem(cs *r4.CodeSystem) (*CodingSystem, error) {
	if cs == nil || cs.Url == nil {
		return nil, fmt.Errorf("%w: codesystem is nil or has no URL", ErrInvalidCodeSystem)
	}
	url := stripVersionFromURL(*cs.Url)

	c := &conceptCollector{
		display: make(map[string]string),
		filter:  r.filter,
	}
	if err := c.collect(cs.Concept, ""); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidCodeSystem, url, err)
	}

	var edges []service.Edge
	for _, e := range c.edges {
		// Edges to concepts dropped by the filter, or never declared, go too.
		if _, ok := c.display[e.Parent]; !ok {
			continue
		}
		if _, ok := c.display[e.Child]; !ok {
			continue
		}
		edges = append(edges, e)
	}

	root := url
	if tops := topLevel(c.display, edges); len(tops) == 1 {
		root = tops[0]
	}

	coding, err := NewCodingSystem(url, root, c.display, edges)
	if err != nil {
		return nil, err
	}
	r.Register(coding)
	return coding, nil
}

func topLevel(display map[string]string, edges []service.Edge) []string {
	hasParent := make(map[string]bool, len(edges))
	for _, e := range edges {
		hasParent[e.Child] = true
	}
	var out []string
	for code := range display {
		if !hasParent[code] {
			out = append(out, code)
		}
	}
	sort.Strings(out)
	return out
}

// conceptCollector flattens a nested concept list into displays and edges.
type conceptCollector struct {
	display map[string]string
	edges   []service.Edge
	filter  *fhirpath.Expression
}

func (c *conceptCollector) collect(concepts []r4.CodeSystemConcept, parent string) error {
	for i := range concepts {
		concept := &concepts[i]
		if concept.Code == nil {
			continue
		}
		code := *concept.Code

		keep, err := c.keep(concept)
		if err != nil {
			return fmt.Errorf("concept %s: %w", code, err)
		}
		if keep {
			display := ""
			if concept.Display != nil {
				display = *concept.Display
			}
			c.display[code] = display
		}

		if parent != "" {
			c.edges = append(c.edges, service.Edge{Parent: parent, Child: code})
		}
		for _, prop := range concept.Property {
			if prop.Code == nil || prop.ValueCode == nil {
				continue
			}
			if *prop.Code == "subsumedBy" || *prop.Code == "parent" {
				c.edges = append(c.edges, service.Edge{Parent: *prop.ValueCode, Child: code})
			}
		}

		// Recurse into nested concepts (structural hierarchy)
		if len(concept.Concept) > 0 {
			if err := c.collect(concept.Concept, code); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *conceptCollector) keep(concept *r4.CodeSystemConcept) (bool, error) {
	if c.filter == nil {
		return true, nil
	}
	data, err := json.Marshal(concept)
	if err != nil {
		return false, err
	}
	result, err := c.filter.Evaluate(data)
	if err != nil {
		return false, fmt.Errorf("evaluate concept filter: %w", err)
	}
	if result.Empty() {
		return true, nil
	}
	b, err := result.ToBoolean()
	if err != nil {
		// Non-boolean results count as truthy.
		return true, nil
	}
	return b, nil
}

// stripVersionFromURL removes the version suffix from a canonical URL.
// FHIR uses the format "url|version" (e.g., "http://snomed.info/sct|20240101")
func stripVersionFromURL(url string) string {
	if idx := strings.LastIndex(url, "|"); idx != -1 {
		return url[:idx]
	}
	return url
}

// Verify interface compliance
var _ service.CodingSystemRegistry = (*Registry)(nil)
