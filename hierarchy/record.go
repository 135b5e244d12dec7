package hierarchy

import (
	"fmt"
)

// CacheRecord is the flat, map-of-lists form of a Hierarchy used by external
// stores. Lists are sorted so that equal hierarchies produce equal records.
type CacheRecord struct {
	Root             string              `json:"root" yaml:"root"`
	Nodes            []string            `json:"nodes" yaml:"nodes"`
	ParentMap        map[string][]string `json:"parentMap" yaml:"parentMap"`
	ChildMap         map[string][]string `json:"childMap" yaml:"childMap"`
	DescendantsCache map[string][]string `json:"descendantsCache" yaml:"descendantsCache"`
	AncestorsCache   map[string][]string `json:"ancestorsCache" yaml:"ancestorsCache"`
}

// ToCacheRecord externalizes the hierarchy, including whatever closures have
// been memoized so far.
func (h *Hierarchy) ToCacheRecord() *CacheRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return &CacheRecord{
		Root:             h.root,
		Nodes:            h.nodes.Sorted(),
		ParentMap:        flatten(h.parents),
		ChildMap:         flatten(h.children),
		DescendantsCache: flatten(h.descendantsCache),
		AncestorsCache:   flatten(h.ancestorsCache),
	}
}

func flatten(m map[string]CodeSet) map[string][]string {
	out := make(map[string][]string, len(m))
	for k, v := range m {
		out[k] = v.Sorted()
	}
	return out
}

// FromCacheRecord rebuilds a Hierarchy from a record produced by
// ToCacheRecord. Missing maps and null lists are treated as empty.
func FromCacheRecord(record *CacheRecord) (*Hierarchy, error) {
	if record == nil {
		return nil, fmt.Errorf("%w: nil record", ErrMalformedRecord)
	}
	if record.Root == "" {
		return nil, fmt.Errorf("%w: missing root", ErrMalformedRecord)
	}

	nodes := NewCodeSet(record.Nodes...)
	if len(nodes) != len(record.Nodes) {
		return nil, fmt.Errorf("%w: duplicate nodes", ErrMalformedRecord)
	}
	if !nodes.Has(record.Root) {
		return nil, fmt.Errorf("%w: root %q is not a node", ErrMalformedRecord, record.Root)
	}

	parents, parentEdges, err := expand("parentMap", record.ParentMap, nodes)
	if err != nil {
		return nil, err
	}
	children, childEdges, err := expand("childMap", record.ChildMap, nodes)
	if err != nil {
		return nil, err
	}
	if parentEdges != childEdges {
		return nil, fmt.Errorf("%w: parentMap holds %d edges, childMap holds %d",
			ErrMalformedRecord, parentEdges, childEdges)
	}
	// With equal edge counts, every parent edge appearing in childMap makes
	// the two maps inverses of each other.
	for _, child := range sortedKeys(parents) {
		for _, parent := range parents[child].Sorted() {
			if !children[parent].Has(child) {
				return nil, fmt.Errorf("%w: parentMap[%q] holds %q but childMap[%q] does not hold %q",
					ErrMalformedRecord, child, parent, parent, child)
			}
		}
	}
	descendants, _, err := expand("descendantsCache", record.DescendantsCache, nodes)
	if err != nil {
		return nil, err
	}
	ancestors, _, err := expand("ancestorsCache", record.AncestorsCache, nodes)
	if err != nil {
		return nil, err
	}

	return &Hierarchy{
		root:             record.Root,
		nodes:            nodes,
		parents:          parents,
		children:         children,
		descendantsCache: descendants,
		ancestorsCache:   ancestors,
	}, nil
}

func sortedKeys(m map[string]CodeSet) []string {
	keys := make(CodeSet, len(m))
	for k := range m {
		keys.Add(k)
	}
	return keys.Sorted()
}

func expand(field string, m map[string][]string, nodes CodeSet) (map[string]CodeSet, int, error) {
	out := make(map[string]CodeSet, len(m))
	total := 0
	for k, values := range m {
		if !nodes.Has(k) {
			return nil, 0, fmt.Errorf("%w: %s key %q is not a node", ErrMalformedRecord, field, k)
		}
		s := make(CodeSet, len(values))
		for _, v := range values {
			if !nodes.Has(v) {
				return nil, 0, fmt.Errorf("%w: %s[%q] holds unknown node %q", ErrMalformedRecord, field, k, v)
			}
			s.Add(v)
		}
		out[k] = s
		total += len(s)
	}
	return out, total, nil
}
