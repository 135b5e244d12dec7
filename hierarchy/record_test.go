package hierarchy

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func assertSameHierarchy(t *testing.T, want, got *Hierarchy) {
	t.Helper()
	assert.Equal(t, want.root, got.root)
	assert.Equal(t, want.nodes, got.nodes)
	assert.Equal(t, want.parents, got.parents)
	assert.Equal(t, want.children, got.children)
	assert.Equal(t, want.descendantsCache, got.descendantsCache)
	assert.Equal(t, want.ancestorsCache, got.ancestorsCache)
}

func TestCacheRecord_RoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(h *Hierarchy)
	}{
		{"empty memo tables", func(*Hierarchy) {}},
		{"partially populated", func(h *Hierarchy) {
			h.Descendants("b")
			h.Ancestors("i")
		}},
		{"leaf closures are empty", func(h *Hierarchy) {
			h.Descendants("g")
			h.Ancestors("a")
		}},
		{"fully populated", func(h *Hierarchy) {
			for _, n := range h.Nodes() {
				h.Descendants(n)
				h.Ancestors(n)
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := buildExample()
			tt.prepare(h)

			restored, err := FromCacheRecord(h.ToCacheRecord())
			require.NoError(t, err)
			assertSameHierarchy(t, h, restored)

			if diff := cmp.Diff(h.ToCacheRecord(), restored.ToCacheRecord()); diff != "" {
				t.Errorf("record mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCacheRecord_JSON(t *testing.T) {
	h := buildExample()
	h.Descendants("c")
	h.Ancestors("j")
	h.Descendants("j")

	data, err := json.Marshal(h.ToCacheRecord())
	require.NoError(t, err)

	var record CacheRecord
	require.NoError(t, json.Unmarshal(data, &record))

	restored, err := FromCacheRecord(&record)
	require.NoError(t, err)
	assertSameHierarchy(t, h, restored)
	assert.Empty(t, restored.Descendants("j"))
}

func TestCacheRecord_YAML(t *testing.T) {
	h := buildExample()
	h.Ancestors("h")

	data, err := yaml.Marshal(h.ToCacheRecord())
	require.NoError(t, err)

	var record CacheRecord
	require.NoError(t, yaml.Unmarshal(data, &record))

	restored, err := FromCacheRecord(&record)
	require.NoError(t, err)
	assertSameHierarchy(t, h, restored)
}

func TestCacheRecord_NullLists(t *testing.T) {
	record := &CacheRecord{
		Root:             "a",
		Nodes:            []string{"a", "b"},
		ParentMap:        map[string][]string{"b": {"a"}},
		ChildMap:         map[string][]string{"a": {"b"}},
		DescendantsCache: map[string][]string{"b": nil},
	}

	h, err := FromCacheRecord(record)
	require.NoError(t, err)
	assert.Empty(t, h.Descendants("b"))
	assert.Equal(t, MemoStats{Nodes: 2, Descendants: 1}, h.MemoStats())
}

func TestCacheRecord_RoundTripAfterUnknownLookups(t *testing.T) {
	h := buildExample()

	assert.Empty(t, h.Descendants("zz"))
	assert.Empty(t, h.Ancestors("qq"))
	assert.Equal(t, []string{"a", "qq"}, h.FilterToUltimateAncestors(NewCodeSet("a", "qq")).Sorted())
	assert.Equal(t, []string{"d", "e", "g", "h", "i"}, h.Descendants("b").Sorted())

	stats := h.MemoStats()
	assert.Equal(t, 1, stats.Descendants, "only hierarchy nodes are memoized")
	_, ok := h.descendantsCache["zz"]
	assert.False(t, ok)

	restored, err := FromCacheRecord(h.ToCacheRecord())
	require.NoError(t, err)
	assertSameHierarchy(t, h, restored)
}

func TestCacheRecord_Malformed(t *testing.T) {
	valid := func() *CacheRecord {
		return &CacheRecord{
			Root:      "a",
			Nodes:     []string{"a", "b"},
			ParentMap: map[string][]string{"b": {"a"}},
			ChildMap:  map[string][]string{"a": {"b"}},
		}
	}

	tests := []struct {
		name   string
		mutate func(r *CacheRecord) *CacheRecord
	}{
		{"nil record", func(*CacheRecord) *CacheRecord { return nil }},
		{"missing root", func(r *CacheRecord) *CacheRecord { r.Root = ""; return r }},
		{"root not a node", func(r *CacheRecord) *CacheRecord { r.Root = "z"; return r }},
		{"duplicate nodes", func(r *CacheRecord) *CacheRecord { r.Nodes = append(r.Nodes, "a"); return r }},
		{"unknown parent key", func(r *CacheRecord) *CacheRecord { r.ParentMap["z"] = []string{"a"}; return r }},
		{"unknown child value", func(r *CacheRecord) *CacheRecord { r.ChildMap["a"] = []string{"b", "z"}; return r }},
		{"mismatched edge counts", func(r *CacheRecord) *CacheRecord { r.ChildMap = nil; return r }},
		{"childMap not the inverse of parentMap", func(r *CacheRecord) *CacheRecord {
			r.Nodes = []string{"a", "b", "c"}
			r.ChildMap = map[string][]string{"a": {"c"}}
			return r
		}},
		{"unknown memo node", func(r *CacheRecord) *CacheRecord {
			r.AncestorsCache = map[string][]string{"b": {"q"}}
			return r
		}},
	}

	_, err := FromCacheRecord(valid())
	require.NoError(t, err)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromCacheRecord(tt.mutate(valid()))
			assert.ErrorIs(t, err, ErrMalformedRecord)
		})
	}
}
