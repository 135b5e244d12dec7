package hierarchy

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeStatus_WorkedExample(t *testing.T) {
	h := buildExample()
	included := NewCodeSet("a", "e")
	excluded := NewCodeSet("b", "c")

	want := map[string]Status{
		"a": StatusIncluded,
		"b": StatusExcluded,
		"c": StatusExcluded,
		"d": StatusExcludedByAncestor,
		"e": StatusIncluded,
		"f": StatusExcludedByAncestor,
		"g": StatusExcludedByAncestor,
		"h": StatusIncludedByAncestor,
		"i": StatusIncludedByAncestor,
		"j": StatusExcludedByAncestor,
	}

	got := h.NodeStatuses(NewCodeSet(h.Nodes()...), included, excluded)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("NodeStatuses() mismatch (-want +got):\n%s", diff)
	}
}

func TestNodeStatus(t *testing.T) {
	diamond := New("a", []Edge{
		{Parent: "a", Child: "b"},
		{Parent: "a", Child: "c"},
		{Parent: "b", Child: "d"},
		{Parent: "c", Child: "d"},
	})
	chain := New("a", []Edge{
		{Parent: "a", Child: "b"},
		{Parent: "b", Child: "c"},
	})

	tests := []struct {
		name     string
		h        *Hierarchy
		node     string
		included []string
		excluded []string
		want     Status
	}{
		{"directly included", chain, "b", []string{"b"}, nil, StatusIncluded},
		{"directly excluded", chain, "b", []string{"a"}, []string{"b"}, StatusExcluded},
		{"no marked ancestor", chain, "c", nil, nil, StatusUnresolved},
		{"marked descendant only", chain, "a", []string{"c"}, nil, StatusUnresolved},
		{"included by ancestor", chain, "c", []string{"a"}, nil, StatusIncludedByAncestor},
		{"nearest ancestor overrides", chain, "c", []string{"a"}, []string{"b"}, StatusExcludedByAncestor},
		{"nearest ancestor overrides inclusion", chain, "c", []string{"b"}, []string{"a"}, StatusIncludedByAncestor},
		{"conflict across lineages", diamond, "d", []string{"b"}, []string{"c"}, StatusConflicted},
		{"agreeing lineages", diamond, "d", []string{"b", "c"}, nil, StatusIncludedByAncestor},
		{"one lineage unmarked", diamond, "d", nil, []string{"c"}, StatusExcludedByAncestor},
		{"root plus one lineage", diamond, "d", []string{"a"}, []string{"c"}, StatusExcludedByAncestor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.h.NodeStatus(tt.node, NewCodeSet(tt.included...), NewCodeSet(tt.excluded...))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNodeStatus_Idempotent(t *testing.T) {
	h := buildExample()
	included := NewCodeSet("b")
	excluded := NewCodeSet("c")

	for _, n := range h.Nodes() {
		first := h.NodeStatus(n, included, excluded)
		second := h.NodeStatus(n, included, excluded)
		assert.Equal(t, first, second, "node %s", n)
	}
	assert.Equal(t, StatusConflicted, h.NodeStatus("h", included, excluded))
	assert.Equal(t, StatusConflicted, h.NodeStatus("i", included, excluded))
}

func TestParseStatus(t *testing.T) {
	for _, s := range AllStatuses {
		got, err := ParseStatus(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}

	_, err := ParseStatus("*")
	assert.Error(t, err)
}

func TestStatusPredicates(t *testing.T) {
	assert.True(t, StatusIncluded.IsIncluded())
	assert.True(t, StatusIncludedByAncestor.IsIncluded())
	assert.False(t, StatusConflicted.IsIncluded())
	assert.True(t, StatusExcluded.IsDefining())
	assert.False(t, StatusExcludedByAncestor.IsDefining())
}
