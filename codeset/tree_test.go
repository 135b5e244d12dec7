package codeset

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensafely-core/opencodelists-sub001/hierarchy"
)

func TestDefiningTree(t *testing.T) {
	h := buildExample()
	cs, err := FromCodes(hierarchy.NewCodeSet("a", "e", "h", "i"), h)
	require.NoError(t, err)

	want := DefiningTree{
		Roots: []string{"a"},
		Children: map[string][]string{
			"a": {"b", "c"},
			"b": {"e"},
			"c": {"e"},
		},
	}
	if diff := cmp.Diff(want, cs.DefiningTree()); diff != "" {
		t.Errorf("DefiningTree() mismatch (-want +got):\n%s", diff)
	}
}

func TestWalkDefiningTree(t *testing.T) {
	h := buildExample()
	cs, err := FromCodes(hierarchy.NewCodeSet("a", "e", "h", "i"), h)
	require.NoError(t, err)

	t.Run("by code", func(t *testing.T) {
		want := []TreeEntry{
			{Code: "a", Status: inc, Depth: 0},
			{Code: "b", Status: exc, Depth: 1},
			{Code: "e", Status: inc, Depth: 2},
			{Code: "c", Status: exc, Depth: 1},
			{Code: "e", Status: inc, Depth: 2},
		}
		if diff := cmp.Diff(want, cs.WalkDefiningTree(nil)); diff != "" {
			t.Errorf("WalkDefiningTree(nil) mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("by term", func(t *testing.T) {
		terms := map[string]string{"b": "zeta", "c": "alpha"}
		got := cs.WalkDefiningTree(func(code string) string { return terms[code] })

		var order []string
		for _, e := range got {
			order = append(order, e.Code)
		}
		assert.Equal(t, []string{"a", "c", "e", "b", "e"}, order)
	})

	t.Run("several roots", func(t *testing.T) {
		cs, err := FromDefinition(hierarchy.NewCodeSet("d", "f"), hierarchy.NewCodeSet("i"), h)
		require.NoError(t, err)

		tree := cs.DefiningTree()
		assert.Equal(t, []string{"d", "f"}, tree.Roots)
		assert.Equal(t, []string{"i"}, tree.Children["f"])
		assert.Equal(t, 0, cs.WalkDefiningTree(nil)[0].Depth)
	})
}
