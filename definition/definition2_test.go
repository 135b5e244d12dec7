package definition

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensafely-core/opencodelists-sub001/hierarchy"
)

func TestDefinition2FromCodes_WorkedExample(t *testing.T) {
	h := buildExample()
	target := hierarchy.NewCodeSet("a", "e", "h", "i")

	d, err := Definition2FromCodes(target, h)
	require.NoError(t, err)

	assert.Equal(t, hierarchy.NewCodeSet("a", "e"), d.IncludedAncestors())
	assert.Equal(t, hierarchy.NewCodeSet("b", "c"), d.ExcludedAncestors())
	assert.Equal(t, target, d.Codes(h))

	want := map[string]hierarchy.Status{
		"a": hierarchy.StatusIncluded,
		"b": hierarchy.StatusExcluded,
		"c": hierarchy.StatusExcluded,
		"d": hierarchy.StatusExcludedByAncestor,
		"e": hierarchy.StatusIncluded,
		"f": hierarchy.StatusExcludedByAncestor,
		"g": hierarchy.StatusExcludedByAncestor,
		"h": hierarchy.StatusIncludedByAncestor,
		"i": hierarchy.StatusIncludedByAncestor,
		"j": hierarchy.StatusExcludedByAncestor,
	}
	if diff := cmp.Diff(want, d.CodeToStatus(h)); diff != "" {
		t.Errorf("CodeToStatus() mismatch (-want +got):\n%s", diff)
	}
}

func TestDefinition2FromCodes_LineagesResolvedSeparately(t *testing.T) {
	// z sits below both excluded lineages; only one of them has an included
	// code (w) above z, so z itself must be marked to win over v1.
	h := hierarchy.New("a", edges(
		"a", "v1", "a", "v2",
		"v2", "w", "w", "z",
		"v1", "z",
	))
	target := hierarchy.NewCodeSet("a", "w", "z")

	d, err := Definition2FromCodes(target, h)
	require.NoError(t, err)

	assert.Equal(t, hierarchy.NewCodeSet("a", "w", "z"), d.IncludedAncestors())
	assert.Equal(t, hierarchy.NewCodeSet("v1", "v2"), d.ExcludedAncestors())
	assert.Equal(t, target, d.Codes(h))
	assert.Equal(t, hierarchy.StatusIncluded, h.NodeStatus("z", d.IncludedAncestors(), d.ExcludedAncestors()))
}

func TestDefinition2FromCodes_CodeToStatusScope(t *testing.T) {
	h := buildExample()

	d, err := Definition2FromCodes(hierarchy.NewCodeSet("f", "i", "j"), h)
	require.NoError(t, err)

	assert.Equal(t, hierarchy.NewCodeSet("f"), d.IncludedAncestors())
	assert.Empty(t, d.ExcludedAncestors())
	assert.Equal(t, map[string]hierarchy.Status{
		"f": hierarchy.StatusIncluded,
		"i": hierarchy.StatusIncludedByAncestor,
		"j": hierarchy.StatusIncludedByAncestor,
	}, d.CodeToStatus(h))
}

func TestDefinition2FromCodes_Errors(t *testing.T) {
	_, err := Definition2FromCodes(hierarchy.NewCodeSet("nope"), buildExample())
	assert.ErrorIs(t, err, ErrUnknownCode)
}

func TestNewDefinition2(t *testing.T) {
	h := buildExample()

	d, err := NewDefinition2(hierarchy.NewCodeSet("a", "e"), hierarchy.NewCodeSet("b", "c"))
	require.NoError(t, err)
	assert.Equal(t, hierarchy.NewCodeSet("a", "e", "h", "i"), d.Codes(h))

	_, err = NewDefinition2(hierarchy.NewCodeSet("a", "b"), hierarchy.NewCodeSet("b"))
	assert.ErrorIs(t, err, ErrOverlappingAncestors)
}

func TestDefinition2FromCodes_RoundTripProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 80; i++ {
		h := randomHierarchy(rng, 10+rng.Intn(50))
		target := randomSubset(rng, h, rng.Float64())

		d, err := Definition2FromCodes(target, h)
		require.NoError(t, err)

		got := d.Codes(h)
		require.Truef(t, target.Equal(got),
			"iteration %d: included %v excluded %v resolve to %v; want %v",
			i, d.IncludedAncestors().Sorted(), d.ExcludedAncestors().Sorted(), got.Sorted(), target.Sorted())

		assert.True(t, d.IncludedAncestors().SubsetOf(target))
		assert.False(t, d.ExcludedAncestors().Intersects(target))
	}
}

func TestDeriveAncestors_ResidualShrinks(t *testing.T) {
	rng := rand.New(rand.NewSource(99))

	for i := 0; i < 40; i++ {
		h := randomHierarchy(rng, 30)
		target := randomSubset(rng, h, 0.5)

		d := deriveAncestors(target, h)
		seen := map[polarity]hierarchy.CodeSet{
			polarityIncluded: make(hierarchy.CodeSet),
			polarityExcluded: make(hierarchy.CodeSet),
		}
		for _, step := range d.steps {
			desc := h.Descendants(step.ancestor)
			require.True(t, step.residual.SubsetOf(desc), "residual escapes subtree of %s", step.ancestor)
			require.False(t, step.residual.Has(step.ancestor))
			require.Less(t, len(step.residual), len(desc)+1)

			require.False(t, seen[step.polarity].Has(step.ancestor), "%s expanded twice", step.ancestor)
			seen[step.polarity].Add(step.ancestor)

			if step.polarity == polarityIncluded {
				require.False(t, step.residual.Intersects(target))
			} else {
				require.True(t, step.residual.SubsetOf(target))
			}
		}
		assert.Len(t, d.steps, len(d.included)+len(d.excluded))
	}
}
