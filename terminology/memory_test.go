package terminology

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensafely-core/opencodelists-sub001/hierarchy"
	"github.com/opensafely-core/opencodelists-sub001/service"
)

func TestLoadR4CodeSystem(t *testing.T) {
	t.Run("nesting and properties", func(t *testing.T) {
		_, cs := loadConditions(t)

		if cs.ID() != conditionsURL {
			t.Errorf("ID() = %q; want %q", cs.ID(), conditionsURL)
		}
		// Two top-level concepts, so the URL is the root.
		if cs.Root() != conditionsURL {
			t.Errorf("Root() = %q; want %q", cs.Root(), conditionsURL)
		}
		assert.Equal(t, []string{"diabetes", "pregnancy"}, cs.Parents("gdm"))
		assert.Equal(t, []string{"gdm", "t1dm", "t2dm"}, cs.Children("diabetes"))
		assert.Equal(t, []string{conditionsURL}, cs.Parents("retired"))
		assert.Equal(t, "Type 1 diabetes", cs.Display("t1dm"))
		assert.Equal(t, 8, cs.Len())
	})

	t.Run("concept filter", func(t *testing.T) {
		_, cs := loadConditions(t, WithConceptFilter(activeOnly))

		if cs.Has("retired") {
			t.Error("inactive concept should have been filtered out")
		}
		if cs.Root() != "disorder" {
			t.Errorf("Root() = %q; want %q", cs.Root(), "disorder")
		}
		assert.True(t, cs.Has("gdm"))
	})

	t.Run("invalid filter", func(t *testing.T) {
		_, err := NewRegistry(WithConceptFilter("property.where("))
		if err == nil {
			t.Error("expected error for invalid FHIRPath")
		}
	})

	t.Run("nil CodeSystem", func(t *testing.T) {
		reg, err := NewRegistry()
		require.NoError(t, err)
		_, err = reg.LoadR4CodeSystem(nil)
		if !errors.Is(err, ErrInvalidCodeSystem) {
			t.Errorf("LoadR4CodeSystem(nil) error = %v; want ErrInvalidCodeSystem", err)
		}
	})
}

func TestNewCodingSystem(t *testing.T) {
	tests := []struct {
		name  string
		id    string
		root  string
		edges []service.Edge
	}{
		{name: "missing id", root: "r"},
		{name: "missing root", id: "x"},
		{name: "self edge", id: "x", root: "r", edges: []service.Edge{{Parent: "a", Child: "a"}}},
		{name: "root with parent", id: "x", root: "r", edges: []service.Edge{{Parent: "a", Child: "r"}}},
		{name: "empty code", id: "x", root: "r", edges: []service.Edge{{Parent: "", Child: "a"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCodingSystem(tt.id, tt.root, nil, tt.edges)
			if !errors.Is(err, ErrInvalidCodeSystem) {
				t.Errorf("NewCodingSystem() error = %v; want ErrInvalidCodeSystem", err)
			}
		})
	}

	t.Run("orphans hang below root", func(t *testing.T) {
		cs, err := NewCodingSystem("x", "r", map[string]string{"lonely": "Lonely"},
			[]service.Edge{{Parent: "a", Child: "b"}, {Parent: "a", Child: "b"}})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "lonely"}, cs.Children("r"))
		assert.Equal(t, []string{"b"}, cs.Children("a"))
		assert.Equal(t, []string{"a", "b", "lonely", "r"}, cs.Codes())
	})
}

func TestRelationships(t *testing.T) {
	_, cs := loadConditions(t)
	ctx := context.Background()

	t.Run("ancestors", func(t *testing.T) {
		got, err := cs.AncestorRelationships(ctx, []string{"gdm"})
		require.NoError(t, err)
		assert.ElementsMatch(t, []service.Edge{
			{Parent: "diabetes", Child: "gdm"},
			{Parent: "pregnancy", Child: "gdm"},
			{Parent: "disorder", Child: "diabetes"},
			{Parent: "disorder", Child: "pregnancy"},
			{Parent: conditionsURL, Child: "disorder"},
		}, got)
	})

	t.Run("descendants", func(t *testing.T) {
		got, err := cs.DescendantRelationships(ctx, []string{"diabetes"})
		require.NoError(t, err)
		assert.Equal(t, []service.Edge{
			{Parent: "diabetes", Child: "gdm"},
			{Parent: "diabetes", Child: "t1dm"},
			{Parent: "diabetes", Child: "t2dm"},
		}, got)
	})

	t.Run("unknown codes", func(t *testing.T) {
		got, err := cs.AncestorRelationships(ctx, []string{"nope"})
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("cancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := cs.DescendantRelationships(cctx, []string{"disorder"})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("error = %v; want context.Canceled", err)
		}
	})

	t.Run("builds a hierarchy", func(t *testing.T) {
		h, err := hierarchy.FromCodes(ctx, cs, []string{"diabetes", "retired"})
		require.NoError(t, err)
		assert.Equal(t, []string{"gdm", "t1dm", "t2dm"}, h.Descendants("diabetes").Sorted())
		assert.Equal(t, []string{"diabetes", "disorder", conditionsURL, "pregnancy"}, h.Ancestors("gdm").Sorted())
		assert.Equal(t, []string{conditionsURL}, h.Parents("retired"))
	})
}

func TestRegistry(t *testing.T) {
	reg, cs := loadConditions(t)

	got, err := reg.Lookup(conditionsURL + "|2024-01")
	require.NoError(t, err)
	assert.Same(t, cs, got)

	if _, ok := reg.CodingSystem(conditionsURL); !ok {
		t.Error("CodingSystem() should find the loaded system")
	}
	if _, ok := reg.CodingSystem("http://example.org/other"); ok {
		t.Error("CodingSystem() should not find an unknown system")
	}

	_, err = reg.Lookup("http://example.org/other")
	if !errors.Is(err, ErrCodeSystemNotFound) {
		t.Errorf("Lookup() error = %v; want ErrCodeSystemNotFound", err)
	}

	assert.Equal(t, []string{conditionsURL}, reg.IDs())
	assert.Equal(t, 1, reg.CountCodeSystems())
	assert.Equal(t, 0, reg.CountValueSets())
}
