package definition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRule_Fragment(t *testing.T) {
	tests := []struct {
		rule Rule
		want string
	}{
		{Rule{Code: "128133004"}, "128133004"},
		{Rule{Code: "128133004", IncludesDescendants: true}, "128133004<"},
		{Rule{Code: "35185008", Excluded: true}, "~35185008"},
		{Rule{Code: "35185008", Excluded: true, IncludesDescendants: true}, "~35185008<"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rule.Fragment())
			assert.Equal(t, tt.want, tt.rule.String())

			parsed, err := ParseFragment(tt.want)
			require.NoError(t, err)
			assert.Equal(t, tt.rule, parsed)
		})
	}
}

func TestParseFragment_Invalid(t *testing.T) {
	for _, fragment := range []string{"", "~", "<", "~<", "~~a", "a<<", "a~b", " a", "a "} {
		t.Run(fragment, func(t *testing.T) {
			_, err := ParseFragment(fragment)
			assert.ErrorIs(t, err, ErrInvalidFragment)
		})
	}
}

func TestFromQuery(t *testing.T) {
	d, err := FromQuery([]string{"a<", "~b<", "e"})
	require.NoError(t, err)

	assert.Equal(t, []Rule{
		{Code: "a", IncludesDescendants: true},
		{Code: "b", Excluded: true, IncludesDescendants: true},
		{Code: "e"},
	}, d.Rules())
	assert.Equal(t, []string{"a<", "~b<", "e"}, d.Query())
	assert.Len(t, d.IncludedRules(), 2)
	assert.Len(t, d.ExcludedRules(), 1)

	_, err = FromQuery([]string{"a", "~"})
	assert.ErrorIs(t, err, ErrInvalidFragment)
}
