package taxonomy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Valid(t *testing.T) {
	tx := Default()
	require.NoError(t, tx.Validate())
	assert.Equal(t, Version, tx.Version)
	assert.Equal(t, []string{"individual", "organization", "market", "strategy"}, tx.SectionKeys())
	assert.Equal(t, 36, tx.FieldCount())
}

func TestDefault_OrderFollowsDeclaration(t *testing.T) {
	tx := Default()
	for i, s := range tx.Sections {
		assert.Equal(t, i, s.Order, s.Key)
		for j, ss := range s.Subsections {
			assert.Equal(t, j, ss.Order, ss.Key)
			for k, f := range ss.Fields {
				assert.Equal(t, k, f.Order, f.Key)
			}
		}
	}
}

func TestLookups(t *testing.T) {
	tx := Default()

	f, ok := tx.Field("organization", "fundamentals", "team_size")
	require.True(t, ok)
	assert.Equal(t, "Team Size", f.Name)

	_, ok = tx.Field("organization", "fundamentals", "nope")
	assert.False(t, ok)
	_, ok = tx.Subsection("nope", "fundamentals")
	assert.False(t, ok)

	assert.Contains(t, tx.FieldKeys("organization", "fundamentals"), "stage")
	assert.Nil(t, tx.FieldKeys("organization", "missing"))
	assert.Equal(t, []string{"landscape", "positioning"}, tx.SubsectionKeys("market"))
}

func TestScoped(t *testing.T) {
	tx := Default()

	all, err := tx.Scoped("", "")
	require.NoError(t, err)
	assert.Same(t, tx, all)

	sec, err := tx.Scoped("market", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"market"}, sec.SectionKeys())
	assert.Len(t, sec.Sections[0].Subsections, 2)

	sub, err := tx.Scoped("market", "positioning")
	require.NoError(t, err)
	assert.Equal(t, []string{"positioning"}, sub.SubsectionKeys("market"))

	// the shared taxonomy is untouched
	assert.Len(t, tx.SubsectionKeys("market"), 2)

	_, err = tx.Scoped("", "positioning")
	assert.True(t, errors.Is(err, ErrInvalid))
	_, err = tx.Scoped("weather", "")
	assert.True(t, errors.Is(err, ErrInvalid))
	_, err = tx.Scoped("market", "fundamentals")
	assert.True(t, errors.Is(err, ErrInvalid))
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name string
		tx   *Taxonomy
	}{
		{"missing version", build("", nil)},
		{"duplicate section", build("v", []Section{
			{Key: "a", Subsections: []Subsection{{Key: "s", Fields: []Field{{Key: "f"}}}}},
			{Key: "a", Subsections: []Subsection{{Key: "s", Fields: []Field{{Key: "f"}}}}},
		})},
		{"duplicate field", build("v", []Section{
			{Key: "a", Subsections: []Subsection{{Key: "s", Fields: []Field{{Key: "f"}, {Key: "f"}}}}},
		})},
		{"bad key", build("v", []Section{
			{Key: "Has-Caps", Subsections: []Subsection{{Key: "s", Fields: []Field{{Key: "f"}}}}},
		})},
		{"empty subsection", build("v", []Section{
			{Key: "a", Subsections: []Subsection{{Key: "s"}}},
		})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.tx.Validate(), ErrInvalid)
		})
	}
}

func TestValidate_SameKeyInDifferentParents(t *testing.T) {
	tx := build("v", []Section{
		{Key: "a", Subsections: []Subsection{{Key: "notes", Fields: []Field{{Key: "summary"}}}}},
		{Key: "b", Subsections: []Subsection{{Key: "notes", Fields: []Field{{Key: "summary"}}}}},
	})
	assert.NoError(t, tx.Validate())
}
