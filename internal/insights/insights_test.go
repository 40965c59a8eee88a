package insights

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTwoSections(t *testing.T) {
	in := Parse("Population Trend:\n\"Stable\"\n\nMigration Pattern:\n\"None\"")

	assert.Equal(t, map[string]string{
		PopulationTrend:  "Stable",
		MigrationPattern: "None",
	}, in.Map())
	assert.Equal(t, MissingPlaceholder, in.Section(HumanImpactAlert))
	assert.Equal(t, MissingPlaceholder, in.Section(OptimalSpotting))
}

func TestParseVariants(t *testing.T) {
	tests := []struct {
		name    string
		blob    string
		section string
		want    string
	}{
		{"crlf separators", "Human Impact Alert:\r\n\"Poaching\"\r\n\r\nPopulation Trend:\r\nRising", HumanImpactAlert, "Poaching"},
		{"inline content", "Optimal Spotting Times/Locations: Dawn near rivers", OptimalSpotting, "Dawn near rivers"},
		{"markdown label", "**Migration Pattern**:\nSeasonal", MigrationPattern, "Seasonal"},
		{"case insensitive label", "population trend:\nDeclining", PopulationTrend, "Declining"},
		{"multi line content", "Population Trend:\nDeclining\nsince 1990", PopulationTrend, "Declining\nsince 1990"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.blob).Section(tt.section))
		})
	}
}

func TestParseIgnoresUnknownAndEmpty(t *testing.T) {
	in := Parse("Fun Fact:\nFoxes purr\n\nPopulation Trend:\n\"\"\n\nno colon here")

	assert.True(t, in.Empty())
	assert.Equal(t, MissingPlaceholder, in.Section(PopulationTrend))
}

func TestParseHTML(t *testing.T) {
	in := Parse("<p>Population Trend:<br>Declining</p>")

	require.True(t, in.Has(PopulationTrend))
	assert.Contains(t, in.Section(PopulationTrend), "Declining")
	assert.NotContains(t, in.Section(PopulationTrend), "<")
}

func TestSectionsOrderAndPlaceholders(t *testing.T) {
	sections := Parse("Migration Pattern:\nNone").Sections()

	require.Len(t, sections, 4)
	for i, name := range SectionNames {
		assert.Equal(t, name, sections[i].Name)
	}
	assert.False(t, sections[1].Missing)
	assert.True(t, sections[0].Missing)
	assert.Equal(t, MissingPlaceholder, sections[0].Content)
}
