package species

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubAssistant(response string, err error) *Assistant {
	return &Assistant{
		model: "stub",
		generate: func(context.Context, string) (string, error) {
			return response, err
		},
	}
}

func TestExtractPaperInfo(t *testing.T) {
	a := stubAssistant(`{
		"figure_caption": "Plate 3",
		"diatom_species_array": [
			{"species_index": 65, "species_name": "Diploneis bombus",
			 "formatted_species_name": "Diploneis_bombus", "genus": "Diploneis"}
		]
	}`, nil)

	info, err := a.ExtractPaperInfo(context.Background(), "paper text")
	require.NoError(t, err)
	assert.Equal(t, "Plate 3", info.FigureCaption)
	require.Len(t, info.DiatomSpeciesArray, 1)
	assert.Equal(t, 65, info.DiatomSpeciesArray[0].SpeciesIndex)
}

func TestGenerateJSONStripsCodeFence(t *testing.T) {
	a := stubAssistant("```json\n{\"figure_caption\": \"Plate 1\"}\n```", nil)
	info, err := a.ExtractPaperInfo(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, "Plate 1", info.FigureCaption)
}

func TestGenerateJSONInvalidResponse(t *testing.T) {
	a := stubAssistant("sorry, I cannot help with that", nil)
	_, err := a.ExtractPaperInfo(context.Background(), "text")
	assert.Error(t, err)
}

func TestExtractCitationFallsBack(t *testing.T) {
	a := stubAssistant("not json", nil)
	citation := a.ExtractCitation(context.Background(), "first pages")
	assert.Equal(t, DefaultCitation(), citation)

	// An empty but valid object also falls back.
	a = stubAssistant("{}", nil)
	citation = a.ExtractCitation(context.Background(), "first pages")
	assert.Equal(t, DefaultCitation(), citation)

	a = stubAssistant(`{"title": "Some Atlas", "formatted_citation": "Some Atlas, 2020"}`, nil)
	citation = a.ExtractCitation(context.Background(), "first pages")
	assert.Equal(t, "Some Atlas", citation.Title)
}

func TestFindMissingSpeciesFiltersKnown(t *testing.T) {
	a := stubAssistant(`{
		"species_data": [
			{"label": ["14 Lyrella_spectabilis"], "index": 14, "species": "Lyrella_spectabilis"},
			{"label": ["15 Navicula_hennedyi"], "index": 15, "species": "Navicula_hennedyi"},
			{"label": ["16 Nameless"], "index": 16, "species": ""}
		],
		"labels_retrieved": ["14 Lyrella_spectabilis", "15 Navicula_hennedyi"],
		"message": "found species"
	}`, nil)

	result, err := a.FindMissingSpecies(context.Background(), "text",
		[]string{"15 Navicula_hennedyi"})
	require.NoError(t, err)

	// The known species and the unnamed entry are dropped.
	require.Len(t, result.SpeciesData, 1)
	assert.Equal(t, "Lyrella_spectabilis", result.SpeciesData[0].Species)
	assert.Equal(t, "found species", result.Message)
}

func TestBuildDetections(t *testing.T) {
	info := &PaperInfo{
		DiatomSpeciesArray: []SpeciesInfo{
			{SpeciesIndex: 65, FormattedSpeciesName: "Diploneis_bombus"},
			{SpeciesIndex: 66}, // no formatted name, skipped
		},
	}

	detections := BuildDetections(info)
	require.Len(t, detections, 1)
	assert.Equal(t, []string{"65 Diploneis_bombus"}, detections[0].Label)
	assert.Equal(t, 65, detections[0].Index)
	assert.Equal(t, "Diploneis_bombus", detections[0].Species)
	assert.Empty(t, detections[0].BBox)
}

func TestBuildDiatomsData(t *testing.T) {
	info := &PaperInfo{
		DiatomSpeciesArray: []SpeciesInfo{
			{SpeciesIndex: 1, FormattedSpeciesName: "Amphora_obtusa"},
		},
	}

	record := BuildDiatomsData(info, []string{"https://example.org/p1.jpeg", "https://example.org/p2.jpeg"})
	assert.Equal(t, "https://example.org/p1.jpeg", record.ImageURL)
	require.Len(t, record.Info, 1)

	record = BuildDiatomsData(info, nil)
	assert.Empty(t, record.ImageURL)
}

func TestLabelSpecies(t *testing.T) {
	assert.Equal(t, "Lyrella_spectabilis", labelSpecies("14 Lyrella_spectabilis"))
	assert.Equal(t, "bare", labelSpecies("bare"))
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence(`{"a":1}`))
}

func TestDefaultCitationIsComplete(t *testing.T) {
	c := DefaultCitation()
	assert.Len(t, c.Authors, 4)
	assert.Equal(t, "2012", c.Year)
	assert.NotEmpty(t, c.FormattedCitation)
}
