package species

import "github.com/diatomlab/diatom-annotator/internal/model"

// PaperInfo is the structured result of species extraction from a paper's
// text.
type PaperInfo struct {
	FigureCaption               string        `json:"figure_caption"`
	SourceMaterialLocation      string        `json:"source_material_location"`
	SourceMaterialCoordinates   string        `json:"source_material_coordinates"`
	SourceMaterialDescription   string        `json:"source_material_description"`
	SourceMaterialDateCollected string        `json:"source_material_date_collected"`
	SourceMaterialReceivedFrom  string        `json:"source_material_received_from"`
	SourceMaterialDateReceived  string        `json:"source_material_date_received"`
	SourceMaterialNote          string        `json:"source_material_note"`
	PaperImageURLs              []string      `json:"paper_image_urls"`
	DiatomSpeciesArray          []SpeciesInfo `json:"diatom_species_array"`
}

// SpeciesInfo describes one diatom species entry from a paper.
type SpeciesInfo struct {
	SpeciesIndex           int                `json:"species_index"`
	SpeciesName            string             `json:"species_name"`
	SpeciesAuthors         []string           `json:"species_authors"`
	SpeciesYear            int                `json:"species_year"`
	SpeciesReferences      []SpeciesReference `json:"species_references"`
	FormattedSpeciesName   string             `json:"formatted_species_name"`
	Genus                  string             `json:"genus"`
	SpeciesMagnification   string             `json:"species_magnification"`
	SpeciesScaleBarMicrons string             `json:"species_scale_bar_microns"`
	SpeciesNote            string             `json:"species_note"`
}

// SpeciesReference is a literature reference for a species entry.
type SpeciesReference struct {
	Author string `json:"author"`
	Year   int    `json:"year"`
	Figure string `json:"figure"`
}

// MissingSpeciesResult is the assistant's answer to "which species in the
// paper are missing from the current labels".
type MissingSpeciesResult struct {
	SpeciesData     []model.Detection `json:"species_data"`
	LabelsRetrieved []string          `json:"labels_retrieved"`
	Message         string            `json:"message"`
}

// DefaultCitation returns the citation of the Stidolph Diatom Atlas, the
// source material this pipeline was built around. It is the fallback when
// citation extraction is disabled or fails.
func DefaultCitation() *model.Citation {
	return &model.Citation{
		Authors:         []string{"S.R. Stidolph", "F.A.S. Sterrenburg", "K.E.L. Smith", "A. Kraberg"},
		Year:            "2012",
		Title:           "Stuart R. Stidolph Diatom Atlas",
		Type:            "report",
		JournalPages:    "199",
		OrgName:         "U.S. Geological Survey",
		OrgReportNumber: "Open-File Report 2012-1163",
		DigitalURL:      "http://pubs.usgs.gov/of/2012/1163/",
		FormattedCitation: "Stidolph, S.R., Sterrenburg, F.A.S., Smith, K.E.L., Kraberg, A., 2012, " +
			"Stuart R. Stidolph Diatom Atlas: U.S. Geological Survey Open-File Report 2012-1163, " +
			"199 p., available at http://pubs.usgs.gov/of/2012/1163/",
	}
}
