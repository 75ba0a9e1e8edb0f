// prompts.go: the prompt templates sent to the generative model. The
// wording is part of the pipeline contract: downstream parsing expects the
// exact JSON schemas described here.
package species

import (
	"encoding/json"
	"fmt"
)

// citationPrompt asks for bibliographic details of a paper.
const citationPrompt = `Please analyze the provided paper information to extract citation details.
Return the data in the following JSON structure, maintaining strict adherence to the schema:

{
    "authors": ["List of authors in citation format"],
    "year": "Publication year as string",
    "title": "Full title of the work",
    "type": "article/report/book/chapter",
    "journal_name": "Full journal name",
    "journal_volume": "Volume number as string",
    "journal_issue": "Issue number as string",
    "journal_pages": "Page range or total pages as string",
    "org_name": "Publishing institution/organization",
    "org_report_number": "Report ID/number",
    "digital_doi": "Digital Object Identifier if available",
    "digital_url": "Direct URL to publication",
    "formatted_citation": "Complete formatted citation string"
}

Important instructions:
1. Extract all information exactly as presented in the source text
2. Use proper citation formatting for author names (Last, First M.)
3. Leave empty strings for missing information rather than omitting fields
4. Ensure all JSON fields are properly quoted and formatted
5. Verify URLs are complete and valid
6. Follow standard citation formatting guidelines

Parse the provided information and return only the JSON object without any additional text or explanation.`

// paperInfoPrompt asks for every diatom species mentioned in a paper.
const paperInfoPrompt = `Please analyze the provided text in detail and extract ALL information about marine diatoms.
Pay special attention to extracting every single diatom species mentioned.
Return the data in the following JSON structure, maintaining strict adherence to the schema:

{
    "figure_caption": "Plate 3: Marine Diatoms from the Azores",
    "source_material_location": "South East coast of Faial, Caldeira Inferno",
    "source_material_coordinates": "38° 31' N; 28° 38' W",
    "source_material_description": "An open crater of a small volcano, shallow and sandy. Gathered from Pinna (molluscs) and stones.",
    "source_material_date_collected": "June 1st, 1981",
    "source_material_received_from": "Hans van den Heuvel, Leiden",
    "source_material_date_received": "March 17th, 1988",
    "source_material_note": "Material also deposited in Rijksherbarium Leiden, the Netherlands. Aliquot sample and slide also in collection Sterrenburg, Nr. 249.",
    "paper_image_urls": ["Array of image URLs from the paper"],
    "diatom_species_array": [
        {
            "species_index": 65,
            "species_name": "Diploneis bombus",
            "species_authors": ["Cleve-Euler", "Backman"],
            "species_year": 1922,
            "species_references": [
                {
                    "author": "Hendey",
                    "year": 1964,
                    "figure": "pl. 32, fig. 2"
                }
            ],
            "formatted_species_name": "Diploneis_bombus",
            "genus": "Diploneis",
            "species_magnification": "1000",
            "species_scale_bar_microns": "30",
            "species_note": ""
        }
    ]
}

CRITICAL INSTRUCTIONS:
1. Extract EVERY SINGLE diatom species mentioned in the text
2. Do not skip any species even if they seem similar or repeated
3. Include all species details including indices, names, authors, and references
4. Maintain proper formatting for scientific names
5. Process the entire text thoroughly to find all species mentions
6. Generate formatted_species_name by replacing spaces with underscores
7. Leave empty strings for missing information rather than omitting fields
8. Parse numbers as integers where appropriate (species_index, year, etc.)
9. Look for species information in figures, plates, descriptions, and footnotes

Review the text multiple times to ensure no species are missed. Parse the provided text and return only the JSON object without any additional text or explanation.`

// missingSpeciesPrompt builds the prompt that asks which species in the
// paper text are absent from the current labels.
func missingSpeciesPrompt(pdfText string, labels []string) (string, error) {
	labelsJSON, err := json.Marshal(labels)
	if err != nil {
		return "", err
	}
	prompt := fmt.Sprintf(`You are a JSON API that can only respond with valid JSON. Never include explanations or text outside the JSON structure.

TASK:
Analyze the provided PDF text content and identify species that are NOT in the current labels list.

CURRENT LABELS:
%s

REQUIRED RESPONSE FORMAT:
Return ONLY a JSON object with this exact structure - no other text or explanation:
{
    "species_data": [
        {
            "label": ["<index> <formatted_species_name> eg 10 eg Lyrella_spectabilis"],
            "index": <number>,
            "species": "<formatted_species_name> eg Lyrella_spectabili",
            "bbox": "",
            "yolo_bbox": "",
            "segmentation": "",
            "embeddings": "",
            "full_species_info": {
                "species_index": <number>,
                "species_name": "<name> eg Lyrella spectabilis",
                "species_authors": ["<author1>", "<author2>"],
                "species_year": <year>,
                "species_references": [
                    {
                        "author": "<author>",
                        "year": <year>,
                        "figure": "<figure>"
                    }
                ],
                "formatted_species_name": "<name_with_underscores> eg Lyrella_spectabilis",
                "genus": "<genus>",
                "species_magnification": "<magnification> eg 1000",
                "species_scale_bar_microns": "<scale> eg 10",
                "species_note": "<success/failure message>"
            }
        }
    ],
    "labels_retrieved": ["<index> <formatted_species_name>","<index> <formatted_species_name>",...],
    "message": "<success_or_failure_message>"
}

RULES:
1. Return ONLY valid JSON - no markdown, no explanation, no other text
2. Include ONLY species NOT present in current labels
3. Format species names with underscores instead of spaces
4. Include ALL fields in the structure, using empty strings for missing data
5. If no new species found, return empty arrays with appropriate message
6. Species index must match the index in the original text
7. Label format must be exactly: "<index> <formatted_species_name>"

YOUR RESPONSE MUST BE PURE JSON THAT CAN BE PARSED BY A STRICT JSON PARSER`, labelsJSON)

	return pdfText + "\n\n" + prompt, nil
}
