// Package species talks to a generative model to extract species and
// citation information from paper text, and builds the detection entries
// the labeling UI works with.
package species

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/diatomlab/diatom-annotator/internal/conf"
	"github.com/diatomlab/diatom-annotator/internal/errors"
	"github.com/diatomlab/diatom-annotator/internal/logging"
	"github.com/diatomlab/diatom-annotator/internal/model"
)

var logger = logging.ForService("species")

// Assistant wraps the generative model behind typed extraction calls.
type Assistant struct {
	model     string
	maxTokens int32

	// generate is swapped out by tests.
	generate func(ctx context.Context, prompt string) (string, error)
}

// NewAssistant creates an Assistant from settings. The API key is read
// from the configured environment variable.
func NewAssistant(ctx context.Context, settings *conf.Settings) (*Assistant, error) {
	apiKey := settings.SpeciesAPIKey()
	if apiKey == "" {
		return nil, errors.Newf("species assistant requires %s to be set", settings.Species.APIKeyEnv).
			Component("species").
			Category(errors.CategoryConfiguration).
			Build()
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Backend: genai.BackendGeminiAPI,
		APIKey:  apiKey,
	})
	if err != nil {
		return nil, errors.New(err).
			Component("species").
			Category(errors.CategorySpeciesLLM).
			Build()
	}

	a := &Assistant{
		model:     settings.Species.Model,
		maxTokens: int32(settings.Species.MaxTokens),
	}
	a.generate = func(ctx context.Context, prompt string) (string, error) {
		resp, err := client.Models.GenerateContent(ctx, a.model, genai.Text(prompt),
			&genai.GenerateContentConfig{
				MaxOutputTokens:  a.maxTokens,
				ResponseMIMEType: "application/json",
				Temperature:      genai.Ptr[float32](0),
			})
		if err != nil {
			return "", err
		}
		return resp.Text(), nil
	}
	return a, nil
}

// ExtractPaperInfo runs species extraction over the paper's full text.
func (a *Assistant) ExtractPaperInfo(ctx context.Context, pdfText string) (*PaperInfo, error) {
	var info PaperInfo
	if err := a.generateJSON(ctx, pdfText+"\n\n"+paperInfoPrompt, &info); err != nil {
		return nil, err
	}
	if len(info.DiatomSpeciesArray) == 0 {
		logger.Warn("paper info extraction found no species")
	}
	return &info, nil
}

// ExtractCitation extracts bibliographic details from the paper's first
// pages, falling back to the default atlas citation when the model fails.
func (a *Assistant) ExtractCitation(ctx context.Context, firstPagesText string) *model.Citation {
	var citation model.Citation
	if err := a.generateJSON(ctx, firstPagesText+"\n\n"+citationPrompt, &citation); err != nil {
		logger.Warn("citation extraction failed, using default citation", "error", err)
		return DefaultCitation()
	}
	if citation.FormattedCitation == "" && citation.Title == "" {
		return DefaultCitation()
	}
	return &citation
}

// FindMissingSpecies asks which species in the paper text are absent from
// the given labels. Labels go to the model in space-separated form;
// returned species already present in the labels are dropped.
func (a *Assistant) FindMissingSpecies(ctx context.Context, pdfText string, labels []string) (*MissingSpeciesResult, error) {
	prompt, err := missingSpeciesPrompt(pdfText, model.ReformatLabelsToSpaces(labels))
	if err != nil {
		return nil, err
	}

	var result MissingSpeciesResult
	if err := a.generateJSON(ctx, prompt, &result); err != nil {
		return nil, err
	}

	known := make(map[string]bool, len(labels))
	for _, label := range labels {
		known[labelSpecies(label)] = true
	}
	filtered := result.SpeciesData[:0]
	for _, det := range result.SpeciesData {
		if det.Species == "" || known[det.Species] {
			continue
		}
		filtered = append(filtered, det)
	}
	result.SpeciesData = filtered

	logger.Info("missing species lookup finished",
		"known_labels", len(labels), "found", len(result.SpeciesData))
	return &result, nil
}

// labelSpecies returns the species part of an "<index> <species>" label.
func labelSpecies(label string) string {
	if _, species, found := strings.Cut(label, " "); found {
		return species
	}
	return label
}

// generateJSON runs one completion and decodes the response into out.
func (a *Assistant) generateJSON(ctx context.Context, prompt string, out any) error {
	text, err := a.generate(ctx, prompt)
	if err != nil {
		return errors.New(err).
			Component("species").
			Category(errors.CategorySpeciesLLM).
			Build()
	}
	cleaned := stripCodeFence(text)
	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		return errors.New(fmt.Errorf("model returned invalid JSON: %w", err)).
			Component("species").
			Category(errors.CategorySpeciesLLM).
			Context("response_prefix", truncate(cleaned, 120)).
			Build()
	}
	return nil
}

// stripCodeFence removes a surrounding markdown code fence, which models
// emit despite instructions not to.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// BuildDetections turns extracted species into unplaced detection entries,
// one per species, with empty geometry for the annotator to fill in.
func BuildDetections(info *PaperInfo) []model.Detection {
	detections := make([]model.Detection, 0, len(info.DiatomSpeciesArray))
	for _, sp := range info.DiatomSpeciesArray {
		if sp.FormattedSpeciesName == "" {
			logger.Warn("skipping species entry without formatted name", "index", sp.SpeciesIndex)
			continue
		}
		detections = append(detections, model.Detection{
			Label:   []string{fmt.Sprintf("%d %s", sp.SpeciesIndex, sp.FormattedSpeciesName)},
			Index:   sp.SpeciesIndex,
			Species: sp.FormattedSpeciesName,
		})
	}
	return detections
}

// BuildDiatomsData assembles the image record for a paper from its
// extracted species and the first of its image URLs.
func BuildDiatomsData(info *PaperInfo, imageURLs []string) model.DiatomsData {
	imageURL := ""
	if len(imageURLs) > 0 {
		imageURL = imageURLs[0]
	}
	return model.DiatomsData{
		ImageURL: imageURL,
		Info:     BuildDetections(info),
	}
}
