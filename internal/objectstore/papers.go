// papers.go: persistence of the per-session papers document and the
// per-image segmentation text files.
package objectstore

import (
	"context"
	"encoding/json"
	"net/url"
	"path"
	"strings"

	"github.com/diatomlab/diatom-annotator/internal/errors"
	"github.com/diatomlab/diatom-annotator/internal/model"
)

// LoadPapers downloads and decodes the papers document at bucket/object.
// A missing document is not an error and yields an empty list, so a fresh
// session starts without manual bucket setup.
func LoadPapers(ctx context.Context, store Store, bucket, object string) ([]model.Paper, error) {
	data, err := store.Download(ctx, bucket, object)
	if err != nil {
		if errors.Is(err, ErrObjectNotExist) {
			logger.Warn("papers document not found, starting empty",
				"bucket", bucket, "object", object)
			return []model.Paper{}, nil
		}
		return nil, err
	}

	var papers []model.Paper
	if err := json.Unmarshal(data, &papers); err != nil {
		return nil, errors.New(err).
			Component("objectstore").
			Category(errors.CategoryPaperDocument).
			Context("object", object).
			Build()
	}
	logger.Info("loaded papers document", "object", object, "papers", len(papers))
	return papers, nil
}

// SavePapers encodes and uploads the papers document to bucket/object.
func SavePapers(ctx context.Context, store Store, bucket, object string, papers []model.Paper) error {
	data, err := json.MarshalIndent(papers, "", "  ")
	if err != nil {
		return errors.New(err).
			Component("objectstore").
			Category(errors.CategoryPaperDocument).
			Context("object", object).
			Build()
	}
	if err := store.Upload(ctx, bucket, object, data, "application/json"); err != nil {
		return err
	}
	logger.Info("saved papers document", "object", object, "papers", len(papers))
	return nil
}

// MergePapers folds incoming papers into existing ones, replacing entries
// with the same pdf_file_url and appending the rest. Order of surviving
// entries is preserved.
func MergePapers(existing, incoming []model.Paper) []model.Paper {
	merged := make([]model.Paper, len(existing))
	copy(merged, existing)

	byURL := make(map[string]int, len(merged))
	for i := range merged {
		byURL[merged[i].PDFFileURL] = i
	}
	for i := range incoming {
		if pos, ok := byURL[incoming[i].PDFFileURL]; ok {
			merged[pos] = incoming[i]
		} else {
			byURL[incoming[i].PDFFileURL] = len(merged)
			merged = append(merged, incoming[i])
		}
	}
	return merged
}

// SegmentationObject returns the object path of the segmentation text file
// for an image URL: "<session>/<image base name>.txt".
func SegmentationObject(sessionID, imageURL string) string {
	base := imageURL
	if u, err := url.Parse(imageURL); err == nil && u.Path != "" {
		base = u.Path
	}
	base = path.Base(base)
	if ext := path.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	return sessionID + "/" + base + ".txt"
}

// LoadSegmentationText downloads the segmentation file for an image URL.
// A missing file yields an empty string, meaning no polygons uploaded yet.
func LoadSegmentationText(ctx context.Context, store Store, bucket, sessionID, imageURL string) (string, error) {
	data, err := store.Download(ctx, bucket, SegmentationObject(sessionID, imageURL))
	if err != nil {
		if errors.Is(err, ErrObjectNotExist) {
			return "", nil
		}
		return "", err
	}
	return string(data), nil
}

// SaveSegmentationText uploads the segmentation file for an image URL.
func SaveSegmentationText(ctx context.Context, store Store, bucket, sessionID, imageURL, text string) error {
	return store.Upload(ctx, bucket, SegmentationObject(sessionID, imageURL), []byte(text), "text/plain")
}
