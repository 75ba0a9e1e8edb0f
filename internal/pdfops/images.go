// images.go: page image extraction and upload. The images are written to
// a scratch directory by pdfcpu, renamed to hash-derived object names, and
// uploaded to the extracted images bucket.
package pdfops

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"golang.org/x/sync/errgroup"

	"github.com/diatomlab/diatom-annotator/internal/errors"
	"github.com/diatomlab/diatom-annotator/internal/model"
	"github.com/diatomlab/diatom-annotator/internal/objectstore"
)

const uploadConcurrency = 4

type extractedImage struct {
	localPath string
	page      int
	object    string
	publicURL string
}

func (p *Processor) extractAndUploadImages(ctx context.Context, data []byte, hash string) (*model.ExtractedPDF, error) {
	tmpDir, err := os.MkdirTemp("", "pdfops-")
	if err != nil {
		return nil, wrapExtractErr(err, hash, "scratch_dir")
	}
	defer os.RemoveAll(tmpDir)

	inFile := filepath.Join(tmpDir, hash+".pdf")
	if err := os.WriteFile(inFile, data, 0o600); err != nil {
		return nil, wrapExtractErr(err, hash, "write_pdf")
	}
	outDir := filepath.Join(tmpDir, "images")
	if err := os.Mkdir(outDir, 0o700); err != nil {
		return nil, wrapExtractErr(err, hash, "scratch_dir")
	}

	totalPages, err := api.PageCountFile(inFile)
	if err != nil {
		return nil, wrapExtractErr(err, hash, "page_count")
	}
	if err := api.ExtractImagesFile(inFile, outDir, nil, nil); err != nil {
		return nil, wrapExtractErr(err, hash, "extract_images")
	}

	images, err := collectImages(outDir, hash)
	if err != nil {
		return nil, wrapExtractErr(err, hash, "collect_images")
	}

	bucket := p.settings.Storage.Buckets.ExtractedImages
	for i := range images {
		images[i].object = ImageObjectName(hash, i+1)
		images[i].publicURL = objectstore.PublicURL(bucket, images[i].object)
	}

	if err := p.uploadImages(ctx, bucket, images); err != nil {
		return nil, err
	}

	extracted := buildMetadata(hash, totalPages, images)
	logger.Info("extracted pdf images",
		"hash", hash, "pages", totalPages, "images", len(images))
	return extracted, nil
}

func (p *Processor) uploadImages(ctx context.Context, bucket string, images []extractedImage) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uploadConcurrency)
	for i := range images {
		img := images[i]
		g.Go(func() error {
			data, err := os.ReadFile(img.localPath)
			if err != nil {
				logger.Warn("skipping unreadable extracted image",
					"path", img.localPath, "error", err)
				return nil
			}
			return p.store.Upload(gctx, bucket, img.object, data, "image/jpeg")
		})
	}
	if err := g.Wait(); err != nil {
		return errors.New(err).
			Component("pdfops").
			Category(errors.CategoryImageUpload).
			Context("bucket", bucket).
			Build()
	}
	return nil
}

// collectImages gathers the files pdfcpu wrote to outDir, ordered by page
// and then by name so extraction numbering is stable across runs.
func collectImages(outDir, hash string) ([]extractedImage, error) {
	entries, err := os.ReadDir(outDir)
	if err != nil {
		return nil, err
	}
	var images []extractedImage
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		page, ok := pageNumberFromName(entry.Name(), hash)
		if !ok {
			logger.Warn("skipping unrecognized extracted file", "name", entry.Name())
			continue
		}
		images = append(images, extractedImage{
			localPath: filepath.Join(outDir, entry.Name()),
			page:      page,
		})
	}
	sort.Slice(images, func(i, j int) bool {
		if images[i].page != images[j].page {
			return images[i].page < images[j].page
		}
		return images[i].localPath < images[j].localPath
	})
	return images, nil
}

// pageNumberFromName parses the page number out of a pdfcpu output name,
// which has the form "<input base>_<page>_<object id>.<ext>".
func pageNumberFromName(name, hash string) (int, bool) {
	rest, found := strings.CutPrefix(name, hash+"_")
	if !found {
		return 0, false
	}
	digits, _, found := strings.Cut(rest, "_")
	if !found {
		return 0, false
	}
	page, err := strconv.Atoi(digits)
	if err != nil || page < 1 {
		return 0, false
	}
	return page, true
}

func buildMetadata(hash string, totalPages int, images []extractedImage) *model.ExtractedPDF {
	urlsByPage := make(map[int][]string)
	allURLs := make([]string, 0, len(images))
	for i := range images {
		urlsByPage[images[i].page] = append(urlsByPage[images[i].page], images[i].publicURL)
		allURLs = append(allURLs, images[i].publicURL)
	}

	extracted := &model.ExtractedPDF{
		FileHash:       hash,
		PaperImageURLs: allURLs,
		TotalImages:    len(images),
	}
	for page := 1; page <= totalPages; page++ {
		urls := urlsByPage[page]
		extracted.ImagesInDoc = append(extracted.ImagesInDoc, model.PageInfo{
			PageIndex:  page,
			TotalPages: totalPages,
			HasImages:  len(urls) > 0,
			NumImages:  len(urls),
			ImageURLs:  urls,
		})
		if len(urls) > 0 {
			extracted.PageDetails = append(extracted.PageDetails, model.PageImages{
				PageIndex: page,
				NumImages: len(urls),
				ImageURLs: urls,
			})
		}
	}
	return extracted
}

func wrapExtractErr(err error, hash, operation string) error {
	return errors.New(fmt.Errorf("%s: %w", operation, err)).
		Component("pdfops").
		Category(errors.CategoryPDFExtraction).
		Context("hash", hash).
		Context("operation", operation).
		Build()
}
