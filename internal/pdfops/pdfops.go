// Package pdfops turns a source PDF into a paper entry: it hashes the
// file, extracts its text, pulls out the page images, and uploads them to
// the extracted images bucket under hash-derived names.
package pdfops

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"path"

	"github.com/diatomlab/diatom-annotator/internal/conf"
	"github.com/diatomlab/diatom-annotator/internal/errors"
	"github.com/diatomlab/diatom-annotator/internal/httpclient"
	"github.com/diatomlab/diatom-annotator/internal/logging"
	"github.com/diatomlab/diatom-annotator/internal/model"
	"github.com/diatomlab/diatom-annotator/internal/objectstore"
)

var logger = logging.ForService("pdfops")

// Processor extracts text and images from PDFs and uploads the results.
type Processor struct {
	client   *httpclient.Client
	store    objectstore.Store
	settings *conf.Settings
}

// New creates a Processor.
func New(client *httpclient.Client, store objectstore.Store, settings *conf.Settings) *Processor {
	return &Processor{client: client, store: store, settings: settings}
}

// ProcessURL downloads a PDF from a public URL and processes it.
func (p *Processor) ProcessURL(ctx context.Context, pdfURL string) (*model.Paper, error) {
	data, err := p.client.Get(ctx, pdfURL)
	if err != nil {
		return nil, errors.New(err).
			Component("pdfops").
			Category(errors.CategoryNetwork).
			Context("pdf_url", pdfURL).
			Build()
	}
	return p.Process(ctx, pdfURL, data)
}

// Process extracts text and images from the PDF bytes and returns the
// paper entry. Text extraction failures degrade to an empty text field;
// image extraction failures fail the whole call because the labeling flow
// cannot work without plate images.
func (p *Processor) Process(ctx context.Context, pdfURL string, data []byte) (*model.Paper, error) {
	if len(data) == 0 {
		return nil, errors.Newf("empty PDF payload for %q", pdfURL).
			Component("pdfops").
			Category(errors.CategoryValidation).
			Build()
	}

	hash := FileHash(data)
	logger.Info("processing pdf", "pdf_url", pdfURL, "hash", hash, "bytes", len(data))

	fullText, firstTwoPages, err := ExtractText(data)
	if err != nil {
		logger.Warn("text extraction failed, continuing without text",
			"pdf_url", pdfURL, "error", err)
	}

	extracted, err := p.extractAndUploadImages(ctx, data, hash)
	if err != nil {
		return nil, err
	}

	return &model.Paper{
		PDFFileURL:        pdfURL,
		PDFTextContent:    fullText,
		FirstTwoPagesText: firstTwoPages,
		ExtractedImages:   extracted,
	}, nil
}

// FileHash returns the lowercase hex SHA-256 of the file contents, the
// basis of every derived object name.
func FileHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ImageObjectName returns the bucket object name of the n-th extracted
// image of the file with the given hash. Numbering starts at 1.
func ImageObjectName(hash string, n int) string {
	return fmt.Sprintf("%s_image_%d.jpeg", hash, n)
}

// FilenameFromURL returns the last path element of a PDF URL, or an empty
// string when the URL has no usable path.
func FilenameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" {
		return ""
	}
	return name
}
