// text.go: plain text extraction from PDF bytes.
package pdfops

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// firstPagesForCitation is how many leading pages are kept as the
// citation extraction excerpt. Bibliographic information sits on the
// title page, occasionally spilling onto the second.
const firstPagesForCitation = 2

// ExtractText returns the full plain text of the PDF and the text of its
// first two pages. Pages that fail to decode are skipped.
func ExtractText(data []byte) (fullText, firstPages string, err error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", "", fmt.Errorf("opening pdf: %w", err)
	}

	var full strings.Builder
	var first strings.Builder
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			logger.Debug("skipping undecodable page", "page", pageNum, "error", err)
			continue
		}
		full.WriteString(text)
		full.WriteString("\n")
		if pageNum <= firstPagesForCitation {
			first.WriteString(text)
			first.WriteString("\n")
		}
	}
	return full.String(), first.String(), nil
}
