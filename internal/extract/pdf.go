package extract

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/hyperjump/tameru/internal/models"
)

// parsePDF extracts page text and emits one paragraph unit per non-empty
// line run. PDF carries no reliable heading markup, so prose structure is
// left to the chunker's fallback strategy.
func parsePDF(content []byte, opts Options) (*models.StructuredContent, error) {
	asked := false
	r, err := pdf.NewReaderEncrypted(bytes.NewReader(content), int64(len(content)), func() string {
		if asked {
			return ""
		}
		asked = true
		return opts.Password
	})
	if err != nil {
		if errors.Is(err, pdf.ErrInvalidPassword) {
			if opts.Password == "" {
				return nil, fmt.Errorf("%w: PDF is encrypted", models.ErrCredentialsRequired)
			}
			return nil, fmt.Errorf("%w: PDF password rejected", models.ErrInvalidCredentials)
		}
		return nil, fmt.Errorf("%w: open PDF: %v", models.ErrSourceUnreadable, err)
	}

	sc := &models.StructuredContent{Format: "pdf"}
	numPages := r.NumPage()
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("%w: extract page %d: %v", models.ErrSourceUnreadable, i, err)
		}
		for _, line := range strings.Split(text, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			sc.Units = append(sc.Units, models.Unit{
				Type: models.UnitParagraph,
				Text: line,
			})
		}
	}
	return sc, nil
}
