package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/hyperjump/tameru/internal/models"
)

// docxDocumentXMLPath is the default path to the main document body inside a .docx zip.
const docxDocumentXMLPath = "word/document.xml"

// contentTypesPath is the path to [Content_Types].xml in OOXML packages.
const contentTypesPath = "[Content_Types].xml"

// docxMainContentType is the content type for the main document in DOCX files.
const docxMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"

// wpTag matches one <w:p ...>...</w:p> paragraph element including attributes.
var wpTag = regexp.MustCompile(`(?s)<w:p(?:\s[^>]*)?>.*?</w:p>`)

// wtTag matches <w:t>text</w:t> or <w:t xml:space="preserve">text</w:t> (and any other attributes).
var wtTag = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)

// pStyleTag extracts the paragraph style name (e.g. Heading1) from a paragraph.
var pStyleTag = regexp.MustCompile(`<w:pStyle[^>]*w:val="([^"]+)"`)

// partNameRe extracts PartName from Override elements in [Content_Types].xml.
var partNameRe = regexp.MustCompile(`<Override[^>]+PartName="([^"]+)"[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"`)

// partNameRe2 handles the case where ContentType appears before PartName.
var partNameRe2 = regexp.MustCompile(`<Override[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"[^>]+PartName="([^"]+)"`)

// findDocxMainDocumentPath finds the main document path from [Content_Types].xml.
// Returns the path without leading slash, or empty string if not found.
func findDocxMainDocumentPath(zr *zip.Reader) string {
	for _, f := range zr.File {
		if f.Name != contentTypesPath {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return ""
		}
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(rc); err != nil {
			_ = rc.Close()
			return ""
		}
		_ = rc.Close()

		content := buf.String()
		// Try both attribute orders
		if matches := partNameRe.FindStringSubmatch(content); len(matches) > 1 {
			return strings.TrimPrefix(matches[1], "/")
		}
		if matches := partNameRe2.FindStringSubmatch(content); len(matches) > 1 {
			return strings.TrimPrefix(matches[1], "/")
		}
		return ""
	}
	return ""
}

// headingLevel returns the heading level for a paragraph style name
// ("Heading1" .. "Heading9", case-insensitive), or 0 for body styles.
func headingLevel(style string) int {
	s := strings.ToLower(style)
	if !strings.HasPrefix(s, "heading") {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimPrefix(s, "heading"))
	if err != nil || n < 1 || n > 9 {
		return 0
	}
	return n
}

// parseDOCX parses .docx bytes into structured units. DOCX is a ZIP containing
// word/document.xml (OOXML). Paragraphs are matched element-wise so heading
// styles can be read per paragraph; text comes from <w:t>...</w:t> nodes so
// content survives regardless of run attributes.
func parseDOCX(content []byte) (*models.StructuredContent, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("%w: DOCX is not a zip: %v", models.ErrSourceUnreadable, err)
	}

	// Find main document path from [Content_Types].xml, fall back to default
	docPath := findDocxMainDocumentPath(zr)
	if docPath == "" {
		docPath = docxDocumentXMLPath
	}

	var docXML []byte
	for _, f := range zr.File {
		if f.Name != docPath {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: open %s: %v", models.ErrSourceUnreadable, f.Name, err)
		}
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(rc); err != nil {
			_ = rc.Close()
			return nil, fmt.Errorf("%w: read %s: %v", models.ErrSourceUnreadable, f.Name, err)
		}
		_ = rc.Close()
		docXML = buf.Bytes()
		break
	}
	if docXML == nil {
		return nil, fmt.Errorf("%w: %s not found", models.ErrSourceUnreadable, docPath)
	}

	sc := &models.StructuredContent{Format: "docx"}
	var tracker headingTracker
	for _, para := range wpTag.FindAllString(string(docXML), -1) {
		var b strings.Builder
		for i, m := range wtTag.FindAllStringSubmatch(para, -1) {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(strings.TrimSpace(m[1]))
		}
		text := strings.TrimSpace(b.String())
		if text == "" {
			continue
		}
		level := 0
		if m := pStyleTag.FindStringSubmatch(para); len(m) > 1 {
			level = headingLevel(m[1])
		}
		if level > 0 {
			sc.Units = append(sc.Units, models.Unit{
				Type:        models.UnitHeading,
				Level:       level,
				HeadingPath: tracker.enter(level, text),
				Text:        text,
			})
			continue
		}
		sc.Units = append(sc.Units, models.Unit{
			Type:        models.UnitParagraph,
			HeadingPath: tracker.current(),
			Text:        text,
		})
	}
	return sc, nil
}
