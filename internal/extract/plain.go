package extract

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/tameru/internal/models"
)

// parseText parses plain text or markdown. Lines starting with '#' become
// heading units (level = number of '#'); blank lines separate paragraphs.
func parseText(content []byte) (*models.StructuredContent, error) {
	if !utf8.Valid(content) {
		return nil, fmt.Errorf("%w: not valid UTF-8", models.ErrSourceUnreadable)
	}
	sc := &models.StructuredContent{Format: "text"}
	var tracker headingTracker
	var para []string

	flush := func() {
		if len(para) == 0 {
			return
		}
		sc.Units = append(sc.Units, models.Unit{
			Type:        models.UnitParagraph,
			HeadingPath: tracker.current(),
			Text:        strings.Join(para, " "),
		})
		para = nil
	}

	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimRight(line, "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			flush()
			continue
		}
		if level := markdownHeadingLevel(trimmed); level > 0 {
			flush()
			text := strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
			if text == "" {
				continue
			}
			sc.Units = append(sc.Units, models.Unit{
				Type:        models.UnitHeading,
				Level:       level,
				HeadingPath: tracker.enter(level, text),
				Text:        text,
			})
			continue
		}
		para = append(para, trimmed)
	}
	flush()
	return sc, nil
}

// markdownHeadingLevel returns the heading level for "# ..." lines, 0 otherwise.
func markdownHeadingLevel(line string) int {
	n := 0
	for n < len(line) && line[n] == '#' {
		n++
	}
	if n == 0 || n > 6 {
		return 0
	}
	if n == len(line) || line[n] == ' ' || line[n] == '\t' {
		return n
	}
	return 0
}
