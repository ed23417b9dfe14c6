// Package models defines core data structures for structured content, chunks, and cache metadata.
package models

import "strings"

// UnitType identifies the kind of a structural unit.
type UnitType string

const (
	// UnitParagraph is a run of prose text.
	UnitParagraph UnitType = "paragraph"
	// UnitHeading is a section heading with a level.
	UnitHeading UnitType = "heading"
	// UnitTable is a grid of cells (one spreadsheet sheet, or one document table).
	UnitTable UnitType = "table"
)

// Unit is one structural unit extracted from a source document.
// Prose units carry Text and the heading path they fall under; table units
// carry the sheet name and the full cell grid.
type Unit struct {
	Type UnitType `json:"type"`
	// Level is the heading level (1 = top) for heading units; 0 otherwise.
	Level int `json:"level,omitempty"`
	// HeadingPath is the path of ancestor headings this unit falls under,
	// outermost first. For a heading unit it includes the heading itself.
	HeadingPath []string `json:"heading_path,omitempty"`
	// Sheet names the sheet or table a table unit belongs to.
	Sheet string `json:"sheet,omitempty"`
	// Rows holds the cell grid for table units, header row first.
	Rows [][]string `json:"rows,omitempty"`
	// Text is the unit's text content for paragraph and heading units.
	Text string `json:"text,omitempty"`
}

// StructuredContent is the canonical extraction output: an ordered sequence
// of typed structural units, independent of source format.
type StructuredContent struct {
	Format string `json:"format"`
	Units  []Unit `json:"units"`
}

// CountHeadings returns the number of heading units.
func (c *StructuredContent) CountHeadings() int {
	n := 0
	for _, u := range c.Units {
		if u.Type == UnitHeading {
			n++
		}
	}
	return n
}

// PlainText renders a unit's content as plain text: the text itself for
// prose units, tab-joined cells with one line per row for table units.
func (u *Unit) PlainText() string {
	if u.Type != UnitTable {
		return u.Text
	}
	lines := make([]string, len(u.Rows))
	for i, row := range u.Rows {
		lines[i] = strings.Join(row, "\t")
	}
	return strings.Join(lines, "\n")
}

// CountTables returns the number of table units.
func (c *StructuredContent) CountTables() int {
	n := 0
	for _, u := range c.Units {
		if u.Type == UnitTable {
			n++
		}
	}
	return n
}
