// Package chunker splits structured content into bounded retrieval chunks
// along structural or fallback boundaries.
package chunker

import (
	"strings"

	"github.com/hyperjump/tameru/internal/models"
	"github.com/hyperjump/tameru/pkg/utils"
)

// Version tags chunk indexes with the boundary algorithm that produced them.
// Bump when boundary selection changes so stale caches can be re-chunked.
const Version = "2"

// Default token-estimate bounds for one chunk. These are targets: a single
// unit that cannot be subdivided below the upper bound is emitted as-is.
const (
	DefaultMinTokens = 500
	DefaultMaxTokens = 2000
)

// structuralHeadingThreshold is the heading count at which a document is
// considered structured enough for heading-based chunking.
const structuralHeadingThreshold = 3

// TokenEstimator estimates the token count of a string. It influences only
// the size-threshold comparisons, never which boundaries are eligible.
type TokenEstimator func(s string) int

// EstimateTokens is the default estimator: character count divided by four,
// rounded up. A heuristic, not a real tokenizer.
func EstimateTokens(s string) int {
	return (len(s) + 3) / 4
}

// Chunker converts StructuredContent into an ordered list of bounded chunks.
type Chunker struct {
	minTokens int
	maxTokens int
	estimate  TokenEstimator
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithEstimator replaces the default token estimator.
func WithEstimator(f TokenEstimator) Option {
	return func(c *Chunker) { c.estimate = f }
}

// NewChunker creates a chunker with the given token-estimate bounds.
// Non-positive bounds fall back to the defaults.
func NewChunker(minTokens, maxTokens int, opts ...Option) *Chunker {
	c := &Chunker{
		minTokens: minTokens,
		maxTokens: maxTokens,
		estimate:  EstimateTokens,
	}
	if c.minTokens <= 0 {
		c.minTokens = DefaultMinTokens
	}
	if c.maxTokens <= 0 || c.maxTokens < c.minTokens {
		c.maxTokens = DefaultMaxTokens
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Chunk splits content into chunks in strict document order with dense,
// zero-based ids. Empty content yields exactly one empty full-document chunk.
func (c *Chunker) Chunk(content *models.StructuredContent) []models.Chunk {
	var chunks []models.Chunk
	if content != nil && len(content.Units) > 0 {
		if content.CountHeadings() >= structuralHeadingThreshold || content.CountTables() > 0 {
			chunks = c.structural(content.Units)
		} else {
			chunks = c.fallback(content.Units)
		}
	}
	if len(chunks) == 0 {
		chunks = []models.Chunk{{Type: models.ChunkFullDocument}}
	}
	for i := range chunks {
		chunks[i].ID = i
		chunks[i].TokenEstimate = c.estimate(chunks[i].Content)
		chunks[i].CharCount = utils.NormalizedLen(chunks[i].Content)
	}
	return chunks
}

// structural walks units in order, isolating tables and splitting prose into
// sections at the shallowest heading level present.
func (c *Chunker) structural(units []models.Unit) []models.Chunk {
	topLevel := 0
	for _, u := range units {
		if u.Type == models.UnitHeading && (topLevel == 0 || u.Level < topLevel) {
			topLevel = u.Level
		}
	}

	var chunks []models.Chunk
	var section []models.Unit
	flush := func() {
		if len(section) > 0 {
			chunks = append(chunks, c.chunkSection(section, nil)...)
			section = nil
		}
	}
	for _, u := range units {
		switch {
		case u.Type == models.UnitTable:
			// Tables are never merged with prose.
			flush()
			chunks = append(chunks, c.chunkTable(&u)...)
		case u.Type == models.UnitHeading && u.Level == topLevel:
			flush()
			section = append(section, u)
		default:
			section = append(section, u)
		}
	}
	flush()
	return chunks
}

// chunkSection emits one chunk for a prose section, subdividing recursively
// when the section exceeds the upper bound. contextPath holds the ancestor
// headings above this section; each emitted chunk repeats it so the chunk is
// independently readable.
func (c *Chunker) chunkSection(section []models.Unit, contextPath []string) []models.Chunk {
	text := renderProse(section)
	path := sectionPath(section, contextPath)
	if c.estimate(text) <= c.maxTokens || len(section) == 1 {
		return []models.Chunk{{
			Type:     models.ChunkHeadingSection,
			Boundary: models.Boundary{HeadingPath: path},
			Context:  joinPath(contextPath),
			Content:  text,
		}}
	}

	// Oversized: split at the shallowest sub-heading, if any.
	body := section
	if section[0].Type == models.UnitHeading {
		body = section[1:]
	}
	subLevel := 0
	for _, u := range body {
		if u.Type == models.UnitHeading && (subLevel == 0 || u.Level < subLevel) {
			subLevel = u.Level
		}
	}
	if subLevel == 0 {
		return c.groupParagraphs(section, path, contextPath)
	}

	var chunks []models.Chunk
	var pre []models.Unit
	var sub []models.Unit
	flushPre := func() {
		if len(pre) > 0 {
			chunks = append(chunks, c.groupParagraphs(pre, path, contextPath)...)
			pre = nil
		}
	}
	flushSub := func() {
		if len(sub) > 0 {
			chunks = append(chunks, c.chunkSection(sub, path)...)
			sub = nil
		}
	}
	if section[0].Type == models.UnitHeading {
		pre = append(pre, section[0])
	}
	for _, u := range body {
		if u.Type == models.UnitHeading && u.Level == subLevel {
			flushPre()
			flushSub()
			sub = append(sub, u)
			continue
		}
		if len(sub) > 0 {
			sub = append(sub, u)
		} else {
			pre = append(pre, u)
		}
	}
	flushPre()
	flushSub()
	return chunks
}

// groupParagraphs batches consecutive units into chunks that stay under the
// upper bound, always breaking on unit boundaries. A single unit over the
// bound is emitted as-is.
func (c *Chunker) groupParagraphs(units []models.Unit, path, contextPath []string) []models.Chunk {
	var chunks []models.Chunk
	var group []models.Unit
	groupTokens := 0
	flush := func() {
		if len(group) == 0 {
			return
		}
		chunks = append(chunks, models.Chunk{
			Type:     models.ChunkHeadingSection,
			Boundary: models.Boundary{HeadingPath: path},
			Context:  joinPath(path),
			Content:  renderProse(group),
		})
		group = nil
		groupTokens = 0
	}
	for _, u := range units {
		t := c.estimate(u.PlainText())
		if len(group) > 0 && groupTokens+t > c.maxTokens {
			flush()
		}
		group = append(group, u)
		groupTokens += t
	}
	flush()
	return chunks
}

// chunkTable emits one chunk for a table that fits the upper bound, row-range
// chunks otherwise, or column-range chunks when single rows are too wide.
// Every row-range chunk repeats the header row; every column-range chunk
// repeats its column headers.
func (c *Chunker) chunkTable(u *models.Unit) []models.Chunk {
	rendered := u.PlainText()
	if c.estimate(rendered) <= c.maxTokens || len(u.Rows) <= 1 {
		return []models.Chunk{{
			Type:     models.ChunkTable,
			Boundary: models.Boundary{Sheet: u.Sheet},
			Context:  u.Sheet,
			Content:  rendered,
		}}
	}

	header := u.Rows[0]
	data := u.Rows[1:]
	avgRowTokens := 0
	for _, row := range data {
		avgRowTokens += c.estimate(strings.Join(row, "\t"))
	}
	avgRowTokens = (avgRowTokens + len(data) - 1) / len(data)
	if avgRowTokens > c.maxTokens {
		return c.chunkColumns(u)
	}
	// All-empty data rows estimate to zero; the oversized rendering is then
	// entirely the header's.
	if avgRowTokens < 1 {
		avgRowTokens = 1
	}

	headerTokens := c.estimate(strings.Join(header, "\t"))
	perChunk := (c.maxTokens - headerTokens) / avgRowTokens
	if perChunk < 1 {
		perChunk = 1
	}
	var chunks []models.Chunk
	for start := 0; start < len(data); start += perChunk {
		end := start + perChunk
		if end > len(data) {
			end = len(data)
		}
		rows := append([][]string{header}, data[start:end]...)
		chunks = append(chunks, models.Chunk{
			Type: models.ChunkRowRange,
			Boundary: models.Boundary{
				Sheet:    u.Sheet,
				StartRow: start + 1,
				EndRow:   end,
			},
			Context: u.Sheet,
			Content: renderRows(rows),
		})
	}
	return chunks
}

// chunkColumns splits a very wide table into column ranges, all rows per
// chunk, keeping each range's header cells.
func (c *Chunker) chunkColumns(u *models.Unit) []models.Chunk {
	header := u.Rows[0]
	total := c.estimate(u.PlainText())
	perChunk := len(header) * c.maxTokens / total
	if perChunk < 1 {
		perChunk = 1
	}
	var chunks []models.Chunk
	for start := 0; start < len(header); start += perChunk {
		end := start + perChunk
		if end > len(header) {
			end = len(header)
		}
		rows := make([][]string, 0, len(u.Rows))
		for _, row := range u.Rows {
			hi := end
			if hi > len(row) {
				hi = len(row)
			}
			if start >= hi {
				rows = append(rows, nil)
				continue
			}
			rows = append(rows, row[start:hi])
		}
		chunks = append(chunks, models.Chunk{
			Type: models.ChunkColumnRange,
			Boundary: models.Boundary{
				Sheet:    u.Sheet,
				StartCol: start + 1,
				EndCol:   end,
			},
			Context: u.Sheet + ": " + strings.Join(header[start:end], ", "),
			Content: renderRows(rows),
		})
	}
	return chunks
}

// fallback groups consecutive units into bounded batches when structural
// signal is weak. Batches never split a unit.
func (c *Chunker) fallback(units []models.Unit) []models.Chunk {
	var chunks []models.Chunk
	var group []models.Unit
	groupTokens := 0
	flush := func() {
		if len(group) == 0 {
			return
		}
		chunks = append(chunks, models.Chunk{
			Type:    models.ChunkFullDocument,
			Content: renderProse(group),
		})
		group = nil
		groupTokens = 0
	}
	for _, u := range units {
		t := c.estimate(u.PlainText())
		if len(group) > 0 && groupTokens+t > c.maxTokens {
			flush()
		}
		group = append(group, u)
		groupTokens += t
	}
	flush()
	return chunks
}

// sectionPath returns the heading path identifying a section: the first
// unit's own path when it is a heading, the surrounding context otherwise.
func sectionPath(section []models.Unit, contextPath []string) []string {
	if section[0].Type == models.UnitHeading {
		return section[0].HeadingPath
	}
	if len(section[0].HeadingPath) > 0 {
		return section[0].HeadingPath
	}
	return contextPath
}

func renderProse(units []models.Unit) string {
	parts := make([]string, 0, len(units))
	for i := range units {
		if t := units[i].PlainText(); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n")
}

func renderRows(rows [][]string) string {
	lines := make([]string, len(rows))
	for i, row := range rows {
		lines[i] = strings.Join(row, "\t")
	}
	return strings.Join(lines, "\n")
}

func joinPath(path []string) string {
	return strings.Join(path, " > ")
}
