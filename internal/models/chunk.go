package models

// ChunkType identifies how a chunk's boundary was chosen.
type ChunkType string

const (
	// ChunkHeadingSection is a heading and its subtree of prose.
	ChunkHeadingSection ChunkType = "heading-section"
	// ChunkTable is one whole table or sheet.
	ChunkTable ChunkType = "table"
	// ChunkRowRange is a contiguous run of table rows.
	ChunkRowRange ChunkType = "row-range"
	// ChunkColumnRange is a contiguous run of table columns (very wide tables).
	ChunkColumnRange ChunkType = "column-range"
	// ChunkFullDocument is an unstructured grouping of consecutive units,
	// used when the document carries too little structural signal.
	ChunkFullDocument ChunkType = "full-document"
)

// Boundary describes where a chunk sits in the source document: a heading
// path for prose, or a sheet plus row/column bounds for tabular data.
// Row and column numbers are 1-based and refer to data rows (the header row
// is repeated in every row-range chunk, not counted).
type Boundary struct {
	HeadingPath []string `json:"heading_path,omitempty"`
	Sheet       string   `json:"sheet,omitempty"`
	StartRow    int      `json:"start_row,omitempty"`
	EndRow      int      `json:"end_row,omitempty"`
	StartCol    int      `json:"start_col,omitempty"`
	EndCol      int      `json:"end_col,omitempty"`
}

// Chunk is one retrieval unit derived from StructuredContent. Chunks are
// regenerable artifacts; they are never mutated in place.
type Chunk struct {
	// ID is the dense, zero-based position of the chunk in document order.
	ID       int       `json:"id"`
	Type     ChunkType `json:"type"`
	Boundary Boundary  `json:"boundary"`
	// Context is the repeated parent context (ancestor heading path, or
	// sheet name and column headers) that makes the chunk independently
	// readable.
	Context       string `json:"context,omitempty"`
	Content       string `json:"content"`
	TokenEstimate int    `json:"token_estimate"`
	// CharCount is the whitespace-normalized character count of Content,
	// used for the content-preservation ratio.
	CharCount int `json:"char_count"`
}

// ChunkRef is one entry of the chunk index: everything needed to filter by
// metadata plus a pointer to the body file, loadable without the body.
type ChunkRef struct {
	ID            int       `json:"id"`
	Type          ChunkType `json:"type"`
	Boundary      Boundary  `json:"boundary"`
	TokenEstimate int       `json:"token_estimate"`
	CharCount     int       `json:"char_count"`
	File          string    `json:"file"`
}

// ChunkIndex is the manifest of all chunks for one cache entry.
type ChunkIndex struct {
	ChunkerVersion string     `json:"chunker_version"`
	TotalTokens    int        `json:"total_tokens"`
	TotalChars     int        `json:"total_chars"`
	Chunks         []ChunkRef `json:"chunks"`
}

// ChunkBody is a chunk body file as stored on disk.
type ChunkBody struct {
	ID      int    `json:"id"`
	Context string `json:"context,omitempty"`
	Content string `json:"content"`
}
