package domain

// Chunk is the token-bounded retrieval unit derived from one document section.
// Chunks never span sections; they are superseded wholesale on re-ingestion.
type Chunk struct {
	ID            string
	Source        string
	Text          string
	TokenCount    int
	HeadingPath   []string
	URL           string
	ChunkIndex    int // position within the source document
	OverlapTokens int // tokens shared with the predecessor chunk
}

// Breadcrumb renders the heading path for prompts and citations.
func (c Chunk) Breadcrumb() string {
	return joinPath(c.HeadingPath)
}

// Metadata exposes the filterable attributes of the chunk. Both search
// branches apply filters against the same view.
func (c Chunk) Metadata() map[string]string {
	return map[string]string{
		"source":  c.Source,
		"url":     c.URL,
		"heading": joinPath(c.HeadingPath),
	}
}
