package domain

// SearchFilter narrows retrieval to a document subset. Filters apply before
// ranking so a limit always returns the most relevant matching chunks.
type SearchFilter struct {
	OwnerID  string
	Type     DocumentType
	Category string
	Period   string
}

type RetrievedChunk struct {
	ChunkID    string       `json:"chunk_id"`
	DocumentID string       `json:"document_id"`
	Ordinal    int          `json:"ordinal"`
	Type       DocumentType `json:"type"`
	Category   string       `json:"category"`
	Period     string       `json:"period"`
	Text       string       `json:"text"`
	Score      float64      `json:"score"`
	Lexical    bool         `json:"lexical"`
}
