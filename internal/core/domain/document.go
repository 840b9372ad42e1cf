package domain

import "time"

type DocumentStatus string

const (
	StatusUploaded    DocumentStatus = "uploaded"
	StatusProcessing  DocumentStatus = "processing"
	StatusIndexed     DocumentStatus = "indexed"
	StatusNeedsReview DocumentStatus = "needs_review"
	StatusError       DocumentStatus = "error"
)

type DocumentType string

const (
	TypeInvoice     DocumentType = "invoice"
	TypeStatement   DocumentType = "statement"
	TypeNotice      DocumentType = "notice"
	TypeCertificate DocumentType = "certificate"
	TypeOther       DocumentType = "other"
)

// PeriodUnknown is the normal outcome when no period can be resolved from
// document text or file metadata. It is not an error.
const PeriodUnknown = "unknown"

type Document struct {
	ID          string         `json:"id"`
	OwnerID     string         `json:"owner_id"`
	Filename    string         `json:"filename"`
	MimeType    string         `json:"mime_type"`
	StorageRef  string         `json:"storage_ref"`
	ContentHash string         `json:"content_hash"`
	Type        DocumentType   `json:"type"`
	Category    string         `json:"category,omitempty"`
	Subcategory string         `json:"subcategory,omitempty"`
	Period      string         `json:"period,omitempty"`
	Confidence  float64        `json:"confidence,omitempty"`
	Status      DocumentStatus `json:"status"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

type Classification struct {
	Type        DocumentType `json:"type"`
	Category    string       `json:"category"`
	Subcategory string       `json:"subcategory"`
	Period      string       `json:"period"`
	Confidence  float64      `json:"confidence"`
}

// Chunk is a bounded span of extracted text, the unit of embedding and
// retrieval. Ordinals are dense and 0-based per document. An embedding is
// never mutated in place; re-embedding replaces the document's chunks
// atomically.
type Chunk struct {
	ID         string            `json:"id"`
	DocumentID string            `json:"document_id"`
	Ordinal    int               `json:"ordinal"`
	Text       string            `json:"text"`
	Embedding  []float32         `json:"-"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}
