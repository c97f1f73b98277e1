package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	DocumentStatusPending    = "pending"
	DocumentStatusProcessing = "processing"
	DocumentStatusCompleted  = "completed"
	DocumentStatusFailed     = "failed"
)

const (
	FileTypePDF      = "pdf"
	FileTypeText     = "txt"
	FileTypeMarkdown = "md"
)

// Document is a user upload registered for ingestion. The raw bytes live in
// external storage under StorageKey; ingestion consumes already-extracted
// plain text.
type Document struct {
	ID           uuid.UUID   `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID       uuid.UUID   `gorm:"type:uuid;not null;index" json:"user_id"`
	User         *User       `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	CollectionID uuid.UUID   `gorm:"type:uuid;not null;index" json:"collection_id"`
	Collection   *Collection `gorm:"constraint:OnDelete:CASCADE;foreignKey:CollectionID;references:ID" json:"collection,omitempty"`
	Title        string      `gorm:"column:title;not null" json:"title"`
	StorageKey   string      `gorm:"column:storage_key" json:"storage_key"`
	FileType     string      `gorm:"column:file_type;not null" json:"file_type"`
	SizeBytes    int64       `gorm:"column:size_bytes" json:"size_bytes"`
	Status       string      `gorm:"column:status;not null;default:'pending';index" json:"status"`
	TotalChunks  int         `gorm:"column:total_chunks;not null;default:0" json:"total_chunks"`
	ErrorMessage string      `gorm:"column:error_message" json:"error_message"`
	UploadedAt   time.Time   `gorm:"not null;default:now()" json:"uploaded_at"`
	ProcessedAt  *time.Time  `gorm:"column:processed_at" json:"processed_at,omitempty"`
}

func (Document) TableName() string {
	return "document"
}

// DocumentChunk is one bounded slice of a document's extracted text.
// The embedding itself lives in the vector index under EmbeddingID; this row
// holds the content and the metadata mirror used for cleanup and display.
type DocumentChunk struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	DocumentID  uuid.UUID      `gorm:"type:uuid;not null;index;uniqueIndex:idx_chunk_document_index" json:"document_id"`
	Document    *Document      `gorm:"constraint:OnDelete:CASCADE;foreignKey:DocumentID;references:ID" json:"document,omitempty"`
	Index       int            `gorm:"column:chunk_index;not null;uniqueIndex:idx_chunk_document_index" json:"index"`
	Content     string         `gorm:"column:content;not null" json:"content"`
	CharCount   int            `gorm:"column:char_count;not null;default:0" json:"char_count"`
	EmbeddingID string         `gorm:"column:embedding_id" json:"embedding_id"`
	Metadata    datatypes.JSON `gorm:"type:jsonb;column:metadata" json:"metadata"`
	CreatedAt   time.Time      `gorm:"not null;default:now()" json:"created_at"`
}

func (DocumentChunk) TableName() string {
	return "document_chunk"
}
