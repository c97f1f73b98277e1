package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/flashlearn/flashlearn-backend/internal/apperr"
	"github.com/flashlearn/flashlearn-backend/internal/clients/pinecone"
	"github.com/flashlearn/flashlearn-backend/internal/logger"
	"github.com/flashlearn/flashlearn-backend/internal/repos"
	"github.com/flashlearn/flashlearn-backend/internal/types"
)

// vectorNamespace is the single data-plane namespace for document chunks;
// tenant isolation happens through metadata filters, not namespaces.
const vectorNamespace = "docs"

// metadataContentKey carries the chunk text inside vector metadata so the
// retriever can serve content without a database round trip.
const metadataContentKey = "content"

const embedBatchSize = 64

type IngestionService interface {
	// IngestDocument runs the full pipeline: extract, split, embed, index,
	// persist chunk rows, and mark the document completed.
	IngestDocument(ctx context.Context, documentID uuid.UUID) (int, error)
	DeleteDocumentVectors(ctx context.Context, documentID uuid.UUID)
	ReprocessDocument(ctx context.Context, documentID uuid.UUID) (int, error)
}

type ingestionService struct {
	log       *logger.Logger
	docs      repos.DocumentRepo
	chunks    repos.DocumentChunkRepo
	ai        OpenAIClient
	vectors   pinecone.VectorStore
	files     FileStore
	extractor TextExtractor
	splitter  *Splitter
}

func NewIngestionService(
	log *logger.Logger,
	docs repos.DocumentRepo,
	chunks repos.DocumentChunkRepo,
	ai OpenAIClient,
	vectors pinecone.VectorStore,
	files FileStore,
	extractor TextExtractor,
) IngestionService {
	return &ingestionService{
		log:       log.With("service", "IngestionService"),
		docs:      docs,
		chunks:    chunks,
		ai:        ai,
		vectors:   vectors,
		files:     files,
		extractor: extractor,
		splitter:  NewSplitter(),
	}
}

func (s *ingestionService) IngestDocument(ctx context.Context, documentID uuid.UUID) (int, error) {
	doc, err := s.docs.GetByID(ctx, nil, documentID)
	if err != nil {
		return 0, err
	}
	if doc == nil {
		return 0, fmt.Errorf("%w: document %s", apperr.ErrNotFound, documentID)
	}

	// Only one worker may move the document into processing.
	ok, err := s.docs.TransitionStatus(ctx, nil, doc.ID,
		[]string{types.DocumentStatusPending, types.DocumentStatusFailed, types.DocumentStatusCompleted},
		types.DocumentStatusProcessing,
	)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%w: document %s already processing", apperr.ErrConcurrencyGuard, doc.ID)
	}

	n, err := s.ingest(ctx, doc)
	if err != nil {
		s.markFailed(ctx, doc.ID, err)
		return 0, err
	}
	return n, nil
}

func (s *ingestionService) ingest(ctx context.Context, doc *types.Document) (int, error) {
	f, err := s.files.Open(ctx, doc.StorageKey)
	if err != nil {
		return 0, fmt.Errorf("open document file: %w", err)
	}
	defer f.Close()

	text, err := s.extractor.Extract(doc.FileType, f)
	if err != nil {
		return 0, err
	}

	chunks := s.splitter.Split(text)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("no content extracted from document")
	}

	embeddings, err := s.embedAll(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("embed chunks: %w", err)
	}

	vectors := make([]pinecone.Vector, 0, len(chunks))
	rows := make([]*types.DocumentChunk, 0, len(chunks))
	for idx, content := range chunks {
		chunkID := fmt.Sprintf("doc_%s_chunk_%d_%s", doc.ID, idx, uuid.NewString()[:8])

		meta := map[string]any{
			"document_id":   doc.ID.String(),
			"collection_id": doc.CollectionID.String(),
			"user_id":       doc.UserID.String(),
			"chunk_index":   idx,
			"source":        doc.Title,
			"file_type":     doc.FileType,
		}

		vectorMeta := make(map[string]any, len(meta)+1)
		for k, v := range meta {
			vectorMeta[k] = v
		}
		vectorMeta[metadataContentKey] = content

		vectors = append(vectors, pinecone.Vector{
			ID:       chunkID,
			Values:   embeddings[idx],
			Metadata: vectorMeta,
		})

		metaJSON, err := json.Marshal(meta)
		if err != nil {
			return 0, fmt.Errorf("marshal chunk metadata: %w", err)
		}
		rows = append(rows, &types.DocumentChunk{
			DocumentID:  doc.ID,
			Index:       idx,
			Content:     content,
			CharCount:   len([]rune(content)),
			EmbeddingID: chunkID,
			Metadata:    datatypes.JSON(metaJSON),
		})
	}

	// Index first, then persist rows; a failed row write leaves orphan
	// vectors that reprocessing cleans up.
	if err := s.vectors.Upsert(ctx, vectorNamespace, vectors); err != nil {
		return 0, fmt.Errorf("upsert vectors: %w", err)
	}
	if _, err := s.chunks.Create(ctx, nil, rows); err != nil {
		return 0, fmt.Errorf("persist chunks: %w", err)
	}

	now := time.Now()
	if err := s.docs.UpdateFields(ctx, nil, doc.ID, map[string]interface{}{
		"status":       types.DocumentStatusCompleted,
		"total_chunks": len(chunks),
		"processed_at": &now,
	}); err != nil {
		return 0, err
	}

	s.log.Info("Document ingested",
		"document_id", doc.ID.String(),
		"chunks", len(chunks),
	)
	return len(chunks), nil
}

func (s *ingestionService) embedAll(ctx context.Context, chunks []string) ([][]float32, error) {
	out := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		vecs, err := s.ai.Embed(ctx, chunks[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (s *ingestionService) markFailed(ctx context.Context, documentID uuid.UUID, cause error) {
	if err := s.docs.UpdateFields(ctx, nil, documentID, map[string]interface{}{
		"status":        types.DocumentStatusFailed,
		"error_message": cause.Error(),
	}); err != nil {
		s.log.Error("Failed to mark document failed",
			"document_id", documentID.String(),
			"error", err.Error(),
		)
	}
	s.log.Error("Document ingestion failed",
		"document_id", documentID.String(),
		"error", cause.Error(),
	)
}

// DeleteDocumentVectors removes a document's vectors from the index. Errors
// are logged and swallowed so document deletion never blocks on the index.
func (s *ingestionService) DeleteDocumentVectors(ctx context.Context, documentID uuid.UUID) {
	ids, err := s.chunks.EmbeddingIDsByDocumentID(ctx, nil, documentID)
	if err != nil {
		s.log.Error("Failed to load embedding ids",
			"document_id", documentID.String(),
			"error", err.Error(),
		)
		return
	}
	if len(ids) == 0 {
		return
	}
	if err := s.vectors.DeleteIDs(ctx, vectorNamespace, ids); err != nil {
		s.log.Error("Failed to delete vectors",
			"document_id", documentID.String(),
			"error", err.Error(),
		)
		return
	}
	s.log.Info("Deleted document vectors",
		"document_id", documentID.String(),
		"count", len(ids),
	)
}

// ReprocessDocument drops the old chunks and vectors and runs ingestion again.
func (s *ingestionService) ReprocessDocument(ctx context.Context, documentID uuid.UUID) (int, error) {
	s.DeleteDocumentVectors(ctx, documentID)
	if err := s.chunks.DeleteByDocumentID(ctx, nil, documentID); err != nil {
		return 0, err
	}
	return s.IngestDocument(ctx, documentID)
}
