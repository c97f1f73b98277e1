package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/flashlearn/flashlearn-backend/internal/apperr"
	"github.com/flashlearn/flashlearn-backend/internal/types"
)

type memFileStore struct {
	files map[string][]byte
}

func newMemFileStore() *memFileStore { return &memFileStore{files: map[string][]byte{}} }

func (s *memFileStore) Save(ctx context.Context, key string, r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.files[key] = raw
	return nil
}

func (s *memFileStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	raw, ok := s.files[key]
	if !ok {
		return nil, fmt.Errorf("no such file: %s", key)
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

func (s *memFileStore) Delete(ctx context.Context, key string) error {
	delete(s.files, key)
	return nil
}

type ingestionFixture struct {
	svc    IngestionService
	docs   *memDocumentRepo
	chunks *memChunkRepo
	store  *fakeVectorStore
	files  *memFileStore
}

func newIngestionFixture(t *testing.T) *ingestionFixture {
	t.Helper()
	log := testLogger(t)
	docs := newMemDocumentRepo()
	chunks := newMemChunkRepo()
	store := &fakeVectorStore{}
	files := newMemFileStore()
	svc := NewIngestionService(log, docs, chunks, &fakeOpenAI{}, store, files, NewTextExtractor(log))
	return &ingestionFixture{svc: svc, docs: docs, chunks: chunks, store: store, files: files}
}

func (fx *ingestionFixture) addDocument(t *testing.T, content, status string) *types.Document {
	t.Helper()
	doc := &types.Document{
		ID:           uuid.New(),
		UserID:       uuid.New(),
		CollectionID: uuid.New(),
		Title:        "Biology notes",
		StorageKey:   "bio.txt",
		FileType:     types.FileTypeText,
		Status:       status,
	}
	if _, err := fx.docs.Create(context.Background(), nil, doc); err != nil {
		t.Fatalf("create document: %v", err)
	}
	fx.files.files[doc.StorageKey] = []byte(content)
	return doc
}

func TestIngestDocumentHappyPath(t *testing.T) {
	fx := newIngestionFixture(t)
	text := strings.Repeat("abcdefghij", 200) // splits into 3 chunks
	doc := fx.addDocument(t, text, types.DocumentStatusPending)

	n, err := fx.svc.IngestDocument(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("IngestDocument: %v", err)
	}
	if n != 3 {
		t.Fatalf("chunks: want 3, got %d", n)
	}

	if len(fx.store.upserted) != 3 {
		t.Fatalf("vectors upserted: want 3, got %d", len(fx.store.upserted))
	}
	v := fx.store.upserted[0]
	wantPrefix := fmt.Sprintf("doc_%s_chunk_0_", doc.ID)
	if !strings.HasPrefix(v.ID, wantPrefix) || len(v.ID) != len(wantPrefix)+8 {
		t.Fatalf("vector id format: got %q", v.ID)
	}
	for _, key := range []string{"document_id", "collection_id", "user_id", "chunk_index", "source", "file_type", "content"} {
		if _, ok := v.Metadata[key]; !ok {
			t.Fatalf("vector metadata missing %q: %+v", key, v.Metadata)
		}
	}
	if v.Metadata["user_id"] != doc.UserID.String() {
		t.Fatalf("vector metadata owner mismatch")
	}

	rows, _ := fx.chunks.GetByDocumentID(context.Background(), nil, doc.ID)
	if len(rows) != 3 {
		t.Fatalf("chunk rows: want 3, got %d", len(rows))
	}
	if rows[0].EmbeddingID != fx.store.upserted[0].ID {
		t.Fatalf("chunk row must record its vector id")
	}

	stored, _ := fx.docs.GetByID(context.Background(), nil, doc.ID)
	if stored.Status != types.DocumentStatusCompleted {
		t.Fatalf("status: want completed, got %q", stored.Status)
	}
	if stored.TotalChunks != 3 || stored.ProcessedAt == nil {
		t.Fatalf("completion fields not set: %+v", stored)
	}
}

func TestIngestDocumentConcurrencyGuard(t *testing.T) {
	fx := newIngestionFixture(t)
	doc := fx.addDocument(t, "some text", types.DocumentStatusProcessing)

	_, err := fx.svc.IngestDocument(context.Background(), doc.ID)
	if !errors.Is(err, apperr.ErrConcurrencyGuard) {
		t.Fatalf("want ErrConcurrencyGuard, got %v", err)
	}
	if len(fx.store.upserted) != 0 {
		t.Fatalf("guarded ingest must not touch the index")
	}
}

func TestIngestDocumentUnknownID(t *testing.T) {
	fx := newIngestionFixture(t)
	_, err := fx.svc.IngestDocument(context.Background(), uuid.New())
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestIngestDocumentFailureMarksFailed(t *testing.T) {
	fx := newIngestionFixture(t)
	doc := fx.addDocument(t, "valid text", types.DocumentStatusPending)
	fx.store.upsertErr = fmt.Errorf("index write refused")

	_, err := fx.svc.IngestDocument(context.Background(), doc.ID)
	if err == nil {
		t.Fatalf("want error when index write fails")
	}

	stored, _ := fx.docs.GetByID(context.Background(), nil, doc.ID)
	if stored.Status != types.DocumentStatusFailed {
		t.Fatalf("status: want failed, got %q", stored.Status)
	}
	if stored.ErrorMessage == "" {
		t.Fatalf("error message must be recorded")
	}
}

func TestIngestDocumentEmptyContentFails(t *testing.T) {
	fx := newIngestionFixture(t)
	doc := fx.addDocument(t, "   \n\n  ", types.DocumentStatusPending)

	if _, err := fx.svc.IngestDocument(context.Background(), doc.ID); err == nil {
		t.Fatalf("want error for empty document")
	}
	stored, _ := fx.docs.GetByID(context.Background(), nil, doc.ID)
	if stored.Status != types.DocumentStatusFailed {
		t.Fatalf("status: want failed, got %q", stored.Status)
	}
}

func TestReprocessDocumentReplacesChunks(t *testing.T) {
	fx := newIngestionFixture(t)
	doc := fx.addDocument(t, "original content", types.DocumentStatusPending)

	if _, err := fx.svc.IngestDocument(context.Background(), doc.ID); err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	firstIDs, _ := fx.chunks.EmbeddingIDsByDocumentID(context.Background(), nil, doc.ID)

	fx.files.files[doc.StorageKey] = []byte("replacement content")
	n, err := fx.svc.ReprocessDocument(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("ReprocessDocument: %v", err)
	}
	if n != 1 {
		t.Fatalf("chunks after reprocess: want 1, got %d", n)
	}

	if len(fx.store.deleted) != len(firstIDs) {
		t.Fatalf("old vectors must be deleted: want %d, got %d", len(firstIDs), len(fx.store.deleted))
	}
	rows, _ := fx.chunks.GetByDocumentID(context.Background(), nil, doc.ID)
	if len(rows) != 1 || rows[0].Content != "replacement content" {
		t.Fatalf("chunk rows not replaced: %+v", rows)
	}
}
