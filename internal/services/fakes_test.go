package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/flashlearn/flashlearn-backend/internal/clients/pinecone"
	"github.com/flashlearn/flashlearn-backend/internal/types"
)

// ---- OpenAI fake ----

type fakeOpenAI struct {
	embedFn func(ctx context.Context, inputs []string) ([][]float32, error)
	jsonFn  func(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error)
	textFn  func(ctx context.Context, system, user string) (string, error)

	mu        sync.Mutex
	jsonCalls []string // user prompts, in order
}

func (f *fakeOpenAI) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if f.embedFn != nil {
		return f.embedFn(ctx, inputs)
	}
	out := make([][]float32, len(inputs))
	for i := range inputs {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

func (f *fakeOpenAI) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error) {
	f.mu.Lock()
	f.jsonCalls = append(f.jsonCalls, user)
	f.mu.Unlock()
	if f.jsonFn != nil {
		return f.jsonFn(ctx, system, user, schemaName, schema)
	}
	return map[string]any{}, nil
}

func (f *fakeOpenAI) GenerateText(ctx context.Context, system, user string) (string, error) {
	if f.textFn != nil {
		return f.textFn(ctx, system, user)
	}
	return "generated text", nil
}

func (f *fakeOpenAI) Model() string { return "test-model" }

// ---- vector store fake ----

type fakeVectorStore struct {
	mu       sync.Mutex
	upserted []pinecone.Vector
	deleted  []string

	queryFn   func(ctx context.Context, namespace string, q []float32, topK int, filter map[string]any) ([]pinecone.Match, error)
	upsertErr error
}

func (f *fakeVectorStore) Upsert(ctx context.Context, namespace string, vectors []pinecone.Vector) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.mu.Lock()
	f.upserted = append(f.upserted, vectors...)
	f.mu.Unlock()
	return nil
}

func (f *fakeVectorStore) QueryMatches(ctx context.Context, namespace string, q []float32, topK int, filter map[string]any) ([]pinecone.Match, error) {
	if f.queryFn != nil {
		return f.queryFn(ctx, namespace, q, topK, filter)
	}
	return nil, nil
}

func (f *fakeVectorStore) DeleteIDs(ctx context.Context, namespace string, ids []string) error {
	f.mu.Lock()
	f.deleted = append(f.deleted, ids...)
	f.mu.Unlock()
	return nil
}

// ---- repo fakes ----

type memDocumentRepo struct {
	mu   sync.Mutex
	docs map[uuid.UUID]*types.Document
}

func newMemDocumentRepo() *memDocumentRepo {
	return &memDocumentRepo{docs: map[uuid.UUID]*types.Document{}}
}

func (r *memDocumentRepo) Create(ctx context.Context, tx *gorm.DB, row *types.Document) (*types.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	cp := *row
	r.docs[row.ID] = &cp
	return row, nil
}

func (r *memDocumentRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (r *memDocumentRepo) GetByCollection(ctx context.Context, tx *gorm.DB, collectionID uuid.UUID) ([]*types.Document, error) {
	return nil, nil
}

func (r *memDocumentRepo) GetByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Document, error) {
	return nil, nil
}

func (r *memDocumentRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok {
		return fmt.Errorf("document %s not found", id)
	}
	for k, v := range updates {
		switch k {
		case "status":
			d.Status = v.(string)
		case "total_chunks":
			d.TotalChunks = v.(int)
		case "error_message":
			d.ErrorMessage = v.(string)
		case "processed_at":
			if t, ok := v.(*time.Time); ok {
				d.ProcessedAt = t
			}
		}
	}
	return nil
}

func (r *memDocumentRepo) TransitionStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, from []string, to string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok {
		return false, nil
	}
	for _, f := range from {
		if d.Status == f {
			d.Status = to
			return true, nil
		}
	}
	return false, nil
}

func (r *memDocumentRepo) DeleteByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.docs, id)
	return nil
}

type memChunkRepo struct {
	mu     sync.Mutex
	chunks []*types.DocumentChunk
}

func newMemChunkRepo() *memChunkRepo { return &memChunkRepo{} }

func (r *memChunkRepo) Create(ctx context.Context, tx *gorm.DB, chunks []*types.DocumentChunk) ([]*types.DocumentChunk, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range chunks {
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
		r.chunks = append(r.chunks, c)
	}
	return chunks, nil
}

func (r *memChunkRepo) GetByDocumentID(ctx context.Context, tx *gorm.DB, documentID uuid.UUID) ([]*types.DocumentChunk, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.DocumentChunk
	for _, c := range r.chunks {
		if c.DocumentID == documentID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *memChunkRepo) EmbeddingIDsByDocumentID(ctx context.Context, tx *gorm.DB, documentID uuid.UUID) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, c := range r.chunks {
		if c.DocumentID == documentID && c.EmbeddingID != "" {
			out = append(out, c.EmbeddingID)
		}
	}
	return out, nil
}

func (r *memChunkRepo) DeleteByDocumentID(ctx context.Context, tx *gorm.DB, documentID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var keep []*types.DocumentChunk
	for _, c := range r.chunks {
		if c.DocumentID != documentID {
			keep = append(keep, c)
		}
	}
	r.chunks = keep
	return nil
}

type memFlashcardRepo struct {
	mu    sync.Mutex
	cards []*types.Flashcard
}

func newMemFlashcardRepo() *memFlashcardRepo { return &memFlashcardRepo{} }

func (r *memFlashcardRepo) Create(ctx context.Context, tx *gorm.DB, row *types.Flashcard) (*types.Flashcard, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if row.CardType == "" {
		row.CardType = types.CardTypeStandard
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now()
	}
	r.cards = append(r.cards, row)
	return row, nil
}

func (r *memFlashcardRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Flashcard, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.cards {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, nil
}

func (r *memFlashcardRepo) GetByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit int) ([]*types.Flashcard, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.Flashcard
	for i := len(r.cards) - 1; i >= 0; i-- {
		if r.cards[i].UserID == userID {
			out = append(out, r.cards[i])
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r *memFlashcardRepo) GetByCollection(ctx context.Context, tx *gorm.DB, collectionID uuid.UUID) ([]*types.Flashcard, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.Flashcard
	for _, c := range r.cards {
		if c.CollectionID != nil && *c.CollectionID == collectionID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *memFlashcardRepo) SearchByUserAndTopic(ctx context.Context, tx *gorm.DB, userID uuid.UUID, topic string, limit int) ([]*types.Flashcard, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if limit <= 0 {
		limit = 10
	}
	var out []*types.Flashcard
	for i := len(r.cards) - 1; i >= 0; i-- {
		c := r.cards[i]
		if c.UserID != userID {
			continue
		}
		if topic == "" || containsFold(c.Title, topic) || containsFold(c.Content, topic) {
			out = append(out, c)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r *memFlashcardRepo) CountByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, c := range r.cards {
		if c.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (r *memFlashcardRepo) DeleteByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var keep []*types.Flashcard
	for _, c := range r.cards {
		if c.ID != id {
			keep = append(keep, c)
		}
	}
	r.cards = keep
	return nil
}

type memReviewLogRepo struct {
	mu   sync.Mutex
	logs []*types.ReviewLog
}

func newMemReviewLogRepo() *memReviewLogRepo { return &memReviewLogRepo{} }

func (r *memReviewLogRepo) Create(ctx context.Context, tx *gorm.DB, row *types.ReviewLog) (*types.ReviewLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if row.ReviewedAt.IsZero() {
		row.ReviewedAt = time.Now()
	}
	r.logs = append(r.logs, row)
	return row, nil
}

func (r *memReviewLogRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ReviewLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.logs {
		if l.ID == id {
			return l, nil
		}
	}
	return nil, nil
}

func (r *memReviewLogRepo) GetByFlashcard(ctx context.Context, tx *gorm.DB, flashcardID uuid.UUID) ([]*types.ReviewLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.ReviewLog
	for i := len(r.logs) - 1; i >= 0; i-- {
		if r.logs[i].FlashcardID == flashcardID {
			out = append(out, r.logs[i])
		}
	}
	return out, nil
}

func (r *memReviewLogRepo) CountByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, l := range r.logs {
		if l.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (r *memReviewLogRepo) CountCorrectByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, l := range r.logs {
		if l.UserID == userID && l.IsCorrect {
			n++
		}
	}
	return n, nil
}

type memReviewAssistRepo struct {
	mu      sync.Mutex
	assists []*types.ReviewAssist
}

func newMemReviewAssistRepo() *memReviewAssistRepo { return &memReviewAssistRepo{} }

func (r *memReviewAssistRepo) Create(ctx context.Context, tx *gorm.DB, row *types.ReviewAssist) (*types.ReviewAssist, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	r.assists = append(r.assists, row)
	return row, nil
}

func (r *memReviewAssistRepo) GetByReviewLogID(ctx context.Context, tx *gorm.DB, reviewLogID uuid.UUID) (*types.ReviewAssist, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.assists {
		if a.ReviewLogID == reviewLogID {
			return a, nil
		}
	}
	return nil, nil
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
