package services

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/flashlearn/flashlearn-backend/internal/clients/pinecone"
	"github.com/flashlearn/flashlearn-backend/internal/logger"
)

const (
	defaultRetrieveTopK = 5
	reviewRetrieveTopK  = 4
)

// RetrievedChunk is one hit from the vector index. Score is a distance, so
// lower means more relevant.
type RetrievedChunk struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
	Score    float64        `json:"score"`
}

// RetrieverService finds document chunks relevant to a query, always scoped
// to the owning user. Retrieval never fails the caller: any error degrades
// to an empty result.
type RetrieverService interface {
	Retrieve(ctx context.Context, query string, userID uuid.UUID, collectionID *uuid.UUID, topK int) []RetrievedChunk
	RetrieveForFlashcardReview(ctx context.Context, title, content string, userID uuid.UUID, collectionID *uuid.UUID) []RetrievedChunk
}

type retrieverService struct {
	log     *logger.Logger
	ai      OpenAIClient
	vectors pinecone.VectorStore
}

func NewRetrieverService(log *logger.Logger, ai OpenAIClient, vectors pinecone.VectorStore) RetrieverService {
	return &retrieverService{
		log:     log.With("service", "RetrieverService"),
		ai:      ai,
		vectors: vectors,
	}
}

func (s *retrieverService) Retrieve(ctx context.Context, query string, userID uuid.UUID, collectionID *uuid.UUID, topK int) []RetrievedChunk {
	if query == "" || userID == uuid.Nil {
		return []RetrievedChunk{}
	}
	if topK <= 0 {
		topK = defaultRetrieveTopK
	}

	embeddings, err := s.ai.Embed(ctx, []string{query})
	if err != nil || len(embeddings) == 0 {
		s.log.Error("Query embedding failed",
			"user_id", userID.String(),
			"error", errString(err),
		)
		return []RetrievedChunk{}
	}

	filter := map[string]any{"user_id": map[string]any{"$eq": userID.String()}}
	if collectionID != nil && *collectionID != uuid.Nil {
		filter = map[string]any{
			"$and": []map[string]any{
				{"user_id": map[string]any{"$eq": userID.String()}},
				{"collection_id": map[string]any{"$eq": collectionID.String()}},
			},
		}
	}

	matches, err := s.vectors.QueryMatches(ctx, vectorNamespace, embeddings[0], topK, filter)
	if err != nil {
		s.log.Error("Vector query failed",
			"user_id", userID.String(),
			"error", err.Error(),
		)
		return []RetrievedChunk{}
	}

	out := make([]RetrievedChunk, 0, len(matches))
	for _, m := range matches {
		content, _ := m.Metadata[metadataContentKey].(string)
		meta := make(map[string]any, len(m.Metadata))
		for k, v := range m.Metadata {
			if k == metadataContentKey {
				continue
			}
			meta[k] = v
		}
		// the index reports similarity; flip it into a distance
		out = append(out, RetrievedChunk{
			Content:  content,
			Metadata: meta,
			Score:    1 - m.Score,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score < out[j].Score })

	s.log.Info("Retrieved chunks",
		"user_id", userID.String(),
		"count", len(out),
	)
	return out
}

// RetrieveForFlashcardReview searches with the card's title and content
// joined as the query, sized for the post-miss assistance pipeline.
func (s *retrieverService) RetrieveForFlashcardReview(ctx context.Context, title, content string, userID uuid.UUID, collectionID *uuid.UUID) []RetrievedChunk {
	query := title + "\n" + content
	return s.Retrieve(ctx, query, userID, collectionID, reviewRetrieveTopK)
}

func errString(err error) string {
	if err == nil {
		return "empty embedding response"
	}
	return err.Error()
}
