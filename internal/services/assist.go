package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/flashlearn/flashlearn-backend/internal/logger"
	"github.com/flashlearn/flashlearn-backend/internal/types"
)

const (
	contextualRetrieveTopK  = 6
	contextualMinCards      = 1
	contextualMaxCards      = 10
	sourceExcerptLimit      = 200
	noContextFallback       = "No relevant excerpts were found in the student's materials."
	insufficientCoverageMsg = "The uploaded materials do not fully cover this topic."
)

const explanationSystemPrompt = `You are an intelligent tutor. The student just answered a flashcard incorrectly during review.
Your task is to write a clear, concise explanation grounded in excerpts from the student's own materials.

RULES:
- Use ONLY information from the provided excerpts.
- If the excerpts do not cover the topic, say explicitly: "` + insufficientCoverageMsg + `"
- Cite the source of each claim as [Source: document_name].
- Keep the explanation under 200 words.
- Use plain, direct language.
- Highlight key concepts in **bold**.`

const correctiveSystemPrompt = `You are an active-learning specialist. From the explanation and the excerpts,
generate corrective flashcards to reinforce the concept the student missed.

Generate EXACTLY 3 flashcards, each with a different type, in this order:
1. "cloze": a sentence with a gap written as {{c1::answer}}
2. "reverse": the original answer becomes the question
3. "mcq": multiple choice with 4 options, marking the correct one

Each flashcard has a title, a content, and a card_type.`

const contextualSystemPrompt = `You are a specialist in writing educational flashcards from study materials.
Create concise, effective flashcards based on the provided excerpts.

RULES:
- Each flashcard covers a single concept.
- Use the format 'Question | Answer'.
- At most 50 words per flashcard.
- Vary the flashcards: definition, cause and effect, comparison, application.
- Start each flashcard with '- '.
- Briefly cite the source when relevant.

Generate %d flashcards.`

// SourceChunk is the citation record persisted alongside an explanation.
type SourceChunk struct {
	ChunkID       any     `json:"chunk_id"`
	DocumentTitle string  `json:"document_title"`
	Excerpt       string  `json:"excerpt"`
	Score         float64 `json:"score"`
}

type CorrectiveCard struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	CardType string `json:"card_type"`
}

type ContextualCard struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// ExplanationResult carries the explanation plus the formatted context so the
// corrective stage can reuse it without a second retrieval.
type ExplanationResult struct {
	Explanation  string
	SourceChunks []SourceChunk
	Context      string
	TokensUsed   int
}

// FullAssist is everything persisted on a ReviewAssist row.
type FullAssist struct {
	Explanation          string
	SourceChunks         []SourceChunk
	CorrectiveFlashcards []CorrectiveCard
	TokensUsed           int
	ModelUsed            string
}

type AssistService interface {
	GenerateReviewExplanation(ctx context.Context, title, content string, userID uuid.UUID, collectionID *uuid.UUID) (*ExplanationResult, error)
	GenerateCorrectiveFlashcards(ctx context.Context, title, content, explanation, promptContext string) []CorrectiveCard
	GenerateContextualFlashcards(ctx context.Context, topic string, userID uuid.UUID, collectionID *uuid.UUID, numCards int) ([]ContextualCard, error)
	GenerateFullReviewAssist(ctx context.Context, title, content string, userID uuid.UUID, collectionID *uuid.UUID) (*FullAssist, error)
}

type assistService struct {
	log       *logger.Logger
	ai        OpenAIClient
	retriever RetrieverService
}

func NewAssistService(log *logger.Logger, ai OpenAIClient, retriever RetrieverService) AssistService {
	return &assistService{
		log:       log.With("service", "AssistService"),
		ai:        ai,
		retriever: retriever,
	}
}

// formatContext renders retrieved chunks into a numbered excerpt block.
func formatContext(chunks []RetrievedChunk) string {
	if len(chunks) == 0 {
		return noContextFallback
	}
	parts := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		source := "Unknown"
		if s, ok := chunk.Metadata["source"].(string); ok && s != "" {
			source = s
		}
		parts = append(parts, fmt.Sprintf("[Excerpt %d - Source: %s]\n%s", i+1, source, chunk.Content))
	}
	return strings.Join(parts, "\n\n")
}

func excerptOf(content string) string {
	runes := []rune(content)
	if len(runes) > sourceExcerptLimit {
		return string(runes[:sourceExcerptLimit]) + "..."
	}
	return content
}

func estimateTokens(text string) int {
	return len(strings.Fields(text)) * 2
}

func (s *assistService) GenerateReviewExplanation(ctx context.Context, title, content string, userID uuid.UUID, collectionID *uuid.UUID) (*ExplanationResult, error) {
	chunks := s.retriever.RetrieveForFlashcardReview(ctx, title, content, userID, collectionID)
	promptContext := formatContext(chunks)

	user := fmt.Sprintf(`Missed flashcard:
Question: %s
Expected answer: %s

Relevant excerpts from the student's materials:
%s

Write an explanation that helps the student understand the concept.`, title, content, promptContext)

	explanation, err := s.ai.GenerateText(ctx, explanationSystemPrompt, user)
	if err != nil {
		return nil, fmt.Errorf("generate explanation: %w", err)
	}

	sources := make([]SourceChunk, 0, len(chunks))
	for _, c := range chunks {
		sources = append(sources, SourceChunk{
			ChunkID:       c.Metadata["chunk_index"],
			DocumentTitle: stringMeta(c.Metadata, "source"),
			Excerpt:       excerptOf(c.Content),
			Score:         c.Score,
		})
	}

	return &ExplanationResult{
		Explanation:  explanation,
		SourceChunks: sources,
		Context:      promptContext,
		TokensUsed:   estimateTokens(explanation),
	}, nil
}

// correctiveCardTypes is the required type sequence of a corrective set.
var correctiveCardTypes = []string{types.CardTypeCloze, types.CardTypeReverse, types.CardTypeMCQ}

// GenerateCorrectiveFlashcards returns exactly three typed drafts, or an
// empty slice when the provider fails or the output doesn't hold the shape.
func (s *assistService) GenerateCorrectiveFlashcards(ctx context.Context, title, content, explanation, promptContext string) []CorrectiveCard {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"flashcards": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"title":     map[string]any{"type": "string"},
						"content":   map[string]any{"type": "string"},
						"card_type": map[string]any{"type": "string", "enum": correctiveCardTypes},
					},
					"required":             []string{"title", "content", "card_type"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []string{"flashcards"},
		"additionalProperties": false,
	}

	user := fmt.Sprintf(`Original flashcard:
Question: %s
Answer: %s

Generated explanation:
%s

Context excerpts:
%s

Generate the 3 corrective flashcards.`, title, content, explanation, promptContext)

	raw, err := s.ai.GenerateJSON(ctx, correctiveSystemPrompt, user, "corrective_flashcards", schema)
	if err != nil {
		s.log.Error("Corrective flashcard generation failed", "error", err.Error())
		return []CorrectiveCard{}
	}

	cards, err := decodeCorrectiveCards(raw)
	if err != nil {
		s.log.Error("Corrective flashcard output rejected", "error", err.Error())
		return []CorrectiveCard{}
	}
	return cards
}

func decodeCorrectiveCards(raw map[string]any) ([]CorrectiveCard, error) {
	blob, err := json.Marshal(raw["flashcards"])
	if err != nil {
		return nil, err
	}
	var cards []CorrectiveCard
	if err := json.Unmarshal(blob, &cards); err != nil {
		return nil, err
	}
	if len(cards) != len(correctiveCardTypes) {
		return nil, fmt.Errorf("want %d cards, got %d", len(correctiveCardTypes), len(cards))
	}
	for i, card := range cards {
		if card.CardType != correctiveCardTypes[i] {
			return nil, fmt.Errorf("card %d: want type %q, got %q", i, correctiveCardTypes[i], card.CardType)
		}
		if strings.TrimSpace(card.Title) == "" || strings.TrimSpace(card.Content) == "" {
			return nil, fmt.Errorf("card %d: empty title or content", i)
		}
	}
	return cards, nil
}

func (s *assistService) GenerateContextualFlashcards(ctx context.Context, topic string, userID uuid.UUID, collectionID *uuid.UUID, numCards int) ([]ContextualCard, error) {
	if numCards < contextualMinCards {
		numCards = contextualMinCards
	}
	if numCards > contextualMaxCards {
		numCards = contextualMaxCards
	}

	chunks := s.retriever.Retrieve(ctx, topic, userID, collectionID, contextualRetrieveTopK)
	promptContext := formatContext(chunks)

	system := fmt.Sprintf(contextualSystemPrompt, numCards)
	user := fmt.Sprintf(`Material excerpts:
%s

Topic: %s

Generate the flashcards.`, promptContext, topic)

	raw, err := s.ai.GenerateText(ctx, system, user)
	if err != nil {
		return nil, fmt.Errorf("generate contextual flashcards: %w", err)
	}

	return parseCardLines(raw, numCards), nil
}

// parseCardLines parses "- Question | Answer" lines; lines without the pipe
// become content under a generic title.
func parseCardLines(raw string, limit int) []ContextualCard {
	var out []ContextualCard
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimSpace(strings.TrimPrefix(line, "-"))
		if line == "" {
			continue
		}
		if len(out) == limit {
			break
		}
		parts := strings.SplitN(line, "|", 2)
		if len(parts) == 2 {
			out = append(out, ContextualCard{
				Title:   strings.TrimSpace(parts[0]),
				Content: strings.TrimSpace(parts[1]),
			})
			continue
		}
		out = append(out, ContextualCard{Title: "Flashcard", Content: line})
	}
	return out
}

// GenerateFullReviewAssist runs the post-miss pipeline: one retrieval, then
// the explanation, then corrective drafts reusing the same context.
func (s *assistService) GenerateFullReviewAssist(ctx context.Context, title, content string, userID uuid.UUID, collectionID *uuid.UUID) (*FullAssist, error) {
	explanation, err := s.GenerateReviewExplanation(ctx, title, content, userID, collectionID)
	if err != nil {
		return nil, err
	}

	corrective := s.GenerateCorrectiveFlashcards(ctx, title, content, explanation.Explanation, explanation.Context)

	return &FullAssist{
		Explanation:          explanation.Explanation,
		SourceChunks:         explanation.SourceChunks,
		CorrectiveFlashcards: corrective,
		TokensUsed:           explanation.TokensUsed,
		ModelUsed:            s.ai.Model(),
	}, nil
}

func stringMeta(meta map[string]any, key string) string {
	if s, ok := meta[key].(string); ok {
		return s
	}
	return ""
}
