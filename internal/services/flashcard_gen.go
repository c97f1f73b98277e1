package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/flashlearn/flashlearn-backend/internal/apperr"
	"github.com/flashlearn/flashlearn-backend/internal/logger"
	"github.com/flashlearn/flashlearn-backend/internal/repos"
	"github.com/flashlearn/flashlearn-backend/internal/types"
)

// Input text is truncated before prompting; four cards fit comfortably in
// the first 3000 characters.
const (
	generateMaxInputChars = 3000
	generateCardCount     = 4
)

const generateSystemPrompt = `Create exactly 4 flashcards from the text below.
Rules:
- Format: 'Question | Answer'
- One flashcard per line, starting with '- '
- At most 50 words per flashcard
- A single main idea per flashcard
- Simple, direct language`

// FlashcardGenService creates flashcards from raw pasted or extracted text,
// without touching the vector index.
type FlashcardGenService interface {
	GenerateFromText(ctx context.Context, userID uuid.UUID, collectionID *uuid.UUID, text string) ([]*types.Flashcard, error)
}

type flashcardGenService struct {
	log        *logger.Logger
	ai         OpenAIClient
	flashcards repos.FlashcardRepo
}

func NewFlashcardGenService(log *logger.Logger, ai OpenAIClient, flashcards repos.FlashcardRepo) FlashcardGenService {
	return &flashcardGenService{
		log:        log.With("service", "FlashcardGenService"),
		ai:         ai,
		flashcards: flashcards,
	}
}

func (s *flashcardGenService) GenerateFromText(ctx context.Context, userID uuid.UUID, collectionID *uuid.UUID, text string) ([]*types.Flashcard, error) {
	runes := []rune(text)
	if len(runes) > generateMaxInputChars {
		runes = runes[:generateMaxInputChars]
	}
	text = strings.TrimSpace(string(runes))
	if text == "" {
		return nil, fmt.Errorf("%w: empty text", apperr.ErrValidation)
	}

	raw, err := s.ai.GenerateText(ctx, generateSystemPrompt, "Text:\n"+text)
	if err != nil {
		return nil, fmt.Errorf("generate flashcards: %w", err)
	}

	drafts := parseCardLines(raw, generateCardCount)
	created := make([]*types.Flashcard, 0, len(drafts))
	for _, draft := range drafts {
		card := &types.Flashcard{
			UserID:       userID,
			Title:        draft.Title,
			Content:      draft.Content,
			CardType:     types.CardTypeStandard,
			CollectionID: collectionID,
		}
		saved, err := s.flashcards.Create(ctx, nil, card)
		if err != nil {
			return nil, err
		}
		created = append(created, saved)
	}

	s.log.Info("Generated flashcards from text",
		"user_id", userID.String(),
		"count", len(created),
	)
	return created, nil
}
