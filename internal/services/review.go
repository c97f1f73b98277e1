package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/flashlearn/flashlearn-backend/internal/apperr"
	"github.com/flashlearn/flashlearn-backend/internal/logger"
	"github.com/flashlearn/flashlearn-backend/internal/repos"
	"github.com/flashlearn/flashlearn-backend/internal/types"
)

// ReviewService records review attempts and drives the post-miss assistance
// pipeline.
type ReviewService interface {
	// RecordReview persists the review log. On a miss it also generates and
	// persists assistance; assistance failure never rolls back the log, the
	// caller just gets a nil assist.
	RecordReview(ctx context.Context, userID, flashcardID uuid.UUID, isCorrect bool, confidence int) (*types.ReviewLog, *FullAssist, error)
	// SaveCorrectiveFlashcards turns the stored corrective drafts of a
	// review into real flashcards owned by the user.
	SaveCorrectiveFlashcards(ctx context.Context, userID, reviewLogID uuid.UUID) ([]*types.Flashcard, error)
}

type reviewService struct {
	log        *logger.Logger
	flashcards repos.FlashcardRepo
	reviews    repos.ReviewLogRepo
	assists    repos.ReviewAssistRepo
	assist     AssistService
}

func NewReviewService(
	log *logger.Logger,
	flashcards repos.FlashcardRepo,
	reviews repos.ReviewLogRepo,
	assists repos.ReviewAssistRepo,
	assist AssistService,
) ReviewService {
	return &reviewService{
		log:        log.With("service", "ReviewService"),
		flashcards: flashcards,
		reviews:    reviews,
		assists:    assists,
		assist:     assist,
	}
}

func (s *reviewService) RecordReview(ctx context.Context, userID, flashcardID uuid.UUID, isCorrect bool, confidence int) (*types.ReviewLog, *FullAssist, error) {
	if confidence < 0 || confidence > 5 {
		return nil, nil, fmt.Errorf("%w: confidence %d out of range 0-5", apperr.ErrValidation, confidence)
	}
	card, err := s.flashcards.GetByID(ctx, nil, flashcardID)
	if err != nil {
		return nil, nil, err
	}
	if card == nil || card.UserID != userID {
		return nil, nil, fmt.Errorf("%w: flashcard %s", apperr.ErrNotFound, flashcardID)
	}

	reviewLog, err := s.reviews.Create(ctx, nil, &types.ReviewLog{
		UserID:      userID,
		FlashcardID: card.ID,
		IsCorrect:   isCorrect,
		Confidence:  confidence,
	})
	if err != nil {
		return nil, nil, err
	}

	if isCorrect {
		return reviewLog, nil, nil
	}

	full, err := s.assist.GenerateFullReviewAssist(ctx, card.Title, card.Content, userID, card.CollectionID)
	if err != nil {
		s.log.Error("Review assistance failed",
			"flashcard_id", card.ID.String(),
			"error", err.Error(),
		)
		return reviewLog, nil, nil
	}

	sourceJSON, err := json.Marshal(full.SourceChunks)
	if err != nil {
		return reviewLog, nil, nil
	}
	correctiveJSON, err := json.Marshal(full.CorrectiveFlashcards)
	if err != nil {
		return reviewLog, nil, nil
	}

	if _, err := s.assists.Create(ctx, nil, &types.ReviewAssist{
		ReviewLogID:          reviewLog.ID,
		Explanation:          full.Explanation,
		SourceChunks:         datatypes.JSON(sourceJSON),
		CorrectiveFlashcards: datatypes.JSON(correctiveJSON),
		ModelUsed:            full.ModelUsed,
		TokensUsed:           full.TokensUsed,
	}); err != nil {
		s.log.Error("Failed to persist review assistance",
			"review_log_id", reviewLog.ID.String(),
			"error", err.Error(),
		)
		return reviewLog, nil, nil
	}

	return reviewLog, full, nil
}

func (s *reviewService) SaveCorrectiveFlashcards(ctx context.Context, userID, reviewLogID uuid.UUID) ([]*types.Flashcard, error) {
	reviewLog, err := s.reviews.GetByID(ctx, nil, reviewLogID)
	if err != nil {
		return nil, err
	}
	if reviewLog == nil || reviewLog.UserID != userID {
		return nil, fmt.Errorf("%w: review %s", apperr.ErrNotFound, reviewLogID)
	}

	assist, err := s.assists.GetByReviewLogID(ctx, nil, reviewLog.ID)
	if err != nil {
		return nil, err
	}
	if assist == nil {
		return nil, fmt.Errorf("%w: no assistance for review %s", apperr.ErrNotFound, reviewLogID)
	}

	var drafts []CorrectiveCard
	if len(assist.CorrectiveFlashcards) > 0 {
		if err := json.Unmarshal(assist.CorrectiveFlashcards, &drafts); err != nil {
			return nil, fmt.Errorf("%w: corrective drafts: %v", apperr.ErrParse, err)
		}
	}

	original, err := s.flashcards.GetByID(ctx, nil, reviewLog.FlashcardID)
	if err != nil {
		return nil, err
	}

	created := make([]*types.Flashcard, 0, len(drafts))
	for _, draft := range drafts {
		cardType := draft.CardType
		if !types.ValidCardType(cardType) {
			cardType = types.CardTypeStandard
		}
		title := draft.Title
		if title == "" {
			title = "Corrective Flashcard"
		}
		card := &types.Flashcard{
			UserID:       userID,
			Title:        title,
			Content:      draft.Content,
			CardType:     cardType,
			IsCorrective: true,
		}
		if original != nil {
			card.CollectionID = original.CollectionID
			card.SourceDocumentID = original.SourceDocumentID
		}
		saved, err := s.flashcards.Create(ctx, nil, card)
		if err != nil {
			return nil, err
		}
		created = append(created, saved)
	}
	return created, nil
}
