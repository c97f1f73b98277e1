package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/flashlearn/flashlearn-backend/internal/apperr"
	"github.com/flashlearn/flashlearn-backend/internal/types"
)

type reviewFixture struct {
	svc     ReviewService
	cards   *memFlashcardRepo
	reviews *memReviewLogRepo
	assists *memReviewAssistRepo
	ai      *fakeOpenAI
}

func newReviewFixture(t *testing.T) *reviewFixture {
	t.Helper()
	log := testLogger(t)
	cards := newMemFlashcardRepo()
	reviews := newMemReviewLogRepo()
	assists := newMemReviewAssistRepo()
	ai := &fakeOpenAI{}
	assist := NewAssistService(log, ai, &fakeRetriever{chunks: sampleChunks()})
	svc := NewReviewService(log, cards, reviews, assists, assist)
	return &reviewFixture{svc: svc, cards: cards, reviews: reviews, assists: assists, ai: ai}
}

func (fx *reviewFixture) addCard(t *testing.T, userID uuid.UUID) *types.Flashcard {
	t.Helper()
	card, err := fx.cards.Create(context.Background(), nil, &types.Flashcard{
		UserID:  userID,
		Title:   "Mitochondria",
		Content: "Powerhouse of the cell",
	})
	if err != nil {
		t.Fatalf("create card: %v", err)
	}
	return card
}

func TestRecordReviewCorrectSkipsAssist(t *testing.T) {
	fx := newReviewFixture(t)
	userID := uuid.New()
	card := fx.addCard(t, userID)

	reviewLog, assist, err := fx.svc.RecordReview(context.Background(), userID, card.ID, true, 4)
	if err != nil {
		t.Fatalf("RecordReview: %v", err)
	}
	if reviewLog == nil || !reviewLog.IsCorrect || reviewLog.Confidence != 4 {
		t.Fatalf("unexpected log: %+v", reviewLog)
	}
	if assist != nil {
		t.Fatalf("correct answer must not produce assistance")
	}
	if len(fx.assists.assists) != 0 {
		t.Fatalf("no assist row expected")
	}
}

func TestRecordReviewMissGeneratesAndPersistsAssist(t *testing.T) {
	fx := newReviewFixture(t)
	userID := uuid.New()
	card := fx.addCard(t, userID)

	fx.ai.textFn = func(ctx context.Context, system, user string) (string, error) {
		return "You missed this because of X.", nil
	}
	fx.ai.jsonFn = func(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error) {
		return map[string]any{"flashcards": []any{
			map[string]any{"title": "c1", "content": "a1", "card_type": "cloze"},
			map[string]any{"title": "c2", "content": "a2", "card_type": "reverse"},
			map[string]any{"title": "c3", "content": "a3", "card_type": "mcq"},
		}}, nil
	}

	reviewLog, assist, err := fx.svc.RecordReview(context.Background(), userID, card.ID, false, 1)
	if err != nil {
		t.Fatalf("RecordReview: %v", err)
	}
	if assist == nil {
		t.Fatalf("miss must produce assistance")
	}
	if assist.Explanation != "You missed this because of X." {
		t.Fatalf("explanation: %q", assist.Explanation)
	}
	if len(assist.CorrectiveFlashcards) != 3 {
		t.Fatalf("corrective drafts: want 3, got %d", len(assist.CorrectiveFlashcards))
	}

	stored, _ := fx.assists.GetByReviewLogID(context.Background(), nil, reviewLog.ID)
	if stored == nil {
		t.Fatalf("assist row must be persisted")
	}
	if stored.ModelUsed != "test-model" || stored.TokensUsed == 0 {
		t.Fatalf("assist row fields: %+v", stored)
	}
}

func TestRecordReviewAssistFailureKeepsLog(t *testing.T) {
	fx := newReviewFixture(t)
	userID := uuid.New()
	card := fx.addCard(t, userID)

	fx.ai.textFn = func(ctx context.Context, system, user string) (string, error) {
		return "", fmt.Errorf("provider down")
	}

	reviewLog, assist, err := fx.svc.RecordReview(context.Background(), userID, card.ID, false, 2)
	if err != nil {
		t.Fatalf("RecordReview must not fail when assistance fails: %v", err)
	}
	if reviewLog == nil {
		t.Fatalf("review log must persist")
	}
	if assist != nil {
		t.Fatalf("failed assistance must come back nil")
	}
	if len(fx.assists.assists) != 0 {
		t.Fatalf("no assist row on failure")
	}
	logs, _ := fx.reviews.GetByFlashcard(context.Background(), nil, card.ID)
	if len(logs) != 1 {
		t.Fatalf("review log rows: want 1, got %d", len(logs))
	}
}

func TestRecordReviewWrongOwner(t *testing.T) {
	fx := newReviewFixture(t)
	card := fx.addCard(t, uuid.New())

	_, _, err := fx.svc.RecordReview(context.Background(), uuid.New(), card.ID, true, 0)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("want ErrNotFound for foreign card, got %v", err)
	}
}

func TestRecordReviewConfidenceOutOfRange(t *testing.T) {
	fx := newReviewFixture(t)
	userID := uuid.New()
	card := fx.addCard(t, userID)

	for _, confidence := range []int{-1, 6} {
		_, _, err := fx.svc.RecordReview(context.Background(), userID, card.ID, true, confidence)
		if !errors.Is(err, apperr.ErrValidation) {
			t.Fatalf("confidence %d: want ErrValidation, got %v", confidence, err)
		}
	}
	if len(fx.reviews.logs) != 0 {
		t.Fatalf("rejected review must not persist a log")
	}
}

func TestSaveCorrectiveFlashcards(t *testing.T) {
	fx := newReviewFixture(t)
	userID := uuid.New()
	card := fx.addCard(t, userID)

	fx.ai.textFn = func(ctx context.Context, system, user string) (string, error) {
		return "explanation", nil
	}
	fx.ai.jsonFn = func(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error) {
		return map[string]any{"flashcards": []any{
			map[string]any{"title": "c1", "content": "a1", "card_type": "cloze"},
			map[string]any{"title": "c2", "content": "a2", "card_type": "reverse"},
			map[string]any{"title": "c3", "content": "a3", "card_type": "mcq"},
		}}, nil
	}

	reviewLog, _, err := fx.svc.RecordReview(context.Background(), userID, card.ID, false, 0)
	if err != nil {
		t.Fatalf("RecordReview: %v", err)
	}

	created, err := fx.svc.SaveCorrectiveFlashcards(context.Background(), userID, reviewLog.ID)
	if err != nil {
		t.Fatalf("SaveCorrectiveFlashcards: %v", err)
	}
	if len(created) != 3 {
		t.Fatalf("want 3 saved cards, got %d", len(created))
	}
	for _, c := range created {
		if !c.IsCorrective {
			t.Fatalf("saved card must be marked corrective: %+v", c)
		}
		if c.UserID != userID {
			t.Fatalf("saved card owner mismatch")
		}
	}
	if created[0].CardType != types.CardTypeCloze || created[2].CardType != types.CardTypeMCQ {
		t.Fatalf("card types lost: %q, %q", created[0].CardType, created[2].CardType)
	}
}

func TestSaveCorrectiveFlashcardsNoAssist(t *testing.T) {
	fx := newReviewFixture(t)
	userID := uuid.New()
	card := fx.addCard(t, userID)

	reviewLog, _, err := fx.svc.RecordReview(context.Background(), userID, card.ID, true, 0)
	if err != nil {
		t.Fatalf("RecordReview: %v", err)
	}

	_, err = fx.svc.SaveCorrectiveFlashcards(context.Background(), userID, reviewLog.ID)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("want ErrNotFound without assistance, got %v", err)
	}
}
