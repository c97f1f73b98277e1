package services

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/flashlearn/flashlearn-backend/internal/logger"
	"github.com/flashlearn/flashlearn-backend/internal/repos"
	"github.com/flashlearn/flashlearn-backend/internal/types"
)

// Review statuses. "never" means the card has no review history yet.
const (
	SRStatusNever    = "never"
	SRStatusOverdue  = "overdue"
	SRStatusDueToday = "due_today"
	SRStatusUpcoming = "upcoming"
)

// srIntervals maps consecutive correct answers to the next interval in days.
// 0 correct (or a miss on the last review) schedules the card for tomorrow.
var srIntervals = []int{1, 3, 7, 14, 30}

func nextIntervalDays(consecutiveCorrect int) int {
	idx := consecutiveCorrect
	if idx > len(srIntervals)-1 {
		idx = len(srIntervals) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return srIntervals[idx]
}

// CardSR is the scheduling state derived from one card's review history.
type CardSR struct {
	LastReviewed       *time.Time `json:"last_reviewed,omitempty"`
	DueDate            time.Time  `json:"due_date"`
	Status             string     `json:"status"`
	DaysUntilDue       int        `json:"days_until_due"`
	ConsecutiveCorrect int        `json:"consecutive_correct"`
	TotalReviews       int        `json:"total_reviews"`
	Accuracy           float64    `json:"accuracy"`
}

// ComputeCardSR derives the scheduling state from logs ordered most recent
// first. A card with no logs is due now with status "never".
func ComputeCardSR(logs []*types.ReviewLog, now time.Time) CardSR {
	if len(logs) == 0 {
		return CardSR{
			DueDate:  now,
			Status:   SRStatusNever,
			Accuracy: 0.0,
		}
	}

	consecutive := 0
	for _, l := range logs {
		if !l.IsCorrect {
			break
		}
		consecutive++
	}
	// a miss on the most recent review resets the streak
	if !logs[0].IsCorrect {
		consecutive = 0
	}

	lastReviewed := logs[0].ReviewedAt
	intervalDays := nextIntervalDays(consecutive)
	dueDate := lastReviewed.AddDate(0, 0, intervalDays)
	daysUntilDue := calendarDaysBetween(now, dueDate)

	status := SRStatusUpcoming
	switch {
	case daysUntilDue < 0:
		status = SRStatusOverdue
	case daysUntilDue == 0:
		status = SRStatusDueToday
	}

	correct := 0
	for _, l := range logs {
		if l.IsCorrect {
			correct++
		}
	}
	accuracy := round1(float64(correct) / float64(len(logs)) * 100)

	return CardSR{
		LastReviewed:       &lastReviewed,
		DueDate:            dueDate,
		Status:             status,
		DaysUntilDue:       daysUntilDue,
		ConsecutiveCorrect: consecutive,
		TotalReviews:       len(logs),
		Accuracy:           accuracy,
	}
}

// SessionSR aggregates the scheduling state across a set of cards.
type SessionSR struct {
	Overdue         int        `json:"overdue"`
	DueToday        int        `json:"due_today"`
	Upcoming        int        `json:"upcoming"`
	Never           int        `json:"never"`
	NextDue         *time.Time `json:"next_due,omitempty"`
	LastReviewed    *time.Time `json:"last_reviewed,omitempty"`
	OverallAccuracy *float64   `json:"overall_accuracy,omitempty"`
}

// ComputeSessionSR folds per-card states into a session view. NextDue is the
// earliest due date among reviewed cards; OverallAccuracy is the mean of
// per-card accuracies and stays nil when nothing was ever reviewed.
func ComputeSessionSR(cards []CardSR) SessionSR {
	var out SessionSR
	var accuracies []float64

	for _, info := range cards {
		switch info.Status {
		case SRStatusOverdue:
			out.Overdue++
		case SRStatusDueToday:
			out.DueToday++
		case SRStatusUpcoming:
			out.Upcoming++
		default:
			out.Never++
		}

		if info.LastReviewed != nil {
			if out.LastReviewed == nil || info.LastReviewed.After(*out.LastReviewed) {
				lr := *info.LastReviewed
				out.LastReviewed = &lr
			}
		}

		if info.Status != SRStatusNever {
			due := info.DueDate
			if out.NextDue == nil || due.Before(*out.NextDue) {
				out.NextDue = &due
			}
		}

		if info.TotalReviews > 0 {
			accuracies = append(accuracies, info.Accuracy)
		}
	}

	if len(accuracies) > 0 {
		sum := 0.0
		for _, a := range accuracies {
			sum += a
		}
		mean := round1(sum / float64(len(accuracies)))
		out.OverallAccuracy = &mean
	}
	return out
}

// calendarDaysBetween returns the number of calendar days from a's date to
// b's date, comparing UTC dates so the hour of day never shifts the result.
func calendarDaysBetween(a, b time.Time) int {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	am1 := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	bm1 := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(bm1.Sub(am1).Hours() / 24)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// SpacedRepService loads review history and exposes the scheduling math to
// handlers and the tutoring agent.
type SpacedRepService interface {
	CardInfo(ctx context.Context, flashcardID uuid.UUID) (CardSR, error)
	CardsSummary(ctx context.Context, cards []*types.Flashcard) (SessionSR, error)
	UserSummary(ctx context.Context, userID uuid.UUID) (SessionSR, error)
}

type spacedRepService struct {
	log        *logger.Logger
	flashcards repos.FlashcardRepo
	reviews    repos.ReviewLogRepo
	now        func() time.Time
}

func NewSpacedRepService(log *logger.Logger, flashcards repos.FlashcardRepo, reviews repos.ReviewLogRepo) SpacedRepService {
	return &spacedRepService{
		log:        log.With("service", "SpacedRepService"),
		flashcards: flashcards,
		reviews:    reviews,
		now:        time.Now,
	}
}

func (s *spacedRepService) CardInfo(ctx context.Context, flashcardID uuid.UUID) (CardSR, error) {
	logs, err := s.reviews.GetByFlashcard(ctx, nil, flashcardID)
	if err != nil {
		return CardSR{}, err
	}
	return ComputeCardSR(logs, s.now()), nil
}

func (s *spacedRepService) CardsSummary(ctx context.Context, cards []*types.Flashcard) (SessionSR, error) {
	infos := make([]CardSR, 0, len(cards))
	now := s.now()
	for _, card := range cards {
		logs, err := s.reviews.GetByFlashcard(ctx, nil, card.ID)
		if err != nil {
			return SessionSR{}, err
		}
		infos = append(infos, ComputeCardSR(logs, now))
	}
	return ComputeSessionSR(infos), nil
}

func (s *spacedRepService) UserSummary(ctx context.Context, userID uuid.UUID) (SessionSR, error) {
	cards, err := s.flashcards.GetByUser(ctx, nil, userID, 0)
	if err != nil {
		return SessionSR{}, err
	}
	return s.CardsSummary(ctx, cards)
}
