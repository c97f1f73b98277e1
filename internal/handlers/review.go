package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/flashlearn/flashlearn-backend/internal/logger"
	"github.com/flashlearn/flashlearn-backend/internal/repos"
	"github.com/flashlearn/flashlearn-backend/internal/requestdata"
	"github.com/flashlearn/flashlearn-backend/internal/services"
	"github.com/flashlearn/flashlearn-backend/internal/types"
)

type ReviewHandler struct {
	log        *logger.Logger
	reviews    services.ReviewService
	spacedRep  services.SpacedRepService
	flashcards repos.FlashcardRepo
	reviewLogs repos.ReviewLogRepo
	assists    repos.ReviewAssistRepo
}

func NewReviewHandler(
	log *logger.Logger,
	reviews services.ReviewService,
	spacedRep services.SpacedRepService,
	flashcards repos.FlashcardRepo,
	reviewLogs repos.ReviewLogRepo,
	assists repos.ReviewAssistRepo,
) *ReviewHandler {
	return &ReviewHandler{
		log:        log.With("handler", "ReviewHandler"),
		reviews:    reviews,
		spacedRep:  spacedRep,
		flashcards: flashcards,
		reviewLogs: reviewLogs,
		assists:    assists,
	}
}

// Record logs a review attempt. A wrong answer also returns generated
// assistance when the pipeline could produce it.
func (h *ReviewHandler) Record(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var body struct {
		FlashcardID uuid.UUID `json:"flashcard_id" binding:"required"`
		IsCorrect   *bool     `json:"is_correct" binding:"required"`
		Confidence  int       `json:"confidence"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	log, assist, err := h.reviews.RecordReview(c.Request.Context(), rd.UserID, body.FlashcardID, *body.IsCorrect, body.Confidence)
	if err != nil {
		RespondError(c, statusForError(err), "record_review_failed", err)
		return
	}

	payload := gin.H{"review_log": log}
	if assist != nil {
		payload["assist"] = gin.H{
			"explanation":           assist.Explanation,
			"source_chunks":         assist.SourceChunks,
			"corrective_flashcards": assist.CorrectiveFlashcards,
			"tokens_used":           assist.TokensUsed,
			"model_used":            assist.ModelUsed,
		}
	}
	RespondOK(c, payload)
}

// GetAssist returns the persisted assistance for one review log.
func (h *ReviewHandler) GetAssist(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	logID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}

	log, err := h.reviewLogs.GetByID(c.Request.Context(), nil, logID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "load_review_failed", err)
		return
	}
	if log == nil || log.UserID != rd.UserID {
		RespondError(c, http.StatusNotFound, "review_not_found", fmt.Errorf("review log %s not found", logID))
		return
	}

	assist, err := h.assists.GetByReviewLogID(c.Request.Context(), nil, logID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "load_assist_failed", err)
		return
	}
	if assist == nil {
		RespondError(c, http.StatusNotFound, "assist_not_found", fmt.Errorf("no assist for review log %s", logID))
		return
	}
	RespondOK(c, gin.H{"assist": assist})
}

// SaveCorrectives persists the corrective flashcards suggested for a failed
// review.
func (h *ReviewHandler) SaveCorrectives(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	logID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}

	cards, err := h.reviews.SaveCorrectiveFlashcards(c.Request.Context(), rd.UserID, logID)
	if err != nil {
		RespondError(c, statusForError(err), "save_correctives_failed", err)
		return
	}
	RespondOK(c, gin.H{"flashcards": cards})
}

// StudySummary aggregates the scheduling state across the user's cards.
func (h *ReviewHandler) StudySummary(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	summary, err := h.spacedRep.UserSummary(c.Request.Context(), rd.UserID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "load_summary_failed", err)
		return
	}
	RespondOK(c, gin.H{"summary": summary})
}

// DueCards lists the cards to study now: never reviewed, overdue, or due
// today.
func (h *ReviewHandler) DueCards(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	cards, err := h.flashcards.GetByUser(c.Request.Context(), nil, rd.UserID, 0)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "load_flashcards_failed", err)
		return
	}

	type dueCard struct {
		Flashcard *types.Flashcard `json:"flashcard"`
		SR        services.CardSR  `json:"sr"`
	}
	due := make([]dueCard, 0)
	for _, card := range cards {
		info, err := h.spacedRep.CardInfo(c.Request.Context(), card.ID)
		if err != nil {
			RespondError(c, http.StatusInternalServerError, "load_sr_failed", err)
			return
		}
		switch info.Status {
		case services.SRStatusNever, services.SRStatusOverdue, services.SRStatusDueToday:
			due = append(due, dueCard{Flashcard: card, SR: info})
		}
	}
	RespondOK(c, gin.H{"due": due})
}
