package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/flashlearn/flashlearn-backend/internal/logger"
	"github.com/flashlearn/flashlearn-backend/internal/repos"
	"github.com/flashlearn/flashlearn-backend/internal/requestdata"
	"github.com/flashlearn/flashlearn-backend/internal/services"
	"github.com/flashlearn/flashlearn-backend/internal/types"
)

type FlashcardHandler struct {
	log        *logger.Logger
	flashcards repos.FlashcardRepo
	gen        services.FlashcardGenService
	assist     services.AssistService
	spacedRep  services.SpacedRepService
}

func NewFlashcardHandler(
	log *logger.Logger,
	flashcards repos.FlashcardRepo,
	gen services.FlashcardGenService,
	assist services.AssistService,
	spacedRep services.SpacedRepService,
) *FlashcardHandler {
	return &FlashcardHandler{
		log:        log.With("handler", "FlashcardHandler"),
		flashcards: flashcards,
		gen:        gen,
		assist:     assist,
		spacedRep:  spacedRep,
	}
}

func (h *FlashcardHandler) List(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			RespondError(c, http.StatusBadRequest, "invalid_limit", fmt.Errorf("invalid limit %q", raw))
			return
		}
		limit = n
	}

	var cards []*types.Flashcard
	var err error
	if topic := strings.TrimSpace(c.Query("topic")); topic != "" {
		cards, err = h.flashcards.SearchByUserAndTopic(c.Request.Context(), nil, rd.UserID, topic, limit)
	} else {
		cards, err = h.flashcards.GetByUser(c.Request.Context(), nil, rd.UserID, limit)
	}
	if err != nil {
		h.log.Error("List flashcards failed", "error", err, "user_id", rd.UserID)
		RespondError(c, http.StatusInternalServerError, "load_flashcards_failed", err)
		return
	}
	RespondOK(c, gin.H{"flashcards": cards})
}

func (h *FlashcardHandler) Create(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var body struct {
		Title        string     `json:"title" binding:"required"`
		Content      string     `json:"content" binding:"required"`
		CardType     string     `json:"card_type"`
		CollectionID *uuid.UUID `json:"collection_id"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if body.CardType != "" && !types.ValidCardType(body.CardType) {
		RespondError(c, http.StatusBadRequest, "invalid_card_type", fmt.Errorf("invalid card_type %q", body.CardType))
		return
	}

	card, err := h.flashcards.Create(c.Request.Context(), nil, &types.Flashcard{
		UserID:       rd.UserID,
		Title:        body.Title,
		Content:      body.Content,
		CardType:     body.CardType,
		CollectionID: body.CollectionID,
	})
	if err != nil {
		h.log.Error("Create flashcard failed", "error", err, "user_id", rd.UserID)
		RespondError(c, http.StatusInternalServerError, "create_flashcard_failed", err)
		return
	}
	RespondOK(c, gin.H{"flashcard": card})
}

func (h *FlashcardHandler) Delete(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	card, ok := h.ownedCard(c, rd.UserID)
	if !ok {
		return
	}
	if err := h.flashcards.DeleteByID(c.Request.Context(), nil, card.ID); err != nil {
		RespondError(c, http.StatusInternalServerError, "delete_flashcard_failed", err)
		return
	}
	RespondOK(c, gin.H{"deleted": card.ID})
}

// GenerateFromText turns pasted study text into four saved flashcards.
func (h *FlashcardHandler) GenerateFromText(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var body struct {
		Text         string     `json:"text" binding:"required"`
		CollectionID *uuid.UUID `json:"collection_id"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	cards, err := h.gen.GenerateFromText(c.Request.Context(), rd.UserID, body.CollectionID, body.Text)
	if err != nil {
		RespondError(c, statusForError(err), "generate_failed", err)
		return
	}
	RespondOK(c, gin.H{"flashcards": cards})
}

// GenerateContextual drafts flashcards about a topic from the user's indexed
// materials without saving them.
func (h *FlashcardHandler) GenerateContextual(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var body struct {
		Topic        string     `json:"topic" binding:"required"`
		NumCards     int        `json:"num_cards"`
		CollectionID *uuid.UUID `json:"collection_id"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	cards, err := h.assist.GenerateContextualFlashcards(c.Request.Context(), body.Topic, rd.UserID, body.CollectionID, body.NumCards)
	if err != nil {
		RespondError(c, statusForError(err), "contextual_generation_failed", err)
		return
	}
	RespondOK(c, gin.H{"flashcards": cards})
}

// SRInfo returns the spaced-repetition state for one card.
func (h *FlashcardHandler) SRInfo(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	card, ok := h.ownedCard(c, rd.UserID)
	if !ok {
		return
	}
	info, err := h.spacedRep.CardInfo(c.Request.Context(), card.ID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "load_sr_failed", err)
		return
	}
	RespondOK(c, gin.H{"flashcard_id": card.ID, "sr": info})
}

func (h *FlashcardHandler) ownedCard(c *gin.Context, userID uuid.UUID) (*types.Flashcard, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return nil, false
	}
	card, err := h.flashcards.GetByID(c.Request.Context(), nil, id)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "load_flashcard_failed", err)
		return nil, false
	}
	if card == nil || card.UserID != userID {
		RespondError(c, http.StatusNotFound, "flashcard_not_found", fmt.Errorf("flashcard %s not found", id))
		return nil, false
	}
	return card, true
}
