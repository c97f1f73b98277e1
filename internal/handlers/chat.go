package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/flashlearn/flashlearn-backend/internal/logger"
	"github.com/flashlearn/flashlearn-backend/internal/requestdata"
	"github.com/flashlearn/flashlearn-backend/internal/services"
)

type ChatHandler struct {
	log   *logger.Logger
	agent services.ChatAgentService
}

func NewChatHandler(log *logger.Logger, agent services.ChatAgentService) *ChatHandler {
	return &ChatHandler{
		log:   log.With("handler", "ChatHandler"),
		agent: agent,
	}
}

// Message runs one tutoring exchange. The client carries the conversation
// history; the server holds no chat state.
func (h *ChatHandler) Message(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var body struct {
		Message      string                 `json:"message" binding:"required"`
		CollectionID *uuid.UUID             `json:"collection_id"`
		History      []services.ChatMessage `json:"history"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	result, err := h.agent.Run(c.Request.Context(), body.Message, rd.UserID, body.CollectionID, body.History)
	if err != nil {
		h.log.Error("Chat agent failed", "error", err, "user_id", rd.UserID)
		RespondError(c, statusForError(err), "chat_failed", err)
		return
	}
	RespondOK(c, gin.H{"answer": result.Answer, "tools_used": result.ToolsUsed})
}
