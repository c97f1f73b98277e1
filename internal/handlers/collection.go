package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/flashlearn/flashlearn-backend/internal/logger"
	"github.com/flashlearn/flashlearn-backend/internal/repos"
	"github.com/flashlearn/flashlearn-backend/internal/requestdata"
	"github.com/flashlearn/flashlearn-backend/internal/types"
)

type CollectionHandler struct {
	log         *logger.Logger
	collections repos.CollectionRepo
	documents   repos.DocumentRepo
}

func NewCollectionHandler(log *logger.Logger, collections repos.CollectionRepo, documents repos.DocumentRepo) *CollectionHandler {
	return &CollectionHandler{
		log:         log.With("handler", "CollectionHandler"),
		collections: collections,
		documents:   documents,
	}
}

func (h *CollectionHandler) List(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	collections, err := h.collections.GetByUser(c.Request.Context(), nil, rd.UserID)
	if err != nil {
		h.log.Error("List collections failed", "error", err, "user_id", rd.UserID)
		RespondError(c, http.StatusInternalServerError, "load_collections_failed", err)
		return
	}
	RespondOK(c, gin.H{"collections": collections})
}

func (h *CollectionHandler) Create(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var body struct {
		Name        string `json:"name" binding:"required"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	existing, err := h.collections.GetByUserAndName(c.Request.Context(), nil, rd.UserID, body.Name)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "create_collection_failed", err)
		return
	}
	if existing != nil {
		RespondError(c, http.StatusConflict, "collection_exists", fmt.Errorf("collection %q already exists", body.Name))
		return
	}

	created, err := h.collections.Create(c.Request.Context(), nil, &types.Collection{
		UserID:      rd.UserID,
		Name:        body.Name,
		Description: body.Description,
	})
	if err != nil {
		h.log.Error("Create collection failed", "error", err, "user_id", rd.UserID)
		RespondError(c, http.StatusInternalServerError, "create_collection_failed", err)
		return
	}
	RespondOK(c, gin.H{"collection": created})
}

func (h *CollectionHandler) Get(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	collection, ok := h.ownedCollection(c, rd.UserID)
	if !ok {
		return
	}
	RespondOK(c, gin.H{"collection": collection})
}

func (h *CollectionHandler) ListDocuments(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	collection, ok := h.ownedCollection(c, rd.UserID)
	if !ok {
		return
	}
	docs, err := h.documents.GetByCollection(c.Request.Context(), nil, collection.ID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "load_documents_failed", err)
		return
	}
	RespondOK(c, gin.H{"documents": docs})
}

func (h *CollectionHandler) Delete(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	collection, ok := h.ownedCollection(c, rd.UserID)
	if !ok {
		return
	}
	if err := h.collections.DeleteByID(c.Request.Context(), nil, collection.ID); err != nil {
		h.log.Error("Delete collection failed", "error", err, "collection_id", collection.ID)
		RespondError(c, http.StatusInternalServerError, "delete_collection_failed", err)
		return
	}
	RespondOK(c, gin.H{"deleted": collection.ID})
}

// ownedCollection resolves the :id path param and enforces ownership. On
// failure it writes the response and returns ok=false.
func (h *CollectionHandler) ownedCollection(c *gin.Context, userID uuid.UUID) (*types.Collection, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return nil, false
	}
	collection, err := h.collections.GetByID(c.Request.Context(), nil, id)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "load_collection_failed", err)
		return nil, false
	}
	if collection == nil || collection.UserID != userID {
		RespondError(c, http.StatusNotFound, "collection_not_found", fmt.Errorf("collection %s not found", id))
		return nil, false
	}
	return collection, true
}
