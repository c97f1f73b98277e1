package handlers

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/flashlearn/flashlearn-backend/internal/logger"
	"github.com/flashlearn/flashlearn-backend/internal/repos"
	"github.com/flashlearn/flashlearn-backend/internal/requestdata"
	"github.com/flashlearn/flashlearn-backend/internal/services"
	"github.com/flashlearn/flashlearn-backend/internal/types"
)

const maxUploadBytes = 25 << 20 // 25 MiB

type DocumentHandler struct {
	log         *logger.Logger
	documents   repos.DocumentRepo
	chunks      repos.DocumentChunkRepo
	collections repos.CollectionRepo
	files       services.FileStore
	ingestion   services.IngestionService
}

func NewDocumentHandler(
	log *logger.Logger,
	documents repos.DocumentRepo,
	chunks repos.DocumentChunkRepo,
	collections repos.CollectionRepo,
	files services.FileStore,
	ingestion services.IngestionService,
) *DocumentHandler {
	return &DocumentHandler{
		log:         log.With("handler", "DocumentHandler"),
		documents:   documents,
		chunks:      chunks,
		collections: collections,
		files:       files,
		ingestion:   ingestion,
	}
}

// Upload registers a document and runs ingestion in the same request. The
// response carries the final document state, completed or failed.
func (h *DocumentHandler) Upload(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	collectionID, err := uuid.Parse(c.PostForm("collection_id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_collection_id", err)
		return
	}
	collection, err := h.collections.GetByID(c.Request.Context(), nil, collectionID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "load_collection_failed", err)
		return
	}
	if collection == nil || collection.UserID != rd.UserID {
		RespondError(c, http.StatusNotFound, "collection_not_found", fmt.Errorf("collection %s not found", collectionID))
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "missing_file", err)
		return
	}
	if fileHeader.Size > maxUploadBytes {
		RespondError(c, http.StatusBadRequest, "file_too_large", fmt.Errorf("file exceeds %d bytes", maxUploadBytes))
		return
	}
	fileType, err := fileTypeFromName(fileHeader.Filename)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "unsupported_file_type", err)
		return
	}

	title := strings.TrimSpace(c.PostForm("title"))
	if title == "" {
		title = fileHeader.Filename
	}

	src, err := fileHeader.Open()
	if err != nil {
		RespondError(c, http.StatusBadRequest, "unreadable_file", err)
		return
	}
	defer src.Close()

	docID := uuid.New()
	storageKey := fmt.Sprintf("%s/%s%s", rd.UserID, docID, filepath.Ext(fileHeader.Filename))
	if err := h.files.Save(c.Request.Context(), storageKey, src); err != nil {
		h.log.Error("File save failed", "error", err, "user_id", rd.UserID)
		RespondError(c, http.StatusInternalServerError, "store_file_failed", err)
		return
	}

	doc, err := h.documents.Create(c.Request.Context(), nil, &types.Document{
		ID:           docID,
		UserID:       rd.UserID,
		CollectionID: collectionID,
		Title:        title,
		StorageKey:   storageKey,
		FileType:     fileType,
		SizeBytes:    fileHeader.Size,
		Status:       types.DocumentStatusPending,
	})
	if err != nil {
		h.log.Error("Document create failed", "error", err, "user_id", rd.UserID)
		RespondError(c, http.StatusInternalServerError, "create_document_failed", err)
		return
	}

	chunkCount, err := h.ingestion.IngestDocument(c.Request.Context(), doc.ID)
	if err != nil {
		// the document row survives with status failed so the client can
		// inspect error_message and retry via reprocess
		failed, loadErr := h.documents.GetByID(c.Request.Context(), nil, doc.ID)
		if loadErr == nil && failed != nil {
			doc = failed
		}
		RespondError(c, statusForError(err), "ingestion_failed", err)
		return
	}

	doc, err = h.documents.GetByID(c.Request.Context(), nil, doc.ID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "load_document_failed", err)
		return
	}
	RespondOK(c, gin.H{"document": doc, "chunks": chunkCount})
}

func (h *DocumentHandler) Get(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	doc, ok := h.ownedDocument(c, rd.UserID)
	if !ok {
		return
	}
	RespondOK(c, gin.H{"document": doc})
}

func (h *DocumentHandler) List(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	docs, err := h.documents.GetByUser(c.Request.Context(), nil, rd.UserID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "load_documents_failed", err)
		return
	}
	RespondOK(c, gin.H{"documents": docs})
}

func (h *DocumentHandler) Reprocess(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	doc, ok := h.ownedDocument(c, rd.UserID)
	if !ok {
		return
	}
	chunkCount, err := h.ingestion.ReprocessDocument(c.Request.Context(), doc.ID)
	if err != nil {
		RespondError(c, statusForError(err), "reprocess_failed", err)
		return
	}
	doc, err = h.documents.GetByID(c.Request.Context(), nil, doc.ID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "load_document_failed", err)
		return
	}
	RespondOK(c, gin.H{"document": doc, "chunks": chunkCount})
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	doc, ok := h.ownedDocument(c, rd.UserID)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	h.ingestion.DeleteDocumentVectors(ctx, doc.ID)
	if err := h.chunks.DeleteByDocumentID(ctx, nil, doc.ID); err != nil {
		RespondError(c, http.StatusInternalServerError, "delete_chunks_failed", err)
		return
	}
	if err := h.documents.DeleteByID(ctx, nil, doc.ID); err != nil {
		RespondError(c, http.StatusInternalServerError, "delete_document_failed", err)
		return
	}
	if err := h.files.Delete(ctx, doc.StorageKey); err != nil {
		h.log.Warn("File cleanup failed", "error", err, "document_id", doc.ID)
	}
	RespondOK(c, gin.H{"deleted": doc.ID})
}

func (h *DocumentHandler) ownedDocument(c *gin.Context, userID uuid.UUID) (*types.Document, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return nil, false
	}
	doc, err := h.documents.GetByID(c.Request.Context(), nil, id)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "load_document_failed", err)
		return nil, false
	}
	if doc == nil || doc.UserID != userID {
		RespondError(c, http.StatusNotFound, "document_not_found", fmt.Errorf("document %s not found", id))
		return nil, false
	}
	return doc, true
}

func fileTypeFromName(name string) (string, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return types.FileTypePDF, nil
	case ".txt":
		return types.FileTypeText, nil
	case ".md", ".markdown":
		return types.FileTypeMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported file type %q, expected pdf, txt or md", filepath.Ext(name))
	}
}
