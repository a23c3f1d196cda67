package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/facefind/internal/match"
	"github.com/your-org/facefind/internal/models"
	"github.com/your-org/facefind/internal/reindex"
	"github.com/your-org/facefind/internal/storage"
	"github.com/your-org/facefind/pkg/dto"
)

type ReindexHandler struct {
	store       storage.Store
	coordinator *reindex.Coordinator
}

func NewReindexHandler(store storage.Store, coordinator *reindex.Coordinator) *ReindexHandler {
	return &ReindexHandler{store: store, coordinator: coordinator}
}

// ReplacePhoto swaps one photo's embedding set with vectors re-extracted
// by the caller. A failure leaves the old set untouched.
func (h *ReindexHandler) ReplacePhoto(c *gin.Context) {
	photoID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid photo id"})
		return
	}

	var req dto.ReindexPhotoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	embeddings := make([]models.NewEmbedding, 0, len(req.Embeddings))
	for i, v := range req.Embeddings {
		e := models.NewEmbedding{Vector: v}
		if i < len(req.QualityHashes) {
			e.QualityHash = req.QualityHashes[i]
		} else {
			e.QualityHash = match.FaceHash(v)
		}
		embeddings = append(embeddings, e)
	}

	if err := h.store.ReplaceEmbeddings(c.Request.Context(), photoID, embeddings); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "photo not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "replaced", "faces": len(embeddings)})
}

// StartRun launches a server-side reindex over every photo of the event.
// Only one run may be active at a time.
func (h *ReindexHandler) StartRun(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}

	event, err := h.store.GetEvent(c.Request.Context(), eventID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if event == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
		return
	}

	if h.coordinator == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "reindex not available"})
		return
	}

	if err := h.coordinator.Start(c.Request.Context(), eventID); err != nil {
		if errors.Is(err, reindex.ErrAlreadyRunning) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, h.coordinator.Status())
}

func (h *ReindexHandler) RunStatus(c *gin.Context) {
	if h.coordinator == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "reindex not available"})
		return
	}
	c.JSON(http.StatusOK, h.coordinator.Status())
}

func (h *ReindexHandler) AbortRun(c *gin.Context) {
	if h.coordinator == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "reindex not available"})
		return
	}
	h.coordinator.Abort()
	c.JSON(http.StatusOK, h.coordinator.Status())
}
