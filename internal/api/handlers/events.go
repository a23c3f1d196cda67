package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/facefind/internal/storage"
	"github.com/your-org/facefind/pkg/dto"
)

type EventHandler struct {
	store   storage.Store
	objects ObjectStore
}

func NewEventHandler(store storage.Store, objects ObjectStore) *EventHandler {
	return &EventHandler{store: store, objects: objects}
}

func (h *EventHandler) Create(c *gin.Context) {
	var req dto.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	event, err := h.store.CreateEvent(c.Request.Context(), req.Name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, dto.EventResponse{
		ID:        event.ID,
		Name:      event.Name,
		CreatedAt: event.CreatedAt.Format("2006-01-02T15:04:05Z"),
	})
}

func (h *EventHandler) List(c *gin.Context) {
	events, err := h.store.ListEvents(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.EventResponse, 0, len(events))
	for _, ev := range events {
		photos, _ := h.store.ListPhotos(c.Request.Context(), ev.ID, true)
		resp = append(resp, dto.EventResponse{
			ID:         ev.ID,
			Name:       ev.Name,
			PhotoCount: len(photos),
			CreatedAt:  ev.CreatedAt.Format("2006-01-02T15:04:05Z"),
		})
	}

	c.JSON(http.StatusOK, dto.EventListResponse{Events: resp, Total: len(resp)})
}

func (h *EventHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}

	event, err := h.store.GetEvent(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if event == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
		return
	}

	photos, _ := h.store.ListPhotos(c.Request.Context(), id, true)

	c.JSON(http.StatusOK, dto.EventResponse{
		ID:         event.ID,
		Name:       event.Name,
		PhotoCount: len(photos),
		CreatedAt:  event.CreatedAt.Format("2006-01-02T15:04:05Z"),
	})
}

// Delete removes the event with all its photos and embeddings, then
// releases the stored image bytes.
func (h *EventHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}

	photos, err := h.store.DeleteEvent(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// Object cleanup is best effort. The rows are already gone.
	if h.objects != nil {
		if err := h.objects.DeletePrefix(c.Request.Context(), "events/"+id.String()+"/"); err != nil {
			slog.Warn("delete event objects", "event_id", id, "error", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted", "photos_removed": len(photos)})
}
