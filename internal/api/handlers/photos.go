package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/facefind/internal/indexer"
	"github.com/your-org/facefind/internal/models"
	"github.com/your-org/facefind/internal/storage"
	"github.com/your-org/facefind/pkg/dto"
)

type PhotoHandler struct {
	store    storage.Store
	objects  ObjectStore
	pipeline *indexer.Pipeline
	producer Publisher
	hub      Broadcaster
}

func NewPhotoHandler(store storage.Store, objects ObjectStore, pipeline *indexer.Pipeline) *PhotoHandler {
	return &PhotoHandler{store: store, objects: objects, pipeline: pipeline}
}

// SetProducer enables the bulk ingest queue. Optional.
func (h *PhotoHandler) SetProducer(p Publisher) { h.producer = p }

// SetHub enables live gallery notifications. Optional.
func (h *PhotoHandler) SetHub(hub Broadcaster) { h.hub = hub }

// Ingest accepts a multipart upload: the image plus the face embeddings
// the client already extracted from it. The photo and its embeddings are
// committed in one unit.
func (h *PhotoHandler) Ingest(c *gin.Context) {
	eventID, err := uuid.Parse(c.PostForm("event_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event_id"})
		return
	}

	file, header, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file required"})
		return
	}
	defer file.Close()

	imageData, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read image failed"})
		return
	}

	embeddings, err := parseEmbeddingsForm(c.PostForm("embeddings"), c.PostForm("quality_hashes"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	private := false
	if v := c.PostForm("private"); v != "" {
		private, _ = strconv.ParseBool(v)
	}

	photo, err := h.pipeline.Index(c.Request.Context(), indexer.Image{
		EventID:     eventID,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        imageData,
		Embeddings:  embeddings,
		Private:     private,
	})
	if err != nil {
		if errors.Is(err, storage.ErrUnknownEvent) {
			c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if h.hub != nil && !photo.Private {
		h.hub.BroadcastEvent(&dto.WSEvent{
			Type:    "photo_indexed",
			EventID: photo.EventID,
			Data: dto.PhotoResponse{
				ID:        photo.ID,
				EventID:   photo.EventID,
				URL:       photo.URL,
				Private:   photo.Private,
				CreatedAt: photo.CreatedAt.Format("2006-01-02T15:04:05Z"),
			},
		})
	}

	c.JSON(http.StatusCreated, dto.PhotoResponse{
		ID:        photo.ID,
		EventID:   photo.EventID,
		URL:       photo.URL,
		Private:   photo.Private,
		CreatedAt: photo.CreatedAt.Format("2006-01-02T15:04:05Z"),
	})
}

func (h *PhotoHandler) List(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}

	includePrivate := false
	if v := c.Query("include_private"); v != "" {
		includePrivate, _ = strconv.ParseBool(v)
	}

	photos, err := h.store.ListPhotos(c.Request.Context(), eventID, includePrivate)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.PhotoResponse, 0, len(photos))
	for _, p := range photos {
		resp = append(resp, dto.PhotoResponse{
			ID:        p.ID,
			EventID:   p.EventID,
			URL:       p.URL,
			Private:   p.Private,
			CreatedAt: p.CreatedAt.Format("2006-01-02T15:04:05Z"),
		})
	}

	c.JSON(http.StatusOK, dto.PhotoListResponse{Photos: resp, Total: len(resp)})
}

func (h *PhotoHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid photo id"})
		return
	}

	photo, err := h.store.DeletePhoto(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "photo not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if h.objects != nil {
		if err := h.objects.DeleteURL(c.Request.Context(), photo.URL); err != nil {
			slog.Warn("delete photo object", "photo_id", id, "error", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// BulkIngest enqueues already-uploaded objects for server-side
// extraction and indexing by the worker.
func (h *PhotoHandler) BulkIngest(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}

	var req dto.BulkIngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if h.producer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "ingest queue not available"})
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

	enqueued := 0
	for _, obj := range req.Objects {
		task := models.IngestTask{
			TaskID:      uuid.New(),
			EventID:     eventID,
			ObjectKey:   obj.Key,
			ContentType: obj.ContentType,
			Private:     obj.Private,
		}
		if err := h.producer.PublishIngestTask(c.Request.Context(), eventID.String(), task); err != nil {
			slog.Error("enqueue ingest task", "key", obj.Key, "error", err)
			continue
		}
		enqueued++
	}

	c.JSON(http.StatusAccepted, dto.BulkIngestResponse{Enqueued: enqueued})
}

// Proxy streams a stored object through the API, for clients that cannot
// reach object storage directly.
func (h *PhotoHandler) Proxy(c *gin.Context) {
	if h.objects == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "object storage not available"})
		return
	}

	key := c.Query("key")
	if key == "" {
		if fromURL, ok := h.objects.KeyFromURL(c.Query("url")); ok {
			key = fromURL
		}
	}
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "key or url required"})
		return
	}

	data, err := h.objects.GetObject(c.Request.Context(), key)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "object not found"})
		return
	}

	c.Data(http.StatusOK, http.DetectContentType(data), data)
}

// parseEmbeddingsForm decodes the embeddings and quality_hashes form
// fields. Hashes are optional and paired by index when present.
func parseEmbeddingsForm(embeddingsJSON, hashesJSON string) ([]models.NewEmbedding, error) {
	if embeddingsJSON == "" {
		return nil, nil
	}

	var vectors [][]float32
	if err := json.Unmarshal([]byte(embeddingsJSON), &vectors); err != nil {
		return nil, errors.New("invalid embeddings payload")
	}

	var hashes []string
	if hashesJSON != "" {
		if err := json.Unmarshal([]byte(hashesJSON), &hashes); err != nil {
			return nil, errors.New("invalid quality_hashes payload")
		}
	}

	embeddings := make([]models.NewEmbedding, 0, len(vectors))
	for i, v := range vectors {
		e := models.NewEmbedding{Vector: v}
		if i < len(hashes) {
			e.QualityHash = hashes[i]
		}
		embeddings = append(embeddings, e)
	}
	return embeddings, nil
}
