package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/facefind/internal/match"
	"github.com/your-org/facefind/internal/observability"
	"github.com/your-org/facefind/internal/storage"
	"github.com/your-org/facefind/pkg/dto"
)

type SearchHandler struct {
	store  storage.Store
	engine *match.Engine
}

func NewSearchHandler(store storage.Store, engine *match.Engine) *SearchHandler {
	return &SearchHandler{store: store, engine: engine}
}

// Search matches the probe embeddings against every face stored for the
// event and returns the URLs of photos with at least one close face.
// Private photos never appear in results.
func (h *SearchHandler) Search(c *gin.Context) {
	var req dto.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Embeddings) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "embeddings required"})
		return
	}

	start := time.Now()

	event, err := h.store.GetEvent(c.Request.Context(), req.EventID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if event == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
		return
	}

	candidates, err := h.store.CandidateEmbeddings(c.Request.Context(), req.EventID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	threshold := h.engine.Threshold()
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	matched, err := h.engine.MatchWithThreshold(req.Embeddings, candidates, threshold)
	if err != nil {
		var dimErr *match.DimensionError
		if errors.As(err, &dimErr) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// Map matched photo IDs to URLs, newest first, private excluded.
	photos, err := h.store.ListPhotos(c.Request.Context(), req.EventID, false)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	urls := make([]string, 0, len(matched))
	for _, p := range photos {
		if _, ok := matched[p.ID]; ok {
			urls = append(urls, p.URL)
		}
	}

	observability.SearchesTotal.WithLabelValues(req.EventID.String()).Inc()
	observability.SearchDuration.Observe(time.Since(start).Seconds())

	c.JSON(http.StatusOK, dto.SearchResponse{Matches: urls, Total: len(urls)})
}
