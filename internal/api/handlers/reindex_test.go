package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/facefind/internal/extract"
	"github.com/your-org/facefind/internal/models"
	"github.com/your-org/facefind/internal/reindex"
	"github.com/your-org/facefind/internal/storage"
	"github.com/your-org/facefind/pkg/dto"
)

type fixedExtractor struct {
	faces []extract.Face
}

func (f *fixedExtractor) Extract(ctx context.Context, imageData []byte) ([]extract.Face, error) {
	return f.faces, nil
}

func reindexRouter(store storage.Store, coordinator *reindex.Coordinator) *gin.Engine {
	r := gin.New()
	h := NewReindexHandler(store, coordinator)
	r.PUT("/photos/:id/embeddings", h.ReplacePhoto)
	r.POST("/events/:id/reindex", h.StartRun)
	r.GET("/reindex/status", h.RunStatus)
	return r
}

func TestReplacePhotoEmbeddings(t *testing.T) {
	store := storage.NewMemoryStore()
	eventID := seedEvent(t, store, "wedding")
	photoID := seedPhoto(t, store, eventID, "http://objects.test/a.jpg", false, []float32{0, 0})
	r := reindexRouter(store, nil)

	body, _ := json.Marshal(dto.ReindexPhotoRequest{Embeddings: [][]float32{{1, 1}, {2, 2}}})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/photos/"+photoID.String()+"/embeddings", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	candidates, err := store.CandidateEmbeddings(context.Background(), eventID)
	if err != nil {
		t.Fatalf("candidates: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("embeddings = %d, want 2", len(candidates))
	}
	for _, c := range candidates {
		if c.QualityHash == "" {
			t.Error("quality hash not derived for replaced embedding")
		}
	}
}

func TestReplacePhotoEmbeddingsUnknownPhoto(t *testing.T) {
	r := reindexRouter(storage.NewMemoryStore(), nil)

	body, _ := json.Marshal(dto.ReindexPhotoRequest{Embeddings: [][]float32{{1, 1}}})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/photos/"+uuid.NewString()+"/embeddings", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestStartRunCompletes(t *testing.T) {
	store := storage.NewMemoryStore()
	objects := newFakeObjects()
	eventID := seedEvent(t, store, "gala")

	url, _ := objects.PutObject(context.Background(), "events/x/a.jpg", []byte("bytes"), "image/jpeg")
	photo, err := store.PutPhotoWithEmbeddings(context.Background(), models.PhotoDraft{EventID: eventID, URL: url}, nil)
	if err != nil {
		t.Fatalf("seed photo: %v", err)
	}

	extractor := &fixedExtractor{faces: []extract.Face{{Embedding: []float32{9, 9}, QualityHash: "newhash"}}}
	coordinator := reindex.NewCoordinator(store, objects, extractor, nil)
	r := reindexRouter(store, coordinator)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/events/"+eventID.String()+"/reindex", nil))
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	deadline := time.Now().Add(2 * time.Second)
	for coordinator.Status().Phase != reindex.PhaseCompleted {
		if time.Now().After(deadline) {
			t.Fatalf("run did not complete, status = %+v", coordinator.Status())
		}
		time.Sleep(10 * time.Millisecond)
	}

	candidates, _ := store.CandidateEmbeddings(context.Background(), eventID)
	if len(candidates) != 1 || candidates[0].PhotoID != photo.ID || candidates[0].QualityHash != "newhash" {
		t.Errorf("candidates after run = %+v", candidates)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/reindex/status", nil))
	var status reindex.Status
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.Phase != reindex.PhaseCompleted || status.Current != 1 || status.Total != 1 {
		t.Errorf("status = %+v", status)
	}
}

func TestStartRunUnknownEvent(t *testing.T) {
	store := storage.NewMemoryStore()
	coordinator := reindex.NewCoordinator(store, newFakeObjects(), &fixedExtractor{}, nil)
	r := reindexRouter(store, coordinator)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/events/"+uuid.NewString()+"/reindex", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
