package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/facefind/internal/indexer"
	"github.com/your-org/facefind/internal/storage"
	"github.com/your-org/facefind/pkg/dto"
)

func photoRouter(store storage.Store, objects *fakeObjects, producer Publisher) *gin.Engine {
	r := gin.New()
	h := NewPhotoHandler(store, objects, indexer.NewPipeline(store, objects, 0))
	if producer != nil {
		h.SetProducer(producer)
	}
	r.POST("/photos", h.Ingest)
	r.GET("/photos/proxy", h.Proxy)
	r.DELETE("/photos/:id", h.Delete)
	r.GET("/events/:id/photos", h.List)
	r.POST("/events/:id/photos/bulk", h.BulkIngest)
	return r
}

func ingestForm(t *testing.T, eventID string, embeddings [][]float32, private string) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	fw, err := mw.CreateFormFile("image", "selfie.jpg")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	_, _ = fw.Write([]byte("not-really-a-jpeg"))
	_ = mw.WriteField("event_id", eventID)
	if embeddings != nil {
		data, _ := json.Marshal(embeddings)
		_ = mw.WriteField("embeddings", string(data))
	}
	if private != "" {
		_ = mw.WriteField("private", private)
	}
	mw.Close()
	return buf, mw.FormDataContentType()
}

func TestPhotoIngest(t *testing.T) {
	store := storage.NewMemoryStore()
	eventID := seedEvent(t, store, "wedding")
	r := photoRouter(store, newFakeObjects(), nil)

	body, contentType := ingestForm(t, eventID.String(), [][]float32{{0.1, 0.2}}, "")
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/photos", body)
	req.Header.Set("Content-Type", contentType)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var resp dto.PhotoResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.EventID != eventID || resp.URL == "" {
		t.Errorf("response = %+v", resp)
	}

	candidates, err := store.CandidateEmbeddings(context.Background(), eventID)
	if err != nil {
		t.Fatalf("candidates: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("stored embeddings = %d, want 1", len(candidates))
	}
	if candidates[0].QualityHash == "" {
		t.Error("quality hash not derived")
	}
}

func TestPhotoIngestUnknownEvent(t *testing.T) {
	r := photoRouter(storage.NewMemoryStore(), newFakeObjects(), nil)

	body, contentType := ingestForm(t, uuid.NewString(), [][]float32{{0.1, 0.2}}, "")
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/photos", body)
	req.Header.Set("Content-Type", contentType)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404: %s", w.Code, w.Body.String())
	}
}

func TestPhotoIngestMissingImage(t *testing.T) {
	store := storage.NewMemoryStore()
	eventID := seedEvent(t, store, "gala")
	r := photoRouter(store, newFakeObjects(), nil)

	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	_ = mw.WriteField("event_id", eventID.String())
	mw.Close()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/photos", buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestPhotoListVisibility(t *testing.T) {
	store := storage.NewMemoryStore()
	eventID := seedEvent(t, store, "expo")
	seedPhoto(t, store, eventID, "http://objects.test/pub.jpg", false)
	seedPhoto(t, store, eventID, "http://objects.test/priv.jpg", true)
	r := photoRouter(store, newFakeObjects(), nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/events/"+eventID.String()+"/photos", nil))
	var resp dto.PhotoListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 1 || resp.Photos[0].URL != "http://objects.test/pub.jpg" {
		t.Errorf("default listing = %+v, want public only", resp.Photos)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/events/"+eventID.String()+"/photos?include_private=true", nil))
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 2 {
		t.Errorf("include_private listing total = %d, want 2", resp.Total)
	}
}

func TestPhotoDeleteReleasesObject(t *testing.T) {
	store := storage.NewMemoryStore()
	objects := newFakeObjects()
	eventID := seedEvent(t, store, "party")
	photoID := seedPhoto(t, store, eventID, "http://objects.test/a.jpg", false, []float32{0, 0})
	r := photoRouter(store, objects, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/photos/"+photoID.String(), nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	candidates, _ := store.CandidateEmbeddings(context.Background(), eventID)
	if len(candidates) != 0 {
		t.Error("embeddings survived photo delete")
	}
	if len(objects.deletedURLs) != 1 || objects.deletedURLs[0] != "http://objects.test/a.jpg" {
		t.Errorf("deleted urls = %v", objects.deletedURLs)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/photos/"+photoID.String(), nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("repeat delete status = %d, want 404", w.Code)
	}
}

func TestPhotoBulkIngestEnqueues(t *testing.T) {
	store := storage.NewMemoryStore()
	eventID := seedEvent(t, store, "summit")
	producer := &fakePublisher{}
	r := photoRouter(store, newFakeObjects(), producer)

	body, _ := json.Marshal(dto.BulkIngestRequest{Objects: []dto.BulkIngestObject{
		{Key: "uploads/1.jpg"},
		{Key: "uploads/2.jpg", Private: true},
	}})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/events/"+eventID.String()+"/photos/bulk", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var resp dto.BulkIngestResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Enqueued != 2 || len(producer.published) != 2 {
		t.Errorf("enqueued = %d, published = %d", resp.Enqueued, len(producer.published))
	}
}

func TestPhotoBulkIngestUnknownEvent(t *testing.T) {
	r := photoRouter(storage.NewMemoryStore(), newFakeObjects(), &fakePublisher{})

	body, _ := json.Marshal(dto.BulkIngestRequest{Objects: []dto.BulkIngestObject{{Key: "x.jpg"}}})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/events/"+uuid.NewString()+"/photos/bulk", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestPhotoProxy(t *testing.T) {
	store := storage.NewMemoryStore()
	objects := newFakeObjects()
	objects.objects["events/x/pic.jpg"] = []byte("image-bytes")
	r := photoRouter(store, objects, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/photos/proxy?key=events/x/pic.jpg", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if w.Body.String() != "image-bytes" {
		t.Errorf("body = %q", w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/photos/proxy?key=missing.jpg", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("missing object status = %d, want 404", w.Code)
	}
}
