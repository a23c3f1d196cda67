package indexer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/your-org/facefind/internal/models"
	"github.com/your-org/facefind/internal/storage"
)

// fakeObjects stores objects in a map and can be told to fail per key.
type fakeObjects struct {
	objects  map[string][]byte
	failFor  string
	putCalls int
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{objects: make(map[string][]byte)}
}

func (f *fakeObjects) PutObject(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	f.putCalls++
	if f.failFor != "" && strings.Contains(key, f.failFor) {
		return "", errors.New("object store down")
	}
	f.objects[key] = data
	return "https://cdn.test/" + key, nil
}

func vec128(first float32) []float32 {
	v := make([]float32, 128)
	v[0] = first
	return v
}

func setup(t *testing.T) (*Pipeline, *storage.MemoryStore, *fakeObjects, uuid.UUID) {
	t.Helper()
	store := storage.NewMemoryStore()
	objects := newFakeObjects()
	ev, err := store.CreateEvent(context.Background(), "wedding")
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	return NewPipeline(store, objects, 0), store, objects, ev.ID
}

func TestIndexStoresPhotoAndEmbeddings(t *testing.T) {
	pipeline, store, objects, eventID := setup(t)
	ctx := context.Background()

	photo, err := pipeline.Index(ctx, Image{
		EventID:     eventID,
		Filename:    "group shot.jpg",
		ContentType: "image/jpeg",
		Data:        []byte("jpeg bytes"),
		Embeddings: []models.NewEmbedding{
			{Vector: vec128(0.1)},
			{Vector: vec128(0.2), QualityHash: "cafecafe"},
		},
	})
	if err != nil {
		t.Fatalf("Index failed: %v", err)
	}

	if !strings.HasPrefix(photo.URL, "https://cdn.test/events/"+eventID.String()+"/") {
		t.Errorf("photo URL = %q; want event-scoped key", photo.URL)
	}
	if strings.Contains(photo.URL, " ") {
		t.Errorf("photo URL %q contains unescaped space", photo.URL)
	}
	if len(objects.objects) != 1 {
		t.Errorf("object store holds %d objects; want 1", len(objects.objects))
	}

	candidates, err := store.CandidateEmbeddings(ctx, eventID)
	if err != nil {
		t.Fatalf("CandidateEmbeddings failed: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("stored %d embeddings; want 2", len(candidates))
	}
	for _, c := range candidates {
		if c.PhotoID != photo.ID {
			t.Errorf("embedding owned by %s; want %s", c.PhotoID, photo.ID)
		}
		if c.QualityHash == "" {
			t.Error("quality hash not derived for embedding missing one")
		}
	}
}

func TestIndexZeroFaces(t *testing.T) {
	pipeline, store, _, eventID := setup(t)
	ctx := context.Background()

	photo, err := pipeline.Index(ctx, Image{
		EventID:     eventID,
		Filename:    "landscape.jpg",
		ContentType: "image/jpeg",
		Data:        []byte("jpeg bytes"),
	})
	if err != nil {
		t.Fatalf("Index failed for zero-face image: %v", err)
	}

	photos, err := store.ListPhotos(ctx, eventID, true)
	if err != nil {
		t.Fatalf("ListPhotos failed: %v", err)
	}
	if len(photos) != 1 || photos[0].ID != photo.ID {
		t.Errorf("zero-face photo missing from listing")
	}

	candidates, _ := store.CandidateEmbeddings(ctx, eventID)
	if len(candidates) != 0 {
		t.Errorf("zero-face photo stored %d embeddings", len(candidates))
	}
}

func TestIndexObjectStoreFailure(t *testing.T) {
	pipeline, store, objects, eventID := setup(t)
	objects.failFor = "broken"
	ctx := context.Background()

	_, err := pipeline.Index(ctx, Image{
		EventID:  eventID,
		Filename: "broken.jpg",
		Data:     []byte("bytes"),
	})
	if err == nil {
		t.Fatal("expected error when object store fails")
	}

	// No orphan photo row.
	photos, _ := store.ListPhotos(ctx, eventID, true)
	if len(photos) != 0 {
		t.Errorf("failed upload left %d photo rows", len(photos))
	}
}

func TestIndexUnknownEvent(t *testing.T) {
	pipeline, _, _, _ := setup(t)

	_, err := pipeline.Index(context.Background(), Image{
		EventID:  uuid.New(),
		Filename: "a.jpg",
		Data:     []byte("bytes"),
	})
	if !errors.Is(err, storage.ErrUnknownEvent) {
		t.Errorf("error = %v; want ErrUnknownEvent", err)
	}
}

func TestIndexBatchIsolatesFailures(t *testing.T) {
	pipeline, store, objects, eventID := setup(t)
	objects.failFor = "img3"
	ctx := context.Background()

	images := make([]Image, 0, 5)
	for i := 1; i <= 5; i++ {
		images = append(images, Image{
			EventID:    eventID,
			Filename:   fmt.Sprintf("img%d.jpg", i),
			Data:       []byte("bytes"),
			Embeddings: []models.NewEmbedding{{Vector: vec128(float32(i))}},
		})
	}

	result := pipeline.IndexBatch(ctx, images)

	if result.Succeeded != 4 || result.Failed != 1 {
		t.Errorf("batch result = %d/%d succeeded/failed; want 4/1", result.Succeeded, result.Failed)
	}
	if len(result.Items) != 5 {
		t.Fatalf("batch recorded %d item outcomes; want 5", len(result.Items))
	}
	if result.Items[2].Error == "" || result.Items[2].PhotoID != nil {
		t.Errorf("item 3 outcome = %+v; want recorded failure", result.Items[2])
	}

	photos, _ := store.ListPhotos(ctx, eventID, true)
	if len(photos) != 4 {
		t.Errorf("store contains %d photos; want exactly 4", len(photos))
	}
}

func TestNormalizeDownscalesOversized(t *testing.T) {
	pipeline := NewPipeline(storage.NewMemoryStore(), newFakeObjects(), 100)

	img := image.NewRGBA(image.Rect(0, 0, 400, 200))
	for x := 0; x < 400; x++ {
		for y := 0; y < 200; y++ {
			img.Set(x, y, color.RGBA{uint8(x % 256), uint8(y % 256), 0, 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}

	data, contentType := pipeline.normalize(buf.Bytes(), "image/jpeg")
	if contentType != "image/jpeg" {
		t.Errorf("content type = %q; want image/jpeg", contentType)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode normalized image: %v", err)
	}
	if cfg.Width != 100 || cfg.Height != 50 {
		t.Errorf("normalized size = %dx%d; want 100x50", cfg.Width, cfg.Height)
	}
}

func TestNormalizeFallsBackOnGarbage(t *testing.T) {
	pipeline := NewPipeline(storage.NewMemoryStore(), newFakeObjects(), 100)

	original := []byte("definitely not an image")
	data, contentType := pipeline.normalize(original, "application/octet-stream")
	if !bytes.Equal(data, original) {
		t.Error("normalize should fall back to original bytes on decode failure")
	}
	if contentType != "application/octet-stream" {
		t.Errorf("content type changed to %q on fallback", contentType)
	}
}
