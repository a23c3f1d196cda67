package handlers

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/facefind/internal/models"
	"github.com/your-org/facefind/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const fakeObjectsBase = "http://objects.test/"

// fakeObjects satisfies both handlers.ObjectStore and the indexer's
// object store.
type fakeObjects struct {
	mu              sync.Mutex
	objects         map[string][]byte
	deletedURLs     []string
	deletedPrefixes []string
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{objects: map[string][]byte{}}
}

func (f *fakeObjects) PutObject(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	return fakeObjectsBase + key, nil
}

func (f *fakeObjects) GetObject(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, errors.New("no such object")
	}
	return data, nil
}

func (f *fakeObjects) DeleteURL(ctx context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedURLs = append(f.deletedURLs, url)
	return nil
}

func (f *fakeObjects) DeletePrefix(ctx context.Context, prefix string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedPrefixes = append(f.deletedPrefixes, prefix)
	return nil
}

func (f *fakeObjects) KeyFromURL(url string) (string, bool) {
	if strings.HasPrefix(url, fakeObjectsBase) {
		return strings.TrimPrefix(url, fakeObjectsBase), true
	}
	return "", false
}

type publishedTask struct {
	eventID string
	data    interface{}
}

type fakePublisher struct {
	mu        sync.Mutex
	published []publishedTask
	failAll   bool
}

func (f *fakePublisher) PublishIngestTask(ctx context.Context, eventID string, data interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return errors.New("publish failed")
	}
	f.published = append(f.published, publishedTask{eventID: eventID, data: data})
	return nil
}

func seedEvent(t *testing.T, store storage.Store, name string) uuid.UUID {
	t.Helper()
	ev, err := store.CreateEvent(context.Background(), name)
	if err != nil {
		t.Fatalf("seed event: %v", err)
	}
	return ev.ID
}

func seedPhoto(t *testing.T, store storage.Store, eventID uuid.UUID, url string, private bool, vectors ...[]float32) uuid.UUID {
	t.Helper()
	embeddings := make([]models.NewEmbedding, 0, len(vectors))
	for i, v := range vectors {
		embeddings = append(embeddings, models.NewEmbedding{
			Vector:      v,
			QualityHash: "hash" + string(rune('a'+i)),
		})
	}
	photo, err := store.PutPhotoWithEmbeddings(context.Background(), models.PhotoDraft{
		EventID: eventID,
		URL:     url,
		Private: private,
	}, embeddings)
	if err != nil {
		t.Fatalf("seed photo: %v", err)
	}
	return photo.ID
}
