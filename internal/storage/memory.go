package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/facefind/internal/models"
)

// MemoryStore is an in-process Store for tests and single-node development.
// Each photo's embedding slice is replaced wholesale under the write lock
// and readers copy under the read lock, so a concurrent candidate scan sees
// either the fully-old or the fully-new set of a photo.
type MemoryStore struct {
	mu         sync.RWMutex
	events     map[uuid.UUID]models.Event
	photos     map[uuid.UUID]models.Photo
	embeddings map[uuid.UUID][]models.FaceEmbedding // keyed by photo ID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events:     make(map[uuid.UUID]models.Event),
		photos:     make(map[uuid.UUID]models.Photo),
		embeddings: make(map[uuid.UUID][]models.FaceEmbedding),
	}
}

func (s *MemoryStore) Close() {}

func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

func (s *MemoryStore) CreateEvent(ctx context.Context, name string) (*models.Event, error) {
	ev := models.Event{
		ID:        uuid.New(),
		Name:      name,
		CreatedAt: time.Now(),
	}
	s.mu.Lock()
	s.events[ev.ID] = ev
	s.mu.Unlock()
	return &ev, nil
}

func (s *MemoryStore) GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.events[id]
	if !ok {
		return nil, nil
	}
	return &ev, nil
}

func (s *MemoryStore) ListEvents(ctx context.Context) ([]models.Event, error) {
	s.mu.RLock()
	events := make([]models.Event, 0, len(s.events))
	for _, ev := range s.events {
		events = append(events, ev)
	}
	s.mu.RUnlock()

	sort.Slice(events, func(i, j int) bool {
		return events[i].CreatedAt.After(events[j].CreatedAt)
	})
	return events, nil
}

func (s *MemoryStore) DeleteEvent(ctx context.Context, id uuid.UUID) ([]models.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[id]; !ok {
		return nil, fmt.Errorf("delete event: %w", ErrNotFound)
	}
	delete(s.events, id)

	var deleted []models.Photo
	for pid, p := range s.photos {
		if p.EventID == id {
			deleted = append(deleted, p)
			delete(s.photos, pid)
			delete(s.embeddings, pid)
		}
	}
	return deleted, nil
}

func (s *MemoryStore) PutPhotoWithEmbeddings(ctx context.Context, draft models.PhotoDraft, embeddings []models.NewEmbedding) (*models.Photo, error) {
	p := models.Photo{
		ID:        uuid.New(),
		EventID:   draft.EventID,
		URL:       draft.URL,
		Private:   draft.Private,
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[draft.EventID]; !ok {
		return nil, fmt.Errorf("put photo: %w", ErrUnknownEvent)
	}

	s.photos[p.ID] = p
	s.embeddings[p.ID] = buildEmbeddings(p.ID, p.EventID, embeddings)
	return &p, nil
}

func (s *MemoryStore) ReplaceEmbeddings(ctx context.Context, photoID uuid.UUID, embeddings []models.NewEmbedding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.photos[photoID]
	if !ok {
		return fmt.Errorf("replace embeddings: %w", ErrNotFound)
	}
	s.embeddings[photoID] = buildEmbeddings(photoID, p.EventID, embeddings)
	return nil
}

func (s *MemoryStore) DeletePhoto(ctx context.Context, id uuid.UUID) (*models.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.photos[id]
	if !ok {
		return nil, fmt.Errorf("delete photo: %w", ErrNotFound)
	}
	delete(s.photos, id)
	delete(s.embeddings, id)
	return &p, nil
}

func (s *MemoryStore) GetPhoto(ctx context.Context, id uuid.UUID) (*models.Photo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.photos[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *MemoryStore) ListPhotos(ctx context.Context, eventID uuid.UUID, includePrivate bool) ([]models.Photo, error) {
	s.mu.RLock()
	var photos []models.Photo
	for _, p := range s.photos {
		if p.EventID != eventID {
			continue
		}
		if p.Private && !includePrivate {
			continue
		}
		photos = append(photos, p)
	}
	s.mu.RUnlock()

	sort.Slice(photos, func(i, j int) bool {
		return photos[i].CreatedAt.After(photos[j].CreatedAt)
	})
	return photos, nil
}

func (s *MemoryStore) CandidateEmbeddings(ctx context.Context, eventID uuid.UUID) ([]models.FaceEmbedding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.FaceEmbedding
	for _, set := range s.embeddings {
		for _, fe := range set {
			if fe.EventID == eventID {
				out = append(out, fe)
			}
		}
	}
	return out, nil
}

// buildEmbeddings assigns identity and ownership and copies the vectors, so
// later caller-side mutation cannot leak into stored state.
func buildEmbeddings(photoID, eventID uuid.UUID, embeddings []models.NewEmbedding) []models.FaceEmbedding {
	set := make([]models.FaceEmbedding, 0, len(embeddings))
	for _, e := range embeddings {
		vec := make([]float32, len(e.Vector))
		copy(vec, e.Vector)
		set = append(set, models.FaceEmbedding{
			ID:          uuid.New(),
			PhotoID:     photoID,
			EventID:     eventID,
			Vector:      vec,
			QualityHash: e.QualityHash,
			CreatedAt:   time.Now(),
		})
	}
	return set
}
