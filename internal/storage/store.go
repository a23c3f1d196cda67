package storage

import (
	"context"

	"github.com/google/uuid"

	"github.com/your-org/facefind/internal/models"
)

// Store is the descriptor store: photos and their face embeddings,
// partitioned by event. PutPhotoWithEmbeddings and ReplaceEmbeddings are
// atomic: a concurrent CandidateEmbeddings read sees either the fully-old
// or the fully-new embedding set of a photo, never a partial write.
type Store interface {
	CreateEvent(ctx context.Context, name string) (*models.Event, error)
	// GetEvent returns (nil, nil) when the event does not exist.
	GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error)
	ListEvents(ctx context.Context) ([]models.Event, error)
	// DeleteEvent removes the event and cascades to its photos and
	// embeddings in one atomic unit. Returns the deleted photos so the
	// caller can release their stored bytes.
	DeleteEvent(ctx context.Context, id uuid.UUID) ([]models.Photo, error)

	// PutPhotoWithEmbeddings creates exactly one photo row plus its
	// embedding rows. A write referencing an unknown event fails with
	// ErrUnknownEvent before anything is persisted.
	PutPhotoWithEmbeddings(ctx context.Context, draft models.PhotoDraft, embeddings []models.NewEmbedding) (*models.Photo, error)
	// ReplaceEmbeddings atomically swaps the photo's entire embedding set.
	ReplaceEmbeddings(ctx context.Context, photoID uuid.UUID, embeddings []models.NewEmbedding) error
	// DeletePhoto removes the photo and its embeddings, returning the
	// deleted row so the caller can release object storage.
	DeletePhoto(ctx context.Context, id uuid.UUID) (*models.Photo, error)
	// GetPhoto returns (nil, nil) when the photo does not exist.
	GetPhoto(ctx context.Context, id uuid.UUID) (*models.Photo, error)
	// ListPhotos returns an event's photos ordered by creation time,
	// newest first. Private photos are excluded unless includePrivate.
	ListPhotos(ctx context.Context, eventID uuid.UUID, includePrivate bool) ([]models.Photo, error)

	// CandidateEmbeddings returns every embedding stored for the event,
	// a consistent snapshot for exhaustive matching.
	CandidateEmbeddings(ctx context.Context, eventID uuid.UUID) ([]models.FaceEmbedding, error)

	Ping(ctx context.Context) error
	Close()
}
