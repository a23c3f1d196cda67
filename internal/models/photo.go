package models

import (
	"time"

	"github.com/google/uuid"
)

type Photo struct {
	ID        uuid.UUID `json:"id" db:"id"`
	EventID   uuid.UUID `json:"event_id" db:"event_id"`
	URL       string    `json:"url" db:"url"`
	Private   bool      `json:"private" db:"private"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// FaceEmbedding is one detected face in a photo. EventID is denormalized
// from the owning photo so candidate scans stay a single-table read.
type FaceEmbedding struct {
	ID          uuid.UUID `json:"id" db:"id"`
	PhotoID     uuid.UUID `json:"photo_id" db:"photo_id"`
	EventID     uuid.UUID `json:"event_id" db:"event_id"`
	Vector      []float32 `json:"-" db:"vector"`
	QualityHash string    `json:"quality_hash,omitempty" db:"quality_hash"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// PhotoDraft carries everything needed to record a new photo.
type PhotoDraft struct {
	EventID uuid.UUID
	URL     string
	Private bool
}

// NewEmbedding is one face vector pending insertion, before the store
// assigns identity and ownership.
type NewEmbedding struct {
	Vector      []float32
	QualityHash string
}
