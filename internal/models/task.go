package models

import (
	"time"

	"github.com/google/uuid"
)

// IngestTask is the message published to NATS for bulk ingestion. The image
// bytes are already in object storage; the worker extracts and indexes.
type IngestTask struct {
	TaskID      uuid.UUID `json:"task_id"`
	EventID     uuid.UUID `json:"event_id"`
	ObjectKey   string    `json:"object_key"`
	ContentType string    `json:"content_type"`
	Private     bool      `json:"private"`
}

// PhotoIndexed is published after a photo enters the index, for live
// gallery updates.
type PhotoIndexed struct {
	PhotoID   uuid.UUID `json:"photo_id"`
	EventID   uuid.UUID `json:"event_id"`
	URL       string    `json:"url"`
	FaceCount int       `json:"face_count"`
	Private   bool      `json:"private"`
	Timestamp time.Time `json:"timestamp"`
}
