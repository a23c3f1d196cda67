package dto

import "github.com/google/uuid"

type PhotoResponse struct {
	ID        uuid.UUID `json:"id"`
	EventID   uuid.UUID `json:"event_id"`
	URL       string    `json:"url"`
	Private   bool      `json:"private"`
	CreatedAt string    `json:"created_at"`
}

type PhotoListResponse struct {
	Photos []PhotoResponse `json:"photos"`
	Total  int             `json:"total"`
}

// BulkIngestRequest enqueues already-stored objects for server-side
// extraction and indexing.
type BulkIngestRequest struct {
	Objects []BulkIngestObject `json:"objects" binding:"required"`
}

type BulkIngestObject struct {
	Key         string `json:"key" binding:"required"`
	ContentType string `json:"content_type"`
	Private     bool   `json:"private"`
}

type BulkIngestResponse struct {
	Enqueued int `json:"enqueued"`
}

// WSEvent is a WebSocket message: a live gallery update or reindex
// progress tick, scoped to one event.
type WSEvent struct {
	Type    string      `json:"type"` // photo_indexed, reindex_progress
	EventID uuid.UUID   `json:"event_id"`
	Data    interface{} `json:"data,omitempty"`
}
