package dto

import "github.com/google/uuid"

// SearchRequest carries the probe embeddings extracted from the
// attendee's selfie. Threshold, when set, overrides the configured
// operating point for this call.
type SearchRequest struct {
	EventID    uuid.UUID   `json:"event_id" binding:"required"`
	Embeddings [][]float32 `json:"embeddings" binding:"required"`
	Threshold  *float64    `json:"threshold,omitempty"`
}

type SearchResponse struct {
	Matches []string `json:"matches"`
	Total   int      `json:"total"`
}
