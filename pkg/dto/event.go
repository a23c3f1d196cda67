package dto

import "github.com/google/uuid"

type CreateEventRequest struct {
	Name string `json:"name" binding:"required"`
}

type EventResponse struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	PhotoCount int       `json:"photo_count"`
	CreatedAt  string    `json:"created_at"`
}

type EventListResponse struct {
	Events []EventResponse `json:"events"`
	Total  int             `json:"total"`
}
