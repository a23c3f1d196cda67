package handlers

import (
	"context"

	"github.com/your-org/facefind/pkg/dto"
)

// ObjectStore is the slice of object storage the handlers touch.
// *storage.MinIOStore satisfies it.
type ObjectStore interface {
	PutObject(ctx context.Context, key string, data []byte, contentType string) (string, error)
	GetObject(ctx context.Context, key string) ([]byte, error)
	DeleteURL(ctx context.Context, url string) error
	DeletePrefix(ctx context.Context, prefix string) error
	KeyFromURL(url string) (string, bool)
}

// Publisher enqueues ingest tasks. *queue.Producer satisfies it.
type Publisher interface {
	PublishIngestTask(ctx context.Context, eventID string, data interface{}) error
}

// Broadcaster pushes live notifications to WebSocket clients.
// *ws.Hub satisfies it.
type Broadcaster interface {
	BroadcastEvent(event *dto.WSEvent)
}
