// Package reindex re-runs descriptor extraction over an event's stored
// photos, replacing each photo's embedding set in place. Used after a
// model upgrade. A run is sequential, per-photo fault tolerant, and not
// resumable: interrupting it leaves already-reindexed photos on the new
// embeddings and the rest on the old ones.
package reindex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/facefind/internal/extract"
	"github.com/your-org/facefind/internal/models"
	"github.com/your-org/facefind/internal/observability"
	"github.com/your-org/facefind/internal/storage"
)

var ErrAlreadyRunning = errors.New("reindex run already in progress")

type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseRunning   Phase = "running"
	PhaseCompleted Phase = "completed"
	PhaseAborted   Phase = "aborted"
)

// Status is a snapshot of the run state machine. Current counts photos
// processed so far, succeeded or not.
type Status struct {
	Phase      Phase      `json:"phase"`
	EventID    *uuid.UUID `json:"event_id,omitempty"`
	Current    int        `json:"current"`
	Total      int        `json:"total"`
	Succeeded  int        `json:"succeeded"`
	Failed     int        `json:"failed"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// ObjectFetcher resolves a photo's storage locator back to its bytes.
type ObjectFetcher interface {
	GetObject(ctx context.Context, key string) ([]byte, error)
	KeyFromURL(url string) (string, bool)
}

// ProgressFunc is invoked after every photo, succeeded or failed, and on
// phase transitions.
type ProgressFunc func(Status)

type Coordinator struct {
	store     storage.Store
	objects   ObjectFetcher
	extractor extract.Extractor

	mu         sync.Mutex
	status     Status
	cancel     context.CancelFunc
	onProgress ProgressFunc
}

func NewCoordinator(store storage.Store, objects ObjectFetcher, extractor extract.Extractor, onProgress ProgressFunc) *Coordinator {
	return &Coordinator{
		store:      store,
		objects:    objects,
		extractor:  extractor,
		status:     Status{Phase: PhaseIdle},
		onProgress: onProgress,
	}
}

// Status returns the current run snapshot.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Start launches a run over every photo of the event, private included.
// Only one run may be active at a time.
func (c *Coordinator) Start(ctx context.Context, eventID uuid.UUID) error {
	photos, err := c.store.ListPhotos(ctx, eventID, true)
	if err != nil {
		return fmt.Errorf("list photos for reindex: %w", err)
	}

	c.mu.Lock()
	if c.status.Phase == PhaseRunning {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}
	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	now := time.Now()
	c.status = Status{
		Phase:     PhaseRunning,
		EventID:   &eventID,
		Total:     len(photos),
		StartedAt: &now,
	}
	snapshot := c.status
	c.mu.Unlock()

	c.emit(snapshot)
	go c.run(runCtx, eventID, photos)
	return nil
}

// Abort cancels the active run. Photos already reindexed keep their new
// embeddings.
func (c *Coordinator) Abort() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (c *Coordinator) run(ctx context.Context, eventID uuid.UUID, photos []models.Photo) {
	slog.Info("reindex run started", "event_id", eventID, "total", len(photos))

	for _, photo := range photos {
		if ctx.Err() != nil {
			c.finish(PhaseAborted)
			slog.Warn("reindex run aborted", "event_id", eventID)
			return
		}

		err := c.reindexPhoto(ctx, photo)
		c.mu.Lock()
		c.status.Current++
		if err != nil {
			c.status.Failed++
		} else {
			c.status.Succeeded++
		}
		snapshot := c.status
		c.mu.Unlock()

		if err != nil {
			slog.Warn("reindex photo failed", "photo_id", photo.ID, "error", err)
		}
		observability.ReindexProgress.WithLabelValues(eventID.String()).Set(float64(snapshot.Current))
		c.emit(snapshot)
	}

	c.finish(PhaseCompleted)
	final := c.Status()
	slog.Info("reindex run completed",
		"event_id", eventID,
		"succeeded", final.Succeeded,
		"failed", final.Failed,
	)
}

func (c *Coordinator) reindexPhoto(ctx context.Context, photo models.Photo) error {
	key, ok := c.objects.KeyFromURL(photo.URL)
	if !ok {
		return fmt.Errorf("photo %s has foreign storage locator %q", photo.ID, photo.URL)
	}
	data, err := c.objects.GetObject(ctx, key)
	if err != nil {
		return fmt.Errorf("fetch photo bytes: %w", err)
	}

	faces, err := c.extractor.Extract(ctx, data)
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}

	embeddings := make([]models.NewEmbedding, 0, len(faces))
	for _, f := range faces {
		embeddings = append(embeddings, models.NewEmbedding{
			Vector:      f.Embedding,
			QualityHash: f.QualityHash,
		})
	}
	return c.store.ReplaceEmbeddings(ctx, photo.ID, embeddings)
}

func (c *Coordinator) finish(phase Phase) {
	c.mu.Lock()
	now := time.Now()
	c.status.Phase = phase
	c.status.FinishedAt = &now
	c.cancel = nil
	snapshot := c.status
	c.mu.Unlock()
	c.emit(snapshot)
}

func (c *Coordinator) emit(s Status) {
	if c.onProgress != nil {
		c.onProgress(s)
	}
}
