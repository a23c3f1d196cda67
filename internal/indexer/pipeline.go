// Package indexer turns uploaded images into photo records with their face
// embeddings: normalize, persist bytes to object storage, then commit the
// photo and its embedding set to the store as one unit.
package indexer

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/image/draw"

	"github.com/your-org/facefind/internal/match"
	"github.com/your-org/facefind/internal/models"
	"github.com/your-org/facefind/internal/observability"
	"github.com/your-org/facefind/internal/storage"
)

// ObjectStore is the slice of the object-storage client the pipeline needs.
type ObjectStore interface {
	PutObject(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// Image is one upload: raw bytes plus the embeddings already extracted
// from it. Zero embeddings is valid: the photo is stored, just never
// matched.
type Image struct {
	EventID     uuid.UUID
	Filename    string
	ContentType string
	Data        []byte
	Embeddings  []models.NewEmbedding
	Private     bool
}

// ItemResult is the outcome for one image in a batch.
type ItemResult struct {
	Filename string     `json:"filename"`
	PhotoID  *uuid.UUID `json:"photo_id,omitempty"`
	Error    string     `json:"error,omitempty"`
}

// BatchResult reports a batch as counts plus per-item outcomes, never as
// an all-or-nothing verdict.
type BatchResult struct {
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Items     []ItemResult `json:"items"`
}

type Pipeline struct {
	store    storage.Store
	objects  ObjectStore
	maxWidth int
}

func NewPipeline(store storage.Store, objects ObjectStore, maxWidth int) *Pipeline {
	return &Pipeline{store: store, objects: objects, maxWidth: maxWidth}
}

// Index processes one image: downscale if oversized (best effort), store
// the bytes, then record the photo with its embeddings atomically. The
// photo row is only created after the bytes are durable, so a failed
// upload leaves nothing behind.
func (p *Pipeline) Index(ctx context.Context, img Image) (*models.Photo, error) {
	data, contentType := p.normalize(img.Data, img.ContentType)

	key := objectKey(img.EventID, img.Filename)
	url, err := p.objects.PutObject(ctx, key, data, contentType)
	if err != nil {
		return nil, fmt.Errorf("store image bytes: %w", err)
	}

	embeddings := withQualityHashes(img.Embeddings)

	photo, err := p.store.PutPhotoWithEmbeddings(ctx, models.PhotoDraft{
		EventID: img.EventID,
		URL:     url,
		Private: img.Private,
	}, embeddings)
	if err != nil {
		return nil, err
	}

	observability.PhotosIndexed.WithLabelValues(img.EventID.String()).Inc()
	observability.FacesIndexed.WithLabelValues(img.EventID.String()).Add(float64(len(embeddings)))
	slog.Info("photo indexed",
		"photo_id", photo.ID,
		"event_id", img.EventID,
		"faces", len(embeddings),
	)
	return photo, nil
}

// IndexBatch processes images independently: one image's failure is
// recorded and skipped, the rest proceed.
func (p *Pipeline) IndexBatch(ctx context.Context, images []Image) BatchResult {
	result := BatchResult{Items: make([]ItemResult, 0, len(images))}
	for _, img := range images {
		photo, err := p.Index(ctx, img)
		if err != nil {
			result.Failed++
			result.Items = append(result.Items, ItemResult{
				Filename: img.Filename,
				Error:    err.Error(),
			})
			observability.IngestFailures.WithLabelValues(img.EventID.String()).Inc()
			slog.Warn("batch item failed", "filename", img.Filename, "error", err)
			continue
		}
		result.Succeeded++
		result.Items = append(result.Items, ItemResult{
			Filename: img.Filename,
			PhotoID:  &photo.ID,
		})
	}
	return result
}

// normalize downscales an oversized image before storage. Best effort:
// anything that fails falls back to the original bytes.
func (p *Pipeline) normalize(data []byte, contentType string) ([]byte, string) {
	if p.maxWidth <= 0 {
		return data, contentType
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil || cfg.Width <= p.maxWidth {
		return data, contentType
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return data, contentType
	}

	scale := float64(p.maxWidth) / float64(cfg.Width)
	dst := image.NewRGBA(image.Rect(0, 0, p.maxWidth, int(float64(cfg.Height)*scale)))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 85}); err != nil {
		return data, contentType
	}
	return buf.Bytes(), "image/jpeg"
}

func withQualityHashes(embeddings []models.NewEmbedding) []models.NewEmbedding {
	out := make([]models.NewEmbedding, len(embeddings))
	for i, e := range embeddings {
		if e.QualityHash == "" {
			e.QualityHash = match.FaceHash(e.Vector)
		}
		out[i] = e
	}
	return out
}

func objectKey(eventID uuid.UUID, filename string) string {
	safe := strings.ReplaceAll(filename, " ", "_")
	if safe == "" {
		safe = "image.jpg"
	}
	return fmt.Sprintf("events/%s/%d-%s", eventID, time.Now().UnixMilli(), safe)
}
