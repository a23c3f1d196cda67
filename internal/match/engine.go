// Package match implements the face matching engine: an exhaustive
// Euclidean scan of an event's candidate embeddings against one or more
// probe embeddings. Candidate sets are event-scoped and small enough that
// O(queries x candidates) is the intended complexity; there is no
// approximate index.
package match

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/your-org/facefind/internal/models"
)

// DefaultThreshold is the operating point for the current model generation.
// Lower trades recall for precision.
const DefaultThreshold = 0.5

// DimensionError reports a probe/candidate length mismatch. This is a data
// or programming error, fatal to the whole match call, never a silent skip.
type DimensionError struct {
	Query     int
	Candidate int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: query %d, candidate %d", e.Query, e.Candidate)
}

// Engine is constructed once with its threshold and passed to callers;
// there is no process-wide matcher state.
type Engine struct {
	threshold float64
}

func NewEngine(threshold float64) *Engine {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Engine{threshold: threshold}
}

func (e *Engine) Threshold() float64 {
	return e.threshold
}

// Match returns the set of photos with at least one candidate embedding
// strictly closer than the engine threshold to at least one query
// embedding. The result carries no ordering; callers impose presentation
// order separately.
func (e *Engine) Match(queries [][]float32, candidates []models.FaceEmbedding) (map[uuid.UUID]struct{}, error) {
	return e.MatchWithThreshold(queries, candidates, e.threshold)
}

// MatchWithThreshold is Match with a per-call threshold override.
func (e *Engine) MatchWithThreshold(queries [][]float32, candidates []models.FaceEmbedding, threshold float64) (map[uuid.UUID]struct{}, error) {
	matched := make(map[uuid.UUID]struct{})
	if len(queries) == 0 {
		return matched, nil
	}

	for _, c := range candidates {
		if _, ok := matched[c.PhotoID]; ok {
			// First match wins for this photo.
			continue
		}
		for _, q := range queries {
			dist, err := Distance(q, c.Vector)
			if err != nil {
				return nil, err
			}
			if dist < threshold {
				matched[c.PhotoID] = struct{}{}
				break
			}
		}
	}
	return matched, nil
}

// Distance is the Euclidean distance between two embeddings.
func Distance(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, &DimensionError{Query: len(a), Candidate: len(b)}
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum), nil
}
