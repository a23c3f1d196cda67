package match

import (
	"fmt"
	"math"
)

// FaceHash derives a deterministic 8-hex-digit hash from an embedding.
// Stored alongside each embedding for future deduplication of re-uploaded
// faces; the matching path never consults it.
func FaceHash(embedding []float32) string {
	var h int32
	for _, v := range embedding {
		q := int32(math.Floor(float64(v) * 1e6))
		h = (h << 5) - h + q
	}
	a := int64(h)
	if a < 0 {
		a = -a
	}
	return fmt.Sprintf("%08x", a)
}
