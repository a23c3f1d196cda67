package dto

// ReindexPhotoRequest replaces one photo's embedding set with vectors
// re-extracted by the caller. Used once per photo per client-driven
// reindex run. The photo is addressed by the request path.
type ReindexPhotoRequest struct {
	Embeddings    [][]float32 `json:"embeddings"`
	QualityHashes []string    `json:"quality_hashes,omitempty"`
}
