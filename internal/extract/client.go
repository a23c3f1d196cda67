// Package extract is the boundary to the external descriptor extractor:
// an HTTP service that turns an image into zero or more fixed-dimension
// face embeddings. The core never runs a model in-process.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

// Face is one detected face: its embedding plus the deterministic quality
// hash the extractor derives from it.
type Face struct {
	Embedding   []float32 `json:"embedding"`
	QualityHash string    `json:"quality_hash"`
}

type extractResponse struct {
	Faces []Face `json:"faces"`
	Count int    `json:"count"`
	Model string `json:"model"`
}

// Extractor is consumed by the indexing pipeline and reindex coordinator.
type Extractor interface {
	Extract(ctx context.Context, imageData []byte) ([]Face, error)
}

// Client talks to the extractor service over HTTP multipart.
type Client struct {
	baseURL   string
	dimension int
	client    *http.Client
}

// NewClient creates a client for the extractor at baseURL. dimension is the
// embedding length of the current model generation; responses with any
// other length are rejected.
func NewClient(baseURL string, dimension int) *Client {
	return &Client{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		dimension: dimension,
		client:    &http.Client{Timeout: 60 * time.Second},
	}
}

// Extract returns the faces detected in the image. An image with no faces
// yields an empty slice and no error.
func (c *Client) Extract(ctx context.Context, imageData []byte) ([]Face, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image.jpg"`)
	h.Set("Content-Type", detectMIMEType(imageData))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/extract", &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("extractor request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read extractor response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("extractor error (status %d): %s", resp.StatusCode, string(body))
	}

	var out extractResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("parse extractor response: %w", err)
	}

	for i, f := range out.Faces {
		if len(f.Embedding) != c.dimension {
			return nil, fmt.Errorf("extractor returned face %d with dimension %d, want %d",
				i, len(f.Embedding), c.dimension)
		}
	}
	return out.Faces, nil
}

// detectMIMEType sniffs the content type from magic bytes.
func detectMIMEType(data []byte) string {
	if len(data) < 12 {
		return "application/octet-stream"
	}
	switch {
	case data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
		return "image/jpeg"
	case data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47:
		return "image/png"
	case data[0] == 0x52 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x46 &&
		data[8] == 0x57 && data[9] == 0x45 && data[10] == 0x42 && data[11] == 0x50:
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
