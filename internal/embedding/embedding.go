package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Embedder maps an image to a fixed-dimension float vector. Deterministic
// for identical input.
type Embedder interface {
	Embed(ctx context.Context, image []byte) ([]float32, error)
	Dimension() int
}

// embedResponse is the response from the CLIP sidecar's /embed endpoint.
type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Client talks to the CLIP sidecar service that wraps the image encoder
// model. The model runs out of process; this is the whole integration.
type Client struct {
	host       string
	dimension  int
	httpClient *http.Client
}

func NewClient(host string, dimension int) *Client {
	return &Client{
		host:      host,
		dimension: dimension,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (c *Client) Dimension() int { return c.dimension }

// Embed returns the embedding vector for the given image bytes.
func (c *Client) Embed(ctx context.Context, image []byte) ([]float32, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/embed", bytes.NewReader(image))
	if err != nil {
		return nil, fmt.Errorf("build embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedder request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedder: status %d", resp.StatusCode)
	}

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}

	if len(result.Embedding) != c.dimension {
		return nil, fmt.Errorf("embedder returned %d dims, want %d", len(result.Embedding), c.dimension)
	}

	return result.Embedding, nil
}

// IsHealthy checks if the sidecar is reachable.
func (c *Client) IsHealthy() bool {
	resp, err := c.httpClient.Get(c.host + "/health")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
