package storage_client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"callscore/internal/pipeline"
)

// Client is a client for the audio storage service. Uploads happen directly
// between the browser and storage; this client only resolves the durable
// reference a session's recording ended up at.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// artifactResponse is the storage service's lookup result.
type artifactResponse struct {
	Locator         string  `json:"locator"`
	Filename        string  `json:"filename"`
	SizeBytes       int64   `json:"size_bytes"`
	DurationSeconds float64 `json:"duration_seconds"`
	MimeType        string  `json:"mime_type"`
}

// NewClient creates a new audio storage client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// GetArtifact resolves the uploaded recording for a session. A 404 is
// permanent: the upload was never confirmed and retrying cannot make the
// recording appear.
func (c *Client) GetArtifact(ctx context.Context, sessionID int64) (*pipeline.AudioArtifact, error) {
	const op = "storage.get_artifact"

	url := fmt.Sprintf("%s/api/v1/artifacts/session/%d", c.baseURL, sessionID)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pipeline.TransportError(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, pipeline.StatusError(op, resp.StatusCode, body)
	}

	var result artifactResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if result.Locator == "" {
		return nil, &pipeline.PermanentExternalError{
			Op:  op,
			Err: fmt.Errorf("storage returned an artifact without a locator for session %d", sessionID),
		}
	}

	return &pipeline.AudioArtifact{
		Locator:         result.Locator,
		Filename:        result.Filename,
		SizeBytes:       result.SizeBytes,
		DurationSeconds: result.DurationSeconds,
		MimeType:        result.MimeType,
	}, nil
}
