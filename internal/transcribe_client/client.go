package transcribe_client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"callscore/internal/pipeline"
)

// Client is a client for the transcription service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// TranscribeRequest asks the service to transcribe one stored recording.
type TranscribeRequest struct {
	Locator string `json:"locator"`
}

// TranscribeResponse is the transcription result.
type TranscribeResponse struct {
	Text      string  `json:"text"`
	Language  string  `json:"language"`
	Duration  float64 `json:"duration"`
	WordCount int     `json:"word_count"`
	RequestID string  `json:"request_id"`
}

// NewClient creates a new transcription client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// Transcribe converts one recording to text. The call is idempotent per
// locator; an unsupported or corrupt recording comes back as a 4xx and is
// permanent.
func (c *Client) Transcribe(ctx context.Context, locator string) (*pipeline.TranscriptionResult, error) {
	const op = "transcription.transcribe"

	jsonData, err := json.Marshal(TranscribeRequest{Locator: locator})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/v1/transcribe", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pipeline.TransportError(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, pipeline.StatusError(op, resp.StatusCode, body)
	}

	var result TranscribeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if result.Text == "" {
		return nil, &pipeline.PermanentExternalError{
			Op:  op,
			Err: fmt.Errorf("transcription returned an empty transcript for %s", locator),
		}
	}

	return &pipeline.TranscriptionResult{
		Text:      result.Text,
		Language:  result.Language,
		Duration:  result.Duration,
		WordCount: result.WordCount,
		RequestID: result.RequestID,
	}, nil
}
