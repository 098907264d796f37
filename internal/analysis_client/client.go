package analysis_client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"callscore/internal/models"
	"callscore/internal/pipeline"
)

// Client is a client for the AI analysis service. It sends the transcript
// together with the active checklist definitions and maps the service's
// judgments onto the reconciler's input contract.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// AnalyzeRequest carries one transcript and the items to judge it against.
type AnalyzeRequest struct {
	Transcript string                    `json:"transcript"`
	Items      []pipeline.ItemDefinition `json:"items"`
}

// JudgmentPayload is one item judgment on the wire. Verdict is tri-state:
// null means the model could not determine the item from the transcript.
type JudgmentPayload struct {
	ItemID     int64    `json:"item_id"`
	Verdict    *bool    `json:"verdict"`
	Confidence *float64 `json:"confidence"`
	Evidence   string   `json:"evidence"`
	Reasoning  string   `json:"reasoning"`
}

// AnalyzeResponse is the analysis result.
type AnalyzeResponse struct {
	Judgments []JudgmentPayload `json:"judgments"`
	RequestID string            `json:"request_id"`
}

// NewClient creates a new analysis client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 300 * time.Second,
		},
	}
}

// Analyze judges a transcript against the checklist. The judgment list may be
// partial, contain duplicates, or reference unknown items; the reconciler
// owns cleaning that up, so this client only maps the payload through.
func (c *Client) Analyze(ctx context.Context, transcript string, items []pipeline.ItemDefinition) ([]models.Judgment, error) {
	const op = "analysis.analyze"

	jsonData, err := json.Marshal(AnalyzeRequest{Transcript: transcript, Items: items})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/v1/analyze", bytes.NewBuffer(jsonData))
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

	var result AnalyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	judgments := make([]models.Judgment, 0, len(result.Judgments))
	for _, p := range result.Judgments {
		if p.ItemID == 0 {
			continue
		}
		j := models.Judgment{
			ItemID:    p.ItemID,
			Validated: p.Verdict,
			Evidence:  p.Evidence,
			Reasoning: p.Reasoning,
		}
		if p.Confidence != nil {
			j.Confidence = *p.Confidence
		}
		judgments = append(judgments, j)
	}
	return judgments, nil
}
