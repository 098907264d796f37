package coaching_client

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

// Client is a client for the coaching and report generation service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// FeedbackResponse is the generated coaching artifact.
type FeedbackResponse struct {
	FeedbackText     string   `json:"feedback_text"`
	Strengths        []string `json:"strengths"`
	ImprovementAreas []string `json:"improvement_areas"`
	ActionItems      []string `json:"action_items"`
	AudioLocator     string   `json:"audio_locator"`
	RequestID        string   `json:"request_id"`
}

// ReportResponse points at the rendered report.
type ReportResponse struct {
	Locator string `json:"locator"`
	Format  string `json:"format"`
}

// NewClient creates a new coaching client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// GenerateFeedback produces coaching feedback from a completed session
// snapshot.
func (c *Client) GenerateFeedback(ctx context.Context, input pipeline.CoachingInput) (*pipeline.CoachingResult, error) {
	const op = "coaching.generate_feedback"

	var result FeedbackResponse
	if err := c.post(ctx, op, "/api/v1/coaching/feedback", input, &result); err != nil {
		return nil, err
	}
	return &pipeline.CoachingResult{
		FeedbackText:     result.FeedbackText,
		Strengths:        result.Strengths,
		ImprovementAreas: result.ImprovementAreas,
		ActionItems:      result.ActionItems,
		AudioLocator:     result.AudioLocator,
		RequestID:        result.RequestID,
	}, nil
}

// GenerateReport renders the deal report for a completed session snapshot.
func (c *Client) GenerateReport(ctx context.Context, input pipeline.CoachingInput) (*pipeline.ReportResult, error) {
	const op = "coaching.generate_report"

	var result ReportResponse
	if err := c.post(ctx, op, "/api/v1/coaching/report", input, &result); err != nil {
		return nil, err
	}
	if result.Locator == "" {
		return nil, &pipeline.PermanentExternalError{
			Op:  op,
			Err: fmt.Errorf("report service returned no locator"),
		}
	}
	return &pipeline.ReportResult{Locator: result.Locator, Format: result.Format}, nil
}

func (c *Client) post(ctx context.Context, op, path string, body, out interface{}) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pipeline.TransportError(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return pipeline.StatusError(op, resp.StatusCode, respBody)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
