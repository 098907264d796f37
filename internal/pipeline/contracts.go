package pipeline

import (
	"context"

	"callscore/internal/models"
	"callscore/internal/taxonomy"
)

// AudioArtifact is the durable reference the audio storage service holds for
// a session's recording.
type AudioArtifact struct {
	Locator         string  `json:"locator"`
	Filename        string  `json:"filename"`
	SizeBytes       int64   `json:"size_bytes"`
	DurationSeconds float64 `json:"duration_seconds"`
	MimeType        string  `json:"mime_type"`
}

// TranscriptionResult is the transcription service's output for one audio
// locator.
type TranscriptionResult struct {
	Text      string  `json:"text"`
	Language  string  `json:"language"`
	Duration  float64 `json:"duration"`
	WordCount int     `json:"word_count"`
	RequestID string  `json:"request_id"`
}

// ItemDefinition is the slice of a checklist item the analysis service needs
// to judge a transcript against.
type ItemDefinition struct {
	ItemID     int64  `json:"item_id"`
	Category   string `json:"category"`
	Title      string `json:"title"`
	Definition string `json:"definition"`
}

// CoachingInput is the stable snapshot handed to the coaching and report
// generators: session, scoring result, and complete response set.
type CoachingInput struct {
	Session   *models.Session       `json:"session"`
	Score     *models.ScoringResult `json:"score"`
	Responses []models.Response     `json:"responses"`
}

// CoachingResult is the generated coaching artifact.
type CoachingResult struct {
	FeedbackText     string   `json:"feedback_text"`
	Strengths        []string `json:"strengths"`
	ImprovementAreas []string `json:"improvement_areas"`
	ActionItems      []string `json:"action_items"`
	AudioLocator     string   `json:"audio_locator"`
	RequestID        string   `json:"request_id"`
}

// ReportResult points at the rendered report artifact.
type ReportResult struct {
	Locator string `json:"locator"`
	Format  string `json:"format"`
}

// AudioStorage resolves a session's uploaded recording to a durable
// reference. The core never re-implements storage.
type AudioStorage interface {
	GetArtifact(ctx context.Context, sessionID int64) (*AudioArtifact, error)
}

// Transcriber is the speech-to-text collaborator; one fallible,
// idempotent-per-input call.
type Transcriber interface {
	Transcribe(ctx context.Context, locator string) (*TranscriptionResult, error)
}

// Analyzer is the AI analysis collaborator. Its output is exactly the
// reconciler's input contract.
type Analyzer interface {
	Analyze(ctx context.Context, transcript string, items []ItemDefinition) ([]models.Judgment, error)
}

// CoachingGenerator produces the coaching and report artifacts from a
// completed session snapshot.
type CoachingGenerator interface {
	GenerateFeedback(ctx context.Context, input CoachingInput) (*CoachingResult, error)
	GenerateReport(ctx context.Context, input CoachingInput) (*ReportResult, error)
}

// TaxonomyProvider hands out the current immutable checklist snapshot.
type TaxonomyProvider interface {
	Current() *taxonomy.Taxonomy
}
