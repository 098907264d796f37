package models

import "time"

// SessionStatus is the lifecycle stage of a session.
type SessionStatus string

const (
	StatusDraft      SessionStatus = "draft"
	StatusUploading  SessionStatus = "uploading"
	StatusProcessing SessionStatus = "processing" // transcribing audio
	StatusAnalyzing  SessionStatus = "analyzing"  // AI mapping to checklist
	StatusScoring    SessionStatus = "scoring"    // calculating scores
	StatusCompleted  SessionStatus = "completed"
	StatusFailed     SessionStatus = "failed"
)

// Session represents a recorded sales call stored in the 'sessions' table.
type Session struct {
	ID                 int64         `db:"id" json:"id"`
	UserID             int64         `db:"user_id" json:"user_id"`
	CustomerName       string        `db:"customer_name" json:"customer_name"`
	OpportunityName    *string       `db:"opportunity_name" json:"opportunity_name,omitempty"`
	DecisionInfluencer *string       `db:"decision_influencer" json:"decision_influencer,omitempty"`
	DealStage          *string       `db:"deal_stage" json:"deal_stage,omitempty"`
	Status             SessionStatus `db:"status" json:"status"`
	// Set when the session drops to failed so a retry can re-target the
	// stage that raised the failure.
	FailedStage    *string    `db:"failed_stage" json:"failed_stage,omitempty"`
	FailureClass   *string    `db:"failure_class" json:"failure_class,omitempty"`
	FailureMessage *string    `db:"failure_message" json:"failure_message,omitempty"`
	SubmittedAt    *time.Time `db:"submitted_at" json:"submitted_at,omitempty"`
	CompletedAt    *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	IsSynced       bool       `db:"is_synced" json:"is_synced"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// AudioFile represents the uploaded recording's durable reference stored in
// the 'audio_files' table. One per session.
type AudioFile struct {
	ID              int64     `db:"id" json:"id"`
	SessionID       int64     `db:"session_id" json:"session_id"`
	Filename        string    `db:"filename" json:"filename"`
	Locator         string    `db:"locator" json:"locator"` // opaque storage locator
	FileSize        int64     `db:"file_size" json:"file_size"`
	DurationSeconds *float64  `db:"duration_seconds" json:"duration_seconds,omitempty"`
	MimeType        string    `db:"mime_type" json:"mime_type"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// Transcript represents the transcription result stored in the 'transcripts'
// table. One per session.
type Transcript struct {
	ID            int64     `db:"id" json:"id"`
	SessionID     int64     `db:"session_id" json:"session_id"`
	Text          string    `db:"text" json:"text"`
	Language      *string   `db:"language" json:"language,omitempty"`
	Duration      *float64  `db:"duration" json:"duration,omitempty"`
	WordCount     *int      `db:"word_count" json:"word_count,omitempty"`
	ProviderReqID *string   `db:"provider_request_id" json:"provider_request_id,omitempty"`
	TranscribedAt time.Time `db:"transcribed_at" json:"transcribed_at"`
}
