package models

import "time"

// CoachingFeedback is the AI-generated coaching artifact stored in the
// 'coaching_feedback' table. One per session, regenerable on demand.
type CoachingFeedback struct {
	ID               int64     `db:"id" json:"id"`
	SessionID        int64     `db:"session_id" json:"session_id"`
	FeedbackText     string    `db:"feedback_text" json:"feedback_text"`
	Strengths        string    `db:"strengths" json:"strengths"`                 // JSON list
	ImprovementAreas string    `db:"improvement_areas" json:"improvement_areas"` // JSON list
	ActionItems      string    `db:"action_items" json:"action_items"`           // JSON list
	AudioLocator     *string   `db:"audio_locator" json:"audio_locator,omitempty"`
	ProviderReqID    *string   `db:"provider_request_id" json:"provider_request_id,omitempty"`
	GeneratedAt      time.Time `db:"generated_at" json:"generated_at"`
}

// Report is the rendered deal report artifact stored in the 'reports' table.
// The locator is opaque; rendering happens in an external service.
type Report struct {
	ID          int64     `db:"id" json:"id"`
	SessionID   int64     `db:"session_id" json:"session_id"`
	Locator     string    `db:"locator" json:"locator"`
	Format      string    `db:"format" json:"format"`
	GeneratedAt time.Time `db:"generated_at" json:"generated_at"`
}
