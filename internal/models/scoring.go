package models

import "time"

// RiskBand is the coarse deal-health classification derived from the
// normalized total score.
type RiskBand string

const (
	BandHealthy RiskBand = "healthy" // normalized total >= 80
	BandCaution RiskBand = "caution" // 60 <= normalized total < 80
	BandAtRisk  RiskBand = "at_risk" // normalized total < 60
)

// CategoryScore is one category's contribution inside a ScoringResult.
type CategoryScore struct {
	CategoryID int64   `json:"category_id"`
	Name       string  `json:"name"`
	Score      float64 `json:"score"`
	MaxScore   float64 `json:"max_score"`
	Validated  int     `json:"validated"`
	ItemCount  int     `json:"item_count"`
}

// RankedItem is one entry of the top-strengths / top-gaps lists.
type RankedItem struct {
	ItemID   int64   `json:"item_id"`
	Title    string  `json:"title"`
	Category string  `json:"category"`
	Points   float64 `json:"points"`
}

// ScoringResult is the current derived score snapshot for a session, stored
// in the 'scoring_results' table (one current row per session; every
// recompute is also appended to score_history).
type ScoringResult struct {
	ID        int64 `db:"id" json:"id"`
	SessionID int64 `db:"session_id" json:"session_id"`

	TotalScore     float64  `db:"total_score" json:"total_score"` // normalized 0-100
	RawScore       float64  `db:"raw_score" json:"raw_score"`     // weighted sum of item points
	MaxScore       float64  `db:"max_score" json:"max_score"`     // taxonomy totalMaxScore at compute time
	RiskBand       RiskBand `db:"risk_band" json:"risk_band"`
	ItemsValidated int      `db:"items_validated" json:"items_validated"`
	ItemsTotal     int      `db:"items_total" json:"items_total"`

	CategoryScores []CategoryScore `db:"-" json:"category_scores"`
	TopStrengths   []RankedItem    `db:"-" json:"top_strengths"`
	TopGaps        []RankedItem    `db:"-" json:"top_gaps"`

	// PreviousTotal and ScoreChange are nil when no prior score exists for
	// the session; zero is a valid delta, "no prior" is not.
	PreviousTotal *float64 `db:"previous_total" json:"previous_total,omitempty"`
	ScoreChange   *float64 `db:"score_change" json:"score_change,omitempty"`

	CalculatedAt time.Time `db:"calculated_at" json:"calculated_at"`
}

// ScoreEntry is one historical score snapshot in the 'score_history' table.
type ScoreEntry struct {
	ID             int64     `db:"id" json:"id"`
	SessionID      int64     `db:"session_id" json:"session_id"`
	TotalScore     float64   `db:"total_score" json:"total_score"`
	RiskBand       RiskBand  `db:"risk_band" json:"risk_band"`
	ItemsValidated int       `db:"items_validated" json:"items_validated"`
	ItemsTotal     int       `db:"items_total" json:"items_total"`
	ScoreChange    *float64  `db:"score_change" json:"score_change,omitempty"`
	TriggerEvent   string    `db:"trigger_event" json:"trigger_event"`
	CalculatedAt   time.Time `db:"calculated_at" json:"calculated_at"`
}
