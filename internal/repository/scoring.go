package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"callscore/internal/models"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type ScoringRepository interface {
	// SaveResult replaces the session's current scoring snapshot and
	// appends a history entry in the same transaction.
	SaveResult(result *models.ScoringResult, triggerEvent string) error
	GetBySession(sessionID int64) (*models.ScoringResult, error)
	// GetLatestTotal returns the current stored total, nil when the
	// session has never been scored.
	GetLatestTotal(sessionID int64) (*float64, error)
	GetHistory(sessionID int64) ([]models.ScoreEntry, error)
}

type scoringRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewScoringRepository(db *sqlx.DB, logger *zap.Logger) ScoringRepository {
	return &scoringRepository{db: db, logger: logger}
}

// scoringRow mirrors the scoring_results table; the ranked lists and category
// breakdown live in jsonb columns.
type scoringRow struct {
	models.ScoringResult
	CategoryScoresJSON []byte `db:"category_scores"`
	TopStrengthsJSON   []byte `db:"top_strengths"`
	TopGapsJSON        []byte `db:"top_gaps"`
}

func (r *scoringRepository) SaveResult(result *models.ScoringResult, triggerEvent string) error {
	categoryScores, err := json.Marshal(result.CategoryScores)
	if err != nil {
		return fmt.Errorf("failed to marshal category scores: %w", err)
	}
	strengths, err := json.Marshal(result.TopStrengths)
	if err != nil {
		return fmt.Errorf("failed to marshal strengths: %w", err)
	}
	gaps, err := json.Marshal(result.TopGaps)
	if err != nil {
		return fmt.Errorf("failed to marshal gaps: %w", err)
	}

	tx, err := r.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `INSERT INTO scoring_results (session_id, total_score, raw_score, max_score, risk_band,
	              items_validated, items_total, category_scores, top_strengths, top_gaps,
	              previous_total, score_change, calculated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	          ON CONFLICT (session_id) DO UPDATE
	          SET total_score = EXCLUDED.total_score,
	              raw_score = EXCLUDED.raw_score,
	              max_score = EXCLUDED.max_score,
	              risk_band = EXCLUDED.risk_band,
	              items_validated = EXCLUDED.items_validated,
	              items_total = EXCLUDED.items_total,
	              category_scores = EXCLUDED.category_scores,
	              top_strengths = EXCLUDED.top_strengths,
	              top_gaps = EXCLUDED.top_gaps,
	              previous_total = EXCLUDED.previous_total,
	              score_change = EXCLUDED.score_change,
	              calculated_at = EXCLUDED.calculated_at
	          RETURNING id`
	if err := tx.QueryRowx(query, result.SessionID, result.TotalScore, result.RawScore, result.MaxScore,
		result.RiskBand, result.ItemsValidated, result.ItemsTotal, categoryScores, strengths, gaps,
		result.PreviousTotal, result.ScoreChange, result.CalculatedAt).Scan(&result.ID); err != nil {
		return fmt.Errorf("failed to upsert scoring result: %w", err)
	}

	historyQuery := `INSERT INTO score_history (session_id, total_score, risk_band, items_validated,
	                     items_total, score_change, trigger_event, calculated_at)
	                 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := tx.Exec(historyQuery, result.SessionID, result.TotalScore, result.RiskBand,
		result.ItemsValidated, result.ItemsTotal, result.ScoreChange, triggerEvent, result.CalculatedAt); err != nil {
		return fmt.Errorf("failed to append score history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit scoring result: %w", err)
	}
	return nil
}

func (r *scoringRepository) GetBySession(sessionID int64) (*models.ScoringResult, error) {
	var row scoringRow
	query := `SELECT id, session_id, total_score, raw_score, max_score, risk_band, items_validated,
	              items_total, category_scores, top_strengths, top_gaps, previous_total, score_change, calculated_at
	          FROM scoring_results WHERE session_id = $1`
	err := r.db.Get(&row, query, sessionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	result := row.ScoringResult
	if len(row.CategoryScoresJSON) > 0 {
		if err := json.Unmarshal(row.CategoryScoresJSON, &result.CategoryScores); err != nil {
			return nil, fmt.Errorf("failed to unmarshal category scores: %w", err)
		}
	}
	if len(row.TopStrengthsJSON) > 0 {
		if err := json.Unmarshal(row.TopStrengthsJSON, &result.TopStrengths); err != nil {
			return nil, fmt.Errorf("failed to unmarshal strengths: %w", err)
		}
	}
	if len(row.TopGapsJSON) > 0 {
		if err := json.Unmarshal(row.TopGapsJSON, &result.TopGaps); err != nil {
			return nil, fmt.Errorf("failed to unmarshal gaps: %w", err)
		}
	}
	return &result, nil
}

func (r *scoringRepository) GetLatestTotal(sessionID int64) (*float64, error) {
	var total float64
	err := r.db.Get(&total, `SELECT total_score FROM scoring_results WHERE session_id = $1`, sessionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &total, nil
}

func (r *scoringRepository) GetHistory(sessionID int64) ([]models.ScoreEntry, error) {
	var entries []models.ScoreEntry
	query := `SELECT id, session_id, total_score, risk_band, items_validated, items_total,
	              score_change, trigger_event, calculated_at
	          FROM score_history WHERE session_id = $1 ORDER BY calculated_at DESC, id DESC`
	err := r.db.Select(&entries, query, sessionID)
	if err != nil {
		return nil, err
	}
	return entries, nil
}
