package repository

import (
	"database/sql"
	"fmt"
	"time"

	"callscore/internal/models"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type ResponseRepository interface {
	// ReplaceForSession writes a reconciled batch in one transaction so a
	// concurrent scoring read never observes a partial write. Rows that
	// already carry a manual override are left untouched.
	ReplaceForSession(sessionID int64, responses []models.Response) error
	GetBySession(sessionID int64) ([]models.Response, error)
	GetBySessionAndItem(sessionID, itemID int64) (*models.Response, error)
	CountBySession(sessionID int64) (int, error)
	// ApplyOverride records a manual verdict on top of the AI judgment,
	// which is retained but shadowed.
	ApplyOverride(sessionID, itemID int64, verdict *bool, userID int64, reason string) (*models.Response, error)
}

type responseRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewResponseRepository(db *sqlx.DB, logger *zap.Logger) ResponseRepository {
	return &responseRepository{db: db, logger: logger}
}

const responseColumns = `id, session_id, item_id, is_validated, confidence, evidence_text, ai_reasoning,
	manual_override, override_verdict, override_by_user_id, override_reason, overridden_at, created_at, updated_at`

func (r *responseRepository) ReplaceForSession(sessionID int64, responses []models.Response) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `INSERT INTO session_responses (session_id, item_id, is_validated, confidence, evidence_text, ai_reasoning)
	          VALUES ($1, $2, $3, $4, $5, $6)
	          ON CONFLICT (session_id, item_id) DO UPDATE
	          SET is_validated = EXCLUDED.is_validated,
	              confidence = EXCLUDED.confidence,
	              evidence_text = EXCLUDED.evidence_text,
	              ai_reasoning = EXCLUDED.ai_reasoning,
	              updated_at = NOW()
	          WHERE session_responses.manual_override = FALSE`
	for _, resp := range responses {
		if resp.ManualOverride {
			// Reconciliation passes overridden rows through untouched.
			continue
		}
		if _, err := tx.Exec(query, sessionID, resp.ItemID, resp.IsValidated,
			resp.Confidence, resp.EvidenceText, resp.AIReasoning); err != nil {
			return fmt.Errorf("failed to upsert response for item %d: %w", resp.ItemID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit response batch: %w", err)
	}
	return nil
}

func (r *responseRepository) GetBySession(sessionID int64) ([]models.Response, error) {
	var responses []models.Response
	query := `SELECT ` + responseColumns + ` FROM session_responses WHERE session_id = $1 ORDER BY item_id`
	err := r.db.Select(&responses, query, sessionID)
	if err != nil {
		return nil, err
	}
	return responses, nil
}

func (r *responseRepository) GetBySessionAndItem(sessionID, itemID int64) (*models.Response, error) {
	var response models.Response
	query := `SELECT ` + responseColumns + ` FROM session_responses WHERE session_id = $1 AND item_id = $2`
	err := r.db.Get(&response, query, sessionID, itemID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &response, nil
}

func (r *responseRepository) CountBySession(sessionID int64) (int, error) {
	var count int
	err := r.db.Get(&count, `SELECT COUNT(*) FROM session_responses WHERE session_id = $1`, sessionID)
	return count, err
}

func (r *responseRepository) ApplyOverride(sessionID, itemID int64, verdict *bool, userID int64, reason string) (*models.Response, error) {
	query := `UPDATE session_responses
	          SET manual_override = TRUE,
	              override_verdict = $1,
	              override_by_user_id = $2,
	              override_reason = $3,
	              overridden_at = $4,
	              updated_at = NOW()
	          WHERE session_id = $5 AND item_id = $6`
	res, err := r.db.Exec(query, verdict, userID, reason, time.Now().UTC(), sessionID, itemID)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, nil
	}
	return r.GetBySessionAndItem(sessionID, itemID)
}
