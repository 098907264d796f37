package repository

import (
	"database/sql"
	"time"

	"callscore/internal/models"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type SessionRepository interface {
	CreateSession(session *models.Session) error
	GetSessionByID(id int64) (*models.Session, error)
	ListSessions(userID int64, status models.SessionStatus, page, pageSize int) ([]*models.Session, int, error)
	// UpdateStatusIf performs an optimistic compare-and-set on the status
	// column and reports whether the row was updated.
	UpdateStatusIf(id int64, from, to models.SessionStatus) (bool, error)
	// MarkFailed drops a non-terminal session to failed, recording the
	// stage, classification, and message of the failure.
	MarkFailed(id int64, stage, class, message string) (bool, error)
	// ResetForRetry moves a failed session back to the given status and
	// clears the failure columns.
	ResetForRetry(id int64, to models.SessionStatus) (bool, error)
	SetSubmittedAt(id int64, at time.Time) error
	SetCompletedAt(id int64, at time.Time) error
	DeleteSession(id int64) error
}

type sessionRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewSessionRepository(db *sqlx.DB, logger *zap.Logger) SessionRepository {
	return &sessionRepository{db: db, logger: logger}
}

const sessionColumns = `id, user_id, customer_name, opportunity_name, decision_influencer, deal_stage,
	status, failed_stage, failure_class, failure_message, submitted_at, completed_at, is_synced, created_at`

func (r *sessionRepository) CreateSession(session *models.Session) error {
	query := `INSERT INTO sessions (user_id, customer_name, opportunity_name, decision_influencer, deal_stage, status, is_synced)
	          VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, created_at`
	return r.db.QueryRowx(query, session.UserID, session.CustomerName, session.OpportunityName,
		session.DecisionInfluencer, session.DealStage, session.Status, session.IsSynced).
		Scan(&session.ID, &session.CreatedAt)
}

func (r *sessionRepository) GetSessionByID(id int64) (*models.Session, error) {
	var session models.Session
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`
	err := r.db.Get(&session, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepository) ListSessions(userID int64, status models.SessionStatus, page, pageSize int) ([]*models.Session, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	var total int
	var sessions []*models.Session
	if status != "" {
		countQuery := `SELECT COUNT(*) FROM sessions WHERE user_id = $1 AND status = $2`
		if err := r.db.Get(&total, countQuery, userID, status); err != nil {
			return nil, 0, err
		}
		query := `SELECT ` + sessionColumns + ` FROM sessions WHERE user_id = $1 AND status = $2
		          ORDER BY created_at DESC LIMIT $3 OFFSET $4`
		if err := r.db.Select(&sessions, query, userID, status, pageSize, (page-1)*pageSize); err != nil {
			return nil, 0, err
		}
	} else {
		countQuery := `SELECT COUNT(*) FROM sessions WHERE user_id = $1`
		if err := r.db.Get(&total, countQuery, userID); err != nil {
			return nil, 0, err
		}
		query := `SELECT ` + sessionColumns + ` FROM sessions WHERE user_id = $1
		          ORDER BY created_at DESC LIMIT $2 OFFSET $3`
		if err := r.db.Select(&sessions, query, userID, pageSize, (page-1)*pageSize); err != nil {
			return nil, 0, err
		}
	}
	return sessions, total, nil
}

func (r *sessionRepository) UpdateStatusIf(id int64, from, to models.SessionStatus) (bool, error) {
	query := `UPDATE sessions SET status = $1 WHERE id = $2 AND status = $3`
	res, err := r.db.Exec(query, to, id, from)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *sessionRepository) MarkFailed(id int64, stage, class, message string) (bool, error) {
	query := `UPDATE sessions SET status = $1, failed_stage = $2, failure_class = $3, failure_message = $4
	          WHERE id = $5 AND status NOT IN ($6, $7)`
	res, err := r.db.Exec(query, models.StatusFailed, stage, class, message, id,
		models.StatusCompleted, models.StatusFailed)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *sessionRepository) ResetForRetry(id int64, to models.SessionStatus) (bool, error) {
	query := `UPDATE sessions SET status = $1, failed_stage = NULL, failure_class = NULL, failure_message = NULL
	          WHERE id = $2 AND status = $3`
	res, err := r.db.Exec(query, to, id, models.StatusFailed)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *sessionRepository) SetSubmittedAt(id int64, at time.Time) error {
	_, err := r.db.Exec(`UPDATE sessions SET submitted_at = $1 WHERE id = $2`, at, id)
	return err
}

func (r *sessionRepository) SetCompletedAt(id int64, at time.Time) error {
	_, err := r.db.Exec(`UPDATE sessions SET completed_at = $1 WHERE id = $2`, at, id)
	return err
}

func (r *sessionRepository) DeleteSession(id int64) error {
	_, err := r.db.Exec(`DELETE FROM sessions WHERE id = $1`, id)
	return err
}
